package fitting

import (
	"errors"
	"math"
	"testing"

	"orionjets/pkg/grid"
)

// TestFitRecoversExactGaussian fits noiseless samples of a known model
// from an offset starting point.
func TestFitRecoversExactGaussian(t *testing.T) {
	truth := Gaussian2D{Amplitude: 3.5, XMean: 12.3, YMean: 9.6, XStddev: 2.4, YStddev: 1.7}
	data := truth.Surface(21, 25)

	init := Gaussian2D{Amplitude: 1, XMean: 12, YMean: 10, XStddev: 2, YStddev: 2}
	res, err := FitGaussian2D(data, init, DefaultOptions())
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	got := res.Model
	checks := []struct {
		name      string
		got, want float64
	}{
		{"amplitude", got.Amplitude, truth.Amplitude},
		{"x_mean", got.XMean, truth.XMean},
		{"y_mean", got.YMean, truth.YMean},
		{"x_stddev", got.XStddev, truth.XStddev},
		{"y_stddev", got.YStddev, truth.YStddev},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > 1e-3 {
			t.Errorf("Expected %s=%f, got %f", c.name, c.want, c.got)
		}
	}
	if res.SumSquares > 1e-8 {
		t.Errorf("Expected near-zero residual, got %g", res.SumSquares)
	}
	if res.Iterations <= 0 || res.Iterations > DefaultOptions().MaxIterations {
		t.Errorf("Unexpected iteration count %d", res.Iterations)
	}
}

func TestFitIterationLimit(t *testing.T) {
	truth := Gaussian2D{Amplitude: 50, XMean: 14.5, YMean: 16.2, XStddev: 2.2, YStddev: 2.8}
	data := truth.Surface(29, 29)

	init := Gaussian2D{Amplitude: 1, XMean: 14, YMean: 16, XStddev: 2, YStddev: 2}
	_, err := FitGaussian2D(data, init, Options{MaxIterations: 1, Tolerance: 1e-12})
	if !errors.Is(err, ErrNoConvergence) {
		t.Fatalf("Expected ErrNoConvergence, got %v", err)
	}
	var stop *StopError
	if !errors.As(err, &stop) {
		t.Fatalf("Expected *StopError, got %T", err)
	}
	if stop.Iterations != 1 {
		t.Errorf("Expected 1 iteration, got %d", stop.Iterations)
	}
}

func TestFitRejectsBadInput(t *testing.T) {
	data := grid.Zeros(2, 2)
	init := Gaussian2D{Amplitude: 1, XMean: 0, YMean: 0, XStddev: 1, YStddev: 1}
	if _, err := FitGaussian2D(data, init, DefaultOptions()); err == nil {
		t.Errorf("Expected error for a surface smaller than the parameter count")
	}

	data = grid.Zeros(5, 5)
	init.XStddev = 0
	if _, err := FitGaussian2D(data, init, DefaultOptions()); err == nil {
		t.Errorf("Expected error for zero initial width")
	}
}

func TestSurfaceMatchesEvaluate(t *testing.T) {
	g := Gaussian2D{Amplitude: 2, XMean: 1, YMean: 2, XStddev: 1, YStddev: 0.5}
	s := g.Surface(4, 3)
	if s.Rows() != 4 || s.Cols() != 3 {
		t.Fatalf("Expected 4x3 surface, got %v", s.Shape)
	}
	if s.At(2, 1) != 2 {
		t.Errorf("Expected peak value 2 at (2,1), got %f", s.At(2, 1))
	}
	if math.Abs(s.At(3, 0)-g.Evaluate(0, 3)) > 1e-15 {
		t.Errorf("Surface and Evaluate disagree")
	}
}
