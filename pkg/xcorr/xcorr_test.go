package xcorr

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"

	"orionjets/internal/testutil"
	"orionjets/pkg/fitting"
	"orionjets/pkg/grid"
)

// blob returns an n x n image holding a unit-amplitude Gaussian.
func blob(n int, cy, cx, sigma float64) grid.Array {
	a := grid.Zeros(n, n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			dy, dx := float64(y)-cy, float64(x)-cx
			a.Set(y, x, math.Exp(-(dy*dy+dx*dx)/(2*sigma*sigma)))
		}
	}
	return a
}

// pattern returns an asymmetric ramp-and-stripe image surrounded by a
// zero margin wide enough for the shifts used below.
func pattern(rows, cols, margin int) grid.Array {
	a := grid.Zeros(rows, cols)
	for y := margin; y < rows-margin; y++ {
		for x := margin; x < cols-margin; x++ {
			a.Set(y, x, float64((y*7+x*13)%11)/10+0.1*float64(y))
		}
	}
	return a
}

// sequence returns a rows x cols array of distinct, irregular values.
func sequence(rows, cols int) grid.Array {
	a := grid.Zeros(rows, cols)
	for i := range a.Data {
		a.Data[i] = math.Sin(float64(i)*1.7) + float64(i%5)
	}
	return a
}

func TestNormalize(t *testing.T) {
	in := sequence(6, 9)
	orig := in.Clone()

	out, err := Normalize(in)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	mean, std := stat.PopMeanStdDev(out.Data, nil)
	if math.Abs(mean) > 1e-12 {
		t.Errorf("Expected mean 0, got %g", mean)
	}
	if math.Abs(std-1) > 1e-12 {
		t.Errorf("Expected std 1, got %g", std)
	}
	for i := range in.Data {
		if in.Data[i] != orig.Data[i] {
			t.Fatalf("Normalize modified its input at %d", i)
		}
	}
}

func TestNormalizeDegenerate(t *testing.T) {
	flat := grid.Zeros(4, 4)
	for i := range flat.Data {
		flat.Data[i] = 3
	}
	_, err := Normalize(flat)
	if !errors.Is(err, ErrDegenerateInput) {
		t.Fatalf("Expected ErrDegenerateInput, got %v", err)
	}
	var de *DegenerateInputError
	if !errors.As(err, &de) || de.Std != 0 {
		t.Errorf("Expected *DegenerateInputError with std 0, got %v", err)
	}

	if _, err := Normalize(grid.Zeros(0, 3)); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch for empty input, got %v", err)
	}
}

func TestSurfaceShape(t *testing.T) {
	for _, size := range [][2]int{{1, 1}, {3, 5}, {8, 2}, {21, 21}} {
		a := sequence(size[0], size[1])
		for _, m := range []Method{MethodDirect, MethodFFT} {
			s, err := CrossCorrelate(a, a, m)
			if err != nil {
				t.Fatalf("CrossCorrelate(%v, %v) failed: %v", size, m, err)
			}
			if s.Rows() != 2*size[0]-1 || s.Cols() != 2*size[1]-1 {
				t.Errorf("%v %v: expected shape (%d, %d), got %v", size, m, 2*size[0]-1, 2*size[1]-1, s.Shape)
			}
		}
	}
}

// TestDirectMatchesDefinition checks the sliding sum against a literal
// evaluation of surface[k,l] = sum ref[i,j] * img[i-k+y0, j-l+x0].
func TestDirectMatchesDefinition(t *testing.T) {
	ref := sequence(4, 6)
	img := pattern(4, 6, 0)
	s, err := CrossCorrelateDirect(ref, img)
	if err != nil {
		t.Fatalf("CrossCorrelateDirect failed: %v", err)
	}

	y0, x0 := ZeroLag(4, 6)
	for k := 0; k < s.Rows(); k++ {
		for l := 0; l < s.Cols(); l++ {
			var want float64
			for i := 0; i < 4; i++ {
				for j := 0; j < 6; j++ {
					m, n := i-k+y0, j-l+x0
					if m < 0 || m >= 4 || n < 0 || n >= 6 {
						continue
					}
					want += ref.At(i, j) * img.At(m, n)
				}
			}
			if math.Abs(s.At(k, l)-want) > 1e-12 {
				t.Errorf("surface[%d,%d]: expected %f, got %f", k, l, want, s.At(k, l))
			}
		}
	}
}

func TestFFTMatchesDirect(t *testing.T) {
	for _, size := range [][2]int{{7, 9}, {13, 5}, {16, 16}} {
		ref := sequence(size[0], size[1])
		img := pattern(size[0], size[1], 1)

		d, err := CrossCorrelateDirect(ref, img)
		if err != nil {
			t.Fatalf("direct failed: %v", err)
		}
		f, err := CrossCorrelateFFT(ref, img)
		if err != nil {
			t.Fatalf("fft failed: %v", err)
		}
		for i := range d.Data {
			if math.Abs(d.Data[i]-f.Data[i]) > 1e-9*(1+math.Abs(d.Data[i])) {
				t.Fatalf("%v: sample %d differs: direct %f, fft %f", size, i, d.Data[i], f.Data[i])
			}
		}
	}
}

func TestCrossCorrelateShapeErrors(t *testing.T) {
	a := grid.Zeros(3, 3)
	cube := grid.Zeros(2, 3, 3)
	if _, err := CrossCorrelate(a, cube, MethodAuto); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch for 3-d input, got %v", err)
	}
	if _, err := CrossCorrelate(a, grid.Zeros(3, 4), MethodAuto); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch for differing shapes, got %v", err)
	}
}

func TestArgMax2DFirstInRowMajorOrder(t *testing.T) {
	s := testutil.FromRows([][]float64{
		{0, 3, 1},
		{3, 2, 3},
	})
	row, col, err := ArgMax2D(s)
	if err != nil {
		t.Fatalf("ArgMax2D failed: %v", err)
	}
	if row != 0 || col != 1 {
		t.Errorf("Expected (0, 1), got (%d, %d)", row, col)
	}

	// A checkerboard has a maximum on every other pixel
	board := grid.Zeros(6, 6)
	for y := 0; y < 6; y++ {
		for x := 0; x < 6; x++ {
			if (x+y)%2 == 1 {
				board.Set(y, x, 1)
			}
		}
	}
	for i := 0; i < 5; i++ {
		row, col, _ := ArgMax2D(board)
		if row != 0 || col != 1 {
			t.Fatalf("call %d: expected (0, 1), got (%d, %d)", i, row, col)
		}
	}

	if _, _, err := ArgMax2D(grid.Zeros(4)); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch for 1-d input, got %v", err)
	}
}

func TestArgMax2DCheckerboardCorrelationIsDeterministic(t *testing.T) {
	board := grid.Zeros(8, 8)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			board.Set(y, x, float64((x+y)%2))
		}
	}
	s, err := NewEstimator().Surface(board, board)
	if err != nil {
		t.Fatalf("Surface failed: %v", err)
	}

	// Brute-force first maximum in row-major order
	best, wantRow, wantCol := math.Inf(-1), 0, 0
	for y := 0; y < s.Rows(); y++ {
		for x := 0; x < s.Cols(); x++ {
			if s.At(y, x) > best {
				best, wantRow, wantCol = s.At(y, x), y, x
			}
		}
	}
	for i := 0; i < 3; i++ {
		row, col, _ := ArgMax2D(s)
		if row != wantRow || col != wantCol {
			t.Fatalf("call %d: expected (%d, %d), got (%d, %d)", i, wantRow, wantCol, row, col)
		}
	}

	d, err := MeasureShiftInteger(board, board)
	if err != nil {
		t.Fatalf("MeasureShiftInteger failed: %v", err)
	}
	if d.DY != 0 || d.DX != 0 {
		t.Errorf("Expected zero shift for self-correlation, got %v", d)
	}
}

func TestMeasureShiftIntegerSelf(t *testing.T) {
	images := []grid.Array{
		sequence(5, 7),
		pattern(24, 20, 5),
		blob(15, 7, 7, 2),
	}
	for i, a := range images {
		d, err := MeasureShiftInteger(a, a)
		if err != nil {
			t.Fatalf("image %d: %v", i, err)
		}
		if d.DY != 0 || d.DX != 0 {
			t.Errorf("image %d: expected (0, 0), got %v", i, d)
		}
	}
}

func TestMeasureShiftIntegerRecoversShifts(t *testing.T) {
	a := pattern(24, 20, 5)
	for k := -4; k <= 4; k++ {
		for l := -4; l <= 4; l++ {
			b := testutil.ShiftInteger(a, k, l)
			d, err := MeasureShiftInteger(a, b)
			if err != nil {
				t.Fatalf("shift (%d, %d): %v", k, l, err)
			}
			if d.DY != float64(k) || d.DX != float64(l) {
				t.Errorf("Expected (%d, %d), got %v", k, l, d)
			}
		}
	}
}

func TestMeasureShiftIntegerHotPixel(t *testing.T) {
	a := grid.Zeros(21, 21)
	b := grid.Zeros(21, 21)
	a.Set(10, 10, 1)
	b.Set(10, 13, 1)

	d, err := MeasureShiftInteger(a, b)
	if err != nil {
		t.Fatalf("MeasureShiftInteger failed: %v", err)
	}
	if d.DY != 0.0 || d.DX != 3.0 {
		t.Errorf("Expected (0.0, 3.0), got %v", d)
	}
}

// TestSignConvention pins the direction of both axes with an asymmetric
// move: the feature goes down three rows and left two columns.
func TestSignConvention(t *testing.T) {
	a := grid.Zeros(12, 12)
	b := grid.Zeros(12, 12)
	a.Set(5, 6, 1)
	b.Set(8, 4, 1)

	for _, m := range []Method{MethodDirect, MethodFFT} {
		e := NewEstimator()
		e.Method = m
		d, err := e.Integer(a, b)
		if err != nil {
			t.Fatalf("%v: %v", m, err)
		}
		if d.DY != 3 || d.DX != -2 {
			t.Errorf("%v: expected (3, -2), got %v", m, d)
		}
		// new(y+dy, x+dx) == ref(y, x) at the feature
		if b.At(5+int(d.DY), 6+int(d.DX)) != a.At(5, 6) {
			t.Errorf("%v: displacement %v does not carry new onto ref", m, d)
		}
	}
}

func TestMeasureShiftIntegerShapeMismatch(t *testing.T) {
	a := grid.Zeros(4, 4)
	a.Set(1, 1, 1)

	_, err := MeasureShiftInteger(grid.Zeros(2, 4, 4), a)
	var se *ShapeMismatchError
	if !errors.As(err, &se) {
		t.Fatalf("Expected *ShapeMismatchError for 3-d input, got %v", err)
	}
	if se.Reason != ReasonDimension {
		t.Errorf("Expected reason %q, got %q", ReasonDimension, se.Reason)
	}

	_, err = MeasureShiftInteger(a, grid.Zeros(4, 5))
	if !errors.As(err, &se) {
		t.Fatalf("Expected *ShapeMismatchError for differing shapes, got %v", err)
	}
	if se.Reason != ReasonSize {
		t.Errorf("Expected reason %q, got %q", ReasonSize, se.Reason)
	}
}

func TestMeasureShiftDegenerateNamesImage(t *testing.T) {
	a := grid.Zeros(5, 5)
	b := blob(5, 2, 2, 1)

	_, err := MeasureShiftInteger(a, b)
	var de *DegenerateInputError
	if !errors.As(err, &de) {
		t.Fatalf("Expected *DegenerateInputError, got %v", err)
	}
	if de.Image != "reference" {
		t.Errorf("Expected reference image to be blamed, got %q", de.Image)
	}

	_, err = MeasureShiftGaussian(b, a)
	if !errors.As(err, &de) || de.Image != "new" {
		t.Errorf("Expected new image to be blamed, got %v", err)
	}
}

func TestMeasureShiftGaussianIntegerOffset(t *testing.T) {
	a := blob(17, 8, 8, 2)
	b := blob(17, 11, 6, 2)

	g, err := MeasureShiftGaussian(a, b)
	if err != nil {
		t.Fatalf("MeasureShiftGaussian failed: %v", err)
	}
	if math.Abs(g.Displacement.DY-3) > 1 || math.Abs(g.Displacement.DX+2) > 1 {
		t.Errorf("Expected center within 1 px of (3, -2), got %v", g.Displacement)
	}
	if g.Peak.DY != 3 || g.Peak.DX != -2 {
		t.Errorf("Expected integer seed (3, -2), got %v", g.Peak)
	}
	if !g.Fitted.SameShape(g.Surface) {
		t.Errorf("Fitted surface shape %v differs from correlation surface %v", g.Fitted.Shape, g.Surface.Shape)
	}
}

func TestMeasureShiftGaussianSubPixel(t *testing.T) {
	a := blob(15, 7, 7, 2)
	b := testutil.ShiftBilinear(a, 2.5, -1.5)

	g, err := MeasureShiftGaussian(a, b)
	if err != nil {
		t.Fatalf("MeasureShiftGaussian failed: %v", err)
	}
	if math.Abs(g.Displacement.DY-2.5) > 0.3 || math.Abs(g.Displacement.DX+1.5) > 0.3 {
		t.Errorf("Expected within 0.3 px of (2.5, -1.5), got %v", g.Displacement)
	}
	if math.Abs(g.Peak.DY-2.5) > 1 || math.Abs(g.Peak.DX+1.5) > 1 {
		t.Errorf("Expected integer seed near (2.5, -1.5), got %v", g.Peak)
	}
	if g.Iterations <= 0 {
		t.Errorf("Expected a positive iteration count, got %d", g.Iterations)
	}

	// The model center and the displacement share one zero-lag offset
	y0, x0 := ZeroLag(15, 15)
	if g.Model.YMean-float64(y0) != g.Displacement.DY || g.Model.XMean-float64(x0) != g.Displacement.DX {
		t.Errorf("Displacement %v inconsistent with model %v", g.Displacement, g.Model)
	}
}

func TestMeasureShiftGaussianConvergenceError(t *testing.T) {
	a := blob(15, 7, 7, 2)
	b := testutil.ShiftBilinear(a, 2.5, -1.5)

	e := NewEstimator()
	e.Fit = fitting.Options{MaxIterations: 2, Tolerance: 1e-7}
	g, err := e.Gaussian(a, b)
	if !errors.Is(err, ErrFitConvergence) {
		t.Fatalf("Expected ErrFitConvergence, got %v", err)
	}
	if !errors.Is(err, fitting.ErrNoConvergence) {
		t.Errorf("Expected the solver error to be wrapped, got %v", err)
	}
	var fe *FitConvergenceError
	if !errors.As(err, &fe) {
		t.Fatalf("Expected *FitConvergenceError, got %T", err)
	}
	if fe.Peak != g.Peak || fe.Iterations != 2 {
		t.Errorf("Unexpected error fields: peak %v, iterations %d", fe.Peak, fe.Iterations)
	}
}

func TestMeasureShiftGaussianShapeMismatch(t *testing.T) {
	_, err := MeasureShiftGaussian(grid.Zeros(3, 3, 3), grid.Zeros(3, 3, 3))
	var se *ShapeMismatchError
	if !errors.As(err, &se) || se.Reason != ReasonDimension {
		t.Errorf("Expected dimension mismatch, got %v", err)
	}
	_, err = MeasureShiftGaussian(blob(5, 2, 2, 1), blob(6, 2, 2, 1))
	if !errors.As(err, &se) || se.Reason != ReasonSize {
		t.Errorf("Expected size mismatch, got %v", err)
	}
}

func TestParseMethod(t *testing.T) {
	cases := []struct {
		in   string
		want Method
		ok   bool
	}{
		{"", MethodAuto, true},
		{"auto", MethodAuto, true},
		{"direct", MethodDirect, true},
		{"fft", MethodFFT, true},
		{"wavelet", MethodAuto, false},
	}
	for _, c := range cases {
		got, err := ParseMethod(c.in)
		if (err == nil) != c.ok || got != c.want {
			t.Errorf("ParseMethod(%q) = %v, %v", c.in, got, err)
		}
	}
}
