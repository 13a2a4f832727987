package fitting

import (
	"fmt"
	"math"

	"orionjets/pkg/grid"
)

// Gaussian2D is an axis-aligned two-dimensional Gaussian surface
//
//	f(x, y) = A * exp(-((x-x0)^2/(2*sx^2) + (y-y0)^2/(2*sy^2)))
//
// Coordinates are pixel indices of the grid it is fitted to: x is the
// column and y the row.
type Gaussian2D struct {
	Amplitude float64 `yaml:"amplitude"`
	XMean     float64 `yaml:"xMean"`
	YMean     float64 `yaml:"yMean"`
	XStddev   float64 `yaml:"xStddev"`
	YStddev   float64 `yaml:"yStddev"`
}

// Number of free parameters in a Gaussian2D.
const gaussianParams = 5

func (g Gaussian2D) params() []float64 {
	return []float64{g.Amplitude, g.XMean, g.YMean, g.XStddev, g.YStddev}
}

func gaussianFromParams(p []float64) Gaussian2D {
	return Gaussian2D{
		Amplitude: p[0],
		XMean:     p[1],
		YMean:     p[2],
		// The model only depends on the squared widths
		XStddev: math.Abs(p[3]),
		YStddev: math.Abs(p[4]),
	}
}

// Evaluate returns the model value at (x, y).
func (g Gaussian2D) Evaluate(x, y float64) float64 {
	u := (x - g.XMean) / g.XStddev
	v := (y - g.YMean) / g.YStddev
	return g.Amplitude * math.Exp(-0.5*(u*u+v*v))
}

// Surface evaluates the model on every pixel of a rows x cols grid.
func (g Gaussian2D) Surface(rows, cols int) grid.Array {
	out := grid.Zeros(rows, cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			out.Data[y*cols+x] = g.Evaluate(float64(x), float64(y))
		}
	}
	return out
}

// gradient writes the partial derivatives of the model at (x, y) with
// respect to (A, x0, y0, sx, sy) into d and returns the model value.
func (g Gaussian2D) gradient(x, y float64, d []float64) float64 {
	u := (x - g.XMean) / g.XStddev
	v := (y - g.YMean) / g.YStddev
	e := math.Exp(-0.5 * (u*u + v*v))
	f := g.Amplitude * e

	d[0] = e
	d[1] = f * u / g.XStddev
	d[2] = f * v / g.YStddev
	d[3] = f * u * u / g.XStddev
	d[4] = f * v * v / g.YStddev
	return f
}

func (g Gaussian2D) valid() bool {
	for _, p := range g.params() {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return false
		}
	}
	return g.XStddev > 0 && g.YStddev > 0
}

func (g Gaussian2D) String() string {
	return fmt.Sprintf("Gaussian2D(amplitude=%.4g, x_mean=%.4f, y_mean=%.4f, x_stddev=%.4f, y_stddev=%.4f)",
		g.Amplitude, g.XMean, g.YMean, g.XStddev, g.YStddev)
}
