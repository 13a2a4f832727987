// Package grid provides the dense real-valued arrays that flow through the
// proper-motion pipeline: full epoch images, region cutouts and
// correlation surfaces.
//
// An Array is stored as a flat slice in row-major order (last axis fastest),
// the same layout a FITS data unit uses on disk once its axes are reversed.
package grid

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrShape is returned when an Array is built from inconsistent dimensions.
var ErrShape = errors.New("grid: invalid shape")

// Array is an N-dimensional array of float64 samples.
//
// For a 2-D array Shape is (rows, cols), rows index y and cols index x.
type Array struct {
	Shape []int
	Data  []float64
}

// New wraps data in an Array of the given shape. The data slice is not copied.
func New(data []float64, shape ...int) (Array, error) {
	n, err := size(shape)
	if err != nil {
		return Array{}, err
	}
	if len(data) != n {
		return Array{}, fmt.Errorf("%w: %d samples for shape %v", ErrShape, len(data), shape)
	}
	return Array{Shape: append([]int(nil), shape...), Data: data}, nil
}

// Zeros returns a zero-filled array of the given shape.
// It panics on negative dimensions.
func Zeros(shape ...int) Array {
	n, err := size(shape)
	if err != nil {
		panic(err)
	}
	return Array{Shape: append([]int(nil), shape...), Data: make([]float64, n)}
}

func size(shape []int) (int, error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("%w: negative dimension in %v", ErrShape, shape)
		}
		n *= d
	}
	return n, nil
}

// NDim returns the number of axes.
func (a Array) NDim() int { return len(a.Shape) }

// Len returns the number of samples.
func (a Array) Len() int { return len(a.Data) }

// Rows returns the size of the first axis of a 2-D array.
func (a Array) Rows() int { return a.Shape[0] }

// Cols returns the size of the second axis of a 2-D array.
func (a Array) Cols() int { return a.Shape[1] }

// At returns the sample at (y, x) of a 2-D array.
func (a Array) At(y, x int) float64 { return a.Data[y*a.Shape[1]+x] }

// Set stores v at (y, x) of a 2-D array.
func (a Array) Set(y, x int, v float64) { a.Data[y*a.Shape[1]+x] = v }

// SameShape reports whether a and b have identical shapes.
func (a Array) SameShape(b Array) bool {
	if len(a.Shape) != len(b.Shape) {
		return false
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of a.
func (a Array) Clone() Array {
	return Array{
		Shape: append([]int(nil), a.Shape...),
		Data:  append([]float64(nil), a.Data...),
	}
}

// MinMax returns the smallest and largest finite samples.
// Both are NaN when the array holds no finite sample.
func (a Array) MinMax() (lo, hi float64) {
	lo, hi = math.NaN(), math.NaN()
	for _, v := range a.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if math.IsNaN(lo) || v < lo {
			lo = v
		}
		if math.IsNaN(hi) || v > hi {
			hi = v
		}
	}
	return lo, hi
}

// Sub returns a - b sample by sample. Shapes must match.
func Sub(a, b Array) (Array, error) {
	if !a.SameShape(b) {
		return Array{}, fmt.Errorf("%w: %v vs %v", ErrShape, a.Shape, b.Shape)
	}
	out := make([]float64, len(a.Data))
	floats.SubTo(out, a.Data, b.Data)
	return Array{Shape: append([]int(nil), a.Shape...), Data: out}, nil
}

func (a Array) String() string {
	return fmt.Sprintf("grid.Array%v", a.Shape)
}
