package xcorr

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"orionjets/pkg/grid"
)

// Normalize returns a copy of a scaled to zero mean and unit population
// standard deviation, computed over every sample.
//
// A constant image (or one whose statistics are not finite, as with NaN
// blanking) cannot be normalized and yields a *DegenerateInputError rather
// than a division by zero. An empty image yields a *ShapeMismatchError.
func Normalize(a grid.Array) (grid.Array, error) {
	if a.Len() == 0 {
		return grid.Array{}, &ShapeMismatchError{Op: "xcorr.Normalize", Reason: ReasonEmpty, Ref: a.Shape, New: a.Shape}
	}

	mean, std := stat.PopMeanStdDev(a.Data, nil)
	if std == 0 || math.IsNaN(std) || math.IsInf(std, 0) {
		return grid.Array{}, &DegenerateInputError{Op: "xcorr.Normalize", Std: std}
	}

	out := a.Clone()
	for i, v := range out.Data {
		out.Data[i] = (v - mean) / std
	}
	return out, nil
}
