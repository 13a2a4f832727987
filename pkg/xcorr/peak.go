package xcorr

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"orionjets/pkg/grid"
)

// ArgMax2D returns the (row, col) of the largest sample of a 2-D surface.
// Ties go to the first maximum in row-major order; NaN samples are skipped.
func ArgMax2D(s grid.Array) (row, col int, err error) {
	if s.NDim() != 2 {
		return 0, 0, &ShapeMismatchError{Op: "xcorr.ArgMax2D", Reason: ReasonDimension, Ref: s.Shape, New: s.Shape}
	}
	if s.Len() == 0 {
		return 0, 0, &ShapeMismatchError{Op: "xcorr.ArgMax2D", Reason: ReasonEmpty, Ref: s.Shape, New: s.Shape}
	}
	idx := floats.MaxIdx(s.Data)
	return idx / s.Cols(), idx % s.Cols(), nil
}

// Displacement is the offset that carries the second image onto the first:
// new(y+DY, x+DX) ≈ ref(y, x).
type Displacement struct {
	DY float64 `yaml:"dy"`
	DX float64 `yaml:"dx"`
}

func (d Displacement) String() string {
	return fmt.Sprintf("(dy=%g, dx=%g)", d.DY, d.DX)
}

// ZeroLag returns the surface index at which two rows x cols images overlap
// exactly, with no offset.
func ZeroLag(rows, cols int) (y0, x0 int) {
	return rows - 1, cols - 1
}

// LagToDisplacement converts a (possibly fractional) surface position into
// a Displacement for rows x cols inputs.
//
// The estimators build their surface with the reference image as the
// sliding kernel, CrossCorrelate(img, ref), so the offset of the peak from
// zero lag reads directly in the new(y+DY, x+DX) ≈ ref(y, x) convention.
func LagToDisplacement(row, col float64, rows, cols int) Displacement {
	y0, x0 := ZeroLag(rows, cols)
	return Displacement{DY: row - float64(y0), DX: col - float64(x0)}
}
