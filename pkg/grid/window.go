package grid

import "fmt"

// Window extracts the 2-D sub-array with rows [y0, y1) and columns [x0, x1).
// The window may extend past the edges of a; samples outside are zero.
func (a Array) Window(y0, y1, x0, x1 int) (Array, error) {
	if a.NDim() != 2 {
		return Array{}, fmt.Errorf("%w: window of %d-d array", ErrShape, a.NDim())
	}
	if y1 <= y0 || x1 <= x0 {
		return Array{}, fmt.Errorf("%w: empty window [%d:%d, %d:%d]", ErrShape, y0, y1, x0, x1)
	}

	out := Zeros(y1-y0, x1-x0)
	rows, cols := a.Rows(), a.Cols()
	for y := y0; y < y1; y++ {
		if y < 0 || y >= rows {
			continue
		}
		// Clip the column range once per row
		lo, hi := x0, x1
		if lo < 0 {
			lo = 0
		}
		if hi > cols {
			hi = cols
		}
		if lo >= hi {
			continue
		}
		copy(out.Data[(y-y0)*out.Cols()+(lo-x0):], a.Data[y*cols+lo:y*cols+hi])
	}
	return out, nil
}
