// Package testutil builds synthetic images for tests.
package testutil

import (
	"math"

	"orionjets/pkg/grid"
)

// FromRows builds a 2-D array from equal-length rows. It panics on ragged
// input.
func FromRows(rows [][]float64) grid.Array {
	cols := 0
	if len(rows) > 0 {
		cols = len(rows[0])
	}
	data := make([]float64, 0, len(rows)*cols)
	for _, r := range rows {
		if len(r) != cols {
			panic("testutil: ragged rows")
		}
		data = append(data, r...)
	}
	a, err := grid.New(data, len(rows), cols)
	if err != nil {
		panic(err)
	}
	return a
}

// ShiftInteger returns a copy of a moved by (dy, dx) whole pixels:
// out(y+dy, x+dx) = a(y, x). Samples moved in from outside are zero.
func ShiftInteger(a grid.Array, dy, dx int) grid.Array {
	out := grid.Zeros(a.Shape...)
	rows, cols := a.Rows(), a.Cols()
	for y := 0; y < rows; y++ {
		sy := y - dy
		if sy < 0 || sy >= rows {
			continue
		}
		for x := 0; x < cols; x++ {
			sx := x - dx
			if sx < 0 || sx >= cols {
				continue
			}
			out.Data[y*cols+x] = a.Data[sy*cols+sx]
		}
	}
	return out
}

// ShiftBilinear returns a copy of a moved by a fractional (dy, dx) with
// bilinear interpolation: out(y, x) = a(y-dy, x-dx). Samples outside a
// count as zero.
func ShiftBilinear(a grid.Array, dy, dx float64) grid.Array {
	out := grid.Zeros(a.Shape...)
	rows, cols := a.Rows(), a.Cols()
	at := func(y, x int) float64 {
		if y < 0 || y >= rows || x < 0 || x >= cols {
			return 0
		}
		return a.Data[y*cols+x]
	}
	for y := 0; y < rows; y++ {
		sy := float64(y) - dy
		iy := int(math.Floor(sy))
		fy := sy - float64(iy)
		for x := 0; x < cols; x++ {
			sx := float64(x) - dx
			ix := int(math.Floor(sx))
			fx := sx - float64(ix)
			out.Data[y*cols+x] = (1-fy)*(1-fx)*at(iy, ix) +
				(1-fy)*fx*at(iy, ix+1) +
				fy*(1-fx)*at(iy+1, ix) +
				fy*fx*at(iy+1, ix+1)
		}
	}
	return out
}
