package xcorr

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"orionjets/pkg/grid"
)

// correlateFFT computes the same surface as correlateDirect through the
// correlation theorem: IFFT(FFT(ref) * conj(FFT(img))) on arrays zero-padded
// far enough that the circular result holds every linear lag unaliased.
func correlateFFT(ref, img grid.Array) grid.Array {
	rows, cols := ref.Rows(), ref.Cols()
	sr, sc := SurfaceShape(rows, cols)
	pr, pc := nextPowerOf2(sr), nextPowerOf2(sc)

	rowFFT := fourier.NewCmplxFFT(pc)
	colFFT := fourier.NewCmplxFFT(pr)

	a := fft2D(pad(ref, pr, pc), pr, pc, rowFFT, colFFT, false)
	b := fft2D(pad(img, pr, pc), pr, pc, rowFFT, colFFT, false)
	for i := range a {
		a[i] *= cmplx.Conj(b[i])
	}
	circ := fft2D(a, pr, pc, rowFFT, colFFT, true)

	// circ[u, v] is the lag (u, v) modulo the padded size; surface index
	// k sits at lag k - y0.
	y0, x0 := ZeroLag(rows, cols)
	scale := 1 / float64(pr*pc)
	out := grid.Zeros(sr, sc)
	for k := 0; k < sr; k++ {
		u := (k - y0 + pr) % pr
		for l := 0; l < sc; l++ {
			v := (l - x0 + pc) % pc
			out.Data[k*sc+l] = real(circ[u*pc+v]) * scale
		}
	}
	return out
}

func pad(a grid.Array, pr, pc int) []complex128 {
	rows, cols := a.Rows(), a.Cols()
	out := make([]complex128, pr*pc)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			out[y*pc+x] = complex(a.Data[y*cols+x], 0)
		}
	}
	return out
}

// fft2D transforms a row-major rows x cols complex array in place, rows
// first and then columns. inverse selects the unnormalized backward
// transform.
func fft2D(data []complex128, rows, cols int, rowFFT, colFFT *fourier.CmplxFFT, inverse bool) []complex128 {
	// Row-wise transform
	for i := 0; i < rows; i++ {
		row := data[i*cols : (i+1)*cols]
		if inverse {
			rowFFT.Sequence(row, row)
		} else {
			rowFFT.Coefficients(row, row)
		}
	}

	// Column-wise transform
	col := make([]complex128, rows)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			col[i] = data[i*cols+j]
		}
		if inverse {
			colFFT.Sequence(col, col)
		} else {
			colFFT.Coefficients(col, col)
		}
		for i := 0; i < rows; i++ {
			data[i*cols+j] = col[i]
		}
	}

	return data
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
