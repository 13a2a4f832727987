package xcorr

import (
	"fmt"

	"orionjets/pkg/grid"
)

// Method selects how the correlation surface is computed.
type Method int

const (
	// MethodAuto picks direct summation for small inputs and FFT otherwise.
	MethodAuto Method = iota
	// MethodDirect is the sliding-window sum, O(n^4) for n x n inputs.
	MethodDirect
	// MethodFFT multiplies zero-padded spectra, O(n^2 log n).
	MethodFFT
)

// DefaultFFTThreshold is the direct-method work, (rows*cols)^2, above which
// MethodAuto switches to the FFT. 32x32 cutouts still go direct.
const DefaultFFTThreshold = 1 << 20

// ParseMethod maps "auto", "direct" and "fft" to a Method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "", "auto":
		return MethodAuto, nil
	case "direct":
		return MethodDirect, nil
	case "fft":
		return MethodFFT, nil
	}
	return MethodAuto, fmt.Errorf("xcorr: unknown correlation method %q (must be auto, direct or fft)", s)
}

func (m Method) String() string {
	switch m {
	case MethodDirect:
		return "direct"
	case MethodFFT:
		return "fft"
	default:
		return "auto"
	}
}

// CrossCorrelate computes the full 2-D cross-correlation of ref and img
// with zero fill outside both arrays:
//
//	surface[k, l] = sum_{i,j} ref[i, j] * img[i-k+y0, j-l+x0]
//
// where (y0, x0) = ZeroLag(rows, cols). The surface has shape
// (2*rows-1, 2*cols-1). img acts as the sliding kernel.
func CrossCorrelate(ref, img grid.Array, m Method) (grid.Array, error) {
	return crossCorrelate(ref, img, m, DefaultFFTThreshold)
}

func crossCorrelate(ref, img grid.Array, m Method, threshold int) (grid.Array, error) {
	if err := checkPair("xcorr.CrossCorrelate", ref, img); err != nil {
		return grid.Array{}, err
	}

	if m == MethodAuto {
		n := ref.Len()
		m = MethodDirect
		if n*n > threshold {
			m = MethodFFT
		}
	}
	if m == MethodFFT {
		return correlateFFT(ref, img), nil
	}
	return correlateDirect(ref, img), nil
}

// CrossCorrelateDirect is CrossCorrelate with MethodDirect.
func CrossCorrelateDirect(ref, img grid.Array) (grid.Array, error) {
	return CrossCorrelate(ref, img, MethodDirect)
}

// CrossCorrelateFFT is CrossCorrelate with MethodFFT.
func CrossCorrelateFFT(ref, img grid.Array) (grid.Array, error) {
	return CrossCorrelate(ref, img, MethodFFT)
}

// SurfaceShape returns the shape of the full correlation surface for
// rows x cols inputs.
func SurfaceShape(rows, cols int) (int, int) {
	return 2*rows - 1, 2*cols - 1
}

func correlateDirect(ref, img grid.Array) grid.Array {
	rows, cols := ref.Rows(), ref.Cols()
	y0, x0 := ZeroLag(rows, cols)
	sr, sc := SurfaceShape(rows, cols)
	out := grid.Zeros(sr, sc)

	for k := 0; k < sr; k++ {
		// Rows i of ref that meet a row of img at this vertical lag
		iLo, iHi := max(0, k-y0), min(rows, k-y0+rows)
		for l := 0; l < sc; l++ {
			jLo, jHi := max(0, l-x0), min(cols, l-x0+cols)
			var sum float64
			for i := iLo; i < iHi; i++ {
				ri := ref.Data[i*cols:]
				ni := img.Data[(i-k+y0)*cols:]
				for j := jLo; j < jHi; j++ {
					sum += ri[j] * ni[j-l+x0]
				}
			}
			out.Data[k*sc+l] = sum
		}
	}
	return out
}
