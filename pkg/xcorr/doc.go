// Package xcorr measures the displacement between two images of the same
// field by two-dimensional cross-correlation.
//
// Both estimators follow one pipeline: each image is normalized to zero mean
// and unit variance, the full (zero-padded) correlation surface is computed,
// and its maximum is located. MeasureShiftInteger reports the offset of that
// maximum from zero lag; MeasureShiftGaussian refines it by fitting a 2-D
// Gaussian to the surface.
//
// # Displacement convention
//
// A Displacement (DY, DX) satisfies
//
//	new(y+DY, x+DX) ≈ ref(y, x)
//
// so positive values mean the second image has to be moved toward higher
// row/column indices to line up with the first. Rows are y, columns are x.
// ZeroLag and LagToDisplacement hold the convention; both estimators go
// through them.
//
// # Usage
//
//	d, err := xcorr.MeasureShiftInteger(cutout1, cutout2)
//	g, err := xcorr.MeasureShiftGaussian(cutout1, cutout2)
//	if errors.Is(err, xcorr.ErrFitConvergence) {
//		// fall back to the integer estimate
//	}
//
// Estimator carries the tunable settings (correlation method, fit budget).
// It holds no mutable state and may be shared between goroutines.
package xcorr
