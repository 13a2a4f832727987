package xcorr

import (
	"errors"

	"orionjets/pkg/fitting"
	"orionjets/pkg/grid"
)

// Estimator holds the settings shared by both shift estimators.
// Zero fields take the NewEstimator defaults.
type Estimator struct {
	// Method selects direct or FFT correlation.
	Method Method

	// FFTThreshold is the (rows*cols)^2 work above which MethodAuto
	// switches to the FFT.
	FFTThreshold int

	// Fit bounds the Levenberg-Marquardt iteration.
	Fit fitting.Options

	// InitialAmplitude and InitialStddev seed the Gaussian fit; the center
	// is always seeded at the integer peak.
	InitialAmplitude float64
	InitialStddev    float64
}

// NewEstimator returns an Estimator with the default settings.
func NewEstimator() Estimator {
	return Estimator{
		Method:           MethodAuto,
		FFTThreshold:     DefaultFFTThreshold,
		Fit:              fitting.DefaultOptions(),
		InitialAmplitude: 1.0,
		InitialStddev:    2.0,
	}
}

// MeasureShiftInteger measures the whole-pixel displacement between ref and
// img with the default Estimator.
func MeasureShiftInteger(ref, img grid.Array) (Displacement, error) {
	return NewEstimator().Integer(ref, img)
}

// MeasureShiftGaussian measures the sub-pixel displacement between ref and
// img with the default Estimator.
func MeasureShiftGaussian(ref, img grid.Array) (GaussianShift, error) {
	return NewEstimator().Gaussian(ref, img)
}

// Surface returns the correlation surface the estimators search, with the
// reference as the sliding kernel over the new image.
func (e Estimator) Surface(ref, img grid.Array) (grid.Array, error) {
	return e.surface("xcorr.Surface", ref, img)
}

func (e Estimator) surface(op string, ref, img grid.Array) (grid.Array, error) {
	if err := checkPair(op, ref, img); err != nil {
		return grid.Array{}, err
	}

	nref, err := Normalize(ref)
	if err != nil {
		return grid.Array{}, annotate(err, op, "reference")
	}
	nimg, err := Normalize(img)
	if err != nil {
		return grid.Array{}, annotate(err, op, "new")
	}

	threshold := e.FFTThreshold
	if threshold <= 0 {
		threshold = DefaultFFTThreshold
	}
	return crossCorrelate(nimg, nref, e.Method, threshold)
}

func annotate(err error, op, image string) error {
	var de *DegenerateInputError
	if errors.As(err, &de) {
		return &DegenerateInputError{Op: op, Image: image, Std: de.Std}
	}
	return err
}

// Integer returns the displacement of the correlation peak from zero lag.
// The result is always integer-valued and bounded by the image size.
//
// It fails with a *ShapeMismatchError when either input is not 2-D
// (ReasonDimension) or the shapes differ (ReasonSize), and with a
// *DegenerateInputError when an input has zero variance.
func (e Estimator) Integer(ref, img grid.Array) (Displacement, error) {
	d, _, err := e.IntegerSurface(ref, img)
	return d, err
}

// IntegerSurface is Integer that also returns the correlation surface it
// searched.
func (e Estimator) IntegerSurface(ref, img grid.Array) (Displacement, grid.Array, error) {
	const op = "xcorr.MeasureShiftInteger"

	s, err := e.surface(op, ref, img)
	if err != nil {
		return Displacement{}, grid.Array{}, err
	}
	row, col, err := ArgMax2D(s)
	if err != nil {
		return Displacement{}, grid.Array{}, err
	}
	return LagToDisplacement(float64(row), float64(col), img.Rows(), img.Cols()), s, nil
}
