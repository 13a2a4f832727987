package xcorr

import (
	"errors"

	"orionjets/pkg/fitting"
	"orionjets/pkg/grid"
)

// GaussianShift is the outcome of a sub-pixel measurement.
type GaussianShift struct {
	// Model is the fitted peak in surface coordinates.
	Model fitting.Gaussian2D
	// Surface is the correlation surface the model was fitted to.
	Surface grid.Array
	// Fitted is Model evaluated on the surface grid, for residual inspection.
	Fitted grid.Array
	// Peak is the integer estimate that seeded the fit.
	Peak Displacement
	// Displacement is the model center converted with LagToDisplacement.
	Displacement Displacement
	Iterations   int
}

// Gaussian fits a 2-D Gaussian to the whole correlation surface, seeded at
// the integer peak, and converts its center to a sub-pixel displacement.
//
// Inputs are validated as in Integer. A fit that stops without converging
// returns a *FitConvergenceError carrying the integer estimate, so the
// caller can fall back to it.
func (e Estimator) Gaussian(ref, img grid.Array) (GaussianShift, error) {
	const op = "xcorr.MeasureShiftGaussian"

	s, err := e.surface(op, ref, img)
	if err != nil {
		return GaussianShift{}, err
	}
	row, col, err := ArgMax2D(s)
	if err != nil {
		return GaussianShift{}, err
	}
	rows, cols := img.Rows(), img.Cols()
	peak := LagToDisplacement(float64(row), float64(col), rows, cols)

	amp, sd := e.InitialAmplitude, e.InitialStddev
	if amp == 0 {
		amp = 1.0
	}
	if sd <= 0 {
		sd = 2.0
	}
	init := fitting.Gaussian2D{
		Amplitude: amp,
		XMean:     float64(col),
		YMean:     float64(row),
		XStddev:   sd,
		YStddev:   sd,
	}

	res, err := fitting.FitGaussian2D(s, init, e.Fit)
	if err != nil {
		fe := &FitConvergenceError{Op: op, Peak: peak, Err: err}
		var stop *fitting.StopError
		if errors.As(err, &stop) {
			fe.Iterations = stop.Iterations
		}
		return GaussianShift{Surface: s, Peak: peak}, fe
	}

	return GaussianShift{
		Model:        res.Model,
		Surface:      s,
		Fitted:       res.Model.Surface(s.Rows(), s.Cols()),
		Peak:         peak,
		Displacement: LagToDisplacement(res.Model.YMean, res.Model.XMean, rows, cols),
		Iterations:   res.Iterations,
	}, nil
}
