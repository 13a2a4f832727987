// Package fitting fits a two-dimensional Gaussian peak model to a sampled
// surface by damped nonlinear least squares (Levenberg-Marquardt).
//
// A fit owns all of its working state; nothing is shared between calls, so
// fits for different regions may run concurrently.
package fitting

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"orionjets/pkg/grid"
)

// ErrNoConvergence is returned when the fit stops without meeting its
// convergence tolerance.
var ErrNoConvergence = errors.New("fitting: no convergence")

// Options controls the Levenberg-Marquardt iteration.
type Options struct {
	// MaxIterations caps the number of accepted and rejected steps together.
	MaxIterations int

	// Tolerance is the relative reduction of the sum of squares, or the
	// relative parameter step, below which the fit is converged.
	Tolerance float64

	// InitialDamping is the starting value of the damping factor lambda.
	InitialDamping float64
}

// DefaultOptions returns the solver settings used when none are given.
func DefaultOptions() Options {
	return Options{
		MaxIterations:  100,
		Tolerance:      1e-7,
		InitialDamping: 1e-3,
	}
}

const (
	minDamping = 1e-12
	maxDamping = 1e16
)

// Result is the outcome of a successful fit.
type Result struct {
	Model      Gaussian2D
	Iterations int
	// SumSquares is the residual sum of squares at Model.
	SumSquares float64
}

// StopError describes why a fit gave up. It wraps ErrNoConvergence.
type StopError struct {
	Reason     string
	Iterations int
	Last       Gaussian2D
}

func (e *StopError) Error() string {
	return fmt.Sprintf("fitting: %s after %d iterations", e.Reason, e.Iterations)
}

func (e *StopError) Unwrap() error { return ErrNoConvergence }

// FitGaussian2D fits a Gaussian2D to the 2-D surface data starting from
// init, using every sample of the grid with unit weight.
func FitGaussian2D(data grid.Array, init Gaussian2D, opts Options) (Result, error) {
	if data.NDim() != 2 || data.Len() < gaussianParams {
		return Result{}, fmt.Errorf("fitting: need a 2-d surface with at least %d samples, got shape %v", gaussianParams, data.Shape)
	}
	if !init.valid() {
		return Result{}, fmt.Errorf("fitting: invalid initial model %v", init)
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultOptions().MaxIterations
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultOptions().Tolerance
	}
	if opts.InitialDamping <= 0 {
		opts.InitialDamping = DefaultOptions().InitialDamping
	}

	s := newSolver(data)
	model := init
	cost := s.sumSquares(model)
	lambda := opts.InitialDamping

	iter := 0
	for iter < opts.MaxIterations {
		s.normalEquations(model)

		// Raise the damping until a step lowers the cost
		for {
			iter++
			step, ok := s.step(lambda)
			if ok {
				small := relativeStep(step, model.params(), opts.Tolerance) <= opts.Tolerance
				p := model.params()
				for i := range p {
					p[i] += step[i]
				}
				trial := gaussianFromParams(p)
				if trial.valid() {
					trialCost := s.sumSquares(trial)
					if trialCost < cost {
						converged := small || cost-trialCost <= opts.Tolerance*cost
						model, cost = trial, trialCost
						lambda = math.Max(lambda/10, minDamping)
						if converged {
							return Result{Model: model, Iterations: iter, SumSquares: cost}, nil
						}
						break
					}
				}
				// A negligible step that no longer lowers the cost means
				// the minimum has been reached to working precision.
				if small {
					return Result{Model: model, Iterations: iter, SumSquares: cost}, nil
				}
			}

			lambda *= 10
			if lambda > maxDamping {
				return Result{}, &StopError{Reason: "damping exceeded limit", Iterations: iter, Last: model}
			}
			if iter >= opts.MaxIterations {
				return Result{}, &StopError{Reason: "iteration limit reached", Iterations: iter, Last: model}
			}
		}
	}

	return Result{}, &StopError{Reason: "iteration limit reached", Iterations: iter, Last: model}
}

func relativeStep(step, p []float64, tol float64) float64 {
	var worst float64
	for i := range step {
		r := math.Abs(step[i]) / (math.Abs(p[i]) + tol)
		if r > worst {
			worst = r
		}
	}
	return worst
}

// solver holds the per-fit working storage.
type solver struct {
	data grid.Array
	jtj  *mat.SymDense
	jtr  *mat.VecDense
	grad []float64
}

func newSolver(data grid.Array) *solver {
	return &solver{
		data: data,
		jtj:  mat.NewSymDense(gaussianParams, nil),
		jtr:  mat.NewVecDense(gaussianParams, nil),
		grad: make([]float64, gaussianParams),
	}
}

func (s *solver) sumSquares(g Gaussian2D) float64 {
	rows, cols := s.data.Rows(), s.data.Cols()
	var sum float64
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			r := s.data.Data[y*cols+x] - g.Evaluate(float64(x), float64(y))
			sum += r * r
		}
	}
	return sum
}

// normalEquations accumulates J^T J and J^T r at g.
func (s *solver) normalEquations(g Gaussian2D) {
	var jtj [gaussianParams][gaussianParams]float64
	var jtr [gaussianParams]float64

	rows, cols := s.data.Rows(), s.data.Cols()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			f := g.gradient(float64(x), float64(y), s.grad)
			r := s.data.Data[y*cols+x] - f
			for i := 0; i < gaussianParams; i++ {
				jtr[i] += s.grad[i] * r
				for j := i; j < gaussianParams; j++ {
					jtj[i][j] += s.grad[i] * s.grad[j]
				}
			}
		}
	}

	for i := 0; i < gaussianParams; i++ {
		s.jtr.SetVec(i, jtr[i])
		for j := i; j < gaussianParams; j++ {
			s.jtj.SetSym(i, j, jtj[i][j])
		}
	}
}

// step solves (J^T J + lambda*diag(J^T J)) delta = J^T r.
func (s *solver) step(lambda float64) ([]float64, bool) {
	a := mat.NewSymDense(gaussianParams, nil)
	a.CopySym(s.jtj)
	for i := 0; i < gaussianParams; i++ {
		d := s.jtj.At(i, i)
		if d == 0 {
			d = minDamping
		}
		a.SetSym(i, i, d*(1+lambda))
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return nil, false
	}
	var delta mat.VecDense
	if err := chol.SolveVecTo(&delta, s.jtr); err != nil {
		return nil, false
	}

	out := make([]float64, gaussianParams)
	for i := range out {
		out[i] = delta.AtVec(i)
		if math.IsNaN(out[i]) || math.IsInf(out[i], 0) {
			return nil, false
		}
	}
	return out, true
}
