package xcorr

import (
	"errors"
	"fmt"

	"orionjets/pkg/grid"
)

// Sentinel errors for broad classification with errors.Is.
var (
	ErrShapeMismatch   = errors.New("xcorr: shape mismatch")
	ErrDegenerateInput = errors.New("xcorr: degenerate input")
	ErrFitConvergence  = errors.New("xcorr: gaussian fit did not converge")
)

// MismatchReason tells the shape preconditions apart.
type MismatchReason string

const (
	// ReasonDimension: an input is not two-dimensional.
	ReasonDimension MismatchReason = "dimension"
	// ReasonSize: the inputs are 2-D but differ in shape.
	ReasonSize MismatchReason = "size"
	// ReasonEmpty: an input holds no samples.
	ReasonEmpty MismatchReason = "empty"
)

// ShapeMismatchError reports inputs that cannot be correlated.
type ShapeMismatchError struct {
	Op     string
	Reason MismatchReason
	Ref    []int
	New    []int
}

func (e *ShapeMismatchError) Error() string {
	switch e.Reason {
	case ReasonDimension:
		return fmt.Sprintf("%s: images must be two-dimensional (shapes %v and %v)", e.Op, e.Ref, e.New)
	case ReasonEmpty:
		return fmt.Sprintf("%s: images must not be empty (shapes %v and %v)", e.Op, e.Ref, e.New)
	default:
		return fmt.Sprintf("%s: images must be the same shape (%v vs %v)", e.Op, e.Ref, e.New)
	}
}

func (e *ShapeMismatchError) Is(target error) bool { return target == ErrShapeMismatch }

// DegenerateInputError reports an image with zero (or undefined) variance,
// which cannot be normalized.
type DegenerateInputError struct {
	Op    string
	Image string
	Std   float64
}

func (e *DegenerateInputError) Error() string {
	if e.Image != "" {
		return fmt.Sprintf("%s: %s image has no usable variance (std=%g)", e.Op, e.Image, e.Std)
	}
	return fmt.Sprintf("%s: image has no usable variance (std=%g)", e.Op, e.Std)
}

func (e *DegenerateInputError) Is(target error) bool { return target == ErrDegenerateInput }

// FitConvergenceError reports a Gaussian peak fit that stopped without
// converging. Peak holds the integer estimate the fit was seeded from.
type FitConvergenceError struct {
	Op         string
	Iterations int
	Peak       Displacement
	Err        error
}

func (e *FitConvergenceError) Error() string {
	return fmt.Sprintf("%s: gaussian fit did not converge after %d iterations: %v", e.Op, e.Iterations, e.Err)
}

func (e *FitConvergenceError) Unwrap() error { return e.Err }

func (e *FitConvergenceError) Is(target error) bool { return target == ErrFitConvergence }

func checkPair(op string, ref, img grid.Array) error {
	if ref.NDim() != 2 || img.NDim() != 2 {
		return &ShapeMismatchError{Op: op, Reason: ReasonDimension, Ref: ref.Shape, New: img.Shape}
	}
	if !ref.SameShape(img) {
		return &ShapeMismatchError{Op: op, Reason: ReasonSize, Ref: ref.Shape, New: img.Shape}
	}
	if ref.Len() == 0 {
		return &ShapeMismatchError{Op: op, Reason: ReasonEmpty, Ref: ref.Shape, New: img.Shape}
	}
	return nil
}
