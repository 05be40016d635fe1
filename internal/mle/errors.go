package mle

import (
	"fmt"

	"github.com/cwbudde/mlefit/internal/opt"
)

// ErrOutOfBounds matches any *OutOfBoundsError with errors.Is.
var ErrOutOfBounds = &OutOfBoundsError{}

// OutOfBoundsError reports an initial parameter value outside its bound.
// Initial values are never clamped into their bounds.
type OutOfBoundsError struct {
	Index int
	Value float64
	Bound opt.Bound
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("fit initialization parameter (index: %d, value: %g) lies outside of its bounds: %s",
		e.Index, e.Value, e.Bound)
}

func (e *OutOfBoundsError) Is(target error) bool {
	_, ok := target.(*OutOfBoundsError)
	return ok
}

// ErrUnspecifiedPOI matches any *UnspecifiedPOIError with errors.Is.
var ErrUnspecifiedPOI = &UnspecifiedPOIError{}

// UnspecifiedPOIError is returned when a fixed-POI fit is requested on a
// model without parameter of interest.
type UnspecifiedPOIError struct{}

func (e *UnspecifiedPOIError) Error() string {
	return "no POI is defined; a POI is required to fit with a fixed POI"
}

func (e *UnspecifiedPOIError) Is(target error) bool {
	_, ok := target.(*UnspecifiedPOIError)
	return ok
}

// LengthMismatchError reports a fit input whose length does not match the
// number of model parameters.
type LengthMismatchError struct {
	Field string
	Want  int
	Got   int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %d entries (one per model parameter), got %d", e.Field, e.Want, e.Got)
}
