package model

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownModel is returned when a spec names a model type that does not exist.
	ErrUnknownModel = errors.New("unknown model type")
	// ErrUnknownParameter is returned when a parameter name is not part of the model.
	ErrUnknownParameter = errors.New("unknown parameter")
	// ErrUnsupportedFormat is returned for spec files with an unknown extension.
	ErrUnsupportedFormat = errors.New("unsupported spec format")
	// ErrUnknownName is returned when a rename refers to a name the model does not have.
	ErrUnknownName = errors.New("unknown name")
	// ErrUnsupportedDigest is returned for an unknown digest algorithm.
	ErrUnsupportedDigest = errors.New("unsupported digest algorithm")
)

// ShapeError reports a vector whose length does not match the model.
type ShapeError struct {
	What string
	Want int
	Got  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: expected length %d, got %d", e.What, e.Want, e.Got)
}

// ValidationError represents an invalid model spec.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
