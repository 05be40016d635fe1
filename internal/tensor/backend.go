// Package tensor defines the arithmetic contract the statistical models are
// evaluated with, and the implementations that satisfy it.
package tensor

import (
	"errors"
	"fmt"
	"strings"
)

// Backend performs the elementwise arithmetic and log-density primitives a
// model needs. Implementations must be safe for concurrent read-only use.
type Backend interface {
	// Name identifies the backend.
	Name() string

	// AsTensor returns a backend-owned copy of values.
	AsTensor(values []float64) []float64

	// Sum returns the sum of all elements of x.
	Sum(x []float64) float64

	// Add returns a + b elementwise.
	Add(a, b []float64) []float64

	// Multiply returns a * b elementwise.
	Multiply(a, b []float64) []float64

	// Scale returns c * x.
	Scale(c float64, x []float64) []float64

	// PoissonLogPDF returns the continuous Poisson log-density of each n given
	// its rate: n*ln(lambda) - lambda - lgamma(n+1).
	PoissonLogPDF(n, lambda []float64) []float64

	// NormalLogPDF returns the Normal log-density of each x given mean mu and
	// standard deviation sigma.
	NormalLogPDF(x, mu, sigma []float64) []float64
}

// Name identifies a backend implementation.
type Name string

const (
	NameGonum Name = "gonum"
)

// ErrUnknownBackend is returned when the name does not match a known backend.
var ErrUnknownBackend = errors.New("unknown tensor backend")

// NormalizeName maps arbitrary user input to a canonical backend identifier.
func NormalizeName(name string) Name {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gonum", "cpu", "numpy":
		return NameGonum
	default:
		return Name(name)
	}
}

// SupportedNames returns the list of backends understood by New.
func SupportedNames() []Name {
	return []Name{NameGonum}
}

// New constructs the requested backend.
func New(name string) (Backend, error) {
	switch NormalizeName(name) {
	case NameGonum:
		return Gonum{}, nil
	default:
		return nil, fmt.Errorf("%w: %s (supported: %v)", ErrUnknownBackend, name, SupportedNames())
	}
}

// ShapeError reports operands whose lengths disagree.
type ShapeError struct {
	Op   string
	Want int
	Got  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("tensor: %s: length mismatch (want %d, got %d)", e.Op, e.Want, e.Got)
}

func mustMatch(op string, a, b []float64) {
	if len(a) != len(b) {
		panic(&ShapeError{Op: op, Want: len(a), Got: len(b)})
	}
}
