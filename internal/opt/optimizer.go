package opt

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Density is the part of a statistical model the optimizer needs: the log of
// the probability density of data given parameters.
type Density interface {
	LogDensity(pars, data []float64) (float64, error)
}

// Objective is the function minimized by an Optimizer. It receives the full
// parameter vector (fixed entries included), the data and the model.
type Objective func(pars, data []float64, m Density) (float64, error)

// Bound is a closed interval [Low, High] for one parameter.
type Bound struct {
	Low  float64 `json:"low" yaml:"low" toml:"low"`
	High float64 `json:"high" yaml:"high" toml:"high"`
}

// Contains reports whether v lies inside the bound. NaN is never contained.
func (b Bound) Contains(v float64) bool {
	return b.Low <= v && v <= b.High
}

func (b Bound) String() string {
	return fmt.Sprintf("[%g, %g]", b.Low, b.High)
}

// FixedValue pins the parameter at Index to Value for a whole minimization.
type FixedValue struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
}

// Result is what an Optimizer returns.
type Result struct {
	// Pars is the best-fit parameter vector, fixed entries included.
	Pars []float64 `json:"pars"`

	// FittedVal is the objective evaluated at Pars. It is only set when the
	// caller passed ReturnFittedVal(true).
	FittedVal *float64 `json:"fittedVal,omitempty"`

	// Evaluations counts objective calls made during the minimization.
	Evaluations int `json:"evaluations"`

	// Status is the optimizer-specific termination reason.
	Status string `json:"status,omitempty"`
}

// Optimizer minimizes an objective over the free parameters of a model.
//
// Implementations must:
//   - keep every parameter listed in fixed at exactly its given value,
//   - keep every other parameter inside its bound,
//   - return failures (non-convergence, objective errors, cancellation) as errors.
type Optimizer interface {
	Minimize(ctx context.Context, objective Objective, data []float64, m Density,
		init []float64, bounds []Bound, fixed []FixedValue, opts ...Option) (*Result, error)
}

// Name identifies an optimizer implementation.
type Name string

const (
	NameGonum  Name = "gonum"
	NameMayfly Name = "mayfly"
)

var (
	// ErrUnknownOptimizer is returned when the name does not match a known optimizer.
	ErrUnknownOptimizer = errors.New("unknown optimizer")
	// ErrNoConvergence is returned when the optimizer stops before converging.
	ErrNoConvergence = errors.New("optimizer did not converge")
	// ErrUnboundedParameter is returned by optimizers that need finite bounds.
	ErrUnboundedParameter = errors.New("parameter bound is not finite")
	// ErrDimensionMismatch is returned when init, bounds and fixed indices disagree.
	ErrDimensionMismatch = errors.New("parameter dimension mismatch")
)

// NormalizeName maps user input to a canonical optimizer name.
func NormalizeName(name string) Name {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gonum", "local", "nelder-mead", "neldermead":
		return NameGonum
	case "mayfly", "global":
		return NameMayfly
	default:
		return Name(name)
	}
}

// SupportedNames returns the optimizers understood by New.
func SupportedNames() []Name {
	return []Name{NameGonum, NameMayfly}
}

// New constructs the named optimizer with its default configuration.
// The gonum optimizer accepts an optional method suffix, e.g. "gonum:lbfgs".
func New(name string) (Optimizer, error) {
	base, method, _ := strings.Cut(name, ":")
	switch NormalizeName(base) {
	case NameGonum:
		if method == "" {
			method = base
		}
		m, err := ParseMethod(method)
		if err != nil {
			return nil, err
		}
		return NewGonum(m), nil
	case NameMayfly:
		return NewMayfly(DefaultMayflyIterations, DefaultMayflyPopulation, 0), nil
	default:
		return nil, fmt.Errorf("%w: %s (supported: %v)", ErrUnknownOptimizer, name, SupportedNames())
	}
}

// Label returns a stable description of o, such as "gonum:nelder-mead".
func Label(o Optimizer) string {
	switch o := o.(type) {
	case *GonumAdapter:
		return string(NameGonum) + ":" + o.Method().String()
	case *MayflyAdapter:
		return string(NameMayfly)
	default:
		return fmt.Sprintf("%T", o)
	}
}

// finite reports whether both ends of b are finite.
func (b Bound) finite() bool {
	return !math.IsInf(b.Low, 0) && !math.IsInf(b.High, 0)
}
