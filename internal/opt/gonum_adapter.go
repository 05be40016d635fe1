package opt

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
)

// Method selects the gonum minimization algorithm.
type Method int

const (
	MethodNelderMead Method = iota
	MethodLBFGS
	MethodBFGS
	MethodGradientDescent
)

func (m Method) String() string {
	switch m {
	case MethodNelderMead:
		return "nelder-mead"
	case MethodLBFGS:
		return "lbfgs"
	case MethodBFGS:
		return "bfgs"
	case MethodGradientDescent:
		return "gradient"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

// ParseMethod maps a method name to a Method.
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "gonum", "local", "nelder-mead", "neldermead":
		return MethodNelderMead, nil
	case "lbfgs", "l-bfgs":
		return MethodLBFGS, nil
	case "bfgs":
		return MethodBFGS, nil
	case "gradient", "gradient-descent":
		return MethodGradientDescent, nil
	default:
		return 0, fmt.Errorf("%w: gonum method %q", ErrUnknownOptimizer, name)
	}
}

func (m Method) gonum() optimize.Method {
	switch m {
	case MethodLBFGS:
		return &optimize.LBFGS{Linesearcher: &optimize.MoreThuente{}, GradStopThreshold: gradientThreshold}
	case MethodBFGS:
		return &optimize.BFGS{Linesearcher: &optimize.MoreThuente{}, GradStopThreshold: gradientThreshold}
	case MethodGradientDescent:
		return &optimize.GradientDescent{Linesearcher: &optimize.Backtracking{}, GradStopThreshold: gradientThreshold}
	default:
		return &optimize.NelderMead{}
	}
}

func (m Method) needsGradient() bool {
	return m != MethodNelderMead
}

const (
	// Finite-difference gradients are not accurate enough for gonum's
	// default threshold of 1e-12.
	gradientThreshold = 1e-7

	// stationaryThreshold accepts the best point of a line search that
	// stalled on finite-difference noise.
	stationaryThreshold = 1e-4

	gradientStep  = 1e-6
	curvatureStep = 1e-3

	// maxRestarts bounds how often a stalled gradient method is restarted
	// from its best point.
	maxRestarts = 5

	statusStationary = "Stationary"
)

// GonumAdapter minimizes with gonum's optimize package. Bounds are enforced by
// a change of variables, so the gonum methods see an unconstrained problem
// over the free parameters only.
type GonumAdapter struct {
	method Method
}

// NewGonum creates a gonum-backed optimizer using the given method.
func NewGonum(method Method) *GonumAdapter {
	return &GonumAdapter{method: method}
}

// Method returns the configured algorithm.
func (g *GonumAdapter) Method() Method {
	return g.method
}

// Minimize implements Optimizer.
//
// The gradient methods search in internal coordinates rescaled by the
// curvature at the start. When their line search stalls, the best point is
// accepted if its gradient vanishes and is otherwise used as a fresh start.
func (g *GonumAdapter) Minimize(ctx context.Context, objective Objective, data []float64, m Density,
	init []float64, bounds []Bound, fixed []FixedValue, opts ...Option) (*Result, error) {
	s := Apply(opts...)

	p, err := newProblem(ctx, objective, data, m, init, bounds, fixed)
	if err != nil {
		return nil, err
	}

	// Nothing left to vary: the starting point is the optimum.
	if p.dim() == 0 {
		full := p.expand(nil)
		p.eval(full)
		if p.err != nil {
			return nil, p.err
		}
		return p.result(full, s, optimize.Success.String())
	}

	ts := p.transforms()
	toExternal := func(u []float64) []float64 {
		x := make([]float64, len(u))
		for k, t := range ts {
			x[k] = t.toExternal(u[k])
		}
		return p.expand(x)
	}

	u0 := make([]float64, p.dim())
	for k, i := range p.free {
		u0[k] = ts[k].toInternal(p.base[i])
	}

	scale := make([]float64, p.dim())
	for k := range scale {
		scale[k] = 1
	}
	if g.method.needsGradient() {
		scale = curvatureScale(func(u []float64) float64 { return p.eval(toExternal(u)) }, u0)
		if p.err != nil {
			return nil, p.err
		}
	}

	external := func(v []float64) []float64 {
		u := make([]float64, len(v))
		for k := range v {
			u[k] = scale[k] * v[k]
		}
		return toExternal(u)
	}
	f := func(v []float64) float64 {
		return p.eval(external(v))
	}
	gradient := func(grad, v []float64) {
		fd.Gradient(grad, f, v, &fd.Settings{Formula: fd.Central, Step: gradientStep})
	}

	problem := optimize.Problem{Func: f}
	if g.method.needsGradient() {
		problem.Grad = gradient
	}

	settings := &optimize.Settings{
		MajorIterations: s.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   s.Tolerance,
			Iterations: 100,
		},
	}
	if g.method.needsGradient() {
		settings.GradientThreshold = gradientThreshold
	}

	v := make([]float64, p.dim())
	for k := range v {
		v[k] = u0[k] / scale[k]
	}

	fail := func(err error) (*Result, error) {
		if p.err != nil {
			return nil, p.err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrNoConvergence, g.method, err)
	}

	slog.Debug("Starting gonum minimization", "method", g.method.String(), "free", p.dim(), "fixed", len(fixed))

	var (
		res    *optimize.Result
		status string
		lastF  = math.Inf(1)
	)
	for attempt := 0; ; attempt++ {
		res, err = optimize.Minimize(problem, v, settings, g.method.gonum())
		if p.err != nil {
			return nil, p.err
		}
		if res == nil {
			return fail(err)
		}
		if err == nil {
			switch res.Status {
			case optimize.IterationLimit, optimize.FunctionEvaluationLimit,
				optimize.GradientEvaluationLimit, optimize.RuntimeLimit, optimize.Failure:
				return nil, fmt.Errorf("%w: %s stopped with status %s", ErrNoConvergence, g.method, res.Status)
			}
			status = res.Status.String()
			break
		}

		if !g.method.needsGradient() || math.IsInf(res.Location.F, 1) {
			return fail(err)
		}
		if stationary(gradient, res.Location.X) {
			status = statusStationary
			break
		}
		if attempt == maxRestarts || !(res.Location.F < lastF) {
			return fail(err)
		}

		slog.Debug("Restarting gonum minimization", "method", g.method.String(), "attempt", attempt+1, "f", res.Location.F, "reason", err)
		lastF = res.Location.F
		v = res.Location.X
	}

	best := external(res.Location.X)

	slog.Debug("Gonum minimization complete",
		"method", g.method.String(),
		"status", status,
		"f", res.Location.F,
		"evaluations", p.evals,
	)

	return p.result(best, s, status)
}

// stationary reports whether the gradient at v is below stationaryThreshold in
// every coordinate.
func stationary(gradient func(grad, v []float64), v []float64) bool {
	grad := make([]float64, len(v))
	gradient(grad, v)
	for _, g := range grad {
		if !(math.Abs(g) < stationaryThreshold) {
			return false
		}
	}
	return true
}

// curvatureScale returns per-coordinate factors that bring the diagonal
// curvature of f at u down to about one. Flatter directions keep a factor of
// one.
func curvatureScale(f func([]float64) float64, u []float64) []float64 {
	scale := make([]float64, len(u))
	x := make([]float64, len(u))
	for k := range u {
		copy(x, u)
		h := math.Abs(fd.Derivative(func(t float64) float64 {
			x[k] = t
			return f(x)
		}, u[k], &fd.Settings{Formula: fd.Central2nd, Step: curvatureStep}))

		scale[k] = 1
		if h > 1 && !math.IsInf(h, 1) {
			scale[k] = 1 / math.Sqrt(h)
		}
	}
	return scale
}
