package opt

import (
	"context"
	"fmt"
	"math"
)

// problem maps the free parameters of a minimization onto a dense search
// vector and evaluates the objective on the full parameter vector.
type problem struct {
	ctx       context.Context
	objective Objective
	data      []float64
	model     Density

	bounds []Bound
	base   []float64 // full vector, fixed entries already pinned
	free   []int     // indices of parameters the optimizer may move

	evals int
	err   error // first error seen during evaluation
}

func newProblem(ctx context.Context, objective Objective, data []float64, m Density,
	init []float64, bounds []Bound, fixed []FixedValue) (*problem, error) {
	if len(init) != len(bounds) {
		return nil, fmt.Errorf("%w: %d initial values, %d bounds", ErrDimensionMismatch, len(init), len(bounds))
	}

	base := make([]float64, len(init))
	copy(base, init)

	pinned := make([]bool, len(init))
	for _, fv := range fixed {
		if fv.Index < 0 || fv.Index >= len(init) {
			return nil, fmt.Errorf("%w: fixed index %d out of range [0, %d)", ErrDimensionMismatch, fv.Index, len(init))
		}
		base[fv.Index] = fv.Value
		pinned[fv.Index] = true
	}

	free := make([]int, 0, len(init))
	for i, p := range pinned {
		if !p {
			free = append(free, i)
		}
	}

	return &problem{
		ctx:       ctx,
		objective: objective,
		data:      data,
		model:     m,
		bounds:    bounds,
		base:      base,
		free:      free,
	}, nil
}

// dim is the number of free parameters.
func (p *problem) dim() int {
	return len(p.free)
}

// expand writes the free values into a copy of the base vector.
func (p *problem) expand(x []float64) []float64 {
	full := make([]float64, len(p.base))
	copy(full, p.base)
	for k, i := range p.free {
		full[i] = x[k]
	}
	return full
}

// eval evaluates the objective on a full vector. Errors and non-finite values
// map to +Inf so the search moves away from them; the first error is kept.
func (p *problem) eval(full []float64) float64 {
	if p.err != nil {
		return math.Inf(1)
	}
	if err := p.ctx.Err(); err != nil {
		p.err = err
		return math.Inf(1)
	}
	p.evals++
	v, err := p.objective(full, p.data, p.model)
	if err != nil {
		p.err = err
		return math.Inf(1)
	}
	if math.IsNaN(v) {
		return math.Inf(1)
	}
	return v
}

// result builds the optimizer result for the full vector pars.
func (p *problem) result(pars []float64, s Settings, status string) (*Result, error) {
	res := &Result{
		Pars:   pars,
		Status: status,
	}
	if s.ReturnFittedVal {
		v, err := p.objective(pars, p.data, p.model)
		if err != nil {
			return nil, err
		}
		res.FittedVal = &v
	}
	res.Evaluations = p.evals
	return res, nil
}

// transform maps an unbounded internal coordinate to a bounded parameter and
// back, following the MINUIT conventions for doubly, singly and un-bounded
// parameters.
type transform struct {
	bound Bound
}

func (t transform) toExternal(u float64) float64 {
	lo, hi := t.bound.Low, t.bound.High
	loInf, hiInf := math.IsInf(lo, -1), math.IsInf(hi, 1)
	var x float64
	switch {
	case !loInf && !hiInf:
		x = lo + (hi-lo)*(math.Sin(u)+1)/2
	case !loInf:
		x = lo - 1 + math.Sqrt(u*u+1)
	case !hiInf:
		x = hi + 1 - math.Sqrt(u*u+1)
	default:
		return u
	}
	return math.Min(math.Max(x, lo), hi)
}

// boundaryOffset is the smallest distance, in internal coordinates, between a
// starting point and a bound. The transforms are flat at the bounds, so a start
// exactly there would have a zero gradient.
const boundaryOffset = 1e-3

// toInternal maps x to the internal coordinate. Values on a bound map just
// inside it, as MINUIT does.
func (t transform) toInternal(x float64) float64 {
	lo, hi := t.bound.Low, t.bound.High
	loInf, hiInf := math.IsInf(lo, -1), math.IsInf(hi, 1)
	switch {
	case !loInf && !hiInf:
		if hi == lo {
			return 0
		}
		r := 2*(x-lo)/(hi-lo) - 1
		u := math.Asin(math.Min(math.Max(r, -1), 1))
		return math.Min(math.Max(u, -math.Pi/2+boundaryOffset), math.Pi/2-boundaryOffset)
	case !loInf:
		d := x - lo + 1
		return math.Max(math.Sqrt(math.Max(d*d-1, 0)), boundaryOffset)
	case !hiInf:
		d := hi - x + 1
		return math.Max(math.Sqrt(math.Max(d*d-1, 0)), boundaryOffset)
	default:
		return x
	}
}

func (p *problem) transforms() []transform {
	ts := make([]transform, len(p.free))
	for k, i := range p.free {
		ts[k] = transform{bound: p.bounds[i]}
	}
	return ts
}
