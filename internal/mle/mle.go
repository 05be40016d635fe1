// Package mle runs maximum likelihood fits of statistical models.
//
// A fit minimizes TwiceNLL, twice the negative log-likelihood, with a
// pluggable opt.Optimizer. Fit varies every non-fixed parameter; FixedPOIFit
// additionally pins the parameter of interest. The two share validation and
// fixed-parameter handling, so their likelihoods can be compared in a
// profile likelihood ratio.
//
// Fits hold no state between calls. A Fitter may be used from several
// goroutines as long as the optimizer and the models are safe for concurrent
// read-only use.
package mle

import (
	"context"

	"github.com/cwbudde/mlefit/internal/model"
	"github.com/cwbudde/mlefit/internal/opt"
)

// TwiceNLL returns -2 * log L(pars | data), the objective minimized by every fit.
func TwiceNLL(pars, data []float64, m opt.Density) (float64, error) {
	lp, err := m.LogDensity(pars, data)
	if err != nil {
		return 0, err
	}
	return -2 * lp, nil
}

var _ opt.Objective = TwiceNLL

// Fitter runs fits with one optimizer.
type Fitter struct {
	optimizer opt.Optimizer
}

// NewFitter creates a Fitter delegating minimization to o.
func NewFitter(o opt.Optimizer) *Fitter {
	return &Fitter{optimizer: o}
}

// Optimizer returns the optimizer the fitter delegates to.
func (f *Fitter) Optimizer() opt.Optimizer {
	return f.optimizer
}

// FitOption overrides a fit input or passes options to the optimizer.
type FitOption func(*request)

type request struct {
	init    []float64
	hasInit bool

	bounds    []opt.Bound
	hasBounds bool

	fixed    []bool
	hasFixed bool

	optimizer []opt.Option
}

// WithInitPars sets the starting values. Without it, the model's suggested
// values are used. A non-nil empty slice is an explicit override and must
// still match the number of model parameters.
func WithInitPars(init []float64) FitOption {
	return func(r *request) {
		r.init = init
		r.hasInit = init != nil
	}
}

// WithParBounds sets the parameter bounds. Without it, the model's suggested
// bounds are used.
func WithParBounds(bounds []opt.Bound) FitOption {
	return func(r *request) {
		r.bounds = bounds
		r.hasBounds = bounds != nil
	}
}

// WithFixedParams sets the fixed-parameter mask. Without it, the model's
// suggested mask is used.
func WithFixedParams(fixed []bool) FitOption {
	return func(r *request) {
		r.fixed = fixed
		r.hasFixed = fixed != nil
	}
}

// WithOptimizerOptions passes options through to the optimizer unchanged.
func WithOptimizerOptions(opts ...opt.Option) FitOption {
	return func(r *request) {
		r.optimizer = append(r.optimizer, opts...)
	}
}

func newRequest(opts []FitOption) *request {
	r := &request{}
	for _, o := range opts {
		if o != nil {
			o(r)
		}
	}
	return r
}

// resolve fills every input the caller left out from the model's suggested
// defaults. Each input is resolved on its own.
func (r *request) resolve(cfg *model.Config) (init []float64, bounds []opt.Bound, fixed []bool) {
	init, bounds, fixed = r.init, r.bounds, r.fixed
	if !r.hasInit {
		init = cfg.SuggestedInit()
	}
	if !r.hasBounds {
		bounds = cfg.SuggestedBounds()
	}
	if !r.hasFixed {
		fixed = cfg.SuggestedFixed()
	}
	return init, bounds, fixed
}

// Fit runs a maximum likelihood fit over every non-fixed parameter.
//
// Inputs not overridden by opts default to the model's suggested values.
// Initial values outside their bounds fail with *OutOfBoundsError before the
// optimizer is invoked. The optimizer's result and errors are returned as they
// are; request the objective value at the optimum with
// WithOptimizerOptions(opt.ReturnFittedVal(true)).
func (f *Fitter) Fit(ctx context.Context, data []float64, m model.Model, opts ...FitOption) (*opt.Result, error) {
	r := newRequest(opts)
	init, bounds, fixed := r.resolve(m.Config())
	return f.fit(ctx, data, m, init, bounds, fixed, r.optimizer)
}

func (f *Fitter) fit(ctx context.Context, data []float64, m model.Model,
	init []float64, bounds []opt.Bound, fixed []bool, optimizerOpts []opt.Option) (*opt.Result, error) {
	n := m.Config().NPars()
	if err := checkLength("init_pars", init, n); err != nil {
		return nil, err
	}
	if err := checkLength("par_bounds", bounds, n); err != nil {
		return nil, err
	}
	if err := checkLength("fixed_params", fixed, n); err != nil {
		return nil, err
	}

	if err := validateFitInputs(init, bounds); err != nil {
		return nil, err
	}

	fixedVals := fixedValues(init, fixed)

	return f.optimizer.Minimize(ctx, TwiceNLL, data, m, init, bounds, fixedVals, optimizerOpts...)
}

// FixedPOIFit runs a maximum likelihood fit with the parameter of interest
// held at poi. Models without POI fail with *UnspecifiedPOIError.
//
// The initial values and fixed mask (caller-supplied or suggested) are copied,
// the POI entry of each is overwritten, and the fit is delegated to Fit with
// the bounds passed through unchanged. The returned parameters carry exactly
// poi at the POI index.
func (f *Fitter) FixedPOIFit(ctx context.Context, poi float64, data []float64, m model.Model, opts ...FitOption) (*opt.Result, error) {
	cfg := m.Config()
	poiIndex, ok := cfg.POIIndex()
	if !ok {
		return nil, ErrUnspecifiedPOI
	}

	r := newRequest(opts)
	init, bounds, fixed := r.resolve(cfg)

	n := cfg.NPars()
	if err := checkLength("init_pars", init, n); err != nil {
		return nil, err
	}
	if err := checkLength("fixed_params", fixed, n); err != nil {
		return nil, err
	}

	init = append([]float64(nil), init...)
	fixed = append([]bool(nil), fixed...)
	init[poiIndex] = poi
	fixed[poiIndex] = true

	return f.fit(ctx, data, m, init, bounds, fixed, r.optimizer)
}

func checkLength[T any](field string, v []T, want int) error {
	if len(v) != want {
		return &LengthMismatchError{Field: field, Want: want, Got: len(v)}
	}
	return nil
}
