package model

import (
	"fmt"
	"math"

	"github.com/cwbudde/mlefit/internal/opt"
	"github.com/cwbudde/mlefit/internal/tensor"
)

// Kind names one of the built-in single-channel models.
type Kind string

const (
	KindUncorrelatedBackground Kind = "uncorrelated_background"
	KindCorrelatedBackground   Kind = "correlated_background"
)

const (
	poiName         = "mu"
	uncorrSetName   = "uncorr_bkguncrt"
	corrSetName     = "correlated_bkg_uncertainty"
	channelName     = "singlechannel"
	signalSample    = "signal"
	backgroundName  = "background"
	shapesysBoundLo = 1e-10
)

var (
	poiBounds      = opt.Bound{Low: 0, High: 10}
	shapesysBounds = opt.Bound{Low: shapesysBoundLo, High: 10}
	histosysBounds = opt.Bound{Low: -5, High: 5}
)

// Option configures a built-in model.
type Option func(*options)

type options struct {
	backend     tensor.Backend
	poi         string
	explicitPOI bool
	names       map[string]string
}

// WithBackend evaluates the model with the given tensor backend.
func WithBackend(b tensor.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithPOI designates the named parameter as parameter of interest.
func WithPOI(name string) Option {
	return func(o *options) {
		o.poi = name
		o.explicitPOI = true
	}
}

// WithoutPOI builds the model without a parameter of interest.
func WithoutPOI() Option {
	return func(o *options) {
		o.poi = ""
		o.explicitPOI = true
	}
}

// WithNames renames parameter sets, samples and the channel of the model.
// Keys are built-in names; the parameter order does not change.
func WithNames(names map[string]string) Option {
	return func(o *options) { o.names = names }
}

// configure applies the renames and selects the POI. Without WithPOI the
// default POI follows its rename.
func (o options) configure(cfg *Config) (*Config, error) {
	cfg, err := renameConfig(cfg, o.names)
	if err != nil {
		return nil, err
	}
	poi := o.poi
	if !o.explicitPOI {
		if name, ok := o.names[poiName]; ok {
			poi = name
		}
	}
	return cfg.withPOI(poi)
}

func resolveOptions(opts []Option) options {
	o := options{backend: tensor.Gonum{}, poi: poiName}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// SimpleModel is a single-channel counting model with a signal sample scaled
// by the POI "mu" and a background sample carrying one systematic.
type SimpleModel struct {
	kind    Kind
	config  *Config
	backend tensor.Backend

	signal []float64
	bkg    []float64

	// shapesys: per-bin Poisson constraint scale factors
	tau []float64

	// histosys: up/down templates
	up   []float64
	down []float64
}

var _ Model = (*SimpleModel)(nil)

// UncorrelatedBackground builds a model whose background has an independent
// per-bin uncertainty, each bin constrained by a Poisson auxiliary
// measurement with scale tau_i = (bkg_i / bkgUncertainty_i)^2.
func UncorrelatedBackground(signal, bkg, bkgUncertainty []float64, opts ...Option) (*SimpleModel, error) {
	if err := sameLength("bkg", signal, bkg); err != nil {
		return nil, err
	}
	if err := sameLength("bkg_uncertainty", signal, bkgUncertainty); err != nil {
		return nil, err
	}
	o := resolveOptions(opts)
	b := o.backend

	n := len(signal)
	tau := make([]float64, n)
	for i := range tau {
		if bkgUncertainty[i] <= 0 {
			return nil, &ValidationError{Field: fmt.Sprintf("bkg_uncertainty[%d]", i), Reason: "must be positive"}
		}
		r := bkg[i] / bkgUncertainty[i]
		tau[i] = r * r
	}

	params := []Parameter{{
		Name:       poiName,
		Set:        poiName,
		Modifier:   "normfactor",
		Constraint: Unconstrained,
		Init:       1,
		Bounds:     poiBounds,
	}}
	for i := 0; i < n; i++ {
		params = append(params, Parameter{
			Name:       fmt.Sprintf("%s[%d]", uncorrSetName, i),
			Set:        uncorrSetName,
			Modifier:   "shapesys",
			Constraint: ConstrainedByPoisson,
			Init:       1,
			Bounds:     shapesysBounds,
		})
	}

	cfg := &Config{
		parameters: params,
		nbins:      n,
		auxdata:    b.AsTensor(tau),
		samples:    []string{backgroundName, signalSample},
		channel:    channelName,
	}
	cfg, err := o.configure(cfg)
	if err != nil {
		return nil, err
	}

	return &SimpleModel{
		kind:    KindUncorrelatedBackground,
		config:  cfg,
		backend: b,
		signal:  b.AsTensor(signal),
		bkg:     b.AsTensor(bkg),
		tau:     tau,
	}, nil
}

// CorrelatedBackground builds a model whose background shape moves between
// the bkgDown and bkgUp templates with a single nuisance parameter, constrained
// by a unit Normal auxiliary measurement.
func CorrelatedBackground(signal, bkg, bkgUp, bkgDown []float64, opts ...Option) (*SimpleModel, error) {
	if err := sameLength("bkg", signal, bkg); err != nil {
		return nil, err
	}
	if err := sameLength("bkg_up", signal, bkgUp); err != nil {
		return nil, err
	}
	if err := sameLength("bkg_down", signal, bkgDown); err != nil {
		return nil, err
	}
	o := resolveOptions(opts)
	b := o.backend

	// Parameters are ordered by name.
	params := []Parameter{
		{
			Name:       corrSetName,
			Set:        corrSetName,
			Modifier:   "histosys",
			Constraint: ConstrainedByNormal,
			Init:       0,
			Bounds:     histosysBounds,
		},
		{
			Name:       poiName,
			Set:        poiName,
			Modifier:   "normfactor",
			Constraint: Unconstrained,
			Init:       1,
			Bounds:     poiBounds,
		},
	}

	cfg := &Config{
		parameters: params,
		nbins:      len(signal),
		auxdata:    []float64{0},
		samples:    []string{backgroundName, signalSample},
		channel:    channelName,
	}
	cfg, err := o.configure(cfg)
	if err != nil {
		return nil, err
	}

	return &SimpleModel{
		kind:    KindCorrelatedBackground,
		config:  cfg,
		backend: b,
		signal:  b.AsTensor(signal),
		bkg:     b.AsTensor(bkg),
		up:      b.AsTensor(bkgUp),
		down:    b.AsTensor(bkgDown),
	}, nil
}

// Kind returns the model type.
func (m *SimpleModel) Kind() Kind {
	return m.kind
}

// Config implements Model.
func (m *SimpleModel) Config() *Config {
	return m.config
}

// Backend returns the tensor backend the model is evaluated with.
func (m *SimpleModel) Backend() tensor.Backend {
	return m.backend
}

// ExpectedData returns the expected main-measurement yields at pars, followed
// by the expected auxiliary data when withAux is set.
func (m *SimpleModel) ExpectedData(pars []float64, withAux bool) ([]float64, error) {
	if err := m.checkPars(pars); err != nil {
		return nil, err
	}
	out := m.expectedMain(pars)
	if withAux {
		out = append(out, m.expectedAux(pars)...)
	}
	return out, nil
}

// LogDensity implements opt.Density: the log-likelihood of the main
// measurement plus the log of the constraint terms.
func (m *SimpleModel) LogDensity(pars, data []float64) (float64, error) {
	if err := m.checkPars(pars); err != nil {
		return 0, err
	}
	want := m.config.nbins + len(m.config.auxdata)
	if len(data) != want {
		return 0, &ShapeError{What: "data", Want: want, Got: len(data)}
	}
	b := m.backend
	obs, aux := data[:m.config.nbins], data[m.config.nbins:]

	main := b.Sum(b.PoissonLogPDF(obs, m.expectedMain(pars)))

	var constraint float64
	switch m.kind {
	case KindUncorrelatedBackground:
		constraint = b.Sum(b.PoissonLogPDF(aux, m.expectedAux(pars)))
	case KindCorrelatedBackground:
		constraint = b.Sum(b.NormalLogPDF(aux, m.expectedAux(pars), []float64{1}))
	}
	return main + constraint, nil
}

func (m *SimpleModel) expectedMain(pars []float64) []float64 {
	b := m.backend
	switch m.kind {
	case KindUncorrelatedBackground:
		mu, gammas := pars[0], pars[1:]
		return b.Add(b.Scale(mu, m.signal), b.Multiply(gammas, m.bkg))
	default:
		alpha, mu := pars[0], pars[1]
		return b.Add(b.Scale(mu, m.signal), m.histosys(alpha))
	}
}

func (m *SimpleModel) expectedAux(pars []float64) []float64 {
	b := m.backend
	switch m.kind {
	case KindUncorrelatedBackground:
		return b.Multiply(pars[1:], m.tau)
	default:
		return []float64{pars[0]}
	}
}

// histosys interpolates the background linearly between nominal and the
// up (alpha > 0) or down (alpha < 0) template.
func (m *SimpleModel) histosys(alpha float64) []float64 {
	b := m.backend
	var delta []float64
	if alpha >= 0 {
		delta = b.Add(m.up, b.Scale(-1, m.bkg))
	} else {
		delta = b.Add(m.bkg, b.Scale(-1, m.down))
	}
	return b.Add(m.bkg, b.Scale(alpha, delta))
}

func (m *SimpleModel) checkPars(pars []float64) error {
	if len(pars) != m.config.NPars() {
		return &ShapeError{What: "parameters", Want: m.config.NPars(), Got: len(pars)}
	}
	for i, v := range pars {
		if math.IsNaN(v) {
			return &ValidationError{Field: fmt.Sprintf("parameters[%d]", i), Reason: "is NaN"}
		}
	}
	return nil
}

func sameLength(name string, signal, other []float64) error {
	if len(signal) == 0 {
		return &ValidationError{Field: "signal", Reason: "cannot be empty"}
	}
	if len(other) != len(signal) {
		return &ShapeError{What: name, Want: len(signal), Got: len(other)}
	}
	return nil
}
