// Package model provides the statistical models fitted by mlefit: their
// parameter configuration and the log-density of observed data.
package model

import (
	"fmt"

	"github.com/cwbudde/mlefit/internal/opt"
)

// Model is a statistical model with a parameter configuration.
type Model interface {
	opt.Density

	// Config returns the model's parameter configuration.
	Config() *Config
}

// Constraint describes the auxiliary measurement constraining a parameter.
type Constraint string

const (
	Unconstrained        Constraint = "unconstrained"
	ConstrainedByNormal  Constraint = "constrained_by_normal"
	ConstrainedByPoisson Constraint = "constrained_by_poisson"
)

// Parameter is one entry of the model's ordered parameter list.
type Parameter struct {
	// Name is unique within the model, e.g. "mu" or "uncorr_bkguncrt[1]".
	Name string `json:"name"`
	// Set is the parameter set the parameter belongs to, e.g. "uncorr_bkguncrt".
	Set string `json:"set"`
	// Modifier is the modifier type that introduced the parameter.
	Modifier   string     `json:"modifier"`
	Constraint Constraint `json:"constraint"`

	Init   float64   `json:"init"`
	Bounds opt.Bound `json:"bounds"`
	Fixed  bool      `json:"fixed"`
}

// Config is the parameter schema of a model. A Config is never mutated after
// the model is built; the Suggested* accessors return fresh slices.
type Config struct {
	parameters []Parameter
	poiIndex   int // -1 when the model has no POI
	nbins      int
	auxdata    []float64
	samples    []string
	channel    string
}

// NPars returns the number of model parameters.
func (c *Config) NPars() int {
	return len(c.parameters)
}

// NBins returns the number of main-measurement bins.
func (c *Config) NBins() int {
	return c.nbins
}

// Parameters returns a copy of the ordered parameter list.
func (c *Config) Parameters() []Parameter {
	out := make([]Parameter, len(c.parameters))
	copy(out, c.parameters)
	return out
}

// ParNames returns the parameter names in order.
func (c *Config) ParNames() []string {
	names := make([]string, len(c.parameters))
	for i, p := range c.parameters {
		names[i] = p.Name
	}
	return names
}

// ParIndex returns the index of the named parameter.
func (c *Config) ParIndex(name string) (int, bool) {
	for i, p := range c.parameters {
		if p.Name == name {
			return i, true
		}
	}
	return 0, false
}

// POIIndex returns the index of the parameter of interest, if the model has one.
func (c *Config) POIIndex() (int, bool) {
	if c.poiIndex < 0 {
		return 0, false
	}
	return c.poiIndex, true
}

// POIName returns the name of the parameter of interest, or "" without one.
func (c *Config) POIName() string {
	if c.poiIndex < 0 {
		return ""
	}
	return c.parameters[c.poiIndex].Name
}

// SuggestedInit returns the default initial parameter values.
func (c *Config) SuggestedInit() []float64 {
	out := make([]float64, len(c.parameters))
	for i, p := range c.parameters {
		out[i] = p.Init
	}
	return out
}

// SuggestedBounds returns the default parameter bounds.
func (c *Config) SuggestedBounds() []opt.Bound {
	out := make([]opt.Bound, len(c.parameters))
	for i, p := range c.parameters {
		out[i] = p.Bounds
	}
	return out
}

// SuggestedFixed returns the default fixed-parameter mask.
func (c *Config) SuggestedFixed() []bool {
	out := make([]bool, len(c.parameters))
	for i, p := range c.parameters {
		out[i] = p.Fixed
	}
	return out
}

// AuxData returns the auxiliary data of the constraint terms, which follows
// the observations in the data vector.
func (c *Config) AuxData() []float64 {
	out := make([]float64, len(c.auxdata))
	copy(out, c.auxdata)
	return out
}

// Samples returns the sample names of the model.
func (c *Config) Samples() []string {
	out := make([]string, len(c.samples))
	copy(out, c.samples)
	return out
}

// Channel returns the name of the model's single channel.
func (c *Config) Channel() string {
	return c.channel
}

// Data concatenates observations and the model's auxiliary data into the
// data vector expected by LogDensity.
func (c *Config) Data(observations []float64) ([]float64, error) {
	if len(observations) != c.nbins {
		return nil, &ShapeError{What: "observations", Want: c.nbins, Got: len(observations)}
	}
	data := make([]float64, 0, c.nbins+len(c.auxdata))
	data = append(data, observations...)
	return append(data, c.auxdata...), nil
}

// withPOI returns a copy of c using the named parameter as POI; an empty name
// removes the POI.
func (c *Config) withPOI(name string) (*Config, error) {
	out := *c
	if name == "" {
		out.poiIndex = -1
		return &out, nil
	}
	idx, ok := c.ParIndex(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownParameter, name)
	}
	out.poiIndex = idx
	return &out, nil
}
