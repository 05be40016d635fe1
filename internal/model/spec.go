package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/cwbudde/mlefit/internal/opt"
	"github.com/cwbudde/mlefit/internal/tensor"
)

// Format is the encoding of a spec file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath infers the spec format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Spec declares a built-in model together with the observed data.
type Spec struct {
	Model          Kind      `json:"model" yaml:"model" toml:"model"`
	Signal         []float64 `json:"signal" yaml:"signal" toml:"signal"`
	Bkg            []float64 `json:"bkg" yaml:"bkg" toml:"bkg"`
	BkgUncertainty []float64 `json:"bkg_uncertainty,omitempty" yaml:"bkg_uncertainty,omitempty" toml:"bkg_uncertainty,omitempty"`
	BkgUp          []float64 `json:"bkg_up,omitempty" yaml:"bkg_up,omitempty" toml:"bkg_up,omitempty"`
	BkgDown        []float64 `json:"bkg_down,omitempty" yaml:"bkg_down,omitempty" toml:"bkg_down,omitempty"`
	Observations   []float64 `json:"observations" yaml:"observations" toml:"observations"`

	// POI names the parameter of interest. Unset means "mu"; an empty
	// string builds a model without POI.
	POI *string `json:"poi,omitempty" yaml:"poi,omitempty" toml:"poi,omitempty"`

	// Backend selects the tensor backend; empty means the default.
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty" toml:"backend,omitempty"`

	// Parameters override the suggested init, bounds and fixed flags.
	Parameters []ParameterSpec `json:"parameters,omitempty" yaml:"parameters,omitempty" toml:"parameters,omitempty"`

	// Rename maps built-in parameter set, sample and channel names to the
	// names used everywhere else in the spec.
	Rename map[string]string `json:"rename,omitempty" yaml:"rename,omitempty" toml:"rename,omitempty"`
}

// ParameterSpec overrides the defaults of one parameter set (or one single
// parameter, when Name matches a parameter name).
type ParameterSpec struct {
	Name   string      `json:"name" yaml:"name" toml:"name"`
	Inits  []float64   `json:"inits,omitempty" yaml:"inits,omitempty" toml:"inits,omitempty"`
	Bounds []opt.Bound `json:"bounds,omitempty" yaml:"bounds,omitempty" toml:"bounds,omitempty"`
	Fixed  *bool       `json:"fixed,omitempty" yaml:"fixed,omitempty" toml:"fixed,omitempty"`
}

// LoadSpec reads a spec file; the format follows the file extension.
func LoadSpec(path string) (*Spec, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec: %w", err)
	}
	return ParseSpec(data, format)
}

// ParseSpec decodes and validates a spec.
func ParseSpec(data []byte, format Format) (*Spec, error) {
	var spec Spec
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&spec); err != nil {
			return nil, fmt.Errorf("failed to decode JSON spec: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&spec); err != nil {
			return nil, fmt.Errorf("failed to decode YAML spec: %w", err)
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), &spec)
		if err != nil {
			return nil, fmt.Errorf("failed to decode TOML spec: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, &ValidationError{Field: undecoded[0].String(), Reason: "is not a known field"}
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate checks the spec for missing or inconsistent fields.
func (s *Spec) Validate() error {
	if len(s.Signal) == 0 {
		return &ValidationError{Field: "signal", Reason: "cannot be empty"}
	}
	if len(s.Observations) != len(s.Signal) {
		return &ValidationError{
			Field:  "observations",
			Reason: fmt.Sprintf("length mismatch: expected %d bins, got %d", len(s.Signal), len(s.Observations)),
		}
	}
	for i, v := range s.Observations {
		if v < 0 {
			return &ValidationError{Field: fmt.Sprintf("observations[%d]", i), Reason: "cannot be negative"}
		}
	}
	switch s.Model {
	case KindUncorrelatedBackground:
		if len(s.BkgUncertainty) == 0 {
			return &ValidationError{Field: "bkg_uncertainty", Reason: "is required for " + string(s.Model)}
		}
	case KindCorrelatedBackground:
		if len(s.BkgUp) == 0 || len(s.BkgDown) == 0 {
			return &ValidationError{Field: "bkg_up/bkg_down", Reason: "are required for " + string(s.Model)}
		}
	case "":
		return &ValidationError{Field: "model", Reason: "cannot be empty"}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownModel, s.Model)
	}
	for i, p := range s.Parameters {
		if p.Name == "" {
			return &ValidationError{Field: fmt.Sprintf("parameters[%d].name", i), Reason: "cannot be empty"}
		}
	}
	return nil
}

// Build constructs the model described by the spec.
func (s *Spec) Build() (*SimpleModel, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	backend, err := tensor.New(s.Backend)
	if err != nil {
		return nil, err
	}
	opts := []Option{WithBackend(backend), WithNames(s.Rename)}
	if s.POI != nil {
		opts = append(opts, WithPOI(*s.POI))
	}

	var m *SimpleModel
	switch s.Model {
	case KindUncorrelatedBackground:
		m, err = UncorrelatedBackground(s.Signal, s.Bkg, s.BkgUncertainty, opts...)
	case KindCorrelatedBackground:
		m, err = CorrelatedBackground(s.Signal, s.Bkg, s.BkgUp, s.BkgDown, opts...)
	}
	if err != nil {
		return nil, err
	}

	if len(s.Parameters) > 0 {
		cfg, err := applyOverrides(m.config, s.Parameters)
		if err != nil {
			return nil, err
		}
		m.config = cfg
	}
	return m, nil
}

// Data returns observations followed by the auxiliary data of m.
func (s *Spec) Data(m Model) ([]float64, error) {
	return m.Config().Data(s.Observations)
}

// applyOverrides returns a copy of cfg with the parameter overrides applied.
func applyOverrides(cfg *Config, overrides []ParameterSpec) (*Config, error) {
	out := *cfg
	out.parameters = cfg.Parameters()

	for _, ov := range overrides {
		var idx []int
		for i, p := range out.parameters {
			if p.Set == ov.Name || p.Name == ov.Name {
				idx = append(idx, i)
			}
		}
		if len(idx) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownParameter, ov.Name)
		}
		if len(ov.Inits) > 0 && len(ov.Inits) != len(idx) {
			return nil, &ShapeError{What: ov.Name + ".inits", Want: len(idx), Got: len(ov.Inits)}
		}
		if len(ov.Bounds) > 0 && len(ov.Bounds) != len(idx) {
			return nil, &ShapeError{What: ov.Name + ".bounds", Want: len(idx), Got: len(ov.Bounds)}
		}
		for k, i := range idx {
			if len(ov.Inits) > 0 {
				out.parameters[i].Init = ov.Inits[k]
			}
			if len(ov.Bounds) > 0 {
				b := ov.Bounds[k]
				if b.Low > b.High {
					return nil, &ValidationError{Field: out.parameters[i].Name + ".bounds", Reason: "low must not exceed high"}
				}
				out.parameters[i].Bounds = b
			}
			if ov.Fixed != nil {
				out.parameters[i].Fixed = *ov.Fixed
			}
		}
	}
	return &out, nil
}
