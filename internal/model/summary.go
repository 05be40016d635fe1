package model

import (
	"sort"

	"github.com/cwbudde/mlefit/internal/opt"
)

// Summary describes a model for display.
type Summary struct {
	Channel    string             `json:"channel"`
	NBins      int                `json:"nbins"`
	Samples    []string           `json:"samples"`
	Parameters []ParameterSummary `json:"parameters"`
	Modifiers  []string           `json:"modifiers"`
	POI        string             `json:"poi,omitempty"`
}

// ParameterSummary describes one parameter set.
type ParameterSummary struct {
	Set        string      `json:"set"`
	Constraint Constraint  `json:"constraint"`
	Modifier   string      `json:"modifier"`
	Size       int         `json:"size"`
	Inits      []float64   `json:"inits"`
	Bounds     []opt.Bound `json:"bounds"`
	Fixed      []bool      `json:"fixed"`
}

// Summarize collects the parameter sets of m, sorted by name.
func Summarize(m Model) Summary {
	cfg := m.Config()

	bySet := map[string]*ParameterSummary{}
	modifiers := map[string]bool{}
	for _, p := range cfg.parameters {
		ps, ok := bySet[p.Set]
		if !ok {
			ps = &ParameterSummary{Set: p.Set, Constraint: p.Constraint, Modifier: p.Modifier}
			bySet[p.Set] = ps
		}
		ps.Size++
		ps.Inits = append(ps.Inits, p.Init)
		ps.Bounds = append(ps.Bounds, p.Bounds)
		ps.Fixed = append(ps.Fixed, p.Fixed)
		modifiers[p.Modifier] = true
	}

	s := Summary{
		Channel: cfg.channel,
		NBins:   cfg.nbins,
		Samples: cfg.Samples(),
		POI:     cfg.POIName(),
	}
	for _, ps := range bySet {
		s.Parameters = append(s.Parameters, *ps)
	}
	sort.Slice(s.Parameters, func(i, j int) bool { return s.Parameters[i].Set < s.Parameters[j].Set })
	for mod := range modifiers {
		s.Modifiers = append(s.Modifiers, mod)
	}
	sort.Strings(s.Modifiers)
	sort.Strings(s.Samples)
	return s
}
