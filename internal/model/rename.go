package model

import (
	"fmt"
	"strings"
)

// renameConfig returns a copy of cfg with parameter sets, samples and the
// channel renamed. Parameter names keep their "[i]" suffix.
func renameConfig(cfg *Config, names map[string]string) (*Config, error) {
	if len(names) == 0 {
		return cfg, nil
	}

	known := map[string]bool{cfg.channel: true}
	for _, s := range cfg.samples {
		known[s] = true
	}
	for _, p := range cfg.parameters {
		known[p.Set] = true
	}
	for from, to := range names {
		if !known[from] {
			return nil, fmt.Errorf("%w: %q", ErrUnknownName, from)
		}
		if strings.TrimSpace(to) == "" {
			return nil, &ValidationError{Field: "rename." + from, Reason: "cannot be empty"}
		}
	}

	rename := func(name string) string {
		if to, ok := names[name]; ok {
			return to
		}
		return name
	}

	out := *cfg
	out.parameters = cfg.Parameters()
	sets := make(map[string]string)
	for i, p := range out.parameters {
		set := rename(p.Set)
		if prev, ok := sets[set]; ok && prev != p.Set {
			return nil, &ValidationError{Field: "rename", Reason: fmt.Sprintf("parameter sets %q and %q would both be named %q", prev, p.Set, set)}
		}
		sets[set] = p.Set
		out.parameters[i].Name = set + strings.TrimPrefix(p.Name, p.Set)
		out.parameters[i].Set = set
	}

	out.samples = make([]string, len(cfg.samples))
	seen := make(map[string]bool, len(cfg.samples))
	for i, s := range cfg.samples {
		out.samples[i] = rename(s)
		if seen[out.samples[i]] {
			return nil, &ValidationError{Field: "rename", Reason: fmt.Sprintf("two samples would be named %q", out.samples[i])}
		}
		seen[out.samples[i]] = true
	}
	out.channel = rename(cfg.channel)
	return &out, nil
}

// renameParameter maps a parameter or parameter-set name through renames,
// keeping a "[i]" suffix.
func renameParameter(name string, renames map[string]string) string {
	if to, ok := renames[name]; ok {
		return to
	}
	if set, suffix, ok := strings.Cut(name, "["); ok {
		if to, ok := renames[set]; ok {
			return to + "[" + suffix
		}
	}
	return name
}
