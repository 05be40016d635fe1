package model

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"slices"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

var digestAlgorithms = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
}

// DigestAlgorithms returns the algorithm names accepted by Digest.
func DigestAlgorithms() []string {
	names := make([]string, 0, len(digestAlgorithms))
	for name := range digestAlgorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CanonicalJSON encodes the spec as compact JSON with object keys sorted, so
// equal specs read from different formats encode identically.
func (s *Spec) CanonicalJSON() ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Digest returns the hex-encoded hash of the canonical JSON encoding.
func (s *Spec) Digest(algorithm string) (string, error) {
	newHash, ok := digestAlgorithms[strings.ToLower(algorithm)]
	if !ok {
		return "", fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedDigest, algorithm, strings.Join(DigestAlgorithms(), ", "))
	}
	canonical, err := s.CanonicalJSON()
	if err != nil {
		return "", err
	}
	h := newHash()
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Sorted returns a copy of the spec with its parameter overrides ordered by
// name. A set-level override sorts before the overrides of its members.
func (s *Spec) Sorted() *Spec {
	out := s.clone()
	sort.SliceStable(out.Parameters, func(i, j int) bool {
		return out.Parameters[i].Name < out.Parameters[j].Name
	})
	return out
}

// Renamed returns a copy of the spec with current parameter set, sample or
// channel names replaced according to renames. Parameter overrides and the
// POI follow the new names. The result is checked by building the model.
func (s *Spec) Renamed(renames map[string]string) (*Spec, error) {
	m, err := s.Build()
	if err != nil {
		return nil, err
	}
	cfg := m.Config()
	current := map[string]bool{cfg.Channel(): true}
	for _, name := range cfg.Samples() {
		current[name] = true
	}
	for _, p := range cfg.Parameters() {
		current[p.Set] = true
	}
	for from := range renames {
		if !current[from] {
			return nil, fmt.Errorf("%w: %q", ErrUnknownName, from)
		}
	}

	// Rename always maps built-in names, so compose with earlier renames.
	names := make(map[string]string, len(s.Rename)+len(renames))
	composed := make(map[string]bool)
	for orig, cur := range s.Rename {
		names[orig] = cur
		if to, ok := renames[cur]; ok {
			names[orig] = to
			composed[cur] = true
		}
	}
	for from, to := range renames {
		if !composed[from] {
			names[from] = to
		}
	}
	for orig, cur := range names {
		if orig == cur {
			delete(names, orig)
		}
	}

	out := s.clone()
	out.Rename = nil
	if len(names) > 0 {
		out.Rename = names
	}
	for i, p := range out.Parameters {
		out.Parameters[i].Name = renameParameter(p.Name, renames)
	}
	if out.POI != nil && *out.POI != "" {
		poi := renameParameter(*out.POI, renames)
		out.POI = &poi
	}

	if _, err := out.Build(); err != nil {
		return nil, err
	}
	return out, nil
}

// Encode writes the spec in the given format.
func (s *Spec) Encode(format Format) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			return nil, fmt.Errorf("failed to encode JSON spec: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return nil, fmt.Errorf("failed to encode YAML spec: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("failed to encode YAML spec: %w", err)
		}
	case FormatTOML:
		if err := toml.NewEncoder(&buf).Encode(s); err != nil {
			return nil, fmt.Errorf("failed to encode TOML spec: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return buf.Bytes(), nil
}

func (s *Spec) clone() *Spec {
	out := *s
	out.Signal = slices.Clone(s.Signal)
	out.Bkg = slices.Clone(s.Bkg)
	out.BkgUncertainty = slices.Clone(s.BkgUncertainty)
	out.BkgUp = slices.Clone(s.BkgUp)
	out.BkgDown = slices.Clone(s.BkgDown)
	out.Observations = slices.Clone(s.Observations)
	if s.POI != nil {
		poi := *s.POI
		out.POI = &poi
	}
	out.Parameters = make([]ParameterSpec, len(s.Parameters))
	for i, p := range s.Parameters {
		p.Inits = slices.Clone(p.Inits)
		p.Bounds = slices.Clone(p.Bounds)
		if p.Fixed != nil {
			fixed := *p.Fixed
			p.Fixed = &fixed
		}
		out.Parameters[i] = p
	}
	if len(s.Parameters) == 0 {
		out.Parameters = s.Parameters
	}
	if s.Rename != nil {
		out.Rename = make(map[string]string, len(s.Rename))
		for k, v := range s.Rename {
			out.Rename[k] = v
		}
	}
	return &out
}
