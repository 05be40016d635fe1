package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/mlefit/internal/opt"
)

const jsonSpec = `{
  "model": "uncorrelated_background",
  "signal": [12.0, 11.0],
  "bkg": [50.0, 52.0],
  "bkg_uncertainty": [3.0, 7.0],
  "observations": [51, 48]
}`

const yamlSpec = `
model: correlated_background
signal: [12.0, 11.0]
bkg: [50.0, 52.0]
bkg_up: [45.0, 57.0]
bkg_down: [55.0, 47.0]
observations: [51, 48]
parameters:
  - name: mu
    bounds:
      - {low: -5, high: 5}
`

const tomlSpec = `
model = "uncorrelated_background"
signal = [12.0, 11.0]
bkg = [50.0, 52.0]
bkg_uncertainty = [3.0, 7.0]
observations = [51.0, 48.0]
poi = ""

[[parameters]]
name = "uncorr_bkguncrt"
inits = [1.1, 0.9]
fixed = true
`

func writeSpec(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadSpecJSON(t *testing.T) {
	spec, err := LoadSpec(writeSpec(t, "model.json", jsonSpec))
	require.NoError(t, err)
	assert.Equal(t, KindUncorrelatedBackground, spec.Model)

	m, err := spec.Build()
	require.NoError(t, err)
	assert.Equal(t, KindUncorrelatedBackground, m.Kind())
	assert.Equal(t, "gonum", m.Backend().Name())

	data, err := spec.Data(m)
	require.NoError(t, err)
	lp, err := m.LogDensity(m.Config().SuggestedInit(), data)
	require.NoError(t, err)
	assert.InDelta(t, 30.77525434631491, -2*lp, 1e-9)
}

func TestLoadSpecYAMLWithBoundsOverride(t *testing.T) {
	spec, err := LoadSpec(writeSpec(t, "model.yml", yamlSpec))
	require.NoError(t, err)

	m, err := spec.Build()
	require.NoError(t, err)
	assert.Equal(t, KindCorrelatedBackground, m.Kind())
	assert.Equal(t, []opt.Bound{{Low: -5, High: 5}, {Low: -5, High: 5}}, m.Config().SuggestedBounds())
}

func TestLoadSpecTOMLWithInitAndFixedOverride(t *testing.T) {
	spec, err := LoadSpec(writeSpec(t, "model.toml", tomlSpec))
	require.NoError(t, err)

	m, err := spec.Build()
	require.NoError(t, err)
	cfg := m.Config()
	assert.Equal(t, []float64{1, 1.1, 0.9}, cfg.SuggestedInit())
	assert.Equal(t, []bool{false, true, true}, cfg.SuggestedFixed())
	_, ok := cfg.POIIndex()
	assert.False(t, ok, "empty poi must build a model without POI")
}

func TestOverridesDoNotLeakIntoOtherModels(t *testing.T) {
	spec, err := ParseSpec([]byte(tomlSpec), FormatTOML)
	require.NoError(t, err)
	_, err = spec.Build()
	require.NoError(t, err)

	plain := newUncorrelated(t)
	assert.Equal(t, []float64{1, 1, 1}, plain.Config().SuggestedInit())
}

func TestParseSpecErrors(t *testing.T) {
	cases := []struct {
		name   string
		format Format
		body   string
	}{
		{"unknown json field", FormatJSON, `{"model":"uncorrelated_background","signal":[1],"bkg":[1],"bkg_uncertainty":[1],"observations":[1],"extra":1}`},
		{"unknown yaml field", FormatYAML, "model: uncorrelated_background\nsignal: [1]\nbkg: [1]\nbkg_uncertainty: [1]\nobservations: [1]\nextra: 1\n"},
		{"unknown toml field", FormatTOML, "model = \"uncorrelated_background\"\nsignal = [1.0]\nbkg = [1.0]\nbkg_uncertainty = [1.0]\nobservations = [1.0]\nextra = 1\n"},
		{"missing model", FormatJSON, `{"signal":[1],"bkg":[1],"observations":[1]}`},
		{"unknown model", FormatJSON, `{"model":"shape_factor","signal":[1],"bkg":[1],"observations":[1]}`},
		{"observation count", FormatJSON, `{"model":"uncorrelated_background","signal":[1,2],"bkg":[1,2],"bkg_uncertainty":[1,1],"observations":[1]}`},
		{"negative observation", FormatJSON, `{"model":"uncorrelated_background","signal":[1],"bkg":[1],"bkg_uncertainty":[1],"observations":[-1]}`},
		{"missing uncertainty", FormatJSON, `{"model":"uncorrelated_background","signal":[1],"bkg":[1],"observations":[1]}`},
		{"missing templates", FormatJSON, `{"model":"correlated_background","signal":[1],"bkg":[1],"observations":[1]}`},
		{"unnamed override", FormatJSON, `{"model":"uncorrelated_background","signal":[1],"bkg":[1],"bkg_uncertainty":[1],"observations":[1],"parameters":[{"inits":[1]}]}`},
		{"bad format", Format("xml"), `<spec/>`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSpec([]byte(tc.body), tc.format)
			assert.Error(t, err)
		})
	}
}

func TestBuildOverrideErrors(t *testing.T) {
	base := func() *Spec {
		spec, err := ParseSpec([]byte(jsonSpec), FormatJSON)
		require.NoError(t, err)
		return spec
	}

	spec := base()
	spec.Parameters = []ParameterSpec{{Name: "lumi", Inits: []float64{1}}}
	_, err := spec.Build()
	require.ErrorIs(t, err, ErrUnknownParameter)

	spec = base()
	spec.Parameters = []ParameterSpec{{Name: "uncorr_bkguncrt", Inits: []float64{1}}}
	_, err = spec.Build()
	var shapeErr *ShapeError
	require.ErrorAs(t, err, &shapeErr)

	spec = base()
	spec.Parameters = []ParameterSpec{{Name: "mu", Bounds: []opt.Bound{{Low: 2, High: 1}}}}
	_, err = spec.Build()
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	spec = base()
	spec.Backend = "jax"
	_, err = spec.Build()
	require.Error(t, err)
}

func TestFormatFromPath(t *testing.T) {
	for path, want := range map[string]Format{
		"a.json": FormatJSON, "b.YAML": FormatYAML, "c.yml": FormatYAML, "d.toml": FormatTOML,
	} {
		got, err := FormatFromPath(path)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := FormatFromPath("model.xml")
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = LoadSpec(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
