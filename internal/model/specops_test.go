package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlEquivalentOfJSONSpec = `
observations: [51, 48]
signal: [12, 11]
model: uncorrelated_background
bkg_uncertainty: [3, 7]
bkg: [50, 52]
`

func TestCanonicalJSON(t *testing.T) {
	spec, err := ParseSpec([]byte(jsonSpec), FormatJSON)
	require.NoError(t, err)

	got, err := spec.CanonicalJSON()
	require.NoError(t, err)
	assert.Equal(t,
		`{"bkg":[50,52],"bkg_uncertainty":[3,7],"model":"uncorrelated_background","observations":[51,48],"signal":[12,11]}`,
		string(got))
}

func TestDigestIgnoresFormatAndKeyOrder(t *testing.T) {
	fromJSON, err := ParseSpec([]byte(jsonSpec), FormatJSON)
	require.NoError(t, err)
	fromYAML, err := ParseSpec([]byte(yamlEquivalentOfJSONSpec), FormatYAML)
	require.NoError(t, err)

	a, err := fromJSON.Digest("sha256")
	require.NoError(t, err)
	b, err := fromYAML.Digest("sha256")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := ParseSpec([]byte(yamlSpec), FormatYAML)
	require.NoError(t, err)
	c, err := other.Digest("sha256")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestDigestAlgorithms(t *testing.T) {
	spec, err := ParseSpec([]byte(jsonSpec), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, []string{"md5", "sha1", "sha256", "sha512"}, DigestAlgorithms())

	tests := []struct {
		algorithm string
		hexLen    int
	}{
		{"md5", 32},
		{"sha1", 40},
		{"sha256", 64},
		{"SHA256", 64},
		{"sha512", 128},
	}
	for _, tt := range tests {
		t.Run(tt.algorithm, func(t *testing.T) {
			d, err := spec.Digest(tt.algorithm)
			require.NoError(t, err)
			assert.Len(t, d, tt.hexLen)
		})
	}

	_, err = spec.Digest("crc32")
	assert.ErrorIs(t, err, ErrUnsupportedDigest)
}

func TestSorted(t *testing.T) {
	spec, err := ParseSpec([]byte(jsonSpec), FormatJSON)
	require.NoError(t, err)
	spec.Parameters = []ParameterSpec{
		{Name: "uncorr_bkguncrt[1]", Inits: []float64{0.9}},
		{Name: "mu", Inits: []float64{2}},
		{Name: "uncorr_bkguncrt", Inits: []float64{1.1, 1.1}},
	}

	sorted := spec.Sorted()
	var names []string
	for _, p := range sorted.Parameters {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"mu", "uncorr_bkguncrt", "uncorr_bkguncrt[1]"}, names)
	assert.Equal(t, "uncorr_bkguncrt[1]", spec.Parameters[0].Name, "original spec must not change")

	// Later overrides win, so the set-level override must stay in front of
	// the single-parameter one.
	m, err := sorted.Build()
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 1.1, 0.9}, m.Config().SuggestedInit())
}

func TestRenamed(t *testing.T) {
	spec, err := ParseSpec([]byte(jsonSpec), FormatJSON)
	require.NoError(t, err)
	poi := "mu"
	fixed := true
	spec.POI = &poi
	spec.Parameters = []ParameterSpec{
		{Name: "uncorr_bkguncrt[1]", Inits: []float64{0.9}, Fixed: &fixed},
	}

	renamed, err := spec.Renamed(map[string]string{
		"mu":              "xsec",
		"uncorr_bkguncrt": "gamma",
		"background":      "ttbar",
		"singlechannel":   "signal_region",
	})
	require.NoError(t, err)
	require.NotNil(t, renamed.POI)
	assert.Equal(t, "xsec", *renamed.POI)
	assert.Equal(t, "gamma[1]", renamed.Parameters[0].Name)
	assert.Equal(t, "mu", *spec.POI, "original spec must not change")

	m, err := renamed.Build()
	require.NoError(t, err)
	cfg := m.Config()
	assert.Equal(t, []string{"xsec", "gamma[0]", "gamma[1]"}, cfg.ParNames())
	assert.Equal(t, "xsec", cfg.POIName())
	assert.Equal(t, []string{"ttbar", "signal"}, cfg.Samples())
	assert.Equal(t, "signal_region", cfg.Channel())
	assert.Equal(t, []bool{false, false, true}, cfg.SuggestedFixed())

	orig, err := spec.Build()
	require.NoError(t, err)
	data, err := spec.Data(orig)
	require.NoError(t, err)
	pars := []float64{1.3, 1.05, 0.9}
	want, err := orig.LogDensity(pars, data)
	require.NoError(t, err)
	got, err := m.LogDensity(pars, data)
	require.NoError(t, err)
	assert.InDelta(t, want, got, 1e-12)
}

func TestRenamedComposes(t *testing.T) {
	spec, err := ParseSpec([]byte(jsonSpec), FormatJSON)
	require.NoError(t, err)

	once, err := spec.Renamed(map[string]string{"mu": "xsec", "uncorr_bkguncrt": "gamma"})
	require.NoError(t, err)
	twice, err := once.Renamed(map[string]string{"xsec": "sigma"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"mu": "sigma", "uncorr_bkguncrt": "gamma"}, twice.Rename)

	back, err := twice.Renamed(map[string]string{"sigma": "mu", "gamma": "uncorr_bkguncrt"})
	require.NoError(t, err)
	assert.Nil(t, back.Rename)

	_, err = twice.Renamed(map[string]string{"mu": "other"})
	assert.ErrorIs(t, err, ErrUnknownName, "only current names can be renamed")
}

func TestRenamedErrors(t *testing.T) {
	spec, err := ParseSpec([]byte(jsonSpec), FormatJSON)
	require.NoError(t, err)

	_, err = spec.Renamed(map[string]string{"alpha": "beta"})
	assert.ErrorIs(t, err, ErrUnknownName)

	_, err = spec.Renamed(map[string]string{"mu": "uncorr_bkguncrt"})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = spec.Renamed(map[string]string{"background": "signal"})
	assert.ErrorAs(t, err, &verr)

	_, err = spec.Renamed(map[string]string{"mu": " "})
	assert.ErrorAs(t, err, &verr)
}

func TestEncodeRoundTrip(t *testing.T) {
	spec, err := ParseSpec([]byte(tomlSpec), FormatTOML)
	require.NoError(t, err)
	spec, err = spec.Renamed(map[string]string{"uncorr_bkguncrt": "gamma"})
	require.NoError(t, err)
	want, err := spec.Digest("sha256")
	require.NoError(t, err)

	for _, format := range []Format{FormatJSON, FormatYAML, FormatTOML} {
		t.Run(string(format), func(t *testing.T) {
			data, err := spec.Encode(format)
			require.NoError(t, err)
			decoded, err := ParseSpec(data, format)
			require.NoError(t, err)
			got, err := decoded.Digest("sha256")
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	_, err = spec.Encode("xml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
