package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/mlefit/internal/opt"
)

func newUncorrelated(t *testing.T, opts ...Option) *SimpleModel {
	t.Helper()
	m, err := UncorrelatedBackground(
		[]float64{12, 11}, []float64{50, 52}, []float64{3, 7}, opts...)
	require.NoError(t, err)
	return m
}

func newCorrelated(t *testing.T, opts ...Option) *SimpleModel {
	t.Helper()
	m, err := CorrelatedBackground(
		[]float64{12, 11}, []float64{50, 52}, []float64{45, 57}, []float64{55, 47}, opts...)
	require.NoError(t, err)
	return m
}

func TestUncorrelatedBackgroundConfig(t *testing.T) {
	m := newUncorrelated(t)
	cfg := m.Config()

	assert.Equal(t, 3, cfg.NPars())
	assert.Equal(t, 2, cfg.NBins())
	assert.Equal(t, []string{"mu", "uncorr_bkguncrt[0]", "uncorr_bkguncrt[1]"}, cfg.ParNames())
	assert.Equal(t, []float64{1, 1, 1}, cfg.SuggestedInit())
	assert.Equal(t, []opt.Bound{{Low: 0, High: 10}, {Low: 1e-10, High: 10}, {Low: 1e-10, High: 10}}, cfg.SuggestedBounds())
	assert.Equal(t, []bool{false, false, false}, cfg.SuggestedFixed())

	poi, ok := cfg.POIIndex()
	require.True(t, ok)
	assert.Equal(t, 0, poi)
	assert.Equal(t, "mu", cfg.POIName())

	aux := cfg.AuxData()
	require.Len(t, aux, 2)
	assert.InDelta(t, 277.7777777777778, aux[0], 1e-9)
	assert.InDelta(t, 55.183673469387756, aux[1], 1e-9)
}

func TestConfigAccessorsReturnCopies(t *testing.T) {
	m := newUncorrelated(t)
	cfg := m.Config()

	init := cfg.SuggestedInit()
	init[0] = 42
	fixed := cfg.SuggestedFixed()
	fixed[0] = true
	bounds := cfg.SuggestedBounds()
	bounds[0].High = -1
	aux := cfg.AuxData()
	aux[0] = 0

	assert.Equal(t, 1.0, cfg.SuggestedInit()[0])
	assert.False(t, cfg.SuggestedFixed()[0])
	assert.Equal(t, 10.0, cfg.SuggestedBounds()[0].High)
	assert.NotZero(t, cfg.AuxData()[0])
}

func TestUncorrelatedBackgroundLogDensity(t *testing.T) {
	m := newUncorrelated(t)
	data, err := m.Config().Data([]float64{51, 48})
	require.NoError(t, err)
	require.Len(t, data, 4)

	cases := []struct {
		pars []float64
		want float64
	}{
		{[]float64{1, 1, 1}, 30.77525434631491},
		{[]float64{0, 1.0030512, 0.96266961}, 24.983935214532323},
		{[]float64{1, 0.97224597, 0.87553894}, 28.92218013492254},
	}
	for _, tc := range cases {
		lp, err := m.LogDensity(tc.pars, data)
		require.NoError(t, err)
		assert.InDelta(t, tc.want, -2*lp, 1e-9, "pars %v", tc.pars)
	}
}

func TestCorrelatedBackgroundLogDensity(t *testing.T) {
	m := newCorrelated(t)
	cfg := m.Config()
	assert.Equal(t, []string{"correlated_bkg_uncertainty", "mu"}, cfg.ParNames())
	poi, ok := cfg.POIIndex()
	require.True(t, ok)
	assert.Equal(t, 1, poi)
	assert.Equal(t, []float64{0}, cfg.AuxData())

	data, err := cfg.Data([]float64{51, 48})
	require.NoError(t, err)

	cases := []struct {
		pars []float64
		want float64
	}{
		{[]float64{0, 1}, 19.296268523686006},
		{[]float64{0.5, 1}, 20.00851195805505},
		{[]float64{-0.5, 0.2}, 14.128600957912209},
	}
	for _, tc := range cases {
		lp, err := m.LogDensity(tc.pars, data)
		require.NoError(t, err)
		assert.InDelta(t, tc.want, -2*lp, 1e-9, "pars %v", tc.pars)
	}
}

func TestExpectedData(t *testing.T) {
	m := newUncorrelated(t)
	got, err := m.ExpectedData([]float64{2, 1, 0.5}, true)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.InDelta(t, 74, got[0], 1e-12)
	assert.InDelta(t, 48, got[1], 1e-12)
	assert.InDelta(t, 277.7777777777778, got[2], 1e-9)
	assert.InDelta(t, 55.183673469387756/2, got[3], 1e-9)

	c := newCorrelated(t)
	got, err = c.ExpectedData([]float64{1, 0}, false)
	require.NoError(t, err)
	assert.Equal(t, []float64{45, 57}, got)
	got, err = c.ExpectedData([]float64{-1, 0}, false)
	require.NoError(t, err)
	assert.Equal(t, []float64{55, 47}, got)
}

func TestLogDensityShapeErrors(t *testing.T) {
	m := newUncorrelated(t)

	_, err := m.LogDensity([]float64{1, 1}, []float64{51, 48, 1, 1})
	var shapeErr *ShapeError
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, "parameters", shapeErr.What)

	_, err = m.LogDensity([]float64{1, 1, 1}, []float64{51, 48})
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, "data", shapeErr.What)

	_, err = m.LogDensity([]float64{math.NaN(), 1, 1}, []float64{51, 48, 1, 1})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	_, err = m.Config().Data([]float64{1})
	require.ErrorAs(t, err, &shapeErr)
}

func TestPOIOptions(t *testing.T) {
	m := newUncorrelated(t, WithoutPOI())
	_, ok := m.Config().POIIndex()
	assert.False(t, ok)
	assert.Equal(t, "", m.Config().POIName())

	m = newUncorrelated(t, WithPOI("uncorr_bkguncrt[1]"))
	poi, ok := m.Config().POIIndex()
	require.True(t, ok)
	assert.Equal(t, 2, poi)

	_, err := UncorrelatedBackground([]float64{1}, []float64{1}, []float64{1}, WithPOI("theta"))
	require.ErrorIs(t, err, ErrUnknownParameter)
}

func TestConstructorValidation(t *testing.T) {
	_, err := UncorrelatedBackground(nil, nil, nil)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	_, err = UncorrelatedBackground([]float64{1, 2}, []float64{1}, []float64{1, 1})
	var shapeErr *ShapeError
	require.ErrorAs(t, err, &shapeErr)

	_, err = UncorrelatedBackground([]float64{1}, []float64{1}, []float64{0})
	require.ErrorAs(t, err, &validationErr)

	_, err = CorrelatedBackground([]float64{1, 2}, []float64{1, 2}, []float64{1, 2}, []float64{1})
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, "bkg_down", shapeErr.What)
}

func TestSummarize(t *testing.T) {
	s := Summarize(newUncorrelated(t))
	assert.Equal(t, "singlechannel", s.Channel)
	assert.Equal(t, 2, s.NBins)
	assert.Equal(t, []string{"background", "signal"}, s.Samples)
	assert.Equal(t, []string{"normfactor", "shapesys"}, s.Modifiers)
	assert.Equal(t, "mu", s.POI)
	require.Len(t, s.Parameters, 2)
	assert.Equal(t, "mu", s.Parameters[0].Set)
	assert.Equal(t, Unconstrained, s.Parameters[0].Constraint)
	assert.Equal(t, "uncorr_bkguncrt", s.Parameters[1].Set)
	assert.Equal(t, ConstrainedByPoisson, s.Parameters[1].Constraint)
	assert.Equal(t, 2, s.Parameters[1].Size)
}
