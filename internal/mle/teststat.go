package mle

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/mlefit/internal/model"
	"github.com/cwbudde/mlefit/internal/opt"
)

// Profile holds the two fits of a profile likelihood ratio at one POI value.
type Profile struct {
	POI float64 `json:"poi"`
	// MuHat is the POI value of the free fit.
	MuHat float64 `json:"muHat"`

	FreePars      []float64 `json:"freePars"`
	FreeTwiceNLL  float64   `json:"freeTwiceNLL"`
	FixedPars     []float64 `json:"fixedPars"`
	FixedTwiceNLL float64   `json:"fixedTwiceNLL"`
}

// TMu is the test statistic -2 ln lambda(mu). Values below zero caused by the
// finite precision of the minimization are reported as zero.
func (p *Profile) TMu() float64 {
	return math.Max(p.FixedTwiceNLL-p.FreeTwiceNLL, 0)
}

// QMu is the one-sided test statistic for upper limits: TMu when the fitted
// POI lies below the tested value, zero otherwise.
func (p *Profile) QMu() float64 {
	if p.MuHat > p.POI {
		return 0
	}
	return p.TMu()
}

// ScanPoint is one entry of a profile likelihood scan.
type ScanPoint struct {
	POI  float64   `json:"poi"`
	TMu  float64   `json:"tmu"`
	QMu  float64   `json:"qmu"`
	Pars []float64 `json:"pars"`
}

// Profile runs the free fit and the fixed-POI fit at poi with the same inputs.
func (f *Fitter) Profile(ctx context.Context, poi float64, data []float64, m model.Model, opts ...FitOption) (*Profile, error) {
	poiIndex, ok := m.Config().POIIndex()
	if !ok {
		return nil, ErrUnspecifiedPOI
	}

	free, freeVal, err := f.fitWithValue(ctx, data, m, opts, nil)
	if err != nil {
		return nil, fmt.Errorf("free fit: %w", err)
	}
	fixed, fixedVal, err := f.fitWithValue(ctx, data, m, opts, &poi)
	if err != nil {
		return nil, fmt.Errorf("fixed-POI fit at %g: %w", poi, err)
	}

	return &Profile{
		POI:           poi,
		MuHat:         free.Pars[poiIndex],
		FreePars:      free.Pars,
		FreeTwiceNLL:  freeVal,
		FixedPars:     fixed.Pars,
		FixedTwiceNLL: fixedVal,
	}, nil
}

// Scan computes the test statistics over a grid of POI values. The free fit is
// run once and shared by every point.
func (f *Fitter) Scan(ctx context.Context, pois []float64, data []float64, m model.Model, opts ...FitOption) ([]ScanPoint, error) {
	poiIndex, ok := m.Config().POIIndex()
	if !ok {
		return nil, ErrUnspecifiedPOI
	}

	free, freeVal, err := f.fitWithValue(ctx, data, m, opts, nil)
	if err != nil {
		return nil, fmt.Errorf("free fit: %w", err)
	}

	points := make([]ScanPoint, 0, len(pois))
	for _, poi := range pois {
		fixed, fixedVal, err := f.fitWithValue(ctx, data, m, opts, &poi)
		if err != nil {
			return nil, fmt.Errorf("fixed-POI fit at %g: %w", poi, err)
		}
		p := Profile{
			POI:           poi,
			MuHat:         free.Pars[poiIndex],
			FreeTwiceNLL:  freeVal,
			FixedTwiceNLL: fixedVal,
		}
		points = append(points, ScanPoint{POI: poi, TMu: p.TMu(), QMu: p.QMu(), Pars: fixed.Pars})
	}
	return points, nil
}

// fitWithValue runs a free fit (poi == nil) or a fixed-POI fit and returns the
// objective at the optimum, evaluating it when the optimizer did not.
func (f *Fitter) fitWithValue(ctx context.Context, data []float64, m model.Model, opts []FitOption, poi *float64) (*opt.Result, float64, error) {
	opts = append(opts[:len(opts):len(opts)], WithOptimizerOptions(opt.ReturnFittedVal(true)))

	var (
		res *opt.Result
		err error
	)
	if poi == nil {
		res, err = f.Fit(ctx, data, m, opts...)
	} else {
		res, err = f.FixedPOIFit(ctx, *poi, data, m, opts...)
	}
	if err != nil {
		return nil, 0, err
	}
	if res.FittedVal != nil {
		return res, *res.FittedVal, nil
	}
	v, err := TwiceNLL(res.Pars, data, m)
	if err != nil {
		return nil, 0, err
	}
	return res, v, nil
}

// Linspace returns n evenly spaced values from start to stop inclusive.
func Linspace(start, stop float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{start}
	}
	return floats.Span(make([]float64, n), start, stop)
}
