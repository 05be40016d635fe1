package store

import (
	"math"
	"time"
)

// Fit modes recorded in FitConfig.Mode.
const (
	ModeFit      = "fit"
	ModeFixedPOI = "fixed_poi"
	ModeScan     = "scan"
)

// FitConfig is the request a stored fit was run with. It is a plain copy of
// the server request so the store does not depend on the fitting packages.
type FitConfig struct {
	Model         string    `json:"model"`
	Mode          string    `json:"mode"` // fit, fixed_poi, scan
	POI           *float64  `json:"poi,omitempty"`
	Optimizer     string    `json:"optimizer"`
	Seed          int64     `json:"seed,omitempty"`
	MaxIterations int       `json:"maxIterations,omitempty"`
	Observations  []float64 `json:"observations"`
}

// ScanEntry is one point of a stored POI scan.
type ScanEntry struct {
	POI float64 `json:"poi"`
	TMu float64 `json:"tmu"`
	QMu float64 `json:"qmu"`
}

// FitRecord is the persisted outcome of a fit.
//
// For scans, Pars and TwiceNLL describe the free fit and Scan holds the test
// statistics per POI value.
type FitRecord struct {
	// ID is the unique identifier of the fit
	ID string `json:"id"`

	// ParNames labels each entry of Pars in model order
	ParNames []string  `json:"parNames"`
	Pars     []float64 `json:"pars"`

	// TwiceNLL is the objective value at Pars
	TwiceNLL float64 `json:"twiceNLL"`

	Status      string `json:"status,omitempty"`
	Evaluations int    `json:"evaluations,omitempty"`

	Scan []ScanEntry `json:"scan,omitempty"`

	// Timestamp records when the fit finished
	Timestamp time.Time `json:"timestamp"`

	Config FitConfig `json:"config"`
}

// FitInfo contains the metadata of a stored fit without parameter values.
type FitInfo struct {
	ID        string    `json:"id"`
	Model     string    `json:"model"`
	Mode      string    `json:"mode"`
	Optimizer string    `json:"optimizer"`
	NPars     int       `json:"nPars"`
	TwiceNLL  float64   `json:"twiceNLL"`
	Timestamp time.Time `json:"timestamp"`
}

// NewFitRecord creates a record stamped with the current time.
func NewFitRecord(id string, parNames []string, pars []float64, twiceNLL float64, config FitConfig) *FitRecord {
	return &FitRecord{
		ID:        id,
		ParNames:  parNames,
		Pars:      pars,
		TwiceNLL:  twiceNLL,
		Timestamp: time.Now(),
		Config:    config,
	}
}

// ToInfo converts a full FitRecord to FitInfo.
func (r *FitRecord) ToInfo() FitInfo {
	return FitInfo{
		ID:        r.ID,
		Model:     r.Config.Model,
		Mode:      r.Config.Mode,
		Optimizer: r.Config.Optimizer,
		NPars:     len(r.Pars),
		TwiceNLL:  r.TwiceNLL,
		Timestamp: r.Timestamp,
	}
}

// Validate checks that the record is complete and self-consistent.
func (r *FitRecord) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "ID", Reason: "cannot be empty"}
	}
	if len(r.Pars) == 0 {
		return &ValidationError{Field: "Pars", Reason: "cannot be empty"}
	}
	if len(r.ParNames) != len(r.Pars) {
		return &ValidationError{Field: "ParNames", Reason: "must name every parameter"}
	}
	if math.IsNaN(r.TwiceNLL) {
		return &ValidationError{Field: "TwiceNLL", Reason: "cannot be NaN"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if r.Config.Model == "" {
		return &ValidationError{Field: "Config.Model", Reason: "cannot be empty"}
	}
	switch r.Config.Mode {
	case ModeFit:
	case ModeFixedPOI:
		if r.Config.POI == nil {
			return &ValidationError{Field: "Config.POI", Reason: "required for a fixed_poi fit"}
		}
	case ModeScan:
		if len(r.Scan) == 0 {
			return &ValidationError{Field: "Scan", Reason: "cannot be empty for a scan"}
		}
	default:
		return &ValidationError{Field: "Config.Mode", Reason: "must be one of fit, fixed_poi, scan"}
	}
	if r.Config.Optimizer == "" {
		return &ValidationError{Field: "Config.Optimizer", Reason: "cannot be empty"}
	}
	return nil
}

// ValidationError represents a fit record validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
