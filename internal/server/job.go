package server

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/mlefit/internal/mle"
	"github.com/cwbudde/mlefit/internal/model"
	"github.com/cwbudde/mlefit/internal/store"
)

// JobState represents the current state of a job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// MaxScanPoints caps the POI grid of a scan job.
const MaxScanPoints = 1000

// ScanRange is the POI grid of a scan job.
type ScanRange struct {
	From   float64 `json:"from"`
	To     float64 `json:"to"`
	Points int     `json:"points"`
}

// JobRequest is the body of POST /api/v1/fits.
type JobRequest struct {
	Spec model.Spec `json:"spec"`

	// Mode is one of store.ModeFit, store.ModeFixedPOI or store.ModeScan.
	Mode          string     `json:"mode"`
	POI           *float64   `json:"poi,omitempty"`
	Scan          *ScanRange `json:"scan,omitempty"`
	Optimizer     string     `json:"optimizer,omitempty"`
	Seed          int64      `json:"seed,omitempty"`
	MaxIterations int        `json:"maxIterations,omitempty"`
}

// Validate fills defaults and rejects inconsistent requests.
func (r *JobRequest) Validate() error {
	if err := r.Spec.Validate(); err != nil {
		return err
	}
	if r.Mode == "" {
		r.Mode = store.ModeFit
	}
	switch r.Mode {
	case store.ModeFit:
	case store.ModeFixedPOI:
		if r.POI == nil {
			return fmt.Errorf("poi is required for mode %s", r.Mode)
		}
	case store.ModeScan:
		if r.Scan == nil {
			r.Scan = &ScanRange{From: 0, To: 3, Points: 13}
		}
		if r.Scan.Points < 1 || r.Scan.Points > MaxScanPoints {
			return fmt.Errorf("scan.points must be between 1 and %d", MaxScanPoints)
		}
	default:
		return fmt.Errorf("unknown mode: %s", r.Mode)
	}
	if r.MaxIterations < 0 {
		return fmt.Errorf("maxIterations cannot be negative")
	}
	return nil
}

// JobResult holds the outcome of a finished job.
type JobResult struct {
	ParNames    []string        `json:"parNames"`
	Pars        []float64       `json:"pars"`
	TwiceNLL    float64         `json:"twiceNLL"`
	Status      string          `json:"status,omitempty"`
	Evaluations int             `json:"evaluations,omitempty"`
	Scan        []mle.ScanPoint `json:"scan,omitempty"`
}

// Job represents a fit job
type Job struct {
	ID        string     `json:"id"`
	State     JobState   `json:"state"`
	Request   JobRequest `json:"request"`
	Result    *JobResult `json:"result,omitempty"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// JobManager manages the lifecycle of jobs
type JobManager struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewJobManager creates a new JobManager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*Job),
	}
}

// CreateJob creates a new pending job for the request
func (jm *JobManager) CreateJob(req JobRequest) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Request:   req,
		StartTime: time.Now(),
	}

	jm.jobs[job.ID] = job
	cp := *job
	return &cp
}

// GetJob returns a snapshot of the job with the given ID
func (jm *JobManager) GetJob(id string) (*Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return nil, false
	}
	cp := *job
	return &cp, true
}

// ListJobs returns snapshots of all jobs, oldest first
func (jm *JobManager) ListJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]*Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		cp := *job
		jobs = append(jobs, &cp)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartTime.Before(jobs[j].StartTime)
	})
	return jobs
}

// UpdateJob atomically updates a job using the provided function
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	updateFn(job)
	return nil
}

// GetRunningJobs returns all jobs currently in the running state
func (jm *JobManager) GetRunningJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	runningJobs := make([]*Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			cp := *job
			runningJobs = append(runningJobs, &cp)
		}
	}
	return runningJobs
}
