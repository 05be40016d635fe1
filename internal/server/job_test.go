package server

import (
	"sync"
	"testing"
	"time"

	"github.com/cwbudde/mlefit/internal/model"
	"github.com/cwbudde/mlefit/internal/store"
)

// testRequest returns a request for the two-bin uncorrelated background model.
func testRequest(mode string) JobRequest {
	return JobRequest{
		Spec: model.Spec{
			Model:          model.KindUncorrelatedBackground,
			Signal:         []float64{12, 11},
			Bkg:            []float64{50, 52},
			BkgUncertainty: []float64{3, 7},
			Observations:   []float64{51, 48},
		},
		Mode: mode,
	}
}

func TestJobManager_CreateJob(t *testing.T) {
	jm := NewJobManager()

	job := jm.CreateJob(testRequest(store.ModeFit))

	if job.ID == "" {
		t.Error("Job ID should not be empty")
	}
	if job.State != StatePending {
		t.Errorf("Initial state should be pending, got %s", job.State)
	}
	if job.Request.Spec.Model != model.KindUncorrelatedBackground {
		t.Errorf("Request not set correctly")
	}
}

func TestJobManager_GetJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testRequest(store.ModeFit))

	retrieved, exists := jm.GetJob(job.ID)
	if !exists {
		t.Fatal("Job should exist")
	}
	if retrieved.ID != job.ID {
		t.Error("Retrieved wrong job")
	}

	if _, exists := jm.GetJob("nonexistent"); exists {
		t.Error("Should not find nonexistent job")
	}
}

func TestJobManager_GetJobReturnsSnapshot(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testRequest(store.ModeFit))

	snapshot, _ := jm.GetJob(job.ID)
	snapshot.State = StateFailed

	current, _ := jm.GetJob(job.ID)
	if current.State != StatePending {
		t.Errorf("Mutating a snapshot changed the stored job: %s", current.State)
	}
}

func TestJobManager_ListJobs(t *testing.T) {
	jm := NewJobManager()

	if len(jm.ListJobs()) != 0 {
		t.Error("Should start with no jobs")
	}

	first := jm.CreateJob(testRequest(store.ModeFit))
	time.Sleep(time.Millisecond)
	second := jm.CreateJob(testRequest(store.ModeScan))

	jobs := jm.ListJobs()
	if len(jobs) != 2 {
		t.Fatalf("Expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != first.ID || jobs[1].ID != second.ID {
		t.Error("Jobs should be listed oldest first")
	}
}

func TestJobManager_UpdateJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testRequest(store.ModeFit))

	err := jm.UpdateJob(job.ID, func(j *Job) {
		j.State = StateRunning
		j.Result = &JobResult{TwiceNLL: 24.98}
	})
	if err != nil {
		t.Errorf("Update should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateRunning {
		t.Error("State should be updated")
	}
	if updated.Result == nil || updated.Result.TwiceNLL != 24.98 {
		t.Error("Result should be updated")
	}
	if len(jm.GetRunningJobs()) != 1 {
		t.Error("Expected one running job")
	}

	if err := jm.UpdateJob("nonexistent", func(j *Job) {}); err == nil {
		t.Error("Update of nonexistent job should fail")
	}
}

func TestJobManager_ThreadSafety(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testRequest(store.ModeFit))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(iteration int) {
			defer wg.Done()
			jm.UpdateJob(job.ID, func(j *Job) {
				j.Error = string(rune('a' + iteration))
			})
			jm.ListJobs()
		}(i)
	}
	wg.Wait()

	if _, exists := jm.GetJob(job.ID); !exists {
		t.Error("Job should still exist after concurrent updates")
	}
}

func TestJobRequest_Validate(t *testing.T) {
	req := testRequest("")
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if req.Mode != store.ModeFit {
		t.Errorf("Mode should default to fit, got %q", req.Mode)
	}

	req = testRequest(store.ModeScan)
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if req.Scan == nil || req.Scan.Points != 13 {
		t.Errorf("Scan range should be defaulted, got %+v", req.Scan)
	}

	invalid := []JobRequest{
		testRequest(store.ModeFixedPOI),
		testRequest("profile"),
		func() JobRequest { r := testRequest(store.ModeScan); r.Scan = &ScanRange{Points: 0}; return r }(),
		func() JobRequest {
			r := testRequest(store.ModeScan)
			r.Scan = &ScanRange{From: 0, To: 3, Points: MaxScanPoints + 1}
			return r
		}(),
		func() JobRequest { r := testRequest(store.ModeFit); r.Spec.Observations = nil; return r }(),
		func() JobRequest { r := testRequest(store.ModeFit); r.MaxIterations = -1; return r }(),
	}
	for i, r := range invalid {
		if err := r.Validate(); err == nil {
			t.Errorf("request %d: expected validation error", i)
		}
	}
}
