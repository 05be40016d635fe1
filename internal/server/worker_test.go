package server

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/mlefit/internal/store"
)

func TestRunJob_Fit(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testRequest(store.ModeFit))

	if err := runJob(context.Background(), jm, nil, job.ID); err != nil {
		t.Fatalf("runJob should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateCompleted {
		t.Fatalf("Job should be completed, got %s (%s)", updated.State, updated.Error)
	}
	if updated.EndTime == nil {
		t.Error("EndTime should be set")
	}

	res := updated.Result
	if len(res.Pars) != 3 || len(res.ParNames) != 3 {
		t.Fatalf("Expected 3 parameters, got %d pars / %d names", len(res.Pars), len(res.ParNames))
	}
	if res.ParNames[0] != "mu" {
		t.Errorf("First parameter should be mu, got %s", res.ParNames[0])
	}
	if math.Abs(res.TwiceNLL-24.983935) > 5e-3 {
		t.Errorf("TwiceNLL = %f, want about 24.984", res.TwiceNLL)
	}
}

func TestRunJob_FixedPOIPersists(t *testing.T) {
	resultStore, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}

	jm := NewJobManager()
	req := testRequest(store.ModeFixedPOI)
	poi := 1.0
	req.POI = &poi
	job := jm.CreateJob(req)

	if err := runJob(context.Background(), jm, resultStore, job.ID); err != nil {
		t.Fatalf("runJob should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.Result.Pars[0] != 1 {
		t.Errorf("POI should be pinned to 1, got %v", updated.Result.Pars[0])
	}
	if math.Abs(updated.Result.TwiceNLL-28.922180) > 5e-3 {
		t.Errorf("TwiceNLL = %f, want about 28.922", updated.Result.TwiceNLL)
	}

	record, err := resultStore.LoadResult(job.ID)
	if err != nil {
		t.Fatalf("Result should be persisted: %v", err)
	}
	if record.Config.Mode != store.ModeFixedPOI || record.Config.POI == nil || *record.Config.POI != 1 {
		t.Errorf("Persisted config mismatch: %+v", record.Config)
	}
	if record.Config.Optimizer != "gonum:nelder-mead" {
		t.Errorf("Optimizer = %q, want gonum:nelder-mead", record.Config.Optimizer)
	}
	if record.TwiceNLL != updated.Result.TwiceNLL {
		t.Errorf("Persisted TwiceNLL %f differs from job result %f", record.TwiceNLL, updated.Result.TwiceNLL)
	}
}

func TestRunJob_Scan(t *testing.T) {
	resultStore, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}

	jm := NewJobManager()
	req := testRequest(store.ModeScan)
	req.Scan = &ScanRange{From: 0, To: 2, Points: 5}
	job := jm.CreateJob(req)

	if err := runJob(context.Background(), jm, resultStore, job.ID); err != nil {
		t.Fatalf("runJob should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if len(updated.Result.Scan) != 5 {
		t.Fatalf("Expected 5 scan points, got %d", len(updated.Result.Scan))
	}
	last := updated.Result.Scan[4]
	if last.POI != 2 || last.QMu <= 0 {
		t.Errorf("Unexpected last scan point: %+v", last)
	}

	record, err := resultStore.LoadResult(job.ID)
	if err != nil {
		t.Fatalf("Result should be persisted: %v", err)
	}
	if len(record.Scan) != 5 {
		t.Errorf("Persisted scan has %d points, want 5", len(record.Scan))
	}
}

func TestRunJob_InvalidRequest(t *testing.T) {
	jm := NewJobManager()
	req := testRequest(store.ModeFit)
	req.Spec.BkgUncertainty = nil
	job := jm.CreateJob(req)

	if err := runJob(context.Background(), jm, nil, job.ID); err == nil {
		t.Error("runJob should fail for an invalid spec")
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateFailed {
		t.Errorf("Job should be failed, got %s", updated.State)
	}
	if updated.Error == "" {
		t.Error("Error message should be set")
	}
}

func TestRunJob_UnknownOptimizer(t *testing.T) {
	jm := NewJobManager()
	req := testRequest(store.ModeFit)
	req.Optimizer = "simplex-annealing"
	job := jm.CreateJob(req)

	if err := runJob(context.Background(), jm, nil, job.ID); err == nil {
		t.Error("runJob should fail for an unknown optimizer")
	}
	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateFailed {
		t.Errorf("Job should be failed, got %s", updated.State)
	}
}

func TestRunJob_Cancelled(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(testRequest(store.ModeFit))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runJob(ctx, jm, nil, job.ID)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateCancelled {
		t.Errorf("Job should be cancelled, got %s", updated.State)
	}
}

func TestRunJob_NotFound(t *testing.T) {
	if err := runJob(context.Background(), NewJobManager(), nil, "missing"); err == nil {
		t.Error("runJob should fail for an unknown job")
	}
}
