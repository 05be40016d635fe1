package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/mlefit/internal/mle"
	"github.com/cwbudde/mlefit/internal/model"
	"github.com/cwbudde/mlefit/internal/opt"
	"github.com/cwbudde/mlefit/internal/store"
)

// runJob executes a fit job in the background.
// If resultStore is not nil, the finished fit is persisted under the job ID.
func runJob(ctx context.Context, jm *JobManager, resultStore store.Store, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	})
	if err != nil {
		return err
	}

	req := job.Request
	if err := req.Validate(); err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}
	slog.Info("Starting job", "job_id", jobID, "model", req.Spec.Model, "mode", req.Mode)

	m, err := req.Spec.Build()
	if err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("failed to build model: %w", err))
		return err
	}
	data, err := req.Spec.Data(m)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}

	optimizer, err := opt.New(req.Optimizer)
	if err != nil {
		markJobFailed(jm, jobID, err)
		return err
	}
	fitter := mle.NewFitter(optimizer)

	optimizerOpts := []opt.Option{opt.ReturnFittedVal(true)}
	if req.Seed != 0 {
		optimizerOpts = append(optimizerOpts, opt.Seed(req.Seed))
	}
	if req.MaxIterations > 0 {
		optimizerOpts = append(optimizerOpts, opt.MaxIterations(req.MaxIterations))
	}
	fitOpts := []mle.FitOption{mle.WithOptimizerOptions(optimizerOpts...)}

	select {
	case <-ctx.Done():
		markJobCancelled(jm, jobID)
		return ctx.Err()
	default:
	}

	start := time.Now()
	result, err := executeFit(ctx, fitter, req, data, m, fitOpts)
	if err != nil {
		if ctx.Err() != nil {
			markJobCancelled(jm, jobID)
			return ctx.Err()
		}
		markJobFailed(jm, jobID, err)
		return err
	}
	result.ParNames = m.Config().ParNames()
	elapsed := time.Since(start)

	endTime := time.Now()
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.Result = result
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", elapsed,
		"twice_nll", result.TwiceNLL,
		"evaluations", result.Evaluations,
	)

	if resultStore != nil {
		if err := saveResult(resultStore, jobID, req, result, fitter.Optimizer()); err != nil {
			slog.Error("Failed to save fit result", "job_id", jobID, "error", err)
		}
	}

	return nil
}

// executeFit dispatches on the request mode.
func executeFit(ctx context.Context, fitter *mle.Fitter, req JobRequest, data []float64, m model.Model, fitOpts []mle.FitOption) (*JobResult, error) {
	var (
		res *opt.Result
		err error
	)
	switch req.Mode {
	case store.ModeFit, store.ModeScan:
		res, err = fitter.Fit(ctx, data, m, fitOpts...)
	case store.ModeFixedPOI:
		res, err = fitter.FixedPOIFit(ctx, *req.POI, data, m, fitOpts...)
	default:
		return nil, fmt.Errorf("unknown mode: %s", req.Mode)
	}
	if err != nil {
		return nil, err
	}

	result := &JobResult{
		Pars:        res.Pars,
		Status:      res.Status,
		Evaluations: res.Evaluations,
	}
	if res.FittedVal != nil {
		result.TwiceNLL = *res.FittedVal
	} else if result.TwiceNLL, err = mle.TwiceNLL(res.Pars, data, m); err != nil {
		return nil, err
	}

	if req.Mode == store.ModeScan {
		pois := mle.Linspace(req.Scan.From, req.Scan.To, req.Scan.Points)
		result.Scan, err = fitter.Scan(ctx, pois, data, m, fitOpts...)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// saveResult persists a finished job.
func saveResult(resultStore store.Store, jobID string, req JobRequest, result *JobResult, optimizer opt.Optimizer) error {
	config := store.FitConfig{
		Model:         string(req.Spec.Model),
		Mode:          req.Mode,
		POI:           req.POI,
		Optimizer:     opt.Label(optimizer),
		Seed:          req.Seed,
		MaxIterations: req.MaxIterations,
		Observations:  req.Spec.Observations,
	}
	record := store.NewFitRecord(jobID, result.ParNames, result.Pars, result.TwiceNLL, config)
	record.Status = result.Status
	record.Evaluations = result.Evaluations
	for _, p := range result.Scan {
		record.Scan = append(record.Scan, store.ScanEntry{POI: p.POI, TMu: p.TMu, QMu: p.QMu})
	}

	if err := resultStore.SaveResult(jobID, record); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	slog.Info("Fit result saved", "job_id", jobID)
	return nil
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	slog.Info("Job cancelled", "job_id", jobID)
}
