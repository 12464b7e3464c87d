package sched

import (
	"context"
	"time"

	"telegram-media-courier/internal/domain/model"
	"telegram-media-courier/internal/domain/ports/repository"
	"telegram-media-courier/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// StuckJobWorker marks jobs abandoned by a dead processor as interrupted.
// A non-terminal job that has not changed in maxAge is not coming back: the
// processor that owned it crashed or was redeployed mid-run.
type StuckJobWorker struct {
	interval time.Duration
	maxAge   time.Duration
	jobs     repository.JobRepository
	log      *zerolog.Logger
}

func NewStuckJobWorker(interval, maxAge time.Duration, jobs repository.JobRepository, logger *zerolog.Logger) *StuckJobWorker {
	stuckLog := logger.With().Str("component", "StuckJobWorker").Logger()
	return &StuckJobWorker{
		interval: interval,
		maxAge:   maxAge,
		jobs:     jobs,
		log:      &stuckLog,
	}
}

func (w *StuckJobWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting stuck job worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping stuck job worker")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *StuckJobWorker) sweep(ctx context.Context) {
	stalled, err := w.jobs.ListStalled(ctx, nil, time.Now().Add(-w.maxAge))
	if err != nil {
		w.log.Error().Err(err).Msg("stalled job scan error")
		return
	}
	for _, job := range stalled {
		job.Status = model.JobStatusInterrupted
		job.Error = "processing interrupted"
		now := time.Now()
		job.CompletedAt = &now
		ok, err := w.jobs.SaveIfActive(ctx, nil, job)
		if err != nil {
			w.log.Error().Err(err).Str("job_id", job.ID).Msg("could not mark job interrupted")
			continue
		}
		if !ok {
			// Resolved between the scan and the write; not stuck after all.
			continue
		}
		metrics.IncJobFinished(string(model.JobStatusInterrupted))
		w.log.Warn().Str("job_id", job.ID).Msg("stalled job marked interrupted")
	}
}
