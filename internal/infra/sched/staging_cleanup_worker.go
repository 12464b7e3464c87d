package sched

import (
	"context"
	"time"

	"telegram-media-courier/internal/domain/ports/adapter"
	"telegram-media-courier/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// StagingCleanupWorker removes staged files left behind by crashed or
// interrupted jobs. Normal runs release their staging keys themselves; this
// sweep only sees orphans older than maxAge.
type StagingCleanupWorker struct {
	interval time.Duration
	maxAge   time.Duration
	staging  adapter.StagingStore
	log      *zerolog.Logger
}

func NewStagingCleanupWorker(interval, maxAge time.Duration, staging adapter.StagingStore, logger *zerolog.Logger) *StagingCleanupWorker {
	cleanLog := logger.With().Str("component", "StagingCleanupWorker").Logger()
	return &StagingCleanupWorker{
		interval: interval,
		maxAge:   maxAge,
		staging:  staging,
		log:      &cleanLog,
	}
}

func (w *StagingCleanupWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting staging cleanup worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping staging cleanup worker")
			return ctx.Err()
		case <-ticker.C:
			report, err := w.staging.Cleanup(ctx, time.Now().Add(-w.maxAge))
			if err != nil {
				w.log.Error().Err(err).Msg("staging cleanup error")
				continue
			}
			if report.RemovedCount > 0 {
				metrics.AddStagingCleanup(report.RemovedCount, report.BytesFreed)
				w.log.Info().Int("removed", report.RemovedCount).Int64("bytes_freed", report.BytesFreed).
					Msg("staging orphans removed")
			}
		}
	}
}
