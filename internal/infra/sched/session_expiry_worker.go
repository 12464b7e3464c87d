package sched

import (
	"context"
	"time"

	"telegram-media-courier/internal/domain/ports/repository"
	"telegram-media-courier/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// SessionExpiryWorker periodically flips active credential sessions whose
// expiry has elapsed. Selection already expires lazily; this sweep catches
// sessions nobody asks for anymore.
type SessionExpiryWorker struct {
	interval time.Duration
	sessions repository.SessionRepository
	log      *zerolog.Logger
}

func NewSessionExpiryWorker(interval time.Duration, sessions repository.SessionRepository, logger *zerolog.Logger) *SessionExpiryWorker {
	exprLog := logger.With().Str("component", "SessionExpiryWorker").Logger()
	return &SessionExpiryWorker{
		interval: interval,
		sessions: sessions,
		log:      &exprLog,
	}
}

func (w *SessionExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting session expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping session expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.sessions.ExpireOlderThan(ctx, nil, time.Now())
			if err != nil {
				w.log.Error().Err(err).Msg("session expiry sweep error")
			}
			if n > 0 {
				metrics.IncSessionsExpired(n)
				w.log.Info().Int("count", n).Msg("expired credential sessions")
			}
		}
	}
}
