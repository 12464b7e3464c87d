package usecase

import (
	"context"
	"fmt"
	"time"

	"telegram-media-courier/internal/domain/model"
	"telegram-media-courier/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

var _ StatsUseCase = (*statsUC)(nil)

// DailyStats aggregates activity over the trailing reporting window.
type DailyStats struct {
	Since     time.Time
	Total     int
	ByStatus  map[model.JobStatus]int
	UserCount int
}

type StatsUseCase interface {
	// Daily reports job outcomes over the last 24 hours plus the total
	// registered user count.
	Daily(ctx context.Context) (*DailyStats, error)
}

type statsUC struct {
	jobs  repository.JobRepository
	users repository.UserRepository
	log   *zerolog.Logger
}

func NewStatsUseCase(jobs repository.JobRepository, users repository.UserRepository, logger *zerolog.Logger) *statsUC {
	ucLog := logger.With().Str("component", "StatsUC").Logger()
	return &statsUC{jobs: jobs, users: users, log: &ucLog}
}

func (s *statsUC) Daily(ctx context.Context) (*DailyStats, error) {
	since := time.Now().Add(-24 * time.Hour)
	byStatus, err := s.jobs.CountByStatusSince(ctx, nil, since)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	users, err := s.users.CountUsers(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	total := 0
	for _, n := range byStatus {
		total += n
	}
	return &DailyStats{Since: since, Total: total, ByStatus: byStatus, UserCount: users}, nil
}
