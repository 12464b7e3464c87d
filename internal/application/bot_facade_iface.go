package application

import (
	"context"

	"telegram-media-courier/internal/domain/model"
	"telegram-media-courier/internal/usecase"
)

// ---- small interfaces to decouple the facade from concrete usecase structs ----
// These describe the minimal surface that the facade needs. Using interfaces
// enables tests to pass in light-weight mocks.

type UserUseCaseIface interface {
	RegisterOrFetch(ctx context.Context, tgID int64, username string) (*model.User, error)
	GetByTelegramID(ctx context.Context, tgID int64) (*model.User, error)
}

type JobUseCaseIface interface {
	Submit(ctx context.Context, ownerID, sourceURL string) (*model.Job, error)
	GetReport(ctx context.Context, jobID string) (*usecase.JobReport, error)
	ListRecent(ctx context.Context, ownerID string, limit int) ([]*model.Job, error)
	Cancel(ctx context.Context, jobID string) error
}

type SessionUseCaseIface interface {
	BeginSubmission(ownerID string)
	Submit(ctx context.Context, ownerID string, source model.SessionSource, payload string) (*model.Session, error)
	Validate(ctx context.Context, sessionID string) (*model.Session, error)
	List(ctx context.Context, ownerID string) ([]model.SessionSummary, error)
	Revoke(ctx context.Context, sessionID string) error
}

type StatsUseCaseIface interface {
	Daily(ctx context.Context) (*usecase.DailyStats, error)
}
