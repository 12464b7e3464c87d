//go:build !integration

package web

import (
	"context"
	"io"
	"time"

	"telegram-media-courier/internal/domain"
	"telegram-media-courier/internal/domain/model"
	"telegram-media-courier/internal/domain/ports/adapter"
	"telegram-media-courier/internal/usecase"

	"github.com/rs/zerolog"
)

// newTestLogger creates a silent logger for tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// ---- minimal mocks for the usecase surfaces the handlers touch ----

type mockJobUC struct {
	report    *usecase.JobReport
	reportErr error
}

func (m *mockJobUC) Submit(ctx context.Context, ownerID, sourceURL string) (*model.Job, error) {
	return model.NewJob("job-1", ownerID, sourceURL)
}

func (m *mockJobUC) GetReport(ctx context.Context, jobID string) (*usecase.JobReport, error) {
	if m.reportErr != nil {
		return nil, m.reportErr
	}
	return m.report, nil
}

func (m *mockJobUC) ListRecent(ctx context.Context, ownerID string, limit int) ([]*model.Job, error) {
	return nil, nil
}

func (m *mockJobUC) Cancel(ctx context.Context, jobID string) error { return nil }

type mockSessionUC struct {
	summaries []model.SessionSummary
	revoked   []string
	windows   []string
	submitted *model.Session
	submitErr error
	valErr    error
}

func (m *mockSessionUC) BeginSubmission(ownerID string) {
	m.windows = append(m.windows, ownerID)
}

func (m *mockSessionUC) Submit(ctx context.Context, ownerID string, source model.SessionSource, payload string) (*model.Session, error) {
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	s, err := model.NewSession(ownerID, source, payload)
	if err != nil {
		return nil, err
	}
	m.submitted = s
	return s, nil
}

func (m *mockSessionUC) Validate(ctx context.Context, sessionID string) (*model.Session, error) {
	if m.submitted == nil {
		return nil, domain.ErrNotFound
	}
	if m.valErr != nil {
		return m.submitted, m.valErr
	}
	m.submitted.MarkValidated(nil)
	return m.submitted, nil
}

func (m *mockSessionUC) Select(ctx context.Context, ownerID string) (*model.Session, error) {
	return nil, domain.ErrNoActiveSession
}

func (m *mockSessionUC) Expire(ctx context.Context, sessionID string) error { return nil }

func (m *mockSessionUC) List(ctx context.Context, ownerID string) ([]model.SessionSummary, error) {
	return m.summaries, nil
}

func (m *mockSessionUC) Revoke(ctx context.Context, sessionID string) error {
	m.revoked = append(m.revoked, sessionID)
	return nil
}

type mockStatsUC struct {
	stats *usecase.DailyStats
}

func (m *mockStatsUC) Daily(ctx context.Context) (*usecase.DailyStats, error) {
	if m.stats != nil {
		return m.stats, nil
	}
	return &usecase.DailyStats{
		Since:    time.Now().Add(-24 * time.Hour),
		ByStatus: map[model.JobStatus]int{},
	}, nil
}

type mockStaging struct {
	report  adapter.CleanupReport
	cutoffs []time.Time
}

func (m *mockStaging) Put(ctx context.Context, jobID, filename string, r io.Reader) (string, int64, error) {
	return jobID + "/" + filename, 0, nil
}

func (m *mockStaging) Open(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	return nil, 0, domain.ErrNotFound
}

func (m *mockStaging) Release(ctx context.Context, key string) error { return nil }

func (m *mockStaging) Cleanup(ctx context.Context, olderThan time.Time) (adapter.CleanupReport, error) {
	m.cutoffs = append(m.cutoffs, olderThan)
	return m.report, nil
}
