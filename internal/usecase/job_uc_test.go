//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"telegram-media-courier/internal/domain"
	"telegram-media-courier/internal/domain/model"
	"telegram-media-courier/internal/domain/ports/repository"
	"telegram-media-courier/internal/usecase"
)

type mockCanceller struct {
	cancelled []string
}

func (m *mockCanceller) CancelRunning(jobID string) {
	m.cancelled = append(m.cancelled, jobID)
}

func TestJobUC_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("should persist a pending job with a fresh id", func(t *testing.T) {
		jobs := newMockJobRepo()
		uc := usecase.NewJobUseCase(jobs, newMockItemRepo(), &mockTxManager{}, nil, nil, newTestLogger())

		job, err := uc.Submit(ctx, "owner-1", "https://example.com/post/x")

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if job.ID == "" {
			t.Fatal("expected a job id")
		}
		if job.Status != model.JobStatusPending {
			t.Errorf("expected pending, got %s", job.Status)
		}
		if _, err := jobs.FindByID(ctx, nil, job.ID); err != nil {
			t.Errorf("job not persisted: %v", err)
		}
	})

	t.Run("should reject an empty source url", func(t *testing.T) {
		uc := usecase.NewJobUseCase(newMockJobRepo(), newMockItemRepo(), &mockTxManager{}, nil, nil, newTestLogger())

		_, err := uc.Submit(ctx, "owner-1", "")

		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestJobUC_GetReport(t *testing.T) {
	ctx := context.Background()

	t.Run("should return ErrNotFound for an unknown job", func(t *testing.T) {
		uc := usecase.NewJobUseCase(newMockJobRepo(), newMockItemRepo(), &mockTxManager{}, nil, nil, newTestLogger())

		_, err := uc.GetReport(ctx, "missing")

		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("should keep downloaded plus failed equal to total on a terminal job", func(t *testing.T) {
		jobs := newMockJobRepo()
		items := newMockItemRepo()
		uc := usecase.NewJobUseCase(jobs, items, &mockTxManager{}, nil, nil, newTestLogger())

		job, _ := model.NewJob("01JOBX", "owner-1", "https://example.com/post/x")
		job.Status = model.JobStatusPartiallyFailed
		job.TotalItems = 3
		if err := jobs.Save(ctx, nil, job); err != nil {
			t.Fatalf("save job: %v", err)
		}
		mk := func(seq int) *model.MediaItem {
			it, err := model.NewMediaItem(job.ID, seq, "u", "f")
			if err != nil {
				t.Fatalf("new item: %v", err)
			}
			return it
		}
		ok1, ok2, bad := mk(0), mk(1), mk(2)
		ok1.MarkFetching()
		ok1.MarkFetched("k1", 10)
		ok1.MarkSending()
		ok1.MarkSent()
		ok2.MarkFetching()
		ok2.MarkFetched("k2", 10)
		ok2.MarkSending()
		ok2.MarkSendFailed("403 forbidden")
		bad.MarkFetching()
		bad.MarkFetchFailed("410 gone")
		for _, it := range []*model.MediaItem{ok1, ok2, bad} {
			if err := items.Save(ctx, nil, it); err != nil {
				t.Fatalf("save item: %v", err)
			}
		}

		report, err := uc.GetReport(ctx, job.ID)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.Downloaded+report.Failed != report.TotalFiles {
			t.Errorf("downloaded(%d)+failed(%d) != total(%d)", report.Downloaded, report.Failed, report.TotalFiles)
		}
		if report.Uploaded != 1 {
			t.Errorf("expected 1 uploaded, got %d", report.Uploaded)
		}
		if report.Pending != 0 {
			t.Errorf("expected no pending items, got %d", report.Pending)
		}
		if report.Items[2].FailureCause != "410 gone" {
			t.Errorf("failure cause lost: %q", report.Items[2].FailureCause)
		}
	})

	t.Run("should cache a terminal report and serve repeat queries from it", func(t *testing.T) {
		jobs := newMockJobRepo()
		cache := newMockReportCache()
		uc := usecase.NewJobUseCase(jobs, newMockItemRepo(), &mockTxManager{}, nil, cache, newTestLogger())

		job, _ := model.NewJob("01JOBC", "owner-1", "https://example.com/post/c")
		job.Status = model.JobStatusCompleted
		if err := jobs.Save(ctx, nil, job); err != nil {
			t.Fatalf("save job: %v", err)
		}

		first, err := uc.GetReport(ctx, job.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cache.stores != 1 {
			t.Fatalf("expected one cache store, got %d", cache.stores)
		}

		// Break the repository so a second read can only come from the cache.
		jobs.FindByIDFunc = func(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
			t.Fatal("repository hit on a cached report")
			return nil, nil
		}
		second, err := uc.GetReport(ctx, job.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if second.Status != first.Status || second.JobID != first.JobID {
			t.Errorf("cached report differs: %+v vs %+v", second, first)
		}
	})

	t.Run("should never cache a report for a job still in flight", func(t *testing.T) {
		jobs := newMockJobRepo()
		cache := newMockReportCache()
		uc := usecase.NewJobUseCase(jobs, newMockItemRepo(), &mockTxManager{}, nil, cache, newTestLogger())

		job, _ := model.NewJob("01JOBD", "owner-1", "https://example.com/post/d")
		job.Status = model.JobStatusDownloading
		if err := jobs.Save(ctx, nil, job); err != nil {
			t.Fatalf("save job: %v", err)
		}

		if _, err := uc.GetReport(ctx, job.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cache.stores != 0 {
			t.Errorf("in-flight report must not be cached, got %d stores", cache.stores)
		}
	})
}

func TestJobUC_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("should mark a running job cancelled and stop its processing", func(t *testing.T) {
		jobs := newMockJobRepo()
		canceller := &mockCanceller{}
		uc := usecase.NewJobUseCase(jobs, newMockItemRepo(), &mockTxManager{}, canceller, nil, newTestLogger())
		job, _ := model.NewJob("01JOBY", "owner-1", "https://example.com/post/y")
		job.Status = model.JobStatusDownloading
		_ = jobs.Save(ctx, nil, job)

		if err := uc.Cancel(ctx, job.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		stored, _ := jobs.FindByID(ctx, nil, job.ID)
		if stored.Status != model.JobStatusCancelled {
			t.Errorf("expected cancelled, got %s", stored.Status)
		}
		if stored.CompletedAt == nil {
			t.Error("expected CompletedAt set")
		}
		if len(canceller.cancelled) != 1 || canceller.cancelled[0] != job.ID {
			t.Errorf("canceller not invoked: %v", canceller.cancelled)
		}
	})

	t.Run("should be a no-op on an already terminal job", func(t *testing.T) {
		jobs := newMockJobRepo()
		canceller := &mockCanceller{}
		uc := usecase.NewJobUseCase(jobs, newMockItemRepo(), &mockTxManager{}, canceller, nil, newTestLogger())
		job, _ := model.NewJob("01JOBZ", "owner-1", "https://example.com/post/z")
		job.Status = model.JobStatusCompleted
		now := time.Now()
		job.CompletedAt = &now
		_ = jobs.Save(ctx, nil, job)

		if err := uc.Cancel(ctx, job.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		stored, _ := jobs.FindByID(ctx, nil, job.ID)
		if stored.Status != model.JobStatusCompleted {
			t.Errorf("terminal status must stick, got %s", stored.Status)
		}
		if len(canceller.cancelled) != 0 {
			t.Errorf("canceller must not fire for terminal jobs, got %v", canceller.cancelled)
		}
	})
}

func TestStatsUC_Daily(t *testing.T) {
	ctx := context.Background()

	t.Run("should aggregate recent jobs by status", func(t *testing.T) {
		jobs := newMockJobRepo()
		users := newMockUserRepo()
		for i, st := range []model.JobStatus{model.JobStatusCompleted, model.JobStatusCompleted, model.JobStatusFailed} {
			j, _ := model.NewJob("01JOB"+string(rune('A'+i)), "owner-1", "https://example.com/p")
			j.Status = st
			_ = jobs.Save(ctx, nil, j)
		}
		u, _ := model.NewUser("user-1", 100, "alice")
		_ = users.Save(ctx, nil, u)
		uc := usecase.NewStatsUseCase(jobs, users, newTestLogger())

		stats, err := uc.Daily(ctx)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stats.Total != 3 {
			t.Errorf("expected 3 jobs, got %d", stats.Total)
		}
		if stats.ByStatus[model.JobStatusCompleted] != 2 {
			t.Errorf("expected 2 completed, got %d", stats.ByStatus[model.JobStatusCompleted])
		}
		if stats.UserCount != 1 {
			t.Errorf("expected 1 user, got %d", stats.UserCount)
		}
	})
}
