package usecase

import (
	"context"
	"fmt"
	"time"

	"telegram-media-courier/internal/domain"
	"telegram-media-courier/internal/domain/model"
	"telegram-media-courier/internal/domain/ports/repository"
	"telegram-media-courier/internal/infra/logging"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ JobUseCase = (*jobUC)(nil)

// ItemSummary is the per-file view inside a job report.
type ItemSummary struct {
	Seq            int
	Filename       string
	FetchStatus    model.ItemFetchStatus
	DeliveryStatus model.ItemDeliveryStatus
	SizeBytes      int64
	FailureCause   string
}

// JobReport is a consistent snapshot of a job, safe to request mid-flight.
// Failed items are always enumerated with their causes, never dropped from
// the count.
type JobReport struct {
	JobID      string
	SourceURL  string
	Status     model.JobStatus
	TotalFiles int
	Downloaded int
	Uploaded   int
	Failed     int
	Pending    int
	Duration   time.Duration
	Error      string
	Items      []ItemSummary
}

// JobCanceller stops in-flight processing for a job. Implemented by the
// orchestrator.
type JobCanceller interface {
	CancelRunning(jobID string)
}

// ReportCache holds finished job reports so repeated status queries skip the
// database. Cache errors degrade to a miss, never to a failed report.
type ReportCache interface {
	Get(ctx context.Context, jobID string) (*JobReport, error)
	Store(ctx context.Context, report *JobReport) error
	Invalidate(ctx context.Context, jobID string) error
}

// JobUseCase accepts submissions and serves idempotent, re-entrant status
// queries while work is in flight.
type JobUseCase interface {
	Submit(ctx context.Context, ownerID, sourceURL string) (*model.Job, error)
	GetReport(ctx context.Context, jobID string) (*JobReport, error)
	// ListRecent returns the owner's newest jobs, most recent first.
	ListRecent(ctx context.Context, ownerID string, limit int) ([]*model.Job, error)
	// Cancel is sticky: the job resolves to cancelled no matter what items
	// complete afterwards. Cancelling a terminal job is a no-op.
	Cancel(ctx context.Context, jobID string) error
}

type jobUC struct {
	jobs      repository.JobRepository
	items     repository.MediaItemRepository
	tm        repository.TransactionManager
	canceller JobCanceller
	cache     ReportCache
	log       *zerolog.Logger
}

func NewJobUseCase(
	jobs repository.JobRepository,
	items repository.MediaItemRepository,
	tm repository.TransactionManager,
	canceller JobCanceller,
	cache ReportCache,
	logger *zerolog.Logger,
) *jobUC {
	return &jobUC{
		jobs:      jobs,
		items:     items,
		tm:        tm,
		canceller: canceller,
		cache:     cache,
		log:       logger,
	}
}

func newJobID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.DefaultEntropy()).String()
}

func (u *jobUC) Submit(ctx context.Context, ownerID, sourceURL string) (*model.Job, error) {
	defer logging.TraceDuration(u.log, "JobUC.Submit")()

	job, err := model.NewJob(newJobID(), ownerID, sourceURL)
	if err != nil {
		return nil, err
	}
	if err := u.jobs.Save(ctx, nil, job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}
	u.log.Info().Str("job_id", job.ID).Str("owner_id", ownerID).Msg("job submitted")
	return job, nil
}

func (u *jobUC) GetReport(ctx context.Context, jobID string) (*JobReport, error) {
	if u.cache != nil {
		if cached, err := u.cache.Get(ctx, jobID); err == nil && cached != nil {
			return cached, nil
		}
	}

	var report *JobReport
	// One transaction so the report never shows a partially-applied fold.
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		job, err := u.jobs.FindByID(ctx, tx, jobID)
		if err != nil {
			return err
		}
		items, err := u.items.ListByJob(ctx, tx, jobID)
		if err != nil {
			return err
		}
		report = BuildReport(job, items)
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Only terminal reports are cacheable; an in-flight job folds again and
	// a stale snapshot would misreport it.
	if u.cache != nil && report.Status.IsTerminal() {
		if err := u.cache.Store(ctx, report); err != nil {
			u.log.Warn().Err(err).Str("job_id", jobID).Msg("report cache store failed")
		}
	}
	return report, nil
}

func (u *jobUC) ListRecent(ctx context.Context, ownerID string, limit int) ([]*model.Job, error) {
	return u.jobs.ListByOwner(ctx, nil, ownerID, limit)
}

func (u *jobUC) Cancel(ctx context.Context, jobID string) error {
	defer logging.TraceDuration(u.log, "JobUC.Cancel")()

	job, err := u.jobs.FindByID(ctx, nil, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return nil
	}
	job.Status = model.JobStatusCancelled
	job.Error = domain.ErrJobCancelled.Error()
	now := time.Now()
	job.CompletedAt = &now
	ok, err := u.jobs.SaveIfActive(ctx, nil, job)
	if err != nil {
		return fmt.Errorf("save cancelled job: %w", err)
	}
	if !ok {
		// The job turned terminal since the read above; nothing to cancel.
		return nil
	}
	if u.canceller != nil {
		u.canceller.CancelRunning(jobID)
	}
	u.log.Info().Str("job_id", jobID).Msg("job cancelled by submitter")
	return nil
}

// BuildReport derives the report counters from item states. Downloaded
// counts successful fetches, Failed everything that never produced a fetched
// file, so downloaded + failed == totalFiles once the job is terminal.
func BuildReport(job *model.Job, items []*model.MediaItem) *JobReport {
	r := &JobReport{
		JobID:      job.ID,
		SourceURL:  job.SourceURL,
		Status:     job.Status,
		TotalFiles: len(items),
		Duration:   job.Duration(),
		Error:      job.Error,
		Items:      make([]ItemSummary, 0, len(items)),
	}
	for _, it := range items {
		switch it.FetchStatus {
		case model.ItemFetchFetched:
			r.Downloaded++
		case model.ItemFetchFailed, model.ItemFetchCancelled:
			r.Failed++
		}
		if it.DeliveryStatus == model.ItemDeliverySent {
			r.Uploaded++
		}
		if !it.IsTerminal() {
			r.Pending++
		}
		r.Items = append(r.Items, ItemSummary{
			Seq:            it.Seq,
			Filename:       it.Filename,
			FetchStatus:    it.FetchStatus,
			DeliveryStatus: it.DeliveryStatus,
			SizeBytes:      it.SizeBytes,
			FailureCause:   it.FailureCause,
		})
	}
	return r
}
