package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telegram-media-courier/internal/domain"
	"telegram-media-courier/internal/domain/model"
	"telegram-media-courier/internal/domain/ports/adapter"
	"telegram-media-courier/internal/domain/ports/repository"
	"telegram-media-courier/internal/infra/redis"
	"telegram-media-courier/internal/usecase"

	"github.com/rs/zerolog"
)

// JobProcessor polls for pending jobs, claims them, and drives each through
// the orchestrator. The per-owner lock keeps one user's submissions strictly
// sequential even with several processor workers.
type JobProcessor struct {
	jobsRepo    repository.JobRepository
	usersRepo   repository.UserRepository
	orc         *usecase.Orchestrator
	botAdapter  adapter.TelegramBotAdapter
	locker      redis.Locker
	reportCache *redis.ReportCache
	pollEvery   time.Duration
	lockTTL     time.Duration
	log         *zerolog.Logger
}

func NewJobProcessor(
	jobsRepo repository.JobRepository,
	usersRepo repository.UserRepository,
	orc *usecase.Orchestrator,
	botAdapter adapter.TelegramBotAdapter,
	locker redis.Locker,
	reportCache *redis.ReportCache,
	pollEvery time.Duration,
	logger *zerolog.Logger,
) *JobProcessor {
	if pollEvery <= 0 {
		pollEvery = 2 * time.Second
	}
	procLog := logger.With().Str("component", "JobProcessor").Logger()
	return &JobProcessor{
		jobsRepo:    jobsRepo,
		usersRepo:   usersRepo,
		orc:         orc,
		botAdapter:  botAdapter,
		locker:      locker,
		reportCache: reportCache,
		pollEvery:   pollEvery,
		lockTTL:     30 * time.Minute,
		log:         &procLog,
	}
}

// Start runs a loop to fetch and process jobs.
// This should be run in a goroutine.
func (p *JobProcessor) Start(ctx context.Context, pool *Pool) {
	p.log.Info().Msg("job processor started")
	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("job processor stopping")
			return
		case <-ticker.C:
			_ = pool.Submit(func(ctx context.Context) error {
				p.processOne(ctx)
				return nil
			})
		}
	}
}

func (p *JobProcessor) processOne(ctx context.Context) {
	job, err := p.jobsRepo.FetchAndMarkDownloading(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			p.log.Error().Err(err).Msg("failed to claim job")
		}
		return
	}

	owner, err := p.usersRepo.FindByID(ctx, nil, job.OwnerID)
	if err != nil {
		p.log.Error().Err(err).Str("job_id", job.ID).Msg("job owner lookup failed")
		p.release(job, "internal error: unknown job owner")
		return
	}

	token, err := p.locker.TryLock(ctx, redis.OwnerJobKey(job.OwnerID), p.lockTTL)
	if err != nil {
		// Another job for this owner is running; put this one back in line.
		p.requeue(job)
		return
	}
	defer func() { _ = p.locker.Unlock(context.Background(), redis.OwnerJobKey(job.OwnerID), token) }()

	final, err := p.orc.Run(ctx, job, owner.TelegramID)
	if err != nil {
		p.log.Error().Err(err).Str("job_id", job.ID).Msg("job processing failed")
		return
	}
	// A report cached while a cancel was still settling item states carries
	// a stale breakdown; drop it now that the run is fully resolved.
	if p.reportCache != nil {
		_ = p.reportCache.Invalidate(context.Background(), job.ID)
	}
	p.notify(owner.TelegramID, final)
}

// requeue returns a claimed job to pending so another poll picks it up once
// the owner's current job finishes.
func (p *JobProcessor) requeue(job *model.Job) {
	job.Status = model.JobStatusPending
	if err := p.jobsRepo.Save(context.Background(), nil, job); err != nil {
		p.log.Error().Err(err).Str("job_id", job.ID).Msg("could not requeue job")
	}
}

func (p *JobProcessor) release(job *model.Job, cause string) {
	job.Status = model.JobStatusFailed
	job.Error = cause
	now := time.Now()
	job.CompletedAt = &now
	if err := p.jobsRepo.Save(context.Background(), nil, job); err != nil {
		p.log.Error().Err(err).Str("job_id", job.ID).Msg("could not release job")
	}
}

func (p *JobProcessor) notify(tgID int64, job *model.Job) {
	if p.botAdapter == nil {
		return
	}
	var text string
	switch job.Status {
	case model.JobStatusCompleted:
		text = fmt.Sprintf("Done. All %d file(s) delivered.", job.TotalItems)
	case model.JobStatusPartiallyFailed:
		text = fmt.Sprintf("Finished with errors. Use /job %s for the per-file breakdown.", job.ID)
	case model.JobStatusFailed:
		text = fmt.Sprintf("Download failed: %s", job.Error)
	case model.JobStatusCancelled:
		text = "Job cancelled."
	default:
		return
	}
	if err := p.botAdapter.SendMessage(context.Background(), tgID, text); err != nil {
		p.log.Warn().Err(err).Int64("tg_id", tgID).Msg("result notification failed")
	}
}
