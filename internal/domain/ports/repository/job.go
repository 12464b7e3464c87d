package repository

import (
	"context"
	"time"

	"telegram-media-courier/internal/domain/model"
)

type JobRepository interface {
	Save(ctx context.Context, tx Tx, job *model.Job) error
	// SaveIfActive updates the job only while the stored row is still
	// non-terminal and reports whether the write landed. A terminal status,
	// cancellation included, is sticky and must never be overwritten.
	SaveIfActive(ctx context.Context, tx Tx, job *model.Job) (bool, error)
	FindByID(ctx context.Context, tx Tx, id string) (*model.Job, error)
	// ListByOwner returns the owner's most recent jobs, newest first.
	ListByOwner(ctx context.Context, tx Tx, ownerID string, limit int) ([]*model.Job, error)
	// FetchAndMarkDownloading atomically claims the oldest pending job so
	// concurrent processors never pick up the same submission twice.
	FetchAndMarkDownloading(ctx context.Context) (*model.Job, error)
	// ListStalled returns non-terminal jobs without a status change since the
	// cutoff; the stuck-job monitor marks them interrupted.
	ListStalled(ctx context.Context, tx Tx, cutoff time.Time) ([]*model.Job, error)
	CountByStatusSince(ctx context.Context, tx Tx, since time.Time) (map[model.JobStatus]int, error)
}

type MediaItemRepository interface {
	Save(ctx context.Context, tx Tx, item *model.MediaItem) error
	// ListByJob returns the job's items ordered by sequence index.
	ListByJob(ctx context.Context, tx Tx, jobID string) ([]*model.MediaItem, error)
}
