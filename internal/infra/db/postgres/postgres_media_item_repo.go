package postgres

import (
	"context"
	"time"

	"telegram-media-courier/internal/domain"
	"telegram-media-courier/internal/domain/model"
	"telegram-media-courier/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4/pgxpool"
)

var _ repository.MediaItemRepository = (*mediaItemRepo)(nil)

type mediaItemRepo struct {
	pool *pgxpool.Pool
}

func NewMediaItemRepo(pool *pgxpool.Pool) *mediaItemRepo {
	return &mediaItemRepo{pool: pool}
}

func (r *mediaItemRepo) Save(ctx context.Context, tx repository.Tx, item *model.MediaItem) error {
	item.UpdatedAt = time.Now()

	const q = `
INSERT INTO media_items (
  id, job_id, seq, remote_url, filename, fetch_status, delivery_status,
  size_bytes, staging_key, retries, failure_cause, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (id) DO UPDATE SET
  fetch_status = EXCLUDED.fetch_status,
  delivery_status = EXCLUDED.delivery_status,
  size_bytes = EXCLUDED.size_bytes,
  staging_key = EXCLUDED.staging_key,
  retries = EXCLUDED.retries,
  failure_cause = EXCLUDED.failure_cause,
  updated_at = EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, tx, q,
		item.ID, item.JobID, item.Seq, item.RemoteURL, item.Filename,
		item.FetchStatus, item.DeliveryStatus, item.SizeBytes, item.StagingKey,
		item.Retries, item.FailureCause, item.CreatedAt, item.UpdatedAt)
	return err
}

func (r *mediaItemRepo) ListByJob(ctx context.Context, tx repository.Tx, jobID string) ([]*model.MediaItem, error) {
	const q = `
SELECT id, job_id, seq, remote_url, filename, fetch_status, delivery_status,
       size_bytes, staging_key, retries, failure_cause, created_at, updated_at
  FROM media_items
 WHERE job_id = $1
 ORDER BY seq;`

	rows, err := queryRows(ctx, r.pool, tx, q, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.MediaItem
	for rows.Next() {
		var it model.MediaItem
		var fetchStatus, deliveryStatus string
		err := rows.Scan(&it.ID, &it.JobID, &it.Seq, &it.RemoteURL, &it.Filename,
			&fetchStatus, &deliveryStatus, &it.SizeBytes, &it.StagingKey,
			&it.Retries, &it.FailureCause, &it.CreatedAt, &it.UpdatedAt)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		it.FetchStatus = model.ItemFetchStatus(fetchStatus)
		it.DeliveryStatus = model.ItemDeliveryStatus(deliveryStatus)
		out = append(out, &it)
	}
	return out, rows.Err()
}
