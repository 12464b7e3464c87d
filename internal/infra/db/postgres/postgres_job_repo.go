package postgres

import (
	"context"
	"errors"
	"time"

	"telegram-media-courier/internal/domain"
	"telegram-media-courier/internal/domain/model"
	"telegram-media-courier/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *jobRepo {
	return &jobRepo{pool: pool, tm: tm}
}

func (r *jobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	job.UpdatedAt = time.Now()

	const q = `
INSERT INTO jobs (id, owner_id, source_url, status, total_items, error, created_at, updated_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  total_items = EXCLUDED.total_items,
  error = EXCLUDED.error,
  updated_at = EXCLUDED.updated_at,
  completed_at = EXCLUDED.completed_at;`

	_, err := execSQL(ctx, r.pool, tx, q,
		job.ID, job.OwnerID, job.SourceURL, job.Status, job.TotalItems, job.Error,
		job.CreatedAt, job.UpdatedAt, job.CompletedAt)
	return err
}

// SaveIfActive re-checks the stored status inside the UPDATE itself, so a
// concurrently committed terminal row (a submitter cancel most of all) wins
// over whatever stale copy the caller holds.
func (r *jobRepo) SaveIfActive(ctx context.Context, tx repository.Tx, job *model.Job) (bool, error) {
	job.UpdatedAt = time.Now()

	const q = `
UPDATE jobs SET
  status = $2,
  total_items = $3,
  error = $4,
  updated_at = $5,
  completed_at = $6
WHERE id = $1
  AND status NOT IN ('completed', 'partially_failed', 'failed', 'cancelled', 'interrupted');`

	ct, err := execSQL(ctx, r.pool, tx, q,
		job.ID, job.Status, job.TotalItems, job.Error, job.UpdatedAt, job.CompletedAt)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

const jobColumns = `id, owner_id, source_url, status, total_items, error, created_at, updated_at, completed_at`

func scanJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	var status string
	err := row.Scan(&j.ID, &j.OwnerID, &j.SourceURL, &status, &j.TotalItems, &j.Error,
		&j.CreatedAt, &j.UpdatedAt, &j.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	j.Status = model.JobStatus(status)
	return &j, nil
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	const q = `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
SELECT ` + jobColumns + `
FROM jobs
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2;`

	rows, err := queryRows(ctx, r.pool, tx, q, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// FetchAndMarkDownloading claims the oldest pending job. SKIP LOCKED keeps
// concurrent processors from racing on the same submission.
func (r *jobRepo) FetchAndMarkDownloading(ctx context.Context) (*model.Job, error) {
	var job *model.Job

	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const q = `
SELECT ` + jobColumns + `
FROM jobs
WHERE status = 'pending'
ORDER BY created_at
LIMIT 1
FOR UPDATE SKIP LOCKED;`

		row, err := pickRow(ctx, r.pool, tx, q)
		if err != nil {
			return err
		}
		claimed, err := scanJob(row)
		if err != nil {
			return err
		}
		claimed.Status = model.JobStatusDownloading
		if err := r.Save(ctx, tx, claimed); err != nil {
			return err
		}
		job = claimed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListStalled returns non-terminal jobs untouched since the cutoff. These are
// processor casualties (crash, OOM, deploy); the stuck-job monitor marks them
// interrupted.
func (r *jobRepo) ListStalled(ctx context.Context, tx repository.Tx, cutoff time.Time) ([]*model.Job, error) {
	const q = `
SELECT ` + jobColumns + `
FROM jobs
WHERE status NOT IN ('completed', 'partially_failed', 'failed', 'cancelled', 'interrupted')
  AND updated_at < $1
ORDER BY updated_at;`

	rows, err := queryRows(ctx, r.pool, tx, q, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *jobRepo) CountByStatusSince(ctx context.Context, tx repository.Tx, since time.Time) (map[model.JobStatus]int, error) {
	const q = `
SELECT status, COUNT(*) FROM jobs WHERE created_at >= $1 GROUP BY status;`

	rows, err := queryRows(ctx, r.pool, tx, q, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.JobStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[model.JobStatus(status)] = n
	}
	return out, rows.Err()
}
