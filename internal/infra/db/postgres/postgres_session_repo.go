package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telegram-media-courier/internal/domain"
	"telegram-media-courier/internal/domain/model"
	"telegram-media-courier/internal/domain/ports/repository"
	"telegram-media-courier/internal/infra/security"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

var _ repository.SessionRepository = (*sessionRepo)(nil)

// sessionRepo persists credential sessions. Payloads never hit disk in the
// clear: they are sealed through the encryption service on the way in and
// opened on the way out.
type sessionRepo struct {
	pool *pgxpool.Pool
	enc  *security.EncryptionService
}

func NewSessionRepo(pool *pgxpool.Pool, enc *security.EncryptionService) *sessionRepo {
	return &sessionRepo{pool: pool, enc: enc}
}

func (r *sessionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Session) error {
	sealed, err := r.enc.Encrypt(s.Payload)
	if err != nil {
		return fmt.Errorf("seal session payload: %w", err)
	}

	const q = `
INSERT INTO sessions (id, owner_id, source, state, payload, created_at, last_validated_at, last_used_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
  state = EXCLUDED.state,
  payload = EXCLUDED.payload,
  last_validated_at = EXCLUDED.last_validated_at,
  last_used_at = EXCLUDED.last_used_at,
  expires_at = EXCLUDED.expires_at;`

	_, err = execSQL(ctx, r.pool, tx, q,
		s.ID, s.OwnerID, s.Source, s.State, sealed,
		s.CreatedAt, s.LastValidatedAt, s.LastUsedAt, s.ExpiresAt)
	return err
}

const sessionColumns = `id, owner_id, source, state, payload, created_at, last_validated_at, last_used_at, expires_at`

func (r *sessionRepo) scanSession(row pgx.Row) (*model.Session, error) {
	var s model.Session
	var source, state, sealed string
	err := row.Scan(&s.ID, &s.OwnerID, &source, &state, &sealed,
		&s.CreatedAt, &s.LastValidatedAt, &s.LastUsedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	payload, err := r.enc.Decrypt(sealed)
	if err != nil {
		return nil, fmt.Errorf("open session payload: %w", err)
	}
	s.Source = model.SessionSource(source)
	s.State = model.SessionState(state)
	s.Payload = payload
	return &s, nil
}

func (r *sessionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return r.scanSession(row)
}

func (r *sessionRepo) FindActiveByOwner(ctx context.Context, tx repository.Tx, ownerID string) (*model.Session, error) {
	const q = `
SELECT ` + sessionColumns + `
FROM sessions
WHERE owner_id = $1 AND state = 'active'
ORDER BY last_validated_at DESC NULLS LAST
LIMIT 1;`

	row, err := pickRow(ctx, r.pool, tx, q, ownerID)
	if err != nil {
		return nil, err
	}
	return r.scanSession(row)
}

func (r *sessionRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string) ([]*model.Session, error) {
	const q = `SELECT ` + sessionColumns + ` FROM sessions WHERE owner_id = $1 ORDER BY created_at;`
	rows, err := queryRows(ctx, r.pool, tx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Session
	for rows.Next() {
		s, err := r.scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *sessionRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	const q = `DELETE FROM sessions WHERE id = $1;`
	_, err := execSQL(ctx, r.pool, tx, q, id)
	return err
}

func (r *sessionRepo) ExpireOlderThan(ctx context.Context, tx repository.Tx, now time.Time) (int, error) {
	const q = `
UPDATE sessions SET state = 'expired'
WHERE state = 'active' AND expires_at IS NOT NULL AND expires_at < $1;`

	tag, err := execSQL(ctx, r.pool, tx, q, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
