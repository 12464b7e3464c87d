package repository

import (
	"context"
	"time"

	"telegram-media-courier/internal/domain/model"
)

type SessionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Session) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Session, error)
	// FindActiveByOwner returns the most-recently-validated active session
	// for the scope, or domain.ErrNotFound.
	FindActiveByOwner(ctx context.Context, tx Tx, ownerID string) (*model.Session, error)
	ListByOwner(ctx context.Context, tx Tx, ownerID string) ([]*model.Session, error)
	// Delete is idempotent; removing an absent session is not an error.
	Delete(ctx context.Context, tx Tx, id string) error
	// ExpireOlderThan flips active sessions whose expiry has elapsed and
	// returns how many were transitioned.
	ExpireOlderThan(ctx context.Context, tx Tx, now time.Time) (int, error)
}
