package model

import (
	"time"

	"telegram-media-courier/internal/domain"

	"github.com/google/uuid"
)

type SessionSource string

const (
	SessionSourceBrowser SessionSource = "browser_derived"
	SessionSourceFile    SessionSource = "file_imported"
)

type SessionState string

const (
	SessionStateUnvalidated SessionState = "unvalidated"
	SessionStateActive      SessionState = "active"
	SessionStateRejected    SessionState = "rejected"
	SessionStateExpired     SessionState = "expired"
)

// Session is one stored set of upstream credentials, owned by a scope
// (one Telegram user). The credential payload is opaque to the domain and
// encrypted by the repository before it touches storage.
type Session struct {
	ID              string
	OwnerID         string
	Source          SessionSource
	State           SessionState
	Payload         string
	CreatedAt       time.Time
	LastValidatedAt *time.Time
	LastUsedAt      *time.Time
	ExpiresAt       *time.Time
}

func NewSession(ownerID string, source SessionSource, payload string) (*Session, error) {
	if ownerID == "" || payload == "" {
		return nil, domain.ErrInvalidArgument
	}
	switch source {
	case SessionSourceBrowser, SessionSourceFile:
	default:
		return nil, domain.ErrInvalidArgument
	}
	return &Session{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Source:    source,
		State:     SessionStateUnvalidated,
		Payload:   payload,
		CreatedAt: time.Now(),
	}, nil
}

// IsActive reports whether the session is usable for authenticated fetches.
func (s *Session) IsActive(now time.Time) bool {
	if s.State != SessionStateActive {
		return false
	}
	if s.ExpiresAt != nil && !now.Before(*s.ExpiresAt) {
		return false
	}
	return true
}

// MarkValidated activates the session. Expiry only moves forward: a
// re-validation never shortens the remaining lifetime.
func (s *Session) MarkValidated(expiry *time.Time) {
	now := time.Now()
	s.State = SessionStateActive
	s.LastValidatedAt = &now
	if expiry == nil {
		return
	}
	if s.ExpiresAt == nil || expiry.After(*s.ExpiresAt) {
		s.ExpiresAt = expiry
	}
}

func (s *Session) MarkRejected() {
	s.State = SessionStateRejected
}

// MarkExpired is idempotent; expiring an already expired session is a no-op.
func (s *Session) MarkExpired() {
	s.State = SessionStateExpired
}

// Touch records a read-only use by a fetch call.
func (s *Session) Touch() {
	now := time.Now()
	s.LastUsedAt = &now
}

// SessionSummary is the list/inspection view. It never carries the raw
// credential payload.
type SessionSummary struct {
	ID              string
	OwnerID         string
	Source          SessionSource
	State           SessionState
	CreatedAt       time.Time
	LastValidatedAt *time.Time
	ExpiresAt       *time.Time
}

func (s *Session) Summary() SessionSummary {
	return SessionSummary{
		ID:              s.ID,
		OwnerID:         s.OwnerID,
		Source:          s.Source,
		State:           s.State,
		CreatedAt:       s.CreatedAt,
		LastValidatedAt: s.LastValidatedAt,
		ExpiresAt:       s.ExpiresAt,
	}
}
