package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"telegram-media-courier/internal/domain"
	"telegram-media-courier/internal/domain/model"
	"telegram-media-courier/internal/domain/ports/adapter"
	"telegram-media-courier/internal/domain/ports/repository"
	"telegram-media-courier/internal/infra/logging"
	"telegram-media-courier/internal/infra/metrics"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ SessionUseCase = (*sessionUC)(nil)

// SessionUseCase owns the credential session lifecycle: submission,
// validation against the upstream, scoped selection for fetches, expiry and
// revocation.
type SessionUseCase interface {
	// BeginSubmission opens a bounded acceptance window during which the
	// owner may upload a credential payload. An unfulfilled window simply
	// lapses; that is not an error.
	BeginSubmission(ownerID string)
	// Submit stores an unvalidated session, consuming the owner's open
	// submission window.
	Submit(ctx context.Context, ownerID string, source model.SessionSource, payload string) (*model.Session, error)
	// Validate calls the upstream validation capability and activates or
	// rejects the session. Rejection is returned synchronously as
	// domain.ErrSessionInvalid.
	Validate(ctx context.Context, sessionID string) (*model.Session, error)
	// Select returns the most-recently-validated active session for the
	// scope, or domain.ErrNoActiveSession as a typed absence.
	Select(ctx context.Context, ownerID string) (*model.Session, error)
	Expire(ctx context.Context, sessionID string) error
	List(ctx context.Context, ownerID string) ([]model.SessionSummary, error)
	// Revoke deletes the session; revoking an absent session succeeds.
	Revoke(ctx context.Context, sessionID string) error
}

type sessionUC struct {
	sessions  repository.SessionRepository
	validator adapter.SessionValidatorAdapter
	tm        repository.TransactionManager
	window    time.Duration
	markers   []string
	log       *zerolog.Logger

	mu      sync.Mutex
	pending map[string]time.Time // ownerID -> window deadline
}

func NewSessionUseCase(
	sessions repository.SessionRepository,
	validator adapter.SessionValidatorAdapter,
	tm repository.TransactionManager,
	submissionWindow time.Duration,
	requiredMarkers []string,
	logger *zerolog.Logger,
) *sessionUC {
	if submissionWindow <= 0 {
		submissionWindow = 5 * time.Minute
	}
	return &sessionUC{
		sessions:  sessions,
		validator: validator,
		tm:        tm,
		window:    submissionWindow,
		markers:   requiredMarkers,
		log:       logger,
		pending:   make(map[string]time.Time),
	}
}

func (u *sessionUC) BeginSubmission(ownerID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.pending[ownerID] = time.Now().Add(u.window)
}

// claimSubmission consumes the owner's window if it is still open. Expired
// windows are dropped lazily here, no sweeper needed.
func (u *sessionUC) claimSubmission(ownerID string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	deadline, ok := u.pending[ownerID]
	if !ok {
		return false
	}
	delete(u.pending, ownerID)
	return time.Now().Before(deadline)
}

func (u *sessionUC) Submit(ctx context.Context, ownerID string, source model.SessionSource, payload string) (*model.Session, error) {
	defer logging.TraceDuration(u.log, "SessionUC.Submit")()

	if !u.claimSubmission(ownerID) {
		return nil, fmt.Errorf("%w: no open submission window for owner", domain.ErrInvalidArgument)
	}
	for _, m := range u.markers {
		if !strings.Contains(payload, m) {
			return nil, fmt.Errorf("%w: payload missing %q", domain.ErrSessionInvalid, m)
		}
	}
	s, err := model.NewSession(ownerID, source, payload)
	if err != nil {
		return nil, err
	}
	if err := u.sessions.Save(ctx, nil, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	u.log.Info().Str("session_id", s.ID).Str("owner_id", ownerID).Str("source", string(source)).
		Msg("credential session submitted")
	return s, nil
}

func (u *sessionUC) Validate(ctx context.Context, sessionID string) (*model.Session, error) {
	defer logging.TraceDuration(u.log, "SessionUC.Validate")()

	s, err := u.sessions.FindByID(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}

	res, err := u.validator.ValidateCredential(ctx, s.Payload)
	if err != nil {
		metrics.IncSessionValidation("error")
		return nil, fmt.Errorf("validate credential: %w", err)
	}
	if !res.Valid {
		s.MarkRejected()
		if err := u.sessions.Save(ctx, nil, s); err != nil {
			return nil, fmt.Errorf("save rejected session: %w", err)
		}
		metrics.IncSessionValidation("rejected")
		return s, domain.ErrSessionInvalid
	}

	// Activation and the demotion of any previous active session for the
	// same (owner, source) must be one atomic step: at most one active
	// session per scope and source.
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		others, err := u.sessions.ListByOwner(ctx, tx, s.OwnerID)
		if err != nil {
			return err
		}
		for _, o := range others {
			if o.ID != s.ID && o.Source == s.Source && o.State == model.SessionStateActive {
				o.MarkExpired()
				if err := u.sessions.Save(ctx, tx, o); err != nil {
					return err
				}
			}
		}
		s.MarkValidated(res.Expiry)
		return u.sessions.Save(ctx, tx, s)
	})
	if err != nil {
		return nil, fmt.Errorf("activate session: %w", err)
	}
	metrics.IncSessionValidation("active")
	u.log.Info().Str("session_id", s.ID).Msg("session validated")
	return s, nil
}

func (u *sessionUC) Select(ctx context.Context, ownerID string) (*model.Session, error) {
	s, err := u.sessions.FindActiveByOwner(ctx, nil, ownerID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNoActiveSession
	}
	if err != nil {
		return nil, err
	}
	if !s.IsActive(time.Now()) {
		// Expiry elapsed since validation; flip it on the way out.
		s.MarkExpired()
		if err := u.sessions.Save(ctx, nil, s); err != nil {
			u.log.Warn().Err(err).Str("session_id", s.ID).Msg("could not persist lazy expiry")
		}
		return nil, domain.ErrNoActiveSession
	}
	return s, nil
}

func (u *sessionUC) Expire(ctx context.Context, sessionID string) error {
	s, err := u.sessions.FindByID(ctx, nil, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil // idempotent
	}
	if err != nil {
		return err
	}
	if s.State == model.SessionStateExpired {
		return nil
	}
	s.MarkExpired()
	return u.sessions.Save(ctx, nil, s)
}

func (u *sessionUC) List(ctx context.Context, ownerID string) ([]model.SessionSummary, error) {
	ss, err := u.sessions.ListByOwner(ctx, nil, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]model.SessionSummary, 0, len(ss))
	for _, s := range ss {
		out = append(out, s.Summary())
	}
	return out, nil
}

func (u *sessionUC) Revoke(ctx context.Context, sessionID string) error {
	defer logging.TraceDuration(u.log, "SessionUC.Revoke")()
	return u.sessions.Delete(ctx, nil, sessionID)
}
