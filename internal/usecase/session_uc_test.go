//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"telegram-media-courier/internal/domain"
	"telegram-media-courier/internal/domain/model"
	"telegram-media-courier/internal/domain/ports/adapter"
	"telegram-media-courier/internal/usecase"
)

func newSessionUC(repo *mockSessionRepo, v *mockValidator, window time.Duration) usecase.SessionUseCase {
	return usecase.NewSessionUseCase(repo, v, &mockTxManager{}, window, []string{"sessionid"}, newTestLogger())
}

func TestSessionUC_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("should reject submission without an open window", func(t *testing.T) {
		uc := newSessionUC(newMockSessionRepo(), &mockValidator{}, time.Minute)

		_, err := uc.Submit(ctx, "owner-1", model.SessionSourceBrowser, `{"sessionid":"abc"}`)

		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("should store an unvalidated session inside the window", func(t *testing.T) {
		repo := newMockSessionRepo()
		uc := newSessionUC(repo, &mockValidator{}, time.Minute)
		uc.BeginSubmission("owner-1")

		s, err := uc.Submit(ctx, "owner-1", model.SessionSourceBrowser, `{"sessionid":"abc"}`)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.State != model.SessionStateUnvalidated {
			t.Errorf("expected unvalidated state, got %s", s.State)
		}
		stored, err := repo.FindByID(ctx, nil, s.ID)
		if err != nil {
			t.Fatalf("session not persisted: %v", err)
		}
		if stored.OwnerID != "owner-1" {
			t.Errorf("wrong owner: %s", stored.OwnerID)
		}
	})

	t.Run("should consume the window on first submission", func(t *testing.T) {
		uc := newSessionUC(newMockSessionRepo(), &mockValidator{}, time.Minute)
		uc.BeginSubmission("owner-1")

		if _, err := uc.Submit(ctx, "owner-1", model.SessionSourceBrowser, `{"sessionid":"abc"}`); err != nil {
			t.Fatalf("first submit failed: %v", err)
		}
		_, err := uc.Submit(ctx, "owner-1", model.SessionSourceBrowser, `{"sessionid":"def"}`)

		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected second submit to be rejected, got %v", err)
		}
	})

	t.Run("should reject submission after the window lapses", func(t *testing.T) {
		uc := newSessionUC(newMockSessionRepo(), &mockValidator{}, time.Nanosecond)
		uc.BeginSubmission("owner-1")
		time.Sleep(5 * time.Millisecond)

		_, err := uc.Submit(ctx, "owner-1", model.SessionSourceBrowser, `{"sessionid":"abc"}`)

		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected lapsed window rejection, got %v", err)
		}
	})

	t.Run("should reject a payload missing required markers", func(t *testing.T) {
		uc := newSessionUC(newMockSessionRepo(), &mockValidator{}, time.Minute)
		uc.BeginSubmission("owner-1")

		_, err := uc.Submit(ctx, "owner-1", model.SessionSourceBrowser, `{"csrftoken":"abc"}`)

		if !errors.Is(err, domain.ErrSessionInvalid) {
			t.Fatalf("expected ErrSessionInvalid, got %v", err)
		}
	})
}

func submitSession(t *testing.T, uc usecase.SessionUseCase, owner string) *model.Session {
	t.Helper()
	uc.BeginSubmission(owner)
	s, err := uc.Submit(context.Background(), owner, model.SessionSourceBrowser, `{"sessionid":"abc"}`)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	return s
}

func TestSessionUC_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("should activate a session the upstream accepts", func(t *testing.T) {
		repo := newMockSessionRepo()
		expiry := time.Now().Add(24 * time.Hour)
		v := &mockValidator{ValidateCredentialFunc: func(ctx context.Context, payload string) (adapter.ValidationResult, error) {
			return adapter.ValidationResult{Valid: true, Expiry: &expiry}, nil
		}}
		uc := newSessionUC(repo, v, time.Minute)
		s := submitSession(t, uc, "owner-1")

		got, err := uc.Validate(ctx, s.ID)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.State != model.SessionStateActive {
			t.Errorf("expected active, got %s", got.State)
		}
		if got.ExpiresAt == nil || !got.ExpiresAt.Equal(expiry) {
			t.Errorf("expected expiry %v, got %v", expiry, got.ExpiresAt)
		}
	})

	t.Run("should mark a rejected session and return ErrSessionInvalid", func(t *testing.T) {
		repo := newMockSessionRepo()
		v := &mockValidator{ValidateCredentialFunc: func(ctx context.Context, payload string) (adapter.ValidationResult, error) {
			return adapter.ValidationResult{Valid: false}, nil
		}}
		uc := newSessionUC(repo, v, time.Minute)
		s := submitSession(t, uc, "owner-1")

		_, err := uc.Validate(ctx, s.ID)

		if !errors.Is(err, domain.ErrSessionInvalid) {
			t.Fatalf("expected ErrSessionInvalid, got %v", err)
		}
		stored, _ := repo.FindByID(ctx, nil, s.ID)
		if stored.State != model.SessionStateRejected {
			t.Errorf("expected rejected state persisted, got %s", stored.State)
		}
	})

	t.Run("should surface upstream validation errors without changing state", func(t *testing.T) {
		repo := newMockSessionRepo()
		v := &mockValidator{ValidateCredentialFunc: func(ctx context.Context, payload string) (adapter.ValidationResult, error) {
			return adapter.ValidationResult{}, errors.New("upstream timeout")
		}}
		uc := newSessionUC(repo, v, time.Minute)
		s := submitSession(t, uc, "owner-1")

		_, err := uc.Validate(ctx, s.ID)

		if err == nil || errors.Is(err, domain.ErrSessionInvalid) {
			t.Fatalf("expected transport error, got %v", err)
		}
		stored, _ := repo.FindByID(ctx, nil, s.ID)
		if stored.State != model.SessionStateUnvalidated {
			t.Errorf("state should be untouched, got %s", stored.State)
		}
	})

	t.Run("should demote the previous active session for the same owner and source", func(t *testing.T) {
		repo := newMockSessionRepo()
		uc := newSessionUC(repo, &mockValidator{}, time.Minute)
		first := submitSession(t, uc, "owner-1")
		if _, err := uc.Validate(ctx, first.ID); err != nil {
			t.Fatalf("first validate failed: %v", err)
		}
		second := submitSession(t, uc, "owner-1")

		if _, err := uc.Validate(ctx, second.ID); err != nil {
			t.Fatalf("second validate failed: %v", err)
		}

		oldStored, _ := repo.FindByID(ctx, nil, first.ID)
		if oldStored.State != model.SessionStateExpired {
			t.Errorf("expected first session demoted to expired, got %s", oldStored.State)
		}
		newStored, _ := repo.FindByID(ctx, nil, second.ID)
		if newStored.State != model.SessionStateActive {
			t.Errorf("expected second session active, got %s", newStored.State)
		}
	})
}

func TestSessionUC_Select(t *testing.T) {
	ctx := context.Background()

	t.Run("should return ErrNoActiveSession when none exists", func(t *testing.T) {
		uc := newSessionUC(newMockSessionRepo(), &mockValidator{}, time.Minute)

		_, err := uc.Select(ctx, "owner-1")

		if !errors.Is(err, domain.ErrNoActiveSession) {
			t.Fatalf("expected ErrNoActiveSession, got %v", err)
		}
	})

	t.Run("should return the active session for the owner", func(t *testing.T) {
		uc := newSessionUC(newMockSessionRepo(), &mockValidator{}, time.Minute)
		s := submitSession(t, uc, "owner-1")
		if _, err := uc.Validate(ctx, s.ID); err != nil {
			t.Fatalf("validate failed: %v", err)
		}

		got, err := uc.Select(ctx, "owner-1")

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.ID != s.ID {
			t.Errorf("expected session %s, got %s", s.ID, got.ID)
		}
	})

	t.Run("should lazily expire a session whose expiry elapsed", func(t *testing.T) {
		repo := newMockSessionRepo()
		past := time.Now().Add(-time.Hour)
		v := &mockValidator{ValidateCredentialFunc: func(ctx context.Context, payload string) (adapter.ValidationResult, error) {
			return adapter.ValidationResult{Valid: true, Expiry: &past}, nil
		}}
		uc := newSessionUC(repo, v, time.Minute)
		s := submitSession(t, uc, "owner-1")
		if _, err := uc.Validate(ctx, s.ID); err != nil {
			t.Fatalf("validate failed: %v", err)
		}

		_, err := uc.Select(ctx, "owner-1")

		if !errors.Is(err, domain.ErrNoActiveSession) {
			t.Fatalf("expected ErrNoActiveSession, got %v", err)
		}
		stored, _ := repo.FindByID(ctx, nil, s.ID)
		if stored.State != model.SessionStateExpired {
			t.Errorf("expected lazy expiry persisted, got %s", stored.State)
		}
	})
}

func TestSessionUC_RevokeAndExpire(t *testing.T) {
	ctx := context.Background()

	t.Run("should treat revoking an absent session as success", func(t *testing.T) {
		uc := newSessionUC(newMockSessionRepo(), &mockValidator{}, time.Minute)

		if err := uc.Revoke(ctx, "missing"); err != nil {
			t.Fatalf("expected idempotent revoke, got %v", err)
		}
	})

	t.Run("should treat expiring an absent session as success", func(t *testing.T) {
		uc := newSessionUC(newMockSessionRepo(), &mockValidator{}, time.Minute)

		if err := uc.Expire(ctx, "missing"); err != nil {
			t.Fatalf("expected idempotent expire, got %v", err)
		}
	})

	t.Run("should list summaries without exposing payloads", func(t *testing.T) {
		uc := newSessionUC(newMockSessionRepo(), &mockValidator{}, time.Minute)
		submitSession(t, uc, "owner-1")

		summaries, err := uc.List(ctx, "owner-1")

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(summaries) != 1 {
			t.Fatalf("expected 1 summary, got %d", len(summaries))
		}
	})
}
