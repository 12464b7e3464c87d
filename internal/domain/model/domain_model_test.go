//go:build !integration

package model

import (
	"errors"
	"testing"
	"time"

	"telegram-media-courier/internal/domain"
)

// --- Job Model Tests ---

func TestNewJob(t *testing.T) {
	t.Run("should create a pending job", func(t *testing.T) {
		job, err := NewJob("job-1", "owner-1", "https://www.instagram.com/p/abc/")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if job.Status != JobStatusPending {
			t.Errorf("expected status 'pending', but got '%s'", job.Status)
		}
		if job.CompletedAt != nil {
			t.Error("expected CompletedAt to be nil on creation")
		}
	})

	t.Run("should fail with missing fields", func(t *testing.T) {
		if _, err := NewJob("", "owner-1", "url"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if _, err := NewJob("job-1", "owner-1", ""); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func item(t *testing.T, seq int) *MediaItem {
	t.Helper()
	it, err := NewMediaItem("job-1", seq, "https://cdn.example/x.jpg", "x.jpg")
	if err != nil {
		t.Fatalf("NewMediaItem: %v", err)
	}
	return it
}

func TestFoldStatus(t *testing.T) {
	t.Run("empty item set folds to pending", func(t *testing.T) {
		if got := FoldStatus(nil); got != JobStatusPending {
			t.Errorf("expected 'pending', got '%s'", got)
		}
	})

	t.Run("all queued folds to pending", func(t *testing.T) {
		items := []*MediaItem{item(t, 0), item(t, 1)}
		if got := FoldStatus(items); got != JobStatusPending {
			t.Errorf("expected 'pending', got '%s'", got)
		}
	})

	t.Run("first fetching item moves job to downloading", func(t *testing.T) {
		items := []*MediaItem{item(t, 0), item(t, 1)}
		items[0].MarkFetching()
		if got := FoldStatus(items); got != JobStatusDownloading {
			t.Errorf("expected 'downloading', got '%s'", got)
		}
	})

	t.Run("first sending item moves job to uploading even while others fetch", func(t *testing.T) {
		items := []*MediaItem{item(t, 0), item(t, 1)}
		items[0].MarkFetched("stage-0", 100)
		items[0].MarkSending()
		items[1].MarkFetching()
		if got := FoldStatus(items); got != JobStatusUploading {
			t.Errorf("expected 'uploading', got '%s'", got)
		}
	})

	t.Run("all sent folds to completed", func(t *testing.T) {
		items := []*MediaItem{item(t, 0), item(t, 1)}
		for _, it := range items {
			it.MarkFetched("k", 1)
			it.MarkSending()
			it.MarkSent()
		}
		if got := FoldStatus(items); got != JobStatusCompleted {
			t.Errorf("expected 'completed', got '%s'", got)
		}
	})

	t.Run("mixed outcomes fold to partially_failed", func(t *testing.T) {
		items := []*MediaItem{item(t, 0), item(t, 1), item(t, 2)}
		items[0].MarkFetched("k0", 1)
		items[0].MarkSending()
		items[0].MarkSent()
		items[1].MarkFetchFailed("login required")
		items[2].MarkFetched("k2", 1)
		items[2].MarkSending()
		items[2].MarkSent()
		if got := FoldStatus(items); got != JobStatusPartiallyFailed {
			t.Errorf("expected 'partially_failed', got '%s'", got)
		}
	})

	t.Run("nothing delivered folds to failed", func(t *testing.T) {
		items := []*MediaItem{item(t, 0), item(t, 1)}
		items[0].MarkFetchFailed("gone")
		items[1].MarkFetched("k", 1)
		items[1].MarkSending()
		items[1].MarkSendFailed("timeout")
		if got := FoldStatus(items); got != JobStatusFailed {
			t.Errorf("expected 'failed', got '%s'", got)
		}
	})

	t.Run("fold is idempotent on an unchanged item set", func(t *testing.T) {
		items := []*MediaItem{item(t, 0), item(t, 1)}
		items[0].MarkFetched("k", 1)
		items[0].MarkSending()
		items[0].MarkSent()
		items[1].MarkFetchFailed("gone")
		first := FoldStatus(items)
		for i := 0; i < 5; i++ {
			if got := FoldStatus(items); got != first {
				t.Fatalf("fold changed on unchanged items: %s -> %s", first, got)
			}
		}
	})
}

// --- MediaItem Tests ---

func TestMediaItemTransitions(t *testing.T) {
	t.Run("fetch failure skips delivery", func(t *testing.T) {
		it := item(t, 0)
		it.MarkFetchFailed("private post")
		if it.DeliveryStatus != ItemDeliverySkipped {
			t.Errorf("expected delivery 'skipped', got '%s'", it.DeliveryStatus)
		}
		if !it.IsTerminal() {
			t.Error("expected item to be terminal after fetch failure")
		}
	})

	t.Run("delivery end releases the staging handle", func(t *testing.T) {
		it := item(t, 0)
		it.MarkFetched("stage-key", 42)
		if it.StagingKey != "stage-key" || it.SizeBytes != 42 {
			t.Fatalf("fetched state not recorded: %+v", it)
		}
		it.MarkSending()
		it.MarkSendFailed("too large")
		if it.StagingKey != "" {
			t.Error("expected staging key cleared after failed delivery")
		}
	})

	t.Run("cancel leaves terminal stages untouched", func(t *testing.T) {
		it := item(t, 0)
		it.MarkFetched("k", 1)
		it.MarkCancelled()
		if it.FetchStatus != ItemFetchFetched {
			t.Errorf("expected fetch status preserved, got '%s'", it.FetchStatus)
		}
		if it.DeliveryStatus != ItemDeliveryCancelled {
			t.Errorf("expected delivery 'cancelled', got '%s'", it.DeliveryStatus)
		}
	})
}

// --- Session Model Tests ---

func TestSession(t *testing.T) {
	t.Run("should create an unvalidated session", func(t *testing.T) {
		s, err := NewSession("owner-1", SessionSourceFile, "sessionid=abc")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if s.State != SessionStateUnvalidated {
			t.Errorf("expected state 'unvalidated', got '%s'", s.State)
		}
		if s.IsActive(time.Now()) {
			t.Error("unvalidated session must not be active")
		}
	})

	t.Run("should reject unknown source type", func(t *testing.T) {
		if _, err := NewSession("owner-1", "usb_stick", "p"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("expiry never moves backwards on re-validation", func(t *testing.T) {
		s, _ := NewSession("owner-1", SessionSourceFile, "sessionid=abc")
		far := time.Now().Add(48 * time.Hour)
		near := time.Now().Add(1 * time.Hour)
		s.MarkValidated(&far)
		s.MarkValidated(&near)
		if !s.ExpiresAt.Equal(far) {
			t.Errorf("expected expiry to stay at %v, got %v", far, s.ExpiresAt)
		}
	})

	t.Run("expired session is inactive even in active state", func(t *testing.T) {
		s, _ := NewSession("owner-1", SessionSourceFile, "sessionid=abc")
		past := time.Now().Add(-time.Minute)
		s.State = SessionStateActive
		s.ExpiresAt = &past
		if s.IsActive(time.Now()) {
			t.Error("expected session past expiry to be inactive")
		}
	})

	t.Run("summary does not expose the payload", func(t *testing.T) {
		s, _ := NewSession("owner-1", SessionSourceBrowser, "super-secret")
		sum := s.Summary()
		if sum.ID != s.ID || sum.State != s.State {
			t.Error("summary fields do not match session")
		}
	})
}
