package source

import (
	"bytes"
	"context"
	"io"
	"time"

	"telegram-media-courier/internal/domain/model"
	"telegram-media-courier/internal/domain/ports/adapter"
)

var _ adapter.ContentFetchAdapter = (*NoopFetchAdapter)(nil)

// NoopFetchAdapter implements adapter.ContentFetchAdapter for local/dev
// testing. Every link resolves to a single canned file.
type NoopFetchAdapter struct{}

func NewNoopFetchAdapter() *NoopFetchAdapter {
	return &NoopFetchAdapter{}
}

func (a *NoopFetchAdapter) RequiresSession(string) bool { return false }

func (a *NoopFetchAdapter) Resolve(ctx context.Context, sourceURL string, _ *model.Session) ([]adapter.RemoteMedia, error) {
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return []adapter.RemoteMedia{{URL: sourceURL, Filename: "noop_1of1.jpg"}}, nil
}

func (a *NoopFetchAdapter) Fetch(ctx context.Context, media adapter.RemoteMedia, _ *model.Session) (io.ReadCloser, int64, error) {
	select {
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	default:
	}
	payload := []byte("noop media content for " + media.URL)
	return io.NopCloser(bytes.NewReader(payload)), int64(len(payload)), nil
}

var _ adapter.SessionValidatorAdapter = (*NoopSessionValidator)(nil)

// NoopSessionValidator accepts every credential payload.
type NoopSessionValidator struct{}

func NewNoopSessionValidator() *NoopSessionValidator { return &NoopSessionValidator{} }

func (v *NoopSessionValidator) ValidateCredential(context.Context, string) (adapter.ValidationResult, error) {
	return adapter.ValidationResult{Valid: true}, nil
}
