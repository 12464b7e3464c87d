package gateway

import (
	"context"

	"telegram-media-courier/internal/domain/model"
	"telegram-media-courier/internal/domain/ports/adapter"
	"telegram-media-courier/internal/infra/resilience"

	"github.com/rs/zerolog"
)

// RetrievalGateway shields the content source. All resolve/fetch traffic
// passes through its breaker and limiter; fetched bytes land in the staging
// store and only the staging key travels onward.
type RetrievalGateway struct {
	fetcher adapter.ContentFetchAdapter
	staging adapter.StagingStore
	guard   *guard
}

func NewRetrievalGateway(
	fetcher adapter.ContentFetchAdapter,
	staging adapter.StagingStore,
	limiter *resilience.RateLimiter,
	breaker *resilience.CircuitBreaker,
	retry resilience.RetryPolicy,
	logger *zerolog.Logger,
) *RetrievalGateway {
	gwLog := logger.With().Str("component", "RetrievalGateway").Logger()
	return &RetrievalGateway{
		fetcher: fetcher,
		staging: staging,
		guard: &guard{
			name:    "retrieval",
			class:   "source",
			limiter: limiter,
			breaker: breaker,
			retry:   retry,
			log:     &gwLog,
		},
	}
}

// RequiresSession forwards the adapter's judgement on a link.
func (g *RetrievalGateway) RequiresSession(sourceURL string) bool {
	return g.fetcher.RequiresSession(sourceURL)
}

// Resolve expands a submitted link into its ordered media list.
func (g *RetrievalGateway) Resolve(ctx context.Context, sourceURL string, session *model.Session) ([]adapter.RemoteMedia, *Failure) {
	var media []adapter.RemoteMedia
	fail := g.guard.execute(ctx, FailureFetch, func(ctx context.Context) error {
		var err error
		media, err = g.fetcher.Resolve(ctx, sourceURL, session)
		return err
	})
	if fail != nil {
		return nil, fail
	}
	return media, nil
}

// FetchToStaging downloads one media file into the staging store and returns
// the staging key and size. The session, when present, is borrowed read-only;
// the gateway records last-used time and nothing else.
func (g *RetrievalGateway) FetchToStaging(ctx context.Context, jobID string, media adapter.RemoteMedia, session *model.Session) (string, int64, *Failure) {
	var key string
	var size int64
	fail := g.guard.execute(ctx, FailureFetch, func(ctx context.Context) error {
		rc, _, err := g.fetcher.Fetch(ctx, media, session)
		if err != nil {
			return err
		}
		defer rc.Close()
		key, size, err = g.staging.Put(ctx, jobID, media.Filename, rc)
		return err
	})
	if fail != nil {
		return "", 0, fail
	}
	if session != nil {
		session.Touch()
	}
	return key, size, nil
}
