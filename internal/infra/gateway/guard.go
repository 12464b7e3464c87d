package gateway

import (
	"context"
	"time"

	"telegram-media-courier/internal/infra/metrics"
	"telegram-media-courier/internal/infra/resilience"

	"github.com/rs/zerolog"
)

// guard runs one external call behind the gateway's own rate limiter and
// circuit breaker, with retry/backoff around the whole admission+call
// sequence. Upstream and destination never share a guard: Retrieval and
// Delivery each own one instance because their failure domains are
// independent.
type guard struct {
	name    string
	class   string
	limiter *resilience.RateLimiter
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryPolicy
	log     *zerolog.Logger
}

// execute drives op through limiter and breaker until it succeeds or the
// retry budget is spent. failKind classifies call errors in the terminal
// Failure. A breaker-open decision is terminal immediately: retrying into an
// open breaker only burns the budget.
func (g *guard) execute(ctx context.Context, failKind FailureKind, op func(ctx context.Context) error) *Failure {
	var last *Failure

	for attempt := 0; attempt < g.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			hint := time.Duration(0)
			if last != nil {
				hint = last.RetryAfter
			}
			if err := resilience.Sleep(ctx, g.retry.Backoff(attempt), hint); err != nil {
				return &Failure{Kind: failKind, Cause: err}
			}
		}

		// Admission first: a rate-limited call never touches the breaker.
		if ok, retryAfter := g.limiter.Admit(g.class); !ok {
			metrics.IncRateLimitRejected(g.name)
			last = &Failure{Kind: FailureRateLimited, RetryAfter: retryAfter}
			continue
		}

		now := time.Now()
		if err := g.breaker.Allow(now); err != nil {
			metrics.IncGatewayCall(g.name, "breaker_open")
			return &Failure{Kind: FailureBreakerOpen, Cause: err}
		}

		err := op(ctx)
		g.breaker.Record(time.Now(), err)
		metrics.SetBreakerState(g.name, g.breaker.State())
		if err == nil {
			metrics.IncGatewayCall(g.name, "ok")
			return nil
		}
		metrics.IncGatewayCall(g.name, "error")
		g.log.Warn().Err(err).Str("gateway", g.name).Int("attempt", attempt+1).Msg("gateway call failed")
		last = &Failure{Kind: failKind, Cause: err}

		if ctx.Err() != nil {
			break
		}
	}
	return last
}
