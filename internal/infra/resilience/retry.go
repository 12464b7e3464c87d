package resilience

import (
	"context"
	"math/rand"
	"time"

	"telegram-media-courier/internal/domain"
)

// RetryPolicy describes the backoff loop a gateway runs around one external
// call: bounded attempts, exponential delay, proportional jitter.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter is the fraction of the computed delay randomized in either
	// direction, e.g. 0.2 for +-20%.
	Jitter float64
}

func NewRetryPolicy(maxAttempts int, base, max time.Duration, jitter float64) (RetryPolicy, error) {
	if maxAttempts <= 0 || base <= 0 || max < base || jitter < 0 || jitter > 1 {
		return RetryPolicy{}, domain.ErrConfiguration
	}
	return RetryPolicy{MaxAttempts: maxAttempts, BaseDelay: base, MaxDelay: max, Jitter: jitter}, nil
}

// Backoff returns the delay before attempt n (0-based; attempt 0 runs
// immediately).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if p.Jitter > 0 {
		spread := float64(d) * p.Jitter
		d = time.Duration(float64(d) + (rand.Float64()*2-1)*spread)
		if d < 0 {
			d = 0
		}
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Sleep waits for d, honoring hint when the upstream asked for a specific
// pause (rate-limit responses). Returns early with the context error on
// cancellation.
func Sleep(ctx context.Context, d, hint time.Duration) error {
	if hint > d {
		d = hint
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
