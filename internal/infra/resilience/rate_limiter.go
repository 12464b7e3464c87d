package resilience

import (
	"sync"
	"time"

	"telegram-media-courier/internal/domain"

	"golang.org/x/time/rate"
)

// RateLimiterConfig describes one bucket shape shared by every resource
// class of a limiter instance.
type RateLimiterConfig struct {
	Capacity   int     // max tokens per bucket
	RefillRate float64 // tokens per second
}

// RateLimiter is token-bucket admission control partitioned by resource
// class. Each class gets an independent bucket; refill is computed lazily
// from elapsed time, there is no background timer. Admit never blocks.
type RateLimiter struct {
	cfg RateLimiterConfig

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func NewRateLimiter(cfg RateLimiterConfig) (*RateLimiter, error) {
	if cfg.RefillRate <= 0 {
		return nil, domain.ErrConfiguration
	}
	if cfg.Capacity < 0 {
		return nil, domain.ErrConfiguration
	}
	return &RateLimiter{
		cfg:     cfg,
		buckets: make(map[string]*rate.Limiter),
	}, nil
}

func (l *RateLimiter) bucket(class string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.buckets[class]
	if b == nil {
		b = rate.NewLimiter(rate.Limit(l.cfg.RefillRate), l.cfg.Capacity)
		l.buckets[class] = b
	}
	return b
}

// Admit returns an immediate decision for one call against the class bucket.
// On rejection, retryAfter tells a cooperative caller how long to wait before
// asking again; callers wanting blocking behavior loop on it themselves.
func (l *RateLimiter) Admit(class string) (ok bool, retryAfter time.Duration) {
	if l.cfg.Capacity == 0 {
		return false, time.Duration(float64(time.Second) / l.cfg.RefillRate)
	}
	res := l.bucket(class).Reserve()
	if !res.OK() {
		return false, time.Duration(float64(time.Second) / l.cfg.RefillRate)
	}
	if delay := res.Delay(); delay > 0 {
		res.Cancel()
		return false, delay
	}
	return true, 0
}
