package resilience

import (
	"sync"
	"time"

	"telegram-media-courier/internal/domain"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// CircuitBreakerConfig: Threshold is the consecutive-failure count that trips
// the breaker, Cooldown how long calls short-circuit before a trial call is
// allowed through.
type CircuitBreakerConfig struct {
	Threshold int
	Cooldown  time.Duration
}

// CircuitBreaker is a tri-state guard. It does not invoke anything itself:
// callers ask Allow before the wrapped call and report the outcome with
// Record. While half-open exactly one trial call is admitted; concurrent
// callers in that window are rejected as if open.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu            sync.Mutex
	state         breakerState
	fails         int
	openedAt      time.Time
	trialInFlight bool
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) (*CircuitBreaker, error) {
	if cfg.Threshold <= 0 || cfg.Cooldown <= 0 {
		return nil, domain.ErrConfiguration
	}
	return &CircuitBreaker{cfg: cfg}, nil
}

// Allow gates one call. It returns domain.ErrBreakerOpen when the call must
// short-circuit.
func (b *CircuitBreaker) Allow(now time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		return nil
	case breakerOpen:
		if now.Sub(b.openedAt) < b.cfg.Cooldown {
			return domain.ErrBreakerOpen
		}
		b.state = breakerHalfOpen
		b.trialInFlight = true
		return nil
	default: // half-open
		if b.trialInFlight {
			return domain.ErrBreakerOpen
		}
		b.trialInFlight = true
		return nil
	}
}

// Record reports the outcome of a call previously admitted by Allow.
func (b *CircuitBreaker) Record(now time.Time, callErr error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == breakerHalfOpen {
		b.trialInFlight = false
		if callErr == nil {
			b.state = breakerClosed
			b.fails = 0
		} else {
			b.state = breakerOpen
			b.openedAt = now
		}
		return
	}

	if callErr == nil {
		b.fails = 0
		return
	}
	b.fails++
	if b.fails >= b.cfg.Threshold {
		b.state = breakerOpen
		b.openedAt = now
		b.fails = 0
	}
}

// State returns the current state name, for metrics and status reporting.
func (b *CircuitBreaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}
