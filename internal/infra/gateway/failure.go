package gateway

import (
	"fmt"
	"time"
)

type FailureKind string

const (
	FailureRateLimited FailureKind = "rate_limited"
	FailureBreakerOpen FailureKind = "breaker_open"
	FailureFetch       FailureKind = "fetch_failed"
	FailureDelivery    FailureKind = "delivery_failed"
	FailureStaging     FailureKind = "staging_io"
)

// Failure is the terminal outcome of a gateway call after the retry budget
// is spent. It is absorbed into item state by the orchestrator, never
// surfaced as a process-level error.
type Failure struct {
	Kind       FailureKind
	RetryAfter time.Duration
	Cause      error
}

func (f *Failure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %v", f.Kind, f.Cause)
	}
	return string(f.Kind)
}

func (f *Failure) Unwrap() error { return f.Cause }

// Message is the human-readable cause recorded on the item and enumerated in
// job reports.
func (f *Failure) Message() string {
	switch f.Kind {
	case FailureRateLimited:
		return fmt.Sprintf("rate limited by upstream (retry after %s)", f.RetryAfter)
	case FailureBreakerOpen:
		return "upstream temporarily unavailable (circuit open)"
	default:
		if f.Cause != nil {
			return f.Cause.Error()
		}
		return string(f.Kind)
	}
}
