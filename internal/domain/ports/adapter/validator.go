package adapter

import (
	"context"
	"time"
)

// ValidationResult is the upstream's verdict on a credential payload.
type ValidationResult struct {
	Valid  bool
	Expiry *time.Time
}

// SessionValidatorAdapter checks a credential payload against the upstream.
type SessionValidatorAdapter interface {
	ValidateCredential(ctx context.Context, payload string) (ValidationResult, error)
}
