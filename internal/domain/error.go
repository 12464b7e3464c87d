package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrNoActiveSession    = errors.New("no active session for scope")
	ErrSessionInvalid     = errors.New("session credentials rejected by upstream")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrBreakerOpen        = errors.New("circuit breaker open")
	ErrJobCancelled       = errors.New("job cancelled by submitter")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrStagingIO          = errors.New("staging storage failure")
	ErrConfiguration      = errors.New("invalid configuration")
)
