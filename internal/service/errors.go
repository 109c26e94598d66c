package service

import (
	"fmt"
	"time"
)

// ValidationError reports a malformed synchronous order request. Not
// retryable; mapped to 400 at the boundary.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s", e.Reason)
}

// RateLimitedError tells the caller when it may retry. Mapped to 429 with a
// Retry-After header.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// PersistenceError wraps a storage failure. Terminal for the synchronous
// path; retryable for the webhook path because the event never reached a
// processed state.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
