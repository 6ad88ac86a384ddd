package domain

import (
	"errors"
	"fmt"
)

// Caller-input errors: surfaced immediately, a run never starts.
var (
	ErrInvalidSource = errors.New("unknown article source")
	ErrInvalidQuery  = errors.New("query text must not be empty")
)

// ErrCollectionSchema signals that an existing collection does not match
// the configured dimension or distance metric. Non-recoverable for the
// whole run.
var ErrCollectionSchema = errors.New("collection schema mismatch")

// RetryableError marks a transient provider failure (rate limit, network)
// that is worth retrying with backoff. Anything not wrapped in it is
// treated as fatal.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Retryable wraps err as transient.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err is a transient provider failure.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
