package queue

import (
	"compress/flate"
	"compress/gzip"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/ternarybob/autoclass/internal/models"
)

// RetryPolicy defines task retry behavior with exponential backoff
type RetryPolicy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// NewRetryPolicy creates a default retry policy
func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:       5,
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        5 * time.Minute,
		BackoffMultiplier: 2.0,
	}
}

// ShouldRetry reports whether a task that failed on its attempt-th delivery (1-based) runs again
func (p *RetryPolicy) ShouldRetry(attempt int, err error) bool {
	if err == nil || attempt >= p.MaxAttempts {
		return false
	}
	return IsRetryable(err)
}

// CalculateBackoff calculates the backoff duration with exponential backoff and jitter.
// attempt is 0 for the first retry.
func (p *RetryPolicy) CalculateBackoff(attempt int) time.Duration {
	backoff := float64(p.InitialBackoff) * math.Pow(p.BackoffMultiplier, float64(attempt))
	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}

	// Add jitter (±25%)
	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	backoff += jitter

	if backoff < 0 {
		backoff = float64(p.InitialBackoff)
	}

	return time.Duration(backoff)
}

type nonRetryableError struct {
	err error
}

func (e *nonRetryableError) Error() string { return e.err.Error() }
func (e *nonRetryableError) Unwrap() error { return e.err }

// NonRetryable marks err so the task fails on this delivery
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &nonRetryableError{err: err}
}

// PanicError wraps a panic recovered at the task boundary
type PanicError struct {
	Value interface{}
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// IsRetryable classifies err. Programmer errors (panics), integrity violations, invalid
// requests and decompression errors fail immediately; everything else is retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var nr *nonRetryableError
	if errors.As(err, &nr) {
		return false
	}

	var pe *PanicError
	if errors.As(err, &pe) {
		return false
	}

	var corrupt flate.CorruptInputError
	if errors.As(err, &corrupt) {
		return false
	}

	switch {
	case errors.Is(err, models.ErrIntegrity),
		errors.Is(err, models.ErrCannotMerge),
		errors.Is(err, models.ErrInvalidRequest),
		errors.Is(err, models.ErrInvalidStatus),
		errors.Is(err, models.ErrClassifyFailed),
		errors.Is(err, gzip.ErrHeader),
		errors.Is(err, gzip.ErrChecksum):
		return false
	}

	return true
}
