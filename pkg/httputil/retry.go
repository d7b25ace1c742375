package httputil

import (
	"context"
	"errors"
	"time"
)

// Image download retry policy: three attempts, waiting 1s then 2s.
const (
	DefaultAttempts = 3
	DefaultDelay    = time.Second

	// MaxDelay caps the wait between two attempts.
	MaxDelay = 10 * time.Second
)

// RetryableError marks a transient download failure (connection reset,
// timeout, 5xx) that Retry may attempt again. Any other error, such as a
// 404 for a missing image, ends Retry at once.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retry calls fn up to attempts times, doubling delay after each
// RetryableError up to MaxDelay. It returns nil on the first success, the
// first non-retryable error, the last error once attempts run out, or
// ctx.Err() if ctx ends while waiting.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	attempts = max(attempts, 1)

	var err error
	for i := range attempts {
		if err = fn(); err == nil || !isRetryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		if werr := wait(ctx, delay); werr != nil {
			return werr
		}
		delay = nextDelay(delay)
	}
	return err
}

// RetryWithBackoff retries fn with DefaultAttempts and DefaultDelay.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return Retry(ctx, DefaultAttempts, DefaultDelay, fn)
}

func nextDelay(d time.Duration) time.Duration {
	return min(d*2, MaxDelay)
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}
