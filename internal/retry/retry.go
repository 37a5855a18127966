package retry

import (
	"context"
	"time"
)

// Policy describes a bounded retry schedule.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Backoff     func(attempt int, delay time.Duration) time.Duration
}

// FixedBackoff waits the same delay between every attempt.
func FixedBackoff(attempt int, delay time.Duration) time.Duration {
	return delay
}

// ExponentialBackoff doubles the delay after each attempt.
func ExponentialBackoff(attempt int, delay time.Duration) time.Duration {
	return delay * time.Duration(1<<attempt)
}

// Do runs op until it succeeds, the attempts are exhausted, or ctx is
// cancelled. The last error is returned. attempt passed to Backoff is
// zero-based.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	backoff := p.Backoff
	if backoff == nil {
		backoff = FixedBackoff
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == p.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(attempt, p.Delay)):
		}
	}

	return lastErr
}
