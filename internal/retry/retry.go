// Package retry retries transient failures with exponential backoff.
package retry

import (
	"context"
	"time"

	"github.com/spetersoncode/codison"
)

// effectiveDelay honors the server's Retry-After when it is longer than the
// configured backoff.
func effectiveDelay(configured time.Duration, err error) time.Duration {
	if server := codison.RetryAfterOf(err); server > configured {
		return server
	}
	return configured
}

// Do executes fn until it succeeds, returns a non-transient error, or the
// attempts are exhausted. Backoff waits respect ctx.
func Do[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := max(cfg.MaxAttempts, 1)
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return zero, err
		}

		// Don't sleep after the last attempt
		if attempt < attempts-1 {
			delay := effectiveDelay(cfg.Delay(attempt), err)
			if cfg.OnRetry != nil {
				cfg.OnRetry(attempt+1, delay, err)
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}
	}

	return zero, lastErr
}

// DoStream is like Do but for functions that return a channel.
// It retries the stream connection establishment, not individual chunks.
func DoStream[T any](ctx context.Context, cfg Config, fn func() (<-chan T, error)) (<-chan T, error) {
	return Do(ctx, cfg, fn)
}
