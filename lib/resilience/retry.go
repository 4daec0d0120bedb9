// Package resilience provides resilience patterns for sessionpool.
// This file implements bounded retry with a fixed delay between attempts.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRetriesExhausted is joined with the last attempt's error when every
// attempt failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryConfig configures Retry.
type RetryConfig struct {
	// Attempts is the total number of calls made, including the first one.
	// Values below 1 are treated as 1.
	Attempts int
	// Delay is the pause between consecutive attempts.
	Delay time.Duration
}

// Retry calls fn until it succeeds or cfg.Attempts calls have been made,
// sleeping cfg.Delay in between. The sleep is cut short if ctx is done, in
// which case no further attempt is made. It returns the number of calls
// made and, on failure, the last error joined with ErrRetriesExhausted.
func Retry(ctx context.Context, cfg RetryConfig, name string, fn func(attempt int) error) (int, error) {
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		lastErr = fn(i)
		if lastErr == nil {
			return i, nil
		}

		log.WithField("operation", name).
			WithField("attempt", i).
			WithField("attempts", attempts).
			WithError(lastErr).
			Debug("attempt failed")

		if i == attempts {
			break
		}
		if err := sleepCtx(ctx, cfg.Delay); err != nil {
			return i, errors.Join(fmt.Errorf("%s: %w", name, ErrRetriesExhausted), lastErr, err)
		}
	}

	return attempts, errors.Join(fmt.Errorf("%s: %w", name, ErrRetriesExhausted), lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
