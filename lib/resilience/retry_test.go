package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	n, err := Retry(context.Background(), RetryConfig{Attempts: 3}, "op", func(int) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 || calls != 1 {
		t.Errorf("expected 1 attempt, got n=%d calls=%d", n, calls)
	}
}

func TestRetryEventuallySucceeds(t *testing.T) {
	n, err := Retry(context.Background(), RetryConfig{Attempts: 5, Delay: time.Millisecond}, "op", func(attempt int) error {
		if attempt < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
}

func TestRetryExhausted(t *testing.T) {
	cause := errors.New("refused")
	calls := 0
	start := time.Now()
	n, err := Retry(context.Background(), RetryConfig{Attempts: 4, Delay: 5 * time.Millisecond}, "open", func(int) error {
		calls++
		return cause
	})

	if n != 4 || calls != 4 {
		t.Errorf("expected 4 attempts, got n=%d calls=%d", n, calls)
	}
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Errorf("expected ErrRetriesExhausted, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected last cause in error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("expected at least 3 delays, took %v", elapsed)
	}
}

func TestRetryZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	n, _ := Retry(context.Background(), RetryConfig{}, "op", func(int) error {
		calls++
		return errors.New("x")
	})
	if n != 1 || calls != 1 {
		t.Errorf("expected a single attempt, got n=%d calls=%d", n, calls)
	}
}

func TestRetryStopsOnContextDone(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	calls := 0
	n, err := Retry(ctx, RetryConfig{Attempts: 100, Delay: time.Second}, "op", func(int) error {
		calls++
		return errors.New("x")
	})
	if calls != 1 || n != 1 {
		t.Errorf("expected retry to stop after first attempt, got n=%d calls=%d", n, calls)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded in error, got %v", err)
	}
}
