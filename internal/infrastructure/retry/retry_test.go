package retry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"adscope/internal/infrastructure/retry"
)

func fastConfig() retry.Config {
	return retry.Config{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 1.5,
	}
}

func TestWithRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	result, err := retry.WithRetry(context.Background(), fastConfig(), "test", func() (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" || calls != 1 {
		t.Fatalf("result=%q calls=%d, want ok/1", result, calls)
	}
}

func TestWithRetryRetriesTransient(t *testing.T) {
	calls := 0
	result, err := retry.WithRetry(context.Background(), fastConfig(), "test", func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("request failed: 503 service unavailable")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 || calls != 3 {
		t.Fatalf("result=%d calls=%d, want 42/3", result, calls)
	}
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := retry.WithRetry(context.Background(), fastConfig(), "test", func() (int, error) {
		calls++
		return 0, errors.New("connection reset by peer")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Fatalf("calls=%d, want 3", calls)
	}
}

func TestWithRetryPermanentAbortsImmediately(t *testing.T) {
	calls := 0
	sentinel := errors.New("credits exhausted")
	_, err := retry.WithRetry(context.Background(), fastConfig(), "test", func() (int, error) {
		calls++
		return 0, retry.MarkPermanent(sentinel)
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err=%v, want wrapped sentinel", err)
	}
	if calls != 1 {
		t.Fatalf("calls=%d, want 1", calls)
	}
}

func TestWithRetryNonTransientAbortsImmediately(t *testing.T) {
	calls := 0
	_, err := retry.WithRetry(context.Background(), fastConfig(), "test", func() (int, error) {
		calls++
		return 0, fmt.Errorf("invalid request body")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls=%d, want 1", calls)
	}
}

func TestWithRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	cfg := retry.Config{
		MaxAttempts:   5,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2,
	}
	_, err := retry.WithRetry(ctx, cfg, "test", func() (int, error) {
		calls++
		cancel()
		return 0, errors.New("timeout waiting for response")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Fatalf("calls=%d, want 1", calls)
	}
}
