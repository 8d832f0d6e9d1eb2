package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config defines retry behavior for external provider calls.
type Config struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultConfig returns sensible defaults for provider retries.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   3,
		InitialDelay:  250 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 1.5,
	}
}

// Permanent wraps an error so WithRetry gives up immediately.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// MarkPermanent flags err as non-retryable.
func MarkPermanent(err error) error {
	if err == nil {
		return nil
	}
	return &Permanent{Err: err}
}

var transientPatterns = []string{
	"timeout",
	"connection refused",
	"connection reset",
	"temporary failure",
	"429",
	"500",
	"502",
	"503",
	"504",
}

// Func is an operation that can be retried.
type Func[T any] func() (T, error)

// WithRetry executes fn with exponential backoff. Errors marked Permanent
// and errors that don't look transient abort immediately.
func WithRetry[T any](ctx context.Context, cfg Config, operation string, fn Func[T]) (T, error) {
	var zero T
	var lastErr error

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().
					Str("operation", operation).
					Int("attempt", attempt).
					Msg("operation succeeded after retry")
			}
			return result, nil
		}

		lastErr = err

		var permanent *Permanent
		if errors.As(err, &permanent) {
			return zero, permanent.Err
		}
		if !looksTransient(err) {
			log.Debug().
				Err(err).
				Str("operation", operation).
				Int("attempt", attempt).
				Msg("non-retryable error, aborting")
			return zero, err
		}

		if attempt == attempts {
			break
		}

		delay := backoffDelay(attempt, cfg)
		log.Warn().
			Err(err).
			Str("operation", operation).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Dur("retry_delay", delay).
			Msg("retrying operation after error")

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, fmt.Errorf("operation failed after %d attempts: %w", attempts, lastErr)
}

func backoffDelay(attempt int, cfg Config) time.Duration {
	initial := cfg.InitialDelay
	if initial <= 0 {
		initial = 250 * time.Millisecond
	}
	factor := cfg.BackoffFactor
	if factor < 1 {
		factor = 1.5
	}

	backoff := float64(initial) * math.Pow(factor, float64(attempt-1))
	if max := float64(cfg.MaxDelay); cfg.MaxDelay > 0 && backoff > max {
		backoff = max
	}

	// 10% jitter to avoid thundering herd against rate-limited providers.
	jitter := backoff * 0.1 * (2.0*float64(time.Now().UnixNano()%100)/100.0 - 1.0)
	return time.Duration(backoff + jitter)
}

func looksTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
