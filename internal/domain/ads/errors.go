package ads

import (
	"errors"
	"fmt"
	"time"
)

// CreditExhaustedError is returned when the ad-library provider reports the
// account is out of credits. Further calls will fail until a top-up.
type CreditExhaustedError struct {
	CreditsRemaining int
	TopupURL         string
}

func (e *CreditExhaustedError) Error() string {
	return fmt.Sprintf("ad-library credits exhausted (%d remaining), top up at %s", e.CreditsRemaining, e.TopupURL)
}

// RateLimitedError is returned when the provider asks us to back off.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("ad-library rate limit exceeded, retry after %s", e.RetryAfter)
	}
	return "ad-library rate limit exceeded"
}

// IsProviderExhausted reports whether err is a provider-wide condition that
// makes every further call in a batch pointless.
func IsProviderExhausted(err error) bool {
	var credit *CreditExhaustedError
	var rate *RateLimitedError
	return errors.As(err, &credit) || errors.As(err, &rate)
}
