package errors

import (
	"fmt"
	"time"
)

// RateLimitedError reports a throttled login together with the
// remaining wait, so the handler can emit Retry-After and timeLeft.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many login attempts, retry after %s", e.RetryAfter)
}

// Unwrap lets errors.Is(err, ErrRateLimited) hold.
func (e *RateLimitedError) Unwrap() error {
	return ErrRateLimited
}

// VerificationPendingError reports a correct-password login against an
// unverified account. It carries the email and the current code expiry
// so the client can render a countdown.
type VerificationPendingError struct {
	Email     string
	ExpiresAt time.Time
}

func (e *VerificationPendingError) Error() string {
	return "email verification required"
}

func (e *VerificationPendingError) Unwrap() error {
	return ErrVerificationRequired
}
