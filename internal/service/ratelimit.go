package service

import (
	"context"
	"time"

	"github.com/codex-app/codex/internal/constants"
	"github.com/codex-app/codex/pkg/ctxutil"
	"github.com/codex-app/codex/pkg/logger"
)

// CounterStore is the shared counter backend (Redis in production).
// Counters carry a TTL establishing the rate-limit window.
type CounterStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	GetCount(ctx context.Context, key string) (int64, time.Duration, error)
	Del(ctx context.Context, keys ...string) error
}

// RateLimitResult reports whether an identity is currently throttled
// and how long until the window opens again.
type RateLimitResult struct {
	Limited    bool
	RetryAfter time.Duration
}

// RateLimitService throttles login attempts with two independent
// counters per attempt: one per client IP, one per target email.
// The backend is best-effort: when it is down or disabled the check
// fails open so a legitimate login is never blocked by counter
// infrastructure.
type RateLimitService struct {
	store      CounterStore
	ipLimit    int64
	emailLimit int64
	window     time.Duration
}

func NewRateLimitService(store CounterStore, ipLimit, emailLimit int, window time.Duration) *RateLimitService {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RateLimitService{
		store:      store,
		ipLimit:    int64(ipLimit),
		emailLimit: int64(emailLimit),
		window:     window,
	}
}

// Check consults both counters. Whichever trips first determines the
// rejection; retry-after is the remaining window of the tripped
// counter.
func (s *RateLimitService) Check(ctx context.Context, ip, email string) RateLimitResult {
	ctx = ctxutil.NewContext(ctx, "service", "Check")

	ipCount, ipTTL, err := s.store.GetCount(ctx, constants.LoginIPKeyPrefix+ip)
	if err != nil {
		logger.WarnWithContext(ctx, "Rate limit backend unavailable, failing open").
			Err(err).
			Log()
		return RateLimitResult{}
	}
	if ipCount >= s.ipLimit {
		return RateLimitResult{Limited: true, RetryAfter: s.retryAfter(ipTTL)}
	}

	emailCount, emailTTL, err := s.store.GetCount(ctx, constants.LoginEmailKeyPrefix+email)
	if err != nil {
		logger.WarnWithContext(ctx, "Rate limit backend unavailable, failing open").
			Err(err).
			Log()
		return RateLimitResult{}
	}
	if emailCount >= s.emailLimit {
		return RateLimitResult{Limited: true, RetryAfter: s.retryAfter(emailTTL)}
	}

	return RateLimitResult{}
}

// RecordFailure increments both counters. The first failure in a
// fresh window establishes the window start via the key TTL.
func (s *RateLimitService) RecordFailure(ctx context.Context, ip, email string) {
	ctx = ctxutil.NewContext(ctx, "service", "RecordFailure")

	if _, err := s.store.IncrWithTTL(ctx, constants.LoginIPKeyPrefix+ip, s.window); err != nil {
		logger.WarnWithContext(ctx, "Failed to record rate limit failure for IP").
			Err(err).
			Log()
	}
	if _, err := s.store.IncrWithTTL(ctx, constants.LoginEmailKeyPrefix+email, s.window); err != nil {
		logger.WarnWithContext(ctx, "Failed to record rate limit failure for email").
			Err(err).
			Log()
	}
}

// Reset clears both counters after a successful authentication.
func (s *RateLimitService) Reset(ctx context.Context, ip, email string) {
	ctx = ctxutil.NewContext(ctx, "service", "Reset")

	err := s.store.Del(ctx, constants.LoginIPKeyPrefix+ip, constants.LoginEmailKeyPrefix+email)
	if err != nil {
		logger.WarnWithContext(ctx, "Failed to reset rate limit counters").
			Err(err).
			Log()
	}
}

// retryAfter guards against backends that report no TTL for an
// existing key: callers still get a sane positive wait.
func (s *RateLimitService) retryAfter(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return s.window
	}
	return ttl
}
