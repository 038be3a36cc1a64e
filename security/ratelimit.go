package security

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/giantswarm/invite-gate/storage"
)

const (
	// DefaultRateWindow is the default rolling window length.
	DefaultRateWindow = 15 * time.Minute

	// DefaultRateLimit is the default number of requests allowed per window.
	DefaultRateLimit = 20
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool
	Count     int // requests inside the window, including this one
	Limit     int
	Remaining int
	// RetryAfter is a conservative wait before the next request can succeed.
	// Zero when Allowed.
	RetryAfter time.Duration
}

// RateLimiter enforces a sliding-window request budget per client key over
// an injected storage.WindowStore. Every call is recorded, allowed or not,
// so a client that keeps hammering stays blocked.
type RateLimiter struct {
	store  storage.WindowStore
	window time.Duration
	limit  int
	now    func() time.Time
	logger *slog.Logger
}

// NewRateLimiter creates a limiter allowing limit requests per window.
// Non-positive values fall back to DefaultRateWindow and DefaultRateLimit.
func NewRateLimiter(store storage.WindowStore, window time.Duration, limit int, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	if window <= 0 {
		logger.Warn("Invalid rate limit window, using default", "window", window, "default", DefaultRateWindow)
		window = DefaultRateWindow
	}
	if limit <= 0 {
		logger.Warn("Invalid rate limit, using default", "limit", limit, "default", DefaultRateLimit)
		limit = DefaultRateLimit
	}
	return &RateLimiter{
		store:  store,
		window: window,
		limit:  limit,
		now:    time.Now,
		logger: logger,
	}
}

// SetClock replaces the time source. Intended for tests.
func (rl *RateLimiter) SetClock(now func() time.Time) {
	if now != nil {
		rl.now = now
	}
}

// Window returns the configured window length.
func (rl *RateLimiter) Window() time.Duration { return rl.window }

// Limit returns the configured number of requests per window.
func (rl *RateLimiter) Limit() int { return rl.limit }

// Allow records a request for key and reports whether it fits the budget.
//
// SECURITY: fails closed. If the store errors, the request is denied and the
// error is returned so the caller can log it.
func (rl *RateLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	count, err := rl.store.Record(ctx, key, rl.now(), rl.window, rl.limit)
	if err != nil {
		rl.logger.Error("Rate limit store failed, denying request", "error", err)
		return Decision{Allowed: false, Limit: rl.limit, RetryAfter: rl.window}, fmt.Errorf("rate limit check: %w", err)
	}

	d := Decision{
		Allowed: count <= rl.limit,
		Count:   count,
		Limit:   rl.limit,
	}
	if d.Allowed {
		d.Remaining = rl.limit - count
	} else {
		// The oldest counted request is at most one window old, so a full
		// window is always enough for it to leave.
		d.RetryAfter = rl.window
	}
	return d, nil
}
