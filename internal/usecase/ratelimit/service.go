// Package ratelimit bounds per-client request rates with fixed one-minute
// windows backed by shared atomic counters.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// bucketTTL pads the window a bit over a minute so counters outlive their
// window but never accumulate.
const bucketTTL = 70 * time.Second

// store is the consumer interface for counter operations.
type store interface {
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Limiter is a fixed-window rate limiter keyed by (client, minute).
// Window boundaries are exact integer-minute slices: a past minute's count
// never affects the current minute's decision.
type Limiter struct {
	store     store
	perMinute int
	now       func() time.Time
	logger    *zap.Logger
}

// New creates a limiter. perMinute <= 0 disables limiting entirely.
func New(s store, perMinute int, logger *zap.Logger) *Limiter {
	return &Limiter{store: s, perMinute: perMinute, now: time.Now, logger: logger}
}

// Allow reports whether the client may proceed, counting this call against
// the current minute bucket. When the counter store is unavailable the
// limiter fails open and allows the request.
func (l *Limiter) Allow(ctx context.Context, clientID string) bool {
	if l.perMinute <= 0 {
		return true
	}

	bucket := l.now().Unix() / 60
	key := fmt.Sprintf("rl:%s:%d", clientID, bucket)

	n, err := l.store.IncrBy(ctx, key, 1)
	if err != nil {
		l.logger.Warn("rate limit counter unavailable, failing open",
			zap.String("client", clientID), zap.Error(err))
		return true
	}

	if n == 1 {
		if err := l.store.Expire(ctx, key, bucketTTL, false); err != nil {
			l.logger.Warn("failed to set rate bucket expiry",
				zap.String("key", key), zap.Error(err))
		}
	}

	return n <= int64(l.perMinute)
}
