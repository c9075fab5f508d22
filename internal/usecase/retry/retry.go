// Package retry wraps a single operation in a bounded retry loop with
// exponential backoff. The loop is an explicit, parameterized function rather
// than decorator-style control flow, so policies are testable in isolation.
package retry

import (
	"context"
	"time"
)

// Policy describes a bounded retry schedule.
type Policy struct {
	MaxAttempts int           // total attempts, not re-tries
	Base        time.Duration // delay before the second attempt
	Cap         time.Duration // backoff ceiling
}

// DefaultPolicy matches the search backend schedule: 3 attempts with delays
// of 200ms and 400ms, capped at 1s.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Base: 200 * time.Millisecond, Cap: time.Second}
}

// Do invokes op until it succeeds or the attempt ceiling is reached, sleeping
// Delay(n) before attempt n. Any error is retryable; the final error is
// returned to the caller on exhaustion. Sleeps respect ctx cancellation, in
// which case the context error is returned.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for n := 1; n <= attempts; n++ {
		if n > 1 {
			if serr := sleep(ctx, p.Delay(n)); serr != nil {
				return serr
			}
		}
		if err = op(ctx); err == nil {
			return nil
		}
	}
	return err
}

// Delay returns the wait before attempt n (1-based): min(base*2^(n-2), cap)
// for n >= 2, zero otherwise.
func (p Policy) Delay(n int) time.Duration {
	if n < 2 || p.Base <= 0 {
		return 0
	}
	d := p.Base << (n - 2)
	if p.Cap > 0 && d > p.Cap {
		return p.Cap
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
