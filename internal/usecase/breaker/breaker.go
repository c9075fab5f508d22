// Package breaker implements a process-wide circuit breaker guarding the
// search backend. One breaker guards the whole backend: outages are assumed
// backend-wide, so there are no per-query or per-tenant circuits.
package breaker

import (
	"sync/atomic"
	"time"
)

// Breaker holds the open-until deadline as a single atomic value, so state
// transitions are lock-free and concurrent requests never observe a torn
// open/closed state. A zero deadline means closed.
//
// There is no distinct half-open trial state: once the deadline passes the
// breaker behaves as closed for the next attempt, which either closes it for
// good or re-trips it for a fresh window.
type Breaker struct {
	openUntil atomic.Int64 // unix nanos; 0 = closed
	now       func() time.Time
}

// New creates a closed breaker.
func New() *Breaker {
	return &Breaker{now: time.Now}
}

// Allowed reports whether calls to the backend may proceed.
func (b *Breaker) Allowed() bool {
	deadline := b.openUntil.Load()
	return deadline == 0 || b.now().UnixNano() >= deadline
}

// Trip opens the breaker for d. Repeated calls each reset the window from
// the current time.
func (b *Breaker) Trip(d time.Duration) {
	b.openUntil.Store(b.now().Add(d).UnixNano())
}

// Close closes the breaker.
func (b *Breaker) Close() {
	b.openUntil.Store(0)
}
