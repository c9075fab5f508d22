package health

import "context"

// StorePinger checks Redis availability (KV cache and vector index share one
// connection).
type StorePinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// BreakerState reports whether the search backend breaker admits calls.
type BreakerState interface {
	Allowed() bool
}
