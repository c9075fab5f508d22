package rag

import (
	"context"
	"time"

	"github.com/kareline/raggate/internal/domain"
)

// KeyDeriver produces version-scoped cache keys and owns the collection
// version counter.
type KeyDeriver interface {
	Key(ctx context.Context, q domain.Query) (string, error)
	BumpVersion(ctx context.Context) error
}

// ResultCache stores serialized hit lists. Get misses on any store failure;
// Set never reports one.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration)
}

// Searcher runs KNN retrieval against the vector backend.
type Searcher interface {
	SearchKNN(ctx context.Context, vector []float32, k int) ([]domain.Hit, error)
}

// Upserter writes chunk points to the vector backend.
type Upserter interface {
	Upsert(ctx context.Context, doc domain.Document, chunks []string, vectors [][]float32) error
}

// Reranker optionally reorders hits by relevance. Implementations never fail
// the request; on any internal error they return the input unchanged.
type Reranker interface {
	Rerank(ctx context.Context, query string, hits []domain.Hit) []domain.Hit
}

// CircuitBreaker guards the search backend.
type CircuitBreaker interface {
	Allowed() bool
	Trip(d time.Duration)
	Close()
}
