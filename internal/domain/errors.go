package domain

import "errors"

var (
	// ErrRateLimited signals a per-client rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrCircuitOpen signals that the search backend breaker is open and no
	// cached response was available.
	ErrCircuitOpen = errors.New("circuit open")
	// ErrSearchFailed signals that the search backend failed after retries
	// and no cached response was available.
	ErrSearchFailed = errors.New("search failed")
	// ErrIngestFailed signals a chunk/embed/upsert failure during ingestion.
	ErrIngestFailed = errors.New("ingest failed")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)
