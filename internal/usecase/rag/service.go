// Package rag composes cache, breaker, retry, search, and rerank into the
// retrieval pipeline, and chunk/embed/upsert into the ingest pipeline.
package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kareline/raggate/internal/domain"
	"github.com/kareline/raggate/internal/domain/chunk"
	"github.com/kareline/raggate/internal/metrics"
	"github.com/kareline/raggate/internal/usecase/retry"
)

// embedConcurrency bounds parallel embedding calls during ingest.
const embedConcurrency = 4

// Options holds pipeline tuning knobs.
type Options struct {
	CacheTTL    time.Duration // positive-result cache lifetime
	EmptyTTL    time.Duration // short lifetime for empty result sets
	TripWindow  time.Duration // how long the breaker stays open after a failure
	Retry       retry.Policy
	ChunkWords  int
	ChunkStride int // overlap between consecutive chunks, in words
}

// Service is the retrieval/ingest orchestrator.
type Service struct {
	keys     KeyDeriver
	cache    ResultCache
	embedder domain.Embedder
	searcher Searcher
	upserter Upserter
	reranker Reranker
	brk      CircuitBreaker
	opts     Options
	logger   *zap.Logger
}

// New creates the pipeline service. reranker may be nil when no LLM is
// configured.
func New(
	keys KeyDeriver,
	cache ResultCache,
	embedder domain.Embedder,
	searcher Searcher,
	upserter Upserter,
	reranker Reranker,
	brk CircuitBreaker,
	opts Options,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		keys:     keys,
		cache:    cache,
		embedder: embedder,
		searcher: searcher,
		upserter: upserter,
		reranker: reranker,
		brk:      brk,
		opts:     opts,
		logger:   logger,
	}
}

// Query runs the guarded retrieval pipeline: cache lookup, breaker check,
// embed, retried KNN search, optional rerank, cache fill.
//
// A failed key derivation is treated as a cache miss, not an error: the
// request proceeds uncached. When the breaker is open, a cached response
// still serves; otherwise the call fails with domain.ErrCircuitOpen without
// touching the backend.
func (s *Service) Query(ctx context.Context, q domain.Query) ([]domain.Hit, error) {
	key, err := s.keys.Key(ctx, q)
	if err != nil {
		s.logger.Warn("cache key derivation failed, serving uncached", zap.Error(err))
		key = ""
	}

	if !s.brk.Allowed() {
		if hits, ok := s.cachedHits(ctx, key); ok {
			metrics.CacheTotal.WithLabelValues("hit").Inc()
			return hits, nil
		}
		metrics.CircuitOpenTotal.Inc()
		return nil, domain.ErrCircuitOpen
	}

	if hits, ok := s.cachedHits(ctx, key); ok {
		metrics.CacheTotal.WithLabelValues("hit").Inc()
		return hits, nil
	}
	metrics.CacheTotal.WithLabelValues("miss").Inc()

	emb, err := s.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var hits []domain.Hit
	err = s.opts.Retry.Do(ctx, func(ctx context.Context) error {
		var serr error
		hits, serr = s.searcher.SearchKNN(ctx, emb.Embedding, q.TopK)
		return serr
	})
	if err != nil {
		metrics.SearchErrorsTotal.Inc()
		s.logger.Warn("search backend failed after retries", zap.Error(err))
		s.brk.Trip(s.opts.TripWindow)

		// A concurrent request may have filled the cache while we retried.
		if cached, ok := s.cachedHits(ctx, key); ok {
			metrics.CacheTotal.WithLabelValues("hit").Inc()
			return cached, nil
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrSearchFailed, err)
	}
	s.brk.Close()

	if q.WantRerank && s.reranker != nil {
		hits = s.reranker.Rerank(ctx, q.Text, hits)
	}

	s.storeHits(ctx, key, hits)
	return hits, nil
}

// Ingest chunks the document, embeds every chunk, writes the points, and
// bumps the collection version so stale cache keys stop resolving. The chunk
// count is returned.
func (s *Service) Ingest(ctx context.Context, doc domain.Document) (int, error) {
	chunks := chunk.Collect(doc.Text, s.opts.ChunkWords, s.opts.ChunkStride)
	if len(chunks) == 0 {
		chunks = []string{doc.Text}
	}

	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for i, text := range chunks {
		g.Go(func() error {
			emb, err := s.embedder.Embed(gctx, text)
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", i, err)
			}
			vectors[i] = emb.Embedding
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrIngestFailed, err)
	}

	if err := s.upserter.Upsert(ctx, doc, chunks, vectors); err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrIngestFailed, err)
	}

	if err := s.keys.BumpVersion(ctx); err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrIngestFailed, err)
	}

	s.logger.Info("document ingested",
		zap.Int64("doc_id", doc.ID),
		zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// IngestResult is the per-document outcome of a batch ingest.
type IngestResult struct {
	DocID  int64
	Chunks int
	Err    error
}

// IngestBatch ingests documents sequentially, one result per document. A
// failed document does not stop the rest of the batch.
func (s *Service) IngestBatch(ctx context.Context, docs []domain.Document) []IngestResult {
	results := make([]IngestResult, len(docs))
	for i, doc := range docs {
		n, err := s.Ingest(ctx, doc)
		results[i] = IngestResult{DocID: doc.ID, Chunks: n, Err: err}
	}
	return results
}

func (s *Service) cachedHits(ctx context.Context, key string) ([]domain.Hit, bool) {
	if key == "" {
		return nil, false
	}
	payload, ok := s.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var hits []domain.Hit
	if err := json.Unmarshal(payload, &hits); err != nil {
		s.logger.Warn("corrupt cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return hits, true
}

func (s *Service) storeHits(ctx context.Context, key string, hits []domain.Hit) {
	if key == "" {
		return
	}
	payload, err := json.Marshal(hits)
	if err != nil {
		s.logger.Warn("marshal hits for cache", zap.Error(err))
		return
	}
	ttl := s.opts.CacheTTL
	if len(hits) == 0 {
		ttl = s.opts.EmptyTTL
	}
	s.cache.Set(ctx, key, payload, ttl)
}
