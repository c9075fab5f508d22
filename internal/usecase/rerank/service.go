// Package rerank reorders search hits by an external relevance judgment,
// degrading to the original order whenever the scoring capability is absent
// or failing. Reranking never fails the overall request.
package rerank

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/kareline/raggate/internal/domain"
	"github.com/kareline/raggate/internal/metrics"
)

// Service orchestrates optional LLM-based reranking.
type Service struct {
	scorer Scorer
	logger *zap.Logger
}

// New creates a rerank service. scorer may be nil, in which case Rerank is a
// passthrough.
func New(scorer Scorer, logger *zap.Logger) *Service {
	return &Service{scorer: scorer, logger: logger}
}

// Rerank reorders hits by descending relevance score, reassigning 1-based
// ranks and marking each hit as reranked. Ties and unscored hits keep their
// original relative order. On any scorer failure the original hits are
// returned untouched.
func (s *Service) Rerank(ctx context.Context, query string, hits []domain.Hit) []domain.Hit {
	if s.scorer == nil || len(hits) == 0 {
		return hits
	}

	passages := make([]string, len(hits))
	for i, h := range hits {
		passages[i] = h.Text
	}

	scores, err := s.scorer.ScorePassages(ctx, query, passages)
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues("rerank", "error").Inc()
		s.logger.Warn("rerank failed, keeping original order", zap.Error(err))
		return hits
	}
	metrics.LLMRequestsTotal.WithLabelValues("rerank", "success").Inc()

	ordered := make([]domain.Hit, len(hits))
	idx := make([]int, len(hits))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})

	for rank, i := range idx {
		h := hits[i]
		h.Rank = rank + 1
		h.Reranked = true
		ordered[rank] = h
	}
	return ordered
}
