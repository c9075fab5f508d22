// Package answer synthesizes a grounded answer from retrieved passages,
// falling back to an extractive stub when no completion capability is
// configured or the call fails.
package answer

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/kareline/raggate/internal/domain"
	"github.com/kareline/raggate/internal/metrics"
)

// maxContextPassages bounds how many passages feed the completion prompt.
const maxContextPassages = 5

// fallbackEmpty is returned when there is nothing to extract from.
const fallbackEmpty = "(no relevant context)"

// Generator produces a free-text answer grounded in the given passages.
type Generator interface {
	GenerateAnswer(ctx context.Context, question string, passages []string) (string, error)
}

// Service generates answers from retrieval hits.
type Service struct {
	gen    Generator
	logger *zap.Logger
}

// New creates an answer service. gen may be nil, in which case answers are
// always extractive.
func New(gen Generator, logger *zap.Logger) *Service {
	return &Service{gen: gen, logger: logger}
}

// Answer produces an answer for the question given ranked hits. Generation
// failures degrade to the extractive fallback; they never fail the request.
func (s *Service) Answer(ctx context.Context, question string, hits []domain.Hit) string {
	if s.gen != nil {
		passages := make([]string, 0, maxContextPassages)
		for _, h := range hits {
			if len(passages) == maxContextPassages {
				break
			}
			passages = append(passages, h.Text)
		}

		text, err := s.gen.GenerateAnswer(ctx, question, passages)
		if err != nil {
			metrics.LLMRequestsTotal.WithLabelValues("answer", "error").Inc()
			s.logger.Warn("answer generation failed, using extractive fallback", zap.Error(err))
		} else if text != "" {
			metrics.LLMRequestsTotal.WithLabelValues("answer", "success").Inc()
			return text
		}
	}

	return extractive(hits)
}

// extractive stitches the top passages together as a degraded answer.
func extractive(hits []domain.Hit) string {
	parts := make([]string, 0, 2)
	for _, h := range hits {
		if len(parts) == 2 {
			break
		}
		if h.Text != "" {
			parts = append(parts, h.Text)
		}
	}
	if len(parts) == 0 {
		return fallbackEmpty
	}
	return strings.Join(parts, " ")
}
