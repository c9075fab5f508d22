package rerank

import "context"

// Scorer judges passage relevance for a query. Scores are 0–10 keyed by the
// passage's position in the submitted slice; passages missing from the result
// are treated as score 0.
type Scorer interface {
	ScorePassages(ctx context.Context, query string, passages []string) (map[int]float64, error)
}
