package rerank

import (
	"context"
)

// Reranker scores candidate texts against a query. Higher is more relevant.
type Reranker interface {
	// Score returns one relevance score per text, in input order
	Score(ctx context.Context, query string, texts []string) ([]float64, error)

	// Model reports the cross-encoder model in use
	Model() string
}
