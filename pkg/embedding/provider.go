package embedding

import (
	"context"
)

// EmbeddingProvider defines the interface for generating text embeddings
type EmbeddingProvider interface {
	// Embed returns one vector per input text, in input order
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Model reports the embedding model in use
	Model() string

	// Dimensions reports the vector size produced by the model
	Dimensions() int
}
