package vectorstore

import (
	"context"
)

// Point is a single embedded document ready for insertion.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]interface{}
}

// SearchResult is a raw similarity hit returned by the store.
type SearchResult struct {
	ID      string
	Score   float32
	Payload map[string]interface{}
}

// CollectionInfo describes a collection for the management endpoints.
type CollectionInfo struct {
	Name        string `json:"name"`
	PointsCount uint64 `json:"points_count"`
	VectorSize  uint64 `json:"vector_size"`
	Distance    string `json:"distance"`
	Status      string `json:"status"`
}

// VectorStore defines the contract for the vector database backend
type VectorStore interface {
	// EnsureCollection creates the collection if it does not exist yet
	EnsureCollection(ctx context.Context, name string, vectorSize uint64) error

	// DeleteCollection removes a collection and all its points
	DeleteCollection(ctx context.Context, name string) error

	// ListCollections returns the names of all collections
	ListCollections(ctx context.Context) ([]string, error)

	// Describe returns collection metadata, or an error if it does not exist
	Describe(ctx context.Context, name string) (*CollectionInfo, error)

	// Upsert inserts or replaces the given points
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns the top hits for the query vector, best first
	Search(ctx context.Context, collection string, vector []float32, limit uint64) ([]SearchResult, error)

	// Healthy reports whether the backend answers its health check
	Healthy(ctx context.Context) bool

	Close() error
}
