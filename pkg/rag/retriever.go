package rag

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"lus-laboris-api/pkg/embedding"
	"lus-laboris-api/pkg/rerank"
	"lus-laboris-api/pkg/vectorstore"
)

// RerankStats describes what the reranking pass did, including the failure
// case where the original ordering was kept.
type RerankStats struct {
	Applied           bool
	ModelName         string
	DocumentsReranked int
	DocumentsReturned int
	MinScore          float64
	MaxScore          float64
	MeanScore         float64
	Err               error
}

// RetrievalResult carries the retrieved documents plus the per-stage timings
// the caller reports to monitoring.
type RetrievalResult struct {
	Documents        []Document
	SearchResults    int
	EmbeddingSeconds float64
	SearchSeconds    float64
	RerankSeconds    float64
	Rerank           RerankStats
}

// Retriever embeds a query, searches the vector store and optionally reranks
// the candidates with a cross-encoder.
type Retriever struct {
	embedder   embedding.EmbeddingProvider
	store      vectorstore.VectorStore
	reranker   rerank.Reranker
	collection string
	logger     *log.Logger
}

// NewRetriever creates a retriever. Pass a nil reranker to disable the
// reranking pass.
func NewRetriever(
	embedder embedding.EmbeddingProvider,
	store vectorstore.VectorStore,
	reranker rerank.Reranker,
	collection string,
	logger *log.Logger,
) *Retriever {
	return &Retriever{
		embedder:   embedder,
		store:      store,
		reranker:   reranker,
		collection: collection,
		logger:     logger,
	}
}

// Retrieve runs the retrieval stage for a query. Reranking failures are
// recorded in the result instead of returned: the vector-search ordering is
// good enough to answer from.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) (*RetrievalResult, error) {
	result := &RetrievalResult{}

	// 1. Embed the query
	embeddingStart := time.Now()
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embed query: no vector returned")
	}
	result.EmbeddingSeconds = time.Since(embeddingStart).Seconds()

	// 2. Search with a wider pool when reranking will narrow it down
	limit := topK
	if r.reranker != nil {
		limit = topK * 2
	}

	searchStart := time.Now()
	hits, err := r.store.Search(ctx, r.collection, vectors[0], uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	result.SearchSeconds = time.Since(searchStart).Seconds()
	result.SearchResults = len(hits)

	documents := make([]Document, len(hits))
	for i, hit := range hits {
		documents[i] = Document{
			ID:      hit.ID,
			Score:   hit.Score,
			Payload: hit.Payload,
		}
	}

	// 3. Rerank when enabled and there is something to rerank
	if r.reranker == nil || len(documents) == 0 {
		result.Documents = documents
		return result, nil
	}

	rerankStart := time.Now()
	result.Documents, result.Rerank = r.rerankDocuments(ctx, query, documents, topK)
	result.RerankSeconds = time.Since(rerankStart).Seconds()
	return result, nil
}

func (r *Retriever) rerankDocuments(ctx context.Context, query string, documents []Document, topK int) ([]Document, RerankStats) {
	texts := make([]string, len(documents))
	for i, doc := range documents {
		texts[i] = doc.RerankText()
	}

	scores, err := r.reranker.Score(ctx, query, texts)
	if err != nil {
		r.logger.Printf("[RETRIEVER] Reranking failed, keeping original order: %v", err)
		return documents, RerankStats{Applied: false, Err: err}
	}

	minScore, maxScore, sum := scores[0], scores[0], 0.0
	for i := range documents {
		score := scores[i]
		documents[i].RerankScore = &score
		if score < minScore {
			minScore = score
		}
		if score > maxScore {
			maxScore = score
		}
		sum += score
	}

	sort.SliceStable(documents, func(i, j int) bool {
		return *documents[i].RerankScore > *documents[j].RerankScore
	})

	reranked := documents
	if len(reranked) > topK {
		reranked = reranked[:topK]
	}

	r.logger.Printf("[RETRIEVER] Reranking completed: %d of %d documents kept", len(reranked), len(documents))
	return reranked, RerankStats{
		Applied:           true,
		ModelName:         r.reranker.Model(),
		DocumentsReranked: len(documents),
		DocumentsReturned: len(reranked),
		MinScore:          minScore,
		MaxScore:          maxScore,
		MeanScore:         sum / float64(len(documents)),
	}
}
