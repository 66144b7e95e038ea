package openai

import (
	"context"
	"fmt"

	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"lus-laboris-api/pkg/embedding"
)

type OpenAIProvider struct {
	model      string
	dimensions int
	client     *lcopenai.LLM
}

var _ embedding.EmbeddingProvider = &OpenAIProvider{}

func NewOpenAIProvider(apiKey, model string, dimensions int) (*OpenAIProvider, error) {
	client, err := lcopenai.New(
		lcopenai.WithToken(apiKey),
		lcopenai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("initialize openai client: %w", err)
	}

	return &OpenAIProvider{
		model:      model,
		dimensions: dimensions,
		client:     client,
	}, nil
}

func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := p.client.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("openai embedding failed: %w", err)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d texts", len(vectors), len(texts))
	}

	return vectors, nil
}

func (p *OpenAIProvider) Model() string {
	return p.model
}

func (p *OpenAIProvider) Dimensions() int {
	return p.dimensions
}
