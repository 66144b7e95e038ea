package factory

import (
	"fmt"

	"lus-laboris-api/pkg/embedding"
	"lus-laboris-api/pkg/embedding/gemini"
	"lus-laboris-api/pkg/embedding/openai"
)

func NewEmbeddingProvider(providerType, model, apiKey string, dimensions int) (embedding.EmbeddingProvider, error) {
	switch providerType {
	case "openai":
		if model == "" {
			model = "text-embedding-3-small" // Default
		}
		if dimensions <= 0 {
			dimensions = 1536
		}
		return openai.NewOpenAIProvider(apiKey, model, dimensions)
	case "gemini":
		if model == "" {
			model = "text-embedding-004" // Default
		}
		if dimensions <= 0 {
			dimensions = 768
		}
		return gemini.NewGeminiProvider(apiKey, model, dimensions), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", providerType)
	}
}
