package factory

import (
	"fmt"

	"lus-laboris-api/pkg/llm"
	"lus-laboris-api/pkg/llm/gemini"
	"lus-laboris-api/pkg/llm/openai"
)

func NewLLMProvider(providerType, modelName, apiKey string) (llm.LLMProvider, error) {
	switch providerType {
	case "openai":
		if modelName == "" {
			modelName = "gpt-4o-mini" // Default
		}
		return openai.NewOpenAIProvider(apiKey, modelName)
	case "gemini":
		if modelName == "" {
			modelName = "gemini-2.0-flash" // Default
		}
		return gemini.NewGeminiProvider(apiKey, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
