package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"lus-laboris-api/pkg/embedding"
)

type GeminiProvider struct {
	ApiKey     string
	BaseURL    string
	ModelName  string
	dimensions int
	Client     *http.Client
}

var _ embedding.EmbeddingProvider = &GeminiProvider{}

func NewGeminiProvider(apiKey, model string, dimensions int) *GeminiProvider {
	return &GeminiProvider{
		ApiKey:     apiKey,
		BaseURL:    "https://generativelanguage.googleapis.com/v1beta",
		ModelName:  model,
		dimensions: dimensions,
		Client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// --- Request/Response structs (Internal to this package) ---

type embedRequestPart struct {
	Text string `json:"text"`
}

type embedRequestContent struct {
	Parts []embedRequestPart `json:"parts"`
}

type embedRequest struct {
	Model   string              `json:"model"`
	Content embedRequestContent `json:"content"`
}

type batchEmbedRequest struct {
	Requests []embedRequest `json:"requests"`
}

type batchEmbedResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// --- Interface Implementation ---

func (p *GeminiProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	requests := make([]embedRequest, len(texts))
	for i, text := range texts {
		requests[i] = embedRequest{
			Model: "models/" + p.ModelName,
			Content: embedRequestContent{
				Parts: []embedRequestPart{{Text: text}},
			},
		}
	}

	payloadBytes, err := json.Marshal(batchEmbedRequest{Requests: requests})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:batchEmbedContents", p.BaseURL, p.ModelName)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-goog-api-key", p.ApiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer res.Body.Close()

	resBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("error from gemini response, code %d, body %s", res.StatusCode, string(resBytes))
	}

	var batchRes batchEmbedResponse
	if err := json.Unmarshal(resBytes, &batchRes); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if batchRes.Error != nil {
		return nil, fmt.Errorf("gemini api returned error: %s", batchRes.Error.Message)
	}

	if len(batchRes.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(batchRes.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(batchRes.Embeddings))
	for i, e := range batchRes.Embeddings {
		vectors[i] = e.Values
	}
	return vectors, nil
}

func (p *GeminiProvider) Model() string {
	return p.ModelName
}

func (p *GeminiProvider) Dimensions() int {
	return p.dimensions
}
