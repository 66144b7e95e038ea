package rag

import (
	"context"
	"fmt"
	"log"
	"time"

	"lus-laboris-api/pkg/llm"
)

const (
	generationTemperature = 0.2
	generationMaxTokens   = 1500

	maxGenerationAttempts = 3
	backoffInitial        = 2 * time.Second
	backoffMax            = 60 * time.Second
)

// Generator produces the final answer from the built prompt, retrying
// transient LLM failures with exponential backoff.
type Generator struct {
	provider llm.LLMProvider
	logger   *log.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewGenerator creates a new answer generator
func NewGenerator(provider llm.LLMProvider, logger *log.Logger) *Generator {
	return &Generator{
		provider: provider,
		logger:   logger,
		sleep:    sleepContext,
	}
}

// Generate sends the prompt to the LLM. Up to three attempts are made; the
// wait doubles from two seconds and is capped at one minute.
func (g *Generator) Generate(ctx context.Context, promptText string) (string, error) {
	history := []llm.Message{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: promptText},
	}

	delay := backoffInitial
	var lastErr error
	for attempt := 1; attempt <= maxGenerationAttempts; attempt++ {
		response, err := g.provider.Chat(ctx, history,
			llm.WithTemperature(generationTemperature),
			llm.WithMaxTokens(generationMaxTokens),
		)
		if err == nil {
			if attempt > 1 {
				g.logger.Printf("[GENERATION] Answer generated on attempt %d", attempt)
			}
			return response, nil
		}

		lastErr = err
		g.logger.Printf("[GENERATION] LLM attempt %d/%d failed: %v", attempt, maxGenerationAttempts, err)
		if attempt == maxGenerationAttempts {
			break
		}

		if err := g.sleep(ctx, delay); err != nil {
			return "", err
		}
		delay *= 2
		if delay > backoffMax {
			delay = backoffMax
		}
	}

	return "", fmt.Errorf("llm generation failed after %d attempts: %w", maxGenerationAttempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
