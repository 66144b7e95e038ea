package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"lus-laboris-api/pkg/llm"
)

type scriptedLLM struct {
	failures int
	response string
	calls    int

	gotHistory []llm.Message
	gotOptions llm.Options
}

func (s *scriptedLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	s.calls++
	s.gotHistory = history
	for _, opt := range options {
		opt(&s.gotOptions)
	}
	if s.calls <= s.failures {
		return "", errors.New("rate limited")
	}
	return s.response, nil
}

func (s *scriptedLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return s.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, options...)
}

func newTestGenerator(provider llm.LLMProvider) (*Generator, *[]time.Duration) {
	g := NewGenerator(provider, testLogger())
	var delays []time.Duration
	g.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return g, &delays
}

func TestGenerateFirstAttempt(t *testing.T) {
	provider := &scriptedLLM{response: "  El preaviso es de 30 días.  "}
	g, delays := newTestGenerator(provider)

	answer, err := g.Generate(context.Background(), "PREGUNTA: preaviso")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer != "  El preaviso es de 30 días.  " {
		t.Errorf("Generate() = %q", answer)
	}
	if provider.calls != 1 {
		t.Errorf("provider calls = %d, want 1", provider.calls)
	}
	if len(*delays) != 0 {
		t.Errorf("sleeps = %v, want none", *delays)
	}
}

func TestGenerateSendsRoleAndOptions(t *testing.T) {
	provider := &scriptedLLM{response: "Respuesta."}
	g, _ := newTestGenerator(provider)

	if _, err := g.Generate(context.Background(), "PREGUNTA: vacaciones"); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if len(provider.gotHistory) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(provider.gotHistory))
	}
	if provider.gotHistory[0].Role != "system" || provider.gotHistory[0].Content != SystemPrompt {
		t.Errorf("history[0] = %+v, want the system role", provider.gotHistory[0])
	}
	if provider.gotHistory[1].Role != "user" || !strings.Contains(provider.gotHistory[1].Content, "vacaciones") {
		t.Errorf("history[1] = %+v, want the user prompt", provider.gotHistory[1])
	}
	if provider.gotOptions.Temperature != 0.2 {
		t.Errorf("Temperature = %v, want 0.2", provider.gotOptions.Temperature)
	}
	if provider.gotOptions.MaxTokens != 1500 {
		t.Errorf("MaxTokens = %d, want 1500", provider.gotOptions.MaxTokens)
	}
}

func TestGenerateRetriesWithBackoff(t *testing.T) {
	provider := &scriptedLLM{failures: 2, response: "Respuesta."}
	g, delays := newTestGenerator(provider)

	answer, err := g.Generate(context.Background(), "PREGUNTA: aguinaldo")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if answer != "Respuesta." {
		t.Errorf("Generate() = %q", answer)
	}
	if provider.calls != 3 {
		t.Errorf("provider calls = %d, want 3", provider.calls)
	}

	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(*delays) != len(want) {
		t.Fatalf("sleeps = %v, want %v", *delays, want)
	}
	for i, d := range want {
		if (*delays)[i] != d {
			t.Errorf("sleep[%d] = %v, want %v", i, (*delays)[i], d)
		}
	}
}

func TestGenerateExhaustsAttempts(t *testing.T) {
	provider := &scriptedLLM{failures: 10}
	g, delays := newTestGenerator(provider)

	_, err := g.Generate(context.Background(), "PREGUNTA: jornada")
	if err == nil {
		t.Fatal("Generate() error = nil, want failure after retries")
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("Generate() error = %v, want attempt count in message", err)
	}
	if provider.calls != 3 {
		t.Errorf("provider calls = %d, want 3", provider.calls)
	}
	// No sleep after the final attempt.
	if len(*delays) != 2 {
		t.Errorf("sleeps = %v, want 2 entries", *delays)
	}
}

func TestGenerateStopsWhenContextCancelled(t *testing.T) {
	provider := &scriptedLLM{failures: 10}
	g := NewGenerator(provider, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Generate(ctx, "PREGUNTA: multas")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Generate() error = %v, want context.Canceled", err)
	}
	if provider.calls != 1 {
		t.Errorf("provider calls = %d, want 1", provider.calls)
	}
}
