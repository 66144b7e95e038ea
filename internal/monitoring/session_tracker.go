package monitoring

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"lus-laboris-api/internal/pkg/logger"
)

// Action types recorded against a session.
const (
	ActionLLMCall              = "llm_call"
	ActionVectorstoreSearch    = "vectorstore_search"
	ActionEmbeddingGeneration  = "embedding_generation"
	ActionReranking            = "reranking"
	ActionVectorstoreOperation = "vectorstore_operation"
)

const attrTextLimit = 200

// SessionSummary aggregates everything that happened during a session. It is
// produced exactly once, when the session ends.
type SessionSummary struct {
	SessionID         string         `json:"session_id"`
	UserID            string         `json:"user_id,omitempty"`
	StartedAt         string         `json:"started_at,omitempty"`
	EndedAt           string         `json:"ended_at,omitempty"`
	DurationSeconds   float64        `json:"duration_seconds"`
	TotalActions      int            `json:"total_actions"`
	TotalLLMCalls     int            `json:"total_llm_calls"`
	ActionCounts      map[string]int `json:"action_counts,omitempty"`
	ProvidersUsed     []string       `json:"providers_used,omitempty"`
	ModelsUsed        []string       `json:"models_used,omitempty"`
	AvgResponseLength float64        `json:"avg_response_length"`
	ActionsPerMinute  float64        `json:"actions_per_minute"`
}

// ISessionTracker follows a request (or background job) through the pipeline,
// recording every action taken on its behalf and emitting observability spans
// along the way. All methods are safe for concurrent use and never fail:
// tracking problems must not break the request being tracked.
type ISessionTracker interface {
	CreateSession(ctx context.Context, userID string) string
	RecordAction(sessionID, actionType string, details map[string]interface{})
	EndSession(ctx context.Context, sessionID string) SessionSummary
	ActiveSessions() int

	TrackLLMCall(ctx context.Context, sessionID, provider, model, prompt, response string, metadata map[string]interface{})
	TrackVectorstoreSearch(ctx context.Context, sessionID, collection, query string, resultsCount int, durationSeconds float64)
	TrackEmbeddingGeneration(ctx context.Context, sessionID, model string, textCount int, durationSeconds float64)
	TrackReranking(ctx context.Context, sessionID, model string, documentsIn, documentsOut int, durationSeconds float64)
	TrackVectorstoreOperation(ctx context.Context, sessionID, operationType, collection string, metadata map[string]interface{})
}

type actionRecord struct {
	actionType string
	timestamp  time.Time
	details    map[string]interface{}
}

type llmCallRecord struct {
	provider       string
	model          string
	promptLength   int
	responseLength int
	timestamp      time.Time
}

type session struct {
	id        string
	userID    string
	startTime time.Time
	actions   []actionRecord
	llmCalls  []llmCallRecord
}

type sessionTracker struct {
	mu       sync.Mutex
	sessions map[string]*session
	emitter  ISpanEmitter
	log      logger.ILogger
	now      func() time.Time
}

func NewSessionTracker(emitter ISpanEmitter, log logger.ILogger) ISessionTracker {
	return &sessionTracker{
		sessions: make(map[string]*session),
		emitter:  emitter,
		log:      log,
		now:      time.Now,
	}
}

func (t *sessionTracker) CreateSession(ctx context.Context, userID string) string {
	s := &session{
		id:        uuid.NewString(),
		userID:    userID,
		startTime: t.now(),
	}

	t.mu.Lock()
	t.sessions[s.id] = s
	t.mu.Unlock()

	t.emitter.EmitSpan(ctx, "session.start", SpanKindChain, map[string]interface{}{
		"session.id": s.id,
		"user.id":    userID,
	})
	t.log.Debug("monitoring", "session started", map[string]interface{}{
		"session_id": s.id,
		"user_id":    userID,
	})
	return s.id
}

func (t *sessionTracker) RecordAction(sessionID, actionType string, details map[string]interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[sessionID]
	if !ok {
		return
	}
	s.actions = append(s.actions, actionRecord{
		actionType: actionType,
		timestamp:  t.now(),
		details:    details,
	})
}

func (t *sessionTracker) recordLLMCall(sessionID, provider, model string, promptLength, responseLength int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[sessionID]
	if !ok {
		return
	}
	s.llmCalls = append(s.llmCalls, llmCallRecord{
		provider:       provider,
		model:          model,
		promptLength:   promptLength,
		responseLength: responseLength,
		timestamp:      t.now(),
	})
	s.actions = append(s.actions, actionRecord{
		actionType: ActionLLMCall,
		timestamp:  t.now(),
		details: map[string]interface{}{
			"provider": provider,
			"model":    model,
		},
	})
}

// EndSession computes the summary for the session and evicts it. Ending an
// unknown (or already ended) session logs a warning and returns an empty
// summary, so double ends are harmless.
func (t *sessionTracker) EndSession(ctx context.Context, sessionID string) SessionSummary {
	t.mu.Lock()
	s, ok := t.sessions[sessionID]
	if ok {
		delete(t.sessions, sessionID)
	}
	t.mu.Unlock()

	if !ok {
		t.log.Warn("monitoring", "end requested for unknown session", map[string]interface{}{
			"session_id": sessionID,
		})
		return SessionSummary{}
	}

	endTime := t.now()
	summary := t.summarize(s, endTime)

	t.emitter.EmitSpan(ctx, "session.end", SpanKindChain, map[string]interface{}{
		"session.id":          summary.SessionID,
		"user.id":             summary.UserID,
		"duration_seconds":    summary.DurationSeconds,
		"total_actions":       summary.TotalActions,
		"total_llm_calls":     summary.TotalLLMCalls,
		"action_counts":       summary.ActionCounts,
		"providers_used":      summary.ProvidersUsed,
		"models_used":         summary.ModelsUsed,
		"avg_response_length": summary.AvgResponseLength,
		"actions_per_minute":  summary.ActionsPerMinute,
	})
	t.log.Info("monitoring", "session ended", map[string]interface{}{
		"session_id":    summary.SessionID,
		"duration":      summary.DurationSeconds,
		"total_actions": summary.TotalActions,
	})
	return summary
}

func (t *sessionTracker) summarize(s *session, endTime time.Time) SessionSummary {
	duration := endTime.Sub(s.startTime).Seconds()

	actionCounts := make(map[string]int)
	for _, a := range s.actions {
		actionCounts[a.actionType]++
	}

	providerSet := make(map[string]struct{})
	modelSet := make(map[string]struct{})
	totalResponseLength := 0
	for _, c := range s.llmCalls {
		providerSet[c.provider] = struct{}{}
		modelSet[c.model] = struct{}{}
		totalResponseLength += c.responseLength
	}

	avgResponseLength := 0.0
	if len(s.llmCalls) > 0 {
		avgResponseLength = float64(totalResponseLength) / float64(len(s.llmCalls))
	}

	// Short sessions are normalized to a single minute so the rate never
	// explodes for sub-minute requests.
	minutes := duration / 60
	if minutes < 1 {
		minutes = 1
	}
	actionsPerMinute := float64(len(s.actions)) / minutes

	return SessionSummary{
		SessionID:         s.id,
		UserID:            s.userID,
		StartedAt:         s.startTime.UTC().Format(time.RFC3339),
		EndedAt:           endTime.UTC().Format(time.RFC3339),
		DurationSeconds:   duration,
		TotalActions:      len(s.actions),
		TotalLLMCalls:     len(s.llmCalls),
		ActionCounts:      actionCounts,
		ProvidersUsed:     sortedKeys(providerSet),
		ModelsUsed:        sortedKeys(modelSet),
		AvgResponseLength: avgResponseLength,
		ActionsPerMinute:  actionsPerMinute,
	}
}

func (t *sessionTracker) ActiveSessions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

func (t *sessionTracker) TrackLLMCall(ctx context.Context, sessionID, provider, model, prompt, response string, metadata map[string]interface{}) {
	t.recordLLMCall(sessionID, provider, model, len(prompt), len(response))

	attrs := mergeAttrs(metadata, map[string]interface{}{
		"session.id":      sessionID,
		"llm.provider":    provider,
		"llm.model_name":  model,
		"input.value":     truncateText(prompt, attrTextLimit),
		"output.value":    truncateText(response, attrTextLimit),
		"prompt_length":   len(prompt),
		"response_length": len(response),
	})
	t.emitter.EmitSpan(ctx, "llm.call", SpanKindLLM, attrs)
}

func (t *sessionTracker) TrackVectorstoreSearch(ctx context.Context, sessionID, collection, query string, resultsCount int, durationSeconds float64) {
	t.RecordAction(sessionID, ActionVectorstoreSearch, map[string]interface{}{
		"collection":    collection,
		"results_count": resultsCount,
	})

	t.emitter.EmitSpan(ctx, "vectorstore.search", SpanKindRetriever, map[string]interface{}{
		"session.id":       sessionID,
		"collection":       collection,
		"input.value":      truncateText(query, attrTextLimit),
		"results_count":    resultsCount,
		"duration_seconds": durationSeconds,
	})
}

func (t *sessionTracker) TrackEmbeddingGeneration(ctx context.Context, sessionID, model string, textCount int, durationSeconds float64) {
	t.RecordAction(sessionID, ActionEmbeddingGeneration, map[string]interface{}{
		"model":      model,
		"text_count": textCount,
	})

	t.emitter.EmitSpan(ctx, "embedding.generate", SpanKindEmbedding, map[string]interface{}{
		"session.id":       sessionID,
		"embedding.model":  model,
		"text_count":       textCount,
		"duration_seconds": durationSeconds,
	})
}

func (t *sessionTracker) TrackReranking(ctx context.Context, sessionID, model string, documentsIn, documentsOut int, durationSeconds float64) {
	t.RecordAction(sessionID, ActionReranking, map[string]interface{}{
		"model":         model,
		"documents_in":  documentsIn,
		"documents_out": documentsOut,
	})

	t.emitter.EmitSpan(ctx, "rerank.documents", SpanKindReranker, map[string]interface{}{
		"session.id":       sessionID,
		"rerank.model":     model,
		"documents_in":     documentsIn,
		"documents_out":    documentsOut,
		"duration_seconds": durationSeconds,
	})
}

func (t *sessionTracker) TrackVectorstoreOperation(ctx context.Context, sessionID, operationType, collection string, metadata map[string]interface{}) {
	t.RecordAction(sessionID, ActionVectorstoreOperation, map[string]interface{}{
		"operation_type": operationType,
		"collection":     collection,
	})

	attrs := mergeAttrs(metadata, map[string]interface{}{
		"session.id":     sessionID,
		"operation_type": operationType,
		"collection":     collection,
	})
	t.emitter.EmitSpan(ctx, "vectorstore.operation", SpanKindChain, attrs)
}

func mergeAttrs(metadata, base map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(metadata)+len(base))
	for k, v := range metadata {
		out[k] = v
	}
	for k, v := range base {
		out[k] = v
	}
	return out
}

func truncateText(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
