package events

import "time"

// Event types emitted on the bus.
const (
	TypeQuestionAnswered    = "question.answered"
	TypeEvaluationCompleted = "evaluation.completed"
	TypeIngestionCompleted  = "ingestion.completed"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "question.answered").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent helps embed common logic if needed,
// strictly creating valid implementations is preferred though.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewQuestionAnswered is emitted after every successful answer.
func NewQuestionAnswered(sessionID, question string, documentsRetrieved int, processingSeconds float64) Event {
	return BaseEvent{
		Type: TypeQuestionAnswered,
		Data: map[string]interface{}{
			"session_id":          sessionID,
			"question":            question,
			"documents_retrieved": documentsRetrieved,
			"processing_seconds":  processingSeconds,
		},
		OccurredAt: time.Now(),
	}
}

// NewEvaluationCompleted is emitted when the background evaluation of an
// answer finishes. OverallQuality may be nil when every sub-check failed.
func NewEvaluationCompleted(sessionID string, overallQuality interface{}, evalSeconds float64) Event {
	return BaseEvent{
		Type: TypeEvaluationCompleted,
		Data: map[string]interface{}{
			"session_id":        sessionID,
			"overall_quality":   overallQuality,
			"eval_time_seconds": evalSeconds,
		},
		OccurredAt: time.Now(),
	}
}

// NewIngestionCompleted is emitted when a load-to-vectorstore job finishes.
func NewIngestionCompleted(jobID, collection string, articlesLoaded int) Event {
	return BaseEvent{
		Type: TypeIngestionCompleted,
		Data: map[string]interface{}{
			"job_id":          jobID,
			"collection":      collection,
			"articles_loaded": articlesLoaded,
		},
		OccurredAt: time.Now(),
	}
}
