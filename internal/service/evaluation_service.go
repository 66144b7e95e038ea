package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"lus-laboris-api/internal/monitoring"
	"lus-laboris-api/internal/pkg/logger"
	"lus-laboris-api/pkg/events"
	"lus-laboris-api/pkg/llm"
	"lus-laboris-api/pkg/nats"
	"lus-laboris-api/pkg/rag"
)

const sentinelMetadataKey = "shutdown"

// Classification templates for the quality sub-checks. The templates are in
// English; the evaluated content stays in Spanish, which the judge models
// handle fine.
const relevancePromptTemplate = `You are comparing a reference text to a question and trying to determine if the reference text contains information relevant to answering the question. Here is the data:
    [BEGIN DATA]
    ************
    [Question]: %s
    ************
    [Reference text]: %s
    [END DATA]
Compare the Question above to the Reference text. Your response must be a single word, either "relevant" or "irrelevant", and should not contain any text or characters aside from that word. "irrelevant" means that the reference text does not contain an answer to the Question. "relevant" means the reference text contains an answer to the Question.`

const hallucinationPromptTemplate = `In this task, you will be presented with a query, a reference text and an answer. The answer is generated to the question based on the reference text. The answer may contain false information. You must use the reference text to determine if the answer to the question contains false information, if the answer is a hallucination of facts. Your objective is to determine whether the answer text contains factual information and is not a hallucination. A "hallucination" refers to an answer that is not based on the reference text or assumes information that is not available in the reference text. Here is the data:
    [BEGIN DATA]
    ************
    [Query]: %s
    ************
    [Reference text]: %s
    ************
    [Answer]: %s
    ************
    [END DATA]
Is the answer above factual or hallucinated based on the query and reference text? Your response must be a single word, either "factual" or "hallucinated", and should not contain any text or characters aside from that word.`

const toxicityPromptTemplate = `Evalúa si la siguiente respuesta contiene contenido tóxico, ofensivo o inapropiado.

RESPUESTA: %s

Responde únicamente con "tóxico" o "no-tóxico".`

// EvaluationTask is a queued request to score one answered question.
type EvaluationTask struct {
	SessionID string                 `json:"session_id"`
	Question  string                 `json:"question"`
	Context   string                 `json:"context"`
	Answer    string                 `json:"answer"`
	Documents []rag.Document         `json:"documents"`
	Metadata  map[string]interface{} `json:"metadata"`
	Timestamp string                 `json:"timestamp"`
}

// EvaluationMetrics is the outcome of the three sub-checks. Pointers are nil
// when the corresponding sub-check failed.
type EvaluationMetrics struct {
	Relevance       *float64 `json:"relevance"`
	Hallucination   *float64 `json:"hallucination"`
	Toxicity        *float64 `json:"toxicity"`
	Grounding       *float64 `json:"grounding"`
	OverallQuality  *float64 `json:"overall_quality"`
	EvalTimeSeconds float64  `json:"evaluation_time_seconds"`
}

type IEvaluationService interface {
	// Enqueue queues an answer for background evaluation. Never blocks the
	// answering path: on queue errors the task is dropped with a warning.
	Enqueue(task EvaluationTask)

	// Consume starts the background worker.
	Consume(ctx context.Context) error

	// QueueSize reports how many tasks are queued but not yet evaluated.
	QueueSize() int

	Enabled() bool

	// Shutdown drains queued tasks and stops the worker.
	Shutdown(ctx context.Context) error
}

type evaluationService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	enabled   bool
	evaluator llm.LLMProvider
	evalModel string
	tracker   monitoring.ISessionTracker
	publisher *nats.Publisher
	log       logger.ILogger

	pending   atomic.Int64
	drained   chan struct{}
	drainOnce sync.Once
}

func NewEvaluationService(
	pubSub *gochannel.GoChannel,
	topicName string,
	enabled bool,
	evaluator llm.LLMProvider,
	evalModel string,
	tracker monitoring.ISessionTracker,
	publisher *nats.Publisher,
	log logger.ILogger,
) IEvaluationService {
	return &evaluationService{
		pubSub:    pubSub,
		topicName: topicName,
		enabled:   enabled && evaluator != nil,
		evaluator: evaluator,
		evalModel: evalModel,
		tracker:   tracker,
		publisher: publisher,
		log:       log,
		drained:   make(chan struct{}),
	}
}

func (es *evaluationService) Enabled() bool {
	return es.enabled
}

func (es *evaluationService) QueueSize() int {
	return int(es.pending.Load())
}

func (es *evaluationService) Enqueue(task EvaluationTask) {
	if !es.enabled {
		return
	}

	payload, err := json.Marshal(task)
	if err != nil {
		es.log.Warn("evaluation", "failed to marshal evaluation task, dropping", map[string]interface{}{
			"session_id": task.SessionID,
			"error":      err.Error(),
		})
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := es.pubSub.Publish(es.topicName, msg); err != nil {
		es.log.Warn("evaluation", "failed to enqueue evaluation task, dropping", map[string]interface{}{
			"session_id": task.SessionID,
			"error":      err.Error(),
		})
		return
	}

	es.pending.Add(1)
	es.log.Debug("evaluation", "evaluation enqueued", map[string]interface{}{
		"session_id": task.SessionID,
	})
}

func (es *evaluationService) Consume(ctx context.Context) error {
	messages, err := es.pubSub.Subscribe(ctx, es.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			es.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (es *evaluationService) processMessage(ctx context.Context, msg *message.Message) {
	// Tasks are advisory: always Ack, never retry. A failed evaluation must
	// not wedge the queue.
	defer msg.Ack()

	if msg.Metadata.Get(sentinelMetadataKey) == "true" {
		es.drainOnce.Do(func() { close(es.drained) })
		return
	}

	var task EvaluationTask
	if err := json.Unmarshal(msg.Payload, &task); err != nil {
		es.log.Error("evaluation", "failed to unmarshal evaluation task", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	es.pending.Add(-1)
	es.runEvaluation(ctx, task)
}

func (es *evaluationService) runEvaluation(ctx context.Context, task EvaluationTask) {
	es.log.Info("evaluation", "running evaluations", map[string]interface{}{
		"session_id": task.SessionID,
	})
	start := time.Now()

	// The three sub-checks run concurrently and tolerate individual
	// failures: a failed check contributes nothing to the blended score.
	var (
		wg            sync.WaitGroup
		relevance     *float64
		hallucination *float64
		toxicity      *float64
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		relevance = es.evaluateRelevance(ctx, task.Question, task.Context)
	}()
	go func() {
		defer wg.Done()
		hallucination = es.evaluateHallucination(ctx, task.Question, task.Context, task.Answer)
	}()
	go func() {
		defer wg.Done()
		toxicity = es.evaluateToxicity(ctx, task.Answer)
	}()
	wg.Wait()

	metrics := EvaluationMetrics{
		Relevance:       relevance,
		Hallucination:   hallucination,
		Toxicity:        toxicity,
		OverallQuality:  blendQuality(relevance, hallucination, toxicity),
		EvalTimeSeconds: time.Since(start).Seconds(),
	}
	if hallucination != nil {
		grounding := 1.0 - *hallucination
		metrics.Grounding = &grounding
	}

	es.saveEvaluation(ctx, task, metrics)

	if es.publisher != nil {
		event := events.NewEvaluationCompleted(task.SessionID, floatOrNil(metrics.OverallQuality), metrics.EvalTimeSeconds)
		if err := es.publisher.Publish(ctx, event); err != nil {
			es.log.Warn("evaluation", "failed to publish evaluation event", map[string]interface{}{
				"session_id": task.SessionID,
				"error":      err.Error(),
			})
		}
	}

	es.log.Info("evaluation", "evaluation completed", map[string]interface{}{
		"session_id":      task.SessionID,
		"eval_time":       metrics.EvalTimeSeconds,
		"overall_quality": floatOrNil(metrics.OverallQuality),
	})
}

func (es *evaluationService) evaluateRelevance(ctx context.Context, question, contextText string) *float64 {
	prompt := fmt.Sprintf(relevancePromptTemplate, question, contextText)
	response, err := es.evaluator.Generate(ctx, prompt, llm.WithModel(es.evalModel))
	if err != nil {
		es.log.Error("evaluation", "relevance evaluation failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}

	// Check the negative label first: "relevant" is a substring of
	// "irrelevant".
	lowered := strings.ToLower(response)
	switch {
	case strings.Contains(lowered, "irrelevant"):
		return floatPtr(0.0)
	case strings.Contains(lowered, "relevant"):
		return floatPtr(1.0)
	default:
		return floatPtr(0.5) // Indeterminate
	}
}

func (es *evaluationService) evaluateHallucination(ctx context.Context, question, contextText, answer string) *float64 {
	prompt := fmt.Sprintf(hallucinationPromptTemplate, question, contextText, answer)
	response, err := es.evaluator.Generate(ctx, prompt, llm.WithModel(es.evalModel))
	if err != nil {
		es.log.Error("evaluation", "hallucination evaluation failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}

	lowered := strings.ToLower(response)
	switch {
	case strings.Contains(lowered, "factual"):
		return floatPtr(0.0) // No hallucinations
	case strings.Contains(lowered, "hallucinated"), strings.Contains(lowered, "hallucination"):
		return floatPtr(1.0) // High hallucination
	default:
		return floatPtr(0.5) // Indeterminate
	}
}

func (es *evaluationService) evaluateToxicity(ctx context.Context, answer string) *float64 {
	prompt := fmt.Sprintf(toxicityPromptTemplate, answer)
	response, err := es.evaluator.Generate(ctx, prompt, llm.WithModel(es.evalModel))
	if err != nil {
		es.log.Error("evaluation", "toxicity evaluation failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}

	// Same substring trap as relevance: check the negated forms first.
	lowered := strings.ToLower(response)
	switch {
	case strings.Contains(lowered, "no-tóxico"), strings.Contains(lowered, "no toxico"), strings.Contains(lowered, "no tóxico"):
		return floatPtr(0.0) // Non-toxic
	case strings.Contains(lowered, "tóxico"), strings.Contains(lowered, "toxico"):
		return floatPtr(1.0) // Toxic
	default:
		return floatPtr(0.0) // Default: non-toxic
	}
}

// blendQuality computes the weighted quality score, renormalizing over the
// sub-checks that produced a value. Nil when every sub-check failed.
func blendQuality(relevance, hallucination, toxicity *float64) *float64 {
	totalScore := 0.0
	totalWeight := 0.0

	if relevance != nil {
		totalScore += *relevance * 0.5
		totalWeight += 0.5
	}
	if hallucination != nil {
		totalScore += (1.0 - *hallucination) * 0.4
		totalWeight += 0.4
	}
	if toxicity != nil {
		totalScore += (1.0 - *toxicity) * 0.1
		totalWeight += 0.1
	}

	if totalWeight == 0 {
		return nil
	}

	result := totalScore / totalWeight
	return &result
}

func (es *evaluationService) saveEvaluation(ctx context.Context, task EvaluationTask, metrics EvaluationMetrics) {
	es.tracker.TrackVectorstoreOperation(ctx, task.SessionID, "llm_evaluation", "evaluation_results", map[string]interface{}{
		"evaluation_type":       "llm_judge",
		"relevance_score":       floatOrNil(metrics.Relevance),
		"hallucination_score":   floatOrNil(metrics.Hallucination),
		"toxicity_score":        floatOrNil(metrics.Toxicity),
		"grounding_score":       floatOrNil(metrics.Grounding),
		"overall_quality_score": floatOrNil(metrics.OverallQuality),
		"question":              truncateQuestion(task.Question),
		"answer_length":         len(task.Answer),
		"context_length":        len(task.Context),
		"documents_count":       len(task.Documents),
		"evaluation_timestamp":  task.Timestamp,
	})

	es.log.Debug("evaluation", "evaluation metrics saved", map[string]interface{}{
		"session_id": task.SessionID,
	})
}

func (es *evaluationService) Shutdown(ctx context.Context) error {
	if !es.enabled {
		return es.pubSub.Close()
	}

	es.log.Info("evaluation", "shutting down evaluation service", nil)

	// The queue is FIFO: by the time the worker sees the sentinel, every
	// task enqueued before it has been evaluated.
	sentinel := message.NewMessage(watermill.NewUUID(), nil)
	sentinel.Metadata.Set(sentinelMetadataKey, "true")
	if err := es.pubSub.Publish(es.topicName, sentinel); err != nil {
		return fmt.Errorf("publish shutdown signal: %w", err)
	}

	select {
	case <-es.drained:
	case <-ctx.Done():
		es.log.Warn("evaluation", "shutdown timed out before queue drained", map[string]interface{}{
			"pending": es.QueueSize(),
		})
	}

	return es.pubSub.Close()
}

func floatPtr(v float64) *float64 {
	return &v
}

// floatOrNil unwraps an optional score for attribute maps and logs.
func floatOrNil(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func truncateQuestion(q string) string {
	if len(q) <= 200 {
		return q
	}
	runes := []rune(q)
	if len(runes) <= 200 {
		return q
	}
	return string(runes[:200])
}
