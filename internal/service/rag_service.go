package service

import (
	"context"
	"math"
	"strings"
	"time"

	"lus-laboris-api/internal/dto"
	"lus-laboris-api/internal/monitoring"
	"lus-laboris-api/internal/pkg/logger"
	"lus-laboris-api/pkg/events"
	"lus-laboris-api/pkg/nats"
	"lus-laboris-api/pkg/rag"
	"lus-laboris-api/pkg/rag/prompt"
)

// noDocumentsAnswer is returned without any LLM call when retrieval came
// back empty.
const noDocumentsAnswer = "No relevant documents found to answer the question."

type IRagService interface {
	// AnswerQuestion runs the full pipeline. It never returns an error:
	// failures come back as a structured response with Success=false.
	AnswerQuestion(ctx context.Context, question, sessionID string) *dto.QuestionResponse
}

type ragService struct {
	retriever  *rag.Retriever
	generator  *rag.Generator
	evaluation IEvaluationService
	tracker    monitoring.ISessionTracker
	publisher  *nats.Publisher
	log        logger.ILogger

	llmProvider    string
	llmModel       string
	embeddingModel string
	collection     string
	topK           int
}

func NewRagService(
	retriever *rag.Retriever,
	generator *rag.Generator,
	evaluation IEvaluationService,
	tracker monitoring.ISessionTracker,
	publisher *nats.Publisher,
	llmProvider string,
	llmModel string,
	embeddingModel string,
	collection string,
	topK int,
	log logger.ILogger,
) IRagService {
	return &ragService{
		retriever:      retriever,
		generator:      generator,
		evaluation:     evaluation,
		tracker:        tracker,
		publisher:      publisher,
		log:            log,
		llmProvider:    llmProvider,
		llmModel:       llmModel,
		embeddingModel: embeddingModel,
		collection:     collection,
		topK:           topK,
	}
}

func (rs *ragService) AnswerQuestion(ctx context.Context, question, sessionID string) *dto.QuestionResponse {
	start := time.Now()

	// 1. Retrieve relevant documents with optional reranking
	retrieval, err := rs.retriever.Retrieve(ctx, question, rs.topK)
	if err != nil {
		return rs.failureResponse(question, sessionID, start, err)
	}

	rs.tracker.TrackEmbeddingGeneration(ctx, sessionID, rs.embeddingModel, 1, retrieval.EmbeddingSeconds)
	rs.tracker.TrackVectorstoreSearch(ctx, sessionID, rs.collection, question, retrieval.SearchResults, retrieval.SearchSeconds)
	if retrieval.RerankSeconds > 0 {
		rs.tracker.TrackReranking(ctx, sessionID, retrieval.Rerank.ModelName,
			retrieval.SearchResults, len(retrieval.Documents), retrieval.RerankSeconds)
	}

	documents := retrieval.Documents
	contextText := rag.BuildContext(documents)

	// 2. Generate the answer. Zero documents short-circuits to the fixed
	// fallback without touching the LLM.
	var answer string
	if len(documents) == 0 {
		answer = noDocumentsAnswer
	} else {
		promptText := prompt.NewAnswerBuilder(question, documents).Build()
		generated, err := rs.generator.Generate(ctx, promptText)
		if err != nil {
			return rs.failureResponse(question, sessionID, start, err)
		}
		answer = strings.TrimSpace(generated)

		rs.tracker.TrackLLMCall(ctx, sessionID, rs.llmProvider, rs.llmModel, promptText, answer, map[string]interface{}{
			"context_length":  len(contextText),
			"documents_count": len(documents),
			"query":           question,
		})
	}

	processing := time.Since(start).Seconds()

	// 3. Queue the background evaluation, fire-and-forget
	rs.evaluation.Enqueue(EvaluationTask{
		SessionID: sessionID,
		Question:  question,
		Context:   contextText,
		Answer:    answer,
		Documents: documents,
		Metadata: map[string]interface{}{
			"processing_time":   processing,
			"llm_provider":      rs.llmProvider,
			"llm_model":         rs.llmModel,
			"reranking_applied": retrieval.Rerank.Applied,
			"top_k":             rs.topK,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})

	if rs.publisher != nil {
		event := events.NewQuestionAnswered(sessionID, question, len(documents), processing)
		if err := rs.publisher.Publish(ctx, event); err != nil {
			rs.log.Warn("rag", "failed to publish answer event", map[string]interface{}{
				"session_id": sessionID,
				"error":      err.Error(),
			})
		}
	}

	rs.log.Info("rag", "question answered", map[string]interface{}{
		"session_id":          sessionID,
		"processing_seconds":  round3(processing),
		"documents_retrieved": len(documents),
		"reranking_applied":   retrieval.Rerank.Applied,
	})

	return &dto.QuestionResponse{
		Success:               true,
		Message:               "Question answered successfully",
		Question:              question,
		Answer:                &answer,
		ProcessingTimeSeconds: round3(processing),
		DocumentsRetrieved:    intPtr(len(documents)),
		TopK:                  intPtr(rs.topK),
		RerankingApplied:      boolPtr(retrieval.Rerank.Applied),
		Documents:             projectDocuments(documents),
		SessionId:             sessionID,
	}
}

func (rs *ragService) failureResponse(question, sessionID string, start time.Time, err error) *dto.QuestionResponse {
	rs.log.Error("rag", "failed to answer question", map[string]interface{}{
		"session_id": sessionID,
		"error":      err.Error(),
	})

	message := err.Error()
	return &dto.QuestionResponse{
		Success:               false,
		Message:               "Failed to answer question",
		Question:              question,
		Error:                 &message,
		ProcessingTimeSeconds: round3(time.Since(start).Seconds()),
		SessionId:             sessionID,
	}
}

func projectDocuments(documents []rag.Document) []dto.DocumentResult {
	results := make([]dto.DocumentResult, len(documents))
	for i, doc := range documents {
		var rerankScore *float64
		if doc.RerankScore != nil {
			rounded := round4(*doc.RerankScore)
			rerankScore = &rounded
		}

		var articuloNumero, capituloDescripcion interface{}
		articulo := ""
		if doc.Payload != nil {
			articuloNumero = doc.Payload["articulo_numero"]
			capituloDescripcion = doc.Payload["capitulo_descripcion"]
			articulo, _ = doc.Payload["articulo"].(string)
		}

		results[i] = dto.DocumentResult{
			Id:          doc.ID,
			Score:       round4(float64(doc.Score)),
			RerankScore: rerankScore,
			Payload: dto.DocumentPayload{
				ArticuloNumero:      articuloNumero,
				CapituloDescripcion: capituloDescripcion,
				Articulo:            truncateArticle(articulo),
			},
		}
	}
	return results
}

func truncateArticle(text string) string {
	if len(text) <= 200 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= 200 {
		return text
	}
	return string(runes[:200]) + "..."
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func intPtr(v int) *int {
	return &v
}

func boolPtr(v bool) *bool {
	return &v
}
