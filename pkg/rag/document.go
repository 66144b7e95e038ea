package rag

import (
	"fmt"
	"strings"
)

// SystemPrompt is the role given to the model for every answer.
const SystemPrompt = "Eres un asistente especializado en derecho laboral paraguayo."

// EmptyContext is used when retrieval produced no documents.
const EmptyContext = "No se encontraron documentos relevantes."

// Document is a retrieved article with its similarity score and, when
// reranking ran, its cross-encoder score. Ordering is meaningful: best
// match first.
type Document struct {
	ID          string                 `json:"id"`
	Score       float32                `json:"score"`
	RerankScore *float64               `json:"rerank_score,omitempty"`
	Payload     map[string]interface{} `json:"payload"`
}

// ArticleText returns the article body from the payload.
func (d Document) ArticleText() string {
	return payloadString(d.Payload, "articulo", "Texto no disponible")
}

// ChapterDescription returns the chapter heading from the payload.
func (d Document) ChapterDescription() string {
	return payloadString(d.Payload, "capitulo_descripcion", "Descripción no disponible")
}

// ArticleNumber returns the article number from the payload. The stored
// type varies (string or integer), so callers format it with %v.
func (d Document) ArticleNumber() interface{} {
	if d.Payload == nil {
		return "N/A"
	}
	if v, ok := d.Payload["articulo_numero"]; ok && v != nil {
		return v
	}
	return "N/A"
}

// RerankText is the text the cross-encoder scores, matching the text the
// article was embedded with.
func (d Document) RerankText() string {
	articulo := payloadString(d.Payload, "articulo", "")
	capitulo := payloadString(d.Payload, "capitulo_descripcion", "")
	return fmt.Sprintf("%s: %s", capitulo, articulo)
}

// BuildContext formats the retrieved documents into the context block given
// to the LLM and the evaluator.
func BuildContext(documents []Document) string {
	if len(documents) == 0 {
		return EmptyContext
	}

	parts := make([]string, len(documents))
	for i, doc := range documents {
		docText := fmt.Sprintf("%s [Capítulo: %s - Artículo número: %v]",
			doc.ArticleText(), doc.ChapterDescription(), doc.ArticleNumber())
		parts[i] = fmt.Sprintf("Documento %d:\n%s\n", i+1, docText)
	}
	return strings.Join(parts, "\n")
}

func payloadString(payload map[string]interface{}, key, fallback string) string {
	if payload == nil {
		return fallback
	}
	if v, ok := payload[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
