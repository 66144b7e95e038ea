package prompt

import (
	"strings"

	"lus-laboris-api/pkg/rag"
)

// AnswerBuilder builds the grounded question-answering prompt
type AnswerBuilder struct {
	question  string
	documents []rag.Document
}

// NewAnswerBuilder creates a prompt builder for a question and its
// retrieved documents
func NewAnswerBuilder(question string, documents []rag.Document) *AnswerBuilder {
	return &AnswerBuilder{
		question:  question,
		documents: documents,
	}
}

// Build creates the full user prompt handed to the LLM
func (b *AnswerBuilder) Build() string {
	var prompt strings.Builder

	// State the role and the grounding contract
	b.writeRole(&prompt)

	// Inject retrieved articles
	b.writeContext(&prompt)

	// Inject user question
	b.writeQuestion(&prompt)

	// Answering rules
	b.writeInstructions(&prompt)

	return prompt.String()
}

func (b *AnswerBuilder) writeRole(prompt *strings.Builder) {
	prompt.WriteString("Eres un asistente especializado en derecho laboral paraguayo.\n")
	prompt.WriteString("Responde la pregunta del usuario basándote únicamente en el contexto proporcionado.\n\n")
}

func (b *AnswerBuilder) writeContext(prompt *strings.Builder) {
	prompt.WriteString("CONTEXTO:\n")
	prompt.WriteString(rag.BuildContext(b.documents))
	prompt.WriteString("\n\n")
}

func (b *AnswerBuilder) writeQuestion(prompt *strings.Builder) {
	prompt.WriteString("PREGUNTA: ")
	prompt.WriteString(b.question)
	prompt.WriteString("\n\n")
}

func (b *AnswerBuilder) writeInstructions(prompt *strings.Builder) {
	prompt.WriteString("INSTRUCCIONES:\n")
	prompt.WriteString("- Responde de manera clara y precisa\n")
	prompt.WriteString("- Basa tu respuesta únicamente en el contexto proporcionado\n")
	prompt.WriteString("- Si el contexto no contiene información suficiente, indícalo claramente\n")
	prompt.WriteString("- Cita los artículos específicos cuando sea relevante\n")
	prompt.WriteString("- Mantén un tono profesional y técnico apropiado para el ámbito legal\n\n")
	prompt.WriteString("RESPUESTA:")
}
