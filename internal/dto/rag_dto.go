package dto

type AskQuestionRequest struct {
	Question  string `json:"question" validate:"required,min=5,max=1000"`
	SessionId string `json:"session_id,omitempty" validate:"omitempty,uuid4"`
}

// DocumentPayload is the trimmed article payload returned with each hit.
// Article text is truncated, the full text lives in the vector store.
type DocumentPayload struct {
	ArticuloNumero      interface{} `json:"articulo_numero"`
	CapituloDescripcion interface{} `json:"capitulo_descripcion"`
	Articulo            string      `json:"articulo"`
}

type DocumentResult struct {
	Id          string          `json:"id"`
	Score       float64         `json:"score"`
	RerankScore *float64        `json:"rerank_score"`
	Payload     DocumentPayload `json:"payload"`
}

// QuestionResponse is returned flat (no envelope) with HTTP 200 for both
// outcomes; Success tells them apart.
type QuestionResponse struct {
	Success               bool             `json:"success"`
	Message               string           `json:"message"`
	Question              string           `json:"question"`
	Answer                *string          `json:"answer"`
	Error                 *string          `json:"error"`
	ProcessingTimeSeconds float64          `json:"processing_time_seconds"`
	DocumentsRetrieved    *int             `json:"documents_retrieved"`
	TopK                  *int             `json:"top_k"`
	RerankingApplied      *bool            `json:"reranking_applied"`
	Documents             []DocumentResult `json:"documents"`
	SessionId             string           `json:"session_id"`
}
