package service

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"testing"

	"lus-laboris-api/internal/pkg/logger"
	"lus-laboris-api/pkg/rag"
	"lus-laboris-api/pkg/vectorstore"
)

type stubEmbedder struct {
	vector []float32
	err    error

	mu       sync.Mutex
	gotTexts []string
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	s.gotTexts = append(s.gotTexts, texts...)
	s.mu.Unlock()
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vector
	}
	return out, nil
}

func (s *stubEmbedder) Model() string   { return "text-embedding-3-small" }
func (s *stubEmbedder) Dimensions() int { return len(s.vector) }

// stubStore is an in-memory VectorStore shared by the service tests.
type stubStore struct {
	mu          sync.Mutex
	collections []string
	hits        []vectorstore.SearchResult
	searchErr   error

	ensured   map[string]uint64
	upserts   map[string][]vectorstore.Point
	deleted   []string
	listCalls int
}

func newStubStore(collections ...string) *stubStore {
	return &stubStore{
		collections: collections,
		ensured:     make(map[string]uint64),
		upserts:     make(map[string][]vectorstore.Point),
	}
}

func (s *stubStore) EnsureCollection(ctx context.Context, name string, vectorSize uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensured[name] = vectorSize
	if !s.has(name) {
		s.collections = append(s.collections, name)
	}
	return nil
}

func (s *stubStore) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, name)
	out := s.collections[:0]
	for _, c := range s.collections {
		if c != name {
			out = append(out, c)
		}
	}
	s.collections = out
	return nil
}

func (s *stubStore) ListCollections(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	return append([]string(nil), s.collections...), nil
}

func (s *stubStore) Describe(ctx context.Context, name string) (*vectorstore.CollectionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.has(name) {
		return nil, errors.New("collection not found")
	}
	return &vectorstore.CollectionInfo{
		Name:        name,
		PointsCount: uint64(len(s.upserts[name])),
		VectorSize:  s.ensured[name],
		Distance:    "Cosine",
		Status:      "green",
	}, nil
}

func (s *stubStore) Upsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts[collection] = append(s.upserts[collection], points...)
	return nil
}

func (s *stubStore) Search(ctx context.Context, collection string, vector []float32, limit uint64) ([]vectorstore.SearchResult, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	hits := s.hits
	if uint64(len(hits)) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *stubStore) Healthy(ctx context.Context) bool { return true }
func (s *stubStore) Close() error                     { return nil }

func (s *stubStore) has(name string) bool {
	for _, c := range s.collections {
		if c == name {
			return true
		}
	}
	return false
}

func (s *stubStore) points(collection string) []vectorstore.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]vectorstore.Point(nil), s.upserts[collection]...)
}

type stubReranker struct {
	scores []float64
	err    error
}

func (s *stubReranker) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.scores[:len(texts)], nil
}

func (s *stubReranker) Model() string { return "cross-encoder/ms-marco-MiniLM-L-6-v2" }

// captureEvaluation records enqueued tasks instead of evaluating them.
type captureEvaluation struct {
	mu    sync.Mutex
	tasks []EvaluationTask
}

func (c *captureEvaluation) Enqueue(task EvaluationTask) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = append(c.tasks, task)
}

func (c *captureEvaluation) Consume(ctx context.Context) error { return nil }
func (c *captureEvaluation) QueueSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tasks)
}
func (c *captureEvaluation) Enabled() bool                      { return true }
func (c *captureEvaluation) Shutdown(ctx context.Context) error { return nil }

func (c *captureEvaluation) enqueued() []EvaluationTask {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]EvaluationTask(nil), c.tasks...)
}

func discardLog() *log.Logger {
	return log.New(io.Discard, "", 0)
}

type ragServiceDeps struct {
	store      *stubStore
	embedder   *stubEmbedder
	provider   *fixedLLM
	reranker   *stubReranker
	evaluation *captureEvaluation
	tracker    *recordingTracker
}

func newTestRagService(deps ragServiceDeps) IRagService {
	if deps.embedder == nil {
		deps.embedder = &stubEmbedder{vector: []float32{0.1, 0.2, 0.3}}
	}
	if deps.store == nil {
		deps.store = newStubStore("articles")
	}
	if deps.provider == nil {
		deps.provider = &fixedLLM{response: "Respuesta."}
	}
	if deps.evaluation == nil {
		deps.evaluation = &captureEvaluation{}
	}
	if deps.tracker == nil {
		deps.tracker = &recordingTracker{}
	}

	retriever := rag.NewRetriever(deps.embedder, deps.store, nil, "articles", discardLog())
	if deps.reranker != nil {
		retriever = rag.NewRetriever(deps.embedder, deps.store, deps.reranker, "articles", discardLog())
	}
	generator := rag.NewGenerator(deps.provider, discardLog())

	return NewRagService(
		retriever,
		generator,
		deps.evaluation,
		deps.tracker,
		nil,
		"openai",
		"gpt-4o-mini",
		"text-embedding-3-small",
		"articles",
		2,
		logger.NewNopLogger(),
	)
}

func vacationHits() []vectorstore.SearchResult {
	return []vectorstore.SearchResult{
		{
			ID:    "11111111-1111-1111-1111-111111111111",
			Score: 0.87654321,
			Payload: map[string]interface{}{
				"articulo":             "el trabajador tiene derecho a doce días hábiles de vacaciones",
				"articulo_numero":      218,
				"capitulo_descripcion": "de las vacaciones anuales",
			},
		},
		{
			ID:    "22222222-2222-2222-2222-222222222222",
			Score: 0.7512,
			Payload: map[string]interface{}{
				"articulo":             "las vacaciones deben gozarse dentro de los seis meses",
				"articulo_numero":      221,
				"capitulo_descripcion": "de las vacaciones anuales",
			},
		},
	}
}

func TestAnswerQuestionSuccess(t *testing.T) {
	store := newStubStore("articles")
	store.hits = vacationHits()
	provider := &fixedLLM{response: "  Corresponden 12 días hábiles de vacaciones (Artículo 218).  "}
	evaluation := &captureEvaluation{}

	rs := newTestRagService(ragServiceDeps{store: store, provider: provider, evaluation: evaluation})

	res := rs.AnswerQuestion(context.Background(), "¿Cuántos días de vacaciones corresponden por año?", "session-abc")

	if !res.Success {
		t.Fatalf("Success = false, error %v", res.Error)
	}
	if res.Message != "Question answered successfully" {
		t.Errorf("Message = %q", res.Message)
	}
	if res.Answer == nil || *res.Answer != "Corresponden 12 días hábiles de vacaciones (Artículo 218)." {
		t.Errorf("Answer = %v, want the trimmed LLM output", res.Answer)
	}
	if res.DocumentsRetrieved == nil || *res.DocumentsRetrieved != 2 {
		t.Errorf("DocumentsRetrieved = %v, want 2", res.DocumentsRetrieved)
	}
	if res.TopK == nil || *res.TopK != 2 {
		t.Errorf("TopK = %v, want 2", res.TopK)
	}
	if res.RerankingApplied == nil || *res.RerankingApplied {
		t.Errorf("RerankingApplied = %v, want false", res.RerankingApplied)
	}
	if res.SessionId != "session-abc" {
		t.Errorf("SessionId = %q", res.SessionId)
	}

	if len(res.Documents) != 2 {
		t.Fatalf("len(Documents) = %d, want 2", len(res.Documents))
	}
	doc := res.Documents[0]
	if doc.Score != 0.8765 {
		t.Errorf("Documents[0].Score = %v, want 0.8765", doc.Score)
	}
	if doc.RerankScore != nil {
		t.Errorf("Documents[0].RerankScore = %v, want nil", *doc.RerankScore)
	}
	if doc.Payload.ArticuloNumero != 218 {
		t.Errorf("ArticuloNumero = %v, want 218", doc.Payload.ArticuloNumero)
	}

	tasks := evaluation.enqueued()
	if len(tasks) != 1 {
		t.Fatalf("evaluation tasks = %d, want 1", len(tasks))
	}
	task := tasks[0]
	if task.SessionID != "session-abc" {
		t.Errorf("task.SessionID = %q", task.SessionID)
	}
	if !strings.Contains(task.Context, "Documento 1:") || !strings.Contains(task.Context, "doce días hábiles") {
		t.Errorf("task.Context = %q, want the built context", task.Context)
	}
	if task.Answer != *res.Answer {
		t.Errorf("task.Answer = %q, want the final answer", task.Answer)
	}
	if task.Metadata["reranking_applied"] != false {
		t.Errorf("metadata reranking_applied = %v, want false", task.Metadata["reranking_applied"])
	}
	if task.Metadata["top_k"] != 2 {
		t.Errorf("metadata top_k = %v, want 2", task.Metadata["top_k"])
	}
}

func TestAnswerQuestionNoDocuments(t *testing.T) {
	store := newStubStore("articles")
	provider := &fixedLLM{response: "no debería llamarse"}
	evaluation := &captureEvaluation{}

	rs := newTestRagService(ragServiceDeps{store: store, provider: provider, evaluation: evaluation})

	res := rs.AnswerQuestion(context.Background(), "¿Qué dice sobre teletrabajo?", "session-abc")

	if !res.Success {
		t.Fatalf("Success = false, error %v", res.Error)
	}
	if res.Answer == nil || *res.Answer != "No relevant documents found to answer the question." {
		t.Errorf("Answer = %v, want the fixed no-documents answer", res.Answer)
	}
	if provider.callCount() != 0 {
		t.Errorf("LLM calls = %d, want 0 when retrieval is empty", provider.callCount())
	}
	if res.DocumentsRetrieved == nil || *res.DocumentsRetrieved != 0 {
		t.Errorf("DocumentsRetrieved = %v, want 0", res.DocumentsRetrieved)
	}
	if len(res.Documents) != 0 {
		t.Errorf("len(Documents) = %d, want 0", len(res.Documents))
	}

	tasks := evaluation.enqueued()
	if len(tasks) != 1 {
		t.Fatalf("evaluation tasks = %d, want 1 even without documents", len(tasks))
	}
	if tasks[0].Context != rag.EmptyContext {
		t.Errorf("task.Context = %q, want %q", tasks[0].Context, rag.EmptyContext)
	}
}

func TestAnswerQuestionWithReranking(t *testing.T) {
	store := newStubStore("articles")
	store.hits = []vectorstore.SearchResult{
		{ID: "a", Score: 0.9, Payload: map[string]interface{}{"articulo": "uno"}},
		{ID: "b", Score: 0.8, Payload: map[string]interface{}{"articulo": "dos"}},
		{ID: "c", Score: 0.7, Payload: map[string]interface{}{"articulo": "tres"}},
		{ID: "d", Score: 0.6, Payload: map[string]interface{}{"articulo": "cuatro"}},
	}
	reranker := &stubReranker{scores: []float64{0.1, 0.98765432, 0.5, 0.7}}
	evaluation := &captureEvaluation{}

	rs := newTestRagService(ragServiceDeps{store: store, reranker: reranker, evaluation: evaluation})

	res := rs.AnswerQuestion(context.Background(), "¿Qué dice el código laboral?", "session-abc")

	if !res.Success {
		t.Fatalf("Success = false, error %v", res.Error)
	}
	if res.RerankingApplied == nil || !*res.RerankingApplied {
		t.Fatalf("RerankingApplied = %v, want true", res.RerankingApplied)
	}
	if len(res.Documents) != 2 {
		t.Fatalf("len(Documents) = %d, want topK", len(res.Documents))
	}
	if res.Documents[0].Id != "b" || res.Documents[1].Id != "d" {
		t.Errorf("document order = [%s %s], want [b d]", res.Documents[0].Id, res.Documents[1].Id)
	}
	if res.Documents[0].RerankScore == nil || *res.Documents[0].RerankScore != 0.9877 {
		t.Errorf("RerankScore = %v, want 0.9877", res.Documents[0].RerankScore)
	}

	tasks := evaluation.enqueued()
	if len(tasks) != 1 || tasks[0].Metadata["reranking_applied"] != true {
		t.Errorf("metadata reranking_applied = %v, want true", tasks[0].Metadata["reranking_applied"])
	}
}

func TestAnswerQuestionRetrievalFailure(t *testing.T) {
	embedder := &stubEmbedder{err: errors.New("embedding quota exceeded")}
	evaluation := &captureEvaluation{}

	rs := newTestRagService(ragServiceDeps{embedder: embedder, evaluation: evaluation})

	res := rs.AnswerQuestion(context.Background(), "¿Cuántos días de vacaciones?", "session-abc")

	if res.Success {
		t.Fatal("Success = true, want false")
	}
	if res.Message != "Failed to answer question" {
		t.Errorf("Message = %q", res.Message)
	}
	if res.Error == nil || !strings.Contains(*res.Error, "embedding quota exceeded") {
		t.Errorf("Error = %v, want the cause", res.Error)
	}
	if res.Answer != nil {
		t.Errorf("Answer = %v, want nil", *res.Answer)
	}
	if got := len(evaluation.enqueued()); got != 0 {
		t.Errorf("evaluation tasks = %d, want 0 on failure", got)
	}
}

func TestAnswerQuestionGenerationFailure(t *testing.T) {
	store := newStubStore("articles")
	store.hits = vacationHits()
	provider := &fixedLLM{err: errors.New("model overloaded")}
	evaluation := &captureEvaluation{}

	rs := newTestRagService(ragServiceDeps{store: store, provider: provider, evaluation: evaluation})

	// A cancelled context turns the retry backoff into an immediate return.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := rs.AnswerQuestion(ctx, "¿Cuántos días de vacaciones?", "session-abc")

	if res.Success {
		t.Fatal("Success = true, want false")
	}
	if res.Error == nil {
		t.Fatal("Error = nil, want the generation failure")
	}
	if got := len(evaluation.enqueued()); got != 0 {
		t.Errorf("evaluation tasks = %d, want 0 on failure", got)
	}
}

func TestProjectDocumentsTruncatesArticle(t *testing.T) {
	long := strings.Repeat("artículo ", 40)
	docs := []rag.Document{
		{
			ID:    "a",
			Score: 0.5,
			Payload: map[string]interface{}{
				"articulo":             long,
				"articulo_numero":      1,
				"capitulo_descripcion": "capítulo",
			},
		},
	}

	projected := projectDocuments(docs)

	got := projected[0].Payload.Articulo
	runes := []rune(got)
	if len(runes) != 203 || !strings.HasSuffix(got, "...") {
		t.Errorf("Articulo = %d runes, want 200 plus ellipsis", len(runes))
	}
	if string(runes[:200]) != string([]rune(long)[:200]) {
		t.Error("Articulo prefix does not match the original text")
	}
}

func TestRound(t *testing.T) {
	if got := round3(1.23456789); got != 1.235 {
		t.Errorf("round3() = %v, want 1.235", got)
	}
	if got := round4(0.98765432); got != 0.9877 {
		t.Errorf("round4() = %v, want 0.9877", got)
	}
}
