package integration

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"lus-laboris-api/internal/config"
	"lus-laboris-api/internal/controller"
	"lus-laboris-api/internal/monitoring"
	"lus-laboris-api/internal/pkg/logger"
	"lus-laboris-api/internal/pkg/serverutils"
	"lus-laboris-api/internal/service"
	"lus-laboris-api/pkg/llm"
	"lus-laboris-api/pkg/rag"
	"lus-laboris-api/pkg/vectorstore"
)

const (
	testCollection = "lus_laboris_articles"
	testAudience   = "lus-laboris-client"
	testIssuer     = "lus-laboris-api"
)

// memoryStore is an in-memory stand-in for Qdrant.
type memoryStore struct {
	mu          sync.Mutex
	collections []string
	hits        []vectorstore.SearchResult
	upserts     map[string][]vectorstore.Point
}

func newMemoryStore(collections ...string) *memoryStore {
	return &memoryStore{
		collections: collections,
		upserts:     make(map[string][]vectorstore.Point),
	}
}

func (s *memoryStore) EnsureCollection(ctx context.Context, name string, vectorSize uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.has(name) {
		s.collections = append(s.collections, name)
	}
	return nil
}

func (s *memoryStore) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.collections[:0]
	for _, c := range s.collections {
		if c != name {
			out = append(out, c)
		}
	}
	s.collections = out
	delete(s.upserts, name)
	return nil
}

func (s *memoryStore) ListCollections(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.collections...), nil
}

func (s *memoryStore) Describe(ctx context.Context, name string) (*vectorstore.CollectionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.has(name) {
		return nil, errors.New("collection not found")
	}
	return &vectorstore.CollectionInfo{
		Name:        name,
		PointsCount: uint64(len(s.upserts[name])),
		VectorSize:  3,
		Distance:    "Cosine",
		Status:      "green",
	}, nil
}

func (s *memoryStore) Upsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts[collection] = append(s.upserts[collection], points...)
	return nil
}

func (s *memoryStore) Search(ctx context.Context, collection string, vector []float32, limit uint64) ([]vectorstore.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hits := s.hits
	if uint64(len(hits)) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *memoryStore) Healthy(ctx context.Context) bool { return true }
func (s *memoryStore) Close() error                     { return nil }

func (s *memoryStore) has(name string) bool {
	for _, c := range s.collections {
		if c == name {
			return true
		}
	}
	return false
}

type memoryEmbedder struct{}

func (memoryEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (memoryEmbedder) Model() string   { return "text-embedding-3-small" }
func (memoryEmbedder) Dimensions() int { return 3 }

// cannedLLM serves a fixed answer for chat completions and plays the judge
// for evaluation prompts.
type cannedLLM struct {
	answer string

	mu        sync.Mutex
	chatCalls int
	genCalls  int
}

func (c *cannedLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	c.mu.Lock()
	c.chatCalls++
	c.mu.Unlock()
	return c.answer, nil
}

func (c *cannedLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	c.mu.Lock()
	c.genCalls++
	c.mu.Unlock()
	switch {
	case strings.Contains(prompt, `"relevant" or "irrelevant"`):
		return "relevant", nil
	case strings.Contains(prompt, "factual or hallucinated"):
		return "factual", nil
	default:
		return "no-tóxico", nil
	}
}

func (c *cannedLLM) generateCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.genCalls
}

type testEnv struct {
	app        *fiber.App
	store      *memoryStore
	llm        *cannedLLM
	evaluation service.IEvaluationService
	jobs       service.IJobService
	tracker    monitoring.ISessionTracker
	key        *rsa.PrivateKey
	dataDir    string
}

func vacationSearchResults() []vectorstore.SearchResult {
	return []vectorstore.SearchResult{
		{
			ID:    "11111111-1111-1111-1111-111111111111",
			Score: 0.91,
			Payload: map[string]interface{}{
				"articulo":             "todo trabajador tiene derecho a un período de vacaciones remuneradas de doce días hábiles tras el primer año de trabajo",
				"articulo_numero":      218,
				"capitulo_descripcion": "de las vacaciones anuales",
			},
		},
		{
			ID:    "22222222-2222-2222-2222-222222222222",
			Score: 0.84,
			Payload: map[string]interface{}{
				"articulo":             "las vacaciones deben comenzar dentro de los seis meses siguientes",
				"articulo_numero":      221,
				"capitulo_descripcion": "de las vacaciones anuales",
			},
		},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Qdrant:     config.QdrantConfig{CollectionName: testCollection},
		LLM:        config.LLMConfig{Provider: "openai", Model: "gpt-4o-mini"},
		Embedding:  config.EmbeddingConfig{Model: "text-embedding-3-small"},
		Rerank:     config.RerankConfig{Enabled: false},
		Monitoring: config.MonitoringConfig{Enabled: false},
	}
}

// newTestEnv wires the HTTP app the way the container does, with in-memory
// backends instead of Qdrant, OpenAI and Redis.
func newTestEnv(t *testing.T, requestsPerMinute int) *testEnv {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	nopLog := logger.NewNopLogger()
	discard := log.New(io.Discard, "", 0)
	cfg := testConfig()

	tracker := monitoring.NewSessionTracker(monitoring.NewNopSpanEmitter(), nopLog)

	store := newMemoryStore(testCollection)
	store.hits = vacationSearchResults()

	answerLLM := &cannedLLM{
		answer: "Según el Artículo 218 del Código del Trabajo, corresponden 12 días hábiles de vacaciones remuneradas después del primer año de servicio.",
	}

	retriever := rag.NewRetriever(memoryEmbedder{}, store, nil, testCollection, discard)
	generator := rag.NewGenerator(answerLLM, discard)

	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NopLogger{})
	evaluation := service.NewEvaluationService(pubSub, "evaluation", true, answerLLM, "gpt-4o-mini", tracker, nil, nopLog)
	if err := evaluation.Consume(ctx); err != nil {
		t.Fatalf("start evaluation consumer: %v", err)
	}

	jobs := service.NewJobService(tracker, 24*time.Hour, 10*time.Minute, nopLog)
	if err := jobs.Start(ctx); err != nil {
		t.Fatalf("start job worker: %v", err)
	}

	dataDir := t.TempDir()
	ingest := service.NewIngestService(store, memoryEmbedder{}, nil, jobs, tracker, nil, dataDir, testCollection, 100, nopLog)

	ragService := service.NewRagService(retriever, generator, evaluation, tracker, nil,
		"openai", "gpt-4o-mini", "text-embedding-3-small", testCollection, 5, nopLog)
	statusService := service.NewStatusService(store, evaluation, tracker, cfg, nopLog)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}

	auth := serverutils.JwtMiddleware(&key.PublicKey, testAudience, testIssuer)
	optionalAuth := serverutils.OptionalJwtMiddleware(&key.PublicKey, testAudience, testIssuer)
	rateLimit := serverutils.RateLimiterMiddleware(requestsPerMinute, nil)

	statusController := controller.NewStatusController(statusService, optionalAuth)
	ragController := controller.NewRagController(ragService, tracker, rateLimit)
	vectorstoreController := controller.NewVectorstoreController(ingest, jobs, store, auth)

	app := fiber.New(fiber.Config{BodyLimit: 10 * 1024 * 1024})
	app.Use(serverutils.ErrorHandlerMiddleware())

	app.Get("/", statusController.Root)
	api := app.Group("/api")
	statusController.RegisterRoutes(api)
	ragController.RegisterRoutes(api)
	vectorstoreController.RegisterRoutes(api)

	return &testEnv{
		app:        app,
		store:      store,
		llm:        answerLLM,
		evaluation: evaluation,
		jobs:       jobs,
		tracker:    tracker,
		key:        key,
		dataDir:    dataDir,
	}
}

func (e *testEnv) token(t *testing.T) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": "test-admin",
		"aud": testAudience,
		"iss": testIssuer,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(e.key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func (e *testEnv) postJSON(t *testing.T, path, token string, payload interface{}) *http.Response {
	t.Helper()
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest("POST", path, strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func (e *testEnv) get(t *testing.T, path, token string) *http.Response {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}
