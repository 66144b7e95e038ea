package bootstrap

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"lus-laboris-api/internal/config"
	"lus-laboris-api/internal/controller"
	"lus-laboris-api/internal/monitoring"
	"lus-laboris-api/internal/pkg/logger"
	"lus-laboris-api/internal/pkg/serverutils"
	"lus-laboris-api/internal/service"
	"lus-laboris-api/internal/tracer"
	embeddingFactory "lus-laboris-api/pkg/embedding/factory"
	llmFactory "lus-laboris-api/pkg/llm/factory"
	"lus-laboris-api/pkg/rag"
	"lus-laboris-api/pkg/rerank"
	"lus-laboris-api/pkg/storage"
	"lus-laboris-api/pkg/vectorstore"

	pktNats "lus-laboris-api/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Controllers
	RagController         controller.IRagController
	VectorstoreController controller.IVectorstoreController
	StatusController      controller.IStatusController

	// Background Services (Exposed for main.go to run)
	EvaluationService service.IEvaluationService
	JobService        service.IJobService

	// Infrastructure (Exposed for main.go to shut down)
	Store          vectorstore.VectorStore
	NatsPublisher  *pktNats.Publisher
	Logger         logger.ILogger
	TracerShutdown func(context.Context) error
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	tracerShutdown := tracer.InitTracer(
		cfg.Monitoring.Enabled,
		cfg.Monitoring.OTLPEndpoint,
		cfg.Monitoring.ProjectName,
	)

	var emitter monitoring.ISpanEmitter
	if cfg.Monitoring.Enabled {
		emitter = monitoring.NewOtelSpanEmitter()
	} else {
		emitter = monitoring.NewNopSpanEmitter()
	}
	sessionTracker := monitoring.NewSessionTracker(emitter, sysLogger)

	// 2. Providers
	// Initialize Embedding Provider based on Config
	embeddingProvider, err := embeddingFactory.NewEmbeddingProvider(
		cfg.Embedding.Provider,
		cfg.Embedding.Model,
		providerKey(cfg, cfg.Embedding.Provider),
		cfg.Embedding.Dimensions,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize Embedding Provider: %v", err)
	}
	log.Printf("[INFO] Using Embedding Provider: %s (%s)", cfg.Embedding.Provider, cfg.Embedding.Model)

	// Initialize LLM Provider based on Config
	llmProvider, err := llmFactory.NewLLMProvider(
		cfg.LLM.Provider,
		cfg.LLM.Model,
		providerKey(cfg, cfg.LLM.Provider),
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.LLM.Provider, cfg.LLM.Model)

	// 3. Vector Store
	store, err := vectorstore.NewQdrantStore(
		cfg.Qdrant.Host,
		cfg.Qdrant.GRPCPort,
		cfg.Qdrant.APIKey,
		cfg.Qdrant.UseTLS,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to connect to Qdrant: %v", err)
	}
	log.Printf("[INFO] Connected to Qdrant at %s:%d", cfg.Qdrant.Host, cfg.Qdrant.GRPCPort)

	var reranker rerank.Reranker
	if cfg.Rerank.Enabled {
		reranker = rerank.NewHTTPReranker(cfg.Rerank.ServiceURL, cfg.Rerank.Model)
		log.Printf("[INFO] Using Reranker: %s (%s)", cfg.Rerank.ServiceURL, cfg.Rerank.Model)
	}

	ragLogger := initRagLogger()
	retriever := rag.NewRetriever(embeddingProvider, store, reranker, cfg.Qdrant.CollectionName, ragLogger)
	generator := rag.NewGenerator(llmProvider, ragLogger)

	// 4. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermillLogger,
	)

	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	var rateLimitStorage fiber.Storage
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v. Rate limits are per-instance", err)
	} else {
		rateLimitStorage = serverutils.NewRedisStorage(rdb)
	}

	// Object Storage
	var objectStorage storage.ObjectStorage
	if cfg.Storage.Endpoint != "" {
		minioStorage, err := storage.NewMinioStorage(
			cfg.Storage.Endpoint,
			cfg.Storage.AccessKey,
			cfg.Storage.SecretKey,
			cfg.Storage.UseSSL,
		)
		if err != nil {
			log.Printf("[WARN] Failed to connect to object storage: %v", err)
		} else {
			objectStorage = minioStorage
			log.Printf("[INFO] Using object storage at %s", cfg.Storage.Endpoint)
		}
	}

	// 5. Services
	var evalProvider = llmProvider
	if cfg.Evaluation.Model != cfg.LLM.Model {
		evalProvider, err = llmFactory.NewLLMProvider(
			cfg.LLM.Provider,
			cfg.Evaluation.Model,
			providerKey(cfg, cfg.LLM.Provider),
		)
		if err != nil {
			log.Printf("[WARN] Failed to initialize Evaluation LLM: %v. Evaluation disabled", err)
			evalProvider = nil
		}
	}

	evaluationService := service.NewEvaluationService(
		pubSub,
		cfg.Evaluation.TopicName,
		cfg.Evaluation.Enabled,
		evalProvider,
		cfg.Evaluation.Model,
		sessionTracker,
		natsPub,
		sysLogger,
	)

	jobService := service.NewJobService(
		sessionTracker,
		time.Duration(cfg.Jobs.RetentionHours)*time.Hour,
		time.Duration(cfg.Jobs.SweepIntervalMinutes)*time.Minute,
		sysLogger,
	)

	ingestService := service.NewIngestService(
		store,
		embeddingProvider,
		objectStorage,
		jobService,
		sessionTracker,
		natsPub,
		cfg.App.DataDir,
		cfg.Qdrant.CollectionName,
		cfg.Embedding.BatchSize,
		sysLogger,
	)

	ragService := service.NewRagService(
		retriever,
		generator,
		evaluationService,
		sessionTracker,
		natsPub,
		cfg.LLM.Provider,
		cfg.LLM.Model,
		cfg.Embedding.Model,
		cfg.Qdrant.CollectionName,
		cfg.RAG.TopK,
		sysLogger,
	)

	statusService := service.NewStatusService(store, evaluationService, sessionTracker, cfg, sysLogger)

	// 6. HTTP Middleware
	publicKey, err := serverutils.LoadRSAPublicKey(cfg.Auth.PublicKeyPath)
	if err != nil {
		log.Printf("[WARN] Failed to load JWT public key: %v. Protected endpoints will reject requests", err)
	}
	authMiddleware := serverutils.JwtMiddleware(publicKey, cfg.Auth.Audience, cfg.Auth.Issuer)
	optionalAuthMiddleware := serverutils.OptionalJwtMiddleware(publicKey, cfg.Auth.Audience, cfg.Auth.Issuer)
	rateLimiterMiddleware := serverutils.RateLimiterMiddleware(cfg.RateLimit.RequestsPerMinute, rateLimitStorage)

	// 7. Controllers
	return &Container{
		RagController:         controller.NewRagController(ragService, sessionTracker, rateLimiterMiddleware),
		VectorstoreController: controller.NewVectorstoreController(ingestService, jobService, store, authMiddleware),
		StatusController:      controller.NewStatusController(statusService, optionalAuthMiddleware),

		EvaluationService: evaluationService,
		JobService:        jobService,

		Store:          store,
		NatsPublisher:  natsPub,
		Logger:         sysLogger,
		TracerShutdown: tracerShutdown,
	}
}

func providerKey(cfg *config.Config, provider string) string {
	if provider == "gemini" {
		return cfg.LLM.GeminiKey
	}
	return cfg.LLM.OpenAIKey
}

func initRagLogger() *log.Logger {
	logPath := filepath.Join(".", "logs", "rag.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		log.Printf("Failed to create logs directory: %v", err)
	}
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return log.New(os.Stdout, "[RAG] ", log.LstdFlags)
	}
	return log.New(file, "", log.LstdFlags)
}
