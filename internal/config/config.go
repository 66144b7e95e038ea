package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig
	Auth       AuthConfig
	Qdrant     QdrantConfig
	Embedding  EmbeddingConfig
	Rerank     RerankConfig
	LLM        LLMConfig
	RAG        RAGConfig
	RateLimit  RateLimitConfig
	Monitoring MonitoringConfig
	Evaluation EvaluationConfig
	Storage    StorageConfig
	Jobs       JobsConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	DataDir            string
}

type AuthConfig struct {
	PublicKeyPath string
	Audience      string
	Issuer        string
}

type QdrantConfig struct {
	Host           string
	GRPCPort       int
	APIKey         string
	UseTLS         bool
	CollectionName string
}

type EmbeddingConfig struct {
	Provider   string // "openai" or "gemini"
	Model      string
	Dimensions int
	BatchSize  int
}

type RerankConfig struct {
	Enabled    bool
	ServiceURL string
	Model      string
}

type LLMConfig struct {
	Provider  string // "openai" or "gemini"
	Model     string
	OpenAIKey string
	GeminiKey string
}

type RAGConfig struct {
	TopK int
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type MonitoringConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ProjectName  string
}

type EvaluationConfig struct {
	Enabled   bool
	TopicName string
	Model     string
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type JobsConfig struct {
	RetentionHours       int
	SweepIntervalMinutes int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/api.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			DataDir:            getEnv("DATA_DIR", "data/processed"),
		},
		Auth: AuthConfig{
			PublicKeyPath: getEnv("API_JWT_PUBLIC_KEY_PATH", "keys/public_key.pem"),
			Audience:      getEnv("API_JWT_AUDIENCE", "lus-laboris-client"),
			Issuer:        getEnv("API_JWT_ISSUER", "lus-laboris-api"),
		},
		Qdrant: QdrantConfig{
			Host:           getEnv("QDRANT_HOST", "localhost"),
			GRPCPort:       getEnvAsInt("QDRANT_GRPC_PORT", 6334),
			APIKey:         getEnv("QDRANT_API_KEY", ""),
			UseTLS:         getEnvAsBool("QDRANT_USE_TLS", false),
			CollectionName: getEnv("QDRANT_COLLECTION_NAME", "lus_laboris_articles"),
		},
		Embedding: EmbeddingConfig{
			Provider:   getEnv("EMBEDDING_PROVIDER", "openai"),
			Model:      getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimensions: getEnvAsInt("EMBEDDING_DIMENSIONS", 1536),
			BatchSize:  getEnvAsInt("EMBEDDING_BATCH_SIZE", 100),
		},
		Rerank: RerankConfig{
			Enabled:    getEnvAsBool("RERANKING_ENABLED", false),
			ServiceURL: getEnv("RERANK_SERVICE_URL", "http://localhost:8082"),
			Model:      getEnv("RERANK_MODEL", "cross-encoder/ms-marco-MiniLM-L-6-v2"),
		},
		LLM: LLMConfig{
			Provider:  getEnv("LLM_PROVIDER", "openai"),
			Model:     getEnv("LLM_MODEL", "gpt-4o-mini"),
			OpenAIKey: getEnv("OPENAI_API_KEY", ""),
			GeminiKey: getEnv("GEMINI_API_KEY", ""),
		},
		RAG: RAGConfig{
			TopK: getEnvAsInt("RAG_TOP_K", 5),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 10),
		},
		Monitoring: MonitoringConfig{
			Enabled:      getEnvAsBool("MONITORING_ENABLED", false),
			OTLPEndpoint: getEnv("MONITORING_OTLP_ENDPOINT", "localhost:6006"),
			ProjectName:  getEnv("MONITORING_PROJECT_NAME", "lus-laboris-api"),
		},
		Evaluation: EvaluationConfig{
			Enabled:   getEnvAsBool("EVALUATION_ENABLED", true),
			TopicName: getEnv("EVALUATION_TOPIC_NAME", "EVALUATE_ANSWER"),
			Model:     getEnv("EVALUATION_MODEL", "gpt-4o-mini"),
		},
		Storage: StorageConfig{
			Endpoint:  getEnv("S3_ENDPOINT", ""),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
			Bucket:    getEnv("S3_BUCKET", "lus-laboris"),
			UseSSL:    getEnvAsBool("S3_USE_SSL", false),
		},
		Jobs: JobsConfig{
			RetentionHours:       getEnvAsInt("JOB_RETENTION_HOURS", 24),
			SweepIntervalMinutes: getEnvAsInt("JOB_SWEEP_INTERVAL_MINUTES", 10),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}
