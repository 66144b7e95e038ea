package service

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"lus-laboris-api/internal/config"
	"lus-laboris-api/internal/dto"
	"lus-laboris-api/internal/monitoring"
	"lus-laboris-api/internal/pkg/logger"
	"lus-laboris-api/pkg/vectorstore"
)

const (
	ServiceName    = "lus-laboris-api"
	ServiceVersion = "1.0.0"
)

// Probe results are cached so that frequent polling by load balancers does
// not hammer the dependencies.
const (
	statusCacheTTL   = 30 * time.Second
	statusCachePurge = time.Minute
)

type IStatusService interface {
	Root() *dto.RootResponse
	Health(ctx context.Context) *dto.HealthResponse
	// Status reports per-dependency detail. Unauthenticated callers get a
	// sanitized view with only the status field per component.
	Status(ctx context.Context, authenticated bool) *dto.ServiceStatusResponse
}

type statusService struct {
	store      vectorstore.VectorStore
	evaluation IEvaluationService
	tracker    monitoring.ISessionTracker
	cfg        *config.Config
	cache      *cache.Cache
	startedAt  time.Time
	log        logger.ILogger
}

func NewStatusService(
	store vectorstore.VectorStore,
	evaluation IEvaluationService,
	tracker monitoring.ISessionTracker,
	cfg *config.Config,
	log logger.ILogger,
) IStatusService {
	return &statusService{
		store:      store,
		evaluation: evaluation,
		tracker:    tracker,
		cfg:        cfg,
		cache:      cache.New(statusCacheTTL, statusCachePurge),
		startedAt:  time.Now(),
		log:        log,
	}
}

func (s *statusService) Root() *dto.RootResponse {
	return &dto.RootResponse{
		Success:     true,
		Message:     "Lus Laboris API is running",
		Version:     ServiceVersion,
		HealthCheck: "/api/health",
	}
}

func (s *statusService) Health(ctx context.Context) *dto.HealthResponse {
	vectorstoreStatus := s.cachedProbe(ctx, "vectorstore", s.vectorstoreStatus)
	ragStatus := s.cachedProbe(ctx, "rag", s.ragStatus)
	evaluationStatus := s.cachedProbe(ctx, "evaluation", s.evaluationStatus)
	monitoringStatus := s.cachedProbe(ctx, "monitoring", s.monitoringStatus)

	healthy := statusField(vectorstoreStatus) == "connected" && statusField(ragStatus) == "healthy"

	message := "Service is healthy"
	overall := "healthy"
	if !healthy {
		message = "Service has issues"
		overall = "degraded"
	}

	return &dto.HealthResponse{
		Success: healthy,
		Message: message,
		Service: ServiceName,
		Version: ServiceVersion,
		Status:  overall,
		Dependencies: map[string]string{
			"vectorstore":        statusField(vectorstoreStatus),
			"rag_service":        statusField(ragStatus),
			"evaluation_service": statusField(evaluationStatus),
			"monitoring":         statusField(monitoringStatus),
		},
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
	}
}

func (s *statusService) Status(ctx context.Context, authenticated bool) *dto.ServiceStatusResponse {
	services := map[string]dto.ComponentStatus{
		"vectorstore":        sanitizeStatus(s.cachedProbe(ctx, "vectorstore", s.vectorstoreStatus), authenticated),
		"rag_service":        sanitizeStatus(s.cachedProbe(ctx, "rag", s.ragStatus), authenticated),
		"evaluation_service": sanitizeStatus(s.cachedProbe(ctx, "evaluation", s.evaluationStatus), authenticated),
		"monitoring":         sanitizeStatus(s.cachedProbe(ctx, "monitoring", s.monitoringStatus), authenticated),
	}

	return &dto.ServiceStatusResponse{
		Success:  true,
		Message:  "Service status retrieved successfully",
		Services: services,
	}
}

// cachedProbe returns the cached probe result when fresh, otherwise runs the
// probe and stores it.
func (s *statusService) cachedProbe(ctx context.Context, key string, probe func(context.Context) dto.ComponentStatus) dto.ComponentStatus {
	if x, found := s.cache.Get(key); found {
		return x.(dto.ComponentStatus)
	}
	status := probe(ctx)
	s.cache.Set(key, status, cache.DefaultExpiration)
	return status
}

func (s *statusService) vectorstoreStatus(ctx context.Context) dto.ComponentStatus {
	collections, err := s.store.ListCollections(ctx)
	if err != nil {
		s.log.Error("status", "vectorstore health check failed", map[string]interface{}{
			"error": err.Error(),
		})
		return dto.ComponentStatus{"status": "disconnected", "error": err.Error()}
	}
	return dto.ComponentStatus{
		"status":            "connected",
		"collections_count": len(collections),
		"connection_type":   "gRPC",
	}
}

func (s *statusService) ragStatus(ctx context.Context) dto.ComponentStatus {
	collections, err := s.store.ListCollections(ctx)
	if err != nil {
		return dto.ComponentStatus{"status": "unhealthy", "error": "vectorstore not connected"}
	}

	exists := false
	for _, name := range collections {
		if name == s.cfg.Qdrant.CollectionName {
			exists = true
			break
		}
	}
	if !exists {
		return dto.ComponentStatus{
			"status": "unhealthy",
			"error":  fmt.Sprintf("collection %s does not exist", s.cfg.Qdrant.CollectionName),
		}
	}

	return dto.ComponentStatus{
		"status":          "healthy",
		"provider":        s.cfg.LLM.Provider,
		"model":           s.cfg.LLM.Model,
		"embedding_model": s.cfg.Embedding.Model,
		"reranking":       s.rerankStatus(),
	}
}

func (s *statusService) rerankStatus() dto.ComponentStatus {
	if !s.cfg.Rerank.Enabled {
		return dto.ComponentStatus{
			"status":  "disabled",
			"message": "Reranking is disabled in configuration",
		}
	}
	return dto.ComponentStatus{
		"status":      "healthy",
		"model":       s.cfg.Rerank.Model,
		"service_url": s.cfg.Rerank.ServiceURL,
	}
}

func (s *statusService) evaluationStatus(_ context.Context) dto.ComponentStatus {
	status := "disabled"
	if s.evaluation.Enabled() {
		status = "healthy"
	}
	return dto.ComponentStatus{
		"status":     status,
		"enabled":    s.evaluation.Enabled(),
		"queue_size": s.evaluation.QueueSize(),
	}
}

func (s *statusService) monitoringStatus(_ context.Context) dto.ComponentStatus {
	if !s.cfg.Monitoring.Enabled {
		return dto.ComponentStatus{
			"status":        "disabled",
			"message":       "Monitoring is disabled in configuration",
			"recent_errors": s.log.Recent("ERROR", 5),
		}
	}
	return dto.ComponentStatus{
		"status":          "healthy",
		"project_name":    s.cfg.Monitoring.ProjectName,
		"otlp_endpoint":   s.cfg.Monitoring.OTLPEndpoint,
		"active_sessions": s.tracker.ActiveSessions(),
		"recent_errors":   s.log.Recent("ERROR", 5),
	}
}

// sanitizeStatus strips everything but the status field for callers without
// a valid token.
func sanitizeStatus(status dto.ComponentStatus, authenticated bool) dto.ComponentStatus {
	if authenticated {
		return status
	}
	return dto.ComponentStatus{"status": statusField(status)}
}

func statusField(status dto.ComponentStatus) string {
	if v, ok := status["status"].(string); ok {
		return v
	}
	return "unknown"
}
