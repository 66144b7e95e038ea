package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"lus-laboris-api/internal/dto"
	"lus-laboris-api/internal/monitoring"
	"lus-laboris-api/internal/pkg/logger"
	"lus-laboris-api/pkg/embedding"
	"lus-laboris-api/pkg/events"
	"lus-laboris-api/pkg/lawparse"
	"lus-laboris-api/pkg/nats"
	"lus-laboris-api/pkg/storage"
	"lus-laboris-api/pkg/vectorstore"
)

const (
	// Embedding batches run concurrently up to this limit, throttled so the
	// provider does not rate-limit us.
	ingestConcurrency     = 4
	embedRequestsPerSec   = 2
	defaultIngestBatchLen = 100
)

type IIngestService interface {
	// SubmitLocalLoad queues an ingestion job reading from the local data
	// directory. Returns the job id for polling.
	SubmitLocalLoad(req *dto.LoadLocalRequest, user string) string

	// SubmitRemoteLoad queues an ingestion job reading from object storage.
	SubmitRemoteLoad(req *dto.LoadRemoteRequest, user string) string
}

type ingestService struct {
	store     vectorstore.VectorStore
	embedder  embedding.EmbeddingProvider
	objects   storage.ObjectStorage
	jobs      IJobService
	tracker   monitoring.ISessionTracker
	publisher *nats.Publisher
	log       logger.ILogger

	dataDir    string
	collection string
	batchSize  int
	limiter    *rate.Limiter
}

func NewIngestService(
	store vectorstore.VectorStore,
	embedder embedding.EmbeddingProvider,
	objects storage.ObjectStorage,
	jobs IJobService,
	tracker monitoring.ISessionTracker,
	publisher *nats.Publisher,
	dataDir string,
	collection string,
	batchSize int,
	log logger.ILogger,
) IIngestService {
	if batchSize <= 0 {
		batchSize = defaultIngestBatchLen
	}
	return &ingestService{
		store:      store,
		embedder:   embedder,
		objects:    objects,
		jobs:       jobs,
		tracker:    tracker,
		publisher:  publisher,
		log:        log,
		dataDir:    dataDir,
		collection: collection,
		batchSize:  batchSize,
		limiter:    rate.NewLimiter(rate.Limit(embedRequestsPerSec), 1),
	}
}

func (is *ingestService) SubmitLocalLoad(req *dto.LoadLocalRequest, user string) string {
	dataDir := req.LocalDataPath
	if dataDir == "" {
		dataDir = is.dataDir
	}
	filename := req.Filename
	replace := req.ReplaceCollection

	params := JobParams{
		Operation:      "load_to_vectorstore",
		User:           user,
		CollectionName: is.collection,
		Filename:       filename,
	}

	return is.jobs.Submit(params, func(ctx context.Context, jobID, sessionID string) (map[string]interface{}, error) {
		filePath := filepath.Join(dataDir, filename)
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load local data: %w", err)
		}

		is.log.Info("ingest", "loaded local data file", map[string]interface{}{
			"path":   filePath,
			"job_id": jobID,
		})
		return is.ingest(ctx, jobID, sessionID, data, replace)
	})
}

func (is *ingestService) SubmitRemoteLoad(req *dto.LoadRemoteRequest, user string) string {
	bucket := req.BucketName
	object := path.Join(req.Folder, req.Filename)
	replace := req.ReplaceCollection

	params := JobParams{
		Operation:      "load_to_vectorstore_remote",
		User:           user,
		CollectionName: is.collection,
		Filename:       req.Filename,
	}

	return is.jobs.Submit(params, func(ctx context.Context, jobID, sessionID string) (map[string]interface{}, error) {
		if is.objects == nil {
			return nil, fmt.Errorf("object storage is not configured")
		}

		data, err := is.objects.Fetch(ctx, bucket, object)
		if err != nil {
			return nil, fmt.Errorf("failed to load remote data: %w", err)
		}

		is.log.Info("ingest", "loaded remote data object", map[string]interface{}{
			"bucket": bucket,
			"object": object,
			"job_id": jobID,
		})
		return is.ingest(ctx, jobID, sessionID, data, replace)
	})
}

// ingest parses the law file, embeds every article and upserts the points.
// The returned map becomes the job result.
func (is *ingestService) ingest(ctx context.Context, jobID, sessionID string, data []byte, replace bool) (map[string]interface{}, error) {
	start := time.Now()

	var doc lawparse.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse law data: %w", err)
	}
	if len(doc.Articulos) == 0 {
		return nil, fmt.Errorf("no articles found in data")
	}

	numeroLey := doc.Meta.NumeroLey
	if numeroLey == "" {
		numeroLey = "unknown"
	}
	source := "codigo_trabajo_paraguay_ley" + numeroLey

	// 1. Build embedding texts and point payloads
	texts := make([]string, len(doc.Articulos))
	payloads := make([]map[string]interface{}, len(doc.Articulos))
	for i, art := range doc.Articulos {
		body := art.Body()
		texts[i] = fmt.Sprintf("%s: %s", art.CapituloDescripcion, body)
		payloads[i] = map[string]interface{}{
			"libro":                art.Libro,
			"libro_numero":         art.LibroNumero,
			"titulo":               art.Titulo,
			"capitulo":             art.Capitulo,
			"capitulo_numero":      art.CapituloNumero,
			"capitulo_descripcion": art.CapituloDescripcion,
			"articulo":             body,
			"articulo_numero":      art.ArticuloNumero,
			"articulo_len":         utf8.RuneCountInString(body),
			"source":               source,
		}
	}

	is.log.Info("ingest", "processing documents for embedding", map[string]interface{}{
		"documents": len(texts),
		"source":    source,
		"job_id":    jobID,
	})

	// 2. Embed in batches with bounded concurrency
	embedStart := time.Now()
	vectors := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ingestConcurrency)
	for offset := 0; offset < len(texts); offset += is.batchSize {
		offset := offset
		end := offset + is.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		g.Go(func() error {
			if err := is.limiter.Wait(gctx); err != nil {
				return err
			}
			batch, err := is.embedder.Embed(gctx, texts[offset:end])
			if err != nil {
				return fmt.Errorf("failed to embed batch at %d: %w", offset, err)
			}
			copy(vectors[offset:end], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	embedSeconds := time.Since(embedStart).Seconds()

	is.tracker.TrackEmbeddingGeneration(ctx, sessionID, is.embedder.Model(), len(texts), embedSeconds)

	// 3. Create the collection, dropping the old one when replacing
	if replace && is.collectionExists(ctx) {
		is.log.Info("ingest", "deleting existing collection", map[string]interface{}{
			"collection": is.collection,
		})
		if err := is.store.DeleteCollection(ctx, is.collection); err != nil {
			return nil, fmt.Errorf("failed to delete existing collection: %w", err)
		}
	}

	vectorSize := uint64(len(vectors[0]))
	if err := is.store.EnsureCollection(ctx, is.collection, vectorSize); err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	// 4. Upsert points batch by batch
	inserted := 0
	for offset := 0; offset < len(doc.Articulos); offset += is.batchSize {
		end := offset + is.batchSize
		if end > len(doc.Articulos) {
			end = len(doc.Articulos)
		}

		points := make([]vectorstore.Point, 0, end-offset)
		for i := offset; i < end; i++ {
			points = append(points, vectorstore.Point{
				ID:      uuid.NewString(),
				Vector:  vectors[i],
				Payload: payloads[i],
			})
		}

		if err := is.store.Upsert(ctx, is.collection, points); err != nil {
			return nil, fmt.Errorf("failed to insert batch at %d: %w", offset, err)
		}
		inserted += len(points)

		is.log.Info("ingest", "inserted batch", map[string]interface{}{
			"batch":     offset/is.batchSize + 1,
			"documents": len(points),
		})
	}

	elapsed := time.Since(start).Seconds()

	is.tracker.TrackVectorstoreOperation(ctx, sessionID, "load_to_vectorstore", is.collection, map[string]interface{}{
		"documents_processed": len(doc.Articulos),
		"documents_inserted":  inserted,
		"source":              source,
		"processing_time":     elapsed,
	})

	if is.publisher != nil {
		event := events.NewIngestionCompleted(jobID, is.collection, inserted)
		if err := is.publisher.Publish(ctx, event); err != nil {
			is.log.Warn("ingest", "failed to publish ingestion event", map[string]interface{}{
				"job_id": jobID,
				"error":  err.Error(),
			})
		}
	}

	is.log.Info("ingest", "ingestion completed", map[string]interface{}{
		"job_id":             jobID,
		"documents_inserted": inserted,
		"elapsed_seconds":    round3(elapsed),
	})

	return map[string]interface{}{
		"collection_name":         is.collection,
		"documents_processed":     len(doc.Articulos),
		"documents_inserted":      inserted,
		"processing_time_seconds": round3(elapsed),
		"embedding_model":         is.embedder.Model(),
		"vector_dimensions":       int(vectorSize),
		"batch_size":              is.batchSize,
	}, nil
}

func (is *ingestService) collectionExists(ctx context.Context) bool {
	collections, err := is.store.ListCollections(ctx)
	if err != nil {
		return false
	}
	for _, name := range collections {
		if name == is.collection {
			return true
		}
	}
	return false
}
