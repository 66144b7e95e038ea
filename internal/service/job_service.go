package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"lus-laboris-api/internal/dto"
	"lus-laboris-api/internal/monitoring"
	"lus-laboris-api/internal/pkg/logger"
)

const jobQueueCapacity = 32

// JobParams describes a submitted job.
type JobParams struct {
	Operation      string
	User           string
	CollectionName string
	Filename       string
}

// JobFunc is the unit of work executed in the background. The session id
// belongs to the job's own monitoring session.
type JobFunc func(ctx context.Context, jobID, sessionID string) (map[string]interface{}, error)

type IJobService interface {
	// Submit registers a queued job and schedules its work. Returns the job
	// id immediately; the caller polls for the outcome.
	Submit(params JobParams, work JobFunc) string

	// Get returns a job record by id.
	Get(jobID string) (dto.Job, bool)

	// List returns all job records, newest first.
	List() []dto.Job

	// Start launches the job worker and the retention sweeper.
	Start(ctx context.Context) error
}

type jobExecution struct {
	jobID     string
	sessionID string
	work      JobFunc
}

type jobRecord struct {
	job        dto.Job
	finishedAt time.Time
}

type jobService struct {
	mu      sync.Mutex
	jobs    map[string]*jobRecord
	queue   chan jobExecution
	tracker monitoring.ISessionTracker
	log     logger.ILogger

	retention  time.Duration
	sweepEvery time.Duration
	now        func() time.Time
}

// NewJobService creates the job tracker. Retention of zero or less disables
// the sweep and keeps records until process restart.
func NewJobService(
	tracker monitoring.ISessionTracker,
	retention time.Duration,
	sweepEvery time.Duration,
	log logger.ILogger,
) IJobService {
	return &jobService{
		jobs:       make(map[string]*jobRecord),
		queue:      make(chan jobExecution, jobQueueCapacity),
		tracker:    tracker,
		log:        log,
		retention:  retention,
		sweepEvery: sweepEvery,
		now:        time.Now,
	}
}

func (js *jobService) Start(ctx context.Context) error {
	go js.worker(ctx)
	if js.retention > 0 && js.sweepEvery > 0 {
		go js.sweeper(ctx)
	}
	return nil
}

func (js *jobService) Submit(params JobParams, work JobFunc) string {
	jobID := uuid.NewString()
	sessionID := js.tracker.CreateSession(context.Background(), params.User)

	js.mu.Lock()
	js.jobs[jobID] = &jobRecord{
		job: dto.Job{
			JobID:          jobID,
			Status:         dto.JobQueued,
			Operation:      params.Operation,
			User:           params.User,
			CollectionName: params.CollectionName,
			Filename:       params.Filename,
			CreatedAt:      js.now().UTC().Format(time.RFC3339),
			SessionID:      sessionID,
		},
	}
	js.mu.Unlock()

	js.log.Info("jobs", "job submitted", map[string]interface{}{
		"job_id":    jobID,
		"operation": params.Operation,
		"user":      params.User,
	})

	select {
	case js.queue <- jobExecution{jobID: jobID, sessionID: sessionID, work: work}:
	default:
		// The only transition that skips "processing": the work never ran.
		js.fail(jobID, "job queue full")
		js.tracker.EndSession(context.Background(), sessionID)
	}

	return jobID
}

func (js *jobService) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case exec := <-js.queue:
			js.run(ctx, exec)
		}
	}
}

func (js *jobService) run(ctx context.Context, exec jobExecution) {
	defer js.tracker.EndSession(ctx, exec.sessionID)
	defer func() {
		if r := recover(); r != nil {
			js.fail(exec.jobID, fmt.Sprintf("job panicked: %v", r))
		}
	}()

	js.markProcessing(exec.jobID)

	result, err := exec.work(ctx, exec.jobID, exec.sessionID)
	if err != nil {
		js.fail(exec.jobID, err.Error())
		return
	}
	js.complete(exec.jobID, result)
}

func (js *jobService) markProcessing(jobID string) {
	js.mu.Lock()
	defer js.mu.Unlock()

	if record, ok := js.jobs[jobID]; ok {
		record.job.Status = dto.JobProcessing
		record.job.StartedAt = js.now().UTC().Format(time.RFC3339)
	}
}

func (js *jobService) complete(jobID string, result map[string]interface{}) {
	js.mu.Lock()
	defer js.mu.Unlock()

	if record, ok := js.jobs[jobID]; ok {
		record.job.Status = dto.JobCompleted
		record.job.CompletedAt = js.now().UTC().Format(time.RFC3339)
		record.job.Result = result
		record.job.Error = ""
		record.finishedAt = js.now()
	}

	js.log.Info("jobs", "job completed", map[string]interface{}{
		"job_id": jobID,
	})
}

func (js *jobService) fail(jobID string, message string) {
	js.mu.Lock()
	defer js.mu.Unlock()

	if record, ok := js.jobs[jobID]; ok {
		record.job.Status = dto.JobFailed
		record.job.CompletedAt = js.now().UTC().Format(time.RFC3339)
		record.job.Error = message
		record.job.Result = nil
		record.finishedAt = js.now()
	}

	js.log.Error("jobs", "job failed", map[string]interface{}{
		"job_id": jobID,
		"error":  message,
	})
}

func (js *jobService) Get(jobID string) (dto.Job, bool) {
	js.mu.Lock()
	defer js.mu.Unlock()

	record, ok := js.jobs[jobID]
	if !ok {
		return dto.Job{}, false
	}
	return record.job, true
}

func (js *jobService) List() []dto.Job {
	js.mu.Lock()
	defer js.mu.Unlock()

	out := make([]dto.Job, 0, len(js.jobs))
	for _, record := range js.jobs {
		out = append(out, record.job)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt == out[j].CreatedAt {
			return out[i].JobID < out[j].JobID
		}
		return out[i].CreatedAt > out[j].CreatedAt
	})
	return out
}

func (js *jobService) sweeper(ctx context.Context) {
	ticker := time.NewTicker(js.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			js.sweep()
		}
	}
}

// sweep evicts finished jobs older than the retention window. Queued and
// processing jobs are never touched.
func (js *jobService) sweep() {
	cutoff := js.now().Add(-js.retention)

	js.mu.Lock()
	swept := 0
	for id, record := range js.jobs {
		if !record.finishedAt.IsZero() && record.finishedAt.Before(cutoff) {
			delete(js.jobs, id)
			swept++
		}
	}
	js.mu.Unlock()

	if swept > 0 {
		js.log.Info("jobs", "swept finished jobs past retention", map[string]interface{}{
			"swept": swept,
		})
	}
}
