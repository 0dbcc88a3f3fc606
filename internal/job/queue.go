package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"novita-orchestrator/internal/model"
	"novita-orchestrator/pkg/logger"

	"github.com/google/uuid"
)

// Handler executes a single job attempt. Returning an error records an
// attempt failure; the queue decides retry vs. terminal failure.
type Handler func(ctx context.Context, j *model.Job) error

// Queue is the C6 engine: it owns a Store, a handler registry, and a pool
// of worker goroutines draining pending jobs.
type Queue struct {
	store              Store
	handlers           map[model.JobType]Handler
	handlersMu         sync.RWMutex
	workerCount        int
	pollInterval       time.Duration
	staleProcessingAge time.Duration

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	stopOnce  sync.Once
	running   bool
	runningMu sync.Mutex
	maintDone chan struct{}
}

// Options configures queue engine behavior.
type Options struct {
	WorkerCount        int
	PollInterval       time.Duration
	StaleProcessingAge time.Duration
	MaintenanceEvery   time.Duration
}

// New builds a Queue over the given store.
func New(store Store, opts Options) *Queue {
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.StaleProcessingAge <= 0 {
		opts.StaleProcessingAge = 5 * time.Minute
	}
	return &Queue{
		store:              store,
		handlers:            make(map[model.JobType]Handler),
		workerCount:        opts.WorkerCount,
		pollInterval:       opts.PollInterval,
		staleProcessingAge: opts.StaleProcessingAge,
	}
}

// RegisterHandler wires a handler for a job type (§4.6's registerHandler).
func (q *Queue) RegisterHandler(jobType model.JobType, handler Handler) {
	q.handlersMu.Lock()
	defer q.handlersMu.Unlock()
	q.handlers[jobType] = handler
}

func (q *Queue) handlerFor(jobType model.JobType) (Handler, bool) {
	q.handlersMu.RLock()
	defer q.handlersMu.RUnlock()
	h, ok := q.handlers[jobType]
	return h, ok
}

// AddJob enqueues a new job, returning its id (§4.6's addJob).
func (q *Queue) AddJob(ctx context.Context, jobType model.JobType, payload []byte, priority model.Priority, maxAttempts int) (string, error) {
	if priority == 0 {
		priority = model.PriorityNormal
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	j := &model.Job{
		ID:          uuid.NewString(),
		Type:        jobType,
		Payload:     payload,
		Status:      model.JobPending,
		Priority:    priority,
		MaxAttempts: maxAttempts,
		CreatedAt:   time.Now().UTC(),
	}
	if err := q.store.EnqueuePending(ctx, j); err != nil {
		return "", fmt.Errorf("failed to add job: %w", err)
	}
	return j.ID, nil
}

// GetJob returns a single job by id.
func (q *Queue) GetJob(ctx context.Context, id string) (*model.Job, error) {
	return q.store.GetJob(ctx, id)
}

// GetJobs implements the §4.6 dedup query hook.
func (q *Queue) GetJobs(ctx context.Context, filter model.JobFilter) ([]*model.Job, error) {
	return q.store.ListJobs(ctx, filter)
}

// GetStats returns queue-wide counters.
func (q *Queue) GetStats(ctx context.Context) (model.JobStats, error) {
	return q.store.Stats(ctx)
}

// PerformRecoveryTasks runs the startup recovery pass: stale processing
// jobs go back to pending (attempts preserved), and retry jobs whose
// nextRetryAt has already elapsed move to pending (§4.6).
func (q *Queue) PerformRecoveryTasks(ctx context.Context) error {
	staleBefore := time.Now().Add(-q.staleProcessingAge)
	recovered, err := q.store.RecoverStaleProcessing(ctx, staleBefore)
	if err != nil {
		return fmt.Errorf("recovery: stale processing scan failed: %w", err)
	}
	if recovered > 0 {
		logger.Infof("job queue recovery: requeued %d stale processing jobs", recovered)
	}

	promoted, err := q.store.PromoteDueRetries(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("recovery: due-retry scan failed: %w", err)
	}
	if promoted > 0 {
		logger.Infof("job queue recovery: promoted %d due retry jobs", promoted)
	}
	return nil
}

// StartProcessing launches the worker pool and the maintenance loop.
func (q *Queue) StartProcessing(ctx context.Context) {
	q.runningMu.Lock()
	if q.running {
		q.runningMu.Unlock()
		return
	}
	q.running = true
	runCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.maintDone = make(chan struct{})
	q.runningMu.Unlock()

	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.workerLoop(runCtx, i)
	}

	go q.maintenanceLoop(runCtx)
}

func (q *Queue) workerLoop(ctx context.Context, workerID int) {
	defer q.wg.Done()
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.processNext(ctx, workerID)
		}
	}
}

// processNext implements one tick of §4.6's execution loop: promote due
// retries, pop, invoke, record outcome.
func (q *Queue) processNext(ctx context.Context, workerID int) {
	if _, err := q.store.PromoteDueRetries(ctx, time.Now()); err != nil {
		logger.Warnf("worker %d: failed to promote due retries: %v", workerID, err)
	}
	j, err := q.store.PopNextPending(ctx)
	if err != nil {
		logger.Warnf("worker %d: failed to pop pending job: %v", workerID, err)
		return
	}
	if j == nil {
		return
	}

	now := time.Now().UTC()
	j.StartedAt = &now
	if err := q.store.MoveToProcessing(ctx, j); err != nil {
		logger.Warnf("worker %d: failed to mark job %s processing: %v", workerID, j.ID, err)
		return
	}

	handler, ok := q.handlerFor(j.Type)
	j.Attempts++

	var handlerErr error
	if !ok {
		handlerErr = fmt.Errorf("no handler registered for job type %s", j.Type)
	} else {
		handlerErr = handler(ctx, j)
	}

	if handlerErr == nil {
		completedAt := time.Now().UTC()
		j.CompletedAt = &completedAt
		j.Error = ""
		if err := q.store.MoveToCompleted(ctx, j); err != nil {
			logger.Warnf("worker %d: failed to mark job %s completed: %v", workerID, j.ID, err)
		}
		return
	}

	j.Error = handlerErr.Error()
	if j.Attempts < j.MaxAttempts {
		nextRetryAt := time.Now().UTC().Add(backoff(j.Attempts))
		if err := q.store.MoveToRetry(ctx, j, nextRetryAt); err != nil {
			logger.Warnf("worker %d: failed to schedule retry for job %s: %v", workerID, j.ID, err)
		}
		return
	}

	completedAt := time.Now().UTC()
	j.CompletedAt = &completedAt
	if err := q.store.MoveToFailed(ctx, j); err != nil {
		logger.Warnf("worker %d: failed to mark job %s failed: %v", workerID, j.ID, err)
	}
}

func (q *Queue) maintenanceLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	defer close(q.maintDone)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := q.PerformRecoveryTasks(ctx); err != nil {
				logger.Warnf("maintenance: recovery pass failed: %v", err)
			}
		}
	}
}

// StopProcessing halts the loop after any in-flight job completes.
func (q *Queue) StopProcessing() {
	q.runningMu.Lock()
	defer q.runningMu.Unlock()
	if !q.running {
		return
	}
	q.running = false
	if q.cancel != nil {
		q.cancel()
	}
}

// Shutdown waits up to grace for processing to drain, then returns,
// logging a warning if jobs are still in flight (§4.6).
func (q *Queue) Shutdown(ctx context.Context, grace time.Duration) {
	q.StopProcessing()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-time.After(grace):
		stats, err := q.store.Stats(ctx)
		if err == nil && stats.Processing > 0 {
			logger.Warnf("job queue shutdown: %d jobs still processing after %s grace period", stats.Processing, grace)
		}
	}
}

// Cleanup trims completed/failed jobs older than olderThan.
func (q *Queue) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	return q.store.Cleanup(ctx, olderThan)
}
