// Package job implements the Job Queue (C6) and Job Workers (C7): a
// priority/FIFO queue over a pluggable Redis or in-memory store, with a
// pool of worker goroutines draining it through registered handlers.
// The Redis store uses raw pipelining (Set/ZAdd/ZRem) and ZPOPMIN over the
// sorted-set keyspace its ordering and recovery semantics require, rather
// than an opaque task-queue library whose envelope can't express that
// keyspace.
package job

import (
	"context"
	"time"

	"novita-orchestrator/internal/model"
)

// Store is the persistence contract the queue engine drives. Both the
// Redis and memory implementations provide identical semantics; only
// durability and recovery behavior differ (§4.6).
type Store interface {
	SaveJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListJobs(ctx context.Context, filter model.JobFilter) ([]*model.Job, error)

	EnqueuePending(ctx context.Context, job *model.Job) error
	// PopNextPending atomically removes and returns the highest-priority,
	// oldest, lowest-id pending job, or (nil, nil) if the queue is empty.
	PopNextPending(ctx context.Context) (*model.Job, error)
	MoveToProcessing(ctx context.Context, job *model.Job) error
	MoveToCompleted(ctx context.Context, job *model.Job) error
	MoveToRetry(ctx context.Context, job *model.Job, nextRetryAt time.Time) error
	MoveToFailed(ctx context.Context, job *model.Job) error

	// PromoteDueRetries moves every retry-set job whose NextRetryAt <= now
	// into pending, returning the count moved.
	PromoteDueRetries(ctx context.Context, now time.Time) (int, error)
	// RecoverStaleProcessing moves processing jobs started before the
	// stale threshold back to pending, preserving Attempts.
	RecoverStaleProcessing(ctx context.Context, staleBefore time.Time) (int, error)
	// Cleanup trims completed/failed jobs older than olderThan.
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)

	Stats(ctx context.Context) (model.JobStats, error)
}

// priorityScore implements §4.6's sorted-set ordering: higher priority
// first, then earlier createdAt, with id as the final tiebreak handled by
// the caller when scores collide.
func priorityScore(priority model.Priority, createdAt time.Time) float64 {
	return float64(-int64(priority))*1e13 + float64(createdAt.UnixMilli())
}

// backoff implements §4.6's retry backoff: exponential, floor 1s, ceiling
// 5 minutes.
func backoff(attempts int) time.Duration {
	d := time.Second * time.Duration(1<<uint(attempts-1))
	if d > 5*time.Minute {
		d = 5 * time.Minute
	}
	if d < time.Second {
		d = time.Second
	}
	return d
}
