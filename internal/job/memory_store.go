package job

import (
	"context"
	"sort"
	"sync"
	"time"

	"novita-orchestrator/internal/model"
	orcherrors "novita-orchestrator/pkg/errors"
)

// MemoryStore is the in-process store initJobQueue uses when no Redis
// client is set, and the store tests use. Recovery is a no-op: an
// in-memory store is ephemeral, so nothing survives a restart to recover
// (§4.6).
type MemoryStore struct {
	mu         sync.Mutex
	jobs       map[string]*model.Job
	pending    map[string]bool
	processing map[string]bool
	retry      map[string]bool
	completed  map[string]bool
	failed     map[string]bool
}

// NewMemoryStore builds an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:       make(map[string]*model.Job),
		pending:    make(map[string]bool),
		processing: make(map[string]bool),
		retry:      make(map[string]bool),
		completed:  make(map[string]bool),
		failed:     make(map[string]bool),
	}
}

func (s *MemoryStore) SaveJob(ctx context.Context, j *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *j
	s.jobs[j.ID] = &clone
	return nil
}

func (s *MemoryStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, orcherrors.New(orcherrors.KindNotFound, "job not found: "+id)
	}
	clone := *j
	return &clone, nil
}

func (s *MemoryStore) ListJobs(ctx context.Context, filter model.JobFilter) ([]*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if filter.Status != nil && j.Status != *filter.Status {
			continue
		}
		if filter.Type != nil && j.Type != *filter.Type {
			continue
		}
		clone := *j
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].Priority != out[k].Priority {
			return out[i].Priority > out[k].Priority
		}
		if !out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].CreatedAt.Before(out[k].CreatedAt)
		}
		return out[i].ID < out[k].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) EnqueuePending(ctx context.Context, j *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j.Status = model.JobPending
	clone := *j
	s.jobs[j.ID] = &clone
	delete(s.processing, j.ID)
	delete(s.retry, j.ID)
	s.pending[j.ID] = true
	return nil
}

func (s *MemoryStore) PopNextPending(ctx context.Context) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *model.Job
	for id := range s.pending {
		j := s.jobs[id]
		if j == nil {
			delete(s.pending, id)
			continue
		}
		if best == nil || higherPriority(j, best) {
			best = j
		}
	}
	if best == nil {
		return nil, nil
	}
	delete(s.pending, best.ID)
	clone := *best
	return &clone, nil
}

func higherPriority(a, b *model.Job) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (s *MemoryStore) MoveToProcessing(ctx context.Context, j *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j.Status = model.JobProcessing
	clone := *j
	s.jobs[j.ID] = &clone
	delete(s.pending, j.ID)
	s.processing[j.ID] = true
	return nil
}

func (s *MemoryStore) MoveToCompleted(ctx context.Context, j *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j.Status = model.JobCompleted
	clone := *j
	s.jobs[j.ID] = &clone
	delete(s.processing, j.ID)
	s.completed[j.ID] = true
	return nil
}

func (s *MemoryStore) MoveToRetry(ctx context.Context, j *model.Job, nextRetryAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j.Status = model.JobPending
	j.NextRetryAt = &nextRetryAt
	clone := *j
	s.jobs[j.ID] = &clone
	delete(s.processing, j.ID)
	s.retry[j.ID] = true
	return nil
}

func (s *MemoryStore) MoveToFailed(ctx context.Context, j *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j.Status = model.JobFailed
	clone := *j
	s.jobs[j.ID] = &clone
	delete(s.processing, j.ID)
	s.failed[j.ID] = true
	return nil
}

func (s *MemoryStore) PromoteDueRetries(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for id := range s.retry {
		j := s.jobs[id]
		if j == nil || j.NextRetryAt == nil {
			delete(s.retry, id)
			continue
		}
		if j.NextRetryAt.After(now) {
			continue
		}
		delete(s.retry, id)
		s.pending[id] = true
		count++
	}
	return count, nil
}

// RecoverStaleProcessing is a no-op for the in-memory store: nothing
// survives a process restart to recover in the first place (§4.6).
func (s *MemoryStore) RecoverStaleProcessing(ctx context.Context, staleBefore time.Time) (int, error) {
	return 0, nil
}

func (s *MemoryStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	count := 0
	for id := range s.completed {
		j := s.jobs[id]
		if j != nil && j.CompletedAt != nil && j.CompletedAt.Before(cutoff) {
			delete(s.completed, id)
			delete(s.jobs, id)
			count++
		}
	}
	for id := range s.failed {
		j := s.jobs[id]
		if j != nil && j.CompletedAt != nil && j.CompletedAt.Before(cutoff) {
			delete(s.failed, id)
			delete(s.jobs, id)
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (model.JobStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.JobStats{
		Pending:    len(s.pending),
		Processing: len(s.processing),
		Completed:  len(s.completed),
		Failed:     len(s.failed),
		Retry:      len(s.retry),
	}, nil
}
