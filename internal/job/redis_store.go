package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"novita-orchestrator/internal/model"
	orcherrors "novita-orchestrator/pkg/errors"
	"novita-orchestrator/pkg/logger"

	"github.com/go-redis/redis/v8"
)

const (
	jobKeyPrefix    = "job:"
	queuePending    = "queue:pending"
	queueProcessing = "queue:processing"
	queueRetry      = "queue:retry"
	queueCompleted  = "queue:completed"
	queueFailed     = "queue:failed"
	jobDataTTL      = 7 * 24 * time.Hour
)

// RedisStore is the durable Job Queue store (§4.6 persistence), grounded
// on worker_repository.go's pipelined Set/SAdd/Expire idiom, generalized
// to sorted sets so priority/createdAt ordering is native to Redis
// (equal scores break ties lexicographically by member, which is exactly
// §4.6's "ties broken by id" when job id is used as the member).
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps a Redis client as a Job Queue Store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}

func (s *RedisStore) SaveJob(ctx context.Context, j *model.Job) error {
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := s.client.Set(ctx, jobKey(j.ID), data, jobDataTTL).Err(); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *RedisStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	data, err := s.client.Get(ctx, jobKey(id)).Result()
	if err == redis.Nil {
		return nil, orcherrors.New(orcherrors.KindNotFound, "job not found: "+id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	var j model.Job
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &j, nil
}

func (s *RedisStore) ListJobs(ctx context.Context, filter model.JobFilter) ([]*model.Job, error) {
	setKey := queuePending
	if filter.Status != nil {
		switch *filter.Status {
		case model.JobProcessing:
			setKey = queueProcessing
		case model.JobCompleted:
			setKey = queueCompleted
		case model.JobFailed:
			setKey = queueFailed
		default:
			setKey = queuePending
		}
	}

	var ids []string
	var err error
	if filter.Status == nil {
		ids, err = s.allJobIDs(ctx)
	} else {
		ids, err = s.client.ZRange(ctx, setKey, 0, -1).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	out := make([]*model.Job, 0, len(ids))
	for _, id := range ids {
		j, err := s.GetJob(ctx, id)
		if err != nil {
			continue
		}
		if filter.Type != nil && j.Type != *filter.Type {
			continue
		}
		out = append(out, j)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *RedisStore) allJobIDs(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	var ids []string
	for _, key := range []string{queuePending, queueProcessing, queueRetry, queueCompleted, queueFailed} {
		members, err := s.client.ZRange(ctx, key, 0, -1).Result()
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if !seen[m] {
				seen[m] = true
				ids = append(ids, m)
			}
		}
	}
	return ids, nil
}

func (s *RedisStore) EnqueuePending(ctx context.Context, j *model.Job) error {
	j.Status = model.JobPending
	score := priorityScore(j.Priority, j.CreatedAt)

	pipe := s.client.Pipeline()
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	pipe.Set(ctx, jobKey(j.ID), data, jobDataTTL)
	pipe.ZRem(ctx, queueProcessing, j.ID)
	pipe.ZRem(ctx, queueRetry, j.ID)
	pipe.ZAdd(ctx, queuePending, &redis.Z{Score: score, Member: j.ID})
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// PopNextPending uses ZPOPMIN, which is atomic for a single key and, on
// score ties, orders by member lexicographically — exactly the id
// tiebreak §4.6 requires since priorityScore collisions only happen
// within the same priority+createdAtMs bucket.
func (s *RedisStore) PopNextPending(ctx context.Context) (*model.Job, error) {
	results, err := s.client.ZPopMin(ctx, queuePending, 1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to pop pending job: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	id, ok := results[0].Member.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected pending queue member type")
	}
	j, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (s *RedisStore) MoveToProcessing(ctx context.Context, j *model.Job) error {
	j.Status = model.JobProcessing
	score := float64(j.StartedAt.UnixMilli())

	pipe := s.client.Pipeline()
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	pipe.Set(ctx, jobKey(j.ID), data, jobDataTTL)
	pipe.ZRem(ctx, queuePending, j.ID)
	pipe.ZAdd(ctx, queueProcessing, &redis.Z{Score: score, Member: j.ID})
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to move job to processing: %w", err)
	}
	return nil
}

func (s *RedisStore) MoveToCompleted(ctx context.Context, j *model.Job) error {
	j.Status = model.JobCompleted
	score := float64(j.CompletedAt.UnixMilli())

	pipe := s.client.Pipeline()
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	pipe.Set(ctx, jobKey(j.ID), data, jobDataTTL)
	pipe.ZRem(ctx, queueProcessing, j.ID)
	pipe.ZAdd(ctx, queueCompleted, &redis.Z{Score: score, Member: j.ID})
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to move job to completed: %w", err)
	}
	return nil
}

func (s *RedisStore) MoveToRetry(ctx context.Context, j *model.Job, nextRetryAt time.Time) error {
	j.Status = model.JobPending
	j.NextRetryAt = &nextRetryAt
	score := float64(nextRetryAt.UnixMilli())

	pipe := s.client.Pipeline()
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	pipe.Set(ctx, jobKey(j.ID), data, jobDataTTL)
	pipe.ZRem(ctx, queueProcessing, j.ID)
	pipe.ZAdd(ctx, queueRetry, &redis.Z{Score: score, Member: j.ID})
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to move job to retry: %w", err)
	}
	return nil
}

func (s *RedisStore) MoveToFailed(ctx context.Context, j *model.Job) error {
	j.Status = model.JobFailed
	completedAt := time.Now()
	if j.CompletedAt == nil {
		j.CompletedAt = &completedAt
	}
	score := float64(j.CompletedAt.UnixMilli())

	pipe := s.client.Pipeline()
	data, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	pipe.Set(ctx, jobKey(j.ID), data, jobDataTTL)
	pipe.ZRem(ctx, queueProcessing, j.ID)
	pipe.ZAdd(ctx, queueFailed, &redis.Z{Score: score, Member: j.ID})
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to move job to failed: %w", err)
	}
	return nil
}

func (s *RedisStore) PromoteDueRetries(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.client.ZRangeByScore(ctx, queueRetry, &redis.ZRangeBy{
		Min: "-inf", Max: fmt.Sprintf("%d", now.UnixMilli()),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to scan retry queue: %w", err)
	}
	count := 0
	for _, id := range ids {
		j, err := s.GetJob(ctx, id)
		if err != nil {
			continue
		}
		score := priorityScore(j.Priority, j.CreatedAt)
		pipe := s.client.Pipeline()
		pipe.ZRem(ctx, queueRetry, id)
		pipe.ZAdd(ctx, queuePending, &redis.Z{Score: score, Member: id})
		if _, err := pipe.Exec(ctx); err != nil {
			logger.Warnf("failed to promote retry job %s: %v", id, err)
			continue
		}
		count++
	}
	return count, nil
}

func (s *RedisStore) RecoverStaleProcessing(ctx context.Context, staleBefore time.Time) (int, error) {
	ids, err := s.client.ZRangeByScore(ctx, queueProcessing, &redis.ZRangeBy{
		Min: "-inf", Max: fmt.Sprintf("%d", staleBefore.UnixMilli()),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to scan processing queue: %w", err)
	}
	count := 0
	for _, id := range ids {
		j, err := s.GetJob(ctx, id)
		if err != nil {
			continue
		}
		if err := s.EnqueuePending(ctx, j); err != nil {
			logger.Warnf("failed to recover stale processing job %s: %v", id, err)
			continue
		}
		count++
	}
	return count, nil
}

func (s *RedisStore) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := fmt.Sprintf("%d", time.Now().Add(-olderThan).UnixMilli())
	count := 0
	for _, key := range []string{queueCompleted, queueFailed} {
		ids, err := s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{Min: "-inf", Max: cutoff}).Result()
		if err != nil {
			return count, fmt.Errorf("failed to scan %s for cleanup: %w", key, err)
		}
		if len(ids) == 0 {
			continue
		}
		pipe := s.client.Pipeline()
		pipe.ZRem(ctx, key, toInterfaceSlice(ids)...)
		for _, id := range ids {
			pipe.Del(ctx, jobKey(id))
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return count, fmt.Errorf("failed to cleanup %s: %w", key, err)
		}
		count += len(ids)
	}
	return count, nil
}

func toInterfaceSlice(ids []string) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func (s *RedisStore) Stats(ctx context.Context) (model.JobStats, error) {
	pipe := s.client.Pipeline()
	pendingCmd := pipe.ZCard(ctx, queuePending)
	processingCmd := pipe.ZCard(ctx, queueProcessing)
	retryCmd := pipe.ZCard(ctx, queueRetry)
	completedCmd := pipe.ZCard(ctx, queueCompleted)
	failedCmd := pipe.ZCard(ctx, queueFailed)
	if _, err := pipe.Exec(ctx); err != nil {
		return model.JobStats{}, fmt.Errorf("failed to fetch job stats: %w", err)
	}
	return model.JobStats{
		Pending:    int(pendingCmd.Val()),
		Processing: int(processingCmd.Val()),
		Retry:      int(retryCmd.Val()),
		Completed:  int(completedCmd.Val()),
		Failed:     int(failedCmd.Val()),
	}, nil
}
