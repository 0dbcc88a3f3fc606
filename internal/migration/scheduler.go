// Package migration implements the Migration Scheduler (C9): a periodic
// sweep that migrates spot instances upstream has reclaimed. Follows a
// Job/ticker-loop Manager shape, generalized from a fixed-interval runner
// to cron/v3-driven scheduling while keeping the manager's
// start/stop/health-reporting shape.
package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"novita-orchestrator/internal/model"
	"novita-orchestrator/pkg/logger"
	"novita-orchestrator/pkg/upstream/novita"

	"github.com/robfig/cron/v3"
)

const (
	pageSize           = 100
	executionHistorySize = 10
)

// Upstream is the subset of the C2 client the migration scheduler uses.
type Upstream interface {
	ListInstances(ctx context.Context, page, pageSize int) ([]novita.UpstreamInstance, error)
	MigrateInstance(ctx context.Context, id string) (string, error)
}

// JobQueue is the subset of C6 the scheduler uses to dedup against
// in-flight migration jobs and to register its own batch handler.
type JobQueue interface {
	GetJobs(ctx context.Context, filter model.JobFilter) ([]*model.Job, error)
	AddJob(ctx context.Context, jobType model.JobType, payload []byte, priority model.Priority, maxAttempts int) (string, error)
	RegisterHandler(jobType model.JobType, handler func(ctx context.Context, j *model.Job) error)
}

// Options configures the scheduler.
type Options struct {
	Enabled    bool
	Schedule   string // cron expression; default "@every 15m"
	DryRun     bool
}

// Scheduler drives the periodic MIGRATE_SPOT_INSTANCES dedup-and-enqueue
// tick, and also owns the handler that executes the batch itself.
type Scheduler struct {
	upstream Upstream
	jobs     JobQueue
	opts     Options

	cron *cron.Cron

	mu          sync.Mutex
	running     bool
	shuttingDown bool
	history     []bool // true = success, most recent last
}

// New builds a Migration Scheduler and registers its job handler on jobs.
func New(upstream Upstream, jobs JobQueue, opts Options) *Scheduler {
	if opts.Schedule == "" {
		opts.Schedule = "@every 15m"
	}
	s := &Scheduler{upstream: upstream, jobs: jobs, opts: opts}
	jobs.RegisterHandler(model.JobMigrateSpotInstances, s.handleMigrationJob)
	return s
}

// Start launches the cron-driven tick loop. No-op if disabled.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.opts.Enabled {
		logger.Infof("migration scheduler disabled, not starting")
		return nil
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.opts.Schedule, func() {
		if _, err := s.Tick(ctx); err != nil {
			logger.Warnf("migration scheduler tick failed: %v", err)
		}
	})
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("migration scheduler: invalid schedule %q: %w", s.opts.Schedule, err)
	}
	s.cron.Start()
	s.running = true
	s.mu.Unlock()
	return nil
}

// Stop halts the cron loop.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shuttingDown = true
	if s.cron != nil {
		stopCtx := s.cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
	}
	s.running = false
}

// Tick implements §4.9's dedup-and-enqueue step: skip if a
// MIGRATE_SPOT_INSTANCES job is already pending or processing, else enqueue
// one at normal priority. Returns the (possibly pre-existing) job id.
func (s *Scheduler) Tick(ctx context.Context) (string, error) {
	pending := model.JobPending
	jobType := model.JobMigrateSpotInstances
	existing, err := s.jobs.GetJobs(ctx, model.JobFilter{Type: &jobType, Status: &pending})
	if err != nil {
		return "", fmt.Errorf("migration tick: query pending jobs: %w", err)
	}
	if len(existing) > 0 {
		return existing[0].ID, nil
	}

	processing := model.JobProcessing
	existing, err = s.jobs.GetJobs(ctx, model.JobFilter{Type: &jobType, Status: &processing})
	if err != nil {
		return "", fmt.Errorf("migration tick: query processing jobs: %w", err)
	}
	if len(existing) > 0 {
		return existing[0].ID, nil
	}

	payload, _ := json.Marshal(model.MigrateSpotInstancesPayload{DryRun: s.opts.DryRun})
	return s.jobs.AddJob(ctx, model.JobMigrateSpotInstances, payload, model.PriorityNormal, 3)
}

func (s *Scheduler) handleMigrationJob(ctx context.Context, j *model.Job) error {
	var payload model.MigrateSpotInstancesPayload
	if len(j.Payload) > 0 {
		if err := json.Unmarshal(j.Payload, &payload); err != nil {
			return fmt.Errorf("decode MIGRATE_SPOT_INSTANCES payload: %w", err)
		}
	}

	result, err := s.RunMigrationBatch(ctx, payload.DryRun)
	s.recordExecution(err == nil)
	if err != nil {
		return err
	}
	logger.Infof("migration batch complete: processed=%d migrated=%d skipped=%d errors=%d",
		result.TotalProcessed, result.Migrated, result.Skipped, result.Errors)
	return nil
}

// RunMigrationBatch implements §4.9: list all upstream instances, filter to
// `exited` ones, migrate those with a non-empty spotStatus and a
// spotReclaimTime other than "0". A single instance's migrate failure does
// not halt the batch.
func (s *Scheduler) RunMigrationBatch(ctx context.Context, dryRun bool) (model.MigrationResult, error) {
	started := time.Now()
	result := model.MigrationResult{}

	page := 1
	for {
		batch, err := s.upstream.ListInstances(ctx, page, pageSize)
		if err != nil {
			return result, fmt.Errorf("migration batch: list instances page %d: %w", page, err)
		}
		for _, inst := range batch {
			if model.InstanceStatus(inst.Status) != model.StatusExited {
				continue
			}
			result.TotalProcessed++

			if !isMigrationEligible(inst) {
				result.Skipped++
				continue
			}

			if dryRun {
				result.Migrated++
				continue
			}

			if _, err := s.upstream.MigrateInstance(ctx, inst.ID); err != nil {
				logger.Warnf("migration batch: migrate instance %s failed: %v", inst.ID, err)
				result.Errors++
				continue
			}
			result.Migrated++
		}
		if len(batch) < pageSize {
			break
		}
		page++
	}

	result.ExecutionTimeMs = time.Since(started).Milliseconds()
	return result, nil
}

func isMigrationEligible(inst novita.UpstreamInstance) bool {
	return inst.SpotStatus != "" && inst.SpotReclaimTime != "0" && inst.SpotReclaimTime != ""
}

func (s *Scheduler) recordExecution(success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, success)
	if len(s.history) > executionHistorySize {
		s.history = s.history[len(s.history)-executionHistorySize:]
	}
}

// IsHealthy reports false when the scheduler is enabled but its cron loop
// isn't running, when shutdown has been initiated, or when at least half
// of its last 10 batch executions failed (§4.9).
func (s *Scheduler) IsHealthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shuttingDown {
		return false
	}
	if s.opts.Enabled && !s.running {
		return false
	}
	if len(s.history) == 0 {
		return true
	}
	failures := 0
	for _, ok := range s.history {
		if !ok {
			failures++
		}
	}
	return failures*2 < len(s.history)
}
