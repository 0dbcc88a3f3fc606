// Package asynq drives the control plane's periodic maintenance work: job
// store cleanup and cache statistics logging. C6's actual job queue is a
// Redis/in-memory Store polled by internal/job's own worker pool, not
// asynq-backed; asynq earns its place here as a cron-scheduled task runner
// for maintenance sweeps, keeping the familiar client/server/mux/scheduler
// shape of an asynq-based queue manager but repurposed from task dispatch
// to upkeep.
package asynq

import (
	"context"
	"fmt"
	"time"

	"novita-orchestrator/pkg/cache"
	"novita-orchestrator/pkg/config"
	"novita-orchestrator/pkg/logger"

	"github.com/hibiken/asynq"
)

const (
	taskQueueCleanup = "maintenance:queue_cleanup"
	taskCacheReport  = "maintenance:cache_report"
)

// JobStore is the subset of the C6 store the cleanup task uses.
type JobStore interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)
}

// Manager owns the asynq client/server/scheduler trio that runs the
// control plane's background maintenance tasks.
type Manager struct {
	client    *asynq.Client
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler

	jobStore  JobStore
	cacheMgr  *cache.Manager
	olderThan time.Duration
}

// NewManager builds the maintenance task runner. cfg's Queue.CleanupOlderThanMs
// drives the cleanup sweep's age cutoff.
func NewManager(cfg *config.Config, jobStore JobStore, cacheMgr *cache.Manager) *Manager {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	client := asynq.NewClient(redisOpt)
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 2,
		Queues: map[string]int{
			"maintenance": 1,
		},
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			return time.Duration(n) * time.Minute
		},
	})
	mux := asynq.NewServeMux()
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{})

	m := &Manager{
		client:    client,
		server:    server,
		mux:       mux,
		scheduler: scheduler,
		jobStore:  jobStore,
		cacheMgr:  cacheMgr,
		olderThan: time.Duration(cfg.Queue.CleanupOlderThanMs) * time.Millisecond,
	}

	mux.HandleFunc(taskQueueCleanup, m.handleQueueCleanup)
	mux.HandleFunc(taskCacheReport, m.handleCacheReport)

	return m
}

// Start registers the cron schedule and launches the processing server.
func (m *Manager) Start() error {
	if _, err := m.scheduler.Register("@every 1h", asynq.NewTask(taskQueueCleanup, nil), asynq.Queue("maintenance")); err != nil {
		return fmt.Errorf("failed to register queue cleanup schedule: %w", err)
	}
	if _, err := m.scheduler.Register("@every 10m", asynq.NewTask(taskCacheReport, nil), asynq.Queue("maintenance")); err != nil {
		return fmt.Errorf("failed to register cache report schedule: %w", err)
	}

	go func() {
		if err := m.scheduler.Run(); err != nil {
			logger.Errorf("maintenance scheduler stopped: %v", err)
		}
	}()

	return m.server.Start(m.mux)
}

// Stop shuts down the scheduler, server, and client.
func (m *Manager) Stop() {
	m.scheduler.Shutdown()
	m.server.Shutdown()
	m.client.Close()
}

func (m *Manager) handleQueueCleanup(ctx context.Context, _ *asynq.Task) error {
	if m.jobStore == nil {
		return nil
	}
	n, err := m.jobStore.Cleanup(ctx, m.olderThan)
	if err != nil {
		return fmt.Errorf("queue cleanup sweep failed: %w", err)
	}
	logger.Infof("maintenance: swept %d stale jobs older than %s", n, m.olderThan)
	return nil
}

func (m *Manager) handleCacheReport(ctx context.Context, _ *asynq.Task) error {
	if m.cacheMgr == nil {
		return nil
	}
	for name, stats := range m.cacheMgr.GetAllStats() {
		logger.Infof("maintenance: cache %q stats: %+v", name, stats)
	}
	return nil
}
