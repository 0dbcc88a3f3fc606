package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"novita-orchestrator/app/handler"
	"novita-orchestrator/app/router"
	"novita-orchestrator/app/ws"
	"novita-orchestrator/internal/health"
	"novita-orchestrator/internal/instance"
	"novita-orchestrator/internal/job"
	"novita-orchestrator/internal/migration"
	"novita-orchestrator/internal/product"
	"novita-orchestrator/internal/startupsync"
	"novita-orchestrator/internal/template"
	"novita-orchestrator/pkg/cache"
	"novita-orchestrator/pkg/config"
	"novita-orchestrator/pkg/k8sinfo"
	"novita-orchestrator/pkg/logger"
	queuemaint "novita-orchestrator/pkg/queue/asynq"
	mysqlstore "novita-orchestrator/pkg/store/mysql"
	redisstore "novita-orchestrator/pkg/store/redis"
	"novita-orchestrator/pkg/upstream/novita"
	"novita-orchestrator/pkg/webhook"

	"github.com/gin-gonic/gin"
)

// Application manages the lifecycle of the entire control plane process.
type Application struct {
	config      *config.Config
	mysqlRepo   *mysqlstore.Repository
	redisClient *redisstore.RedisClient
	cacheMgr    *cache.Manager

	novitaClient    *novita.Client
	upstreamAdapter instance.Upstream
	products        *product.Resolver
	templates       *template.Resolver
	health          *health.Checker
	webhook         *webhook.Client
	provenance      *k8sinfo.Provenance

	jobQueue    *job.Queue
	jobHandlers *job.Handlers
	instances   *instance.Service
	syncer      *startupsync.Syncer
	migration   *migration.Scheduler
	maintenance *queuemaint.Manager

	instanceHandler *handler.InstanceHandler
	systemHandler   *handler.SystemHandler
	statusStream    *ws.StatusHandler
	router          *router.Router

	httpServer *http.Server
	ginEngine  *gin.Engine

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cleanupFuncs []func()
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	ctx, cancel := context.WithCancel(context.Background())
	return &Application{
		ctx:          ctx,
		cancel:       cancel,
		cleanupFuncs: make([]func(), 0),
	}
}

// Initialize initializes all application components in dependency order.
func (app *Application) Initialize() error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"Configuration", app.initConfig},
		{"Logging", app.initLogger},
		{"K8s Provenance", app.initK8sInfo},
		{"MySQL", app.initMySQL},
		{"Redis", app.initRedis},
		{"Cache Manager", app.initCache},
		{"Upstream Client", app.initUpstream},
		{"Product Resolver", app.initProductResolver},
		{"Template Resolver", app.initTemplateResolver},
		{"Health Checker", app.initHealthChecker},
		{"Job Queue", app.initJobQueue},
		{"Instance Service", app.initInstanceService},
		{"Job Handlers", app.initJobHandlers},
		{"Migration Scheduler", app.initMigrationScheduler},
		{"Maintenance Jobs", app.initMaintenance},
		{"Startup Sync", app.runStartupSync},
		{"Handler Layer", app.initHandlers},
		{"HTTP Server", app.initHTTPServer},
	}

	for _, step := range steps {
		logger.InfoCtx(app.ctx, "Initializing %s...", step.name)
		if err := step.fn(); err != nil {
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
		logger.InfoCtx(app.ctx, "%s initialized successfully", step.name)
	}

	logger.InfoCtx(app.ctx, "Application initialization completed")
	return nil
}

// Start starts all application components.
func (app *Application) Start() error {
	logger.InfoCtx(app.ctx, "Starting application components...")

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.jobQueue.StartProcessing(app.ctx)
	}()

	if err := app.migration.Start(app.ctx); err != nil {
		logger.ErrorCtx(app.ctx, "Failed to start migration scheduler: %v", err)
	}

	if app.maintenance != nil {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			if err := app.maintenance.Start(); err != nil {
				logger.WarnCtx(app.ctx, "Maintenance task runner stopped: %v", err)
			}
		}()
	}

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		addr := fmt.Sprintf(":%d", app.config.Server.Port)
		logger.InfoCtx(app.ctx, "HTTP server listening on: %s", addr)
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalCtx(app.ctx, "HTTP server error: %v", err)
		}
	}()

	logger.InfoCtx(app.ctx, "All components started successfully")
	return nil
}

// Shutdown gracefully shuts down the application within timeout.
func (app *Application) Shutdown(timeout time.Duration) error {
	logger.InfoCtx(app.ctx, "Starting graceful shutdown (timeout: %v)...", timeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	app.cancel()

	if app.jobQueue != nil {
		app.jobQueue.Shutdown(shutdownCtx, timeout)
	}
	if app.migration != nil {
		app.migration.Stop(shutdownCtx)
	}
	if app.maintenance != nil {
		app.maintenance.Stop()
	}

	logger.InfoCtx(app.ctx, "Shutting down HTTP server...")
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.ErrorCtx(app.ctx, "HTTP server shutdown error: %v", err)
	}

	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.InfoCtx(app.ctx, "All background tasks completed")
	case <-shutdownCtx.Done():
		logger.WarnCtx(app.ctx, "Shutdown timeout, some tasks may not have completed")
	}

	logger.InfoCtx(app.ctx, "Executing cleanup functions...")
	for i := len(app.cleanupFuncs) - 1; i >= 0; i-- {
		app.cleanupFuncs[i]()
	}

	logger.Sync()

	logger.InfoCtx(app.ctx, "Graceful shutdown completed")
	return nil
}

func (app *Application) registerCleanup(cleanup func()) {
	app.cleanupFuncs = append(app.cleanupFuncs, cleanup)
}
