package main

import (
	"fmt"
	"net/http"
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

// initConfig initializes configuration.
func (app *Application) initConfig() error {
	if err := config.Init(); err != nil {
		return err
	}
	app.config = config.GlobalConfig
	return nil
}

// initLogger initializes logging.
func (app *Application) initLogger() error {
	if err := logger.Init(); err != nil {
		return err
	}
	app.registerCleanup(func() {
		logger.Sync()
		logger.InfoCtx(app.ctx, "Logging system has been closed")
	})
	return nil
}

// initK8sInfo loads {cluster, namespace, pod} provenance, best-effort.
func (app *Application) initK8sInfo() error {
	p, err := k8sinfo.Load(app.ctx, app.config.K8s)
	if err != nil {
		return err
	}
	app.provenance = p
	return nil
}

// initMySQL opens the durability layer backing the Instance Service.
func (app *Application) initMySQL() error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		app.config.MySQL.User,
		app.config.MySQL.Password,
		app.config.MySQL.Host,
		app.config.MySQL.Port,
		app.config.MySQL.Database,
	)

	repo, err := mysqlstore.NewRepository(dsn)
	if err != nil {
		return err
	}

	app.mysqlRepo = repo
	app.registerCleanup(func() {
		repo.Close()
		logger.InfoCtx(app.ctx, "MySQL connection has been closed")
	})

	return nil
}

// initRedis initializes the Redis client backing the job queue and cache.
func (app *Application) initRedis() error {
	client, err := redisstore.NewRedisClient(app.config)
	if err != nil {
		return err
	}

	app.redisClient = client
	app.registerCleanup(func() {
		client.Close()
		logger.InfoCtx(app.ctx, "Redis connection has been closed")
	})

	return nil
}

// initCache builds the Cache Manager (C1) over the Redis client.
func (app *Application) initCache() error {
	app.cacheMgr = cache.NewManager(app.redisClient.GetClient(), app.config.Redis.EnableFallback)
	return nil
}

// initUpstream builds the upstream Novita client (C2) and the adapter that
// translates its wire types into C8's decoupled view types.
func (app *Application) initUpstream() error {
	app.novitaClient = novita.New(&app.config.Novita)
	app.upstreamAdapter = instance.NewUpstreamAdapter(app.novitaClient)
	return nil
}

// initProductResolver builds the Product Resolver (C3).
func (app *Application) initProductResolver() error {
	app.products = product.New(app.novitaClient, app.cacheMgr)
	return nil
}

// initTemplateResolver builds the Template Resolver (C4).
func (app *Application) initTemplateResolver() error {
	app.templates = template.New(app.novitaClient, app.cacheMgr)
	return nil
}

// initHealthChecker builds the Health Checker (C5).
func (app *Application) initHealthChecker() error {
	app.health = health.New()
	app.webhook = webhook.New().WithProvenance(app.provenance.ToModel())
	return nil
}

// initJobQueue builds the Job Queue (C6) over a Redis-backed store. The
// in-memory store is used only when no Redis client is set; initRedis
// aborts startup when Redis cannot be reached, and Redis.EnableFallback is
// not consulted here.
func (app *Application) initJobQueue() error {
	var store job.Store
	if app.redisClient != nil {
		store = job.NewRedisStore(app.redisClient.GetClient())
	} else {
		logger.WarnCtx(app.ctx, "no redis client available, job queue falling back to in-memory store")
		store = job.NewMemoryStore()
	}

	app.jobQueue = job.New(store, job.Options{
		WorkerCount:        app.config.Queue.WorkerCount,
		PollInterval:       500 * time.Millisecond,
		StaleProcessingAge: time.Duration(app.config.Queue.JobStaleProcessingMs) * time.Millisecond,
		MaintenanceEvery:   time.Duration(app.config.Queue.MaintenanceIntervalMs) * time.Millisecond,
	})

	if err := app.jobQueue.PerformRecoveryTasks(app.ctx); err != nil {
		logger.WarnCtx(app.ctx, "job queue recovery pass failed: %v", err)
	}

	return nil
}

// initInstanceService builds the Instance Service (C8), wiring in the
// durability layer and loading any persisted instances from before a
// restart.
func (app *Application) initInstanceService() error {
	app.instances = instance.New(
		app.upstreamAdapter,
		instance.NewProductAdapter(app.products),
		app.templates,
		app.jobQueue,
		app.cacheMgr,
		instance.Config{
			DefaultRegion:            app.config.Novita.DefaultRegion,
			InstanceStartupMaxWaitMs: int64(app.config.InstanceStartup.DefaultMaxWaitMs),
			EnableNameLookup:         app.config.InstanceStartup.EnableNameLookup,
		},
	)

	if app.mysqlRepo != nil {
		app.instances.SetDurability(app.mysqlRepo.Instance)
		if err := app.instances.LoadFromDurability(app.ctx); err != nil {
			logger.WarnCtx(app.ctx, "failed to reload persisted instances: %v", err)
		}
	}

	return nil
}

// initJobHandlers builds the C7 job-type handlers and registers them on
// the Job Queue.
func (app *Application) initJobHandlers() error {
	app.jobHandlers = job.NewHandlers(app.instances, app.upstreamAdapter, app.health, app.webhook, app.jobQueue)
	return nil
}

// initMigrationScheduler builds the Migration Scheduler (C9).
func (app *Application) initMigrationScheduler() error {
	app.migration = migration.New(app.novitaClient, app.jobQueue, migration.Options{
		Enabled:  app.config.Migration.Enabled,
		Schedule: fmt.Sprintf("@every %dms", app.config.Migration.ScheduleIntervalMs),
		DryRun:   app.config.Migration.DryRun,
	})
	return nil
}

// initMaintenance builds the asynq-driven maintenance task runner.
func (app *Application) initMaintenance() error {
	if app.redisClient == nil {
		logger.WarnCtx(app.ctx, "no redis client available, skipping maintenance task runner")
		return nil
	}
	app.maintenance = queuemaint.NewManager(app.config, app.jobQueue, app.cacheMgr)
	return nil
}

// runStartupSync performs the one-shot boot-time reconciliation pass (C10)
// between local instance state and what upstream actually has running.
func (app *Application) runStartupSync() error {
	app.syncer = startupsync.New(app.novitaClient, app.instances)
	return app.syncer.Run(app.ctx)
}

// initHandlers builds the HTTP/WS handler layer.
func (app *Application) initHandlers() error {
	app.instanceHandler = handler.NewInstanceHandler(app.instances)
	app.systemHandler = handler.NewSystemHandler(app.jobQueue, app.migration)
	app.statusStream = ws.NewStatusHandler(app.instances)
	app.router = router.NewRouter(app.instanceHandler, app.systemHandler, app.statusStream)
	return nil
}

// initHTTPServer builds the gin engine and http.Server.
func (app *Application) initHTTPServer() error {
	gin.SetMode(app.config.Server.Mode)
	engine := gin.New()
	app.router.Setup(engine)
	app.ginEngine = engine

	app.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.config.Server.Port),
		Handler: engine,
	}
	return nil
}
