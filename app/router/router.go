package router

import (
	"novita-orchestrator/app/handler"
	"novita-orchestrator/app/middleware"
	"novita-orchestrator/app/ws"

	"github.com/gin-gonic/gin"
)

// Router wires the control plane's HTTP surface.
type Router struct {
	instanceHandler *handler.InstanceHandler
	systemHandler   *handler.SystemHandler
	statusStream    *ws.StatusHandler
}

// NewRouter creates a new Router.
func NewRouter(instanceHandler *handler.InstanceHandler, systemHandler *handler.SystemHandler, statusStream *ws.StatusHandler) *Router {
	return &Router{
		instanceHandler: instanceHandler,
		systemHandler:   systemHandler,
		statusStream:    statusStream,
	}
}

// Setup sets up routes.
func (r *Router) Setup(engine *gin.Engine) {
	engine.Use(middleware.Recovery())
	engine.Use(middleware.Logger())

	api := engine.Group("/api/v1")
	api.Use(middleware.AuthMiddleware())
	{
		instances := api.Group("/instances")
		{
			instances.POST("", r.instanceHandler.CreateInstance)
			instances.GET("", r.instanceHandler.ListInstances)
			instances.GET("/:id", r.instanceHandler.GetInstanceStatus)
			instances.POST("/:id/start", r.instanceHandler.StartInstance)
			instances.POST("/:id/stop", r.instanceHandler.StopInstance)
		}

		api.GET("/operations/:id", r.instanceHandler.GetOperation)

		if r.systemHandler != nil {
			api.GET("/system/status", r.systemHandler.GetStatus)
		}
	}

	if r.statusStream != nil {
		engine.GET("/ws/instances/:id", r.statusStream.Stream)
	}

	// Health check
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}
