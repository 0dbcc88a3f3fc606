package handler

import (
	"net/http"

	"novita-orchestrator/internal/job"
	"novita-orchestrator/internal/migration"

	"github.com/gin-gonic/gin"
)

// SystemHandler exposes operational status for the job queue and migration
// scheduler, following the common pattern of surfacing a background
// component's own health/stat accessors over HTTP.
type SystemHandler struct {
	queue     *job.Queue
	migration *migration.Scheduler
}

// NewSystemHandler builds a SystemHandler.
func NewSystemHandler(queue *job.Queue, migrationScheduler *migration.Scheduler) *SystemHandler {
	return &SystemHandler{queue: queue, migration: migrationScheduler}
}

// GetStatus handles GET /api/v1/system/status.
func (h *SystemHandler) GetStatus(c *gin.Context) {
	stats, err := h.queue.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	migrationHealthy := true
	if h.migration != nil {
		migrationHealthy = h.migration.IsHealthy()
	}

	c.JSON(http.StatusOK, gin.H{
		"jobQueue":          stats,
		"migrationHealthy":  migrationHealthy,
	})
}
