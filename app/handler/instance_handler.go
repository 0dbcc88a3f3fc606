package handler

import (
	"net/http"
	"strconv"

	"novita-orchestrator/internal/instance"
	"novita-orchestrator/internal/model"
	orcherrors "novita-orchestrator/pkg/errors"
	"novita-orchestrator/pkg/logger"
	"novita-orchestrator/pkg/status"

	"github.com/gin-gonic/gin"
)

// InstanceHandler exposes C8's instance lifecycle operations over HTTP.
// One handler struct wrapping a service, thin validation, and
// typed-error-to-status-code translation via the sanitizer rather than
// leaking raw error strings.
type InstanceHandler struct {
	instances *instance.Service
	sanitizer *status.Sanitizer
}

// NewInstanceHandler builds an InstanceHandler.
func NewInstanceHandler(instances *instance.Service) *InstanceHandler {
	return &InstanceHandler{instances: instances, sanitizer: status.NewSanitizer()}
}

func (h *InstanceHandler) writeError(c *gin.Context, err error) {
	kind, ok := orcherrors.KindOf(err)
	if !ok {
		kind = orcherrors.KindServer
	}
	sanitized := h.sanitizer.SanitizeError(err)
	logger.ErrorCtx(c.Request.Context(), "instance handler error: %v", err)
	c.JSON(kind.HTTPStatus(), gin.H{"error": sanitized})
}

// CreateInstance handles POST /api/v1/instances.
func (h *InstanceHandler) CreateInstance(c *gin.Context) {
	var req model.CreateInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"userMessage": "malformed request body", "errorCode": "BAD_REQUEST"}})
		return
	}

	resp, err := h.instances.CreateInstance(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// StartInstance handles POST /api/v1/instances/:id/start.
func (h *InstanceHandler) StartInstance(c *gin.Context) {
	id := c.Param("id")

	var body struct {
		HealthCheckConfig *model.HealthCheckConfig `json:"healthCheckConfig"`
	}
	// Body is optional; ignore bind errors on an empty body.
	_ = c.ShouldBindJSON(&body)

	lookup := model.LookupByID
	if c.Query("lookup") == "name" {
		lookup = model.LookupByName
	}

	resp, err := h.instances.StartInstance(c.Request.Context(), id, lookup, body.HealthCheckConfig)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// StopInstance handles POST /api/v1/instances/:id/stop.
func (h *InstanceHandler) StopInstance(c *gin.Context) {
	id := c.Param("id")
	if err := h.instances.StopInstance(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopping"})
}

// GetInstanceStatus handles GET /api/v1/instances/:id.
func (h *InstanceHandler) GetInstanceStatus(c *gin.Context) {
	id := c.Param("id")
	inst, err := h.instances.GetInstanceStatus(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, inst)
}

// ListInstances handles GET /api/v1/instances.
func (h *InstanceHandler) ListInstances(c *gin.Context) {
	opts := model.ListInstancesOptions{
		Status: model.InstanceStatus(c.Query("status")),
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Offset = n
		}
	}

	instances, err := h.instances.ListInstances(c.Request.Context(), opts)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"instances": instances})
}

// GetOperation handles GET /api/v1/operations/:id.
func (h *InstanceHandler) GetOperation(c *gin.Context) {
	id := c.Param("id")
	op, ok := h.instances.GetOperation(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"userMessage": "no in-flight startup operation for this instance", "errorCode": "NOT_FOUND"}})
		return
	}
	c.JSON(http.StatusOK, op)
}
