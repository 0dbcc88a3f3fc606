// Package ws streams instance status transitions over a websocket, using
// the same upgrade shape as an interactive exec handler (same upgrader,
// same "upgrade, defer close, write until the connection or context ends"
// loop) applied here to a read-only status feed instead of a session.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"novita-orchestrator/internal/model"
	"novita-orchestrator/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// InstanceSubscriber is the subset of the Instance Service the status
// stream depends on.
type InstanceSubscriber interface {
	GetLocalInstance(ctx context.Context, id string) (*model.Instance, error)
	Subscribe(id string) (<-chan *model.Instance, func())
}

const pingInterval = 30 * time.Second

// StatusHandler serves /ws/instances/:id, pushing a JSON snapshot of the
// instance on every status transition produced by C7 workers.
type StatusHandler struct {
	instances InstanceSubscriber
}

// NewStatusHandler builds the websocket status-stream handler.
func NewStatusHandler(instances InstanceSubscriber) *StatusHandler {
	return &StatusHandler{instances: instances}
}

// Stream upgrades the connection and relays every subsequent status
// snapshot for the path's :id until the client disconnects.
func (h *StatusHandler) Stream(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	inst, err := h.instances.GetLocalInstance(ctx, id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"userMessage": "instance not found"}})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.ErrorCtx(ctx, "ws status stream: failed to upgrade for instance %s: %v", id, err)
		return
	}
	defer conn.Close()

	if err := writeSnapshot(conn, inst); err != nil {
		return
	}

	updates, cancel := h.instances.Subscribe(id)
	defer cancel()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-updates:
			if !ok {
				return
			}
			if err := writeSnapshot(conn, snapshot); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeSnapshot(conn *websocket.Conn, inst *model.Instance) error {
	body, err := json.Marshal(inst)
	if err != nil {
		logger.Errorf("ws status stream: failed to marshal instance snapshot: %v", err)
		return nil
	}
	return conn.WriteMessage(websocket.TextMessage, body)
}
