package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/psannetwork/youtube/internal/workspace"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	workspaces *workspace.Manager
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(workspaces *workspace.Manager) *HealthHandler {
	return &HealthHandler{workspaces: workspaces}
}

// Health returns the health status of the service, including remaining
// download capacity.
func (h *HealthHandler) Health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if avail, err := h.workspaces.AvailableSpace(); err == nil {
		resp["available_bytes"] = avail
	}
	c.JSON(http.StatusOK, resp)
}
