package handler

import (
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/psannetwork/youtube/internal/api/middleware"
	"github.com/psannetwork/youtube/internal/workspace"
)

// FileHandler streams produced files out of their workspaces.
type FileHandler struct {
	workspaces *workspace.Manager
}

// NewFileHandler creates a new file handler.
func NewFileHandler(workspaces *workspace.Manager) *FileHandler {
	return &FileHandler{workspaces: workspaces}
}

// Download handles GET /files/:workspaceID/:fileName. The workspace is
// leased for the duration of the stream so eviction cannot pull the file
// out from under the client.
func (h *FileHandler) Download(c *gin.Context) {
	workspaceID := c.Param("workspaceID")
	fileName := c.Param("fileName")

	release, err := h.workspaces.Lease(workspaceID)
	if err != nil {
		respondError(c, err)
		return
	}
	defer release()

	path, err := h.workspaces.ResolveFile(workspaceID, fileName)
	if err != nil {
		middleware.GetLogger(c).WithError(err).
			WithField("workspace_id", workspaceID).
			Warn("file request rejected")
		respondError(c, err)
		return
	}

	c.FileAttachment(path, filepath.Base(path))
}
