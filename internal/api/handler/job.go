package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/psannetwork/youtube/internal/domain"
	"github.com/psannetwork/youtube/internal/supervisor"
	"github.com/psannetwork/youtube/internal/youtube"
)

// JobHandler handles job creation and status polling.
type JobHandler struct {
	sup *supervisor.Supervisor
}

// NewJobHandler creates a new job handler.
func NewJobHandler(sup *supervisor.Supervisor) *JobHandler {
	return &JobHandler{sup: sup}
}

type createJobRequest struct {
	URL     string         `json:"url" binding:"required"`
	Format  string         `json:"format" binding:"required"`
	Options domain.Options `json:"options"`
}

// validateStart checks a download request before anything is allocated.
// Shared by the REST and WebSocket entry points.
func validateStart(rawURL, rawFormat string, opts domain.Options) (string, domain.Format, domain.Options, error) {
	format, ok := domain.ParseFormat(rawFormat)
	if !ok {
		return "", "", opts, &domain.ValidationError{Reason: "unknown format: " + rawFormat}
	}

	normalized, ok := youtube.Normalize(rawURL)
	switch {
	case youtube.IsPlaylist(rawURL):
		// Canonicalizing to watch?v= would strip the list marker; keep
		// the validated original.
		opts.Playlist = true
		normalized = rawURL
	case !ok:
		return "", "", opts, &domain.ValidationError{Reason: "invalid YouTube URL"}
	}
	return normalized, format, opts, nil
}

// CreateJob handles POST /api/v1/jobs. Malformed URLs and formats are
// rejected before any job or workspace exists.
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, &domain.ValidationError{Reason: "url and format are required"})
		return
	}

	normalized, format, opts, err := validateStart(req.URL, req.Format, req.Options)
	if err != nil {
		respondError(c, err)
		return
	}

	job, err := h.sup.Start(normalized, format, opts)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID})
}

// GetJob handles GET /api/v1/jobs/:id. Never blocks: it returns whatever
// snapshot is current, or 404 once the job has been garbage-collected.
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.sup.Snapshot(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobDTO(job))
}
