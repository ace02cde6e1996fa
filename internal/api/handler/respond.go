package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/psannetwork/youtube/internal/domain"
)

// respondError maps the domain error taxonomy to HTTP statuses. Clients
// always receive a JSON body with a kind and a message; internal detail
// beyond the curated error strings is never exposed.
func respondError(c *gin.Context, err error) {
	var (
		validationErr *domain.ValidationError
		traversalErr  *domain.PathTraversalError
		resourceErr   *domain.ResourceError
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"kind": "validation", "error": validationErr.Reason})
	case errors.As(err, &traversalErr):
		c.JSON(http.StatusForbidden, gin.H{"kind": "path_traversal", "error": "requested path is outside the download area"})
	case errors.Is(err, domain.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"kind": "not_found", "error": "job not found"})
	case errors.Is(err, domain.ErrFileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"kind": "not_found", "error": "file not found"})
	case errors.As(err, &resourceErr):
		c.JSON(http.StatusInsufficientStorage, gin.H{"kind": "resource", "error": "server storage is unavailable, please try again later"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"kind": "internal", "error": "an unexpected error occurred"})
	}
}

// fileDTO is a produced file as exposed to clients, carrying the
// download URL instead of any filesystem layout.
type fileDTO struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
	URL       string `json:"url"`
}

// jobDTO is the client-visible job snapshot.
type jobDTO struct {
	ID          string          `json:"id"`
	SourceURL   string          `json:"source_url"`
	Format      domain.Format   `json:"format"`
	Status      domain.Status   `json:"status"`
	Progress    domain.Progress `json:"progress"`
	Files       []fileDTO       `json:"files,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   string          `json:"created_at"`
	CompletedAt string          `json:"completed_at,omitempty"`
}

func toJobDTO(job domain.Job) jobDTO {
	dto := jobDTO{
		ID:        job.ID,
		SourceURL: job.SourceURL,
		Format:    job.Format,
		Status:    job.Status,
		Progress:  job.Progress,
		Error:     job.Error,
		CreatedAt: job.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if job.CompletedAt != nil {
		dto.CompletedAt = job.CompletedAt.Format("2006-01-02T15:04:05Z07:00")
	}
	for _, f := range job.Files {
		dto.Files = append(dto.Files, fileDTO{
			Name:      f.Name,
			SizeBytes: f.SizeBytes,
			URL:       downloadURL(job.WorkspaceID, f.Name),
		})
	}
	return dto
}

func downloadURL(workspaceID, name string) string {
	return "/files/" + workspaceID + "/" + url.PathEscape(name)
}
