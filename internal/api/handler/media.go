package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/psannetwork/youtube/internal/domain"
	"github.com/psannetwork/youtube/internal/youtube"
	"github.com/psannetwork/youtube/internal/ytdlp"
)

// MediaHandler serves metadata lookups that do not create jobs:
// video info and subtitle extraction.
type MediaHandler struct {
	client *ytdlp.Client
}

// NewMediaHandler creates a new media handler.
func NewMediaHandler(client *ytdlp.Client) *MediaHandler {
	return &MediaHandler{client: client}
}

// Info handles GET /api/v1/video-info?url=. The yt-dlp metadata document
// is passed through verbatim.
func (h *MediaHandler) Info(c *gin.Context) {
	raw := c.Query("url")
	if raw == "" {
		respondError(c, &domain.ValidationError{Reason: "url query parameter is required"})
		return
	}
	normalized, ok := youtube.Normalize(raw)
	if !ok {
		respondError(c, &domain.ValidationError{Reason: "invalid YouTube URL"})
		return
	}

	info, err := h.client.VideoInfo(c.Request.Context(), normalized)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", info)
}

// Subtitles handles GET /api/v1/subtitles?url=&lang=.
func (h *MediaHandler) Subtitles(c *gin.Context) {
	raw := c.Query("url")
	lang := c.Query("lang")
	if raw == "" || lang == "" {
		respondError(c, &domain.ValidationError{Reason: "url and lang query parameters are required"})
		return
	}
	normalized, ok := youtube.Normalize(raw)
	if !ok {
		respondError(c, &domain.ValidationError{Reason: "invalid YouTube URL"})
		return
	}

	subs, err := h.client.Subtitles(c.Request.Context(), normalized, lang)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subtitles": subs})
}
