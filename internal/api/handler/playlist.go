package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/psannetwork/youtube/internal/domain"
	"github.com/psannetwork/youtube/internal/playlist"
	"github.com/psannetwork/youtube/internal/youtube"
)

// PlaylistHandler enumerates playlist items.
type PlaylistHandler struct {
	fetcher *playlist.Fetcher
}

// NewPlaylistHandler creates a new playlist handler.
func NewPlaylistHandler(fetcher *playlist.Fetcher) *PlaylistHandler {
	return &PlaylistHandler{fetcher: fetcher}
}

// Fetch handles GET /api/v1/playlist?id=. The id parameter accepts a
// bare playlist id or any YouTube URL carrying one.
func (h *PlaylistHandler) Fetch(c *gin.Context) {
	raw := c.Query("id")
	if raw == "" {
		respondError(c, &domain.ValidationError{Reason: "id query parameter is required"})
		return
	}
	id, ok := youtube.PlaylistID(raw)
	if !ok {
		respondError(c, &domain.ValidationError{Reason: "no playlist id found in: " + raw})
		return
	}

	videos, err := h.fetcher.Fetch(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"videos": videos})
}
