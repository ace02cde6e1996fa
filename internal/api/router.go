package api

import (
	"github.com/gin-gonic/gin"

	"github.com/psannetwork/youtube/internal/api/handler"
	"github.com/psannetwork/youtube/internal/api/middleware"
	"github.com/psannetwork/youtube/internal/config"
	"github.com/psannetwork/youtube/internal/playlist"
	"github.com/psannetwork/youtube/internal/supervisor"
	"github.com/psannetwork/youtube/internal/workspace"
	"github.com/psannetwork/youtube/internal/ytdlp"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	sup *supervisor.Supervisor,
	workspaces *workspace.Manager,
	client *ytdlp.Client,
	playlists *playlist.Fetcher,
	cfg *config.Config,
) *gin.Engine {
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	}))
	r.Use(middleware.RateLimit(middleware.RateLimitConfig{
		PerMinute: cfg.RateLimit.PerMinute,
		Burst:     cfg.RateLimit.Burst,
	}))

	healthHandler := handler.NewHealthHandler(workspaces)
	jobHandler := handler.NewJobHandler(sup)
	fileHandler := handler.NewFileHandler(workspaces)
	mediaHandler := handler.NewMediaHandler(client)
	playlistHandler := handler.NewPlaylistHandler(playlists)
	streamHandler := handler.NewStreamHandler(sup)

	r.GET("/health", healthHandler.Health)

	// Persistent push channel
	r.GET("/ws", streamHandler.Serve)

	// Produced-file retrieval, keyed by workspace handle
	r.GET("/files/:workspaceID/:fileName", fileHandler.Download)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.POST("/jobs", jobHandler.CreateJob)
		v1.GET("/jobs/:id", jobHandler.GetJob)

		v1.GET("/video-info", mediaHandler.Info)
		v1.GET("/subtitles", mediaHandler.Subtitles)
		v1.GET("/playlist", playlistHandler.Fetch)
	}

	return r
}
