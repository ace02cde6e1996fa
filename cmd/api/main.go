package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/psannetwork/youtube/internal/api"
	"github.com/psannetwork/youtube/internal/config"
	"github.com/psannetwork/youtube/internal/logger"
	"github.com/psannetwork/youtube/internal/notify"
	"github.com/psannetwork/youtube/internal/playlist"
	"github.com/psannetwork/youtube/internal/registry"
	"github.com/psannetwork/youtube/internal/supervisor"
	"github.com/psannetwork/youtube/internal/workspace"
	"github.com/psannetwork/youtube/internal/ytdlp"
)

func main() {
	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLog := logger.NewDefault()
	logger.SetDefaultLogger(appLog)
	defer logger.Sync()

	// Initialize workspace storage
	workspaces, err := workspace.NewManager(cfg.Download.TmpDir, appLog)
	if err != nil {
		appLog.WithError(err).Fatal("Failed to initialize workspace root")
	}

	// Wire the job pipeline
	jobs := registry.New()
	hub := notify.NewHub()
	client := ytdlp.NewClient(cfg.YtDlp.Binary, cfg.YtDlp.CookiesFile)
	sup := supervisor.New(jobs, workspaces, hub, client, appLog, supervisor.Config{
		Timeout:           cfg.Download.Timeout(),
		Retention:         cfg.Download.Retention(),
		LowSpaceThreshold: cfg.Download.LowSpaceThresholdBytes,
	})
	playlists := playlist.NewFetcher()

	// Start the cleanup janitor
	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go sup.RunJanitor(janitorCtx, cfg.Download.SweepInterval())

	// Setup router
	router := api.SetupRouter(sup, workspaces, client, playlists, cfg)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		appLog.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("Shutting down server...")
	stopJanitor()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.WithError(err).Fatal("Server forced to shutdown")
	}

	appLog.Info("Server exited")
}
