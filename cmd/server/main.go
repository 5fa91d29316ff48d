package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"podpress/internal/api"
	"podpress/internal/assets"
	"podpress/internal/config"
	"podpress/internal/enhance"
	"podpress/internal/episode"
	"podpress/internal/fetch"
	"podpress/internal/health"
	"podpress/internal/mix"
	"podpress/internal/pipeline"
	"podpress/internal/storage"
	"podpress/pkg/logger"
)

const version = "0.1.0"

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/example.yaml", "Path to configuration file")
	development := flag.Bool("dev", false, "Use development logging")
	flag.Parse()

	log, err := logger.New(*development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}
	log.Info("starting podpress server",
		zap.String("version", version),
		zap.String("config", *configPath))

	// Storage: one adapter for episode audio, one for the music library
	audioStore, err := storage.NewAdapter(cfg.Storage, cfg.Storage.Bucket)
	if err != nil {
		log.Fatal("failed to create audio storage adapter", zap.Error(err))
	}
	defer audioStore.Close()

	musicStore, err := storage.NewAdapter(cfg.Storage, cfg.Assets.MusicBucket)
	if err != nil {
		log.Fatal("failed to create music storage adapter", zap.Error(err))
	}
	defer musicStore.Close()

	ctx := context.Background()
	if err := audioStore.EnsureBucket(ctx); err != nil {
		log.Fatal("failed to provision audio bucket", zap.Error(err))
	}
	if err := musicStore.EnsureBucket(ctx); err != nil {
		log.Fatal("failed to provision music bucket", zap.Error(err))
	}
	log.Info("storage initialized",
		zap.String("adapter", cfg.Storage.Adapter),
		zap.String("bucket", cfg.Storage.Bucket))

	// Episode record store
	store, err := episode.Open(cfg.Database)
	if err != nil {
		log.Fatal("failed to open episode store", zap.Error(err))
	}
	defer store.Close()

	// Composition collaborators
	fetcher := fetch.NewHTTPFetcher(cfg.Pipeline, log)
	library := assets.NewLibrary(musicStore, cfg.Assets, log)

	// Ordered fallback tiers: remote enhancement first when enabled,
	// then the self-contained local mixer.
	var composers []mix.Composer
	if cfg.Enhancement.Enabled {
		client := enhance.NewClient(cfg.Enhancement, log)
		composers = append(composers, enhance.NewRemote(client, cfg.Audio, log))
	}
	composers = append(composers, mix.NewLocal(fetcher, cfg.Audio, log))

	processor := pipeline.NewProcessor(store, audioStore, library, fetcher, composers, log)

	// Initialize health checks
	healthHandler := health.NewHandler(version)
	healthHandler.Register("storage", func(ctx context.Context) (health.Status, error) {
		if _, err := audioStore.Exists(ctx, ".healthcheck"); err != nil {
			return health.StatusUnhealthy, err
		}
		return health.StatusHealthy, nil
	})
	healthHandler.Register("database", func(ctx context.Context) (health.Status, error) {
		_, err := store.Get(ctx, ".healthcheck")
		if err != nil && err != episode.ErrNotFound {
			return health.StatusUnhealthy, err
		}
		return health.StatusHealthy, nil
	})
	healthHandler.Register("enhancement", func(ctx context.Context) (health.Status, error) {
		if !cfg.Enhancement.Enabled {
			return health.StatusDegraded, fmt.Errorf("enhancement disabled, local composition only")
		}
		return health.StatusHealthy, nil
	})

	// Set up HTTP server and routes
	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("/health/live", healthHandler.LivenessHandler())
	mux.HandleFunc("/health/ready", healthHandler.ReadinessHandler())
	mux.HandleFunc("/health", healthHandler.HealthHandler())

	// Episode API endpoints
	episodeHandler := api.NewEpisodeHandler(store, processor, log)
	mux.HandleFunc("/api/v1/episodes", episodeHandler.CreateEpisode)
	mux.HandleFunc("/api/v1/episodes/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/process") {
			episodeHandler.ProcessEpisode(w, r)
		} else {
			episodeHandler.GetEpisode(w, r)
		}
	})

	// Serve stored files directly when using local storage
	if cfg.Storage.Adapter == "local" {
		fileServer := http.FileServer(http.Dir(cfg.Storage.Local.BasePath))
		mux.Handle("/files/", http.StripPrefix("/files/", fileServer))
	}

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
