// DMA - Dungeon Master Assistant API server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NNNvD/DMA/internal/api"
	"github.com/NNNvD/DMA/internal/config"
	"github.com/NNNvD/DMA/internal/embedding"
	"github.com/NNNvD/DMA/internal/maptool"
	"github.com/NNNvD/DMA/internal/middleware"
	"github.com/NNNvD/DMA/internal/retrieval"
	"github.com/NNNvD/DMA/internal/scheduler"
	"github.com/NNNvD/DMA/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "embedding_provider", cfg.Embedding.Provider)

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		slog.Error("Failed to initialize embedding provider", "error", err)
		os.Exit(1)
	}
	slog.Info("Embedding gateway ready", "provider", embedder.ProviderName())

	scorer := retrieval.NewScorer(repo, embedder)
	adapter := maptool.New(cfg.MapTool)
	reindexer := scheduler.NewReindexer(repo, embedder, cfg.Embedding.BatchSize)

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, embedder, scorer)
	documentHandler := api.NewDocumentHandler(baseHandler)
	contextHandler := api.NewContextHandler(baseHandler)
	maptoolHandler := api.NewMapToolHandler(baseHandler, adapter)
	adminHandler := api.NewAdminHandler(baseHandler, reindexer)
	healthHandler := api.NewHealthHandler(baseHandler)
	watchHandler := api.NewWatchHandler(adapter, cfg.MapWatchInterval)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	healthHandler.RegisterRoutes(r)
	documentHandler.RegisterRoutes(r)
	contextHandler.RegisterRoutes(r)
	maptoolHandler.RegisterRoutes(r)
	adminHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/maps/watch", watchHandler.ServeHTTP)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // map watch connections stay open indefinitely
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.StartReindexWorker(ctx, reindexer, cfg.ReindexInterval)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
