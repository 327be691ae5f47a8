package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vflopes/proxyhive/internal/config"
	"github.com/vflopes/proxyhive/internal/database"
	"github.com/vflopes/proxyhive/internal/handler"
	"github.com/vflopes/proxyhive/internal/model"
	"github.com/vflopes/proxyhive/internal/pool"
	"github.com/vflopes/proxyhive/internal/scheduler"
)

const version = "1.0.0"

func main() {
	// Load .env when present; real deployments use the environment directly
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Initialize logger
	config.InitLogger(cfg, "coordinator")

	slog.Info("Starting ProxyHive coordinator", "version", version)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to MongoDB
	db, err := database.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoTimeout)
	if err != nil {
		slog.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Disconnect(context.Background()); err != nil {
			slog.Error("Failed to disconnect from MongoDB", "error", err)
		}
	}()

	// Create indexes
	if err := database.CreateIndexes(ctx, db); err != nil {
		slog.Error("Failed to create indexes", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	proxyRepo := database.NewProxyRepository(db)
	historyRepo := database.NewCheckHistoryRepository(db)
	lockRepo := database.NewLockRepository(db)

	// Initialize the coordinator with the MongoDB-backed result sink
	sink := database.NewValidationSink(proxyRepo, historyRepo)
	coordinator := pool.New[model.Proxy, model.CheckResult](pool.Options{
		BatchSize:         cfg.BatchSize,
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		JobTimeout:        cfg.JobTimeout,
		WorkerTimeout:     cfg.WorkerTimeout,
		SweepInterval:     cfg.SweepInterval,
	}, sink)
	coordinator.StartSweeper(ctx)

	// Initialize scheduler
	sched := scheduler.New(cfg, proxyRepo, historyRepo, lockRepo, coordinator)
	if err := sched.Start(); err != nil {
		slog.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	// Initialize handlers
	poolHandler := handler.NewPoolHandler(coordinator, proxyRepo, proxyRepo)
	proxyHandler := handler.NewProxyHandler(proxyRepo, historyRepo)
	healthHandler := handler.NewHealthHandler(db, version)

	// Create router
	router := handler.NewRouter(poolHandler, proxyHandler, healthHandler)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	// Start server in goroutine
	go func() {
		slog.Info("Starting HTTP server", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("Received shutdown signal, initiating graceful shutdown")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop scheduler first (wait for in-flight jobs)
	slog.Info("Stopping scheduler...")
	sched.Stop(shutdownCtx)

	// Stop the lease sweeper
	coordinator.StopSweeper()

	// Shutdown HTTP server
	slog.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("ProxyHive coordinator stopped")
}
