package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/vflopes/proxyhive/internal/client"
	"github.com/vflopes/proxyhive/internal/config"
	"github.com/vflopes/proxyhive/internal/model"
	"github.com/vflopes/proxyhive/internal/probe"
	"github.com/vflopes/proxyhive/internal/worker"
)

const version = "1.0.0"

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	config.InitLogger(cfg, "worker")

	slog.Info("Starting ProxyHive worker", "version", version, "server_url", cfg.ServerURL)

	binding := client.New[model.Proxy, model.CheckResult](cfg.ServerURL)

	// The prober needs the worker's id for result attribution, and the id
	// may be generated inside worker.New. The probe closure resolves the
	// prober lazily so both can be wired.
	var prober *probe.Prober
	w := worker.New(binding, func(ctx context.Context, target model.Proxy) model.CheckResult {
		return prober.Check(ctx, target)
	}, worker.Options{
		ID:           cfg.WorkerID,
		Concurrency:  cfg.ProbeConcurrency,
		PollInterval: cfg.PollInterval,
		FailureLimit: cfg.WorkerFailureLimit,
	})
	prober = probe.New(probe.Options{
		Timeout:  cfg.ProbeTimeout,
		WorkerID: w.ID(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel the run loop on SIGINT/SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("Received shutdown signal", "signal", sig.String())
		cancel()
	}()

	if err := w.Run(ctx); err != nil {
		slog.Error("Worker stopped with error", "worker_id", w.ID(), "error", err)
		os.Exit(1)
	}

	slog.Info("ProxyHive worker stopped", "worker_id", w.ID())
}
