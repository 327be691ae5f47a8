package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"github.com/vflopes/proxyhive/internal/config"
	"github.com/vflopes/proxyhive/internal/database"
	"github.com/vflopes/proxyhive/internal/model"
	"github.com/vflopes/proxyhive/internal/pool"
	"github.com/vflopes/proxyhive/internal/probe"
	"github.com/vflopes/proxyhive/internal/worker"
)

// validate runs a one-shot validation pass without a coordinator server:
// the coordinator, sweeper and workers all live in this process and the
// workers call the coordinator directly.
func main() {
	status := flag.String("status", "", "only proxies with this status (untested, active, inactive)")
	proxyType := flag.String("type", "", "only proxies of this type (http, https, socks4, socks5)")
	country := flag.String("country", "", "only proxies from this country code")
	olderThan := flag.Int("older-than", 0, "only proxies last checked more than N minutes ago")
	limit := flag.Int("limit", 0, "maximum proxies to validate (0 = no limit)")
	workers := flag.Int("workers", 4, "number of in-process workers")
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.Load()
	config.InitLogger(cfg, "validate")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	proxyRepo := database.NewProxyRepository(db)
	historyRepo := database.NewCheckHistoryRepository(db)
	sink := database.NewValidationSink(proxyRepo, historyRepo)

	filter := model.ProxyFilter{
		Status:           model.ProxyStatus(*status),
		Type:             model.ProxyType(*proxyType),
		Country:          *country,
		OlderThanMinutes: *olderThan,
	}
	proxies, err := proxyRepo.FetchForValidation(ctx, filter, *limit)
	if err != nil {
		slog.Error("Failed to fetch proxies", "error", err)
		os.Exit(1)
	}
	if len(proxies) == 0 {
		fmt.Println("no proxies match the filter")
		return
	}

	coordinator := pool.New[model.Proxy, model.CheckResult](pool.Options{
		BatchSize:         cfg.BatchSize,
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		JobTimeout:        cfg.JobTimeout,
		WorkerTimeout:     cfg.WorkerTimeout,
		SweepInterval:     cfg.SweepInterval,
	}, sink)
	coordinator.StartSweeper(ctx)
	defer coordinator.StopSweeper()

	created := coordinator.SubmitTargets(proxies)
	slog.Info("Validation run starting",
		"targets", len(proxies),
		"jobs_created", created,
		"workers", *workers,
	)

	// Workers call the coordinator directly; ctx cancellation stops their
	// run loops once the queue drains.
	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		prober := probe.New(probe.Options{
			Timeout:  cfg.ProbeTimeout,
			WorkerID: fmt.Sprintf("local-%d", i),
		})
		w := worker.New[model.Proxy, model.CheckResult](coordinator, prober.Check, worker.Options{
			ID:           fmt.Sprintf("local-%d", i),
			Concurrency:  cfg.ProbeConcurrency,
			PollInterval: time.Second,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Worker stopped with error", "worker_id", w.ID(), "error", err)
			}
		}()
	}

	for !coordinator.Idle() {
		time.Sleep(500 * time.Millisecond)
	}
	cancel()
	wg.Wait()

	stats := coordinator.Stats()
	out, _ := json.MarshalIndent(stats, "", "  ")
	fmt.Println(string(out))
}
