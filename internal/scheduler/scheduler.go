package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/vflopes/proxyhive/internal/config"
	"github.com/vflopes/proxyhive/internal/model"
)

// Lock names double as the schedule_locks document keys, so every replica
// competes for the same three locks.
const (
	jobValidateUntested = "validate_untested"
	jobRevalidateStale  = "revalidate_stale"
	jobCleanup          = "cleanup"
)

// ProxySource selects proxies for scheduled validation runs and prunes
// retired ones.
type ProxySource interface {
	FetchForValidation(ctx context.Context, filter model.ProxyFilter, limit int) ([]model.Proxy, error)
	DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// HistoryStore prunes old check history records.
type HistoryStore interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Locker is the distributed lock that keeps scheduled jobs single-owner
// across replicas.
type Locker interface {
	AcquireLock(ctx context.Context, jobName, podID string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, jobName, podID string) error
	ReleaseAllLocks(ctx context.Context, podID string) error
	CleanExpiredLocks(ctx context.Context) (int64, error)
}

// Submitter enqueues proxies as validation jobs.
type Submitter interface {
	SubmitTargets(targets []model.Proxy) int
}

// Scheduler runs periodic maintenance: validating untested proxies,
// revalidating stale ones and pruning old records. Each job is guarded by a
// named distributed lock so only one replica runs it per interval.
type Scheduler struct {
	cfg     *config.Config
	source  ProxySource
	history HistoryStore
	locks   Locker
	pool    Submitter
	podID   string
	cron    *cron.Cron
}

// New creates a scheduler instance identified by the pod hostname.
func New(cfg *config.Config, source ProxySource, history HistoryStore, locks Locker, pool Submitter) *Scheduler {
	podID, err := os.Hostname()
	if err != nil {
		podID = uuid.New().String()
		slog.Warn("Failed to get hostname, using UUID as pod ID", "pod_id", podID)
	}

	return &Scheduler{
		cfg:     cfg,
		source:  source,
		history: history,
		locks:   locks,
		pool:    pool,
		podID:   podID,
		cron:    cron.New(),
	}
}

// Start registers the cron entries and begins scheduling.
func (s *Scheduler) Start() error {
	if !s.cfg.SchedulerEnabled {
		slog.Info("Scheduler is disabled by configuration")
		return nil
	}

	entries := []struct {
		interval time.Duration
		name     string
		run      func(ctx context.Context) error
	}{
		{s.cfg.ValidationInterval, jobValidateUntested, s.validateUntested},
		{s.cfg.RevalidationInterval, jobRevalidateStale, s.revalidateStale},
		{s.cfg.CleanupInterval, jobCleanup, s.cleanup},
	}

	for _, e := range entries {
		spec := fmt.Sprintf("@every %s", e.interval)
		name, run := e.name, e.run
		if _, err := s.cron.AddFunc(spec, func() { s.withLock(name, run) }); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", name, err)
		}
	}

	s.cron.Start()
	slog.Info("Scheduler started",
		"pod_id", s.podID,
		"validation_interval", s.cfg.ValidationInterval,
		"revalidation_interval", s.cfg.RevalidationInterval,
		"cleanup_interval", s.cfg.CleanupInterval,
	)
	return nil
}

// Stop halts scheduling, waits for running jobs and releases this pod's locks.
func (s *Scheduler) Stop(ctx context.Context) {
	if !s.cfg.SchedulerEnabled {
		return
	}

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		slog.Info("All scheduled jobs completed")
	case <-ctx.Done():
		slog.Warn("Timeout waiting for scheduled jobs to complete")
	}

	if err := s.locks.ReleaseAllLocks(context.Background(), s.podID); err != nil {
		slog.Error("Failed to release locks during shutdown", "error", err)
	}

	slog.Info("Scheduler stopped", "pod_id", s.podID)
}

// withLock runs a job only when this pod wins the named lock.
func (s *Scheduler) withLock(jobName string, run func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SchedulerLockTTL)
	defer cancel()

	if cleaned, err := s.locks.CleanExpiredLocks(ctx); err != nil {
		slog.Error("Failed to clean expired locks", "error", err)
	} else if cleaned > 0 {
		slog.Info("Cleaned expired locks", "count", cleaned)
	}

	acquired, err := s.locks.AcquireLock(ctx, jobName, s.podID, s.cfg.SchedulerLockTTL)
	if err != nil {
		slog.Error("Failed to acquire lock", "job_name", jobName, "error", err)
		return
	}
	if !acquired {
		slog.Debug("Lock already held by another pod", "job_name", jobName)
		return
	}

	slog.Info("Acquired lock for scheduled job", "job_name", jobName, "pod_id", s.podID)
	start := time.Now()

	if err := run(ctx); err != nil {
		slog.Error("Scheduled job failed",
			"job_name", jobName,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
	} else {
		slog.Info("Scheduled job completed",
			"job_name", jobName,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	if err := s.locks.ReleaseLock(ctx, jobName, s.podID); err != nil {
		slog.Error("Failed to release lock", "job_name", jobName, "error", err)
	}
}

// validateUntested enqueues proxies that have never been checked.
func (s *Scheduler) validateUntested(ctx context.Context) error {
	filter := model.ProxyFilter{Status: model.StatusUntested}
	proxies, err := s.source.FetchForValidation(ctx, filter, s.cfg.ValidationLimit)
	if err != nil {
		return fmt.Errorf("failed to fetch untested proxies: %w", err)
	}
	if len(proxies) == 0 {
		slog.Info("No untested proxies due for validation")
		return nil
	}

	created := s.pool.SubmitTargets(proxies)
	slog.Info("Untested proxies submitted", "targets", len(proxies), "jobs_created", created)
	return nil
}

// revalidateStale enqueues proxies whose last check is older than the
// configured age.
func (s *Scheduler) revalidateStale(ctx context.Context) error {
	filter := model.ProxyFilter{OlderThanMinutes: s.cfg.RevalidationAgeMinutes}
	proxies, err := s.source.FetchForValidation(ctx, filter, s.cfg.RevalidationLimit)
	if err != nil {
		return fmt.Errorf("failed to fetch stale proxies: %w", err)
	}
	if len(proxies) == 0 {
		slog.Info("No stale proxies due for revalidation")
		return nil
	}

	created := s.pool.SubmitTargets(proxies)
	slog.Info("Stale proxies submitted", "targets", len(proxies), "jobs_created", created)
	return nil
}

// cleanup prunes old check history and long-dead proxies.
func (s *Scheduler) cleanup(ctx context.Context) error {
	retention := time.Duration(s.cfg.HistoryRetentionDays) * 24 * time.Hour
	cutoff := time.Now().UTC().Add(-retention)

	removed, err := s.history.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune check history: %w", err)
	}

	pruned, err := s.source.DeleteInactiveBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune inactive proxies: %w", err)
	}

	slog.Info("Cleanup completed", "history_removed", removed, "proxies_pruned", pruned)
	return nil
}
