// Package worker implements the validation worker: it leases jobs from a
// coordinator through a transport binding, probes every target in the
// batch with bounded concurrency, and reports results back.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vflopes/proxyhive/internal/pool"
)

const (
	DefaultConcurrency     = 20
	DefaultPollInterval    = 5 * time.Second
	DefaultFailureLimit    = 5
	registrationInfoFormat = "worker-%s-%s"
)

// Binding is the coordinator contract the worker runs against. The
// in-process binding is *pool.Coordinator itself; the networked binding is
// an HTTP client speaking the control-plane API. A nil job with a nil
// error means no work is available right now.
type Binding[T, R any] interface {
	Register(ctx context.Context, workerID string, info map[string]string) error
	Lease(ctx context.Context, workerID string) (*pool.Job[T, R], error)
	Complete(ctx context.Context, jobID string, results []R, errorMessage string) error
	Heartbeat(ctx context.Context, workerID string) error
}

// ProbeFunc checks a single target. Probe failures are data, not errors:
// implementations return a result describing the failure and must apply
// their own per-target timeout.
type ProbeFunc[T, R any] func(ctx context.Context, target T) R

// Options tunes a worker. Zero fields take defaults.
type Options struct {
	ID           string
	Info         map[string]string
	Concurrency  int
	PollInterval time.Duration
	FailureLimit int
	Backoff      Backoff
}

// Worker is one validation node. Many workers may share one coordinator,
// in-process or across machines.
type Worker[T, R any] struct {
	id      string
	info    map[string]string
	binding Binding[T, R]
	probe   ProbeFunc[T, R]

	concurrency  int
	pollInterval time.Duration
	failureLimit int
	backoff      Backoff
}

// New creates a worker bound to a coordinator. A missing ID gets a
// hostname-qualified random one.
func New[T, R any](binding Binding[T, R], probe ProbeFunc[T, R], opts Options) *Worker[T, R] {
	if opts.ID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		opts.ID = fmt.Sprintf(registrationInfoFormat, hostname, uuid.New().String()[:8])
	}
	if opts.Info == nil {
		opts.Info = map[string]string{}
	}
	if _, ok := opts.Info["hostname"]; !ok {
		if hostname, err := os.Hostname(); err == nil {
			opts.Info["hostname"] = hostname
		}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.FailureLimit <= 0 {
		opts.FailureLimit = DefaultFailureLimit
	}
	if opts.Backoff.Initial <= 0 {
		opts.Backoff = DefaultBackoff()
	}

	return &Worker[T, R]{
		id:           opts.ID,
		info:         opts.Info,
		binding:      binding,
		probe:        probe,
		concurrency:  opts.Concurrency,
		pollInterval: opts.PollInterval,
		failureLimit: opts.FailureLimit,
		backoff:      opts.Backoff,
	}
}

// ID returns the worker's identifier.
func (w *Worker[T, R]) ID() string { return w.id }

// Run registers with the coordinator and processes jobs until the context
// is cancelled or the consecutive-failure limit trips. Each iteration:
// heartbeat, lease, then either probe the batch and submit, or sleep out
// the poll interval. Transport failures back off exponentially; probe
// failures never count against the worker.
func (w *Worker[T, R]) Run(ctx context.Context) error {
	if err := w.binding.Register(ctx, w.id, w.info); err != nil {
		return fmt.Errorf("worker %s registration failed: %w", w.id, err)
	}

	slog.Info("Worker started",
		"worker_id", w.id,
		"concurrency", w.concurrency,
		"poll_interval", w.pollInterval,
	)

	failures := 0
	for {
		if ctx.Err() != nil {
			slog.Info("Worker stopping", "worker_id", w.id)
			return nil
		}

		if err := w.binding.Heartbeat(ctx, w.id); err != nil {
			slog.Warn("Heartbeat failed", "worker_id", w.id, "error", err)
		}

		job, err := w.binding.Lease(ctx, w.id)
		if err != nil {
			failures++
			slog.Warn("Job request failed",
				"worker_id", w.id,
				"consecutive_failures", failures,
				"error", err,
			)
			if failures >= w.failureLimit {
				return fmt.Errorf("worker %s stopping after %d consecutive failures: %w", w.id, failures, err)
			}
			if !w.sleep(ctx, w.backoff.Delay(failures)) {
				return nil
			}
			continue
		}
		failures = 0

		if job == nil {
			if !w.sleep(ctx, w.pollInterval) {
				return nil
			}
			continue
		}

		results, runErr := w.runJob(ctx, job)
		errMsg := ""
		if runErr != nil {
			errMsg = runErr.Error()
			slog.Error("Job processing failed", "worker_id", w.id, "job_id", job.ID, "error", runErr)
		}

		// Submission failures are swallowed: the sweeper will retire the
		// lease and requeue the targets.
		if err := w.binding.Complete(ctx, job.ID, results, errMsg); err != nil {
			slog.Warn("Result submission failed",
				"worker_id", w.id,
				"job_id", job.ID,
				"results", len(results),
				"error", err,
			)
		}
	}
}

// runJob probes every target in the batch, at most w.concurrency at a
// time. Each target yields exactly one result; a panicking probe loses its
// slot in the output but never fails the batch. Only a panic escaping the
// orchestration itself is returned as a batch error.
func (w *Worker[T, R]) runJob(ctx context.Context, job *pool.Job[T, R]) (results []R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s aborted: %v", job.ID, r)
		}
	}()

	slog.Info("Processing job", "worker_id", w.id, "job_id", job.ID, "targets", len(job.Targets))
	start := time.Now()

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, w.concurrency)
	)

	results = make([]R, 0, len(job.Targets))
	for i := range job.Targets {
		target := job.Targets[i]
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Probe panicked", "worker_id", w.id, "job_id", job.ID, "panic", r)
				}
				<-sem
				wg.Done()
			}()

			res := w.probe(ctx, target)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}()
	}
	wg.Wait()

	slog.Info("Job processed",
		"worker_id", w.id,
		"job_id", job.ID,
		"results", len(results),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return results, nil
}

// sleep waits for d or the context, whichever ends first, reporting false
// on cancellation.
func (w *Worker[T, R]) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
