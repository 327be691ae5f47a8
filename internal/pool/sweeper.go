package pool

import (
	"context"
	"log/slog"
	"time"
)

// Sweep runs one recovery pass: every active job whose lease has expired is
// retired and replaced by a fresh pending job carrying the same targets,
// and every worker silent for longer than the worker timeout is evicted.
// Recovery is at-least-once: the original worker may still be probing and
// will later submit under the retired id, which Complete ignores.
func (c *Coordinator[T, R]) Sweep() {
	now := time.Now().UTC()

	c.mu.Lock()

	var retired []*Job[T, R]
	for id, job := range c.active {
		if !job.LeaseExpired(now) {
			continue
		}
		delete(c.active, id)
		job.Status = StatusFailed
		job.ErrorMessage = "lease expired"
		job.CompletedAt = &now
		retired = append(retired, job)

		replacement := NewJob[T, R](job.Targets, job.TimeoutSeconds)
		c.queue = append(c.queue, replacement)
		c.jobsRequeued++
	}

	var evicted []string
	for id, w := range c.workers {
		if now.Sub(w.LastHeartbeat) > c.opts.WorkerTimeout {
			delete(c.workers, id)
			evicted = append(evicted, id)
		}
	}

	c.mu.Unlock()

	for _, job := range retired {
		slog.Warn("Lease expired, job requeued",
			"job_id", job.ID,
			"worker_id", job.WorkerID,
			"timeout_seconds", job.TimeoutSeconds,
		)
	}
	for _, id := range evicted {
		slog.Warn("Worker evicted, no heartbeat", "worker_id", id)
	}
}

// StartSweeper launches the background sweep loop. One sweeper per
// coordinator; calling it twice panics on the closed channel semantics of
// StopSweeper, so don't.
func (c *Coordinator[T, R]) StartSweeper(ctx context.Context) {
	c.sweepStop = make(chan struct{})
	c.sweepWG.Add(1)

	go func() {
		defer c.sweepWG.Done()

		ticker := time.NewTicker(c.opts.SweepInterval)
		defer ticker.Stop()

		slog.Info("Sweeper started", "interval", c.opts.SweepInterval)

		for {
			select {
			case <-ticker.C:
				c.Sweep()
			case <-c.sweepStop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// StopSweeper stops the background sweep loop and waits for it to exit.
func (c *Coordinator[T, R]) StopSweeper() {
	if c.sweepStop == nil {
		return
	}
	close(c.sweepStop)
	c.sweepWG.Wait()
	slog.Info("Sweeper stopped")
}
