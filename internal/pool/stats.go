package pool

import "time"

// WorkerStats is the per-worker slice of a stats snapshot.
type WorkerStats struct {
	LastSeen         time.Time         `json:"last_seen"`
	JobsCompleted    int               `json:"jobs_completed"`
	TargetsProcessed int               `json:"targets_processed"`
	Info             map[string]string `json:"info,omitempty"`
}

// Stats is a point-in-time snapshot of the coordinator, taken under the
// same lock as every other operation. Lifetime counters reset with the
// process; the job queue lives only in memory.
type Stats struct {
	Queued           int                    `json:"queued_jobs"`
	Active           int                    `json:"active_jobs"`
	WorkerCount      int                    `json:"active_workers"`
	JobsCreated      int                    `json:"total_jobs_created"`
	JobsCompleted    int                    `json:"total_jobs_completed"`
	JobsFailed       int                    `json:"total_jobs_failed"`
	JobsRequeued     int                    `json:"total_jobs_requeued"`
	TargetsProcessed int                    `json:"total_targets_processed"`
	StartedAt        time.Time              `json:"coordinator_start_time"`
	Workers          map[string]WorkerStats `json:"workers"`
}

// Stats returns a snapshot of queue depth, active leases, worker liveness
// and lifetime totals.
func (c *Coordinator[T, R]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	workers := make(map[string]WorkerStats, len(c.workers))
	for id, w := range c.workers {
		info := make(map[string]string, len(w.Info))
		for k, v := range w.Info {
			info[k] = v
		}
		workers[id] = WorkerStats{
			LastSeen:         w.LastHeartbeat,
			JobsCompleted:    w.JobsCompleted,
			TargetsProcessed: w.TargetsProcessed,
			Info:             info,
		}
	}

	return Stats{
		Queued:           len(c.queue),
		Active:           len(c.active),
		WorkerCount:      len(c.workers),
		JobsCreated:      c.jobsCreated,
		JobsCompleted:    c.jobsCompleted,
		JobsFailed:       c.jobsFailed,
		JobsRequeued:     c.jobsRequeued,
		TargetsProcessed: c.targetsProcessed,
		StartedAt:        c.startedAt,
		Workers:          workers,
	}
}
