package pool

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Defaults mirror the coordinator's tuning knobs; all are overridable
// through Options.
const (
	DefaultBatchSize          = 50
	DefaultMaxConcurrentJobs  = 10
	DefaultJobTimeoutSeconds  = 300
	DefaultWorkerTimeout      = 300 * time.Second
	DefaultSweepInterval      = 30 * time.Second
	DefaultCompletedRetention = 256
)

// Sink receives the results of completed jobs. Persistence happens outside
// the coordinator lock; the sink must tolerate concurrent calls and
// duplicate results from retried jobs.
type Sink[R any] interface {
	Persist(ctx context.Context, results []R) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc[R any] func(ctx context.Context, results []R) error

func (f SinkFunc[R]) Persist(ctx context.Context, results []R) error { return f(ctx, results) }

// Options configures a Coordinator. Zero fields take the defaults above.
type Options struct {
	BatchSize          int
	MaxConcurrentJobs  int
	JobTimeout         time.Duration
	WorkerTimeout      time.Duration
	SweepInterval      time.Duration
	CompletedRetention int
}

func (o *Options) setDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.MaxConcurrentJobs <= 0 {
		o.MaxConcurrentJobs = DefaultMaxConcurrentJobs
	}
	if o.JobTimeout <= 0 {
		o.JobTimeout = DefaultJobTimeoutSeconds * time.Second
	}
	if o.WorkerTimeout <= 0 {
		o.WorkerTimeout = DefaultWorkerTimeout
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = DefaultSweepInterval
	}
	if o.CompletedRetention <= 0 {
		o.CompletedRetention = DefaultCompletedRetention
	}
}

// WorkerRecord tracks a worker's liveness and lifetime counters.
type WorkerRecord struct {
	ID               string
	Info             map[string]string
	LastHeartbeat    time.Time
	JobsCompleted    int
	TargetsProcessed int
}

// Coordinator owns the job queue, the active table and the worker table.
// All three live behind one mutex; every exported operation is a short
// critical section with no I/O inside it. A Coordinator is also the
// in-process transport binding: workers in the same process call it
// directly.
type Coordinator[T, R any] struct {
	mu sync.Mutex

	opts Options
	sink Sink[R]

	queue     []*Job[T, R]          // pending, FIFO
	active    map[string]*Job[T, R] // in_progress, keyed by job id
	completed map[string]*Job[T, R] // recently terminal, bounded
	doneOrder []string
	workers   map[string]*WorkerRecord

	jobsCreated      int
	jobsCompleted    int
	jobsFailed       int
	jobsRequeued     int
	targetsProcessed int
	startedAt        time.Time

	sweepStop chan struct{}
	sweepWG   sync.WaitGroup
}

// New creates a coordinator that hands completed results to sink. A nil
// sink discards results.
func New[T, R any](opts Options, sink Sink[R]) *Coordinator[T, R] {
	opts.setDefaults()
	if sink == nil {
		sink = SinkFunc[R](func(context.Context, []R) error { return nil })
	}
	return &Coordinator[T, R]{
		opts:      opts,
		sink:      sink,
		active:    make(map[string]*Job[T, R]),
		completed: make(map[string]*Job[T, R]),
		workers:   make(map[string]*WorkerRecord),
		startedAt: time.Now().UTC(),
	}
}

// CreateJobs partitions targets into batches of batchSize (the configured
// default when batchSize <= 0) and wraps each batch as a pending job.
// Returned jobs are not yet enqueued.
func (c *Coordinator[T, R]) CreateJobs(targets []T, batchSize int) []*Job[T, R] {
	if batchSize <= 0 {
		batchSize = c.opts.BatchSize
	}
	timeoutSeconds := int(c.opts.JobTimeout.Seconds())

	batches := Partition(targets, batchSize)
	jobs := make([]*Job[T, R], 0, len(batches))
	for _, batch := range batches {
		jobs = append(jobs, NewJob[T, R](batch, timeoutSeconds))
	}
	return jobs
}

// Enqueue appends jobs to the queue tail.
func (c *Coordinator[T, R]) Enqueue(jobs []*Job[T, R]) {
	if len(jobs) == 0 {
		return
	}

	c.mu.Lock()
	c.queue = append(c.queue, jobs...)
	c.jobsCreated += len(jobs)
	queued := len(c.queue)
	c.mu.Unlock()

	slog.Info("Jobs enqueued", "count", len(jobs), "queued_total", queued)
}

// SubmitTargets batches targets with the configured batch size and
// enqueues the resulting jobs, returning how many were created.
func (c *Coordinator[T, R]) SubmitTargets(targets []T) int {
	jobs := c.CreateJobs(targets, c.opts.BatchSize)
	c.Enqueue(jobs)
	return len(jobs)
}

// Register creates or updates a worker record.
func (c *Coordinator[T, R]) Register(ctx context.Context, workerID string, info map[string]string) error {
	c.mu.Lock()
	c.touchWorker(workerID, info)
	c.mu.Unlock()

	slog.Info("Worker registered", "worker_id", workerID, "hostname", info["hostname"])
	return nil
}

// Lease hands the queue head to the requesting worker. It returns nil when
// the queue is empty or the active table is at the concurrency ceiling;
// that emptiness is the system's only backpressure mechanism. The worker's
// heartbeat is refreshed either way.
func (c *Coordinator[T, R]) Lease(ctx context.Context, workerID string) (*Job[T, R], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.touchWorker(workerID, nil)

	if len(c.queue) == 0 || len(c.active) >= c.opts.MaxConcurrentJobs {
		return nil, nil
	}

	job := c.queue[0]
	c.queue = c.queue[1:]

	now := time.Now().UTC()
	job.Status = StatusInProgress
	job.WorkerID = workerID
	job.StartedAt = &now
	c.active[job.ID] = job

	slog.Info("Job leased",
		"job_id", job.ID,
		"worker_id", workerID,
		"targets", len(job.Targets),
	)

	// Hand out a snapshot so the worker cannot race the sweeper on the
	// tracked copy.
	leased := *job
	return &leased, nil
}

// Complete records a job's results. Unknown job ids (already retired by
// the sweeper, or completed once before) are logged and ignored, which
// makes completion idempotent and late submissions harmless. Results are
// handed to the sink after the lock is released.
func (c *Coordinator[T, R]) Complete(ctx context.Context, jobID string, results []R, errorMessage string) error {
	c.mu.Lock()

	job, ok := c.active[jobID]
	if !ok {
		c.mu.Unlock()
		slog.Warn("Completion for unknown job ignored", "job_id", jobID)
		return nil
	}

	delete(c.active, jobID)

	now := time.Now().UTC()
	job.CompletedAt = &now
	job.Results = results
	job.ErrorMessage = errorMessage
	if errorMessage == "" {
		job.Status = StatusCompleted
		c.jobsCompleted++
	} else {
		job.Status = StatusFailed
		c.jobsFailed++
	}
	c.targetsProcessed += len(results)

	if w, ok := c.workers[job.WorkerID]; ok {
		w.JobsCompleted++
		w.TargetsProcessed += len(results)
	}

	c.retainCompleted(job)
	c.mu.Unlock()

	var duration time.Duration
	if job.StartedAt != nil {
		duration = now.Sub(*job.StartedAt)
	}
	slog.Info("Job completed",
		"job_id", jobID,
		"worker_id", job.WorkerID,
		"status", job.Status,
		"results", len(results),
		"duration_ms", duration.Milliseconds(),
	)

	if len(results) > 0 {
		// The job is already marked completed; a worker dropping its
		// connection right after submitting must not cancel the write.
		if err := c.sink.Persist(context.WithoutCancel(ctx), results); err != nil {
			slog.Error("Failed to persist job results", "job_id", jobID, "error", err)
		}
	}
	return nil
}

// Heartbeat refreshes a worker's liveness, creating the record when the
// worker is unknown. Heartbeats double as registration for the in-process
// binding.
func (c *Coordinator[T, R]) Heartbeat(ctx context.Context, workerID string) error {
	c.mu.Lock()
	c.touchWorker(workerID, nil)
	c.mu.Unlock()
	return nil
}

// touchWorker must be called with the lock held.
func (c *Coordinator[T, R]) touchWorker(workerID string, info map[string]string) {
	w, ok := c.workers[workerID]
	if !ok {
		w = &WorkerRecord{ID: workerID, Info: map[string]string{}}
		c.workers[workerID] = w
	}
	for k, v := range info {
		w.Info[k] = v
	}
	w.LastHeartbeat = time.Now().UTC()
}

// retainCompleted must be called with the lock held.
func (c *Coordinator[T, R]) retainCompleted(job *Job[T, R]) {
	c.completed[job.ID] = job
	c.doneOrder = append(c.doneOrder, job.ID)
	for len(c.doneOrder) > c.opts.CompletedRetention {
		delete(c.completed, c.doneOrder[0])
		c.doneOrder = c.doneOrder[1:]
	}
}

// CompletedJob looks up a recently completed job by id.
func (c *Coordinator[T, R]) CompletedJob(jobID string) (*Job[T, R], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.completed[jobID]
	return job, ok
}

// Idle reports whether no work is queued or in flight.
func (c *Coordinator[T, R]) Idle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue) == 0 && len(c.active) == 0
}
