package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/vflopes/proxyhive/internal/model"
	"github.com/vflopes/proxyhive/internal/pool"
)

// ValidationCoordinator is the coordinator instantiation served over HTTP:
// proxy targets in, check results out.
type ValidationCoordinator = pool.Coordinator[model.Proxy, model.CheckResult]

// ProxyFetcher selects proxies for validation job submission.
type ProxyFetcher interface {
	FetchForValidation(ctx context.Context, filter model.ProxyFilter, limit int) ([]model.Proxy, error)
}

// ProxyCounter reports how many proxies are stored, by filter.
type ProxyCounter interface {
	Count(ctx context.Context, filter model.ProxyFilter) (int64, error)
}

// PoolHandler exposes the coordinator's worker protocol and job submission
// over HTTP.
type PoolHandler struct {
	pool    *ValidationCoordinator
	proxies ProxyFetcher
	counter ProxyCounter
}

// NewPoolHandler creates a new pool handler. A nil counter leaves the
// catalog totals out of the stats response.
func NewPoolHandler(coordinator *ValidationCoordinator, proxies ProxyFetcher, counter ProxyCounter) *PoolHandler {
	return &PoolHandler{
		pool:    coordinator,
		proxies: proxies,
		counter: counter,
	}
}

// RegisterWorkerRequest represents a worker registration request
type RegisterWorkerRequest struct {
	WorkerID   string            `json:"worker_id"`
	WorkerInfo map[string]string `json:"worker_info,omitempty"`
}

// RegisterWorker handles POST /register_worker
func (h *PoolHandler) RegisterWorker(w http.ResponseWriter, r *http.Request) {
	var req RegisterWorkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.WorkerID == "" {
		writeError(w, http.StatusBadRequest, "worker_id is required")
		return
	}

	if err := h.pool.Register(r.Context(), req.WorkerID, req.WorkerInfo); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to register worker")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "registered",
		"worker_id": req.WorkerID,
	})
}

// GetJob handles GET /get_job/{worker_id}. An empty lease is a 204, not an
// error; polling workers treat it as "come back later".
func (h *PoolHandler) GetJob(w http.ResponseWriter, r *http.Request, workerID string) {
	if workerID == "" {
		writeError(w, http.StatusBadRequest, "worker_id is required")
		return
	}

	job, err := h.pool.Lease(r.Context(), workerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to lease job")
		return
	}
	if job == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// CompleteJobRequest represents a job completion submission
type CompleteJobRequest struct {
	JobID        string              `json:"job_id"`
	Results      []model.CheckResult `json:"results"`
	ErrorMessage string              `json:"error_message,omitempty"`
}

// CompleteJob handles POST /complete_job
func (h *PoolHandler) CompleteJob(w http.ResponseWriter, r *http.Request) {
	var req CompleteJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.JobID == "" {
		writeError(w, http.StatusBadRequest, "job_id is required")
		return
	}

	if err := h.pool.Complete(r.Context(), req.JobID, req.Results, req.ErrorMessage); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to complete job")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "accepted",
		"job_id": req.JobID,
	})
}

// Heartbeat handles POST /heartbeat/{worker_id}
func (h *PoolHandler) Heartbeat(w http.ResponseWriter, r *http.Request, workerID string) {
	if workerID == "" {
		writeError(w, http.StatusBadRequest, "worker_id is required")
		return
	}

	if err := h.pool.Heartbeat(r.Context(), workerID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record heartbeat")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StatsResponse augments coordinator counters with catalog totals
type StatsResponse struct {
	pool.Stats
	TotalProxies  int64 `json:"total_proxies"`
	ActiveProxies int64 `json:"active_proxies"`
}

// Stats handles GET /stats
func (h *PoolHandler) Stats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{Stats: h.pool.Stats()}

	if h.counter != nil {
		total, err := h.counter.Count(r.Context(), model.ProxyFilter{})
		if err != nil {
			slog.Warn("Failed to count proxies for stats", "error", err)
		} else {
			resp.TotalProxies = total
		}
		active, err := h.counter.Count(r.Context(), model.ProxyFilter{Status: model.StatusActive})
		if err == nil {
			resp.ActiveProxies = active
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// SubmitValidationJobRequest selects proxies to batch into validation jobs
type SubmitValidationJobRequest struct {
	Filter model.ProxyFilter `json:"filter"`
	Limit  int               `json:"limit,omitempty"`
}

// SubmitValidationJobResponse reports how much work a submission produced
type SubmitValidationJobResponse struct {
	JobsCreated int `json:"jobs_created"`
	Targets     int `json:"targets"`
}

// SubmitValidationJob handles POST /submit_validation_job. It fetches
// matching proxies from storage and enqueues them as validation jobs.
func (h *PoolHandler) SubmitValidationJob(w http.ResponseWriter, r *http.Request) {
	var req SubmitValidationJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	proxies, err := h.proxies.FetchForValidation(r.Context(), req.Filter, req.Limit)
	if err != nil {
		slog.Error("Failed to fetch proxies for validation", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch proxies")
		return
	}

	created := h.pool.SubmitTargets(proxies)

	slog.Info("Validation job submitted",
		"targets", len(proxies),
		"jobs_created", created,
	)

	writeJSON(w, http.StatusOK, SubmitValidationJobResponse{
		JobsCreated: created,
		Targets:     len(proxies),
	})
}
