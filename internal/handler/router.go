package handler

import (
	"net/http"
	"strings"

	"github.com/vflopes/proxyhive/pkg/middleware"
)

// Router handles HTTP routing
type Router struct {
	poolHandler   *PoolHandler
	proxyHandler  *ProxyHandler
	healthHandler *HealthHandler
}

// NewRouter creates a new router
func NewRouter(poolHandler *PoolHandler, proxyHandler *ProxyHandler, healthHandler *HealthHandler) *Router {
	return &Router{
		poolHandler:   poolHandler,
		proxyHandler:  proxyHandler,
		healthHandler: healthHandler,
	}
}

// Handler returns the configured HTTP handler with middleware
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health endpoint (no middleware)
	mux.HandleFunc("/health", rt.healthHandler.Health)

	// Worker protocol endpoints
	mux.HandleFunc("/register_worker", rt.handleRegisterWorker)
	mux.HandleFunc("/get_job/", rt.handleGetJob)
	mux.HandleFunc("/complete_job", rt.handleCompleteJob)
	mux.HandleFunc("/heartbeat/", rt.handleHeartbeat)

	// Observation and submission endpoints
	mux.HandleFunc("/stats", rt.handleStats)
	mux.HandleFunc("/submit_validation_job", rt.handleSubmitValidationJob)

	// Proxy catalog endpoints
	mux.HandleFunc("/proxies", rt.handleProxies)
	mux.HandleFunc("/proxies/", rt.handleProxyByID)

	// Apply middleware
	var handler http.Handler = mux
	handler = middleware.Recovery(handler)
	handler = middleware.Logging(handler)
	handler = middleware.CorrelationID(handler)

	return handler
}

func (rt *Router) handleRegisterWorker(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	rt.poolHandler.RegisterWorker(w, r)
}

func (rt *Router) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	workerID := strings.TrimPrefix(r.URL.Path, "/get_job/")
	rt.poolHandler.GetJob(w, r, workerID)
}

func (rt *Router) handleCompleteJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	rt.poolHandler.CompleteJob(w, r)
}

func (rt *Router) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	workerID := strings.TrimPrefix(r.URL.Path, "/heartbeat/")
	rt.poolHandler.Heartbeat(w, r, workerID)
}

func (rt *Router) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	rt.poolHandler.Stats(w, r)
}

func (rt *Router) handleSubmitValidationJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	rt.poolHandler.SubmitValidationJob(w, r)
}

func (rt *Router) handleProxies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	rt.proxyHandler.CreateProxy(w, r)
}

func (rt *Router) handleProxyByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/proxies/")
	if id, ok := strings.CutSuffix(rest, "/history"); ok {
		rt.proxyHandler.GetProxyHistory(w, r, id)
		return
	}
	rt.proxyHandler.GetProxy(w, r, rest)
}
