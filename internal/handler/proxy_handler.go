package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/vflopes/proxyhive/internal/database"
	"github.com/vflopes/proxyhive/internal/model"
)

const defaultHistoryLimit = 50

// ProxyStore is the proxy catalog surface the handler needs.
type ProxyStore interface {
	Create(ctx context.Context, proxy *model.Proxy) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*model.Proxy, error)
}

// CheckHistory reads the per-check audit trail.
type CheckHistory interface {
	ListByProxy(ctx context.Context, proxyID primitive.ObjectID, limit int) ([]model.CheckResult, error)
}

// ProxyHandler exposes proxy ingestion and inspection over HTTP.
type ProxyHandler struct {
	proxies ProxyStore
	history CheckHistory
}

// NewProxyHandler creates a new proxy handler
func NewProxyHandler(proxies ProxyStore, history CheckHistory) *ProxyHandler {
	return &ProxyHandler{
		proxies: proxies,
		history: history,
	}
}

// CreateProxy handles POST /proxies
func (h *ProxyHandler) CreateProxy(w http.ResponseWriter, r *http.Request) {
	var proxy model.Proxy
	if err := json.NewDecoder(r.Body).Decode(&proxy); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := proxy.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.proxies.Create(r.Context(), &proxy); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create proxy")
		return
	}

	writeJSON(w, http.StatusCreated, proxy)
}

// GetProxy handles GET /proxies/{id}
func (h *ProxyHandler) GetProxy(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := primitive.ObjectIDFromHex(rawID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid proxy id")
		return
	}

	proxy, err := h.proxies.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Proxy not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get proxy")
		return
	}

	writeJSON(w, http.StatusOK, proxy)
}

// ProxyHistoryResponse lists recent checks for one proxy
type ProxyHistoryResponse struct {
	ProxyID string              `json:"proxy_id"`
	Count   int                 `json:"count"`
	Checks  []model.CheckResult `json:"checks"`
}

// GetProxyHistory handles GET /proxies/{id}/history. The limit query
// parameter caps how many checks come back, newest first.
func (h *ProxyHandler) GetProxyHistory(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := primitive.ObjectIDFromHex(rawID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid proxy id")
		return
	}

	limit := parseQueryInt(r, "limit", defaultHistoryLimit)
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	checks, err := h.history.ListByProxy(r.Context(), id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list check history")
		return
	}

	writeJSON(w, http.StatusOK, ProxyHistoryResponse{
		ProxyID: rawID,
		Count:   len(checks),
		Checks:  checks,
	})
}
