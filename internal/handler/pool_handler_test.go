package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vflopes/proxyhive/internal/model"
	"github.com/vflopes/proxyhive/internal/pool"
)

// fakeFetcher serves a canned proxy list for submission tests.
type fakeFetcher struct {
	proxies    []model.Proxy
	err        error
	lastFilter model.ProxyFilter
	lastLimit  int
}

func (f *fakeFetcher) FetchForValidation(ctx context.Context, filter model.ProxyFilter, limit int) ([]model.Proxy, error) {
	f.lastFilter = filter
	f.lastLimit = limit
	return f.proxies, f.err
}

func testProxies(n int) []model.Proxy {
	proxies := make([]model.Proxy, n)
	for i := range proxies {
		proxies[i] = model.Proxy{
			IP:   "10.0.0.1",
			Port: 8080 + i,
			Type: model.TypeHTTP,
		}
	}
	return proxies
}

func newTestServer(t *testing.T, fetcher *fakeFetcher, opts pool.Options) (*httptest.Server, *ValidationCoordinator) {
	t.Helper()

	coordinator := pool.New[model.Proxy, model.CheckResult](opts, nil)
	router := NewRouter(
		NewPoolHandler(coordinator, fetcher, nil),
		NewProxyHandler(nil, nil),
		NewHealthHandler(nil, "test"),
	)

	srv := httptest.NewServer(router.Handler())
	t.Cleanup(srv.Close)
	return srv, coordinator
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func TestRegisterWorker(t *testing.T) {
	srv, coordinator := newTestServer(t, &fakeFetcher{}, pool.Options{})

	resp := postJSON(t, srv.URL+"/register_worker", RegisterWorkerRequest{
		WorkerID:   "w1",
		WorkerInfo: map[string]string{"hostname": "h"},
	})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, coordinator.Stats().Workers, "w1")
}

func TestRegisterWorkerRejectsMissingID(t *testing.T) {
	srv, _ := newTestServer(t, &fakeFetcher{}, pool.Options{})

	resp := postJSON(t, srv.URL+"/register_worker", RegisterWorkerRequest{})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetJobReturnsNoContentWhenQueueEmpty(t *testing.T) {
	srv, _ := newTestServer(t, &fakeFetcher{}, pool.Options{})

	resp, err := http.Get(srv.URL + "/get_job/w1")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestGetJobLeasesQueuedJob(t *testing.T) {
	srv, coordinator := newTestServer(t, &fakeFetcher{}, pool.Options{BatchSize: 10})
	coordinator.SubmitTargets(testProxies(3))

	resp, err := http.Get(srv.URL + "/get_job/w1")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var job pool.Job[model.Proxy, model.CheckResult]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&job))
	assert.Equal(t, pool.StatusInProgress, job.Status)
	assert.Equal(t, "w1", job.WorkerID)
	assert.Len(t, job.Targets, 3)
}

func TestCompleteJobRoundTrip(t *testing.T) {
	srv, coordinator := newTestServer(t, &fakeFetcher{}, pool.Options{BatchSize: 10})
	coordinator.SubmitTargets(testProxies(1))

	job, err := coordinator.Lease(context.Background(), "w1")
	require.NoError(t, err)
	require.NotNil(t, job)

	resp := postJSON(t, srv.URL+"/complete_job", CompleteJobRequest{
		JobID:   job.ID,
		Results: []model.CheckResult{{IP: "10.0.0.1", Port: 8080, IsWorking: true}},
	})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, coordinator.Stats().JobsCompleted)
}

func TestCompleteJobUnknownIDStillAccepted(t *testing.T) {
	srv, _ := newTestServer(t, &fakeFetcher{}, pool.Options{})

	resp := postJSON(t, srv.URL+"/complete_job", CompleteJobRequest{JobID: "gone"})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHeartbeat(t *testing.T) {
	srv, coordinator := newTestServer(t, &fakeFetcher{}, pool.Options{})

	resp := postJSON(t, srv.URL+"/heartbeat/w1", nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, coordinator.Stats().Workers, "w1")
}

func TestStats(t *testing.T) {
	srv, coordinator := newTestServer(t, &fakeFetcher{}, pool.Options{BatchSize: 2})
	coordinator.SubmitTargets(testProxies(5))

	resp, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats pool.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 3, stats.Queued)
	assert.Equal(t, 3, stats.JobsCreated)
}

// fakeCounter serves canned catalog totals keyed by status filter.
type fakeCounter struct {
	counts map[model.ProxyStatus]int64
}

func (f *fakeCounter) Count(ctx context.Context, filter model.ProxyFilter) (int64, error) {
	return f.counts[filter.Status], nil
}

func TestStatsIncludesCatalogTotals(t *testing.T) {
	coordinator := pool.New[model.Proxy, model.CheckResult](pool.Options{}, nil)
	counter := &fakeCounter{counts: map[model.ProxyStatus]int64{
		"":                 42,
		model.StatusActive: 7,
	}}
	router := NewRouter(
		NewPoolHandler(coordinator, &fakeFetcher{}, counter),
		NewProxyHandler(nil, nil),
		NewHealthHandler(nil, "test"),
	)
	srv := httptest.NewServer(router.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats StatsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, int64(42), stats.TotalProxies)
	assert.Equal(t, int64(7), stats.ActiveProxies)
}

func TestSubmitValidationJob(t *testing.T) {
	fetcher := &fakeFetcher{proxies: testProxies(125)}
	srv, coordinator := newTestServer(t, fetcher, pool.Options{BatchSize: 50})

	resp := postJSON(t, srv.URL+"/submit_validation_job", SubmitValidationJobRequest{
		Filter: model.ProxyFilter{Status: model.StatusUntested},
		Limit:  200,
	})
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out SubmitValidationJobResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 3, out.JobsCreated)
	assert.Equal(t, 125, out.Targets)

	assert.Equal(t, model.StatusUntested, fetcher.lastFilter.Status)
	assert.Equal(t, 200, fetcher.lastLimit)
	assert.Equal(t, 3, coordinator.Stats().Queued)
}

func TestSubmitValidationJobFetchError(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("mongo down")}
	srv, _ := newTestServer(t, fetcher, pool.Options{})

	resp := postJSON(t, srv.URL+"/submit_validation_job", SubmitValidationJobRequest{})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestRouterRejectsWrongMethods(t *testing.T) {
	srv, _ := newTestServer(t, &fakeFetcher{}, pool.Options{})

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/register_worker"},
		{http.MethodPost, "/get_job/w1"},
		{http.MethodGet, "/complete_job"},
		{http.MethodGet, "/heartbeat/w1"},
		{http.MethodPost, "/stats"},
		{http.MethodGet, "/submit_validation_job"},
		{http.MethodGet, "/proxies"},
		{http.MethodPost, "/proxies/507f1f77bcf86cd799439011"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
			require.NoError(t, err)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		})
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &fakeFetcher{}, pool.Options{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "disconnected", health.MongoDB)
}
