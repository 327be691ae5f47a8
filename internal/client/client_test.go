package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vflopes/proxyhive/internal/handler"
	"github.com/vflopes/proxyhive/internal/model"
	"github.com/vflopes/proxyhive/internal/pool"
)

type staticFetcher struct {
	proxies []model.Proxy
}

func (f *staticFetcher) FetchForValidation(ctx context.Context, filter model.ProxyFilter, limit int) ([]model.Proxy, error) {
	return f.proxies, nil
}

// newTestCoordinator serves a real coordinator behind the real router, so
// these tests exercise the full wire protocol end to end.
func newTestCoordinator(t *testing.T, fetcher handler.ProxyFetcher, opts pool.Options) (*Client[model.Proxy, model.CheckResult], *handler.ValidationCoordinator) {
	t.Helper()

	coordinator := pool.New[model.Proxy, model.CheckResult](opts, nil)
	router := handler.NewRouter(
		handler.NewPoolHandler(coordinator, fetcher, nil),
		handler.NewProxyHandler(nil, nil),
		handler.NewHealthHandler(nil, "test"),
	)

	srv := httptest.NewServer(router.Handler())
	t.Cleanup(srv.Close)

	return New[model.Proxy, model.CheckResult](srv.URL), coordinator
}

func someProxies(n int) []model.Proxy {
	proxies := make([]model.Proxy, n)
	for i := range proxies {
		proxies[i] = model.Proxy{IP: "10.0.0.1", Port: 3128 + i, Type: model.TypeHTTP}
	}
	return proxies
}

func TestRegisterAndHeartbeat(t *testing.T) {
	client, coordinator := newTestCoordinator(t, &staticFetcher{}, pool.Options{})
	ctx := context.Background()

	require.NoError(t, client.Register(ctx, "w1", map[string]string{"hostname": "h"}))
	require.NoError(t, client.Heartbeat(ctx, "w1"))

	stats := coordinator.Stats()
	require.Contains(t, stats.Workers, "w1")
	assert.Equal(t, "h", stats.Workers["w1"].Info["hostname"])
}

func TestLeaseMapsNoContentToNilJob(t *testing.T) {
	client, _ := newTestCoordinator(t, &staticFetcher{}, pool.Options{})

	job, err := client.Lease(context.Background(), "w1")
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestLeaseCompleteRoundTrip(t *testing.T) {
	client, coordinator := newTestCoordinator(t, &staticFetcher{}, pool.Options{BatchSize: 10})
	ctx := context.Background()

	coordinator.SubmitTargets(someProxies(2))

	job, err := client.Lease(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, pool.StatusInProgress, job.Status)
	require.Len(t, job.Targets, 2)
	assert.Equal(t, 3128, job.Targets[0].Port)

	results := []model.CheckResult{
		{IP: "10.0.0.1", Port: 3128, IsWorking: true},
		{IP: "10.0.0.1", Port: 3129, IsWorking: false, ErrorKind: model.ErrorTimeout},
	}
	require.NoError(t, client.Complete(ctx, job.ID, results, ""))

	stats := coordinator.Stats()
	assert.Equal(t, 1, stats.JobsCompleted)
	assert.Equal(t, 2, stats.TargetsProcessed)
}

func TestStatsDecodes(t *testing.T) {
	client, coordinator := newTestCoordinator(t, &staticFetcher{}, pool.Options{BatchSize: 5})
	coordinator.SubmitTargets(someProxies(5))

	stats, err := client.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Queued)
	assert.Equal(t, 1, stats.JobsCreated)
}

func TestSubmitValidation(t *testing.T) {
	client, coordinator := newTestCoordinator(t, &staticFetcher{proxies: someProxies(75)}, pool.Options{BatchSize: 50})

	created, err := client.SubmitValidation(context.Background(), model.ProxyFilter{Status: model.StatusUntested}, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.Equal(t, 2, coordinator.Stats().Queued)
}

func TestClientReportsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	client := New[model.Proxy, model.CheckResult](srv.URL)
	ctx := context.Background()

	err := client.Register(ctx, "w1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")

	_, err = client.Lease(ctx, "w1")
	require.Error(t, err)
}

func TestClientReportsConnectionFailure(t *testing.T) {
	client := New[model.Proxy, model.CheckResult]("http://127.0.0.1:1")

	_, err := client.Lease(context.Background(), "w1")
	assert.Error(t, err)
}
