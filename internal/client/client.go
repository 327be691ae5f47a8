// Package client is the worker-side networked transport binding: an HTTP
// client speaking the coordinator's control-plane API. It satisfies the
// same contract as calling the coordinator in-process, so the worker loop
// cannot tell the two apart.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vflopes/proxyhive/internal/pool"
)

const (
	registerTimeout  = 10 * time.Second
	leaseTimeout     = 10 * time.Second
	completeTimeout  = 30 * time.Second
	heartbeatTimeout = 5 * time.Second
)

// Client talks to a remote coordinator. T and R must match the
// coordinator's job target and result types on the wire.
type Client[T, R any] struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the coordinator at baseURL
// (e.g. "http://pooler:8080").
func New[T, R any](baseURL string) *Client[T, R] {
	return &Client[T, R]{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Register announces the worker to the coordinator.
func (c *Client[T, R]) Register(ctx context.Context, workerID string, info map[string]string) error {
	body := map[string]interface{}{
		"worker_id":   workerID,
		"worker_info": info,
	}
	return c.post(ctx, registerTimeout, "/register_worker", body, nil)
}

// Lease requests the next job. A 204 means no job is available and maps to
// (nil, nil) so the poll loop behaves exactly like the in-process binding.
func (c *Client[T, R]) Lease(ctx context.Context, workerID string) (*pool.Job[T, R], error) {
	reqCtx, cancel := context.WithTimeout(ctx, leaseTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+"/get_job/"+url.PathEscape(workerID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lease request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil, nil
	case http.StatusOK:
		var job pool.Job[T, R]
		if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
			return nil, fmt.Errorf("failed to decode job: %w", err)
		}
		return &job, nil
	default:
		return nil, fmt.Errorf("lease request failed: HTTP %d", resp.StatusCode)
	}
}

// Complete submits a job's results.
func (c *Client[T, R]) Complete(ctx context.Context, jobID string, results []R, errorMessage string) error {
	body := map[string]interface{}{
		"job_id":        jobID,
		"results":       results,
		"error_message": errorMessage,
	}
	return c.post(ctx, completeTimeout, "/complete_job", body, nil)
}

// Heartbeat signals liveness.
func (c *Client[T, R]) Heartbeat(ctx context.Context, workerID string) error {
	return c.post(ctx, heartbeatTimeout, "/heartbeat/"+url.PathEscape(workerID), nil, nil)
}

// Stats fetches the coordinator's aggregate snapshot.
func (c *Client[T, R]) Stats(ctx context.Context) (pool.Stats, error) {
	reqCtx, cancel := context.WithTimeout(ctx, leaseTimeout)
	defer cancel()

	var stats pool.Stats
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+"/stats", nil)
	if err != nil {
		return stats, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return stats, fmt.Errorf("stats request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stats, fmt.Errorf("stats request failed: HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return stats, fmt.Errorf("failed to decode stats: %w", err)
	}
	return stats, nil
}

// SubmitValidation asks the coordinator to batch and enqueue a validation
// run over proxies matching filter, returning the number of jobs created.
func (c *Client[T, R]) SubmitValidation(ctx context.Context, filter interface{}, limit int) (int, error) {
	body := map[string]interface{}{
		"filter": filter,
		"limit":  limit,
	}
	var out struct {
		JobsCreated int `json:"jobs_created"`
	}
	if err := c.post(ctx, completeTimeout, "/submit_validation_job", body, &out); err != nil {
		return 0, err
	}
	return out.JobsCreated, nil
}

// post sends a JSON body and optionally decodes a JSON response into out.
func (c *Client[T, R]) post(ctx context.Context, timeout time.Duration, path string, body interface{}, out interface{}) error {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request to %s failed: HTTP %d", path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}
	return nil
}
