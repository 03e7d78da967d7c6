package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to a running daemon's HTTP API. The CLI uses it for every
// command that needs live state.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// ClientOption customizes the API client.
type ClientOption func(*Client)

// WithClientHTTP overrides the default HTTP client.
func WithClientHTTP(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a client for the daemon at baseURL.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx response from the daemon.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("daemon: http %d: %s", e.StatusCode, e.Message)
}

// Submit enqueues a transcription job.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error) {
	var resp SubmitResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/jobs", req, &resp)
	return resp, err
}

// GetJob fetches one job by id.
func (c *Client) GetJob(ctx context.Context, id int64) (JobView, error) {
	var view JobView
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/jobs/%d", id), nil, &view)
	return view, err
}

// ListJobs fetches jobs, optionally filtered by state names.
func (c *Client) ListJobs(ctx context.Context, states ...string) ([]JobView, error) {
	path := "/api/v1/jobs"
	if len(states) > 0 {
		query := make([]string, 0, len(states))
		for _, state := range states {
			query = append(query, "state="+state)
		}
		path += "?" + strings.Join(query, "&")
	}
	var resp JobListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// CancelJob cancels a job.
func (c *Client) CancelJob(ctx context.Context, id int64) (CancelResult, error) {
	var result CancelResult
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/jobs/%d", id), nil, &result)
	return result, err
}

// RetryJob requeues a failed job.
func (c *Client) RetryJob(ctx context.Context, id int64) (RetryResult, error) {
	var result RetryResult
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/jobs/%d/retry", id), nil, &result)
	return result, err
}

// ClearCompleted removes completed jobs from the daemon's store.
func (c *Client) ClearCompleted(ctx context.Context) (ClearResult, error) {
	var result ClearResult
	err := c.do(ctx, http.MethodDelete, "/api/v1/jobs", nil, &result)
	return result, err
}

// ClusterStatus fetches the node pool snapshot.
func (c *Client) ClusterStatus(ctx context.Context) (ClusterStatus, error) {
	var status ClusterStatus
	err := c.do(ctx, http.MethodGet, "/api/v1/cluster/status", nil, &status)
	return status, err
}

// Scale asks the daemon to resize the node pool.
func (c *Client) Scale(ctx context.Context, nodes int) error {
	return c.do(ctx, http.MethodPost, "/api/v1/cluster/scale", ScaleRequest{NodeCount: nodes}, nil)
}

// EngineStatus fetches daemon runtime details.
func (c *Client) EngineStatus(ctx context.Context) (EngineStatus, error) {
	var status EngineStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &status)
	return status, err
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func errorMessage(data []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(data))
}
