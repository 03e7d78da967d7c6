package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"zeus/internal/config"
	"zeus/internal/services"
	"zeus/internal/transcript"
)

const (
	defaultHTTPTimeout   = 5 * time.Minute
	defaultPollInterval  = 5 * time.Second
	defaultRetryAttempts = 5
	defaultRetryBase     = time.Second
	defaultRetryMax      = 30 * time.Second
)

// HTTPClient talks to the execution platform's REST gateway.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	namespace  string
	nodePool   string
	httpClient *http.Client

	pollInterval     time.Duration
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(context.Context, time.Duration) error
}

// Option customizes the platform client.
type Option func(*HTTPClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithPollInterval overrides how often work unit status is polled.
func WithPollInterval(interval time.Duration) Option {
	return func(c *HTTPClient) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// WithRetryMaxAttempts overrides the default retry count.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *HTTPClient) {
		if attempts > 0 {
			c.retryMaxAttempts = attempts
		}
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *HTTPClient) {
		if baseDelay > 0 {
			c.retryBaseDelay = baseDelay
		}
		if maxDelay > 0 {
			c.retryMaxDelay = maxDelay
		}
	}
}

// WithSleeper overrides how retry and poll sleeps are performed (useful for tests).
func WithSleeper(sleeper func(context.Context, time.Duration) error) Option {
	return func(c *HTTPClient) {
		if sleeper != nil {
			c.sleeper = sleeper
		}
	}
}

// NewHTTPClient constructs a platform client from configuration.
func NewHTTPClient(cfg config.Platform, opts ...Option) *HTTPClient {
	timeout := defaultHTTPTimeout
	if cfg.RequestTimeout > 0 {
		timeout = time.Duration(cfg.RequestTimeout) * time.Second
	}
	client := &HTTPClient{
		baseURL:          strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiKey:           strings.TrimSpace(cfg.APIKey),
		namespace:        strings.TrimSpace(cfg.Namespace),
		nodePool:         strings.TrimSpace(cfg.NodePool),
		httpClient:       &http.Client{Timeout: timeout},
		pollInterval:     defaultPollInterval,
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBase,
		retryMaxDelay:    defaultRetryMax,
	}
	if cfg.PollInterval > 0 {
		client.pollInterval = time.Duration(cfg.PollInterval) * time.Second
	}
	if cfg.DispatchRetries > 0 {
		client.retryMaxAttempts = cfg.DispatchRetries
	}
	if cfg.RetryBaseDelayMilli > 0 {
		client.retryBaseDelay = time.Duration(cfg.RetryBaseDelayMilli) * time.Millisecond
	}
	if cfg.RetryMaxDelayMilli > 0 {
		client.retryMaxDelay = time.Duration(cfg.RetryMaxDelayMilli) * time.Millisecond
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.sleeper == nil {
		client.sleeper = sleepContext
	}
	return client
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("platform: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

type submitPassRequest struct {
	RequestID   string  `json:"request_id"`
	JobID       int64   `json:"job_id"`
	PassIndex   int     `json:"pass_index"`
	Temperature float64 `json:"temperature"`
	Model       string  `json:"model"`
	VideoSource string  `json:"video_source"`
	Namespace   string  `json:"namespace"`
}

type workUnitResponse struct {
	UnitID        string               `json:"unit_id"`
	Status        string               `json:"status"`
	Segments      []transcript.Segment `json:"segments,omitempty"`
	FailureReason string               `json:"failure_reason,omitempty"`
}

type scaleRequest struct {
	NodeCount int `json:"node_count"`
}

// RunPass submits one work unit and polls until the platform reports a
// terminal outcome. Submission retries transient failures with exponential
// backoff; exceeding the spec timeout maps to the timeout marker.
func (c *HTTPClient) RunPass(ctx context.Context, spec PassSpec) (PassOutcome, error) {
	var empty PassOutcome
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	unit, err := c.submitPass(ctx, spec)
	if err != nil {
		return empty, err
	}

	for {
		if unit.terminal() {
			return unit.outcome(), nil
		}
		if err := c.sleeper(ctx, c.pollInterval); err != nil {
			return empty, classifyContextErr(ctx, "poll", spec)
		}
		unit, err = c.pollPass(ctx, unit.UnitID)
		if err != nil {
			if ctx.Err() != nil {
				return empty, classifyContextErr(ctx, "poll", spec)
			}
			return empty, err
		}
	}
}

func (u workUnitResponse) terminal() bool {
	switch strings.ToLower(u.Status) {
	case "succeeded", "failed":
		return true
	default:
		return false
	}
}

func (u workUnitResponse) outcome() PassOutcome {
	if strings.EqualFold(u.Status, "succeeded") {
		return PassOutcome{Succeeded: true, Segments: u.Segments}
	}
	reason := u.FailureReason
	if reason == "" {
		reason = "work unit failed"
	}
	return PassOutcome{Succeeded: false, FailureReason: reason}
}

func (c *HTTPClient) submitPass(ctx context.Context, spec PassSpec) (workUnitResponse, error) {
	var unit workUnitResponse
	payload := submitPassRequest{
		RequestID:   spec.RequestID,
		JobID:       spec.JobID,
		PassIndex:   spec.PassIndex,
		Temperature: spec.Temperature,
		Model:       spec.Model,
		VideoSource: spec.VideoSource,
		Namespace:   c.namespace,
	}
	err := c.withRetry(ctx, func() error {
		return c.doJSON(ctx, http.MethodPost, "/api/v1/passes", payload, &unit)
	})
	if err != nil {
		if ctx.Err() != nil {
			return unit, classifyContextErr(ctx, "submit", spec)
		}
		return unit, services.Wrap(services.ErrTransient, "dispatching", "submit",
			fmt.Sprintf("pass %d dispatch exhausted retries", spec.PassIndex), err)
	}
	if unit.UnitID == "" {
		return unit, services.Wrap(services.ErrTransient, "dispatching", "submit", "platform returned no unit id", nil)
	}
	return unit, nil
}

func (c *HTTPClient) pollPass(ctx context.Context, unitID string) (workUnitResponse, error) {
	var unit workUnitResponse
	err := c.withRetry(ctx, func() error {
		return c.doJSON(ctx, http.MethodGet, "/api/v1/passes/"+url.PathEscape(unitID), nil, &unit)
	})
	if err != nil {
		return unit, services.Wrap(services.ErrTransient, "transcribing", "poll",
			"work unit status unavailable", err)
	}
	return unit, nil
}

// Scale requests the node pool be resized. Failures carry the capacity marker
// so the controller logs and retries on its next loop instead of failing jobs.
func (c *HTTPClient) Scale(ctx context.Context, nodes int) error {
	err := c.withRetry(ctx, func() error {
		return c.doJSON(ctx, http.MethodPost,
			"/api/v1/nodepools/"+url.PathEscape(c.nodePool)+"/scale",
			scaleRequest{NodeCount: nodes}, nil)
	})
	if err != nil {
		return services.Wrap(services.ErrCapacity, "autoscale", "scale",
			fmt.Sprintf("scale to %d nodes", nodes), err)
	}
	return nil
}

// PoolStatus reports the node pool's current size and health.
func (c *HTTPClient) PoolStatus(ctx context.Context) (PoolStatus, error) {
	var status PoolStatus
	err := c.withRetry(ctx, func() error {
		return c.doJSON(ctx, http.MethodGet,
			"/api/v1/nodepools/"+url.PathEscape(c.nodePool), nil, &status)
	})
	if err != nil {
		return status, services.Wrap(services.ErrCapacity, "autoscale", "status",
			"node pool status unavailable", err)
	}
	return status, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("platform: encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("platform: build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("platform: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("platform: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("platform: decode response: %w", err)
	}
	return nil
}

func (c *HTTPClient) withRetry(ctx context.Context, op func() error) error {
	delay := c.retryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= c.retryMaxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) || attempt == c.retryMaxAttempts {
			return lastErr
		}
		wait := delay
		var statusErr *httpStatusError
		if errors.As(lastErr, &statusErr) && statusErr.RetryAfter > 0 {
			wait = statusErr.RetryAfter
		}
		if err := c.sleeper(ctx, wait); err != nil {
			return err
		}
		if next := delay * 2; next <= c.retryMaxDelay {
			delay = next
		} else {
			delay = c.retryMaxDelay
		}
	}
	return lastErr
}

// isRetryable treats network failures, 429s, and 5xx responses as transient.
// Other HTTP statuses mean the platform rejected the request outright.
func isRetryable(err error) bool {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return strings.Contains(err.Error(), "request failed")
}

// parseRetryAfter understands the delay-seconds form; HTTP-date values are
// ignored and fall back to the regular backoff schedule.
func parseRetryAfter(value string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func classifyContextErr(ctx context.Context, op string, spec PassSpec) error {
	marker := services.ErrTransient
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		marker = services.ErrTimeout
	}
	return services.Wrap(marker, "transcribing", op,
		fmt.Sprintf("pass %d exceeded its budget", spec.PassIndex), ctx.Err())
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
