package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"zeus/internal/api"
	"zeus/internal/config"
	"zeus/internal/logging"
	"zeus/internal/platform"
	"zeus/internal/testsupport"
)

func startDaemon(t *testing.T, opts ...testsupport.ConfigOption) (*Daemon, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	fake := &testsupport.FakePlatform{Pool: platform.PoolStatus{NodeCount: 2, HealthStatus: "healthy"}}
	d, err := New(cfg, store, fake, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d.Stop)
	return d, "http://" + d.APIAddr()
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestSubmitAndFetchJobOverHTTP(t *testing.T) {
	_, base := startDaemon(t)

	resp := postJSON(t, base+"/api/v1/jobs", api.SubmitRequest{
		RequestID:   "req-http",
		VideoSource: "https://example.test/v.mp4",
		Priority:    "urgent",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit status = %d", resp.StatusCode)
	}
	submitted := decode[api.SubmitResponse](t, resp)
	if submitted.Job.RequestID != "req-http" || submitted.Job.Priority != "urgent" {
		t.Fatalf("submitted job = %+v", submitted.Job)
	}

	// Idempotent resubmission returns the same job with 200.
	resp = postJSON(t, base+"/api/v1/jobs", api.SubmitRequest{
		RequestID:   "req-http",
		VideoSource: "https://example.test/v.mp4",
		Priority:    "urgent",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resubmit status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Conflicting resubmission is a 409.
	resp = postJSON(t, base+"/api/v1/jobs", api.SubmitRequest{
		RequestID:   "req-http",
		VideoSource: "https://example.test/other.mp4",
		Priority:    "urgent",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("conflicting resubmit status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	getResp, err := http.Get(fmt.Sprintf("%s/api/v1/jobs/%d", base, submitted.Job.ID))
	if err != nil {
		t.Fatalf("GET job: %v", err)
	}
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", getResp.StatusCode)
	}
	fetched := decode[api.JobView](t, getResp)
	if fetched.ID != submitted.Job.ID {
		t.Errorf("fetched job %d, want %d", fetched.ID, submitted.Job.ID)
	}

	listResp, err := http.Get(base + "/api/v1/jobs")
	if err != nil {
		t.Fatalf("GET jobs: %v", err)
	}
	listed := decode[api.JobListResponse](t, listResp)
	if len(listed.Jobs) != 1 {
		t.Errorf("listed %d jobs, want 1", len(listed.Jobs))
	}
}

func TestUnknownJobReturns404(t *testing.T) {
	_, base := startDaemon(t)
	resp, err := http.Get(base + "/api/v1/jobs/99999")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestClusterStatusOverHTTP(t *testing.T) {
	_, base := startDaemon(t)
	resp, err := http.Get(base + "/api/v1/cluster/status")
	if err != nil {
		t.Fatalf("GET cluster status: %v", err)
	}
	status := decode[api.ClusterStatus](t, resp)
	if status.NodeCount != 2 || status.HealthStatus != "healthy" {
		t.Errorf("cluster status = %+v", status)
	}
}

func TestBearerAuthGuardsAPIRoutes(t *testing.T) {
	_, base := startDaemon(t, func(cfg *config.Config) {
		cfg.Paths.APIToken = "sekrit"
	})

	resp, err := http.Get(base + "/api/v1/jobs")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", resp.StatusCode)
	}
	if got := resp.Header.Get("WWW-Authenticate"); !strings.Contains(got, "Bearer") {
		t.Errorf("WWW-Authenticate = %q, want a Bearer challenge", got)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var errBody map[string]string
	if err := json.Unmarshal(body, &errBody); err != nil || errBody["error"] != "unauthorized" {
		t.Errorf("error body = %q", body)
	}

	req, err := http.NewRequest(http.MethodGet, base+"/api/v1/jobs", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer sekrit")
	authed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("authed GET: %v", err)
	}
	authed.Body.Close()
	if authed.StatusCode != http.StatusOK {
		t.Fatalf("authenticated status = %d, want 200", authed.StatusCode)
	}

	req.Header.Set("Authorization", "Bearer sekrit-but-wrong")
	denied, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("wrong-token GET: %v", err)
	}
	denied.Body.Close()
	if denied.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong-token status = %d, want 401", denied.StatusCode)
	}

	// Health stays open for probes.
	health, err := http.Get(base + "/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", health.StatusCode)
	}
}

func TestMetricsEndpointServesPrometheusText(t *testing.T) {
	_, base := startDaemon(t)
	resp, err := http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(body), "zeus_queue_depth") {
		t.Error("metrics output missing queue depth gauge")
	}
}
