package platform

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"zeus/internal/config"
	"zeus/internal/services"
	"zeus/internal/transcript"
)

func testConfig(baseURL string) config.Platform {
	return config.Platform{
		BaseURL:  baseURL,
		APIKey:   "test-token",
		NodePool: "gpupool",
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestRunPassSubmitsAndPollsToCompletion(t *testing.T) {
	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("authorization = %q", got)
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/passes":
			var req submitPassRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode submit: %v", err)
			}
			if req.PassIndex != 2 || req.Temperature != 0.4 {
				t.Errorf("submit payload = %+v", req)
			}
			json.NewEncoder(w).Encode(workUnitResponse{UnitID: "wu-1", Status: "running"})
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/passes/wu-1":
			if polls.Add(1) < 2 {
				json.NewEncoder(w).Encode(workUnitResponse{UnitID: "wu-1", Status: "running"})
				return
			}
			json.NewEncoder(w).Encode(workUnitResponse{
				UnitID: "wu-1",
				Status: "succeeded",
				Segments: []transcript.Segment{
					{Start: 0, End: 2.5, Text: "hello there", Confidence: 0.92},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewHTTPClient(testConfig(server.URL), WithSleeper(noSleep))
	outcome, err := client.RunPass(context.Background(), PassSpec{
		RequestID:   "req-1",
		JobID:       7,
		PassIndex:   2,
		Temperature: 0.4,
		Model:       "large-v3",
		VideoSource: "https://example.test/v.mp4",
	})
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if !outcome.Succeeded {
		t.Fatalf("outcome = %+v, want success", outcome)
	}
	if len(outcome.Segments) != 1 || outcome.Segments[0].Text != "hello there" {
		t.Errorf("segments = %+v", outcome.Segments)
	}
	if polls.Load() != 2 {
		t.Errorf("polls = %d, want 2", polls.Load())
	}
}

func TestRunPassReportsPlatformFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(workUnitResponse{
			UnitID:        "wu-2",
			Status:        "failed",
			FailureReason: "gpu node preempted",
		})
	}))
	defer server.Close()

	client := NewHTTPClient(testConfig(server.URL), WithSleeper(noSleep))
	outcome, err := client.RunPass(context.Background(), PassSpec{RequestID: "req-2"})
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if outcome.Succeeded {
		t.Fatal("outcome reports success for a failed unit")
	}
	if outcome.FailureReason != "gpu node preempted" {
		t.Errorf("failure reason = %q", outcome.FailureReason)
	}
}

func TestRunPassRetriesTransientSubmitErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if attempts.Add(1) < 3 {
				http.Error(w, "upstream busy", http.StatusServiceUnavailable)
				return
			}
			json.NewEncoder(w).Encode(workUnitResponse{UnitID: "wu-3", Status: "succeeded"})
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewHTTPClient(testConfig(server.URL), WithSleeper(noSleep))
	if _, err := client.RunPass(context.Background(), PassSpec{RequestID: "req-3"}); err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("attempts = %d, want 3", attempts.Load())
	}
}

func TestRunPassHonorsRetryAfterHeader(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.Header().Set("Retry-After", "7")
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(workUnitResponse{UnitID: "wu-ra", Status: "succeeded"})
	}))
	defer server.Close()

	var slept []time.Duration
	sleeper := func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	client := NewHTTPClient(testConfig(server.URL), WithSleeper(sleeper))
	if _, err := client.RunPass(context.Background(), PassSpec{RequestID: "req-ra"}); err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if len(slept) == 0 || slept[0] != 7*time.Second {
		t.Fatalf("slept = %v, want first wait of 7s", slept)
	}
}

func TestRunPassSubmitExhaustsRetriesAsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "still broken", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewHTTPClient(testConfig(server.URL),
		WithSleeper(noSleep), WithRetryMaxAttempts(2))
	_, err := client.RunPass(context.Background(), PassSpec{RequestID: "req-4"})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("err = %v, want transient marker", err)
	}
}

func TestRunPassRejectionIsNotRetried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "bad video source", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewHTTPClient(testConfig(server.URL), WithSleeper(noSleep))
	if _, err := client.RunPass(context.Background(), PassSpec{RequestID: "req-5"}); err == nil {
		t.Fatal("expected error for rejected submit")
	}
	if attempts.Load() != 1 {
		t.Errorf("attempts = %d, want 1", attempts.Load())
	}
}

func TestRunPassTimesOutWhilePolling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(workUnitResponse{UnitID: "wu-6", Status: "running"})
	}))
	defer server.Close()

	client := NewHTTPClient(testConfig(server.URL),
		WithPollInterval(5*time.Millisecond))
	_, err := client.RunPass(context.Background(), PassSpec{
		RequestID: "req-6",
		Timeout:   25 * time.Millisecond,
	})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("err = %v, want timeout marker", err)
	}
}

func TestScaleWrapsFailuresWithCapacityMarker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer server.Close()

	client := NewHTTPClient(testConfig(server.URL), WithSleeper(noSleep))
	err := client.Scale(context.Background(), 4)
	if !errors.Is(err, services.ErrCapacity) {
		t.Fatalf("err = %v, want capacity marker", err)
	}
}

func TestScaleTargetsConfiguredNodePool(t *testing.T) {
	var gotPath string
	var gotCount int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var req scaleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode scale: %v", err)
		}
		gotCount = req.NodeCount
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := NewHTTPClient(testConfig(server.URL), WithSleeper(noSleep))
	if err := client.Scale(context.Background(), 6); err != nil {
		t.Fatalf("Scale: %v", err)
	}
	if gotPath != "/api/v1/nodepools/gpupool/scale" {
		t.Errorf("path = %q", gotPath)
	}
	if gotCount != 6 {
		t.Errorf("node count = %d, want 6", gotCount)
	}
}

func TestPoolStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/nodepools/gpupool" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(PoolStatus{NodeCount: 3, HealthStatus: "healthy"})
	}))
	defer server.Close()

	client := NewHTTPClient(testConfig(server.URL), WithSleeper(noSleep))
	status, err := client.PoolStatus(context.Background())
	if err != nil {
		t.Fatalf("PoolStatus: %v", err)
	}
	if status.NodeCount != 3 || status.HealthStatus != "healthy" {
		t.Errorf("status = %+v", status)
	}
}
