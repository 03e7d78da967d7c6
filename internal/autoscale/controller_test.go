package autoscale

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"zeus/internal/config"
	"zeus/internal/jobs"
	"zeus/internal/logging"
	"zeus/internal/metrics"
	"zeus/internal/testsupport"
)

func TestTargetNodes(t *testing.T) {
	cfg := config.Autoscale{JobsPerNode: 3, MinNodes: 1, MaxNodes: 10}
	cases := []struct {
		name  string
		depth int
		cfg   config.Autoscale
		want  int
	}{
		{"empty queue floors at min", 0, cfg, 1},
		{"partial node rounds up", 4, cfg, 2},
		{"exact multiple", 9, cfg, 3},
		{"clamped to max", 12, config.Autoscale{JobsPerNode: 3, MinNodes: 1, MaxNodes: 3}, 3},
		{"min above demand", 2, config.Autoscale{JobsPerNode: 3, MinNodes: 4, MaxNodes: 10}, 4},
		{"zero jobs per node treated as one", 5, config.Autoscale{JobsPerNode: 0, MinNodes: 1, MaxNodes: 10}, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TargetNodes(tc.depth, tc.cfg); got != tc.want {
				t.Errorf("TargetNodes(%d) = %d, want %d", tc.depth, got, tc.want)
			}
		})
	}
}

var queuedJobSeq int

func queueJobs(t *testing.T, store *jobs.Store, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		queuedJobSeq++
		testsupport.NewJob(t, store, jobs.NewJobParams{
			RequestID:       fmt.Sprintf("req-%d", queuedJobSeq),
			VideoSource:     "https://example.test/v.mp4",
			Priority:        jobs.PriorityNormal,
			ComplianceLevel: "eaa",
			WhisperModel:    "large-v3",
			NumPasses:       3,
		})
	}
}

func TestReconcileScalesToClampedTarget(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	queueJobs(t, store, 12)

	fake := &testsupport.FakePlatform{}
	fake.Pool.NodeCount = 1

	scaleCfg := config.Autoscale{Enabled: true, JobsPerNode: 3, MinNodes: 1, MaxNodes: 3, Interval: 1}
	ctrl := NewController(scaleCfg, store, fake, nil, logging.NewNop())
	ctrl.reconcile(context.Background())

	calls := fake.ScaleCalls()
	if len(calls) != 1 || calls[0] != 3 {
		t.Fatalf("scale calls = %v, want [3]", calls)
	}
}

func TestReconcileUpdatesQueueGauges(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	queueJobs(t, store, 4)
	// Claiming moves one job out of the queue into dispatching.
	if _, err := store.ClaimQueued(context.Background()); err != nil {
		t.Fatalf("ClaimQueued: %v", err)
	}

	fake := &testsupport.FakePlatform{}
	fake.Pool.NodeCount = 1

	collector := metrics.NewCollector()
	scaleCfg := config.Autoscale{Enabled: true, JobsPerNode: 3, MinNodes: 1, MaxNodes: 3, Interval: 1}
	ctrl := NewController(scaleCfg, store, fake, collector, logging.NewNop())
	ctrl.reconcile(context.Background())

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "zeus_queue_depth 3") {
		t.Errorf("queue depth gauge not fed, metrics:\n%s", body)
	}
	if !strings.Contains(body, "zeus_active_jobs 1") {
		t.Errorf("active jobs gauge not fed, metrics:\n%s", body)
	}
}

func TestReconcileHonorsCooldown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	queueJobs(t, store, 6)

	fake := &testsupport.FakePlatform{}
	fake.Pool.NodeCount = 1

	scaleCfg := config.Autoscale{Enabled: true, JobsPerNode: 3, MinNodes: 1, MaxNodes: 10, Interval: 1, CooldownSeconds: 300}
	ctrl := NewController(scaleCfg, store, fake, nil, logging.NewNop())

	ctrl.reconcile(context.Background())
	if calls := fake.ScaleCalls(); len(calls) != 1 || calls[0] != 2 {
		t.Fatalf("first reconcile calls = %v, want [2]", calls)
	}

	// Demand changes immediately, but the cooldown suppresses the follow-up.
	queueJobs(t, store, 6)
	ctrl.reconcile(context.Background())
	if calls := fake.ScaleCalls(); len(calls) != 1 {
		t.Fatalf("scale calls after burst = %v, want still one", calls)
	}
}

func TestReconcileSkipsWhenAtTarget(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	fake := &testsupport.FakePlatform{}
	fake.Pool.NodeCount = 1

	scaleCfg := config.Autoscale{Enabled: true, JobsPerNode: 3, MinNodes: 1, MaxNodes: 10, Interval: 1}
	ctrl := NewController(scaleCfg, store, fake, nil, logging.NewNop())
	ctrl.reconcile(context.Background())
	if calls := fake.ScaleCalls(); len(calls) != 0 {
		t.Fatalf("scale calls = %v, want none", calls)
	}
}

func TestReconcileRetriesFailedScaleNextTick(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	queueJobs(t, store, 9)

	fake := &testsupport.FakePlatform{ScaleErr: errors.New("quota exceeded")}
	fake.Pool.NodeCount = 1

	scaleCfg := config.Autoscale{Enabled: true, JobsPerNode: 3, MinNodes: 1, MaxNodes: 10, Interval: 1, CooldownSeconds: 300}
	ctrl := NewController(scaleCfg, store, fake, nil, logging.NewNop())

	ctrl.reconcile(context.Background())
	if calls := fake.ScaleCalls(); len(calls) != 0 {
		t.Fatalf("scale calls = %v, want none while platform rejects", calls)
	}

	// A failed attempt must not start the cooldown.
	fake.ScaleErr = nil
	ctrl.reconcile(context.Background())
	if calls := fake.ScaleCalls(); len(calls) != 1 || calls[0] != 3 {
		t.Fatalf("scale calls = %v, want [3]", calls)
	}
}

func TestStartIsNoopWhenDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	fake := &testsupport.FakePlatform{}

	ctrl := NewController(config.Autoscale{Enabled: false}, store, fake, nil, logging.NewNop())
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctrl.Stop()
	time.Sleep(10 * time.Millisecond)
	if calls := fake.ScaleCalls(); len(calls) != 0 {
		t.Fatalf("scale calls = %v, want none", calls)
	}
}
