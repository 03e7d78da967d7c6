package jobs_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"zeus/internal/jobs"
	"zeus/internal/services"
	"zeus/internal/transcript"
)

func newStore(t *testing.T) *jobs.Store {
	t.Helper()
	store, err := jobs.OpenPath(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func params(requestID string, priority jobs.Priority) jobs.NewJobParams {
	return jobs.NewJobParams{
		RequestID:       requestID,
		VideoSource:     "https://videos.example.com/" + requestID + ".mp4",
		Priority:        priority,
		ComplianceLevel: "eaa",
		WhisperModel:    "large-v3",
		NumPasses:       5,
	}
}

func TestCreateIsIdempotentForIdenticalSpec(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first, created, err := store.Create(ctx, params("req-1", jobs.PriorityNormal))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created {
		t.Fatal("expected first submission to create")
	}
	if first.State != jobs.StateQueued {
		t.Fatalf("expected queued state, got %s", first.State)
	}

	second, created, err := store.Create(ctx, params("req-1", jobs.PriorityNormal))
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if created {
		t.Fatal("expected identical resubmission to return existing job")
	}
	if second.ID != first.ID {
		t.Fatalf("expected same job, got %d and %d", first.ID, second.ID)
	}
}

func TestCreateRejectsConflictingDuplicate(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if _, _, err := store.Create(ctx, params("req-1", jobs.PriorityNormal)); err != nil {
		t.Fatalf("create: %v", err)
	}

	conflicting := params("req-1", jobs.PriorityUrgent)
	_, _, err := store.Create(ctx, conflicting)
	if err == nil {
		t.Fatal("expected duplicate error")
	}
	if !errors.Is(err, services.ErrDuplicate) {
		t.Fatalf("expected duplicate marker, got %v", err)
	}
}

func TestClaimQueuedFollowsPriorityOrder(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	for _, spec := range []struct {
		id       string
		priority jobs.Priority
	}{
		{"req-low", jobs.PriorityLow},
		{"req-urgent", jobs.PriorityUrgent},
		{"req-normal", jobs.PriorityNormal},
		{"req-high", jobs.PriorityHigh},
	} {
		if _, _, err := store.Create(ctx, params(spec.id, spec.priority)); err != nil {
			t.Fatalf("create %s: %v", spec.id, err)
		}
	}

	want := []string{"req-urgent", "req-high", "req-normal", "req-low"}
	for _, expected := range want {
		job, err := store.ClaimQueued(ctx)
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if job == nil {
			t.Fatalf("expected job %s, queue empty", expected)
		}
		if job.RequestID != expected {
			t.Fatalf("expected %s next, got %s", expected, job.RequestID)
		}
		if job.State != jobs.StateDispatching {
			t.Fatalf("expected claimed job dispatching, got %s", job.State)
		}
	}

	job, err := store.ClaimQueued(ctx)
	if err != nil {
		t.Fatalf("claim empty: %v", err)
	}
	if job != nil {
		t.Fatalf("expected empty queue, got %s", job.RequestID)
	}
}

func TestClaimQueuedFIFOWithinPriorityClass(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	for _, id := range []string{"req-a", "req-b", "req-c"} {
		if _, _, err := store.Create(ctx, params(id, jobs.PriorityNormal)); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	for _, expected := range []string{"req-a", "req-b", "req-c"} {
		job, err := store.ClaimQueued(ctx)
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if job == nil || job.RequestID != expected {
			t.Fatalf("expected %s, got %+v", expected, job)
		}
	}
}

func TestTransitionEnforcesStateMachine(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	job, _, err := store.Create(ctx, params("req-1", jobs.PriorityNormal))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := store.Transition(ctx, job.ID, jobs.StateQueued, jobs.StateCompleted, ""); err == nil {
		t.Fatal("expected illegal transition to error")
	} else if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}

	ok, err := store.Transition(ctx, job.ID, jobs.StateDispatching, jobs.StateTranscribing, "")
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if ok {
		t.Fatal("expected CAS to fail when job is not in the expected state")
	}

	claimed, err := store.ClaimQueued(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v %v", claimed, err)
	}

	for _, edge := range []struct{ from, to jobs.State }{
		{jobs.StateDispatching, jobs.StateTranscribing},
		{jobs.StateTranscribing, jobs.StateConsolidating},
		{jobs.StateConsolidating, jobs.StateValidating},
		{jobs.StateValidating, jobs.StateCompleted},
	} {
		ok, err := store.Transition(ctx, job.ID, edge.from, edge.to, "")
		if err != nil {
			t.Fatalf("transition %s -> %s: %v", edge.from, edge.to, err)
		}
		if !ok {
			t.Fatalf("expected transition %s -> %s to apply", edge.from, edge.to)
		}
	}

	final, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.State != jobs.StateCompleted {
		t.Fatalf("expected completed, got %s", final.State)
	}
	if final.LastHeartbeat != nil {
		t.Fatal("expected heartbeat cleared on terminal state")
	}
}

func TestCancelStopsDequeue(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	job, _, err := store.Create(ctx, params("req-1", jobs.PriorityUrgent))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := store.Create(ctx, params("req-2", jobs.PriorityLow)); err != nil {
		t.Fatalf("create: %v", err)
	}

	cancelled, err := store.Cancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !cancelled {
		t.Fatal("expected cancel to apply")
	}

	next, err := store.ClaimQueued(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if next == nil || next.RequestID != "req-2" {
		t.Fatalf("expected cancelled job skipped, got %+v", next)
	}

	// Terminal jobs cannot be cancelled again.
	cancelled, err = store.Cancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("cancel terminal: %v", err)
	}
	if cancelled {
		t.Fatal("expected cancel of terminal job to be a no-op")
	}
}

func TestRetryFailedResetsDerivedData(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	job, _, err := store.Create(ctx, params("req-1", jobs.PriorityNormal))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	claimed, err := store.ClaimQueued(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v %v", claimed, err)
	}
	claimed.PassResults = []transcript.PassResult{
		{PassIndex: 0, Status: transcript.PassFailed, FailureReason: "gpu oom"},
	}
	claimed.State = jobs.StateFailed
	claimed.ErrorDetail = "insufficient successful passes"
	if err := store.Update(ctx, claimed); err != nil {
		t.Fatalf("update: %v", err)
	}

	count, err := store.RetryFailed(ctx, job.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one retried job, got %d", count)
	}

	retried, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if retried.State != jobs.StateQueued {
		t.Fatalf("expected queued after retry, got %s", retried.State)
	}
	if retried.ErrorDetail != "" || len(retried.PassResults) != 0 {
		t.Fatalf("expected derived data cleared, got %+v", retried)
	}
}

func TestClearCompletedKeepsFailuresForInspection(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	done, _, err := store.Create(ctx, params("req-done", jobs.PriorityNormal))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	done.State = jobs.StateCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("update: %v", err)
	}

	failed, _, err := store.Create(ctx, params("req-failed", jobs.PriorityNormal))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	failed.State = jobs.StateFailed
	failed.ErrorDetail = "insufficient successful passes"
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("update: %v", err)
	}

	removed, err := store.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one removed job, got %d", removed)
	}

	if job, err := store.GetByID(ctx, done.ID); err != nil || job != nil {
		t.Fatalf("expected completed job gone, got %+v %v", job, err)
	}
	if job, err := store.GetByID(ctx, failed.ID); err != nil || job == nil {
		t.Fatalf("expected failed job kept, got %v", err)
	}
}

func TestReclaimStaleRequeuesJobs(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if _, _, err := store.Create(ctx, params("req-1", jobs.PriorityNormal)); err != nil {
		t.Fatalf("create: %v", err)
	}
	claimed, err := store.ClaimQueued(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v %v", claimed, err)
	}

	count, err := store.ReclaimStale(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one reclaimed job, got %d", count)
	}

	requeued, err := store.GetByID(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if requeued.State != jobs.StateQueued {
		t.Fatalf("expected queued, got %s", requeued.State)
	}

	// Fresh heartbeats are left alone.
	if _, err := store.ClaimQueued(ctx); err != nil {
		t.Fatalf("reclaim claim: %v", err)
	}
	count, err = store.ReclaimStale(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("reclaim fresh: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no reclaims with past cutoff, got %d", count)
	}
}

func TestListNewestFirstAndStateFilter(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	for _, id := range []string{"req-a", "req-b", "req-c"} {
		if _, _, err := store.Create(ctx, params(id, jobs.PriorityNormal)); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected three jobs, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.After(all[i-1].CreatedAt) {
			t.Fatalf("expected newest first ordering, got %v then %v", all[i-1].CreatedAt, all[i].CreatedAt)
		}
	}

	claimed, err := store.ClaimQueued(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v %v", claimed, err)
	}
	active, err := store.List(ctx, jobs.StateDispatching)
	if err != nil {
		t.Fatalf("list dispatching: %v", err)
	}
	if len(active) != 1 || active[0].ID != claimed.ID {
		t.Fatalf("expected only claimed job, got %+v", active)
	}
}

func TestQueueDepthActiveCountAndHealth(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	for _, id := range []string{"req-a", "req-b", "req-c"} {
		if _, _, err := store.Create(ctx, params(id, jobs.PriorityNormal)); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	if _, err := store.ClaimQueued(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	depth, err := store.QueueDepth(ctx)
	if err != nil {
		t.Fatalf("depth: %v", err)
	}
	if depth != 2 {
		t.Fatalf("expected depth 2, got %d", depth)
	}

	active, err := store.ActiveCount(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active != 1 {
		t.Fatalf("expected one active job, got %d", active)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health.Total != 3 || health.Queued != 2 || health.Active != 1 {
		t.Fatalf("unexpected health summary: %+v", health)
	}
}

func TestUpdatePersistsDerivedFields(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	job, _, err := store.Create(ctx, params("req-1", jobs.PriorityNormal))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	job.PassResults = []transcript.PassResult{
		{
			PassIndex: 0,
			Status:    transcript.PassSucceeded,
			Segments: []transcript.Segment{
				{Start: 0, End: 2, Text: "hello", Confidence: 0.9},
			},
		},
	}
	job.Transcript = []transcript.ConsolidatedSegment{
		{Start: 0, End: 2, Text: "hello", Confidence: 0.9, SourcePasses: []int{0}},
	}
	job.Outputs = map[string]string{"srt": "https://artifacts.example.com/req-1.srt"}
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}

	loaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(loaded.PassResults) != 1 || loaded.PassResults[0].Segments[0].Text != "hello" {
		t.Fatalf("unexpected pass results: %+v", loaded.PassResults)
	}
	if len(loaded.Transcript) != 1 || loaded.Transcript[0].SourcePasses[0] != 0 {
		t.Fatalf("unexpected transcript: %+v", loaded.Transcript)
	}
	if loaded.Outputs["srt"] == "" {
		t.Fatalf("unexpected outputs: %+v", loaded.Outputs)
	}
}

func TestUpdatePassResultsLeavesStateAlone(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	job, _, err := store.Create(ctx, params("req-1", jobs.PriorityNormal))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// An operator cancels while a worker still has results in flight.
	if ok, err := store.Cancel(ctx, job.ID); err != nil || !ok {
		t.Fatalf("cancel: ok=%v err=%v", ok, err)
	}

	results := []transcript.PassResult{
		{PassIndex: 0, Status: transcript.PassSucceeded, Segments: []transcript.Segment{
			{Start: 0, End: 2, Text: "partial", Confidence: 0.9},
		}},
	}
	if err := store.UpdatePassResults(ctx, job.ID, results); err != nil {
		t.Fatalf("update pass results: %v", err)
	}

	loaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.State != jobs.StateCancelled {
		t.Fatalf("state = %s, want cancelled", loaded.State)
	}
	if len(loaded.PassResults) != 1 || loaded.PassResults[0].Segments[0].Text != "partial" {
		t.Fatalf("unexpected pass results: %+v", loaded.PassResults)
	}
}
