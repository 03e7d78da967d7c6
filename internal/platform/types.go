package platform

import (
	"context"
	"time"

	"zeus/internal/transcript"
)

// PassSpec describes one transcription work unit to run on the execution
// platform.
type PassSpec struct {
	RequestID   string
	JobID       int64
	PassIndex   int
	Temperature float64
	Model       string
	VideoSource string
	Timeout     time.Duration
}

// PassOutcome is the terminal result of one work unit.
type PassOutcome struct {
	Succeeded     bool
	Segments      []transcript.Segment
	FailureReason string
}

// PoolStatus reports the current shape and health of the GPU node pool.
type PoolStatus struct {
	NodeCount    int    `json:"node_count"`
	HealthStatus string `json:"health_status"`
}

// Client is the execution platform boundary. The platform runs transcription
// work units to a terminal outcome and hosts the scalable node pool; this
// core never reimplements its scheduling.
type Client interface {
	// RunPass submits one work unit and blocks until it reports a terminal
	// outcome, the spec's timeout elapses, or the context is cancelled.
	RunPass(ctx context.Context, spec PassSpec) (PassOutcome, error)
	// Scale requests the node pool be resized to the given count.
	Scale(ctx context.Context, nodes int) error
	// PoolStatus reports the node pool's current size and health.
	PoolStatus(ctx context.Context) (PoolStatus, error)
}
