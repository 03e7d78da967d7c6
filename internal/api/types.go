package api

import (
	"zeus/internal/compliance"
	"zeus/internal/transcript"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// SubmitRequest carries a new transcription job submission. Optional fields
// fall back to configured defaults before validation.
type SubmitRequest struct {
	RequestID       string `json:"requestId" validate:"required,max=128"`
	VideoSource     string `json:"videoSource" validate:"required,url"`
	Priority        string `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	ComplianceLevel string `json:"complianceLevel" validate:"omitempty,oneof=wcag_aa eaa section_508"`
	WhisperModel    string `json:"whisperModel" validate:"omitempty,max=64"`
	NumPasses       int    `json:"numPasses" validate:"omitempty,min=1,max=10"`
}

// SubmitResponse reports the job a submission resolved to. Created is false
// when an identical request was already accepted.
type SubmitResponse struct {
	Job     JobView `json:"job"`
	Created bool    `json:"created"`
}

// JobView describes a job in a transport-friendly format.
type JobView struct {
	ID              int64                            `json:"id"`
	RequestID       string                           `json:"requestId"`
	VideoSource     string                           `json:"videoSource"`
	Priority        string                           `json:"priority"`
	ComplianceLevel string                           `json:"complianceLevel"`
	WhisperModel    string                           `json:"whisperModel"`
	NumPasses       int                              `json:"numPasses"`
	State           string                           `json:"state"`
	ErrorDetail     string                           `json:"errorDetail,omitempty"`
	SucceededPasses int                              `json:"succeededPasses"`
	Transcript      []transcript.ConsolidatedSegment `json:"transcript,omitempty"`
	Report          *compliance.Report               `json:"report,omitempty"`
	Outputs         map[string]string                `json:"outputs,omitempty"`
	CreatedAt       string                           `json:"createdAt,omitempty"`
	UpdatedAt       string                           `json:"updatedAt,omitempty"`
}

// JobListResponse wraps a collection of jobs for API responses.
type JobListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// ClusterStatus aggregates node pool and queue pressure for operators.
type ClusterStatus struct {
	NodeCount    int    `json:"nodeCount"`
	HealthStatus string `json:"healthStatus"`
	QueueDepth   int    `json:"queueDepth"`
	ActiveJobs   int    `json:"activeJobs"`
	TargetNodes  int    `json:"targetNodes"`
	Autoscale    bool   `json:"autoscaleEnabled"`
}

// ScaleRequest asks for an explicit node pool size.
type ScaleRequest struct {
	NodeCount int `json:"nodeCount" validate:"min=0,max=1000"`
}

// EngineStatus aggregates daemon runtime information for API consumers.
type EngineStatus struct {
	Running    bool           `json:"running"`
	PID        int            `json:"pid"`
	JobDBPath  string         `json:"jobDbPath"`
	JobCounts  map[string]int `json:"jobCounts"`
	LastError  string         `json:"lastError,omitempty"`
	APIVersion string         `json:"apiVersion"`
}

// CancelResult reports the outcome of a cancel action.
type CancelResult struct {
	ID        int64  `json:"id"`
	Cancelled bool   `json:"cancelled"`
	State     string `json:"state"`
}

// RetryResult reports the outcome of a retry action.
type RetryResult struct {
	UpdatedCount int64 `json:"updatedCount"`
}

// ClearResult reports how many completed jobs were removed.
type ClearResult struct {
	RemovedCount int64 `json:"removedCount"`
}
