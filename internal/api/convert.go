package api

import (
	"time"

	"zeus/internal/jobs"
)

// FromJob converts a job record to its API representation.
func FromJob(job *jobs.Job) JobView {
	if job == nil {
		return JobView{}
	}
	view := JobView{
		ID:              job.ID,
		RequestID:       job.RequestID,
		VideoSource:     job.VideoSource,
		Priority:        string(job.Priority),
		ComplianceLevel: job.ComplianceLevel,
		WhisperModel:    job.WhisperModel,
		NumPasses:       job.NumPasses,
		State:           string(job.State),
		ErrorDetail:     job.ErrorDetail,
		SucceededPasses: job.SucceededPassCount(),
		Transcript:      job.Transcript,
		Report:          job.Report,
		Outputs:         job.Outputs,
		CreatedAt:       FormatTime(job.CreatedAt),
		UpdatedAt:       FormatTime(job.UpdatedAt),
	}
	return view
}

// FromJobs converts a slice of job records into API DTOs.
func FromJobs(records []*jobs.Job) []JobView {
	if len(records) == 0 {
		return nil
	}
	out := make([]JobView, 0, len(records))
	for _, job := range records {
		out = append(out, FromJob(job))
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
