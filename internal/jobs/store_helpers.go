package jobs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"
)

const jobColumns = "id, request_id, video_source, priority, compliance_level, whisper_model, num_passes, state, error_detail, pass_results_json, transcript_json, report_json, outputs_json, created_at, updated_at, last_heartbeat"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id               int64
		requestID        string
		videoSource      string
		priorityStr      string
		complianceLevel  string
		whisperModel     string
		numPasses        int
		stateStr         string
		errorDetail      sql.NullString
		passResultsRaw   sql.NullString
		transcriptRaw    sql.NullString
		reportRaw        sql.NullString
		outputsRaw       sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		lastHeartbeatRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&requestID,
		&videoSource,
		&priorityStr,
		&complianceLevel,
		&whisperModel,
		&numPasses,
		&stateStr,
		&errorDetail,
		&passResultsRaw,
		&transcriptRaw,
		&reportRaw,
		&outputsRaw,
		&createdRaw,
		&updatedRaw,
		&lastHeartbeatRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		RequestID:       requestID,
		VideoSource:     videoSource,
		Priority:        Priority(priorityStr),
		ComplianceLevel: complianceLevel,
		WhisperModel:    whisperModel,
		NumPasses:       numPasses,
		State:           State(stateStr),
		ErrorDetail:     errorDetail.String,
	}

	if passResultsRaw.Valid && passResultsRaw.String != "" {
		if err := json.Unmarshal([]byte(passResultsRaw.String), &job.PassResults); err != nil {
			return nil, fmt.Errorf("unmarshal pass results for job %d: %w", id, err)
		}
	}
	if transcriptRaw.Valid && transcriptRaw.String != "" {
		if err := json.Unmarshal([]byte(transcriptRaw.String), &job.Transcript); err != nil {
			return nil, fmt.Errorf("unmarshal transcript for job %d: %w", id, err)
		}
	}
	if reportRaw.Valid && reportRaw.String != "" {
		if err := json.Unmarshal([]byte(reportRaw.String), &job.Report); err != nil {
			return nil, fmt.Errorf("unmarshal report for job %d: %w", id, err)
		}
	}
	if outputsRaw.Valid && outputsRaw.String != "" {
		if err := json.Unmarshal([]byte(outputsRaw.String), &job.Outputs); err != nil {
			return nil, fmt.Errorf("unmarshal outputs for job %d: %w", id, err)
		}
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			job.LastHeartbeat = &heartbeat
		}
	}
	return job, nil
}

func marshalNullable(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Ptr:
		if rv.IsNil() {
			return nil, nil
		}
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
