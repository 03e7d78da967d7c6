package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"zeus/internal/services"
	"zeus/internal/transcript"
)

// NewJobParams carries a validated submission into the store.
type NewJobParams struct {
	RequestID       string
	VideoSource     string
	Priority        Priority
	ComplianceLevel string
	WhisperModel    string
	NumPasses       int
}

// dequeueOrder ranks queued jobs urgent > high > normal > low, oldest first
// within a class.
const dequeueOrder = ` ORDER BY CASE priority
        WHEN 'urgent' THEN 0
        WHEN 'high' THEN 1
        WHEN 'normal' THEN 2
        ELSE 3
    END, created_at, id`

// Create inserts a new job in the queued state. Submission is idempotent: an
// identical resubmission of an existing request_id returns the stored job,
// while a conflicting one fails with the duplicate marker.
func (s *Store) Create(ctx context.Context, params NewJobParams) (*Job, bool, error) {
	existing, err := s.GetByRequestID(ctx, params.RequestID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return s.resolveDuplicate(existing, params)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            request_id, video_source, priority, compliance_level,
            whisper_model, num_passes, state, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		params.RequestID,
		params.VideoSource,
		params.Priority,
		params.ComplianceLevel,
		params.WhisperModel,
		params.NumPasses,
		StateQueued,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost a race with a concurrent identical submission.
			existing, lookupErr := s.GetByRequestID(ctx, params.RequestID)
			if lookupErr == nil && existing != nil {
				return s.resolveDuplicate(existing, params)
			}
		}
		return nil, false, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("last insert id: %w", err)
	}

	job, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return job, true, nil
}

func (s *Store) resolveDuplicate(existing *Job, params NewJobParams) (*Job, bool, error) {
	if specMatches(existing, params) {
		return existing, false, nil
	}
	return nil, false, services.Wrap(services.ErrDuplicate, "submit", "create",
		fmt.Sprintf("request_id %q already exists with a different specification", params.RequestID), nil)
}

func specMatches(job *Job, params NewJobParams) bool {
	return job.VideoSource == params.VideoSource &&
		job.Priority == params.Priority &&
		job.ComplianceLevel == params.ComplianceLevel &&
		job.WhisperModel == params.WhisperModel &&
		job.NumPasses == params.NumPasses
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetByID fetches a job by identifier. Returns nil when not found.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// GetByRequestID fetches a job by its caller-supplied identifier. Returns nil
// when not found.
func (s *Store) GetByRequestID(ctx context.Context, requestID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE request_id = ?`, requestID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job by request id: %w", err)
	}
	return job, nil
}

// Update persists changes to an existing job record.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()

	passResults, err := marshalNullable(job.PassResults)
	if err != nil {
		return fmt.Errorf("marshal pass results: %w", err)
	}
	transcriptJSON, err := marshalNullable(job.Transcript)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	reportJSON, err := marshalNullable(job.Report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	outputsJSON, err := marshalNullable(job.Outputs)
	if err != nil {
		return fmt.Errorf("marshal outputs: %w", err)
	}

	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs
         SET video_source = ?, priority = ?, compliance_level = ?, whisper_model = ?,
             num_passes = ?, state = ?, error_detail = ?, pass_results_json = ?,
             transcript_json = ?, report_json = ?, outputs_json = ?, updated_at = ?,
             last_heartbeat = ?
         WHERE id = ?`,
		job.VideoSource,
		job.Priority,
		job.ComplianceLevel,
		job.WhisperModel,
		job.NumPasses,
		job.State,
		nullableString(job.ErrorDetail),
		passResults,
		transcriptJSON,
		reportJSON,
		outputsJSON,
		job.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(job.LastHeartbeat),
		job.ID,
	); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// UpdatePassResults persists pass results without touching any other column.
// Workers call this as passes report in, so the write must not clobber a
// state change made by another writer in the meantime.
func (s *Store) UpdatePassResults(ctx context.Context, id int64, results []transcript.PassResult) error {
	passResults, err := marshalNullable(results)
	if err != nil {
		return fmt.Errorf("marshal pass results: %w", err)
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs SET pass_results_json = ?, updated_at = ? WHERE id = ?`,
		passResults,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("update pass results: %w", err)
	}
	return nil
}

// Transition atomically moves a job from one state to another, enforcing the
// state machine edges. Returns false when the job was not in the expected
// state, which means another writer got there first.
func (s *Store) Transition(ctx context.Context, id int64, from, to State, errorDetail string) (bool, error) {
	if !CanTransition(from, to) {
		return false, services.Wrap(services.ErrValidation, "store", "transition",
			fmt.Sprintf("illegal transition %s -> %s", from, to), nil)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	var heartbeat any
	if !to.IsTerminal() && to != StateQueued {
		heartbeat = now
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET state = ?, error_detail = ?, updated_at = ?, last_heartbeat = ?
         WHERE id = ? AND state = ?`,
		to,
		nullableString(errorDetail),
		now,
		heartbeat,
		id,
		from,
	)
	if err != nil {
		return false, fmt.Errorf("transition job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClaimQueued atomically claims the highest-priority queued job and moves it
// to dispatching. Returns nil when the queue is empty. The compare-and-swap
// guarantees at most one scheduler worker owns a job's transitions.
func (s *Store) ClaimQueued(ctx context.Context) (*Job, error) {
	for {
		row := s.db.QueryRowContext(ctx,
			`SELECT id FROM jobs WHERE state = ?`+dequeueOrder+` LIMIT 1`, StateQueued)
		var id int64
		if err := row.Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, fmt.Errorf("select queued job: %w", err)
		}

		claimed, err := s.Transition(ctx, id, StateQueued, StateDispatching, "")
		if err != nil {
			return nil, err
		}
		if !claimed {
			// Another worker claimed or the caller cancelled it; pick the next one.
			continue
		}
		return s.GetByID(ctx, id)
	}
}

// List returns jobs filtered by state set (or all jobs when no state is
// provided), newest first.
func (s *Store) List(ctx context.Context, states ...State) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at DESC, id DESC`

	if len(states) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(states))
		args := make([]any, len(states))
		for i, state := range states {
			args[i] = state
		}
		query := baseQuery + ` WHERE state IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// QueueDepth returns the number of jobs waiting to be dispatched.
func (s *Store) QueueDepth(ctx context.Context) (int, error) {
	var depth int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM jobs WHERE state = ?`, StateQueued).Scan(&depth)
	if err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return depth, nil
}

// ActiveCount returns the number of jobs currently being processed.
func (s *Store) ActiveCount(ctx context.Context) (int, error) {
	placeholders := makePlaceholders(len(activeStates))
	args := make([]any, len(activeStates))
	for i, state := range activeStates {
		args[i] = state
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM jobs WHERE state IN (`+placeholders+`)`, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("active count: %w", err)
	}
	return count, nil
}

// Health returns aggregate job counts per lifecycle group.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM jobs GROUP BY state`)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("health counts: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var (
			stateStr string
			count    int
		)
		if err := rows.Scan(&stateStr, &count); err != nil {
			return HealthSummary{}, err
		}
		summary.Total += count
		state, _ := ParseState(stateStr)
		switch {
		case state == StateQueued:
			summary.Queued += count
		case state.IsActive():
			summary.Active += count
		case state == StateCompleted:
			summary.Completed += count
		case state == StateFailed:
			summary.Failed += count
		case state == StateCancelled:
			summary.Cancelled += count
		}
	}
	return summary, rows.Err()
}

// Cancel marks a non-terminal job cancelled. In-flight work units keep
// running; their results are discarded when the scheduler observes the state.
func (s *Store) Cancel(ctx context.Context, id int64) (bool, error) {
	placeholders := makePlaceholders(len(activeStates) + 1)
	args := []any{StateCancelled, time.Now().UTC().Format(time.RFC3339Nano), id, StateQueued}
	for _, state := range activeStates {
		args = append(args, state)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET state = ?, updated_at = ?, last_heartbeat = NULL
         WHERE id = ? AND state IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// RetryFailed moves failed jobs back to queued for reprocessing, clearing the
// previous attempt's derived data. With no IDs every failed job is retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	resetColumns := `state = ?, error_detail = NULL, pass_results_json = NULL,
            transcript_json = NULL, report_json = NULL, outputs_json = NULL,
            last_heartbeat = NULL, updated_at = ?`
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE jobs SET `+resetColumns+` WHERE state = ?`,
			StateQueued, now, StateFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed jobs: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+3)
	args = append(args, StateQueued, now)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, StateFailed)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET `+resetColumns+` WHERE id IN (`+placeholders+`) AND state = ?`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("retry selected jobs: %w", err)
	}
	return res.RowsAffected()
}

// ClearCompleted deletes completed jobs, returning how many were removed.
// Terminal failures and cancellations are kept for inspection.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE state = ?`, StateCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed jobs: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat refreshes the liveness timestamp for an in-flight job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now, now, id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStale returns in-flight jobs whose worker stopped heartbeating back
// to the queue so another worker can pick them up.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	placeholders := makePlaceholders(len(activeStates))
	args := []any{StateQueued, time.Now().UTC().Format(time.RFC3339Nano)}
	for _, state := range activeStates {
		args = append(args, state)
	}
	args = append(args, cutoff.UTC().Format(time.RFC3339Nano))

	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET state = ?, pass_results_json = NULL, transcript_json = NULL,
             report_json = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE state IN (`+placeholders+`) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}
