package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"zeus/internal/compliance"
	"zeus/internal/jobs"
	"zeus/internal/logging"
	"zeus/internal/platform"
	"zeus/internal/services"
	"zeus/internal/transcript"
)

func (m *Manager) processJob(ctx context.Context, workerLogger *slog.Logger, job *jobs.Job) error {
	jobCtx := services.WithJobID(ctx, job.ID)
	jobCtx = services.WithRequestID(jobCtx, job.RequestID)
	logger := logging.WithContext(jobCtx, workerLogger)

	start := time.Now()
	logger.Info("job claimed",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("priority", string(job.Priority)),
		logging.String("video_source", job.VideoSource),
		logging.Int("passes", job.NumPasses),
	)

	hbCtx, hbCancel := context.WithCancel(jobCtx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.ID)
	defer func() {
		hbCancel()
		hbWG.Wait()
	}()

	if abandoned, err := m.advance(jobCtx, logger, job, jobs.StateDispatching, jobs.StateTranscribing); err != nil || abandoned {
		return err
	}

	results, err := m.runPasses(jobCtx, logger, job)
	if err != nil {
		return err
	}
	job.PassResults = results

	succeeded := job.SucceededPassCount()
	if succeeded*2 <= job.NumPasses {
		m.failJob(jobCtx, logger, job, jobs.StateTranscribing,
			fmt.Sprintf("insufficient successful passes: %d of %d", succeeded, job.NumPasses), start)
		return nil
	}

	if abandoned, err := m.advance(jobCtx, logger, job, jobs.StateTranscribing, jobs.StateConsolidating); err != nil || abandoned {
		return err
	}

	segments, err := m.consolidator.Consolidate(job.PassResults)
	if err != nil {
		m.failJob(jobCtx, logger, job, jobs.StateConsolidating, failureDetail(err), start)
		return nil
	}
	job.Transcript = segments

	if abandoned, err := m.advance(jobCtx, logger, job, jobs.StateConsolidating, jobs.StateValidating); err != nil || abandoned {
		return err
	}

	level, err := compliance.ParseLevel(job.ComplianceLevel)
	if err != nil {
		level, _ = compliance.ParseLevel(m.cfg.Compliance.DefaultLevel)
	}
	report := m.validator.Validate(level, job.Transcript)
	job.Report = &report
	job.Outputs = m.registrar.Register(job.RequestID)

	if err := m.store.Update(jobCtx, job); err != nil {
		return fmt.Errorf("persist job outcome: %w", err)
	}

	if abandoned, err := m.advance(jobCtx, logger, job, jobs.StateValidating, jobs.StateCompleted); err != nil || abandoned {
		return err
	}

	if m.collector != nil {
		m.collector.RecordCompleted(time.Since(start).Seconds(), float64(report.Score))
	}
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.Int("compliance_score", report.Score),
		logging.Bool("compliant", report.Compliant),
		logging.Int("segments", len(job.Transcript)),
		logging.Duration("job_duration", time.Since(start)),
	)
	return nil
}

// runPasses dispatches every transcription pass concurrently and waits for
// all of them. Individual pass failures are recorded, not fatal; the majority
// gate decides the job's fate afterwards. Each outcome is persisted as it
// lands so `jobs show` reflects pass progress mid-flight.
func (m *Manager) runPasses(ctx context.Context, logger *slog.Logger, job *jobs.Job) ([]transcript.PassResult, error) {
	results := make([]transcript.PassResult, job.NumPasses)
	var resultsMu sync.Mutex
	group, passCtx := errgroup.WithContext(ctx)

	for i := 0; i < job.NumPasses; i++ {
		index := i
		group.Go(func() error {
			temperature := float64(index) * m.cfg.Transcription.TemperatureStep
			result := transcript.PassResult{
				PassIndex:   index,
				Temperature: temperature,
				Status:      transcript.PassFailed,
			}
			passStart := time.Now()
			outcome, err := m.platform.RunPass(passCtx, platform.PassSpec{
				RequestID:   job.RequestID,
				JobID:       job.ID,
				PassIndex:   index,
				Temperature: temperature,
				Model:       job.WhisperModel,
				VideoSource: job.VideoSource,
				Timeout:     m.passTimeout,
			})
			switch {
			case err != nil:
				if errors.Is(err, context.Canceled) && passCtx.Err() != nil {
					result.FailureReason = "interrupted by shutdown"
				} else {
					result.FailureReason = failureDetail(err)
				}
				passLogger(logger, index).Warn("pass failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "pass_failed"),
					logging.String(logging.FieldErrorHint, "check platform availability"),
				)
			case !outcome.Succeeded:
				result.FailureReason = outcome.FailureReason
				passLogger(logger, index).Warn("pass rejected by platform",
					logging.String("failure_reason", outcome.FailureReason),
					logging.String(logging.FieldEventType, "pass_failed"),
					logging.String(logging.FieldErrorHint, "check work unit logs on the platform"),
				)
			default:
				result.Status = transcript.PassSucceeded
				result.Segments = outcome.Segments
			}
			if m.collector != nil {
				m.collector.RecordPass(time.Since(passStart).Seconds(), result.Status == transcript.PassSucceeded)
			}
			m.recordPassResult(passCtx, logger, job.ID, results, &resultsMu, index, result)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// recordPassResult stores one pass outcome and writes the finished subset to
// the database. The mutex keeps the snapshot and the write together; without
// it a slower goroutine could land a stale, smaller subset over a newer one.
// A persist failure is logged and not fatal, the job keeps its results in
// memory and they are written again with the final outcome.
func (m *Manager) recordPassResult(ctx context.Context, logger *slog.Logger, jobID int64,
	results []transcript.PassResult, mu *sync.Mutex, index int, result transcript.PassResult) {
	mu.Lock()
	defer mu.Unlock()
	results[index] = result

	finished := make([]transcript.PassResult, 0, len(results))
	for _, r := range results {
		if r.Status != "" {
			finished = append(finished, r)
		}
	}
	if err := m.store.UpdatePassResults(ctx, jobID, finished); err != nil {
		if !errors.Is(err, context.Canceled) {
			passLogger(logger, index).Warn("could not persist pass result",
				logging.Error(err),
				logging.String(logging.FieldEventType, "pass_persist_failed"),
			)
		}
	}
}

// advance moves the job along the pipeline with a compare-and-swap. A false
// swap means someone else changed the state underneath us, which in practice
// is an operator cancellation; the worker drops the job without touching it
// further.
func (m *Manager) advance(ctx context.Context, logger *slog.Logger, job *jobs.Job, from, to jobs.State) (bool, error) {
	ok, err := m.store.Transition(ctx, job.ID, from, to, "")
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return true, err
		}
		return true, fmt.Errorf("advance to %s: %w", to, err)
	}
	if !ok {
		logger.Info("job state changed externally, releasing claim",
			logging.String(logging.FieldEventType, "job_abandoned"),
			logging.String("expected_state", string(from)),
		)
		return true, nil
	}
	job.State = to
	logger.Debug("job advanced", logging.String(logging.FieldStage, string(to)))
	return false, nil
}

func (m *Manager) failJob(ctx context.Context, logger *slog.Logger, job *jobs.Job, from jobs.State, detail string, start time.Time) {
	ok, err := m.store.Transition(ctx, job.ID, from, jobs.StateFailed, detail)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutting down, could not persist job failure")
			return
		}
		logger.Error("failed to persist job failure", logging.Error(err))
		m.setLastError(err)
		return
	}
	if !ok {
		logger.Info("job state changed externally, skipping failure transition",
			logging.String(logging.FieldEventType, "job_abandoned"))
		return
	}
	job.State = jobs.StateFailed
	job.ErrorDetail = detail
	if m.collector != nil {
		m.collector.RecordFailed(time.Since(start).Seconds())
	}
	logger.Error("job failed",
		logging.String(logging.FieldEventType, "job_failure"),
		logging.String("error_detail", detail),
		logging.String(logging.FieldErrorHint, "inspect pass results, retry with `zeus jobs retry`"),
		logging.String(logging.FieldAlert, "job_failure"),
	)
}

func passLogger(logger *slog.Logger, index int) *slog.Logger {
	return logger.With(logging.Int(logging.FieldPass, index))
}

func failureDetail(err error) string {
	if err == nil {
		return "failed without error detail"
	}
	return strings.TrimSpace(err.Error())
}
