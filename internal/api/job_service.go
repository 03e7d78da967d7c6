package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"zeus/internal/config"
	"zeus/internal/jobs"
	"zeus/internal/metrics"
	"zeus/internal/services"
)

// JobStore abstracts job persistence interactions needed by the service.
type JobStore interface {
	Create(ctx context.Context, params jobs.NewJobParams) (*jobs.Job, bool, error)
	GetByID(ctx context.Context, id int64) (*jobs.Job, error)
	GetByRequestID(ctx context.Context, requestID string) (*jobs.Job, error)
	List(ctx context.Context, states ...jobs.State) ([]*jobs.Job, error)
	Cancel(ctx context.Context, id int64) (bool, error)
	RetryFailed(ctx context.Context, ids ...int64) (int64, error)
	ClearCompleted(ctx context.Context) (int64, error)
	QueueDepth(ctx context.Context) (int, error)
	ActiveCount(ctx context.Context) (int, error)
	Health(ctx context.Context) (jobs.HealthSummary, error)
}

// JobService exposes job lifecycle operations returning API DTOs.
type JobService struct {
	cfg      *config.Config
	store    JobStore
	validate *validator.Validate
	metrics  *metrics.Collector
}

// NewJobService constructs a JobService around the provided store.
func NewJobService(cfg *config.Config, store JobStore, collector *metrics.Collector) *JobService {
	return &JobService{
		cfg:      cfg,
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		metrics:  collector,
	}
}

// Submit validates a submission, fills defaults, and enqueues the job.
// Resubmitting an identical request returns the existing job; a conflicting
// resubmission of the same request id fails with the duplicate marker.
func (s *JobService) Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error) {
	req = s.applyDefaults(req)
	if err := s.validate.Struct(req); err != nil {
		return SubmitResponse{}, services.Wrap(services.ErrValidation, "api", "submit",
			validationMessage(err), err)
	}

	priority, _ := jobs.ParsePriority(req.Priority)
	job, created, err := s.store.Create(ctx, jobs.NewJobParams{
		RequestID:       strings.TrimSpace(req.RequestID),
		VideoSource:     strings.TrimSpace(req.VideoSource),
		Priority:        priority,
		ComplianceLevel: req.ComplianceLevel,
		WhisperModel:    req.WhisperModel,
		NumPasses:       req.NumPasses,
	})
	if err != nil {
		return SubmitResponse{}, err
	}
	if created && s.metrics != nil {
		s.metrics.RecordSubmit()
	}
	return SubmitResponse{Job: FromJob(job), Created: created}, nil
}

func (s *JobService) applyDefaults(req SubmitRequest) SubmitRequest {
	req.RequestID = strings.TrimSpace(req.RequestID)
	req.Priority = strings.ToLower(strings.TrimSpace(req.Priority))
	req.ComplianceLevel = strings.ToLower(strings.TrimSpace(req.ComplianceLevel))
	req.WhisperModel = strings.TrimSpace(req.WhisperModel)
	if req.Priority == "" {
		req.Priority = string(jobs.PriorityNormal)
	}
	if req.ComplianceLevel == "" {
		req.ComplianceLevel = s.cfg.Compliance.DefaultLevel
	}
	if req.WhisperModel == "" {
		req.WhisperModel = s.cfg.Transcription.DefaultModel
	}
	if req.NumPasses == 0 {
		req.NumPasses = s.cfg.Transcription.DefaultPasses
	}
	return req
}

// Describe fetches a single job by id.
func (s *JobService) Describe(ctx context.Context, id int64) (JobView, error) {
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		return JobView{}, err
	}
	if job == nil {
		return JobView{}, services.Wrap(services.ErrNotFound, "api", "describe",
			fmt.Sprintf("job %d not found", id), nil)
	}
	return FromJob(job), nil
}

// DescribeByRequestID fetches a single job by its caller-supplied id.
func (s *JobService) DescribeByRequestID(ctx context.Context, requestID string) (JobView, error) {
	job, err := s.store.GetByRequestID(ctx, strings.TrimSpace(requestID))
	if err != nil {
		return JobView{}, err
	}
	if job == nil {
		return JobView{}, services.Wrap(services.ErrNotFound, "api", "describe",
			fmt.Sprintf("request %s not found", requestID), nil)
	}
	return FromJob(job), nil
}

// List returns jobs filtered by state names, newest first. Unknown state
// names fail validation.
func (s *JobService) List(ctx context.Context, stateNames ...string) ([]JobView, error) {
	states := make([]jobs.State, 0, len(stateNames))
	for _, name := range stateNames {
		state, ok := jobs.ParseState(name)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "api", "list",
				fmt.Sprintf("unknown state %q", name), nil)
		}
		states = append(states, state)
	}
	records, err := s.store.List(ctx, states...)
	if err != nil {
		return nil, err
	}
	return FromJobs(records), nil
}

// Cancel logically cancels a job. Terminal jobs are left untouched and
// reported as not cancelled.
func (s *JobService) Cancel(ctx context.Context, id int64) (CancelResult, error) {
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		return CancelResult{}, err
	}
	if job == nil {
		return CancelResult{}, services.Wrap(services.ErrNotFound, "api", "cancel",
			fmt.Sprintf("job %d not found", id), nil)
	}
	cancelled, err := s.store.Cancel(ctx, id)
	if err != nil {
		return CancelResult{}, err
	}
	state := string(job.State)
	if cancelled {
		state = string(jobs.StateCancelled)
		if s.metrics != nil {
			s.metrics.RecordCancelled()
		}
	}
	return CancelResult{ID: id, Cancelled: cancelled, State: state}, nil
}

// Retry requeues failed jobs. Jobs in any other state are skipped.
func (s *JobService) Retry(ctx context.Context, ids ...int64) (RetryResult, error) {
	updated, err := s.store.RetryFailed(ctx, ids...)
	if err != nil {
		return RetryResult{}, err
	}
	if s.metrics != nil {
		for i := int64(0); i < updated; i++ {
			s.metrics.RecordRetry()
		}
	}
	return RetryResult{UpdatedCount: updated}, nil
}

// ClearCompleted removes completed jobs from the store. Failed and cancelled
// jobs are kept so their error detail stays inspectable.
func (s *JobService) ClearCompleted(ctx context.Context) (ClearResult, error) {
	removed, err := s.store.ClearCompleted(ctx)
	if err != nil {
		return ClearResult{}, err
	}
	return ClearResult{RemovedCount: removed}, nil
}

// Health returns job counts keyed by lifecycle state groups.
func (s *JobService) Health(ctx context.Context) (jobs.HealthSummary, error) {
	return s.store.Health(ctx)
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "invalid submission"
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fieldErr := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fieldErr.Field(), fieldErr.Tag()))
	}
	return strings.Join(parts, "; ")
}
