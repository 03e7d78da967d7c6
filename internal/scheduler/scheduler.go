package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"zeus/internal/artifacts"
	"zeus/internal/compliance"
	"zeus/internal/config"
	"zeus/internal/jobs"
	"zeus/internal/logging"
	"zeus/internal/metrics"
	"zeus/internal/platform"
	"zeus/internal/transcript"
)

// Manager drives queued jobs through the transcription pipeline using a pool
// of workers. Each worker claims one job at a time; the store's
// compare-and-swap transitions keep ownership exclusive.
type Manager struct {
	cfg          *config.Config
	store        *jobs.Store
	platform     platform.Client
	consolidator *transcript.Consolidator
	validator    *compliance.Validator
	registrar    *artifacts.Registrar
	collector    *metrics.Collector
	logger       *slog.Logger

	workers       int
	pollInterval  time.Duration
	errorInterval time.Duration
	passTimeout   time.Duration
	heartbeat     *HeartbeatMonitor

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// NewManager constructs a scheduler from configuration and its collaborators.
func NewManager(cfg *config.Config, store *jobs.Store, client platform.Client, collector *metrics.Collector, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	workers := cfg.Workflow.MaxConcurrentJobs
	if workers < 1 {
		workers = 1
	}
	return &Manager{
		cfg:          cfg,
		store:        store,
		platform:     client,
		consolidator: transcript.NewConsolidator(cfg.Consolidation),
		validator:    compliance.NewValidator(cfg.Compliance),
		registrar:    artifacts.NewRegistrar(cfg.Outputs),
		collector:    collector,
		logger:       logger.With(logging.String(logging.FieldComponent, "scheduler")),

		workers:       workers,
		pollInterval:  time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		errorInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		passTimeout:   time.Duration(cfg.Transcription.PassTimeout) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
	}
}

// Start begins background processing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(m.workers + 1)
	m.mu.Unlock()

	for i := 0; i < m.workers; i++ {
		go m.runWorker(runCtx, i)
	}
	go m.refreshGauges(runCtx)
	return nil
}

// Stop terminates background processing and waits for in-flight jobs to
// release their claims.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// LastError reports the most recent processing error, for status surfaces.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) runWorker(ctx context.Context, index int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", index))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if index == 0 {
			if err := m.heartbeat.ReclaimStaleJobs(ctx, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("reclaim stale jobs failed; stuck jobs may remain",
					logging.Error(err),
					logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
					logging.String(logging.FieldErrorHint, "check job database access"),
				)
			}
		}

		job, err := m.store.ClaimQueued(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
			logger.Error("failed to claim next job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "claim_failed"),
				logging.String(logging.FieldErrorHint, "check job database access"),
			)
			m.waitOrShutdown(ctx, m.errorInterval)
			continue
		}
		if job == nil {
			m.waitOrShutdown(ctx, m.pollInterval)
			continue
		}

		if err := m.processJob(ctx, logger, job); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
		}
	}
}

func (m *Manager) refreshGauges(ctx context.Context) {
	defer m.wg.Done()
	if m.collector == nil {
		return
	}
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			queued, err := m.store.QueueDepth(ctx)
			if err != nil {
				continue
			}
			active, err := m.store.ActiveCount(ctx)
			if err != nil {
				continue
			}
			m.collector.UpdateQueueStats(queued, active)
		}
	}
}

func (m *Manager) waitOrShutdown(ctx context.Context, wait time.Duration) {
	if wait <= 0 {
		wait = time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}
