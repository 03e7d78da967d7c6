package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"zeus/internal/autoscale"
	"zeus/internal/config"
	"zeus/internal/jobs"
	"zeus/internal/logging"
	"zeus/internal/metrics"
	"zeus/internal/platform"
	"zeus/internal/scheduler"
)

const logRetentionDays = 30

// Daemon coordinates the scheduler, capacity controller, and API server, and
// enforces single-instance execution via a lock file.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *jobs.Store
	scheduler  *scheduler.Manager
	autoscaler *autoscale.Controller
	collector  *metrics.Collector
	api        *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	JobDBPath    string
	LockFilePath string
	JobCounts    jobs.HealthSummary
	LastError    error
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *jobs.Store, client platform.Client, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || client == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, platform client, and logger")
	}

	collector := metrics.NewCollector()
	lockPath := filepath.Join(cfg.Paths.DataDir, "zeusd.lock")
	d := &Daemon{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		scheduler:  scheduler.NewManager(cfg, store, client, collector, logger),
		autoscaler: autoscale.NewController(cfg.Autoscale, store, client, collector, logger),
		collector:  collector,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}

	server, err := newAPIServer(cfg, d, client, logger)
	if err != nil {
		return nil, err
	}
	d.api = server
	return d, nil
}

// Start acquires the daemon lock and launches background services.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another zeus daemon instance is already running")
	}

	logging.CleanupOldLogs(d.logger, logRetentionDays, logging.RetentionTarget{
		Dir:     d.cfg.Paths.LogDir,
		Pattern: "*.log",
		Exclude: []string{filepath.Join(d.cfg.Paths.LogDir, "zeus.log")},
	})

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.scheduler.Start(runCtx); err != nil {
		d.releaseLock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start scheduler: %w", err)
	}
	if err := d.autoscaler.Start(runCtx); err != nil {
		d.scheduler.Stop()
		d.releaseLock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start autoscale controller: %w", err)
	}
	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			d.autoscaler.Stop()
			d.scheduler.Stop()
			d.releaseLock()
			cancel()
			d.cancel = nil
			return fmt.Errorf("start api server: %w", err)
		}
	}

	d.running.Store(true)
	d.logger.Info("zeus daemon started",
		logging.String("lock", d.lockPath),
		logging.String("db", d.store.Path()),
	)
	return nil
}

// Stop stops background services and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		d.api.stop()
	}
	d.autoscaler.Stop()
	d.scheduler.Stop()
	d.releaseLock()
	d.running.Store(false)
	d.logger.Info("zeus daemon stopped")
}

// Close releases all resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	counts, err := d.store.Health(ctx)
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		JobDBPath:    d.store.Path(),
		LockFilePath: d.lockPath,
		JobCounts:    counts,
	}
	if err != nil {
		status.LastError = err
	} else if schedErr := d.scheduler.LastError(); schedErr != nil {
		status.LastError = schedErr
	}
	return status
}

// APIAddr returns the bound API address, empty until started.
func (d *Daemon) APIAddr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
}
