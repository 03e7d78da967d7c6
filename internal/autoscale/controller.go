package autoscale

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"zeus/internal/config"
	"zeus/internal/jobs"
	"zeus/internal/logging"
	"zeus/internal/metrics"
	"zeus/internal/platform"
)

// Controller periodically sizes the GPU node pool to the queue depth. Scale
// requests are spaced by a cooldown so short bursts do not thrash the pool.
type Controller struct {
	cfg       config.Autoscale
	store     *jobs.Store
	platform  platform.Client
	collector *metrics.Collector
	logger    *slog.Logger

	interval time.Duration
	cooldown time.Duration

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastScale time.Time
	lastNodes int
}

// NewController constructs a capacity controller.
func NewController(cfg config.Autoscale, store *jobs.Store, client platform.Client, collector *metrics.Collector, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Controller{
		cfg:       cfg,
		store:     store,
		platform:  client,
		collector: collector,
		logger:    logger.With(logging.String(logging.FieldComponent, "autoscale")),
		interval:  time.Duration(cfg.Interval) * time.Second,
		cooldown:  time.Duration(cfg.CooldownSeconds) * time.Second,
		lastNodes: -1,
	}
}

// Start begins the control loop. It is a no-op when autoscaling is disabled.
func (c *Controller) Start(ctx context.Context) error {
	if !c.cfg.Enabled {
		c.logger.Info("autoscaling disabled, node pool left as-is")
		return nil
	}
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("autoscale controller already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true
	c.wg.Add(1)
	c.mu.Unlock()

	go c.run(runCtx)
	return nil
}

// Stop terminates the control loop.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel := c.cancel
	c.running = false
	c.cancel = nil
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
}

func (c *Controller) run(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.reconcile(ctx)
		}
	}
}

// reconcile runs one control iteration. Failures are logged and retried on
// the next tick; the controller never fails jobs.
func (c *Controller) reconcile(ctx context.Context) {
	depth, err := c.store.QueueDepth(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Warn("queue depth unavailable",
				logging.Error(err),
				logging.String(logging.FieldEventType, "autoscale_skipped"),
				logging.String(logging.FieldErrorHint, "check job database access"),
			)
		}
		return
	}
	active, err := c.store.ActiveCount(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Warn("active job count unavailable",
				logging.Error(err),
				logging.String(logging.FieldEventType, "autoscale_skipped"),
				logging.String(logging.FieldErrorHint, "check job database access"),
			)
		}
		return
	}
	if c.collector != nil {
		c.collector.UpdateQueueStats(depth, active)
	}

	target := TargetNodes(depth, c.cfg)
	current := c.currentNodes(ctx)
	if c.collector != nil && current >= 0 {
		c.collector.SetNodeCount(current)
	}
	if current == target {
		return
	}
	if since := time.Since(c.lastScaleTime()); since < c.cooldown {
		c.logger.Debug("scale suppressed by cooldown",
			logging.Int("target_nodes", target),
			logging.Int("current_nodes", current),
			logging.Duration("cooldown_remaining", c.cooldown-since),
		)
		return
	}

	if err := c.platform.Scale(ctx, target); err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Warn("node pool scale failed, retrying next tick",
				logging.Error(err),
				logging.Int("target_nodes", target),
				logging.String(logging.FieldEventType, "scale_failed"),
				logging.String(logging.FieldErrorHint, "check platform quota and credentials"),
			)
		}
		return
	}

	c.markScaled(target)
	if c.collector != nil {
		c.collector.RecordScaleOp()
		c.collector.SetNodeCount(target)
	}
	c.logger.Info("node pool scaled",
		logging.String(logging.FieldEventType, "pool_scaled"),
		logging.Int("queue_depth", depth),
		logging.Int("target_nodes", target),
		logging.Int("previous_nodes", current),
	)
}

// currentNodes prefers the platform's view of the pool and falls back to the
// last target this controller requested.
func (c *Controller) currentNodes(ctx context.Context) int {
	status, err := c.platform.PoolStatus(ctx)
	if err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.lastNodes
	}
	return status.NodeCount
}

func (c *Controller) lastScaleTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastScale
}

func (c *Controller) markScaled(nodes int) {
	c.mu.Lock()
	c.lastScale = time.Now()
	c.lastNodes = nodes
	c.mu.Unlock()
}

// TargetNodes computes the desired pool size for a queue depth, clamped to
// the configured bounds.
func TargetNodes(queueDepth int, cfg config.Autoscale) int {
	perNode := cfg.JobsPerNode
	if perNode < 1 {
		perNode = 1
	}
	target := (queueDepth + perNode - 1) / perNode
	if target < cfg.MinNodes {
		target = cfg.MinNodes
	}
	if target > cfg.MaxNodes {
		target = cfg.MaxNodes
	}
	return target
}
