package api

import (
	"context"

	"zeus/internal/autoscale"
	"zeus/internal/config"
	"zeus/internal/metrics"
	"zeus/internal/platform"
)

// ClusterService exposes node pool observation and manual scaling.
type ClusterService struct {
	cfg      *config.Config
	store    JobStore
	platform platform.Client
	metrics  *metrics.Collector
}

// NewClusterService constructs a ClusterService.
func NewClusterService(cfg *config.Config, store JobStore, client platform.Client, collector *metrics.Collector) *ClusterService {
	return &ClusterService{cfg: cfg, store: store, platform: client, metrics: collector}
}

// Status snapshots the node pool alongside queue pressure. The target node
// count mirrors what the capacity controller would aim for right now.
func (s *ClusterService) Status(ctx context.Context) (ClusterStatus, error) {
	depth, err := s.store.QueueDepth(ctx)
	if err != nil {
		return ClusterStatus{}, err
	}
	active, err := s.store.ActiveCount(ctx)
	if err != nil {
		return ClusterStatus{}, err
	}
	pool, err := s.platform.PoolStatus(ctx)
	if err != nil {
		return ClusterStatus{}, err
	}
	return ClusterStatus{
		NodeCount:    pool.NodeCount,
		HealthStatus: pool.HealthStatus,
		QueueDepth:   depth,
		ActiveJobs:   active,
		TargetNodes:  autoscale.TargetNodes(depth, s.cfg.Autoscale),
		Autoscale:    s.cfg.Autoscale.Enabled,
	}, nil
}

// Scale resizes the node pool to an operator-chosen size, bypassing the
// controller's cooldown.
func (s *ClusterService) Scale(ctx context.Context, nodes int) error {
	if err := s.platform.Scale(ctx, nodes); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordScaleOp()
		s.metrics.SetNodeCount(nodes)
	}
	return nil
}
