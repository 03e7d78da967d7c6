package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector aggregates the orchestration counters exposed on /metrics.
type Collector struct {
	registry *prometheus.Registry

	jobsSubmitted prometheus.Counter
	jobsCompleted prometheus.Counter
	jobsFailed    prometheus.Counter
	jobsCancelled prometheus.Counter
	jobsRetried   prometheus.Counter

	passesDispatched prometheus.Counter
	passesFailed     prometheus.Counter

	jobDuration  prometheus.Histogram
	passDuration prometheus.Histogram

	queueDepth      prometheus.Gauge
	activeJobs      prometheus.Gauge
	nodeCount       prometheus.Gauge
	complianceScore prometheus.Histogram

	scaleOps prometheus.Counter
}

// NewCollector builds a collector backed by its own registry so multiple
// instances can coexist in tests.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		jobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zeus_jobs_submitted_total",
			Help: "Total number of transcription jobs accepted.",
		}),
		jobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zeus_jobs_completed_total",
			Help: "Total number of jobs that reached the completed state.",
		}),
		jobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zeus_jobs_failed_total",
			Help: "Total number of jobs that reached the failed state.",
		}),
		jobsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zeus_jobs_cancelled_total",
			Help: "Total number of jobs cancelled by operators.",
		}),
		jobsRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zeus_jobs_retried_total",
			Help: "Total number of failed jobs requeued for retry.",
		}),
		passesDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zeus_passes_dispatched_total",
			Help: "Total number of transcription passes dispatched to the platform.",
		}),
		passesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zeus_passes_failed_total",
			Help: "Total number of transcription passes that failed.",
		}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "zeus_job_duration_seconds",
			Help:    "Wall-clock time from claim to terminal state.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "zeus_pass_duration_seconds",
			Help:    "Wall-clock time for a single transcription pass.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zeus_queue_depth",
			Help: "Current number of queued jobs.",
		}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zeus_active_jobs",
			Help: "Current number of jobs in a processing state.",
		}),
		nodeCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zeus_cluster_node_count",
			Help: "Last observed node pool size.",
		}),
		complianceScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "zeus_compliance_score",
			Help:    "Compliance scores of validated transcripts.",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		scaleOps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "zeus_cluster_scale_operations_total",
			Help: "Total number of node pool scale requests issued.",
		}),
	}

	c.registry.MustRegister(
		c.jobsSubmitted, c.jobsCompleted, c.jobsFailed, c.jobsCancelled, c.jobsRetried,
		c.passesDispatched, c.passesFailed,
		c.jobDuration, c.passDuration,
		c.queueDepth, c.activeJobs, c.nodeCount, c.complianceScore,
		c.scaleOps,
	)
	return c
}

func (c *Collector) RecordSubmit()    { c.jobsSubmitted.Inc() }
func (c *Collector) RecordCancelled() { c.jobsCancelled.Inc() }
func (c *Collector) RecordRetry()     { c.jobsRetried.Inc() }
func (c *Collector) RecordScaleOp()   { c.scaleOps.Inc() }

// RecordCompleted records a terminal success together with its duration and
// compliance score.
func (c *Collector) RecordCompleted(durationSeconds, score float64) {
	c.jobsCompleted.Inc()
	c.jobDuration.Observe(durationSeconds)
	c.complianceScore.Observe(score)
}

func (c *Collector) RecordFailed(durationSeconds float64) {
	c.jobsFailed.Inc()
	c.jobDuration.Observe(durationSeconds)
}

func (c *Collector) RecordPass(durationSeconds float64, succeeded bool) {
	c.passesDispatched.Inc()
	c.passDuration.Observe(durationSeconds)
	if !succeeded {
		c.passesFailed.Inc()
	}
}

// UpdateQueueStats refreshes the queue depth and active job gauges.
func (c *Collector) UpdateQueueStats(queued, active int) {
	c.queueDepth.Set(float64(queued))
	c.activeJobs.Set(float64(active))
}

func (c *Collector) SetNodeCount(nodes int) {
	c.nodeCount.Set(float64(nodes))
}

// Handler returns the HTTP handler serving this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }
