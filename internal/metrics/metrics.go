// Package metrics exposes Fisher's Prometheus instrumentation: job
// throughput, failures, status-hook fan-out, and queue depth.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric Fisher registers with the default
// Prometheus registry.
type Collector struct {
	jobsReceived         prometheus.Counter
	jobsDispatched       prometheus.Counter
	jobsCompleted        prometheus.Counter
	jobsFailed           prometheus.Counter
	statusHooksTriggered prometheus.Counter

	jobDuration prometheus.Histogram

	queueSize  prometheus.Gauge
	activeJobs prometheus.Gauge
}

// NewCollector builds and registers a Collector. Call once per process.
func NewCollector() *Collector {
	c := &Collector{
		jobsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fisher_jobs_received_total",
			Help: "Total number of jobs the HTTP front-end forwarded to the scheduler.",
		}),
		jobsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fisher_jobs_dispatched_total",
			Help: "Total number of jobs handed to a worker.",
		}),
		jobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fisher_jobs_completed_total",
			Help: "Total number of jobs that finished with a zero exit status.",
		}),
		jobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fisher_jobs_failed_total",
			Help: "Total number of jobs that failed to spawn or exited non-zero.",
		}),
		statusHooksTriggered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fisher_status_hooks_triggered_total",
			Help: "Total number of status-hook follow-up jobs executed.",
		}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fisher_job_duration_seconds",
			Help:    "Wall time of a single hook execution, in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		queueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fisher_queue_size",
			Help: "Jobs currently sitting in the overflow queue.",
		}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fisher_active_jobs",
			Help: "Jobs currently executing in a worker.",
		}),
	}

	prometheus.MustRegister(
		c.jobsReceived,
		c.jobsDispatched,
		c.jobsCompleted,
		c.jobsFailed,
		c.statusHooksTriggered,
		c.jobDuration,
		c.queueSize,
		c.activeJobs,
	)

	return c
}

// RecordReceived records a job the HTTP front-end forwarded to the
// scheduler, whether or not the scheduler then runs it.
func (c *Collector) RecordReceived() { c.jobsReceived.Inc() }

// RecordDispatched records a job handed to an idle worker.
func (c *Collector) RecordDispatched() { c.jobsDispatched.Inc() }

// RecordCompleted records a successful execution and its wall time.
func (c *Collector) RecordCompleted(durationSeconds float64) {
	c.jobsCompleted.Inc()
	c.jobDuration.Observe(durationSeconds)
}

// RecordFailed records a failed execution and its wall time.
func (c *Collector) RecordFailed(durationSeconds float64) {
	c.jobsFailed.Inc()
	c.jobDuration.Observe(durationSeconds)
}

// RecordStatusHookTriggered records one status-hook follow-up execution.
func (c *Collector) RecordStatusHookTriggered() { c.statusHooksTriggered.Inc() }

// SetQueueStats refreshes the queue-depth gauges from a HealthSnapshot.
func (c *Collector) SetQueueStats(queueSize, activeJobs int) {
	c.queueSize.Set(float64(queueSize))
	c.activeJobs.Set(float64(activeJobs))
}

// Handler returns the HTTP handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
