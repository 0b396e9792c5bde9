// Package metrics provides Prometheus instrumentation for the concurrent
// source. Every vector carries a "sync" label so several syncs can share a
// process; Collector curries that label once per run.
//
// # Basic Usage
//
//	collector := metrics.NewCollector("users-sync")
//	collector.RecordEmitted("users")
//	collector.CheckpointEmitted("users", metrics.CheckpointFinal)
//
// # Metric Types
//
// Counter: records, checkpoints, partitions, worker errors, skipped streams
// Gauge: jobs in flight, jobs running, queue depth
// Histogram: job duration
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nebula_cdk"

// Checkpoint kinds
const (
	CheckpointInterval = "interval"
	CheckpointFinal    = "final"
)

// Job kinds
const (
	JobGenerate = "generate"
	JobRead     = "read"
)

var (
	// RecordsEmitted counts records passed to the output.
	// Labels: sync, stream
	RecordsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_emitted_total",
			Help:      "Total number of records emitted",
		},
		[]string{"sync", "stream"},
	)

	// CheckpointsEmitted counts state messages.
	// Labels: sync, stream, kind (interval/final)
	CheckpointsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoints_emitted_total",
			Help:      "Total number of state messages emitted",
		},
		[]string{"sync", "stream", "kind"},
	)

	// PartitionsStarted counts partitions handed to a reader
	PartitionsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partitions_started_total",
			Help:      "Total number of partitions submitted for reading",
		},
		[]string{"sync", "stream"},
	)

	// PartitionsCompleted counts partitions that were read to the end
	PartitionsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partitions_completed_total",
			Help:      "Total number of partitions read to completion",
		},
		[]string{"sync", "stream"},
	)

	// WorkerErrors counts failed generator and reader jobs.
	// Labels: sync, stream, job (generate/read)
	WorkerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_errors_total",
			Help:      "Total number of failed worker jobs",
		},
		[]string{"sync", "stream", "job"},
	)

	// StreamsSkipped counts streams skipped because they were unavailable or unknown
	StreamsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_skipped_total",
			Help:      "Total number of streams skipped",
		},
		[]string{"sync", "stream", "reason"},
	)

	// JobsInFlight tracks submitted jobs that have not finished
	JobsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "Number of submitted jobs that have not finished",
		},
		[]string{"sync"},
	)

	// JobsRunning tracks jobs currently holding a worker slot
	JobsRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_running",
			Help:      "Number of jobs currently running",
		},
		[]string{"sync"},
	)

	// QueueDepth tracks the number of items waiting in the shared queue
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Current depth of the shared queue",
		},
		[]string{"sync"},
	)

	// JobDuration tracks how long jobs run once they hold a worker slot
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of worker jobs in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"sync", "job"},
	)
)

// Collector records the metrics of one sync run.
type Collector struct {
	name string

	recordsEmitted      *prometheus.CounterVec
	checkpointsEmitted  *prometheus.CounterVec
	partitionsStarted   *prometheus.CounterVec
	partitionsCompleted *prometheus.CounterVec
	workerErrors        *prometheus.CounterVec
	streamsSkipped      *prometheus.CounterVec
	jobDuration         prometheus.ObserverVec

	jobsInFlight prometheus.Gauge
	jobsRunning  prometheus.Gauge
	queueDepth   prometheus.Gauge
	startTime    time.Time
}

// NewCollector creates a collector whose series carry sync=name.
func NewCollector(name string) *Collector {
	labels := prometheus.Labels{"sync": name}
	return &Collector{
		name:                name,
		recordsEmitted:      RecordsEmitted.MustCurryWith(labels),
		checkpointsEmitted:  CheckpointsEmitted.MustCurryWith(labels),
		partitionsStarted:   PartitionsStarted.MustCurryWith(labels),
		partitionsCompleted: PartitionsCompleted.MustCurryWith(labels),
		workerErrors:        WorkerErrors.MustCurryWith(labels),
		streamsSkipped:      StreamsSkipped.MustCurryWith(labels),
		jobDuration:         JobDuration.MustCurryWith(labels),
		jobsInFlight:        JobsInFlight.With(labels),
		jobsRunning:         JobsRunning.With(labels),
		queueDepth:          QueueDepth.With(labels),
		startTime:           time.Now(),
	}
}

// Name returns the sync name the collector labels its series with
func (c *Collector) Name() string { return c.name }

// StartTime returns when the collector was created
func (c *Collector) StartTime() time.Time { return c.startTime }

// RecordEmitted counts one record for a stream
func (c *Collector) RecordEmitted(stream string) {
	c.recordsEmitted.WithLabelValues(stream).Inc()
}

// CheckpointEmitted counts one state message for a stream
func (c *Collector) CheckpointEmitted(stream, kind string) {
	c.checkpointsEmitted.WithLabelValues(stream, kind).Inc()
}

// PartitionStarted counts a partition submitted for reading
func (c *Collector) PartitionStarted(stream string) {
	c.partitionsStarted.WithLabelValues(stream).Inc()
}

// PartitionCompleted counts a partition read to completion
func (c *Collector) PartitionCompleted(stream string) {
	c.partitionsCompleted.WithLabelValues(stream).Inc()
}

// WorkerError counts a failed job
func (c *Collector) WorkerError(stream, job string) {
	c.workerErrors.WithLabelValues(stream, job).Inc()
}

// StreamSkipped counts a skipped stream
func (c *Collector) StreamSkipped(stream, reason string) {
	c.streamsSkipped.WithLabelValues(stream, reason).Inc()
}

// JobSubmitted and JobFinished bracket a job's life in the pool
func (c *Collector) JobSubmitted() { c.jobsInFlight.Inc() }

// JobFinished marks a submitted job as finished
func (c *Collector) JobFinished() { c.jobsInFlight.Dec() }

// JobStarted marks a job as holding a worker slot
func (c *Collector) JobStarted() { c.jobsRunning.Inc() }

// JobStopped releases the worker slot and observes the run time
func (c *Collector) JobStopped(job string, d time.Duration) {
	c.jobsRunning.Dec()
	c.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

// SetQueueDepth records the current queue depth
func (c *Collector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}
