package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorLabelsSeriesWithSyncName(t *testing.T) {
	c := NewCollector("metrics-test")

	c.RecordEmitted("users")
	c.RecordEmitted("users")
	c.CheckpointEmitted("users", CheckpointFinal)
	c.PartitionStarted("users")
	c.PartitionCompleted("users")
	c.WorkerError("users", JobRead)
	c.StreamSkipped("ghost", "unknown")

	assert.Equal(t, 2.0, testutil.ToFloat64(RecordsEmitted.WithLabelValues("metrics-test", "users")))
	assert.Equal(t, 1.0, testutil.ToFloat64(CheckpointsEmitted.WithLabelValues("metrics-test", "users", CheckpointFinal)))
	assert.Equal(t, 1.0, testutil.ToFloat64(PartitionsStarted.WithLabelValues("metrics-test", "users")))
	assert.Equal(t, 1.0, testutil.ToFloat64(PartitionsCompleted.WithLabelValues("metrics-test", "users")))
	assert.Equal(t, 1.0, testutil.ToFloat64(WorkerErrors.WithLabelValues("metrics-test", "users", JobRead)))
	assert.Equal(t, 1.0, testutil.ToFloat64(StreamsSkipped.WithLabelValues("metrics-test", "ghost", "unknown")))
}

func TestCollectorGauges(t *testing.T) {
	c := NewCollector("gauge-test")

	c.JobSubmitted()
	c.JobSubmitted()
	c.JobStarted()
	c.SetQueueDepth(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(JobsInFlight.WithLabelValues("gauge-test")))
	assert.Equal(t, 1.0, testutil.ToFloat64(JobsRunning.WithLabelValues("gauge-test")))
	assert.Equal(t, 7.0, testutil.ToFloat64(QueueDepth.WithLabelValues("gauge-test")))

	c.JobStopped(JobRead, 10*time.Millisecond)
	c.JobFinished()
	c.JobFinished()

	assert.Equal(t, 0.0, testutil.ToFloat64(JobsInFlight.WithLabelValues("gauge-test")))
	assert.Equal(t, 0.0, testutil.ToFloat64(JobsRunning.WithLabelValues("gauge-test")))
	assert.Equal(t, "gauge-test", c.Name())
}
