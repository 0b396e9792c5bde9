package testutil

import (
	"bufio"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-cdk/pkg/config"
)

func TestAssertEventually(t *testing.T) {
	var n atomic.Int32
	go func() {
		time.Sleep(20 * time.Millisecond)
		n.Store(1)
	}()
	AssertEventually(t, func() bool { return n.Load() == 1 }, time.Second, "flag never set")
}

func TestCreateJSONLFiles(t *testing.T) {
	files := CreateJSONLFiles(t, t.TempDir(), "events", 3, 4)
	require.Len(t, files, 3)

	f, err := os.Open(files[2])
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 4)
	assert.Equal(t, `{"id":8,"name":"Record_2_0","updated_at":"2024-01-01T00:08:00Z"}`, lines[0])
}

func TestSyncConfigIsValid(t *testing.T) {
	cfg := SyncConfig(t)
	assert.Equal(t, t.Name(), cfg.Name)
	assert.Equal(t, config.UnknownStreamFail, cfg.Catalog.UnknownStreamPolicy)
	assert.Equal(t, 4, cfg.Concurrency.MaxWorkers)
	assert.Zero(t, cfg.Checkpoint.Interval)
	assert.NoError(t, cfg.Validate())
}

func TestObservedLogger(t *testing.T) {
	log, logs := ObservedLogger(zap.InfoLevel)
	log.Debug("dropped")
	log.Info("kept", zap.String("stream", "users"))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "users", logs.All()[0].ContextMap()["stream"])
}

func TestTestContextHasDeadline(t *testing.T) {
	ctx, cancel := TestContext(t)
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.LessOrEqual(t, time.Until(deadline), defaultTestTimeout)
}
