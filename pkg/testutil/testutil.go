// Package testutil holds the helpers shared by the kit's tests: loggers that
// write to the test output or record entries for assertions, contexts bound
// to the test deadline, and a SyncConfig sized for fast test runs.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ajitpratap0/nebula-cdk/pkg/config"
)

// defaultTestTimeout bounds a test's sync when the test has no deadline
const defaultTestTimeout = 30 * time.Second

// TestLogger returns a logger writing to the test output
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// ObservedLogger returns a logger recording entries at or above level, for
// tests that assert on log messages and fields
func ObservedLogger(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

// TestContext returns a context that expires a little before the test
// deadline, or after defaultTestTimeout when `go test` sets none. The cancel
// function also runs on test cleanup.
func TestContext(t *testing.T) (context.Context, context.CancelFunc) {
	timeout := defaultTestTimeout
	if deadline, ok := t.Deadline(); ok {
		if left := time.Until(deadline) - time.Second; left > 0 && left < timeout {
			timeout = left
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx, cancel
}

// SyncConfig returns a valid SyncConfig named after the test: four workers,
// the fail policy for unknown streams, no interval checkpoints and queue
// timeouts short enough that a wedged sync fails the test quickly.
func SyncConfig(t *testing.T) *config.SyncConfig {
	t.Helper()
	cfg := config.NewSyncConfig(t.Name())
	cfg.Catalog.UnknownStreamPolicy = config.UnknownStreamFail
	cfg.Concurrency.MaxWorkers = 4
	cfg.Checkpoint.Interval = 0
	cfg.Queue.Capacity = 100
	cfg.Queue.PopTimeout = 5 * time.Second
	cfg.Queue.PushTimeout = 5 * time.Second
	require.NoError(t, cfg.Validate())
	return cfg
}

// AssertEventually fails the test unless condition holds within timeout
func AssertEventually(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()
	require.Eventually(t, condition, timeout, 10*time.Millisecond, msg)
}
