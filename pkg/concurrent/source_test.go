package concurrent

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-cdk/pkg/config"
	"github.com/ajitpratap0/nebula-cdk/pkg/connector/core"
	"github.com/ajitpratap0/nebula-cdk/pkg/cursor"
	"github.com/ajitpratap0/nebula-cdk/pkg/errors"
	"github.com/ajitpratap0/nebula-cdk/pkg/testutil"
)

func runSync(t *testing.T, cfg *config.SyncConfig, catalog core.ConfiguredCatalog, streams ...core.Stream) ([]core.Message, error) {
	t.Helper()
	src, err := NewConcurrentSource(core.NewStaticSource("fake", streams...), cfg, testutil.TestLogger(t))
	require.NoError(t, err)

	ctx, cancel := testutil.TestContext(t)
	defer cancel()
	return Collect(src.Read(ctx, catalog))
}

func TestConcurrentSourceTwoStreams(t *testing.T) {
	users := newStream("users", newPartition("users", "p1", rec(1), rec(2)))
	orders := newStream("orders", newPartition("orders", "p1", rec(10), rec(11)))

	msgs, err := runSync(t, testutil.SyncConfig(t), catalogOf("users", "orders"), users, orders)
	require.NoError(t, err)

	assert.Len(t, byType(msgs, core.MessageTypeRecord, ""), 4)
	assert.Len(t, byType(msgs, core.MessageTypeState, "users"), 1)
	assert.Len(t, byType(msgs, core.MessageTypeState, "orders"), 1)
	assert.Equal(t, core.State{"id": 2}, byType(msgs, core.MessageTypeState, "users")[0].State.Data)
	assert.Equal(t, core.State{"id": 11}, byType(msgs, core.MessageTypeState, "orders")[0].State.Data)
	for _, name := range []string{"users", "orders"} {
		assert.Equal(t, 1, statuses(msgs, name, core.StreamStatusStarted), name)
		assert.Equal(t, 1, statuses(msgs, name, core.StreamStatusComplete), name)
	}
}

func TestConcurrentSourceFinalCheckpointFollowsRecords(t *testing.T) {
	users := newStream("users",
		newPartition("users", "a", rec(1), rec(2)),
		newPartition("users", "b", rec(3)),
		newPartition("users", "c", rec(4), rec(5)),
	)

	msgs, err := runSync(t, testutil.SyncConfig(t), catalogOf("users"), users)
	require.NoError(t, err)

	lastRecord, finalState := -1, -1
	for i, m := range msgs {
		switch m.Type {
		case core.MessageTypeRecord:
			lastRecord = i
		case core.MessageTypeState:
			finalState = i
		}
	}
	assert.Greater(t, finalState, lastRecord, "the final checkpoint comes after every record")
	assert.Equal(t, core.State{"id": 5}, msgs[finalState].State.Data)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, users.closedPartitions())
}

func TestConcurrentSourceUnknownStream(t *testing.T) {
	users := newStream("users", newPartition("users", "p1", rec(1)))

	t.Run("fail", func(t *testing.T) {
		cfg := testutil.SyncConfig(t)
		cfg.Catalog.UnknownStreamPolicy = config.UnknownStreamFail

		msgs, err := runSync(t, cfg, catalogOf("users", "ghost"), users)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		assert.Contains(t, err.Error(), "ghost")
		assert.Empty(t, byType(msgs, core.MessageTypeRecord, ""))
	})

	t.Run("skip", func(t *testing.T) {
		cfg := testutil.SyncConfig(t)
		cfg.Catalog.UnknownStreamPolicy = config.UnknownStreamSkip

		msgs, err := runSync(t, cfg, catalogOf("ghost", "users"), users)
		require.NoError(t, err)
		assert.Empty(t, byType(msgs, core.MessageTypeRecord, "ghost"))
		assert.Empty(t, byType(msgs, core.MessageTypeState, "ghost"))
		assert.Len(t, byType(msgs, core.MessageTypeRecord, "users"), 1)
		assert.Len(t, byType(msgs, core.MessageTypeState, "users"), 1)

		var warned bool
		for _, m := range byType(msgs, core.MessageTypeLog, "") {
			if m.Log.Level == core.LogLevelWarn && strings.Contains(m.Log.Message, "'ghost'") {
				warned = true
			}
		}
		assert.True(t, warned)
	})
}

func TestConcurrentSourceValidatesCatalogEntries(t *testing.T) {
	tests := []struct {
		name    string
		entry   core.ConfiguredStream
		wantErr string
	}{
		{
			name:  "matching cursor field",
			entry: core.ConfiguredStream{Name: "users", SyncMode: core.SyncModeIncremental, CursorField: "id"},
		},
		{
			name:  "full refresh without cursor field",
			entry: core.ConfiguredStream{Name: "users", SyncMode: core.SyncModeFullRefresh},
		},
		{
			name:    "cursor field differs from the stream's",
			entry:   core.ConfiguredStream{Name: "users", SyncMode: core.SyncModeIncremental, CursorField: "updated_at"},
			wantErr: `cursor field "updated_at" but the source tracks "id"`,
		},
		{
			name:    "unknown sync mode",
			entry:   core.ConfiguredStream{Name: "users", SyncMode: "append"},
			wantErr: `unsupported sync mode "append"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := newStream("users", newPartition("users", "p1", rec(1)))
			msgs, err := runSync(t, testutil.SyncConfig(t), core.ConfiguredCatalog{Streams: []core.ConfiguredStream{tt.entry}}, users)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Len(t, byType(msgs, core.MessageTypeRecord, "users"), 1)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, msgs)
		})
	}
}

func TestConcurrentSourceRequiresUnknownStreamPolicy(t *testing.T) {
	cfg := testutil.SyncConfig(t)
	cfg.Catalog.UnknownStreamPolicy = ""

	_, err := NewConcurrentSource(core.NewStaticSource("fake"), cfg, testutil.TestLogger(t))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestConcurrentSourceUnavailableStream(t *testing.T) {
	down := newStream("orders", newPartition("orders", "p1", rec(1)))
	down.available = false
	down.reason = "missing scope"
	users := newStream("users", newPartition("users", "p1", rec(1), rec(2)))

	msgs, err := runSync(t, testutil.SyncConfig(t), catalogOf("orders", "users"), down, users)
	require.NoError(t, err)

	assert.Empty(t, byType(msgs, core.MessageTypeRecord, "orders"))
	assert.Len(t, byType(msgs, core.MessageTypeRecord, "users"), 2)

	var warning *core.LogMessage
	for _, m := range byType(msgs, core.MessageTypeLog, "") {
		if m.Log.Level == core.LogLevelWarn {
			warning = m.Log
		}
	}
	require.NotNil(t, warning)
	assert.Equal(t, "Skipped syncing stream 'orders' because it was unavailable. missing scope", warning.Message)
}

func TestConcurrentSourceIntervalCheckpoints(t *testing.T) {
	users := newStream("users", newPartition("users", "p1", rec(1), rec(2), rec(3)))
	cfg := testutil.SyncConfig(t)
	cfg.Checkpoint.Interval = 1

	msgs, err := runSync(t, cfg, catalogOf("users"), users)
	require.NoError(t, err)

	var kinds []core.MessageType
	for _, m := range msgs {
		if m.Type == core.MessageTypeRecord || m.Type == core.MessageTypeState {
			kinds = append(kinds, m.Type)
		}
	}
	assert.Equal(t, []core.MessageType{
		core.MessageTypeRecord, core.MessageTypeState,
		core.MessageTypeRecord, core.MessageTypeState,
		core.MessageTypeRecord, core.MessageTypeState,
		core.MessageTypeState,
	}, kinds)

	assertMonotonicCheckpoints(t, byType(msgs, core.MessageTypeState, "users"))
}

func TestConcurrentSourceCheckpointsAreMonotonic(t *testing.T) {
	var partitions []*fakePartition
	for i := 0; i < 8; i++ {
		base := i * 10
		partitions = append(partitions, newPartition("events", fmt.Sprintf("day-%d", i), rec(base+1), rec(base+2), rec(base+3)))
	}
	events := newStream("events", partitions...)
	cfg := testutil.SyncConfig(t)
	cfg.Checkpoint.Interval = 2

	msgs, err := runSync(t, cfg, catalogOf("events"), events)
	require.NoError(t, err)

	assert.Len(t, byType(msgs, core.MessageTypeRecord, "events"), 24)
	states := byType(msgs, core.MessageTypeState, "events")
	assert.Len(t, states, 13)
	assertMonotonicCheckpoints(t, states)
	assert.Equal(t, core.State{"id": 73}, states[len(states)-1].State.Data)
}

func assertMonotonicCheckpoints(t *testing.T, states []core.Message) {
	t.Helper()
	var previous interface{}
	for i, m := range states {
		v := m.State.Data["id"]
		if previous != nil {
			assert.GreaterOrEqual(t, cursor.Compare(v, previous), 0, "checkpoint %d went backwards", i)
		}
		previous = v
	}
}

func TestConcurrentSourceReadFailure(t *testing.T) {
	p := newPartition("users", "p1", rec(1), rec(2), rec(3))
	p.failAt = 1
	p.err = fmt.Errorf("HTTP 502")
	users := newStream("users", p)
	orders := newStream("orders", newPartition("orders", "p1", rec(1)))

	msgs, err := runSync(t, testutil.SyncConfig(t), catalogOf("users", "orders"), users, orders)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeWorker))
	assert.Contains(t, err.Error(), "HTTP 502")

	records := byType(msgs, core.MessageTypeRecord, "users")
	require.Len(t, records, 1)
	assert.Equal(t, core.RecordData{"id": 1}, records[0].Record.Data)
	assert.Empty(t, users.closedPartitions(), "the failed partition is never completed")
	assert.Equal(t, 0, statuses(msgs, "users", core.StreamStatusComplete))
	assert.Equal(t, 1, statuses(msgs, "users", core.StreamStatusIncomplete))

	// the other stream still syncs
	assert.Len(t, byType(msgs, core.MessageTypeRecord, "orders"), 1)
	assert.Equal(t, 1, statuses(msgs, "orders", core.StreamStatusComplete))
}

func TestConcurrentSourceGeneratorFailure(t *testing.T) {
	users := newStream("users", newPartition("users", "p1", rec(1)))
	users.genErr = fmt.Errorf("invalid page token")

	msgs, err := runSync(t, testutil.SyncConfig(t), catalogOf("users"), users)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid page token")
	assert.Contains(t, err.Error(), "generate:users")
	assert.Len(t, byType(msgs, core.MessageTypeRecord, "users"), 1)
	assert.Equal(t, 0, statuses(msgs, "users", core.StreamStatusComplete))
}

func TestConcurrentSourceReaderPanic(t *testing.T) {
	p := newPartition("users", "p1", rec(1), rec(2))
	p.panicAt = 1
	users := newStream("users", p)

	_, err := runSync(t, testutil.SyncConfig(t), catalogOf("users"), users)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestConcurrentSourceRespectsWorkerBound(t *testing.T) {
	tracker := &concurrencyTracker{}
	var partitions []*fakePartition
	for i := 0; i < 12; i++ {
		p := newPartition("events", fmt.Sprintf("p%d", i), rec(i))
		p.delay = 10 * time.Millisecond
		p.tracker = tracker
		partitions = append(partitions, p)
	}
	cfg := testutil.SyncConfig(t)
	cfg.Concurrency.MaxWorkers = 3

	msgs, err := runSync(t, cfg, catalogOf("events"), newStream("events", partitions...))
	require.NoError(t, err)
	assert.Len(t, byType(msgs, core.MessageTypeRecord, "events"), 12)
	assert.LessOrEqual(t, tracker.peak.Load(), int32(3))
	assert.GreaterOrEqual(t, tracker.peak.Load(), int32(1))
}

func TestConcurrentSourceGeneratorBound(t *testing.T) {
	tracker := &concurrencyTracker{}
	var streams []core.Stream
	var names []string
	for i := 0; i < 4; i++ {
		name := fmt.Sprintf("s%d", i)
		s := newStream(name, newPartition(name, "p1", rec(1)))
		s.genTracker = tracker
		streams = append(streams, s)
		names = append(names, name)
	}
	cfg := testutil.SyncConfig(t)
	cfg.Concurrency.MaxWorkers = 8
	cfg.Concurrency.MaxConcurrentGenerators = 1

	msgs, err := runSync(t, cfg, catalogOf(names...), streams...)
	require.NoError(t, err)
	assert.Len(t, byType(msgs, core.MessageTypeRecord, ""), 4)
	assert.Equal(t, int32(1), tracker.peak.Load())

	var started []string
	for _, m := range msgs {
		if m.IsStreamStatus(core.StreamStatusStarted) {
			started = append(started, m.StreamName())
		}
	}
	assert.Equal(t, names, started, "generators start in catalog order")
}

func TestConcurrentSourceStuckPipeline(t *testing.T) {
	p := newPartition("users", "p1")
	p.block = true
	cfg := testutil.SyncConfig(t)
	cfg.Queue.PopTimeout = 50 * time.Millisecond

	_, err := runSync(t, cfg, catalogOf("users"), newStream("users", p))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQueueTimeout)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))
}

func TestConcurrentSourceSlowConsumerIsNotStuck(t *testing.T) {
	var records []core.RecordData
	for i := 1; i <= 8; i++ {
		records = append(records, rec(i))
	}
	users := newStream("users", newPartition("users", "p1", records...))
	cfg := testutil.SyncConfig(t)
	cfg.Queue.PopTimeout = 20 * time.Millisecond

	src, err := NewConcurrentSource(core.NewStaticSource("fake", users), cfg, testutil.TestLogger(t))
	require.NoError(t, err)

	var msgs []core.Message
	err = src.Run(context.Background(), catalogOf("users"), func(msg core.Message) error {
		if msg.Type == core.MessageTypeRecord {
			// every record takes longer to deliver than the pop timeout
			time.Sleep(40 * time.Millisecond)
		}
		msgs = append(msgs, msg)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, byType(msgs, core.MessageTypeRecord, "users"), 8)
	assert.Equal(t, 1, statuses(msgs, "users", core.StreamStatusComplete))
}

func TestConcurrentSourceEmptyCatalog(t *testing.T) {
	msgs, err := runSync(t, testutil.SyncConfig(t), core.ConfiguredCatalog{}, newStream("users"))
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestConcurrentSourceEmitError(t *testing.T) {
	users := newStream("users", newPartition("users", "p1", rec(1), rec(2), rec(3)))
	src, err := NewConcurrentSource(core.NewStaticSource("fake", users), testutil.SyncConfig(t), testutil.TestLogger(t))
	require.NoError(t, err)

	sinkErr := fmt.Errorf("sink closed")
	var seen int
	err = src.Run(context.Background(), catalogOf("users"), func(core.Message) error {
		seen++
		if seen == 2 {
			return sinkErr
		}
		return nil
	})
	assert.ErrorIs(t, err, sinkErr)
	assert.Equal(t, 2, seen)
}

func TestConcurrentSourceCancellation(t *testing.T) {
	p := newPartition("users", "p1")
	p.block = true
	src, err := NewConcurrentSource(core.NewStaticSource("fake", newStream("users", p)), testutil.SyncConfig(t), testutil.TestLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err = Collect(src.Read(ctx, catalogOf("users")))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentSourceLogsRecordCount(t *testing.T) {
	log, logs := testutil.ObservedLogger(zap.InfoLevel)
	users := newStream("users", newPartition("users", "p1", rec(1), rec(2)))
	repo := NewInMemoryMessageRepository()

	src, err := NewConcurrentSource(core.NewStaticSource("fake", users), testutil.SyncConfig(t), log,
		WithMessageRepository(repo))
	require.NoError(t, err)

	var msgs []core.Message
	require.NoError(t, src.Run(context.Background(), catalogOf("users"), func(m core.Message) error {
		msgs = append(msgs, m)
		return nil
	}))

	assert.Equal(t, 1, logs.FilterMessage("Read 2 records from users stream").Len())
	starting := logs.FilterMessage("starting sync").All()
	require.Len(t, starting, 1)
	assert.Equal(t, []interface{}{"users"}, starting[0].ContextMap()["catalog"])
	var finished bool
	for _, m := range byType(msgs, core.MessageTypeLog, "") {
		finished = finished || m.Log.Message == "Finished syncing users"
	}
	assert.True(t, finished, "repository messages are drained into the output")
}
