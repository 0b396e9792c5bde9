package concurrent

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ajitpratap0/nebula-cdk/pkg/connector/core"
	"github.com/ajitpratap0/nebula-cdk/pkg/cursor"
)

type fakePartition struct {
	stream  string
	key     string
	records []core.RecordData

	// failAt yields err instead of the record at this index; -1 disables it
	failAt int
	err    error
	// panicAt panics instead of yielding the record at this index; -1 disables it
	panicAt int
	delay   time.Duration
	block   bool
	tracker *concurrencyTracker
}

func newPartition(stream, key string, records ...core.RecordData) *fakePartition {
	return &fakePartition{stream: stream, key: key, records: records, failAt: -1, panicAt: -1}
}

func (p *fakePartition) StreamName() string { return p.stream }
func (p *fakePartition) Slice() core.Slice  { return core.StringSlice(p.key) }

func (p *fakePartition) Read(ctx context.Context) iter.Seq2[core.RecordData, error] {
	return func(yield func(core.RecordData, error) bool) {
		if p.tracker != nil {
			p.tracker.enter()
			defer p.tracker.leave()
		}
		if p.block {
			<-ctx.Done()
			yield(nil, ctx.Err())
			return
		}
		if p.delay > 0 {
			time.Sleep(p.delay)
		}
		for i, rec := range p.records {
			if i == p.failAt {
				yield(nil, p.err)
				return
			}
			if i == p.panicAt {
				panic("boom")
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

type fakeStream struct {
	name       string
	partitions []*fakePartition
	available  bool
	reason     string
	genErr     error
	interval   int
	cursor     *cursor.MaxCursor
	genTracker *concurrencyTracker

	mu     sync.Mutex
	closed []string
}

func newStream(name string, partitions ...*fakePartition) *fakeStream {
	return &fakeStream{
		name:       name,
		partitions: partitions,
		available:  true,
		cursor:     cursor.NewMaxCursor("id"),
	}
}

func (s *fakeStream) Name() string { return s.name }

func (s *fakeStream) CheckAvailability(context.Context) (bool, string) {
	return s.available, s.reason
}

func (s *fakeStream) GeneratePartitions(context.Context) iter.Seq2[core.Partition, error] {
	return func(yield func(core.Partition, error) bool) {
		if s.genTracker != nil {
			s.genTracker.enter()
			defer s.genTracker.leave()
			time.Sleep(5 * time.Millisecond)
		}
		for _, p := range s.partitions {
			if !yield(p, nil) {
				return
			}
		}
		if s.genErr != nil {
			yield(nil, s.genErr)
		}
	}
}

func (s *fakeStream) ComputeUpdatedState(current core.State, data core.RecordData) core.State {
	return s.cursor.Update(current, data)
}

func (s *fakeStream) BuildCheckpointMessage(state core.State) core.Message {
	return core.NewStateMessage(s.name, state)
}

func (s *fakeStream) CheckpointInterval() int { return s.interval }

func (s *fakeStream) CursorField() string { return s.cursor.Field }

func (s *fakeStream) ObservePartitionClosed(p core.Partition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = append(s.closed, p.Slice().Key())
}

func (s *fakeStream) closedPartitions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.closed...)
}

// concurrencyTracker records the highest number of concurrent callers
type concurrencyTracker struct {
	current atomic.Int32
	peak    atomic.Int32
}

func (c *concurrencyTracker) enter() {
	n := c.current.Add(1)
	for {
		peak := c.peak.Load()
		if n <= peak || c.peak.CompareAndSwap(peak, n) {
			return
		}
	}
}

func (c *concurrencyTracker) leave() { c.current.Add(-1) }

// manualPool records jobs so a test can run them one at a time
type manualPool struct {
	jobs     []namedJob
	capacity int
}

type namedJob struct {
	name string
	job  Job
}

func (p *manualPool) Submit(name string, job Job) error {
	p.jobs = append(p.jobs, namedJob{name: name, job: job})
	return nil
}

func (p *manualPool) HasCapacity() bool {
	return p.capacity == 0 || len(p.jobs) < p.capacity
}

func (p *manualPool) runNext(ctx context.Context) (string, error) {
	next := p.jobs[0]
	p.jobs = p.jobs[1:]
	return next.name, next.job(ctx)
}

func rec(id int) core.RecordData {
	return core.RecordData{"id": id}
}

func catalogOf(names ...string) core.ConfiguredCatalog {
	var catalog core.ConfiguredCatalog
	for _, name := range names {
		catalog.Streams = append(catalog.Streams, core.ConfiguredStream{Name: name, SyncMode: core.SyncModeIncremental})
	}
	return catalog
}

func byType(msgs []core.Message, typ core.MessageType, stream string) []core.Message {
	var out []core.Message
	for _, m := range msgs {
		if m.Type == typ && (stream == "" || m.StreamName() == stream) {
			out = append(out, m)
		}
	}
	return out
}

func statuses(msgs []core.Message, stream string, status core.StreamStatus) int {
	n := 0
	for _, m := range msgs {
		if m.IsStreamStatus(status) && m.StreamName() == stream {
			n++
		}
	}
	return n
}

// popItem takes the oldest queued item, failing the test if none arrives in time
func popItem(t *testing.T, q *Queue) QueueItem {
	t.Helper()
	select {
	case item := <-q.Receive():
		return item
	case <-time.After(time.Second):
		t.Fatal("no queue item within a second")
		return nil
	}
}
