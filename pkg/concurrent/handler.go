package concurrent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-cdk/pkg/connector/core"
	"github.com/ajitpratap0/nebula-cdk/pkg/errors"
	"github.com/ajitpratap0/nebula-cdk/pkg/metrics"
)

// WorkerPool is the part of the thread pool the handler schedules jobs on
type WorkerPool interface {
	Submit(name string, job Job) error
	HasCapacity() bool
}

// HandlerConfig wires a QueueItemHandler
type HandlerConfig struct {
	// Streams are the streams to sync, in catalog order
	Streams    []core.Stream
	Pool       WorkerPool
	Enqueuer   *PartitionEnqueuer
	Reader     *PartitionReader
	Repository MessageRepository

	// MaxConcurrentGenerators bounds the streams generating partitions at once
	MaxConcurrentGenerators int
	// CheckpointInterval is the records-per-checkpoint default; streams
	// implementing core.CheckpointIntervaler override it
	CheckpointInterval int

	Metrics *metrics.Collector
	Logger  *zap.Logger
}

type streamProgress struct {
	stream   core.Stream
	state    core.State
	interval int

	recordCount int
	sawRecord   bool

	generating     bool
	generationDone bool
	pending        map[string]core.Partition
	closed         map[string]struct{}

	finished bool
	failed   bool
}

// QueueItemHandler turns queue items into output messages and decides when
// a sync is done. It is owned by the drain loop: none of its methods may be
// called from more than one goroutine.
type QueueItemHandler struct {
	pool       WorkerPool
	enqueuer   *PartitionEnqueuer
	reader     *PartitionReader
	repository MessageRepository
	metrics    *metrics.Collector
	logger     *zap.Logger

	maxGenerators int

	progress     map[string]*streamProgress
	toStart      []core.Stream
	generating   int
	totalPending int
	failures     int
}

// NewQueueItemHandler creates a handler for the given streams
func NewQueueItemHandler(cfg HandlerConfig) *QueueItemHandler {
	maxGenerators := cfg.MaxConcurrentGenerators
	if maxGenerators <= 0 {
		maxGenerators = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	collector := cfg.Metrics
	if collector == nil {
		collector = metrics.NewCollector("default")
	}

	h := &QueueItemHandler{
		pool:          cfg.Pool,
		enqueuer:      cfg.Enqueuer,
		reader:        cfg.Reader,
		repository:    cfg.Repository,
		metrics:       collector,
		logger:        logger.With(zap.String("component", "queue_item_handler")),
		maxGenerators: maxGenerators,
		progress:      make(map[string]*streamProgress, len(cfg.Streams)),
		toStart:       append([]core.Stream(nil), cfg.Streams...),
	}

	for _, stream := range cfg.Streams {
		interval := cfg.CheckpointInterval
		if ci, ok := stream.(core.CheckpointIntervaler); ok && ci.CheckpointInterval() > 0 {
			interval = ci.CheckpointInterval()
		}
		h.progress[stream.Name()] = &streamProgress{
			stream:   stream,
			interval: interval,
			pending:  make(map[string]core.Partition),
			closed:   make(map[string]struct{}),
		}
	}
	return h
}

// OnItem dispatches one queue item and returns the messages it produces
func (h *QueueItemHandler) OnItem(ctx context.Context, item QueueItem) ([]core.Message, error) {
	switch it := item.(type) {
	case *Record:
		return h.onRecord(it)
	case *PartitionItem:
		return nil, h.onPartition(it)
	case *PartitionCompleteSentinel:
		return h.onPartitionComplete(it)
	case *PartitionGenerationCompletedSentinel:
		return h.onGenerationCompleted(ctx, it)
	case *ExceptionItem:
		return h.onException(ctx, it)
	default:
		return nil, errors.Newf(errors.ErrorTypeInternal, "unknown queue item %T", item)
	}
}

func (h *QueueItemHandler) onRecord(record *Record) ([]core.Message, error) {
	p, err := h.lookup(record.StreamName())
	if err != nil {
		return nil, err
	}

	var out []core.Message
	if !p.sawRecord {
		p.sawRecord = true
		out = append(out, core.NewStreamStatusMessage(p.stream.Name(), core.StreamStatusRunning))
	}

	p.recordCount++
	p.state = p.stream.ComputeUpdatedState(p.state, record.Data)
	out = append(out, core.NewRecordMessage(p.stream.Name(), record.Data))
	h.metrics.RecordEmitted(p.stream.Name())

	if p.interval > 0 && p.recordCount%p.interval == 0 {
		out = append(out, h.checkpoint(p, metrics.CheckpointInterval))
	}

	if record.IsFinalRecordOfPartition {
		h.logger.Debug("last record of partition handled",
			zap.String("stream", p.stream.Name()),
			zap.String("slice", record.Partition.Slice().Key()))
	}
	return out, nil
}

func (h *QueueItemHandler) onPartition(item *PartitionItem) error {
	partition := item.Partition
	p, err := h.lookup(partition.StreamName())
	if err != nil {
		return err
	}

	key := partition.Slice().Key()
	_, isPending := p.pending[key]
	_, isClosed := p.closed[key]
	if isPending || isClosed {
		return errors.Newf(errors.ErrorTypeInternal,
			"stream %s generated partition %s twice", p.stream.Name(), key)
	}

	p.pending[key] = partition
	h.totalPending++

	name := fmt.Sprintf("%s:%s", metrics.JobRead, p.stream.Name())
	if err := h.pool.Submit(name, func(ctx context.Context) error {
		return h.reader.ProcessPartition(ctx, partition)
	}); err != nil {
		return err
	}
	h.metrics.PartitionStarted(p.stream.Name())
	return nil
}

func (h *QueueItemHandler) onPartitionComplete(sentinel *PartitionCompleteSentinel) ([]core.Message, error) {
	partition := sentinel.Partition
	p, err := h.lookup(partition.StreamName())
	if err != nil {
		return nil, err
	}

	key := partition.Slice().Key()
	if _, ok := p.pending[key]; !ok {
		return nil, errors.Newf(errors.ErrorTypeInternal,
			"completion for partition %s of stream %s that is not pending", key, p.stream.Name())
	}
	delete(p.pending, key)
	p.closed[key] = struct{}{}
	h.totalPending--
	h.metrics.PartitionCompleted(p.stream.Name())

	if observer, ok := p.stream.(core.PartitionObserver); ok {
		observer.ObservePartitionClosed(partition)
	}
	return h.finishStreamIfDone(p), nil
}

func (h *QueueItemHandler) onGenerationCompleted(ctx context.Context, sentinel *PartitionGenerationCompletedSentinel) ([]core.Message, error) {
	name := sentinel.Stream.Name()
	if err := h.MarkGenerationComplete(name); err != nil {
		return nil, err
	}

	out := h.finishStreamIfDone(h.progress[name])
	started, err := h.StartPendingGenerators(ctx)
	return append(out, started...), err
}

func (h *QueueItemHandler) onException(ctx context.Context, item *ExceptionItem) ([]core.Message, error) {
	job := metrics.JobRead
	if item.Partition == nil {
		job = metrics.JobGenerate
	}
	h.failures++
	h.metrics.WorkerError(item.StreamName, job)
	h.logger.Error("worker failed",
		zap.String("stream", item.StreamName),
		zap.String("job", job),
		zap.Error(item.Err))

	p, ok := h.progress[item.StreamName]
	if !ok {
		return []core.Message{core.NewErrorTraceMessage(item.StreamName, item.Err)}, nil
	}

	var out []core.Message
	if !p.failed {
		p.failed = true
		out = append(out,
			core.NewErrorTraceMessage(item.StreamName, item.Err),
			core.NewStreamStatusMessage(item.StreamName, core.StreamStatusIncomplete))
	}

	// A failed generator gives its slot back so other streams can proceed.
	if item.Partition == nil && p.generating {
		p.generating = false
		h.generating--
		started, err := h.StartPendingGenerators(ctx)
		return append(out, started...), err
	}
	return out, nil
}

// finishStreamIfDone emits the final checkpoint once a stream has no
// generator and no pending partition left
func (h *QueueItemHandler) finishStreamIfDone(p *streamProgress) []core.Message {
	if p.finished || p.failed || !p.generationDone || len(p.pending) > 0 {
		return nil
	}
	p.finished = true

	name := p.stream.Name()
	h.logger.Info(fmt.Sprintf("Read %d records from %s stream", p.recordCount, name),
		zap.String("stream", name),
		zap.Int("records", p.recordCount))
	if h.repository != nil {
		h.repository.Emit(core.NewLogMessage(core.LogLevelInfo, fmt.Sprintf("Finished syncing %s", name)))
	}

	return []core.Message{
		h.checkpoint(p, metrics.CheckpointFinal),
		core.NewStreamStatusMessage(name, core.StreamStatusComplete),
	}
}

func (h *QueueItemHandler) checkpoint(p *streamProgress, kind string) core.Message {
	h.metrics.CheckpointEmitted(p.stream.Name(), kind)
	return p.stream.BuildCheckpointMessage(p.state.Clone())
}

// StartNextPartitionGenerator takes the next stream in catalog order and
// starts its generator. An unavailable stream is skipped and reported with a
// WARN log message instead. It returns nil when no stream is left to start.
func (h *QueueItemHandler) StartNextPartitionGenerator(ctx context.Context) (*core.Message, error) {
	if len(h.toStart) == 0 {
		return nil, nil
	}
	stream := h.toStart[0]
	h.toStart = h.toStart[1:]
	name := stream.Name()

	available, reason := stream.CheckAvailability(ctx)
	if !available {
		skipErr := errors.New(errors.ErrorTypeUnavailable, reason).WithDetail("stream", name)
		h.logger.Warn("stream unavailable, skipping",
			zap.String("stream", name),
			zap.Error(skipErr))
		h.metrics.StreamSkipped(name, string(errors.ErrorTypeUnavailable))
		msg := core.NewLogMessage(core.LogLevelWarn,
			fmt.Sprintf("Skipped syncing stream '%s' because it was unavailable. %s", name, reason))
		return &msg, nil
	}

	if err := h.MarkStarted(name); err != nil {
		return nil, err
	}
	job := fmt.Sprintf("%s:%s", metrics.JobGenerate, name)
	if err := h.pool.Submit(job, func(ctx context.Context) error {
		return h.enqueuer.GeneratePartitions(ctx, stream)
	}); err != nil {
		return nil, err
	}

	h.logger.Info("started partition generator", zap.String("stream", name))
	msg := core.NewStreamStatusMessage(name, core.StreamStatusStarted)
	return &msg, nil
}

// StartPendingGenerators starts generators while streams are waiting, the
// generator bound allows it and the pool has a free worker
func (h *QueueItemHandler) StartPendingGenerators(ctx context.Context) ([]core.Message, error) {
	var out []core.Message
	for len(h.toStart) > 0 && h.generating < h.maxGenerators && h.pool.HasCapacity() {
		msg, err := h.StartNextPartitionGenerator(ctx)
		if err != nil {
			return out, err
		}
		if msg != nil {
			out = append(out, *msg)
		}
	}
	return out, nil
}

// MarkStarted records that a stream's generator is running
func (h *QueueItemHandler) MarkStarted(stream string) error {
	p, err := h.lookup(stream)
	if err != nil {
		return err
	}
	if p.generating || p.generationDone {
		return errors.Newf(errors.ErrorTypeInternal, "generator for stream %s already started", stream)
	}
	p.generating = true
	h.generating++
	return nil
}

// MarkGenerationComplete records that a stream's generator has finished
func (h *QueueItemHandler) MarkGenerationComplete(stream string) error {
	p, err := h.lookup(stream)
	if err != nil {
		return err
	}
	if !p.generating {
		return errors.Newf(errors.ErrorTypeInternal, "stream %s completed generation without a running generator", stream)
	}
	p.generating = false
	p.generationDone = true
	h.generating--
	return nil
}

// IsDone reports whether every stream has been started, no generator is
// running and every announced partition has completed
func (h *QueueItemHandler) IsDone() bool {
	return len(h.toStart) == 0 && h.generating == 0 && h.totalPending == 0
}

// HasFailures reports whether an ExceptionItem was handled
func (h *QueueItemHandler) HasFailures() bool {
	return h.failures > 0
}

// RecordCount returns the number of records handled for a stream
func (h *QueueItemHandler) RecordCount(stream string) int {
	if p, ok := h.progress[stream]; ok {
		return p.recordCount
	}
	return 0
}

// State returns a copy of a stream's current state
func (h *QueueItemHandler) State(stream string) core.State {
	if p, ok := h.progress[stream]; ok {
		return p.state.Clone()
	}
	return nil
}

func (h *QueueItemHandler) lookup(stream string) (*streamProgress, error) {
	p, ok := h.progress[stream]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeInternal, "queue item for unknown stream %s", stream)
	}
	return p, nil
}
