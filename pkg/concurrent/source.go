package concurrent

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-cdk/pkg/config"
	"github.com/ajitpratap0/nebula-cdk/pkg/connector/core"
	"github.com/ajitpratap0/nebula-cdk/pkg/errors"
	"github.com/ajitpratap0/nebula-cdk/pkg/logger"
	"github.com/ajitpratap0/nebula-cdk/pkg/metrics"
	"github.com/ajitpratap0/nebula-cdk/pkg/observability"
)

const defaultMessageBuffer = 1000

// Option configures a ConcurrentSource
type Option func(*ConcurrentSource)

// WithMessageRepository sets the repository drained into the output
func WithMessageRepository(repo MessageRepository) Option {
	return func(s *ConcurrentSource) {
		s.repository = repo
	}
}

// WithMetrics sets the collector the run reports to
func WithMetrics(collector *metrics.Collector) Option {
	return func(s *ConcurrentSource) {
		s.metrics = collector
	}
}

// WithMessageBuffer sets the buffer size of the channel returned by Read
func WithMessageBuffer(size int) Option {
	return func(s *ConcurrentSource) {
		if size > 0 {
			s.messageBuffer = size
		}
	}
}

// ConcurrentSource reads the streams of a source with a bounded worker pool.
// Partition generators and partition readers push onto a shared queue; a
// single drain loop turns queue items into output messages.
type ConcurrentSource struct {
	source        core.Source
	config        *config.SyncConfig
	repository    MessageRepository
	metrics       *metrics.Collector
	logger        *zap.Logger
	messageBuffer int
}

// NewConcurrentSource creates a driver for source. The configuration is
// validated here, so a missing unknown-stream policy fails before any work.
func NewConcurrentSource(source core.Source, cfg *config.SyncConfig, log *zap.Logger, opts ...Option) (*ConcurrentSource, error) {
	if source == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "source is required")
	}
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "sync config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid sync config")
	}
	if log == nil {
		log = logger.Get()
	}

	s := &ConcurrentSource{
		source:        source,
		config:        cfg,
		logger:        log.With(zap.String("source", source.Name()), zap.String("sync", cfg.Name)),
		messageBuffer: defaultMessageBuffer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.repository == nil {
		s.repository = NewInMemoryMessageRepository()
	}
	if s.metrics == nil {
		s.metrics = metrics.NewCollector(cfg.Name)
	}
	return s, nil
}

// Read runs the sync in the background. Messages is closed when the run
// ends, after any terminal error has been sent on Errors.
func (s *ConcurrentSource) Read(ctx context.Context, catalog core.ConfiguredCatalog) *core.MessageStream {
	messages := make(chan core.Message, s.messageBuffer)
	errs := make(chan error, 1)

	go func() {
		err := s.Run(ctx, catalog, func(msg core.Message) error {
			select {
			case messages <- msg:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			errs <- err
		}
		close(errs)
		close(messages)
	}()

	return &core.MessageStream{Messages: messages, Errors: errs}
}

// Collect drains a MessageStream into a slice
func Collect(stream *core.MessageStream) ([]core.Message, error) {
	var out []core.Message
	for msg := range stream.Messages {
		out = append(out, msg)
	}
	return out, <-stream.Errors
}

// Run syncs the catalog's streams and hands every output message to emit,
// in the order the drain loop produces them. Messages emitted before a
// failure are kept: the first worker failure is returned once the pool has
// drained.
func (s *ConcurrentSource) Run(ctx context.Context, catalog core.ConfiguredCatalog, emit func(core.Message) error) (err error) {
	ctx = context.WithValue(ctx, logger.SyncIDKey, s.config.Name)
	ctx, span := observability.Tracer().Start(ctx, "sync")
	span.SetAttributes(
		attribute.String("nebula.source", s.source.Name()),
		attribute.StringSlice("nebula.catalog.streams", catalog.StreamNames()),
	)
	defer func() { observability.EndSpan(span, err) }()

	log := logger.FromContext(s.logger, ctx)

	declared, err := s.source.Streams(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "listing source streams")
	}
	streams, err := s.resolveCatalog(catalog, declared)
	if err != nil {
		return err
	}
	if err := s.emitAll(s.repository.Drain(), emit); err != nil {
		return err
	}
	if len(streams) == 0 {
		log.Info("no stream to sync")
		return nil
	}

	queue := NewQueue(s.config.Queue.Capacity, s.config.Queue.PushTimeout)
	pool := NewThreadPoolManager(ctx, s.config.Concurrency.GetWorkers(), s.metrics, s.logger)
	handler := NewQueueItemHandler(HandlerConfig{
		Streams:                 streams,
		Pool:                    pool,
		Enqueuer:                NewPartitionEnqueuer(queue),
		Reader:                  NewPartitionReader(queue),
		Repository:              s.repository,
		MaxConcurrentGenerators: s.config.Concurrency.GetGenerators(),
		CheckpointInterval:      s.config.Checkpoint.Interval,
		Metrics:                 s.metrics,
		Logger:                  s.logger,
	})

	log.Info("starting sync",
		zap.Strings("catalog", catalog.StreamNames()),
		zap.Int("streams", len(streams)),
		zap.Int("max_workers", pool.MaxWorkers()),
		zap.Int("queue_capacity", queue.Cap()))

	defer func() {
		poolErr := pool.CheckForErrorsAndShutdown()
		pool.Shutdown()
		switch {
		case poolErr == nil:
		case err == nil:
			err = poolErr
		case errors.IsType(err, errors.ErrorTypeTimeout) && errors.IsType(poolErr, errors.ErrorTypeWorker):
			// a failed worker explains a stuck queue better than the timeout does
			err = poolErr
		default:
			log.Debug("pool error after sync failure", zap.Error(poolErr))
		}
		if err == nil {
			log.Info("sync completed", zap.Duration("duration", time.Since(s.metrics.StartTime())))
		}
	}()

	return s.drain(ctx, queue, pool, handler, emit)
}

func (s *ConcurrentSource) drain(ctx context.Context, queue *Queue, pool *ThreadPoolManager, handler *QueueItemHandler, emit func(core.Message) error) error {
	popTimeout := s.config.Queue.PopTimeout
	timer := time.NewTimer(popTimeout)
	defer timer.Stop()

	// idle counts only time spent waiting in select; time spent in the
	// handler or blocked in emit never counts against the pop timeout
	var idle time.Duration

	for {
		started, err := handler.StartPendingGenerators(ctx)
		if emitErr := s.emitAll(started, emit); emitErr != nil {
			return emitErr
		}
		if err != nil {
			return err
		}
		if err := s.emitAll(s.repository.Drain(), emit); err != nil {
			return err
		}
		s.metrics.SetQueueDepth(queue.Len())

		// The pool is checked before the queue: a job pushes its last item
		// before it stops counting as in flight.
		if pool.IsDone() && queue.Empty() {
			if handler.IsDone() {
				return nil
			}
			if handler.HasFailures() || pool.HasErrors() {
				return nil
			}
		}

		timer.Stop()
		timer.Reset(popTimeout - idle)
		waitStart := time.Now()

		select {
		case item := <-queue.Receive():
			idle = 0
			msgs, err := handler.OnItem(ctx, item)
			if emitErr := s.emitAll(msgs, emit); emitErr != nil {
				return emitErr
			}
			if err != nil {
				return err
			}
		case <-pool.JobFinished():
			idle += time.Since(waitStart)
		case <-timer.C:
			return errors.Wrap(ErrQueueTimeout, errors.ErrorTypeTimeout,
				fmt.Sprintf("no queue item received for %s while the sync was unfinished", popTimeout)).
				WithDetail("queue_depth", queue.Len())
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *ConcurrentSource) emitAll(msgs []core.Message, emit func(core.Message) error) error {
	for _, msg := range msgs {
		if err := emit(msg); err != nil {
			return err
		}
	}
	return nil
}

// resolveCatalog maps catalog entries to declared streams in catalog order
func (s *ConcurrentSource) resolveCatalog(catalog core.ConfiguredCatalog, declared []core.Stream) ([]core.Stream, error) {
	byName := make(map[string]core.Stream, len(declared))
	for _, stream := range declared {
		byName[stream.Name()] = stream
	}

	seen := make(map[string]struct{}, len(catalog.Streams))
	streams := make([]core.Stream, 0, len(catalog.Streams))
	for _, entry := range catalog.Streams {
		if _, dup := seen[entry.Name]; dup {
			continue
		}
		seen[entry.Name] = struct{}{}

		stream, ok := byName[entry.Name]
		if ok {
			if err := s.checkCatalogEntry(entry, stream); err != nil {
				return nil, err
			}
			streams = append(streams, stream)
			continue
		}

		if s.config.Catalog.UnknownStreamPolicy == config.UnknownStreamFail {
			return nil, errors.Newf(errors.ErrorTypeConfig,
				"the stream '%s' in your connection configuration was not found in the source", entry.Name).
				WithDetail("stream", entry.Name)
		}
		s.logger.Warn("catalog stream not found in source, skipping", zap.String("stream", entry.Name))
		s.metrics.StreamSkipped(entry.Name, "unknown")
		s.repository.Emit(core.NewLogMessage(core.LogLevelWarn,
			fmt.Sprintf("The stream '%s' in your connection configuration was not found in the source. Skipping it.", entry.Name)))
	}
	return streams, nil
}

// checkCatalogEntry rejects a catalog entry whose sync mode is unknown or
// whose cursor field differs from the one the stream tracks
func (s *ConcurrentSource) checkCatalogEntry(entry core.ConfiguredStream, stream core.Stream) error {
	if !entry.SyncMode.Valid() {
		return errors.Newf(errors.ErrorTypeConfig, "stream '%s' has unsupported sync mode %q", entry.Name, entry.SyncMode).
			WithDetail("stream", entry.Name)
	}

	var tracked string
	if cf, ok := stream.(core.CursorFielder); ok {
		tracked = cf.CursorField()
	}
	if entry.CursorField != "" && entry.CursorField != tracked {
		return errors.Newf(errors.ErrorTypeConfig,
			"stream '%s' is configured with cursor field %q but the source tracks %q", entry.Name, entry.CursorField, tracked).
			WithDetail("stream", entry.Name)
	}
	if entry.SyncMode == core.SyncModeIncremental && tracked == "" {
		s.logger.Warn("incremental sync requested for a stream without a cursor field; reading it in full",
			zap.String("stream", entry.Name))
	}
	return nil
}
