package concurrent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/ajitpratap0/nebula-cdk/pkg/errors"
	"github.com/ajitpratap0/nebula-cdk/pkg/logger"
	"github.com/ajitpratap0/nebula-cdk/pkg/metrics"
	"github.com/ajitpratap0/nebula-cdk/pkg/observability"
)

// Job is a unit of work run on the pool
type Job func(ctx context.Context) error

// jobKind labels a job for metrics, e.g. "read" for "read:users"
type jobKind string

// ThreadPoolManager runs jobs on a bounded number of goroutines. Submit never
// blocks the caller: a job that finds every slot taken waits inside the pool.
type ThreadPoolManager struct {
	maxWorkers int
	sem        *semaphore.Weighted
	logger     *zap.Logger
	metrics    *metrics.Collector

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	inFlight    int
	running     int
	peakRunning int
	firstErr    error
	errCount    int
	closed      bool

	// finished gets a token whenever a job ends; see JobFinished
	finished chan struct{}
}

// NewThreadPoolManager creates a pool running at most maxWorkers jobs at once.
// Jobs receive a context derived from ctx that is cancelled on Shutdown.
func NewThreadPoolManager(ctx context.Context, maxWorkers int, collector *metrics.Collector, log *zap.Logger) *ThreadPoolManager {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if collector == nil {
		collector = metrics.NewCollector("default")
	}
	if log == nil {
		log = zap.NewNop()
	}
	poolCtx, cancel := context.WithCancel(ctx)
	return &ThreadPoolManager{
		maxWorkers: maxWorkers,
		sem:        semaphore.NewWeighted(int64(maxWorkers)),
		logger:     log.With(zap.String("component", "thread_pool")),
		metrics:    collector,
		ctx:        poolCtx,
		cancel:     cancel,
		finished:   make(chan struct{}, 1),
	}
}

// Submit schedules job under name. It fails only once the pool is shut down.
func (p *ThreadPoolManager) Submit(name string, job Job) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errors.New(errors.ErrorTypeInternal, "thread pool is shut down").WithDetail("job", name)
	}
	p.inFlight++
	p.wg.Add(1)
	p.mu.Unlock()

	p.metrics.JobSubmitted()
	go p.run(name, job)
	return nil
}

func (p *ThreadPoolManager) run(name string, job Job) {
	defer p.jobDone()

	jobCtx := logger.ContextWithJob(p.ctx, name)
	if stream := streamOf(name); stream != "" {
		jobCtx = logger.ContextWithStream(jobCtx, stream)
	}

	if err := p.sem.Acquire(jobCtx, 1); err != nil {
		p.recordError(jobCtx, name, fmt.Errorf("waiting for a worker slot: %w", err))
		return
	}
	defer p.sem.Release(1)

	p.mu.Lock()
	p.running++
	if p.running > p.peakRunning {
		p.peakRunning = p.running
	}
	p.mu.Unlock()
	p.metrics.JobStarted()

	start := time.Now()
	ctx, span := observability.StartJobSpan(jobCtx, name)
	err := safeRun(ctx, job)
	observability.EndSpan(span, err)

	p.mu.Lock()
	p.running--
	p.mu.Unlock()
	p.metrics.JobStopped(string(kindOf(name)), time.Since(start))

	if err != nil {
		p.recordError(ctx, name, err)
	}
}

func (p *ThreadPoolManager) jobDone() {
	p.mu.Lock()
	p.inFlight--
	p.mu.Unlock()
	p.metrics.JobFinished()
	p.wg.Done()

	select {
	case p.finished <- struct{}{}:
	default:
	}
}

func (p *ThreadPoolManager) recordError(ctx context.Context, name string, err error) {
	wrapped := errors.Wrap(err, errors.ErrorTypeWorker, fmt.Sprintf("job %s failed", name)).
		WithDetail("job", name)

	p.mu.Lock()
	p.errCount++
	if p.firstErr == nil {
		p.firstErr = wrapped
	}
	p.mu.Unlock()

	logger.FromContext(p.logger, ctx).Debug("job failed", zap.Error(err))
}

// HasCapacity reports whether fewer jobs are in flight than there are workers
func (p *ThreadPoolManager) HasCapacity() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight < p.maxWorkers
}

// IsDone reports whether no job is in flight
func (p *ThreadPoolManager) IsDone() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight == 0
}

// HasErrors reports whether any job has failed so far
func (p *ThreadPoolManager) HasErrors() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.firstErr != nil
}

// JobFinished delivers a token after jobs end. Tokens coalesce, so a
// receiver must re-check IsDone rather than count tokens.
func (p *ThreadPoolManager) JobFinished() <-chan struct{} {
	return p.finished
}

// PeakRunning returns the largest number of jobs that ran at the same time
func (p *ThreadPoolManager) PeakRunning() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peakRunning
}

// MaxWorkers returns the configured worker count
func (p *ThreadPoolManager) MaxWorkers() int {
	return p.maxWorkers
}

// CheckForErrorsAndShutdown returns the first job error, or an error if jobs
// are still in flight, and shuts the pool down in every case.
func (p *ThreadPoolManager) CheckForErrorsAndShutdown() error {
	p.mu.Lock()
	firstErr, errCount, inFlight := p.firstErr, p.errCount, p.inFlight
	p.mu.Unlock()

	var err error
	switch {
	case firstErr != nil:
		if errCount > 1 {
			p.logger.Warn("several jobs failed; reporting the first", zap.Int("failed_jobs", errCount))
		}
		err = firstErr
	case inFlight > 0:
		err = errors.Newf(errors.ErrorTypePipeline, "%d jobs were still in flight at shutdown", inFlight)
	}

	p.Shutdown()
	return err
}

// Shutdown rejects new jobs, cancels the jobs' context and waits for every
// job goroutine to return. It is safe to call more than once.
func (p *ThreadPoolManager) Shutdown() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}

// safeRun turns a panicking job into an error
func safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrorTypeWorker, "job panicked: %v", r)
		}
	}()
	return job(ctx)
}

// streamOf returns the stream a job works on, the part after the first ':'
func streamOf(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return ""
}

func kindOf(name string) jobKind {
	for i := 0; i < len(name); i++ {
		if name[i] == ':' {
			return jobKind(name[:i])
		}
	}
	return jobKind(name)
}
