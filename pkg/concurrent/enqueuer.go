package concurrent

import (
	"context"
	"fmt"

	"github.com/ajitpratap0/nebula-cdk/pkg/connector/core"
	"github.com/ajitpratap0/nebula-cdk/pkg/errors"
)

// PartitionEnqueuer drains a stream's partition generator onto the queue.
type PartitionEnqueuer struct {
	queue *Queue
}

// NewPartitionEnqueuer creates an enqueuer pushing onto queue
func NewPartitionEnqueuer(queue *Queue) *PartitionEnqueuer {
	return &PartitionEnqueuer{queue: queue}
}

// GeneratePartitions pushes every partition of stream followed by a
// PartitionGenerationCompletedSentinel. A failing generator pushes an
// ExceptionItem instead of the sentinel and the failure is also returned so
// the pool remembers it.
func (e *PartitionEnqueuer) GeneratePartitions(ctx context.Context, stream core.Stream) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = e.fail(ctx, stream, errors.Newf(errors.ErrorTypeWorker, "partition generator panicked: %v", r))
		}
	}()

	for partition, genErr := range stream.GeneratePartitions(ctx) {
		if genErr != nil {
			return e.fail(ctx, stream, genErr)
		}
		if pushErr := e.queue.Push(ctx, &PartitionItem{Partition: partition}); pushErr != nil {
			return pushErr
		}
	}

	return e.queue.Push(ctx, &PartitionGenerationCompletedSentinel{Stream: stream})
}

func (e *PartitionEnqueuer) fail(ctx context.Context, stream core.Stream, cause error) error {
	err := errors.Wrap(cause, errors.ErrorTypeWorker,
		fmt.Sprintf("generating partitions for stream %s", stream.Name())).
		WithDetail("stream", stream.Name())
	if pushErr := e.queue.Push(ctx, &ExceptionItem{Err: err, StreamName: stream.Name()}); pushErr != nil {
		return errors.Wrap(pushErr, errors.ErrorTypePipeline, err.Error())
	}
	return err
}
