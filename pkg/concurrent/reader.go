package concurrent

import (
	"context"
	"fmt"
	"iter"

	"github.com/ajitpratap0/nebula-cdk/pkg/connector/core"
	"github.com/ajitpratap0/nebula-cdk/pkg/errors"
)

// PartitionReader drains one partition's records onto the queue.
type PartitionReader struct {
	queue *Queue
}

// NewPartitionReader creates a reader pushing onto queue
func NewPartitionReader(queue *Queue) *PartitionReader {
	return &PartitionReader{queue: queue}
}

// ProcessPartition pushes every record of partition, then a
// PartitionCompleteSentinel. The last record is flagged with
// IsFinalRecordOfPartition. A read error pushes an ExceptionItem and no
// sentinel, so the partition stays pending.
func (r *PartitionReader) ProcessPartition(ctx context.Context, partition core.Partition) (err error) {
	next, stop := iter.Pull2(partition.Read(ctx))
	defer stop()

	defer func() {
		if rec := recover(); rec != nil {
			err = r.fail(ctx, partition, errors.Newf(errors.ErrorTypeWorker, "partition read panicked: %v", rec))
		}
	}()

	data, readErr, ok := next()
	for ok {
		if readErr != nil {
			return r.fail(ctx, partition, readErr)
		}

		// Look one ahead so the final record can be flagged. An error on the
		// lookahead still lets the current record through first.
		nextData, nextErr, nextOK := next()
		record := &Record{
			Partition:                partition,
			Data:                     data,
			IsFinalRecordOfPartition: !nextOK,
		}
		if pushErr := r.queue.Push(ctx, record); pushErr != nil {
			return pushErr
		}
		data, readErr, ok = nextData, nextErr, nextOK
	}

	return r.queue.Push(ctx, &PartitionCompleteSentinel{Partition: partition})
}

func (r *PartitionReader) fail(ctx context.Context, partition core.Partition, cause error) error {
	err := errors.Wrap(cause, errors.ErrorTypeWorker,
		fmt.Sprintf("reading partition %s of stream %s", partition.Slice().Key(), partition.StreamName())).
		WithDetail("stream", partition.StreamName()).
		WithDetail("slice", partition.Slice().Key())
	item := &ExceptionItem{Err: err, StreamName: partition.StreamName(), Partition: partition}
	if pushErr := r.queue.Push(ctx, item); pushErr != nil {
		return errors.Wrap(pushErr, errors.ErrorTypePipeline, err.Error())
	}
	return err
}
