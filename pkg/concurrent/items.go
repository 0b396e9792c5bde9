package concurrent

import (
	"github.com/ajitpratap0/nebula-cdk/pkg/connector/core"
)

// QueueItem is the closed set of values that flow through the shared queue.
// The unexported marker method keeps the set sealed to this package:
//   - *Record
//   - *PartitionItem
//   - *PartitionCompleteSentinel
//   - *PartitionGenerationCompletedSentinel
//   - *ExceptionItem
type QueueItem interface {
	queueItem()
}

// Record is one record read from a partition
type Record struct {
	Partition core.Partition
	Data      core.RecordData
	// IsFinalRecordOfPartition is set when the partition had nothing left
	// after this record
	IsFinalRecordOfPartition bool
}

// StreamName returns the name of the stream the record belongs to
func (r *Record) StreamName() string {
	return r.Partition.StreamName()
}

// PartitionItem announces a partition that is ready to be read
type PartitionItem struct {
	Partition core.Partition
}

// PartitionCompleteSentinel closes a partition that was read to the end
type PartitionCompleteSentinel struct {
	Partition core.Partition
}

// PartitionGenerationCompletedSentinel closes a stream's partition generator
type PartitionGenerationCompletedSentinel struct {
	Stream core.Stream
}

// ExceptionItem carries a worker failure as a value. Partition is nil when
// the failure happened while generating partitions.
type ExceptionItem struct {
	Err        error
	StreamName string
	Partition  core.Partition
}

func (*Record) queueItem()                               {}
func (*PartitionItem) queueItem()                        {}
func (*PartitionCompleteSentinel) queueItem()            {}
func (*PartitionGenerationCompletedSentinel) queueItem() {}
func (*ExceptionItem) queueItem()                        {}
