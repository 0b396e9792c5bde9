// Package concurrent reads the streams of a source in parallel.
//
// ConcurrentSource drives a sync: it resolves the catalog against the streams
// the source declares, then runs a drain loop that pops items off a bounded
// Queue and hands them to a QueueItemHandler. Two kinds of job run on the
// ThreadPoolManager:
//
//   - generate:<stream> runs a PartitionEnqueuer, which pushes one
//     PartitionItem per partition followed by a
//     PartitionGenerationCompletedSentinel.
//   - read:<stream> runs a PartitionReader, which pushes one Record per
//     record followed by a PartitionCompleteSentinel.
//
// A failing job pushes an ExceptionItem instead of its sentinel. Only the
// drain loop mutates stream progress, so no lock guards it.
//
// The loop stops when every stream is done. It also stops early once a stream
// failed and the pool and queue are both empty, and it reports the pipeline
// as stuck when no item arrives within the queue pop timeout.
package concurrent
