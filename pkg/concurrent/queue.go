package concurrent

import (
	"context"
	"time"

	"github.com/ajitpratap0/nebula-cdk/pkg/errors"
)

// ErrQueueTimeout is returned when a push waits longer than allowed or the
// drain loop sees no item within its pop timeout
var ErrQueueTimeout = errors.New(errors.ErrorTypeTimeout, "queue operation timed out")

// Queue is the bounded multi-producer, single-consumer handoff between
// workers and the drain loop. Items from one producer keep their order.
type Queue struct {
	items       chan QueueItem
	pushTimeout time.Duration
}

// NewQueue creates a queue holding at most capacity items. A producer that
// finds the queue full waits up to pushTimeout.
func NewQueue(capacity int, pushTimeout time.Duration) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		items:       make(chan QueueItem, capacity),
		pushTimeout: pushTimeout,
	}
}

// Push adds an item, blocking while the queue is full
func (q *Queue) Push(ctx context.Context, item QueueItem) error {
	select {
	case q.items <- item:
		return nil
	default:
	}

	timer := time.NewTimer(q.pushTimeout)
	defer timer.Stop()

	select {
	case q.items <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.Wrap(ErrQueueTimeout, errors.ErrorTypePipeline, "queue stayed full").
			WithDetail("push_timeout", q.pushTimeout.String())
	}
}

// Receive exposes the queue for a consumer that waits on other signals too
func (q *Queue) Receive() <-chan QueueItem {
	return q.items
}

// Len returns the number of queued items
func (q *Queue) Len() int {
	return len(q.items)
}

// Empty reports whether no item is queued
func (q *Queue) Empty() bool {
	return len(q.items) == 0
}

// Cap returns the queue's capacity
func (q *Queue) Cap() int {
	return cap(q.items)
}
