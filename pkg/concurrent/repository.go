package concurrent

import (
	"sync"

	"github.com/ajitpratap0/nebula-cdk/pkg/connector/core"
)

// MessageRepository collects messages that are not tied to a queue item,
// such as log lines emitted by streams, so the driver can interleave them
// into the output.
type MessageRepository interface {
	Emit(message core.Message)
	Drain() []core.Message
}

// InMemoryMessageRepository is a MessageRepository backed by a slice. It is
// safe for concurrent use.
type InMemoryMessageRepository struct {
	mu       sync.Mutex
	messages []core.Message
}

// NewInMemoryMessageRepository creates an empty repository
func NewInMemoryMessageRepository() *InMemoryMessageRepository {
	return &InMemoryMessageRepository{}
}

// Emit appends a message
func (r *InMemoryMessageRepository) Emit(message core.Message) {
	r.mu.Lock()
	r.messages = append(r.messages, message)
	r.mu.Unlock()
}

// Drain returns the buffered messages in emit order and empties the repository
func (r *InMemoryMessageRepository) Drain() []core.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return nil
	}
	out := r.messages
	r.messages = nil
	return out
}
