package core

import (
	"context"
	"iter"
)

// SyncMode is how a catalog entry asks a stream to be read
type SyncMode string

const (
	SyncModeFullRefresh SyncMode = "full_refresh"
	SyncModeIncremental SyncMode = "incremental"
)

// Valid reports whether m is a known sync mode. An empty mode is accepted
// and means the stream's default.
func (m SyncMode) Valid() bool {
	switch m {
	case "", SyncModeFullRefresh, SyncModeIncremental:
		return true
	}
	return false
}

// RecordData is one raw record as produced by a partition
type RecordData map[string]interface{}

// State is a stream's replication progress, e.g. the latest cursor value
type State map[string]interface{}

// Clone returns a shallow copy of the state
func (s State) Clone() State {
	if s == nil {
		return nil
	}
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Slice is the connector-specific descriptor of a partition's scope. It is
// opaque to the engine apart from Key, which must be unique within a stream.
type Slice interface {
	Key() string
}

// StringSlice is a Slice that is its own key
type StringSlice string

// Key implements Slice
func (s StringSlice) Key() string { return string(s) }

// Partition is one unit of work of a stream. A partition is immutable and
// is read exactly once.
type Partition interface {
	// StreamName names the stream that generated the partition
	StreamName() string
	// Slice identifies the partition within its stream
	Slice() Slice
	// Read returns the partition's records. The sequence is finite and not
	// restartable; a non-nil error ends it.
	Read(ctx context.Context) iter.Seq2[RecordData, error]
}

// Stream is the contract a connector stream fulfils for the concurrent source.
type Stream interface {
	// Name identifies the stream in the catalog
	Name() string
	// CheckAvailability checks the stream before a generator is started. The
	// reason is reported when the stream is unavailable.
	CheckAvailability(ctx context.Context) (available bool, reason string)
	// GeneratePartitions returns the stream's partitions. Each call starts over.
	GeneratePartitions(ctx context.Context) iter.Seq2[Partition, error]
	// ComputeUpdatedState folds a record into the stream state
	ComputeUpdatedState(current State, data RecordData) State
	// BuildCheckpointMessage turns a state into the message that checkpoints it
	BuildCheckpointMessage(state State) Message
}

// CheckpointIntervaler is implemented by streams that override the configured
// records-per-checkpoint interval.
type CheckpointIntervaler interface {
	CheckpointInterval() int
}

// PartitionObserver is implemented by streams that want to know when a
// partition has been read to the end.
type PartitionObserver interface {
	// ObservePartitionClosed is called from the consumer goroutine once the
	// last record of the partition has been handled.
	ObservePartitionClosed(partition Partition)
}

// CursorFielder is implemented by streams that track a cursor field. The
// catalog may only name that field.
type CursorFielder interface {
	CursorField() string
}

// ConfiguredStream is one catalog entry
type ConfiguredStream struct {
	Name        string   `yaml:"name" json:"name"`
	SyncMode    SyncMode `yaml:"sync_mode" json:"sync_mode"`
	CursorField string   `yaml:"cursor_field,omitempty" json:"cursor_field,omitempty"`
}

// ConfiguredCatalog is the ordered list of streams to read
type ConfiguredCatalog struct {
	Streams []ConfiguredStream `yaml:"streams" json:"streams"`
}

// StreamNames returns the catalog's stream names in catalog order
func (c ConfiguredCatalog) StreamNames() []string {
	names := make([]string, 0, len(c.Streams))
	for _, s := range c.Streams {
		names = append(names, s.Name)
	}
	return names
}

// Source declares the streams a connector can read
type Source interface {
	// Name is the connector name
	Name() string
	// Streams returns the declared streams
	Streams(ctx context.Context) ([]Stream, error)
}

// MessageStream is the output of a sync run. Messages is closed when the run
// ends; Errors then carries at most one terminal error and is closed too.
type MessageStream struct {
	Messages <-chan Message
	Errors   <-chan error
}

// StaticSource is a Source over a fixed list of streams
type StaticSource struct {
	SourceName string
	StreamList []Stream
}

// NewStaticSource creates a Source declaring streams
func NewStaticSource(name string, streams ...Stream) *StaticSource {
	return &StaticSource{SourceName: name, StreamList: streams}
}

// Name implements Source
func (s *StaticSource) Name() string { return s.SourceName }

// Streams implements Source
func (s *StaticSource) Streams(context.Context) ([]Stream, error) { return s.StreamList, nil }
