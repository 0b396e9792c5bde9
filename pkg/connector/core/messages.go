package core

import "time"

// MessageType discriminates output messages
type MessageType string

const (
	MessageTypeRecord MessageType = "RECORD"
	MessageTypeState  MessageType = "STATE"
	MessageTypeLog    MessageType = "LOG"
	MessageTypeTrace  MessageType = "TRACE"
)

// LogLevel is the level of a LOG message
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// TraceType discriminates TRACE messages
type TraceType string

const (
	TraceTypeError        TraceType = "ERROR"
	TraceTypeStreamStatus TraceType = "STREAM_STATUS"
)

// StreamStatus is the lifecycle status reported for a stream
type StreamStatus string

const (
	StreamStatusStarted    StreamStatus = "STARTED"
	StreamStatusRunning    StreamStatus = "RUNNING"
	StreamStatusComplete   StreamStatus = "COMPLETE"
	StreamStatusIncomplete StreamStatus = "INCOMPLETE"
)

// Message is one element of the output sequence. Exactly one of the payload
// pointers matching Type is set.
type Message struct {
	Type   MessageType    `json:"type"`
	Record *RecordMessage `json:"record,omitempty"`
	State  *StateMessage  `json:"state,omitempty"`
	Log    *LogMessage    `json:"log,omitempty"`
	Trace  *TraceMessage  `json:"trace,omitempty"`
}

// RecordMessage carries one record
type RecordMessage struct {
	Stream    string     `json:"stream"`
	Data      RecordData `json:"data"`
	EmittedAt int64      `json:"emitted_at"`
}

// StateMessage checkpoints a stream
type StateMessage struct {
	Stream string `json:"stream"`
	Data   State  `json:"data"`
}

// LogMessage is a human readable status line
type LogMessage struct {
	Level   LogLevel `json:"level"`
	Message string   `json:"message"`
}

// TraceMessage reports errors and stream status changes
type TraceMessage struct {
	Type         TraceType          `json:"type"`
	EmittedAt    int64              `json:"emitted_at"`
	Error        *ErrorTrace        `json:"error,omitempty"`
	StreamStatus *StreamStatusTrace `json:"stream_status,omitempty"`
}

// ErrorTrace describes a failure
type ErrorTrace struct {
	Stream          string `json:"stream,omitempty"`
	Message         string `json:"message"`
	InternalMessage string `json:"internal_message,omitempty"`
}

// StreamStatusTrace describes a stream lifecycle transition
type StreamStatusTrace struct {
	Stream string       `json:"stream"`
	Status StreamStatus `json:"status"`
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// NewRecordMessage builds a RECORD message stamped with the current time
func NewRecordMessage(stream string, data RecordData) Message {
	return Message{
		Type:   MessageTypeRecord,
		Record: &RecordMessage{Stream: stream, Data: data, EmittedAt: nowMillis()},
	}
}

// NewStateMessage builds a STATE message for a stream
func NewStateMessage(stream string, state State) Message {
	return Message{
		Type:  MessageTypeState,
		State: &StateMessage{Stream: stream, Data: state},
	}
}

// NewLogMessage builds a LOG message
func NewLogMessage(level LogLevel, msg string) Message {
	return Message{
		Type: MessageTypeLog,
		Log:  &LogMessage{Level: level, Message: msg},
	}
}

// NewErrorTraceMessage builds an ERROR trace for a stream
func NewErrorTraceMessage(stream string, err error) Message {
	return Message{
		Type: MessageTypeTrace,
		Trace: &TraceMessage{
			Type:      TraceTypeError,
			EmittedAt: nowMillis(),
			Error: &ErrorTrace{
				Stream:          stream,
				Message:         "During the sync, the following streams did not sync successfully: " + stream,
				InternalMessage: err.Error(),
			},
		},
	}
}

// NewStreamStatusMessage builds a STREAM_STATUS trace
func NewStreamStatusMessage(stream string, status StreamStatus) Message {
	return Message{
		Type: MessageTypeTrace,
		Trace: &TraceMessage{
			Type:         TraceTypeStreamStatus,
			EmittedAt:    nowMillis(),
			StreamStatus: &StreamStatusTrace{Stream: stream, Status: status},
		},
	}
}

// IsStreamStatus reports whether m is a STREAM_STATUS trace with the given status
func (m Message) IsStreamStatus(status StreamStatus) bool {
	return m.Type == MessageTypeTrace && m.Trace != nil && m.Trace.StreamStatus != nil &&
		m.Trace.StreamStatus.Status == status
}

// StreamName returns the stream a message refers to, if any
func (m Message) StreamName() string {
	switch {
	case m.Record != nil:
		return m.Record.Stream
	case m.State != nil:
		return m.State.Stream
	case m.Trace != nil && m.Trace.StreamStatus != nil:
		return m.Trace.StreamStatus.Stream
	case m.Trace != nil && m.Trace.Error != nil:
		return m.Trace.Error.Stream
	}
	return ""
}
