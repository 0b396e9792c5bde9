// Package json provides pooled JSON encoding of output messages and record
// decoding, backed by goccy/go-json.
package json

import (
	"bufio"
	"bytes"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/nebula-cdk/pkg/errors"
)

// Number is a JSON number kept as its literal text
type Number = gojson.Number

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// GetBuffer gets a pooled bytes.Buffer
func GetBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1024*1024 { // Don't pool very large buffers
		return
	}
	bufferPool.Put(buf)
}

// Marshal is a drop-in replacement for json.Marshal
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is a drop-in replacement for json.Unmarshal
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// DecodeObject decodes exactly one JSON object. Numbers are kept as Number
// so large integer ids survive the round trip. A null value or anything
// after the object is a data error.
func DecodeObject(data []byte) (map[string]interface{}, error) {
	dec := gojson.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New(errors.ErrorTypeData, "expected a JSON object, got null")
	}

	var extra interface{}
	if err := dec.Decode(&extra); err != io.EOF {
		return nil, errors.New(errors.ErrorTypeData, "unexpected data after JSON object")
	}
	return obj, nil
}

// LineWriter writes values as line-delimited JSON. It is safe for
// concurrent use and buffers output until Flush.
type LineWriter struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewLineWriter creates a LineWriter over w
func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: bufio.NewWriterSize(w, 64*1024)}
}

// Write encodes v followed by a newline
func (lw *LineWriter) Write(v interface{}) error {
	buf := GetBuffer()
	defer PutBuffer(buf)

	enc := gojson.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}

	lw.mu.Lock()
	defer lw.mu.Unlock()
	_, err := lw.w.Write(buf.Bytes())
	return err
}

// Flush writes buffered lines to the underlying writer
func (lw *LineWriter) Flush() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Flush()
}
