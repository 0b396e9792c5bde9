// Package jsonl implements a file-backed source: every configured stream is
// a glob of line-delimited JSON files and every matching file is read as one
// partition. Files may be compressed with any codec pkg/compression knows.
package jsonl

import (
	"bufio"
	"context"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"sort"

	"github.com/ajitpratap0/nebula-cdk/pkg/compression"
	"github.com/ajitpratap0/nebula-cdk/pkg/config"
	"github.com/ajitpratap0/nebula-cdk/pkg/connector/core"
	"github.com/ajitpratap0/nebula-cdk/pkg/cursor"
	"github.com/ajitpratap0/nebula-cdk/pkg/errors"
	jsonpool "github.com/ajitpratap0/nebula-cdk/pkg/json"
)

// ConnectorName is the registry name of the connector
const ConnectorName = "jsonl"

// maxLineSize bounds a single JSON line
const maxLineSize = 16 * 1024 * 1024

// Source declares one Stream per configured file stream
type Source struct {
	streams []core.Stream
}

// NewSource builds the source from cfg.Source.Streams
func NewSource(cfg *config.SyncConfig) (core.Source, error) {
	if len(cfg.Source.Streams) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "jsonl source needs at least one stream")
	}

	seen := make(map[string]struct{}, len(cfg.Source.Streams))
	streams := make([]core.Stream, 0, len(cfg.Source.Streams))
	for _, sc := range cfg.Source.Streams {
		if sc.Name == "" || sc.Glob == "" {
			return nil, errors.New(errors.ErrorTypeConfig, "jsonl streams need a name and a glob")
		}
		if _, dup := seen[sc.Name]; dup {
			return nil, errors.Newf(errors.ErrorTypeConfig, "stream %s declared twice", sc.Name)
		}
		seen[sc.Name] = struct{}{}

		stream, err := NewStream(sc)
		if err != nil {
			return nil, err
		}
		streams = append(streams, stream)
	}
	return &Source{streams: streams}, nil
}

// Name implements core.Source
func (s *Source) Name() string { return ConnectorName }

// Streams implements core.Source
func (s *Source) Streams(context.Context) ([]core.Stream, error) { return s.streams, nil }

// Stream reads the files matching a glob
type Stream struct {
	cfg         config.FileStreamConfig
	compression compression.Algorithm
	cursor      *cursor.MaxCursor
}

// NewStream creates a stream from its configuration
func NewStream(cfg config.FileStreamConfig) (*Stream, error) {
	if _, err := filepath.Match(cfg.Glob, ""); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("invalid glob for stream %s", cfg.Name))
	}
	alg, err := compression.Parse(cfg.Compression)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("stream %s", cfg.Name))
	}

	s := &Stream{cfg: cfg, compression: alg}
	if cfg.CursorField != "" {
		s.cursor = cursor.NewMaxCursor(cfg.CursorField)
	}
	return s, nil
}

// Name implements core.Stream
func (s *Stream) Name() string { return s.cfg.Name }

// CursorField implements core.CursorFielder
func (s *Stream) CursorField() string { return s.cfg.CursorField }

// CheckpointInterval implements core.CheckpointIntervaler
func (s *Stream) CheckpointInterval() int { return s.cfg.CheckpointInterval }

// CheckAvailability reports the stream unavailable when its glob matches no
// file, unless empty streams are allowed
func (s *Stream) CheckAvailability(context.Context) (bool, string) {
	files, err := s.files()
	if err != nil {
		return false, err.Error()
	}
	if len(files) == 0 && !s.cfg.AllowEmpty {
		return false, fmt.Sprintf("No file matches %s.", s.cfg.Glob)
	}
	return true, ""
}

// GeneratePartitions yields one partition per matching file in lexical order
func (s *Stream) GeneratePartitions(context.Context) iter.Seq2[core.Partition, error] {
	return func(yield func(core.Partition, error) bool) {
		files, err := s.files()
		if err != nil {
			yield(nil, err)
			return
		}
		for _, path := range files {
			if !yield(&FilePartition{stream: s.cfg.Name, path: path, compression: s.compression}, nil) {
				return
			}
		}
	}
}

// ComputeUpdatedState advances the cursor; streams without a cursor field
// keep no state
func (s *Stream) ComputeUpdatedState(current core.State, data core.RecordData) core.State {
	if s.cursor == nil {
		return current
	}
	return s.cursor.Update(current, data)
}

// BuildCheckpointMessage implements core.Stream
func (s *Stream) BuildCheckpointMessage(state core.State) core.Message {
	return core.NewStateMessage(s.cfg.Name, state)
}

func (s *Stream) files() ([]string, error) {
	files, err := filepath.Glob(s.cfg.Glob)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, fmt.Sprintf("listing files for stream %s", s.cfg.Name))
	}
	sort.Strings(files)
	return files, nil
}

// FilePartition is one file of a stream
type FilePartition struct {
	stream      string
	path        string
	compression compression.Algorithm
}

// StreamName implements core.Partition
func (p *FilePartition) StreamName() string { return p.stream }

// Slice implements core.Partition; the key is the file path
func (p *FilePartition) Slice() core.Slice { return core.StringSlice(p.path) }

// Path returns the file the partition reads
func (p *FilePartition) Path() string { return p.path }

// Read yields one record per non-empty line
func (p *FilePartition) Read(ctx context.Context) iter.Seq2[core.RecordData, error] {
	return func(yield func(core.RecordData, error) bool) {
		f, err := os.Open(p.path)
		if err != nil {
			yield(nil, errors.Wrap(err, errors.ErrorTypeFile, "opening partition file").WithDetail("file", p.path))
			return
		}
		defer f.Close()

		alg := p.compression
		if alg == "" {
			alg = compression.DetectFromPath(p.path)
		}
		r, err := compression.NewReader(alg, f)
		if err != nil {
			yield(nil, errors.Wrap(err, errors.ErrorTypeFile, fmt.Sprintf("opening %s stream", alg)).WithDetail("file", p.path))
			return
		}
		defer r.Close()

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

		line := 0
		for scanner.Scan() {
			line++
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			raw := scanner.Bytes()
			if len(raw) == 0 {
				continue
			}

			obj, err := jsonpool.DecodeObject(raw)
			if err != nil {
				yield(nil, errors.Wrap(err, errors.ErrorTypeData, fmt.Sprintf("failed to parse JSON on line %d", line)).
					WithDetail("file", p.path).
					WithDetail("line", line))
				return
			}
			if !yield(core.RecordData(obj), nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(nil, errors.Wrap(err, errors.ErrorTypeFile, "reading partition file").WithDetail("file", p.path))
		}
	}
}
