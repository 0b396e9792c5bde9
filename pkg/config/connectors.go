// Package config provides connector-specific configuration sections
package config

// SourceConfig selects the connector and declares its streams.
type SourceConfig struct {
	// Type is the registry name of the connector (e.g. "jsonl")
	Type string `yaml:"type" json:"type"`
	// Streams declares the streams the connector exposes
	Streams []FileStreamConfig `yaml:"streams" json:"streams"`
}

// FileStreamConfig declares one file-backed stream.
type FileStreamConfig struct {
	// Name of the stream as referenced by the catalog
	Name string `yaml:"name" json:"name" required:"true"`
	// Glob selects the files that make up the stream; one file is one partition
	Glob string `yaml:"glob" json:"glob" required:"true"`
	// CursorField names the record field tracked for checkpoints
	CursorField string `yaml:"cursor_field" json:"cursor_field"`
	// AllowEmpty keeps the stream available when the glob matches nothing
	AllowEmpty bool `yaml:"allow_empty" json:"allow_empty" default:"false"`
	// CheckpointInterval overrides checkpoint.interval for this stream when positive
	CheckpointInterval int `yaml:"checkpoint_interval" json:"checkpoint_interval" default:"0"`
	// Compression forces a codec instead of detecting it from the file extension
	Compression string `yaml:"compression" json:"compression"`
}
