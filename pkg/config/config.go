// Package config provides the unified configuration system for the kit.
// It defines a single SyncConfig structure that the concurrent source and
// the bundled connectors read, so every knob lives in one place.
//
// The configuration is organized into logical sections:
//   - Concurrency: worker pool size and partition-generator concurrency
//   - Queue: capacity and the push/pop liveness timeouts
//   - Checkpoint: records-per-checkpoint default
//   - Catalog: how unknown catalog streams are treated
//   - Observability: logging, metrics and tracing
//   - Source: connector type and its stream definitions
//
// Example usage:
//
//	cfg := config.NewSyncConfig("users-sync")
//	cfg.Catalog.UnknownStreamPolicy = config.UnknownStreamFail
//	cfg.Concurrency.MaxWorkers = 8
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"runtime"
	"time"
)

// UnknownStreamPolicy decides what happens when the catalog names a stream
// the connector does not declare.
type UnknownStreamPolicy string

const (
	// UnknownStreamFail aborts the sync with a configuration error
	UnknownStreamFail UnknownStreamPolicy = "fail"
	// UnknownStreamSkip logs a warning and drops the catalog entry
	UnknownStreamSkip UnknownStreamPolicy = "skip"
)

const (
	// DefaultQueuePopTimeout guards the drain loop against a wedged pool
	DefaultQueuePopTimeout = 300 * time.Second
	// DefaultQueueCapacity bounds the number of in-flight queue items
	DefaultQueueCapacity = 10000
)

// SyncConfig is the single configuration structure for a sync run.
type SyncConfig struct {
	// Name identifies the sync
	Name string `yaml:"name" json:"name"`
	// Version indicates the configuration version
	Version string `yaml:"version" json:"version"`

	Concurrency   ConcurrencyConfig   `yaml:"concurrency" json:"concurrency"`
	Queue         QueueConfig         `yaml:"queue" json:"queue"`
	Checkpoint    CheckpointConfig    `yaml:"checkpoint" json:"checkpoint"`
	Catalog       CatalogConfig       `yaml:"catalog" json:"catalog"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
	Source        SourceConfig        `yaml:"source" json:"source"`
}

// ConcurrencyConfig bounds the worker pool.
type ConcurrencyConfig struct {
	// MaxWorkers is the maximum number of jobs (generators and readers) running at once
	MaxWorkers int `yaml:"max_workers" json:"max_workers"`
	// MaxConcurrentGenerators is the number of streams generating partitions at once
	MaxConcurrentGenerators int `yaml:"max_concurrent_generators" json:"max_concurrent_generators"`
}

// QueueConfig configures the shared queue between workers and the drain loop.
type QueueConfig struct {
	// Capacity bounds the queue; a full queue blocks producers
	Capacity int `yaml:"capacity" json:"capacity"`
	// PopTimeout is how long the drain loop waits for an item before declaring the pipeline stuck
	PopTimeout time.Duration `yaml:"pop_timeout" json:"pop_timeout"`
	// PushTimeout is how long a worker waits on a full queue before failing its job
	PushTimeout time.Duration `yaml:"push_timeout" json:"push_timeout"`
}

// CheckpointConfig controls intermediate state messages.
type CheckpointConfig struct {
	// Interval emits a state message every Interval records of a stream; 0 disables
	// intermediate checkpoints (a final one is always emitted)
	Interval int `yaml:"interval" json:"interval"`
}

// CatalogConfig controls catalog resolution.
type CatalogConfig struct {
	// UnknownStreamPolicy must be set explicitly; there is no default
	UnknownStreamPolicy UnknownStreamPolicy `yaml:"unknown_stream_policy" json:"unknown_stream_policy"`
}

// ObservabilityConfig contains monitoring and observability settings.
type ObservabilityConfig struct {
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
	// LogEncoding selects json or console
	LogEncoding string `yaml:"log_encoding" json:"log_encoding"`
	// EnableMetrics serves Prometheus metrics on MetricsAddr
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// MetricsAddr is the listen address of the metrics endpoint
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
	// EnableTracing exports worker job spans
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate"`
}

// NewSyncConfig creates a SyncConfig with production defaults. The unknown
// stream policy is intentionally left empty: the embedding application has
// to pick one.
func NewSyncConfig(name string) *SyncConfig {
	return &SyncConfig{
		Name:    name,
		Version: "1.0.0",
		Concurrency: ConcurrencyConfig{
			MaxWorkers:              runtime.NumCPU(),
			MaxConcurrentGenerators: 1,
		},
		Queue: QueueConfig{
			Capacity:    DefaultQueueCapacity,
			PopTimeout:  DefaultQueuePopTimeout,
			PushTimeout: DefaultQueuePopTimeout,
		},
		Checkpoint: CheckpointConfig{
			Interval: 1000,
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogEncoding:       "json",
			MetricsAddr:       ":9090",
			TracingSampleRate: 0.1,
		},
	}
}

// Validate validates the configuration for correctness.
func (c *SyncConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Concurrency.MaxWorkers <= 0 {
		return fmt.Errorf("concurrency.max_workers must be positive")
	}
	if c.Concurrency.MaxConcurrentGenerators <= 0 {
		return fmt.Errorf("concurrency.max_concurrent_generators must be positive")
	}
	if c.Concurrency.MaxConcurrentGenerators > c.Concurrency.MaxWorkers {
		return fmt.Errorf("concurrency.max_concurrent_generators (%d) cannot exceed max_workers (%d)",
			c.Concurrency.MaxConcurrentGenerators, c.Concurrency.MaxWorkers)
	}
	if c.Queue.Capacity <= 0 {
		return fmt.Errorf("queue.capacity must be positive")
	}
	if c.Queue.PopTimeout <= 0 {
		return fmt.Errorf("queue.pop_timeout must be positive")
	}
	if c.Queue.PushTimeout <= 0 {
		return fmt.Errorf("queue.push_timeout must be positive")
	}
	if c.Checkpoint.Interval < 0 {
		return fmt.Errorf("checkpoint.interval cannot be negative")
	}
	switch c.Catalog.UnknownStreamPolicy {
	case UnknownStreamFail, UnknownStreamSkip:
	case "":
		return fmt.Errorf("catalog.unknown_stream_policy must be set to %q or %q", UnknownStreamFail, UnknownStreamSkip)
	default:
		return fmt.Errorf("catalog.unknown_stream_policy %q is not supported", c.Catalog.UnknownStreamPolicy)
	}
	return nil
}

// GetWorkers returns the number of workers, ensuring it's at least 1
func (c *ConcurrencyConfig) GetWorkers() int {
	if c.MaxWorkers <= 0 {
		return runtime.NumCPU()
	}
	return c.MaxWorkers
}

// GetGenerators returns the generator concurrency, ensuring it's at least 1
func (c *ConcurrencyConfig) GetGenerators() int {
	if c.MaxConcurrentGenerators <= 0 {
		return 1
	}
	return c.MaxConcurrentGenerators
}
