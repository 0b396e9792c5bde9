// Package nebula is a connector development kit for reading many streams of
// a data source concurrently while emitting records, checkpoints and stream
// status messages in an order a downstream destination can trust.
//
// # Architecture
//
// A sync is driven by a single loop that owns all per-stream bookkeeping.
// Worker goroutines generate the partitions of a stream and read the records
// of a partition; they never touch stream state. Everything they produce
// flows through one bounded queue to the loop:
//
//	generator jobs ──┐
//	                 ├──> queue ──> drain loop ──> handler ──> output
//	reader jobs ─────┘
//
// The handler emits a stream's final checkpoint and COMPLETE status only
// after every partition of the stream has been read, so state never
// overtakes the records it describes.
//
// # Quick Start
//
//	cfg, err := config.LoadSyncConfig("sync.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	source, err := registry.CreateSource(cfg.Source.Type, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cs, err := concurrent.NewConcurrentSource(source, cfg, logger.Get())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = cs.Run(ctx, catalog, func(msg core.Message) error {
//	    return out.Write(msg)
//	})
//
// # Key Packages
//
//	pkg/concurrent   - Queue, worker pool, partition enqueuer/reader and the drain loop
//	pkg/connector    - Source and stream interfaces, registry and bundled connectors
//	pkg/config       - Sync configuration loaded from YAML
//	pkg/cursor       - Cursor-based state tracking
//	pkg/compression  - Codecs for compressed source files
//	pkg/errors       - Structured error handling
//	pkg/logger       - Structured logging
//	pkg/metrics      - Prometheus metrics
//	pkg/observability - OpenTelemetry tracing of worker jobs
//
// The nebula-cdk command in cmd/nebula-cdk runs a configured sync and writes
// its messages to stdout as JSON lines.
package nebula
