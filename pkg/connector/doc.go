// Package connector groups the pieces a source connector is built from.
//
//   - core: the Source, Stream and Partition interfaces together with the
//     catalog and message types the concurrent source exchanges with them.
//
//   - registry: maps connector names to factories. Connectors register
//     themselves from an init function, so importing a connector package for
//     its side effects makes it available to the CLI.
//
//   - sources: bundled connectors. The jsonl connector exposes one stream per
//     glob of line-delimited JSON files and reads each file as a partition.
//
// A connector only describes how to enumerate partitions and read records.
// Scheduling, ordering and checkpointing are the job of pkg/concurrent.
package connector
