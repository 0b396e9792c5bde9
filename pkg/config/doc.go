// Package config provides unified configuration management for sync runs.
//
// A sync is described by a single SyncConfig: how many workers the pool may
// run, how many streams may generate partitions at the same time, how the
// shared queue is bounded, how often checkpoints are emitted and what to do
// when the catalog references a stream the connector does not declare.
//
// # Loading
//
//	cfg, err := config.LoadSyncConfig("sync.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// LoadSyncConfig starts from NewSyncConfig defaults, overlays the YAML file
// and validates the result.
//
// # Environment Variable Substitution
//
// Any ${VAR_NAME} reference in a YAML file is replaced with the value of the
// environment variable before parsing:
//
//	source:
//	  type: jsonl
//	  streams:
//	    - name: events
//	      glob: ${DATA_DIR}/events/*.jsonl.gz
//
// # Unknown Streams
//
// catalog.unknown_stream_policy has no default. Validate rejects an empty
// value so that the embedding application decides between "fail" and "skip".
package config
