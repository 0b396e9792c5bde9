package jsonl

import (
	"github.com/ajitpratap0/nebula-cdk/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterSource(registry.ConnectorInfo{
		Name:        ConnectorName,
		Description: "Line-delimited JSON files; one stream per glob, one partition per file, compressed files supported",
		Version:     "1.0.0",
	}, NewSource)
}
