// Package registry maps connector names to source factories so the CLI can
// build the source named in a sync configuration.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-cdk/pkg/config"
	"github.com/ajitpratap0/nebula-cdk/pkg/connector/core"
	"github.com/ajitpratap0/nebula-cdk/pkg/errors"
	"github.com/ajitpratap0/nebula-cdk/pkg/logger"
)

// SourceFactory creates a source from the sync configuration
type SourceFactory func(cfg *config.SyncConfig) (core.Source, error)

// ConnectorInfo describes a registered connector
type ConnectorInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

type registration struct {
	factory SourceFactory
	info    ConnectorInfo
}

// Registry manages connector registration and instantiation
type Registry struct {
	sources map[string]registration
	mu      sync.RWMutex
	logger  *zap.Logger
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates a new connector registry
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[string]registration),
		logger:  logger.Get().With(zap.String("component", "connector_registry")),
	}
}

// RegisterSource registers a source connector factory
func (r *Registry) RegisterSource(info ConnectorInfo, factory SourceFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "source connector name is required")
	}
	if _, exists := r.sources[info.Name]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("source connector %s already registered", info.Name))
	}

	r.sources[info.Name] = registration{factory: factory, info: info}
	r.logger.Debug("source connector registered", zap.String("name", info.Name))
	return nil
}

// CreateSource creates a source connector instance
func (r *Registry) CreateSource(name string, cfg *config.SyncConfig) (core.Source, error) {
	r.mu.RLock()
	reg, exists := r.sources[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("source connector %s not found", name))
	}

	source, err := reg.factory(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("failed to create source connector %s", name))
	}

	return source, nil
}

// ListSources returns the registered connectors sorted by name
func (r *Registry) ListSources() []ConnectorInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ConnectorInfo, 0, len(r.sources))
	for _, reg := range r.sources {
		infos = append(infos, reg.info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// HasSource checks if a source connector is registered
func (r *Registry) HasSource(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.sources[name]
	return exists
}

// Clear removes all registered connectors
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sources = make(map[string]registration)
}

// RegisterSource registers a source connector in the global registry
func RegisterSource(info ConnectorInfo, factory SourceFactory) error {
	return globalRegistry.RegisterSource(info, factory)
}

// CreateSource creates a source connector from the global registry
func CreateSource(name string, cfg *config.SyncConfig) (core.Source, error) {
	return globalRegistry.CreateSource(name, cfg)
}

// ListSources lists the connectors of the global registry
func ListSources() []ConnectorInfo {
	return globalRegistry.ListSources()
}

// HasSource checks if a source connector is registered globally
func HasSource(name string) bool {
	return globalRegistry.HasSource(name)
}

// GetRegistry returns the global registry instance
func GetRegistry() *Registry {
	return globalRegistry
}
