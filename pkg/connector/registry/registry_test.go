package registry

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-cdk/pkg/config"
	"github.com/ajitpratap0/nebula-cdk/pkg/connector/core"
	"github.com/ajitpratap0/nebula-cdk/pkg/errors"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	factory := func(cfg *config.SyncConfig) (core.Source, error) {
		return core.NewStaticSource(cfg.Name), nil
	}

	require.NoError(t, r.RegisterSource(ConnectorInfo{Name: "b"}, factory))
	require.NoError(t, r.RegisterSource(ConnectorInfo{Name: "a", Description: "first"}, factory))
	assert.Error(t, r.RegisterSource(ConnectorInfo{Name: "a"}, factory), "duplicate name")
	assert.Error(t, r.RegisterSource(ConnectorInfo{}, factory), "empty name")

	assert.True(t, r.HasSource("a"))
	assert.False(t, r.HasSource("c"))

	infos := r.ListSources()
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].Name)
	assert.Equal(t, "first", infos[0].Description)

	src, err := r.CreateSource("a", config.NewSyncConfig("demo"))
	require.NoError(t, err)
	assert.Equal(t, "demo", src.Name())

	_, err = r.CreateSource("c", config.NewSyncConfig("demo"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	r.Clear()
	assert.Empty(t, r.ListSources())
}

func TestCreateSourceWrapsFactoryErrors(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterSource(ConnectorInfo{Name: "broken"}, func(*config.SyncConfig) (core.Source, error) {
		return nil, fmt.Errorf("missing glob")
	}))

	_, err := r.CreateSource("broken", config.NewSyncConfig("demo"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing glob")
}
