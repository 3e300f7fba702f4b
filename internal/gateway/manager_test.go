package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudfile/internal/storage/object"
	"cloudfile/pkg/config"
)

func TestManager_BuildsConfiguredGateways(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		Gateway: config.GatewayConfig{Default: "primary", CredentialTTL: 1800, LinkExpires: 600},
		Adapters: map[string]config.AdapterConfig{
			"primary": {Adapter: "local", Config: map[string]string{"root": t.TempDir()}},
			"archive": {Adapter: "disk", Config: map[string]string{"root": t.TempDir()}},
		},
		Cache: config.CacheConfig{Type: "lru", Size: 64},
	}
	m, err := NewManager(ctx, cfg, nil)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, []string{"archive", "primary"}, m.Names())

	def, err := m.Get("")
	require.NoError(t, err)
	primary, err := m.Get("primary")
	require.NoError(t, err)
	assert.Same(t, def, primary)
	assert.Equal(t, object.AdapterLocal, def.Adapter())
	assert.Equal(t, int64(1800), def.NewPolicy("x/").TTL)
	assert.NotNil(t, def.cache)

	archive, err := m.Get("archive")
	require.NoError(t, err)
	assert.NotEqual(t, primary.prefix, archive.prefix)

	_, err = m.Get("missing")
	assert.Error(t, err)
}

func TestManager_InvalidAdapter(t *testing.T) {
	cfg := &config.Config{
		Adapters: map[string]config.AdapterConfig{
			"oss": {Config: map[string]string{"bucket": "b"}},
		},
	}
	_, err := NewManager(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, object.ErrInvalidAdapterConfig)
}

func TestManager_CacheDisabled(t *testing.T) {
	off := false
	cfg := &config.Config{
		Gateway: config.GatewayConfig{Cache: &off},
		Adapters: map[string]config.AdapterConfig{
			"local": {Config: map[string]string{"root": t.TempDir()}},
		},
	}
	m, err := NewManager(context.Background(), cfg, nil)
	require.NoError(t, err)
	g, err := m.Get("")
	require.NoError(t, err)
	assert.Nil(t, g.cache)
	assert.NoError(t, m.Close())
}
