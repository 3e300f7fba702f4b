package gateway

import (
	"context"
	"fmt"

	"cloudfile/internal/storage/cache"
	"cloudfile/internal/storage/object"
	"cloudfile/pkg/config"
	"cloudfile/pkg/log"
	"cloudfile/pkg/utils"
)

// Manager 按配置为每个后端实例构造一个 Gateway，共享同一缓存
type Manager struct {
	gateways map[string]*Gateway
	cfg      *config.Config
	cache    cache.Store
}

// NewManager 从配置构造全部网关；任一后端配置非法即失败
func NewManager(ctx context.Context, cfg *config.Config, logger *log.Logger, opts ...Option) (*Manager, error) {
	if logger == nil {
		logger = log.Nop()
	}
	m := &Manager{gateways: make(map[string]*Gateway, len(cfg.Adapters)), cfg: cfg}
	if cfg.Gateway.CacheEnabled() {
		store, err := cache.NewCache(ctx, cfg.Cache)
		if err != nil {
			return nil, fmt.Errorf("init cache: %w", err)
		}
		m.cache = store
	}
	base := []Option{
		WithCache(m.cache),
		WithLogger(logger),
		WithCredentialTTL(cfg.Gateway.CredentialTTL),
		WithLinkExpires(cfg.Gateway.LinkExpires),
	}
	for name := range cfg.Adapters {
		_, a, err := cfg.Adapter(name)
		if err != nil {
			m.Close()
			return nil, err
		}
		g, err := New(ctx, a.Adapter, object.BackendConfig(a.Config), append(append([]Option{}, base...), opts...)...)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("adapter %s: %w", name, err)
		}
		g.logger = g.logger.With("name", name)
		m.gateways[name] = g
	}
	return m, nil
}

// Get 按名称取网关；name 为空时取默认后端
func (m *Manager) Get(name string) (*Gateway, error) {
	name, _, err := m.cfg.Adapter(name)
	if err != nil {
		return nil, err
	}
	g, ok := m.gateways[name]
	if !ok {
		return nil, fmt.Errorf("adapter %q not configured", name)
	}
	return g, nil
}

// Names 已配置的后端实例名（排序）
func (m *Manager) Names() []string {
	return utils.SortedKeys(m.gateways)
}

// Close 关闭共享缓存
func (m *Manager) Close() error {
	if m.cache == nil {
		return nil
	}
	return m.cache.Close()
}
