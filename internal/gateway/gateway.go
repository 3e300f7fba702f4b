// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package gateway 存储网关门面：适配器选择、临时凭证签发与缓存、链接签发与公共域名直出、
// 分片上传下载，以及凭证到一次性后端配置的翻译。
package gateway

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"cloudfile/internal/storage/cache"
	"cloudfile/internal/storage/object"
	"cloudfile/pkg/log"
	"cloudfile/pkg/metrics"
)

// 缓存安全余量（秒）：缓存项在真实过期前一分钟失效。两者独立可调。
const (
	CredentialCacheMargin int64 = 60
	LinkCacheMargin       int64 = 60
)

// DefaultLinkExpires 未指定时的链接有效期（秒）
const DefaultLinkExpires int64 = 3600

// Gateway 单个后端实例的统一入口
type Gateway struct {
	adapter       object.Adapter
	config        object.BackendConfig
	registry      *Registry
	drivers       Drivers
	cache         cache.Store
	prefix        string
	logger        *log.Logger
	now           func() time.Time
	credentialTTL int64
	linkExpires   int64

	// publicDomain 仅由链接签发路径写入（惰性发现），其余路径只读
	publicDomain atomic.Pointer[string]
}

// Option 可选配置
type Option func(*Gateway)

// WithCache 指定缓存；nil 表示不缓存
func WithCache(store cache.Store) Option {
	return func(g *Gateway) {
		g.cache = store
	}
}

// WithLogger 指定日志
func WithLogger(l *log.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithRegistry 指定驱动注册表
func WithRegistry(r *Registry) Option {
	return func(g *Gateway) {
		if r != nil {
			g.registry = r
		}
	}
}

// WithClock 替换时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// WithCredentialTTL 设置 NewPolicy 的默认凭证有效期（秒）
func WithCredentialTTL(ttl int64) Option {
	return func(g *Gateway) {
		if ttl > 0 {
			g.credentialTTL = ttl
		}
	}
}

// WithLinkExpires 设置 GetLinks 未指定有效期时的默认值（秒）
func WithLinkExpires(expires int64) Option {
	return func(g *Gateway) {
		if expires > 0 {
			g.linkExpires = expires
		}
	}
}

// New 解析适配器、校验配置并通过注册表构造驱动；失败时不产生任何网络调用
func New(ctx context.Context, adapter string, cfg object.BackendConfig, opts ...Option) (*Gateway, error) {
	a, err := object.ResolveAdapter(adapter)
	if err != nil {
		return nil, err
	}
	cfg, err = object.ValidateConfig(a, cfg)
	if err != nil {
		return nil, err
	}
	g := &Gateway{
		adapter:       a,
		config:        cfg.Clone(),
		registry:      DefaultRegistry(),
		cache:         cache.NewMemoryStore(),
		logger:        log.Nop(),
		now:           time.Now,
		credentialTTL: object.DefaultCredentialTTL,
		linkExpires:   DefaultLinkExpires,
	}
	for _, o := range opts {
		o(g)
	}
	factory, ok := g.registry.Lookup(a)
	if !ok {
		return nil, object.NewOperationError(object.ErrDriverNotRegistered, "new", a.String(), nil)
	}
	g.drivers, err = factory(ctx, a, g.config)
	if err != nil {
		return nil, err
	}
	g.prefix = "cloudfile:" + object.HashKey(a, g.config)[:16] + ":"
	g.logger = g.logger.With("adapter", a.String())
	if domain := strings.TrimSuffix(g.config.Get(object.KeyPublicDomain), "/"); domain != "" {
		g.publicDomain.Store(&domain)
	}
	return g, nil
}

// Adapter 返回规范适配器
func (g *Gateway) Adapter() object.Adapter {
	return g.adapter
}

// PublicDomain 返回已知的公共域名，未知时为空
func (g *Gateway) PublicDomain() string {
	if p := g.publicDomain.Load(); p != nil {
		return *p
	}
	return ""
}

// PublicRead 后端是否配置为公共读
func (g *Gateway) PublicRead() bool {
	return g.config.Bool(object.KeyPublicRead)
}

// NewPolicy 以网关默认有效期创建目录凭证策略
func (g *Gateway) NewPolicy(dir string) object.CredentialPolicy {
	p := object.NewCredentialPolicy(dir)
	p.TTL = g.credentialTTL
	return p
}

// cacheTTL 缓存有效期 = 过期时间 - 当前时间 - 余量，最小为 1 秒
func cacheTTL(expiresAt, now, margin int64) int64 {
	ttl := expiresAt - now - margin
	if ttl < 1 {
		return 1
	}
	return ttl
}

func (g *Gateway) cacheKey(key string) string {
	return g.prefix + key
}

// cacheGet 命中返回 true；缓存故障按未命中处理
func (g *Gateway) cacheGet(ctx context.Context, kind, key string, dest any) bool {
	err := g.cache.Get(ctx, key, dest)
	switch {
	case err == nil:
		metrics.CacheRequests.WithLabelValues(kind, "hit").Inc()
		return true
	case cache.IsMiss(err):
		metrics.CacheRequests.WithLabelValues(kind, "miss").Inc()
	default:
		metrics.CacheRequests.WithLabelValues(kind, "error").Inc()
		g.logger.Warn("cache get failed, treating as miss", "kind", kind, "error", err)
	}
	return false
}

func (g *Gateway) cacheSet(ctx context.Context, kind, key string, value any, ttlSeconds int64) {
	if err := g.cache.Set(ctx, key, value, time.Duration(ttlSeconds)*time.Second); err != nil {
		g.logger.Warn("cache set failed", "kind", kind, "error", err)
	}
}

func (g *Gateway) expandDriver(op string) (object.ExpandDriver, error) {
	if g.drivers.Expand == nil {
		return nil, object.NewOperationError(object.ErrDriverNotRegistered, op, "expand driver for "+g.adapter.String(), nil)
	}
	return g.drivers.Expand, nil
}

func (g *Gateway) simpleDriver(op string) (object.SimpleUploadDriver, error) {
	if g.drivers.Simple == nil {
		return nil, object.NewOperationError(object.ErrDriverNotRegistered, op, "simple upload driver for "+g.adapter.String(), nil)
	}
	return g.drivers.Simple, nil
}

func (g *Gateway) filesystem(op string) (object.Filesystem, error) {
	if g.drivers.Filesystem == nil {
		return nil, object.NewOperationError(object.ErrDriverNotRegistered, op, "filesystem for "+g.adapter.String(), nil)
	}
	return g.drivers.Filesystem, nil
}
