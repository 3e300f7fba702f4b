// Copyright 2026 fanjia1024
// Secret management abstraction

// Package secrets 后端凭证（access secret / sk / key）的外部存放与解析
package secrets

import (
	"context"
	"fmt"
	"strings"
)

// RefPrefix 配置值以此前缀开头时视为 secret 引用
const RefPrefix = "secret:"

// Store Secret 存储接口
type Store interface {
	// Get 获取 secret 值
	Get(ctx context.Context, key string) (string, error)

	// Set 设置 secret 值
	Set(ctx context.Context, key string, value string) error

	// Delete 删除 secret
	Delete(ctx context.Context, key string) error

	// List 列出所有 secret keys
	List(ctx context.Context, prefix string) ([]string, error)
}

// Config Secret Store 配置
type Config struct {
	Provider   string `mapstructure:"provider"`    // vault | file | env | memory
	Address    string `mapstructure:"address"`     // vault 地址
	Token      string `mapstructure:"token"`       // vault token
	PathPrefix string `mapstructure:"path_prefix"` // vault KV 挂载点 / file 根目录 / env 前缀
}

// NewStore 创建 Secret Store
func NewStore(config Config) (Store, error) {
	switch strings.ToLower(config.Provider) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "env":
		return NewEnvStore(config.PathPrefix), nil
	case "file", "k8s":
		return NewFileStore(config.PathPrefix)
	case "vault":
		return NewVaultStore(VaultConfig{
			Address:    config.Address,
			Token:      config.Token,
			PathPrefix: config.PathPrefix,
		})
	default:
		return nil, fmt.Errorf("unsupported secret provider: %s", config.Provider)
	}
}

// IsRef 判断配置值是否为 secret 引用
func IsRef(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), RefPrefix)
}

// Resolve 解析 secret:<key> 引用；非引用原样返回
func Resolve(ctx context.Context, store Store, value string) (string, error) {
	if !IsRef(value) {
		return value, nil
	}
	key := strings.TrimPrefix(strings.TrimSpace(value), RefPrefix)
	if key == "" {
		return "", fmt.Errorf("empty secret reference")
	}
	if store == nil {
		return "", fmt.Errorf("secret %s referenced but no secret store configured", key)
	}
	v, err := store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("resolve secret %s: %w", key, err)
	}
	return strings.TrimSpace(v), nil
}

// ResolveMap 就地解析 map 中所有引用
func ResolveMap(ctx context.Context, store Store, values map[string]string) error {
	for k, v := range values {
		resolved, err := Resolve(ctx, store, v)
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		values[k] = resolved
	}
	return nil
}
