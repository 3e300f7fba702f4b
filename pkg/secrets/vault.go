// Copyright 2026 fanjia1024
// HashiCorp Vault secret store (KV v2)

package secrets

import (
	"context"
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// VaultConfig Vault 配置
type VaultConfig struct {
	Address    string // Vault server address (e.g., http://vault:8200)
	Token      string // Vault token，空则沿用 VAULT_TOKEN
	PathPrefix string // KV v2 挂载点，默认 secret
}

// vaultStore key 形如 path 或 path#field；field 缺省为 value
type vaultStore struct {
	client *vault.Client
	kv     *vault.KVv2
	mount  string
}

// NewVaultStore 创建 Vault secret store
func NewVaultStore(config VaultConfig) (Store, error) {
	cfg := vault.DefaultConfig()
	if config.Address != "" {
		cfg.Address = config.Address
	}
	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if config.Token != "" {
		client.SetToken(config.Token)
	}
	mount := strings.Trim(config.PathPrefix, "/")
	if mount == "" {
		mount = "secret"
	}
	return &vaultStore{client: client, kv: client.KVv2(mount), mount: mount}, nil
}

func splitField(key string) (string, string) {
	path, field, ok := strings.Cut(key, "#")
	if !ok || field == "" {
		return path, "value"
	}
	return path, field
}

func (v *vaultStore) Get(ctx context.Context, key string) (string, error) {
	path, field := splitField(key)
	secret, err := v.kv.Get(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("secret not found: %s", key)
	}
	val, ok := secret.Data[field].(string)
	if !ok {
		return "", fmt.Errorf("secret field %s not found: %s", field, path)
	}
	return val, nil
}

func (v *vaultStore) Set(ctx context.Context, key string, value string) error {
	path, field := splitField(key)
	if _, err := v.kv.Patch(ctx, path, map[string]interface{}{field: value}); err != nil {
		// 首次写入时 Patch 不可用
		if _, perr := v.kv.Put(ctx, path, map[string]interface{}{field: value}); perr != nil {
			return fmt.Errorf("failed to write secret to vault: %w", perr)
		}
	}
	return nil
}

func (v *vaultStore) Delete(ctx context.Context, key string) error {
	path, _ := splitField(key)
	if err := v.kv.DeleteMetadata(ctx, path); err != nil {
		return fmt.Errorf("failed to delete secret from vault: %w", err)
	}
	return nil
}

func (v *vaultStore) List(ctx context.Context, prefix string) ([]string, error) {
	dir := strings.Trim(prefix, "/")
	secret, err := v.client.Logical().ListWithContext(ctx, v.mount+"/metadata/"+dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets from vault: %w", err)
	}
	if secret == nil {
		return nil, nil
	}
	raw, ok := secret.Data["keys"].([]interface{})
	if !ok {
		return nil, nil
	}
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		s, ok := k.(string)
		if !ok {
			continue
		}
		if dir != "" {
			s = dir + "/" + s
		}
		keys = append(keys, s)
	}
	return keys, nil
}
