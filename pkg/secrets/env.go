// Copyright 2026 fanjia1024
// Environment variable based secret store

package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// envStore key 经前缀与大写化后映射到环境变量：aliyun/access_secret -> CLOUDFILE_ALIYUN_ACCESS_SECRET
type envStore struct {
	prefix string
}

// NewEnvStore 创建环境变量 secret store，prefix 为空时不加前缀
func NewEnvStore(prefix string) Store {
	return &envStore{prefix: prefix}
}

var envKeyReplacer = strings.NewReplacer("/", "_", "-", "_", ".", "_")

func (e *envStore) name(key string) string {
	return strings.ToUpper(e.prefix + envKeyReplacer.Replace(key))
}

func (e *envStore) Get(ctx context.Context, key string) (string, error) {
	value, ok := os.LookupEnv(e.name(key))
	if !ok || value == "" {
		return "", fmt.Errorf("environment variable not set: %s", e.name(key))
	}
	return value, nil
}

func (e *envStore) Set(ctx context.Context, key string, value string) error {
	return os.Setenv(e.name(key), value)
}

func (e *envStore) Delete(ctx context.Context, key string) error {
	return os.Unsetenv(e.name(key))
}

func (e *envStore) List(ctx context.Context, prefix string) ([]string, error) {
	want := e.name(prefix)
	var keys []string
	for _, env := range os.Environ() {
		name, _, _ := strings.Cut(env, "=")
		if strings.HasPrefix(name, want) {
			keys = append(keys, name)
		}
	}
	return keys, nil
}
