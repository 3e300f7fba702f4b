// Copyright 2026 fanjia1024
// Mounted-directory secret store (Kubernetes secret volumes, docker secrets)

package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const defaultSecretsPath = "/etc/secrets"

// fileStore 每个 secret 一个文件，key 中的 / 映射为子目录
type fileStore struct {
	root string
}

// NewFileStore 创建目录型 secret store；目录不存在时报错
func NewFileStore(root string) (Store, error) {
	if root == "" {
		root = defaultSecretsPath
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("secrets path not found: %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("secrets path is not a directory: %s", root)
	}
	return &fileStore{root: root}, nil
}

func (f *fileStore) path(key string) (string, error) {
	p := filepath.Join(f.root, filepath.Clean(filepath.FromSlash("/"+key)))
	if !strings.HasPrefix(p, filepath.Clean(f.root)+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid secret key: %s", key)
	}
	return p, nil
}

func (f *fileStore) Get(ctx context.Context, key string) (string, error) {
	p, err := f.path(key)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("secret not found: %s", key)
		}
		return "", err
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func (f *fileStore) Set(ctx context.Context, key string, value string) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return err
	}
	return os.WriteFile(p, []byte(value), 0o600)
}

func (f *fileStore) Delete(ctx context.Context, key string) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (f *fileStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(f.root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		// k8s 挂载的 ..data 等隐藏项
		if strings.HasPrefix(d.Name(), "..") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(f.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	return keys, err
}
