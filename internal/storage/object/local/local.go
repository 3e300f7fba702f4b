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

// Package local 本地磁盘驱动：同时实现 Filesystem、ExpandDriver 与 SimpleUploadDriver。
package local

import (
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"cloudfile/internal/storage/object"
	"cloudfile/pkg/errors"
)

const (
	defaultRoot = "./storage"
	metaDir     = ".cloudfile-meta"
	tmpDir      = ".cloudfile-tmp"
)

// Driver 本地磁盘驱动
type Driver struct {
	root         string
	publicDomain string
	signKey      []byte
	now          func() time.Time
}

// New 根据配置创建本地驱动；root 不存在时自动创建
func New(cfg object.BackendConfig) (*Driver, error) {
	root := cfg.Get(object.KeyRoot)
	if root == "" {
		root = defaultRoot
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, errors.Wrapf(err, "create storage root %q", root)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, "resolve storage root")
	}
	key := cfg.Get(object.KeyKey)
	if key == "" {
		key = absRoot
	}
	domain := strings.TrimSuffix(cfg.Get(object.KeyPublicDomain), "/")
	if domain == "" {
		domain = "file://" + filepath.ToSlash(absRoot)
	}
	return &Driver{
		root:         absRoot,
		publicDomain: domain,
		signKey:      []byte(key),
		now:          time.Now,
	}, nil
}

// Root 返回根目录
func (d *Driver) Root() string {
	return d.root
}

// abs 将逻辑路径解析为根目录下的真实路径，拒绝越界
func (d *Driver) abs(key string) (string, error) {
	joined := filepath.Join(d.root, filepath.Clean(filepath.FromSlash(key)))
	rel, err := filepath.Rel(d.root, joined)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %q escapes storage root", key)
	}
	return joined, nil
}

// Write 临时文件 + 原子 rename
func (d *Driver) Write(ctx context.Context, key string, data io.Reader, size int64, contentType string) error {
	dest, err := d.abs(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return errors.Wrapf(err, "mkdir %q", filepath.Dir(dest))
	}
	staging := filepath.Join(d.root, tmpDir)
	if err := os.MkdirAll(staging, 0o750); err != nil {
		return errors.Wrapf(err, "mkdir %q", staging)
	}
	f, err := os.CreateTemp(staging, "write-*")
	if err != nil {
		return errors.Wrap(err, "create tmp")
	}
	tmp := f.Name()
	_, werr := io.Copy(f, data)
	cerr := f.Close()
	if werr != nil {
		os.Remove(tmp) //nolint:errcheck
		return errors.Wrap(werr, "stream write")
	}
	if cerr != nil {
		os.Remove(tmp) //nolint:errcheck
		return errors.Wrap(cerr, "flush")
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return errors.Wrapf(err, "rename to %q", dest)
	}
	if contentType != "" {
		return d.mergeHeaders(key, map[string]string{"Content-Type": contentType})
	}
	return nil
}

// Read 打开对象，调用方负责关闭
func (d *Driver) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := d.abs(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(object.ErrNotFound, "read %s", key)
	}
	return f, err
}

// Delete 删除对象，不存在时静默成功
func (d *Driver) Delete(ctx context.Context, key string) error {
	p, err := d.abs(key)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	if mp, err := d.metaPath(key); err == nil {
		os.Remove(mp) //nolint:errcheck
	}
	return nil
}

// Exists 检查对象是否存在
func (d *Driver) Exists(ctx context.Context, key string) (bool, error) {
	p, err := d.abs(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

func (d *Driver) metaPath(key string) (string, error) {
	return d.abs(metaDir + "/" + strings.TrimPrefix(key, "/") + ".json")
}

func (d *Driver) loadHeaders(key string) map[string]string {
	mp, err := d.metaPath(key)
	if err != nil {
		return nil
	}
	data, err := os.ReadFile(mp)
	if err != nil {
		return nil
	}
	var headers map[string]string
	if err := json.Unmarshal(data, &headers); err != nil {
		return nil
	}
	return headers
}

func (d *Driver) mergeHeaders(key string, headers map[string]string) error {
	merged := d.loadHeaders(key)
	if merged == nil {
		merged = make(map[string]string, len(headers))
	}
	for k, v := range headers {
		merged[k] = v
	}
	mp, err := d.metaPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(mp), 0o750); err != nil {
		return err
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	return os.WriteFile(mp, data, 0o640)
}

func (d *Driver) stat(key string) (*object.FileMetadata, error) {
	p, err := d.abs(key)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(object.ErrNotFound, "stat %s", key)
	}
	if err != nil {
		return nil, err
	}
	headers := d.loadHeaders(key)
	contentType := headers["Content-Type"]
	if contentType == "" && !info.IsDir() {
		if mt, err := mimetype.DetectFile(p); err == nil {
			contentType = mt.String()
		}
	}
	sum := md5.Sum([]byte(key + strconv.FormatInt(info.Size(), 10) + strconv.FormatInt(info.ModTime().UnixNano(), 10)))
	return &object.FileMetadata{
		Path:         key,
		Size:         info.Size(),
		ContentType:  contentType,
		ETag:         hex.EncodeToString(sum[:]),
		LastModified: info.ModTime().Unix(),
		Headers:      headers,
	}, nil
}

func (d *Driver) sign(key string, expiresAt int64) string {
	mac := hmac.New(sha256.New, d.signKey)
	mac.Write([]byte(key + "\n" + strconv.FormatInt(expiresAt, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify 校验 link 的签名与有效期
func (d *Driver) Verify(key string, expiresAt int64, signature string) bool {
	if d.now().Unix() >= expiresAt {
		return false
	}
	return hmac.Equal([]byte(d.sign(key, expiresAt)), []byte(signature))
}

func (d *Driver) signedURL(key, downloadName string, expiresAt int64) string {
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expiresAt, 10))
	q.Set("signature", d.sign(key, expiresAt))
	if downloadName != "" {
		q.Set("response-content-disposition", "attachment; filename=\""+downloadName+"\"")
	}
	return d.publicDomain + "/" + key + "?" + q.Encode()
}

var (
	_ object.Filesystem         = (*Driver)(nil)
	_ object.ExpandDriver       = (*Driver)(nil)
	_ object.SimpleUploadDriver = (*Driver)(nil)
)
