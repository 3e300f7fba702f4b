package fileservice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sync/errgroup"

	"cloudfile/internal/storage/object"
)

type credentialRequest struct {
	Scoped       bool   `json:"scoped"`
	Dir          string `json:"dir"`
	SessionName  string `json:"session_name,omitempty"`
	SubOperation string `json:"sub_operation,omitempty"`
	ContentType  string `json:"content_type,omitempty"`
	TTL          int64  `json:"ttl"`
}

type credentialResponse struct {
	Platform  string         `json:"platform"`
	Payload   map[string]any `json:"payload"`
	ExpiresAt int64          `json:"expires_at"`
}

// GetUploadCredential 由文件服务代签其托管后端的临时凭证；签发请求受本地限流
func (d *Driver) GetUploadCredential(ctx context.Context, policy object.CredentialPolicy, opts object.Options) (*object.Credential, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var out credentialResponse
	resp, err := d.request(ctx).
		SetBody(credentialRequest{
			Scoped:       policy.Scoped,
			Dir:          policy.Dir,
			SessionName:  policy.SessionName,
			SubOperation: policy.SubOperation,
			ContentType:  policy.ContentType,
			TTL:          policy.EffectiveTTL(),
		}).
		SetResult(&out).
		SetError(&APIError{}).
		Post("/api/v1/credentials")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	platform := out.Platform
	if platform == "" {
		platform = d.cfg.Platform
	}
	adapter, err := object.ResolveAdapter(platform)
	if err != nil {
		// 未知厂商原样透传，交由下游翻译时拒绝
		adapter = object.Adapter(platform)
	}
	return &object.Credential{
		Platform:  adapter,
		Payload:   out.Payload,
		ExpiresAt: out.ExpiresAt,
	}, nil
}

type metaResponse struct {
	Metas []*object.FileMetadata `json:"metas"`
}

// GetMetas 批量查询元数据
func (d *Driver) GetMetas(ctx context.Context, paths []string, opts object.Options) ([]*object.FileMetadata, error) {
	var out metaResponse
	resp, err := d.request(ctx).
		SetBody(map[string]any{"paths": paths}).
		SetResult(&out).
		SetError(&APIError{}).
		Post("/api/v1/metas")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return out.Metas, nil
}

type linkRequest struct {
	Paths         []string          `json:"paths"`
	DownloadNames map[string]string `json:"download_names,omitempty"`
	Expires       int64             `json:"expires"`
}

type linkResponse struct {
	Links map[string]*object.FileLink `json:"links"`
}

// GetFileLinks 一次请求批量签发下载链接
func (d *Driver) GetFileLinks(ctx context.Context, paths []string, downloadNames map[string]string, expires int64, opts object.Options) (map[string]*object.FileLink, error) {
	var out linkResponse
	resp, err := d.request(ctx).
		SetBody(linkRequest{Paths: paths, DownloadNames: downloadNames, Expires: expires}).
		SetResult(&out).
		SetError(&APIError{}).
		Post("/api/v1/links")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	links := make(map[string]*object.FileLink, len(out.Links))
	for p, l := range out.Links {
		if l == nil {
			continue
		}
		if l.Path == "" {
			l.Path = p
		}
		if l.ExpiresAt == 0 {
			l.ExpiresAt = d.now().Unix() + expires
		}
		links[p] = l
	}
	return links, nil
}

// Destroy 批量删除
func (d *Driver) Destroy(ctx context.Context, paths []string, opts object.Options) error {
	resp, err := d.request(ctx).
		SetBody(map[string]any{"paths": paths}).
		SetError(&APIError{}).
		Post("/api/v1/destroy")
	return check(resp, err)
}

// Duplicate 服务端复制，返回目标路径
func (d *Driver) Duplicate(ctx context.Context, source, dest string, opts object.Options) (string, error) {
	var out struct {
		Path string `json:"path"`
	}
	resp, err := d.request(ctx).
		SetBody(map[string]string{"source": source, "dest": dest}).
		SetResult(&out).
		SetError(&APIError{}).
		Post("/api/v1/duplicate")
	if err := check(resp, err); err != nil {
		return "", err
	}
	if out.Path == "" {
		out.Path = dest
	}
	return out.Path, nil
}

func (d *Driver) size(ctx context.Context, key string) (int64, error) {
	resp, err := d.request(ctx).Head(objectPath(key))
	if err != nil {
		return 0, err
	}
	if resp.IsError() {
		return 0, &APIError{Status: resp.StatusCode(), Message: resp.Status()}
	}
	n, err := strconv.ParseInt(resp.Header().Get("Content-Length"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("fileservice: missing content length for %s", key)
	}
	return n, nil
}

// DownloadByChunks Range 请求并发拉取分片写入临时文件，全部成功后改名
func (d *Driver) DownloadByChunks(ctx context.Context, remotePath, localPath string, cfg *object.ChunkDownloadConfig, opts object.Options) error {
	cfg = cfg.Normalize()
	size, err := d.size(ctx, remotePath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o750); err != nil {
		return err
	}
	tmp := localPath + ".part"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	for off := int64(0); off < size; off += cfg.PartSize {
		start, end := off, off+cfg.PartSize-1
		if end >= size {
			end = size - 1
		}
		g.Go(func() error {
			return d.fetchRange(gctx, remotePath, f, start, end, cfg.MaxRetries)
		})
	}
	werr := g.Wait()
	cerr := f.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(tmp) //nolint:errcheck
		return werr
	}
	return os.Rename(tmp, localPath)
}

func (d *Driver) fetchRange(ctx context.Context, key string, f *os.File, start, end int64, retries int) error {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = d.copyRange(ctx, key, f, start, end)
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("fileservice: range %d-%d of %s: %w", start, end, key, lastErr)
}

func (d *Driver) copyRange(ctx context.Context, key string, f *os.File, start, end int64) error {
	resp, err := d.request(ctx).
		SetDoNotParseResponse(true).
		SetHeader("Range", fmt.Sprintf("bytes=%d-%d", start, end)).
		Get(objectPath(key))
	if err != nil {
		return err
	}
	body := resp.RawBody()
	defer body.Close()
	if resp.StatusCode() != http.StatusPartialContent {
		return &APIError{Status: resp.StatusCode(), Message: "range not honored"}
	}
	want := end - start + 1
	n, err := io.Copy(io.NewOffsetWriter(f, start), io.LimitReader(body, want))
	if err != nil {
		return err
	}
	if n != want {
		return fmt.Errorf("short read: %d of %d bytes", n, want)
	}
	return nil
}
