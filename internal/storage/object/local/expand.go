package local

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"cloudfile/internal/storage/object"
	"cloudfile/pkg/errors"
)

// GetUploadCredential 本地磁盘无真实 STS，签发绑定根目录与授权目录的本地凭证
func (d *Driver) GetUploadCredential(ctx context.Context, policy object.CredentialPolicy, opts object.Options) (*object.Credential, error) {
	expiresAt := d.now().Unix() + policy.EffectiveTTL()
	return &object.Credential{
		Platform: object.AdapterLocal,
		Payload: map[string]any{
			object.CredRoot:      d.root,
			object.CredDir:       policy.Dir,
			object.CredSignature: d.sign(policy.Dir, expiresAt),
			"scoped":             policy.Scoped,
			"sub_operation":      policy.SubOperation,
		},
		ExpiresAt: expiresAt,
	}, nil
}

// GetMetas 获取对象元数据
func (d *Driver) GetMetas(ctx context.Context, paths []string, opts object.Options) ([]*object.FileMetadata, error) {
	metas := make([]*object.FileMetadata, 0, len(paths))
	for _, p := range paths {
		m, err := d.stat(p)
		if err != nil {
			return nil, err
		}
		metas = append(metas, m)
	}
	return metas, nil
}

// GetFileLinks 签发 HMAC 签名的访问链接
func (d *Driver) GetFileLinks(ctx context.Context, paths []string, downloadNames map[string]string, expires int64, opts object.Options) (map[string]*object.FileLink, error) {
	expiresAt := d.now().Unix() + expires
	links := make(map[string]*object.FileLink, len(paths))
	for _, p := range paths {
		links[p] = &object.FileLink{
			Path:         p,
			URL:          d.signedURL(p, downloadNames[p], expiresAt),
			ExpiresAt:    expiresAt,
			DownloadName: downloadNames[p],
		}
	}
	return links, nil
}

// Destroy 删除对象
func (d *Driver) Destroy(ctx context.Context, paths []string, opts object.Options) error {
	for _, p := range paths {
		if err := d.Delete(ctx, p); err != nil {
			return errors.Wrapf(err, "destroy %s", p)
		}
	}
	return nil
}

// Duplicate 复制对象
func (d *Driver) Duplicate(ctx context.Context, source, dest string, opts object.Options) (string, error) {
	src, err := d.Read(ctx, source)
	if err != nil {
		return "", err
	}
	defer src.Close()
	headers := d.loadHeaders(source)
	if err := d.Write(ctx, dest, src, -1, headers["Content-Type"]); err != nil {
		return "", errors.Wrapf(err, "duplicate %s to %s", source, dest)
	}
	if len(headers) > 0 {
		if err := d.mergeHeaders(dest, headers); err != nil {
			return "", err
		}
	}
	return dest, nil
}

// DownloadByChunks 按分片并发拷贝到本地文件，完成后原子 rename；失败时清理临时文件
func (d *Driver) DownloadByChunks(ctx context.Context, remotePath, localPath string, cfg *object.ChunkDownloadConfig, opts object.Options) error {
	cfg = cfg.Normalize()
	srcPath, err := d.abs(remotePath)
	if err != nil {
		return err
	}
	info, err := os.Stat(srcPath)
	if os.IsNotExist(err) {
		return errors.Wrapf(object.ErrNotFound, "download %s", remotePath)
	}
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o750); err != nil {
		return err
	}
	tmp := localPath + ".part"
	dst, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}
	if err := dst.Truncate(info.Size()); err != nil {
		dst.Close()
		os.Remove(tmp) //nolint:errcheck
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	for off := int64(0); off < info.Size(); off += cfg.PartSize {
		off := off
		n := cfg.PartSize
		if off+n > info.Size() {
			n = info.Size() - off
		}
		g.Go(func() error {
			var lastErr error
			for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				if lastErr = copyPart(srcPath, dst, off, n); lastErr == nil {
					return nil
				}
			}
			return errors.Wrapf(lastErr, "part at offset %d", off)
		})
	}
	werr := g.Wait()
	cerr := dst.Close()
	if werr != nil {
		os.Remove(tmp) //nolint:errcheck
		return werr
	}
	if cerr != nil {
		os.Remove(tmp) //nolint:errcheck
		return cerr
	}
	return os.Rename(tmp, localPath)
}

func copyPart(srcPath string, dst *os.File, off, n int64) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()
	_, err = io.Copy(io.NewOffsetWriter(dst, off), io.NewSectionReader(src, off, n))
	return err
}
