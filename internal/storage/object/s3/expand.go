package s3

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"cloudfile/internal/storage/object"
	"cloudfile/pkg/errors"
)

// S3 单次 DeleteObjects 上限
const maxDeleteBatch = 1000

// Write 服务端直写
func (d *Driver) Write(ctx context.Context, key string, data io.Reader, size int64, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(d.cfg.Bucket),
		Key:    aws.String(key),
		Body:   data,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	_, err := d.client.PutObject(ctx, input)
	return err
}

// Read 读取对象
func (d *Driver) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

// Delete 删除对象
func (d *Driver) Delete(ctx context.Context, key string) error {
	_, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.cfg.Bucket),
		Key:    aws.String(key),
	})
	return err
}

// Exists 检查对象是否存在
func (d *Driver) Exists(ctx context.Context, key string) (bool, error) {
	_, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(d.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func headToMeta(key string, out *s3.HeadObjectOutput) *object.FileMetadata {
	meta := &object.FileMetadata{
		Path:        key,
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
		ETag:        strings.Trim(aws.ToString(out.ETag), `"`),
		Headers:     make(map[string]string, len(out.Metadata)),
	}
	if out.LastModified != nil {
		meta.LastModified = out.LastModified.Unix()
	}
	for k, v := range out.Metadata {
		meta.Headers[k] = v
	}
	if out.CacheControl != nil {
		meta.Headers["Cache-Control"] = *out.CacheControl
	}
	if out.ContentDisposition != nil {
		meta.Headers["Content-Disposition"] = *out.ContentDisposition
	}
	return meta
}

// GetMetas 逐个 HeadObject
func (d *Driver) GetMetas(ctx context.Context, paths []string, opts object.Options) ([]*object.FileMetadata, error) {
	metas := make([]*object.FileMetadata, 0, len(paths))
	for _, p := range paths {
		out, err := d.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(d.cfg.Bucket),
			Key:    aws.String(p),
		})
		if err != nil {
			return nil, errors.Wrapf(err, "head %s", p)
		}
		metas = append(metas, headToMeta(p, out))
	}
	return metas, nil
}

// GetFileLinks 批量预签名 GET 链接
func (d *Driver) GetFileLinks(ctx context.Context, paths []string, downloadNames map[string]string, expires int64, opts object.Options) (map[string]*object.FileLink, error) {
	ttl := time.Duration(expires) * time.Second
	links := make(map[string]*object.FileLink, len(paths))
	for _, p := range paths {
		input := &s3.GetObjectInput{
			Bucket: aws.String(d.cfg.Bucket),
			Key:    aws.String(p),
		}
		if name := downloadNames[p]; name != "" {
			input.ResponseContentDisposition = aws.String("attachment; filename*=UTF-8''" + url.PathEscape(name))
		}
		req, err := d.presign.PresignGetObject(ctx, input, s3.WithPresignExpires(ttl))
		if err != nil {
			return nil, errors.Wrapf(err, "presign %s", p)
		}
		links[p] = &object.FileLink{
			Path:         p,
			URL:          req.URL,
			ExpiresAt:    d.now().Add(ttl).Unix(),
			DownloadName: downloadNames[p],
		}
	}
	return links, nil
}

// Destroy 按批 DeleteObjects
func (d *Driver) Destroy(ctx context.Context, paths []string, opts object.Options) error {
	res, err := deleteBatch(ctx, d.client, d.cfg.Bucket, paths)
	if err != nil {
		return err
	}
	if len(res.Errors) > 0 {
		return fmt.Errorf("destroy: %d objects failed: %v", len(res.Errors), res.Errors)
	}
	return nil
}

func deleteBatch(ctx context.Context, client *s3.Client, bucket string, keys []string) (*object.DeleteResult, error) {
	res := &object.DeleteResult{}
	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := start + maxDeleteBatch
		if end > len(keys) {
			end = len(keys)
		}
		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(k)})
		}
		out, err := client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(false)},
		})
		if err != nil {
			return nil, err
		}
		for _, del := range out.Deleted {
			res.Deleted = append(res.Deleted, aws.ToString(del.Key))
		}
		for _, e := range out.Errors {
			if res.Errors == nil {
				res.Errors = make(map[string]string)
			}
			res.Errors[aws.ToString(e.Key)] = aws.ToString(e.Code) + ": " + aws.ToString(e.Message)
		}
	}
	return res, nil
}

func copySource(bucket, key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return bucket + "/" + strings.Join(parts, "/")
}

// Duplicate 服务端复制
func (d *Driver) Duplicate(ctx context.Context, source, dest string, opts object.Options) (string, error) {
	_, err := d.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(d.cfg.Bucket),
		Key:        aws.String(dest),
		CopySource: aws.String(copySource(d.cfg.Bucket, source)),
	})
	if err != nil {
		return "", err
	}
	return dest, nil
}

// DownloadByChunks 使用 manager.Downloader 分片并发下载；失败时删除临时文件
func (d *Driver) DownloadByChunks(ctx context.Context, remotePath, localPath string, cfg *object.ChunkDownloadConfig, opts object.Options) error {
	cfg = cfg.Normalize()
	if err := os.MkdirAll(filepath.Dir(localPath), 0o750); err != nil {
		return err
	}
	tmp := localPath + ".part"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}
	downloader := manager.NewDownloader(d.client, func(dl *manager.Downloader) {
		dl.PartSize = cfg.PartSize
		dl.Concurrency = cfg.Concurrency
		dl.PartBodyMaxRetries = cfg.MaxRetries
	})
	_, derr := downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(d.cfg.Bucket),
		Key:    aws.String(remotePath),
	})
	cerr := f.Close()
	if derr != nil {
		os.Remove(tmp) //nolint:errcheck
		return derr
	}
	if cerr != nil {
		os.Remove(tmp) //nolint:errcheck
		return cerr
	}
	return os.Rename(tmp, localPath)
}
