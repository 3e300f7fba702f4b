package local

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"cloudfile/internal/storage/object"
	"cloudfile/pkg/errors"
	"cloudfile/pkg/utils"
)

// authorize 校验本地凭证的签名、有效期与目录范围
func (d *Driver) authorize(cred *object.Credential, key string) error {
	if cred == nil {
		return fmt.Errorf("local: credential required")
	}
	if cred.Platform != object.AdapterLocal {
		return fmt.Errorf("local: credential for platform %s", cred.Platform)
	}
	dir := cred.Dir()
	if !d.Verify(dir, cred.ExpiresAt, cred.PayloadString(object.CredSignature)) {
		return fmt.Errorf("local: credential expired or invalid")
	}
	if !withinDir(key, dir) {
		return fmt.Errorf("local: key %q outside credential dir %q", key, dir)
	}
	return nil
}

// withinDir 按完整路径段判断 key 是否落在 dir 之下
func withinDir(key, dir string) bool {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return true
	}
	key = strings.TrimPrefix(key, "/")
	return key == dir || strings.HasPrefix(key, dir+"/")
}

// UploadObject 凭证直传
func (d *Driver) UploadObject(ctx context.Context, cred *object.Credential, file *object.UploadFile, opts object.Options) error {
	if err := d.authorize(cred, file.Key()); err != nil {
		return err
	}
	r, size, err := file.Open()
	if err != nil {
		return errors.Wrapf(object.ErrSourceUnreadable, "open %s: %v", file.Source, err)
	}
	return d.Write(ctx, file.Key(), r, size, file.ContentType())
}

// UploadObjectByChunks 按分片顺序写入临时文件后原子替换
func (d *Driver) UploadObjectByChunks(ctx context.Context, cred *object.Credential, file *object.ChunkUploadFile, opts object.Options) error {
	if err := d.authorize(cred, file.Key()); err != nil {
		return err
	}
	r, size, err := file.Open()
	if err != nil {
		return errors.Wrapf(object.ErrSourceUnreadable, "open %s: %v", file.Source, err)
	}
	pr, pw := io.Pipe()
	go func() {
		buf := make([]byte, utils.PositiveOr(file.Chunk.PartSize, object.DefaultPartSize))
		for {
			if err := ctx.Err(); err != nil {
				pw.CloseWithError(err)
				return
			}
			n, rerr := io.ReadFull(r, buf)
			if n > 0 {
				if _, err := pw.Write(buf[:n]); err != nil {
					return
				}
			}
			if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
				pw.Close()
				return
			}
			if rerr != nil {
				pw.CloseWithError(rerr)
				return
			}
		}
	}()
	defer pr.Close()
	return d.Write(ctx, file.Key(), pr, size, file.ContentType())
}

// AppendUploadObject 追加写；Position 必须等于当前对象大小
func (d *Driver) AppendUploadObject(ctx context.Context, cred *object.Credential, file *object.AppendUploadFile, opts object.Options) (int64, error) {
	if err := d.authorize(cred, file.Key()); err != nil {
		return 0, err
	}
	dest, err := d.abs(file.Key())
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return 0, err
	}
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if info.Size() != file.Position {
		return 0, fmt.Errorf("local: append position %d does not match object size %d", file.Position, info.Size())
	}
	r, _, err := file.Open()
	if err != nil {
		return 0, errors.Wrapf(object.ErrSourceUnreadable, "open %s: %v", file.Source, err)
	}
	n, err := io.Copy(io.NewOffsetWriter(f, file.Position), r)
	if err != nil {
		return 0, err
	}
	return file.Position + n, nil
}

// ListObjects 列出前缀下的对象（按键排序，支持续传 token）
func (d *Driver) ListObjects(ctx context.Context, cred *object.Credential, list object.ListOptions, opts object.Options) (*object.ListResult, error) {
	if err := d.authorize(cred, list.Prefix); err != nil {
		return nil, err
	}
	var keys []*object.ObjectInfo
	err := filepath.WalkDir(d.root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(d.root, p)
		rel = filepath.ToSlash(rel)
		if entry.IsDir() {
			if rel == metaDir || rel == tmpDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasPrefix(rel, list.Prefix) {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		keys = append(keys, &object.ObjectInfo{Path: rel, Size: info.Size(), LastModified: info.ModTime().Unix()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Path < keys[j].Path })

	start := 0
	if list.ContinuationToken != "" {
		start, _ = strconv.Atoi(list.ContinuationToken)
	}
	if start > len(keys) {
		start = len(keys)
	}
	maxKeys := list.MaxKeys
	if maxKeys <= 0 {
		maxKeys = 1000
	}
	end := start + maxKeys
	res := &object.ListResult{}
	if end < len(keys) {
		res.IsTruncated = true
		res.ContinuationToken = strconv.Itoa(end)
	} else {
		end = len(keys)
	}
	res.Objects = keys[start:end]
	return res, nil
}

// DeleteObject 删除单个对象
func (d *Driver) DeleteObject(ctx context.Context, cred *object.Credential, key string, opts object.Options) error {
	if err := d.authorize(cred, key); err != nil {
		return err
	}
	return d.Delete(ctx, key)
}

// DeleteObjects 批量删除，逐个记录失败
func (d *Driver) DeleteObjects(ctx context.Context, cred *object.Credential, keys []string, opts object.Options) (*object.DeleteResult, error) {
	res := &object.DeleteResult{}
	for _, key := range keys {
		err := d.authorize(cred, key)
		if err == nil {
			err = d.Delete(ctx, key)
		}
		if err != nil {
			if res.Errors == nil {
				res.Errors = make(map[string]string)
			}
			res.Errors[key] = err.Error()
			continue
		}
		res.Deleted = append(res.Deleted, key)
	}
	return res, nil
}

// CopyObject 复制对象
func (d *Driver) CopyObject(ctx context.Context, cred *object.Credential, source, dest string, opts object.Options) error {
	if err := d.authorize(cred, dest); err != nil {
		return err
	}
	_, err := d.Duplicate(ctx, source, dest, opts)
	return err
}

// HeadObject 获取对象元数据
func (d *Driver) HeadObject(ctx context.Context, cred *object.Credential, key string, opts object.Options) (*object.FileMetadata, error) {
	if err := d.authorize(cred, key); err != nil {
		return nil, err
	}
	return d.stat(key)
}

// SetHeadObject 合并写入自定义头
func (d *Driver) SetHeadObject(ctx context.Context, cred *object.Credential, key string, headers map[string]string, opts object.Options) error {
	if err := d.authorize(cred, key); err != nil {
		return err
	}
	if ok, err := d.Exists(ctx, key); err != nil || !ok {
		return errors.Wrapf(object.ErrNotFound, "set head %s", key)
	}
	return d.mergeHeaders(key, headers)
}

// CreateObject 以 / 结尾时创建目录，否则创建空对象
func (d *Driver) CreateObject(ctx context.Context, cred *object.Credential, key string, opts object.Options) error {
	if err := d.authorize(cred, key); err != nil {
		return err
	}
	p, err := d.abs(key)
	if err != nil {
		return err
	}
	if strings.HasSuffix(key, "/") {
		return os.MkdirAll(p, 0o750)
	}
	return d.Write(ctx, key, strings.NewReader(""), 0, opts.String("content_type"))
}

// PreSignedURL 签发本地签名链接
func (d *Driver) PreSignedURL(ctx context.Context, cred *object.Credential, key string, expires int64, opts object.Options) (string, error) {
	if err := d.authorize(cred, key); err != nil {
		return "", err
	}
	return d.signedURL(key, opts.String("download_name"), d.now().Unix()+expires), nil
}
