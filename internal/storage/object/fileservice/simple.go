package fileservice

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"cloudfile/internal/storage/object"
	"cloudfile/pkg/errors"
	"cloudfile/pkg/utils"
)

func (d *Driver) put(ctx context.Context, cred *object.Credential, key string, r io.Reader, contentType string) error {
	req, err := d.authorized(ctx, cred)
	if err != nil {
		return err
	}
	req.SetBody(r).SetError(&APIError{})
	if contentType != "" {
		req.SetHeader("Content-Type", contentType)
	}
	return check(req.Put(objectPath(key)))
}

// UploadObject 以凭证令牌上传单个对象
func (d *Driver) UploadObject(ctx context.Context, cred *object.Credential, file *object.UploadFile, opts object.Options) error {
	r, _, err := file.Open()
	if err != nil {
		return errors.Wrapf(object.ErrSourceUnreadable, "open %s: %v", file.Source, err)
	}
	return d.put(ctx, cred, file.Key(), r, file.ContentType())
}

type multipartSession struct {
	UploadID string `json:"upload_id"`
}

// UploadObjectByChunks 分片上传：init -> 顺序上传分片 -> complete；失败时 abort
func (d *Driver) UploadObjectByChunks(ctx context.Context, cred *object.Credential, file *object.ChunkUploadFile, opts object.Options) error {
	r, size, err := file.Open()
	if err != nil {
		return errors.Wrapf(object.ErrSourceUnreadable, "open %s: %v", file.Source, err)
	}
	key := file.Key()
	req, err := d.authorized(ctx, cred)
	if err != nil {
		return err
	}
	var session multipartSession
	resp, err := req.
		SetBody(map[string]any{"content_type": file.ContentType(), "size": size}).
		SetResult(&session).
		SetError(&APIError{}).
		Post(objectPath(key) + "/uploads")
	if err := check(resp, err); err != nil {
		return err
	}
	if err := d.uploadParts(ctx, cred, key, session.UploadID, r, file.Chunk.PartSize); err != nil {
		abort, aerr := d.authorized(context.WithoutCancel(ctx), cred)
		if aerr == nil {
			_, _ = abort.Delete(objectPath(key) + "/uploads/" + session.UploadID)
		}
		return err
	}
	req, err = d.authorized(ctx, cred)
	if err != nil {
		return err
	}
	return check(req.SetError(&APIError{}).Post(objectPath(key) + "/uploads/" + session.UploadID + "/complete"))
}

func (d *Driver) uploadParts(ctx context.Context, cred *object.Credential, key, uploadID string, r io.Reader, partSize int64) error {
	buf := make([]byte, utils.PositiveOr(partSize, object.DefaultPartSize))
	for part := 1; ; part++ {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			req, aerr := d.authorized(ctx, cred)
			if aerr != nil {
				return aerr
			}
			path := fmt.Sprintf("%s/uploads/%s/parts/%d", objectPath(key), uploadID, part)
			if perr := check(req.SetBody(buf[:n]).SetError(&APIError{}).Put(path)); perr != nil {
				return perr
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// AppendUploadObject 在 Position 处追加，返回下一次追加位置
func (d *Driver) AppendUploadObject(ctx context.Context, cred *object.Credential, file *object.AppendUploadFile, opts object.Options) (int64, error) {
	r, _, err := file.Open()
	if err != nil {
		return 0, errors.Wrapf(object.ErrSourceUnreadable, "open %s: %v", file.Source, err)
	}
	req, err := d.authorized(ctx, cred)
	if err != nil {
		return 0, err
	}
	var out struct {
		NextPosition int64 `json:"next_position"`
	}
	resp, err := req.
		SetQueryParam("position", strconv.FormatInt(file.Position, 10)).
		SetHeader("Content-Type", file.ContentType()).
		SetBody(r).
		SetResult(&out).
		SetError(&APIError{}).
		Post(objectPath(file.Key()) + "/append")
	if err := check(resp, err); err != nil {
		return 0, err
	}
	return out.NextPosition, nil
}

// ListObjects 单页列举
func (d *Driver) ListObjects(ctx context.Context, cred *object.Credential, list object.ListOptions, opts object.Options) (*object.ListResult, error) {
	req, err := d.authorized(ctx, cred)
	if err != nil {
		return nil, err
	}
	req.SetQueryParam("prefix", list.Prefix)
	if list.ContinuationToken != "" {
		req.SetQueryParam("continuation_token", list.ContinuationToken)
	}
	if list.MaxKeys > 0 {
		req.SetQueryParam("max_keys", strconv.Itoa(list.MaxKeys))
	}
	var out object.ListResult
	resp, err := req.SetResult(&out).SetError(&APIError{}).Get("/api/v1/objects")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteObject 删除单个对象
func (d *Driver) DeleteObject(ctx context.Context, cred *object.Credential, key string, opts object.Options) error {
	req, err := d.authorized(ctx, cred)
	if err != nil {
		return err
	}
	return check(req.SetError(&APIError{}).Delete(objectPath(key)))
}

// DeleteObjects 批量删除，返回逐键结果
func (d *Driver) DeleteObjects(ctx context.Context, cred *object.Credential, keys []string, opts object.Options) (*object.DeleteResult, error) {
	req, err := d.authorized(ctx, cred)
	if err != nil {
		return nil, err
	}
	var out object.DeleteResult
	resp, err := req.
		SetBody(map[string]any{"keys": keys}).
		SetResult(&out).
		SetError(&APIError{}).
		Post("/api/v1/objects/delete")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// CopyObject 复制对象
func (d *Driver) CopyObject(ctx context.Context, cred *object.Credential, source, dest string, opts object.Options) error {
	req, err := d.authorized(ctx, cred)
	if err != nil {
		return err
	}
	return check(req.
		SetBody(map[string]string{"source": source, "dest": dest}).
		SetError(&APIError{}).
		Post("/api/v1/objects/copy"))
}

// HeadObject 读取对象元数据
func (d *Driver) HeadObject(ctx context.Context, cred *object.Credential, key string, opts object.Options) (*object.FileMetadata, error) {
	req, err := d.authorized(ctx, cred)
	if err != nil {
		return nil, err
	}
	var out object.FileMetadata
	resp, err := req.SetResult(&out).SetError(&APIError{}).Get(objectPath(key) + "/meta")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	if out.Path == "" {
		out.Path = key
	}
	return &out, nil
}

// SetHeadObject 覆盖对象元数据
func (d *Driver) SetHeadObject(ctx context.Context, cred *object.Credential, key string, headers map[string]string, opts object.Options) error {
	req, err := d.authorized(ctx, cred)
	if err != nil {
		return err
	}
	return check(req.
		SetBody(map[string]any{"headers": headers}).
		SetError(&APIError{}).
		Put(objectPath(key) + "/meta"))
}

// CreateObject 创建空对象或目录占位
func (d *Driver) CreateObject(ctx context.Context, cred *object.Credential, key string, opts object.Options) error {
	return d.put(ctx, cred, key, nil, opts.String("content_type"))
}

// PreSignedURL 由文件服务签发单对象 URL
func (d *Driver) PreSignedURL(ctx context.Context, cred *object.Credential, key string, expires int64, opts object.Options) (string, error) {
	req, err := d.authorized(ctx, cred)
	if err != nil {
		return "", err
	}
	method := opts.String("method")
	if method == "" {
		method = "GET"
	}
	var out struct {
		URL string `json:"url"`
	}
	resp, err := req.
		SetBody(map[string]any{"key": key, "expires": expires, "method": method}).
		SetResult(&out).
		SetError(&APIError{}).
		Post("/api/v1/presign")
	if err := check(resp, err); err != nil {
		return "", err
	}
	return out.URL, nil
}
