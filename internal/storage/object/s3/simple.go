package s3

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"cloudfile/internal/storage/object"
	"cloudfile/pkg/errors"
)

// UploadObject 简单凭证走 POST 表单上传；范围凭证走 PutObject
func (d *Driver) UploadObject(ctx context.Context, cred *object.Credential, file *object.UploadFile, opts object.Options) error {
	r, size, err := file.Open()
	if err != nil {
		return errors.Wrapf(object.ErrSourceUnreadable, "open %s: %v", file.Source, err)
	}
	if cred != nil && cred.PayloadString("url") != "" {
		return d.postUpload(ctx, cred, file, r)
	}
	client, bucket, err := d.clientFor(ctx, cred)
	if err != nil {
		return err
	}
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(file.Key()),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(file.ContentType()),
	})
	return err
}

func (d *Driver) postUpload(ctx context.Context, cred *object.Credential, file *object.UploadFile, r io.Reader) error {
	form := map[string]string{}
	if fields, ok := cred.Payload["fields"].(map[string]any); ok {
		for k, v := range fields {
			form[k] = fmt.Sprint(v)
		}
	}
	form["key"] = file.Key()
	if ct := cred.PayloadString("content_type"); ct != "" {
		form["Content-Type"] = ct
	}
	resp, err := d.http.R().
		SetContext(ctx).
		SetFormData(form).
		SetFileReader("file", file.Name, r).
		Post(cred.PayloadString("url"))
	if err != nil {
		return err
	}
	if resp.StatusCode() >= http.StatusMultipleChoices {
		return fmt.Errorf("s3: post upload %s: %s: %s", file.Key(), resp.Status(), resp.String())
	}
	return nil
}

// UploadObjectByChunks manager.Uploader 分片并发上传
func (d *Driver) UploadObjectByChunks(ctx context.Context, cred *object.Credential, file *object.ChunkUploadFile, opts object.Options) error {
	client, bucket, err := d.clientFor(ctx, cred)
	if err != nil {
		return err
	}
	r, _, err := file.Open()
	if err != nil {
		return errors.Wrapf(object.ErrSourceUnreadable, "open %s: %v", file.Source, err)
	}
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		if file.Chunk.PartSize >= manager.MinUploadPartSize {
			u.PartSize = file.Chunk.PartSize
		}
		if file.Chunk.Concurrency > 0 {
			u.Concurrency = file.Chunk.Concurrency
		}
	})
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(file.Key()),
		Body:        r,
		ContentType: aws.String(file.ContentType()),
	})
	return err
}

// AppendUploadObject S3 协议无原生追加：校验偏移后以「已有内容 + 新数据」重写对象
func (d *Driver) AppendUploadObject(ctx context.Context, cred *object.Credential, file *object.AppendUploadFile, opts object.Options) (int64, error) {
	client, bucket, err := d.clientFor(ctx, cred)
	if err != nil {
		return 0, err
	}
	r, size, err := file.Open()
	if err != nil {
		return 0, errors.Wrapf(object.ErrSourceUnreadable, "open %s: %v", file.Source, err)
	}
	key := file.Key()
	var body io.Reader = r
	if file.Position > 0 {
		head, err := client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
		if err != nil {
			return 0, err
		}
		if current := aws.ToInt64(head.ContentLength); current != file.Position {
			return 0, fmt.Errorf("s3: append position %d does not match object size %d", file.Position, current)
		}
		existing, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
		if err != nil {
			return 0, err
		}
		defer existing.Body.Close()
		body = io.MultiReader(existing.Body, r)
	}
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(file.Position + size),
		ContentType:   aws.String(file.ContentType()),
	})
	if err != nil {
		return 0, err
	}
	return file.Position + size, nil
}

// ListObjects ListObjectsV2 单页
func (d *Driver) ListObjects(ctx context.Context, cred *object.Credential, list object.ListOptions, opts object.Options) (*object.ListResult, error) {
	client, bucket, err := d.clientFor(ctx, cred)
	if err != nil {
		return nil, err
	}
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(list.Prefix),
	}
	if list.ContinuationToken != "" {
		input.ContinuationToken = aws.String(list.ContinuationToken)
	}
	if list.MaxKeys > 0 {
		input.MaxKeys = aws.Int32(int32(list.MaxKeys))
	}
	if delim := opts.String("delimiter"); delim != "" {
		input.Delimiter = aws.String(delim)
	}
	out, err := client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, err
	}
	res := &object.ListResult{
		IsTruncated:       aws.ToBool(out.IsTruncated),
		ContinuationToken: aws.ToString(out.NextContinuationToken),
	}
	for _, o := range out.Contents {
		info := &object.ObjectInfo{
			Path: aws.ToString(o.Key),
			Size: aws.ToInt64(o.Size),
			ETag: strings.Trim(aws.ToString(o.ETag), `"`),
		}
		if o.LastModified != nil {
			info.LastModified = o.LastModified.Unix()
		}
		res.Objects = append(res.Objects, info)
	}
	for _, p := range out.CommonPrefixes {
		res.Objects = append(res.Objects, &object.ObjectInfo{Path: aws.ToString(p.Prefix), IsDir: true})
	}
	return res, nil
}

// DeleteObject 删除单个对象
func (d *Driver) DeleteObject(ctx context.Context, cred *object.Credential, key string, opts object.Options) error {
	client, bucket, err := d.clientFor(ctx, cred)
	if err != nil {
		return err
	}
	_, err = client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	return err
}

// DeleteObjects 批量删除
func (d *Driver) DeleteObjects(ctx context.Context, cred *object.Credential, keys []string, opts object.Options) (*object.DeleteResult, error) {
	client, bucket, err := d.clientFor(ctx, cred)
	if err != nil {
		return nil, err
	}
	return deleteBatch(ctx, client, bucket, keys)
}

// CopyObject 桶内复制
func (d *Driver) CopyObject(ctx context.Context, cred *object.Credential, source, dest string, opts object.Options) error {
	client, bucket, err := d.clientFor(ctx, cred)
	if err != nil {
		return err
	}
	_, err = client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(bucket),
		Key:        aws.String(dest),
		CopySource: aws.String(copySource(bucket, source)),
	})
	return err
}

// HeadObject 获取对象元数据
func (d *Driver) HeadObject(ctx context.Context, cred *object.Credential, key string, opts object.Options) (*object.FileMetadata, error) {
	client, bucket, err := d.clientFor(ctx, cred)
	if err != nil {
		return nil, err
	}
	out, err := client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, err
	}
	return headToMeta(key, out), nil
}

// SetHeadObject 自复制并替换元数据
func (d *Driver) SetHeadObject(ctx context.Context, cred *object.Credential, key string, headers map[string]string, opts object.Options) error {
	client, bucket, err := d.clientFor(ctx, cred)
	if err != nil {
		return err
	}
	input := &s3.CopyObjectInput{
		Bucket:            aws.String(bucket),
		Key:               aws.String(key),
		CopySource:        aws.String(copySource(bucket, key)),
		MetadataDirective: types.MetadataDirectiveReplace,
		Metadata:          map[string]string{},
	}
	for k, v := range headers {
		switch strings.ToLower(k) {
		case "content-type":
			input.ContentType = aws.String(v)
		case "cache-control":
			input.CacheControl = aws.String(v)
		case "content-disposition":
			input.ContentDisposition = aws.String(v)
		default:
			input.Metadata[k] = v
		}
	}
	_, err = client.CopyObject(ctx, input)
	return err
}

// CreateObject 创建空对象（以 / 结尾即目录占位）
func (d *Driver) CreateObject(ctx context.Context, cred *object.Credential, key string, opts object.Options) error {
	client, bucket, err := d.clientFor(ctx, cred)
	if err != nil {
		return err
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          strings.NewReader(""),
		ContentLength: aws.Int64(0),
	}
	if ct := opts.String("content_type"); ct != "" {
		input.ContentType = aws.String(ct)
	}
	_, err = client.PutObject(ctx, input)
	return err
}

// PreSignedURL 用范围凭证签发 GET/PUT 预签名 URL
func (d *Driver) PreSignedURL(ctx context.Context, cred *object.Credential, key string, expires int64, opts object.Options) (string, error) {
	client, bucket, err := d.clientFor(ctx, cred)
	if err != nil {
		return "", err
	}
	presigner := s3.NewPresignClient(client)
	ttl := s3.WithPresignExpires(time.Duration(expires) * time.Second)
	if strings.EqualFold(opts.String("method"), http.MethodPut) {
		input := &s3.PutObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}
		if ct := opts.String("content_type"); ct != "" {
			input.ContentType = aws.String(ct)
		}
		req, err := presigner.PresignPutObject(ctx, input, ttl)
		if err != nil {
			return "", err
		}
		return req.URL, nil
	}
	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}, ttl)
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
