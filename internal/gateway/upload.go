package gateway

import (
	"bytes"
	"context"
	"time"

	"cloudfile/internal/storage/object"
	"cloudfile/pkg/errors"
	"cloudfile/pkg/metrics"
	"cloudfile/pkg/tracing"
)

// openSource 在任何网络调用前确认源可读
func openSource(op string, file *object.UploadFile) error {
	if _, _, err := file.Open(); err != nil {
		return object.NewOperationError(object.ErrSourceUnreadable, op, file.Source, err)
	}
	return nil
}

// Upload 读取完整源数据并经默认后端绑定写入，返回存储键。源在任何出口都会被释放。
func (g *Gateway) Upload(ctx context.Context, file *object.UploadFile, opts object.Options) (key string, err error) {
	const op = "upload"
	defer file.Release()
	ctx, span := tracing.StartGatewaySpan(ctx, op, g.adapter.String())
	defer func() { tracing.End(span, err) }()

	fs, err := g.filesystem(op)
	if err != nil {
		return "", err
	}
	data, err := file.ReadAll()
	if err != nil {
		return "", object.NewOperationError(object.ErrSourceUnreadable, op, file.Source, err)
	}
	key = file.Key()
	start := time.Now()
	err = fs.Write(ctx, key, bytes.NewReader(data), int64(len(data)), file.ContentType())
	metrics.ObserveDriver(g.adapter.String(), "write", start, err)
	if err != nil {
		g.logger.Error("upload failed", "key", key, "error", err)
		return "", errors.Wrapf(err, "upload %s", key)
	}
	return key, nil
}

// UploadByCredential 简单凭证直传：强制非范围凭证并把文件 MIME 写入策略
func (g *Gateway) UploadByCredential(ctx context.Context, file *object.UploadFile, policy object.CredentialPolicy, opts object.Options) (err error) {
	const op = "upload_by_credential"
	defer file.Release()
	ctx, span := tracing.StartGatewaySpan(ctx, op, g.adapter.String())
	defer func() { tracing.End(span, err) }()

	driver, err := g.simpleDriver(op)
	if err != nil {
		return err
	}
	if err := openSource(op, file); err != nil {
		return err
	}
	policy = policy.WithScoped(false).WithContentType(file.ContentType())
	cred, err := g.issueCredential(ctx, policy, opts)
	if err != nil {
		return err
	}
	start := time.Now()
	err = driver.UploadObject(ctx, cred, file, opts)
	return g.driverResult(op, file.Key(), start, err)
}

// UploadByChunks 分片上传；分片需各自授权，强制范围凭证
func (g *Gateway) UploadByChunks(ctx context.Context, file *object.ChunkUploadFile, policy object.CredentialPolicy, opts object.Options) (err error) {
	const op = "upload_by_chunks"
	defer file.Release()
	ctx, span := tracing.StartGatewaySpan(ctx, op, g.adapter.String())
	defer func() { tracing.End(span, err) }()

	driver, err := g.simpleDriver(op)
	if err != nil {
		return err
	}
	if err := openSource(op, file.UploadFile); err != nil {
		return err
	}
	cred, err := g.issueCredential(ctx, policy.WithScoped(true), opts)
	if err != nil {
		return err
	}
	start := time.Now()
	err = driver.UploadObjectByChunks(ctx, cred, file, opts)
	return g.driverResult(op, file.Key(), start, err)
}

// AppendUploadByCredential 追加上传，返回下一次追加偏移
func (g *Gateway) AppendUploadByCredential(ctx context.Context, file *object.AppendUploadFile, policy object.CredentialPolicy, opts object.Options) (next int64, err error) {
	const op = "append_upload_by_credential"
	defer file.Release()
	ctx, span := tracing.StartGatewaySpan(ctx, op, g.adapter.String())
	defer func() { tracing.End(span, err) }()

	driver, err := g.simpleDriver(op)
	if err != nil {
		return 0, err
	}
	if err := openSource(op, file.UploadFile); err != nil {
		return 0, err
	}
	cred, err := g.issueCredential(ctx, policy.WithScoped(true), opts)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	next, err = driver.AppendUploadObject(ctx, cred, file, opts)
	if err := g.driverResult(op, file.Key(), start, err); err != nil {
		return 0, err
	}
	return next, nil
}

// driverResult 记录驱动调用并为错误附加操作上下文
func (g *Gateway) driverResult(op, subject string, start time.Time, err error) error {
	metrics.ObserveDriver(g.adapter.String(), op, start, err)
	if err != nil {
		g.logger.Error("driver call failed", "op", op, "subject", subject, "error", err)
		return errors.Wrapf(err, "%s %s", op, subject)
	}
	return nil
}
