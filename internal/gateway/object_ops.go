package gateway

import (
	"context"
	"strings"
	"time"

	"cloudfile/internal/storage/object"
	"cloudfile/pkg/tracing"
)

// withScopedCredential 对象操作统一流程：强制范围凭证并打子操作标签，签发或复用凭证后交给驱动。
// 子操作标签参与缓存键，列举用的凭证不会被删除复用。
func (g *Gateway) withScopedCredential(ctx context.Context, subOp, subject string, policy object.CredentialPolicy, opts object.Options,
	call func(ctx context.Context, d object.SimpleUploadDriver, cred *object.Credential) error) (err error) {
	ctx, span := tracing.StartGatewaySpan(ctx, subOp, g.adapter.String())
	defer func() { tracing.End(span, err) }()

	driver, err := g.simpleDriver(subOp)
	if err != nil {
		return err
	}
	cred, err := g.issueCredential(ctx, policy.WithScoped(true).WithSubOperation(subOp), opts)
	if err != nil {
		return err
	}
	dctx, dspan := tracing.StartDriverSpan(ctx, subOp, g.adapter.String())
	start := time.Now()
	err = call(dctx, driver, cred)
	tracing.End(dspan, err)
	return g.driverResult(subOp, subject, start, err)
}

// ListObjectsByCredential 列举一页对象
func (g *Gateway) ListObjectsByCredential(ctx context.Context, policy object.CredentialPolicy, list object.ListOptions, opts object.Options) (*object.ListResult, error) {
	var out *object.ListResult
	err := g.withScopedCredential(ctx, object.SubOpListObjects, list.Prefix, policy, opts,
		func(ctx context.Context, d object.SimpleUploadDriver, cred *object.Credential) (err error) {
			out, err = d.ListObjects(ctx, cred, list, opts)
			return err
		})
	return out, err
}

// DeleteObjectByCredential 删除单个对象
func (g *Gateway) DeleteObjectByCredential(ctx context.Context, policy object.CredentialPolicy, key string, opts object.Options) error {
	return g.withScopedCredential(ctx, object.SubOpDelObject, key, policy, opts,
		func(ctx context.Context, d object.SimpleUploadDriver, cred *object.Credential) error {
			return d.DeleteObject(ctx, cred, key, opts)
		})
}

// DeleteObjectsByCredential 批量删除
func (g *Gateway) DeleteObjectsByCredential(ctx context.Context, policy object.CredentialPolicy, keys []string, opts object.Options) (*object.DeleteResult, error) {
	var out *object.DeleteResult
	err := g.withScopedCredential(ctx, object.SubOpDelObjects, strings.Join(keys, ","), policy, opts,
		func(ctx context.Context, d object.SimpleUploadDriver, cred *object.Credential) (err error) {
			out, err = d.DeleteObjects(ctx, cred, keys, opts)
			return err
		})
	return out, err
}

// CopyObjectByCredential 复制对象
func (g *Gateway) CopyObjectByCredential(ctx context.Context, policy object.CredentialPolicy, source, dest string, opts object.Options) error {
	return g.withScopedCredential(ctx, object.SubOpCopyObject, source+" -> "+dest, policy, opts,
		func(ctx context.Context, d object.SimpleUploadDriver, cred *object.Credential) error {
			return d.CopyObject(ctx, cred, source, dest, opts)
		})
}

// GetHeadObjectByCredential 读取对象元数据
func (g *Gateway) GetHeadObjectByCredential(ctx context.Context, policy object.CredentialPolicy, key string, opts object.Options) (*object.FileMetadata, error) {
	var out *object.FileMetadata
	err := g.withScopedCredential(ctx, object.SubOpHeadObject, key, policy, opts,
		func(ctx context.Context, d object.SimpleUploadDriver, cred *object.Credential) (err error) {
			out, err = d.HeadObject(ctx, cred, key, opts)
			return err
		})
	return out, err
}

// SetHeadObjectByCredential 覆盖对象元数据
func (g *Gateway) SetHeadObjectByCredential(ctx context.Context, policy object.CredentialPolicy, key string, headers map[string]string, opts object.Options) error {
	return g.withScopedCredential(ctx, object.SubOpSetMeta, key, policy, opts,
		func(ctx context.Context, d object.SimpleUploadDriver, cred *object.Credential) error {
			return d.SetHeadObject(ctx, cred, key, headers, opts)
		})
}

// CreateObjectByCredential 创建空对象或目录占位
func (g *Gateway) CreateObjectByCredential(ctx context.Context, policy object.CredentialPolicy, key string, opts object.Options) error {
	return g.withScopedCredential(ctx, object.SubOpCreateObject, key, policy, opts,
		func(ctx context.Context, d object.SimpleUploadDriver, cred *object.Credential) error {
			return d.CreateObject(ctx, cred, key, opts)
		})
}

// GetPreSignedURLByCredential 签发单对象预签名 URL
func (g *Gateway) GetPreSignedURLByCredential(ctx context.Context, policy object.CredentialPolicy, key string, expires int64, opts object.Options) (string, error) {
	var out string
	err := g.withScopedCredential(ctx, object.SubOpPresignedURL, key, policy, opts,
		func(ctx context.Context, d object.SimpleUploadDriver, cred *object.Credential) (err error) {
			out, err = d.PreSignedURL(ctx, cred, key, expires, opts)
			return err
		})
	return out, err
}
