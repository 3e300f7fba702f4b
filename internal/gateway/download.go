package gateway

import (
	"context"
	"time"

	"cloudfile/internal/storage/object"
	"cloudfile/pkg/metrics"
	"cloudfile/pkg/tracing"
)

// DownloadByChunks 分片下载：签发整桶范围凭证，按凭证平台翻译出一次性配置，
// 由注册表构造临时驱动执行下载。翻译失败时不会写入任何本地文件。
func (g *Gateway) DownloadByChunks(ctx context.Context, remotePath, localPath string, cfg *object.ChunkDownloadConfig, opts object.Options) (err error) {
	const op = "download_by_chunks"
	ctx, span := tracing.StartGatewaySpan(ctx, op, g.adapter.String())
	defer func() { tracing.End(span, err) }()

	cred, err := g.issueCredential(ctx, g.NewPolicy("").WithScoped(true), opts)
	if err != nil {
		return err
	}
	target, err := translateCredential(cred)
	if err != nil {
		return object.NewOperationError(object.ErrUnsupportedCredentialTranslation, op, remotePath, err)
	}
	factory, ok := g.registry.Lookup(target.adapter())
	if !ok {
		return object.NewOperationError(object.ErrDriverNotRegistered, op, target.adapter().String(), nil)
	}
	drivers, err := factory(ctx, target.adapter(), target.backendConfig())
	if err != nil {
		return object.NewOperationError(object.ErrChunkDownloadFailed, op, remotePath, err)
	}
	if drivers.Expand == nil {
		return object.NewOperationError(object.ErrDriverNotRegistered, op, target.adapter().String(), nil)
	}

	start := time.Now()
	err = drivers.Expand.DownloadByChunks(ctx, remotePath, localPath, cfg.Normalize(), opts)
	metrics.ObserveDriver(target.adapter().String(), op, start, err)
	if err != nil {
		g.logger.Error("chunk download failed", "path", remotePath, "platform", target.adapter().String(), "error", err)
		return object.NewOperationError(object.ErrChunkDownloadFailed, op, remotePath, err)
	}
	return nil
}
