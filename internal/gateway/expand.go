package gateway

import (
	"context"
	"strings"
	"time"

	"cloudfile/internal/storage/object"
	"cloudfile/pkg/tracing"
)

// GetMetas 批量查询对象元数据（不缓存）
func (g *Gateway) GetMetas(ctx context.Context, paths []string, opts object.Options) (metas []*object.FileMetadata, err error) {
	const op = "get_metas"
	ctx, span := tracing.StartGatewaySpan(ctx, op, g.adapter.String())
	defer func() { tracing.End(span, err) }()

	driver, err := g.expandDriver(op)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	metas, err = driver.GetMetas(ctx, paths, opts)
	if err := g.driverResult(op, strings.Join(paths, ","), start, err); err != nil {
		return nil, err
	}
	return metas, nil
}

// Destroy 删除对象
func (g *Gateway) Destroy(ctx context.Context, paths []string, opts object.Options) (err error) {
	const op = "destroy"
	ctx, span := tracing.StartGatewaySpan(ctx, op, g.adapter.String())
	defer func() { tracing.End(span, err) }()

	driver, err := g.expandDriver(op)
	if err != nil {
		return err
	}
	start := time.Now()
	return g.driverResult(op, strings.Join(paths, ","), start, driver.Destroy(ctx, paths, opts))
}

// Duplicate 服务端复制，返回新键
func (g *Gateway) Duplicate(ctx context.Context, source, dest string, opts object.Options) (key string, err error) {
	const op = "duplicate"
	ctx, span := tracing.StartGatewaySpan(ctx, op, g.adapter.String())
	defer func() { tracing.End(span, err) }()

	driver, err := g.expandDriver(op)
	if err != nil {
		return "", err
	}
	start := time.Now()
	key, err = driver.Duplicate(ctx, source, dest, opts)
	if err := g.driverResult(op, source+" -> "+dest, start, err); err != nil {
		return "", err
	}
	return key, nil
}
