// Package tracing 网关与驱动调用的 OpenTelemetry span 辅助；未初始化 provider 时为 no-op
package tracing

import (
	"context"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Shutdown 刷新并关闭 provider，tp 为 nil 时 no-op
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}
