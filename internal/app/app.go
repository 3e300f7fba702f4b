// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package app 组装网关进程依赖：日志、密钥解析、链路追踪、网关管理器
package app

import (
	"context"
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"cloudfile/internal/gateway"
	"cloudfile/pkg/config"
	"cloudfile/pkg/log"
	"cloudfile/pkg/secrets"
	"cloudfile/pkg/tracing"
)

// App 持有配置与网关管理器
type App struct {
	Config  *config.Config
	Logger  *log.Logger
	Manager *gateway.Manager
	tracer  *sdktrace.TracerProvider
}

// NewApp 创建应用：初始化日志，解析 secret: 引用，按需启用追踪，构造全部网关
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if cfg.HasSecretRefs() {
		store, err := secrets.NewStore(cfg.Secrets)
		if err != nil {
			logger.Close()
			return nil, fmt.Errorf("init secret store: %w", err)
		}
		if err := cfg.ResolveSecrets(ctx, store); err != nil {
			logger.Close()
			return nil, fmt.Errorf("resolve secrets: %w", err)
		}
	}

	a := &App{Config: cfg, Logger: logger}
	if cfg.Monitoring.Tracing.Enable {
		tp, err := tracing.InitTracer(tracing.OTelConfig{
			ServiceName:    cfg.Monitoring.Tracing.ServiceName,
			ExportEndpoint: cfg.Monitoring.Tracing.ExportEndpoint,
			Insecure:       cfg.Monitoring.Tracing.Insecure,
		})
		if err != nil {
			logger.Warn("tracing disabled", "error", err)
		} else {
			a.tracer = tp
		}
	}

	m, err := gateway.NewManager(ctx, cfg, logger)
	if err != nil {
		a.Shutdown(ctx)
		return nil, fmt.Errorf("init gateways: %w", err)
	}
	a.Manager = m
	logger.Debug("gateways ready", "adapters", m.Names())
	return a, nil
}

// Gateway 按名称取网关，空名取默认
func (a *App) Gateway(name string) (*gateway.Gateway, error) {
	return a.Manager.Get(name)
}

// Shutdown 刷新追踪并关闭缓存与日志
func (a *App) Shutdown(ctx context.Context) error {
	var firstErr error
	if err := tracing.Shutdown(ctx, a.tracer); err != nil {
		firstErr = err
	}
	if a.Manager != nil {
		if err := a.Manager.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := a.Logger.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
