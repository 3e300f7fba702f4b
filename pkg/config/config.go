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

package config

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"cloudfile/pkg/secrets"
)

// DefaultPath 默认配置文件
const DefaultPath = "configs/cloudfile.yaml"

// Config 应用配置结构体
type Config struct {
	Gateway    GatewayConfig            `mapstructure:"gateway"`
	Adapters   map[string]AdapterConfig `mapstructure:"adapters"`
	Cache      CacheConfig              `mapstructure:"cache"`
	Secrets    secrets.Config           `mapstructure:"secrets"`
	Log        LogConfig                `mapstructure:"log"`
	Monitoring MonitoringConfig         `mapstructure:"monitoring"`
}

// GatewayConfig 网关默认行为
type GatewayConfig struct {
	Default       string `mapstructure:"default"`        // 默认使用的 adapters 条目名
	CredentialTTL int64  `mapstructure:"credential_ttl"` // 临时凭证有效期（秒）
	LinkExpires   int64  `mapstructure:"link_expires"`   // 下载链接有效期（秒）
	Cache         *bool  `mapstructure:"cache"`          // 为 false 时不挂缓存
}

// CacheEnabled 未配置时默认启用
func (g GatewayConfig) CacheEnabled() bool {
	return g.Cache == nil || *g.Cache
}

// AdapterConfig 单个后端实例：adapter 为厂商名或别名，config 为该厂商的连接参数
type AdapterConfig struct {
	Adapter string            `mapstructure:"adapter"`
	Config  map[string]string `mapstructure:"config"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Type     string `mapstructure:"type"` // memory | lru | redis
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
	Size     int    `mapstructure:"size"` // lru 容量
	Prefix   string `mapstructure:"prefix"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gateway.credential_ttl", 3600)
	v.SetDefault("gateway.link_expires", 3600)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.size", 4096)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("secrets.provider", "env")
	v.SetDefault("secrets.path_prefix", "CLOUDFILE_")
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("CLOUDFILE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := replaceEnvVars(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(envPattern.FindStringSubmatch(m)[1])
	})
}

// replaceEnvVars 替换配置中的 ${ENV} 占位
func replaceEnvVars(config *Config) error {
	for name, a := range config.Adapters {
		for k, v := range a.Config {
			a.Config[k] = expandEnv(v)
		}
		config.Adapters[name] = a
	}
	config.Cache.Addr = expandEnv(config.Cache.Addr)
	config.Cache.Password = expandEnv(config.Cache.Password)
	config.Secrets.Address = expandEnv(config.Secrets.Address)
	config.Secrets.Token = expandEnv(config.Secrets.Token)
	return nil
}

// ResolveSecrets 用 secret store 解析 adapters 中的 secret:<key> 引用
func (c *Config) ResolveSecrets(ctx context.Context, store secrets.Store) error {
	for name, a := range c.Adapters {
		if err := secrets.ResolveMap(ctx, store, a.Config); err != nil {
			return fmt.Errorf("adapter %s: %w", name, err)
		}
	}
	return nil
}

// HasSecretRefs 是否存在需要解析的引用
func (c *Config) HasSecretRefs() bool {
	for _, a := range c.Adapters {
		for _, v := range a.Config {
			if secrets.IsRef(v) {
				return true
			}
		}
	}
	return false
}

// Adapter 按名称取后端实例配置；name 为空时取 gateway.default
func (c *Config) Adapter(name string) (string, AdapterConfig, error) {
	if name == "" {
		name = c.Gateway.Default
	}
	if name == "" && len(c.Adapters) == 1 {
		for n := range c.Adapters {
			name = n
		}
	}
	a, ok := c.Adapters[name]
	if !ok {
		return name, AdapterConfig{}, fmt.Errorf("adapter %q not configured", name)
	}
	if a.Adapter == "" {
		a.Adapter = name
	}
	return name, a, nil
}
