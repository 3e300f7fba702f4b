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

// Package fileservice 内部文件服务驱动。文件服务本身托管在某个真实后端之上（platform），
// 负责代签该后端的临时凭证；对象读写走文件服务的 HTTP 接口。
package fileservice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"cloudfile/internal/storage/object"
)

const (
	headerKey       = "X-File-Service-Key"
	headerPlatform  = "X-File-Service-Platform"
	headerRequestID = "X-Request-Id"

	// 凭证负载中文件服务自身的上传令牌
	CredToken = "token"

	defaultRateLimit = 20
	defaultTimeout   = 60 * time.Second
)

// Config 文件服务连接参数
type Config struct {
	Host      string
	Platform  string
	Key       string
	KeyPrefix string
	RateLimit float64 // 每秒凭证签发上限
	Timeout   time.Duration
}

// ParseConfig 读取 host / platform / key 及可选 key_prefix、rate_limit
func ParseConfig(cfg object.BackendConfig) (Config, error) {
	c := Config{
		Host:      strings.TrimSuffix(cfg.Get(object.KeyHost), "/"),
		Platform:  strings.ToLower(cfg.Get(object.KeyPlatform)),
		Key:       cfg.Get(object.KeyKey),
		KeyPrefix: cfg.Get(object.KeyKeyPrefix),
		RateLimit: defaultRateLimit,
		Timeout:   defaultTimeout,
	}
	if c.Host == "" || c.Platform == "" || c.Key == "" {
		return c, fmt.Errorf("fileservice: host, platform and key are required")
	}
	if !strings.Contains(c.Host, "://") {
		c.Host = "http://" + c.Host
	}
	if v := cfg.Get("rate_limit"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r <= 0 {
			return c, fmt.Errorf("fileservice: invalid rate_limit %q", v)
		}
		c.RateLimit = r
	}
	if v := cfg.Get("timeout"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return c, fmt.Errorf("fileservice: invalid timeout %q", v)
		}
		c.Timeout = d
	}
	return c, nil
}

// Driver 文件服务驱动
type Driver struct {
	cfg     Config
	client  *resty.Client
	limiter *rate.Limiter
	now     func() time.Time
}

// New 根据后端配置创建驱动
func New(backend object.BackendConfig) (*Driver, error) {
	cfg, err := ParseConfig(backend)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(cfg), nil
}

// NewFromConfig 由已解析配置创建驱动
func NewFromConfig(cfg Config) *Driver {
	client := resty.New().
		SetBaseURL(cfg.Host).
		SetTimeout(cfg.Timeout).
		SetHeader(headerKey, cfg.Key).
		SetHeader(headerPlatform, cfg.Platform)
	burst := int(cfg.RateLimit)
	if burst < 1 {
		burst = 1
	}
	return &Driver{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), burst),
		now:     time.Now,
	}
}

// Platform 文件服务托管的真实后端
func (d *Driver) Platform() string {
	return d.cfg.Platform
}

// APIError 文件服务返回的非 2xx
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("fileservice: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("fileservice: %d %s", e.Status, e.Message)
}

// Is 404 视为 object.ErrNotFound
func (e *APIError) Is(target error) bool {
	return target == object.ErrNotFound && e.Status == http.StatusNotFound
}

func (d *Driver) request(ctx context.Context) *resty.Request {
	return d.client.R().
		SetContext(ctx).
		SetHeader(headerRequestID, uuid.NewString())
}

// authorized 用凭证中的令牌替换服务密钥
func (d *Driver) authorized(ctx context.Context, cred *object.Credential) (*resty.Request, error) {
	if cred == nil {
		return nil, fmt.Errorf("fileservice: credential required")
	}
	token := cred.PayloadString(CredToken)
	if token == "" {
		return nil, fmt.Errorf("fileservice: credential carries no token")
	}
	return d.request(ctx).SetAuthToken(token), nil
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !resp.IsError() {
		return nil
	}
	apiErr := &APIError{Status: resp.StatusCode()}
	if e, ok := resp.Error().(*APIError); ok && e != nil {
		apiErr.Code, apiErr.Message = e.Code, e.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(resp.String())
		if apiErr.Message == "" {
			apiErr.Message = resp.Status()
		}
	}
	return apiErr
}

func objectPath(key string) string {
	parts := strings.Split(strings.TrimPrefix(key, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return "/api/v1/objects/" + strings.Join(parts, "/")
}

// Write 服务端直写；size 仅用于接口一致，请求体以分块编码发送
func (d *Driver) Write(ctx context.Context, key string, data io.Reader, size int64, contentType string) error {
	req := d.request(ctx).SetBody(data).SetError(&APIError{})
	if contentType != "" {
		req.SetHeader("Content-Type", contentType)
	}
	return check(req.Put(objectPath(key)))
}

// Read 读取对象，调用方负责关闭
func (d *Driver) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := d.request(ctx).SetDoNotParseResponse(true).Get(objectPath(key))
	if err != nil {
		return nil, err
	}
	body := resp.RawBody()
	if resp.IsError() {
		defer body.Close()
		msg, _ := io.ReadAll(io.LimitReader(body, 4096))
		return nil, &APIError{Status: resp.StatusCode(), Message: strings.TrimSpace(string(msg))}
	}
	return body, nil
}

// Delete 删除对象
func (d *Driver) Delete(ctx context.Context, key string) error {
	return check(d.request(ctx).SetError(&APIError{}).Delete(objectPath(key)))
}

// Exists 检查对象是否存在
func (d *Driver) Exists(ctx context.Context, key string) (bool, error) {
	resp, err := d.request(ctx).Head(objectPath(key))
	if err != nil {
		return false, err
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return false, nil
	case resp.IsError():
		return false, &APIError{Status: resp.StatusCode(), Message: resp.Status()}
	}
	return true, nil
}

var (
	_ object.Filesystem         = (*Driver)(nil)
	_ object.ExpandDriver       = (*Driver)(nil)
	_ object.SimpleUploadDriver = (*Driver)(nil)
)
