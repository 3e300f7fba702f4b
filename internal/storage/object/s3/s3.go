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

// Package s3 S3 API 族驱动，服务 aliyun / tos / obs / minio 四类后端。
// 各厂商均提供 S3 兼容接入点，差异只在端点推导、寻址风格与凭证字段名。
package s3

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/go-resty/resty/v2"

	"cloudfile/internal/storage/object"
	"cloudfile/pkg/errors"
)

const defaultRegion = "us-east-1"

// Config 已解析的 S3 族连接参数
type Config struct {
	Adapter         object.Adapter
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	RoleArn         string
	STSEndpoint     string
	ForcePathStyle  bool
	MaxAttempts     int
}

// ParseConfig 按适配器读取各自的凭证字段名并推导端点
func ParseConfig(adapter object.Adapter, cfg object.BackendConfig) (Config, error) {
	c := Config{
		Adapter:      adapter,
		Bucket:       cfg.Get(object.KeyBucket),
		Region:       cfg.Get(object.KeyRegion),
		Endpoint:     cfg.Get(object.KeyEndpoint),
		SessionToken: cfg.Get(object.KeySessionToken),
		RoleArn:      cfg.Get(object.KeyRoleArn),
		STSEndpoint:  cfg.Get(object.KeySTSEndpoint),
	}
	switch adapter {
	case object.AdapterAliyun:
		c.AccessKeyID, c.SecretAccessKey = cfg.Get(object.KeyAccessID), cfg.Get(object.KeyAccessSecret)
	case object.AdapterTOS, object.AdapterOBS:
		c.AccessKeyID, c.SecretAccessKey = cfg.Get(object.KeyAK), cfg.Get(object.KeySK)
	case object.AdapterMinio:
		c.AccessKeyID, c.SecretAccessKey = cfg.Get(object.KeyAccessKey), cfg.Get(object.KeySecretKey)
		c.ForcePathStyle = true
	default:
		return c, fmt.Errorf("s3: adapter %s is not an S3-family backend", adapter)
	}
	if c.Region == "" {
		c.Region = defaultRegion
	}
	c.Endpoint = EndpointFor(adapter, c.Endpoint, c.Region)
	if c.Bucket == "" {
		return c, fmt.Errorf("s3: bucket is required")
	}
	return c, nil
}

// EndpointFor 返回后端的 S3 兼容接入点；未配置端点时由区域代码推导
func EndpointFor(adapter object.Adapter, endpoint, region string) string {
	endpoint = normalizeEndpoint(endpoint)
	region = strings.TrimSpace(region)
	switch adapter {
	case object.AdapterAliyun:
		if endpoint == "" && region != "" {
			return "https://" + "oss-" + strings.TrimPrefix(region, "oss-") + ".aliyuncs.com"
		}
	case object.AdapterTOS:
		if endpoint == "" && region != "" {
			return "https://tos-s3-" + region + ".volces.com"
		}
		// TOS 原生端点 tos-<region> 不接受 S3 协议，需改写为 tos-s3-<region>
		if strings.Contains(endpoint, "://tos-") && !strings.Contains(endpoint, "://tos-s3-") {
			return strings.Replace(endpoint, "://tos-", "://tos-s3-", 1)
		}
	case object.AdapterOBS:
		if endpoint == "" && region != "" {
			return "https://obs." + region + ".myhuaweicloud.com"
		}
	}
	return endpoint
}

func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSuffix(strings.TrimSpace(endpoint), "/")
	if endpoint == "" || strings.Contains(endpoint, "://") {
		return endpoint
	}
	return "https://" + endpoint
}

// Driver S3 族驱动
type Driver struct {
	cfg     Config
	client  *s3.Client
	presign *s3.PresignClient
	sts     *sts.Client
	http    *resty.Client
	now     func() time.Time
}

// New 根据后端配置创建驱动
func New(ctx context.Context, adapter object.Adapter, backend object.BackendConfig) (*Driver, error) {
	cfg, err := ParseConfig(adapter, backend)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(ctx, cfg)
}

// NewFromConfig 由已解析配置创建驱动
func NewFromConfig(ctx context.Context, cfg Config) (*Driver, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg.Region, cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
	if err != nil {
		return nil, err
	}
	client := newS3Client(awsCfg, cfg.Endpoint, cfg.ForcePathStyle, cfg.MaxAttempts)
	stsClient := sts.NewFromConfig(awsCfg, func(o *sts.Options) {
		if cfg.STSEndpoint != "" {
			o.BaseEndpoint = aws.String(normalizeEndpoint(cfg.STSEndpoint))
		}
	})
	return &Driver{
		cfg:     cfg,
		client:  client,
		presign: s3.NewPresignClient(client),
		sts:     stsClient,
		http:    resty.New().SetTimeout(5 * time.Minute),
		now:     time.Now,
	}, nil
}

func loadAWSConfig(ctx context.Context, region, ak, sk, token string) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if ak != "" && sk != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(ak, sk, token),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, errors.Wrap(err, "failed to load AWS config")
	}
	return awsCfg, nil
}

func newS3Client(awsCfg aws.Config, endpoint string, pathStyle bool, maxAttempts int) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = pathStyle
		if maxAttempts > 0 {
			o.RetryMaxAttempts = maxAttempts
		}
	})
}

// Bucket 返回桶名
func (d *Driver) Bucket() string {
	return d.cfg.Bucket
}

// clientFor 用 STS 凭证构造一次性客户端；凭证缺字段时报错
func (d *Driver) clientFor(ctx context.Context, cred *object.Credential) (*s3.Client, string, error) {
	if cred == nil {
		return nil, "", fmt.Errorf("s3: credential required")
	}
	ak := cred.PayloadString(object.CredAccessKeyID)
	sk := cred.PayloadString(object.CredSecretAccessKey)
	if ak == "" || sk == "" {
		return nil, "", fmt.Errorf("s3: credential for %s carries no key pair (simple credentials only support upload)", cred.Platform)
	}
	region := cred.PayloadString(object.CredRegion)
	if region == "" {
		region = d.cfg.Region
	}
	endpoint := normalizeEndpoint(cred.PayloadString(object.CredEndpoint))
	if endpoint == "" {
		endpoint = d.cfg.Endpoint
	}
	bucket := cred.PayloadString(object.CredBucket)
	if bucket == "" {
		bucket = d.cfg.Bucket
	}
	awsCfg, err := loadAWSConfig(ctx, region, ak, sk, cred.PayloadString(object.CredSessionToken))
	if err != nil {
		return nil, "", err
	}
	return newS3Client(awsCfg, endpoint, d.cfg.ForcePathStyle, d.cfg.MaxAttempts), bucket, nil
}

var (
	_ object.Filesystem         = (*Driver)(nil)
	_ object.ExpandDriver       = (*Driver)(nil)
	_ object.SimpleUploadDriver = (*Driver)(nil)
)
