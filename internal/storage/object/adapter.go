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

package object

import (
	"sort"
	"strings"
)

// Adapter 存储后端标识（规范化后的适配器名）
type Adapter string

const (
	AdapterAliyun      Adapter = "aliyun"       // 主对象存储（OSS 族）
	AdapterTOS         Adapter = "tos"          // 火山引擎 TOS
	AdapterOBS         Adapter = "obs"          // 华为云 OBS
	AdapterFileService Adapter = "file_service" // 内部文件服务
	AdapterLocal       Adapter = "local"        // 本地磁盘
	AdapterMinio       Adapter = "minio"        // S3 兼容存储
)

// String 返回适配器名
func (a Adapter) String() string {
	return string(a)
}

var adapterAliases = map[string]Adapter{
	"aliyun":        AdapterAliyun,
	"oss":           AdapterAliyun,
	"aliyun-oss":    AdapterAliyun,
	"tos":           AdapterTOS,
	"volcengine":    AdapterTOS,
	"volc":          AdapterTOS,
	"obs":           AdapterOBS,
	"huawei":        AdapterOBS,
	"huaweicloud":   AdapterOBS,
	"file_service":  AdapterFileService,
	"fileservice":   AdapterFileService,
	"file-service":  AdapterFileService,
	"local":         AdapterLocal,
	"disk":          AdapterLocal,
	"localdisk":     AdapterLocal,
	"minio":         AdapterMinio,
	"s3":            AdapterMinio,
	"s3-compatible": AdapterMinio,
}

// Adapters 返回全部规范适配器
func Adapters() []Adapter {
	return []Adapter{AdapterAliyun, AdapterTOS, AdapterOBS, AdapterFileService, AdapterLocal, AdapterMinio}
}

// ResolveAdapter 将大小写不敏感、带别名的名称解析为规范适配器；未知名称返回 ErrUnknownAdapter
func ResolveAdapter(name string) (Adapter, error) {
	a, ok := adapterAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", &UnknownAdapterError{Name: name}
	}
	return a, nil
}

// 配置键
const (
	KeyAccessID     = "access_id"
	KeyAccessSecret = "access_secret"
	KeyAK           = "ak"
	KeySK           = "sk"
	KeyAccessKey    = "access_key"
	KeySecretKey    = "secret_key"
	KeyBucket       = "bucket"
	KeyEndpoint     = "endpoint"
	KeyRegion       = "region"
	KeyHost         = "host"
	KeyPlatform     = "platform"
	KeyKey          = "key"
	KeyRoot         = "root"
	KeyRoleArn      = "role_arn"
	KeySTSEndpoint  = "sts_endpoint"
	KeySessionToken = "session_token"
	KeyPublicRead   = "public_read"
	KeyPublicDomain = "public_domain"
	KeyKeyPrefix    = "key_prefix"
)

var requiredFields = map[Adapter][]string{
	AdapterAliyun:      {KeyAccessID, KeyAccessSecret, KeyBucket, KeyEndpoint},
	AdapterTOS:         {KeyRegion, KeyEndpoint, KeyAK, KeySK, KeyBucket},
	AdapterOBS:         {KeyAK, KeySK, KeyBucket, KeyEndpoint},
	AdapterFileService: {KeyHost, KeyPlatform, KeyKey},
	AdapterMinio:       {KeyEndpoint, KeyAccessKey, KeySecretKey, KeyBucket},
	AdapterLocal:       nil,
}

// RequiredFields 返回适配器的必填配置键（副本）
func RequiredFields(a Adapter) []string {
	return append([]string(nil), requiredFields[a]...)
}

// BackendConfig 后端配置（扁平 key/value）
type BackendConfig map[string]string

// Get 读取配置值（去除首尾空白）
func (c BackendConfig) Get(key string) string {
	return strings.TrimSpace(c[key])
}

// Bool 读取布尔型配置（"true"/"1"/"yes"）
func (c BackendConfig) Bool(key string) bool {
	switch strings.ToLower(c.Get(key)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// Clone 返回配置副本
func (c BackendConfig) Clone() BackendConfig {
	out := make(BackendConfig, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// ValidateConfig 校验必填字段；缺失字段按字母序放入 InvalidConfigError
func ValidateConfig(a Adapter, cfg BackendConfig) (BackendConfig, error) {
	fields, ok := requiredFields[a]
	if !ok {
		return nil, &UnknownAdapterError{Name: string(a)}
	}
	var missing []string
	for _, f := range fields {
		if cfg.Get(f) == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &InvalidConfigError{Adapter: a, Missing: missing}
	}
	if cfg == nil {
		cfg = BackendConfig{}
	}
	return cfg, nil
}
