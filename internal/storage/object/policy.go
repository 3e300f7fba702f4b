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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// DefaultCredentialTTL 临时凭证默认有效期（秒）
const DefaultCredentialTTL int64 = 3600

// 子操作标签：区分同一目录下不同权限范围的凭证
const (
	SubOpListObjects  = "list_objects"
	SubOpDelObject    = "del_object"
	SubOpDelObjects   = "del_objects"
	SubOpCopyObject   = "copy_object"
	SubOpHeadObject   = "head_object"
	SubOpSetMeta      = "set_object_meta"
	SubOpCreateObject = "create_object"
	SubOpPresignedURL = "presigned_url"
)

// CredentialPolicy 临时凭证请求描述
type CredentialPolicy struct {
	Scoped       bool   `json:"scoped"`        // true 为 STS 范围凭证，false 为简单上传凭证
	Dir          string `json:"dir"`           // 授权目录前缀
	SessionName  string `json:"session_name"`  // 会话名，仅作标识
	SubOperation string `json:"sub_operation"` // 子操作标签，空表示无
	ContentType  string `json:"content_type"`  // 简单上传时写入策略的 MIME
	TTL          int64  `json:"ttl"`           // 有效期（秒）
}

// NewCredentialPolicy 创建目录范围的凭证策略
func NewCredentialPolicy(dir string) CredentialPolicy {
	return CredentialPolicy{
		Dir:         dir,
		SessionName: "cloudfile-" + uuid.NewString()[:8],
		TTL:         DefaultCredentialTTL,
	}
}

// WithScoped 返回设置了 STS 标志的副本
func (p CredentialPolicy) WithScoped(scoped bool) CredentialPolicy {
	p.Scoped = scoped
	return p
}

// WithSubOperation 返回设置了子操作标签的副本
func (p CredentialPolicy) WithSubOperation(op string) CredentialPolicy {
	p.SubOperation = op
	return p
}

// WithContentType 返回设置了 MIME 的副本
func (p CredentialPolicy) WithContentType(contentType string) CredentialPolicy {
	p.ContentType = contentType
	return p
}

// EffectiveTTL 返回有效期，未设置时为默认值
func (p CredentialPolicy) EffectiveTTL() int64 {
	if p.TTL <= 0 {
		return DefaultCredentialTTL
	}
	return p.TTL
}

// CacheKey 由影响凭证语义的字段与调用方缓存相关选项确定性地派生缓存键
func (p CredentialPolicy) CacheKey(opts Options) string {
	key := struct {
		Scoped       bool           `json:"scoped"`
		Dir          string         `json:"dir"`
		SubOperation string         `json:"sub_operation,omitempty"`
		TTL          int64          `json:"ttl"`
		ContentType  string         `json:"content_type,omitempty"`
		Options      map[string]any `json:"options,omitempty"`
	}{
		Scoped:       p.Scoped,
		Dir:          strings.TrimSpace(p.Dir),
		SubOperation: p.SubOperation,
		TTL:          p.EffectiveTTL(),
		Options:      opts.CacheRelevant(),
	}
	// STS 凭证与 MIME 无关，只有简单上传策略会把 MIME 写进签名
	if !p.Scoped {
		key.ContentType = p.ContentType
	}
	return "credential:" + hashJSON(key)
}

func hashJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte(fmt.Sprintf("%#v", v))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashKey 对任意可序列化值求稳定哈希（map 键按字母序序列化）
func HashKey(parts ...any) string {
	return hashJSON(parts)
}
