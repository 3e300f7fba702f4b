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
	"fmt"
	"strconv"
)

// 凭证载荷中的常用键（S3 族后端）
const (
	CredAccessKeyID     = "access_key_id"
	CredSecretAccessKey = "secret_access_key"
	CredSessionToken    = "session_token"
	CredBucket          = "bucket"
	CredRegion          = "region"
	CredEndpoint        = "endpoint"
	CredDir             = "dir"
	CredRoot            = "root"
	CredPolicy          = "policy"
	CredSignature       = "signature"
)

// Credential 已签发的临时凭证；仅存在于缓存与消费它的驱动中，不落盘
type Credential struct {
	Platform  Adapter        `json:"platform"`
	Payload   map[string]any `json:"payload"`
	ExpiresAt int64          `json:"expires_at"`
}

// PayloadString 以字符串读取载荷字段
func (c *Credential) PayloadString(key string) string {
	if c == nil || c.Payload == nil {
		return ""
	}
	switch v := c.Payload[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Dir 返回凭证授权目录
func (c *Credential) Dir() string {
	return c.PayloadString(CredDir)
}
