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
	"strings"

	"cloudfile/pkg/errors"
)

// 错误分类哨兵，调用方用 errors.Is 判断
var (
	ErrUnknownAdapter                   = errors.New("unknown adapter")
	ErrInvalidAdapterConfig             = errors.New("invalid adapter config")
	ErrSourceUnreadable                 = errors.New("source unreadable")
	ErrCredentialIssuanceFailed         = errors.New("credential issuance failed")
	ErrUnsupportedCredentialTranslation = errors.New("unsupported credential translation")
	ErrLinkIssuanceFailed               = errors.New("link issuance failed")
	ErrChunkDownloadFailed              = errors.New("chunk download failed")
	ErrDriverNotRegistered              = errors.New("driver not registered")
	ErrNotFound                         = errors.ErrNotFound
)

// UnknownAdapterError 无法解析的适配器名
type UnknownAdapterError struct {
	Name string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown adapter %q", e.Name)
}

func (e *UnknownAdapterError) Is(target error) bool {
	return target == ErrUnknownAdapter
}

// InvalidConfigError 缺少必填配置
type InvalidConfigError struct {
	Adapter Adapter
	Missing []string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config for adapter %s: missing %s", e.Adapter, strings.Join(e.Missing, ", "))
}

func (e *InvalidConfigError) Is(target error) bool {
	return target == ErrInvalidAdapterConfig
}

// OperationError 带操作上下文的错误；Kind 为分类哨兵，Err 为原始原因
type OperationError struct {
	Kind    error
	Op      string
	Subject string
	Err     error
}

func (e *OperationError) Error() string {
	msg := e.Kind.Error() + ": " + e.Op
	if e.Subject != "" {
		msg += " " + e.Subject
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *OperationError) Is(target error) bool {
	return target == e.Kind
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// NewOperationError 构造 OperationError
func NewOperationError(kind error, op, subject string, err error) *OperationError {
	return &OperationError{Kind: kind, Op: op, Subject: subject, Err: err}
}
