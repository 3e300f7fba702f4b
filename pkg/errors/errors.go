// Package errors 提供统一错误辅助，不依赖 internal
package errors

import (
	"errors"
	"fmt"
)

// ErrNotFound 对象或资源不存在
var ErrNotFound = errors.New("not found")

// New 同标准库 errors.New
func New(text string) error {
	return errors.New(text)
}

// Is 同标准库 errors.Is
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As 同标准库 errors.As
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Wrap 包装错误并附加消息；err 为 nil 时返回 nil
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
