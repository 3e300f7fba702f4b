// Package utils 通用小工具，不依赖 internal
package utils

import (
	"cmp"
	"slices"
)

// Coalesce 返回第一个非零值
func Coalesce[T comparable](vs ...T) T {
	var zero T
	for _, v := range vs {
		if v != zero {
			return v
		}
	}
	return zero
}

// PositiveOr 若 v <= 0 则返回 def
func PositiveOr[T ~int | ~int64](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

// SortedKeys 返回 map 的键（升序）
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
