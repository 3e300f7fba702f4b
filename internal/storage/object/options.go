package object

import "strings"

// Options 调用方附加选项（透传给驱动，部分参与缓存键）
type Options map[string]any

// 不参与缓存键的选项
var nonCacheOptions = map[string]struct{}{
	"cache":      {},
	"nonce":      {},
	"request_id": {},
	"trace_id":   {},
}

// CacheEnabled 除非显式传入 cache=false，否则启用缓存
func (o Options) CacheEnabled() bool {
	v, ok := o["cache"]
	if !ok {
		return true
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return !strings.EqualFold(b, "false")
	}
	return true
}

// String 读取字符串选项
func (o Options) String(key string) string {
	if s, ok := o[key].(string); ok {
		return s
	}
	return ""
}

// CacheRelevant 返回参与缓存键的选项子集；无则为 nil
func (o Options) CacheRelevant() map[string]any {
	if len(o) == 0 {
		return nil
	}
	out := make(map[string]any, len(o))
	for k, v := range o {
		if _, skip := nonCacheOptions[k]; skip {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
