package object

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCredentialPolicy_Defaults(t *testing.T) {
	p := NewCredentialPolicy("uploads/")
	assert.Equal(t, "uploads/", p.Dir)
	assert.False(t, p.Scoped)
	assert.Equal(t, DefaultCredentialTTL, p.TTL)
	assert.True(t, strings.HasPrefix(p.SessionName, "cloudfile-"))

	p.TTL = 0
	assert.Equal(t, DefaultCredentialTTL, p.EffectiveTTL())
}

func TestCredentialPolicy_MutatorsCopy(t *testing.T) {
	base := NewCredentialPolicy("uploads/")
	scoped := base.WithScoped(true).WithSubOperation(SubOpHeadObject)
	assert.False(t, base.Scoped)
	assert.Empty(t, base.SubOperation)
	assert.True(t, scoped.Scoped)
	assert.Equal(t, SubOpHeadObject, scoped.SubOperation)
}

func TestCacheKey_Deterministic(t *testing.T) {
	a := NewCredentialPolicy("uploads/").WithScoped(true)
	b := NewCredentialPolicy("uploads/").WithScoped(true)
	// 会话名随机，不参与缓存键
	assert.NotEqual(t, a.SessionName, b.SessionName)
	assert.Equal(t, a.CacheKey(nil), b.CacheKey(nil))
	assert.True(t, strings.HasPrefix(a.CacheKey(nil), "credential:"))
}

func TestCacheKey_SeparatesSemantics(t *testing.T) {
	base := NewCredentialPolicy("uploads/").WithScoped(true)
	keys := map[string]string{
		"base":    base.CacheKey(nil),
		"simple":  base.WithScoped(false).CacheKey(nil),
		"head":    base.WithSubOperation(SubOpHeadObject).CacheKey(nil),
		"list":    base.WithSubOperation(SubOpListObjects).CacheKey(nil),
		"dir":     NewCredentialPolicy("other/").WithScoped(true).CacheKey(nil),
		"options": base.CacheKey(Options{"region": "cn-north-4"}),
	}
	seen := map[string]string{}
	for name, k := range keys {
		if prev, ok := seen[k]; ok {
			t.Fatalf("%s and %s share cache key", prev, name)
		}
		seen[k] = name
	}
}

func TestCacheKey_ContentTypeOnlyForSimple(t *testing.T) {
	scoped := NewCredentialPolicy("uploads/").WithScoped(true)
	assert.Equal(t, scoped.CacheKey(nil), scoped.WithContentType("image/png").CacheKey(nil))

	simple := NewCredentialPolicy("uploads/")
	assert.NotEqual(t, simple.CacheKey(nil), simple.WithContentType("image/png").CacheKey(nil))
}

func TestCacheKey_IgnoresTransientOptions(t *testing.T) {
	p := NewCredentialPolicy("uploads/")
	assert.Equal(t, p.CacheKey(nil), p.CacheKey(Options{"cache": false, "request_id": "r-1", "nonce": 7}))
}

func TestOptions_CacheEnabled(t *testing.T) {
	assert.True(t, Options(nil).CacheEnabled())
	assert.True(t, Options{"cache": true}.CacheEnabled())
	assert.False(t, Options{"cache": false}.CacheEnabled())
	assert.False(t, Options{"cache": "FALSE"}.CacheEnabled())
	assert.Equal(t, "", Options{"method": 1}.String("method"))
}
