package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultLRUSize = 4096

type lruEntry struct {
	value     []byte
	expiresAt time.Time
}

// LRUStore 有界内存缓存，满时淘汰最久未用项；每项独立过期
type LRUStore struct {
	cache *lru.Cache[string, lruEntry]
	now   func() time.Time
}

// NewLRUStore size <= 0 时使用默认容量
func NewLRUStore(size int) (*LRUStore, error) {
	if size <= 0 {
		size = defaultLRUSize
	}
	c, err := lru.New[string, lruEntry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}
	return &LRUStore{cache: c, now: time.Now}, nil
}

// WithClock 替换时钟（测试用）
func (s *LRUStore) WithClock(now func() time.Time) *LRUStore {
	s.now = now
	return s
}

func (s *LRUStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	e := lruEntry{value: data}
	if expiration > 0 {
		e.expiresAt = s.now().Add(expiration)
	}
	s.cache.Add(key, e)
	return nil
}

func (s *LRUStore) lookup(key string) (lruEntry, bool) {
	e, ok := s.cache.Get(key)
	if !ok {
		return e, false
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		s.cache.Remove(key)
		return e, false
	}
	return e, true
}

func (s *LRUStore) Get(ctx context.Context, key string, dest interface{}) error {
	e, ok := s.lookup(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrMiss, key)
	}
	if err := json.Unmarshal(e.value, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return nil
}

func (s *LRUStore) Delete(ctx context.Context, key string) error {
	s.cache.Remove(key)
	return nil
}

func (s *LRUStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := s.lookup(key)
	return ok, nil
}

func (s *LRUStore) Clear(ctx context.Context) error {
	s.cache.Purge()
	return nil
}

// Len 当前条目数
func (s *LRUStore) Len() int {
	return s.cache.Len()
}

func (s *LRUStore) Close() error {
	return nil
}
