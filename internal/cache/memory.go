package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory 进程内缓存，未配置 Redis 或测试时使用
type Memory struct {
	store *gocache.Cache
}

func NewMemory() *Memory {
	return &Memory{store: gocache.New(15*time.Minute, 30*time.Minute)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.store.Get(key)
	if !ok {
		return nil, false, nil
	}
	raw, ok := v.([]byte)
	return raw, ok, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	buf := make([]byte, len(value))
	copy(buf, value)
	m.store.Set(key, buf, ttl)
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.store.Delete(k)
	}
	return nil
}

// Len 当前条目数
func (m *Memory) Len() int {
	return m.store.ItemCount()
}
