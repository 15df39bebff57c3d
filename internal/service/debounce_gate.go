package service

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// DebounceGate 判断某个 key 在窗口期内是否已经放行过
type DebounceGate interface {
	Allow(ctx context.Context, key string, window time.Duration) (bool, error)
}

// MemoryDebounceGate 单实例部署或 Redis 不可用时使用
type MemoryDebounceGate struct {
	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

func NewMemoryDebounceGate(now func() time.Time) *MemoryDebounceGate {
	if now == nil {
		now = time.Now
	}
	return &MemoryDebounceGate{last: make(map[string]time.Time), now: now}
}

func (g *MemoryDebounceGate) Allow(ctx context.Context, key string, window time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if last, ok := g.last[key]; ok && now.Sub(last) < window {
		return false, nil
	}
	g.last[key] = now
	return true, nil
}

// Forget 会话结束后清掉记录
func (g *MemoryDebounceGate) Forget(key string) {
	g.mu.Lock()
	delete(g.last, key)
	g.mu.Unlock()
}

// RedisDebounceGate 多实例部署时共享防抖状态，SET NX PX 成功即放行
type RedisDebounceGate struct {
	Client *redis.Client
	Prefix string
}

func NewRedisDebounceGate(client *redis.Client) *RedisDebounceGate {
	return &RedisDebounceGate{Client: client, Prefix: "violation:"}
}

func (g *RedisDebounceGate) Allow(ctx context.Context, key string, window time.Duration) (bool, error) {
	return g.Client.SetNX(ctx, g.Prefix+key, time.Now().UnixMilli(), window).Result()
}
