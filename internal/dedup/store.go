package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"currency-ledger/internal/types"

	"github.com/redis/go-redis/v9"
)

// Store 幂等去重存储：传输层是 at-least-once，重复投递的事件在入账前被过滤。
// Seen 必须是原子的"检查并标记"。
type Store interface {
	// Seen 标记 (source, seq)，返回此前是否已见过
	Seen(ctx context.Context, source types.Principal, seq uint64) (bool, error)
}

// MemoryStore 进程内去重，适合单实例镜像与测试
type MemoryStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]struct{})}
}

func (m *MemoryStore) Seen(_ context.Context, source types.Principal, seq uint64) (bool, error) {
	key := dedupKey(source, seq)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[key]; ok {
		return true, nil
	}
	m.seen[key] = struct{}{}
	return false, nil
}

const defaultTTL = 24 * time.Hour

// RedisStore 基于 SET NX + TTL 的去重，多实例镜像共用一份判重状态
type RedisStore struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewRedisStore(rdb redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (r *RedisStore) Seen(ctx context.Context, source types.Principal, seq uint64) (bool, error) {
	set, err := r.rdb.SetNX(ctx, dedupKey(source, seq), 1, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx error: %w", err)
	}
	return !set, nil
}

func dedupKey(source types.Principal, seq uint64) string {
	return fmt.Sprintf("ledger:dedup:%s:%d", source, seq)
}
