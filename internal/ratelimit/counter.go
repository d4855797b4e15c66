package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter is the shared store behind the fixed-window limiter.
type Counter interface {
	// Incr increments key and returns the post-increment value.
	Incr(ctx context.Context, key string) (int64, error)
	// Expire sets a TTL on key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// RedisCounter keeps window counters in Redis so all instances share them.
type RedisCounter struct {
	client *redis.Client
}

var _ Counter = (*RedisCounter)(nil)

// NewRedisCounter wraps an already connected go-redis client.
func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

func (r *RedisCounter) Incr(ctx context.Context, key string) (int64, error) {
	return r.client.Incr(ctx, key).Result()
}

func (r *RedisCounter) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.client.PExpire(ctx, key, ttl).Err()
}

type memoryEntry struct {
	count     int64
	expiresAt time.Time // zero means no expiry set yet
}

// MemoryCounter is a process-local Counter for single-instance deployments.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

var _ Counter = (*MemoryCounter)(nil)

// NewMemoryCounter creates an empty in-memory counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// WithClock replaces the time source used for expiry.
func (m *MemoryCounter) WithClock(now func() time.Time) *MemoryCounter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

func (m *MemoryCounter) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || m.expired(e) {
		e = &memoryEntry{}
		m.entries[key] = e
	}
	e.count++
	return e.count, nil
}

func (m *MemoryCounter) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok {
		e.expiresAt = m.now().Add(ttl)
	}
	return nil
}

// Sweep removes expired counters and returns how many were dropped.
func (m *MemoryCounter) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked counters.
func (m *MemoryCounter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryCounter) expired(e *memoryEntry) bool {
	return !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt)
}
