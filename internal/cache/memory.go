package cache

import (
	"context"
	"sync"
	"time"

	"github.com/danielkropka/social-flow-sub001/internal/core"
)

type cacheItem[T any] struct {
	value     T
	expiresAt time.Time
}

// Compile-time interface check.
var _ core.Cache[struct{}] = (*MemoryCache[struct{}])(nil)

// MemoryCache implements Cache interface with in-memory storage.
// Uses lazy expiration (checks expiry on read).
// Suitable for single-instance deployments.
type MemoryCache[T any] struct {
	mu    sync.RWMutex
	items map[string]cacheItem[T]
	now   func() time.Time
}

// NewMemoryCache creates a new memory cache instance.
func NewMemoryCache[T any]() *MemoryCache[T] {
	return &MemoryCache[T]{
		items: make(map[string]cacheItem[T]),
		now:   time.Now,
	}
}

// WithClock replaces the time source used for expiry checks.
func (m *MemoryCache[T]) WithClock(now func() time.Time) *MemoryCache[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

// Get retrieves a value from cache.
func (m *MemoryCache[T]) Get(ctx context.Context, key string) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, exists := m.items[key]
	if !exists || !m.now().Before(item.expiresAt) {
		var zero T
		return zero, ErrCacheMiss
	}

	return item.value, nil
}

// Set stores a value in cache with TTL.
func (m *MemoryCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = cacheItem[T]{
		value:     value,
		expiresAt: m.now().Add(ttl),
	}

	return nil
}

// SetNX stores a value only if the key is missing or already expired.
func (m *MemoryCache[T]) SetNX(
	ctx context.Context,
	key string,
	value T,
	ttl time.Duration,
) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if item, exists := m.items[key]; exists && now.Before(item.expiresAt) {
		return false, nil
	}

	m.items[key] = cacheItem[T]{
		value:     value,
		expiresAt: now.Add(ttl),
	}
	return true, nil
}

// Delete removes a key from cache.
func (m *MemoryCache[T]) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (m *MemoryCache[T]) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, item := range m.items {
		if !now.Before(item.expiresAt) {
			delete(m.items, key)
			removed++
		}
	}
	return removed
}

// Close cleans up resources.
func (m *MemoryCache[T]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make(map[string]cacheItem[T])
	return nil
}

// Health checks if the cache is healthy (always true for memory cache).
func (m *MemoryCache[T]) Health(ctx context.Context) error {
	return nil
}

// GetWithFetch retrieves a value using the cache-aside pattern.
// On cache miss, fetchFunc is called and the result is stored in cache.
// No stampede protection is provided (single-instance memory cache).
func (m *MemoryCache[T]) GetWithFetch(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fetchFunc func(ctx context.Context, key string) (T, error),
) (T, error) {
	if value, err := m.Get(ctx, key); err == nil {
		return value, nil
	}
	value, err := fetchFunc(ctx, key)
	if err != nil {
		var zero T
		return zero, err
	}
	_ = m.Set(ctx, key, value, ttl)
	return value, nil
}
