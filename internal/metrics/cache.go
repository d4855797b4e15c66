package metrics

import (
	"context"
	"time"

	"github.com/danielkropka/social-flow-sub001/internal/core"
)

// CacheWrapper provides a read-through cache for gauge source counts.
// It queries the database on cache miss so that several instances sharing
// a Redis cache do not all hit the database on every gauge tick.
type CacheWrapper struct {
	store core.MetricsStore
	cache core.Cache[int64]
}

// NewCacheWrapper creates a new cache wrapper for metrics.
func NewCacheWrapper(store core.MetricsStore, cache core.Cache[int64]) *CacheWrapper {
	return &CacheWrapper{
		store: store,
		cache: cache,
	}
}

// GetConnectedAccountsCount returns the number of accounts in status.
func (m *CacheWrapper) GetConnectedAccountsCount(
	ctx context.Context,
	status string,
	ttl time.Duration,
) (int64, error) {
	return m.cache.GetWithFetch(
		ctx,
		"accounts:"+status,
		ttl,
		func(ctx context.Context, _ string) (int64, error) {
			return m.store.CountConnectedAccountsByStatus(ctx, status)
		},
	)
}
