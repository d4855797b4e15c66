package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danielkropka/social-flow-sub001/internal/cache"
	"github.com/danielkropka/social-flow-sub001/internal/mocks"

	"go.uber.org/mock/gomock"
)

func TestCacheWrapper_GetConnectedAccountsCount_CacheHit(t *testing.T) {
	ctx := context.Background()
	memCache := cache.NewMemoryCache[int64]()
	ctrl := gomock.NewController(t)
	mockStore := mocks.NewMockMetricsStore(ctrl)
	// No expectations: if the store is queried, gomock fails automatically

	wrapper := NewCacheWrapper(mockStore, memCache)

	_ = memCache.Set(ctx, "accounts:ACTIVE", 42, time.Minute)

	count, err := wrapper.GetConnectedAccountsCount(ctx, "ACTIVE", time.Minute)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if count != 42 {
		t.Errorf("Expected count 42, got %d", count)
	}
}

func TestCacheWrapper_GetConnectedAccountsCount_CacheMiss(t *testing.T) {
	ctx := context.Background()
	memCache := cache.NewMemoryCache[int64]()
	ctrl := gomock.NewController(t)
	mockStore := mocks.NewMockMetricsStore(ctrl)
	mockStore.EXPECT().
		CountConnectedAccountsByStatus(gomock.Any(), "ERROR").
		Return(int64(3), nil).
		Times(1)

	wrapper := NewCacheWrapper(mockStore, memCache)

	count, err := wrapper.GetConnectedAccountsCount(ctx, "ERROR", time.Minute)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if count != 3 {
		t.Errorf("Expected count 3, got %d", count)
	}

	// Second call is served from cache
	count, err = wrapper.GetConnectedAccountsCount(ctx, "ERROR", time.Minute)
	if err != nil {
		t.Fatalf("Expected no error on cached call, got %v", err)
	}
	if count != 3 {
		t.Errorf("Expected cached count 3, got %d", count)
	}
}

func TestCacheWrapper_GetConnectedAccountsCount_StoreError(t *testing.T) {
	ctx := context.Background()
	memCache := cache.NewMemoryCache[int64]()
	ctrl := gomock.NewController(t)
	mockStore := mocks.NewMockMetricsStore(ctrl)
	dbErr := errors.New("database down")
	mockStore.EXPECT().
		CountConnectedAccountsByStatus(gomock.Any(), "ACTIVE").
		Return(int64(0), dbErr)

	wrapper := NewCacheWrapper(mockStore, memCache)

	_, err := wrapper.GetConnectedAccountsCount(ctx, "ACTIVE", time.Minute)
	if !errors.Is(err, dbErr) {
		t.Errorf("Expected store error, got %v", err)
	}

	// Errors are not cached
	if _, err := memCache.Get(ctx, "accounts:ACTIVE"); !errors.Is(err, cache.ErrCacheMiss) {
		t.Errorf("Expected cache miss after failed fetch, got %v", err)
	}
}
