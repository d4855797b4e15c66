package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danielkropka/social-flow-sub001/internal/cache"
	"github.com/danielkropka/social-flow-sub001/internal/models"
	"github.com/danielkropka/social-flow-sub001/internal/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestHandshakeStore(now *time.Time) (*HandshakeStore, *cache.MemoryCache[models.PendingHandshake]) {
	clock := func() time.Time { return *now }
	c := cache.NewMemoryCache[models.PendingHandshake]().WithClock(clock)
	return NewHandshakeStore(c, 10*time.Minute).WithClock(clock), c
}

func TestHandshakeStore_PutGetDelete(t *testing.T) {
	now := testNow
	hs, c := newTestHandshakeStore(&now)
	ctx := context.Background()

	require.NoError(t, hs.Put(ctx, &models.PendingHandshake{
		Token:    "TOK1",
		UserID:   "user-1",
		Provider: models.ProviderTwitter,
		Secret:   "encrypted",
	}))

	raw, err := c.Get(ctx, "handshake:user-1:TOK1")
	require.NoError(t, err)
	assert.Equal(t, testNow, raw.CreatedAt)
	assert.Equal(t, 600*time.Second, raw.ExpiresAt.Sub(raw.CreatedAt))

	h, err := hs.Get(ctx, "user-1", "TOK1")
	require.NoError(t, err)
	assert.Equal(t, "encrypted", h.Secret)
	assert.Equal(t, models.ProviderTwitter, h.Provider)

	require.NoError(t, hs.Delete(ctx, "user-1", "TOK1"))
	_, err = hs.Get(ctx, "user-1", "TOK1")
	assert.ErrorIs(t, err, ErrSessionExpired)

	// Deleting twice is fine.
	assert.NoError(t, hs.Delete(ctx, "user-1", "TOK1"))
}

func TestHandshakeStore_ScopedToUser(t *testing.T) {
	now := testNow
	hs, _ := newTestHandshakeStore(&now)
	ctx := context.Background()

	require.NoError(t, hs.Put(ctx, &models.PendingHandshake{Token: "TOK1", UserID: "user-1"}))

	_, err := hs.Get(ctx, "user-2", "TOK1")
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestHandshakeStore_Expiry(t *testing.T) {
	now := testNow
	hs, _ := newTestHandshakeStore(&now)
	ctx := context.Background()

	require.NoError(t, hs.Put(ctx, &models.PendingHandshake{Token: "TOK1", UserID: "user-1"}))

	now = now.Add(9 * time.Minute)
	_, err := hs.Get(ctx, "user-1", "TOK1")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = hs.Get(ctx, "user-1", "TOK1")
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestHandshakeStore_Collision(t *testing.T) {
	now := testNow
	hs, _ := newTestHandshakeStore(&now)
	ctx := context.Background()

	h := &models.PendingHandshake{Token: "TOK1", UserID: "user-1"}
	require.NoError(t, hs.Put(ctx, h))
	assert.ErrorIs(t, hs.Put(ctx, h), ErrHandshakeExists)

	// Once the first one expired the key can be reused.
	now = now.Add(11 * time.Minute)
	assert.NoError(t, hs.Put(ctx, h))
}

func TestHandshakeStore_RequiresKey(t *testing.T) {
	now := testNow
	hs, _ := newTestHandshakeStore(&now)
	ctx := context.Background()

	assert.Error(t, hs.Put(ctx, &models.PendingHandshake{UserID: "user-1"}))

	_, err := hs.Get(ctx, "", "TOK1")
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestHandshakeStore_DefaultTTL(t *testing.T) {
	hs := NewHandshakeStore(cache.NewMemoryCache[models.PendingHandshake](), 0)
	assert.Equal(t, DefaultHandshakeTTL, hs.TTL())
}

func TestHandshakeStore_BackendErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockCache := mocks.NewMockCache[models.PendingHandshake](ctrl)
	hs := NewHandshakeStore(mockCache, time.Minute)
	ctx := context.Background()
	backendErr := errors.New("connection refused")

	mockCache.EXPECT().
		SetNX(gomock.Any(), "handshake:user-1:TOK1", gomock.Any(), time.Minute).
		Return(false, backendErr)
	err := hs.Put(ctx, &models.PendingHandshake{Token: "TOK1", UserID: "user-1"})
	assert.ErrorIs(t, err, backendErr)

	mockCache.EXPECT().
		Get(gomock.Any(), "handshake:user-1:TOK1").
		Return(models.PendingHandshake{}, backendErr)
	_, err = hs.Get(ctx, "user-1", "TOK1")
	assert.ErrorIs(t, err, backendErr)
	assert.NotErrorIs(t, err, ErrSessionExpired)
}
