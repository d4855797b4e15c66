package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danielkropka/social-flow-sub001/internal/auth"
	"github.com/danielkropka/social-flow-sub001/internal/cache"
	"github.com/danielkropka/social-flow-sub001/internal/core"
	"github.com/danielkropka/social-flow-sub001/internal/metrics"
	"github.com/danielkropka/social-flow-sub001/internal/mocks"
	"github.com/danielkropka/social-flow-sub001/internal/models"
	"github.com/danielkropka/social-flow-sub001/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"
)

func newUserServiceWithStore(
	db *store.Store,
	c core.Cache[models.User],
	audit AuditLogger,
) *UserService {
	return NewUserService(
		db,
		auth.NewLocalAuthProvider(db),
		metrics.NewNoopMetrics(),
		audit,
		c,
		5*time.Minute,
		nil,
	)
}

func makeTestUser(t *testing.T, db *store.Store, password string, active bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := &models.User{
		ID:           uuid.New().String(),
		Username:     "testuser-" + uuid.New().String()[:8],
		Email:        uuid.New().String()[:8] + "@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		IsActive:     true,
	}
	require.NoError(t, db.CreateUser(context.Background(), u))
	if !active {
		// GORM skips zero values on create, so deactivate explicitly.
		require.NoError(t, db.SetUserActive(context.Background(), u.ID, false))
	}
	return u
}

// callFetchFn is a DoAndReturn helper that invokes the cache fetch function,
// simulating a cache miss where the real DB fetch is executed.
func callFetchFn[T any](
	ctx context.Context,
	key string,
	_ time.Duration,
	fn func(context.Context, string) (T, error),
) (T, error) {
	return fn(ctx, key)
}

func TestAuthenticate(t *testing.T) {
	db := setupTestStore(t)
	audit := &recordingAudit{}
	svc := newUserServiceWithStore(db, cache.NewMemoryCache[models.User](), audit)
	ctx := context.Background()

	u := makeTestUser(t, db, "correct horse", true)
	inactive := makeTestUser(t, db, "correct horse", false)

	got, err := svc.Authenticate(ctx, u.Email, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Authenticate(ctx, u.Email, "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, inactive.Email, "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.Equal(t, []models.EventType{
		models.EventAuthenticationSuccess,
		models.EventAuthenticationFailure,
		models.EventAuthenticationFailure,
		models.EventAuthenticationFailure,
	}, audit.events())

	for _, e := range audit.entries[1:] {
		assert.NotContains(t, e.Details, "password")
	}
}

func TestLogout_Audited(t *testing.T) {
	audit := &recordingAudit{}
	svc := newUserServiceWithStore(setupTestStore(t), cache.NewMemoryCache[models.User](), audit)

	svc.Logout(context.Background(), "user-1")

	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.EventLogout, audit.entries[0].EventType)
	assert.Equal(t, "user-1", audit.entries[0].ActorUserID)
}

func TestLogout_EvictsCachedUser(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockCache := mocks.NewMockCache[models.User](ctrl)
	mockCache.EXPECT().Delete(gomock.Any(), "user:user-1").Return(nil).Times(1)

	svc := newUserServiceWithStore(setupTestStore(t), mockCache, &recordingAudit{})
	svc.Logout(context.Background(), "user-1")
}

func TestGetUserByID_CacheMiss(t *testing.T) {
	db := setupTestStore(t)
	ctrl := gomock.NewController(t)
	mockCache := mocks.NewMockCache[models.User](ctrl)
	u := makeTestUser(t, db, "pw", true)

	mockCache.EXPECT().
		GetWithFetch(gomock.Any(), "user:"+u.ID, 5*time.Minute, gomock.Any()).
		DoAndReturn(callFetchFn[models.User]).Times(1)

	svc := newUserServiceWithStore(db, mockCache, &recordingAudit{})
	got, err := svc.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)
}

func TestGetUserByID_CacheHit(t *testing.T) {
	db := setupTestStore(t)
	ctrl := gomock.NewController(t)
	mockCache := mocks.NewMockCache[models.User](ctrl)
	cached := models.User{ID: "cached-id", Email: "cached@example.com"}

	mockCache.EXPECT().
		GetWithFetch(gomock.Any(), "user:cached-id", gomock.Any(), gomock.Any()).
		Return(cached, nil).Times(1)

	svc := newUserServiceWithStore(db, mockCache, &recordingAudit{})
	got, err := svc.GetUserByID(context.Background(), "cached-id")
	require.NoError(t, err)
	assert.Equal(t, "cached@example.com", got.Email)
}

func TestGetUserByID_NotFound(t *testing.T) {
	db := setupTestStore(t)
	svc := newUserServiceWithStore(db, cache.NewMemoryCache[models.User](), &recordingAudit{})

	_, err := svc.GetUserByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGetUserByID_CacheError(t *testing.T) {
	db := setupTestStore(t)
	ctrl := gomock.NewController(t)
	mockCache := mocks.NewMockCache[models.User](ctrl)

	mockCache.EXPECT().
		GetWithFetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(models.User{}, errors.New("redis down"))

	svc := newUserServiceWithStore(db, mockCache, &recordingAudit{})
	_, err := svc.GetUserByID(context.Background(), "any")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUserNotFound, "a backend failure is not a missing user")
	assert.Contains(t, err.Error(), "redis down")
}

func TestSetActive(t *testing.T) {
	db := setupTestStore(t)
	audit := &recordingAudit{}
	svc := newUserServiceWithStore(db, cache.NewMemoryCache[models.User](), audit)
	u := makeTestUser(t, db, "pw-123456", true)
	ctx := context.Background()

	// Warm the cache so the change must evict it.
	got, err := svc.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.True(t, got.IsActive)

	require.NoError(t, svc.SetActive(ctx, u.ID, false))
	got, err = svc.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	_, err = svc.Authenticate(ctx, u.Email, "pw-123456")
	assert.Error(t, err)

	require.NoError(t, svc.SetActive(ctx, u.ID, true))
	got, err = svc.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	assert.Equal(t, []models.EventType{
		models.EventUserDisabled,
		models.EventUserEnabled,
	}, filterEvents(audit.events(), models.EventUserDisabled, models.EventUserEnabled))

	assert.ErrorIs(t, svc.SetActive(ctx, "missing", false), ErrUserNotFound)
}

func filterEvents(events []models.EventType, keep ...models.EventType) []models.EventType {
	var out []models.EventType
	for _, e := range events {
		for _, k := range keep {
			if e == k {
				out = append(out, e)
			}
		}
	}
	return out
}
