package store

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/danielkropka/social-flow-sub001/internal/config"
	"github.com/danielkropka/social-flow-sub001/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// getTestConfig returns a minimal config for testing
func getTestConfig(uniqueness string) *config.Config {
	return &config.Config{
		AccountUniqueness: uniqueness,
	}
}

func newSQLiteStore(t *testing.T, uniqueness string) *Store {
	t.Helper()
	s, err := New(context.Background(), "sqlite", ":memory:", getTestConfig(uniqueness), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testAccount(userID, providerAccountID string) *models.ConnectedAccount {
	return &models.ConnectedAccount{
		UserID:            userID,
		Provider:          models.ProviderTwitter,
		ProviderAccountID: providerAccountID,
		AccessToken:       "enc-access",
		AccessTokenSecret: "enc-secret",
		Username:          "alice",
		DisplayName:       "Alice",
	}
}

// TestStoreWithSQLite tests store operations with SQLite
func TestStoreWithSQLite(t *testing.T) {
	testBasicOperations(t, func(t *testing.T, uniqueness string) *Store {
		return newSQLiteStore(t, uniqueness)
	})
}

// TestStoreWithPostgres tests store operations with PostgreSQL
func TestStoreWithPostgres(t *testing.T) {
	// Skip if running short tests or Docker is not available
	if testing.Short() {
		t.Skip("Skipping PostgreSQL integration test in short mode")
	}

	// Recover from panic if Docker is not available
	defer func() {
		if r := recover(); r != nil {
			t.Skipf("Skipping PostgreSQL test: Docker not available (panic: %v)", r)
		}
	}()

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("Skipping PostgreSQL test: Docker not available (%v)", err)
		return
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	testBasicOperations(t, func(t *testing.T, uniqueness string) *Store {
		return newPostgresStore(t, pgContainer, uniqueness)
	})
}

// newPostgresStore creates a uniquely-named database in the container for test isolation
func newPostgresStore(
	t *testing.T,
	pgContainer *postgres.PostgresContainer,
	uniqueness string,
) *Store {
	t.Helper()
	ctx := context.Background()

	dbName := "test_" + strings.ReplaceAll(uuid.New().String()[:8], "-", "")
	_, _, err := pgContainer.Exec(
		ctx,
		[]string{"psql", "-U", "testuser", "-d", "testdb", "-c", "CREATE DATABASE " + dbName},
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)
	dsn := fmt.Sprintf(
		"host=%s port=%s user=testuser password=testpass dbname=%s sslmode=disable",
		host, port.Port(), dbName,
	)

	s, err := New(ctx, "postgres", dsn, getTestConfig(uniqueness), nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = s.Close()
		_, _, _ = pgContainer.Exec(
			context.Background(),
			[]string{"psql", "-U", "testuser", "-d", "testdb", "-c", "DROP DATABASE IF EXISTS " + dbName},
		)
	})
	return s
}

// testBasicOperations runs the credential store contract against a driver.
// Each subtest creates a fresh store instance for isolation.
func testBasicOperations(t *testing.T, newStore func(t *testing.T, uniqueness string) *Store) {
	ctx := context.Background()

	t.Run("UpsertIsIdempotent", func(t *testing.T) {
		s := newStore(t, config.AccountUniquenessGlobal)

		first, err := s.UpsertConnectedAccount(ctx, testAccount("user-1", "42"))
		require.NoError(t, err)
		assert.NotEmpty(t, first.ID)
		assert.Equal(t, models.AccountStatusActive, first.Status)

		update := testAccount("user-1", "42")
		update.AccessToken = "enc-access-2"
		update.Username = "alice_renamed"
		second, err := s.UpsertConnectedAccount(ctx, update)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)

		var count int64
		require.NoError(t, s.DB().Model(&models.ConnectedAccount{}).
			Where("provider = ? AND provider_account_id = ?", models.ProviderTwitter, "42").
			Count(&count).Error)
		assert.Equal(t, int64(1), count)

		got, err := s.GetConnectedAccount(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "enc-access-2", got.AccessToken)
		assert.Equal(t, "alice_renamed", got.Username)
	})

	t.Run("GlobalUniquenessTransfersOwnership", func(t *testing.T) {
		s := newStore(t, config.AccountUniquenessGlobal)

		first, err := s.UpsertConnectedAccount(ctx, testAccount("user-1", "42"))
		require.NoError(t, err)
		second, err := s.UpsertConnectedAccount(ctx, testAccount("user-2", "42"))
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "user-2", second.UserID)
	})

	t.Run("PerUserUniquenessKeepsSeparateRows", func(t *testing.T) {
		s := newStore(t, config.AccountUniquenessPerUser)

		first, err := s.UpsertConnectedAccount(ctx, testAccount("user-1", "42"))
		require.NoError(t, err)
		second, err := s.UpsertConnectedAccount(ctx, testAccount("user-2", "42"))
		require.NoError(t, err)

		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("UniqueIndexRejectsDuplicates", func(t *testing.T) {
		s := newStore(t, config.AccountUniquenessGlobal)

		a := testAccount("user-1", "7")
		a.ID = uuid.New().String()
		a.ConnectedAt = time.Now()
		require.NoError(t, s.DB().Create(a).Error)

		b := testAccount("user-2", "7")
		b.ID = uuid.New().String()
		b.ConnectedAt = time.Now()
		err := s.DB().Create(b).Error
		assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	})

	t.Run("RevokeThenReconnectRevivesRow", func(t *testing.T) {
		s := newStore(t, config.AccountUniquenessGlobal)

		acct, err := s.UpsertConnectedAccount(ctx, testAccount("user-1", "42"))
		require.NoError(t, err)
		require.NoError(t, s.CreatePostTarget(ctx, &models.PostTarget{
			PostID:             "post-1",
			ConnectedAccountID: acct.ID,
		}))

		require.NoError(t, s.RevokeConnectedAccount(ctx, "user-1", acct.ID, time.Now()))

		_, err = s.GetConnectedAccount(ctx, acct.ID)
		assert.ErrorIs(t, err, ErrRecordNotFound)
		n, err := s.CountPostTargets(ctx, acct.ID)
		require.NoError(t, err)
		assert.Zero(t, n)

		var revoked models.ConnectedAccount
		require.NoError(t, s.DB().Unscoped().Where("id = ?", acct.ID).First(&revoked).Error)
		assert.Equal(t, models.AccountStatusRevoked, revoked.Status)
		assert.Empty(t, revoked.AccessToken)
		assert.NotNil(t, revoked.RevokedAt)

		revived, err := s.UpsertConnectedAccount(ctx, testAccount("user-1", "42"))
		require.NoError(t, err)
		assert.Equal(t, acct.ID, revived.ID)
		assert.Equal(t, models.AccountStatusActive, revived.Status)
		assert.Nil(t, revived.RevokedAt)

		got, err := s.GetConnectedAccount(ctx, acct.ID)
		require.NoError(t, err)
		assert.Equal(t, "enc-access", got.AccessToken)
	})
}

func TestUpsertConnectedAccount_RequiresIdentity(t *testing.T) {
	s := newSQLiteStore(t, config.AccountUniquenessGlobal)

	_, err := s.UpsertConnectedAccount(context.Background(), &models.ConnectedAccount{
		UserID:   "user-1",
		Provider: models.ProviderTwitter,
	})
	assert.ErrorIs(t, err, ErrInvalidAccount)
}

func TestUpsertConnectedAccount_KeepsCountersWhenProfileOmitsThem(t *testing.T) {
	s := newSQLiteStore(t, config.AccountUniquenessGlobal)
	ctx := context.Background()

	acct, err := s.UpsertConnectedAccount(ctx, testAccount("user-1", "42"))
	require.NoError(t, err)
	require.NoError(t, s.UpdateAccountStats(ctx, acct.ID, 120, 30, time.Now()))

	_, err = s.UpsertConnectedAccount(ctx, testAccount("user-1", "42"))
	require.NoError(t, err)

	got, err := s.GetConnectedAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(120), got.FollowersCount)
	assert.Equal(t, int64(30), got.PostsCount)
}

func TestRefreshTargetsExcludeUnusableAccounts(t *testing.T) {
	s := newSQLiteStore(t, config.AccountUniquenessGlobal)
	ctx := context.Background()

	active, err := s.UpsertConnectedAccount(ctx, testAccount("user-1", "1"))
	require.NoError(t, err)
	errored, err := s.UpsertConnectedAccount(ctx, testAccount("user-1", "2"))
	require.NoError(t, err)
	revoked, err := s.UpsertConnectedAccount(ctx, testAccount("user-1", "3"))
	require.NoError(t, err)
	other, err := s.UpsertConnectedAccount(ctx, testAccount("user-2", "4"))
	require.NoError(t, err)

	require.NoError(t, s.RecordAccountError(ctx, errored.ID, "token revoked", time.Now(), true))
	require.NoError(t, s.RevokeConnectedAccount(ctx, "user-1", revoked.ID, time.Now()))

	all, err := s.ListRefreshTargets(ctx, RefreshFilter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{active.ID, other.ID}, accountIDs(all))

	mine, err := s.ListRefreshTargets(ctx, RefreshFilter{UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{active.ID}, accountIDs(mine))

	single, err := s.ListRefreshTargets(ctx, RefreshFilter{AccountID: other.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{other.ID}, accountIDs(single))

	publishable, err := s.ListPublishableAccounts(
		ctx, "user-1", []string{active.ID, errored.ID, revoked.ID, other.ID},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{active.ID}, accountIDs(publishable))

	listed, err := s.ListConnectedAccounts(ctx, "user-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{active.ID, errored.ID}, accountIDs(listed))
}

func TestRecordAccountError(t *testing.T) {
	s := newSQLiteStore(t, config.AccountUniquenessGlobal)
	ctx := context.Background()

	acct, err := s.UpsertConnectedAccount(ctx, testAccount("user-1", "42"))
	require.NoError(t, err)

	require.NoError(t, s.RecordAccountError(ctx, acct.ID, "upstream 503", time.Now(), false))
	got, err := s.GetConnectedAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AccountStatusActive, got.Status)
	assert.Equal(t, "upstream 503", got.LastErrorMessage)
	assert.NotNil(t, got.LastErrorAt)

	assert.ErrorIs(t,
		s.RecordAccountError(ctx, "missing", "x", time.Now(), false),
		ErrRecordNotFound,
	)
}

func TestUpdateAccountTokensAndExpiry(t *testing.T) {
	s := newSQLiteStore(t, config.AccountUniquenessGlobal)
	ctx := context.Background()

	soon := time.Now().Add(24 * time.Hour)
	later := time.Now().Add(60 * 24 * time.Hour)

	a := testAccount("user-1", "1")
	a.TokenExpiresAt = &soon
	a.RefreshToken = "enc-refresh"
	expiring, err := s.UpsertConnectedAccount(ctx, a)
	require.NoError(t, err)

	b := testAccount("user-1", "2")
	b.TokenExpiresAt = &later
	_, err = s.UpsertConnectedAccount(ctx, b)
	require.NoError(t, err)

	due, err := s.ListAccountsExpiringBefore(ctx, time.Now().Add(7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{expiring.ID}, accountIDs(due))

	require.NoError(t, s.UpdateAccountTokens(ctx, expiring.ID, "enc-access-new", "", &later))
	got, err := s.GetConnectedAccount(ctx, expiring.ID)
	require.NoError(t, err)
	assert.Equal(t, "enc-access-new", got.AccessToken)
	assert.Equal(t, "enc-refresh", got.RefreshToken)
	require.NotNil(t, got.TokenExpiresAt)
	assert.WithinDuration(t, later, *got.TokenExpiresAt, time.Second)
}

func TestRevokeConnectedAccount_RequiresOwner(t *testing.T) {
	s := newSQLiteStore(t, config.AccountUniquenessGlobal)
	ctx := context.Background()

	acct, err := s.UpsertConnectedAccount(ctx, testAccount("user-1", "42"))
	require.NoError(t, err)

	err = s.RevokeConnectedAccount(ctx, "user-2", acct.ID, time.Now())
	assert.ErrorIs(t, err, ErrRecordNotFound)

	_, err = s.GetConnectedAccount(ctx, acct.ID)
	assert.NoError(t, err)
}

func TestSwitchingUniquenessReplacesIndex(t *testing.T) {
	s := newSQLiteStore(t, config.AccountUniquenessGlobal)
	m := s.DB().Migrator()
	assert.True(t, m.HasIndex(&models.ConnectedAccount{}, identityIndexGlobal))

	s.uniqueness = config.AccountUniquenessPerUser
	require.NoError(t, s.ensureIdentityIndex())
	assert.False(t, m.HasIndex(&models.ConnectedAccount{}, identityIndexGlobal))
	assert.True(t, m.HasIndex(&models.ConnectedAccount{}, identityIndexPerUser))
}

func TestDefaultAdminSeed(t *testing.T) {
	tests := []struct {
		name                string
		password            string
		shouldUseConfigured bool
	}{
		{name: "configured password", password: "MyPassword123", shouldUseConfigured: true},
		{name: "password with spaces", password: "  MyPassword123  ", shouldUseConfigured: true},
		{name: "empty string", password: "", shouldUseConfigured: false},
		{name: "only whitespace", password: " \t\n ", shouldUseConfigured: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := getTestConfig(config.AccountUniquenessGlobal)
			cfg.DefaultAdminPwd = tt.password

			s, err := New(context.Background(), "sqlite", ":memory:", cfg, nil)
			require.NoError(t, err)
			defer s.Close()

			admin, err := s.GetUserByEmail(context.Background(), "admin@localhost")
			require.NoError(t, err)
			assert.True(t, admin.IsAdmin())

			err = bcrypt.CompareHashAndPassword(
				[]byte(admin.PasswordHash),
				[]byte(strings.TrimSpace(tt.password)),
			)
			if tt.shouldUseConfigured {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestCreateUser_EmailConflict(t *testing.T) {
	s := newSQLiteStore(t, config.AccountUniquenessGlobal)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &models.User{Username: "bob", Email: "Bob@Example.com"}))
	err := s.CreateUser(ctx, &models.User{Username: "bob2", Email: "bob@example.com"})
	assert.ErrorIs(t, err, ErrEmailConflict)

	u, err := s.GetUserByEmail(ctx, " BOB@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "bob", u.Username)
}

func TestSetUserActive(t *testing.T) {
	s := newSQLiteStore(t, config.AccountUniquenessGlobal)
	ctx := context.Background()

	u := &models.User{Username: "carol", Email: "carol@example.com", IsActive: true}
	require.NoError(t, s.CreateUser(ctx, u))

	require.NoError(t, s.SetUserActive(ctx, u.ID, false))
	got, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	assert.ErrorIs(t, s.SetUserActive(ctx, "missing", true), ErrRecordNotFound)
}

func TestCountConnectedAccountsByStatus(t *testing.T) {
	s := newSQLiteStore(t, config.AccountUniquenessGlobal)
	ctx := context.Background()

	a, err := s.UpsertConnectedAccount(ctx, testAccount("user-1", "1"))
	require.NoError(t, err)
	_, err = s.UpsertConnectedAccount(ctx, testAccount("user-1", "2"))
	require.NoError(t, err)
	b, err := s.UpsertConnectedAccount(ctx, testAccount("user-1", "3"))
	require.NoError(t, err)

	require.NoError(t, s.RecordAccountError(ctx, a.ID, "401", time.Now(), true))
	require.NoError(t, s.RevokeConnectedAccount(ctx, "user-1", b.ID, time.Now()))

	active, err := s.CountConnectedAccountsByStatus(ctx, string(models.AccountStatusActive))
	require.NoError(t, err)
	assert.Equal(t, int64(1), active)

	errored, err := s.CountConnectedAccountsByStatus(ctx, string(models.AccountStatusError))
	require.NoError(t, err)
	assert.Equal(t, int64(1), errored)

	// Revoked rows are soft-deleted and drop out of every count.
	revoked, err := s.CountConnectedAccountsByStatus(ctx, string(models.AccountStatusRevoked))
	require.NoError(t, err)
	assert.Zero(t, revoked)
}

func TestAuditLogRetention(t *testing.T) {
	s := newSQLiteStore(t, config.AccountUniquenessGlobal)
	ctx := context.Background()

	old := &models.AuditLog{
		ID: uuid.New().String(), EventType: models.EventAccountConnected, EventTime: time.Now(),
		Severity: models.SeverityInfo, Action: "old", Success: true,
		ResourceType: models.ResourceConnectedAccount, ResourceID: "acct-1",
		CreatedAt: time.Now().Add(-48 * time.Hour),
	}
	fresh := &models.AuditLog{
		ID: uuid.New().String(), EventType: models.EventAccountConnected, EventTime: time.Now(),
		Severity: models.SeverityInfo, Action: "fresh", Success: true,
		ResourceType: models.ResourceConnectedAccount, ResourceID: "acct-1",
		Details:   models.AuditDetails{"provider": "TWITTER"},
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.CreateAuditLogBatch(ctx, []*models.AuditLog{old, fresh}))

	deleted, err := s.DeleteOldAuditLogs(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	logs, err := s.ListAuditLogsForResource(ctx, models.ResourceConnectedAccount, "acct-1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "fresh", logs[0].Action)
	assert.Equal(t, "TWITTER", logs[0].Details["provider"])
}

// TestDriverFactory tests the driver registry
func TestDriverFactory(t *testing.T) {
	tests := []struct {
		name        string
		driver      string
		dsn         string
		expectError bool
	}{
		{name: "SQLite valid", driver: "sqlite", dsn: ":memory:"},
		{name: "Postgres valid", driver: "postgres", dsn: "host=localhost dbname=x"},
		{name: "MySQL valid", driver: "mysql", dsn: "user:pass@tcp(localhost:3306)/dbname"},
		{name: "Unsupported driver", driver: "oracle", dsn: "x", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialector, err := GetDialector(tt.driver, tt.dsn)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, dialector)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, dialector)
			}
		})
	}
}

// TestRegisterDriver tests registering custom drivers
func TestRegisterDriver(t *testing.T) {
	customDriverCalled := false
	RegisterDriver("custom", func(dsn string) gorm.Dialector {
		customDriverCalled = true
		return nil
	})

	dialector, err := GetDialector("custom", "test-dsn")
	assert.NoError(t, err)
	assert.True(t, customDriverCalled)
	assert.Nil(t, dialector)
}

func accountIDs(accounts []models.ConnectedAccount) []string {
	ids := make([]string, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}
	return ids
}
