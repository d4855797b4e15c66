package store

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/danielkropka/social-flow-sub001/internal/config"
	"github.com/danielkropka/social-flow-sub001/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	identityIndexGlobal  = "idx_connected_accounts_identity"
	identityIndexPerUser = "idx_connected_accounts_identity_user"
)

type Store struct {
	db         *gorm.DB
	uniqueness string
	log        *zap.Logger
}

// New opens the database, migrates the schema, enforces the configured
// account uniqueness scope and seeds the admin user.
func New(ctx context.Context, driver, dsn string, cfg *config.Config, log *zap.Logger) (*Store, error) {
	dialector, err := GetDialector(driver, dsn)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	// Every connection to ":memory:" is a separate database.
	if driver == "sqlite" && strings.Contains(dsn, ":memory:") {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.ConnectedAccount{},
		&models.PostTarget{},
		&models.AuditLog{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	uniqueness := cfg.AccountUniqueness
	if uniqueness == "" {
		uniqueness = config.AccountUniquenessGlobal
	}

	s := &Store{
		db:         db,
		uniqueness: uniqueness,
		log:        log.With(zap.String("component", "store")),
	}

	if err := s.ensureIdentityIndex(); err != nil {
		return nil, err
	}

	if err := s.seedData(ctx, cfg); err != nil {
		s.log.Warn("failed to seed data", zap.Error(err))
	}

	return s, nil
}

// ensureIdentityIndex creates the unique index matching the uniqueness scope
// and drops the index of the other scope if a previous deployment created it.
func (s *Store) ensureIdentityIndex() error {
	want, wantCols, stale := identityIndexGlobal, "provider, provider_account_id", identityIndexPerUser
	if s.uniqueness == config.AccountUniquenessPerUser {
		want, wantCols, stale = identityIndexPerUser, "provider, provider_account_id, user_id", identityIndexGlobal
	}

	m := s.db.Migrator()
	if m.HasIndex(&models.ConnectedAccount{}, stale) {
		if err := m.DropIndex(&models.ConnectedAccount{}, stale); err != nil {
			return fmt.Errorf("failed to drop index %s: %w", stale, err)
		}
	}
	if !m.HasIndex(&models.ConnectedAccount{}, want) {
		stmt := fmt.Sprintf("CREATE UNIQUE INDEX %s ON connected_accounts (%s)", want, wantCols)
		if err := s.db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", want, err)
		}
	}
	return nil
}

// generateRandomPassword generates a random password of specified length
func generateRandomPassword(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes)[:length], nil
}

func (s *Store) seedData(ctx context.Context, cfg *config.Config) error {
	var userCount int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&userCount).Error; err != nil {
		return err
	}
	if userCount > 0 {
		return nil
	}

	password := strings.TrimSpace(cfg.DefaultAdminPwd)
	generated := password == ""
	if generated {
		var err error
		if password, err = generateRandomPassword(16); err != nil {
			return err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Username:     "admin",
		Email:        "admin@localhost",
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	if err := s.CreateUser(ctx, user); err != nil {
		return err
	}

	if generated {
		s.log.Info("created default admin user",
			zap.String("email", user.Email),
			zap.String("password", password),
		)
	} else {
		s.log.Info("created default admin user", zap.String("email", user.Email))
	}
	return nil
}

// Health pings the underlying database connection
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close releases the database connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB exposes the GORM handle for tests and maintenance tasks
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Uniqueness returns the configured account uniqueness scope.
func (s *Store) Uniqueness() string {
	return s.uniqueness
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return err
}
