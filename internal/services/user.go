package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielkropka/social-flow-sub001/internal/auth"
	"github.com/danielkropka/social-flow-sub001/internal/core"
	"github.com/danielkropka/social-flow-sub001/internal/models"
	"github.com/danielkropka/social-flow-sub001/internal/store"

	"go.uber.org/zap"
)

const defaultUserCacheTTL = 5 * time.Minute

var (
	ErrInvalidCredentials = auth.ErrInvalidCredentials
	ErrUserNotFound       = errors.New("user not found")
)

type UserService struct {
	store         *store.Store
	localProvider *auth.LocalAuthProvider
	metrics       core.Recorder
	audit         AuditLogger
	userCache     core.Cache[models.User]
	userCacheTTL  time.Duration
	log           *zap.Logger
}

func NewUserService(
	s *store.Store,
	localProvider *auth.LocalAuthProvider,
	m core.Recorder,
	audit AuditLogger,
	userCache core.Cache[models.User],
	userCacheTTL time.Duration,
	log *zap.Logger,
) *UserService {
	if userCacheTTL <= 0 {
		userCacheTTL = defaultUserCacheTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{
		store:         s,
		localProvider: localProvider,
		metrics:       m,
		audit:         audit,
		userCache:     userCache,
		userCacheTTL:  userCacheTTL,
		log:           log.With(zap.String("component", "auth")),
	}
}

// Authenticate verifies an email and password login.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	start := time.Now()
	user, err := s.localProvider.Authenticate(ctx, email, password)
	s.metrics.RecordLogin(err == nil, time.Since(start))

	if err != nil {
		s.log.Info("login failed", zap.String("provider", s.localProvider.Name()))
		s.audit.Log(ctx, AuditLogEntry{
			EventType:    models.EventAuthenticationFailure,
			Severity:     models.SeverityWarning,
			ResourceType: models.ResourceUser,
			Action:       "Login failed",
			Details:      models.AuditDetails{"email": email},
			Success:      false,
			ErrorMessage: err.Error(),
		})
		return nil, ErrInvalidCredentials
	}

	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventAuthenticationSuccess,
		Severity:     models.SeverityInfo,
		ActorUserID:  user.ID,
		ResourceType: models.ResourceUser,
		ResourceID:   user.ID,
		Action:       "Login succeeded",
		Success:      true,
	})
	return user, nil
}

// Logout records the end of a session and drops the cached user.
func (s *UserService) Logout(ctx context.Context, userID string) {
	if err := s.userCache.Delete(ctx, userCacheKey(userID)); err != nil {
		s.log.Warn("failed to evict cached user", zap.String("user_id", userID), zap.Error(err))
	}
	s.metrics.RecordLogout()
	s.audit.Log(ctx, AuditLogEntry{
		EventType:    models.EventLogout,
		Severity:     models.SeverityInfo,
		ActorUserID:  userID,
		ResourceType: models.ResourceUser,
		ResourceID:   userID,
		Action:       "Logout",
		Success:      true,
	})
}

// SetActive enables or disables login for a user. Disabling ends every
// session of the user on its next request.
func (s *UserService) SetActive(ctx context.Context, userID string, active bool) error {
	if err := s.store.SetUserActive(ctx, userID, active); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if err := s.userCache.Delete(ctx, userCacheKey(userID)); err != nil {
		s.log.Warn("failed to evict cached user", zap.String("user_id", userID), zap.Error(err))
	}

	entry := AuditLogEntry{
		EventType:    models.EventUserEnabled,
		Severity:     models.SeverityInfo,
		ResourceType: models.ResourceUser,
		ResourceID:   userID,
		Action:       "User enabled",
		Success:      true,
	}
	if !active {
		entry.EventType = models.EventUserDisabled
		entry.Severity = models.SeverityWarning
		entry.Action = "User disabled"
	}
	s.audit.Log(ctx, entry)
	s.log.Info("user login state changed", zap.String("user_id", userID), zap.Bool("active", active))
	return nil
}

// GetUserByID loads a user through the user cache.
func (s *UserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.userCache.GetWithFetch(
		ctx,
		userCacheKey(id),
		s.userCacheTTL,
		func(ctx context.Context, _ string) (models.User, error) {
			u, err := s.store.GetUserByID(ctx, id)
			if err != nil {
				return models.User{}, err
			}
			return *u, nil
		},
	)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.log.Error("failed to load user", zap.String("user_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

func userCacheKey(id string) string {
	return "user:" + id
}
