package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielkropka/social-flow-sub001/internal/config"
	"github.com/danielkropka/social-flow-sub001/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RefreshFilter narrows the stats refresh target set. Empty fields match everything.
type RefreshFilter struct {
	UserID    string
	AccountID string
}

// UpsertConnectedAccount writes acct keyed by its provider identity.
// An existing row, including a soft-deleted or revoked one, is overwritten
// with the new credentials and profile and reactivated (last writer wins).
// Under global uniqueness this also moves the identity to acct.UserID.
func (s *Store) UpsertConnectedAccount(
	ctx context.Context,
	acct *models.ConnectedAccount,
) (*models.ConnectedAccount, error) {
	if acct.UserID == "" || acct.Provider == "" || acct.ProviderAccountID == "" {
		return nil, ErrInvalidAccount
	}

	result, err := s.upsertOnce(ctx, acct)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// A concurrent connect created the row between our lookup and insert.
		result, err = s.upsertOnce(ctx, acct)
	}
	return result, err
}

func (s *Store) upsertOnce(
	ctx context.Context,
	acct *models.ConnectedAccount,
) (*models.ConnectedAccount, error) {
	var saved models.ConnectedAccount

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Unscoped().
			Where("provider = ? AND provider_account_id = ?", acct.Provider, acct.ProviderAccountID)
		if s.uniqueness == config.AccountUniquenessPerUser {
			q = q.Where("user_id = ?", acct.UserID)
		}

		var existing models.ConnectedAccount
		err := q.First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			saved = *acct
			if saved.ID == "" {
				saved.ID = uuid.New().String()
			}
			saved.Status = models.AccountStatusActive
			if saved.ConnectedAt.IsZero() {
				saved.ConnectedAt = time.Now()
			}
			return tx.Create(&saved).Error
		case err != nil:
			return err
		}

		applyConnect(&existing, acct)
		saved = existing
		return tx.Unscoped().Save(&saved).Error
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// applyConnect copies the fields a fresh connect owns onto an existing row.
func applyConnect(dst, src *models.ConnectedAccount) {
	dst.UserID = src.UserID
	dst.AccessToken = src.AccessToken
	dst.AccessTokenSecret = src.AccessTokenSecret
	dst.RefreshToken = src.RefreshToken
	dst.TokenExpiresAt = src.TokenExpiresAt
	dst.Scopes = src.Scopes

	dst.Status = models.AccountStatusActive
	dst.LastErrorAt = nil
	dst.LastErrorMessage = ""
	dst.RevokedAt = nil
	dst.DeletedAt = gorm.DeletedAt{}
	dst.ConnectedAt = src.ConnectedAt
	if dst.ConnectedAt.IsZero() {
		dst.ConnectedAt = time.Now()
	}

	dst.Username = src.Username
	dst.DisplayName = src.DisplayName
	dst.ProfileImageURL = src.ProfileImageURL
	dst.ProfileURL = src.ProfileURL
	dst.Locale = src.Locale
	dst.Timezone = src.Timezone

	// Keep the cached counters when the profile call did not report them.
	if src.FollowersCount > 0 || src.PostsCount > 0 || src.LastStatsUpdate != nil {
		dst.FollowersCount = src.FollowersCount
		dst.PostsCount = src.PostsCount
		dst.LastStatsUpdate = src.LastStatsUpdate
	}
}

// GetConnectedAccount returns a non-deleted account by ID.
func (s *Store) GetConnectedAccount(ctx context.Context, id string) (*models.ConnectedAccount, error) {
	var acct models.ConnectedAccount
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&acct).Error; err != nil {
		return nil, notFound(err)
	}
	return &acct, nil
}

// GetUserConnectedAccount returns a non-deleted account owned by userID.
func (s *Store) GetUserConnectedAccount(
	ctx context.Context,
	userID, id string,
) (*models.ConnectedAccount, error) {
	var acct models.ConnectedAccount
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&acct).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &acct, nil
}

// ListConnectedAccounts returns the user's non-deleted, non-revoked accounts.
func (s *Store) ListConnectedAccounts(
	ctx context.Context,
	userID string,
) ([]models.ConnectedAccount, error) {
	var accounts []models.ConnectedAccount
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status <> ?", userID, models.AccountStatusRevoked).
		Order("connected_at ASC, id ASC").
		Find(&accounts).Error
	return accounts, err
}

// ListRefreshTargets returns ACTIVE, non-deleted accounts matching filter,
// in a stable order.
func (s *Store) ListRefreshTargets(
	ctx context.Context,
	filter RefreshFilter,
) ([]models.ConnectedAccount, error) {
	q := s.db.WithContext(ctx).Where("status = ?", models.AccountStatusActive)
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.AccountID != "" {
		q = q.Where("id = ?", filter.AccountID)
	}

	var accounts []models.ConnectedAccount
	err := q.Order("created_at ASC, id ASC").Find(&accounts).Error
	return accounts, err
}

// ListPublishableAccounts resolves the requested account IDs to the subset
// that can receive posts: owned by userID, ACTIVE and not deleted.
func (s *Store) ListPublishableAccounts(
	ctx context.Context,
	userID string,
	ids []string,
) ([]models.ConnectedAccount, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var accounts []models.ConnectedAccount
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND id IN ? AND status = ?", userID, ids, models.AccountStatusActive).
		Find(&accounts).Error
	return accounts, err
}

// ListAccountsExpiringBefore returns ACTIVE accounts whose provider token
// expires before deadline.
func (s *Store) ListAccountsExpiringBefore(
	ctx context.Context,
	deadline time.Time,
) ([]models.ConnectedAccount, error) {
	var accounts []models.ConnectedAccount
	err := s.db.WithContext(ctx).
		Where("status = ? AND token_expires_at IS NOT NULL AND token_expires_at < ?",
			models.AccountStatusActive, deadline).
		Order("token_expires_at ASC").
		Find(&accounts).Error
	return accounts, err
}

// UpdateAccountStats writes the engagement cache. Credentials are untouched.
func (s *Store) UpdateAccountStats(
	ctx context.Context,
	id string,
	followers, posts int64,
	at time.Time,
) error {
	return s.updateAccount(ctx, id, map[string]any{
		"followers_count":   followers,
		"posts_count":       posts,
		"last_stats_update": at,
	})
}

// RecordAccountError stores the last provider failure on the account.
// markErrored additionally moves the account to ERROR status.
func (s *Store) RecordAccountError(
	ctx context.Context,
	id, message string,
	at time.Time,
	markErrored bool,
) error {
	updates := map[string]any{
		"last_error_at":      at,
		"last_error_message": message,
	}
	if markErrored {
		updates["status"] = models.AccountStatusError
	}
	return s.updateAccount(ctx, id, updates)
}

// UpdateAccountTokens replaces the encrypted credentials after a provider refresh.
// An empty refreshToken keeps the stored one.
func (s *Store) UpdateAccountTokens(
	ctx context.Context,
	id, accessToken, refreshToken string,
	expiresAt *time.Time,
) error {
	updates := map[string]any{
		"access_token":     accessToken,
		"token_expires_at": expiresAt,
	}
	if refreshToken != "" {
		updates["refresh_token"] = refreshToken
	}
	return s.updateAccount(ctx, id, updates)
}

func (s *Store) updateAccount(ctx context.Context, id string, updates map[string]any) error {
	res := s.db.WithContext(ctx).
		Model(&models.ConnectedAccount{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// RevokeConnectedAccount disconnects an account owned by userID: its
// credentials are wiped, it is marked REVOKED and soft-deleted, and its
// publish targets are removed.
func (s *Store) RevokeConnectedAccount(ctx context.Context, userID, id string, at time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var acct models.ConnectedAccount
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&acct).Error; err != nil {
			return notFound(err)
		}

		if err := tx.Where("connected_account_id = ?", acct.ID).
			Delete(&models.PostTarget{}).Error; err != nil {
			return fmt.Errorf("failed to delete post targets: %w", err)
		}

		if err := tx.Model(&acct).Updates(map[string]any{
			"status":              models.AccountStatusRevoked,
			"revoked_at":          at,
			"access_token":        "",
			"access_token_secret": "",
			"refresh_token":       "",
		}).Error; err != nil {
			return err
		}

		return tx.Delete(&acct).Error
	})
}

// CreatePostTarget links a post to a connected account.
func (s *Store) CreatePostTarget(ctx context.Context, target *models.PostTarget) error {
	if target.ID == "" {
		target.ID = uuid.New().String()
	}
	return s.db.WithContext(ctx).Create(target).Error
}

// CountPostTargets returns the number of publish targets for an account.
func (s *Store) CountPostTargets(ctx context.Context, accountID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&models.PostTarget{}).
		Where("connected_account_id = ?", accountID).
		Count(&n).Error
	return n, err
}

// CountConnectedAccountsByStatus counts non-deleted accounts in the given status.
func (s *Store) CountConnectedAccountsByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&models.ConnectedAccount{}).
		Where("status = ?", status).
		Count(&n).Error
	return n, err
}
