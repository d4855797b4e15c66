package auth

import (
	"context"

	"github.com/danielkropka/social-flow-sub001/internal/models"

	"golang.org/x/crypto/bcrypt"
)

// UserLookup finds local users by email.
type UserLookup interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// LocalAuthProvider handles local database authentication
type LocalAuthProvider struct {
	users UserLookup
}

// NewLocalAuthProvider creates a new local authentication provider
func NewLocalAuthProvider(users UserLookup) *LocalAuthProvider {
	return &LocalAuthProvider{users: users}
}

// Authenticate verifies credentials against local database. Unknown users,
// inactive users and wrong passwords all yield ErrInvalidCredentials.
func (p *LocalAuthProvider) Authenticate(
	ctx context.Context,
	email, password string,
) (*models.User, error) {
	user, err := p.users.GetUserByEmail(ctx, email)
	if err != nil || !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(
		[]byte(user.PasswordHash),
		[]byte(password),
	); err != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// Name returns provider name for logging
func (p *LocalAuthProvider) Name() string {
	return "local"
}
