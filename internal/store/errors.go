package store

import "errors"

var (
	// ErrRecordNotFound wraps GORM's not found error for consistency
	ErrRecordNotFound = errors.New("record not found")

	// ErrEmailConflict is returned when a user with the same email already exists
	ErrEmailConflict = errors.New("email already exists")

	// ErrInvalidAccount is returned when an upsert is missing its identity fields
	ErrInvalidAccount = errors.New("connected account requires user, provider and provider account id")
)
