package models

import (
	"time"
)

// User roles
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID           string `gorm:"primaryKey"                 json:"id"`
	Username     string `gorm:"uniqueIndex;not null"       json:"username"`
	Email        string `gorm:"uniqueIndex;not null"       json:"email"`
	PasswordHash string `json:"-"`
	Role         string `gorm:"not null;default:'user'"    json:"role"`
	FullName     string `json:"full_name,omitempty"`
	IsActive     bool   `gorm:"not null;default:true"      json:"is_active"`

	ConnectedAccounts []ConnectedAccount `gorm:"foreignKey:UserID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsAdmin returns true if the user has admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
