package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Provider identifies an external social network.
type Provider string

const (
	ProviderTwitter   Provider = "TWITTER"
	ProviderInstagram Provider = "INSTAGRAM"
	ProviderFacebook  Provider = "FACEBOOK"
	ProviderTikTok    Provider = "TIKTOK"
	ProviderGoogle    Provider = "GOOGLE"
)

// AllProviders lists every provider the data model accepts.
var AllProviders = []Provider{
	ProviderTwitter,
	ProviderInstagram,
	ProviderFacebook,
	ProviderTikTok,
	ProviderGoogle,
}

// ParseProvider maps a URL slug such as "twitter" or "x" to a Provider.
func ParseProvider(slug string) (Provider, bool) {
	s := strings.ToUpper(strings.TrimSpace(slug))
	if s == "X" {
		return ProviderTwitter, true
	}
	for _, p := range AllProviders {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

// Slug is the lowercase form used in routes and redirect flags.
func (p Provider) Slug() string {
	return strings.ToLower(string(p))
}

// AccountStatus is the lifecycle state of a connected account.
type AccountStatus string

const (
	AccountStatusActive  AccountStatus = "ACTIVE"
	AccountStatusError   AccountStatus = "ERROR"
	AccountStatusRevoked AccountStatus = "REVOKED"
)

// ConnectedAccount is a user's credential for one provider identity.
// AccessToken, AccessTokenSecret and RefreshToken hold ciphertext only.
type ConnectedAccount struct {
	ID                string   `gorm:"primaryKey;type:varchar(36)"        json:"id"`
	UserID            string   `gorm:"type:varchar(36);not null;index"    json:"user_id"`
	Provider          Provider `gorm:"type:varchar(20);not null;index"    json:"provider"`
	ProviderAccountID string   `gorm:"type:varchar(191);not null"         json:"provider_account_id"`

	// Encrypted credentials
	AccessToken       string     `gorm:"type:text" json:"-"`
	AccessTokenSecret string     `gorm:"type:text" json:"-"`
	RefreshToken      string     `gorm:"type:text" json:"-"`
	TokenExpiresAt    *time.Time `json:"token_expires_at,omitempty"`
	Scopes            string     `gorm:"type:text" json:"scopes,omitempty"`

	// Status
	Status           AccountStatus `gorm:"type:varchar(16);not null;default:'ACTIVE';index" json:"status"`
	LastErrorAt      *time.Time    `json:"last_error_at,omitempty"`
	LastErrorMessage string        `gorm:"type:text"                                       json:"last_error_message,omitempty"`
	ConnectedAt      time.Time     `json:"connected_at"`
	RevokedAt        *time.Time    `json:"revoked_at,omitempty"`

	// Profile mirror, refreshed on every connect
	Username        string `gorm:"type:varchar(255)" json:"username"`
	DisplayName     string `gorm:"type:varchar(255)" json:"display_name"`
	ProfileImageURL string `gorm:"type:text"         json:"profile_image_url,omitempty"`
	ProfileURL      string `gorm:"type:text"         json:"profile_url,omitempty"`
	Locale          string `gorm:"type:varchar(32)"  json:"locale,omitempty"`
	Timezone        string `gorm:"type:varchar(64)"  json:"timezone,omitempty"`

	// Engagement cache
	FollowersCount  int64      `gorm:"not null;default:0" json:"followers_count"`
	PostsCount      int64      `gorm:"not null;default:0" json:"posts_count"`
	LastStatsUpdate *time.Time `json:"last_stats_update,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (ConnectedAccount) TableName() string {
	return "connected_accounts"
}

// IsUsable reports whether the account may be used for publishing and stats.
func (a *ConnectedAccount) IsUsable() bool {
	return a.Status == AccountStatusActive && !a.DeletedAt.Valid
}
