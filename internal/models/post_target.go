package models

import "time"

// PostTarget links a scheduled post to the account it will be published on.
type PostTarget struct {
	ID                 string     `gorm:"primaryKey;type:varchar(36)"     json:"id"`
	PostID             string     `gorm:"type:varchar(36);not null;index" json:"post_id"`
	ConnectedAccountID string     `gorm:"type:varchar(36);not null;index" json:"connected_account_id"`
	Status             string     `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	ExternalPostID     string     `gorm:"type:varchar(191)"               json:"external_post_id,omitempty"`
	PublishedAt        *time.Time `json:"published_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PostTarget) TableName() string {
	return "post_targets"
}
