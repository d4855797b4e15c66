package models

import "time"

// PendingHandshake is the transient state of an in-flight connect attempt.
// It lives in the handshake cache, never in the credential tables.
// Token is the OAuth1 request token or the OAuth2 state value.
type PendingHandshake struct {
	Token      string    `json:"token"`
	UserID     string    `json:"user_id"`
	Provider   Provider  `json:"provider"`
	Secret     string    `json:"secret,omitempty"` // encrypted OAuth1 request token secret
	RedirectTo string    `json:"redirect_to,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the handshake is past its deadline at now.
func (h *PendingHandshake) Expired(now time.Time) bool {
	return !h.ExpiresAt.IsZero() && !now.Before(h.ExpiresAt)
}
