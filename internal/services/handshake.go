package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielkropka/social-flow-sub001/internal/cache"
	"github.com/danielkropka/social-flow-sub001/internal/core"
	"github.com/danielkropka/social-flow-sub001/internal/models"
)

const (
	DefaultHandshakeTTL = 10 * time.Minute
	handshakeKeyPrefix  = "handshake:"
)

// HandshakeStore keeps in-flight connect attempts between the initiate and
// callback requests. Entries are keyed by the initiating user and the
// handshake token, and expire after the configured TTL.
type HandshakeStore struct {
	cache core.Cache[models.PendingHandshake]
	ttl   time.Duration
	now   func() time.Time
}

// NewHandshakeStore creates a handshake store over c. A non-positive ttl
// falls back to DefaultHandshakeTTL.
func NewHandshakeStore(c core.Cache[models.PendingHandshake], ttl time.Duration) *HandshakeStore {
	if ttl <= 0 {
		ttl = DefaultHandshakeTTL
	}
	return &HandshakeStore{cache: c, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source used for deadlines.
func (s *HandshakeStore) WithClock(now func() time.Time) *HandshakeStore {
	s.now = now
	return s
}

// TTL returns the lifetime of a stored handshake.
func (s *HandshakeStore) TTL() time.Duration {
	return s.ttl
}

func handshakeKey(userID, token string) string {
	return handshakeKeyPrefix + userID + ":" + token
}

// Put stores h, stamping its creation and expiry times. It fails with
// ErrHandshakeExists if a live handshake already uses the same key.
func (s *HandshakeStore) Put(ctx context.Context, h *models.PendingHandshake) error {
	if h.UserID == "" || h.Token == "" {
		return fmt.Errorf("handshake requires a user and a token")
	}

	now := s.now()
	h.CreatedAt = now
	h.ExpiresAt = now.Add(s.ttl)

	ok, err := s.cache.SetNX(ctx, handshakeKey(h.UserID, h.Token), *h, s.ttl)
	if err != nil {
		return fmt.Errorf("failed to store handshake: %w", err)
	}
	if !ok {
		return ErrHandshakeExists
	}
	return nil
}

// Get returns the live handshake for (userID, token). A missing entry or
// one past its deadline yields ErrSessionExpired.
func (s *HandshakeStore) Get(ctx context.Context, userID, token string) (*models.PendingHandshake, error) {
	if userID == "" || token == "" {
		return nil, ErrSessionExpired
	}

	h, err := s.cache.Get(ctx, handshakeKey(userID, token))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load handshake: %w", err)
	}
	if h.Expired(s.now()) || h.UserID != userID {
		return nil, ErrSessionExpired
	}
	return &h, nil
}

// Delete removes the handshake. Deleting a missing entry is not an error.
func (s *HandshakeStore) Delete(ctx context.Context, userID, token string) error {
	err := s.cache.Delete(ctx, handshakeKey(userID, token))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}
