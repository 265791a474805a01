package auth

import (
	"errors"
	"time"
)

var (
	// ErrInvalidToken is returned for tokens that are malformed, unknown,
	// revoked or expired. Callers never learn which.
	ErrInvalidToken = errors.New("invalid api token")
	// ErrTokenNotFound is returned by Revoke for unknown token ids
	ErrTokenNotFound = errors.New("api token not found")
)

// APIToken is the stored record of an API token. The plaintext is never stored.
type APIToken struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Name        string     `json:"name"`
	TokenHash   string     `json:"-"`
	TokenPrefix string     `json:"token_prefix"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

// Usable reports whether the token may authenticate at the given time
func (t *APIToken) Usable(now time.Time) bool {
	if t.RevokedAt != nil {
		return false
	}
	return t.ExpiresAt == nil || now.Before(*t.ExpiresAt)
}
