package models

import "time"

// RefreshToken is a persisted, opaque, revocable credential. Revoked only
// ever moves from false to true; RevokedAt is set at the same moment.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
	RevokedAt *time.Time
}

// Expired reports whether the token is past its expiry at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// Active reports whether the token can still be exchanged at now.
func (t *RefreshToken) Active(now time.Time) bool {
	return !t.Revoked && !t.Expired(now)
}

// Session describes an active refresh token without exposing its value.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Session returns the session view of t.
func (t *RefreshToken) Session() Session {
	return Session{ID: t.ID, CreatedAt: t.CreatedAt, ExpiresAt: t.ExpiresAt}
}
