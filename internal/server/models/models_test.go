package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_PublicOmitsPasswordHash(t *testing.T) {
	name := "alice"
	u := &User{
		ID:           "u1",
		Email:        "a@x.com",
		Username:     &name,
		PasswordHash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$a2V5",
		Role:         DefaultRole,
		IsActive:     true,
	}

	pub := u.Public()
	require.NotNil(t, pub)
	assert.Equal(t, "u1", pub.ID)
	assert.Equal(t, "a@x.com", pub.Email)
	assert.Equal(t, &name, pub.Username)

	b, err := json.Marshal(pub)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(b), "argon2"), "public view leaked the hash: %s", b)
	assert.False(t, strings.Contains(strings.ToLower(string(b)), "password"))
}

func TestUser_PublicNil(t *testing.T) {
	var u *User
	assert.Nil(t, u.Public())
}

func TestRefreshToken_ActiveExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	live := &RefreshToken{ExpiresAt: now.Add(time.Minute)}
	assert.True(t, live.Active(now))

	expired := &RefreshToken{ExpiresAt: now}
	assert.True(t, expired.Expired(now))
	assert.False(t, expired.Active(now))

	revoked := &RefreshToken{ExpiresAt: now.Add(time.Minute), Revoked: true}
	assert.False(t, revoked.Active(now))
}

func TestRefreshToken_SessionHidesToken(t *testing.T) {
	tok := &RefreshToken{ID: "rt1", Token: "secret-value"}
	b, err := json.Marshal(tok.Session())
	require.NoError(t, err)
	assert.NotContains(t, string(b), "secret-value")
}
