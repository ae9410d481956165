package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/events"
)

func TestLogout_Idempotent(t *testing.T) {
	e := newEnv(t)
	e.register(t, "alice@example.com", "pw")
	pair := e.login(t, "alice@example.com", "pw")

	require.NoError(t, e.svc.Logout(context.Background(), pair.RefreshToken))
	require.NoError(t, e.svc.Logout(context.Background(), pair.RefreshToken))
	require.NoError(t, e.svc.Logout(context.Background(), "never-issued"))

	_, err := e.svc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	logouts := 0
	for _, typ := range e.events.types() {
		if typ == events.TypeUserLoggedOut {
			logouts++
		}
	}
	assert.Equal(t, 1, logouts, "only the revoking call publishes")
}

func TestLogout_EmptyToken(t *testing.T) {
	e := newEnv(t)
	assert.ErrorIs(t, e.svc.Logout(context.Background(), ""), common.ErrorValidation)
}

func TestLogout_CommitsDespiteCallerCancel(t *testing.T) {
	e := newEnv(t)
	e.register(t, "bob@example.com", "pw")
	pair := e.login(t, "bob@example.com", "pw")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, e.svc.Logout(ctx, pair.RefreshToken))

	rt, err := e.store.RefreshTokens(e.store.Conn()).Find(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.True(t, rt.Revoked)
}
