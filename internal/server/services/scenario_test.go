package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

func TestScenario_RegisterLoginRefreshLogout(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	u, err := e.svc.Register(ctx, RegisterInput{Email: "a@x.com", Password: "p1"})
	require.NoError(t, err)

	p1, err := e.svc.Login(ctx, "a@x.com", "p1")
	require.NoError(t, err)

	sub, err := e.svc.Authenticate(ctx, p1.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, sub)

	p2, err := e.svc.Refresh(ctx, p1.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, p1.RefreshToken, p2.RefreshToken)

	_, err = e.svc.Refresh(ctx, p1.RefreshToken)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	require.NoError(t, e.svc.Logout(ctx, p2.RefreshToken))

	_, err = e.svc.Refresh(ctx, p2.RefreshToken)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestCategorize(t *testing.T) {
	assert.NoError(t, categorize(nil))
	assert.ErrorIs(t, categorize(common.ErrInvalidToken), common.ErrorUnauthorized)
	assert.ErrorIs(t, categorize(context.Canceled), common.ErrorUnavailable)
	assert.ErrorIs(t, categorize(errTimeout), common.ErrorUnavailable)

	err := categorize(assert.AnError)
	assert.ErrorIs(t, err, common.ErrorInternal)
	assert.ErrorIs(t, err, assert.AnError)

	assert.Same(t, common.ErrEmailTaken, categorize(common.ErrEmailTaken))
}
