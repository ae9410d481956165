package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/events"
)

func TestRefresh_RotatesToken(t *testing.T) {
	e := newEnv(t)
	id := e.register(t, "alice@example.com", "pw")
	first := e.login(t, "alice@example.com", "pw")

	e.clock.Advance(time.Minute)
	second, err := e.svc.Refresh(context.Background(), first.RefreshToken)
	require.NoError(t, err)

	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)
	sub, err := e.svc.Authenticate(context.Background(), second.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, id, sub)

	old, err := e.store.RefreshTokens(e.store.Conn()).Find(context.Background(), first.RefreshToken)
	require.NoError(t, err)
	assert.True(t, old.Revoked)
	require.NotNil(t, old.RevokedAt)
	assert.Equal(t, e.clock.Now(), *old.RevokedAt)
}

func TestRefresh_Unknown(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Refresh(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = e.svc.Refresh(context.Background(), "")
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestRefresh_Expired(t *testing.T) {
	e := newEnv(t)
	e.register(t, "bob@example.com", "pw")
	pair := e.login(t, "bob@example.com", "pw")

	e.clock.Advance(7 * 24 * time.Hour)

	_, err := e.svc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrRefreshTokenExpired)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestRefresh_ConcurrentOnlyOneWins(t *testing.T) {
	e := newEnv(t)
	id := e.register(t, "carol@example.com", "pw")
	pair := e.login(t, "carol@example.com", "pw")

	const n = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []*TokenPair
		losers  int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := e.svc.Refresh(context.Background(), pair.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, got)
				return
			}
			assert.ErrorIs(t, err, common.ErrorUnauthorized)
			losers++
		}()
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, n-1, losers)

	// the revoked original and exactly one successor
	_, tokens := e.store.Len()
	assert.Equal(t, 2, tokens)
	sessions, err := e.svc.Sessions(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	// losers arrive within the grace period, so the winner's token survives
	_, err = e.svc.Refresh(context.Background(), winners[0].RefreshToken)
	assert.NoError(t, err)
}

func TestRefresh_ReuseRevokesFamily(t *testing.T) {
	e := newEnv(t)
	id := e.register(t, "dave@example.com", "pw")
	a := e.login(t, "dave@example.com", "pw")
	b := e.login(t, "dave@example.com", "pw")

	a2, err := e.svc.Refresh(context.Background(), a.RefreshToken)
	require.NoError(t, err)

	e.clock.Advance(time.Minute)
	_, err = e.svc.Refresh(context.Background(), a.RefreshToken)
	require.ErrorIs(t, err, common.ErrRefreshTokenRevoked)

	for _, tok := range []string{a2.RefreshToken, b.RefreshToken} {
		_, err := e.svc.Refresh(context.Background(), tok)
		assert.ErrorIs(t, err, common.ErrorUnauthorized)
	}

	sessions, err := e.svc.Sessions(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.Contains(t, e.events.types(), events.TypeRefreshTokenReuse)
}

func TestRefresh_ReuseWithinGraceKeepsFamily(t *testing.T) {
	e := newEnv(t)
	e.register(t, "erin@example.com", "pw")
	a := e.login(t, "erin@example.com", "pw")

	a2, err := e.svc.Refresh(context.Background(), a.RefreshToken)
	require.NoError(t, err)

	e.clock.Advance(time.Second)
	_, err = e.svc.Refresh(context.Background(), a.RefreshToken)
	require.ErrorIs(t, err, common.ErrRefreshTokenRevoked)

	_, err = e.svc.Refresh(context.Background(), a2.RefreshToken)
	assert.NoError(t, err)
	assert.Contains(t, e.events.types(), events.TypeRefreshTokenReuse, "reuse is reported even inside the grace period")
}

func TestRefresh_ReuseDetectionDisabled(t *testing.T) {
	e := newEnv(t, func(o *Options) { o.RevokeFamilyOnReuse = false })
	e.register(t, "frank@example.com", "pw")
	a := e.login(t, "frank@example.com", "pw")

	a2, err := e.svc.Refresh(context.Background(), a.RefreshToken)
	require.NoError(t, err)

	e.clock.Advance(time.Hour)
	_, err = e.svc.Refresh(context.Background(), a.RefreshToken)
	require.ErrorIs(t, err, common.ErrRefreshTokenRevoked)

	_, err = e.svc.Refresh(context.Background(), a2.RefreshToken)
	assert.NoError(t, err)
}

func TestRefresh_DisabledAccount(t *testing.T) {
	e := newEnv(t)
	e.register(t, "gina@example.com", "pw")
	pair := e.login(t, "gina@example.com", "pw")

	require.NoError(t, e.svc.SetActive(context.Background(), "gina@example.com", false))

	_, err := e.svc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	err = e.svc.SetActive(context.Background(), "nobody@example.com", false)
	assert.ErrorIs(t, err, common.ErrorValidation)
}
