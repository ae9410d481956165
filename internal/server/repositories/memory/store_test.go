package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

func strPtr(s string) *string { return &s }

func createUser(t *testing.T, m *RepositoryManager, u *models.User) error {
	t.Helper()
	return m.WithTx(context.Background(), func(ctx context.Context, tx dbx.DBTX) error {
		return m.Users(tx).Create(ctx, u)
	})
}

func TestUsers_CreateAndLookup(t *testing.T) {
	m := NewRepositoryManager()
	ctx := context.Background()

	u := &models.User{ID: "u1", Email: "a@x.com", Username: strPtr("alice"), PasswordHash: "h"}
	require.NoError(t, createUser(t, m, u))

	repo := m.Users(m.Conn())
	got, err := repo.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	got, err = repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Email)

	got.Username = strPtr("mutated")
	again, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", *again.Username, "returned users must not alias stored state")

	_, err = repo.GetByEmail(ctx, "missing@x.com")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUsers_Uniqueness(t *testing.T) {
	m := NewRepositoryManager()
	require.NoError(t, createUser(t, m, &models.User{ID: "u1", Email: "a@x.com", Username: strPtr("alice")}))

	err := createUser(t, m, &models.User{ID: "u2", Email: "a@x.com"})
	assert.ErrorIs(t, err, common.ErrEmailTaken)

	err = createUser(t, m, &models.User{ID: "u3", Email: "b@x.com", Username: strPtr("alice")})
	assert.ErrorIs(t, err, common.ErrUsernameTaken)

	// absent usernames never collide
	require.NoError(t, createUser(t, m, &models.User{ID: "u4", Email: "c@x.com"}))
	require.NoError(t, createUser(t, m, &models.User{ID: "u5", Email: "d@x.com"}))
}

func TestWithTx_RollbackRestoresState(t *testing.T) {
	m := NewRepositoryManager()
	boom := errors.New("boom")

	err := m.WithTx(context.Background(), func(ctx context.Context, tx dbx.DBTX) error {
		require.NoError(t, m.Users(tx).Create(ctx, &models.User{ID: "u1", Email: "a@x.com"}))
		require.NoError(t, m.RefreshTokens(tx).Create(ctx, &models.RefreshToken{ID: "r1", UserID: "u1", Token: "t1"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = m.Users(m.Conn()).GetByID(context.Background(), "u1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = m.RefreshTokens(m.Conn()).Find(context.Background(), "t1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestLen_CountsRevokedTokens(t *testing.T) {
	m := NewRepositoryManager()
	ctx := context.Background()

	users, tokens := m.Len()
	assert.Zero(t, users)
	assert.Zero(t, tokens)

	require.NoError(t, m.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		require.NoError(t, m.Users(tx).Create(ctx, &models.User{ID: "u1", Email: "a@x.com"}))
		require.NoError(t, m.RefreshTokens(tx).Create(ctx, &models.RefreshToken{ID: "r1", UserID: "u1", Token: "t1", ExpiresAt: time.Now().Add(time.Hour)}))
		require.NoError(t, m.RefreshTokens(tx).Create(ctx, &models.RefreshToken{ID: "r2", UserID: "u1", Token: "t2", ExpiresAt: time.Now().Add(time.Hour)}))
		_, err := m.RefreshTokens(tx).RevokeIfActive(ctx, "t1", time.Now())
		return err
	}))

	users, tokens = m.Len()
	assert.Equal(t, 1, users)
	assert.Equal(t, 2, tokens)
}

func TestWithTx_PanicRestoresState(t *testing.T) {
	m := NewRepositoryManager()

	assert.Panics(t, func() {
		_ = m.WithTx(context.Background(), func(ctx context.Context, tx dbx.DBTX) error {
			_ = m.Users(tx).Create(ctx, &models.User{ID: "u1", Email: "a@x.com"})
			panic("kaboom")
		})
	})

	_, err := m.Users(m.Conn()).GetByID(context.Background(), "u1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestWritesOutsideTxRejected(t *testing.T) {
	m := NewRepositoryManager()
	err := m.Users(m.Conn()).Create(context.Background(), &models.User{ID: "u1", Email: "a@x.com"})
	assert.ErrorIs(t, err, ErrWriteOutsideTx)

	_, err = m.RefreshTokens(m.Conn()).RevokeIfActive(context.Background(), "t", time.Now())
	assert.ErrorIs(t, err, ErrWriteOutsideTx)
}

func TestHandleUnusableAfterTx(t *testing.T) {
	m := NewRepositoryManager()
	var leaked dbx.DBTX
	require.NoError(t, m.WithTx(context.Background(), func(ctx context.Context, tx dbx.DBTX) error {
		leaked = tx
		return nil
	}))

	_, err := m.Users(leaked).GetByID(context.Background(), "u1")
	assert.Error(t, err)
}

func TestForeignHandle(t *testing.T) {
	a, b := NewRepositoryManager(), NewRepositoryManager()
	_, err := a.Users(b.Conn()).GetByID(context.Background(), "x")
	assert.ErrorIs(t, err, ErrForeignHandle)
}

func TestRefreshTokens_RevokeIfActiveOnce(t *testing.T) {
	m := NewRepositoryManager()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, m.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		return m.RefreshTokens(tx).Create(ctx, &models.RefreshToken{ID: "r1", UserID: "u1", Token: "t1", ExpiresAt: now.Add(time.Hour)})
	}))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
				won, err := m.RefreshTokens(tx).RevokeIfActive(ctx, "t1", now)
				if err != nil {
					return err
				}
				if won {
					mu.Lock()
					wins++
					mu.Unlock()
				}
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	got, err := m.RefreshTokens(m.Conn()).Find(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, got.Revoked)
	require.NotNil(t, got.RevokedAt)
}

func TestRefreshTokens_ListAndRevokeAll(t *testing.T) {
	m := NewRepositoryManager()
	ctx := context.Background()
	now := time.Now()

	seed := []*models.RefreshToken{
		{ID: "r1", UserID: "u1", Token: "old", CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(time.Hour)},
		{ID: "r2", UserID: "u1", Token: "new", CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(time.Hour)},
		{ID: "r3", UserID: "u1", Token: "expired", CreatedAt: now.Add(-3 * time.Hour), ExpiresAt: now.Add(-time.Hour)},
		{ID: "r4", UserID: "u2", Token: "other", CreatedAt: now, ExpiresAt: now.Add(time.Hour)},
	}

	// a duplicate token aborts the whole transaction
	err := m.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := m.RefreshTokens(tx)
		for _, tok := range seed {
			if err := repo.Create(ctx, tok); err != nil {
				return err
			}
		}
		return repo.Create(ctx, &models.RefreshToken{ID: "r5", UserID: "u1", Token: "new"})
	})
	require.ErrorIs(t, err, common.ErrorConflict)

	list, err := m.RefreshTokens(m.Conn()).ListActiveByUser(ctx, "u1", now)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, m.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := m.RefreshTokens(tx)
		for _, tok := range seed {
			if err := repo.Create(ctx, tok); err != nil {
				return err
			}
		}
		return nil
	}))

	list, err = m.RefreshTokens(m.Conn()).ListActiveByUser(ctx, "u1", now)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "r2", list[0].ID)
	assert.Equal(t, "r1", list[1].ID)

	var n int64
	require.NoError(t, m.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		n, err = m.RefreshTokens(tx).RevokeAllForUser(ctx, "u1", now)
		return err
	}))
	assert.Equal(t, int64(3), n, "expired but unrevoked tokens are revoked too")

	list, err = m.RefreshTokens(m.Conn()).ListActiveByUser(ctx, "u2", now)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
