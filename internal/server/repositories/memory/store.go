// Package memory is an in-process credential store with the same semantics
// as the PostgreSQL one: unique email, username and token values, and
// all-or-nothing transactions. It backs development runs and tests.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

var (
	// ErrWriteOutsideTx is returned for writes through Conn().
	ErrWriteOutsideTx = errors.New("memory store: writes require a transaction")
	// ErrForeignHandle is returned when a repository is built from a handle
	// that does not belong to this store.
	ErrForeignHandle = errors.New("memory store: foreign handle")
	errNoSQL         = errors.New("memory store: SQL is not supported")
)

type state struct {
	users  map[string]models.User         // by id
	tokens map[string]models.RefreshToken // by token value
}

func (s state) clone() state {
	c := state{
		users:  make(map[string]models.User, len(s.users)),
		tokens: make(map[string]models.RefreshToken, len(s.tokens)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.tokens {
		c.tokens[k] = v
	}
	return c
}

// RepositoryManager implements repomanager.RepositoryManager in memory.
// Transactions are serialized by a single lock.
type RepositoryManager struct {
	mu sync.Mutex
	st state
}

var _ repomanager.RepositoryManager = (*RepositoryManager)(nil)

func NewRepositoryManager() *RepositoryManager {
	return &RepositoryManager{st: state{
		users:  map[string]models.User{},
		tokens: map[string]models.RefreshToken{},
	}}
}

// handle is the dbx.DBTX given to repositories. It carries no SQL
// connection; repositories of this package only look at its fields.
type handle struct {
	m    *RepositoryManager
	tx   bool
	done bool
}

func (h *handle) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errNoSQL
}

func (h *handle) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errNoSQL
}

func (h *handle) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

func (m *RepositoryManager) Conn() dbx.DBTX {
	return &handle{m: m}
}

// WithTx holds the store lock for the whole of fn and restores the previous
// state if fn fails or panics.
func (m *RepositoryManager) WithTx(ctx context.Context, fn repomanager.TxFunc) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	h := &handle{m: m, tx: true}

	defer func() {
		h.done = true
		if p := recover(); p != nil {
			m.st = snapshot
			panic(p)
		}
		if err != nil {
			m.st = snapshot
		}
	}()

	return fn(ctx, h)
}

func (m *RepositoryManager) Users(db dbx.DBTX) users.Repository {
	return &userRepo{h: m.own(db)}
}

func (m *RepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return &tokenRepo{h: m.own(db)}
}

func (m *RepositoryManager) RunMigrations(context.Context) error { return nil }

// Len reports how many user and refresh token rows are stored, revoked
// tokens included.
func (m *RepositoryManager) Len() (users, tokens int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.st.users), len(m.st.tokens)
}

func (m *RepositoryManager) Close() error { return nil }

func (m *RepositoryManager) own(db dbx.DBTX) *handle {
	h, ok := db.(*handle)
	if !ok || h.m != m {
		return nil
	}
	return h
}

// read runs fn with the state visible to h.
func (h *handle) read(ctx context.Context, fn func(st *state) error) error {
	if h == nil {
		return ErrForeignHandle
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if h.tx {
		if h.done {
			return sql.ErrTxDone
		}
		return fn(&h.m.st)
	}
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	return fn(&h.m.st)
}

func (h *handle) write(ctx context.Context, fn func(st *state) error) error {
	if h != nil && !h.tx {
		return ErrWriteOutsideTx
	}
	return h.read(ctx, fn)
}

type userRepo struct {
	h *handle
}

func (r *userRepo) Create(ctx context.Context, u *models.User) error {
	return r.h.write(ctx, func(st *state) error {
		if _, ok := st.users[u.ID]; ok {
			return common.ErrorConflict
		}
		for _, existing := range st.users {
			if existing.Email == u.Email {
				return common.ErrEmailTaken
			}
			if u.Username != nil && existing.Username != nil && *existing.Username == *u.Username {
				return common.ErrUsernameTaken
			}
		}
		st.users[u.ID] = copyUser(*u)
		return nil
	})
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.find(ctx, func(u *models.User) bool { return u.Email == email })
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.find(ctx, func(u *models.User) bool { return u.Username != nil && *u.Username == username })
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.find(ctx, func(u *models.User) bool { return u.ID == id })
}

func (r *userRepo) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	return r.h.write(ctx, func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return common.ErrorNotFound
		}
		u.IsActive = active
		u.UpdatedAt = at
		st.users[id] = u
		return nil
	})
}

func (r *userRepo) find(ctx context.Context, match func(*models.User) bool) (*models.User, error) {
	var found *models.User
	err := r.h.read(ctx, func(st *state) error {
		for _, u := range st.users {
			if match(&u) {
				c := copyUser(u)
				found = &c
				return nil
			}
		}
		return common.ErrorNotFound
	})
	return found, err
}

func copyUser(u models.User) models.User {
	u.Username = copyString(u.Username)
	u.FullName = copyString(u.FullName)
	u.AvatarURL = copyString(u.AvatarURL)
	return u
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

type tokenRepo struct {
	h *handle
}

func (r *tokenRepo) Create(ctx context.Context, t *models.RefreshToken) error {
	return r.h.write(ctx, func(st *state) error {
		if _, ok := st.tokens[t.Token]; ok {
			return common.ErrorConflict
		}
		st.tokens[t.Token] = copyToken(*t)
		return nil
	})
}

func (r *tokenRepo) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	var found *models.RefreshToken
	err := r.h.read(ctx, func(st *state) error {
		t, ok := st.tokens[token]
		if !ok {
			return common.ErrorNotFound
		}
		c := copyToken(t)
		found = &c
		return nil
	})
	return found, err
}

func (r *tokenRepo) RevokeIfActive(ctx context.Context, token string, at time.Time) (bool, error) {
	var won bool
	err := r.h.write(ctx, func(st *state) error {
		t, ok := st.tokens[token]
		if !ok || t.Revoked {
			return nil
		}
		t.Revoked = true
		t.RevokedAt = &at
		st.tokens[token] = t
		won = true
		return nil
	})
	return won, err
}

func (r *tokenRepo) RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	var n int64
	err := r.h.write(ctx, func(st *state) error {
		for k, t := range st.tokens {
			if t.UserID != userID || t.Revoked {
				continue
			}
			revokedAt := at
			t.Revoked = true
			t.RevokedAt = &revokedAt
			st.tokens[k] = t
			n++
		}
		return nil
	})
	return n, err
}

func (r *tokenRepo) ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*models.RefreshToken, error) {
	var out []*models.RefreshToken
	err := r.h.read(ctx, func(st *state) error {
		for _, t := range st.tokens {
			if t.UserID == userID && t.Active(now) {
				c := copyToken(t)
				out = append(out, &c)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func copyToken(t models.RefreshToken) models.RefreshToken {
	if t.RevokedAt != nil {
		at := *t.RevokedAt
		t.RevokedAt = &at
	}
	return t
}
