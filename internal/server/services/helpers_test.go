package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/events"
	"github.com/dmitrijs2005/gophauth/internal/server/hashing"
	"github.com/dmitrijs2005/gophauth/internal/server/keys"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/memory"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

const accessTTL = 30 * time.Minute

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// countingHasher wraps a PasswordHasher, counts Verify calls and can
// pretend the pool is saturated.
type countingHasher struct {
	PasswordHasher
	mu        sync.Mutex
	verifies  int
	saturated atomic.Bool
}

func (c *countingHasher) Hash(ctx context.Context, password string) (string, error) {
	if c.saturated.Load() {
		return "", fmt.Errorf("%w: %w", common.ErrorUnavailable, hashing.ErrSaturated)
	}
	return c.PasswordHasher.Hash(ctx, password)
}

func (c *countingHasher) Verify(ctx context.Context, password, encoded string) (bool, error) {
	if c.saturated.Load() {
		return false, fmt.Errorf("%w: %w", common.ErrorUnavailable, hashing.ErrSaturated)
	}
	c.mu.Lock()
	c.verifies++
	c.mu.Unlock()
	return c.PasswordHasher.Verify(ctx, password, encoded)
}

func (c *countingHasher) verifyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verifies
}

type env struct {
	svc     *UserService
	store   *memory.RepositoryManager
	clock   *clock
	events  *recordingPublisher
	hasher  *countingHasher
	metrics *metrics.Metrics
	issuer  *auth.Issuer
}

type envOption func(*Options)

func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()
	return newEnvWithManager(t, nil, opts...)
}

// newEnvWithManager builds a service on wrap(store) when wrap is set.
func newEnvWithManager(t *testing.T, wrap func(repomanager.RepositoryManager) repomanager.RepositoryManager, opts ...envOption) *env {
	t.Helper()

	argon, err := cryptox.NewArgon2Hasher(cryptox.Argon2Params{Memory: 64, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)
	pool := hashing.NewPool(hashing.PoolOptions{Workers: 4, Queue: 64, Policy: hashing.PolicyWait})
	t.Cleanup(pool.Close)

	m := metrics.New()
	hasher := &countingHasher{PasswordHasher: hashing.NewHasher(pool, argon, m)}

	clk := newClock()
	ks, err := keys.Generate(keys.AlgHS256)
	require.NoError(t, err)
	issuer, err := auth.NewIssuer(ks, accessTTL, auth.WithClock(clk.Now), auth.WithIssuer("gophauth-test"))
	require.NoError(t, err)

	o := DefaultOptions()
	o.Now = clk.Now
	for _, fn := range opts {
		fn(&o)
	}

	store := memory.NewRepositoryManager()
	var rm repomanager.RepositoryManager = store
	if wrap != nil {
		rm = wrap(store)
	}

	pub := &recordingPublisher{}
	svc, err := NewUserService(context.Background(), rm, hasher, issuer, pub, nil, m, o)
	require.NoError(t, err)

	return &env{svc: svc, store: store, clock: clk, events: pub, hasher: hasher, metrics: m, issuer: issuer}
}

func strPtr(s string) *string { return &s }

func (e *env) register(t *testing.T, email, password string) string {
	t.Helper()
	u, err := e.svc.Register(context.Background(), RegisterInput{Email: email, Password: password})
	require.NoError(t, err)
	return u.ID
}

func (e *env) login(t *testing.T, email, password string) *TokenPair {
	t.Helper()
	pair, err := e.svc.Login(context.Background(), email, password)
	require.NoError(t, err)
	return pair
}
