package hashing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
)

// PasswordHasher is the CPU-bound primitive the pool runs.
// *cryptox.Argon2Hasher satisfies it.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) bool
}

// Hasher runs a PasswordHasher on a Pool.
type Hasher struct {
	pool    *Pool
	hasher  PasswordHasher
	metrics *metrics.Metrics
}

// NewHasher returns a Hasher. m may be nil.
func NewHasher(pool *Pool, h PasswordHasher, m *metrics.Metrics) *Hasher {
	return &Hasher{pool: pool, hasher: h, metrics: m}
}

// Hash hashes password on the pool.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	var (
		encoded string
		hashErr error
	)
	err := h.pool.Submit(ctx, func() {
		start := time.Now()
		encoded, hashErr = h.hasher.Hash(password)
		h.metrics.ObserveHash("hash", time.Since(start))
	})
	if err != nil {
		return "", h.unavailable(err)
	}
	if hashErr != nil {
		return "", fmt.Errorf("hash password: %w", hashErr)
	}
	return encoded, nil
}

// Verify checks password against encoded on the pool. A mismatch is
// (false, nil); a non-nil error means the check did not run.
func (h *Hasher) Verify(ctx context.Context, password, encoded string) (bool, error) {
	var ok bool
	err := h.pool.Submit(ctx, func() {
		start := time.Now()
		ok = h.hasher.Verify(password, encoded)
		h.metrics.ObserveHash("verify", time.Since(start))
	})
	if err != nil {
		return false, h.unavailable(err)
	}
	return ok, nil
}

func (h *Hasher) unavailable(err error) error {
	if errors.Is(err, ErrSaturated) {
		h.metrics.IncRejected()
	}
	return fmt.Errorf("%w: %w", common.ErrorUnavailable, err)
}
