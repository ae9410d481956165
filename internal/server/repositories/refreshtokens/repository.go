// Package refreshtokens declares the server-side repository contract for
// managing refresh tokens in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository defines operations for issuing, retrieving, and revoking refresh tokens.
// Rows are never deleted; revocation only moves Revoked from false to true.
type Repository interface {
	// Create stores a new refresh token. A duplicate token value returns an
	// error wrapping common.ErrorConflict.
	Create(ctx context.Context, token *models.RefreshToken) error

	// Find looks up a refresh token by its opaque token string, revoked or not.
	// It returns common.ErrorNotFound when the token is absent.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// RevokeIfActive marks the token revoked at the given time if it is not
	// revoked yet, and reports whether this call made the change. Of two
	// concurrent calls for the same token at most one gets true.
	RevokeIfActive(ctx context.Context, token string, at time.Time) (bool, error)

	// RevokeAllForUser revokes every unrevoked token of userID and returns
	// how many rows changed.
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error)

	// ListActiveByUser returns the unrevoked, unexpired tokens of userID,
	// newest first.
	ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*models.RefreshToken, error)
}
