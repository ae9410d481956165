// Package refreshtokens provides a PostgreSQL-backed repository for managing
// refresh tokens used in the server's authentication flow.
package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new refresh token row.
func (r *PostgresRepository) Create(ctx context.Context, t *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.db.ExecContext(ctx, query, t.ID, t.UserID, t.Token, t.ExpiresAt, t.CreatedAt, t.Revoked); err != nil {
		if constraint, ok := dbx.IsUniqueViolation(err); ok {
			return fmt.Errorf("%w: %s", common.ErrorConflict, constraint)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Find returns the refresh token row for the given token string.
// If not found, it returns common.ErrorNotFound.
func (r *PostgresRepository) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		SELECT id, user_id, token, expires_at, created_at, revoked, revoked_at
		FROM refresh_tokens
		WHERE token = $1
	`
	t := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, token).Scan(
		&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.CreatedAt, &t.Revoked, &t.RevokedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

// RevokeIfActive is a conditional update; the row count tells whether this
// call won.
func (r *PostgresRepository) RevokeIfActive(ctx context.Context, token string, at time.Time) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = $2
		WHERE token = $1 AND revoked = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, token, at)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

// RevokeAllForUser revokes every unrevoked token of userID.
func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = $2
		WHERE user_id = $1 AND revoked = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, userID, at)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// ListActiveByUser returns active tokens of userID, newest first.
func (r *PostgresRepository) ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*models.RefreshToken, error) {
	query := `
		SELECT id, user_id, token, expires_at, created_at, revoked, revoked_at
		FROM refresh_tokens
		WHERE user_id = $1 AND revoked = FALSE AND expires_at > $2
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, now)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.RefreshToken
	for rows.Next() {
		t := &models.RefreshToken{}
		if err := rows.Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.CreatedAt, &t.Revoked, &t.RevokedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
