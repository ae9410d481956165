package users

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

// Unique constraint names, as created by the migrations.
const (
	ConstraintEmail    = "users_email_key"
	ConstraintUsername = "users_username_key"
)

const selectColumns = `id, email, username, password_hash, full_name, avatar_url,
		        role, is_active, is_verified, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) error {

	query :=
		`INSERT INTO users (id, email, username, password_hash, full_name, avatar_url,
		                    role, is_active, is_verified, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Username, user.PasswordHash, user.FullName, user.AvatarURL,
		user.Role, user.IsActive, user.IsVerified, user.CreatedAt, user.UpdatedAt)

	if err != nil {
		if constraint, ok := dbx.IsUniqueViolation(err); ok {
			switch constraint {
			case ConstraintEmail:
				return common.ErrEmailTaken
			case ConstraintUsername:
				return common.ErrUsernameTaken
			default:
				return fmt.Errorf("%w: %s", common.ErrorConflict, constraint)
			}
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+selectColumns+` FROM users WHERE email = $1`, email)
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+selectColumns+` FROM users WHERE username = $1`, username)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+selectColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresRepository) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	query :=
		`UPDATE users SET is_active = $2, updated_at = $3
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, active, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Email, &user.Username, &user.PasswordHash, &user.FullName, &user.AvatarURL,
		&user.Role, &user.IsActive, &user.IsVerified, &user.CreatedAt, &user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}
