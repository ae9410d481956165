// Package users declares the credential-store contract for user accounts.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository persists users. Lookups return common.ErrorNotFound when no row
// matches; Create returns common.ErrEmailTaken or common.ErrUsernameTaken
// when a uniqueness constraint rejects the row.
type Repository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// SetActive changes IsActive and UpdatedAt of the user with id.
	SetActive(ctx context.Context, id string, active bool, at time.Time) error
}
