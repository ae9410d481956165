// Package models defines server-side data models persisted in the database.
package models

import "time"

// DefaultRole is assigned to users created through registration.
const DefaultRole = "user"

// User is a credential-store row. PasswordHash is an encoded argon2id hash
// and must never leave the server; use Public for anything caller-facing.
type User struct {
	ID           string
	Email        string
	Username     *string
	PasswordHash string
	FullName     *string
	AvatarURL    *string
	Role         string
	IsActive     bool
	IsVerified   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicUser is the caller-facing view of a User.
type PublicUser struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Username   *string   `json:"username,omitempty"`
	FullName   *string   `json:"full_name,omitempty"`
	AvatarURL  *string   `json:"avatar_url,omitempty"`
	Role       string    `json:"role"`
	IsActive   bool      `json:"is_active"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Public returns the caller-facing view of u.
func (u *User) Public() *PublicUser {
	if u == nil {
		return nil
	}
	return &PublicUser{
		ID:         u.ID,
		Email:      u.Email,
		Username:   u.Username,
		FullName:   u.FullName,
		AvatarURL:  u.AvatarURL,
		Role:       u.Role,
		IsActive:   u.IsActive,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}
