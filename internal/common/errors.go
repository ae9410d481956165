// Package common defines shared constants and sentinel errors used across
// the server, the client and the operator CLI. Callers should use errors.Is
// to match these values; the derived errors wrap their category so both the
// specific and the general sentinel match.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level categories. Transports map these to status codes.
	ErrorConflict     = errors.New("conflict")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorUnavailable  = errors.New("service unavailable")
	ErrorInternal     = errors.New("internal error")
	ErrorValidation   = errors.New("validation error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = fmt.Errorf("token expired: %w", ErrInvalidToken)
	ErrRefreshTokenExpired = fmt.Errorf("refresh token expired: %w", ErrorUnauthorized)
	ErrRefreshTokenRevoked = fmt.Errorf("refresh token revoked: %w", ErrorUnauthorized)

	// Registration conflicts.
	ErrEmailTaken    = fmt.Errorf("email taken: %w", ErrorConflict)
	ErrUsernameTaken = fmt.Errorf("username taken: %w", ErrorConflict)

	// ErrInvalidCredentials is returned for every failed login, whatever the
	// underlying reason, so callers cannot enumerate accounts.
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", ErrorUnauthorized)
)
