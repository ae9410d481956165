package authclient

import "errors"

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("already exists")
	ErrInvalid      = errors.New("invalid request")
	ErrNotLoggedIn  = errors.New("not logged in")
)
