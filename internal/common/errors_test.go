package common

import (
	"errors"
	"testing"
)

func TestDerivedErrors_MatchTheirCategory(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category error
	}{
		{"email taken", ErrEmailTaken, ErrorConflict},
		{"username taken", ErrUsernameTaken, ErrorConflict},
		{"invalid credentials", ErrInvalidCredentials, ErrorUnauthorized},
		{"refresh expired", ErrRefreshTokenExpired, ErrorUnauthorized},
		{"refresh revoked", ErrRefreshTokenRevoked, ErrorUnauthorized},
		{"access expired", ErrTokenExpired, ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.category) {
				t.Fatalf("%v does not match %v", tt.err, tt.category)
			}
		})
	}
}

func TestCategories_AreDistinct(t *testing.T) {
	if errors.Is(ErrEmailTaken, ErrorUnauthorized) {
		t.Fatal("conflict must not match unauthorized")
	}
	if errors.Is(ErrInvalidCredentials, ErrorConflict) {
		t.Fatal("unauthorized must not match conflict")
	}
}
