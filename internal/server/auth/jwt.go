// Package auth issues and verifies access tokens and mints refresh tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/keys"
	"github.com/dmitrijs2005/gophauth/internal/shared"
)

// RefreshTokenBytes is the entropy of a refresh token.
const RefreshTokenBytes = 32

// Claims are the access-token claims. Subject carries the user id.
type Claims struct {
	jwt.RegisteredClaims
}

// Issuer signs access tokens with a fixed KeySet.
type Issuer struct {
	keys   *keys.KeySet
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithIssuer sets the "iss" claim and requires it on verification.
func WithIssuer(iss string) Option {
	return func(i *Issuer) { i.issuer = iss }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

func NewIssuer(ks *keys.KeySet, accessTTL time.Duration, opts ...Option) (*Issuer, error) {
	if ks == nil || ks.Method == nil {
		return nil, errors.New("issuer: key set required")
	}
	if accessTTL <= 0 {
		return nil, fmt.Errorf("issuer: access ttl must be positive, got %s", accessTTL)
	}

	i := &Issuer{keys: ks, ttl: accessTTL, now: time.Now}
	for _, o := range opts {
		o(i)
	}
	return i, nil
}

// AccessTTL returns the lifetime of issued access tokens.
func (i *Issuer) AccessTTL() time.Duration {
	return i.ttl
}

// IssueAccessToken signs a token for subject valid for the access TTL.
func (i *Issuer) IssueAccessToken(subject string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("issuer: empty subject")
	}
	if i.keys.SigningKey == nil {
		return "", time.Time{}, errors.New("issuer: key set cannot sign")
	}

	now := i.now()
	exp := now.Add(i.ttl)

	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    i.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}}

	token, err := jwt.NewWithClaims(i.keys.Method, claims).SignedString(i.keys.SigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return token, exp, nil
}

// VerifyAccessToken checks signature, algorithm and expiry and returns the
// subject. Every failure is, or wraps, common.ErrInvalidToken; an expired
// token returns common.ErrTokenExpired.
func (i *Issuer) VerifyAccessToken(token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{i.keys.Algorithm()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.keys.VerificationKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", common.ErrInvalidToken
	}

	return claims.Subject, nil
}

// NewRefreshToken returns an opaque, URL-safe token with 256 bits of
// entropy from crypto/rand.
func NewRefreshToken() (string, error) {
	return shared.MakeRandURLString(RefreshTokenBytes)
}

// NewRefreshToken mints a refresh token value.
func (i *Issuer) NewRefreshToken() (string, error) {
	return NewRefreshToken()
}
