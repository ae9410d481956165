// Package services contains server-side business logic. This file implements
// UserService, which handles registration, login, and issuing, rotating and
// revoking access and refresh tokens.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/events"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/shared"
)

// PasswordHasher hashes and verifies passwords; *hashing.Hasher satisfies it.
// Errors from either method mean the work did not run.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, password, encoded string) (bool, error)
}

// TokenIssuer mints and checks tokens; *auth.Issuer satisfies it.
type TokenIssuer interface {
	IssueAccessToken(subject string) (string, time.Time, error)
	VerifyAccessToken(token string) (string, error)
	NewRefreshToken() (string, error)
	AccessTTL() time.Duration
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expires_in"`
}

// RegisterInput is the registration request. Username and FullName are optional.
type RegisterInput struct {
	Email    string
	Password string
	Username *string
	FullName *string
}

// Options tune UserService.
type Options struct {
	RefreshTTL time.Duration
	// TxTimeout bounds every transaction. Transactions do not inherit the
	// caller's cancellation.
	TxTimeout time.Duration
	// RevokeFamilyOnReuse revokes all of a user's refresh tokens when an
	// already revoked token is presented again later than ReuseGracePeriod
	// after its revocation.
	RevokeFamilyOnReuse bool
	ReuseGracePeriod    time.Duration
	Now                 func() time.Time
}

// DefaultOptions returns a seven day refresh TTL and a five second
// transaction timeout, with reuse detection on.
func DefaultOptions() Options {
	return Options{
		RefreshTTL:          7 * 24 * time.Hour,
		TxTimeout:           5 * time.Second,
		RevokeFamilyOnReuse: true,
		ReuseGracePeriod:    10 * time.Second,
		Now:                 time.Now,
	}
}

// UserService provides authentication-related operations:
// - Register: create users
// - Login: verify credentials and mint tokens
// - Refresh: rotate refresh tokens and mint new access tokens
// - Logout: revoke a refresh token
type UserService struct {
	repomanager repomanager.RepositoryManager
	hasher      PasswordHasher
	issuer      TokenIssuer
	publisher   events.Publisher
	logger      logging.Logger
	metrics     *metrics.Metrics
	opts        Options

	// dummyHash is verified against when the account does not exist, so
	// unknown and known emails cost the same.
	dummyHash string
}

// NewUserService wires the service. publisher, logger and meter may be nil.
// It hashes a random password once to prepare the dummy hash.
func NewUserService(
	ctx context.Context,
	m repomanager.RepositoryManager,
	hasher PasswordHasher,
	issuer TokenIssuer,
	publisher events.Publisher,
	logger logging.Logger,
	meter *metrics.Metrics,
	opts Options,
) (*UserService, error) {
	if opts.RefreshTTL <= 0 {
		return nil, fmt.Errorf("refresh ttl must be positive, got %s", opts.RefreshTTL)
	}
	if opts.TxTimeout <= 0 {
		opts.TxTimeout = DefaultOptions().TxTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}

	random, err := shared.MakeRandHexString(16)
	if err != nil {
		return nil, err
	}
	dummy, err := hasher.Hash(ctx, random)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &UserService{
		repomanager: m,
		hasher:      hasher,
		issuer:      issuer,
		publisher:   publisher,
		logger:      logger.With("module", "users"),
		metrics:     meter,
		opts:        opts,
		dummyHash:   dummy,
	}, nil
}

// Register creates a user. Duplicate email or username yields
// common.ErrEmailTaken or common.ErrUsernameTaken.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (_ *models.PublicUser, err error) {
	ctx, end := s.begin(ctx, opRegister)
	defer func() { err = end(err) }()

	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	username, err := normalizeUsername(in.Username)
	if err != nil {
		return nil, err
	}

	// fail fast on duplicates before spending a hash
	if err := s.checkAvailable(ctx, s.repomanager.Conn(), email, username); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		FullName:     trimOptional(in.FullName),
		Role:         models.DefaultRole,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.checkAvailable(ctx, tx, email, username); err != nil {
			return err
		}
		return s.repomanager.Users(tx).Create(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{Type: events.TypeUserRegistered, UserID: user.ID, At: now})
	return user.Public(), nil
}

func (s *UserService) checkAvailable(ctx context.Context, db dbx.DBTX, email string, username *string) error {
	repo := s.repomanager.Users(db)

	if _, err := repo.GetByEmail(ctx, email); err == nil {
		return common.ErrEmailTaken
	} else if !errors.Is(err, common.ErrorNotFound) {
		return err
	}

	if username == nil {
		return nil
	}
	if _, err := repo.GetByUsername(ctx, *username); err == nil {
		return common.ErrUsernameTaken
	} else if !errors.Is(err, common.ErrorNotFound) {
		return err
	}
	return nil
}

// Login verifies email and password and opens a new session. Unknown email,
// wrong password and inactive account all return common.ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, email, password string) (_ *TokenPair, err error) {
	ctx, end := s.begin(ctx, opLogin)
	defer func() { err = end(err) }()

	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", common.ErrorValidation)
	}

	user, err := s.repomanager.Users(s.repomanager.Conn()).GetByEmail(ctx, canonicalEmail(email))
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		if _, err := s.hasher.Verify(ctx, password, s.dummyHash); err != nil {
			return nil, err
		}
		return nil, common.ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok || !user.IsActive {
		return nil, common.ErrInvalidCredentials
	}

	now := s.now()
	var pair *TokenPair
	err = s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		pair, err = s.openSession(ctx, tx, user.ID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{Type: events.TypeUserLoggedIn, UserID: user.ID, At: now})
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// revoked in the same transaction that stores its successor, so of two
// concurrent calls with the same token at most one succeeds.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (_ *TokenPair, err error) {
	ctx, end := s.begin(ctx, opRefresh)
	defer func() { err = end(err) }()

	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh token is required", common.ErrorValidation)
	}

	now := s.now()
	var (
		pair    *TokenPair
		reused  *models.RefreshToken
		family  int64
		outcome error
	)

	// Business failures are reported through outcome so the transaction
	// still commits what it revoked.
	err = s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		tokens := s.repomanager.RefreshTokens(tx)

		rt, err := tokens.Find(ctx, refreshToken)
		if errors.Is(err, common.ErrorNotFound) {
			outcome = fmt.Errorf("%w: unknown refresh token", common.ErrorUnauthorized)
			return nil
		}
		if err != nil {
			return err
		}

		if rt.Revoked {
			reused = rt
			outcome = common.ErrRefreshTokenRevoked
			if s.shouldRevokeFamily(rt, now) {
				family, err = tokens.RevokeAllForUser(ctx, rt.UserID, now)
				return err
			}
			return nil
		}
		if rt.Expired(now) {
			outcome = common.ErrRefreshTokenExpired
			return nil
		}

		won, err := tokens.RevokeIfActive(ctx, refreshToken, now)
		if err != nil {
			return err
		}
		if !won {
			outcome = common.ErrRefreshTokenRevoked
			return nil
		}

		user, err := s.repomanager.Users(tx).GetByID(ctx, rt.UserID)
		if err != nil {
			return err
		}
		if !user.IsActive {
			outcome = fmt.Errorf("%w: account disabled", common.ErrorUnauthorized)
			return nil
		}

		pair, err = s.openSession(ctx, tx, rt.UserID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	if reused != nil {
		s.logger.Warn(ctx, "revoked refresh token presented",
			"user_id", reused.UserID, "token_id", reused.ID, "family_revoked", family)
		s.publish(ctx, events.Event{
			Type:   events.TypeRefreshTokenReuse,
			UserID: reused.UserID,
			At:     now,
			Attrs:  map[string]string{"token_id": reused.ID, "family_revoked": fmt.Sprint(family)},
		})
	}
	if outcome != nil {
		return nil, outcome
	}
	return pair, nil
}

func (s *UserService) shouldRevokeFamily(rt *models.RefreshToken, now time.Time) bool {
	if !s.opts.RevokeFamilyOnReuse {
		return false
	}
	// a token revoked moments ago was most likely lost in a rotation race
	// by a legitimate client
	if rt.RevokedAt != nil && now.Sub(*rt.RevokedAt) <= s.opts.ReuseGracePeriod {
		return false
	}
	return true
}

// Logout revokes a refresh token. Unknown and already revoked tokens are
// not an error.
func (s *UserService) Logout(ctx context.Context, refreshToken string) (err error) {
	ctx, end := s.begin(ctx, opLogout)
	defer func() { err = end(err) }()

	if refreshToken == "" {
		return fmt.Errorf("%w: refresh token is required", common.ErrorValidation)
	}

	now := s.now()
	var revoked *models.RefreshToken
	err = s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		tokens := s.repomanager.RefreshTokens(tx)

		rt, err := tokens.Find(ctx, refreshToken)
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		won, err := tokens.RevokeIfActive(ctx, refreshToken, now)
		if err != nil {
			return err
		}
		if won {
			revoked = rt
		}
		return nil
	})
	if err != nil {
		return err
	}

	if revoked != nil {
		s.publish(ctx, events.Event{
			Type:   events.TypeUserLoggedOut,
			UserID: revoked.UserID,
			At:     now,
			Attrs:  map[string]string{"token_id": revoked.ID},
		})
	}
	return nil
}

// Authenticate verifies an access token and returns its user id. Failures
// wrap common.ErrorUnauthorized together with the token error, so
// common.ErrTokenExpired stays visible to callers.
func (s *UserService) Authenticate(ctx context.Context, accessToken string) (string, error) {
	userID, err := s.issuer.VerifyAccessToken(accessToken)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrorUnauthorized, err)
	}
	return userID, nil
}

// Me returns the public view of the user.
func (s *UserService) Me(ctx context.Context, userID string) (_ *models.PublicUser, err error) {
	ctx, end := s.begin(ctx, opMe)
	defer func() { err = end(err) }()

	user, err := s.repomanager.Users(s.repomanager.Conn()).GetByID(ctx, userID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("%w: unknown subject", common.ErrorUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	return user.Public(), nil
}

// Sessions lists the user's active refresh tokens without their values.
func (s *UserService) Sessions(ctx context.Context, userID string) (_ []models.Session, err error) {
	ctx, end := s.begin(ctx, opSessions)
	defer func() { err = end(err) }()

	tokens, err := s.repomanager.RefreshTokens(s.repomanager.Conn()).ListActiveByUser(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}

	sessions := make([]models.Session, 0, len(tokens))
	for _, t := range tokens {
		sessions = append(sessions, t.Session())
	}
	return sessions, nil
}

// SetActive enables or disables the account with email. Disabling also
// revokes every refresh token of the account.
func (s *UserService) SetActive(ctx context.Context, email string, active bool) (err error) {
	ctx, end := s.begin(ctx, opSetActive)
	defer func() { err = end(err) }()

	now := s.now()
	return s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.repomanager.Users(tx)

		user, err := users.GetByEmail(ctx, canonicalEmail(email))
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("%w: unknown account", common.ErrorValidation)
		}
		if err != nil {
			return err
		}
		if err := users.SetActive(ctx, user.ID, active, now); err != nil {
			return err
		}
		if !active {
			_, err = s.repomanager.RefreshTokens(tx).RevokeAllForUser(ctx, user.ID, now)
		}
		return err
	})
}

// --- helpers below ---

func (s *UserService) now() time.Time {
	return s.opts.Now().UTC()
}

// openSession stores a new refresh token for userID and signs an access
// token. It must run inside a transaction.
func (s *UserService) openSession(ctx context.Context, tx dbx.DBTX, userID string, now time.Time) (*TokenPair, error) {
	refresh, err := s.issuer.NewRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("mint refresh token: %w", err)
	}

	rt := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     refresh,
		ExpiresAt: now.Add(s.opts.RefreshTTL),
		CreatedAt: now,
	}
	if err := s.repomanager.RefreshTokens(tx).Create(ctx, rt); err != nil {
		return nil, err
	}

	access, _, err := s.issuer.IssueAccessToken(userID)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    common.TokenType,
		ExpiresIn:    int64(s.issuer.AccessTTL() / time.Second),
	}, nil
}

// withTx runs fn in a transaction detached from the caller's cancellation
// and bounded by TxTimeout. Trace and request values still flow through.
func (s *UserService) withTx(ctx context.Context, fn repomanager.TxFunc) error {
	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.TxTimeout)
	defer cancel()
	return s.repomanager.WithTx(txCtx, fn)
}

func (s *UserService) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), e); err != nil {
		s.logger.Warn(ctx, "publish event failed", "type", e.Type, "error", err)
	}
}
