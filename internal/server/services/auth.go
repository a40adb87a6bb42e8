// Package services contains server-side business logic. This file implements
// the credential lifecycle: password verification at login, access/refresh
// token issuance, and refresh-token rotation with revocation.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmanankin/authvault/internal/common"
	"github.com/dmanankin/authvault/internal/logging"
	"github.com/dmanankin/authvault/internal/server/auth"
	"github.com/dmanankin/authvault/internal/server/config"
	"github.com/dmanankin/authvault/internal/server/models"
	"github.com/dmanankin/authvault/internal/server/password"
	"github.com/dmanankin/authvault/internal/server/repositories/refreshtokens"
	"github.com/dmanankin/authvault/internal/server/repositories/users"
)

// Service orchestrates the credential flows:
//   - Register: create users with hashed passwords
//   - Login: verify credentials and mint a token pair
//   - Refresh: rotate the presented refresh token and mint a new pair
//   - Logout: revoke a refresh token
//
// A refresh-token lineage has two states, active and revoked; revoked is
// terminal. Rotation is delegated to the store, which flips the old record
// and writes the new one atomically, so concurrent refreshes of the same
// value admit exactly one winner.
type Service struct {
	users                users.Repository
	tokens               refreshtokens.Store
	issuer               *auth.Issuer
	logger               logging.Logger
	refreshTokenValidity time.Duration
	bcryptCost           int
}

// NewService constructs a Service from its collaborators and server config.
func NewService(u users.Repository, t refreshtokens.Store, issuer *auth.Issuer, l logging.Logger, cfg *config.Config) *Service {
	return &Service{
		users:                u,
		tokens:               t,
		issuer:               issuer,
		logger:               l.With("module", "auth_service"),
		refreshTokenValidity: cfg.RefreshTokenValidityDuration,
		bcryptCost:           cfg.BcryptCost,
	}
}

// Register creates a new user with a bcrypt-hashed password. A duplicate
// email yields common.ErrorAlreadyExists.
func (s *Service) Register(ctx context.Context, email, plainPassword string) (*models.User, error) {
	hash, err := password.Hash(plainPassword, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user, err := s.users.Create(ctx, &models.User{Email: email, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return user, nil
}

// Login verifies the email/password pair and, on success, returns a fresh
// token pair. An unknown email and a wrong password both surface as
// common.ErrorUnauthorized so callers cannot enumerate accounts. No refresh
// token is persisted unless verification succeeds.
func (s *Service) Login(ctx context.Context, email, plainPassword string) (*models.TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	if !password.Verify(plainPassword, user.PasswordHash) {
		return nil, common.ErrorUnauthorized
	}

	return s.issuePair(ctx, user.ID)
}

// Refresh validates a refresh token, rotates it, and returns a fresh token
// pair. State checks run in order: an unknown value yields ErrInvalidToken,
// a revoked one ErrTokenReused (a security event), an expired one
// ErrRefreshTokenExpired. The rotation itself is atomic in the store; a
// concurrent refresh of the same value that loses the race also gets
// ErrTokenReused.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	record, err := s.tokens.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}

	if record.Revoked {
		s.logger.Warn(ctx, "refresh token replay detected",
			"token_id", record.ID, "user_id", record.UserID)
		return nil, common.ErrTokenReused
	}

	if record.Expired(time.Now()) {
		return nil, common.ErrRefreshTokenExpired
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	// The access token is stateless, so it is signed before the rotation:
	// if signing failed after the rotation the client would be left with
	// no usable credentials at all.
	access, err := s.issuer.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("error signing access token: %w", err)
	}

	rotated, err := s.tokens.Rotate(ctx, refreshToken, user.ID, s.refreshTokenValidity)
	if err != nil {
		if errors.Is(err, common.ErrTokenReused) {
			s.logger.Warn(ctx, "refresh token replay detected",
				"token_id", record.ID, "user_id", record.UserID)
			return nil, common.ErrTokenReused
		}
		return nil, fmt.Errorf("error rotating refresh token: %w", err)
	}

	return s.pair(user.ID, access, rotated.Token), nil
}

// Logout revokes the presented refresh token. Idempotent: an unknown or
// already-revoked token is a no-op.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	record, err := s.tokens.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return fmt.Errorf("error searching refresh token: %w", err)
	}
	if err := s.tokens.Revoke(ctx, record.ID); err != nil {
		return fmt.Errorf("error revoking refresh token: %w", err)
	}
	return nil
}

// GetUser returns the user with the given id.
func (s *Service) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}
	return user, nil
}

func (s *Service) issuePair(ctx context.Context, userID string) (*models.TokenPair, error) {
	access, err := s.issuer.Issue(userID)
	if err != nil {
		return nil, fmt.Errorf("error signing access token: %w", err)
	}
	refresh, err := s.tokens.Create(ctx, userID, s.refreshTokenValidity)
	if err != nil {
		return nil, fmt.Errorf("error creating refresh token: %w", err)
	}
	return s.pair(userID, access, refresh.Token), nil
}

func (s *Service) pair(userID, access, refresh string) *models.TokenPair {
	return &models.TokenPair{
		UserID:       userID,
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    common.TokenTypeBearer,
		ExpiresIn:    int64(s.issuer.Validity().Seconds()),
	}
}
