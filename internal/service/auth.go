// Package service holds the application use cases behind the HTTP API:
// accounts, books, and reading sessions.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pagetrail/pagetrail-server/internal/auth"
	"github.com/pagetrail/pagetrail-server/internal/domain"
	domainerrors "github.com/pagetrail/pagetrail-server/internal/errors"
	"github.com/pagetrail/pagetrail-server/internal/id"
	"github.com/pagetrail/pagetrail-server/internal/store"
	"github.com/pagetrail/pagetrail-server/internal/validation"
)

// AuthService handles accounts and token sessions. It is the identity
// provider for the rest of the server.
type AuthService struct {
	store     store.Store
	tokens    *auth.TokenService
	hasher    *auth.PasswordHasher
	validator *validation.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	store store.Store,
	tokens *auth.TokenService,
	hasher *auth.PasswordHasher,
	validator *validation.Validator,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		store:     store,
		tokens:    tokens,
		hasher:    hasher,
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
}

// RegisterRequest contains the data for a new account.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=8,max=1024"`
	DisplayName string `json:"display_name,omitempty" validate:"max=100"`
	UserAgent   string `json:"-"`
	IPAddress   string `json:"-"`
}

// LoginRequest contains user credentials.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	UserAgent string `json:"-"`
	IPAddress string `json:"-"`
}

// RefreshRequest exchanges a refresh token for a new token pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	UserAgent    string `json:"-"`
	IPAddress    string `json:"-"`
}

// AuthResponse contains a token pair and who it belongs to.
type AuthResponse struct {
	User         *domain.User
	Identity     auth.Identity
	SessionID    string
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int
	ExpiresAt    time.Time
}

// Register creates an account and signs it in.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	userID, err := id.Generate(id.User)
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}

	now := s.now()
	user := &domain.User{
		ID:           userID,
		Email:        strings.TrimSpace(req.Email),
		DisplayName:  strings.TrimSpace(req.DisplayName),
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastLoginAt:  now,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.AlreadyExists("email already in use")
		}
		return nil, storeError(err, "user")
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)

	return s.startSession(ctx, user, req.UserAgent, req.IPAddress)
}

// Login checks credentials and opens a new session. Unknown emails and wrong
// passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByEmail(ctx, domain.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.InvalidCredentials("invalid email or password")
		}
		return nil, storeError(err, "user")
	}

	if !s.hasher.Verify(user.PasswordHash, req.Password) {
		return nil, domainerrors.InvalidCredentials("invalid email or password")
	}

	user.LastLoginAt = s.now()
	user.UpdatedAt = user.LastLoginAt
	if s.hasher.NeedsRehash(user.PasswordHash) {
		if hash, err := s.hasher.Hash(req.Password); err == nil {
			user.PasswordHash = hash
		}
	}
	if err := s.store.UpdateUser(ctx, user); err != nil {
		// Login still succeeds.
		s.logger.WarnContext(ctx, "failed to update last login time",
			"user_id", user.ID,
			"error", err,
		)
	}

	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID)

	return s.startSession(ctx, user, req.UserAgent, req.IPAddress)
}

// Refresh rotates a refresh token: the old session is deleted and a new
// one is created.
func (s *AuthService) Refresh(ctx context.Context, req RefreshRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	session, err := s.store.GetAuthSessionByTokenHash(ctx, auth.HashRefreshToken(req.RefreshToken))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.Unauthorized("invalid or expired refresh token")
		}
		return nil, storeError(err, "session")
	}

	if session.IsExpired(s.now()) {
		_ = s.store.DeleteAuthSession(ctx, session.ID)
		return nil, domainerrors.Unauthorized("invalid or expired refresh token")
	}

	user, err := s.store.GetUser(ctx, session.UserID)
	if err != nil {
		_ = s.store.DeleteAuthSession(ctx, session.ID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.Unauthorized("account no longer exists")
		}
		return nil, storeError(err, "user")
	}

	if err := s.store.DeleteAuthSession(ctx, session.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, storeError(err, "session")
	}

	return s.startSession(ctx, user, req.UserAgent, req.IPAddress)
}

// Logout revokes the session holding refreshToken. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	session, err := s.store.GetAuthSessionByTokenHash(ctx, auth.HashRefreshToken(refreshToken))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return storeError(err, "session")
	}
	if err := s.store.DeleteAuthSession(ctx, session.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return storeError(err, "session")
	}
	s.logger.InfoContext(ctx, "user logged out", "user_id", session.UserID)
	return nil
}

// VerifyAccessToken validates a token and loads the user it names.
// Used by authentication middleware.
func (s *AuthService) VerifyAccessToken(ctx context.Context, token string) (*domain.User, auth.Identity, error) {
	claims, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		return nil, auth.Identity{}, domainerrors.Unauthorized("invalid or expired access token").WithCause(err)
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, auth.Identity{}, domainerrors.Unauthorized("account no longer exists")
		}
		return nil, auth.Identity{}, storeError(err, "user")
	}

	return user, IdentityOf(user), nil
}

// CurrentUser returns the signed-in user's account.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, storeError(err, "user")
	}
	return user, nil
}

// PurgeExpiredSessions deletes every refresh session past its expiry.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) (int, error) {
	n, err := s.store.DeleteExpiredAuthSessions(ctx, s.now())
	if err != nil {
		return 0, storeError(err, "session")
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "purged expired sessions", "count", n)
	}
	return n, nil
}

// IdentityOf is the public identity of user.
func IdentityOf(user *domain.User) auth.Identity {
	return auth.Identity{UID: user.ID, DisplayName: user.Name(), Email: user.Email}
}

func (s *AuthService) startSession(ctx context.Context, user *domain.User, userAgent, ipAddress string) (*AuthResponse, error) {
	accessToken, expiresAt, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	refreshToken, refreshExpires, err := s.tokens.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	sessionID, err := id.Generate(id.Auth)
	if err != nil {
		return nil, fmt.Errorf("generate session ID: %w", err)
	}

	now := s.now()
	session := &domain.AuthSession{
		ID:               sessionID,
		UserID:           user.ID,
		RefreshTokenHash: auth.HashRefreshToken(refreshToken),
		ExpiresAt:        refreshExpires,
		CreatedAt:        now,
		LastSeenAt:       now,
		UserAgent:        userAgent,
		IPAddress:        ipAddress,
	}
	if err := s.store.CreateAuthSession(ctx, session); err != nil {
		return nil, storeError(err, "session")
	}

	return &AuthResponse{
		User:         user,
		Identity:     IdentityOf(user),
		SessionID:    sessionID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.tokens.AccessTokenDuration().Seconds()),
		ExpiresAt:    expiresAt,
	}, nil
}
