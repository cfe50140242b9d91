package badgerdb

import (
	"context"
	"errors"
	"time"

	"github.com/pagetrail/pagetrail-server/internal/domain"
	"github.com/pagetrail/pagetrail-server/internal/store"
)

// CreateUser stores a new user. Emails are unique, case-insensitively.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	if err := s.Users.Create(ctx, user.ID, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return store.ErrAlreadyExists.WithMessage("email already registered")
		}
		return err
	}
	return nil
}

// GetUser reads a user by ID.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.Users.Get(ctx, userID)
}

// GetUserByEmail looks a user up by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.Users.GetByIndex(ctx, "email", email)
}

// UpdateUser replaces a user record.
func (s *Store) UpdateUser(ctx context.Context, user *domain.User) error {
	return s.Users.Update(ctx, user.ID, user)
}

// CreateAuthSession stores a refresh-token session.
func (s *Store) CreateAuthSession(ctx context.Context, session *domain.AuthSession) error {
	return s.AuthSessions.Create(ctx, session.ID, session)
}

// GetAuthSessionByTokenHash finds the session for a hashed refresh token.
func (s *Store) GetAuthSessionByTokenHash(ctx context.Context, tokenHash string) (*domain.AuthSession, error) {
	return s.AuthSessions.GetByIndex(ctx, "token", tokenHash)
}

// DeleteAuthSession removes a session. Missing sessions are ignored.
func (s *Store) DeleteAuthSession(ctx context.Context, sessionID string) error {
	return s.AuthSessions.Delete(ctx, sessionID)
}

// DeleteExpiredAuthSessions removes every session expired at now.
func (s *Store) DeleteExpiredAuthSessions(ctx context.Context, now time.Time) (int, error) {
	var expired []string
	for session, err := range s.AuthSessions.List(ctx) {
		if err != nil {
			return 0, err
		}
		if session.IsExpired(now) {
			expired = append(expired, session.ID)
		}
	}

	for _, sessionID := range expired {
		if err := s.AuthSessions.Delete(ctx, sessionID); err != nil {
			return 0, err
		}
	}
	return len(expired), nil
}
