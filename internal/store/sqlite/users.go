package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pagetrail/pagetrail-server/internal/domain"
	"github.com/pagetrail/pagetrail-server/internal/store"
)

// userColumns must match the scan order in scanUser.
const userColumns = `id, email, display_name, password_hash, created_at, updated_at, last_login_at`

func scanUser(scanner rowScanner) (*domain.User, error) {
	var u domain.User

	var (
		createdAt   string
		updatedAt   string
		lastLoginAt sql.NullString
	)

	err := scanner.Scan(
		&u.ID,
		&u.Email,
		&u.DisplayName,
		&u.PasswordHash,
		&createdAt,
		&updatedAt,
		&lastLoginAt,
	)
	if err != nil {
		return nil, err
	}

	u.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	u.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	u.LastLoginAt, err = parseNullableTime(lastLoginAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user. Emails are unique, case-insensitively.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (
			id, email, email_lower, display_name, password_hash,
			created_at, updated_at, last_login_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		domain.NormalizeEmail(user.Email),
		user.DisplayName,
		user.PasswordHash,
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
		nullTimeString(user.LastLoginAt),
	)
	if err != nil {
		err = translate(err)
		if errors.Is(err, store.ErrAlreadyExists) {
			return store.ErrAlreadyExists.WithMessage("email already registered")
		}
		return err
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID)
	u, err := scanUser(row)
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}

// GetUserByEmail looks a user up by email, case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email_lower = ?`, domain.NormalizeEmail(email))
	u, err := scanUser(row)
	if err != nil {
		return nil, translate(err)
	}
	return u, nil
}

// UpdateUser performs a full row update on an existing user.
// Returns store.ErrNotFound if the user does not exist.
func (s *Store) UpdateUser(ctx context.Context, user *domain.User) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			email = ?,
			email_lower = ?,
			display_name = ?,
			password_hash = ?,
			updated_at = ?,
			last_login_at = ?
		WHERE id = ?`,
		user.Email,
		domain.NormalizeEmail(user.Email),
		user.DisplayName,
		user.PasswordHash,
		formatTime(user.UpdatedAt),
		nullTimeString(user.LastLoginAt),
		user.ID,
	)
	if err != nil {
		return translate(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

const authSessionColumns = `id, user_id, refresh_token_hash, expires_at, created_at,
	last_seen_at, user_agent, ip_address`

func scanAuthSession(scanner rowScanner) (*domain.AuthSession, error) {
	var as domain.AuthSession

	var expiresAt, createdAt, lastSeenAt string
	err := scanner.Scan(
		&as.ID,
		&as.UserID,
		&as.RefreshTokenHash,
		&expiresAt,
		&createdAt,
		&lastSeenAt,
		&as.UserAgent,
		&as.IPAddress,
	)
	if err != nil {
		return nil, err
	}

	if as.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	if as.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if as.LastSeenAt, err = parseTime(lastSeenAt); err != nil {
		return nil, err
	}
	return &as, nil
}

// CreateAuthSession stores a refresh-token session.
func (s *Store) CreateAuthSession(ctx context.Context, session *domain.AuthSession) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_sessions (`+authSessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.UserID,
		session.RefreshTokenHash,
		formatTime(session.ExpiresAt),
		formatTime(session.CreatedAt),
		formatTime(session.LastSeenAt),
		session.UserAgent,
		session.IPAddress,
	)
	return translate(err)
}

// GetAuthSessionByTokenHash finds the session for a hashed refresh token.
func (s *Store) GetAuthSessionByTokenHash(ctx context.Context, tokenHash string) (*domain.AuthSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+authSessionColumns+` FROM auth_sessions WHERE refresh_token_hash = ?`, tokenHash)
	as, err := scanAuthSession(row)
	if err != nil {
		return nil, translate(err)
	}
	return as, nil
}

// DeleteAuthSession removes a session. Missing sessions are ignored.
func (s *Store) DeleteAuthSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE id = ?`, sessionID)
	return translate(err)
}

// DeleteExpiredAuthSessions removes every session expired at now.
func (s *Store) DeleteExpiredAuthSessions(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM auth_sessions WHERE expires_at <= ?`, formatTime(now))
	if err != nil {
		return 0, translate(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
