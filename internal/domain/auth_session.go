package domain

import "time"

// AuthSession is a refresh-token session created at login.
type AuthSession struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	RefreshTokenHash string    `json:"refresh_token_hash"`
	ExpiresAt        time.Time `json:"expires_at"`
	CreatedAt        time.Time `json:"created_at"`
	LastSeenAt       time.Time `json:"last_seen_at"`
	UserAgent        string    `json:"user_agent,omitempty"`
	IPAddress        string    `json:"ip_address,omitempty"`
}

// IsExpired reports whether the refresh token can no longer be used.
func (s *AuthSession) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
