package auth

import "time"

// AccessClaims are the contents of a v4.local access token. The payload is
// encrypted, so clients cannot read it.
type AccessClaims struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`

	Issuer     string    `json:"iss"`
	Subject    string    `json:"sub"`
	Audience   string    `json:"aud"`
	Expiration time.Time `json:"exp"`
	NotBefore  time.Time `json:"nbf"`
	IssuedAt   time.Time `json:"iat"`
	TokenID    string    `json:"jti"`
}

// Identity is who a verified token belongs to.
type Identity struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// Identity extracts the caller identity from the claims.
func (c *AccessClaims) Identity() Identity {
	return Identity{UID: c.UserID, DisplayName: c.DisplayName, Email: c.Email}
}
