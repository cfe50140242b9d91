package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// maxPasswordLength caps the input to argon2 so a huge body cannot pin a CPU.
const maxPasswordLength = 1024

// Argon2 errors.
var (
	ErrEmptyPassword   = errors.New("password cannot be empty")
	ErrPasswordTooLong = errors.New("password exceeds maximum length")
)

// Params are the argon2id cost settings written into every hash.
type Params struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams suit a small self-hosted server.
var DefaultParams = Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 4,
	SaltLength:  16,
	KeyLength:   32,
}

// PasswordHasher hashes and verifies passwords with argon2id.
type PasswordHasher struct {
	params Params
}

// NewPasswordHasher returns a hasher using p.
func NewPasswordHasher(p Params) *PasswordHasher {
	return &PasswordHasher{params: p}
}

// HashPassword hashes with DefaultParams.
func HashPassword(password string) (string, error) {
	return NewPasswordHasher(DefaultParams).Hash(password)
}

// VerifyPassword checks a password against any hash this package produced.
func VerifyPassword(encodedHash, password string) bool {
	return NewPasswordHasher(DefaultParams).Verify(encodedHash, password)
}

// Hash returns the PHC-formatted argon2id hash of password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > maxPasswordLength {
		return "", ErrPasswordTooLong
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	p := h.params
	key := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Iterations, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encodedHash. The cost parameters
// come from the hash itself, so hashes made with older settings still verify.
// Malformed hashes simply fail to match.
func (h *PasswordHasher) Verify(encodedHash, password string) bool {
	if len(password) > maxPasswordLength {
		return false
	}

	salt, want, p, err := decodeHash(encodedHash)
	if err != nil {
		return false
	}

	got := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)
	return subtle.ConstantTimeCompare(want, got) == 1
}

// NeedsRehash reports whether encodedHash was made with different settings
// than this hasher uses.
func (h *PasswordHasher) NeedsRehash(encodedHash string) bool {
	salt, key, p, err := decodeHash(encodedHash)
	if err != nil {
		return true
	}
	//nolint:gosec // lengths are bounded by the encoder
	p.SaltLength = uint32(len(salt))
	//nolint:gosec
	p.KeyLength = uint32(len(key))
	return p != h.params
}

func decodeHash(encodedHash string) (salt, key []byte, p Params, err error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return nil, nil, p, errors.New("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return nil, nil, p, fmt.Errorf("unsupported algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, p, fmt.Errorf("invalid version: %w", err)
	}
	if version != argon2.Version {
		return nil, nil, p, fmt.Errorf("incompatible version: %d", version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return nil, nil, p, fmt.Errorf("invalid parameters: %w", err)
	}

	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, nil, p, fmt.Errorf("invalid salt encoding: %w", err)
	}
	if key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, nil, p, fmt.Errorf("invalid hash encoding: %w", err)
	}
	if len(key) == 0 {
		return nil, nil, p, errors.New("empty hash")
	}

	//nolint:gosec // decoded key length is small
	p.KeyLength = uint32(len(key))
	return salt, key, p, nil
}
