// Package auth issues and verifies PASETO access tokens, opaque refresh
// tokens and argon2id password hashes.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PASETO v4 local keys are 32 bytes, stored as 64 hex characters.
const (
	keyLength    = 32
	keyHexLength = keyLength * 2
)

// LoadOrGenerateKey reads the hex-encoded token key at keyPath, creating it
// (and its directory) with owner-only permissions when missing.
func LoadOrGenerateKey(keyPath string) ([]byte, error) {
	//#nosec G304 -- key path comes from configuration
	keyBytes, err := os.ReadFile(keyPath)
	switch {
	case err == nil:
		return decodeKey(strings.TrimSpace(string(keyBytes)))
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("read auth key: %w", err)
	}

	key := make([]byte, keyLength)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate auth key: %w", err)
	}

	dir := filepath.Dir(keyPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}

	// Write then rename so a crash never leaves a truncated key behind.
	tmp, err := os.CreateTemp(dir, ".auth.key-*")
	if err != nil {
		return nil, fmt.Errorf("failed to save auth key: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(hex.EncodeToString(key)); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to save auth key: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to save auth key: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to save auth key: %w", err)
	}
	if err := os.Rename(tmp.Name(), keyPath); err != nil {
		return nil, fmt.Errorf("failed to save auth key: %w", err)
	}

	return key, nil
}

func decodeKey(keyHex string) ([]byte, error) {
	if len(keyHex) != keyHexLength {
		return nil, fmt.Errorf("invalid auth key length: expected %d hex chars, got %d", keyHexLength, len(keyHex))
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid auth key format: not valid hex: %w", err)
	}
	return key, nil
}
