// Package id generates the prefixed identifiers used for every stored record.
package id

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Record prefixes.
const (
	Book    = "book"
	Session = "session"
	User    = "user"
	Auth    = "auth"
	Token   = "token"
	Client  = "sse"
)

const nanoidLength = 21

// Generate creates a prefixed unique ID: prefix-nanoid (e.g. "book-V1StGXR8_Z5jdHi6B-myT").
// Returns an error if the system has insufficient entropy.
func Generate(prefix string) (string, error) {
	nid, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + nid, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	v, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return v
}

// HasPrefix reports whether v looks like an ID generated with prefix.
// Used to reject obviously malformed path parameters before touching the store.
func HasPrefix(v, prefix string) bool {
	rest, ok := strings.CutPrefix(v, prefix+"-")
	return ok && len(rest) == nanoidLength
}
