package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesVariants(t *testing.T) {
	err := ErrNotFound.WithMessage("book book-1 not found")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
}

func TestError_WithCauseUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("commit: %w", ErrUnavailable.WithCause(cause))

	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "disk full")
}

func TestError_HTTPCode(t *testing.T) {
	assert.Equal(t, 404, ErrNotFound.HTTPCode())
	assert.Equal(t, 403, ErrForbidden.HTTPCode())
}
