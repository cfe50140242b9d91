package service

import (
	"errors"

	domainerrors "github.com/pagetrail/pagetrail-server/internal/errors"
	"github.com/pagetrail/pagetrail-server/internal/store"
)

// storeError converts a store failure into the domain error the API
// reports. Domain errors pass through unchanged; anything unrecognised is
// INTERNAL.
func storeError(err error, what string) error {
	if err == nil {
		return nil
	}

	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		return err
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return domainerrors.NotFoundf("%s not found", what).WithCause(err)
	case errors.Is(err, store.ErrForbidden):
		return domainerrors.Forbidden(what + " belongs to another user").WithCause(err)
	case errors.Is(err, store.ErrAlreadyExists):
		return domainerrors.AlreadyExists(storeMessage(err, what+" already exists")).WithCause(err)
	case errors.Is(err, store.ErrConflict):
		return domainerrors.Conflict(what + " was changed by another request").WithCause(err)
	case errors.Is(err, store.ErrInvalidInput):
		return domainerrors.Validation(storeMessage(err, "invalid "+what)).WithCause(err)
	default:
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to access "+what)
	}
}

// storeMessage prefers the message a store attached to a sentinel.
func storeMessage(err error, fallback string) string {
	var storeErr *store.Error
	if errors.As(err, &storeErr) && storeErr.Message != "" {
		return storeErr.Message
	}
	return fallback
}
