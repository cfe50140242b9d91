// Package response writes the JSON envelope shared by every API response.
// Huma operations get it through the API's transformer; plain chi handlers
// (event stream, cover files) call the helpers here directly.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	domainerrors "github.com/pagetrail/pagetrail-server/internal/errors"
	"github.com/pagetrail/pagetrail-server/internal/store"
)

// Version is the envelope format version, sent as "v" on every response.
const Version = 1

// Envelope provides a consistent JSON response structure.
type Envelope struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ErrorEnvelope is the envelope for coded errors clients can branch on.
type ErrorEnvelope struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success wraps data in a success envelope.
func Success(data any) Envelope {
	return Envelope{Version: Version, Success: true, Data: data}
}

// Failure wraps a bare message in an error envelope.
func Failure(message string) Envelope {
	return Envelope{Version: Version, Success: false, Error: message}
}

// Coded wraps a coded error.
func Coded(code, message string, details any) ErrorEnvelope {
	return ErrorEnvelope{Version: Version, Code: code, Message: message, Details: details}
}

// JSON writes body as JSON with the given status code.
func JSON(w http.ResponseWriter, status int, body any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil && logger != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

// OK writes a 200 success envelope.
func OK(w http.ResponseWriter, data any, logger *slog.Logger) {
	JSON(w, http.StatusOK, Success(data), logger)
}

// Error writes a coded error envelope.
func Error(w http.ResponseWriter, status int, code domainerrors.Code, message string, logger *slog.Logger) {
	JSON(w, status, Coded(string(code), message, nil), logger)
}

// Unauthorized writes a 401 response.
func Unauthorized(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusUnauthorized, domainerrors.CodeUnauthorized, message, logger)
}

// NotFound writes a 404 response.
func NotFound(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusNotFound, domainerrors.CodeNotFound, message, logger)
}

// TooManyRequests writes a 429 response.
func TooManyRequests(w http.ResponseWriter, message string, logger *slog.Logger) {
	JSON(w, http.StatusTooManyRequests, Coded("RATE_LIMITED", message, nil), logger)
}

// HandleError writes the response for err. Domain errors keep their code,
// store errors map to their HTTP status, anything else is a 500.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		JSON(w, domainErr.HTTPStatus(), Coded(string(domainErr.Code), domainErr.Message, domainErr.Details), logger)
		return
	}

	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		JSON(w, storeErr.HTTPCode(), Coded(string(CodeForStatus(storeErr.HTTPCode())), storeErr.Message, nil), logger)
		return
	}

	if logger != nil {
		logger.Error("unhandled error", "error", err)
	}
	Error(w, http.StatusInternalServerError, domainerrors.CodeInternal, "internal server error", logger)
}

// CodeForStatus maps an HTTP status to the closest domain error code.
func CodeForStatus(status int) domainerrors.Code {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domainerrors.CodeValidation
	case http.StatusUnauthorized:
		return domainerrors.CodeUnauthorized
	case http.StatusForbidden:
		return domainerrors.CodeForbidden
	case http.StatusNotFound:
		return domainerrors.CodeNotFound
	case http.StatusConflict, http.StatusPreconditionFailed:
		return domainerrors.CodeConflict
	case http.StatusRequestEntityTooLarge:
		return domainerrors.CodeTooLarge
	default:
		return domainerrors.CodeInternal
	}
}
