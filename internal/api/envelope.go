package api

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pagetrail/pagetrail-server/internal/http/response"
)

// EnvelopeVersion is the envelope format version clients check for.
const EnvelopeVersion = response.Version

// APIEnvelope wraps every successful response and simple errors.
type APIEnvelope = response.Envelope //nolint:revive // API prefix is intentional for clarity

// APIErrorEnvelope wraps coded errors.
type APIErrorEnvelope = response.ErrorEnvelope //nolint:revive // API prefix is intentional for clarity

// EnvelopeTransformer wraps huma responses in the API envelope.
// It runs for handler output and for errors written by huma itself.
func EnvelopeTransformer(_ huma.Context, _ string, v any) (any, error) {
	var apiErr *APIError
	if err, ok := v.(error); ok && errors.As(err, &apiErr) {
		if apiErr.Code == "" {
			return response.Failure(apiErr.Message), nil
		}
		return response.Coded(apiErr.Code, apiErr.Message, apiErr.Details), nil
	}

	if err, ok := v.(error); ok {
		return response.Failure(err.Error()), nil
	}

	return response.Success(v), nil
}
