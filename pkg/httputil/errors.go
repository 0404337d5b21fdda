package httputil

import (
	"errors"
	"net/http"

	"github.com/appcuatri/backend/pkg/apierr"
	"github.com/appcuatri/backend/pkg/observability"
)

// WriteError maps any error onto the error envelope. Operational
// *apierr.Error values keep their status/code/details; anything else is
// reported as a generic 500 so internals never leak to clients. The
// cause of a 500 is logged with the request context before the
// sanitized envelope goes out.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierr.From(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		cause := err
		if unwrapped := errors.Unwrap(apiErr); unwrapped != nil {
			cause = unwrapped
		}
		observability.FromContext(r.Context()).
			WithError(cause).
			WithFields(map[string]interface{}{
				"method": r.Method,
				"path":   r.URL.Path,
			}).
			Error("request failed")
	}
	WriteErrorEnvelope(w, apiErr.StatusCode, apiErr.Message, apiErr.Code, apiErr.Details)
}

// WriteValidationError writes a 400 validation error with optional
// per-field details
func WriteValidationError(w http.ResponseWriter, message string, details interface{}) {
	WriteErrorEnvelope(w, http.StatusBadRequest, message, apierr.CodeValidation, details)
}
