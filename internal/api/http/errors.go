package http

import (
	"net/http"

	"github.com/ion-oset/Electorate-Vanadium-Backend/internal/errors"
)

// statusForError maps a service error to an HTTP status code.
func statusForError(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeUnknownEntity:
		return http.StatusNotFound
	case errors.CodeUnknownField,
		errors.CodeInvalidFilterField,
		errors.CodeFilterTypeMismatch,
		errors.CodeUnsupportedOperator,
		errors.CodeFilterTooComplex,
		errors.CodeInvalidCursor:
		return http.StatusBadRequest
	case errors.CodeCursorMismatch:
		return http.StatusConflict
	case errors.CodeBackendError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError renders a service error as an HTTP response.
func writeServiceError(w http.ResponseWriter, err error, requestID string) {
	writeError(w, statusForError(err), err.Error(), errors.GetCode(err), requestID)
}
