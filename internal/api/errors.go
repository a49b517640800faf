package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/nerrad567/library-core/internal/library"
)

// ErrorDetail is the content of an error response.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeValidation     = "validation_error"
	ErrCodeNoChanges      = "no_changes"
	ErrCodeNotFound       = "not_found"
	ErrCodeConflict       = "conflict"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeTooLarge       = "payload_too_large"
	ErrCodeRateLimited    = "rate_limited"
	ErrCodeInternal       = "internal_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// Response headers.
const (
	headerErrorMessage = "X-Error-Message"
	headerResultCount  = "X-Result-Count"
	headerRequestID    = "X-Request-ID"
)

const contentTypeJSON = "application/json"

// maxErrorHeaderLength caps the X-Error-Message value.
const maxErrorHeaderLength = 512

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeErrorDetails(w, status, code, message, nil)
}

// writeErrorDetails writes a structured error response carrying extra details.
// The message is also sent in the X-Error-Message header.
func writeErrorDetails(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	w.Header().Set(headerErrorMessage, headerSafe(message))
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="library"`)
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeStoreError maps a library error onto a status code and error body.
func writeStoreError(w http.ResponseWriter, err error) {
	var fe *library.FieldError
	hasField := errors.As(err, &fe)

	var details map[string]any
	if hasField {
		details = map[string]any{"field": fe.Field, "reason": fe.Reason}
	}

	switch {
	case errors.Is(err, library.ErrUnknownBook), errors.Is(err, library.ErrUnknownMember):
		writeErrorDetails(w, http.StatusConflict, ErrCodeConflict, err.Error(), details)
	case errors.Is(err, library.ErrExists):
		writeErrorDetails(w, http.StatusConflict, ErrCodeConflict, trimSentinel(err), details)
	case errors.Is(err, library.ErrNoChanges):
		writeError(w, http.StatusBadRequest, ErrCodeNoChanges, trimSentinel(err))
	case errors.Is(err, library.ErrInvalid):
		writeErrorDetails(w, http.StatusBadRequest, ErrCodeValidation, err.Error(), details)
	case errors.Is(err, library.ErrNotFound):
		writeNotFound(w, trimSentinel(err))
	case errors.Is(err, library.ErrPersist):
		writeInternalError(w, "saving the library store failed")
	default:
		writeInternalError(w, "internal server error")
	}
}

// trimSentinel drops the "library: " package prefix from an error message.
func trimSentinel(err error) string {
	return strings.TrimPrefix(err.Error(), "library: ")
}

// headerSafe makes a message usable as a single header value.
func headerSafe(s string) string {
	s = strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
	if len(s) > maxErrorHeaderLength {
		n := maxErrorHeaderLength
		for n > 0 && !utf8.RuneStart(s[n]) {
			n--
		}
		s = s[:n]
	}
	return s
}
