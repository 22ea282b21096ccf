package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/dukerupert/kirana/internal/domain"
)

// ============================================================================
// MIDDLEWARE ERROR RESPONSE HELPERS
// ============================================================================
//
// These mirror handler.ErrorResponse but are self-contained to avoid an
// import cycle (handler imports middleware for GetLogger).

type contextKey string

// respondWithError writes a JSON error envelope and logs the failure.
func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	status := errorCodeToHTTPStatus(code)

	logger := GetLogger(r.Context())
	event := logger.Info()
	if status >= 500 {
		event = logger.Error()
	}
	event.Err(err).
		Str("code", code).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("middleware error")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": domain.ErrorMessage(err),
		},
	})
}

func respondUnauthorized(w http.ResponseWriter, r *http.Request) {
	respondWithError(w, r, domain.Unauthorized("", "Authentication required"))
}

func respondForbidden(w http.ResponseWriter, r *http.Request) {
	respondWithError(w, r, domain.Forbidden("", "You don't have permission to access this resource"))
}

func respondTooManyRequests(w http.ResponseWriter, r *http.Request) {
	respondWithError(w, r, domain.Errorf(domain.ERATELIMIT, "", "Too many requests"))
}

func respondUnavailable(w http.ResponseWriter, r *http.Request, message string) {
	respondWithError(w, r, domain.Unavailable(nil, "", message))
}

// errorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func errorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized
	case domain.EFORBIDDEN:
		return http.StatusForbidden
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests
	case domain.EUNAVAILABLE:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
