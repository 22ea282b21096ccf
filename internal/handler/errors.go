package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/kirana/internal/domain"
	"github.com/dukerupert/kirana/internal/middleware"
	"github.com/dukerupert/kirana/internal/telemetry"
)

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest // 400
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized // 401
	case domain.EPAYMENT:
		return http.StatusPaymentRequired // 402
	case domain.EFORBIDDEN:
		return http.StatusForbidden // 403
	case domain.ENOTFOUND:
		return http.StatusNotFound // 404
	case domain.ECONFLICT:
		return http.StatusConflict // 409
	case domain.EGONE:
		return http.StatusGone // 410
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests // 429
	case domain.EINTERNAL:
		return http.StatusInternalServerError // 500
	case domain.ENOTIMPL:
		return http.StatusNotImplemented // 501
	case domain.EUNAVAILABLE:
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorResponse logs err and writes it using the status its code maps to.
// Internal errors are reported to Sentry and their details hidden.
func ErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	if domain.IsValidationError(err) {
		ValidationErrorResponse(w, r, err)
		return
	}
	writeError(w, r, err, ErrorCodeToHTTPStatus(domain.ErrorCode(err)))
}

// ErrorResponseWithStatus is ErrorResponse with an explicit status, for
// endpoints whose contract differs from the default mapping.
func ErrorResponseWithStatus(w http.ResponseWriter, r *http.Request, err error, status int) {
	writeError(w, r, err, status)
}

func writeError(w http.ResponseWriter, r *http.Request, err error, status int) {
	code := domain.ErrorCode(err)
	message := domain.ErrorMessage(err)

	logger := middleware.GetLogger(r.Context())
	if status >= 500 {
		logger.Error().Err(err).
			Str("code", code).
			Str("op", domain.ErrorOp(err)).
			Int("status", status).
			Msg("request failed")
		if code == domain.EINTERNAL {
			telemetry.CaptureErrorFromContext(r.Context(), err, map[string]interface{}{
				"path":       r.URL.Path,
				"request_id": middleware.GetRequestID(r.Context()),
			})
		}
	} else {
		logger.Info().Err(err).
			Str("code", code).
			Int("status", status).
			Msg("request rejected")
	}

	if !wantsJSON(r) {
		http.Error(w, message, status)
		return
	}
	WriteJSON(w, status, map[string]errorBody{"error": {Code: code, Message: message}})
}

// ValidationErrorResponse writes field errors as a 400. Anything that is
// not a ValidationError falls back to ErrorResponse.
func ValidationErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	fields := domain.GetValidationFields(err)
	if fields == nil {
		ErrorResponse(w, r, err)
		return
	}

	middleware.GetLogger(r.Context()).Info().
		Interface("fields", fields).
		Msg("validation failed")

	WriteJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {
		Code:    domain.EINVALID,
		Message: "Validation failed",
		Fields:  fields,
	}})
}

// NotFoundResponse writes a generic 404.
func NotFoundResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.Errorf(domain.ENOTFOUND, "", "The requested resource was not found"))
}

// UnauthorizedResponse writes a generic 401.
func UnauthorizedResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.Unauthorized("", "Authentication required"))
}

// ForbiddenResponse writes a generic 403.
func ForbiddenResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.Forbidden("", "You don't have permission to access this resource"))
}

// InternalErrorResponse wraps err as internal and writes a 500.
func InternalErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	ErrorResponse(w, r, domain.Internal(err, "", "An unexpected error occurred"))
}

// wantsJSON is true unless the client asked for a text or HTML body.
func wantsJSON(r *http.Request) bool {
	if acceptsJSON(r) {
		return true
	}
	accept := r.Header.Get("Accept")
	return !strings.Contains(accept, "text/html") && !strings.Contains(accept, "text/plain")
}

// acceptsJSON checks if the client explicitly prefers JSON responses.
func acceptsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasSuffix(r.URL.Path, ".json")
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
