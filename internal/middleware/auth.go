package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/kirana/internal/domain"
	"github.com/dukerupert/kirana/internal/telemetry"
)

// Headers set by the authenticating gateway in front of this service.
const (
	UserIDHeader   = "X-User-ID"
	UserRoleHeader = "X-User-Role"
)

// WithPrincipal attaches the gateway-asserted principal to the context when
// a well-formed X-User-ID header is present. It never rejects a request;
// use RequireUser or RequireAdmin for that.
func WithPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := uuid.Parse(raw)
		if err != nil || userID == uuid.Nil {
			next.ServeHTTP(w, r)
			return
		}

		role := strings.ToLower(strings.TrimSpace(r.Header.Get(UserRoleHeader)))
		if role != domain.RoleAdmin {
			role = domain.RoleCustomer
		}

		ctx := domain.NewContextWithPrincipal(r.Context(), &domain.Principal{UserID: userID, Role: role})
		logger := GetLogger(ctx).With().Str("user_id", userID.String()).Logger()
		next.ServeHTTP(w, r.WithContext(logger.WithContext(ctx)))
	})
}

// RequireUser rejects requests without a principal with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !domain.IsAuthenticated(r.Context()) {
			respondUnauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests whose principal is not an admin.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := domain.PrincipalFromContext(r.Context())
		if p == nil {
			respondUnauthorized(w, r)
			return
		}
		if !p.IsAdmin() {
			respondForbidden(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SentryUser extracts the principal for telemetry.SentryContextMiddleware.
func SentryUser(ctx context.Context) *telemetry.UserInfo {
	p := domain.PrincipalFromContext(ctx)
	if p == nil {
		return nil
	}
	return &telemetry.UserInfo{ID: p.UserID.String(), Role: p.Role}
}
