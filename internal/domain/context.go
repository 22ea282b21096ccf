// Package domain provides core business types and context helpers for Kirana.
//
// Context helpers centralize request-scoped data access. The authenticated
// principal is established by the gateway and attached by middleware; the
// checkout core trusts it and never performs authentication itself.
package domain

import (
	"context"

	"github.com/google/uuid"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const (
	// principalContextKey stores the authenticated principal in context.
	principalContextKey contextKey = iota

	// requestIDContextKey stores the request ID for tracing.
	requestIDContextKey
)

// Roles a principal may carry.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Principal is the authenticated caller as asserted by the gateway.
type Principal struct {
	UserID uuid.UUID
	Role   string
}

// IsAdmin reports whether the principal carries the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// --- Principal Context Helpers ---

// NewContextWithPrincipal returns a new context with the principal attached.
func NewContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// PrincipalFromContext retrieves the principal from context.
// Returns nil if no principal is present.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey).(*Principal)
	return p
}

// UserIDFromContext retrieves the user ID from context.
// Returns uuid.Nil if no principal is present.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	if p := PrincipalFromContext(ctx); p != nil {
		return p.UserID
	}
	return uuid.Nil
}

// RequireUserID retrieves the user ID from context, panicking if not present.
// Use this in handlers mounted behind RequireUser middleware.
// The panic will be caught by the recovery middleware.
func RequireUserID(ctx context.Context) uuid.UUID {
	id := UserIDFromContext(ctx)
	if id == uuid.Nil {
		panic("user_id required in context but not found")
	}
	return id
}

// IsAuthenticated returns true if there is a principal in context.
func IsAuthenticated(ctx context.Context) bool {
	return PrincipalFromContext(ctx) != nil
}

// --- Request ID Context Helpers ---

// NewContextWithRequestID returns a new context with the request ID attached.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if no request ID is present.
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey).(string)
	return requestID
}
