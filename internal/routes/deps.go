package routes

import (
	"net/http"

	"github.com/dukerupert/kirana/internal/handler/storefront"
	"github.com/dukerupert/kirana/internal/middleware"
)

// StorefrontDeps contains dependencies for shopper-facing routes
type StorefrontDeps struct {
	CartHandler    *storefront.CartHandler
	OrderHandler   *storefront.OrderHandler
	LoyaltyHandler *storefront.LoyaltyHandler

	// CouponLimiter throttles the public coupon validation endpoint
	CouponLimiter *middleware.RateLimiter
}

// AdminDeps contains dependencies for admin routes
type AdminDeps struct {
	OrderHandler *storefront.OrderHandler
}

// WebhookDeps contains dependencies for webhook routes
type WebhookDeps struct {
	StripeHandler http.HandlerFunc
}

// OpsDeps contains dependencies for health and metrics routes
type OpsDeps struct {
	Health http.HandlerFunc

	// Metrics is nil when metrics are disabled
	Metrics http.Handler
}
