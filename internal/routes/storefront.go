package routes

import (
	"github.com/dukerupert/kirana/internal/middleware"
	"github.com/dukerupert/kirana/internal/router"
)

// RegisterStorefrontRoutes registers all shopper-facing API routes.
// Everything except coupon validation requires an authenticated user.
func RegisterStorefrontRoutes(r *router.Router, deps StorefrontDeps) {
	// Public coupon check, rate limited per user or client IP
	r.Post("/coupons/validate", deps.LoyaltyHandler.ValidateCoupon, deps.CouponLimiter.Middleware)

	user := r.Group(middleware.RequireUser)

	// Shopping cart
	user.Get("/cart", deps.CartHandler.Get)
	user.Delete("/cart", deps.CartHandler.Clear)
	user.Post("/cart/items", deps.CartHandler.AddItem)
	user.Put("/cart/items/{itemID}", deps.CartHandler.UpdateItem)
	user.Delete("/cart/items/{itemID}", deps.CartHandler.RemoveItem)
	user.Post("/cart/coupon", deps.CartHandler.ApplyCoupon)
	user.Delete("/cart/coupon", deps.CartHandler.RemoveCoupon)
	user.Post("/cart/coins", deps.CartHandler.SetCoins)

	// Checkout and order history
	user.Post("/orders", deps.OrderHandler.PlaceOrder)
	user.Get("/orders", deps.OrderHandler.List)
	user.Get("/orders/{id}", deps.OrderHandler.Get)
	user.Post("/orders/{id}/confirm", deps.OrderHandler.Confirm)

	// Referrals and loyalty
	user.Get("/coupons/my-referral", deps.LoyaltyHandler.MyReferralCoupon)
	user.Get("/referrals", deps.LoyaltyHandler.Summary)
	user.Post("/referrals/signup", deps.LoyaltyHandler.Signup)
	user.Post("/referrals/register", deps.LoyaltyHandler.Register)
	user.Post("/referrals/milestones/{milestone}/claim", deps.LoyaltyHandler.ClaimMilestone)
}
