package routes

import (
	"github.com/dukerupert/kirana/internal/middleware"
	"github.com/dukerupert/kirana/internal/router"
)

// RegisterAdminRoutes registers routes that require the admin role.
func RegisterAdminRoutes(r *router.Router, deps AdminDeps) {
	admin := r.Group(middleware.RequireAdmin)
	admin.Put("/admin/orders/{id}/status", deps.OrderHandler.UpdateStatus)
}
