package routes

import (
	"github.com/dukerupert/kirana/internal/router"
)

// RegisterOpsRoutes registers health and metrics endpoints.
func RegisterOpsRoutes(r *router.Router, deps OpsDeps) {
	r.Get("/health", deps.Health)
	if deps.Metrics != nil {
		r.Handle("GET", "/metrics", deps.Metrics)
	}
}
