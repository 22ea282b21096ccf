package router

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedHeaders []string
	MaxAgeSeconds  int
}

// DefaultCORSHeaders are the request headers the storefront client sends.
var DefaultCORSHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "X-User-ID", "X-User-Role"}

// CORS adds CORS headers to responses. An empty origin list disables CORS.
// Route-level middleware never sees preflights, so wrap the whole Router.
func CORS(cfg CORSConfig) Middleware {
	headers := cfg.AllowedHeaders
	if len(headers) == 0 {
		headers = DefaultCORSHeaders
	}
	allowHeaders := strings.Join(headers, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || len(cfg.AllowedOrigins) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			if slices.Contains(cfg.AllowedOrigins, "*") || slices.Contains(cfg.AllowedOrigins, origin) {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", allowHeaders)
				if cfg.MaxAgeSeconds > 0 {
					h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAgeSeconds))
				}
			}

			// Preflight requests never reach the mux.
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
