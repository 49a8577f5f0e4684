// Package middleware provides the gateway's request pipeline stages as
// Echo middleware. Stage order is fixed and registered in internal/app:
// Recovery -> RequestLogger -> SecurityHeaders -> CORS -> CSRF ->
// RateLimit -> Audit -> Gate.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// corsAllowMethods and corsAllowHeaders are the fixed values attached for
// allowed origins. The CSRF header must be listed or browsers would strip
// it from cross-origin requests.
var (
	corsAllowMethods = strings.Join([]string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodDelete,
		http.MethodOptions,
	}, ", ")

	corsAllowHeaders = strings.Join([]string{
		"Content-Type",
		"Authorization",
		CSRFHeader,
	}, ", ")
)

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	// AllowedOrigins is the fixed list of origins permitted to make
	// cross-origin requests. No wildcard support: config validation
	// rejects "*" before this middleware is ever built.
	AllowedOrigins []string
}

// CORS returns middleware that evaluates the cross-origin policy for every
// request. Origins on the allow-list get the full set of CORS headers with
// credentials enabled; unknown origins get no CORS headers but the request
// still proceeds, so same-origin and server-to-server calls are unaffected.
//
// Preflight OPTIONS requests short-circuit the entire pipeline with an
// empty 204: no CSRF, rate-limit, or session logic runs for them.
func CORS(cfg CORSConfig) echo.MiddlewareFunc {
	// Build a set for fast origin lookup.
	originSet := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		originSet[o] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()

			origin := req.Header.Get("Origin")
			if originSet[origin] {
				res.Header().Set("Access-Control-Allow-Origin", origin)
				res.Header().Set("Access-Control-Allow-Methods", corsAllowMethods)
				res.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
				res.Header().Set("Access-Control-Allow-Credentials", "true")
				res.Header().Set("Vary", "Origin")
			}

			if req.Method == http.MethodOptions {
				return c.NoContent(http.StatusNoContent)
			}

			return next(c)
		}
	}
}
