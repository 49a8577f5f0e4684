package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tutofino/gateway/internal/apperror"
	"github.com/tutofino/gateway/internal/csrf"
)

// CSRFHeader carries the token in both directions: requests present a
// previously issued token in it, responses carry the next one to use.
const CSRFHeader = "X-CSRF-Token"

// CSRF returns middleware implementing one-time-token CSRF protection.
// State-changing methods (POST, PUT, PATCH, DELETE) must present a valid
// token in the X-CSRF-Token header or they are rejected with 403 before
// any handler runs. Every response that clears the check carries a fresh
// token, so well-behaved clients always hold exactly one live token.
func CSRF(store csrf.Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := req.Context()

			if isStateChanging(req.Method) {
				token := req.Header.Get(CSRFHeader)
				if !store.Validate(ctx, token) {
					// A replayed, expired, or missing token all look the
					// same from here. No fresh token on this response.
					return apperror.NewForbidden("Invalid CSRF Token")
				}
			}

			token, err := store.Issue(ctx)
			if err != nil {
				return apperror.NewInternal(err)
			}
			c.Response().Header().Set(CSRFHeader, token)

			return next(c)
		}
	}
}

// isStateChanging returns true for methods that require CSRF protection.
func isStateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
