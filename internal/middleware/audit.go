package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tutofino/gateway/internal/audit"
)

// Audit returns middleware that records visits to the login page (GET
// only) in the audit sink. The insert runs in the background with its own
// timeout; the request never waits for it and insert failures are
// swallowed.
func Audit(sink audit.Sink, loginPath string, timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			if req.Method == http.MethodGet && req.URL.Path == loginPath {
				audit.Record(sink, timeout, audit.Entry{
					ClientIP:  ClientID(req),
					Timestamp: time.Now().UTC(),
					Method:    req.Method,
					UserAgent: req.UserAgent(),
				})
			}

			return next(c)
		}
	}
}
