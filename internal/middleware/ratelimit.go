package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/tutofino/gateway/internal/ratelimit"
)

// unknownClient is the sentinel id for requests with no forwarding
// headers. They all share one budget, which is the safer direction.
const unknownClient = "unknown"

// RateLimit returns middleware enforcing the per-client request budget.
// Rejections are 429 with a Retry-After hint of the window length in
// seconds. If the limiter itself fails (Redis backend down), the request
// is allowed: a broken counter store should degrade the limit, not take
// the whole site offline.
func RateLimit(limiter ratelimit.Limiter, windowSeconds int) echo.MiddlewareFunc {
	retryAfter := strconv.Itoa(windowSeconds)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			clientID := ClientID(c.Request())

			allowed, err := limiter.Allow(c.Request().Context(), clientID)
			if err != nil {
				slog.Warn("rate limiter unavailable, allowing request",
					slog.String("client_id", clientID),
					slog.Any("error", err),
				)
				return next(c)
			}

			if !allowed {
				c.Response().Header().Set("Retry-After", retryAfter)
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error":   "Too Many Requests",
					"message": "Rate limit exceeded. Please try again later.",
				})
			}

			return next(c)
		}
	}
}

// ClientID derives the rate-limit key for a request: the first hop of
// X-Forwarded-For, then X-Real-IP, then the shared "unknown" sentinel.
// The raw headers are used deliberately -- this matches how upstream
// proxies for this deployment stamp the client address.
func ClientID(req *http.Request) string {
	if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, found := strings.Cut(xff, ","); found {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(xff)
	}
	if realIP := req.Header.Get("X-Real-IP"); realIP != "" {
		return strings.TrimSpace(realIP)
	}
	return unknownClient
}
