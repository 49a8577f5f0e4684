// Package app is the application bootstrap and dependency injection root.
// It creates and holds all shared infrastructure (DB pool, Redis client,
// Echo instance) and wires the gateway pipeline together in its fixed
// stage order.
package app

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/tutofino/gateway/internal/apperror"
	"github.com/tutofino/gateway/internal/audit"
	"github.com/tutofino/gateway/internal/config"
	"github.com/tutofino/gateway/internal/csrf"
	"github.com/tutofino/gateway/internal/identity"
	"github.com/tutofino/gateway/internal/middleware"
	"github.com/tutofino/gateway/internal/ratelimit"
	"github.com/tutofino/gateway/internal/routes"
	"github.com/tutofino/gateway/internal/session"
)

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go.
type App struct {
	// Config holds the loaded application configuration.
	Config *config.Config

	// DB is the MariaDB connection pool (role store + audit log). Nil
	// when no database is configured; the gateway then degrades to
	// role-less sessions and skipped audit logging.
	DB *sql.DB

	// Redis backs the shared-store CSRF and rate-limit backends. Nil for
	// the memory backend.
	Redis *redis.Client

	// Echo is the HTTP server instance.
	Echo *echo.Echo

	// Resolver is exposed for the logout route, which delegates sign-out
	// to the identity provider.
	Resolver *session.Resolver
}

// New creates a new App instance with the given dependencies and
// configures the Echo server with the gateway pipeline and error handling.
func New(cfg *config.Config, db *sql.DB, rdb *redis.Client) *App {
	e := echo.New()

	// Disable Echo's default banner and startup message -- we log our own.
	e.HideBanner = true
	e.HidePort = true

	// Configure trusted reverse proxy IPs so c.RealIP() in the request
	// logger returns the actual client IP instead of the proxy's.
	middleware.TrustedProxies(e, []string{
		"127.0.0.0/8",    // Localhost
		"10.0.0.0/8",     // Docker default bridge
		"172.16.0.0/12",  // Docker bridge (alternate range)
		"192.168.0.0/16", // Common LAN
		"fd00::/8",       // IPv6 private
	})

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
		Echo:   e,
	}

	app.setupPipeline()

	// Register the custom error handler that maps AppErrors to HTTP responses.
	e.HTTPErrorHandler = app.errorHandler

	return app
}

// setupPipeline registers the gateway stages on the Echo instance. Order
// matters and is part of the contract: CORS evaluates (and short-circuits
// preflight) before CSRF, CSRF before rate limiting, and session
// resolution with the route decision runs last. No stage other than the
// preflight short-circuit may skip the rest.
func (a *App) setupPipeline() {
	gw := a.Config.Gateway

	// Panic recovery -- outermost so it catches panics from every stage.
	a.Echo.Use(middleware.Recovery())

	// Request logging with request ids.
	a.Echo.Use(middleware.RequestLogger())

	// Security headers on every response.
	a.Echo.Use(middleware.SecurityHeaders())

	// Cross-origin policy, including the preflight short-circuit.
	a.Echo.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: gw.AllowedOrigins,
	}))

	// One-time CSRF tokens on state-changing methods.
	a.Echo.Use(middleware.CSRF(a.buildTokenStore()))

	// Per-client rate limiting.
	a.Echo.Use(middleware.RateLimit(a.buildLimiter(), int(gw.RateLimitWindow.Seconds())))

	// Best-effort audit logging of login-page visits.
	a.Echo.Use(middleware.Audit(a.buildSink(), gw.Routes.LoginPath, gw.UpstreamTimeout))

	// Session resolution, auth-code exchange, and the route decision.
	a.Resolver = session.NewResolver(
		identity.NewClient(a.Config.Identity),
		a.buildRoleStore(),
		a.Config.Identity.Timeout,
	)
	classifier := routes.NewClassifier(gw.Routes.Protected, gw.Routes.AuthEntry, gw.Routes.Admin)
	a.Echo.Use(middleware.Gate(a.Resolver, classifier, routes.Policy{
		LoginPath:        gw.Routes.LoginPath,
		AdminLanding:     gw.Routes.AdminLanding,
		UserLanding:      gw.Routes.UserLanding,
		RootPath:         gw.Routes.RootPath,
		EnforceProtected: gw.EnforceProtectedRoutes,
	}))
}

// buildTokenStore selects the CSRF store backend.
func (a *App) buildTokenStore() csrf.Store {
	if a.Config.Gateway.StoreBackend == config.BackendRedis {
		return csrf.NewRedisStore(a.Redis, a.Config.Gateway.CSRFTokenTTL)
	}
	return csrf.NewMemoryStore(a.Config.Gateway.CSRFTokenTTL)
}

// buildLimiter selects the rate-limit strategy and backend.
func (a *App) buildLimiter() ratelimit.Limiter {
	gw := a.Config.Gateway

	if gw.RateLimitStrategy == config.StrategyTokenBucket {
		return ratelimit.NewTokenBucket(gw.RateLimitMax, gw.RateLimitWindow)
	}
	if gw.StoreBackend == config.BackendRedis {
		return ratelimit.NewRedisFixedWindow(a.Redis, gw.RateLimitMax, gw.RateLimitWindow)
	}
	return ratelimit.NewFixedWindow(gw.RateLimitMax, gw.RateLimitWindow)
}

// buildRoleStore returns the SQL role store, or the nop store when no
// database is configured.
func (a *App) buildRoleStore() session.RoleStore {
	if a.DB == nil {
		return session.NopRoleStore{}
	}
	return session.NewSQLRoleStore(a.DB)
}

// buildSink returns the SQL audit sink, or the nop sink when no database
// is configured.
func (a *App) buildSink() audit.Sink {
	if a.DB == nil {
		return audit.NopSink{}
	}
	return audit.NewSQLSink(a.DB)
}

// errorHandler is the custom Echo error handler. It maps domain errors
// (AppError) to appropriate HTTP responses: JSON for API requests, short
// plain text otherwise. Internal detail stays in the logs.
func (a *App) errorHandler(err error, c echo.Context) {
	// Don't double-write if response is already committed.
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "An unexpected error occurred"

	// Check if it's our domain error type.
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
		message = appErr.Message

		// Log internal errors with the underlying cause.
		if appErr.Internal != nil {
			slog.Error("internal error",
				slog.String("type", appErr.Type),
				slog.String("message", appErr.Message),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
			)
		}
	} else {
		// Check for Echo's built-in HTTP errors (e.g., 404 from router).
		var echoErr *echo.HTTPError
		if errors.As(err, &echoErr) {
			code = echoErr.Code
			if msg, ok := echoErr.Message.(string); ok {
				message = msg
			} else {
				message = defaultErrorMessage(code)
			}
		} else {
			// Truly unexpected error -- log it.
			slog.Error("unhandled error",
				slog.Any("error", err),
				slog.String("path", c.Request().URL.Path),
			)
		}
	}

	// API requests always get JSON.
	if isAPIRequest(c) {
		c.JSON(code, map[string]string{
			"error":   http.StatusText(code),
			"message": message,
		})
		return
	}

	c.String(code, message)
}

// defaultErrorMessage returns a user-friendly message for common HTTP status codes
// when no specific message was provided by the error.
func defaultErrorMessage(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "The request was invalid or cannot be processed."
	case http.StatusUnauthorized:
		return "You need to log in to access this page."
	case http.StatusForbidden:
		return "You don't have permission to access this resource."
	case http.StatusNotFound:
		return "The page you're looking for doesn't exist or has been moved."
	case http.StatusMethodNotAllowed:
		return "This action is not allowed."
	case http.StatusTooManyRequests:
		return "You're making too many requests. Please slow down."
	case http.StatusInternalServerError:
		return "Something went wrong on our end. Please try again."
	case http.StatusServiceUnavailable:
		return "The service is temporarily unavailable. Please try again later."
	default:
		return "An unexpected error occurred."
	}
}

// isAPIRequest returns true if the request is targeting the API (JSON response expected).
func isAPIRequest(c echo.Context) bool {
	path := c.Request().URL.Path
	return len(path) >= 4 && path[:4] == "/api"
}

// Start begins listening for HTTP requests on the configured port.
func (a *App) Start() error {
	addr := fmt.Sprintf(":%d", a.Config.Port)
	slog.Info("starting tutofino gateway",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
	)
	return a.Echo.Start(addr)
}
