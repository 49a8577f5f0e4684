package app

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tutofino/gateway/internal/middleware"
)

// RegisterRoutes sets up the routes the gateway fronts. The pages
// themselves are rendered by the main application; the handlers here are
// minimal placeholders so the gateway can run (and be exercised)
// standalone. Every route still passes through the full pipeline.
func (a *App) RegisterRoutes() {
	e := a.Echo

	// Landing page.
	e.GET("/", pageHandler("landing"))

	// Health check endpoint for container orchestration.
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Auth-entry pages. Authenticated visitors never reach these: the
	// gate redirects them to their landing page first.
	e.GET("/login", pageHandler("login"))
	e.GET("/register", pageHandler("register"))
	e.GET("/forgot-password", pageHandler("forgot-password"))

	// Sign-out delegates to the identity provider, then sends the
	// browser back to the login page. Best effort: a failed revocation
	// still clears the client side.
	e.POST("/logout", a.handleLogout)

	// Protected pages.
	e.GET("/chat", pageHandler("chat"))
	e.GET("/chat/*", pageHandler("chat"))
	e.GET("/profile", pageHandler("profile"))

	// Admin pages. The gate has already verified the admin role by the
	// time these run.
	e.GET("/admin", pageHandler("admin-dashboard"))
	e.GET("/admin/*", pageHandler("admin-dashboard"))
}

// pageHandler returns a placeholder handler standing in for a rendered page.
func pageHandler(name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"page":          name,
			"authenticated": middleware.CurrentSession(c).Authenticated,
		})
	}
}

// handleLogout revokes the provider-side session and redirects to login.
func (a *App) handleLogout(c echo.Context) error {
	if err := a.Resolver.SignOut(c.Request().Context(), c.Request()); err != nil {
		// The session may already be gone upstream; the redirect happens
		// either way.
		slog.Warn("sign out failed", slog.Any("error", err))
	}
	return c.Redirect(http.StatusSeeOther, a.Config.Gateway.Routes.LoginPath)
}
