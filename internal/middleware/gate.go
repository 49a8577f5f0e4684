package middleware

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tutofino/gateway/internal/routes"
	"github.com/tutofino/gateway/internal/session"
)

// contextKeySession is where the resolved session lives in the Echo
// context. Downstream handlers read it via CurrentSession.
const contextKeySession = "gateway_session"

// Gate returns the final pipeline stage: it resolves the caller's session,
// runs the auth-code exchange when the login page is hit with a code, then
// evaluates the route decision table exactly once and either passes the
// request through or redirects.
func Gate(resolver *session.Resolver, classifier *routes.Classifier, policy routes.Policy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			sess := resolver.Resolve(req.Context(), req)
			c.Set(contextKeySession, sess)

			// Email-verification landing: /login?code=... exchanges the
			// code before any classification and short-circuits with a
			// redirect either way, so the login page can show the outcome.
			if path == policy.LoginPath {
				if code := c.QueryParam("code"); code != "" {
					if err := resolver.ExchangeCode(req.Context(), code); err != nil {
						slog.Warn("auth code exchange failed",
							slog.String("client_id", ClientID(req)),
							slog.Any("error", err),
						)
						return c.Redirect(http.StatusSeeOther, policy.LoginPath+"?error=verification-failed")
					}
					return c.Redirect(http.StatusSeeOther, policy.LoginPath+"?verified=true")
				}
			}

			decision := routes.Decide(classifier.Classify(path), sess, path, policy)
			if decision.Action == routes.ActionRedirect {
				return c.Redirect(http.StatusSeeOther, decision.Location)
			}

			return next(c)
		}
	}
}

// CurrentSession retrieves the resolved session from the Echo context.
// Returns the anonymous session when the gate has not run (e.g. in tests
// that mount handlers directly).
func CurrentSession(c echo.Context) session.Session {
	sess, ok := c.Get(contextKeySession).(session.Session)
	if !ok {
		return session.Anonymous
	}
	return sess
}
