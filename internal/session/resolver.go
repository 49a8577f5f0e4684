package session

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/tutofino/gateway/internal/identity"
)

// Resolver computes the caller's Session by delegating to the identity
// provider and the role store. Every failure mode degrades to the
// unauthenticated session: for a security gate, fail closed beats fail
// open, and a 5xx here would take the whole site down with it.
type Resolver struct {
	provider identity.Provider
	roles    RoleStore
	timeout  time.Duration
}

// NewResolver creates a resolver with a bounded per-lookup timeout.
func NewResolver(provider identity.Provider, roles RoleStore, timeout time.Duration) *Resolver {
	return &Resolver{provider: provider, roles: roles, timeout: timeout}
}

// Resolve returns the caller's session. It never returns an error; a
// provider failure, timeout, or absent user all yield Anonymous, and a
// role-store failure yields an authenticated session with RoleNone --
// never a stale or guessed role.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) Session {
	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	user, err := r.provider.CurrentUser(lookupCtx, req)
	if err != nil {
		slog.Warn("identity lookup failed, treating as unauthenticated",
			slog.Any("error", err),
		)
		return Anonymous
	}
	if user == nil {
		return Anonymous
	}

	sess := Session{Authenticated: true, UserID: user.ID}

	roleCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	role, err := r.roles.GetRole(roleCtx, user.ID)
	if err != nil {
		slog.Warn("role lookup failed, treating role as absent",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
		return sess
	}
	sess.Role = role

	return sess
}

// ExchangeCode forwards an auth-code exchange to the provider under the
// resolver's timeout.
func (r *Resolver) ExchangeCode(ctx context.Context, code string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.provider.ExchangeCode(ctx, code)
}

// SignOut forwards a sign-out to the provider under the resolver's timeout.
func (r *Resolver) SignOut(ctx context.Context, req *http.Request) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.provider.SignOut(ctx, req)
}
