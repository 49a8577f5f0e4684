// Package session resolves the caller's identity and role for each request.
// A Session is computed fresh per request and never persisted by the
// gateway; the identity provider and role store own all state.
package session

import "context"

// Role is the caller's authorization level, trusted only after a
// successful role-store round trip.
type Role string

const (
	RoleNone  Role = ""
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Session is the per-request resolution result. The zero value is the
// unauthenticated session, which is also what every failure mode
// degrades to.
type Session struct {
	Authenticated bool
	UserID        string
	Role          Role
}

// Anonymous is the unauthenticated session.
var Anonymous = Session{}

// IsAdmin reports whether the session carries a verified admin role.
func (s Session) IsAdmin() bool {
	return s.Authenticated && s.Role == RoleAdmin
}

// RoleStore looks up a user's role by id. Implementations must honor
// context deadlines.
type RoleStore interface {
	// GetRole returns the stored role for the user, or RoleNone if the
	// user has no role row.
	GetRole(ctx context.Context, userID string) (Role, error)
}
