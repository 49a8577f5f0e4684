package routes

import (
	"net/url"

	"github.com/tutofino/gateway/internal/session"
)

// Action is what the gateway does with a classified request.
type Action int

const (
	// ActionPass lets the request through to its handler.
	ActionPass Action = iota

	// ActionRedirect sends the browser elsewhere.
	ActionRedirect
)

// Decision is the outcome of the route decision table. Location is only
// set for redirects.
type Decision struct {
	Action   Action
	Location string
}

var pass = Decision{Action: ActionPass}

func redirect(to string) Decision {
	return Decision{Action: ActionRedirect, Location: to}
}

// Policy holds the redirect targets and the protected-route enforcement
// switch. Built once from config.
type Policy struct {
	// LoginPath receives unauthenticated visitors bounced off protected
	// paths (with a redirectedFrom marker).
	LoginPath string

	// AdminLanding and UserLanding receive authenticated visitors who hit
	// an auth-entry path, by role. RootPath receives everyone rejected
	// from the admin area.
	AdminLanding string
	UserLanding  string
	RootPath     string

	// EnforceProtected redirects unauthenticated requests on protected
	// paths to the login page. When false the gateway waves them through
	// and page-level checks are the only guard, as the legacy gateway
	// behaved.
	EnforceProtected bool
}

// Decide evaluates the decision table exactly once per request, using the
// already-resolved session. It never re-queries anything.
func Decide(class Class, sess session.Session, path string, p Policy) Decision {
	switch class {
	case ClassAuthEntry:
		if !sess.Authenticated {
			return pass
		}
		if sess.IsAdmin() {
			return redirect(p.AdminLanding)
		}
		return redirect(p.UserLanding)

	case ClassAdmin:
		if sess.IsAdmin() {
			return pass
		}
		// Non-admins and anonymous visitors alike land on the root path;
		// the admin area's existence is not worth advertising.
		return redirect(p.RootPath)

	case ClassProtected:
		if sess.Authenticated || !p.EnforceProtected {
			return pass
		}
		return redirect(p.LoginPath + "?redirectedFrom=" + url.QueryEscape(path))

	default:
		return pass
	}
}
