// Package routes maps request paths to security categories and turns a
// (category, session) pair into a gateway decision. Both steps are pure:
// classification depends only on the path, the decision only on its two
// inputs, so every branch is testable without building a request.
package routes

import "strings"

// Class is the security category of a request path.
type Class int

const (
	// ClassPublic paths pass through for everyone.
	ClassPublic Class = iota

	// ClassAuthEntry paths (login, register, forgot-password) render for
	// anonymous visitors and bounce authenticated users to their landing
	// page.
	ClassAuthEntry

	// ClassProtected paths require an authenticated session when
	// enforcement is on.
	ClassProtected

	// ClassAdmin paths require the admin role.
	ClassAdmin
)

// String returns the category name, for logs.
func (c Class) String() string {
	switch c {
	case ClassAuthEntry:
		return "auth-entry"
	case ClassProtected:
		return "protected"
	case ClassAdmin:
		return "admin"
	default:
		return "public"
	}
}

// Classifier assigns every path to exactly one Class from fixed prefix
// lists. Classification is total and stable: the same path always yields
// the same category.
type Classifier struct {
	admin     []string
	protected []string
	authEntry []string
}

// NewClassifier builds a classifier from the configured prefix lists.
func NewClassifier(protected, authEntry, admin []string) *Classifier {
	return &Classifier{
		admin:     admin,
		protected: protected,
		authEntry: authEntry,
	}
}

// Classify returns the category for a path. Admin prefixes win over
// protected ones (the admin area is inside the protected set); anything
// matching no list is public.
func (c *Classifier) Classify(path string) Class {
	if matchesAny(path, c.admin) {
		return ClassAdmin
	}
	if matchesAny(path, c.authEntry) {
		return ClassAuthEntry
	}
	if matchesAny(path, c.protected) {
		return ClassProtected
	}
	return ClassPublic
}

// matchesAny reports whether the path falls under any of the prefixes.
func matchesAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
