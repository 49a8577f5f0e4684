// Package identity wraps the hosted identity service the gateway delegates
// authentication to. The gateway never stores credentials itself: it
// forwards the caller's access token and trusts (or rejects) the answer.
package identity

import (
	"context"
	"net/http"
)

// User is the identity the provider vouches for. The ID is opaque to the
// gateway; it is only ever passed through to the role store.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Provider is the identity service contract consumed by the session
// resolver. All methods must honor context cancellation; a slow provider
// must never stall unrelated requests.
type Provider interface {
	// CurrentUser resolves the caller's identity from request credentials.
	// Absent or rejected credentials return (nil, nil); only transport
	// failures return an error.
	CurrentUser(ctx context.Context, req *http.Request) (*User, error)

	// ExchangeCode trades an email-verification authorization code for a
	// session on the provider side.
	ExchangeCode(ctx context.Context, code string) error

	// SignOut revokes the caller's session on the provider side.
	SignOut(ctx context.Context, req *http.Request) error
}
