// Package ratelimit implements per-client request limiting for the gateway.
// The default strategy is a fixed window (100 requests per 60 seconds per
// client), which intentionally admits up to 2x the nominal rate across a
// window boundary; a token-bucket strategy is available for smoother limits.
package ratelimit

import "context"

// Limiter decides whether a request from the given client may proceed.
// Implementations must be safe for concurrent use: simultaneous requests
// from the same client must not lose increments.
type Limiter interface {
	// Allow records one request for clientID and reports whether it is
	// within budget. The error is only non-nil for infrastructure
	// failures (e.g. Redis unreachable), never for a rejected request.
	Allow(ctx context.Context, clientID string) (bool, error)
}
