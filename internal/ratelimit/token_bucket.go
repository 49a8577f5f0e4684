package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket is an alternative limiter built on golang.org/x/time/rate:
// each client gets a bucket of `limit` tokens refilled evenly over the
// window. Unlike the fixed window it cannot admit a 2x burst at a window
// boundary; selecting it is a deliberate policy change, not a bug fix to
// the fixed-window default.
type TokenBucket struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

// NewTokenBucket creates a token-bucket limiter equivalent in nominal rate
// to a fixed window of limit requests per window.
func NewTokenBucket(limit int, window time.Duration) *TokenBucket {
	return &TokenBucket{
		buckets: make(map[string]*rate.Limiter),
		limit:   rate.Every(window / time.Duration(limit)),
		burst:   limit,
	}
}

// Allow takes one token from the client's bucket, creating it full on
// first sight.
func (tb *TokenBucket) Allow(_ context.Context, clientID string) (bool, error) {
	tb.mu.Lock()
	bucket, ok := tb.buckets[clientID]
	if !ok {
		bucket = rate.NewLimiter(tb.limit, tb.burst)
		tb.buckets[clientID] = bucket
	}
	tb.mu.Unlock()

	return bucket.Allow(), nil
}
