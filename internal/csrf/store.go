// Package csrf implements the one-time CSRF token store. Every gateway
// response carries a fresh token in the X-CSRF-Token header; every
// state-changing request must present a previously issued token, which is
// consumed on first successful validation. A replayed token is
// indistinguishable from an invalid one.
package csrf

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// tokenBytes is the number of random bytes in a token.
// 32 bytes = 256 bits of entropy, hex-encoded to 64 characters.
const tokenBytes = 32

// Store issues and validates one-time, expiring CSRF tokens. Implementations
// must be safe for concurrent use: two requests presenting the same token
// must see exactly one validation succeed.
type Store interface {
	// Issue generates a new token and records it with an expiry.
	Issue(ctx context.Context) (string, error)

	// Validate consumes the token. It returns true iff the token exists
	// and has not expired; the token is removed either way, so a second
	// call with the same value always returns false. There is no error
	// result: unknown, expired, and replayed tokens are all just invalid.
	Validate(ctx context.Context, token string) bool
}

// MemoryStore is the in-process Store implementation: a mutex-guarded map
// of token value to expiry. Correct for a single-process deployment; use
// RedisStore when running multiple replicas.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	ttl    time.Duration
	now    func() time.Time
}

// NewMemoryStore creates a memory-backed token store with the given TTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		tokens: make(map[string]time.Time),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue generates a cryptographically random token and stores it with
// expiry = now + TTL. Expired entries encountered along the way are purged
// opportunistically, so the map can't grow without bound.
func (s *MemoryStore) Issue(_ context.Context) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for t, expiry := range s.tokens {
		if now.After(expiry) {
			delete(s.tokens, t)
		}
	}
	s.tokens[token] = now.Add(s.ttl)

	return token, nil
}

// Validate is an atomic check-and-delete: the entry is removed whether it
// was live or expired, making tokens strictly one-time-use.
func (s *MemoryStore) Validate(_ context.Context, token string) bool {
	if token == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.tokens[token]
	if !ok {
		return false
	}
	delete(s.tokens, token)

	return !s.now().After(expiry)
}

// generateToken returns a hex-encoded 256-bit random value.
func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
