package csrf

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces token keys in Redis.
const keyPrefix = "csrf:"

// RedisStore is a Store backed by Redis, for multi-replica deployments
// where every gateway process must honor tokens issued by any other.
// Expiry is delegated to Redis TTLs and one-time-use to GETDEL, which is
// atomic server-side.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed token store with the given TTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Issue generates a token and stores it with a TTL. No sweep is needed:
// Redis expires keys on its own.
func (s *RedisStore) Issue(ctx context.Context) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, keyPrefix+token, 1, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Validate consumes the token via GETDEL. A Redis failure counts as
// invalid: for a security gate, fail closed.
func (s *RedisStore) Validate(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}

	err := s.client.GetDel(ctx, keyPrefix+token).Err()
	if err == nil {
		return true
	}
	if !errors.Is(err, redis.Nil) {
		slog.Warn("csrf token lookup failed", slog.Any("error", err))
	}
	return false
}
