package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ratePrefix namespaces limiter keys in Redis.
const ratePrefix = "rate:"

// RedisFixedWindow is a fixed-window limiter whose counters live in Redis,
// so all gateway replicas share one budget per client. The window starts
// at the first request (INCR creates the key, EXPIRE stamps the window)
// and the boundary-burst behavior matches the in-process limiter.
type RedisFixedWindow struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRedisFixedWindow creates a Redis-backed fixed-window limiter.
func NewRedisFixedWindow(client *redis.Client, limit int, window time.Duration) *RedisFixedWindow {
	return &RedisFixedWindow{client: client, limit: limit, window: window}
}

// Allow increments the client's counter, stamping the window TTL when the
// counter is created. INCR is atomic server-side, so concurrent replicas
// cannot lose increments.
func (rw *RedisFixedWindow) Allow(ctx context.Context, clientID string) (bool, error) {
	key := ratePrefix + clientID

	count, err := rw.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("incrementing rate counter for %s: %w", clientID, err)
	}

	if count == 1 {
		if err := rw.client.Expire(ctx, key, rw.window).Err(); err != nil {
			return false, fmt.Errorf("setting window expiry for %s: %w", clientID, err)
		}
	}

	return count <= int64(rw.limit), nil
}
