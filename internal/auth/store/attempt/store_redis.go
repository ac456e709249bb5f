package attempt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"formbridge/pkg/platform/sentinel"
)

const attemptKeyPrefix = "login:state:"

// RedisStore keeps pending attempts in Redis so multiple instances can share
// login state. Entries carry their TTL on the key itself; GETDEL gives the
// same single-use guarantee the memory store provides under its mutex.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis constructs a Redis-backed attempt store.
func NewRedis(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, state, codeVerifier string, _ time.Time) error {
	if err := s.client.Set(ctx, attemptKeyPrefix+state, codeVerifier, s.ttl).Err(); err != nil {
		return fmt.Errorf("store login attempt: %w", err)
	}
	return nil
}

func (s *RedisStore) Take(ctx context.Context, state string, _ time.Time) (string, error) {
	verifier, err := s.client.GetDel(ctx, attemptKeyPrefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("login attempt not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("take login attempt: %w", err)
	}
	return verifier, nil
}

// SweepExpired is a no-op for Redis; keys expire server-side.
func (s *RedisStore) SweepExpired(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}
