package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "session:"

// RedisStore backs sessions with a shared Redis instance so every
// API replica resolves the same tokens and sessions survive process
// restarts. Expiry rides on Redis key TTLs, which makes Sweep a no-op.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an already-connected client. A zero ttl falls
// back to DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Create issues a fresh token and stores the JSON-encoded snapshot
// under it with the store TTL.
func (s *RedisStore) Create(ctx context.Context, data Data) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	data.CreatedAt = now
	data.ExpiresAt = now.Add(s.ttl)

	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+token, raw, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// Get returns the session for a live token, or (nil, nil) when Redis
// has no key for it. The recorded ExpiresAt is re-checked so a clock
// disagreement with Redis can only shorten a session, never extend it.
func (s *RedisStore) Get(ctx context.Context, token string) (*Data, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+token).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var data Data
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if data.Expired(time.Now().UTC()) {
		_ = s.client.Del(ctx, redisKeyPrefix+token).Err()
		return nil, nil
	}
	return &data, nil
}

// Delete removes the token. Deleting an absent token is not an error.
func (s *RedisStore) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, redisKeyPrefix+token).Err()
}

// Sweep is a no-op: Redis evicts expired keys on its own.
func (s *RedisStore) Sweep(context.Context) error { return nil }
