package otp

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "otp:"

// Records are stored as Redis hashes so the attempt counter can be
// bumped with HINCRBY instead of a read-modify-write cycle. The key
// TTL mirrors the record expiry; the service still re-checks
// expires_at so clock skew can only shorten a code's life.
var incrScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return 0
	end
	return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
`)

var verifyScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return 0
	end
	redis.call('HSET', KEYS[1], 'verified', 1, 'attempts', 0)
	return 1
`)

// RedisStore shares passcode records across API replicas.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Put overwrites any existing record and pins the key TTL to the
// record expiry.
func (s *RedisStore) Put(ctx context.Context, rec Record) error {
	key := redisKeyPrefix + rec.Email
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		"code", rec.Code,
		"purpose", rec.Purpose,
		"expires_at", rec.ExpiresAt.UTC().Format(time.RFC3339Nano),
		"attempts", rec.Attempts,
		"verified", boolField(rec.Verified),
	)
	pipe.ExpireAt(ctx, key, rec.ExpiresAt)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	return nil
}

// Get returns the record or (nil, nil) when the key is gone.
func (s *RedisStore) Get(ctx context.Context, email string) (*Record, error) {
	fields, err := s.client.HGetAll(ctx, redisKeyPrefix+email).Result()
	if err != nil {
		return nil, fmt.Errorf("load otp: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, fields["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("decode otp expiry: %w", err)
	}
	attempts, _ := strconv.Atoi(fields["attempts"])
	return &Record{
		Email:     email,
		Code:      fields["code"],
		Purpose:   fields["purpose"],
		ExpiresAt: expiresAt,
		Attempts:  attempts,
		Verified:  fields["verified"] == "1",
	}, nil
}

// Delete removes the record; deleting an absent record is not an error.
func (s *RedisStore) Delete(ctx context.Context, email string) error {
	return s.client.Del(ctx, redisKeyPrefix+email).Err()
}

// IncrementAttempts bumps the failure counter via HINCRBY, which is
// atomic across replicas. Incrementing an absent record reports zero.
func (s *RedisStore) IncrementAttempts(ctx context.Context, email string) (int, error) {
	n, err := incrScript.Run(ctx, s.client, []string{redisKeyPrefix + email}).Int()
	if err != nil {
		return 0, fmt.Errorf("increment otp attempts: %w", err)
	}
	return n, nil
}

// MarkVerified flags the record and zeroes the attempt counter in one
// server-side step.
func (s *RedisStore) MarkVerified(ctx context.Context, email string) error {
	if err := verifyScript.Run(ctx, s.client, []string{redisKeyPrefix + email}).Err(); err != nil {
		return fmt.Errorf("mark otp verified: %w", err)
	}
	return nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
