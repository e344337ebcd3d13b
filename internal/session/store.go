// Package session implements the server-side session store. Tokens
// are opaque 256-bit random strings owned exclusively by the store;
// nothing about a token is derivable from the user it belongs to.
// Clients carry the token in an HttpOnly cookie and every request is
// resolved through Get, so revocation and expiry take effect
// immediately.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// DefaultTTL is the absolute session lifetime. Expiry is fixed at
// creation time; sessions are not sliding.
const DefaultTTL = 24 * time.Hour

// tokenBytes is the amount of randomness per token: 32 bytes = 256
// bits, hex-encoded to 64 characters.
const tokenBytes = 32

// Data is the identity snapshot attached to a token at creation.
type Data struct {
	UserID    uint64    `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is dead at the given instant.
// The deadline itself is still valid: a lookup at now == ExpiresAt
// succeeds.
func (d *Data) Expired(now time.Time) bool {
	return now.After(d.ExpiresAt)
}

// Store is the keyed expiring session store. Get returns (nil, nil)
// for a token that was never issued, was deleted, or has expired —
// absence is the only negative signal. Delete is idempotent. Sweep
// removes expired entries and is safe to call concurrently with the
// other operations.
//
// The memory implementation serves single-process deployments and
// tests; the Redis implementation is the production default because
// it survives restarts and horizontal scaling.
type Store interface {
	Create(ctx context.Context, data Data) (string, error)
	Get(ctx context.Context, token string) (*Data, error)
	Delete(ctx context.Context, token string) error
	Sweep(ctx context.Context) error
}

// NewToken returns a cryptographically random opaque session token.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
