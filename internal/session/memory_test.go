package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subashmuthub/lab-management-system/internal/model"
)

var baseTime = time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)

func newClockedStore(ttl time.Duration) (*MemoryStore, *time.Time) {
	clock := baseTime
	s := NewMemoryStore(ttl)
	s.now = func() time.Time { return clock }
	return s, &clock
}

func testData() Data {
	return Data{UserID: 42, Email: "dana@example.edu", Role: model.RoleStudent}
}

func TestCreateAndGet(t *testing.T) {
	s, _ := newClockedStore(time.Hour)

	token, err := s.Create(context.Background(), testData())
	require.NoError(t, err)
	assert.Len(t, token, 64, "token is 32 random bytes hex encoded")

	got, err := s.Get(context.Background(), token)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint64(42), got.UserID)
	assert.Equal(t, "dana@example.edu", got.Email)
	assert.Equal(t, model.RoleStudent, got.Role)
	assert.Equal(t, baseTime.Add(time.Hour), got.ExpiresAt)
}

func TestTokensAreUnique(t *testing.T) {
	s, _ := newClockedStore(time.Hour)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := s.Create(context.Background(), testData())
		require.NoError(t, err)
		assert.False(t, seen[token])
		seen[token] = true
	}
}

func TestGetUnknownToken(t *testing.T) {
	s, _ := newClockedStore(time.Hour)

	got, err := s.Get(context.Background(), "no-such-token")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestExpiryBoundary(t *testing.T) {
	s, clock := newClockedStore(time.Hour)

	token, err := s.Create(context.Background(), testData())
	require.NoError(t, err)

	// Exactly at expiry the session is still live; expiry is exclusive.
	*clock = baseTime.Add(time.Hour)
	got, err := s.Get(context.Background(), token)
	require.NoError(t, err)
	assert.NotNil(t, got)

	*clock = baseTime.Add(time.Hour + time.Nanosecond)
	got, err = s.Get(context.Background(), token)
	require.NoError(t, err)
	assert.Nil(t, got)

	// The expired entry was evicted on read.
	assert.Equal(t, 0, s.Len())
}

func TestDeleteIsIdempotent(t *testing.T) {
	s, _ := newClockedStore(time.Hour)

	token, err := s.Create(context.Background(), testData())
	require.NoError(t, err)

	require.NoError(t, s.Delete(context.Background(), token))
	got, err := s.Get(context.Background(), token)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Second delete of the same token succeeds quietly.
	assert.NoError(t, s.Delete(context.Background(), token))
	assert.NoError(t, s.Delete(context.Background(), "never-existed"))
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	s, clock := newClockedStore(time.Hour)

	_, err := s.Create(context.Background(), testData())
	require.NoError(t, err)

	*clock = baseTime.Add(30 * time.Minute)
	live, err := s.Create(context.Background(), testData())
	require.NoError(t, err)

	*clock = baseTime.Add(time.Hour + time.Minute)
	require.NoError(t, s.Sweep(context.Background()))
	assert.Equal(t, 1, s.Len())

	got, err := s.Get(context.Background(), live)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestZeroTTLFallsBackToDefault(t *testing.T) {
	s := NewMemoryStore(0)
	assert.Equal(t, DefaultTTL, s.ttl)
}
