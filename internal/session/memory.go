package session

import (
	"context"
	"sync"
	"time"
)

// sweepEvery bounds how often Create triggers an amortized sweep.
const sweepEvery = 5 * time.Minute

// MemoryStore keeps sessions in a mutex-guarded map. Expired entries
// are evicted lazily on Get and amortized on Create, so memory stays
// bounded without a background timer. State is lost on restart; use
// the Redis store when that matters.
type MemoryStore struct {
	mu        sync.Mutex
	sessions  map[string]Data
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time // injectable for tests
}

// NewMemoryStore returns an empty store with the given TTL. A zero
// ttl falls back to DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		sessions: make(map[string]Data),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create issues a fresh token for the identity snapshot and stores it
// with a fixed expiry of now+TTL. It also sweeps expired entries when
// the last sweep is older than sweepEvery.
func (s *MemoryStore) Create(_ context.Context, data Data) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	data.CreatedAt = now
	data.ExpiresAt = now.Add(s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.lastSweep) >= sweepEvery {
		s.sweepLocked(now)
		s.lastSweep = now
	}
	s.sessions[token] = data
	return token, nil
}

// Get returns the session data for a live token, or (nil, nil) when
// the token is unknown or expired. Expired entries are deleted on the
// way out.
func (s *MemoryStore) Get(_ context.Context, token string) (*Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.sessions[token]
	if !ok {
		return nil, nil
	}
	if data.Expired(s.now().UTC()) {
		delete(s.sessions, token)
		return nil, nil
	}
	return &data, nil
}

// Delete removes the token. Deleting an absent token is not an error.
func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

// Sweep removes every expired entry.
func (s *MemoryStore) Sweep(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(s.now().UTC())
	return nil
}

// Len reports the number of stored sessions, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *MemoryStore) sweepLocked(now time.Time) {
	for token, data := range s.sessions {
		if data.Expired(now) {
			delete(s.sessions, token)
		}
	}
}
