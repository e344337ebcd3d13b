package otp

import (
	"context"
	"sync"
)

// MemoryStore keeps passcode records in a mutex-guarded map for
// single-process deployments and tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Put overwrites any existing record for the email.
func (s *MemoryStore) Put(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Email] = rec
	return nil
}

// Get returns the record or (nil, nil) when absent. Expiry is the
// service's concern, not the store's.
func (s *MemoryStore) Get(_ context.Context, email string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[email]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Delete removes the record; deleting an absent record is not an error.
func (s *MemoryStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, email)
	return nil
}

// IncrementAttempts bumps the failure counter atomically and returns
// the new count. Incrementing an absent record reports zero.
func (s *MemoryStore) IncrementAttempts(_ context.Context, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[email]
	if !ok {
		return 0, nil
	}
	rec.Attempts++
	s.records[email] = rec
	return rec.Attempts, nil
}

// MarkVerified flags the record as consumed-but-held and zeroes the
// attempt counter.
func (s *MemoryStore) MarkVerified(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[email]
	if !ok {
		return nil
	}
	rec.Verified = true
	rec.Attempts = 0
	s.records[email] = rec
	return nil
}
