package otp

import (
	"context"
	"sync"
)

// MemoryStore keeps records in process. Used for OTP_STORE=memory and tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func key(purpose Purpose, email string) string {
	return string(purpose) + ":" + email
}

func (s *MemoryStore) Get(_ context.Context, purpose Purpose, email string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key(purpose, email)]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryStore) Set(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key(rec.Purpose, rec.Email)] = *rec
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, purpose Purpose, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key(purpose, email))
	return nil
}
