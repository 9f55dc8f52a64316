package revocation

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and single-node development.
// Expired entries are dropped lazily on lookup; Compact reclaims the rest.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]time.Time
	nowF func() time.Time
}

// NewMemoryStore returns an empty in-memory revocation store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]time.Time),
		nowF: time.Now,
	}
}

// Revoke marks id revoked until the deadline, keeping the later deadline when
// an entry already exists.
func (s *MemoryStore) Revoke(ctx context.Context, id string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.m[id]; !ok || until.After(existing) {
		s.m[id] = until
	}
	return nil
}

// IsRevoked reports whether id has a live revocation entry.
func (s *MemoryStore) IsRevoked(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	until, ok := s.m[id]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if !until.After(s.nowF()) {
		s.mu.Lock()
		// Re-check under the write lock; a concurrent Revoke may have extended it.
		if u, ok := s.m[id]; ok && !u.After(s.nowF()) {
			delete(s.m, id)
		}
		s.mu.Unlock()
		return false, nil
	}
	return true, nil
}

// Until returns the revocation deadline for id, if present. For tests.
func (s *MemoryStore) Until(id string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	until, ok := s.m[id]
	return until, ok
}

// Compact drops expired entries. Memory hygiene only; correctness never
// depends on it running.
func (s *MemoryStore) Compact() {
	now := s.nowF()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, until := range s.m {
		if !until.After(now) {
			delete(s.m, id)
		}
	}
}
