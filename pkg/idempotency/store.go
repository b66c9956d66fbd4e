// Package idempotency tracks in-flight message IDs so the broker can reject
// a message it has already admitted.
package idempotency

import "sync"

// Store is a concurrency-safe set of message IDs. In permanent mode,
// RemoveProcessed is a no-op and IDs accumulate for the life of the
// process; in time-in-flight mode (the default) a consumer releases an ID
// on success so the same ID can be re-admitted later, e.g. after a replay.
type Store struct {
	mu        sync.Mutex
	seen      map[string]struct{}
	permanent bool
}

// New builds a Store. permanent disables RemoveProcessed.
func New(permanent bool) *Store {
	return &Store{
		seen:      make(map[string]struct{}),
		permanent: permanent,
	}
}

// AlreadyProcessed reports whether id was already admitted, atomically
// inserting it on first sight so the caller's check-then-act is race-free.
func (s *Store) AlreadyProcessed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[id]; ok {
		return true
	}
	s.seen[id] = struct{}{}
	return false
}

// RemoveProcessed releases id so it may be re-admitted. No-op in permanent
// mode.
func (s *Store) RemoveProcessed(id string) {
	if s.permanent {
		return
	}
	s.mu.Lock()
	delete(s.seen, id)
	s.mu.Unlock()
}

// Clear empties the store.
func (s *Store) Clear() {
	s.mu.Lock()
	s.seen = make(map[string]struct{})
	s.mu.Unlock()
}

// Len reports the number of currently tracked IDs, for diagnostics.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
