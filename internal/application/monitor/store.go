package monitor

import (
	"sync"

	"usbspeed/internal/domain/snapshot"
)

// Store holds the current snapshot. Snapshots are replaced whole, never
// modified.
type Store struct {
	mu      sync.RWMutex
	current *snapshot.Snapshot
}

// NewStore returns a store holding the empty snapshot.
func NewStore() *Store {
	return &Store{current: snapshot.Empty()}
}

// Current returns the latest snapshot.
func (s *Store) Current() *snapshot.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Swap installs next and returns the snapshot it replaced. A nil next is
// ignored.
func (s *Store) Swap(next *snapshot.Snapshot) *snapshot.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous := s.current
	if next != nil {
		s.current = next
	}
	return previous
}
