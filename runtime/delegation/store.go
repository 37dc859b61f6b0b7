package delegation

import "sync"

// Store is the in-memory index of in-flight correlation entries keyed by
// remote id. It can be replaced by a Redis or DB implementation later
// without changing callers.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

func NewStore() *Store {
	return &Store{entries: make(map[string]*Entry)}
}

// Create registers a new entry. If the remote id is already tracked the
// existing pointer is returned.
func (s *Store) Create(entry *Entry) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[entry.RemoteID]; ok {
		return existing
	}
	s.entries[entry.RemoteID] = entry
	return entry
}

func (s *Store) Get(remoteID string) *Entry {
	s.mu.RLock()
	entry := s.entries[remoteID]
	s.mu.RUnlock()
	return entry
}

// Remove atomically claims and deletes an entry, returning nil when the
// entry was already claimed. This is what makes duplicate and late result
// deliveries idempotent by construction.
func (s *Store) Remove(remoteID string) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[remoteID]
	if !ok {
		return nil
	}
	delete(s.entries, remoteID)
	return entry
}

// Iterate executes fn for each entry under read lock.
func (s *Store) Iterate(fn func(remoteID string, entry *Entry)) {
	s.mu.RLock()
	for id, entry := range s.entries {
		fn(id, entry)
	}
	s.mu.RUnlock()
}

// Size returns the number of tracked entries.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
