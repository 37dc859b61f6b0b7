// Package memory provides an in-memory artifact publisher for tests and
// single-process deployments.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Service keeps published artifacts in a map keyed by their locator.
type Service struct {
	mu    sync.RWMutex
	seq   int
	items map[string][]byte
}

func New() *Service {
	return &Service{items: make(map[string][]byte)}
}

// Publish stores the data and returns a mem:// locator.
func (s *Service) Publish(_ context.Context, name string, data []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	locator := fmt.Sprintf("mem://artifacts/%d/%s", s.seq, name)
	stored := make([]byte, len(data))
	copy(stored, data)
	s.items[locator] = stored
	return locator, nil
}

// Get returns a previously published artifact.
func (s *Service) Get(locator string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.items[locator]
	return data, ok
}

// Size returns the number of stored artifacts.
func (s *Service) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
