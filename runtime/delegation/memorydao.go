package delegation

import (
	"context"
	"sync"
)

// MemoryDAO stores correlation entries purely in memory; useful for unit
// tests and single-instance deployments.
type MemoryDAO struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

func NewMemoryDAO() *MemoryDAO {
	return &MemoryDAO{entries: make(map[string]*Entry)}
}

func (d *MemoryDAO) Save(_ context.Context, entry *Entry) error {
	if entry == nil {
		return nil
	}
	d.mu.Lock()
	d.entries[entry.RemoteID] = entry
	d.mu.Unlock()
	return nil
}

func (d *MemoryDAO) Load(_ context.Context, remoteID string) (*Entry, error) {
	d.mu.RLock()
	entry := d.entries[remoteID]
	d.mu.RUnlock()
	return entry, nil
}

func (d *MemoryDAO) Delete(_ context.Context, remoteID string) error {
	d.mu.Lock()
	delete(d.entries, remoteID)
	d.mu.Unlock()
	return nil
}

func (d *MemoryDAO) List(_ context.Context) ([]*Entry, error) {
	d.mu.RLock()
	out := make([]*Entry, 0, len(d.entries))
	for _, entry := range d.entries {
		out = append(out, entry)
	}
	d.mu.RUnlock()
	return out, nil
}
