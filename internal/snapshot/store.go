package snapshot

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrNotFound indicates no snapshot exists for the requested event.
var ErrNotFound = errors.New("snapshot not found")

// Store persists one snapshot per event.
type Store interface {
	Put(ctx context.Context, snap Snapshot) error
	Get(ctx context.Context, event string) (Snapshot, error)
	List(ctx context.Context) ([]string, error)
	Close() error
}

// MemoryStore is the in-process store used when no Redis address is
// configured.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

// NewMemoryStore creates a memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string]Snapshot)}
}

// Put stores a snapshot, replacing any prior one for the same event.
func (s *MemoryStore) Put(_ context.Context, snap Snapshot) error {
	if snap.Event == "" {
		return errors.New("snapshot event name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.Event] = snap
	return nil
}

// Get returns the snapshot for an event.
func (s *MemoryStore) Get(_ context.Context, event string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[event]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return snap, nil
}

// List returns the stored event names in lexical order.
func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := make([]string, 0, len(s.snapshots))
	for event := range s.snapshots {
		events = append(events, event)
	}
	sort.Strings(events)
	return events, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
