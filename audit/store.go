package audit

import (
	"context"
	"sync"
)

// Store is the AuditStore collaborator interface from spec.md §6: the
// batch operation is the hot path; StoreEvent is the per-item fallback
// used when a batch store fails partway (spec.md §4.G point 2).
type Store interface {
	StoreEvents(ctx context.Context, events []SecurityEvent) error
	StoreEvent(ctx context.Context, event SecurityEvent) error
}

// InMemoryAuditStore is a Store backed by an in-process slice, useful for
// tests and for the bundled example. It is safe for concurrent use.
type InMemoryAuditStore struct {
	mu     sync.Mutex
	events []SecurityEvent
}

// NewInMemoryAuditStore returns an empty InMemoryAuditStore.
func NewInMemoryAuditStore() *InMemoryAuditStore { return &InMemoryAuditStore{} }

// StoreEvents appends the whole batch.
func (s *InMemoryAuditStore) StoreEvents(ctx context.Context, events []SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

// StoreEvent appends a single event.
func (s *InMemoryAuditStore) StoreEvent(ctx context.Context, event SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a snapshot copy of everything stored so far.
func (s *InMemoryAuditStore) Events() []SecurityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SecurityEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Count returns the number of stored events.
func (s *InMemoryAuditStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}
