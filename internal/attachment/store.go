// Package attachment is the boundary to blob storage. The engine never
// inspects file contents; it only checks that references on expense line
// items resolve, and propagates them.
package attachment

import (
	"context"
	"sync"
)

// Store resolves opaque attachment references.
type Store interface {
	// Exists reports whether ref resolves to a stored blob.
	Exists(ctx context.Context, ref string) (bool, error)
}

// InMemoryStore is the test implementation: a set of known references.
type InMemoryStore struct {
	mu   sync.RWMutex
	refs map[string]struct{}
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{refs: make(map[string]struct{})}
}

// Put registers a reference as stored.
func (s *InMemoryStore) Put(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs[ref] = struct{}{}
}

func (s *InMemoryStore) Exists(_ context.Context, ref string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.refs[ref]
	return ok, nil
}
