package ledger

import (
	"context"
	"sync"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
)

// MemoryStore is an in-process api.Store. It backs dry runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries []*api.LedgerEntry
	keys    map[string]bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]bool)}
}

// Seen implements api.Store.
func (s *MemoryStore) Seen(_ context.Context, keys []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]bool)
	for _, k := range keys {
		if s.keys[k] {
			out[k] = true
		}
	}
	return out, nil
}

// Save implements api.Store.
func (s *MemoryStore) Save(_ context.Context, entries []*api.LedgerEntry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, e := range entries {
		if s.keys[e.MessageID] {
			continue
		}
		s.keys[e.MessageID] = true
		s.entries = append(s.entries, e)
		n++
	}
	return n, nil
}

// Entries returns a copy of the stored entries in insertion order.
func (s *MemoryStore) Entries() []*api.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*api.LedgerEntry(nil), s.entries...)
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close implements api.Store.
func (s *MemoryStore) Close() error { return nil }
