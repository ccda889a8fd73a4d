// Package json implements a Store that keeps the ledger in a JSON file.
package json

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
)

// Store keeps ledger entries as a JSON array on disk. The whole array is
// rewritten on every Save.
type Store struct {
	filePath string
	entries  []*api.LedgerEntry
	keys     map[string]bool
	mu       sync.Mutex
	logger   *slog.Logger
}

// Config holds configuration for the JSON store.
type Config struct {
	// FilePath is the path to the JSON ledger file.
	FilePath string
}

// New creates a JSON store, loading any entries already in the file.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("file path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		filePath: cfg.FilePath,
		keys:     make(map[string]bool),
		logger:   logger,
	}

	if err := s.loadExisting(); err != nil {
		return nil, fmt.Errorf("loading %s: %w", cfg.FilePath, err)
	}

	logger.Info("json store initialized", "file", cfg.FilePath, "existing_count", len(s.entries))
	return s, nil
}

// loadExisting loads existing entries from the JSON file if it exists.
func (s *Store) loadExisting() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, &s.entries); err != nil {
		return err
	}
	for _, e := range s.entries {
		s.keys[e.MessageID] = true
	}
	return nil
}

// Seen implements api.Store.
func (s *Store) Seen(_ context.Context, keys []string) (map[string]bool, error) {
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

// Save appends entries with unseen message ids and rewrites the file.
func (s *Store) Save(_ context.Context, entries []*api.LedgerEntry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := make([]*api.LedgerEntry, 0, len(entries))
	added := make(map[string]bool, len(entries))
	for _, e := range entries {
		if s.keys[e.MessageID] || added[e.MessageID] {
			continue
		}
		added[e.MessageID] = true
		fresh = append(fresh, e)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	all := append(s.entries, fresh...)

	// Write entire array to file (JSON doesn't support appending)
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("marshaling json: %w", err)
	}

	if err := os.WriteFile(s.filePath, data, 0o600); err != nil {
		return 0, fmt.Errorf("writing json file: %w", err)
	}

	s.entries = all
	for k := range added {
		s.keys[k] = true
	}

	s.logger.Debug("wrote entries to json",
		"batch_count", len(fresh),
		"total_count", len(s.entries),
	)
	return len(fresh), nil
}

// Entries returns a copy of the stored entries in file order.
func (s *Store) Entries() []*api.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*api.LedgerEntry(nil), s.entries...)
}

// Close implements api.Store. The file is written on every Save.
func (s *Store) Close() error { return nil }
