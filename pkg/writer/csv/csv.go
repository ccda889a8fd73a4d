// Package csv implements a Store that appends ledger entries to a CSV file.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/writer/record"
)

// Store appends ledger entries to a CSV file. Message ids already in the
// file are read on open so repeated imports do not add rows.
type Store struct {
	filePath string
	file     *os.File
	writer   *csv.Writer
	keys     map[string]bool
	mu       sync.Mutex
	logger   *slog.Logger
}

// Config holds configuration for the CSV store.
type Config struct {
	// FilePath is the path to the CSV ledger file.
	FilePath string
}

// New opens or creates the CSV file.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("file path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	keys, err := loadKeys(cfg.FilePath)
	if err != nil {
		return nil, fmt.Errorf("reading existing csv: %w", err)
	}

	// Create or open file
	file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening csv file: %w", err)
	}

	s := &Store{
		filePath: cfg.FilePath,
		file:     file,
		writer:   csv.NewWriter(file),
		keys:     keys,
		logger:   logger,
	}

	// Write headers if file is new/empty
	stat, err := file.Stat()
	if err != nil {
		if closeErr := file.Close(); closeErr != nil {
			return nil, fmt.Errorf("stat csv file: %w (close error: %w)", err, closeErr)
		}
		return nil, fmt.Errorf("stat csv file: %w", err)
	}

	if stat.Size() == 0 {
		if err := s.writeHeaders(); err != nil {
			if closeErr := file.Close(); closeErr != nil {
				return nil, fmt.Errorf("writing headers: %w (close error: %w)", err, closeErr)
			}
			return nil, fmt.Errorf("writing headers: %w", err)
		}
	}

	logger.Info("csv store initialized", "file", cfg.FilePath, "existing_count", len(keys))
	return s, nil
}

// loadKeys collects the MessageID column of an existing file. The column is
// located by header name so files with extra columns still work.
func loadKeys(path string) (map[string]bool, error) {
	keys := make(map[string]bool)

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return keys, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return keys, nil
	}
	if err != nil {
		return nil, err
	}
	col := slices.Index(header, record.Header[record.MessageIDColumn])
	if col < 0 {
		return nil, fmt.Errorf("no %s column in header", record.Header[record.MessageIDColumn])
	}

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return keys, nil
		}
		if err != nil {
			return nil, err
		}
		if col < len(row) && row[col] != "" {
			keys[row[col]] = true
		}
	}
}

func (s *Store) writeHeaders() error {
	if err := s.writer.Write(record.Header); err != nil {
		return err
	}
	s.writer.Flush()
	return s.writer.Error()
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

// Save appends a row per entry whose message id is not yet in the file.
func (s *Store) Save(_ context.Context, entries []*api.LedgerEntry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Keys are recorded only once the rows reach the file.
	written := make(map[string]bool)
	for _, e := range entries {
		if s.keys[e.MessageID] || written[e.MessageID] {
			continue
		}
		if err := s.writer.Write(record.Row(e)); err != nil {
			return 0, fmt.Errorf("writing csv record: %w", err)
		}
		written[e.MessageID] = true
	}

	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return 0, fmt.Errorf("flushing csv: %w", err)
	}
	for k := range written {
		s.keys[k] = true
	}
	n := len(written)

	s.logger.Debug("wrote entries to csv", "count", n)
	return n, nil
}

// Close closes the CSV file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writer.Flush()
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("closing csv file: %w", err)
	}

	s.logger.Info("csv store closed", "file", s.filePath)
	return nil
}
