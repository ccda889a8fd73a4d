// Package sqlite implements a Store backed by a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
)

// maxParams stays under SQLite's default host parameter limit.
const maxParams = 500

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id            TEXT PRIMARY KEY,
	message_id    TEXT NOT NULL UNIQUE,
	amount        TEXT NOT NULL,
	direction     TEXT NOT NULL,
	category      TEXT NOT NULL,
	payment_mode  TEXT NOT NULL DEFAULT '',
	txn_date      TEXT NOT NULL,
	note          TEXT NOT NULL DEFAULT '',
	source        TEXT NOT NULL,
	sender        TEXT NOT NULL DEFAULT '',
	confidence    REAL NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(txn_date);
`

// Config holds configuration for the SQLite store.
type Config struct {
	// Path is the database file. Parent directories are created.
	Path string
}

// Store persists ledger entries in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens the database and creates the schema.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", cfg.Path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("sqlite store initialized", "path", cfg.Path)
	return &Store{db: db, logger: logger}, nil
}

// Seen implements api.Store.
func (s *Store) Seen(ctx context.Context, keys []string) (map[string]bool, error) {
	out := make(map[string]bool)
	for start := 0; start < len(keys); start += maxParams {
		chunk := keys[start:min(start+maxParams, len(keys))]

		args := make([]any, len(chunk))
		for i, k := range chunk {
			args[i] = k
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")

		rows, err := s.db.QueryContext(ctx,
			`SELECT message_id FROM transactions WHERE message_id IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("querying message ids: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning message id: %w", err)
			}
			out[id] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return out, nil
}

// Save inserts entries in one transaction. Rows whose message_id already
// exists are left untouched.
func (s *Store) Save(ctx context.Context, entries []*api.LedgerEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (
			id, message_id, amount, direction, category, payment_mode,
			txn_date, note, source, sender, confidence, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (message_id) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	n := 0
	for _, e := range entries {
		res, err := stmt.ExecContext(ctx,
			e.ID, e.MessageID, e.Amount.String(), string(e.Direction), string(e.Category),
			string(e.PaymentMode), e.Date.String(), e.Note, string(e.Source), e.Sender,
			e.Confidence, e.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return 0, fmt.Errorf("inserting %s: %w", e.MessageID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		n += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("wrote entries to sqlite", "batch_count", len(entries), "inserted", n)
	return n, nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting transactions: %w", err)
	}
	return n, nil
}

// Entries returns every stored entry, newest date first.
func (s *Store) Entries(ctx context.Context) ([]*api.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, amount, direction, category, payment_mode,
		       txn_date, note, source, sender, confidence, created_at
		FROM transactions ORDER BY txn_date DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var out []*api.LedgerEntry
	for rows.Next() {
		var (
			e                                       api.LedgerEntry
			amount, direction, category, mode, date string
			source, created                         string
		)
		if err := rows.Scan(&e.ID, &e.MessageID, &amount, &direction, &category, &mode,
			&date, &e.Note, &source, &e.Sender, &e.Confidence, &created); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parsing amount of %s: %w", e.MessageID, err)
		}
		if e.Date, err = civil.ParseDate(date); err != nil {
			return nil, fmt.Errorf("parsing date of %s: %w", e.MessageID, err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parsing created_at of %s: %w", e.MessageID, err)
		}
		e.Direction = api.Direction(direction)
		e.Category = api.Category(category)
		e.PaymentMode = api.PaymentMode(mode)
		e.Source = api.Source(source)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}
