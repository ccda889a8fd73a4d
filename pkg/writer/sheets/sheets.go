// Package sheets implements a Store that appends ledger entries to a Google Sheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/writer/record"
)

// DefaultRetryDelay is the wait after a rate-limited request.
const DefaultRetryDelay = 60 * time.Second

// Store appends ledger rows to a Google Sheet. The MessageID column is read
// once on startup to answer Seen.
type Store struct {
	client      *sheets.Service
	spreadsheet *sheets.Spreadsheet
	sheetName   string
	retryDelay  time.Duration
	logger      *slog.Logger

	mu   sync.Mutex
	keys map[string]bool
}

// Config holds configuration for the Sheets store.
type Config struct {
	// SheetTitle is the title for a new spreadsheet (if SheetID is empty).
	SheetTitle string
	// SheetID is the ID of an existing spreadsheet to use.
	SheetID string
	// SheetName is the name of the sheet within the spreadsheet.
	SheetName string
	// RetryDelay is the wait between attempts after HTTP 429.
	// Defaults to DefaultRetryDelay.
	RetryDelay time.Duration
	// Options are extra client options, such as a custom endpoint.
	Options []option.ClientOption
}

// New creates a new Sheets store.
func New(httpClient *http.Client, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SheetName == "" {
		cfg.SheetName = "Sheet1"
	}
	if cfg.SheetTitle == "" {
		cfg.SheetTitle = "SMS Ledger"
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}

	opts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, cfg.Options...)
	client, err := sheets.NewService(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	s := &Store{
		client:     client,
		sheetName:  cfg.SheetName,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
		keys:       make(map[string]bool),
	}

	ctx := context.Background()
	spreadsheet, err := s.initSpreadsheet(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing spreadsheet: %w", err)
	}
	s.spreadsheet = spreadsheet

	if err := s.loadKeys(ctx); err != nil {
		return nil, fmt.Errorf("reading message ids: %w", err)
	}

	logger.Info("sheets store initialized",
		"spreadsheet_id", spreadsheet.SpreadsheetId,
		"existing_count", len(s.keys),
	)

	return s, nil
}

func (s *Store) initSpreadsheet(ctx context.Context, cfg Config) (*sheets.Spreadsheet, error) {
	// Try to get existing spreadsheet
	if cfg.SheetID != "" {
		spreadsheet, err := s.client.Spreadsheets.Get(cfg.SheetID).Context(ctx).Do()
		if err == nil {
			s.logger.Info("using existing spreadsheet", "title", spreadsheet.Properties.Title, "id", cfg.SheetID)
			return spreadsheet, nil
		}
		s.logger.Warn("failed to get spreadsheet, will create new one", "id", cfg.SheetID, "error", err)
	}

	// Create new spreadsheet
	spreadsheet, err := s.client.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title: cfg.SheetTitle,
		},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("creating spreadsheet: %w", err)
	}

	s.logger.Info("created new spreadsheet", "title", cfg.SheetTitle, "id", spreadsheet.SpreadsheetId)

	if err := s.writeHeaders(ctx, spreadsheet.SpreadsheetId); err != nil {
		return nil, fmt.Errorf("writing headers: %w", err)
	}

	return spreadsheet, nil
}

func (s *Store) writeHeaders(ctx context.Context, spreadsheetID string) error {
	headerRange := fmt.Sprintf("%s!A1:I1", s.sheetName)
	row := make([]any, len(record.Header))
	for i, h := range record.Header {
		row[i] = h
	}
	headerReq := sheets.ValueRange{Values: [][]any{row}}

	_, err := s.client.Spreadsheets.Values.Update(spreadsheetID, headerRange, &headerReq).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("updating headers: %w", err)
	}

	s.logger.Info("wrote headers to spreadsheet")
	return nil
}

// loadKeys reads the MessageID column below the header.
func (s *Store) loadKeys(ctx context.Context) error {
	readRange := fmt.Sprintf("%s!I2:I", s.sheetName)
	resp, err := s.client.Spreadsheets.Values.Get(s.spreadsheet.SpreadsheetId, readRange).Context(ctx).Do()
	if err != nil {
		return err
	}
	for _, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if id, ok := row[0].(string); ok && id != "" {
			s.keys[id] = true
		}
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

// Save appends the unseen entries in a single API call.
func (s *Store) Save(ctx context.Context, entries []*api.LedgerEntry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values := make([][]any, 0, len(entries))
	added := make(map[string]bool, len(entries))
	for _, e := range entries {
		if s.keys[e.MessageID] || added[e.MessageID] {
			continue
		}
		added[e.MessageID] = true
		values = append(values, record.Cells(e))
	}
	if len(values) == 0 {
		return 0, nil
	}

	writeRange := fmt.Sprintf("%s!A2:I2", s.sheetName)
	writeReq := sheets.ValueRange{
		Values: values,
	}

	err := retry.Do(
		func() error {
			_, err := s.client.Spreadsheets.Values.Append(s.spreadsheet.SpreadsheetId, writeRange, &writeReq).
				ValueInputOption("USER_ENTERED").
				InsertDataOption("INSERT_ROWS").
				Context(ctx).
				Do()
			return err
		},
		retry.RetryIf(func(err error) bool {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
				s.logger.Warn("rate limited, will retry", "error", err)
				return true
			}
			return false
		}),
		retry.Attempts(3),
		retry.Delay(s.retryDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return 0, fmt.Errorf("appending batch to sheet: %w", err)
	}

	for k := range added {
		s.keys[k] = true
	}

	s.logger.Info("wrote ledger batch", "count", len(values))
	return len(values), nil
}

// SpreadsheetID returns the ID of the spreadsheet being written to.
func (s *Store) SpreadsheetID() string {
	if s.spreadsheet == nil {
		return ""
	}
	return s.spreadsheet.SpreadsheetId
}

// Close implements api.Store.
func (s *Store) Close() error { return nil }
