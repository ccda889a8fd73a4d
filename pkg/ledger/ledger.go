// Package ledger converts parsed messages into ledger entries and imports them
// into a store without creating duplicates.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
)

// Result summarizes one import.
type Result struct {
	// Imported is the number of entries newly written to the store.
	Imported int
	// Duplicates counts transactions skipped because their message was
	// already stored or appeared earlier in the same batch.
	Duplicates int
	// Keys holds every transaction message key that is now in the store,
	// including duplicates. Readers use them as acknowledgements.
	Keys []string
}

// Importer writes accepted transactions to a Store.
type Importer struct {
	store  api.Store
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewImporter creates an Importer for store.
func NewImporter(store api.Store, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		store:  store,
		logger: logger.With("component", "importer"),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// Import stores the accepted transactions in parsed. Messages whose key is
// already stored, or repeated within parsed, are counted as duplicates.
func (im *Importer) Import(ctx context.Context, parsed []api.ParsedMessage) (Result, error) {
	var res Result

	batch := make(map[string]bool, len(parsed))
	candidates := make([]*api.LedgerEntry, 0, len(parsed))
	for _, pm := range parsed {
		if !pm.Transaction.IsTransaction() || !pm.Transaction.HasPositiveAmount() {
			continue
		}
		key := pm.Message.Key()
		if batch[key] {
			res.Duplicates++
			continue
		}
		batch[key] = true
		res.Keys = append(res.Keys, key)
		candidates = append(candidates, im.entry(pm, key))
	}
	if len(candidates) == 0 {
		return res, nil
	}

	seen, err := im.store.Seen(ctx, res.Keys)
	if err != nil {
		return Result{}, fmt.Errorf("checking stored messages: %w", err)
	}

	fresh := candidates[:0]
	for _, e := range candidates {
		if seen[e.MessageID] {
			res.Duplicates++
			continue
		}
		fresh = append(fresh, e)
	}
	if len(fresh) == 0 {
		im.logger.Debug("nothing new to import", "duplicates", res.Duplicates)
		return res, nil
	}

	n, err := im.store.Save(ctx, fresh)
	if err != nil {
		return Result{}, fmt.Errorf("saving %d entries: %w", len(fresh), err)
	}
	// The store may still reject entries that raced in after Seen.
	res.Duplicates += len(fresh) - n
	res.Imported = n

	im.logger.Info("imported transactions", "imported", res.Imported, "duplicates", res.Duplicates)
	return res, nil
}

func (im *Importer) entry(pm api.ParsedMessage, key string) *api.LedgerEntry {
	return NewEntry(pm, key, im.newID(), im.now())
}

// NewEntry builds the ledger entry for a parsed transaction. The note is the
// merchant when one was extracted, otherwise the sender.
func NewEntry(pm api.ParsedMessage, key, id string, createdAt time.Time) *api.LedgerEntry {
	tx := pm.Transaction
	note := pm.Message.Sender
	if tx.Merchant != nil {
		note = *tx.Merchant
	}
	e := &api.LedgerEntry{
		ID:          id,
		MessageID:   key,
		Direction:   tx.Direction,
		Category:    tx.Category,
		PaymentMode: tx.PaymentMode,
		Date:        tx.Date,
		Note:        note,
		Source:      api.SourceSMS,
		Sender:      pm.Message.Sender,
		Confidence:  tx.Confidence,
		CreatedAt:   createdAt.UTC(),
	}
	if tx.Amount != nil {
		e.Amount = *tx.Amount
	}
	return e
}

// Manual is a transaction entered by hand rather than parsed from a message.
type Manual struct {
	Amount      decimal.Decimal
	Direction   api.Direction
	Category    api.Category
	PaymentMode api.PaymentMode
	Date        civil.Date
	Note        string
}

// NewManualEntry validates m and builds its ledger entry. The message id is
// derived from id so manual entries never collide with parsed messages.
func NewManualEntry(m Manual, id string, createdAt time.Time) (*api.LedgerEntry, error) {
	if !m.Amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive, got %s", m.Amount)
	}
	if m.Direction != api.DirectionExpense && m.Direction != api.DirectionIncome {
		return nil, fmt.Errorf("direction must be %q or %q, got %q", api.DirectionExpense, api.DirectionIncome, m.Direction)
	}
	if m.PaymentMode == api.PaymentModeNone {
		m.PaymentMode = api.PaymentModeCash
	}
	if !m.PaymentMode.Valid() {
		return nil, fmt.Errorf("unknown payment mode %q", m.PaymentMode)
	}
	if m.Category == "" {
		m.Category = api.CategoryOther
	}
	if !m.Date.IsValid() {
		return nil, fmt.Errorf("invalid date %s", m.Date)
	}

	return &api.LedgerEntry{
		ID:          id,
		MessageID:   "manual:" + id,
		Amount:      m.Amount,
		Direction:   m.Direction,
		Category:    m.Category,
		PaymentMode: m.PaymentMode,
		Date:        m.Date,
		Note:        m.Note,
		Source:      api.SourceManual,
		Confidence:  1,
		CreatedAt:   createdAt.UTC(),
	}, nil
}
