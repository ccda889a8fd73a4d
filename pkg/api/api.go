// Package api defines the core interfaces and data structures for smsledger.
package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// RawMessage is a single inbox message as supplied by a Reader.
type RawMessage struct {
	ID              string `json:"id"`
	Sender          string `json:"sender"`
	Body            string `json:"body"`
	TimestampMillis int64  `json:"timestampMillis"`
}

// Key returns the stable identifier used for import dedup. Messages without a
// native ID are keyed by a hash of sender, timestamp and body.
func (m RawMessage) Key() string {
	if m.ID != "" {
		return m.ID
	}
	h := sha256.New()
	h.Write([]byte(m.Sender))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.FormatInt(m.TimestampMillis, 10)))
	h.Write([]byte{'|'})
	h.Write([]byte(m.Body))
	return "sha256:" + hex.EncodeToString(h.Sum(nil))[:16]
}

// Time returns the message timestamp, or the zero time when it is unset.
func (m RawMessage) Time() time.Time {
	if m.TimestampMillis <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(m.TimestampMillis)
}

// ParsedTransaction is the result of running the field extractor on one message body.
// Optional fields are nil when they could not be extracted.
type ParsedTransaction struct {
	Outcome     Outcome          `json:"outcome"`
	Direction   Direction        `json:"direction,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Merchant    *string          `json:"merchant,omitempty"`
	Category    Category         `json:"category"`
	PaymentMode PaymentMode      `json:"paymentMode,omitempty"`
	CardLast4   *string          `json:"cardLast4,omitempty"`
	UPIID       *string          `json:"upiId,omitempty"`
	Balance     *decimal.Decimal `json:"balance,omitempty"`
	Date        civil.Date       `json:"date"`
	// Confidence is an additive evidence score. It is not clamped and reaches 1.1
	// when every signal fires.
	Confidence float64      `json:"confidence"`
	Rules      MatchedRules `json:"rules"`

	OriginalMessage string `json:"originalMessage"`
	Sender          string `json:"sender"`
}

// IsTransaction reports whether the message was classified as a transaction.
func (p ParsedTransaction) IsTransaction() bool {
	return p.Outcome == OutcomeTransaction
}

// HasPositiveAmount reports whether an amount was extracted and is strictly positive.
func (p ParsedTransaction) HasPositiveAmount() bool {
	return p.Amount != nil && p.Amount.IsPositive()
}

// MatchedRules records which named rule or keyword produced each field.
type MatchedRules struct {
	Amount        string `json:"amount,omitempty"`
	DebitKeyword  string `json:"debitKeyword,omitempty"`
	CreditKeyword string `json:"creditKeyword,omitempty"`
	Card          string `json:"card,omitempty"`
	UPI           string `json:"upi,omitempty"`
	PaymentMode   string `json:"paymentMode,omitempty"`
	Merchant      string `json:"merchant,omitempty"`
	Balance       string `json:"balance,omitempty"`
	Date          string `json:"date,omitempty"`
	Category      string `json:"category,omitempty"`
}

// ParsedMessage pairs a source message with its parse result.
type ParsedMessage struct {
	Message     RawMessage
	Transaction ParsedTransaction
}

// LedgerEntry is a persisted transaction record.
type LedgerEntry struct {
	ID          string          `json:"id"`
	MessageID   string          `json:"messageId"`
	Amount      decimal.Decimal `json:"amount"`
	Direction   Direction       `json:"direction"`
	Category    Category        `json:"category"`
	PaymentMode PaymentMode     `json:"paymentMode"`
	Date        civil.Date      `json:"date"`
	Note        string          `json:"note"`
	Source      Source          `json:"source"`
	Sender      string          `json:"sender,omitempty"`
	Confidence  float64         `json:"confidence"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Reader reads raw messages from a source and sends them to the provided channel.
// Implementations must close out when done or on error.
// Keys of messages that were stored (or were already present) are sent on ackChan.
type Reader interface {
	Read(ctx context.Context, out chan<- RawMessage, ackChan <-chan string) error
}

// Store persists ledger entries and remembers which source messages they came from.
type Store interface {
	// Seen returns the subset of keys that are already stored.
	Seen(ctx context.Context, keys []string) (map[string]bool, error)
	// Save persists entries and returns how many were newly written.
	// Entries whose MessageID is already stored are skipped.
	Save(ctx context.Context, entries []*LedgerEntry) (int, error)
	Close() error
}
