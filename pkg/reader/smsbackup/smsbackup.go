// Package smsbackup implements a Reader over "SMS Backup & Restore" XML exports.
package smsbackup

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
)

// Message types used by the backup format.
const (
	TypeInbox = 1
	TypeSent  = 2
)

// Config holds configuration for the SMS backup reader.
type Config struct {
	// Path is the backup XML file.
	Path string
	// IncludeSent also reads outgoing messages. Only the inbox is read by default.
	IncludeSent bool
	// Senders, when set, keeps only messages whose address matches one of
	// them, case-insensitively.
	Senders []string
	// Since drops messages received before this time.
	Since time.Time
}

// sms is one <sms> element of the backup.
type sms struct {
	Address string `xml:"address,attr"`
	Body    string `xml:"body,attr"`
	Date    string `xml:"date,attr"`
	Type    int    `xml:"type,attr"`
}

// Reader streams messages from a backup file.
type Reader struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a new SMS backup reader.
func New(cfg Config, logger *slog.Logger) (*Reader, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{cfg: cfg, logger: logger}, nil
}

// Read sends every matching message to out and closes it at end of file.
// Backups carry no message id, so messages are keyed by content.
func (r *Reader) Read(ctx context.Context, out chan<- api.RawMessage, _ <-chan string) error {
	defer close(out)

	f, err := os.Open(r.cfg.Path)
	if err != nil {
		return fmt.Errorf("opening backup: %w", err)
	}
	defer f.Close()

	n, err := r.decode(ctx, f, out)
	if err != nil {
		return err
	}
	r.logger.Info("read sms backup", "path", r.cfg.Path, "messages", n)
	return nil
}

func (r *Reader) decode(ctx context.Context, src io.Reader, out chan<- api.RawMessage) (int, error) {
	dec := xml.NewDecoder(src)
	// Backups often contain character references to lone UTF-16 surrogates.
	dec.Strict = false

	sent := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return sent, nil
		}
		if err != nil {
			return sent, fmt.Errorf("decoding backup: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "sms" {
			continue
		}

		var s sms
		if err := dec.DecodeElement(&s, &start); err != nil {
			r.logger.Warn("skipping malformed sms element", "error", err)
			continue
		}
		msg, ok := r.convert(s)
		if !ok {
			continue
		}

		select {
		case <-ctx.Done():
			return sent, ctx.Err()
		case out <- msg:
			sent++
		}
	}
}

func (r *Reader) convert(s sms) (api.RawMessage, bool) {
	if s.Type != TypeInbox && !(r.cfg.IncludeSent && s.Type == TypeSent) {
		return api.RawMessage{}, false
	}
	if len(r.cfg.Senders) > 0 && !matchesSender(s.Address, r.cfg.Senders) {
		return api.RawMessage{}, false
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(s.Date), 10, 64)
	if err != nil {
		r.logger.Debug("sms without a usable date", "address", s.Address, "date", s.Date)
		ts = 0
	}
	if !r.cfg.Since.IsZero() && ts > 0 && time.UnixMilli(ts).Before(r.cfg.Since) {
		return api.RawMessage{}, false
	}

	return api.RawMessage{
		Sender:          s.Address,
		Body:            s.Body,
		TimestampMillis: ts,
	}, true
}

func matchesSender(address string, senders []string) bool {
	for _, s := range senders {
		if strings.EqualFold(address, s) {
			return true
		}
	}
	return false
}
