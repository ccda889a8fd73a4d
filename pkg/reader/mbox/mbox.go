// Package mbox implements a Reader over bank alert emails stored in an mbox file,
// such as a Google Takeout or Thunderbird export.
package mbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/mail"
	"os"
	"strings"
	"time"

	gombox "github.com/emersion/go-mbox"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/reader/mailtext"
)

// Config holds configuration for the mbox reader.
type Config struct {
	// Path is the mbox file.
	Path string
	// FromContains keeps only messages whose From header contains one of
	// these substrings, case-insensitively. Empty keeps everything.
	FromContains []string
	// IncludeSubject prepends the Subject header to the body. Some banks put
	// the amount only in the subject line.
	IncludeSubject bool
}

// Reader streams messages from an mbox file.
type Reader struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a new mbox reader.
func New(cfg Config, logger *slog.Logger) (*Reader, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{cfg: cfg, logger: logger}, nil
}

// Read sends every matching email to out and closes it at end of file.
// Messages that fail to parse are logged and skipped.
func (r *Reader) Read(ctx context.Context, out chan<- api.RawMessage, _ <-chan string) error {
	defer close(out)

	f, err := os.Open(r.cfg.Path)
	if err != nil {
		return fmt.Errorf("opening mbox: %w", err)
	}
	defer f.Close()

	mr := gombox.NewReader(f)
	sent, skipped := 0, 0
	for {
		raw, err := mr.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading mbox: %w", err)
		}

		msg, ok, err := r.convert(raw)
		if err != nil {
			r.logger.Warn("skipping unreadable message", "index", sent+skipped, "error", err)
			skipped++
			continue
		}
		if !ok {
			skipped++
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- msg:
			sent++
		}
	}

	r.logger.Info("read mbox", "path", r.cfg.Path, "messages", sent, "skipped", skipped)
	return nil
}

func (r *Reader) convert(raw io.Reader) (api.RawMessage, bool, error) {
	m, err := mail.ReadMessage(raw)
	if err != nil {
		return api.RawMessage{}, false, fmt.Errorf("parsing message: %w", err)
	}

	from := m.Header.Get("From")
	if !r.wanted(from) {
		return api.RawMessage{}, false, nil
	}

	body, err := mailtext.Body(m)
	if err != nil {
		return api.RawMessage{}, false, err
	}
	if r.cfg.IncludeSubject {
		if subject := decodeHeader(m.Header.Get("Subject")); subject != "" {
			body = strings.TrimSpace(subject + " " + body)
		}
	}
	if body == "" {
		return api.RawMessage{}, false, nil
	}

	var ts int64
	if date, err := m.Header.Date(); err == nil {
		ts = date.UnixMilli()
	}

	return api.RawMessage{
		ID:              strings.Trim(strings.TrimSpace(m.Header.Get("Message-Id")), "<>"),
		Sender:          mailtext.Address(from),
		Body:            body,
		TimestampMillis: ts,
	}, true, nil
}

func (r *Reader) wanted(from string) bool {
	if len(r.cfg.FromContains) == 0 {
		return true
	}
	lower := strings.ToLower(from)
	for _, s := range r.cfg.FromContains {
		if strings.Contains(lower, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

var wordDecoder = new(mime.WordDecoder)

func decodeHeader(v string) string {
	if d, err := wordDecoder.DecodeHeader(v); err == nil {
		return d
	}
	return v
}

// Write appends msgs to w in mbox format. It is used to build fixtures and
// by the dump command's mbox output.
func Write(w io.Writer, msgs []api.RawMessage) error {
	mw := gombox.NewWriter(w)
	for _, m := range msgs {
		t := m.Time()
		if t.IsZero() {
			t = time.Unix(0, 0)
		}
		from := m.Sender
		if from == "" {
			from = "unknown@localhost"
		}
		mw2, err := mw.CreateMessage(from, t)
		if err != nil {
			return fmt.Errorf("creating mbox message: %w", err)
		}
		hdr := fmt.Sprintf("From: %s\r\nDate: %s\r\nContent-Type: text/plain; charset=utf-8\r\n", from, t.UTC().Format(time.RFC1123Z))
		if m.ID != "" {
			hdr += fmt.Sprintf("Message-Id: <%s>\r\n", m.ID)
		}
		if _, err := io.WriteString(mw2, hdr+"\r\n"+m.Body+"\r\n"); err != nil {
			return fmt.Errorf("writing mbox message: %w", err)
		}
	}
	return mw.Close()
}
