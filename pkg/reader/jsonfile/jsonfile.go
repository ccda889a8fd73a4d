// Package jsonfile reads and writes SMS dumps as a JSON array of
// {id, address, body, date} objects, the shape returned by Android SMS
// content providers.
package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
)

// Entry is one message in a dump. Id and date may be numbers or strings.
type Entry struct {
	ID      flexString `json:"id"`
	Address string     `json:"address"`
	Body    string     `json:"body"`
	Date    flexInt    `json:"date"`
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

// flexInt accepts a JSON number or a numeric string.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("date must be epoch milliseconds: %w", err)
		}
		*f = flexInt(n)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	v, err := n.Int64()
	if err != nil {
		fv, ferr := n.Float64()
		if ferr != nil {
			return fmt.Errorf("date must be epoch milliseconds: %w", err)
		}
		v = int64(fv)
	}
	*f = flexInt(v)
	return nil
}

// Config holds configuration for the JSON file reader.
type Config struct {
	Path string
}

// Reader streams messages from a JSON dump.
type Reader struct {
	path   string
	logger *slog.Logger
}

// New creates a new JSON dump reader.
func New(cfg Config, logger *slog.Logger) (*Reader, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{path: cfg.Path, logger: logger}, nil
}

// Read sends every entry to out and closes it at the end of the array.
// Null entries are skipped.
func (r *Reader) Read(ctx context.Context, out chan<- api.RawMessage, _ <-chan string) error {
	defer close(out)

	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("opening dump: %w", err)
	}
	defer f.Close()

	n, err := Decode(ctx, f, func(m api.RawMessage) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- m:
			return nil
		}
	})
	if err != nil {
		return err
	}
	r.logger.Info("read json dump", "path", r.path, "messages", n)
	return nil
}

// Decode streams the array in src and calls fn for every non-null entry.
func Decode(ctx context.Context, src io.Reader, fn func(api.RawMessage) error) (int, error) {
	dec := json.NewDecoder(src)
	tok, err := dec.Token()
	if err != nil {
		return 0, fmt.Errorf("reading dump: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return 0, fmt.Errorf("dump must be a JSON array")
	}

	n := 0
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		var e *Entry
		if err := dec.Decode(&e); err != nil {
			return n, fmt.Errorf("decoding entry %d: %w", n, err)
		}
		if e == nil {
			continue
		}
		if err := fn(e.RawMessage()); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// RawMessage converts the entry.
func (e Entry) RawMessage() api.RawMessage {
	return api.RawMessage{
		ID:              string(e.ID),
		Sender:          e.Address,
		Body:            e.Body,
		TimestampMillis: int64(e.Date),
	}
}

// FromRawMessage builds the dump entry for m.
func FromRawMessage(m api.RawMessage) Entry {
	return Entry{
		ID:      flexString(m.ID),
		Address: m.Sender,
		Body:    m.Body,
		Date:    flexInt(m.TimestampMillis),
	}
}

// Encoder writes entries as a JSON array, one entry per line.
type Encoder struct {
	w     io.Writer
	count int
}

// NewEncoder creates an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode appends m to the array.
func (e *Encoder) Encode(m api.RawMessage) error {
	b, err := json.Marshal(FromRawMessage(m))
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}
	sep := ",\n  "
	if e.count == 0 {
		sep = "[\n  "
	}
	if _, err := io.WriteString(e.w, sep); err != nil {
		return err
	}
	if _, err := e.w.Write(b); err != nil {
		return err
	}
	e.count++
	return nil
}

// Close terminates the array. An encoder that wrote nothing emits "[]".
func (e *Encoder) Close() error {
	end := "\n]\n"
	if e.count == 0 {
		end = "[]\n"
	}
	_, err := io.WriteString(e.w, end)
	return err
}
