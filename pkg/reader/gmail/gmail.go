// Package gmail implements a Reader that pulls bank alert emails from Gmail.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/reader/mailtext"
)

// DefaultInterval is the default time between polls.
const DefaultInterval = 60 * time.Second

// DefaultMaxResults is the default page size for each query.
const DefaultMaxResults = 100

// emittedTTL bounds how long an unacknowledged message id is remembered.
// Non-transaction alerts are never acknowledged and stay unread.
const emittedTTL = 24 * time.Hour

// Query is a named Gmail search whose results are parsed as bank alerts.
type Query struct {
	Name    string
	Query   string
	Enabled bool
}

// Config holds configuration for the Gmail reader.
type Config struct {
	// Queries selects the alert emails to read.
	Queries []Query
	// Interval between polls. Defaults to DefaultInterval.
	Interval time.Duration
	// Once makes Read return after a single poll, once all acknowledgements are in.
	Once bool
	// MaxResults caps the messages listed per query and poll.
	MaxResults int64
	// Options are extra client options, such as a custom endpoint.
	Options []option.ClientOption
}

// Reader reads bank alert emails from Gmail.
type Reader struct {
	client     *gmail.Service
	queries    []Query
	interval   time.Duration
	once       bool
	maxResults int64
	logger     *slog.Logger

	mu      sync.Mutex
	emitted map[string]time.Time
}

// New creates a new Gmail reader.
func New(httpClient *http.Client, cfg Config, logger *slog.Logger) (*Reader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Queries) == 0 {
		return nil, fmt.Errorf("at least one query is required")
	}

	opts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, cfg.Options...)
	client, err := gmail.NewService(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	return &Reader{
		client:     client,
		queries:    cfg.Queries,
		interval:   interval,
		once:       cfg.Once,
		maxResults: maxResults,
		logger:     logger,
		emitted:    make(map[string]time.Time),
	}, nil
}

// Read polls the configured queries and sends each new message to out.
// It runs until the context is canceled, or after one poll in Once mode.
// Emails are only marked as read after receiving acknowledgment via ackChan.
func (r *Reader) Read(ctx context.Context, out chan<- api.RawMessage, ackChan <-chan string) error {
	acksDone := make(chan struct{})
	go func() {
		defer close(acksDone)
		r.handleAcknowledgments(ctx, ackChan)
	}()

	r.poll(ctx, out)

	if r.once {
		close(out)
		// Acks arrive after the daemon has stored the batch.
		select {
		case <-acksDone:
		case <-ctx.Done():
		}
		return nil
	}
	defer close(out)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("gmail reader stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			r.poll(ctx, out)
		}
	}
}

// handleAcknowledgments marks emails as read when they're successfully stored.
func (r *Reader) handleAcknowledgments(ctx context.Context, ackChan <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case msgID, ok := <-ackChan:
			if !ok {
				r.logger.Debug("acknowledgment channel closed")
				return
			}
			r.markAsRead(ctx, msgID)
			r.release(msgID)
		}
	}
}

// markAsRead marks a message as read in Gmail.
func (r *Reader) markAsRead(ctx context.Context, msgID string) {
	_, err := r.client.Users.Messages.Modify("me", msgID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		r.logger.Warn("failed to mark message as read", "message_id", msgID, "error", err)
	} else {
		r.logger.Debug("marked message as read", "message_id", msgID)
	}
}

func (r *Reader) poll(ctx context.Context, out chan<- api.RawMessage) {
	r.logger.Info("polling gmail", "query_count", len(r.queries))
	r.prune(time.Now())

	var wg sync.WaitGroup
	for _, q := range r.queries {
		if !q.Enabled {
			r.logger.Debug("skipping disabled query", "query", q.Name)
			continue
		}

		wg.Add(1)
		go func(q Query) {
			defer wg.Done()
			r.processQuery(ctx, q, out)
		}(q)
	}
	wg.Wait()

	r.logger.Debug("poll complete")
}

func (r *Reader) processQuery(ctx context.Context, q Query, out chan<- api.RawMessage) {
	logger := r.logger.With("query", q.Name)

	resp, err := r.client.Users.Messages.List("me").Q(q.Query).MaxResults(r.maxResults).Context(ctx).Do()
	if err != nil {
		logger.Error("failed to list messages", "error", err)
		return
	}

	logger.Info("found messages", "count", len(resp.Messages))

	for _, msg := range resp.Messages {
		if !r.claim(msg.Id) {
			continue
		}
		if err := r.processMessage(ctx, msg.Id, out); err != nil {
			logger.Error("failed to process message", "message_id", msg.Id, "error", err)
			r.release(msg.Id)
			continue
		}
	}
}

// claim records msgID as emitted and reports whether it was new. Messages
// matched by several queries, or still unread on the next poll, are sent once.
func (r *Reader) claim(msgID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.emitted[msgID]; ok {
		return false
	}
	r.emitted[msgID] = time.Now()
	return true
}

// prune forgets ids emitted before now minus emittedTTL.
func (r *Reader) prune(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, at := range r.emitted {
		if now.Sub(at) > emittedTTL {
			delete(r.emitted, id)
		}
	}
}

func (r *Reader) release(msgID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.emitted, msgID)
}

func (r *Reader) processMessage(ctx context.Context, msgID string, out chan<- api.RawMessage) error {
	msg, err := r.client.Users.Messages.Get("me", msgID).Format("full").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("getting message: %w", err)
	}

	raw, ok := toRawMessage(msg)
	if !ok {
		r.logger.Warn("empty message body", "message_id", msgID, "subject", header(msg, "Subject"))
		return nil
	}

	r.logger.Debug("read message", "message_id", msgID, "sender", raw.Sender)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- raw:
	}
	return nil
}

// toRawMessage maps a Gmail message to a RawMessage. The sender is the From
// address and the timestamp is Gmail's internal date.
func toRawMessage(msg *gmail.Message) (api.RawMessage, bool) {
	body := extractBody(msg)
	if body == "" {
		return api.RawMessage{}, false
	}
	return api.RawMessage{
		ID:              msg.Id,
		Sender:          mailtext.Address(header(msg, "From")),
		Body:            body,
		TimestampMillis: msg.InternalDate,
	}, true
}

func header(msg *gmail.Message, name string) string {
	if msg.Payload == nil {
		return ""
	}
	for _, h := range msg.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// extractBody returns the first text/plain part, falling back to the first
// text/html part converted to text.
func extractBody(msg *gmail.Message) string {
	if msg.Payload == nil {
		return ""
	}
	plain, html := findParts(msg.Payload)
	if strings.TrimSpace(plain) != "" {
		return mailtext.Collapse(plain)
	}
	if html != "" {
		return mailtext.HTMLToText(html)
	}
	return ""
}

func findParts(part *gmail.MessagePart) (plain, html string) {
	switch {
	case strings.HasPrefix(part.MimeType, "multipart/"):
		for _, child := range part.Parts {
			p, h := findParts(child)
			if plain == "" {
				plain = p
			}
			if html == "" {
				html = h
			}
		}
	case part.MimeType == "text/html":
		html = decodeData(part.Body)
	case part.MimeType == "text/plain", part.MimeType == "":
		plain = decodeData(part.Body)
	}
	return plain, html
}

func decodeData(body *gmail.MessagePartBody) string {
	if body == nil || body.Data == "" {
		return ""
	}
	b, err := base64.URLEncoding.DecodeString(body.Data)
	if err != nil {
		// Gmail usually omits padding.
		b, err = base64.RawURLEncoding.DecodeString(body.Data)
		if err != nil {
			return ""
		}
	}
	return string(b)
}
