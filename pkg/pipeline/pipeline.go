// Package pipeline runs the parser over a batch of raw messages and keeps the
// accepted transactions, newest first.
package pipeline

import (
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/parser"
)

// Pipeline filters, parses and orders message batches.
type Pipeline struct {
	parser     *parser.Parser
	workers    int
	senderGate bool
	progress   func()
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWorkers bounds the number of messages parsed concurrently.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithSenderGate drops messages whose sender is not a known bank or payment service.
func WithSenderGate(enabled bool) Option {
	return func(p *Pipeline) {
		p.senderGate = enabled
	}
}

// WithProgress registers a callback invoked once per inspected message.
// It may be called from several goroutines.
func WithProgress(fn func()) Option {
	return func(p *Pipeline) {
		p.progress = fn
	}
}

// New creates a Pipeline around p. A nil parser uses the default ruleset.
func New(p *parser.Parser, opts ...Option) *Pipeline {
	if p == nil {
		p = parser.New(nil)
	}
	pl := &Pipeline{
		parser:  p,
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(pl)
	}
	return pl
}

// Parser returns the underlying parser.
func (pl *Pipeline) Parser() *parser.Parser {
	return pl.parser
}

type slot struct {
	msg    api.RawMessage
	parsed api.ParsedTransaction
	keep   bool
}

// Process parses msgs and returns the transactions with a positive amount,
// sorted by date descending, then message timestamp descending. Messages that
// compare equal keep their input order. Nil entries and entries with an empty
// body are skipped.
func (pl *Pipeline) Process(msgs []*api.RawMessage) []api.ParsedMessage {
	slots := make([]slot, len(msgs))

	var g errgroup.Group
	g.SetLimit(pl.workers)
	for i, m := range msgs {
		if m == nil || m.Body == "" {
			pl.tick()
			continue
		}
		g.Go(func() error {
			defer pl.tick()
			if pl.senderGate && !pl.parser.IsBankSender(m.Sender) {
				return nil
			}
			fallback := pl.parser.DateOf(m.Time())
			tx := pl.parser.Parse(m.Body, m.Sender, &fallback)
			slots[i] = slot{
				msg:    *m,
				parsed: tx,
				keep:   tx.IsTransaction() && tx.HasPositiveAmount(),
			}
			return nil
		})
	}
	// Workers never return errors.
	_ = g.Wait()

	out := make([]api.ParsedMessage, 0, len(slots))
	for _, s := range slots {
		if s.keep {
			out = append(out, api.ParsedMessage{Message: s.msg, Transaction: s.parsed})
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		da, db := out[a].Transaction.Date, out[b].Transaction.Date
		if da != db {
			return da.After(db)
		}
		return out[a].Message.TimestampMillis > out[b].Message.TimestampMillis
	})
	return out
}

func (pl *Pipeline) tick() {
	if pl.progress != nil {
		pl.progress()
	}
}
