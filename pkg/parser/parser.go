// Package parser turns bank and wallet SMS bodies into structured transactions.
//
// A Parser is immutable after construction and safe for concurrent use. It
// never returns errors: fields that cannot be extracted are left nil and
// non-transaction bodies are reported through api.Outcome.
package parser

import (
	"strings"
	"time"
	"unicode"

	"cloud.google.com/go/civil"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/rules"
)

// Parser extracts transactions using a compiled ruleset.
type Parser struct {
	rules *rules.Ruleset
	loc   *time.Location
	now   func() time.Time
}

// Option configures a Parser.
type Option func(*Parser)

// WithLocation sets the time zone used for "today" and message timestamps.
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		if loc != nil {
			p.loc = loc
		}
	}
}

// WithClock overrides the clock used for the "today" fallback date.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

// New creates a Parser. A nil ruleset selects rules.Default().
func New(rs *rules.Ruleset, opts ...Option) *Parser {
	if rs == nil {
		rs = rules.Default()
	}
	p := &Parser{
		rules: rs,
		loc:   time.Local,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultParser = New(nil)

// IsBankSender reports whether sender looks like a bank or payment service,
// using the default ruleset.
func IsBankSender(sender string) bool {
	return defaultParser.IsBankSender(sender)
}

// Rules returns the ruleset the parser was built with.
func (p *Parser) Rules() *rules.Ruleset {
	return p.rules
}

// Location returns the parser's time zone.
func (p *Parser) Location() *time.Location {
	return p.loc
}

// Today returns the current calendar date in the parser's location.
func (p *Parser) Today() civil.Date {
	return civil.DateOf(p.now().In(p.loc))
}

// DateOf converts a message timestamp to a calendar date in the parser's
// location. A zero timestamp yields today.
func (p *Parser) DateOf(t time.Time) civil.Date {
	if t.IsZero() {
		return p.Today()
	}
	return civil.DateOf(t.In(p.loc))
}

// IsBankSender reports whether sender matches a known sender code after
// normalization, or the sender keyword pattern.
func (p *Parser) IsBankSender(sender string) bool {
	if sender == "" {
		return false
	}
	normalized := normalizeSender(sender)
	for _, code := range p.rules.BankSenders {
		if strings.Contains(normalized, code) {
			return true
		}
	}
	return p.rules.SenderPattern != nil && p.rules.SenderPattern.MatchString(sender)
}

// normalizeSender uppercases and keeps only ASCII letters and digits.
func normalizeSender(sender string) string {
	var b strings.Builder
	b.Grow(len(sender))
	for _, r := range strings.ToUpper(sender) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Categorize assigns a category from keywords found in the body and merchant.
// The first category in table order with a matching keyword wins.
func (p *Parser) Categorize(body, merchant string) api.Category {
	c, _ := p.categorize(body, merchant)
	return c
}

func (p *Parser) categorize(body, merchant string) (api.Category, string) {
	text := strings.ToUpper(body + " " + merchant)
	for _, cr := range p.rules.Categories {
		for _, kw := range cr.Keywords {
			if strings.Contains(text, kw) {
				return cr.Category, kw
			}
		}
	}
	return api.CategoryOther, ""
}
