// Package rules holds the ordered pattern and keyword tables that drive SMS parsing.
//
// Tables are data: a Spec is decoded from JSON or YAML and compiled into an
// immutable Ruleset that is safe for concurrent use.
package rules

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
)

// ErrInvalidRules is returned when a rule table fails validation.
var ErrInvalidRules = errors.New("invalid rules")

//go:embed default_rules.json
var defaultRulesJSON []byte

// PatternSpec is a named regular expression as written in a rules file.
type PatternSpec struct {
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
}

// ModeSpec maps keywords to a payment mode.
type ModeSpec struct {
	Mode     string   `json:"mode"`
	Keywords []string `json:"keywords"`
}

// CategorySpec maps keywords to a category.
type CategorySpec struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

// Spec is the serialized form of a Ruleset.
type Spec struct {
	BankSenders        []string       `json:"bankSenders"`
	SenderPattern      string         `json:"senderPattern"`
	AmountPatterns     []PatternSpec  `json:"amountPatterns"`
	DebitKeywords      []string       `json:"debitKeywords"`
	CreditKeywords     []string       `json:"creditKeywords"`
	CardPattern        PatternSpec    `json:"cardPattern"`
	UPIPattern         PatternSpec    `json:"upiPattern"`
	BalancePattern     PatternSpec    `json:"balancePattern"`
	DatePattern        PatternSpec    `json:"datePattern"`
	MerchantPatterns   []PatternSpec  `json:"merchantPatterns"`
	PaymentModes       []ModeSpec     `json:"paymentModes"`
	DefaultPaymentMode string         `json:"defaultPaymentMode"`
	Categories         []CategorySpec `json:"categories"`
	MerchantMaxLength  int            `json:"merchantMaxLength"`
}

// Pattern is a compiled named regular expression. The first capture group
// holds the extracted value.
type Pattern struct {
	Name string
	Re   *regexp.Regexp
}

// Find returns the first capture group of the leftmost match.
func (p Pattern) Find(s string) (string, bool) {
	if p.Re == nil {
		return "", false
	}
	m := p.Re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ModeRule is one step of the payment mode cascade.
type ModeRule struct {
	Mode     api.PaymentMode
	Keywords []string
}

// CategoryRule is one entry of the ordered category table.
type CategoryRule struct {
	Category api.Category
	Keywords []string
}

// Ruleset is a compiled, validated rule table.
type Ruleset struct {
	BankSenders        []string
	SenderPattern      *regexp.Regexp
	Amount             []Pattern
	DebitKeywords      []string
	CreditKeywords     []string
	Card               Pattern
	UPI                Pattern
	Balance            Pattern
	Date               Pattern
	Merchant           []Pattern
	PaymentModes       []ModeRule
	DefaultPaymentMode api.PaymentMode
	Categories         []CategoryRule
	MerchantMaxLength  int
}

var defaultRuleset = sync.OnceValue(func() *Ruleset {
	rs, err := Compile(DefaultSpec())
	if err != nil {
		panic(fmt.Sprintf("rules: compiling embedded defaults: %v", err))
	}
	return rs
})

// Default returns the built-in ruleset for Indian bank and wallet SMS.
func Default() *Ruleset {
	return defaultRuleset()
}

// DefaultSpec returns a fresh copy of the built-in rule table.
func DefaultSpec() Spec {
	var s Spec
	if err := json.Unmarshal(defaultRulesJSON, &s); err != nil {
		panic(fmt.Sprintf("rules: decoding embedded defaults: %v", err))
	}
	return s
}

// Compile validates a Spec and compiles its patterns.
func Compile(s Spec) (*Ruleset, error) {
	rs := &Ruleset{
		MerchantMaxLength: s.MerchantMaxLength,
	}
	if rs.MerchantMaxLength <= 0 {
		return nil, fmt.Errorf("%w: merchantMaxLength must be positive, got %d", ErrInvalidRules, s.MerchantMaxLength)
	}

	for _, code := range s.BankSenders {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			return nil, fmt.Errorf("%w: empty bank sender code", ErrInvalidRules)
		}
		rs.BankSenders = append(rs.BankSenders, code)
	}
	if s.SenderPattern != "" {
		re, err := regexp.Compile(s.SenderPattern)
		if err != nil {
			return nil, fmt.Errorf("%w: senderPattern: %v", ErrInvalidRules, err)
		}
		rs.SenderPattern = re
	}

	var err error
	if len(s.AmountPatterns) == 0 {
		return nil, fmt.Errorf("%w: at least one amount pattern is required", ErrInvalidRules)
	}
	if rs.Amount, err = compileList("amountPatterns", s.AmountPatterns); err != nil {
		return nil, err
	}
	if rs.Merchant, err = compileList("merchantPatterns", s.MerchantPatterns); err != nil {
		return nil, err
	}
	if rs.Card, err = compileOptional("cardPattern", s.CardPattern); err != nil {
		return nil, err
	}
	if rs.UPI, err = compileOptional("upiPattern", s.UPIPattern); err != nil {
		return nil, err
	}
	if rs.Balance, err = compileOptional("balancePattern", s.BalancePattern); err != nil {
		return nil, err
	}
	if rs.Date, err = compileOptional("datePattern", s.DatePattern); err != nil {
		return nil, err
	}

	if rs.DebitKeywords, err = upperKeywords("debitKeywords", s.DebitKeywords); err != nil {
		return nil, err
	}
	if rs.CreditKeywords, err = upperKeywords("creditKeywords", s.CreditKeywords); err != nil {
		return nil, err
	}
	if len(rs.DebitKeywords) == 0 && len(rs.CreditKeywords) == 0 {
		return nil, fmt.Errorf("%w: debit or credit keywords are required", ErrInvalidRules)
	}

	for i, m := range s.PaymentModes {
		mode := api.PaymentMode(strings.ToLower(m.Mode))
		if !mode.Valid() {
			return nil, fmt.Errorf("%w: paymentModes[%d]: unknown mode %q", ErrInvalidRules, i, m.Mode)
		}
		kws, err := upperKeywords(fmt.Sprintf("paymentModes[%d]", i), m.Keywords)
		if err != nil {
			return nil, err
		}
		rs.PaymentModes = append(rs.PaymentModes, ModeRule{Mode: mode, Keywords: kws})
	}
	rs.DefaultPaymentMode = api.PaymentMode(strings.ToLower(s.DefaultPaymentMode))
	if !rs.DefaultPaymentMode.Valid() {
		return nil, fmt.Errorf("%w: unknown defaultPaymentMode %q", ErrInvalidRules, s.DefaultPaymentMode)
	}

	for i, c := range s.Categories {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" {
			return nil, fmt.Errorf("%w: categories[%d]: empty name", ErrInvalidRules, i)
		}
		kws, err := upperKeywords("categories."+name, c.Keywords)
		if err != nil {
			return nil, err
		}
		rs.Categories = append(rs.Categories, CategoryRule{Category: api.Category(name), Keywords: kws})
	}

	return rs, nil
}

func compileList(field string, specs []PatternSpec) ([]Pattern, error) {
	out := make([]Pattern, 0, len(specs))
	for i, ps := range specs {
		p, err := compilePattern(fmt.Sprintf("%s[%d]", field, i), ps)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// compileOptional leaves the pattern unset when no expression is given, which
// disables that extraction.
func compileOptional(field string, ps PatternSpec) (Pattern, error) {
	if ps.Pattern == "" {
		return Pattern{Name: ps.Name}, nil
	}
	return compilePattern(field, ps)
}

func compilePattern(field string, ps PatternSpec) (Pattern, error) {
	if strings.TrimSpace(ps.Name) == "" {
		return Pattern{}, fmt.Errorf("%w: %s: empty name", ErrInvalidRules, field)
	}
	re, err := regexp.Compile(ps.Pattern)
	if err != nil {
		return Pattern{}, fmt.Errorf("%w: %s (%s): %v", ErrInvalidRules, field, ps.Name, err)
	}
	if re.NumSubexp() < 1 {
		return Pattern{}, fmt.Errorf("%w: %s (%s): pattern has no capture group", ErrInvalidRules, field, ps.Name)
	}
	return Pattern{Name: ps.Name, Re: re}, nil
}

// upperKeywords uppercases keywords without trimming them: trailing spaces
// such as "VI " are part of the keyword.
func upperKeywords(field string, kws []string) ([]string, error) {
	out := make([]string, 0, len(kws))
	for i, k := range kws {
		if strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%w: %s[%d]: empty keyword", ErrInvalidRules, field, i)
		}
		out = append(out, strings.ToUpper(k))
	}
	return out, nil
}
