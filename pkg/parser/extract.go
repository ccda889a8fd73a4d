package parser

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
	"github.com/thisisarunc/ArunExpenseTracker/pkg/rules"
)

// Confidence weights, in hundredths.
const (
	scoreBase      = 50
	scoreDirection = 20
	scoreAmount    = 15
	scoreCard      = 5
	scoreUPI       = 10
	scoreMerchant  = 10
)

const upiFallbackRule = "upi-local-part"

// Parse extracts a transaction from an SMS body. The fallback date is used when
// the body carries no parsable date; when it is nil, today in the parser's
// location is used.
func (p *Parser) Parse(body, sender string, fallback *civil.Date) api.ParsedTransaction {
	res := api.ParsedTransaction{
		OriginalMessage: body,
		Sender:          sender,
		Category:        api.CategoryOther,
		Date:            p.fallbackDate(fallback),
	}
	if body == "" {
		res.Outcome = api.OutcomeInvalidInput
		return res
	}
	res.Outcome = api.OutcomeNotTransaction

	upper := strings.ToUpper(body)

	amountRaw, amountRule, hasAmount := firstMatch(p.rules.Amount, body)
	debitKW, debitIdx := earliestKeyword(upper, p.rules.DebitKeywords)
	creditKW, creditIdx := earliestKeyword(upper, p.rules.CreditKeywords)
	if !hasAmount || (debitIdx < 0 && creditIdx < 0) {
		return res
	}

	res.Outcome = api.OutcomeTransaction
	res.Rules.DebitKeyword = debitKW
	res.Rules.CreditKeyword = creditKW
	score := scoreBase

	switch {
	case creditIdx < 0:
		res.Direction = api.DirectionExpense
		score += scoreDirection
	case debitIdx < 0:
		res.Direction = api.DirectionIncome
		score += scoreDirection
	case debitIdx < creditIdx:
		// Mixed bodies get no direction bonus, and an exact tie goes to income.
		res.Direction = api.DirectionExpense
	default:
		res.Direction = api.DirectionIncome
	}

	if amount, ok := parseAmount(amountRaw); ok {
		res.Amount = &amount
		res.Rules.Amount = amountRule
		score += scoreAmount
	}

	if last4, ok := p.rules.Card.Find(body); ok {
		res.CardLast4 = &last4
		res.Rules.Card = p.rules.Card.Name
		score += scoreCard
	}

	if id, ok := p.rules.UPI.Find(body); ok {
		id = strings.ToLower(id)
		res.UPIID = &id
		res.PaymentMode = api.PaymentModeUPI
		res.Rules.UPI = p.rules.UPI.Name
		res.Rules.PaymentMode = p.rules.UPI.Name
		score += scoreUPI
	}

	if res.PaymentMode == api.PaymentModeNone {
		res.PaymentMode, res.Rules.PaymentMode = p.paymentMode(upper)
	}

	if merchant, rule, ok := p.merchant(body); ok {
		res.Merchant = &merchant
		res.Rules.Merchant = rule
		score += scoreMerchant
	} else if res.UPIID != nil {
		merchant := upiMerchant(*res.UPIID, p.rules.MerchantMaxLength)
		if merchant != "" {
			res.Merchant = &merchant
			res.Rules.Merchant = upiFallbackRule
		}
	}

	if raw, ok := p.rules.Balance.Find(body); ok {
		if bal, ok := parseAmount(raw); ok {
			res.Balance = &bal
			res.Rules.Balance = p.rules.Balance.Name
		}
	}

	if token, ok := p.rules.Date.Find(body); ok {
		if d, ok := parseDate(token); ok {
			res.Date = d
			res.Rules.Date = p.rules.Date.Name
		}
	}

	res.Confidence = float64(score) / 100

	merchant := ""
	if res.Merchant != nil {
		merchant = *res.Merchant
	}
	res.Category, res.Rules.Category = p.categorize(body, merchant)

	return res
}

func (p *Parser) fallbackDate(fallback *civil.Date) civil.Date {
	if fallback != nil && fallback.IsValid() {
		return *fallback
	}
	return p.Today()
}

func (p *Parser) paymentMode(upper string) (api.PaymentMode, string) {
	for _, mr := range p.rules.PaymentModes {
		for _, kw := range mr.Keywords {
			if strings.Contains(upper, kw) {
				return mr.Mode, kw
			}
		}
	}
	return p.rules.DefaultPaymentMode, "default"
}

func (p *Parser) merchant(body string) (string, string, bool) {
	for _, pat := range p.rules.Merchant {
		raw, ok := pat.Find(body)
		if !ok {
			continue
		}
		m := strings.TrimSpace(raw)
		if m == "" {
			continue
		}
		return truncateRunes(m, p.rules.MerchantMaxLength), pat.Name, true
	}
	return "", "", false
}

// firstMatch returns the capture of the first pattern, in order, that matches.
func firstMatch(patterns []rules.Pattern, s string) (string, string, bool) {
	for _, pat := range patterns {
		if v, ok := pat.Find(s); ok {
			return v, pat.Name, true
		}
	}
	return "", "", false
}

// earliestKeyword returns the keyword found at the lowest index of upper, or
// -1 when none is present.
func earliestKeyword(upper string, keywords []string) (string, int) {
	best, bestIdx := "", -1
	for _, kw := range keywords {
		idx := strings.Index(upper, kw)
		if idx < 0 {
			continue
		}
		if bestIdx < 0 || idx < bestIdx {
			best, bestIdx = kw, idx
		}
	}
	return best, bestIdx
}

func parseAmount(raw string) (decimal.Decimal, bool) {
	cleaned := strings.ReplaceAll(raw, ",", "")
	if cleaned == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// parseDate reads D/M/Y, D-M-Y or Y-M-D. A 4-digit segment is the year and a
// 2-digit year means 20YY.
func parseDate(token string) (civil.Date, bool) {
	parts := strings.FieldsFunc(token, func(r rune) bool { return r == '/' || r == '-' })
	if len(parts) != 3 {
		return civil.Date{}, false
	}

	var ys, ms, ds string
	switch {
	case len(parts[2]) == 4:
		ds, ms, ys = parts[0], parts[1], parts[2]
	case len(parts[0]) == 4:
		ys, ms, ds = parts[0], parts[1], parts[2]
	default:
		ds, ms, ys = parts[0], parts[1], parts[2]
		if len(ys) == 2 {
			ys = "20" + ys
		}
	}
	if len(ys) != 4 {
		return civil.Date{}, false
	}

	y, err := strconv.Atoi(ys)
	if err != nil {
		return civil.Date{}, false
	}
	m, err := strconv.Atoi(ms)
	if err != nil {
		return civil.Date{}, false
	}
	d, err := strconv.Atoi(ds)
	if err != nil {
		return civil.Date{}, false
	}

	date := civil.Date{Year: y, Month: time.Month(m), Day: d}
	if !date.IsValid() {
		return civil.Date{}, false
	}
	return date, true
}

func upiMerchant(upiID string, max int) string {
	local, _, _ := strings.Cut(upiID, "@")
	local = strings.Map(func(r rune) rune {
		switch r {
		case '.', '_', '-':
			return ' '
		}
		return r
	}, local)
	return truncateRunes(local, max)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
