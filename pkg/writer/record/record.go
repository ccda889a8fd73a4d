// Package record renders ledger entries as flat rows for the tabular stores
// (CSV and Google Sheets).
package record

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
)

// Header is the column layout shared by the tabular stores.
var Header = []string{"Id", "Category", "Amount", "Date", "Note", "Direction", "PaymentMode", "Source", "MessageID"}

// MessageIDColumn is the zero-based index of the MessageID column in Header.
const MessageIDColumn = 8

var modeLabels = map[api.PaymentMode]string{
	api.PaymentModeUPI:        "UPI",
	api.PaymentModeCash:       "Cash",
	api.PaymentModeCredit:     "Credit Card",
	api.PaymentModeDebit:      "Debit Card",
	api.PaymentModeNetBanking: "Net Banking",
}

// Label turns a machine name such as "food" or "emi_payment" into a display
// label ("Food", "Emi Payment").
func Label(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "_", " "))
	if s == "" {
		return ""
	}
	return cases.Title(language.English).String(s)
}

// ModeLabel returns the display label for a payment mode.
func ModeLabel(m api.PaymentMode) string {
	if l, ok := modeLabels[m]; ok {
		return l
	}
	return Label(string(m))
}

// Row renders e in Header order. Dates are ISO-8601 and amounts keep two
// decimal places.
func Row(e *api.LedgerEntry) []string {
	return []string{
		e.ID,
		Label(string(e.Category)),
		e.Amount.StringFixed(2),
		e.Date.String(),
		e.Note,
		Label(string(e.Direction)),
		ModeLabel(e.PaymentMode),
		string(e.Source),
		e.MessageID,
	}
}

// Cells is Row as a slice of any, the shape the Sheets API expects. The
// amount is numeric so the sheet can sum it.
func Cells(e *api.LedgerEntry) []any {
	row := Row(e)
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	if f, err := strconv.ParseFloat(row[2], 64); err == nil {
		out[2] = f
	}
	return out
}
