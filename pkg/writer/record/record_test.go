package record

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/thisisarunc/ArunExpenseTracker/pkg/api"
)

func TestLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"food", "Food"},
		{"emi_payment", "Emi Payment"},
		{"", ""},
		{"other", "Other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Label(tt.in), tt.in)
	}
}

func TestModeLabel(t *testing.T) {
	assert.Equal(t, "UPI", ModeLabel(api.PaymentModeUPI))
	assert.Equal(t, "Net Banking", ModeLabel(api.PaymentModeNetBanking))
	assert.Equal(t, "", ModeLabel(api.PaymentModeNone))
	assert.Equal(t, "Wallet", ModeLabel("wallet"))
}

func TestRow(t *testing.T) {
	e := &api.LedgerEntry{
		ID:          "id-1",
		MessageID:   "msg-1",
		Amount:      decimal.RequireFromString("250.5"),
		Direction:   api.DirectionExpense,
		Category:    api.CategoryFood,
		PaymentMode: api.PaymentModeUPI,
		Date:        civil.Date{Year: 2025, Month: 1, Day: 15},
		Note:        "Swiggy",
		Source:      api.SourceSMS,
	}

	row := Row(e)
	assert.Len(t, row, len(Header))
	assert.Equal(t, []string{"id-1", "Food", "250.50", "2025-01-15", "Swiggy", "Expense", "UPI", "sms", "msg-1"}, row)
	assert.Equal(t, "msg-1", row[MessageIDColumn])

	cells := Cells(e)
	assert.Equal(t, 250.5, cells[2])
	assert.Equal(t, "2025-01-15", cells[3])
}
