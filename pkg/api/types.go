package api

import "fmt"

// Outcome tags the result of parsing a message body.
type Outcome int

const (
	// OutcomeInvalidInput means the body was empty.
	OutcomeInvalidInput Outcome = iota
	// OutcomeNotTransaction means the body is valid text but not a transaction.
	OutcomeNotTransaction
	// OutcomeTransaction means the body describes a transaction.
	OutcomeTransaction
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInvalidInput:
		return "invalid_input"
	case OutcomeNotTransaction:
		return "not_transaction"
	case OutcomeTransaction:
		return "transaction"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(b []byte) error {
	switch string(b) {
	case "invalid_input":
		*o = OutcomeInvalidInput
	case "not_transaction":
		*o = OutcomeNotTransaction
	case "transaction":
		*o = OutcomeTransaction
	default:
		return fmt.Errorf("unknown outcome %q", b)
	}
	return nil
}

// Direction is the money flow of a transaction relative to the account holder.
type Direction string

const (
	DirectionUnknown Direction = ""
	DirectionExpense Direction = "expense"
	DirectionIncome  Direction = "income"
)

// PaymentMode is the channel a transaction went through.
type PaymentMode string

const (
	PaymentModeNone       PaymentMode = ""
	PaymentModeUPI        PaymentMode = "upi"
	PaymentModeCash       PaymentMode = "cash"
	PaymentModeCredit     PaymentMode = "credit"
	PaymentModeDebit      PaymentMode = "debit"
	PaymentModeNetBanking PaymentMode = "netbanking"
)

// Valid reports whether m is one of the known payment modes.
func (m PaymentMode) Valid() bool {
	switch m {
	case PaymentModeUPI, PaymentModeCash, PaymentModeCredit, PaymentModeDebit, PaymentModeNetBanking:
		return true
	}
	return false
}

// Category is a spending or income bucket. The set is open so custom rulesets
// can add their own names.
type Category string

const (
	CategoryFood          Category = "food"
	CategoryGroceries     Category = "groceries"
	CategoryShopping      Category = "shopping"
	CategoryTransport     Category = "transport"
	CategoryFuel          Category = "fuel"
	CategoryEntertainment Category = "entertainment"
	CategoryElectricity   Category = "electricity"
	CategoryMobile        Category = "mobile"
	CategoryWifi          Category = "wifi"
	CategoryMedicine      Category = "medicine"
	CategoryEducation     Category = "education"
	CategoryEMI           Category = "emi"
	CategoryRent          Category = "rent"
	CategoryInsurance     Category = "insurance"
	CategoryInvestment    Category = "investment"
	CategorySalary        Category = "salary"
	CategoryRefund        Category = "refund"
	CategoryOther         Category = "other"
)

// Source records where a ledger entry came from.
type Source string

const (
	SourceSMS    Source = "sms"
	SourceManual Source = "manual"
)
