package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType tags the cash-flow direction of a transaction. It is
// independent of the spending category and of the sign the feed used:
// internally Amount is always a non-negative magnitude and Type carries
// the direction.
type TransactionType string

const (
	TypeIncome   TransactionType = "income"
	TypeExpense  TransactionType = "expense"
	TypeTransfer TransactionType = "transfer"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeIncome, TypeExpense, TypeTransfer:
		return true
	}
	return false
}

// Transaction is one normalized ledger entry. Values are immutable once
// created; only Category may be rewritten, and only by re-classification
// during ingestion.
type Transaction struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	Timestamp   time.Time       `json:"timestamp"` // UTC
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"` // magnitude, >= 0
	Currency    string          `json:"currency"`
	Category    string          `json:"category"`
	Type        TransactionType `json:"type"`
}

// Day returns the transaction's calendar day as an ISO date string,
// truncated from the timestamp in local time.
func (t Transaction) Day() string {
	return t.Timestamp.Local().Format("2006-01-02")
}
