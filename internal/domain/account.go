package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BankAccount is a reference entity: transactions point at it by ID only
// and the account holds no back-pointer to its transactions.
type BankAccount struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Type          string          `json:"type"`
	AccountNumber string          `json:"account_number,omitempty"`
	SortCode      string          `json:"sort_code,omitempty"`
	Balance       decimal.Decimal `json:"balance"`
	Currency      string          `json:"currency"`
	LastSynced    time.Time       `json:"last_synced"`
}
