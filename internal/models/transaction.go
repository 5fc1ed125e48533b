package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a single income (positive amount) or expense (negative amount)
// posted against one account and one category.
type Transaction struct {
	ID          string          `json:"id"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	AccountID   string          `json:"account_id"`
	CategoryID  string          `json:"category_id"`
	CreatedAt   time.Time       `json:"created_at"`
	Version     int64           `json:"version"`
}

// IsExpense reports whether the transaction takes money out of its account.
func (t Transaction) IsExpense() bool {
	return t.Amount.IsNegative()
}
