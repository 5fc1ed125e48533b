package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types published after a ledger mutation has been committed.
const (
	TransactionPosted  = "transaction.posted"
	TransactionUpdated = "transaction.updated"
	TransactionDeleted = "transaction.deleted"
	GoalFunded         = "goal.funded"
)

// LedgerEvent describes one committed change to an account.
type LedgerEvent struct {
	Type          string          `json:"type"`
	TransactionID string          `json:"transaction_id"`
	AccountID     string          `json:"account_id"`
	ClientID      string          `json:"client_id"`
	CategoryID    string          `json:"category_id"`
	GoalID        string          `json:"goal_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Balance       decimal.Decimal `json:"balance"`
	OccurredAt    time.Time       `json:"occurred_at"`
}
