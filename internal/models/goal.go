package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Goal tracks savings towards a target amount. CurrentAmount only grows through
// funding transactions.
type Goal struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       time.Time       `json:"end_date"`
	ClientID      string          `json:"client_id"`
	Version       int64           `json:"version"`
}

// Reached reports whether the goal's target has been met.
func (g Goal) Reached() bool {
	return g.CurrentAmount.GreaterThanOrEqual(g.TargetAmount)
}
