package models

import "github.com/shopspring/decimal"

// Account holds a running balance owned by exactly one client.
type Account struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Balance  decimal.Decimal `json:"balance"`
	ClientID string          `json:"client_id"`
	Version  int64           `json:"version"` // optimistic concurrency counter, bumped on every commit
}
