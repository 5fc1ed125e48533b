package models

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// Budget caps spending in one category for a set of clients.
type Budget struct {
	ID           string          `json:"id"`
	Limitation   decimal.Decimal `json:"limitation"`
	AvailableSum decimal.Decimal `json:"available_sum"`
	Period       int             `json:"period"`
	ClientIDs    []string        `json:"client_ids"`
	CategoryID   string          `json:"category_id"`
	Version      int64           `json:"version"`
}

// HasClient reports whether clientID is one of the budget's owners.
func (b Budget) HasClient(clientID string) bool {
	return slices.Contains(b.ClientIDs, clientID)
}

// WithoutClient returns a copy of the budget with clientID removed from its owners.
func (b Budget) WithoutClient(clientID string) Budget {
	b.ClientIDs = slices.DeleteFunc(slices.Clone(b.ClientIDs), func(id string) bool {
		return id == clientID
	})
	return b
}

// Validate checks 0 <= AvailableSum <= Limitation and that the budget has an owner.
func (b Budget) Validate() error {
	if len(b.ClientIDs) == 0 {
		return fmt.Errorf("budget %s has no clients", b.ID)
	}
	if b.AvailableSum.IsNegative() {
		return fmt.Errorf("budget %s available sum %s is negative", b.ID, b.AvailableSum)
	}
	if b.AvailableSum.GreaterThan(b.Limitation) {
		return fmt.Errorf("budget %s available sum %s exceeds limitation %s", b.ID, b.AvailableSum, b.Limitation)
	}
	return nil
}
