package interfaces

import (
	"context"

	"github.com/sheikh-saqib/finance-ledger/internal/models/events"
)

// EventPublisher ships committed ledger events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event events.LedgerEvent) error
}
