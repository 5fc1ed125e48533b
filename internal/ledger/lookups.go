package ledger

import (
	"context"
	"fmt"

	"github.com/sheikh-saqib/finance-ledger/internal/models"
	"github.com/sheikh-saqib/finance-ledger/internal/storage"
)

// Single-record reads go straight to the store; only the listings in views.go
// are cached.

// Client returns one client.
func (l *Ledger) Client(ctx context.Context, id string) (models.Client, error) {
	return load(ctx, storage.KindClient, id, l.store.GetClient)
}

// Clients lists every client.
func (l *Ledger) Clients(ctx context.Context) ([]models.Client, error) {
	return nonNil(l.store.ListClients(ctx))
}

// Account returns one account with its current balance.
func (l *Ledger) Account(ctx context.Context, id string) (models.Account, error) {
	return load(ctx, storage.KindAccount, id, l.store.GetAccount)
}

// Transaction returns one transaction.
func (l *Ledger) Transaction(ctx context.Context, id string) (models.Transaction, error) {
	return load(ctx, storage.KindTransaction, id, l.store.GetTransaction)
}

// Budget returns one budget with its remaining available sum.
func (l *Ledger) Budget(ctx context.Context, id string) (models.Budget, error) {
	return load(ctx, storage.KindBudget, id, l.store.GetBudget)
}

// Budgets lists every budget.
func (l *Ledger) Budgets(ctx context.Context) ([]models.Budget, error) {
	return nonNil(l.store.ListBudgets(ctx))
}

// BudgetsByClient lists the budgets a client shares in, across categories.
func (l *Ledger) BudgetsByClient(ctx context.Context, clientID string) ([]models.Budget, error) {
	if _, err := l.Client(ctx, clientID); err != nil {
		return nil, err
	}
	return nonNil(l.store.BudgetsByClient(ctx, clientID))
}

// FilterBudgets lists the budgets of one category that a client shares in: the
// budgets an expense of that client in that category is checked against.
func (l *Ledger) FilterBudgets(ctx context.Context, clientID, categoryID string) ([]models.Budget, error) {
	if clientID == "" || categoryID == "" {
		return nil, invalidData("client and category are required")
	}
	if _, err := l.Client(ctx, clientID); err != nil {
		return nil, err
	}
	if _, err := load(ctx, storage.KindCategory, categoryID, l.store.GetCategory); err != nil {
		return nil, err
	}
	budgets, err := l.store.FindBudgets(ctx, categoryID, clientID)
	if err != nil {
		return nil, fmt.Errorf("finding budgets for category %s: %w", categoryID, err)
	}
	return nonNil(budgets, nil)
}

func nonNil[T any](rows []T, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []T{}
	}
	return rows, nil
}
