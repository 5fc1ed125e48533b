package interfaces

import (
	"context"

	"github.com/sheikh-saqib/finance-ledger/internal/models"
	"github.com/sheikh-saqib/finance-ledger/internal/storage"
)

// LedgerStore is the durable record store behind the ledger engine.
// Lookups return storage.ErrNotFound for unknown ids.
type LedgerStore interface {
	GetClient(ctx context.Context, id string) (models.Client, error)
	GetAccount(ctx context.Context, id string) (models.Account, error)
	GetCategory(ctx context.Context, id string) (models.Category, error)
	GetBudget(ctx context.Context, id string) (models.Budget, error)
	GetGoal(ctx context.Context, id string) (models.Goal, error)
	GetTransaction(ctx context.Context, id string) (models.Transaction, error)

	ListClients(ctx context.Context) ([]models.Client, error)
	ListBudgets(ctx context.Context) ([]models.Budget, error)

	// FindBudgets returns every budget scoped to categoryID whose client set contains clientID.
	FindBudgets(ctx context.Context, categoryID, clientID string) ([]models.Budget, error)
	BudgetsByClient(ctx context.Context, clientID string) ([]models.Budget, error)
	BudgetsByCategory(ctx context.Context, categoryID string) ([]models.Budget, error)
	AccountsByClient(ctx context.Context, clientID string) ([]models.Account, error)
	GoalsByClient(ctx context.Context, clientID string) ([]models.Goal, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	TransactionsByAccount(ctx context.Context, accountID string) ([]models.Transaction, error)
	TransactionsByCategory(ctx context.Context, categoryID string) ([]models.Transaction, error)
	TransactionsByClientCategory(ctx context.Context, clientID, categoryID string) ([]models.Transaction, error)

	// SaveAtomic commits every write in the batch or none of them and returns the
	// committed records with their new versions. A batch that would leave a record
	// pointing at a missing client, account or category fails with
	// storage.ErrConflict.
	SaveAtomic(ctx context.Context, batch storage.Batch) (storage.Batch, error)
}
