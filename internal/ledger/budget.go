package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/finance-ledger/internal/models"
)

// checkBudgets loads every budget of category that clientID participates in and
// returns them with expense (a negative amount) applied to their available sums.
// Nothing is written; the caller commits the returned budgets with the transaction.
func (l *Ledger) checkBudgets(ctx context.Context, category models.Category, clientID string, expense decimal.Decimal) ([]models.Budget, error) {
	budgets, err := l.store.FindBudgets(ctx, category.ID, clientID)
	if err != nil {
		return nil, fmt.Errorf("finding budgets for category %s: %w", category.ID, err)
	}
	return applyExpense(budgets, category.Name, expense)
}

// applyExpense validates all budgets before changing any of them, so a shortfall
// in the last budget leaves the first ones untouched.
func applyExpense(budgets []models.Budget, categoryName string, expense decimal.Decimal) ([]models.Budget, error) {
	for _, b := range budgets {
		if b.AvailableSum.Add(expense).IsNegative() {
			return nil, &BudgetLimitError{
				BudgetID:  b.ID,
				Category:  categoryName,
				Available: b.AvailableSum,
				Required:  expense.Abs(),
			}
		}
	}

	updated := make([]models.Budget, 0, len(budgets))
	for _, b := range budgets {
		b.AvailableSum = b.AvailableSum.Add(expense)
		updated = append(updated, b)
	}
	return updated, nil
}
