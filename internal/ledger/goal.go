package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/finance-ledger/internal/cache"
	"github.com/sheikh-saqib/finance-ledger/internal/models"
	"github.com/sheikh-saqib/finance-ledger/internal/models/events"
	"github.com/sheikh-saqib/finance-ledger/internal/storage"
)

// AddFundsToGoal moves in.Amount (which must be positive) out of an account into a
// savings goal. The money leaves the account as an expense in in.Category and is
// subject to the same balance and budget checks as any other posting. The goal,
// the transaction, the account and the budgets are committed together, so a
// rejected posting leaves the goal untouched.
func (l *Ledger) AddFundsToGoal(ctx context.Context, goalID string, in TransactionInput) (models.Goal, error) {
	if !in.Amount.IsPositive() {
		return models.Goal{}, invalidData("funding amount must be positive, got %s", in.Amount)
	}
	if in.AccountID == "" || in.CategoryID == "" {
		return models.Goal{}, invalidData("account and category are required")
	}
	if err := checkScale("funding amount", in.Amount); err != nil {
		return models.Goal{}, err
	}

	var ev events.LedgerEvent
	defer l.publishPending(ctx, &ev)
	unlock := l.lock(lockKey(storage.KindAccount, in.AccountID), lockKey(storage.KindGoal, goalID))
	defer unlock()

	goal, err := load(ctx, storage.KindGoal, goalID, l.store.GetGoal)
	if err != nil {
		return models.Goal{}, err
	}

	funds := in.Amount
	in.Amount = funds.Neg()
	p, err := l.preparePosting(ctx, in)
	if err != nil {
		l.rejected(in, err)
		return models.Goal{}, err
	}

	goal.CurrentAmount = goal.CurrentAmount.Add(funds)
	batch := p.batch()
	batch.Goals = []models.Goal{goal}

	committed, err := l.commit(ctx, batch)
	if err != nil {
		return models.Goal{}, fmt.Errorf("funding goal %s: %w", goalID, err)
	}
	goal = committed.Goals[0]
	tx := committed.Transactions[0]

	l.log.Debug().
		Str("goal_id", goal.ID).
		Str("transaction_id", tx.ID).
		Str("amount", funds.String()).
		Str("current_amount", goal.CurrentAmount.String()).
		Bool("reached", goal.Reached()).
		Msg("goal funded")

	invErr := l.invalidate(ctx, append(p.cacheKeys(), cache.GoalsByClientKey(goal.ClientID))...)
	ev = events.LedgerEvent{
		Type:          events.GoalFunded,
		TransactionID: tx.ID,
		AccountID:     tx.AccountID,
		ClientID:      p.account.ClientID,
		CategoryID:    tx.CategoryID,
		GoalID:        goal.ID,
		Amount:        tx.Amount,
		Balance:       committed.Accounts[0].Balance,
	}
	return goal, invErr
}

// GoalProgress reports how far a goal is from its target.
type GoalProgress struct {
	Goal      models.Goal
	Remaining decimal.Decimal
	Reached   bool
}

// Progress returns the funding state of a goal.
func (l *Ledger) Progress(ctx context.Context, goalID string) (GoalProgress, error) {
	goal, err := load(ctx, storage.KindGoal, goalID, l.store.GetGoal)
	if err != nil {
		return GoalProgress{}, err
	}
	remaining := goal.TargetAmount.Sub(goal.CurrentAmount)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return GoalProgress{Goal: goal, Remaining: remaining, Reached: goal.Reached()}, nil
}
