package ledger

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/finance-ledger/internal/cache"
	"github.com/sheikh-saqib/finance-ledger/internal/models"
	"github.com/sheikh-saqib/finance-ledger/internal/storage"
)

// ClientInput carries the fields of a new client.
type ClientInput struct {
	Username string
	Email    string
	Password string
}

// AccountInput carries a new account and its opening balance.
type AccountInput struct {
	Name     string
	ClientID string
	Balance  decimal.Decimal
}

// BudgetInput carries the settings of a budget. ClientIDs are the members sharing it.
type BudgetInput struct {
	Limitation decimal.Decimal
	Period     int
	ClientIDs  []string
	CategoryID string
}

// GoalInput carries the settings of a savings goal.
type GoalInput struct {
	Name         string
	TargetAmount decimal.Decimal
	StartDate    time.Time
	EndDate      time.Time
	ClientID     string
}

// CreateClient registers a client.
func (l *Ledger) CreateClient(ctx context.Context, in ClientInput) (models.Client, error) {
	if strings.TrimSpace(in.Username) == "" || strings.TrimSpace(in.Email) == "" {
		return models.Client{}, invalidData("username and email are required")
	}
	committed, err := l.commit(ctx, storage.Batch{Clients: []models.Client{{
		ID:        l.newID(),
		Username:  in.Username,
		Email:     in.Email,
		Password:  in.Password,
		CreatedAt: l.now().UTC(),
	}}})
	if err != nil {
		return models.Client{}, err
	}
	return committed.Clients[0], nil
}

// UpdateClient renames a client. Email and password are kept.
func (l *Ledger) UpdateClient(ctx context.Context, id, username string) (models.Client, error) {
	if strings.TrimSpace(username) == "" {
		return models.Client{}, invalidData("username is required")
	}
	client, err := load(ctx, storage.KindClient, id, l.store.GetClient)
	if err != nil {
		return models.Client{}, err
	}
	client.Username = username
	committed, err := l.commit(ctx, storage.Batch{Clients: []models.Client{client}})
	if err != nil {
		return models.Client{}, err
	}
	return committed.Clients[0], nil
}

// DeleteClient removes a client with its accounts, their transactions and its goals.
// The client leaves every budget it shared; budgets it was the last member of are
// removed. Everything happens in one batch, which fails with ErrConflict if the
// client gained an account, goal or budget after it was read.
func (l *Ledger) DeleteClient(ctx context.Context, clientID string) error {
	if _, err := load(ctx, storage.KindClient, clientID, l.store.GetClient); err != nil {
		return err
	}

	accounts, err := l.store.AccountsByClient(ctx, clientID)
	if err != nil {
		return fmt.Errorf("listing accounts of client %s: %w", clientID, err)
	}
	lockIDs := make([]string, 0, len(accounts))
	for _, a := range accounts {
		lockIDs = append(lockIDs, lockKey(storage.KindAccount, a.ID))
	}
	unlock := l.lock(lockIDs...)
	defer unlock()

	var batch storage.Batch
	keys := []string{cache.AccountsByClientKey(clientID), cache.GoalsByClientKey(clientID)}

	budgets, err := l.store.BudgetsByClient(ctx, clientID)
	if err != nil {
		return fmt.Errorf("listing budgets of client %s: %w", clientID, err)
	}
	for _, b := range budgets {
		b = b.WithoutClient(clientID)
		if len(b.ClientIDs) == 0 {
			batch.Delete(storage.KindBudget, b.ID)
			continue
		}
		batch.Budgets = append(batch.Budgets, b)
	}

	for _, a := range accounts {
		txKeys, err := l.deleteAccountInto(ctx, &batch, a)
		if err != nil {
			return err
		}
		keys = append(keys, txKeys...)
	}

	goals, err := l.store.GoalsByClient(ctx, clientID)
	if err != nil {
		return fmt.Errorf("listing goals of client %s: %w", clientID, err)
	}
	for _, g := range goals {
		batch.Delete(storage.KindGoal, g.ID)
	}
	batch.Delete(storage.KindClient, clientID)

	if _, err := l.commit(ctx, batch); err != nil {
		return err
	}
	l.log.Info().
		Str("client_id", clientID).
		Int("accounts", len(accounts)).
		Int("goals", len(goals)).
		Int("budgets", len(budgets)).
		Msg("client deleted")
	return l.invalidate(ctx, compact(keys)...)
}

// deleteAccountInto queues the removal of an account and all of its transactions
// and returns the transaction view keys that change.
func (l *Ledger) deleteAccountInto(ctx context.Context, batch *storage.Batch, account models.Account) ([]string, error) {
	txs, err := l.store.TransactionsByAccount(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions of account %s: %w", account.ID, err)
	}
	var keys []string
	for _, t := range txs {
		batch.Delete(storage.KindTransaction, t.ID)
		keys = append(keys, cache.TransactionsByClientCategoryKey(account.ClientID, t.CategoryID))
	}
	batch.Delete(storage.KindAccount, account.ID)
	return keys, nil
}

// CreateAccount opens an account for an existing client with a non-negative
// opening balance.
func (l *Ledger) CreateAccount(ctx context.Context, in AccountInput) (models.Account, error) {
	if strings.TrimSpace(in.Name) == "" {
		return models.Account{}, invalidData("account name is required")
	}
	if in.Balance.IsNegative() {
		return models.Account{}, invalidData("opening balance %s is negative", in.Balance)
	}
	if err := checkScale("opening balance", in.Balance); err != nil {
		return models.Account{}, err
	}
	if _, err := load(ctx, storage.KindClient, in.ClientID, l.store.GetClient); err != nil {
		return models.Account{}, err
	}

	committed, err := l.commit(ctx, storage.Batch{Accounts: []models.Account{{
		ID:       l.newID(),
		Name:     in.Name,
		Balance:  in.Balance,
		ClientID: in.ClientID,
	}}})
	if err != nil {
		return models.Account{}, err
	}

	keys, err := l.clientViewKeys(ctx, in.ClientID)
	if err != nil {
		if invErr := l.invalidate(ctx, cache.AccountsByClientKey(in.ClientID)); invErr != nil {
			return committed.Accounts[0], invErr
		}
		return committed.Accounts[0], fmt.Errorf("%w: %w", ErrCacheInvalidation, err)
	}
	return committed.Accounts[0], l.invalidate(ctx, keys...)
}

// clientViewKeys returns the account listing key of a client and its transaction
// view key for every category.
func (l *Ledger) clientViewKeys(ctx context.Context, clientID string) ([]string, error) {
	categories, err := l.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	keys := []string{cache.AccountsByClientKey(clientID)}
	for _, c := range categories {
		keys = append(keys, cache.TransactionsByClientCategoryKey(clientID, c.ID))
	}
	return keys, nil
}

// UpdateAccount renames an account and sets its balance. The owner cannot change.
func (l *Ledger) UpdateAccount(ctx context.Context, id string, name string, balance decimal.Decimal) (models.Account, error) {
	if strings.TrimSpace(name) == "" {
		return models.Account{}, invalidData("account name is required")
	}
	if balance.IsNegative() {
		return models.Account{}, invalidData("balance %s is negative", balance)
	}
	if err := checkScale("balance", balance); err != nil {
		return models.Account{}, err
	}

	unlock := l.lock(lockKey(storage.KindAccount, id))
	defer unlock()

	account, err := load(ctx, storage.KindAccount, id, l.store.GetAccount)
	if err != nil {
		return models.Account{}, err
	}
	account.Name = name
	account.Balance = balance

	committed, err := l.commit(ctx, storage.Batch{Accounts: []models.Account{account}})
	if err != nil {
		return models.Account{}, err
	}
	return committed.Accounts[0], l.invalidate(ctx, cache.AccountsByClientKey(account.ClientID))
}

// DeleteAccount removes an account and its transactions.
func (l *Ledger) DeleteAccount(ctx context.Context, id string) error {
	unlock := l.lock(lockKey(storage.KindAccount, id))
	defer unlock()

	account, err := load(ctx, storage.KindAccount, id, l.store.GetAccount)
	if err != nil {
		return err
	}

	var batch storage.Batch
	keys, err := l.deleteAccountInto(ctx, &batch, account)
	if err != nil {
		return err
	}
	if _, err := l.commit(ctx, batch); err != nil {
		return err
	}
	keys = append(keys, cache.AccountsByClientKey(account.ClientID))
	return l.invalidate(ctx, compact(keys)...)
}

// CreateCategory adds a transaction category.
func (l *Ledger) CreateCategory(ctx context.Context, name string) (models.Category, error) {
	if strings.TrimSpace(name) == "" {
		return models.Category{}, invalidData("category name is required")
	}
	committed, err := l.commit(ctx, storage.Batch{Categories: []models.Category{{ID: l.newID(), Name: name}}})
	if err != nil {
		return models.Category{}, err
	}
	return committed.Categories[0], l.invalidate(ctx, cache.AllCategoriesKey)
}

// UpdateCategory renames a category.
func (l *Ledger) UpdateCategory(ctx context.Context, id, name string) (models.Category, error) {
	if strings.TrimSpace(name) == "" {
		return models.Category{}, invalidData("category name is required")
	}
	category, err := load(ctx, storage.KindCategory, id, l.store.GetCategory)
	if err != nil {
		return models.Category{}, err
	}
	category.Name = name
	committed, err := l.commit(ctx, storage.Batch{Categories: []models.Category{category}})
	if err != nil {
		return models.Category{}, err
	}
	return committed.Categories[0], l.invalidate(ctx, cache.AllCategoriesKey)
}

// DeleteCategory removes a category that no budget or transaction refers to.
// A transaction posted into the category while the delete runs makes the commit
// fail with ErrConflict and the category stays.
func (l *Ledger) DeleteCategory(ctx context.Context, id string) error {
	if _, err := load(ctx, storage.KindCategory, id, l.store.GetCategory); err != nil {
		return err
	}

	budgets, err := l.store.BudgetsByCategory(ctx, id)
	if err != nil {
		return fmt.Errorf("listing budgets of category %s: %w", id, err)
	}
	if len(budgets) > 0 {
		return invalidData("category %s is used by %d budget(s)", id, len(budgets))
	}
	txs, err := l.store.TransactionsByCategory(ctx, id)
	if err != nil {
		return fmt.Errorf("listing transactions of category %s: %w", id, err)
	}
	if len(txs) > 0 {
		return invalidData("category %s is used by %d transaction(s)", id, len(txs))
	}

	var batch storage.Batch
	batch.Delete(storage.KindCategory, id)
	if _, err := l.commit(ctx, batch); err != nil {
		return err
	}
	return l.invalidate(ctx, cache.AllCategoriesKey)
}

// CreateBudget creates a budget whose available sum starts at its limitation.
func (l *Ledger) CreateBudget(ctx context.Context, in BudgetInput) (models.Budget, error) {
	clientIDs, err := l.budgetMembers(ctx, in)
	if err != nil {
		return models.Budget{}, err
	}
	if _, err := load(ctx, storage.KindCategory, in.CategoryID, l.store.GetCategory); err != nil {
		return models.Budget{}, err
	}

	budget := models.Budget{
		ID:           l.newID(),
		Limitation:   in.Limitation,
		AvailableSum: in.Limitation,
		Period:       in.Period,
		ClientIDs:    clientIDs,
		CategoryID:   in.CategoryID,
	}
	committed, err := l.commit(ctx, storage.Batch{Budgets: []models.Budget{budget}})
	if err != nil {
		return models.Budget{}, err
	}
	return committed.Budgets[0], nil
}

// UpdateBudget changes the limitation, period and members of a budget. The
// available sum moves by the same amount as the limitation, so what was already
// spent stays spent; lowering the limitation below the spent amount is rejected.
func (l *Ledger) UpdateBudget(ctx context.Context, id string, in BudgetInput) (models.Budget, error) {
	clientIDs, err := l.budgetMembers(ctx, in)
	if err != nil {
		return models.Budget{}, err
	}
	budget, err := load(ctx, storage.KindBudget, id, l.store.GetBudget)
	if err != nil {
		return models.Budget{}, err
	}
	if in.CategoryID != "" && in.CategoryID != budget.CategoryID {
		return models.Budget{}, invalidData("budget category cannot be changed")
	}

	available := budget.AvailableSum.Add(in.Limitation.Sub(budget.Limitation))
	if available.IsNegative() {
		return models.Budget{}, invalidData("limitation %s is below the %s already spent",
			in.Limitation, budget.Limitation.Sub(budget.AvailableSum))
	}
	budget.Limitation = in.Limitation
	budget.AvailableSum = available
	budget.Period = in.Period
	budget.ClientIDs = clientIDs
	if err := budget.Validate(); err != nil {
		return models.Budget{}, invalidData("%s", err)
	}

	committed, err := l.commit(ctx, storage.Batch{Budgets: []models.Budget{budget}})
	if err != nil {
		return models.Budget{}, err
	}
	return committed.Budgets[0], nil
}

// budgetMembers validates the limitation and returns the de-duplicated client ids,
// each of which must exist.
func (l *Ledger) budgetMembers(ctx context.Context, in BudgetInput) ([]string, error) {
	if in.Limitation.IsNegative() {
		return nil, invalidData("limitation %s is negative", in.Limitation)
	}
	if err := checkScale("limitation", in.Limitation); err != nil {
		return nil, err
	}
	ids := slices.Clone(in.ClientIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if len(ids) == 0 || ids[0] == "" {
		return nil, invalidData("a budget needs at least one client")
	}
	for _, id := range ids {
		if _, err := load(ctx, storage.KindClient, id, l.store.GetClient); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// DeleteBudget removes a budget. Transactions already checked against it are kept.
func (l *Ledger) DeleteBudget(ctx context.Context, id string) error {
	if _, err := load(ctx, storage.KindBudget, id, l.store.GetBudget); err != nil {
		return err
	}
	var batch storage.Batch
	batch.Delete(storage.KindBudget, id)
	_, err := l.commit(ctx, batch)
	return err
}

// CreateGoal opens a savings goal with nothing saved yet.
func (l *Ledger) CreateGoal(ctx context.Context, in GoalInput) (models.Goal, error) {
	if err := validateGoal(in); err != nil {
		return models.Goal{}, err
	}
	if _, err := load(ctx, storage.KindClient, in.ClientID, l.store.GetClient); err != nil {
		return models.Goal{}, err
	}

	committed, err := l.commit(ctx, storage.Batch{Goals: []models.Goal{{
		ID:            l.newID(),
		Name:          in.Name,
		TargetAmount:  in.TargetAmount,
		CurrentAmount: decimal.Zero,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		ClientID:      in.ClientID,
	}}})
	if err != nil {
		return models.Goal{}, err
	}
	return committed.Goals[0], l.invalidate(ctx, cache.GoalsByClientKey(in.ClientID))
}

// UpdateGoal changes the name, target and dates of a goal. The saved amount and
// the owner are kept.
func (l *Ledger) UpdateGoal(ctx context.Context, id string, in GoalInput) (models.Goal, error) {
	unlock := l.lock(lockKey(storage.KindGoal, id))
	defer unlock()

	goal, err := load(ctx, storage.KindGoal, id, l.store.GetGoal)
	if err != nil {
		return models.Goal{}, err
	}
	in.ClientID = goal.ClientID
	if err := validateGoal(in); err != nil {
		return models.Goal{}, err
	}

	goal.Name = in.Name
	goal.TargetAmount = in.TargetAmount
	goal.StartDate = in.StartDate
	goal.EndDate = in.EndDate

	committed, err := l.commit(ctx, storage.Batch{Goals: []models.Goal{goal}})
	if err != nil {
		return models.Goal{}, err
	}
	return committed.Goals[0], l.invalidate(ctx, cache.GoalsByClientKey(goal.ClientID))
}

// DeleteGoal removes a goal. The money moved into it stays spent.
func (l *Ledger) DeleteGoal(ctx context.Context, id string) error {
	unlock := l.lock(lockKey(storage.KindGoal, id))
	defer unlock()

	goal, err := load(ctx, storage.KindGoal, id, l.store.GetGoal)
	if err != nil {
		return err
	}
	var batch storage.Batch
	batch.Delete(storage.KindGoal, id)
	if _, err := l.commit(ctx, batch); err != nil {
		return err
	}
	return l.invalidate(ctx, cache.GoalsByClientKey(goal.ClientID))
}

func validateGoal(in GoalInput) error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return invalidData("goal name is required")
	case !in.TargetAmount.IsPositive():
		return invalidData("goal target %s must be positive", in.TargetAmount)
	case !in.TargetAmount.Equal(in.TargetAmount.Round(moneyScale)):
		return checkScale("goal target", in.TargetAmount)
	case in.StartDate.IsZero() || in.EndDate.IsZero():
		return invalidData("goal start and end dates are required")
	case in.EndDate.Before(in.StartDate):
		return invalidData("goal ends before it starts")
	}
	return nil
}

func compact(keys []string) []string {
	keys = slices.Clone(keys)
	slices.Sort(keys)
	return slices.Compact(keys)
}
