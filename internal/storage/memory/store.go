package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	interfaces "github.com/sheikh-saqib/finance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/finance-ledger/internal/models"
	"github.com/sheikh-saqib/finance-ledger/internal/storage"
)

// MemoryLedgerStore is an in-memory implementation of interfaces.LedgerStore.
// Every record type lives in its own map keyed by id; SaveAtomic validates the
// whole batch before touching any map, so a rejected batch leaves no trace.
type MemoryLedgerStore struct {
	mu           sync.RWMutex
	clients      map[string]models.Client
	accounts     map[string]models.Account
	categories   map[string]models.Category
	budgets      map[string]models.Budget
	goals        map[string]models.Goal
	transactions map[string]models.Transaction
}

// NewMemoryLedgerStore creates an empty store.
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		clients:      make(map[string]models.Client),
		accounts:     make(map[string]models.Account),
		categories:   make(map[string]models.Category),
		budgets:      make(map[string]models.Budget),
		goals:        make(map[string]models.Goal),
		transactions: make(map[string]models.Transaction),
	}
}

func (m *MemoryLedgerStore) GetClient(ctx context.Context, id string) (models.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lookup(m.clients, storage.KindClient, id)
}

func (m *MemoryLedgerStore) GetAccount(ctx context.Context, id string) (models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lookup(m.accounts, storage.KindAccount, id)
}

func (m *MemoryLedgerStore) GetCategory(ctx context.Context, id string) (models.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lookup(m.categories, storage.KindCategory, id)
}

func (m *MemoryLedgerStore) GetBudget(ctx context.Context, id string) (models.Budget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, err := lookup(m.budgets, storage.KindBudget, id)
	return copyBudget(b), err
}

func (m *MemoryLedgerStore) GetGoal(ctx context.Context, id string) (models.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lookup(m.goals, storage.KindGoal, id)
}

func (m *MemoryLedgerStore) GetTransaction(ctx context.Context, id string) (models.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lookup(m.transactions, storage.KindTransaction, id)
}

func (m *MemoryLedgerStore) ListClients(ctx context.Context) ([]models.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]models.Client, 0, len(m.clients))
	for _, c := range m.clients {
		result = append(result, c)
	}
	slices.SortFunc(result, func(a, b models.Client) int { return cmp.Compare(a.ID, b.ID) })
	return result, nil
}

func (m *MemoryLedgerStore) ListBudgets(ctx context.Context) ([]models.Budget, error) {
	return m.budgetsWhere(func(models.Budget) bool { return true }), nil
}

func (m *MemoryLedgerStore) FindBudgets(ctx context.Context, categoryID, clientID string) ([]models.Budget, error) {
	return m.budgetsWhere(func(b models.Budget) bool {
		return b.CategoryID == categoryID && b.HasClient(clientID)
	}), nil
}

func (m *MemoryLedgerStore) BudgetsByClient(ctx context.Context, clientID string) ([]models.Budget, error) {
	return m.budgetsWhere(func(b models.Budget) bool { return b.HasClient(clientID) }), nil
}

func (m *MemoryLedgerStore) BudgetsByCategory(ctx context.Context, categoryID string) ([]models.Budget, error) {
	return m.budgetsWhere(func(b models.Budget) bool { return b.CategoryID == categoryID }), nil
}

func (m *MemoryLedgerStore) budgetsWhere(match func(models.Budget) bool) []models.Budget {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []models.Budget
	for _, b := range m.budgets {
		if match(b) {
			result = append(result, copyBudget(b))
		}
	}
	slices.SortFunc(result, func(a, b models.Budget) int { return cmp.Compare(a.ID, b.ID) })
	return result
}

func (m *MemoryLedgerStore) AccountsByClient(ctx context.Context, clientID string) ([]models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []models.Account
	for _, a := range m.accounts {
		if a.ClientID == clientID {
			result = append(result, a)
		}
	}
	slices.SortFunc(result, func(a, b models.Account) int { return cmp.Compare(a.ID, b.ID) })
	return result, nil
}

func (m *MemoryLedgerStore) GoalsByClient(ctx context.Context, clientID string) ([]models.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []models.Goal
	for _, g := range m.goals {
		if g.ClientID == clientID {
			result = append(result, g)
		}
	}
	slices.SortFunc(result, func(a, b models.Goal) int { return cmp.Compare(a.ID, b.ID) })
	return result, nil
}

func (m *MemoryLedgerStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]models.Category, 0, len(m.categories))
	for _, c := range m.categories {
		result = append(result, c)
	}
	slices.SortFunc(result, func(a, b models.Category) int { return cmp.Compare(a.ID, b.ID) })
	return result, nil
}

func (m *MemoryLedgerStore) TransactionsByAccount(ctx context.Context, accountID string) ([]models.Transaction, error) {
	return m.transactionsWhere(func(t models.Transaction) bool { return t.AccountID == accountID }), nil
}

func (m *MemoryLedgerStore) TransactionsByCategory(ctx context.Context, categoryID string) ([]models.Transaction, error) {
	return m.transactionsWhere(func(t models.Transaction) bool { return t.CategoryID == categoryID }), nil
}

func (m *MemoryLedgerStore) TransactionsByClientCategory(ctx context.Context, clientID, categoryID string) ([]models.Transaction, error) {
	m.mu.RLock()
	owned := make(map[string]bool)
	for _, a := range m.accounts {
		if a.ClientID == clientID {
			owned[a.ID] = true
		}
	}
	m.mu.RUnlock()

	return m.transactionsWhere(func(t models.Transaction) bool {
		return owned[t.AccountID] && t.CategoryID == categoryID
	}), nil
}

func (m *MemoryLedgerStore) transactionsWhere(match func(models.Transaction) bool) []models.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []models.Transaction
	for _, t := range m.transactions {
		if match(t) {
			result = append(result, t)
		}
	}
	slices.SortFunc(result, func(a, b models.Transaction) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return result
}

// SaveAtomic implements interfaces.LedgerStore. The write lock is held for the whole
// check-then-apply sequence, which serializes concurrent batches.
func (m *MemoryLedgerStore) SaveAtomic(ctx context.Context, batch storage.Batch) (storage.Batch, error) {
	if err := ctx.Err(); err != nil {
		return storage.Batch{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Phase 1: every versioned write must match what is stored right now.
	for _, c := range batch.Clients {
		if err := checkVersion(m.clients, storage.KindClient, c.ID, c.Version, func(r models.Client) int64 { return r.Version }); err != nil {
			return storage.Batch{}, err
		}
	}
	for _, a := range batch.Accounts {
		if err := checkVersion(m.accounts, storage.KindAccount, a.ID, a.Version, func(r models.Account) int64 { return r.Version }); err != nil {
			return storage.Batch{}, err
		}
	}
	for _, c := range batch.Categories {
		if err := checkVersion(m.categories, storage.KindCategory, c.ID, c.Version, func(r models.Category) int64 { return r.Version }); err != nil {
			return storage.Batch{}, err
		}
	}
	for _, b := range batch.Budgets {
		if err := checkVersion(m.budgets, storage.KindBudget, b.ID, b.Version, func(r models.Budget) int64 { return r.Version }); err != nil {
			return storage.Batch{}, err
		}
	}
	for _, g := range batch.Goals {
		if err := checkVersion(m.goals, storage.KindGoal, g.ID, g.Version, func(r models.Goal) int64 { return r.Version }); err != nil {
			return storage.Batch{}, err
		}
	}
	for _, t := range batch.Transactions {
		if err := checkVersion(m.transactions, storage.KindTransaction, t.ID, t.Version, func(r models.Transaction) int64 { return r.Version }); err != nil {
			return storage.Batch{}, err
		}
	}

	if err := m.checkReferences(batch); err != nil {
		return storage.Batch{}, err
	}

	// Phase 2: apply. Nothing below can fail.
	var committed storage.Batch
	for _, c := range batch.Clients {
		c.Version++
		m.clients[c.ID] = c
		committed.Clients = append(committed.Clients, c)
	}
	for _, a := range batch.Accounts {
		a.Version++
		m.accounts[a.ID] = a
		committed.Accounts = append(committed.Accounts, a)
	}
	for _, c := range batch.Categories {
		c.Version++
		m.categories[c.ID] = c
		committed.Categories = append(committed.Categories, c)
	}
	for _, b := range batch.Budgets {
		b = copyBudget(b)
		b.Version++
		m.budgets[b.ID] = b
		committed.Budgets = append(committed.Budgets, copyBudget(b))
	}
	for _, g := range batch.Goals {
		g.Version++
		m.goals[g.ID] = g
		committed.Goals = append(committed.Goals, g)
	}
	for _, t := range batch.Transactions {
		t.Version++
		m.transactions[t.ID] = t
		committed.Transactions = append(committed.Transactions, t)
	}
	for _, ref := range batch.Deletes {
		m.remove(ref)
	}
	committed.Deletes = batch.Deletes

	return committed, nil
}

func (m *MemoryLedgerStore) remove(ref storage.Ref) {
	switch ref.Kind {
	case storage.KindClient:
		delete(m.clients, ref.ID)
	case storage.KindAccount:
		delete(m.accounts, ref.ID)
	case storage.KindCategory:
		delete(m.categories, ref.ID)
	case storage.KindBudget:
		delete(m.budgets, ref.ID)
	case storage.KindGoal:
		delete(m.goals, ref.ID)
	case storage.KindTransaction:
		delete(m.transactions, ref.ID)
	}
}

// afterBatch answers whether a record would exist once batch is applied.
type afterBatch struct {
	m        *MemoryLedgerStore
	upserted map[storage.Ref]bool
	deleted  map[storage.Ref]bool
}

func (m *MemoryLedgerStore) afterBatch(batch storage.Batch) afterBatch {
	a := afterBatch{m: m, upserted: make(map[storage.Ref]bool), deleted: make(map[storage.Ref]bool)}
	mark := func(kind storage.Kind, id string) { a.upserted[storage.Ref{Kind: kind, ID: id}] = true }
	for _, c := range batch.Clients {
		mark(storage.KindClient, c.ID)
	}
	for _, acc := range batch.Accounts {
		mark(storage.KindAccount, acc.ID)
	}
	for _, c := range batch.Categories {
		mark(storage.KindCategory, c.ID)
	}
	for _, b := range batch.Budgets {
		mark(storage.KindBudget, b.ID)
	}
	for _, g := range batch.Goals {
		mark(storage.KindGoal, g.ID)
	}
	for _, t := range batch.Transactions {
		mark(storage.KindTransaction, t.ID)
	}
	for _, ref := range batch.Deletes {
		a.deleted[ref] = true
	}
	return a
}

func (a afterBatch) exists(kind storage.Kind, id string) bool {
	ref := storage.Ref{Kind: kind, ID: id}
	if a.deleted[ref] {
		return false
	}
	if a.upserted[ref] {
		return true
	}
	var ok bool
	switch kind {
	case storage.KindClient:
		_, ok = a.m.clients[id]
	case storage.KindAccount:
		_, ok = a.m.accounts[id]
	case storage.KindCategory:
		_, ok = a.m.categories[id]
	}
	return ok
}

// untouched reports whether a stored record is carried over as is.
func (a afterBatch) untouched(kind storage.Kind, id string) bool {
	ref := storage.Ref{Kind: kind, ID: id}
	return !a.deleted[ref] && !a.upserted[ref]
}

// checkReferences rejects a batch that would leave an account, budget, goal or
// transaction pointing at a client, account or category that no longer exists,
// the same way foreign keys reject it in postgres.
func (m *MemoryLedgerStore) checkReferences(batch storage.Batch) error {
	after := m.afterBatch(batch)
	dangling := func(kind storage.Kind, id string, parent storage.Kind, parentID string) error {
		if after.exists(parent, parentID) {
			return nil
		}
		return fmt.Errorf("%s %s references missing %s %s: %w", kind, id, parent, parentID, storage.ErrConflict)
	}

	for _, a := range batch.Accounts {
		if err := dangling(storage.KindAccount, a.ID, storage.KindClient, a.ClientID); err != nil {
			return err
		}
	}
	for _, b := range batch.Budgets {
		if err := dangling(storage.KindBudget, b.ID, storage.KindCategory, b.CategoryID); err != nil {
			return err
		}
		for _, c := range b.ClientIDs {
			if err := dangling(storage.KindBudget, b.ID, storage.KindClient, c); err != nil {
				return err
			}
		}
	}
	for _, g := range batch.Goals {
		if err := dangling(storage.KindGoal, g.ID, storage.KindClient, g.ClientID); err != nil {
			return err
		}
	}
	for _, t := range batch.Transactions {
		if err := dangling(storage.KindTransaction, t.ID, storage.KindAccount, t.AccountID); err != nil {
			return err
		}
		if err := dangling(storage.KindTransaction, t.ID, storage.KindCategory, t.CategoryID); err != nil {
			return err
		}
	}

	if len(batch.Deletes) == 0 {
		return nil
	}

	// Stored records the batch does not rewrite must not lose their parents either.
	for _, a := range m.accounts {
		if after.untouched(storage.KindAccount, a.ID) {
			if err := dangling(storage.KindAccount, a.ID, storage.KindClient, a.ClientID); err != nil {
				return err
			}
		}
	}
	for _, b := range m.budgets {
		if !after.untouched(storage.KindBudget, b.ID) {
			continue
		}
		if err := dangling(storage.KindBudget, b.ID, storage.KindCategory, b.CategoryID); err != nil {
			return err
		}
		for _, c := range b.ClientIDs {
			if err := dangling(storage.KindBudget, b.ID, storage.KindClient, c); err != nil {
				return err
			}
		}
	}
	for _, g := range m.goals {
		if after.untouched(storage.KindGoal, g.ID) {
			if err := dangling(storage.KindGoal, g.ID, storage.KindClient, g.ClientID); err != nil {
				return err
			}
		}
	}
	for _, t := range m.transactions {
		if !after.untouched(storage.KindTransaction, t.ID) {
			continue
		}
		if err := dangling(storage.KindTransaction, t.ID, storage.KindAccount, t.AccountID); err != nil {
			return err
		}
		if err := dangling(storage.KindTransaction, t.ID, storage.KindCategory, t.CategoryID); err != nil {
			return err
		}
	}
	return nil
}

func lookup[T any](rows map[string]T, kind storage.Kind, id string) (T, error) {
	row, ok := rows[id]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return row, nil
}

func checkVersion[T any](rows map[string]T, kind storage.Kind, id string, version int64, versionOf func(T) int64) error {
	current, exists := rows[id]
	switch {
	case !exists && version != 0:
		return fmt.Errorf("%s %s no longer exists: %w", kind, id, storage.ErrConflict)
	case exists && versionOf(current) != version:
		return fmt.Errorf("%s %s is at version %d, write expected %d: %w",
			kind, id, versionOf(current), version, storage.ErrConflict)
	}
	return nil
}

// copyBudget detaches the client id slice so callers never share it with the store.
func copyBudget(b models.Budget) models.Budget {
	b.ClientIDs = slices.Clone(b.ClientIDs)
	return b
}

// Compile-time check: ensure MemoryLedgerStore implements LedgerStore interface
var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
