package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/finance-ledger/internal/models"
	"github.com/sheikh-saqib/finance-ledger/internal/storage"
)

func seed(t *testing.T, s *MemoryLedgerStore) {
	t.Helper()
	_, err := s.SaveAtomic(context.Background(), storage.Batch{
		Clients:    []models.Client{{ID: "c1", Username: "ann"}, {ID: "c2", Username: "bob"}},
		Accounts:   []models.Account{{ID: "a1", ClientID: "c1", Balance: decimal.NewFromInt(100)}},
		Categories: []models.Category{{ID: "food", Name: "Food"}, {ID: "rent", Name: "Rent"}},
		Budgets: []models.Budget{
			{ID: "b1", CategoryID: "food", ClientIDs: []string{"c1", "c2"}, Limitation: decimal.NewFromInt(50), AvailableSum: decimal.NewFromInt(50)},
			{ID: "b2", CategoryID: "food", ClientIDs: []string{"c2"}, Limitation: decimal.NewFromInt(10), AvailableSum: decimal.NewFromInt(10)},
			{ID: "b3", CategoryID: "rent", ClientIDs: []string{"c1"}, Limitation: decimal.NewFromInt(10), AvailableSum: decimal.NewFromInt(10)},
		},
	})
	require.NoError(t, err)
}

func TestSaveAtomic_BumpsVersions(t *testing.T) {
	s := NewMemoryLedgerStore()
	seed(t, s)

	acc, err := s.GetAccount(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), acc.Version)

	acc.Balance = decimal.NewFromInt(90)
	committed, err := s.SaveAtomic(context.Background(), storage.Batch{Accounts: []models.Account{acc}})
	require.NoError(t, err)
	require.Len(t, committed.Accounts, 1)
	assert.Equal(t, int64(2), committed.Accounts[0].Version)

	got, err := s.GetAccount(context.Background(), "a1")
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(90)))
}

func TestSaveAtomic_StaleVersionRejectsWholeBatch(t *testing.T) {
	s := NewMemoryLedgerStore()
	seed(t, s)
	ctx := context.Background()

	acc, _ := s.GetAccount(ctx, "a1")
	budget, _ := s.GetBudget(ctx, "b1")

	stale := acc
	acc.Balance = decimal.NewFromInt(1)
	_, err := s.SaveAtomic(ctx, storage.Batch{Accounts: []models.Account{acc}})
	require.NoError(t, err)

	budget.AvailableSum = decimal.Zero
	_, err = s.SaveAtomic(ctx, storage.Batch{
		Accounts:     []models.Account{stale},
		Budgets:      []models.Budget{budget},
		Transactions: []models.Transaction{{ID: "t1", AccountID: "a1", CategoryID: "food", Date: time.Now()}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrConflict))

	got, _ := s.GetBudget(ctx, "b1")
	assert.True(t, got.AvailableSum.Equal(decimal.NewFromInt(50)), "budget must be untouched")
	_, err = s.GetTransaction(ctx, "t1")
	assert.True(t, errors.Is(err, storage.ErrNotFound), "transaction must not be persisted")
}

func TestSaveAtomic_InsertWithNonZeroVersionConflicts(t *testing.T) {
	s := NewMemoryLedgerStore()
	_, err := s.SaveAtomic(context.Background(), storage.Batch{
		Goals: []models.Goal{{ID: "g1", ClientID: "c1", Version: 3}},
	})
	assert.True(t, errors.Is(err, storage.ErrConflict))
}

func TestSaveAtomic_Deletes(t *testing.T) {
	s := NewMemoryLedgerStore()
	seed(t, s)
	ctx := context.Background()

	var b storage.Batch
	b.Delete(storage.KindAccount, "a1")
	b.Delete(storage.KindBudget, "b3")
	_, err := s.SaveAtomic(ctx, b)
	require.NoError(t, err)

	_, err = s.GetAccount(ctx, "a1")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	_, err = s.GetBudget(ctx, "b3")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestSaveAtomic_RejectsDanglingReferences(t *testing.T) {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	deletes := func(refs ...storage.Ref) storage.Batch { return storage.Batch{Deletes: refs} }

	tests := []struct {
		name  string
		batch storage.Batch
	}{
		{name: "account of missing client", batch: storage.Batch{
			Accounts: []models.Account{{ID: "a9", ClientID: "ghost"}},
		}},
		{name: "transaction in missing category", batch: storage.Batch{
			Transactions: []models.Transaction{{ID: "t9", AccountID: "a1", CategoryID: "ghost", Date: day}},
		}},
		{name: "transaction on missing account", batch: storage.Batch{
			Transactions: []models.Transaction{{ID: "t9", AccountID: "ghost", CategoryID: "food", Date: day}},
		}},
		{name: "budget with missing member", batch: storage.Batch{
			Budgets: []models.Budget{{ID: "b9", CategoryID: "food", ClientIDs: []string{"c1", "ghost"}}},
		}},
		{name: "goal of missing client", batch: storage.Batch{
			Goals: []models.Goal{{ID: "g9", ClientID: "ghost"}},
		}},
		{name: "category still used by a transaction", batch: deletes(storage.Ref{Kind: storage.KindCategory, ID: "rent"})},
		{name: "client still owning an account", batch: deletes(storage.Ref{Kind: storage.KindClient, ID: "c1"})},
		{name: "client still in a budget", batch: deletes(storage.Ref{Kind: storage.KindClient, ID: "c2"})},
		{name: "account still holding transactions", batch: deletes(storage.Ref{Kind: storage.KindAccount, ID: "a1"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewMemoryLedgerStore()
			seed(t, s)
			ctx := context.Background()
			_, err := s.SaveAtomic(ctx, storage.Batch{
				Transactions: []models.Transaction{{ID: "t1", AccountID: "a1", CategoryID: "rent", Date: day}},
			})
			require.NoError(t, err)

			_, err = s.SaveAtomic(ctx, tt.batch)
			assert.True(t, errors.Is(err, storage.ErrConflict), "got %v", err)

			_, err = s.GetTransaction(ctx, "t1")
			assert.NoError(t, err)
			_, err = s.GetCategory(ctx, "rent")
			assert.NoError(t, err)
			_, err = s.GetClient(ctx, "c1")
			assert.NoError(t, err)
		})
	}
}

func TestSaveAtomic_CascadeInOneBatch(t *testing.T) {
	s := NewMemoryLedgerStore()
	seed(t, s)
	ctx := context.Background()

	_, err := s.SaveAtomic(ctx, storage.Batch{
		Transactions: []models.Transaction{{ID: "t1", AccountID: "a1", CategoryID: "rent", Date: time.Now()}},
	})
	require.NoError(t, err)

	b1, _ := s.GetBudget(ctx, "b1")
	var b storage.Batch
	b.Budgets = []models.Budget{b1.WithoutClient("c1")}
	b.Delete(storage.KindBudget, "b3")
	b.Delete(storage.KindTransaction, "t1")
	b.Delete(storage.KindAccount, "a1")
	b.Delete(storage.KindClient, "c1")
	_, err = s.SaveAtomic(ctx, b)
	require.NoError(t, err)

	_, err = s.GetClient(ctx, "c1")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	got, err := s.GetBudget(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, got.ClientIDs)
}

func TestListClientsAndBudgets(t *testing.T) {
	s := NewMemoryLedgerStore()
	seed(t, s)
	ctx := context.Background()

	clients, err := s.ListClients(ctx)
	require.NoError(t, err)
	require.Len(t, clients, 2)
	assert.Equal(t, "c1", clients[0].ID)

	budgets, err := s.ListBudgets(ctx)
	require.NoError(t, err)
	require.Len(t, budgets, 3)
	assert.Equal(t, "b1", budgets[0].ID)
}

func TestFindBudgets(t *testing.T) {
	s := NewMemoryLedgerStore()
	seed(t, s)

	tests := []struct {
		name     string
		category string
		client   string
		want     []string
	}{
		{name: "shared budget only", category: "food", client: "c1", want: []string{"b1"}},
		{name: "shared and private", category: "food", client: "c2", want: []string{"b1", "b2"}},
		{name: "other category", category: "rent", client: "c1", want: []string{"b3"}},
		{name: "no match", category: "rent", client: "c2", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			budgets, err := s.FindBudgets(context.Background(), tt.category, tt.client)
			require.NoError(t, err)

			var ids []string
			for _, b := range budgets {
				ids = append(ids, b.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestGetBudget_ReturnsDetachedCopy(t *testing.T) {
	s := NewMemoryLedgerStore()
	seed(t, s)
	ctx := context.Background()

	b, err := s.GetBudget(ctx, "b1")
	require.NoError(t, err)
	b.ClientIDs[0] = "mutated"

	again, _ := s.GetBudget(ctx, "b1")
	assert.Equal(t, []string{"c1", "c2"}, again.ClientIDs)
}

func TestTransactionsByClientCategory(t *testing.T) {
	s := NewMemoryLedgerStore()
	seed(t, s)
	ctx := context.Background()

	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err := s.SaveAtomic(ctx, storage.Batch{
		Accounts: []models.Account{{ID: "a2", ClientID: "c2"}},
		Transactions: []models.Transaction{
			{ID: "t2", AccountID: "a1", CategoryID: "food", Date: day.AddDate(0, 0, 1)},
			{ID: "t1", AccountID: "a1", CategoryID: "food", Date: day},
			{ID: "t3", AccountID: "a1", CategoryID: "rent", Date: day},
			{ID: "t4", AccountID: "a2", CategoryID: "food", Date: day},
		},
	})
	require.NoError(t, err)

	txs, err := s.TransactionsByClientCategory(ctx, "c1", "food")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "t1", txs[0].ID)
	assert.Equal(t, "t2", txs[1].ID)
}

func TestSaveAtomic_ConcurrentWritersOneWins(t *testing.T) {
	s := NewMemoryLedgerStore()
	seed(t, s)
	ctx := context.Background()

	acc, _ := s.GetAccount(ctx, "a1")

	const n = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			a := acc
			a.Balance = a.Balance.Sub(decimal.NewFromInt(1))
			if _, err := s.SaveAtomic(ctx, storage.Batch{Accounts: []models.Account{a}}); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	got, _ := s.GetAccount(ctx, "a1")
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(99)))
}
