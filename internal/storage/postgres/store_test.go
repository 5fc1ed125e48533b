package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/finance-ledger/internal/models"
	"github.com/sheikh-saqib/finance-ledger/internal/storage"
)

func newMockStore(t *testing.T) (*PostgresLedgerStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresLedgerStore(db), mock
}

func TestGetAccount(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, name, balance, client_id, version FROM accounts WHERE id = \$1`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "balance", "client_id", "version"}).
			AddRow("a1", "Main", "100.50", "c1", int64(3)))

	acc, err := store.GetAccount(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "Main", acc.Name)
	assert.True(t, acc.Balance.Equal(decimal.RequireFromString("100.50")))
	assert.Equal(t, "c1", acc.ClientID)
	assert.Equal(t, int64(3), acc.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAccount_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM accounts WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "balance", "client_id", "version"}))

	_, err := store.GetAccount(context.Background(), "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
}

func TestFindBudgets_ScansClientArray(t *testing.T) {
	store, mock := newMockStore(t)

	cols := []string{"id", "limitation", "available_sum", "period", "category_id", "version", "client_ids"}
	mock.ExpectQuery(`FROM budgets b LEFT JOIN budget_clients`).
		WithArgs("food", "c1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("b1", "100", "40", int64(1), "food", int64(2), "{c1,c2}").
			AddRow("b2", "10", "10", int64(0), "food", int64(1), "{c1}"))

	budgets, err := store.FindBudgets(context.Background(), "food", "c1")
	require.NoError(t, err)
	require.Len(t, budgets, 2)
	assert.Equal(t, []string{"c1", "c2"}, budgets[0].ClientIDs)
	assert.True(t, budgets[0].AvailableSum.Equal(decimal.NewFromInt(40)))
	assert.Equal(t, 1, budgets[0].Period)
	assert.Equal(t, []string{"c1"}, budgets[1].ClientIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListClientsAndBudgets(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, username, email, password, created_at, version FROM clients ORDER BY id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "password", "created_at", "version"}).
			AddRow("c1", "ann", "ann@example.com", "", created, int64(1)))
	mock.ExpectQuery(`FROM budgets b LEFT JOIN budget_clients bc ON bc.budget_id = b.id GROUP BY b.id ORDER BY b.id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "limitation", "available_sum", "period", "category_id", "version", "client_ids"}).
			AddRow("b1", "100", "40", int64(1), "food", int64(2), "{c1}"))

	clients, err := store.ListClients(context.Background())
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "ann", clients[0].Username)

	budgets, err := store.ListBudgets(context.Background())
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.Equal(t, []string{"c1"}, budgets[0].ClientIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAtomic_InsertsAndUpdates(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE accounts SET name = \$2, balance = \$3, client_id = \$4, version = version \+ 1`).
		WithArgs("a1", "Main", sqlmock.AnyArg(), "c1", int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO transactions`).
		WithArgs("t1", "", sqlmock.AnyArg(), now, "a1", "food", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	committed, err := store.SaveAtomic(context.Background(), storage.Batch{
		Accounts:     []models.Account{{ID: "a1", Name: "Main", ClientID: "c1", Balance: decimal.NewFromInt(90), Version: 4}},
		Transactions: []models.Transaction{{ID: "t1", Amount: decimal.NewFromInt(-10), Date: now, AccountID: "a1", CategoryID: "food", CreatedAt: now}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), committed.Accounts[0].Version)
	assert.Equal(t, int64(1), committed.Transactions[0].Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAtomic_StaleVersionRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE accounts`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := store.SaveAtomic(context.Background(), storage.Batch{
		Accounts:     []models.Account{{ID: "a1", Version: 2}},
		Transactions: []models.Transaction{{ID: "t1", AccountID: "a1"}},
	})
	assert.True(t, errors.Is(err, storage.ErrConflict), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAtomic_DuplicateInsertIsConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO categories`).WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key"})
	mock.ExpectRollback()

	_, err := store.SaveAtomic(context.Background(), storage.Batch{
		Categories: []models.Category{{ID: "food", Name: "Food"}},
	})
	assert.True(t, errors.Is(err, storage.ErrConflict), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAtomic_OtherErrorsAreNotConflicts(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO categories`).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := store.SaveAtomic(context.Background(), storage.Batch{
		Categories: []models.Category{{ID: "food", Name: "Food"}},
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, storage.ErrConflict))
}

func TestSaveAtomic_RewritesBudgetMembers(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE budgets SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM budget_clients WHERE budget_id = \$1`).
		WithArgs("b1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO budget_clients`).
		WithArgs("b1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	committed, err := store.SaveAtomic(context.Background(), storage.Batch{
		Budgets: []models.Budget{{ID: "b1", CategoryID: "food", ClientIDs: []string{"c2"}, Version: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c2"}, committed.Budgets[0].ClientIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAtomic_DeletesChildrenFirst(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM transactions WHERE id = \$1`).WithArgs("t1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM accounts WHERE id = \$1`).WithArgs("a1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM clients WHERE id = \$1`).WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var batch storage.Batch
	batch.Delete(storage.KindClient, "c1")
	batch.Delete(storage.KindAccount, "a1")
	batch.Delete(storage.KindTransaction, "t1")

	_, err := store.SaveAtomic(context.Background(), batch)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionsByClientCategory(t *testing.T) {
	store, mock := newMockStore(t)
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	cols := []string{"id", "description", "amount", "date", "account_id", "category_id", "created_at", "version"}
	mock.ExpectQuery(`JOIN accounts a ON a.id = t.account_id\s+WHERE a.client_id = \$1 AND t.category_id = \$2`).
		WithArgs("c1", "food").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("t1", "lunch", "-12.5", day, "a1", "food", day, int64(1)))

	txs, err := store.TransactionsByClientCategory(context.Background(), "c1", "food")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "lunch", txs[0].Description)
	assert.True(t, txs[0].Amount.Equal(decimal.RequireFromString("-12.5")))
	assert.Equal(t, day, txs[0].Date)
}

func TestMigrate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS clients`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
