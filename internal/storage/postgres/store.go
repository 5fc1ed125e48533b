package postgres

import (
	"cmp"
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"slices"

	"github.com/lib/pq"

	interfaces "github.com/sheikh-saqib/finance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/finance-ledger/internal/models"
	"github.com/sheikh-saqib/finance-ledger/internal/storage"
)

//go:embed schema.sql
var schema string

type PostgresLedgerStore struct {
	db *sql.DB
}

func NewPostgresLedgerStore(db *sql.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{
		db: db,
	}
}

// Open connects to dsn with the lib/pq driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return db, nil
}

// Migrate creates the ledger tables if they do not exist yet.
func (p *PostgresLedgerStore) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

const (
	clientColumns      = `id, username, email, password, created_at, version`
	accountColumns     = `id, name, balance, client_id, version`
	categoryColumns    = `id, name, version`
	goalColumns        = `id, name, target_amount, current_amount, start_date, end_date, client_id, version`
	transactionColumns = `t.id, t.description, t.amount, t.date, t.account_id, t.category_id, t.created_at, t.version`

	budgetSelect = `SELECT b.id, b.limitation, b.available_sum, b.period, b.category_id, b.version,
	COALESCE(array_agg(bc.client_id ORDER BY bc.client_id) FILTER (WHERE bc.client_id IS NOT NULL), '{}')
	FROM budgets b LEFT JOIN budget_clients bc ON bc.budget_id = b.id`
	budgetGroup = ` GROUP BY b.id ORDER BY b.id`

	transactionOrder = ` ORDER BY t.date, t.created_at, t.id`
)

func scanClient(row scanner) (models.Client, error) {
	var c models.Client
	err := row.Scan(&c.ID, &c.Username, &c.Email, &c.Password, &c.CreatedAt, &c.Version)
	return c, err
}

func scanAccount(row scanner) (models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Name, &a.Balance, &a.ClientID, &a.Version)
	return a, err
}

func scanCategory(row scanner) (models.Category, error) {
	var c models.Category
	err := row.Scan(&c.ID, &c.Name, &c.Version)
	return c, err
}

func scanBudget(row scanner) (models.Budget, error) {
	var b models.Budget
	err := row.Scan(&b.ID, &b.Limitation, &b.AvailableSum, &b.Period, &b.CategoryID, &b.Version, pq.Array(&b.ClientIDs))
	return b, err
}

func scanGoal(row scanner) (models.Goal, error) {
	var g models.Goal
	err := row.Scan(&g.ID, &g.Name, &g.TargetAmount, &g.CurrentAmount, &g.StartDate, &g.EndDate, &g.ClientID, &g.Version)
	return g, err
}

func scanTransaction(row scanner) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.Description, &t.Amount, &t.Date, &t.AccountID, &t.CategoryID, &t.CreatedAt, &t.Version)
	return t, err
}

func queryOne[T any](ctx context.Context, db *sql.DB, kind storage.Kind, id string, scan func(scanner) (T, error), query string) (T, error) {
	rec, err := scan(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	if err != nil {
		return rec, fmt.Errorf("postgres: get %s %s: %w", kind, id, err)
	}
	return rec, nil
}

func queryAll[T any](ctx context.Context, db *sql.DB, scan func(scanner) (T, error), query string, args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	defer rows.Close()

	var result []T
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rows: %w", err)
	}
	return result, nil
}

func (p *PostgresLedgerStore) GetClient(ctx context.Context, id string) (models.Client, error) {
	return queryOne(ctx, p.db, storage.KindClient, id, scanClient,
		`SELECT `+clientColumns+` FROM clients WHERE id = $1`)
}

func (p *PostgresLedgerStore) GetAccount(ctx context.Context, id string) (models.Account, error) {
	return queryOne(ctx, p.db, storage.KindAccount, id, scanAccount,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`)
}

func (p *PostgresLedgerStore) GetCategory(ctx context.Context, id string) (models.Category, error) {
	return queryOne(ctx, p.db, storage.KindCategory, id, scanCategory,
		`SELECT `+categoryColumns+` FROM categories WHERE id = $1`)
}

func (p *PostgresLedgerStore) GetBudget(ctx context.Context, id string) (models.Budget, error) {
	return queryOne(ctx, p.db, storage.KindBudget, id, scanBudget,
		budgetSelect+` WHERE b.id = $1`+budgetGroup)
}

func (p *PostgresLedgerStore) GetGoal(ctx context.Context, id string) (models.Goal, error) {
	return queryOne(ctx, p.db, storage.KindGoal, id, scanGoal,
		`SELECT `+goalColumns+` FROM goals WHERE id = $1`)
}

func (p *PostgresLedgerStore) GetTransaction(ctx context.Context, id string) (models.Transaction, error) {
	return queryOne(ctx, p.db, storage.KindTransaction, id, scanTransaction,
		`SELECT `+transactionColumns+` FROM transactions t WHERE t.id = $1`)
}

func (p *PostgresLedgerStore) ListClients(ctx context.Context) ([]models.Client, error) {
	return queryAll(ctx, p.db, scanClient, `SELECT `+clientColumns+` FROM clients ORDER BY id`)
}

func (p *PostgresLedgerStore) ListBudgets(ctx context.Context) ([]models.Budget, error) {
	return queryAll(ctx, p.db, scanBudget, budgetSelect+budgetGroup)
}

func (p *PostgresLedgerStore) FindBudgets(ctx context.Context, categoryID, clientID string) ([]models.Budget, error) {
	return queryAll(ctx, p.db, scanBudget, budgetSelect+`
	WHERE b.category_id = $1
	  AND EXISTS (SELECT 1 FROM budget_clients m WHERE m.budget_id = b.id AND m.client_id = $2)`+budgetGroup,
		categoryID, clientID)
}

func (p *PostgresLedgerStore) BudgetsByClient(ctx context.Context, clientID string) ([]models.Budget, error) {
	return queryAll(ctx, p.db, scanBudget, budgetSelect+`
	WHERE EXISTS (SELECT 1 FROM budget_clients m WHERE m.budget_id = b.id AND m.client_id = $1)`+budgetGroup,
		clientID)
}

func (p *PostgresLedgerStore) BudgetsByCategory(ctx context.Context, categoryID string) ([]models.Budget, error) {
	return queryAll(ctx, p.db, scanBudget, budgetSelect+` WHERE b.category_id = $1`+budgetGroup, categoryID)
}

func (p *PostgresLedgerStore) AccountsByClient(ctx context.Context, clientID string) ([]models.Account, error) {
	return queryAll(ctx, p.db, scanAccount,
		`SELECT `+accountColumns+` FROM accounts WHERE client_id = $1 ORDER BY id`, clientID)
}

func (p *PostgresLedgerStore) GoalsByClient(ctx context.Context, clientID string) ([]models.Goal, error) {
	return queryAll(ctx, p.db, scanGoal,
		`SELECT `+goalColumns+` FROM goals WHERE client_id = $1 ORDER BY id`, clientID)
}

func (p *PostgresLedgerStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	return queryAll(ctx, p.db, scanCategory, `SELECT `+categoryColumns+` FROM categories ORDER BY id`)
}

func (p *PostgresLedgerStore) TransactionsByAccount(ctx context.Context, accountID string) ([]models.Transaction, error) {
	return queryAll(ctx, p.db, scanTransaction,
		`SELECT `+transactionColumns+` FROM transactions t WHERE t.account_id = $1`+transactionOrder, accountID)
}

func (p *PostgresLedgerStore) TransactionsByCategory(ctx context.Context, categoryID string) ([]models.Transaction, error) {
	return queryAll(ctx, p.db, scanTransaction,
		`SELECT `+transactionColumns+` FROM transactions t WHERE t.category_id = $1`+transactionOrder, categoryID)
}

func (p *PostgresLedgerStore) TransactionsByClientCategory(ctx context.Context, clientID, categoryID string) ([]models.Transaction, error) {
	return queryAll(ctx, p.db, scanTransaction,
		`SELECT `+transactionColumns+` FROM transactions t
	JOIN accounts a ON a.id = t.account_id
	WHERE a.client_id = $1 AND t.category_id = $2`+transactionOrder, clientID, categoryID)
}

// SaveAtomic implements interfaces.LedgerStore inside one database transaction.
// Parents are written before children and deletes run children first, so foreign
// keys hold at every statement.
func (p *PostgresLedgerStore) SaveAtomic(ctx context.Context, batch storage.Batch) (committed storage.Batch, err error) {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Batch{}, fmt.Errorf("postgres: begin: %w", err)
	}

	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	for _, c := range batch.Clients {
		if err = saveClient(ctx, dbTx, c); err != nil {
			return storage.Batch{}, err
		}
		c.Version++
		committed.Clients = append(committed.Clients, c)
	}
	for _, c := range batch.Categories {
		if err = saveCategory(ctx, dbTx, c); err != nil {
			return storage.Batch{}, err
		}
		c.Version++
		committed.Categories = append(committed.Categories, c)
	}
	for _, a := range batch.Accounts {
		if err = saveAccount(ctx, dbTx, a); err != nil {
			return storage.Batch{}, err
		}
		a.Version++
		committed.Accounts = append(committed.Accounts, a)
	}
	for _, b := range batch.Budgets {
		if err = saveBudget(ctx, dbTx, b); err != nil {
			return storage.Batch{}, err
		}
		b.ClientIDs = slices.Clone(b.ClientIDs)
		b.Version++
		committed.Budgets = append(committed.Budgets, b)
	}
	for _, g := range batch.Goals {
		if err = saveGoal(ctx, dbTx, g); err != nil {
			return storage.Batch{}, err
		}
		g.Version++
		committed.Goals = append(committed.Goals, g)
	}
	for _, t := range batch.Transactions {
		if err = saveTransaction(ctx, dbTx, t); err != nil {
			return storage.Batch{}, err
		}
		t.Version++
		committed.Transactions = append(committed.Transactions, t)
	}

	deletes := slices.Clone(batch.Deletes)
	slices.SortStableFunc(deletes, func(a, b storage.Ref) int {
		return cmp.Compare(deleteRank[a.Kind], deleteRank[b.Kind])
	})
	for _, ref := range deletes {
		table, ok := tables[ref.Kind]
		if !ok {
			err = fmt.Errorf("postgres: unknown record kind %q", ref.Kind)
			return storage.Batch{}, err
		}
		if _, err = dbTx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1`, ref.ID); err != nil {
			err = classify(ref.Kind, ref.ID, err)
			return storage.Batch{}, err
		}
	}
	committed.Deletes = batch.Deletes

	if err = dbTx.Commit(); err != nil {
		err = classify("batch", "", err)
		return storage.Batch{}, err
	}
	return committed, nil
}

var tables = map[storage.Kind]string{
	storage.KindClient:      "clients",
	storage.KindAccount:     "accounts",
	storage.KindCategory:    "categories",
	storage.KindBudget:      "budgets",
	storage.KindGoal:        "goals",
	storage.KindTransaction: "transactions",
}

// deleteRank orders deletes from the most dependent table to the least.
var deleteRank = map[storage.Kind]int{
	storage.KindTransaction: 0,
	storage.KindGoal:        1,
	storage.KindAccount:     2,
	storage.KindBudget:      3,
	storage.KindCategory:    4,
	storage.KindClient:      5,
}

// write inserts a record when version is 0 and otherwise updates it only if the
// stored version still equals version. update takes args followed by version.
func write(ctx context.Context, dbTx *sql.Tx, kind storage.Kind, id string, version int64, insert, update string, args ...any) error {
	if version == 0 {
		if _, err := dbTx.ExecContext(ctx, insert, args...); err != nil {
			return classify(kind, id, err)
		}
		return nil
	}

	res, err := dbTx.ExecContext(ctx, update, append(args, version)...)
	if err != nil {
		return classify(kind, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: %s %s: %w", kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s changed since version %d: %w", kind, id, version, storage.ErrConflict)
	}
	return nil
}

func saveClient(ctx context.Context, dbTx *sql.Tx, c models.Client) error {
	return write(ctx, dbTx, storage.KindClient, c.ID, c.Version,
		`INSERT INTO clients (id, username, email, password, created_at, version) VALUES ($1, $2, $3, $4, $5, 1)`,
		`UPDATE clients SET username = $2, email = $3, password = $4, created_at = $5, version = version + 1
		WHERE id = $1 AND version = $6`,
		c.ID, c.Username, c.Email, c.Password, c.CreatedAt)
}

func saveCategory(ctx context.Context, dbTx *sql.Tx, c models.Category) error {
	return write(ctx, dbTx, storage.KindCategory, c.ID, c.Version,
		`INSERT INTO categories (id, name, version) VALUES ($1, $2, 1)`,
		`UPDATE categories SET name = $2, version = version + 1 WHERE id = $1 AND version = $3`,
		c.ID, c.Name)
}

func saveAccount(ctx context.Context, dbTx *sql.Tx, a models.Account) error {
	return write(ctx, dbTx, storage.KindAccount, a.ID, a.Version,
		`INSERT INTO accounts (id, name, balance, client_id, version) VALUES ($1, $2, $3, $4, 1)`,
		`UPDATE accounts SET name = $2, balance = $3, client_id = $4, version = version + 1
		WHERE id = $1 AND version = $5`,
		a.ID, a.Name, a.Balance, a.ClientID)
}

func saveBudget(ctx context.Context, dbTx *sql.Tx, b models.Budget) error {
	err := write(ctx, dbTx, storage.KindBudget, b.ID, b.Version,
		`INSERT INTO budgets (id, limitation, available_sum, period, category_id, version) VALUES ($1, $2, $3, $4, $5, 1)`,
		`UPDATE budgets SET limitation = $2, available_sum = $3, period = $4, category_id = $5, version = version + 1
		WHERE id = $1 AND version = $6`,
		b.ID, b.Limitation, b.AvailableSum, b.Period, b.CategoryID)
	if err != nil {
		return err
	}

	if _, err := dbTx.ExecContext(ctx, `DELETE FROM budget_clients WHERE budget_id = $1`, b.ID); err != nil {
		return classify(storage.KindBudget, b.ID, err)
	}
	if _, err := dbTx.ExecContext(ctx,
		`INSERT INTO budget_clients (budget_id, client_id) SELECT $1, unnest($2::text[])`,
		b.ID, pq.Array(b.ClientIDs)); err != nil {
		return classify(storage.KindBudget, b.ID, err)
	}
	return nil
}

func saveGoal(ctx context.Context, dbTx *sql.Tx, g models.Goal) error {
	return write(ctx, dbTx, storage.KindGoal, g.ID, g.Version,
		`INSERT INTO goals (id, name, target_amount, current_amount, start_date, end_date, client_id, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1)`,
		`UPDATE goals SET name = $2, target_amount = $3, current_amount = $4, start_date = $5, end_date = $6,
		client_id = $7, version = version + 1 WHERE id = $1 AND version = $8`,
		g.ID, g.Name, g.TargetAmount, g.CurrentAmount, g.StartDate, g.EndDate, g.ClientID)
}

func saveTransaction(ctx context.Context, dbTx *sql.Tx, t models.Transaction) error {
	return write(ctx, dbTx, storage.KindTransaction, t.ID, t.Version,
		`INSERT INTO transactions (id, description, amount, date, account_id, category_id, created_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1)`,
		`UPDATE transactions SET description = $2, amount = $3, date = $4, account_id = $5, category_id = $6,
		created_at = $7, version = version + 1 WHERE id = $1 AND version = $8`,
		t.ID, t.Description, t.Amount, t.Date, t.AccountID, t.CategoryID, t.CreatedAt)
}

// classify maps races reported by Postgres to storage.ErrConflict: a concurrent
// insert of the same id, a parent deleted underneath us, or a serialization failure.
func classify(kind storage.Kind, id string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505", "23503", "40001", "40P01":
			return fmt.Errorf("%s %s: %s: %w", kind, id, pqErr.Message, storage.ErrConflict)
		}
	}
	return fmt.Errorf("postgres: %s %s: %w", kind, id, err)
}

var _ interfaces.LedgerStore = (*PostgresLedgerStore)(nil)
