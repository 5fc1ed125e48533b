package ledger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/finance-ledger/internal/cache"
	"github.com/sheikh-saqib/finance-ledger/internal/models"
	"github.com/sheikh-saqib/finance-ledger/internal/models/events"
	"github.com/sheikh-saqib/finance-ledger/internal/storage"
)

// TransactionInput carries a new transaction. A negative Amount is an expense.
type TransactionInput struct {
	AccountID   string
	CategoryID  string
	Amount      decimal.Decimal
	Date        time.Time
	Description string
}

// TransactionUpdate carries the mutable fields of a transaction.
type TransactionUpdate struct {
	Amount      decimal.Decimal
	Date        time.Time
	Description string
}

// posting is a validated transaction together with every record it changes.
type posting struct {
	tx       models.Transaction
	account  models.Account
	category models.Category
	budgets  []models.Budget
}

func (p posting) batch() storage.Batch {
	return storage.Batch{
		Transactions: []models.Transaction{p.tx},
		Accounts:     []models.Account{p.account},
		Budgets:      p.budgets,
	}
}

func (p posting) cacheKeys() []string {
	return []string{
		cache.TransactionsByClientCategoryKey(p.account.ClientID, p.category.ID),
		cache.AccountsByClientKey(p.account.ClientID),
	}
}

// PostTransaction records an income or expense against an account.
//
// The account balance may not drop below zero, and an expense must fit into every
// budget of its category that the account's client shares. All checks run before
// anything is written; the transaction, the new balance and the reduced budgets are
// then committed together. If the commit succeeded but cache invalidation failed,
// the committed transaction is returned along with an error wrapping
// ErrCacheInvalidation.
func (l *Ledger) PostTransaction(ctx context.Context, in TransactionInput) (models.Transaction, error) {
	if in.AccountID == "" || in.CategoryID == "" {
		return models.Transaction{}, invalidData("account and category are required")
	}
	if err := checkScale("amount", in.Amount); err != nil {
		return models.Transaction{}, err
	}

	var ev events.LedgerEvent
	defer l.publishPending(ctx, &ev)
	unlock := l.lock(lockKey(storage.KindAccount, in.AccountID))
	defer unlock()

	p, err := l.preparePosting(ctx, in)
	if err != nil {
		l.rejected(in, err)
		return models.Transaction{}, err
	}

	committed, err := l.commit(ctx, p.batch())
	if err != nil {
		return models.Transaction{}, err
	}
	tx := committed.Transactions[0]
	balance := committed.Accounts[0].Balance

	l.log.Debug().
		Str("transaction_id", tx.ID).
		Str("account_id", tx.AccountID).
		Str("category_id", tx.CategoryID).
		Str("amount", tx.Amount.String()).
		Str("balance", balance.String()).
		Int("budgets", len(committed.Budgets)).
		Msg("transaction posted")

	invErr := l.invalidate(ctx, p.cacheKeys()...)
	ev = events.LedgerEvent{
		Type:          events.TransactionPosted,
		TransactionID: tx.ID,
		AccountID:     tx.AccountID,
		ClientID:      p.account.ClientID,
		CategoryID:    tx.CategoryID,
		Amount:        tx.Amount,
		Balance:       balance,
	}
	return tx, invErr
}

// preparePosting runs every check of a posting and builds the records to commit.
// The caller must hold the account lock.
func (l *Ledger) preparePosting(ctx context.Context, in TransactionInput) (posting, error) {
	if err := l.validateDate(in.Date); err != nil {
		return posting{}, err
	}

	account, err := load(ctx, storage.KindAccount, in.AccountID, l.store.GetAccount)
	if err != nil {
		return posting{}, err
	}
	category, err := load(ctx, storage.KindCategory, in.CategoryID, l.store.GetCategory)
	if err != nil {
		return posting{}, err
	}

	newBalance := account.Balance.Add(in.Amount)
	if newBalance.IsNegative() {
		return posting{}, &InsufficientFundsError{
			AccountID: account.ID,
			Balance:   account.Balance,
			Amount:    in.Amount,
		}
	}

	var budgets []models.Budget
	if in.Amount.IsNegative() {
		budgets, err = l.checkBudgets(ctx, category, account.ClientID, in.Amount)
		if err != nil {
			return posting{}, err
		}
	}

	account.Balance = newBalance
	return posting{
		tx: models.Transaction{
			ID:          l.newID(),
			Description: in.Description,
			Amount:      in.Amount,
			Date:        in.Date,
			AccountID:   account.ID,
			CategoryID:  category.ID,
			CreatedAt:   l.now().UTC(),
		},
		account:  account,
		category: category,
		budgets:  budgets,
	}, nil
}

func (l *Ledger) rejected(in TransactionInput, err error) {
	level := zerolog.WarnLevel
	if !isDomainError(err) {
		level = zerolog.ErrorLevel
	}
	l.log.WithLevel(level).Err(err).
		Str("account_id", in.AccountID).
		Str("category_id", in.CategoryID).
		Str("amount", in.Amount.String()).
		Msg("transaction rejected")
}

// UpdateTransaction changes the amount, date and description of a transaction and
// moves the account balance by the difference in amount. Budgets are not
// re-evaluated.
func (l *Ledger) UpdateTransaction(ctx context.Context, id string, upd TransactionUpdate) (models.Transaction, error) {
	if err := l.validateDate(upd.Date); err != nil {
		return models.Transaction{}, err
	}
	if err := checkScale("amount", upd.Amount); err != nil {
		return models.Transaction{}, err
	}

	current, err := load(ctx, storage.KindTransaction, id, l.store.GetTransaction)
	if err != nil {
		return models.Transaction{}, err
	}

	var ev events.LedgerEvent
	defer l.publishPending(ctx, &ev)
	unlock := l.lock(lockKey(storage.KindAccount, current.AccountID))
	defer unlock()

	// Re-read under the lock so the versions we write against are current.
	tx, err := load(ctx, storage.KindTransaction, id, l.store.GetTransaction)
	if err != nil {
		return models.Transaction{}, err
	}
	account, err := load(ctx, storage.KindAccount, tx.AccountID, l.store.GetAccount)
	if err != nil {
		return models.Transaction{}, err
	}

	delta := upd.Amount.Sub(tx.Amount)
	if account.Balance.Add(delta).IsNegative() {
		err := &InsufficientFundsError{AccountID: account.ID, Balance: account.Balance, Amount: delta}
		l.log.Warn().Err(err).Str("transaction_id", id).Msg("transaction update rejected")
		return models.Transaction{}, err
	}

	account.Balance = account.Balance.Add(delta)
	tx.Amount = upd.Amount
	tx.Date = upd.Date
	tx.Description = upd.Description

	committed, err := l.commit(ctx, storage.Batch{
		Transactions: []models.Transaction{tx},
		Accounts:     []models.Account{account},
	})
	if err != nil {
		return models.Transaction{}, err
	}
	tx = committed.Transactions[0]

	l.log.Debug().Str("transaction_id", id).Str("delta", delta.String()).Msg("transaction updated")

	invErr := l.invalidate(ctx,
		cache.TransactionsByClientCategoryKey(account.ClientID, tx.CategoryID),
		cache.AccountsByClientKey(account.ClientID),
	)
	ev = events.LedgerEvent{
		Type:          events.TransactionUpdated,
		TransactionID: tx.ID,
		AccountID:     tx.AccountID,
		ClientID:      account.ClientID,
		CategoryID:    tx.CategoryID,
		Amount:        delta,
		Balance:       committed.Accounts[0].Balance,
	}
	return tx, invErr
}

// DeleteTransaction removes a transaction. The account balance and budgets keep
// the effect the transaction had when it was posted.
func (l *Ledger) DeleteTransaction(ctx context.Context, id string) error {
	tx, err := load(ctx, storage.KindTransaction, id, l.store.GetTransaction)
	if err != nil {
		return err
	}

	var ev events.LedgerEvent
	defer l.publishPending(ctx, &ev)
	unlock := l.lock(lockKey(storage.KindAccount, tx.AccountID))
	defer unlock()

	account, err := load(ctx, storage.KindAccount, tx.AccountID, l.store.GetAccount)
	if err != nil {
		return err
	}

	var batch storage.Batch
	batch.Delete(storage.KindTransaction, tx.ID)
	if _, err := l.commit(ctx, batch); err != nil {
		return err
	}

	l.log.Debug().Str("transaction_id", id).Msg("transaction deleted")

	invErr := l.invalidate(ctx,
		cache.TransactionsByClientCategoryKey(account.ClientID, tx.CategoryID),
		cache.AccountsByClientKey(account.ClientID),
	)
	ev = events.LedgerEvent{
		Type:          events.TransactionDeleted,
		TransactionID: tx.ID,
		AccountID:     tx.AccountID,
		ClientID:      account.ClientID,
		CategoryID:    tx.CategoryID,
		Amount:        tx.Amount,
		Balance:       account.Balance,
	}
	return invErr
}
