package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/finance-ledger/internal/storage"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrBudgetLimitExceeded = errors.New("budget limit exceeded")
	ErrInvalidData         = errors.New("invalid data")
	// ErrConflict means a concurrent writer changed one of the records first.
	// Nothing was written; the call may be retried.
	ErrConflict = storage.ErrConflict
	// ErrCacheInvalidation means the write was committed but derived views may be stale.
	ErrCacheInvalidation = errors.New("cache invalidation failed")
)

// NotFoundError names the missing record.
type NotFoundError struct {
	Entity storage.Kind
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InsufficientFundsError reports a change that would take an account below zero.
type InsufficientFundsError struct {
	AccountID string
	Balance   decimal.Decimal
	Amount    decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds in account %s: balance %s, change %s",
		e.AccountID, e.Balance.StringFixed(2), e.Amount.StringFixed(2))
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// Shortfall is how much money the account is missing.
func (e *InsufficientFundsError) Shortfall() decimal.Decimal {
	return e.Balance.Add(e.Amount).Neg()
}

// BudgetLimitError reports the first budget that cannot absorb an expense.
type BudgetLimitError struct {
	BudgetID  string
	Category  string
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *BudgetLimitError) Error() string {
	return fmt.Sprintf("budget limit '%s' exceeded: available %s, required %s",
		e.Category, e.Available.StringFixed(2), e.Required.StringFixed(2))
}

func (e *BudgetLimitError) Unwrap() error { return ErrBudgetLimitExceeded }

func invalidData(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidData, fmt.Sprintf(format, args...))
}

func notFound(kind storage.Kind, id string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return &NotFoundError{Entity: kind, ID: id}
	}
	return fmt.Errorf("loading %s %s: %w", kind, id, err)
}

// isDomainError reports whether err is a business-rule rejection rather than an
// infrastructure failure.
func isDomainError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidData) ||
		errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrBudgetLimitExceeded) ||
		errors.Is(err, ErrConflict)
}
