package storage

import (
	"errors"

	"github.com/sheikh-saqib/finance-ledger/internal/models"
)

var (
	// ErrNotFound is returned by store lookups when no record has the requested id.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned by SaveAtomic when a record changed since it was read.
	// Callers may re-read and retry.
	ErrConflict = errors.New("concurrent modification")
)

// Kind names a record type held by the store.
type Kind string

const (
	KindClient      Kind = "client"
	KindAccount     Kind = "account"
	KindCategory    Kind = "category"
	KindBudget      Kind = "budget"
	KindGoal        Kind = "goal"
	KindTransaction Kind = "transaction"
)

// Ref identifies a record to delete.
type Ref struct {
	Kind Kind
	ID   string
}

// Batch is a set of writes committed as one unit: either every write becomes
// visible or none does.
//
// Records are upserted. A record's Version must equal the stored version (0 for a
// record that does not exist yet); the store bumps it by one on commit and rejects
// the whole batch with ErrConflict on any mismatch.
type Batch struct {
	Clients      []models.Client
	Accounts     []models.Account
	Categories   []models.Category
	Budgets      []models.Budget
	Goals        []models.Goal
	Transactions []models.Transaction
	Deletes      []Ref
}

// Delete queues the removal of a record.
func (b *Batch) Delete(kind Kind, id string) {
	b.Deletes = append(b.Deletes, Ref{Kind: kind, ID: id})
}

// Empty reports whether the batch carries no writes.
func (b Batch) Empty() bool {
	return len(b.Clients) == 0 && len(b.Accounts) == 0 && len(b.Categories) == 0 &&
		len(b.Budgets) == 0 && len(b.Goals) == 0 && len(b.Transactions) == 0 && len(b.Deletes) == 0
}
