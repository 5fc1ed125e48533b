package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookups(t *testing.T) {
	f := newFixture(t, "100",
		budget("shared", "100", "100", "1", "3"),
		budget("theirs", "100", "100", "3"),
	)
	ctx := context.Background()

	tx, err := f.ledger.PostTransaction(ctx, expense("-25"))
	require.NoError(t, err)

	got, err := f.ledger.Transaction(ctx, tx.ID)
	require.NoError(t, err)
	assertAmount(t, "-25", got.Amount)

	account, err := f.ledger.Account(ctx, "1")
	require.NoError(t, err)
	assertAmount(t, "75", account.Balance)

	shared, err := f.ledger.Budget(ctx, "shared")
	require.NoError(t, err)
	assertAmount(t, "75", shared.AvailableSum)

	all, err := f.ledger.Budgets(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := f.ledger.BudgetsByClient(ctx, "1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "shared", mine[0].ID)

	filtered, err := f.ledger.FilterBudgets(ctx, "3", "2")
	require.NoError(t, err)
	assert.Len(t, filtered, 2)

	none, err := f.ledger.FilterBudgets(ctx, "1", "4")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	clients, err := f.ledger.Clients(ctx)
	require.NoError(t, err)
	assert.Len(t, clients, 2)
	client, err := f.ledger.Client(ctx, "3")
	require.NoError(t, err)
	assert.Equal(t, "bob", client.Username)
}

func TestLookups_Errors(t *testing.T) {
	f := newFixture(t, "100")
	ctx := context.Background()

	_, err := f.ledger.Budget(ctx, "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = f.ledger.Transaction(ctx, "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = f.ledger.BudgetsByClient(ctx, "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = f.ledger.FilterBudgets(ctx, "1", "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = f.ledger.FilterBudgets(ctx, "", "2")
	assert.True(t, errors.Is(err, ErrInvalidData))
}
