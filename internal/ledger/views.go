package ledger

import (
	"context"

	"github.com/sheikh-saqib/finance-ledger/internal/cache"
	"github.com/sheikh-saqib/finance-ledger/internal/models"
)

// AccountsByClient lists a client's accounts.
func (l *Ledger) AccountsByClient(ctx context.Context, clientID string) ([]models.Account, error) {
	return readThrough(ctx, l, cache.AccountsByClientKey(clientID), func(ctx context.Context) ([]models.Account, error) {
		return l.store.AccountsByClient(ctx, clientID)
	})
}

// TransactionsByClientCategory lists the transactions of every account of a client
// in one category, oldest first.
func (l *Ledger) TransactionsByClientCategory(ctx context.Context, clientID, categoryID string) ([]models.Transaction, error) {
	key := cache.TransactionsByClientCategoryKey(clientID, categoryID)
	return readThrough(ctx, l, key, func(ctx context.Context) ([]models.Transaction, error) {
		return l.store.TransactionsByClientCategory(ctx, clientID, categoryID)
	})
}

// GoalsByClient lists a client's savings goals.
func (l *Ledger) GoalsByClient(ctx context.Context, clientID string) ([]models.Goal, error) {
	return readThrough(ctx, l, cache.GoalsByClientKey(clientID), func(ctx context.Context) ([]models.Goal, error) {
		return l.store.GoalsByClient(ctx, clientID)
	})
}

// AllCategories lists every category.
func (l *Ledger) AllCategories(ctx context.Context) ([]models.Category, error) {
	return readThrough(ctx, l, cache.AllCategoriesKey, l.store.ListCategories)
}

// readThrough serves key from the cache and falls back to the store on a miss.
// A cache failure degrades to a store read.
//
// The loaded value is only cached if no writer invalidated key while it was being
// loaded; otherwise a pre-write snapshot could outlive the invalidation.
func readThrough[T any](ctx context.Context, l *Ledger, key string, loadFn func(context.Context) ([]T, error)) ([]T, error) {
	var cached []T
	hit, err := l.cache.Get(ctx, key, &cached)
	if err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("cache read failed, falling back to store")
	}
	if hit && err == nil {
		return cached, nil
	}

	gen := l.generation(key)

	rows, err := loadFn(ctx)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []T{}
	}

	if l.generation(key) != gen {
		return rows, nil
	}
	if err := l.cache.Put(ctx, key, rows); err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		return rows, nil
	}
	// A writer that invalidated key while the put was in flight may have been
	// overtaken by it; drop the entry again.
	if l.generation(key) != gen {
		if err := l.cache.Invalidate(ctx, key); err != nil {
			l.log.Warn().Err(err).Str("key", key).Msg("dropping raced cache write failed")
		}
	}
	return rows, nil
}
