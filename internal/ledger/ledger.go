package ledger

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	interfaces "github.com/sheikh-saqib/finance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/finance-ledger/internal/models/events"
	"github.com/sheikh-saqib/finance-ledger/internal/storage"
)

// Ledger is the consistency engine of the finance tracker. It owns every write to
// balances, budgets and goals, commits each logical operation as one store batch and
// keeps the derived-view cache coherent with what it committed.
type Ledger struct {
	store     interfaces.LedgerStore
	cache     interfaces.Cache
	publisher interfaces.EventPublisher
	log       zerolog.Logger
	now       func() time.Time
	newID     func() string

	muMap map[string]*sync.Mutex // one mutex per account or goal id
	mapMu sync.Mutex             // protects muMap

	genMu       sync.Mutex
	generations map[string]uint64 // bumped on every invalidation, see readThrough
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithPublisher emits a LedgerEvent after every committed posting.
func WithPublisher(p interfaces.EventPublisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

// WithLogger sets the logger the ledger reports rejections and failures to.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// WithClock replaces time.Now, which decides what "today" is for date validation.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator replaces the uuid generator used for new records.
func WithIDGenerator(newID func() string) Option {
	return func(l *Ledger) { l.newID = newID }
}

// NewLedger creates a Ledger over the given store and cache.
func NewLedger(store interfaces.LedgerStore, cache interfaces.Cache, opts ...Option) *Ledger {
	l := &Ledger{
		store:       store,
		cache:       cache,
		log:         zerolog.Nop(),
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
		muMap:       make(map[string]*sync.Mutex),
		generations: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) getLock(id string) *sync.Mutex {
	l.mapMu.Lock()
	defer l.mapMu.Unlock()

	if _, exists := l.muMap[id]; !exists {
		l.muMap[id] = &sync.Mutex{}
	}
	return l.muMap[id]
}

// lock acquires the mutexes of every id in sorted order so that two operations
// touching the same pair never deadlock. The returned func releases them.
func (l *Ledger) lock(ids ...string) func() {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	held := make([]*sync.Mutex, 0, len(ids))
	for _, id := range ids {
		mu := l.getLock(id)
		mu.Lock()
		held = append(held, mu)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func lockKey(kind storage.Kind, id string) string {
	return string(kind) + ":" + id
}

// load fetches one record and turns storage.ErrNotFound into a *NotFoundError.
func load[T any](ctx context.Context, kind storage.Kind, id string, get func(context.Context, string) (T, error)) (T, error) {
	rec, err := get(ctx, id)
	if err != nil {
		var zero T
		return zero, notFound(kind, id, err)
	}
	return rec, nil
}

func (l *Ledger) commit(ctx context.Context, batch storage.Batch) (storage.Batch, error) {
	committed, err := l.store.SaveAtomic(ctx, batch)
	if err != nil {
		return storage.Batch{}, fmt.Errorf("committing batch: %w", err)
	}
	return committed, nil
}

// invalidate drops the given keys after a commit. A failure here does not undo the
// commit; it is returned wrapped in ErrCacheInvalidation.
func (l *Ledger) invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	l.genMu.Lock()
	for _, k := range keys {
		l.generations[k]++
	}
	l.genMu.Unlock()

	if err := l.cache.Invalidate(ctx, keys...); err != nil {
		l.log.Error().Err(err).Strs("keys", keys).Msg("cache invalidation failed after commit")
		return fmt.Errorf("%w: %w", ErrCacheInvalidation, err)
	}
	return nil
}

func (l *Ledger) generation(key string) uint64 {
	l.genMu.Lock()
	defer l.genMu.Unlock()
	return l.generations[key]
}

// publishPending publishes ev if an operation filled it in. It is deferred before
// the record locks are taken, so the broker round trip happens after they are
// released.
func (l *Ledger) publishPending(ctx context.Context, ev *events.LedgerEvent) {
	if ev.Type != "" {
		l.publish(ctx, *ev)
	}
}

func (l *Ledger) publish(ctx context.Context, ev events.LedgerEvent) {
	if l.publisher == nil {
		return
	}
	ev.OccurredAt = l.now().UTC()
	if err := l.publisher.Publish(ctx, ev); err != nil {
		l.log.Error().Err(err).
			Str("event", ev.Type).
			Str("transaction_id", ev.TransactionID).
			Msg("failed to publish ledger event")
	}
}

// moneyScale is the number of decimal places amounts are stored with.
const moneyScale = 4

// checkScale rejects amounts the store could only keep by rounding them.
func checkScale(field string, amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(moneyScale)) {
		return invalidData("%s %s has more than %d decimal places", field, amount, moneyScale)
	}
	return nil
}

// validateDate rejects missing dates and dates after today. Days are compared in UTC.
func (l *Ledger) validateDate(date time.Time) error {
	if date.IsZero() {
		return invalidData("transaction date is required")
	}
	if day(date).After(day(l.now())) {
		return invalidData("transaction date %s is in the future", date.Format(time.DateOnly))
	}
	return nil
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
