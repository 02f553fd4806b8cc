package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type inMemoryLedger struct {
	mu        sync.RWMutex
	balances  map[string]decimal.Decimal
	entries   map[string][]Entry
	commitErr error
	now       func() time.Time
}

// NewInMemory creates a concurrency-safe in-memory ledger for development and tests.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		balances: make(map[string]decimal.Decimal),
		entries:  make(map[string][]Entry),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (l *inMemoryLedger) EnsureAccount(_ context.Context, accountID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.balances[accountID]; !exists {
		l.balances[accountID] = decimal.Zero
	}
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, accountID string) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	balance, exists := l.balances[accountID]
	if !exists {
		return decimal.Zero, ErrAccountNotFound
	}
	return balance, nil
}

func (l *inMemoryLedger) Apply(ctx context.Context, p Posting) (Result, error) {
	if err := p.validate(); err != nil {
		return Result{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{}, aborted("begin", err)
	}

	before, ok := l.balances[p.AccountID]
	if !ok {
		return Result{}, ErrAccountNotFound
	}

	entry, err := newEntry(p, before, int64(len(l.entries[p.AccountID]))+1, l.now())
	if err != nil {
		return Result{}, err
	}

	// Both writes happen below this point or not at all.
	if l.commitErr != nil {
		return Result{}, aborted("commit", l.commitErr)
	}

	l.balances[p.AccountID] = entry.BalanceAfter
	l.entries[p.AccountID] = append(l.entries[p.AccountID], entry)

	return Result{Balance: entry.BalanceAfter, Entry: entry}, nil
}

func (l *inMemoryLedger) History(_ context.Context, accountID string, req PageRequest) (Page, error) {
	req = req.normalize()

	l.mu.RLock()
	defer l.mu.RUnlock()

	all := l.entries[accountID]
	total := int64(len(all))
	page := Page{Total: total, Page: req.Page, Limit: req.Limit, Pages: PageCount(total, req.Limit), Items: []Entry{}}

	// entries are stored oldest first; walk backwards for newest first.
	for i := total - 1 - req.offset(); i >= 0 && len(page.Items) < req.Limit; i-- {
		page.Items = append(page.Items, all[i])
	}
	return page, nil
}
