package ledger

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newAccount(t *testing.T, l Ledger, id string) {
	t.Helper()
	if err := l.EnsureAccount(context.Background(), id); err != nil {
		t.Fatalf("ensure account %s: %v", id, err)
	}
}

func deposit(id, amount string) Posting {
	return Posting{AccountID: id, Type: TypeDeposit, Amount: d(amount), DeviceID: "device-1"}
}

func withdraw(id, amount string) Posting {
	return Posting{AccountID: id, Type: TypeWithdraw, Amount: d(amount), DeviceID: "device-1"}
}

// allEntries returns the account's history oldest first.
func allEntries(t *testing.T, l Ledger, id string) []Entry {
	t.Helper()
	page, err := l.History(context.Background(), id, PageRequest{Page: 1, Limit: 1_000_000})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	out := make([]Entry, len(page.Items))
	for i, e := range page.Items {
		out[len(page.Items)-1-i] = e
	}
	return out
}

func assertChain(t *testing.T, entries []Entry, start decimal.Decimal) {
	t.Helper()
	prev := start
	for i, e := range entries {
		if !e.BalanceBefore.Equal(prev) {
			t.Fatalf("entry %d: balance before %s, want %s", i, e.BalanceBefore, prev)
		}
		want := e.BalanceBefore.Add(e.Amount)
		if e.Type == TypeWithdraw {
			want = e.BalanceBefore.Sub(e.Amount)
		}
		if !e.BalanceAfter.Equal(want) {
			t.Fatalf("entry %d: balance after %s, want %s", i, e.BalanceAfter, want)
		}
		if e.Seq != int64(i+1) {
			t.Fatalf("entry %d: seq %d", i, e.Seq)
		}
		prev = e.BalanceAfter
	}
}

func TestInMemoryLedger_WorkedExample(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	newAccount(t, l, "acc")

	res, err := l.Apply(ctx, deposit("acc", "500"))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if !res.Balance.Equal(d("500")) || !res.Entry.BalanceBefore.IsZero() || !res.Entry.BalanceAfter.Equal(d("500")) {
		t.Fatalf("unexpected deposit result: %+v", res)
	}
	if res.Entry.Description != "Deposit" || res.Entry.Status != StatusSuccess {
		t.Fatalf("unexpected entry defaults: %+v", res.Entry)
	}

	if _, err := l.Apply(ctx, withdraw("acc", "600")); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if bal, _ := l.Balance(ctx, "acc"); !bal.Equal(d("500")) {
		t.Fatalf("balance changed after failed withdraw: %s", bal)
	}
	if n := len(allEntries(t, l, "acc")); n != 1 {
		t.Fatalf("expected 1 entry after failed withdraw, got %d", n)
	}

	res, err = l.Apply(ctx, withdraw("acc", "500"))
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !res.Balance.IsZero() || res.Entry.Description != "Withdrawal" {
		t.Fatalf("unexpected withdraw result: %+v", res)
	}

	entries := allEntries(t, l, "acc")
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	assertChain(t, entries, decimal.Zero)
}

func TestInMemoryLedger_RandomSequenceChains(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	newAccount(t, l, "acc")
	rng := rand.New(rand.NewSource(42))

	expected := decimal.Zero
	for i := 0; i < 200; i++ {
		amount := decimal.New(rng.Int63n(50_000)+1, -2)
		p := Posting{AccountID: "acc", Type: TypeDeposit, Amount: amount}
		if rng.Intn(3) == 0 {
			p.Type = TypeWithdraw
		}
		_, err := l.Apply(ctx, p)
		switch {
		case err == nil && p.Type == TypeDeposit:
			expected = expected.Add(amount)
		case err == nil:
			expected = expected.Sub(amount)
		case errors.Is(err, ErrInsufficientFunds):
			if !amount.GreaterThan(expected) {
				t.Fatalf("withdraw %s rejected with balance %s", amount, expected)
			}
		default:
			t.Fatalf("apply: %v", err)
		}
	}

	bal, err := l.Balance(ctx, "acc")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !bal.Equal(expected) {
		t.Fatalf("balance %s, want %s", bal, expected)
	}
	if bal.IsNegative() {
		t.Fatalf("negative balance %s", bal)
	}
	assertChain(t, allEntries(t, l, "acc"), decimal.Zero)
}

func TestInMemoryLedger_ConcurrentDeposits(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	newAccount(t, l, "acc")
	SeedBalance(l, "acc", d("1000"))

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Apply(ctx, deposit("acc", "12.50")); err != nil {
				t.Errorf("deposit failed: %v", err)
			}
		}()
	}
	wg.Wait()

	bal, _ := l.Balance(ctx, "acc")
	want := d("1000").Add(d("12.50").Mul(decimal.NewFromInt(workers)))
	if !bal.Equal(want) {
		t.Fatalf("lost update: balance %s, want %s", bal, want)
	}
	entries := allEntries(t, l, "acc")
	if len(entries) != workers {
		t.Fatalf("expected %d entries, got %d", workers, len(entries))
	}
	assertChain(t, entries, d("1000"))
}

func TestInMemoryLedger_ConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	newAccount(t, l, "acc")
	if _, err := l.Apply(ctx, deposit("acc", "100")); err != nil {
		t.Fatalf("seed deposit: %v", err)
	}

	const workers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Apply(ctx, withdraw("acc", "30"))
			if err != nil && !errors.Is(err, ErrInsufficientFunds) {
				t.Errorf("withdraw: %v", err)
				return
			}
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 3 {
		t.Fatalf("expected exactly 3 successful withdrawals, got %d", succeeded)
	}
	bal, _ := l.Balance(ctx, "acc")
	if !bal.Equal(d("10")) {
		t.Fatalf("expected balance 10, got %s", bal)
	}
	assertChain(t, allEntries(t, l, "acc"), decimal.Zero)
}

func TestInMemoryLedger_CommitFailureLeavesNoPartialState(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	newAccount(t, l, "acc")
	if _, err := l.Apply(ctx, deposit("acc", "250")); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	boom := errors.New("connection reset")
	FailCommits(l, boom)
	for _, p := range []Posting{deposit("acc", "10"), withdraw("acc", "10")} {
		_, err := l.Apply(ctx, p)
		if !errors.Is(err, ErrTransactionAborted) || !errors.Is(err, boom) {
			t.Fatalf("expected aborted transaction wrapping cause, got %v", err)
		}
	}

	bal, _ := l.Balance(ctx, "acc")
	if !bal.Equal(d("250")) {
		t.Fatalf("balance changed by aborted transaction: %s", bal)
	}
	if n := len(allEntries(t, l, "acc")); n != 1 {
		t.Fatalf("ledger changed by aborted transaction: %d entries", n)
	}

	FailCommits(l, nil)
	if _, err := l.Apply(ctx, deposit("acc", "10")); err != nil {
		t.Fatalf("deposit after recovery: %v", err)
	}
	assertChain(t, allEntries(t, l, "acc"), decimal.Zero)
}

func TestInMemoryLedger_CancelledContextAborts(t *testing.T) {
	l := NewInMemory()
	newAccount(t, l, "acc")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := l.Apply(ctx, deposit("acc", "1")); !errors.Is(err, ErrTransactionAborted) {
		t.Fatalf("expected aborted transaction, got %v", err)
	}
}

func TestInMemoryLedger_RejectsInvalidPostings(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	newAccount(t, l, "acc")

	cases := []struct {
		name string
		p    Posting
		want error
	}{
		{"zero amount", deposit("acc", "0"), ErrInvalidAmount},
		{"negative amount", deposit("acc", "-5"), ErrInvalidAmount},
		{"three decimals", deposit("acc", "1.005"), ErrInvalidAmount},
		{"unknown type", Posting{AccountID: "acc", Type: "transfer", Amount: d("1")}, ErrInvalidType},
		{"unknown account", deposit("ghost", "1"), ErrAccountNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := l.Apply(ctx, tc.p); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if _, err := l.Balance(ctx, "ghost"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}
}

func TestInMemoryLedger_HistoryPagination(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	newAccount(t, l, "acc")
	for i := 0; i < 25; i++ {
		if _, err := l.Apply(ctx, deposit("acc", "1")); err != nil {
			t.Fatalf("deposit %d: %v", i, err)
		}
	}

	first, err := l.History(ctx, "acc", PageRequest{Page: 1, Limit: 20})
	if err != nil {
		t.Fatalf("history page 1: %v", err)
	}
	if len(first.Items) != 20 || first.Total != 25 || first.Pages != 2 {
		t.Fatalf("unexpected first page: items=%d total=%d pages=%d", len(first.Items), first.Total, first.Pages)
	}
	if first.Items[0].Seq != 25 || first.Items[19].Seq != 6 {
		t.Fatalf("expected newest first, got seq %d..%d", first.Items[0].Seq, first.Items[19].Seq)
	}

	second, err := l.History(ctx, "acc", PageRequest{Page: 2, Limit: 20})
	if err != nil {
		t.Fatalf("history page 2: %v", err)
	}
	if len(second.Items) != 5 || second.Items[4].Seq != 1 {
		t.Fatalf("unexpected second page: %d items", len(second.Items))
	}

	beyond, _ := l.History(ctx, "acc", PageRequest{Page: 3, Limit: 20})
	if len(beyond.Items) != 0 || beyond.Pages != 2 {
		t.Fatalf("expected empty page beyond the end, got %d items", len(beyond.Items))
	}

	defaults, _ := l.History(ctx, "acc", PageRequest{})
	if defaults.Page != 1 || defaults.Limit != DefaultPageLimit {
		t.Fatalf("expected defaults, got page=%d limit=%d", defaults.Page, defaults.Limit)
	}
}

func TestInMemoryLedger_HistoryHugePageIsEmpty(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	newAccount(t, l, "acc")
	if _, err := l.Apply(ctx, deposit("acc", "5")); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	for _, req := range []PageRequest{
		{Page: 92233720368547760, Limit: 100},
		{Page: math.MaxInt, Limit: math.MaxInt},
	} {
		page, err := l.History(ctx, "acc", req)
		if err != nil {
			t.Fatalf("history %+v: %v", req, err)
		}
		if len(page.Items) != 0 || page.Total != 1 || page.Pages != 1 || page.Page != req.Page {
			t.Fatalf("expected an empty page past the end for %+v, got %+v", req, page)
		}
	}
}

func TestPageRequestOffsetSaturates(t *testing.T) {
	if got := (PageRequest{Page: 3, Limit: 20}).offset(); got != 40 {
		t.Fatalf("offset = %d, want 40", got)
	}
	if got := (PageRequest{Page: math.MaxInt, Limit: 100}).offset(); got != maxOffset {
		t.Fatalf("offset = %d, want saturation at %d", got, int64(maxOffset))
	}
}

func TestInMemoryLedger_BalanceLimit(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	newAccount(t, l, "acc")

	if _, err := l.Apply(ctx, deposit("acc", "10000000000000000")); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := l.Apply(ctx, deposit("acc", "9999999999999999.99")); err != nil {
		t.Fatalf("deposit at the limit: %v", err)
	}
	if _, err := l.Apply(ctx, deposit("acc", "0.01")); !errors.Is(err, ErrBalanceLimit) {
		t.Fatalf("expected balance limit, got %v", err)
	}
	balance, _ := l.Balance(ctx, "acc")
	if !balance.Equal(d("9999999999999999.99")) {
		t.Fatalf("rejected deposit changed balance to %s", balance)
	}
	if got := len(allEntries(t, l, "acc")); got != 1 {
		t.Fatalf("rejected deposit wrote an entry, have %d", got)
	}
}

func TestPageCount(t *testing.T) {
	cases := []struct {
		total int64
		limit int
		want  int
	}{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{25, 20, 2},
		{5, 0, 0},
		{2, math.MaxInt, 1},
	}
	for _, tc := range cases {
		if got := PageCount(tc.total, tc.limit); got != tc.want {
			t.Errorf("PageCount(%d, %d) = %d, want %d", tc.total, tc.limit, got, tc.want)
		}
	}
}
