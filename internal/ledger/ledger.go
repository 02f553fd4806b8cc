package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrAccountNotFound indicates the ledger has no balance for the account.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInsufficientFunds occurs when a withdrawal exceeds the current balance.
	ErrInsufficientFunds = errors.New("insufficient balance")

	// ErrInvalidAmount rejects non-positive amounts, amounts of 10^16 or more,
	// and amounts with more than two decimal places.
	ErrInvalidAmount = errors.New("amount must be positive, below 10^16, with at most 2 decimal places")

	// ErrBalanceLimit rejects deposits that would push the balance past
	// what a NUMERIC(18,2) column can hold.
	ErrBalanceLimit = errors.New("balance limit exceeded")

	// ErrInvalidType rejects postings that are neither deposits nor withdrawals.
	ErrInvalidType = errors.New("transaction type must be deposit or withdraw")

	// ErrTransactionAborted wraps infrastructure failures inside the atomic
	// scope. Nothing was persisted when it is returned.
	ErrTransactionAborted = errors.New("transaction aborted")
)

// Type is the kind of balance-affecting operation.
type Type string

const (
	TypeDeposit  Type = "deposit"
	TypeWithdraw Type = "withdraw"

	// StatusSuccess is the only status a committed entry carries.
	StatusSuccess = "success"

	// DefaultPageLimit is used when a page request carries no usable limit.
	DefaultPageLimit = 20

	// maxOffset keeps OFFSET representable in int64 and a Postgres BIGINT.
	maxOffset = math.MaxInt64 / 2
)

// AmountLimit is the exclusive upper bound for amounts and balances.
var AmountLimit = decimal.New(1, 16)

// Posting is a request to move money in or out of one account.
type Posting struct {
	AccountID   string
	Type        Type
	Amount      decimal.Decimal
	Description string
	DeviceID    string
}

// Entry is an immutable ledger record. BalanceAfter of an entry equals
// BalanceBefore of the next entry for the same account.
type Entry struct {
	ID            string
	AccountID     string
	Seq           int64
	Type          Type
	Amount        decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	Description   string
	Status        string
	DeviceID      string
	CreatedAt     time.Time
}

// Result is the committed outcome of Apply.
type Result struct {
	Balance decimal.Decimal
	Entry   Entry
}

// PageRequest selects a 1-indexed page of history.
type PageRequest struct {
	Page  int
	Limit int
}

// Page is one slice of an account's history, newest first.
type Page struct {
	Items []Entry
	Total int64
	Page  int
	Limit int
	Pages int
}

// Ledger defines the contract implemented by ledger backends (e.g. Postgres).
type Ledger interface {
	// EnsureAccount makes sure the account can hold a balance.
	EnsureAccount(ctx context.Context, accountID string) error
	// Balance returns the last committed balance.
	Balance(ctx context.Context, accountID string) (decimal.Decimal, error)
	// Apply changes the balance and appends the matching entry as one atomic unit.
	Apply(ctx context.Context, posting Posting) (Result, error)
	// History lists entries newest first.
	History(ctx context.Context, accountID string, req PageRequest) (Page, error)
}

func (p Posting) validate() error {
	if p.Type != TypeDeposit && p.Type != TypeWithdraw {
		return ErrInvalidType
	}
	if !p.Amount.IsPositive() || !p.Amount.Equal(p.Amount.Round(2)) || !p.Amount.LessThan(AmountLimit) {
		return ErrInvalidAmount
	}
	return nil
}

func (p Posting) description() string {
	if p.Description != "" {
		return p.Description
	}
	if p.Type == TypeWithdraw {
		return "Withdrawal"
	}
	return "Deposit"
}

// newEntry derives the entry for p against the freshly read balance.
func newEntry(p Posting, before decimal.Decimal, seq int64, at time.Time) (Entry, error) {
	after := before.Add(p.Amount)
	if p.Type == TypeWithdraw {
		if p.Amount.GreaterThan(before) {
			return Entry{}, ErrInsufficientFunds
		}
		after = before.Sub(p.Amount)
	}
	if !after.LessThan(AmountLimit) {
		return Entry{}, ErrBalanceLimit
	}
	return Entry{
		ID:            uuid.NewString(),
		AccountID:     p.AccountID,
		Seq:           seq,
		Type:          p.Type,
		Amount:        p.Amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Description:   p.description(),
		Status:        StatusSuccess,
		DeviceID:      p.DeviceID,
		CreatedAt:     at,
	}, nil
}

func (r PageRequest) normalize() PageRequest {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.Limit < 1 {
		r.Limit = DefaultPageLimit
	}
	return r
}

// offset saturates at maxOffset instead of overflowing; such a page is
// simply past the end.
func (r PageRequest) offset() int64 {
	skip, limit := int64(r.Page-1), int64(r.Limit)
	if skip > maxOffset/limit {
		return maxOffset
	}
	return skip * limit
}

// PageCount returns ceil(total/limit).
func PageCount(total int64, limit int) int {
	if limit < 1 || total <= 0 {
		return 0
	}
	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}
	return int(pages)
}

func aborted(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransactionAborted, op, err)
}
