// Package savings implements deposits, withdrawals, balance and history on
// top of the ledger and emits notifications for committed transactions.
package savings

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nestegg-app/nestegg/internal/ledger"
	"github.com/nestegg-app/nestegg/internal/notification"
)

const (
	// MaxPageLimit caps the history page size.
	MaxPageLimit = 100
)

// LowBalanceThreshold is the balance under which accounts are flagged.
var LowBalanceThreshold = decimal.NewFromInt(1000)

// IsBalanceLow reports whether balance is strictly under LowBalanceThreshold.
func IsBalanceLow(balance decimal.Decimal) bool {
	return balance.LessThan(LowBalanceThreshold)
}

// NormalizePage clamps a requested page into a usable ledger page request.
func NormalizePage(page, limit int) ledger.PageRequest {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = ledger.DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return ledger.PageRequest{Page: page, Limit: limit}
}

// Service runs savings operations.
type Service struct {
	ledger    ledger.Ledger
	notifier  notification.Notifier
	logger    *slog.Logger
	txTimeout time.Duration
}

// NewService constructs a savings service. A zero txTimeout leaves the
// caller's deadline in charge.
func NewService(l ledger.Ledger, notifier notification.Notifier, logger *slog.Logger, txTimeout time.Duration) *Service {
	return &Service{ledger: l, notifier: notifier, logger: logger, txTimeout: txTimeout}
}

// Input describes one deposit or withdrawal.
type Input struct {
	AccountID   string
	DeviceID    string
	Amount      decimal.Decimal
	Description string
}

// Outcome is the committed result of a deposit or withdrawal.
type Outcome struct {
	Entry      ledger.Entry
	Balance    decimal.Decimal
	LowBalance bool
}

// Summary is the current balance of an account.
type Summary struct {
	Balance    decimal.Decimal
	LowBalance bool
}

// Deposit credits the account.
func (s *Service) Deposit(ctx context.Context, in Input) (Outcome, error) {
	return s.apply(ctx, ledger.TypeDeposit, in)
}

// Withdraw debits the account. ledger.ErrInsufficientFunds leaves it untouched.
func (s *Service) Withdraw(ctx context.Context, in Input) (Outcome, error) {
	return s.apply(ctx, ledger.TypeWithdraw, in)
}

func (s *Service) apply(ctx context.Context, kind ledger.Type, in Input) (Outcome, error) {
	txCtx := ctx
	if s.txTimeout > 0 {
		var cancel context.CancelFunc
		txCtx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}

	res, err := s.ledger.Apply(txCtx, ledger.Posting{
		AccountID:   in.AccountID,
		Type:        kind,
		Amount:      in.Amount,
		Description: in.Description,
		DeviceID:    in.DeviceID,
	})
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Entry: res.Entry, Balance: res.Balance, LowBalance: IsBalanceLow(res.Balance)}
	s.notify(ctx, out)
	return out, nil
}

// Balance returns the committed balance.
func (s *Service) Balance(ctx context.Context, accountID string) (Summary, error) {
	balance, err := s.ledger.Balance(ctx, accountID)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Balance: balance, LowBalance: IsBalanceLow(balance)}, nil
}

// Transactions lists the account history newest first.
func (s *Service) Transactions(ctx context.Context, accountID string, page, limit int) (ledger.Page, error) {
	return s.ledger.History(ctx, accountID, NormalizePage(page, limit))
}

func (s *Service) notify(ctx context.Context, out Outcome) {
	if s.notifier == nil {
		return
	}

	kind, verb := notification.KindDeposit, "Deposit"
	if out.Entry.Type == ledger.TypeWithdraw {
		kind, verb = notification.KindWithdraw, "Withdrawal"
	}
	s.send(ctx, notification.Message{
		Kind:        kind,
		Destination: out.Entry.AccountID,
		Body:        fmt.Sprintf("%s of %s successful. New balance: %s", verb, out.Entry.Amount.StringFixed(2), out.Balance.StringFixed(2)),
	})

	if out.LowBalance {
		s.send(ctx, notification.Message{
			Kind:        notification.KindLowBalance,
			Destination: out.Entry.AccountID,
			Body:        fmt.Sprintf("Your balance is low: %s", out.Balance.StringFixed(2)),
		})
	}
}

func (s *Service) send(ctx context.Context, msg notification.Message) {
	if err := s.notifier.Send(ctx, msg); err != nil && s.logger != nil {
		s.logger.Warn("notification failed",
			slog.String("kind", msg.Kind),
			slog.String("account_id", msg.Destination),
			slog.Any("error", err),
		)
	}
}
