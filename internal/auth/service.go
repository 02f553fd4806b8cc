package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nestegg-app/nestegg/internal/account"
	"github.com/nestegg-app/nestegg/internal/ledger"
)

// Service composes account registration, login and profile lookups with the
// ledger and the token issuer.
type Service struct {
	accounts *account.Service
	ledger   ledger.Ledger
	tokens   *TokenIssuer
}

func NewService(accounts *account.Service, l ledger.Ledger, tokens *TokenIssuer) *Service {
	return &Service{accounts: accounts, ledger: l, tokens: tokens}
}

// Session is the outcome of a successful login.
type Session struct {
	Account   account.Account
	Balance   decimal.Decimal
	Token     string
	ExpiresAt time.Time
}

// Profile is an account together with its current balance.
type Profile struct {
	Account account.Account
	Balance decimal.Decimal
}

// Register opens the account and provisions its zero balance.
func (s *Service) Register(ctx context.Context, reg account.Registration) (account.Account, error) {
	acc, err := s.accounts.Register(ctx, reg)
	if err != nil {
		return account.Account{}, err
	}
	if err := s.ledger.EnsureAccount(ctx, acc.ID); err != nil {
		return account.Account{}, fmt.Errorf("provision balance: %w", err)
	}
	return acc, nil
}

// Login runs the credential and device checks and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password, deviceID string) (Session, error) {
	acc, err := s.accounts.Authenticate(ctx, email, password, deviceID)
	if err != nil {
		return Session{}, err
	}
	balance, err := s.ledger.Balance(ctx, acc.ID)
	if err != nil {
		return Session{}, err
	}
	token, exp, err := s.tokens.Issue(acc.ID)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{Account: acc, Balance: balance, Token: token, ExpiresAt: exp}, nil
}

// Profile loads the account and its balance.
func (s *Service) Profile(ctx context.Context, accountID string) (Profile, error) {
	acc, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return Profile{}, err
	}
	balance, err := s.ledger.Balance(ctx, accountID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{Account: acc, Balance: balance}, nil
}
