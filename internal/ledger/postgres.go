package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresLedger keeps balances on the accounts table and entries in the
// transactions table. Apply serializes writers per account with a row lock.
type PostgresLedger struct {
	db  *pgxpool.Pool
	now func() time.Time
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// EnsureAccount verifies the account row exists; balances start at zero.
func (l *PostgresLedger) EnsureAccount(ctx context.Context, accountID string) error {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return ErrAccountNotFound
	}
	var exists bool
	if err := l.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrAccountNotFound
	}
	return nil
}

// Balance returns the committed balance for the account.
func (l *PostgresLedger) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return decimal.Zero, ErrAccountNotFound
	}
	var text string
	if err := l.db.QueryRow(ctx, `SELECT balance::text FROM accounts WHERE id = $1`, id).Scan(&text); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrAccountNotFound
		}
		return decimal.Zero, err
	}
	return decimal.NewFromString(text)
}

// Apply locks the account row, re-reads the balance, writes the new balance
// and the ledger entry, and commits. Any failure rolls both writes back.
func (l *PostgresLedger) Apply(ctx context.Context, p Posting) (Result, error) {
	if err := p.validate(); err != nil {
		return Result{}, err
	}
	accountID, err := uuid.Parse(p.AccountID)
	if err != nil {
		return Result{}, ErrAccountNotFound
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return Result{}, aborted("begin", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var balanceText string
	if err := tx.QueryRow(ctx, `SELECT balance::text FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&balanceText); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Result{}, ErrAccountNotFound
		}
		return Result{}, aborted("lock account", err)
	}
	before, err := decimal.NewFromString(balanceText)
	if err != nil {
		return Result{}, aborted("parse balance", err)
	}

	var seq int64
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM transactions WHERE account_id = $1`, accountID).Scan(&seq); err != nil {
		return Result{}, aborted("next sequence", err)
	}

	entry, err := newEntry(p, before, seq, l.now())
	if err != nil {
		return Result{}, err
	}

	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = $1::numeric, updated_at = $2 WHERE id = $3`,
		entry.BalanceAfter.StringFixed(2), entry.CreatedAt, accountID); err != nil {
		return Result{}, aborted("update balance", err)
	}

	entryID, _ := uuid.Parse(entry.ID)
	if _, err := tx.Exec(ctx, `INSERT INTO transactions
        (id, account_id, seq, type, amount, balance_before, balance_after, description, status, device_id, created_at)
        VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8, $9, $10, $11)`,
		entryID, accountID, entry.Seq, string(entry.Type), entry.Amount.StringFixed(2),
		entry.BalanceBefore.StringFixed(2), entry.BalanceAfter.StringFixed(2),
		entry.Description, entry.Status, entry.DeviceID, entry.CreatedAt); err != nil {
		return Result{}, aborted("append entry", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{}, aborted("commit", err)
	}

	return Result{Balance: entry.BalanceAfter, Entry: entry}, nil
}

// History returns a page of entries, newest first.
func (l *PostgresLedger) History(ctx context.Context, accountID string, req PageRequest) (Page, error) {
	req = req.normalize()
	page := Page{Page: req.Page, Limit: req.Limit, Items: []Entry{}}

	id, err := uuid.Parse(accountID)
	if err != nil {
		return page, nil
	}

	if err := l.db.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE account_id = $1`, id).Scan(&page.Total); err != nil {
		return Page{}, fmt.Errorf("count transactions: %w", err)
	}
	page.Pages = PageCount(page.Total, req.Limit)

	rows, err := l.db.Query(ctx, `SELECT id, seq, type, amount::text, balance_before::text, balance_after::text,
            description, status, device_id, created_at
        FROM transactions WHERE account_id = $1
        ORDER BY created_at DESC, seq DESC
        LIMIT $2 OFFSET $3`, id, req.Limit, req.offset())
	if err != nil {
		return Page{}, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entryID               uuid.UUID
			kind                  string
			amount, before, after string
			e                     Entry
		)
		if err := rows.Scan(&entryID, &e.Seq, &kind, &amount, &before, &after,
			&e.Description, &e.Status, &e.DeviceID, &e.CreatedAt); err != nil {
			return Page{}, err
		}
		e.ID = entryID.String()
		e.AccountID = accountID
		e.Type = Type(kind)
		e.CreatedAt = e.CreatedAt.UTC()
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return Page{}, err
		}
		if e.BalanceBefore, err = decimal.NewFromString(before); err != nil {
			return Page{}, err
		}
		if e.BalanceAfter, err = decimal.NewFromString(after); err != nil {
			return Page{}, err
		}
		page.Items = append(page.Items, e)
	}
	if err := rows.Err(); err != nil {
		return Page{}, err
	}

	return page, nil
}
