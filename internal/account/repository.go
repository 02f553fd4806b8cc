package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Repository persists accounts and their devices.
type Repository interface {
	Create(ctx context.Context, account Account) error
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByID(ctx context.Context, id string) (Account, error)
	// AddDevice appends a device to the account. Adding an already
	// registered device id is a no-op.
	AddDevice(ctx context.Context, accountID string, device Device) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed account repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the account together with its initial devices.
func (r *PostgresRepository) Create(ctx context.Context, account Account) error {
	accountID, err := uuid.Parse(account.ID)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE email = $1 OR phone_number = $2)`,
		account.Email, account.PhoneNumber).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrDuplicateIdentity
	}

	if _, err := tx.Exec(ctx, `INSERT INTO accounts (id, full_name, email, phone_number, password_hash, balance, is_active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8)`,
		accountID, account.FullName, account.Email, account.PhoneNumber, account.PasswordHash,
		account.IsActive, account.CreatedAt.UTC(), account.UpdatedAt.UTC()); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateIdentity
		}
		return err
	}

	for _, d := range account.Devices {
		if err := insertDevice(ctx, tx, accountID, d); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// FindByEmail fetches an account and its devices by email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (Account, error) {
	return r.findOne(ctx, `WHERE email = $1`, email)
}

// FindByID fetches an account and its devices by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrNotFound
	}
	return r.findOne(ctx, `WHERE id = $1`, accountID)
}

// AddDevice registers a device for the account, ignoring repeats of the same device id.
func (r *PostgresRepository) AddDevice(ctx context.Context, accountID string, device Device) error {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `INSERT INTO devices (account_id, device_id, device_name, is_verified, verified_at, registered_at)
        SELECT id, $2::text, $3::text, $4::boolean, $5::timestamptz, $6::timestamptz FROM accounts WHERE id = $1
        ON CONFLICT (account_id, device_id) DO NOTHING`,
		id, device.DeviceID, device.DeviceName, device.IsVerified, device.VerifiedAt, device.RegisteredAt.UTC())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
	}
	return nil
}

func (r *PostgresRepository) findOne(ctx context.Context, where string, arg any) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT id, full_name, email, phone_number, password_hash, is_active, created_at, updated_at
        FROM accounts `+where, arg)

	var (
		id      uuid.UUID
		account Account
	)
	if err := row.Scan(&id, &account.FullName, &account.Email, &account.PhoneNumber, &account.PasswordHash,
		&account.IsActive, &account.CreatedAt, &account.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	account.ID = id.String()
	account.CreatedAt = account.CreatedAt.UTC()
	account.UpdatedAt = account.UpdatedAt.UTC()

	devices, err := r.devices(ctx, id)
	if err != nil {
		return Account{}, err
	}
	account.Devices = devices
	return account, nil
}

func (r *PostgresRepository) devices(ctx context.Context, accountID uuid.UUID) ([]Device, error) {
	rows, err := r.db.Query(ctx, `SELECT device_id, device_name, is_verified, verified_at, registered_at
        FROM devices WHERE account_id = $1 ORDER BY position`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		var d Device
		if err := rows.Scan(&d.DeviceID, &d.DeviceName, &d.IsVerified, &d.VerifiedAt, &d.RegisteredAt); err != nil {
			return nil, err
		}
		d.RegisteredAt = d.RegisteredAt.UTC()
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func insertDevice(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, d Device) error {
	_, err := tx.Exec(ctx, `INSERT INTO devices (account_id, device_id, device_name, is_verified, verified_at, registered_at)
        VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (account_id, device_id) DO NOTHING`,
		accountID, d.DeviceID, d.DeviceName, d.IsVerified, d.VerifiedAt, d.RegisteredAt.UTC())
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
