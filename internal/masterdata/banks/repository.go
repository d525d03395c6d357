package banks

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saldo-id/saldo/internal/platform/httpx"
	internalShared "github.com/saldo-id/saldo/internal/shared"
)

type Repository interface {
	List(ctx context.Context, includeInactive bool) ([]BankAccount, error)
	Get(ctx context.Context, id int64) (BankAccount, error)
	Create(ctx context.Context, account BankAccount) (BankAccount, error)
	Update(ctx context.Context, id int64, account BankAccount) error
	SetActive(ctx context.Context, id int64, active bool) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const bankColumns = `id, name, bank_name, account_number, ledger_account, is_active, created_at, updated_at`

func scanBank(row pgx.Row) (BankAccount, error) {
	var b BankAccount
	err := row.Scan(&b.ID, &b.Name, &b.BankName, &b.AccountNumber, &b.LedgerAccount,
		&b.IsActive, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return BankAccount{}, internalShared.ErrNotFound
	}
	return b, err
}

func (r *repository) List(ctx context.Context, includeInactive bool) ([]BankAccount, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+bankColumns+` FROM bank_accounts
		 WHERE is_active OR $1
		 ORDER BY name`, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list bank accounts: %w", err)
	}
	defer rows.Close()

	var out []BankAccount
	for rows.Next() {
		b, err := scanBank(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (BankAccount, error) {
	return scanBank(r.db.QueryRow(ctx,
		`SELECT `+bankColumns+` FROM bank_accounts WHERE id = $1`, id))
}

func (r *repository) Create(ctx context.Context, account BankAccount) (BankAccount, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO bank_accounts (name, bank_name, account_number, ledger_account, is_active)
		 VALUES ($1, $2, $3, $4, TRUE)
		 RETURNING `+bankColumns,
		account.Name, account.BankName, account.AccountNumber, account.LedgerAccount)
	b, err := scanBank(row)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return BankAccount{}, fmt.Errorf("%w: bank account number already registered", httpx.ErrDuplicate)
	}
	return b, err
}

func (r *repository) Update(ctx context.Context, id int64, account BankAccount) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE bank_accounts
		 SET name = $2, bank_name = $3, account_number = $4, ledger_account = $5, updated_at = NOW()
		 WHERE id = $1`,
		id, account.Name, account.BankName, account.AccountNumber, account.LedgerAccount)
	if err != nil {
		return fmt.Errorf("update bank account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return internalShared.ErrNotFound
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE bank_accounts SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set bank account active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return internalShared.ErrNotFound
	}
	return nil
}
