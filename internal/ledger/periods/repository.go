package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saldo-id/saldo/internal/platform/db"
	"github.com/saldo-id/saldo/internal/shared"
)

// Repository encapsulates DB operations for accounting periods.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, tx)
	})
}

const periodColumns = `id, code, start_date, end_date, status, closed_at, closed_by, created_at, updated_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.Code, &p.StartDate, &p.EndDate, &p.Status, &p.ClosedAt, &p.ClosedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, shared.ErrNotFound
		}
		return Period{}, err
	}
	return p, nil
}

// List returns periods ordered newest first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Period, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+periodColumns+` FROM periods ORDER BY code DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var periods []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

// GetByCode fetches a period by its YYYY-MM code.
func (r *Repository) GetByCode(ctx context.Context, code string) (Period, error) {
	return scanPeriod(r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods WHERE code=$1`, code))
}

// GetForUpdate fetches and row-locks a period inside tx.
func (r *Repository) GetForUpdate(ctx context.Context, tx pgx.Tx, code string) (Period, error) {
	return scanPeriod(tx.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods WHERE code=$1 FOR UPDATE`, code))
}

// UpdateStatus transitions the period and stamps close metadata.
func (r *Repository) UpdateStatus(ctx context.Context, tx pgx.Tx, code string, status Status, actorID int64, at time.Time) error {
	var closedAt any
	var closedBy any
	if status == StatusClosed || status == StatusLocked {
		closedAt = at
		closedBy = actorID
	}
	cmd, err := tx.Exec(ctx, `UPDATE periods SET status=$2, closed_at=$3, closed_by=$4, updated_at=NOW() WHERE code=$1`, code, status, closedAt, closedBy)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SnapshotBalances freezes per-account debit/credit totals for the period.
func (r *Repository) SnapshotBalances(ctx context.Context, tx pgx.Tx, code string, at time.Time) error {
	_, err := tx.Exec(ctx, `INSERT INTO period_snapshots (period_code, account_code, debit, credit, taken_at)
SELECT j.period, l.account_code, SUM(l.debit), SUM(l.credit), $2
FROM journal_lines l
JOIN journals j ON j.id = l.journal_id
WHERE j.period = $1 AND j.status = 'POSTED'
GROUP BY j.period, l.account_code`, code, at)
	return err
}
