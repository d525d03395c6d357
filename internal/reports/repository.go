package reports

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository aggregates posted journal lines per account.
type Repository interface {
	AccountTotals(ctx context.Context, period string) ([]TrialBalanceRow, error)
}

type pgRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

// AccountTotals sums all posted journal lines up to and including the given
// period. Voided documents stay in the totals; their reversals net them out.
func (r *pgRepository) AccountTotals(ctx context.Context, period string) ([]TrialBalanceRow, error) {
	query := `SELECT l.account_code, a.name, a.type,
	                 COALESCE(SUM(l.debit), 0)::bigint, COALESCE(SUM(l.credit), 0)::bigint
	          FROM journal_lines l
	          JOIN journals j ON j.id = l.journal_id
	          JOIN accounts a ON a.code = l.account_code
	          WHERE j.status = 'POSTED'`
	args := []any{}
	if period != "" {
		query += ` AND j.period <= $1`
		args = append(args, period)
	}
	query += ` GROUP BY l.account_code, a.name, a.type ORDER BY l.account_code`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query account totals: %w", err)
	}
	defer rows.Close()

	var out []TrialBalanceRow
	for rows.Next() {
		var row TrialBalanceRow
		if err := rows.Scan(&row.AccountCode, &row.AccountName, &row.AccountType, &row.Debit, &row.Credit); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
