// Package numbering mints human-readable document numbers, unique per
// document kind and year. The counter lives in a single row per (kind, year)
// and is advanced with an atomic upsert, so concurrent callers can never
// observe the same value.
package numbering

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Kind selects the per-document counter and the number prefix.
type Kind string

const (
	KindJournal Kind = "JV"
	KindInvoice Kind = "INV"
	KindBill    Kind = "BILL"
	KindPayment Kind = "PAY"
	KindReceipt Kind = "RCV"
)

// Sequence mints the next document number for a kind within a year.
type Sequence interface {
	Next(ctx context.Context, kind Kind, year int) (string, error)
}

// Querier is satisfied by *pgxpool.Pool and pgx.Tx, letting the posting
// transaction advance the counter atomically with the journal insert.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Format renders a counter value as PREFIX-YYYY-NNNN. The pad widens past
// 9999 rather than truncating.
func Format(kind Kind, year int, n int64) string {
	return fmt.Sprintf("%s-%d-%04d", kind, year, n)
}

// NextInTx advances the (kind, year) counter using the supplied querier and
// returns the formatted number.
func NextInTx(ctx context.Context, q Querier, kind Kind, year int) (string, error) {
	var value int64
	err := q.QueryRow(ctx, `INSERT INTO doc_sequences (kind, year, last_value)
VALUES ($1, $2, 1)
ON CONFLICT (kind, year) DO UPDATE SET last_value = doc_sequences.last_value + 1
RETURNING last_value`, kind, year).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("numbering: next %s/%d: %w", kind, year, err)
	}
	return Format(kind, year, value), nil
}

// PGSequence is the pool-backed Sequence used outside posting transactions.
type PGSequence struct {
	pool *pgxpool.Pool
}

// NewPGSequence constructs a PGSequence.
func NewPGSequence(pool *pgxpool.Pool) *PGSequence {
	return &PGSequence{pool: pool}
}

// Next implements Sequence.
func (s *PGSequence) Next(ctx context.Context, kind Kind, year int) (string, error) {
	return NextInTx(ctx, s.pool, kind, year)
}
