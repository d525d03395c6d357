package journals

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saldo-id/saldo/internal/ledger/numbering"
	"github.com/saldo-id/saldo/internal/ledger/periods"
	"github.com/saldo-id/saldo/internal/ledger/shared"
	"github.com/saldo-id/saldo/internal/platform/db"
)

// AccountRef is the registry view the poster needs for a line's account.
type AccountRef struct {
	Code   string
	Type   string
	Active bool
}

// Repository encapsulates DB operations for journals. Methods taking a
// pgx.Tx participate in the caller's transaction so a source document and its
// journal commit or roll back as one unit.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
	EnsureOpenPeriod(ctx context.Context, tx pgx.Tx, date time.Time) (string, error)
	ResolveAccount(ctx context.Context, tx pgx.Tx, code string) (AccountRef, error)
	NextNumber(ctx context.Context, tx pgx.Tx, year int) (string, error)
	InsertJournal(ctx context.Context, tx pgx.Tx, j Journal) (Journal, error)
	InsertLines(ctx context.Context, tx pgx.Tx, journalID int64, lines []Line) error
	LinkSource(ctx context.Context, tx pgx.Tx, sourceType string, sourceID uuid.UUID, journalID int64) error
	GetWithLines(ctx context.Context, journalID int64) (Journal, error)
	GetWithLinesTx(ctx context.Context, tx pgx.Tx, journalID int64) (Journal, error)
	MarkVoided(ctx context.Context, tx pgx.Tx, journalID, reversalID int64, reason string, actorID int64, at time.Time) error
	List(ctx context.Context, limit, offset int) ([]Journal, error)
	Count(ctx context.Context) (int, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a pgx-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, tx)
	})
}

// EnsureOpenPeriod creates the calendar-month period on first use and
// verifies it is open for posting. The row lock serialises against a
// concurrent close.
func (r *repository) EnsureOpenPeriod(ctx context.Context, tx pgx.Tx, date time.Time) (string, error) {
	code := periods.CodeFor(date)
	start, end := periods.BoundsFor(date)
	if _, err := tx.Exec(ctx, `INSERT INTO periods (code, start_date, end_date, status)
VALUES ($1, $2, $3, 'OPEN') ON CONFLICT (code) DO NOTHING`, code, start, end); err != nil {
		return "", err
	}
	var status periods.Status
	if err := tx.QueryRow(ctx, `SELECT status FROM periods WHERE code=$1 FOR UPDATE`, code).Scan(&status); err != nil {
		return "", err
	}
	if status != periods.StatusOpen {
		return "", shared.ErrPeriodClosed
	}
	return code, nil
}

func (r *repository) ResolveAccount(ctx context.Context, tx pgx.Tx, code string) (AccountRef, error) {
	var ref AccountRef
	err := tx.QueryRow(ctx, `SELECT code, type, is_active FROM accounts WHERE code=$1`, code).
		Scan(&ref.Code, &ref.Type, &ref.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountRef{}, shared.ErrAccountUnknown
		}
		return AccountRef{}, err
	}
	return ref, nil
}

func (r *repository) NextNumber(ctx context.Context, tx pgx.Tx, year int) (string, error) {
	return numbering.NextInTx(ctx, tx, numbering.KindJournal, year)
}

func (r *repository) InsertJournal(ctx context.Context, tx pgx.Tx, j Journal) (Journal, error) {
	err := tx.QueryRow(ctx, `INSERT INTO journals (number, date, period, memo, status, source_type, source_id, posted_by, posted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id, created_at, updated_at`,
		j.Number, j.Date, j.Period, j.Memo, j.Status, j.SourceType, j.SourceID, j.PostedBy, j.PostedAt).
		Scan(&j.ID, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return Journal{}, err
	}
	return j, nil
}

func (r *repository) InsertLines(ctx context.Context, tx pgx.Tx, journalID int64, lines []Line) error {
	for _, line := range lines {
		if _, err := tx.Exec(ctx, `INSERT INTO journal_lines (journal_id, account_code, debit, credit, description, project_code, sort_order)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, journalID, line.AccountCode, line.Debit, line.Credit, line.Description, line.ProjectCode, line.SortOrder); err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) LinkSource(ctx context.Context, tx pgx.Tx, sourceType string, sourceID uuid.UUID, journalID int64) error {
	_, err := tx.Exec(ctx, `INSERT INTO source_links (source_type, source_id, journal_id) VALUES ($1,$2,$3)`, sourceType, sourceID, journalID)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return shared.ErrSourceAlreadyLinked
		}
		return err
	}
	return nil
}

const journalColumns = `id, number, date, period, memo, status, source_type, source_id, posted_by, posted_at, voided_at, voided_by, void_reason, reversal_journal_id, created_at, updated_at`

func scanJournal(row pgx.Row) (Journal, error) {
	var j Journal
	err := row.Scan(&j.ID, &j.Number, &j.Date, &j.Period, &j.Memo, &j.Status, &j.SourceType, &j.SourceID,
		&j.PostedBy, &j.PostedAt, &j.VoidedAt, &j.VoidedBy, &j.VoidReason, &j.ReversalJournalID, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Journal{}, shared.ErrJournalNotFound
		}
		return Journal{}, err
	}
	return j, nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func getWithLines(ctx context.Context, q rowQuerier, journalID int64) (Journal, error) {
	j, err := scanJournal(q.QueryRow(ctx, `SELECT `+journalColumns+` FROM journals WHERE id=$1`, journalID))
	if err != nil {
		return Journal{}, err
	}
	rows, err := q.Query(ctx, `SELECT id, journal_id, account_code, debit, credit, description, project_code, sort_order
FROM journal_lines WHERE journal_id=$1 ORDER BY sort_order, id`, journalID)
	if err != nil {
		return Journal{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.JournalID, &l.AccountCode, &l.Debit, &l.Credit, &l.Description, &l.ProjectCode, &l.SortOrder); err != nil {
			return Journal{}, err
		}
		j.Lines = append(j.Lines, l)
	}
	return j, rows.Err()
}

func (r *repository) GetWithLines(ctx context.Context, journalID int64) (Journal, error) {
	return getWithLines(ctx, r.pool, journalID)
}

func (r *repository) GetWithLinesTx(ctx context.Context, tx pgx.Tx, journalID int64) (Journal, error) {
	return getWithLines(ctx, tx, journalID)
}

// MarkVoided stamps void metadata exactly once. The voided_at IS NULL guard
// makes a racing second void lose the update and surface ErrAlreadyVoided.
func (r *repository) MarkVoided(ctx context.Context, tx pgx.Tx, journalID, reversalID int64, reason string, actorID int64, at time.Time) error {
	cmd, err := tx.Exec(ctx, `UPDATE journals
SET voided_at=$2, voided_by=$3, void_reason=$4, reversal_journal_id=$5, updated_at=NOW()
WHERE id=$1 AND voided_at IS NULL`, journalID, at, actorID, reason, reversalID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAlreadyVoided
	}
	return nil
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]Journal, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+journalColumns+` FROM journals ORDER BY id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var journals []Journal
	for rows.Next() {
		j, err := scanJournal(rows)
		if err != nil {
			return nil, err
		}
		journals = append(journals, j)
	}
	return journals, rows.Err()
}

func (r *repository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM journals`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
