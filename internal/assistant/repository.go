package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saldo-id/saldo/internal/platform/db"
	internalShared "github.com/saldo-id/saldo/internal/shared"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error

	Insert(ctx context.Context, proposal Proposal) (Proposal, error)
	Get(ctx context.Context, id int64) (Proposal, error)
	GetTx(ctx context.Context, tx pgx.Tx, id int64) (Proposal, error)
	List(ctx context.Context, status ProposalStatus, limit, offset int) ([]Proposal, error)
	SetReviewed(ctx context.Context, tx pgx.Tx, id int64, status ProposalStatus, journalID *int64, reviewedBy int64, at time.Time) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, tx)
	})
}

const proposalColumns = `id, public_id, event, doc_type, memo, date, confidence, reasoning,
	status, journal_id, lines, created_by, reviewed_by, reviewed_at, created_at, updated_at`

func (r *repository) Insert(ctx context.Context, p Proposal) (Proposal, error) {
	linesJSON, err := json.Marshal(p.Lines)
	if err != nil {
		return Proposal{}, fmt.Errorf("marshal proposal lines: %w", err)
	}
	err = r.db.QueryRow(ctx,
		`INSERT INTO proposals (event, doc_type, memo, date, confidence, reasoning, status, lines, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, public_id, created_at, updated_at`,
		p.Event, p.DocType, p.Memo, p.Date, p.Confidence, p.Reasoning, p.Status, linesJSON, p.CreatedBy).
		Scan(&p.ID, &p.PublicID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Proposal{}, fmt.Errorf("insert proposal: %w", err)
	}
	return p, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Proposal, error) {
	return scanProposal(r.db.QueryRow(ctx,
		`SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, id))
}

func (r *repository) GetTx(ctx context.Context, tx pgx.Tx, id int64) (Proposal, error) {
	return scanProposal(tx.QueryRow(ctx,
		`SELECT `+proposalColumns+` FROM proposals WHERE id = $1 FOR UPDATE`, id))
}

func (r *repository) List(ctx context.Context, status ProposalStatus, limit, offset int) ([]Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	var out []Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) SetReviewed(ctx context.Context, tx pgx.Tx, id int64, status ProposalStatus, journalID *int64, reviewedBy int64, at time.Time) error {
	tag, err := tx.Exec(ctx,
		`UPDATE proposals SET status = $2, journal_id = $3, reviewed_by = $4, reviewed_at = $5, updated_at = NOW()
		 WHERE id = $1 AND status = 'PROPOSED'`,
		id, status, journalID, reviewedBy, at)
	if err != nil {
		return fmt.Errorf("review proposal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("proposal %d is not awaiting review: %w", id, internalShared.ErrNotFound)
	}
	return nil
}

func scanProposal(row pgx.Row) (Proposal, error) {
	var p Proposal
	var linesJSON []byte
	err := row.Scan(&p.ID, &p.PublicID, &p.Event, &p.DocType, &p.Memo, &p.Date, &p.Confidence,
		&p.Reasoning, &p.Status, &p.JournalID, &linesJSON, &p.CreatedBy,
		&p.ReviewedBy, &p.ReviewedAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Proposal{}, fmt.Errorf("proposal: %w", internalShared.ErrNotFound)
	}
	if err != nil {
		return Proposal{}, err
	}
	if err := json.Unmarshal(linesJSON, &p.Lines); err != nil {
		return Proposal{}, fmt.Errorf("unmarshal proposal lines: %w", err)
	}
	return p, nil
}
