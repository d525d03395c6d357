package compliance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	internalShared "github.com/saldo-id/saldo/internal/shared"
)

// Repository feeds the scanner with candidate rows and stores findings.
type Repository interface {
	BillsWithVATWithoutFaktur(ctx context.Context) ([]VATBill, error)
	PaymentsMissingWithholding(ctx context.Context) ([]UnwithheldPayment, error)
	COGSLinesWithoutProject(ctx context.Context) ([]UntaggedCOGSLine, error)
	LargePaymentsWithoutAttachments(ctx context.Context, threshold int64) ([]LargePayment, error)
	DuplicateBills(ctx context.Context) ([]DuplicateBillGroup, error)

	InsertIssues(ctx context.Context, issues []Issue) (int, error)
	ListIssues(ctx context.Context, status IssueStatus, limit, offset int) ([]Issue, error)
	CountIssues(ctx context.Context, status IssueStatus) (int, error)
	GetIssue(ctx context.Context, id int64) (Issue, error)
	ResolveIssue(ctx context.Context, id, actorID int64, at time.Time) error
	OpenCriticalCount(ctx context.Context, period string) (int, error)
}

type pgRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) BillsWithVATWithoutFaktur(ctx context.Context) ([]VATBill, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT b.id, b.number, v.name, b.bill_date, b.vat_amount
		 FROM bills b
		 JOIN vendors v ON v.id = b.vendor_id
		 WHERE b.status <> 'VOID' AND b.status <> 'DRAFT'
		   AND b.vat_amount > 0 AND COALESCE(b.faktur_pajak, '') = ''
		 ORDER BY b.bill_date`)
	if err != nil {
		return nil, fmt.Errorf("query vat bills: %w", err)
	}
	defer rows.Close()

	var out []VATBill
	for rows.Next() {
		var b VATBill
		if err := rows.Scan(&b.BillID, &b.Number, &b.VendorName, &b.BillDate, &b.VATAmount); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *pgRepository) PaymentsMissingWithholding(ctx context.Context) ([]UnwithheldPayment, error) {
	// Base is the pre-VAT share of each settled allocation, prorated the
	// same way payment registration does.
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.number, v.name, p.paid_at, v.pph23_rate,
		        COALESCE(SUM(ROUND(a.amount::numeric * b.subtotal / NULLIF(b.total, 0))), 0)::bigint AS base
		 FROM payments p
		 JOIN vendors v ON v.id = p.vendor_id
		 JOIN payment_allocations a ON a.payment_id = p.id
		 JOIN bills b ON b.id = a.bill_id
		 WHERE p.status <> 'VOID' AND v.subject_to_pph23 AND p.withheld_amount = 0
		 GROUP BY p.id, p.number, v.name, p.paid_at, v.pph23_rate
		 ORDER BY p.paid_at`)
	if err != nil {
		return nil, fmt.Errorf("query unwithheld payments: %w", err)
	}
	defer rows.Close()

	var out []UnwithheldPayment
	for rows.Next() {
		var p UnwithheldPayment
		if err := rows.Scan(&p.PaymentID, &p.Number, &p.VendorName, &p.PaidAt, &p.Rate, &p.Base); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *pgRepository) COGSLinesWithoutProject(ctx context.Context) ([]UntaggedCOGSLine, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT b.id, b.number, b.bill_date, l.expense_account, l.description, l.amount
		 FROM bill_lines l
		 JOIN bills b ON b.id = l.bill_id
		 WHERE b.status <> 'VOID' AND b.status <> 'DRAFT'
		   AND l.expense_account LIKE '5-%' AND COALESCE(l.project_code, '') = ''
		 ORDER BY b.bill_date, l.sort_order`)
	if err != nil {
		return nil, fmt.Errorf("query cogs lines: %w", err)
	}
	defer rows.Close()

	var out []UntaggedCOGSLine
	for rows.Next() {
		var l UntaggedCOGSLine
		if err := rows.Scan(&l.BillID, &l.BillNumber, &l.BillDate, &l.AccountCode, &l.Description, &l.Amount); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *pgRepository) LargePaymentsWithoutAttachments(ctx context.Context, threshold int64) ([]LargePayment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.number, v.name, p.paid_at, p.amount
		 FROM payments p
		 JOIN vendors v ON v.id = p.vendor_id
		 WHERE p.status <> 'VOID' AND p.amount >= $1
		   AND COALESCE(array_length(p.attachments, 1), 0) = 0
		 ORDER BY p.paid_at`, threshold)
	if err != nil {
		return nil, fmt.Errorf("query large payments: %w", err)
	}
	defer rows.Close()

	var out []LargePayment
	for rows.Next() {
		var p LargePayment
		if err := rows.Scan(&p.PaymentID, &p.Number, &p.VendorName, &p.PaidAt, &p.Amount); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *pgRepository) DuplicateBills(ctx context.Context) ([]DuplicateBillGroup, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT v.name, b.bill_date, b.total, array_agg(b.number ORDER BY b.number)
		 FROM bills b
		 JOIN vendors v ON v.id = b.vendor_id
		 WHERE b.status <> 'VOID'
		 GROUP BY v.name, b.vendor_id, b.bill_date, b.total
		 HAVING COUNT(*) > 1
		 ORDER BY b.bill_date`)
	if err != nil {
		return nil, fmt.Errorf("query duplicate bills: %w", err)
	}
	defer rows.Close()

	var out []DuplicateBillGroup
	for rows.Next() {
		var g DuplicateBillGroup
		if err := rows.Scan(&g.VendorName, &g.BillDate, &g.Total, &g.Numbers); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *pgRepository) InsertIssues(ctx context.Context, issues []Issue) (int, error) {
	inserted := 0
	for _, issue := range issues {
		// The partial unique index on (issue_type, related_entity) for
		// open issues makes rescans idempotent.
		tag, err := r.pool.Exec(ctx,
			`INSERT INTO compliance_issues
			   (issue_type, severity, period, message, action_required, related_entity, status)
			 VALUES ($1, $2, $3, $4, $5, $6, 'open')
			 ON CONFLICT (issue_type, related_entity) WHERE status = 'open' DO NOTHING`,
			issue.IssueType, issue.Severity, issue.Period, issue.Message,
			issue.ActionRequired, issue.RelatedEntity)
		if err != nil {
			return inserted, fmt.Errorf("insert issue: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

const issueColumns = `id, issue_type, severity, period, message, action_required,
	related_entity, status, created_at, resolved_at, resolved_by`

func (r *pgRepository) ListIssues(ctx context.Context, status IssueStatus, limit, offset int) ([]Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM compliance_issues`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY CASE severity WHEN 'critical' THEN 0 WHEN 'high' THEN 1 ELSE 2 END, created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer rows.Close()

	var out []Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, issue)
	}
	return out, rows.Err()
}

func (r *pgRepository) CountIssues(ctx context.Context, status IssueStatus) (int, error) {
	query := `SELECT COUNT(*) FROM compliance_issues`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	var total int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count issues: %w", err)
	}
	return total, nil
}

func (r *pgRepository) GetIssue(ctx context.Context, id int64) (Issue, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+issueColumns+` FROM compliance_issues WHERE id = $1`, id)
	issue, err := scanIssue(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Issue{}, fmt.Errorf("issue %d: %w", id, internalShared.ErrNotFound)
	}
	return issue, err
}

func (r *pgRepository) ResolveIssue(ctx context.Context, id, actorID int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE compliance_issues SET status = 'resolved', resolved_at = $2, resolved_by = $3
		 WHERE id = $1 AND status = 'open'`, id, at, actorID)
	if err != nil {
		return fmt.Errorf("resolve issue: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("issue %d is not open: %w", id, internalShared.ErrNotFound)
	}
	return nil
}

func (r *pgRepository) OpenCriticalCount(ctx context.Context, period string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM compliance_issues
		 WHERE status = 'open' AND severity = 'critical' AND period = $1`, period).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count critical issues: %w", err)
	}
	return count, nil
}

func scanIssue(row pgx.Row) (Issue, error) {
	var i Issue
	err := row.Scan(&i.ID, &i.IssueType, &i.Severity, &i.Period, &i.Message, &i.ActionRequired,
		&i.RelatedEntity, &i.Status, &i.CreatedAt, &i.ResolvedAt, &i.ResolvedBy)
	return i, err
}
