package ar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saldo-id/saldo/internal/ledger/numbering"
	"github.com/saldo-id/saldo/internal/platform/db"
	internalShared "github.com/saldo-id/saldo/internal/shared"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
	NextNumber(ctx context.Context, tx pgx.Tx, kind numbering.Kind, year int) (string, error)

	InsertInvoice(ctx context.Context, tx pgx.Tx, invoice Invoice, lines []CreateInvoiceLineInput) (Invoice, error)
	GetInvoice(ctx context.Context, id int64) (InvoiceWithDetails, error)
	GetInvoiceTx(ctx context.Context, tx pgx.Tx, id int64) (InvoiceWithDetails, error)
	ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error)
	SetInvoicePosted(ctx context.Context, tx pgx.Tx, id, journalID, postedBy int64, at time.Time) error
	UpdateInvoiceStatus(ctx context.Context, tx pgx.Tx, id int64, status InvoiceStatus) error
	SetInvoiceVoided(ctx context.Context, tx pgx.Tx, id, actorID int64, reason string, at time.Time) error

	InsertReceipt(ctx context.Context, tx pgx.Tx, receipt Receipt, allocations []ReceiptAllocation) (Receipt, error)
	GetReceipt(ctx context.Context, id int64) (ReceiptWithDetails, error)
	GetReceiptTx(ctx context.Context, tx pgx.Tx, id int64) (ReceiptWithDetails, error)
	ListReceipts(ctx context.Context, limit, offset int) ([]Receipt, error)
	SetReceiptJournal(ctx context.Context, tx pgx.Tx, id, journalID int64) error
	SetReceiptVoided(ctx context.Context, tx pgx.Tx, id, actorID int64, reason string, at time.Time) error

	PaidAmountTx(ctx context.Context, tx pgx.Tx, invoiceID int64) (int64, error)
	InvoiceBalances(ctx context.Context) ([]InvoiceBalance, error)
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

func (r *repository) NextNumber(ctx context.Context, tx pgx.Tx, kind numbering.Kind, year int) (string, error) {
	return numbering.NextInTx(ctx, tx, kind, year)
}

const invoiceColumns = `i.id, i.public_id, i.number, i.customer_id, c.name, i.invoice_date, i.due_date,
	i.faktur_pajak, i.memo, i.subtotal, i.vat_amount, i.total, i.status,
	i.journal_id, i.posted_at, i.posted_by, i.voided_at, i.voided_by, i.void_reason,
	i.created_by, i.created_at, i.updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.PublicID, &inv.Number, &inv.CustomerID, &inv.CustomerName,
		&inv.InvoiceDate, &inv.DueDate, &inv.FakturPajak, &inv.Memo,
		&inv.Subtotal, &inv.VATAmount, &inv.Total, &inv.Status,
		&inv.JournalID, &inv.PostedAt, &inv.PostedBy, &inv.VoidedAt, &inv.VoidedBy, &inv.VoidReason,
		&inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, fmt.Errorf("invoice: %w", internalShared.ErrNotFound)
	}
	return inv, err
}

func (r *repository) InsertInvoice(ctx context.Context, tx pgx.Tx, invoice Invoice, lines []CreateInvoiceLineInput) (Invoice, error) {
	err := tx.QueryRow(ctx,
		`INSERT INTO invoices (number, customer_id, invoice_date, due_date, faktur_pajak, memo,
		                       subtotal, vat_amount, total, status, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, public_id, created_at, updated_at`,
		invoice.Number, invoice.CustomerID, invoice.InvoiceDate, invoice.DueDate, invoice.FakturPajak,
		invoice.Memo, invoice.Subtotal, invoice.VATAmount, invoice.Total, invoice.Status, invoice.CreatedBy,
	).Scan(&invoice.ID, &invoice.PublicID, &invoice.CreatedAt, &invoice.UpdatedAt)
	if err != nil {
		return Invoice{}, fmt.Errorf("insert invoice: %w", err)
	}
	for i, line := range lines {
		_, err := tx.Exec(ctx,
			`INSERT INTO invoice_lines (invoice_id, description, revenue_account, project_code, amount, sort_order)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			invoice.ID, line.Description, line.RevenueAccount, line.ProjectCode, line.Amount, i)
		if err != nil {
			return Invoice{}, fmt.Errorf("insert invoice line: %w", err)
		}
	}
	return invoice, nil
}

func (r *repository) invoiceLines(ctx context.Context, q db.Querier, invoiceID int64) ([]InvoiceLine, error) {
	rows, err := q.Query(ctx,
		`SELECT id, invoice_id, description, revenue_account, project_code, amount
		 FROM invoice_lines WHERE invoice_id = $1 ORDER BY sort_order`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("invoice lines: %w", err)
	}
	defer rows.Close()

	var out []InvoiceLine
	for rows.Next() {
		var l InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.Description, &l.RevenueAccount, &l.ProjectCode, &l.Amount); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *repository) invoiceReceipts(ctx context.Context, q db.Querier, invoiceID int64) ([]ReceiptSummary, int64, error) {
	rows, err := q.Query(ctx,
		`SELECT rc.id, rc.number, a.amount, rc.received_at, rc.status
		 FROM receipt_allocations a
		 JOIN receipts rc ON rc.id = a.receipt_id
		 WHERE a.invoice_id = $1
		 ORDER BY rc.received_at`, invoiceID)
	if err != nil {
		return nil, 0, fmt.Errorf("invoice receipts: %w", err)
	}
	defer rows.Close()

	var out []ReceiptSummary
	var paid int64
	for rows.Next() {
		var s ReceiptSummary
		if err := rows.Scan(&s.ID, &s.Number, &s.AllocatedAmount, &s.ReceivedAt, &s.Status); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
		if s.Status != ReceiptStatusVoid {
			paid += s.AllocatedAmount
		}
	}
	return out, paid, rows.Err()
}

func (r *repository) getInvoice(ctx context.Context, q db.Querier, id int64, forUpdate bool) (InvoiceWithDetails, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices i JOIN customers c ON c.id = i.customer_id WHERE i.id = $1`
	if forUpdate {
		query += ` FOR UPDATE OF i`
	}
	invoice, err := scanInvoice(q.QueryRow(ctx, query, id))
	if err != nil {
		return InvoiceWithDetails{}, err
	}
	lines, err := r.invoiceLines(ctx, q, id)
	if err != nil {
		return InvoiceWithDetails{}, err
	}
	receipts, paid, err := r.invoiceReceipts(ctx, q, id)
	if err != nil {
		return InvoiceWithDetails{}, err
	}
	return InvoiceWithDetails{
		Invoice:    invoice,
		Lines:      lines,
		Receipts:   receipts,
		PaidAmount: paid,
		Balance:    invoice.Total - paid,
	}, nil
}

func (r *repository) GetInvoice(ctx context.Context, id int64) (InvoiceWithDetails, error) {
	return r.getInvoice(ctx, r.db, id, false)
}

func (r *repository) GetInvoiceTx(ctx context.Context, tx pgx.Tx, id int64) (InvoiceWithDetails, error) {
	return r.getInvoice(ctx, tx, id, true)
}

func (r *repository) ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices i JOIN customers c ON c.id = i.customer_id
		 WHERE ($1 = '' OR i.status = $1)
		   AND ($2 = 0 OR i.customer_id = $2)
		 ORDER BY i.invoice_date DESC, i.id DESC
		 LIMIT $3 OFFSET $4`,
		string(req.Status), req.CustomerID, limit, req.Offset)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *repository) SetInvoicePosted(ctx context.Context, tx pgx.Tx, id, journalID, postedBy int64, at time.Time) error {
	tag, err := tx.Exec(ctx,
		`UPDATE invoices
		 SET status = $2, journal_id = $3, posted_at = $4, posted_by = $5, updated_at = NOW()
		 WHERE id = $1 AND status = $6`,
		id, InvoiceStatusPosted, journalID, at, postedBy, InvoiceStatusDraft)
	if err != nil {
		return fmt.Errorf("set invoice posted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invoice: %w", internalShared.ErrNotFound)
	}
	return nil
}

func (r *repository) UpdateInvoiceStatus(ctx context.Context, tx pgx.Tx, id int64, status InvoiceStatus) error {
	_, err := tx.Exec(ctx,
		`UPDATE invoices SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update invoice status: %w", err)
	}
	return nil
}

func (r *repository) SetInvoiceVoided(ctx context.Context, tx pgx.Tx, id, actorID int64, reason string, at time.Time) error {
	tag, err := tx.Exec(ctx,
		`UPDATE invoices
		 SET status = $2, voided_at = $3, voided_by = $4, void_reason = $5, updated_at = NOW()
		 WHERE id = $1 AND voided_at IS NULL`,
		id, InvoiceStatusVoid, at, actorID, reason)
	if err != nil {
		return fmt.Errorf("set invoice voided: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invoice: %w", internalShared.ErrNotFound)
	}
	return nil
}

const receiptColumns = `rc.id, rc.public_id, rc.number, rc.customer_id, c.name, rc.bank_account_id,
	rc.amount, rc.withheld_amount, rc.received_at, rc.memo, rc.status, rc.journal_id,
	rc.voided_at, rc.voided_by, rc.void_reason, rc.created_by, rc.created_at, rc.updated_at`

func scanReceipt(row pgx.Row) (Receipt, error) {
	var rc Receipt
	err := row.Scan(&rc.ID, &rc.PublicID, &rc.Number, &rc.CustomerID, &rc.CustomerName, &rc.BankAccountID,
		&rc.Amount, &rc.WithheldAmount, &rc.ReceivedAt, &rc.Memo, &rc.Status, &rc.JournalID,
		&rc.VoidedAt, &rc.VoidedBy, &rc.VoidReason, &rc.CreatedBy, &rc.CreatedAt, &rc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Receipt{}, fmt.Errorf("receipt: %w", internalShared.ErrNotFound)
	}
	return rc, err
}

func (r *repository) InsertReceipt(ctx context.Context, tx pgx.Tx, receipt Receipt, allocations []ReceiptAllocation) (Receipt, error) {
	err := tx.QueryRow(ctx,
		`INSERT INTO receipts (number, customer_id, bank_account_id, amount, withheld_amount,
		                       received_at, memo, status, journal_id, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, public_id, created_at, updated_at`,
		receipt.Number, receipt.CustomerID, receipt.BankAccountID, receipt.Amount, receipt.WithheldAmount,
		receipt.ReceivedAt, receipt.Memo, receipt.Status, receipt.JournalID, receipt.CreatedBy,
	).Scan(&receipt.ID, &receipt.PublicID, &receipt.CreatedAt, &receipt.UpdatedAt)
	if err != nil {
		return Receipt{}, fmt.Errorf("insert receipt: %w", err)
	}
	for _, alloc := range allocations {
		_, err := tx.Exec(ctx,
			`INSERT INTO receipt_allocations (receipt_id, invoice_id, amount) VALUES ($1, $2, $3)`,
			receipt.ID, alloc.InvoiceID, alloc.Amount)
		if err != nil {
			return Receipt{}, fmt.Errorf("insert receipt allocation: %w", err)
		}
	}
	return receipt, nil
}

func (r *repository) getReceipt(ctx context.Context, q db.Querier, id int64, forUpdate bool) (ReceiptWithDetails, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts rc JOIN customers c ON c.id = rc.customer_id WHERE rc.id = $1`
	if forUpdate {
		query += ` FOR UPDATE OF rc`
	}
	receipt, err := scanReceipt(q.QueryRow(ctx, query, id))
	if err != nil {
		return ReceiptWithDetails{}, err
	}
	rows, err := q.Query(ctx,
		`SELECT id, receipt_id, invoice_id, amount FROM receipt_allocations WHERE receipt_id = $1`, id)
	if err != nil {
		return ReceiptWithDetails{}, fmt.Errorf("receipt allocations: %w", err)
	}
	defer rows.Close()

	var allocs []ReceiptAllocation
	for rows.Next() {
		var a ReceiptAllocation
		if err := rows.Scan(&a.ID, &a.ReceiptID, &a.InvoiceID, &a.Amount); err != nil {
			return ReceiptWithDetails{}, err
		}
		allocs = append(allocs, a)
	}
	return ReceiptWithDetails{Receipt: receipt, Allocations: allocs}, rows.Err()
}

func (r *repository) GetReceipt(ctx context.Context, id int64) (ReceiptWithDetails, error) {
	return r.getReceipt(ctx, r.db, id, false)
}

func (r *repository) GetReceiptTx(ctx context.Context, tx pgx.Tx, id int64) (ReceiptWithDetails, error) {
	return r.getReceipt(ctx, tx, id, true)
}

func (r *repository) ListReceipts(ctx context.Context, limit, offset int) ([]Receipt, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+receiptColumns+` FROM receipts rc JOIN customers c ON c.id = rc.customer_id
		 ORDER BY rc.received_at DESC, rc.id DESC
		 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var out []Receipt
	for rows.Next() {
		rc, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

func (r *repository) SetReceiptJournal(ctx context.Context, tx pgx.Tx, id, journalID int64) error {
	tag, err := tx.Exec(ctx,
		`UPDATE receipts SET journal_id = $2, updated_at = NOW() WHERE id = $1`, id, journalID)
	if err != nil {
		return fmt.Errorf("set receipt journal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("receipt: %w", internalShared.ErrNotFound)
	}
	return nil
}

func (r *repository) SetReceiptVoided(ctx context.Context, tx pgx.Tx, id, actorID int64, reason string, at time.Time) error {
	tag, err := tx.Exec(ctx,
		`UPDATE receipts
		 SET status = $2, voided_at = $3, voided_by = $4, void_reason = $5, updated_at = NOW()
		 WHERE id = $1 AND voided_at IS NULL`,
		id, ReceiptStatusVoid, at, actorID, reason)
	if err != nil {
		return fmt.Errorf("set receipt voided: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("receipt: %w", internalShared.ErrNotFound)
	}
	return nil
}

func (r *repository) PaidAmountTx(ctx context.Context, tx pgx.Tx, invoiceID int64) (int64, error) {
	var paid int64
	err := tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(a.amount), 0)
		 FROM receipt_allocations a
		 JOIN receipts rc ON rc.id = a.receipt_id
		 WHERE a.invoice_id = $1 AND rc.status <> $2`, invoiceID, ReceiptStatusVoid,
	).Scan(&paid)
	if err != nil {
		return 0, fmt.Errorf("paid amount: %w", err)
	}
	return paid, nil
}

func (r *repository) InvoiceBalances(ctx context.Context) ([]InvoiceBalance, error) {
	rows, err := r.db.Query(ctx,
		`SELECT i.id, i.customer_id, i.due_date, i.total,
		        COALESCE(SUM(a.amount) FILTER (WHERE rc.status <> 'VOID'), 0)
		 FROM invoices i
		 LEFT JOIN receipt_allocations a ON a.invoice_id = i.id
		 LEFT JOIN receipts rc ON rc.id = a.receipt_id
		 WHERE i.status IN ('POSTED', 'PARTIAL')
		 GROUP BY i.id`)
	if err != nil {
		return nil, fmt.Errorf("invoice balances: %w", err)
	}
	defer rows.Close()

	var out []InvoiceBalance
	for rows.Next() {
		var b InvoiceBalance
		if err := rows.Scan(&b.ID, &b.CustomerID, &b.DueDate, &b.Total, &b.PaidAmount); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
