package ap

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

	InsertBill(ctx context.Context, tx pgx.Tx, bill Bill, lines []CreateBillLineInput) (Bill, error)
	GetBill(ctx context.Context, id int64) (BillWithDetails, error)
	GetBillTx(ctx context.Context, tx pgx.Tx, id int64) (BillWithDetails, error)
	ListBills(ctx context.Context, req ListBillsRequest) ([]Bill, error)
	SetBillPosted(ctx context.Context, tx pgx.Tx, id, journalID, postedBy int64, at time.Time) error
	UpdateBillStatus(ctx context.Context, tx pgx.Tx, id int64, status BillStatus) error
	SetBillVoided(ctx context.Context, tx pgx.Tx, id, actorID int64, reason string, at time.Time) error

	InsertPayment(ctx context.Context, tx pgx.Tx, payment Payment, allocations []PaymentAllocation) (Payment, error)
	GetPayment(ctx context.Context, id int64) (PaymentWithDetails, error)
	GetPaymentTx(ctx context.Context, tx pgx.Tx, id int64) (PaymentWithDetails, error)
	ListPayments(ctx context.Context, limit, offset int) ([]Payment, error)
	SetPaymentJournal(ctx context.Context, tx pgx.Tx, id, journalID int64) error
	SetPaymentVoided(ctx context.Context, tx pgx.Tx, id, actorID int64, reason string, at time.Time) error

	PaidAmountTx(ctx context.Context, tx pgx.Tx, billID int64) (int64, error)
	BillBalances(ctx context.Context) ([]BillBalance, error)
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

const billColumns = `b.id, b.public_id, b.number, b.vendor_id, v.name, b.bill_date, b.due_date,
	b.faktur_pajak, b.memo, b.subtotal, b.vat_amount, b.total, b.status,
	b.journal_id, b.posted_at, b.posted_by, b.voided_at, b.voided_by, b.void_reason,
	b.created_by, b.created_at, b.updated_at`

func scanBill(row pgx.Row) (Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.PublicID, &b.Number, &b.VendorID, &b.VendorName, &b.BillDate, &b.DueDate,
		&b.FakturPajak, &b.Memo, &b.Subtotal, &b.VATAmount, &b.Total, &b.Status,
		&b.JournalID, &b.PostedAt, &b.PostedBy, &b.VoidedAt, &b.VoidedBy, &b.VoidReason,
		&b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Bill{}, fmt.Errorf("bill: %w", internalShared.ErrNotFound)
	}
	return b, err
}

func (r *repository) InsertBill(ctx context.Context, tx pgx.Tx, bill Bill, lines []CreateBillLineInput) (Bill, error) {
	err := tx.QueryRow(ctx,
		`INSERT INTO bills (number, vendor_id, bill_date, due_date, faktur_pajak, memo,
		                    subtotal, vat_amount, total, status, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, public_id, created_at, updated_at`,
		bill.Number, bill.VendorID, bill.BillDate, bill.DueDate, bill.FakturPajak, bill.Memo,
		bill.Subtotal, bill.VATAmount, bill.Total, bill.Status, bill.CreatedBy,
	).Scan(&bill.ID, &bill.PublicID, &bill.CreatedAt, &bill.UpdatedAt)
	if err != nil {
		return Bill{}, fmt.Errorf("insert bill: %w", err)
	}
	for i, line := range lines {
		_, err := tx.Exec(ctx,
			`INSERT INTO bill_lines (bill_id, description, expense_account, project_code, amount, sort_order)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			bill.ID, line.Description, line.ExpenseAccount, line.ProjectCode, line.Amount, i)
		if err != nil {
			return Bill{}, fmt.Errorf("insert bill line: %w", err)
		}
	}
	return bill, nil
}

func (r *repository) billLines(ctx context.Context, q db.Querier, billID int64) ([]BillLine, error) {
	rows, err := q.Query(ctx,
		`SELECT id, bill_id, description, expense_account, project_code, amount
		 FROM bill_lines WHERE bill_id = $1 ORDER BY sort_order`, billID)
	if err != nil {
		return nil, fmt.Errorf("bill lines: %w", err)
	}
	defer rows.Close()

	var out []BillLine
	for rows.Next() {
		var l BillLine
		if err := rows.Scan(&l.ID, &l.BillID, &l.Description, &l.ExpenseAccount, &l.ProjectCode, &l.Amount); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *repository) billPayments(ctx context.Context, q db.Querier, billID int64) ([]PaymentSummary, int64, error) {
	rows, err := q.Query(ctx,
		`SELECT p.id, p.number, a.amount, p.paid_at, p.status
		 FROM payment_allocations a
		 JOIN payments p ON p.id = a.payment_id
		 WHERE a.bill_id = $1
		 ORDER BY p.paid_at`, billID)
	if err != nil {
		return nil, 0, fmt.Errorf("bill payments: %w", err)
	}
	defer rows.Close()

	var out []PaymentSummary
	var paid int64
	for rows.Next() {
		var p PaymentSummary
		if err := rows.Scan(&p.ID, &p.Number, &p.AllocatedAmount, &p.PaidAt, &p.Status); err != nil {
			return nil, 0, err
		}
		out = append(out, p)
		if p.Status != PaymentStatusVoid {
			paid += p.AllocatedAmount
		}
	}
	return out, paid, rows.Err()
}

func (r *repository) getBill(ctx context.Context, q db.Querier, id int64, forUpdate bool) (BillWithDetails, error) {
	query := `SELECT ` + billColumns + ` FROM bills b JOIN vendors v ON v.id = b.vendor_id WHERE b.id = $1`
	if forUpdate {
		query += ` FOR UPDATE OF b`
	}
	bill, err := scanBill(q.QueryRow(ctx, query, id))
	if err != nil {
		return BillWithDetails{}, err
	}
	lines, err := r.billLines(ctx, q, id)
	if err != nil {
		return BillWithDetails{}, err
	}
	payments, paid, err := r.billPayments(ctx, q, id)
	if err != nil {
		return BillWithDetails{}, err
	}
	return BillWithDetails{
		Bill:       bill,
		Lines:      lines,
		Payments:   payments,
		PaidAmount: paid,
		Balance:    bill.Total - paid,
	}, nil
}

func (r *repository) GetBill(ctx context.Context, id int64) (BillWithDetails, error) {
	return r.getBill(ctx, r.db, id, false)
}

func (r *repository) GetBillTx(ctx context.Context, tx pgx.Tx, id int64) (BillWithDetails, error) {
	return r.getBill(ctx, tx, id, true)
}

func (r *repository) ListBills(ctx context.Context, req ListBillsRequest) ([]Bill, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+billColumns+` FROM bills b JOIN vendors v ON v.id = b.vendor_id
		 WHERE ($1 = '' OR b.status = $1)
		   AND ($2 = 0 OR b.vendor_id = $2)
		 ORDER BY b.bill_date DESC, b.id DESC
		 LIMIT $3 OFFSET $4`,
		string(req.Status), req.VendorID, limit, req.Offset)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	defer rows.Close()

	var out []Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *repository) SetBillPosted(ctx context.Context, tx pgx.Tx, id, journalID, postedBy int64, at time.Time) error {
	tag, err := tx.Exec(ctx,
		`UPDATE bills
		 SET status = $2, journal_id = $3, posted_at = $4, posted_by = $5, updated_at = NOW()
		 WHERE id = $1 AND status = $6`,
		id, BillStatusPosted, journalID, at, postedBy, BillStatusDraft)
	if err != nil {
		return fmt.Errorf("set bill posted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("bill: %w", internalShared.ErrNotFound)
	}
	return nil
}

func (r *repository) UpdateBillStatus(ctx context.Context, tx pgx.Tx, id int64, status BillStatus) error {
	_, err := tx.Exec(ctx,
		`UPDATE bills SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update bill status: %w", err)
	}
	return nil
}

func (r *repository) SetBillVoided(ctx context.Context, tx pgx.Tx, id, actorID int64, reason string, at time.Time) error {
	tag, err := tx.Exec(ctx,
		`UPDATE bills
		 SET status = $2, voided_at = $3, voided_by = $4, void_reason = $5, updated_at = NOW()
		 WHERE id = $1 AND voided_at IS NULL`,
		id, BillStatusVoid, at, actorID, reason)
	if err != nil {
		return fmt.Errorf("set bill voided: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("bill: %w", internalShared.ErrNotFound)
	}
	return nil
}

const paymentColumns = `p.id, p.public_id, p.number, p.vendor_id, v.name, p.bank_account_id, p.amount,
	p.withheld_amount, p.paid_at, p.memo, p.attachments, p.status, p.journal_id,
	p.voided_at, p.voided_by, p.void_reason, p.created_by, p.created_at, p.updated_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.PublicID, &p.Number, &p.VendorID, &p.VendorName, &p.BankAccountID, &p.Amount,
		&p.WithheldAmount, &p.PaidAt, &p.Memo, &p.Attachments, &p.Status, &p.JournalID,
		&p.VoidedAt, &p.VoidedBy, &p.VoidReason, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, fmt.Errorf("payment: %w", internalShared.ErrNotFound)
	}
	return p, err
}

func (r *repository) InsertPayment(ctx context.Context, tx pgx.Tx, payment Payment, allocations []PaymentAllocation) (Payment, error) {
	err := tx.QueryRow(ctx,
		`INSERT INTO payments (number, vendor_id, bank_account_id, amount, withheld_amount,
		                       paid_at, memo, attachments, status, journal_id, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, public_id, created_at, updated_at`,
		payment.Number, payment.VendorID, payment.BankAccountID, payment.Amount, payment.WithheldAmount,
		payment.PaidAt, payment.Memo, payment.Attachments, payment.Status, payment.JournalID, payment.CreatedBy,
	).Scan(&payment.ID, &payment.PublicID, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return Payment{}, fmt.Errorf("insert payment: %w", err)
	}
	for _, alloc := range allocations {
		_, err := tx.Exec(ctx,
			`INSERT INTO payment_allocations (payment_id, bill_id, amount) VALUES ($1, $2, $3)`,
			payment.ID, alloc.BillID, alloc.Amount)
		if err != nil {
			return Payment{}, fmt.Errorf("insert allocation: %w", err)
		}
	}
	return payment, nil
}

func (r *repository) getPayment(ctx context.Context, q db.Querier, id int64, forUpdate bool) (PaymentWithDetails, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments p JOIN vendors v ON v.id = p.vendor_id WHERE p.id = $1`
	if forUpdate {
		query += ` FOR UPDATE OF p`
	}
	payment, err := scanPayment(q.QueryRow(ctx, query, id))
	if err != nil {
		return PaymentWithDetails{}, err
	}
	rows, err := q.Query(ctx,
		`SELECT id, payment_id, bill_id, amount FROM payment_allocations WHERE payment_id = $1`, id)
	if err != nil {
		return PaymentWithDetails{}, fmt.Errorf("payment allocations: %w", err)
	}
	defer rows.Close()

	var allocs []PaymentAllocation
	for rows.Next() {
		var a PaymentAllocation
		if err := rows.Scan(&a.ID, &a.PaymentID, &a.BillID, &a.Amount); err != nil {
			return PaymentWithDetails{}, err
		}
		allocs = append(allocs, a)
	}
	return PaymentWithDetails{Payment: payment, Allocations: allocs}, rows.Err()
}

func (r *repository) GetPayment(ctx context.Context, id int64) (PaymentWithDetails, error) {
	return r.getPayment(ctx, r.db, id, false)
}

func (r *repository) GetPaymentTx(ctx context.Context, tx pgx.Tx, id int64) (PaymentWithDetails, error) {
	return r.getPayment(ctx, tx, id, true)
}

func (r *repository) ListPayments(ctx context.Context, limit, offset int) ([]Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments p JOIN vendors v ON v.id = p.vendor_id
		 ORDER BY p.paid_at DESC, p.id DESC
		 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) SetPaymentJournal(ctx context.Context, tx pgx.Tx, id, journalID int64) error {
	tag, err := tx.Exec(ctx,
		`UPDATE payments SET journal_id = $2, updated_at = NOW() WHERE id = $1`, id, journalID)
	if err != nil {
		return fmt.Errorf("set payment journal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment: %w", internalShared.ErrNotFound)
	}
	return nil
}

func (r *repository) SetPaymentVoided(ctx context.Context, tx pgx.Tx, id, actorID int64, reason string, at time.Time) error {
	tag, err := tx.Exec(ctx,
		`UPDATE payments
		 SET status = $2, voided_at = $3, voided_by = $4, void_reason = $5, updated_at = NOW()
		 WHERE id = $1 AND voided_at IS NULL`,
		id, PaymentStatusVoid, at, actorID, reason)
	if err != nil {
		return fmt.Errorf("set payment voided: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payment: %w", internalShared.ErrNotFound)
	}
	return nil
}

func (r *repository) PaidAmountTx(ctx context.Context, tx pgx.Tx, billID int64) (int64, error) {
	var paid int64
	err := tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(a.amount), 0)
		 FROM payment_allocations a
		 JOIN payments p ON p.id = a.payment_id
		 WHERE a.bill_id = $1 AND p.status <> $2`, billID, PaymentStatusVoid,
	).Scan(&paid)
	if err != nil {
		return 0, fmt.Errorf("paid amount: %w", err)
	}
	return paid, nil
}

func (r *repository) BillBalances(ctx context.Context) ([]BillBalance, error) {
	rows, err := r.db.Query(ctx,
		`SELECT b.id, b.vendor_id, b.due_date, b.total,
		        COALESCE(SUM(a.amount) FILTER (WHERE p.status <> 'VOID'), 0)
		 FROM bills b
		 LEFT JOIN payment_allocations a ON a.bill_id = b.id
		 LEFT JOIN payments p ON p.id = a.payment_id
		 WHERE b.status IN ('POSTED', 'PARTIAL')
		 GROUP BY b.id`)
	if err != nil {
		return nil, fmt.Errorf("bill balances: %w", err)
	}
	defer rows.Close()

	var out []BillBalance
	for rows.Next() {
		var b BillBalance
		if err := rows.Scan(&b.ID, &b.VendorID, &b.DueDate, &b.Total, &b.PaidAmount); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
