package ar

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/saldo-id/saldo/internal/ledger/accounts"
	"github.com/saldo-id/saldo/internal/ledger/journals"
	"github.com/saldo-id/saldo/internal/ledger/numbering"
	ledgerShared "github.com/saldo-id/saldo/internal/ledger/shared"
	"github.com/saldo-id/saldo/internal/ledger/tax"
	"github.com/saldo-id/saldo/internal/masterdata/banks"
	"github.com/saldo-id/saldo/internal/masterdata/customers"
	"github.com/saldo-id/saldo/internal/platform/httpx"
	internalShared "github.com/saldo-id/saldo/internal/shared"
)

// LedgerPoster posts and reverses journals inside the caller's transaction.
type LedgerPoster interface {
	PostTx(ctx context.Context, tx pgx.Tx, input journals.PostingInput) (journals.Journal, error)
	VoidTx(ctx context.Context, tx pgx.Tx, input journals.VoidInput) (journals.Journal, string, error)
}

type CustomerDirectory interface {
	Get(ctx context.Context, id int64) (customers.Customer, error)
}

type BankDirectory interface {
	Get(ctx context.Context, id int64) (banks.BankAccount, error)
}

type AuditPort interface {
	Record(ctx context.Context, entry internalShared.AuditLog) error
}

// ControlAccounts pins the ledger accounts AR postings hit.
type ControlAccounts struct {
	Receivable      string
	VATOut          string
	PPh23Receivable string
}

// DefaultControlAccounts matches the seeded chart of accounts.
func DefaultControlAccounts() ControlAccounts {
	return ControlAccounts{
		Receivable:      "1-10301",
		VATOut:          "2-10301",
		PPh23Receivable: "1-10601",
	}
}

type Service struct {
	repo      Repository
	ledger    LedgerPoster
	customers CustomerDirectory
	banks     BankDirectory
	audit     AuditPort
	accounts  ControlAccounts
	now       func() time.Time
}

func NewService(repo Repository, ledger LedgerPoster, customerDir CustomerDirectory, bankDir BankDirectory, audit AuditPort) *Service {
	return &Service{
		repo:      repo,
		ledger:    ledger,
		customers: customerDir,
		banks:     bankDir,
		audit:     audit,
		accounts:  DefaultControlAccounts(),
		now:       time.Now,
	}
}

func (s *Service) WithControlAccounts(ca ControlAccounts) {
	s.accounts = ca
}

func (s *Service) WithNow(now func() time.Time) {
	s.now = now
}

// CreateInvoice records a draft sales invoice. Output VAT is always charged
// on top of the subtotal.
func (s *Service) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (Invoice, error) {
	if len(input.Lines) == 0 {
		return Invoice{}, fmt.Errorf("%w: invoice needs at least one line", httpx.ErrValidation)
	}
	if input.InvoiceDate.IsZero() {
		return Invoice{}, fmt.Errorf("%w: invoice date is required", httpx.ErrValidation)
	}
	if input.DueDate.IsZero() {
		input.DueDate = input.InvoiceDate.AddDate(0, 0, 30)
	}

	var subtotal int64
	for _, line := range input.Lines {
		if line.Amount <= 0 {
			return Invoice{}, fmt.Errorf("%w: line amounts must be positive", httpx.ErrValidation)
		}
		if !accounts.ValidCode(line.RevenueAccount) {
			return Invoice{}, fmt.Errorf("%w: %s", ledgerShared.ErrBadAccountCode, line.RevenueAccount)
		}
		subtotal += line.Amount
	}

	customer, err := s.customers.Get(ctx, input.CustomerID)
	if err != nil {
		return Invoice{}, err
	}
	if !customer.IsActive {
		return Invoice{}, fmt.Errorf("%w: customer %s is inactive", httpx.ErrValidation, customer.Name)
	}

	vat := tax.OutputVAT(subtotal)
	invoice := Invoice{
		CustomerID:   customer.ID,
		CustomerName: customer.Name,
		InvoiceDate:  input.InvoiceDate,
		DueDate:      input.DueDate,
		FakturPajak:  input.FakturPajak,
		Memo:         input.Memo,
		Subtotal:     subtotal,
		VATAmount:    vat,
		Total:        subtotal + vat,
		Status:       InvoiceStatusDraft,
		CreatedBy:    input.CreatedBy,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		number, err := s.repo.NextNumber(ctx, tx, numbering.KindInvoice, input.InvoiceDate.Year())
		if err != nil {
			return err
		}
		invoice.Number = number
		invoice, err = s.repo.InsertInvoice(ctx, tx, invoice, input.Lines)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	return invoice, nil
}

// PostInvoice posts a draft invoice to the ledger: debit receivable, credit
// each revenue line, credit output VAT.
func (s *Service) PostInvoice(ctx context.Context, input PostInvoiceInput, actor internalShared.Actor) (InvoiceWithDetails, error) {
	if !actor.Role.CanPost() {
		return InvoiceWithDetails{}, fmt.Errorf("%w: posting requires user role", httpx.ErrForbidden)
	}

	var posted InvoiceWithDetails
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		invoice, err := s.repo.GetInvoiceTx(ctx, tx, input.InvoiceID)
		if err != nil {
			return err
		}
		if invoice.Status != InvoiceStatusDraft {
			return fmt.Errorf("%w: invoice %s is %s, only drafts can be posted", httpx.ErrValidation, invoice.Number, invoice.Status)
		}

		lines := make([]journals.PostingLineInput, 0, len(invoice.Lines)+2)
		lines = append(lines, journals.PostingLineInput{
			AccountCode: s.accounts.Receivable,
			Debit:       invoice.Total,
			Description: "Piutang usaha " + invoice.CustomerName,
		})
		for _, l := range invoice.Lines {
			lines = append(lines, journals.PostingLineInput{
				AccountCode: l.RevenueAccount,
				Credit:      l.Amount,
				Description: l.Description,
				ProjectCode: optStr(l.ProjectCode),
			})
		}
		if invoice.VATAmount > 0 {
			lines = append(lines, journals.PostingLineInput{
				AccountCode: s.accounts.VATOut,
				Credit:      invoice.VATAmount,
				Description: "PPN Keluaran " + invoice.Number,
			})
		}

		entry, err := s.ledger.PostTx(ctx, tx, journals.PostingInput{
			Date:           invoice.InvoiceDate,
			SourceType:     journals.SourceInvoice,
			SourceID:       invoice.PublicID,
			Memo:           fmt.Sprintf("Invoice %s - %s", invoice.Number, invoice.CustomerName),
			PostedBy:       actor.UserID,
			IdempotencyKey: input.IdempotencyKey,
			Lines:          lines,
		})
		if err != nil {
			return err
		}
		if err := s.repo.SetInvoicePosted(ctx, tx, invoice.ID, entry.ID, actor.UserID, s.now()); err != nil {
			return err
		}
		posted, err = s.repo.GetInvoiceTx(ctx, tx, invoice.ID)
		return err
	})
	if err != nil {
		return InvoiceWithDetails{}, err
	}
	s.recordAudit(ctx, actor.UserID, "ar.invoice.post", posted.ID, map[string]any{
		"number": posted.Number,
		"total":  posted.Total,
	})
	return posted, nil
}

// VoidInvoice reverses a posted invoice. Invoices with non-void receipts
// must have those receipts voided first.
func (s *Service) VoidInvoice(ctx context.Context, input VoidInvoiceInput, actor internalShared.Actor) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		invoice, err := s.repo.GetInvoiceTx(ctx, tx, input.InvoiceID)
		if err != nil {
			return err
		}
		if invoice.Status == InvoiceStatusVoid {
			return fmt.Errorf("%w: invoice %s", ledgerShared.ErrAlreadyVoided, invoice.Number)
		}
		if invoice.PaidAmount > 0 {
			return fmt.Errorf("%w: invoice %s has receipts applied, void those first", httpx.ErrValidation, invoice.Number)
		}

		if invoice.JournalID != nil {
			if _, _, err := s.ledger.VoidTx(ctx, tx, journals.VoidInput{
				JournalID: *invoice.JournalID,
				Reason:    input.Reason,
				Actor:     actor,
			}); err != nil {
				return err
			}
		} else if !actor.Role.CanVoid() {
			return fmt.Errorf("%w: void requires admin role", httpx.ErrForbidden)
		}
		return s.repo.SetInvoiceVoided(ctx, tx, invoice.ID, actor.UserID, input.Reason, s.now())
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor.UserID, "ar.invoice.void", input.InvoiceID, map[string]any{"reason": input.Reason})
	return nil
}

// RegisterReceipt settles posted invoices. Allocations are gross AR relief;
// WithheldAmount is PPh 23 the customer kept back, booked as a prepaid tax
// asset, and the bank receives the difference.
func (s *Service) RegisterReceipt(ctx context.Context, input RegisterReceiptInput, actor internalShared.Actor) (Receipt, error) {
	if !actor.Role.CanPost() {
		return Receipt{}, fmt.Errorf("%w: posting requires user role", httpx.ErrForbidden)
	}
	if len(input.Allocations) == 0 {
		return Receipt{}, fmt.Errorf("%w: at least one allocation is required", httpx.ErrValidation)
	}
	if input.WithheldAmount < 0 {
		return Receipt{}, fmt.Errorf("%w: withheld amount cannot be negative", httpx.ErrValidation)
	}
	if input.ReceivedAt.IsZero() {
		input.ReceivedAt = s.now()
	}

	customer, err := s.customers.Get(ctx, input.CustomerID)
	if err != nil {
		return Receipt{}, err
	}
	bank, err := s.banks.Get(ctx, input.BankAccountID)
	if err != nil {
		return Receipt{}, err
	}
	if !bank.IsActive {
		return Receipt{}, fmt.Errorf("%w: bank account %s is inactive", httpx.ErrValidation, bank.Name)
	}

	var receipt Receipt
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var gross int64
		allocations := make([]ReceiptAllocation, 0, len(input.Allocations))
		invoiceIDs := make([]int64, 0, len(input.Allocations))

		for _, alloc := range input.Allocations {
			if alloc.Amount <= 0 {
				return fmt.Errorf("%w: allocation amounts must be positive", httpx.ErrValidation)
			}
			invoice, err := s.repo.GetInvoiceTx(ctx, tx, alloc.InvoiceID)
			if err != nil {
				return err
			}
			if invoice.CustomerID != customer.ID {
				return fmt.Errorf("%w: invoice %s belongs to another customer", httpx.ErrValidation, invoice.Number)
			}
			if invoice.Status != InvoiceStatusPosted && invoice.Status != InvoiceStatusPartial {
				return fmt.Errorf("%w: invoice %s is %s, only posted invoices can be settled", httpx.ErrValidation, invoice.Number, invoice.Status)
			}
			if alloc.Amount > invoice.Balance {
				return fmt.Errorf("%w: allocation exceeds invoice %s open balance", httpx.ErrValidation, invoice.Number)
			}
			gross += alloc.Amount
			allocations = append(allocations, ReceiptAllocation{InvoiceID: alloc.InvoiceID, Amount: alloc.Amount})
			invoiceIDs = append(invoiceIDs, alloc.InvoiceID)
		}
		if input.WithheldAmount >= gross {
			return fmt.Errorf("%w: withheld amount must be less than the allocated total", httpx.ErrValidation)
		}
		cash := gross - input.WithheldAmount

		number, err := s.repo.NextNumber(ctx, tx, numbering.KindReceipt, input.ReceivedAt.Year())
		if err != nil {
			return err
		}

		receipt = Receipt{
			Number:         number,
			CustomerID:     customer.ID,
			CustomerName:   customer.Name,
			BankAccountID:  bank.ID,
			Amount:         cash,
			WithheldAmount: input.WithheldAmount,
			ReceivedAt:     input.ReceivedAt,
			Memo:           input.Memo,
			Status:         ReceiptStatusPosted,
			CreatedBy:      actor.UserID,
		}
		receipt, err = s.repo.InsertReceipt(ctx, tx, receipt, allocations)
		if err != nil {
			return err
		}

		lines := []journals.PostingLineInput{
			{AccountCode: bank.LedgerAccount, Debit: cash, Description: "Penerimaan via " + bank.Name},
		}
		if input.WithheldAmount > 0 {
			lines = append(lines, journals.PostingLineInput{
				AccountCode: s.accounts.PPh23Receivable,
				Debit:       input.WithheldAmount,
				Description: "PPh 23 dipotong pelanggan " + customer.Name,
			})
		}
		lines = append(lines, journals.PostingLineInput{
			AccountCode: s.accounts.Receivable,
			Credit:      gross,
			Description: "Pelunasan piutang " + customer.Name,
		})

		entry, err := s.ledger.PostTx(ctx, tx, journals.PostingInput{
			Date:           input.ReceivedAt,
			SourceType:     journals.SourceReceipt,
			SourceID:       receipt.PublicID,
			Memo:           fmt.Sprintf("Receipt %s - %s", number, customer.Name),
			PostedBy:       actor.UserID,
			IdempotencyKey: input.IdempotencyKey,
			Lines:          lines,
		})
		if err != nil {
			return err
		}
		if err := s.repo.SetReceiptJournal(ctx, tx, receipt.ID, entry.ID); err != nil {
			return err
		}
		journalID := entry.ID
		receipt.JournalID = &journalID

		return s.refreshInvoiceStatuses(ctx, tx, invoiceIDs)
	})
	if err != nil {
		return Receipt{}, err
	}
	s.recordAudit(ctx, actor.UserID, "ar.receipt.register", receipt.ID, map[string]any{
		"number":   receipt.Number,
		"amount":   receipt.Amount,
		"withheld": receipt.WithheldAmount,
	})
	return receipt, nil
}

// VoidReceipt reverses a receipt's journal and reopens the invoices it
// settled.
func (s *Service) VoidReceipt(ctx context.Context, input VoidReceiptInput, actor internalShared.Actor) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		receipt, err := s.repo.GetReceiptTx(ctx, tx, input.ReceiptID)
		if err != nil {
			return err
		}
		if receipt.Status == ReceiptStatusVoid {
			return fmt.Errorf("%w: receipt %s", ledgerShared.ErrAlreadyVoided, receipt.Number)
		}
		if receipt.JournalID != nil {
			if _, _, err := s.ledger.VoidTx(ctx, tx, journals.VoidInput{
				JournalID: *receipt.JournalID,
				Reason:    input.Reason,
				Actor:     actor,
			}); err != nil {
				return err
			}
		}
		if err := s.repo.SetReceiptVoided(ctx, tx, receipt.ID, actor.UserID, input.Reason, s.now()); err != nil {
			return err
		}

		invoiceIDs := make([]int64, 0, len(receipt.Allocations))
		for _, alloc := range receipt.Allocations {
			invoiceIDs = append(invoiceIDs, alloc.InvoiceID)
		}
		return s.refreshInvoiceStatuses(ctx, tx, invoiceIDs)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor.UserID, "ar.receipt.void", input.ReceiptID, map[string]any{"reason": input.Reason})
	return nil
}

func (s *Service) refreshInvoiceStatuses(ctx context.Context, tx pgx.Tx, invoiceIDs []int64) error {
	for _, invoiceID := range invoiceIDs {
		invoice, err := s.repo.GetInvoiceTx(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if invoice.Status == InvoiceStatusVoid || invoice.Status == InvoiceStatusDraft {
			continue
		}
		paid, err := s.repo.PaidAmountTx(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		status := InvoiceStatusPosted
		switch {
		case paid >= invoice.Total:
			status = InvoiceStatusPaid
		case paid > 0:
			status = InvoiceStatusPartial
		}
		if status != invoice.Status {
			if err := s.repo.UpdateInvoiceStatus(ctx, tx, invoiceID, status); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) GetInvoice(ctx context.Context, id int64) (InvoiceWithDetails, error) {
	return s.repo.GetInvoice(ctx, id)
}

func (s *Service) ListInvoices(ctx context.Context, req ListInvoicesRequest) ([]Invoice, error) {
	return s.repo.ListInvoices(ctx, req)
}

func (s *Service) GetReceipt(ctx context.Context, id int64) (ReceiptWithDetails, error) {
	return s.repo.GetReceipt(ctx, id)
}

func (s *Service) ListReceipts(ctx context.Context, limit, offset int) ([]Receipt, error) {
	return s.repo.ListReceipts(ctx, limit, offset)
}

// Aging buckets open invoice balances by days overdue as of the given date.
func (s *Service) Aging(ctx context.Context, asOf time.Time) (AgingBucket, error) {
	balances, err := s.repo.InvoiceBalances(ctx)
	if err != nil {
		return AgingBucket{}, err
	}
	var bucket AgingBucket
	for _, b := range balances {
		balance := b.Total - b.PaidAmount
		if balance <= 0 {
			continue
		}
		overdue := int(asOf.Sub(b.DueDate).Hours() / 24)
		switch {
		case overdue <= 0:
			bucket.Current += balance
		case overdue <= 30:
			bucket.Bucket30 += balance
		case overdue <= 60:
			bucket.Bucket60 += balance
		case overdue <= 90:
			bucket.Bucket90 += balance
		default:
			bucket.Bucket120 += balance
		}
	}
	return bucket, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "ar",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}

// optStr maps an empty project code to nil so it persists as NULL on the
// journal line rather than "".
func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
