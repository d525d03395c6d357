package ap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/saldo-id/saldo/internal/ledger/accounts"
	"github.com/saldo-id/saldo/internal/ledger/journals"
	"github.com/saldo-id/saldo/internal/ledger/numbering"
	ledgerShared "github.com/saldo-id/saldo/internal/ledger/shared"
	"github.com/saldo-id/saldo/internal/ledger/tax"
	"github.com/saldo-id/saldo/internal/masterdata/banks"
	"github.com/saldo-id/saldo/internal/masterdata/vendors"
	"github.com/saldo-id/saldo/internal/platform/httpx"
	internalShared "github.com/saldo-id/saldo/internal/shared"
)

// LedgerPoster posts and reverses journals inside the caller's transaction,
// so a bill and its journal commit or roll back together.
type LedgerPoster interface {
	PostTx(ctx context.Context, tx pgx.Tx, input journals.PostingInput) (journals.Journal, error)
	VoidTx(ctx context.Context, tx pgx.Tx, input journals.VoidInput) (journals.Journal, string, error)
}

type VendorDirectory interface {
	Get(ctx context.Context, id int64) (vendors.Vendor, error)
}

type BankDirectory interface {
	Get(ctx context.Context, id int64) (banks.BankAccount, error)
}

type AuditPort interface {
	Record(ctx context.Context, entry internalShared.AuditLog) error
}

// ControlAccounts pins the ledger accounts AP postings hit.
type ControlAccounts struct {
	Payable      string
	VATIn        string
	PPh23Payable string
}

// DefaultControlAccounts matches the seeded chart of accounts.
func DefaultControlAccounts() ControlAccounts {
	return ControlAccounts{
		Payable:      "2-10001",
		VATIn:        "1-10501",
		PPh23Payable: "2-10401",
	}
}

type Service struct {
	repo     Repository
	ledger   LedgerPoster
	vendors  VendorDirectory
	banks    BankDirectory
	audit    AuditPort
	accounts ControlAccounts
	now      func() time.Time
}

func NewService(repo Repository, ledger LedgerPoster, vendorDir VendorDirectory, bankDir BankDirectory, audit AuditPort) *Service {
	return &Service{
		repo:     repo,
		ledger:   ledger,
		vendors:  vendorDir,
		banks:    bankDir,
		audit:    audit,
		accounts: DefaultControlAccounts(),
		now:      time.Now,
	}
}

// WithControlAccounts overrides the default control account codes.
func (s *Service) WithControlAccounts(ca ControlAccounts) {
	s.accounts = ca
}

func (s *Service) WithNow(now func() time.Time) {
	s.now = now
}

// CreateBill records a draft bill. VAT is computed from the subtotal and is
// only claimed when a faktur pajak serial is present.
func (s *Service) CreateBill(ctx context.Context, input CreateBillInput) (Bill, error) {
	if len(input.Lines) == 0 {
		return Bill{}, fmt.Errorf("%w: bill needs at least one line", httpx.ErrValidation)
	}
	if input.BillDate.IsZero() {
		return Bill{}, fmt.Errorf("%w: bill date is required", httpx.ErrValidation)
	}
	if input.DueDate.IsZero() {
		input.DueDate = input.BillDate.AddDate(0, 0, 30)
	}

	var subtotal int64
	for _, line := range input.Lines {
		if line.Amount <= 0 {
			return Bill{}, fmt.Errorf("%w: line amounts must be positive", httpx.ErrValidation)
		}
		if !accounts.ValidCode(line.ExpenseAccount) {
			return Bill{}, fmt.Errorf("%w: %s", ledgerShared.ErrBadAccountCode, line.ExpenseAccount)
		}
		subtotal += line.Amount
	}

	vendor, err := s.vendors.Get(ctx, input.VendorID)
	if err != nil {
		return Bill{}, err
	}
	if !vendor.IsActive {
		return Bill{}, fmt.Errorf("%w: vendor %s is inactive", httpx.ErrValidation, vendor.Name)
	}

	vat := tax.InputVAT(subtotal, input.FakturPajak)
	bill := Bill{
		VendorID:    vendor.ID,
		VendorName:  vendor.Name,
		BillDate:    input.BillDate,
		DueDate:     input.DueDate,
		FakturPajak: input.FakturPajak,
		Memo:        input.Memo,
		Subtotal:    subtotal,
		VATAmount:   vat,
		Total:       subtotal + vat,
		Status:      BillStatusDraft,
		CreatedBy:   input.CreatedBy,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		number, err := s.repo.NextNumber(ctx, tx, numbering.KindBill, input.BillDate.Year())
		if err != nil {
			return err
		}
		bill.Number = number
		bill, err = s.repo.InsertBill(ctx, tx, bill, input.Lines)
		return err
	})
	if err != nil {
		return Bill{}, err
	}
	return bill, nil
}

// PostBill posts a draft bill to the ledger: debit each expense line, debit
// input VAT when claimable, credit the payable control account.
func (s *Service) PostBill(ctx context.Context, input PostBillInput, actor internalShared.Actor) (BillWithDetails, error) {
	if !actor.Role.CanPost() {
		return BillWithDetails{}, fmt.Errorf("%w: posting requires user role", httpx.ErrForbidden)
	}

	var posted BillWithDetails
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		bill, err := s.repo.GetBillTx(ctx, tx, input.BillID)
		if err != nil {
			return err
		}
		if bill.Status != BillStatusDraft {
			return fmt.Errorf("%w: bill %s is %s, only drafts can be posted", httpx.ErrValidation, bill.Number, bill.Status)
		}

		lines := make([]journals.PostingLineInput, 0, len(bill.Lines)+2)
		for _, l := range bill.Lines {
			lines = append(lines, journals.PostingLineInput{
				AccountCode: l.ExpenseAccount,
				Debit:       l.Amount,
				Description: l.Description,
				ProjectCode: optStr(l.ProjectCode),
			})
		}
		if bill.VATAmount > 0 {
			lines = append(lines, journals.PostingLineInput{
				AccountCode: s.accounts.VATIn,
				Debit:       bill.VATAmount,
				Description: "PPN Masukan " + bill.FakturPajak,
			})
		}
		lines = append(lines, journals.PostingLineInput{
			AccountCode: s.accounts.Payable,
			Credit:      bill.Total,
			Description: "Hutang usaha " + bill.VendorName,
		})

		entry, err := s.ledger.PostTx(ctx, tx, journals.PostingInput{
			Date:           bill.BillDate,
			SourceType:     journals.SourceBill,
			SourceID:       bill.PublicID,
			Memo:           fmt.Sprintf("Bill %s - %s", bill.Number, bill.VendorName),
			PostedBy:       actor.UserID,
			IdempotencyKey: input.IdempotencyKey,
			Lines:          lines,
		})
		if err != nil {
			return err
		}
		if err := s.repo.SetBillPosted(ctx, tx, bill.ID, entry.ID, actor.UserID, s.now()); err != nil {
			return err
		}
		posted, err = s.repo.GetBillTx(ctx, tx, bill.ID)
		return err
	})
	if err != nil {
		return BillWithDetails{}, err
	}
	s.recordAudit(ctx, actor.UserID, "ap.bill.post", posted.ID, map[string]any{
		"number": posted.Number,
		"total":  posted.Total,
	})
	return posted, nil
}

// VoidBill reverses a posted bill. Bills with non-void payments must have
// their payments voided first so the AP subledger stays consistent.
func (s *Service) VoidBill(ctx context.Context, input VoidBillInput, actor internalShared.Actor) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		bill, err := s.repo.GetBillTx(ctx, tx, input.BillID)
		if err != nil {
			return err
		}
		if bill.Status == BillStatusVoid {
			return fmt.Errorf("%w: bill %s", ledgerShared.ErrAlreadyVoided, bill.Number)
		}
		if bill.PaidAmount > 0 {
			return fmt.Errorf("%w: bill %s has payments applied, void those first", httpx.ErrValidation, bill.Number)
		}

		if bill.JournalID != nil {
			if _, _, err := s.ledger.VoidTx(ctx, tx, journals.VoidInput{
				JournalID: *bill.JournalID,
				Reason:    input.Reason,
				Actor:     actor,
			}); err != nil {
				return err
			}
		} else if !actor.Role.CanVoid() {
			return fmt.Errorf("%w: void requires admin role", httpx.ErrForbidden)
		}
		return s.repo.SetBillVoided(ctx, tx, bill.ID, actor.UserID, input.Reason, s.now())
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor.UserID, "ap.bill.void", input.BillID, map[string]any{"reason": input.Reason})
	return nil
}

// RegisterPayment settles posted bills. Allocations are gross AP relief;
// PPh 23 is withheld on the pre-VAT share of each allocation and the vendor
// receives the difference in cash.
func (s *Service) RegisterPayment(ctx context.Context, input RegisterPaymentInput, actor internalShared.Actor) (Payment, error) {
	if !actor.Role.CanPost() {
		return Payment{}, fmt.Errorf("%w: posting requires user role", httpx.ErrForbidden)
	}
	if len(input.Allocations) == 0 {
		return Payment{}, fmt.Errorf("%w: at least one allocation is required", httpx.ErrValidation)
	}
	if input.PaidAt.IsZero() {
		input.PaidAt = s.now()
	}

	vendor, err := s.vendors.Get(ctx, input.VendorID)
	if err != nil {
		return Payment{}, err
	}
	bank, err := s.banks.Get(ctx, input.BankAccountID)
	if err != nil {
		return Payment{}, err
	}
	if !bank.IsActive {
		return Payment{}, fmt.Errorf("%w: bank account %s is inactive", httpx.ErrValidation, bank.Name)
	}

	var payment Payment
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var gross, withheld int64
		allocations := make([]PaymentAllocation, 0, len(input.Allocations))
		billIDs := make([]int64, 0, len(input.Allocations))

		for _, alloc := range input.Allocations {
			if alloc.Amount <= 0 {
				return fmt.Errorf("%w: allocation amounts must be positive", httpx.ErrValidation)
			}
			bill, err := s.repo.GetBillTx(ctx, tx, alloc.BillID)
			if err != nil {
				return err
			}
			if bill.VendorID != vendor.ID {
				return fmt.Errorf("%w: bill %s belongs to another vendor", httpx.ErrValidation, bill.Number)
			}
			if bill.Status != BillStatusPosted && bill.Status != BillStatusPartial {
				return fmt.Errorf("%w: bill %s is %s, only posted bills can be paid", httpx.ErrValidation, bill.Number, bill.Status)
			}
			if alloc.Amount > bill.Balance {
				return fmt.Errorf("%w: allocation exceeds bill %s open balance", httpx.ErrValidation, bill.Number)
			}
			gross += alloc.Amount
			withheld += tax.Withholding(withholdingBase(alloc.Amount, bill.Subtotal, bill.Total), vendor.SubjectToPPh23, vendor.PPh23Rate)
			allocations = append(allocations, PaymentAllocation{BillID: alloc.BillID, Amount: alloc.Amount})
			billIDs = append(billIDs, alloc.BillID)
		}
		cash := gross - withheld

		number, err := s.repo.NextNumber(ctx, tx, numbering.KindPayment, input.PaidAt.Year())
		if err != nil {
			return err
		}

		payment = Payment{
			Number:         number,
			VendorID:       vendor.ID,
			VendorName:     vendor.Name,
			BankAccountID:  bank.ID,
			Amount:         cash,
			WithheldAmount: withheld,
			PaidAt:         input.PaidAt,
			Memo:           input.Memo,
			Attachments:    input.Attachments,
			Status:         PaymentStatusPosted,
			CreatedBy:      actor.UserID,
		}
		payment, err = s.repo.InsertPayment(ctx, tx, payment, allocations)
		if err != nil {
			return err
		}

		lines := []journals.PostingLineInput{
			{AccountCode: s.accounts.Payable, Debit: gross, Description: "Pelunasan hutang " + vendor.Name},
			{AccountCode: bank.LedgerAccount, Credit: cash, Description: "Pembayaran via " + bank.Name},
		}
		if withheld > 0 {
			lines = append(lines, journals.PostingLineInput{
				AccountCode: s.accounts.PPh23Payable,
				Credit:      withheld,
				Description: "PPh 23 dipotong " + vendor.Name,
			})
		}
		entry, err := s.ledger.PostTx(ctx, tx, journals.PostingInput{
			Date:           input.PaidAt,
			SourceType:     journals.SourcePayment,
			SourceID:       payment.PublicID,
			Memo:           fmt.Sprintf("Payment %s - %s", number, vendor.Name),
			PostedBy:       actor.UserID,
			IdempotencyKey: input.IdempotencyKey,
			Lines:          lines,
		})
		if err != nil {
			return err
		}
		if err := s.repo.SetPaymentJournal(ctx, tx, payment.ID, entry.ID); err != nil {
			return err
		}
		journalID := entry.ID
		payment.JournalID = &journalID

		return s.refreshBillStatuses(ctx, tx, billIDs)
	})
	if err != nil {
		return Payment{}, err
	}
	s.recordAudit(ctx, actor.UserID, "ap.payment.register", payment.ID, map[string]any{
		"number":   payment.Number,
		"amount":   payment.Amount,
		"withheld": payment.WithheldAmount,
	})
	return payment, nil
}

// VoidPayment reverses a payment's journal and reopens the bills it settled.
func (s *Service) VoidPayment(ctx context.Context, input VoidPaymentInput, actor internalShared.Actor) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		payment, err := s.repo.GetPaymentTx(ctx, tx, input.PaymentID)
		if err != nil {
			return err
		}
		if payment.Status == PaymentStatusVoid {
			return fmt.Errorf("%w: payment %s", ledgerShared.ErrAlreadyVoided, payment.Number)
		}
		if payment.JournalID != nil {
			if _, _, err := s.ledger.VoidTx(ctx, tx, journals.VoidInput{
				JournalID: *payment.JournalID,
				Reason:    input.Reason,
				Actor:     actor,
			}); err != nil {
				return err
			}
		}
		if err := s.repo.SetPaymentVoided(ctx, tx, payment.ID, actor.UserID, input.Reason, s.now()); err != nil {
			return err
		}

		billIDs := make([]int64, 0, len(payment.Allocations))
		for _, alloc := range payment.Allocations {
			billIDs = append(billIDs, alloc.BillID)
		}
		return s.refreshBillStatuses(ctx, tx, billIDs)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor.UserID, "ap.payment.void", input.PaymentID, map[string]any{"reason": input.Reason})
	return nil
}

// refreshBillStatuses recomputes settlement status from the authoritative
// allocation sums.
func (s *Service) refreshBillStatuses(ctx context.Context, tx pgx.Tx, billIDs []int64) error {
	for _, billID := range billIDs {
		bill, err := s.repo.GetBillTx(ctx, tx, billID)
		if err != nil {
			return err
		}
		if bill.Status == BillStatusVoid || bill.Status == BillStatusDraft {
			continue
		}
		paid, err := s.repo.PaidAmountTx(ctx, tx, billID)
		if err != nil {
			return err
		}
		status := BillStatusPosted
		switch {
		case paid >= bill.Total:
			status = BillStatusPaid
		case paid > 0:
			status = BillStatusPartial
		}
		if status != bill.Status {
			if err := s.repo.UpdateBillStatus(ctx, tx, billID, status); err != nil {
				return err
			}
		}
	}
	return nil
}

// withholdingBase scales an allocation down to its pre-VAT share, since
// PPh 23 applies to the service value, not the VAT on top of it.
func withholdingBase(allocated, subtotal, total int64) int64 {
	if total == 0 || subtotal == total {
		return allocated
	}
	return decimal.NewFromInt(allocated).
		Mul(decimal.NewFromInt(subtotal)).
		Div(decimal.NewFromInt(total)).
		Round(0).IntPart()
}

func (s *Service) GetBill(ctx context.Context, id int64) (BillWithDetails, error) {
	return s.repo.GetBill(ctx, id)
}

func (s *Service) ListBills(ctx context.Context, req ListBillsRequest) ([]Bill, error) {
	return s.repo.ListBills(ctx, req)
}

func (s *Service) GetPayment(ctx context.Context, id int64) (PaymentWithDetails, error) {
	return s.repo.GetPayment(ctx, id)
}

func (s *Service) ListPayments(ctx context.Context, limit, offset int) ([]Payment, error) {
	return s.repo.ListPayments(ctx, limit, offset)
}

// Aging buckets open bill balances by days overdue as of the given date.
func (s *Service) Aging(ctx context.Context, asOf time.Time) (AgingBucket, error) {
	balances, err := s.repo.BillBalances(ctx)
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
		Entity:   "ap",
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
