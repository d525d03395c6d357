package ap

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/saldo-id/saldo/internal/ledger/journals"
	"github.com/saldo-id/saldo/internal/ledger/numbering"
	ledgerShared "github.com/saldo-id/saldo/internal/ledger/shared"
	"github.com/saldo-id/saldo/internal/masterdata/banks"
	"github.com/saldo-id/saldo/internal/masterdata/vendors"
	"github.com/saldo-id/saldo/internal/platform/httpx"
	internalShared "github.com/saldo-id/saldo/internal/shared"
)

type memoryRepo struct {
	bills       map[int64]*Bill
	billLines   map[int64][]BillLine
	payments    map[int64]*Payment
	allocations []PaymentAllocation
	nextBillID  int64
	nextPayID   int64
	nextAllocID int64
	counters    map[numbering.Kind]int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		bills:     make(map[int64]*Bill),
		billLines: make(map[int64][]BillLine),
		payments:  make(map[int64]*Payment),
		counters:  make(map[numbering.Kind]int64),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	return fn(ctx, nil)
}

func (r *memoryRepo) NextNumber(_ context.Context, _ pgx.Tx, kind numbering.Kind, year int) (string, error) {
	r.counters[kind]++
	return numbering.Format(kind, year, r.counters[kind]), nil
}

func (r *memoryRepo) InsertBill(_ context.Context, _ pgx.Tx, bill Bill, lines []CreateBillLineInput) (Bill, error) {
	r.nextBillID++
	bill.ID = r.nextBillID
	bill.PublicID = uuid.New()
	stored := bill
	r.bills[bill.ID] = &stored
	for i, l := range lines {
		r.billLines[bill.ID] = append(r.billLines[bill.ID], BillLine{
			ID: int64(i + 1), BillID: bill.ID,
			Description: l.Description, ExpenseAccount: l.ExpenseAccount,
			ProjectCode: l.ProjectCode, Amount: l.Amount,
		})
	}
	return bill, nil
}

func (r *memoryRepo) billDetails(id int64) (BillWithDetails, error) {
	bill, ok := r.bills[id]
	if !ok {
		return BillWithDetails{}, fmt.Errorf("bill: %w", internalShared.ErrNotFound)
	}
	var payments []PaymentSummary
	var paid int64
	for _, alloc := range r.allocations {
		if alloc.BillID != id {
			continue
		}
		pay := r.payments[alloc.PaymentID]
		payments = append(payments, PaymentSummary{
			ID: pay.ID, Number: pay.Number, AllocatedAmount: alloc.Amount,
			PaidAt: pay.PaidAt, Status: pay.Status,
		})
		if pay.Status != PaymentStatusVoid {
			paid += alloc.Amount
		}
	}
	return BillWithDetails{
		Bill: *bill, Lines: r.billLines[id], Payments: payments,
		PaidAmount: paid, Balance: bill.Total - paid,
	}, nil
}

func (r *memoryRepo) GetBill(_ context.Context, id int64) (BillWithDetails, error) {
	return r.billDetails(id)
}

func (r *memoryRepo) GetBillTx(_ context.Context, _ pgx.Tx, id int64) (BillWithDetails, error) {
	return r.billDetails(id)
}

func (r *memoryRepo) ListBills(_ context.Context, req ListBillsRequest) ([]Bill, error) {
	var out []Bill
	for _, b := range r.bills {
		if req.Status != "" && b.Status != req.Status {
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

func (r *memoryRepo) SetBillPosted(_ context.Context, _ pgx.Tx, id, journalID, postedBy int64, at time.Time) error {
	b, ok := r.bills[id]
	if !ok {
		return internalShared.ErrNotFound
	}
	b.Status = BillStatusPosted
	b.JournalID = &journalID
	b.PostedBy = &postedBy
	b.PostedAt = &at
	return nil
}

func (r *memoryRepo) UpdateBillStatus(_ context.Context, _ pgx.Tx, id int64, status BillStatus) error {
	b, ok := r.bills[id]
	if !ok {
		return internalShared.ErrNotFound
	}
	b.Status = status
	return nil
}

func (r *memoryRepo) SetBillVoided(_ context.Context, _ pgx.Tx, id, actorID int64, reason string, at time.Time) error {
	b, ok := r.bills[id]
	if !ok {
		return internalShared.ErrNotFound
	}
	b.Status = BillStatusVoid
	b.VoidedAt = &at
	b.VoidedBy = &actorID
	b.VoidReason = &reason
	return nil
}

func (r *memoryRepo) InsertPayment(_ context.Context, _ pgx.Tx, payment Payment, allocations []PaymentAllocation) (Payment, error) {
	r.nextPayID++
	payment.ID = r.nextPayID
	payment.PublicID = uuid.New()
	stored := payment
	r.payments[payment.ID] = &stored
	for _, a := range allocations {
		r.nextAllocID++
		a.ID = r.nextAllocID
		a.PaymentID = payment.ID
		r.allocations = append(r.allocations, a)
	}
	return payment, nil
}

func (r *memoryRepo) paymentDetails(id int64) (PaymentWithDetails, error) {
	p, ok := r.payments[id]
	if !ok {
		return PaymentWithDetails{}, fmt.Errorf("payment: %w", internalShared.ErrNotFound)
	}
	var allocs []PaymentAllocation
	for _, a := range r.allocations {
		if a.PaymentID == id {
			allocs = append(allocs, a)
		}
	}
	return PaymentWithDetails{Payment: *p, Allocations: allocs}, nil
}

func (r *memoryRepo) GetPayment(_ context.Context, id int64) (PaymentWithDetails, error) {
	return r.paymentDetails(id)
}

func (r *memoryRepo) GetPaymentTx(_ context.Context, _ pgx.Tx, id int64) (PaymentWithDetails, error) {
	return r.paymentDetails(id)
}

func (r *memoryRepo) ListPayments(_ context.Context, limit, offset int) ([]Payment, error) {
	var out []Payment
	for _, p := range r.payments {
		out = append(out, *p)
	}
	return out, nil
}

func (r *memoryRepo) SetPaymentJournal(_ context.Context, _ pgx.Tx, id, journalID int64) error {
	p, ok := r.payments[id]
	if !ok {
		return internalShared.ErrNotFound
	}
	p.JournalID = &journalID
	return nil
}

func (r *memoryRepo) SetPaymentVoided(_ context.Context, _ pgx.Tx, id, actorID int64, reason string, at time.Time) error {
	p, ok := r.payments[id]
	if !ok {
		return internalShared.ErrNotFound
	}
	p.Status = PaymentStatusVoid
	p.VoidedAt = &at
	p.VoidedBy = &actorID
	p.VoidReason = &reason
	return nil
}

func (r *memoryRepo) PaidAmountTx(_ context.Context, _ pgx.Tx, billID int64) (int64, error) {
	var paid int64
	for _, a := range r.allocations {
		if a.BillID == billID && r.payments[a.PaymentID].Status != PaymentStatusVoid {
			paid += a.Amount
		}
	}
	return paid, nil
}

func (r *memoryRepo) BillBalances(_ context.Context) ([]BillBalance, error) {
	var out []BillBalance
	for id, b := range r.bills {
		if b.Status != BillStatusPosted && b.Status != BillStatusPartial {
			continue
		}
		paid, _ := r.PaidAmountTx(context.Background(), nil, id)
		out = append(out, BillBalance{ID: id, VendorID: b.VendorID, DueDate: b.DueDate, Total: b.Total, PaidAmount: paid})
	}
	return out, nil
}

// fakeLedger validates and records postings without a database.
type fakeLedger struct {
	postings []journals.PostingInput
	voided   map[int64]string
	nextID   int64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{voided: make(map[int64]string)}
}

func (f *fakeLedger) PostTx(_ context.Context, _ pgx.Tx, input journals.PostingInput) (journals.Journal, error) {
	if err := input.Validate(); err != nil {
		return journals.Journal{}, err
	}
	f.nextID++
	f.postings = append(f.postings, input)
	return journals.Journal{ID: f.nextID, Number: numbering.Format(numbering.KindJournal, input.Date.Year(), f.nextID), Status: journals.StatusPosted}, nil
}

func (f *fakeLedger) VoidTx(_ context.Context, _ pgx.Tx, input journals.VoidInput) (journals.Journal, string, error) {
	if !input.Actor.Role.CanVoid() {
		return journals.Journal{}, "", httpx.ErrForbidden
	}
	if _, done := f.voided[input.JournalID]; done {
		return journals.Journal{}, "", ledgerShared.ErrAlreadyVoided
	}
	f.voided[input.JournalID] = input.Reason
	f.nextID++
	return journals.Journal{ID: f.nextID, Status: journals.StatusPosted}, "", nil
}

type fakeVendors struct {
	byID map[int64]vendors.Vendor
}

func (f *fakeVendors) Get(_ context.Context, id int64) (vendors.Vendor, error) {
	v, ok := f.byID[id]
	if !ok {
		return vendors.Vendor{}, internalShared.ErrNotFound
	}
	return v, nil
}

type fakeBanks struct {
	byID map[int64]banks.BankAccount
}

func (f *fakeBanks) Get(_ context.Context, id int64) (banks.BankAccount, error) {
	b, ok := f.byID[id]
	if !ok {
		return banks.BankAccount{}, internalShared.ErrNotFound
	}
	return b, nil
}

type fixture struct {
	repo   *memoryRepo
	ledger *fakeLedger
	svc    *Service
}

func newFixture() *fixture {
	repo := newMemoryRepo()
	ledger := newFakeLedger()
	vendorDir := &fakeVendors{byID: map[int64]vendors.Vendor{
		1: {ID: 1, Name: "PT Jasa Konsultan Prima", NPWP: "012345678901000", SubjectToPPh23: true,
			PPh23Rate: decimal.RequireFromString("0.02"), IsActive: true},
		2: {ID: 2, Name: "PT Dagang Barang", IsActive: true},
	}}
	bankDir := &fakeBanks{byID: map[int64]banks.BankAccount{
		1: {ID: 1, Name: "BCA Operasional", LedgerAccount: "1-10002", IsActive: true},
	}}
	svc := NewService(repo, ledger, vendorDir, bankDir, nil)
	svc.WithNow(func() time.Time { return time.Date(2025, 4, 20, 9, 0, 0, 0, time.UTC) })
	return &fixture{repo: repo, ledger: ledger, svc: svc}
}

var (
	adminActor = internalShared.Actor{UserID: 1, Role: internalShared.RoleAdmin}
	userActor  = internalShared.Actor{UserID: 2, Role: internalShared.RoleUser}
)

func createServiceBill(t *testing.T, f *fixture, faktur string) Bill {
	t.Helper()
	bill, err := f.svc.CreateBill(context.Background(), CreateBillInput{
		VendorID:    1,
		BillDate:    time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC),
		FakturPajak: faktur,
		Memo:        "Jasa konsultasi April",
		Lines: []CreateBillLineInput{
			{Description: "Konsultasi pajak", ExpenseAccount: "6-20001", Amount: 5_000_000},
		},
		CreatedBy: userActor.UserID,
	})
	require.NoError(t, err)
	return bill
}

func TestCreateBillComputesVATWithFaktur(t *testing.T) {
	f := newFixture()
	bill := createServiceBill(t, f, "010.000-25.00000001")

	require.Equal(t, "BILL-2025-0001", bill.Number)
	require.Equal(t, int64(5_000_000), bill.Subtotal)
	require.Equal(t, int64(550_000), bill.VATAmount)
	require.Equal(t, int64(5_550_000), bill.Total)
	require.Equal(t, BillStatusDraft, bill.Status)
}

func TestCreateBillWithoutFakturSkipsVAT(t *testing.T) {
	f := newFixture()
	bill := createServiceBill(t, f, "")

	require.Zero(t, bill.VATAmount)
	require.Equal(t, int64(5_000_000), bill.Total)
}

func TestPostBillJournalShape(t *testing.T) {
	f := newFixture()
	bill := createServiceBill(t, f, "010.000-25.00000001")

	posted, err := f.svc.PostBill(context.Background(), PostBillInput{BillID: bill.ID}, userActor)
	require.NoError(t, err)
	require.Equal(t, BillStatusPosted, posted.Status)
	require.NotNil(t, posted.JournalID)

	require.Len(t, f.ledger.postings, 1)
	entry := f.ledger.postings[0]
	require.Equal(t, journals.SourceBill, entry.SourceType)

	var debit, credit int64
	for _, l := range entry.Lines {
		debit += l.Debit
		credit += l.Credit
	}
	require.Equal(t, int64(5_550_000), debit)
	require.Equal(t, debit, credit)

	// Expense, input VAT, payable.
	require.Equal(t, "6-20001", entry.Lines[0].AccountCode)
	require.Equal(t, int64(5_000_000), entry.Lines[0].Debit)
	require.Equal(t, "1-10501", entry.Lines[1].AccountCode)
	require.Equal(t, int64(550_000), entry.Lines[1].Debit)
	require.Equal(t, "2-10001", entry.Lines[2].AccountCode)
	require.Equal(t, int64(5_550_000), entry.Lines[2].Credit)
}

func TestPostBillTwiceFails(t *testing.T) {
	f := newFixture()
	bill := createServiceBill(t, f, "")

	_, err := f.svc.PostBill(context.Background(), PostBillInput{BillID: bill.ID}, userActor)
	require.NoError(t, err)
	_, err = f.svc.PostBill(context.Background(), PostBillInput{BillID: bill.ID}, userActor)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestPostBillRequiresPostingRole(t *testing.T) {
	f := newFixture()
	bill := createServiceBill(t, f, "")

	viewer := internalShared.Actor{UserID: 3, Role: internalShared.RoleViewer}
	_, err := f.svc.PostBill(context.Background(), PostBillInput{BillID: bill.ID}, viewer)
	require.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestRegisterPaymentWithholdsPPh23(t *testing.T) {
	f := newFixture()
	bill := createServiceBill(t, f, "010.000-25.00000001")
	_, err := f.svc.PostBill(context.Background(), PostBillInput{BillID: bill.ID}, userActor)
	require.NoError(t, err)

	payment, err := f.svc.RegisterPayment(context.Background(), RegisterPaymentInput{
		VendorID:      1,
		BankAccountID: 1,
		Allocations:   []AllocationInput{{BillID: bill.ID, Amount: 5_550_000}},
	}, userActor)
	require.NoError(t, err)

	// 2% of the 5,000,000 pre-VAT base.
	require.Equal(t, int64(100_000), payment.WithheldAmount)
	require.Equal(t, int64(5_450_000), payment.Amount)
	require.Equal(t, "PAY-2025-0001", payment.Number)
	require.NotNil(t, payment.JournalID)
	require.Equal(t, payment.JournalID, f.repo.payments[payment.ID].JournalID)

	entry := f.ledger.postings[len(f.ledger.postings)-1]
	require.Equal(t, journals.SourcePayment, entry.SourceType)
	require.Equal(t, "2-10001", entry.Lines[0].AccountCode)
	require.Equal(t, int64(5_550_000), entry.Lines[0].Debit)
	require.Equal(t, "1-10002", entry.Lines[1].AccountCode)
	require.Equal(t, int64(5_450_000), entry.Lines[1].Credit)
	require.Equal(t, "2-10401", entry.Lines[2].AccountCode)
	require.Equal(t, int64(100_000), entry.Lines[2].Credit)

	settled, err := f.svc.GetBill(context.Background(), bill.ID)
	require.NoError(t, err)
	require.Equal(t, BillStatusPaid, settled.Status)
	require.Zero(t, settled.Balance)
}

func TestRegisterPartialPayment(t *testing.T) {
	f := newFixture()
	bill := createServiceBill(t, f, "")
	_, err := f.svc.PostBill(context.Background(), PostBillInput{BillID: bill.ID}, userActor)
	require.NoError(t, err)

	_, err = f.svc.RegisterPayment(context.Background(), RegisterPaymentInput{
		VendorID:      1,
		BankAccountID: 1,
		Allocations:   []AllocationInput{{BillID: bill.ID, Amount: 2_000_000}},
	}, userActor)
	require.NoError(t, err)

	detail, err := f.svc.GetBill(context.Background(), bill.ID)
	require.NoError(t, err)
	require.Equal(t, BillStatusPartial, detail.Status)
	require.Equal(t, int64(3_000_000), detail.Balance)
}

func TestRegisterPaymentRejectsOverAllocation(t *testing.T) {
	f := newFixture()
	bill := createServiceBill(t, f, "")
	_, err := f.svc.PostBill(context.Background(), PostBillInput{BillID: bill.ID}, userActor)
	require.NoError(t, err)

	_, err = f.svc.RegisterPayment(context.Background(), RegisterPaymentInput{
		VendorID:      1,
		BankAccountID: 1,
		Allocations:   []AllocationInput{{BillID: bill.ID, Amount: 6_000_000}},
	}, userActor)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestRegisterPaymentRejectsDraftBill(t *testing.T) {
	f := newFixture()
	bill := createServiceBill(t, f, "")

	_, err := f.svc.RegisterPayment(context.Background(), RegisterPaymentInput{
		VendorID:      1,
		BankAccountID: 1,
		Allocations:   []AllocationInput{{BillID: bill.ID, Amount: 1_000_000}},
	}, userActor)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestVoidPaymentReopensBill(t *testing.T) {
	f := newFixture()
	bill := createServiceBill(t, f, "")
	_, err := f.svc.PostBill(context.Background(), PostBillInput{BillID: bill.ID}, userActor)
	require.NoError(t, err)

	payment, err := f.svc.RegisterPayment(context.Background(), RegisterPaymentInput{
		VendorID:      1,
		BankAccountID: 1,
		Allocations:   []AllocationInput{{BillID: bill.ID, Amount: 5_000_000}},
	}, userActor)
	require.NoError(t, err)

	err = f.svc.VoidPayment(context.Background(), VoidPaymentInput{PaymentID: payment.ID, Reason: "wrong bank"}, adminActor)
	require.NoError(t, err)

	detail, err := f.svc.GetBill(context.Background(), bill.ID)
	require.NoError(t, err)
	require.Equal(t, BillStatusPosted, detail.Status)
	require.Equal(t, detail.Total, detail.Balance)

	err = f.svc.VoidPayment(context.Background(), VoidPaymentInput{PaymentID: payment.ID, Reason: "again"}, adminActor)
	require.ErrorIs(t, err, ledgerShared.ErrAlreadyVoided)
}

func TestVoidBillRefusedWhilePaid(t *testing.T) {
	f := newFixture()
	bill := createServiceBill(t, f, "")
	_, err := f.svc.PostBill(context.Background(), PostBillInput{BillID: bill.ID}, userActor)
	require.NoError(t, err)

	_, err = f.svc.RegisterPayment(context.Background(), RegisterPaymentInput{
		VendorID:      1,
		BankAccountID: 1,
		Allocations:   []AllocationInput{{BillID: bill.ID, Amount: 1_000_000}},
	}, userActor)
	require.NoError(t, err)

	err = f.svc.VoidBill(context.Background(), VoidBillInput{BillID: bill.ID, Reason: "duplicate"}, adminActor)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestVoidBillReversesJournal(t *testing.T) {
	f := newFixture()
	bill := createServiceBill(t, f, "")
	posted, err := f.svc.PostBill(context.Background(), PostBillInput{BillID: bill.ID}, userActor)
	require.NoError(t, err)

	err = f.svc.VoidBill(context.Background(), VoidBillInput{BillID: bill.ID, Reason: "duplicate"}, adminActor)
	require.NoError(t, err)
	require.Contains(t, f.ledger.voided, *posted.JournalID)

	detail, err := f.svc.GetBill(context.Background(), bill.ID)
	require.NoError(t, err)
	require.Equal(t, BillStatusVoid, detail.Status)

	err = f.svc.VoidBill(context.Background(), VoidBillInput{BillID: bill.ID, Reason: "again"}, adminActor)
	require.ErrorIs(t, err, ledgerShared.ErrAlreadyVoided)
}

func TestAgingBuckets(t *testing.T) {
	f := newFixture()
	bill := createServiceBill(t, f, "")
	_, err := f.svc.PostBill(context.Background(), PostBillInput{BillID: bill.ID}, userActor)
	require.NoError(t, err)

	// Due 2025-05-10: current as of early May, 30-day bucket in June.
	bucket, err := f.svc.Aging(context.Background(), time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, int64(5_000_000), bucket.Current)

	bucket, err = f.svc.Aging(context.Background(), time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, int64(5_000_000), bucket.Bucket30)
}
