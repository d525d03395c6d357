package ar

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/saldo-id/saldo/internal/ledger/journals"
	"github.com/saldo-id/saldo/internal/ledger/numbering"
	ledgerShared "github.com/saldo-id/saldo/internal/ledger/shared"
	"github.com/saldo-id/saldo/internal/masterdata/banks"
	"github.com/saldo-id/saldo/internal/masterdata/customers"
	"github.com/saldo-id/saldo/internal/platform/httpx"
	internalShared "github.com/saldo-id/saldo/internal/shared"
)

type memoryRepo struct {
	invoices     map[int64]*Invoice
	invoiceLines map[int64][]InvoiceLine
	receipts     map[int64]*Receipt
	allocations  []ReceiptAllocation
	nextInvID    int64
	nextRcptID   int64
	nextAllocID  int64
	counters     map[numbering.Kind]int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		invoices:     make(map[int64]*Invoice),
		invoiceLines: make(map[int64][]InvoiceLine),
		receipts:     make(map[int64]*Receipt),
		counters:     make(map[numbering.Kind]int64),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	return fn(ctx, nil)
}

func (r *memoryRepo) NextNumber(_ context.Context, _ pgx.Tx, kind numbering.Kind, year int) (string, error) {
	r.counters[kind]++
	return numbering.Format(kind, year, r.counters[kind]), nil
}

func (r *memoryRepo) InsertInvoice(_ context.Context, _ pgx.Tx, invoice Invoice, lines []CreateInvoiceLineInput) (Invoice, error) {
	r.nextInvID++
	invoice.ID = r.nextInvID
	invoice.PublicID = uuid.New()
	stored := invoice
	r.invoices[invoice.ID] = &stored
	for i, l := range lines {
		r.invoiceLines[invoice.ID] = append(r.invoiceLines[invoice.ID], InvoiceLine{
			ID: int64(i + 1), InvoiceID: invoice.ID,
			Description: l.Description, RevenueAccount: l.RevenueAccount,
			ProjectCode: l.ProjectCode, Amount: l.Amount,
		})
	}
	return invoice, nil
}

func (r *memoryRepo) invoiceDetails(id int64) (InvoiceWithDetails, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return InvoiceWithDetails{}, fmt.Errorf("invoice: %w", internalShared.ErrNotFound)
	}
	var receipts []ReceiptSummary
	var paid int64
	for _, alloc := range r.allocations {
		if alloc.InvoiceID != id {
			continue
		}
		rc := r.receipts[alloc.ReceiptID]
		receipts = append(receipts, ReceiptSummary{
			ID: rc.ID, Number: rc.Number, AllocatedAmount: alloc.Amount,
			ReceivedAt: rc.ReceivedAt, Status: rc.Status,
		})
		if rc.Status != ReceiptStatusVoid {
			paid += alloc.Amount
		}
	}
	return InvoiceWithDetails{
		Invoice: *inv, Lines: r.invoiceLines[id], Receipts: receipts,
		PaidAmount: paid, Balance: inv.Total - paid,
	}, nil
}

func (r *memoryRepo) GetInvoice(_ context.Context, id int64) (InvoiceWithDetails, error) {
	return r.invoiceDetails(id)
}

func (r *memoryRepo) GetInvoiceTx(_ context.Context, _ pgx.Tx, id int64) (InvoiceWithDetails, error) {
	return r.invoiceDetails(id)
}

func (r *memoryRepo) ListInvoices(_ context.Context, req ListInvoicesRequest) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range r.invoices {
		if req.Status != "" && inv.Status != req.Status {
			continue
		}
		out = append(out, *inv)
	}
	return out, nil
}

func (r *memoryRepo) SetInvoicePosted(_ context.Context, _ pgx.Tx, id, journalID, postedBy int64, at time.Time) error {
	inv, ok := r.invoices[id]
	if !ok {
		return internalShared.ErrNotFound
	}
	inv.Status = InvoiceStatusPosted
	inv.JournalID = &journalID
	inv.PostedBy = &postedBy
	inv.PostedAt = &at
	return nil
}

func (r *memoryRepo) UpdateInvoiceStatus(_ context.Context, _ pgx.Tx, id int64, status InvoiceStatus) error {
	inv, ok := r.invoices[id]
	if !ok {
		return internalShared.ErrNotFound
	}
	inv.Status = status
	return nil
}

func (r *memoryRepo) SetInvoiceVoided(_ context.Context, _ pgx.Tx, id, actorID int64, reason string, at time.Time) error {
	inv, ok := r.invoices[id]
	if !ok {
		return internalShared.ErrNotFound
	}
	inv.Status = InvoiceStatusVoid
	inv.VoidedAt = &at
	inv.VoidedBy = &actorID
	inv.VoidReason = &reason
	return nil
}

func (r *memoryRepo) InsertReceipt(_ context.Context, _ pgx.Tx, receipt Receipt, allocations []ReceiptAllocation) (Receipt, error) {
	r.nextRcptID++
	receipt.ID = r.nextRcptID
	receipt.PublicID = uuid.New()
	stored := receipt
	r.receipts[receipt.ID] = &stored
	for _, a := range allocations {
		r.nextAllocID++
		a.ID = r.nextAllocID
		a.ReceiptID = receipt.ID
		r.allocations = append(r.allocations, a)
	}
	return receipt, nil
}

func (r *memoryRepo) receiptDetails(id int64) (ReceiptWithDetails, error) {
	rc, ok := r.receipts[id]
	if !ok {
		return ReceiptWithDetails{}, fmt.Errorf("receipt: %w", internalShared.ErrNotFound)
	}
	var allocs []ReceiptAllocation
	for _, a := range r.allocations {
		if a.ReceiptID == id {
			allocs = append(allocs, a)
		}
	}
	return ReceiptWithDetails{Receipt: *rc, Allocations: allocs}, nil
}

func (r *memoryRepo) GetReceipt(_ context.Context, id int64) (ReceiptWithDetails, error) {
	return r.receiptDetails(id)
}

func (r *memoryRepo) GetReceiptTx(_ context.Context, _ pgx.Tx, id int64) (ReceiptWithDetails, error) {
	return r.receiptDetails(id)
}

func (r *memoryRepo) ListReceipts(_ context.Context, limit, offset int) ([]Receipt, error) {
	var out []Receipt
	for _, rc := range r.receipts {
		out = append(out, *rc)
	}
	return out, nil
}

func (r *memoryRepo) SetReceiptJournal(_ context.Context, _ pgx.Tx, id, journalID int64) error {
	rc, ok := r.receipts[id]
	if !ok {
		return internalShared.ErrNotFound
	}
	rc.JournalID = &journalID
	return nil
}

func (r *memoryRepo) SetReceiptVoided(_ context.Context, _ pgx.Tx, id, actorID int64, reason string, at time.Time) error {
	rc, ok := r.receipts[id]
	if !ok {
		return internalShared.ErrNotFound
	}
	rc.Status = ReceiptStatusVoid
	rc.VoidedAt = &at
	rc.VoidedBy = &actorID
	rc.VoidReason = &reason
	return nil
}

func (r *memoryRepo) PaidAmountTx(_ context.Context, _ pgx.Tx, invoiceID int64) (int64, error) {
	var paid int64
	for _, a := range r.allocations {
		if a.InvoiceID == invoiceID && r.receipts[a.ReceiptID].Status != ReceiptStatusVoid {
			paid += a.Amount
		}
	}
	return paid, nil
}

func (r *memoryRepo) InvoiceBalances(_ context.Context) ([]InvoiceBalance, error) {
	var out []InvoiceBalance
	for id, inv := range r.invoices {
		if inv.Status != InvoiceStatusPosted && inv.Status != InvoiceStatusPartial {
			continue
		}
		paid, _ := r.PaidAmountTx(context.Background(), nil, id)
		out = append(out, InvoiceBalance{ID: id, CustomerID: inv.CustomerID, DueDate: inv.DueDate, Total: inv.Total, PaidAmount: paid})
	}
	return out, nil
}

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
	return journals.Journal{ID: f.nextID, Status: journals.StatusPosted}, nil
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

type fakeCustomers struct {
	byID map[int64]customers.Customer
}

func (f *fakeCustomers) Get(_ context.Context, id int64) (customers.Customer, error) {
	c, ok := f.byID[id]
	if !ok {
		return customers.Customer{}, internalShared.ErrNotFound
	}
	return c, nil
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
	customerDir := &fakeCustomers{byID: map[int64]customers.Customer{
		1: {ID: 1, Name: "PT Pelanggan Setia", NPWP: "098765432109000", IsActive: true},
	}}
	bankDir := &fakeBanks{byID: map[int64]banks.BankAccount{
		1: {ID: 1, Name: "BCA Operasional", LedgerAccount: "1-10002", IsActive: true},
	}}
	svc := NewService(repo, ledger, customerDir, bankDir, nil)
	svc.WithNow(func() time.Time { return time.Date(2025, 4, 20, 9, 0, 0, 0, time.UTC) })
	return &fixture{repo: repo, ledger: ledger, svc: svc}
}

var (
	adminActor = internalShared.Actor{UserID: 1, Role: internalShared.RoleAdmin}
	userActor  = internalShared.Actor{UserID: 2, Role: internalShared.RoleUser}
)

func createServiceInvoice(t *testing.T, f *fixture) Invoice {
	t.Helper()
	invoice, err := f.svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		CustomerID:  1,
		InvoiceDate: time.Date(2025, 4, 5, 0, 0, 0, 0, time.UTC),
		FakturPajak: "010.000-25.00000042",
		Memo:        "Jasa pengembangan April",
		Lines: []CreateInvoiceLineInput{
			{Description: "Pengembangan aplikasi", RevenueAccount: "4-10001", Amount: 5_000_000},
		},
		CreatedBy: userActor.UserID,
	})
	require.NoError(t, err)
	return invoice
}

func TestCreateInvoiceChargesOutputVAT(t *testing.T) {
	f := newFixture()
	invoice := createServiceInvoice(t, f)

	require.Equal(t, "INV-2025-0001", invoice.Number)
	require.Equal(t, int64(5_000_000), invoice.Subtotal)
	require.Equal(t, int64(550_000), invoice.VATAmount)
	require.Equal(t, int64(5_550_000), invoice.Total)
	require.Equal(t, InvoiceStatusDraft, invoice.Status)
}

func TestPostInvoiceJournalShape(t *testing.T) {
	f := newFixture()
	invoice := createServiceInvoice(t, f)

	posted, err := f.svc.PostInvoice(context.Background(), PostInvoiceInput{InvoiceID: invoice.ID}, userActor)
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusPosted, posted.Status)

	require.Len(t, f.ledger.postings, 1)
	entry := f.ledger.postings[0]
	require.Equal(t, journals.SourceInvoice, entry.SourceType)

	// Receivable, revenue, output VAT.
	require.Equal(t, "1-10301", entry.Lines[0].AccountCode)
	require.Equal(t, int64(5_550_000), entry.Lines[0].Debit)
	require.Equal(t, "4-10001", entry.Lines[1].AccountCode)
	require.Equal(t, int64(5_000_000), entry.Lines[1].Credit)
	require.Equal(t, "2-10301", entry.Lines[2].AccountCode)
	require.Equal(t, int64(550_000), entry.Lines[2].Credit)

	var debit, credit int64
	for _, l := range entry.Lines {
		debit += l.Debit
		credit += l.Credit
	}
	require.Equal(t, debit, credit)
}

func TestRegisterReceiptWithCustomerWithholding(t *testing.T) {
	f := newFixture()
	invoice := createServiceInvoice(t, f)
	_, err := f.svc.PostInvoice(context.Background(), PostInvoiceInput{InvoiceID: invoice.ID}, userActor)
	require.NoError(t, err)

	receipt, err := f.svc.RegisterReceipt(context.Background(), RegisterReceiptInput{
		CustomerID:     1,
		BankAccountID:  1,
		WithheldAmount: 100_000,
		Allocations:    []AllocationInput{{InvoiceID: invoice.ID, Amount: 5_550_000}},
	}, userActor)
	require.NoError(t, err)

	require.Equal(t, int64(5_450_000), receipt.Amount)
	require.Equal(t, int64(100_000), receipt.WithheldAmount)
	require.Equal(t, "RCV-2025-0001", receipt.Number)
	require.NotNil(t, receipt.JournalID)
	require.Equal(t, receipt.JournalID, f.repo.receipts[receipt.ID].JournalID)

	entry := f.ledger.postings[len(f.ledger.postings)-1]
	require.Equal(t, journals.SourceReceipt, entry.SourceType)
	require.Equal(t, "1-10002", entry.Lines[0].AccountCode)
	require.Equal(t, int64(5_450_000), entry.Lines[0].Debit)
	require.Equal(t, "1-10601", entry.Lines[1].AccountCode)
	require.Equal(t, int64(100_000), entry.Lines[1].Debit)
	require.Equal(t, "1-10301", entry.Lines[2].AccountCode)
	require.Equal(t, int64(5_550_000), entry.Lines[2].Credit)

	settled, err := f.svc.GetInvoice(context.Background(), invoice.ID)
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusPaid, settled.Status)
}

func TestRegisterReceiptPartial(t *testing.T) {
	f := newFixture()
	invoice := createServiceInvoice(t, f)
	_, err := f.svc.PostInvoice(context.Background(), PostInvoiceInput{InvoiceID: invoice.ID}, userActor)
	require.NoError(t, err)

	_, err = f.svc.RegisterReceipt(context.Background(), RegisterReceiptInput{
		CustomerID:    1,
		BankAccountID: 1,
		Allocations:   []AllocationInput{{InvoiceID: invoice.ID, Amount: 2_000_000}},
	}, userActor)
	require.NoError(t, err)

	detail, err := f.svc.GetInvoice(context.Background(), invoice.ID)
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusPartial, detail.Status)
	require.Equal(t, int64(3_550_000), detail.Balance)
}

func TestRegisterReceiptRejectsOverWithholding(t *testing.T) {
	f := newFixture()
	invoice := createServiceInvoice(t, f)
	_, err := f.svc.PostInvoice(context.Background(), PostInvoiceInput{InvoiceID: invoice.ID}, userActor)
	require.NoError(t, err)

	_, err = f.svc.RegisterReceipt(context.Background(), RegisterReceiptInput{
		CustomerID:     1,
		BankAccountID:  1,
		WithheldAmount: 3_000_000,
		Allocations:    []AllocationInput{{InvoiceID: invoice.ID, Amount: 2_000_000}},
	}, userActor)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestVoidReceiptReopensInvoice(t *testing.T) {
	f := newFixture()
	invoice := createServiceInvoice(t, f)
	_, err := f.svc.PostInvoice(context.Background(), PostInvoiceInput{InvoiceID: invoice.ID}, userActor)
	require.NoError(t, err)

	receipt, err := f.svc.RegisterReceipt(context.Background(), RegisterReceiptInput{
		CustomerID:    1,
		BankAccountID: 1,
		Allocations:   []AllocationInput{{InvoiceID: invoice.ID, Amount: 5_550_000}},
	}, userActor)
	require.NoError(t, err)

	err = f.svc.VoidReceipt(context.Background(), VoidReceiptInput{ReceiptID: receipt.ID, Reason: "bounced transfer"}, adminActor)
	require.NoError(t, err)

	detail, err := f.svc.GetInvoice(context.Background(), invoice.ID)
	require.NoError(t, err)
	require.Equal(t, InvoiceStatusPosted, detail.Status)
	require.Equal(t, detail.Total, detail.Balance)

	err = f.svc.VoidReceipt(context.Background(), VoidReceiptInput{ReceiptID: receipt.ID, Reason: "again"}, adminActor)
	require.ErrorIs(t, err, ledgerShared.ErrAlreadyVoided)
}

func TestVoidInvoiceRefusedWhileSettled(t *testing.T) {
	f := newFixture()
	invoice := createServiceInvoice(t, f)
	_, err := f.svc.PostInvoice(context.Background(), PostInvoiceInput{InvoiceID: invoice.ID}, userActor)
	require.NoError(t, err)

	_, err = f.svc.RegisterReceipt(context.Background(), RegisterReceiptInput{
		CustomerID:    1,
		BankAccountID: 1,
		Allocations:   []AllocationInput{{InvoiceID: invoice.ID, Amount: 1_000_000}},
	}, userActor)
	require.NoError(t, err)

	err = f.svc.VoidInvoice(context.Background(), VoidInvoiceInput{InvoiceID: invoice.ID, Reason: "duplicate"}, adminActor)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestVoidInvoiceReversesJournal(t *testing.T) {
	f := newFixture()
	invoice := createServiceInvoice(t, f)
	posted, err := f.svc.PostInvoice(context.Background(), PostInvoiceInput{InvoiceID: invoice.ID}, userActor)
	require.NoError(t, err)

	err = f.svc.VoidInvoice(context.Background(), VoidInvoiceInput{InvoiceID: invoice.ID, Reason: "wrong customer"}, adminActor)
	require.NoError(t, err)
	require.Contains(t, f.ledger.voided, *posted.JournalID)

	err = f.svc.VoidInvoice(context.Background(), VoidInvoiceInput{InvoiceID: invoice.ID, Reason: "again"}, adminActor)
	require.ErrorIs(t, err, ledgerShared.ErrAlreadyVoided)
}

func TestAgingBuckets(t *testing.T) {
	f := newFixture()
	invoice := createServiceInvoice(t, f)
	_, err := f.svc.PostInvoice(context.Background(), PostInvoiceInput{InvoiceID: invoice.ID}, userActor)
	require.NoError(t, err)

	// Due 2025-05-05.
	bucket, err := f.svc.Aging(context.Background(), time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, int64(5_550_000), bucket.Current)

	bucket, err = f.svc.Aging(context.Background(), time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, int64(5_550_000), bucket.Bucket60)
}
