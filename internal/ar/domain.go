package ar

import (
	"time"

	"github.com/google/uuid"
)

// InvoiceStatus enumerates sales invoice statuses.
type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "DRAFT"
	InvoiceStatusPosted  InvoiceStatus = "POSTED"
	InvoiceStatusPartial InvoiceStatus = "PARTIAL"
	InvoiceStatusPaid    InvoiceStatus = "PAID"
	InvoiceStatusVoid    InvoiceStatus = "VOID"
)

// ReceiptStatus enumerates cash receipt statuses.
type ReceiptStatus string

const (
	ReceiptStatusPosted ReceiptStatus = "POSTED"
	ReceiptStatusVoid   ReceiptStatus = "VOID"
)

// Invoice is a sales invoice. Amounts are IDR in whole rupiah. Output VAT is
// always charged; FakturPajak records the serial issued to the customer.
type Invoice struct {
	ID           int64
	PublicID     uuid.UUID
	Number       string
	CustomerID   int64
	CustomerName string
	InvoiceDate  time.Time
	DueDate      time.Time
	FakturPajak  string
	Memo         string
	Subtotal     int64
	VATAmount    int64
	Total        int64
	Status       InvoiceStatus
	JournalID    *int64
	PostedAt     *time.Time
	PostedBy     *int64
	VoidedAt     *time.Time
	VoidedBy     *int64
	VoidReason   *string
	CreatedBy    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// InvoiceLine is one revenue line on an invoice.
type InvoiceLine struct {
	ID             int64
	InvoiceID      int64
	Description    string
	RevenueAccount string
	ProjectCode    string
	Amount         int64
}

// InvoiceWithDetails bundles an invoice with its lines and settlement state.
type InvoiceWithDetails struct {
	Invoice
	Lines      []InvoiceLine
	Receipts   []ReceiptSummary
	PaidAmount int64
	Balance    int64
}

// Receipt is an incoming customer payment. Amount is the cash arriving in
// the bank; WithheldAmount is PPh 23 the customer kept back, which we book
// as a prepaid tax asset.
type Receipt struct {
	ID             int64
	PublicID       uuid.UUID
	Number         string
	CustomerID     int64
	CustomerName   string
	BankAccountID  int64
	Amount         int64
	WithheldAmount int64
	ReceivedAt     time.Time
	Memo           string
	Status         ReceiptStatus
	JournalID      *int64
	VoidedAt       *time.Time
	VoidedBy       *int64
	VoidReason     *string
	CreatedBy      int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ReceiptAllocation applies a gross amount of a receipt against one invoice.
type ReceiptAllocation struct {
	ID        int64
	ReceiptID int64
	InvoiceID int64
	Amount    int64
}

// ReceiptSummary is the receipt slice shown on an invoice detail.
type ReceiptSummary struct {
	ID              int64
	Number          string
	AllocatedAmount int64
	ReceivedAt      time.Time
	Status          ReceiptStatus
}

// ReceiptWithDetails bundles a receipt with its allocation breakdown.
type ReceiptWithDetails struct {
	Receipt
	Allocations []ReceiptAllocation
}

// AgingBucket summarises open balances by days overdue.
type AgingBucket struct {
	Current   int64 `json:"current"`
	Bucket30  int64 `json:"bucket_30"`
	Bucket60  int64 `json:"bucket_60"`
	Bucket90  int64 `json:"bucket_90"`
	Bucket120 int64 `json:"bucket_120"`
}

// InvoiceBalance is the open-balance row used for aging.
type InvoiceBalance struct {
	ID         int64
	CustomerID int64
	DueDate    time.Time
	Total      int64
	PaidAmount int64
}

// --- Input DTOs ---

type CreateInvoiceInput struct {
	CustomerID  int64
	InvoiceDate time.Time
	DueDate     time.Time
	FakturPajak string
	Memo        string
	Lines       []CreateInvoiceLineInput
	CreatedBy   int64
}

type CreateInvoiceLineInput struct {
	Description    string
	RevenueAccount string
	ProjectCode    string
	Amount         int64
}

type PostInvoiceInput struct {
	InvoiceID      int64
	IdempotencyKey string
}

type VoidInvoiceInput struct {
	InvoiceID int64
	Reason    string
}

type RegisterReceiptInput struct {
	CustomerID     int64
	BankAccountID  int64
	ReceivedAt     time.Time
	Memo           string
	WithheldAmount int64
	Allocations    []AllocationInput
	IdempotencyKey string
	CreatedBy      int64
}

type AllocationInput struct {
	InvoiceID int64
	Amount    int64
}

type VoidReceiptInput struct {
	ReceiptID int64
	Reason    string
}

type ListInvoicesRequest struct {
	Status     InvoiceStatus
	CustomerID int64
	Limit      int
	Offset     int
}
