package ap

import (
	"time"

	"github.com/google/uuid"
)

// BillStatus enumerates vendor bill statuses.
type BillStatus string

const (
	BillStatusDraft   BillStatus = "DRAFT"
	BillStatusPosted  BillStatus = "POSTED"
	BillStatusPartial BillStatus = "PARTIAL"
	BillStatusPaid    BillStatus = "PAID"
	BillStatusVoid    BillStatus = "VOID"
)

// PaymentStatus enumerates vendor payment statuses. Payments post to the
// ledger the moment they are registered, so there is no draft state.
type PaymentStatus string

const (
	PaymentStatusPosted PaymentStatus = "POSTED"
	PaymentStatusVoid   PaymentStatus = "VOID"
)

// Bill is a vendor bill. Amounts are IDR in whole rupiah. FakturPajak holds
// the tax invoice serial; input VAT is only claimable when it is present.
type Bill struct {
	ID          int64
	PublicID    uuid.UUID
	Number      string
	VendorID    int64
	VendorName  string
	BillDate    time.Time
	DueDate     time.Time
	FakturPajak string
	Memo        string
	Subtotal    int64
	VATAmount   int64
	Total       int64
	Status      BillStatus
	JournalID   *int64
	PostedAt    *time.Time
	PostedBy    *int64
	VoidedAt    *time.Time
	VoidedBy    *int64
	VoidReason  *string
	CreatedBy   int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BillLine is one expense line on a bill.
type BillLine struct {
	ID             int64
	BillID         int64
	Description    string
	ExpenseAccount string
	ProjectCode    string
	Amount         int64
}

// BillWithDetails bundles a bill with its lines and settlement state.
type BillWithDetails struct {
	Bill
	Lines      []BillLine
	Payments   []PaymentSummary
	PaidAmount int64
	Balance    int64
}

// Payment is an outgoing vendor payment. Amount is the cash leaving the
// bank account; WithheldAmount is PPh 23 kept back and owed to the tax
// office instead of the vendor.
type Payment struct {
	ID             int64
	PublicID       uuid.UUID
	Number         string
	VendorID       int64
	VendorName     string
	BankAccountID  int64
	Amount         int64
	WithheldAmount int64
	PaidAt         time.Time
	Memo           string
	Attachments    []string
	Status         PaymentStatus
	JournalID      *int64
	VoidedAt       *time.Time
	VoidedBy       *int64
	VoidReason     *string
	CreatedBy      int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PaymentAllocation applies a gross amount of a payment against one bill.
// Gross means the AP relief including any withheld PPh 23.
type PaymentAllocation struct {
	ID        int64
	PaymentID int64
	BillID    int64
	Amount    int64
}

// PaymentSummary is the payment slice shown on a bill detail.
type PaymentSummary struct {
	ID              int64
	Number          string
	AllocatedAmount int64
	PaidAt          time.Time
	Status          PaymentStatus
}

// PaymentWithDetails bundles a payment with its allocation breakdown.
type PaymentWithDetails struct {
	Payment
	Allocations []PaymentAllocation
}

// AgingBucket summarises open balances by days overdue.
type AgingBucket struct {
	Current   int64 `json:"current"`
	Bucket30  int64 `json:"bucket_30"`
	Bucket60  int64 `json:"bucket_60"`
	Bucket90  int64 `json:"bucket_90"`
	Bucket120 int64 `json:"bucket_120"`
}

// BillBalance is the open-balance row used for aging.
type BillBalance struct {
	ID         int64
	VendorID   int64
	DueDate    time.Time
	Total      int64
	PaidAmount int64
}

// --- Input DTOs ---

type CreateBillInput struct {
	VendorID    int64
	BillDate    time.Time
	DueDate     time.Time
	FakturPajak string
	Memo        string
	Lines       []CreateBillLineInput
	CreatedBy   int64
}

type CreateBillLineInput struct {
	Description    string
	ExpenseAccount string
	ProjectCode    string
	Amount         int64
}

type PostBillInput struct {
	BillID         int64
	IdempotencyKey string
}

type VoidBillInput struct {
	BillID int64
	Reason string
}

type RegisterPaymentInput struct {
	VendorID       int64
	BankAccountID  int64
	PaidAt         time.Time
	Memo           string
	Attachments    []string
	Allocations    []AllocationInput
	IdempotencyKey string
	CreatedBy      int64
}

type AllocationInput struct {
	BillID int64
	Amount int64
}

type VoidPaymentInput struct {
	PaymentID int64
	Reason    string
}

type ListBillsRequest struct {
	Status   BillStatus
	VendorID int64
	Limit    int
	Offset   int
}
