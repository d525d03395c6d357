package journals

import (
	"time"

	"github.com/google/uuid"
)

// Status enumerates journal lifecycle values. Posted journals are immutable:
// voiding counter-posts a mirror journal, it never edits or deletes.
type Status string

const (
	StatusDraft  Status = "DRAFT"
	StatusPosted Status = "POSTED"
)

// Source document types that generate journals.
const (
	SourceManual    = "MANUAL"
	SourceBill      = "BILL"
	SourceInvoice   = "INVOICE"
	SourcePayment   = "PAYMENT"
	SourceReceipt   = "RECEIPT"
	SourceAssistant = "ASSISTANT"
	SourceReversal  = "REVERSAL"
)

// Journal is the atomic double-entry posting unit.
type Journal struct {
	ID                int64
	Number            string
	Date              time.Time
	Period            string
	Memo              string
	Status            Status
	SourceType        string
	SourceID          uuid.UUID
	PostedBy          int64
	PostedAt          time.Time
	VoidedAt          *time.Time
	VoidedBy          *int64
	VoidReason        *string
	ReversalJournalID *int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Lines             []Line
}

// Line stores a debit or credit amount for an account, in integer minor-unit
// IDR.
type Line struct {
	ID          int64
	JournalID   int64
	AccountCode string
	Debit       int64
	Credit      int64
	Description string
	ProjectCode *string
	SortOrder   int
}

// TotalDebit sums the debit side.
func (j Journal) TotalDebit() int64 {
	var sum int64
	for _, l := range j.Lines {
		sum += l.Debit
	}
	return sum
}

// TotalCredit sums the credit side.
func (j Journal) TotalCredit() int64 {
	var sum int64
	for _, l := range j.Lines {
		sum += l.Credit
	}
	return sum
}
