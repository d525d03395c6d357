package compliance

import (
	"time"

	"github.com/shopspring/decimal"
)

// Severity ranks a finding. Critical issues block period close until resolved.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
)

// IssueStatus is open until someone resolves the finding by hand. The scanner
// never auto-corrects.
type IssueStatus string

const (
	StatusOpen     IssueStatus = "open"
	StatusResolved IssueStatus = "resolved"
)

const (
	IssueVATWithoutFaktur   = "vat_without_faktur"
	IssueMissingWithholding = "missing_pph23_withholding"
	IssueCOGSWithoutProject = "cogs_without_project"
	IssueLargeUndocumented  = "large_payment_without_attachments"
	IssueDuplicateBill      = "possible_duplicate_bill"
)

// Issue is one persisted finding. RelatedEntity is "<table>:<number>" so the
// UI can deep link.
type Issue struct {
	ID             int64       `json:"id"`
	IssueType      string      `json:"issue_type"`
	Severity       Severity    `json:"severity"`
	Period         string      `json:"period"`
	Message        string      `json:"message"`
	ActionRequired string      `json:"action_required"`
	RelatedEntity  string      `json:"related_entity"`
	Status         IssueStatus `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	ResolvedAt     *time.Time  `json:"resolved_at,omitempty"`
	ResolvedBy     *int64      `json:"resolved_by,omitempty"`
}

// ScanResult summarises one scanner run.
type ScanResult struct {
	ScannedAt time.Time `json:"scanned_at"`
	Found     int       `json:"found"`
	Inserted  int       `json:"inserted"`
	Issues    []Issue   `json:"issues"`
}

// Rule input rows. Each carries just enough of the source document to build
// the finding message.

// VATBill is a posted bill claiming input VAT without a faktur pajak number.
type VATBill struct {
	BillID     int64
	Number     string
	VendorName string
	BillDate   time.Time
	VATAmount  int64
}

// UnwithheldPayment is a payment to a PPh 23 vendor where nothing was kept
// back. Base is the pre-VAT share of the settled allocations.
type UnwithheldPayment struct {
	PaymentID  int64
	Number     string
	VendorName string
	PaidAt     time.Time
	Base       int64
	Rate       decimal.Decimal
}

// UntaggedCOGSLine is a 5-xxxxx bill line with no project code.
type UntaggedCOGSLine struct {
	BillID      int64
	BillNumber  string
	BillDate    time.Time
	AccountCode string
	Description string
	Amount      int64
}

// LargePayment is a payment at or above the documentation threshold with no
// attachments linked.
type LargePayment struct {
	PaymentID  int64
	Number     string
	VendorName string
	PaidAt     time.Time
	Amount     int64
}

// DuplicateBillGroup is a vendor/date/amount collision across posted bills.
type DuplicateBillGroup struct {
	VendorName string
	BillDate   time.Time
	Total      int64
	Numbers    []string
}
