package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saldo-id/saldo/internal/ledger/accounts"
	ledgerShared "github.com/saldo-id/saldo/internal/ledger/shared"
	"github.com/saldo-id/saldo/internal/platform/httpx"
)

// ProposalStatus is the two-phase approval state machine. Posting is only
// reachable from APPROVED, never directly from PROPOSED.
type ProposalStatus string

const (
	StatusProposed ProposalStatus = "PROPOSED"
	StatusApproved ProposalStatus = "APPROVED"
	StatusRejected ProposalStatus = "REJECTED"
)

// Draft is the structured answer the classification oracle returns for a
// free-text business event. Amounts are integer minor-unit IDR.
type Draft struct {
	DocType    string      `json:"doc_type" jsonschema:"enum=MANUAL_JOURNAL,enum=BILL,enum=INVOICE" jsonschema_description:"The document kind this event should become"`
	Memo       string      `json:"memo" jsonschema_description:"A short bookkeeping memo for the journal"`
	Date       string      `json:"date" jsonschema_description:"The transaction date in YYYY-MM-DD format; use today's date if unspecified"`
	Confidence float64     `json:"confidence" jsonschema_description:"Confidence score between 0.0 and 1.0"`
	Reasoning  string      `json:"reasoning" jsonschema_description:"Explanation for the proposed entry"`
	Lines      []DraftLine `json:"lines" jsonschema_description:"Balanced debit and credit lines"`
}

// DraftLine is one side of the proposed entry.
type DraftLine struct {
	AccountCode string `json:"account_code" jsonschema_description:"An exact account code from the provided chart of accounts"`
	Debit       int64  `json:"debit" jsonschema_description:"Debit amount in integer rupiah, zero when this is a credit line"`
	Credit      int64  `json:"credit" jsonschema_description:"Credit amount in integer rupiah, zero when this is a debit line"`
	Description string `json:"description" jsonschema_description:"Optional line description"`
}

// Proposal is a persisted draft awaiting human review.
type Proposal struct {
	ID         int64          `json:"id"`
	PublicID   uuid.UUID      `json:"public_id"`
	Event      string         `json:"event"`
	DocType    string         `json:"doc_type"`
	Memo       string         `json:"memo"`
	Date       time.Time      `json:"date"`
	Confidence float64        `json:"confidence"`
	Reasoning  string         `json:"reasoning"`
	Status     ProposalStatus `json:"status"`
	JournalID  *int64         `json:"journal_id,omitempty"`
	Lines      []DraftLine    `json:"lines"`
	CreatedBy  int64          `json:"created_by"`
	ReviewedBy *int64         `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time     `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Normalize cleans up common oracle formatting slips before validation.
func (d *Draft) Normalize() {
	d.DocType = strings.ToUpper(strings.TrimSpace(d.DocType))
	d.Memo = strings.TrimSpace(d.Memo)
	d.Date = strings.TrimSpace(d.Date)
	for i := range d.Lines {
		d.Lines[i].AccountCode = strings.TrimSpace(d.Lines[i].AccountCode)
		d.Lines[i].Description = strings.TrimSpace(d.Lines[i].Description)
	}
}

// Validate applies the same ledger rules as manual entry. Oracle output is
// untrusted input; nothing here reaches the poster without passing this.
func (d Draft) Validate() error {
	if d.DocType == "" {
		return fmt.Errorf("%w: proposal must carry a document type", httpx.ErrValidation)
	}
	if d.Memo == "" {
		return fmt.Errorf("%w: proposal must carry a memo", httpx.ErrValidation)
	}
	if _, err := time.Parse("2006-01-02", d.Date); err != nil {
		return fmt.Errorf("%w: invalid date %q", httpx.ErrValidation, d.Date)
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v out of range", httpx.ErrValidation, d.Confidence)
	}
	if len(d.Lines) < 2 {
		return ledgerShared.ErrEmptyLines
	}
	var debit, credit int64
	for i, line := range d.Lines {
		if !accounts.ValidCode(line.AccountCode) {
			return fmt.Errorf("%w: line %d code %q", ledgerShared.ErrBadAccountCode, i, line.AccountCode)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return fmt.Errorf("%w: line %d negative amount", httpx.ErrValidation, i)
		}
		if line.Debit > 0 && line.Credit > 0 {
			return fmt.Errorf("%w: line %d cannot carry both sides", httpx.ErrValidation, i)
		}
		debit += line.Debit
		credit += line.Credit
	}
	if debit != credit {
		return fmt.Errorf("%w: debit %d, credit %d", ledgerShared.ErrUnbalanced, debit, credit)
	}
	if debit == 0 {
		return fmt.Errorf("%w: proposal amounts must be non-zero", httpx.ErrValidation)
	}
	return nil
}

// ParsedDate returns the validated transaction date.
func (d Draft) ParsedDate() time.Time {
	t, _ := time.Parse("2006-01-02", d.Date)
	return t
}
