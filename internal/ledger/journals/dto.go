package journals

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/saldo-id/saldo/internal/ledger/accounts"
	"github.com/saldo-id/saldo/internal/ledger/shared"
	"github.com/saldo-id/saldo/internal/platform/httpx"
	internalShared "github.com/saldo-id/saldo/internal/shared"
)

// PostingLineInput describes one journal line of a posting request.
type PostingLineInput struct {
	AccountCode string
	Debit       int64
	Credit      int64
	Description string
	ProjectCode *string
}

// PostingInput groups the fields required to post a journal. Callers assemble
// already-balanced line sets; balance is enforced here and nowhere else.
type PostingInput struct {
	Date           time.Time
	SourceType     string
	SourceID       uuid.UUID
	Memo           string
	PostedBy       int64
	IdempotencyKey string
	Lines          []PostingLineInput
}

// Validate ensures posting input meets the ledger invariants before any write:
// at least two lines, valid account code shapes, non-negative single-sided
// amounts, and exact integer balance.
func (in PostingInput) Validate() error {
	if len(in.Lines) < 2 {
		return shared.ErrEmptyLines
	}
	if in.SourceType == "" {
		return fmt.Errorf("%w: source type required", httpx.ErrValidation)
	}
	if in.SourceID == uuid.Nil {
		return fmt.Errorf("%w: source id required", httpx.ErrValidation)
	}
	if in.Date.IsZero() {
		return fmt.Errorf("%w: posting date required", httpx.ErrValidation)
	}
	var debit, credit int64
	for idx, line := range in.Lines {
		if !accounts.ValidCode(line.AccountCode) {
			return fmt.Errorf("%w: line %d code %q", shared.ErrBadAccountCode, idx, line.AccountCode)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return fmt.Errorf("%w: line %d negative amount", httpx.ErrValidation, idx)
		}
		if line.Debit > 0 && line.Credit > 0 {
			return fmt.Errorf("%w: line %d cannot carry both debit and credit", httpx.ErrValidation, idx)
		}
		debit += line.Debit
		credit += line.Credit
	}
	// Exact integer equality. Reporting layers may tolerate display rounding
	// slack; the posting path never does.
	if debit != credit {
		return fmt.Errorf("%w: debit %d, credit %d", shared.ErrUnbalanced, debit, credit)
	}
	if debit == 0 {
		return fmt.Errorf("%w: journal amounts must be non-zero", httpx.ErrValidation)
	}
	return nil
}

// VoidInput wraps parameters for voiding a journal.
type VoidInput struct {
	JournalID int64
	Reason    string
	Actor     internalShared.Actor
}
