// Package shared holds the error vocabulary of the posting paths. Every
// sentinel wraps an httpx category so handlers map failures to stable
// machine-readable kinds with a single errors.Is chain.
package shared

import (
	"fmt"

	"github.com/saldo-id/saldo/internal/platform/httpx"
)

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = fmt.Errorf("%w: journal lines must balance", httpx.ErrImbalance)
	// ErrEmptyLines indicates a posting without lines.
	ErrEmptyLines = fmt.Errorf("%w: journal requires at least two lines", httpx.ErrValidation)
	// ErrAccountUnknown indicates an account code that does not resolve.
	ErrAccountUnknown = fmt.Errorf("%w: account code not found", httpx.ErrUnknownAccount)
	// ErrAccountInactive indicates a resolved but deactivated account.
	ErrAccountInactive = fmt.Errorf("%w: account is inactive", httpx.ErrUnknownAccount)
	// ErrBadAccountCode indicates a code that does not match D-DDDDD.
	ErrBadAccountCode = fmt.Errorf("%w: account code must match D-DDDDD", httpx.ErrValidation)
	// ErrJournalNotFound indicates a missing entry.
	ErrJournalNotFound = fmt.Errorf("%w: journal entry", httpx.ErrNotFound)
	// ErrAlreadyVoided indicates a second void attempt.
	ErrAlreadyVoided = fmt.Errorf("%w: document", httpx.ErrAlreadyVoided)
	// ErrNotPosted indicates a void attempt on a draft. Drafts are deleted,
	// never voided.
	ErrNotPosted = fmt.Errorf("%w: only posted documents can be voided", httpx.ErrValidation)
	// ErrPeriodClosed indicates a posting into a closed or locked period.
	ErrPeriodClosed = fmt.Errorf("%w: period is not open for posting", httpx.ErrValidation)
	// ErrSourceAlreadyLinked indicates the source document already produced a
	// journal.
	ErrSourceAlreadyLinked = fmt.Errorf("%w: source already linked to a journal", httpx.ErrDuplicate)
)
