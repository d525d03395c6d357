package journals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/saldo-id/saldo/internal/ledger/shared"
	"github.com/saldo-id/saldo/internal/platform/db"
	"github.com/saldo-id/saldo/internal/platform/httpx"
	internalShared "github.com/saldo-id/saldo/internal/shared"
)

// AuditPort records posting and void actions.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// IdempotencyPort deduplicates retried posting requests so a retry cannot
// mint a second document number. The key insert runs through the posting
// transaction: a failed post rolls the key back, so only a post that actually
// committed refuses its retry.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, q db.Querier, key, module string) error
}

// Service is the ledger poster: the single place balance and account
// existence are enforced before a journal is persisted.
type Service struct {
	repo  Repository
	audit AuditPort
	idem  IdempotencyPort
	now   func() time.Time
}

// NewService constructs a Service instance.
func NewService(repo Repository, audit AuditPort, idem IdempotencyPort) *Service {
	return &Service{repo: repo, audit: audit, idem: idem, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Post validates and persists a balanced journal atomically.
func (s *Service) Post(ctx context.Context, input PostingInput) (Journal, error) {
	var entry Journal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		entry, err = s.PostTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return Journal{}, err
	}
	s.recordAudit(ctx, input.PostedBy, "journal.post", entry.ID, map[string]any{
		"number":      entry.Number,
		"source_type": input.SourceType,
		"source_id":   input.SourceID.String(),
	})
	return entry, nil
}

// PostTx runs the posting path inside the caller's transaction, so source
// documents (bills, invoices, payments, receipts) commit atomically with the
// journal they generate. Either the full document and journal exist, or
// neither does.
func (s *Service) PostTx(ctx context.Context, tx pgx.Tx, input PostingInput) (Journal, error) {
	if err := input.Validate(); err != nil {
		return Journal{}, err
	}
	if input.IdempotencyKey != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, tx, input.IdempotencyKey, "ledger"); err != nil {
			if errors.Is(err, internalShared.ErrIdempotencyConflict) {
				return Journal{}, fmt.Errorf("%w: request already processed", httpx.ErrDuplicate)
			}
			return Journal{}, err
		}
	}

	period, err := s.repo.EnsureOpenPeriod(ctx, tx, input.Date)
	if err != nil {
		return Journal{}, err
	}
	for _, line := range input.Lines {
		ref, err := s.repo.ResolveAccount(ctx, tx, line.AccountCode)
		if err != nil {
			return Journal{}, fmt.Errorf("%w (%s)", err, line.AccountCode)
		}
		if !ref.Active {
			return Journal{}, fmt.Errorf("%w (%s)", shared.ErrAccountInactive, line.AccountCode)
		}
	}

	number, err := s.repo.NextNumber(ctx, tx, input.Date.Year())
	if err != nil {
		return Journal{}, err
	}

	now := s.now()
	entry := Journal{
		Number:     number,
		Date:       input.Date,
		Period:     period,
		Memo:       input.Memo,
		Status:     StatusPosted,
		SourceType: input.SourceType,
		SourceID:   input.SourceID,
		PostedBy:   input.PostedBy,
		PostedAt:   now,
	}
	entry, err = s.repo.InsertJournal(ctx, tx, entry)
	if err != nil {
		return Journal{}, err
	}
	lines := toLines(entry.ID, input.Lines)
	if err := s.repo.InsertLines(ctx, tx, entry.ID, lines); err != nil {
		return Journal{}, err
	}
	if err := s.repo.LinkSource(ctx, tx, input.SourceType, input.SourceID, entry.ID); err != nil {
		return Journal{}, err
	}
	entry.Lines = lines
	return entry, nil
}

// Void counter-posts the exact mirror of a posted journal and stamps the
// original as voided, in one transaction.
func (s *Service) Void(ctx context.Context, input VoidInput) (Journal, error) {
	var reversal Journal
	var originalNumber string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		reversal, originalNumber, err = s.VoidTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return Journal{}, err
	}
	s.recordAudit(ctx, input.Actor.UserID, "journal.void", input.JournalID, map[string]any{
		"original_number": originalNumber,
		"reversal_number": reversal.Number,
		"reason":          input.Reason,
	})
	return reversal, nil
}

// VoidTx runs the void path inside the caller's transaction. The caller is
// responsible for updating its own document row in the same transaction.
func (s *Service) VoidTx(ctx context.Context, tx pgx.Tx, input VoidInput) (Journal, string, error) {
	if !input.Actor.Role.CanVoid() {
		return Journal{}, "", fmt.Errorf("%w: void requires admin role", httpx.ErrForbidden)
	}
	if input.JournalID == 0 {
		return Journal{}, "", fmt.Errorf("%w: journal id required", httpx.ErrValidation)
	}
	if input.Reason == "" {
		return Journal{}, "", fmt.Errorf("%w: void reason required", httpx.ErrValidation)
	}

	original, err := s.repo.GetWithLinesTx(ctx, tx, input.JournalID)
	if err != nil {
		return Journal{}, "", err
	}
	if original.Status != StatusPosted {
		return Journal{}, "", shared.ErrNotPosted
	}
	if original.VoidedAt != nil {
		return Journal{}, "", fmt.Errorf("%w: %s voided at %s", shared.ErrAlreadyVoided, original.Number, original.VoidedAt.Format(time.RFC3339))
	}

	posting := PostingInput{
		Date:       s.now(),
		SourceType: SourceReversal,
		SourceID:   uuid.New(),
		Memo:       fmt.Sprintf("VOID: %s - %s", original.Number, input.Reason),
		PostedBy:   input.Actor.UserID,
		Lines:      mirrorLines(original.Lines),
	}
	reversal, err := s.PostTx(ctx, tx, posting)
	if err != nil {
		return Journal{}, "", err
	}
	if err := s.repo.MarkVoided(ctx, tx, original.ID, reversal.ID, input.Reason, input.Actor.UserID, s.now()); err != nil {
		return Journal{}, "", err
	}
	return reversal, original.Number, nil
}

// Get returns a journal with its lines.
func (s *Service) Get(ctx context.Context, journalID int64) (Journal, error) {
	return s.repo.GetWithLines(ctx, journalID)
}

// List returns one page of journals, newest first, with page metadata.
func (s *Service) List(ctx context.Context, page, perPage int) ([]Journal, internalShared.Pagination, error) {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, internalShared.Pagination{}, err
	}
	pag := internalShared.NewPagination(page, perPage, total)
	entries, err := s.repo.List(ctx, pag.PerPage, pag.Offset())
	if err != nil {
		return nil, internalShared.Pagination{}, err
	}
	return entries, pag, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entryID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal",
		EntityID: fmt.Sprintf("%d", entryID),
		Meta:     meta,
		At:       s.now(),
	})
}

// mirrorLines swaps debit and credit per account, preserving order.
func mirrorLines(lines []Line) []PostingLineInput {
	out := make([]PostingLineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, PostingLineInput{
			AccountCode: line.AccountCode,
			Debit:       line.Credit,
			Credit:      line.Debit,
			Description: line.Description,
			ProjectCode: line.ProjectCode,
		})
	}
	return out
}

func toLines(journalID int64, inputs []PostingLineInput) []Line {
	out := make([]Line, 0, len(inputs))
	for idx, in := range inputs {
		out = append(out, Line{
			JournalID:   journalID,
			AccountCode: in.AccountCode,
			Debit:       in.Debit,
			Credit:      in.Credit,
			Description: in.Description,
			ProjectCode: in.ProjectCode,
			SortOrder:   idx,
		})
	}
	return out
}
