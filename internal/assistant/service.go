package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/saldo-id/saldo/internal/ledger/accounts"
	"github.com/saldo-id/saldo/internal/ledger/journals"
	"github.com/saldo-id/saldo/internal/platform/httpx"
	internalShared "github.com/saldo-id/saldo/internal/shared"
)

// LedgerPoster posts the approved proposal inside the review transaction.
type LedgerPoster interface {
	PostTx(ctx context.Context, tx pgx.Tx, input journals.PostingInput) (journals.Journal, error)
}

// ChartDirectory supplies the active chart of accounts for the oracle prompt.
type ChartDirectory interface {
	List(ctx context.Context, includeInactive bool) ([]accounts.Account, error)
}

// AuditPort records review decisions.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

type Service struct {
	repo   Repository
	oracle Oracle
	ledger LedgerPoster
	chart  ChartDirectory
	audit  AuditPort
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, oracle Oracle, ledger LedgerPoster, chart ChartDirectory, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		oracle: oracle,
		ledger: ledger,
		chart:  chart,
		audit:  audit,
		logger: logger,
		now:    time.Now,
	}
}

// WithNow pins the clock for tests.
func (s *Service) WithNow(now func() time.Time) {
	s.now = now
}

// ProposeInput describes the free-text event the oracle should classify.
type ProposeInput struct {
	Event     string
	Amount    int64
	CreatedBy int64
}

// Propose asks the oracle for a draft entry and stores it for review. The
// draft is validated with the same rules as manual entry before anything is
// persisted; an invalid oracle answer is an upstream failure, not a saved
// proposal.
func (s *Service) Propose(ctx context.Context, input ProposeInput, actor internalShared.Actor) (Proposal, error) {
	if !actor.Role.CanPost() {
		return Proposal{}, fmt.Errorf("%w: proposing entries requires user role", httpx.ErrForbidden)
	}
	if strings.TrimSpace(input.Event) == "" {
		return Proposal{}, fmt.Errorf("%w: event description is required", httpx.ErrValidation)
	}
	if input.Amount < 0 {
		return Proposal{}, fmt.Errorf("%w: amount cannot be negative", httpx.ErrValidation)
	}

	chart, err := s.chartText(ctx)
	if err != nil {
		return Proposal{}, err
	}

	draft, err := s.oracle.Propose(ctx, input.Event, input.Amount, chart)
	if err != nil {
		return Proposal{}, err
	}
	draft.Normalize()
	if draft.Date == "" {
		draft.Date = s.now().Format("2006-01-02")
	}
	if err := draft.Validate(); err != nil {
		s.logger.WarnContext(ctx, "oracle draft rejected", slog.Any("error", err))
		return Proposal{}, fmt.Errorf("%w: oracle produced an invalid draft: %v", httpx.ErrUpstream, err)
	}

	proposal, err := s.repo.Insert(ctx, Proposal{
		Event:      input.Event,
		DocType:    draft.DocType,
		Memo:       draft.Memo,
		Date:       draft.ParsedDate(),
		Confidence: draft.Confidence,
		Reasoning:  draft.Reasoning,
		Status:     StatusProposed,
		Lines:      draft.Lines,
		CreatedBy:  actor.UserID,
	})
	if err != nil {
		return Proposal{}, err
	}

	s.logger.InfoContext(ctx, "proposal created",
		slog.Int64("proposal_id", proposal.ID),
		slog.Float64("confidence", proposal.Confidence))
	return proposal, nil
}

// Approve posts the proposal and marks it reviewed, atomically. Only a
// PROPOSED proposal can be approved; the stored lines are re-validated so a
// chart change between propose and approve still fails closed.
func (s *Service) Approve(ctx context.Context, id int64, actor internalShared.Actor) (Proposal, error) {
	if !actor.Role.CanPost() {
		return Proposal{}, fmt.Errorf("%w: approving proposals requires user role", httpx.ErrForbidden)
	}

	var approved Proposal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		proposal, err := s.repo.GetTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if proposal.Status != StatusProposed {
			return fmt.Errorf("%w: proposal %d already %s", httpx.ErrDuplicate, id, proposal.Status)
		}

		lines := make([]journals.PostingLineInput, 0, len(proposal.Lines))
		for _, l := range proposal.Lines {
			lines = append(lines, journals.PostingLineInput{
				AccountCode: l.AccountCode,
				Debit:       l.Debit,
				Credit:      l.Credit,
				Description: l.Description,
			})
		}
		entry, err := s.ledger.PostTx(ctx, tx, journals.PostingInput{
			Date:       proposal.Date,
			SourceType: journals.SourceAssistant,
			SourceID:   proposal.PublicID,
			Memo:       proposal.Memo,
			PostedBy:   actor.UserID,
			Lines:      lines,
		})
		if err != nil {
			return err
		}

		if err := s.repo.SetReviewed(ctx, tx, id, StatusApproved, &entry.ID, actor.UserID, s.now()); err != nil {
			return err
		}
		proposal.Status = StatusApproved
		proposal.JournalID = &entry.ID
		reviewedAt := s.now()
		proposal.ReviewedBy = &actor.UserID
		proposal.ReviewedAt = &reviewedAt
		approved = proposal
		return nil
	})
	if err != nil {
		return Proposal{}, err
	}

	s.recordAudit(ctx, actor.UserID, "assistant.proposal.approve", id, map[string]any{
		"journal_id": *approved.JournalID,
	})
	return approved, nil
}

// Reject closes the proposal without posting anything.
func (s *Service) Reject(ctx context.Context, id int64, reason string, actor internalShared.Actor) (Proposal, error) {
	if !actor.Role.CanPost() {
		return Proposal{}, fmt.Errorf("%w: reviewing proposals requires user role", httpx.ErrForbidden)
	}

	var rejected Proposal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		proposal, err := s.repo.GetTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if proposal.Status != StatusProposed {
			return fmt.Errorf("%w: proposal %d already %s", httpx.ErrDuplicate, id, proposal.Status)
		}
		if err := s.repo.SetReviewed(ctx, tx, id, StatusRejected, nil, actor.UserID, s.now()); err != nil {
			return err
		}
		proposal.Status = StatusRejected
		rejected = proposal
		return nil
	})
	if err != nil {
		return Proposal{}, err
	}

	s.recordAudit(ctx, actor.UserID, "assistant.proposal.reject", id, map[string]any{"reason": reason})
	return rejected, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Proposal, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, status ProposalStatus, limit, offset int) ([]Proposal, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, status, limit, offset)
}

func (s *Service) chartText(ctx context.Context) (string, error) {
	list, err := s.chart.List(ctx, false)
	if err != nil {
		return "", fmt.Errorf("load chart of accounts: %w", err)
	}
	var b strings.Builder
	for _, a := range list {
		fmt.Fprintf(&b, "%s %s (%s)\n", a.Code, a.Name, a.Type)
	}
	return b.String(), nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, proposalID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "proposals",
		EntityID: fmt.Sprintf("%d", proposalID),
		Meta:     meta,
		At:       s.now(),
	})
}
