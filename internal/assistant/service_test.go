package assistant

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/saldo-id/saldo/internal/ledger/accounts"
	"github.com/saldo-id/saldo/internal/ledger/journals"
	ledgerShared "github.com/saldo-id/saldo/internal/ledger/shared"
	"github.com/saldo-id/saldo/internal/platform/httpx"
	internalShared "github.com/saldo-id/saldo/internal/shared"
)

type memoryRepo struct {
	proposals map[int64]*Proposal
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{proposals: make(map[int64]*Proposal)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	return fn(ctx, nil)
}

func (r *memoryRepo) Insert(_ context.Context, p Proposal) (Proposal, error) {
	r.nextID++
	p.ID = r.nextID
	p.PublicID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	stored := p
	r.proposals[p.ID] = &stored
	return p, nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Proposal, error) {
	p, ok := r.proposals[id]
	if !ok {
		return Proposal{}, internalShared.ErrNotFound
	}
	return *p, nil
}

func (r *memoryRepo) GetTx(ctx context.Context, _ pgx.Tx, id int64) (Proposal, error) {
	return r.Get(ctx, id)
}

func (r *memoryRepo) List(_ context.Context, status ProposalStatus, limit, offset int) ([]Proposal, error) {
	var out []Proposal
	for _, p := range r.proposals {
		if status != "" && p.Status != status {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *memoryRepo) SetReviewed(_ context.Context, _ pgx.Tx, id int64, status ProposalStatus, journalID *int64, reviewedBy int64, at time.Time) error {
	p, ok := r.proposals[id]
	if !ok || p.Status != StatusProposed {
		return internalShared.ErrNotFound
	}
	p.Status = status
	p.JournalID = journalID
	p.ReviewedBy = &reviewedBy
	p.ReviewedAt = &at
	return nil
}

type stubOracle struct {
	draft Draft
	err   error
	calls int
}

func (o *stubOracle) Propose(_ context.Context, event string, amount int64, chart string) (Draft, error) {
	o.calls++
	if o.err != nil {
		return Draft{}, o.err
	}
	return o.draft, nil
}

type fakeLedger struct {
	postings []journals.PostingInput
	nextID   int64
}

func (f *fakeLedger) PostTx(_ context.Context, _ pgx.Tx, input journals.PostingInput) (journals.Journal, error) {
	if err := input.Validate(); err != nil {
		return journals.Journal{}, err
	}
	f.nextID++
	f.postings = append(f.postings, input)
	return journals.Journal{ID: f.nextID, Status: journals.StatusPosted}, nil
}

type fakeChart struct{}

func (fakeChart) List(context.Context, bool) ([]accounts.Account, error) {
	return []accounts.Account{
		{Code: "1-10002", Name: "Bank BCA", Type: accounts.AccountTypeAsset, IsActive: true},
		{Code: "6-20001", Name: "Beban Jasa Profesional", Type: accounts.AccountTypeOpex, IsActive: true},
	}, nil
}

var (
	userActor   = internalShared.Actor{UserID: 2, Role: internalShared.RoleUser}
	viewerActor = internalShared.Actor{UserID: 3, Role: internalShared.RoleViewer}
)

func balancedDraft() Draft {
	return Draft{
		DocType:    "MANUAL_JOURNAL",
		Memo:       "Bayar jasa notaris",
		Date:       "2025-05-02",
		Confidence: 0.91,
		Reasoning:  "Service expense paid from the operating bank account",
		Lines: []DraftLine{
			{AccountCode: "6-20001", Debit: 2_500_000},
			{AccountCode: "1-10002", Credit: 2_500_000},
		},
	}
}

func newTestService(repo *memoryRepo, oracle Oracle, ledger *fakeLedger) *Service {
	svc := NewService(repo, oracle, ledger, fakeChart{}, nil, nil)
	svc.WithNow(func() time.Time { return time.Date(2025, 5, 2, 10, 0, 0, 0, time.UTC) })
	return svc
}

func TestProposeStoresValidatedDraft(t *testing.T) {
	repo := newMemoryRepo()
	oracle := &stubOracle{draft: balancedDraft()}
	svc := newTestService(repo, oracle, &fakeLedger{})

	proposal, err := svc.Propose(context.Background(), ProposeInput{
		Event:  "bayar notaris 2.5 juta dari BCA",
		Amount: 2_500_000,
	}, userActor)
	require.NoError(t, err)
	require.Equal(t, StatusProposed, proposal.Status)
	require.Equal(t, "MANUAL_JOURNAL", proposal.DocType)
	require.Len(t, proposal.Lines, 2)
	require.Equal(t, 1, oracle.calls)
	require.Nil(t, proposal.JournalID)
}

func TestProposeRejectsUnbalancedDraft(t *testing.T) {
	draft := balancedDraft()
	draft.Lines[1].Credit = 2_400_000
	repo := newMemoryRepo()
	svc := newTestService(repo, &stubOracle{draft: draft}, &fakeLedger{})

	_, err := svc.Propose(context.Background(), ProposeInput{Event: "bayar notaris"}, userActor)
	require.ErrorIs(t, err, httpx.ErrUpstream)
	require.Empty(t, repo.proposals)
}

func TestProposeRejectsUnknownAccountCodePattern(t *testing.T) {
	draft := balancedDraft()
	draft.Lines[0].AccountCode = "XX-1"
	svc := newTestService(newMemoryRepo(), &stubOracle{draft: draft}, &fakeLedger{})

	_, err := svc.Propose(context.Background(), ProposeInput{Event: "bayar notaris"}, userActor)
	require.ErrorIs(t, err, httpx.ErrUpstream)
}

func TestProposeSurfacesOracleFailure(t *testing.T) {
	oracle := &stubOracle{err: httpx.ErrUpstream}
	svc := newTestService(newMemoryRepo(), oracle, &fakeLedger{})

	_, err := svc.Propose(context.Background(), ProposeInput{Event: "bayar notaris"}, userActor)
	require.ErrorIs(t, err, httpx.ErrUpstream)
}

func TestProposeRequiresPostingRole(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &stubOracle{draft: balancedDraft()}, &fakeLedger{})

	_, err := svc.Propose(context.Background(), ProposeInput{Event: "bayar notaris"}, viewerActor)
	require.ErrorIs(t, err, httpx.ErrForbidden)
}

func TestApprovePostsJournal(t *testing.T) {
	repo := newMemoryRepo()
	ledger := &fakeLedger{}
	svc := newTestService(repo, &stubOracle{draft: balancedDraft()}, ledger)

	proposal, err := svc.Propose(context.Background(), ProposeInput{Event: "bayar notaris"}, userActor)
	require.NoError(t, err)

	approved, err := svc.Approve(context.Background(), proposal.ID, userActor)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.NotNil(t, approved.JournalID)

	require.Len(t, ledger.postings, 1)
	entry := ledger.postings[0]
	require.Equal(t, journals.SourceAssistant, entry.SourceType)
	require.Equal(t, proposal.PublicID, entry.SourceID)
	require.Equal(t, "Bayar jasa notaris", entry.Memo)
	require.Equal(t, int64(2_500_000), entry.Lines[0].Debit)
	require.Equal(t, int64(2_500_000), entry.Lines[1].Credit)
}

func TestApproveTwiceFails(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &stubOracle{draft: balancedDraft()}, &fakeLedger{})

	proposal, err := svc.Propose(context.Background(), ProposeInput{Event: "bayar notaris"}, userActor)
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), proposal.ID, userActor)
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), proposal.ID, userActor)
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestRejectClosesWithoutPosting(t *testing.T) {
	repo := newMemoryRepo()
	ledger := &fakeLedger{}
	svc := newTestService(repo, &stubOracle{draft: balancedDraft()}, ledger)

	proposal, err := svc.Propose(context.Background(), ProposeInput{Event: "bayar notaris"}, userActor)
	require.NoError(t, err)

	rejected, err := svc.Reject(context.Background(), proposal.ID, "wrong account", userActor)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.Nil(t, rejected.JournalID)
	require.Empty(t, ledger.postings)

	_, err = svc.Approve(context.Background(), proposal.ID, userActor)
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestApprovedLinesStillValidatedByPoster(t *testing.T) {
	repo := newMemoryRepo()
	ledger := &fakeLedger{}
	svc := newTestService(repo, &stubOracle{draft: balancedDraft()}, ledger)

	proposal, err := svc.Propose(context.Background(), ProposeInput{Event: "bayar notaris"}, userActor)
	require.NoError(t, err)

	// Corrupt the stored lines to simulate data drift between propose and
	// approve. The poster must still refuse the unbalanced set.
	repo.proposals[proposal.ID].Lines[1].Credit = 1
	_, err = svc.Approve(context.Background(), proposal.ID, userActor)
	require.ErrorIs(t, err, ledgerShared.ErrUnbalanced)
}
