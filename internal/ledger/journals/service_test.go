package journals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/saldo-id/saldo/internal/ledger/numbering"
	"github.com/saldo-id/saldo/internal/ledger/periods"
	"github.com/saldo-id/saldo/internal/ledger/shared"
	"github.com/saldo-id/saldo/internal/platform/db"
	"github.com/saldo-id/saldo/internal/platform/httpx"
	internalShared "github.com/saldo-id/saldo/internal/shared"
)

type memoryRepo struct {
	journals      map[int64]*Journal
	lines         map[int64][]Line
	links         map[string]int64
	accounts      map[string]AccountRef
	periodStatus  map[string]periods.Status
	nextJournalID int64
	counter       int64
	onCommit      func()
	onRollback    func()
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		journals:     make(map[int64]*Journal),
		lines:        make(map[int64][]Line),
		links:        make(map[string]int64),
		accounts:     make(map[string]AccountRef),
		periodStatus: make(map[string]periods.Status),
	}
}

func (r *memoryRepo) addAccount(code, accType string, active bool) {
	r.accounts[code] = AccountRef{Code: code, Type: accType, Active: active}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	err := fn(ctx, nil)
	switch {
	case err != nil && r.onRollback != nil:
		r.onRollback()
	case err == nil && r.onCommit != nil:
		r.onCommit()
	}
	return err
}

func (r *memoryRepo) EnsureOpenPeriod(_ context.Context, _ pgx.Tx, date time.Time) (string, error) {
	code := periods.CodeFor(date)
	status, ok := r.periodStatus[code]
	if !ok {
		r.periodStatus[code] = periods.StatusOpen
		return code, nil
	}
	if status != periods.StatusOpen {
		return "", shared.ErrPeriodClosed
	}
	return code, nil
}

func (r *memoryRepo) ResolveAccount(_ context.Context, _ pgx.Tx, code string) (AccountRef, error) {
	ref, ok := r.accounts[code]
	if !ok {
		return AccountRef{}, shared.ErrAccountUnknown
	}
	return ref, nil
}

func (r *memoryRepo) NextNumber(_ context.Context, _ pgx.Tx, year int) (string, error) {
	r.counter++
	return numbering.Format(numbering.KindJournal, year, r.counter), nil
}

func (r *memoryRepo) InsertJournal(_ context.Context, _ pgx.Tx, j Journal) (Journal, error) {
	r.nextJournalID++
	j.ID = r.nextJournalID
	j.CreatedAt = time.Now()
	j.UpdatedAt = j.CreatedAt
	stored := j
	r.journals[j.ID] = &stored
	return j, nil
}

func (r *memoryRepo) InsertLines(_ context.Context, _ pgx.Tx, journalID int64, lines []Line) error {
	r.lines[journalID] = append(r.lines[journalID], lines...)
	return nil
}

func (r *memoryRepo) LinkSource(_ context.Context, _ pgx.Tx, sourceType string, sourceID uuid.UUID, journalID int64) error {
	key := sourceType + ":" + sourceID.String()
	if _, exists := r.links[key]; exists {
		return shared.ErrSourceAlreadyLinked
	}
	r.links[key] = journalID
	return nil
}

func (r *memoryRepo) getWithLines(journalID int64) (Journal, error) {
	j, ok := r.journals[journalID]
	if !ok {
		return Journal{}, shared.ErrJournalNotFound
	}
	out := *j
	out.Lines = r.lines[journalID]
	return out, nil
}

func (r *memoryRepo) GetWithLines(_ context.Context, journalID int64) (Journal, error) {
	return r.getWithLines(journalID)
}

func (r *memoryRepo) GetWithLinesTx(_ context.Context, _ pgx.Tx, journalID int64) (Journal, error) {
	return r.getWithLines(journalID)
}

func (r *memoryRepo) MarkVoided(_ context.Context, _ pgx.Tx, journalID, reversalID int64, reason string, actorID int64, at time.Time) error {
	j, ok := r.journals[journalID]
	if !ok {
		return shared.ErrJournalNotFound
	}
	if j.VoidedAt != nil {
		return shared.ErrAlreadyVoided
	}
	ts := at
	j.VoidedAt = &ts
	j.VoidedBy = &actorID
	j.VoidReason = &reason
	j.ReversalJournalID = &reversalID
	return nil
}

func (r *memoryRepo) List(_ context.Context, limit, offset int) ([]Journal, error) {
	var out []Journal
	// Newest first, matching the SQL ORDER BY id DESC.
	for id := r.nextJournalID; id > 0; id-- {
		if j, ok := r.journals[id]; ok {
			out = append(out, *j)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepo) Count(_ context.Context) (int, error) {
	return len(r.journals), nil
}

// memoryIdem mirrors the transactional key store: inserts stage inside the
// current transaction and only survive a commit.
type memoryIdem struct {
	keys   map[string]bool
	staged []string
}

func newMemoryIdem() *memoryIdem {
	return &memoryIdem{keys: make(map[string]bool)}
}

func (f *memoryIdem) CheckAndInsert(_ context.Context, _ db.Querier, key, _ string) error {
	if f.keys[key] {
		return internalShared.ErrIdempotencyConflict
	}
	f.keys[key] = true
	f.staged = append(f.staged, key)
	return nil
}

func (f *memoryIdem) commit() {
	f.staged = nil
}

func (f *memoryIdem) rollback() {
	for _, key := range f.staged {
		delete(f.keys, key)
	}
	f.staged = nil
}

func newTestService(repo *memoryRepo) *Service {
	svc := NewService(repo, nil, nil)
	svc.WithNow(func() time.Time { return time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC) })
	return svc
}

func newTestServiceWithIdem(repo *memoryRepo) (*Service, *memoryIdem) {
	idem := newMemoryIdem()
	repo.onCommit = idem.commit
	repo.onRollback = idem.rollback
	svc := NewService(repo, nil, idem)
	svc.WithNow(func() time.Time { return time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC) })
	return svc, idem
}

func balancedInput() PostingInput {
	return PostingInput{
		Date:       time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		SourceType: SourceManual,
		SourceID:   uuid.New(),
		Memo:       "Office rent March",
		PostedBy:   7,
		Lines: []PostingLineInput{
			{AccountCode: "6-10001", Debit: 5_000_000},
			{AccountCode: "1-10001", Credit: 5_000_000},
		},
	}
}

func seedAccounts(repo *memoryRepo) {
	repo.addAccount("1-10001", "ASSET", true)
	repo.addAccount("1-10002", "ASSET", true)
	repo.addAccount("6-10001", "OPEX", true)
	repo.addAccount("5-10001", "COGS", true)
	repo.addAccount("9-10001", "TAX_EXPENSE", false)
}

func TestPostBalancedJournal(t *testing.T) {
	repo := newMemoryRepo()
	seedAccounts(repo)
	svc := newTestService(repo)

	entry, err := svc.Post(context.Background(), balancedInput())
	require.NoError(t, err)
	require.Equal(t, "JV-2025-0001", entry.Number)
	require.Equal(t, "2025-03", entry.Period)
	require.Equal(t, StatusPosted, entry.Status)
	require.Len(t, entry.Lines, 2)
	require.Equal(t, entry.TotalDebit(), entry.TotalCredit())
}

func TestPostFailsWhenUnbalanced(t *testing.T) {
	repo := newMemoryRepo()
	seedAccounts(repo)
	svc := newTestService(repo)

	// Any single-unit perturbation must fail.
	input := balancedInput()
	input.Lines[0].Debit++
	_, err := svc.Post(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrUnbalanced)

	input = balancedInput()
	input.Lines[1].Credit--
	_, err = svc.Post(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrUnbalanced)

	// Nothing was persisted.
	require.Empty(t, repo.journals)
}

func TestPostFailsOnUnknownOrInactiveAccount(t *testing.T) {
	repo := newMemoryRepo()
	seedAccounts(repo)
	svc := newTestService(repo)

	input := balancedInput()
	input.Lines[0].AccountCode = "6-99999"
	_, err := svc.Post(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrAccountUnknown)

	input = balancedInput()
	input.Lines[0].AccountCode = "9-10001"
	_, err = svc.Post(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrAccountInactive)
}

func TestPostFailsOnTooFewLines(t *testing.T) {
	repo := newMemoryRepo()
	seedAccounts(repo)
	svc := newTestService(repo)

	input := balancedInput()
	input.Lines = input.Lines[:1]
	_, err := svc.Post(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrEmptyLines)

	input.Lines = nil
	_, err = svc.Post(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrEmptyLines)
}

func TestPostFailsOnBadAccountCodePattern(t *testing.T) {
	repo := newMemoryRepo()
	seedAccounts(repo)
	svc := newTestService(repo)

	input := balancedInput()
	input.Lines[0].AccountCode = "60001"
	_, err := svc.Post(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrBadAccountCode)
}

func TestPostFailsIntoClosedPeriod(t *testing.T) {
	repo := newMemoryRepo()
	seedAccounts(repo)
	repo.periodStatus["2025-03"] = periods.StatusClosed
	svc := newTestService(repo)

	_, err := svc.Post(context.Background(), balancedInput())
	require.ErrorIs(t, err, shared.ErrPeriodClosed)
}

func TestPostNumbersAreSequential(t *testing.T) {
	repo := newMemoryRepo()
	seedAccounts(repo)
	svc := newTestService(repo)

	first, err := svc.Post(context.Background(), balancedInput())
	require.NoError(t, err)
	second, err := svc.Post(context.Background(), balancedInput())
	require.NoError(t, err)
	require.Equal(t, "JV-2025-0001", first.Number)
	require.Equal(t, "JV-2025-0002", second.Number)
}

func TestPostDuplicateKeyRefused(t *testing.T) {
	repo := newMemoryRepo()
	seedAccounts(repo)
	svc, _ := newTestServiceWithIdem(repo)

	input := balancedInput()
	input.IdempotencyKey = "req-001"
	_, err := svc.Post(context.Background(), input)
	require.NoError(t, err)

	retry := balancedInput()
	retry.IdempotencyKey = "req-001"
	_, err = svc.Post(context.Background(), retry)
	require.ErrorIs(t, err, httpx.ErrDuplicate)
	require.Len(t, repo.journals, 1)
}

func TestPostFailureReleasesIdempotencyKey(t *testing.T) {
	repo := newMemoryRepo()
	seedAccounts(repo)
	repo.periodStatus["2025-03"] = periods.StatusClosed
	svc, idem := newTestServiceWithIdem(repo)

	input := balancedInput()
	input.IdempotencyKey = "req-002"
	_, err := svc.Post(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrPeriodClosed)
	require.Empty(t, repo.journals)
	require.False(t, idem.keys["req-002"], "failed post must not consume the key")

	// Period reopened; the same request retried with the same key must post.
	repo.periodStatus["2025-03"] = periods.StatusOpen
	entry, err := svc.Post(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, "JV-2025-0001", entry.Number)
	require.Len(t, repo.journals, 1)

	// And only the retry that committed blocks further reuse.
	dup := balancedInput()
	dup.IdempotencyKey = "req-002"
	_, err = svc.Post(context.Background(), dup)
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	repo := newMemoryRepo()
	seedAccounts(repo)
	svc := newTestService(repo)

	for i := 0; i < 3; i++ {
		_, err := svc.Post(context.Background(), balancedInput())
		require.NoError(t, err)
	}

	page1, pag, err := svc.List(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.Equal(t, "JV-2025-0003", page1[0].Number)
	require.Equal(t, 3, pag.Total)
	require.Equal(t, 2, pag.TotalPages)

	page2, _, err := svc.List(context.Background(), 2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	require.Equal(t, "JV-2025-0001", page2[0].Number)
}

func TestVoidMirrorsLinesExactly(t *testing.T) {
	repo := newMemoryRepo()
	seedAccounts(repo)
	svc := newTestService(repo)
	admin := internalShared.Actor{UserID: 1, Role: internalShared.RoleAdmin}

	entry, err := svc.Post(context.Background(), balancedInput())
	require.NoError(t, err)

	reversal, err := svc.Void(context.Background(), VoidInput{JournalID: entry.ID, Reason: "duplicate entry", Actor: admin})
	require.NoError(t, err)
	require.Equal(t, "VOID: JV-2025-0001 - duplicate entry", reversal.Memo)
	require.Len(t, reversal.Lines, len(entry.Lines))
	for i, line := range entry.Lines {
		require.Equal(t, line.AccountCode, reversal.Lines[i].AccountCode)
		require.Equal(t, line.Debit, reversal.Lines[i].Credit)
		require.Equal(t, line.Credit, reversal.Lines[i].Debit)
	}

	// Round-trip law: original plus reversal nets to zero per account.
	net := make(map[string]int64)
	for _, l := range entry.Lines {
		net[l.AccountCode] += l.Debit - l.Credit
	}
	for _, l := range reversal.Lines {
		net[l.AccountCode] += l.Debit - l.Credit
	}
	for code, balance := range net {
		require.Zerof(t, balance, "account %s not neutral after void", code)
	}

	voided, err := svc.Get(context.Background(), entry.ID)
	require.NoError(t, err)
	require.NotNil(t, voided.VoidedAt)
	require.Equal(t, reversal.ID, *voided.ReversalJournalID)
}

func TestVoidTwiceFails(t *testing.T) {
	repo := newMemoryRepo()
	seedAccounts(repo)
	svc := newTestService(repo)
	admin := internalShared.Actor{UserID: 1, Role: internalShared.RoleAdmin}

	entry, err := svc.Post(context.Background(), balancedInput())
	require.NoError(t, err)

	_, err = svc.Void(context.Background(), VoidInput{JournalID: entry.ID, Reason: "first", Actor: admin})
	require.NoError(t, err)

	_, err = svc.Void(context.Background(), VoidInput{JournalID: entry.ID, Reason: "second", Actor: admin})
	require.ErrorIs(t, err, shared.ErrAlreadyVoided)
}

func TestVoidRequiresAdminRole(t *testing.T) {
	repo := newMemoryRepo()
	seedAccounts(repo)
	svc := newTestService(repo)

	entry, err := svc.Post(context.Background(), balancedInput())
	require.NoError(t, err)

	for _, role := range []internalShared.Role{internalShared.RoleUser, internalShared.RoleViewer} {
		_, err = svc.Void(context.Background(), VoidInput{
			JournalID: entry.ID,
			Reason:    "not allowed",
			Actor:     internalShared.Actor{UserID: 2, Role: role},
		})
		require.ErrorIs(t, err, httpx.ErrForbidden)
	}
}

func TestVoidDraftFails(t *testing.T) {
	repo := newMemoryRepo()
	seedAccounts(repo)
	svc := newTestService(repo)

	draft, err := repo.InsertJournal(context.Background(), nil, Journal{
		Number: "JV-2025-0009",
		Status: StatusDraft,
	})
	require.NoError(t, err)

	_, err = svc.Void(context.Background(), VoidInput{
		JournalID: draft.ID,
		Reason:    "drafts are deleted, not voided",
		Actor:     internalShared.Actor{UserID: 1, Role: internalShared.RoleAdmin},
	})
	require.ErrorIs(t, err, shared.ErrNotPosted)
}

func TestVoidMissingJournal(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.Void(context.Background(), VoidInput{
		JournalID: 404,
		Reason:    "missing",
		Actor:     internalShared.Actor{UserID: 1, Role: internalShared.RoleAdmin},
	})
	require.True(t, errors.Is(err, shared.ErrJournalNotFound))
}
