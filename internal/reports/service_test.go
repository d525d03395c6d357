package reports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/saldo-id/saldo/internal/platform/httpx"
)

type stubRepo struct {
	rows []TrialBalanceRow
}

func (s *stubRepo) AccountTotals(_ context.Context, period string) ([]TrialBalanceRow, error) {
	return s.rows, nil
}

func newTestService(rows []TrialBalanceRow) *Service {
	svc := NewService(&stubRepo{rows: rows}, nil, nil)
	svc.WithNow(func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) })
	return svc
}

func TestTrialBalanceGroupsByCodePrefix(t *testing.T) {
	svc := newTestService([]TrialBalanceRow{
		{AccountCode: "1-10002", AccountName: "Bank BCA", AccountType: "ASSET", Debit: 10_000_000},
		{AccountCode: "1-10301", AccountName: "Piutang Usaha", AccountType: "ASSET", Debit: 5_550_000, Credit: 5_550_000},
		{AccountCode: "2-10001", AccountName: "Hutang Usaha", AccountType: "LIABILITY", Credit: 4_000_000},
		{AccountCode: "4-10001", AccountName: "Pendapatan Jasa", AccountType: "REVENUE", Credit: 6_000_000},
	})

	tb, err := svc.TrialBalance(context.Background(), "2025-05")
	require.NoError(t, err)
	require.Len(t, tb.Groups, 3)
	require.Equal(t, "1", tb.Groups[0].Prefix)
	require.Len(t, tb.Groups[0].Rows, 2)
	require.Equal(t, int64(15_550_000), tb.Groups[0].Debit)
	require.Equal(t, "2", tb.Groups[1].Prefix)
	require.Equal(t, "4", tb.Groups[2].Prefix)
}

func TestTrialBalanceBalancedHasNoNote(t *testing.T) {
	svc := newTestService([]TrialBalanceRow{
		{AccountCode: "1-10002", Debit: 1_000_000},
		{AccountCode: "4-10001", Credit: 1_000_000},
	})

	tb, err := svc.TrialBalance(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, tb.TotalDebit, tb.TotalCredit)
	require.Zero(t, tb.Difference)
	require.Empty(t, tb.RoundingNote)
}

func TestTrialBalanceFlagsSmallDifferenceAsRoundingSlack(t *testing.T) {
	svc := newTestService([]TrialBalanceRow{
		{AccountCode: "1-10002", Debit: 1_000_050},
		{AccountCode: "4-10001", Credit: 1_000_000},
	})

	tb, err := svc.TrialBalance(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, int64(50), tb.Difference)
	require.Contains(t, tb.RoundingNote, "within display rounding slack")
}

func TestTrialBalanceFlagsLargeDifference(t *testing.T) {
	svc := newTestService([]TrialBalanceRow{
		{AccountCode: "1-10002", Debit: 1_500_000},
		{AccountCode: "4-10001", Credit: 1_000_000},
	})

	tb, err := svc.TrialBalance(context.Background(), "")
	require.NoError(t, err)
	require.Contains(t, tb.RoundingNote, "investigate")
}

func TestTrialBalanceRejectsBadPeriod(t *testing.T) {
	svc := newTestService(nil)

	_, err := svc.TrialBalance(context.Background(), "2025-13")
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.TrialBalance(context.Background(), "May 2025")
	require.ErrorIs(t, err, httpx.ErrValidation)
}
