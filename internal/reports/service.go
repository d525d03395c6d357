package reports

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/saldo-id/saldo/internal/ap"
	"github.com/saldo-id/saldo/internal/ar"
	"github.com/saldo-id/saldo/internal/platform/httpx"
)

// displaySlack is the largest debit/credit mismatch the report will attribute
// to legacy display rounding instead of data corruption. It never loosens the
// posting path, which requires exact equality.
const displaySlack int64 = 100

var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// APAging and ARAging expose the subledger aging reports.
type APAging interface {
	Aging(ctx context.Context, asOf time.Time) (ap.AgingBucket, error)
}

type ARAging interface {
	Aging(ctx context.Context, asOf time.Time) (ar.AgingBucket, error)
}

type Service struct {
	repo  Repository
	apSvc APAging
	arSvc ARAging
	group singleflight.Group
	now   func() time.Time
}

func NewService(repo Repository, apSvc APAging, arSvc ARAging) *Service {
	return &Service{repo: repo, apSvc: apSvc, arSvc: arSvc, now: time.Now}
}

// WithNow pins the clock for tests.
func (s *Service) WithNow(now func() time.Time) {
	s.now = now
}

// TrialBalance builds the grouped report. Concurrent identical requests share
// one computation.
func (s *Service) TrialBalance(ctx context.Context, period string) (TrialBalance, error) {
	if period != "" && !periodPattern.MatchString(period) {
		return TrialBalance{}, fmt.Errorf("%w: period must be YYYY-MM", httpx.ErrValidation)
	}

	v, err, _ := s.group.Do("tb:"+period, func() (any, error) {
		rows, err := s.repo.AccountTotals(ctx, period)
		if err != nil {
			return nil, err
		}
		return s.build(period, rows), nil
	})
	if err != nil {
		return TrialBalance{}, err
	}
	return v.(TrialBalance), nil
}

func (s *Service) build(period string, rows []TrialBalanceRow) TrialBalance {
	tb := TrialBalance{Period: period, GeneratedAt: s.now()}

	var current *TrialBalanceGroup
	for _, row := range rows {
		prefix := ""
		if len(row.AccountCode) > 0 {
			prefix = row.AccountCode[:1]
		}
		if current == nil || current.Prefix != prefix {
			tb.Groups = append(tb.Groups, TrialBalanceGroup{Prefix: prefix})
			current = &tb.Groups[len(tb.Groups)-1]
		}
		current.Rows = append(current.Rows, row)
		current.Debit += row.Debit
		current.Credit += row.Credit
		tb.TotalDebit += row.Debit
		tb.TotalCredit += row.Credit
	}

	tb.Difference = tb.TotalDebit - tb.TotalCredit
	if tb.Difference != 0 {
		diff := tb.Difference
		if diff < 0 {
			diff = -diff
		}
		if diff <= displaySlack {
			tb.RoundingNote = fmt.Sprintf("difference of %d IDR within display rounding slack", diff)
		} else {
			tb.RoundingNote = fmt.Sprintf("difference of %d IDR exceeds rounding slack, investigate", diff)
		}
	}
	return tb
}

// APAgingReport returns the payables aging buckets as of the given date.
func (s *Service) APAgingReport(ctx context.Context, asOf time.Time) (ap.AgingBucket, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	return s.apSvc.Aging(ctx, asOf)
}

// ARAgingReport returns the receivables aging buckets as of the given date.
func (s *Service) ARAgingReport(ctx context.Context, asOf time.Time) (ar.AgingBucket, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	return s.arSvc.Aging(ctx, asOf)
}
