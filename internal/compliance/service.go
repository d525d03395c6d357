package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/saldo-id/saldo/internal/ledger/tax"
	"github.com/saldo-id/saldo/internal/platform/httpx"
	internalShared "github.com/saldo-id/saldo/internal/shared"
)

// DefaultLargePaymentThreshold is the minor-unit IDR amount above which a
// payment needs supporting attachments.
const DefaultLargePaymentThreshold int64 = 50_000_000

// AuditPort records resolutions.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service runs the rule set and manages the resulting issues.
type Service struct {
	repo      Repository
	audit     AuditPort
	logger    *slog.Logger
	threshold int64
	printer   *message.Printer
	now       func() time.Time
}

func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		audit:     audit,
		logger:    logger,
		threshold: DefaultLargePaymentThreshold,
		printer:   message.NewPrinter(language.Indonesian),
		now:       time.Now,
	}
}

// WithThreshold overrides the large-payment documentation threshold.
func (s *Service) WithThreshold(threshold int64) *Service {
	if threshold > 0 {
		s.threshold = threshold
	}
	return s
}

// WithNow pins the clock for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Scan runs every rule concurrently, merges the findings and persists any
// that are not already open. Rules are independent; one rule failing fails
// the scan rather than reporting a partial picture.
func (s *Service) Scan(ctx context.Context) (ScanResult, error) {
	var (
		vatBills   []VATBill
		unwithheld []UnwithheldPayment
		cogsLines  []UntaggedCOGSLine
		large      []LargePayment
		duplicates []DuplicateBillGroup
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		vatBills, err = s.repo.BillsWithVATWithoutFaktur(gctx)
		return err
	})
	g.Go(func() (err error) {
		unwithheld, err = s.repo.PaymentsMissingWithholding(gctx)
		return err
	})
	g.Go(func() (err error) {
		cogsLines, err = s.repo.COGSLinesWithoutProject(gctx)
		return err
	})
	g.Go(func() (err error) {
		large, err = s.repo.LargePaymentsWithoutAttachments(gctx, s.threshold)
		return err
	})
	g.Go(func() (err error) {
		duplicates, err = s.repo.DuplicateBills(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return ScanResult{}, fmt.Errorf("compliance scan: %w", err)
	}

	var issues []Issue
	issues = append(issues, s.vatWithoutFakturIssues(vatBills)...)
	issues = append(issues, s.missingWithholdingIssues(unwithheld)...)
	issues = append(issues, s.cogsWithoutProjectIssues(cogsLines)...)
	issues = append(issues, s.largePaymentIssues(large)...)
	issues = append(issues, s.duplicateBillIssues(duplicates)...)

	sort.SliceStable(issues, func(i, j int) bool {
		return severityRank(issues[i].Severity) < severityRank(issues[j].Severity)
	})

	inserted, err := s.repo.InsertIssues(ctx, issues)
	if err != nil {
		return ScanResult{}, err
	}

	s.logger.InfoContext(ctx, "compliance scan finished",
		slog.Int("found", len(issues)), slog.Int("inserted", inserted))

	return ScanResult{
		ScannedAt: s.now(),
		Found:     len(issues),
		Inserted:  inserted,
		Issues:    issues,
	}, nil
}

func (s *Service) vatWithoutFakturIssues(bills []VATBill) []Issue {
	issues := make([]Issue, 0, len(bills))
	for _, b := range bills {
		issues = append(issues, Issue{
			IssueType: IssueVATWithoutFaktur,
			Severity:  SeverityHigh,
			Period:    periodOf(b.BillDate),
			Message: s.printer.Sprintf("Bill %s (%s) claims input VAT of Rp %d without a faktur pajak number",
				b.Number, b.VendorName, b.VATAmount),
			ActionRequired: "Obtain the faktur pajak from the vendor or reverse the input VAT claim",
			RelatedEntity:  "bills:" + b.Number,
		})
	}
	return issues
}

func (s *Service) missingWithholdingIssues(payments []UnwithheldPayment) []Issue {
	issues := make([]Issue, 0, len(payments))
	for _, p := range payments {
		expected := tax.Withholding(p.Base, true, p.Rate)
		if expected == 0 {
			continue
		}
		issues = append(issues, Issue{
			IssueType: IssueMissingWithholding,
			Severity:  SeverityCritical,
			Period:    periodOf(p.PaidAt),
			Message: s.printer.Sprintf("Payment %s to %s withheld no PPh 23; expected Rp %d",
				p.Number, p.VendorName, expected),
			ActionRequired: "Void the payment and re-register it with PPh 23 withheld, or collect the tax from the vendor",
			RelatedEntity:  "payments:" + p.Number,
		})
	}
	return issues
}

func (s *Service) cogsWithoutProjectIssues(lines []UntaggedCOGSLine) []Issue {
	issues := make([]Issue, 0, len(lines))
	for _, l := range lines {
		issues = append(issues, Issue{
			IssueType: IssueCOGSWithoutProject,
			Severity:  SeverityHigh,
			Period:    periodOf(l.BillDate),
			Message: s.printer.Sprintf("Bill %s books Rp %d to COGS account %s without a project code",
				l.BillNumber, l.Amount, l.AccountCode),
			ActionRequired: "Assign a project code so the cost is traceable",
			RelatedEntity:  fmt.Sprintf("bills:%s:%s", l.BillNumber, l.AccountCode),
		})
	}
	return issues
}

func (s *Service) largePaymentIssues(payments []LargePayment) []Issue {
	issues := make([]Issue, 0, len(payments))
	for _, p := range payments {
		issues = append(issues, Issue{
			IssueType: IssueLargeUndocumented,
			Severity:  SeverityMedium,
			Period:    periodOf(p.PaidAt),
			Message: s.printer.Sprintf("Payment %s of Rp %d to %s has no supporting attachments",
				p.Number, p.Amount, p.VendorName),
			ActionRequired: "Upload the transfer proof and underlying invoice",
			RelatedEntity:  "payments:" + p.Number,
		})
	}
	return issues
}

func (s *Service) duplicateBillIssues(groups []DuplicateBillGroup) []Issue {
	issues := make([]Issue, 0, len(groups))
	for _, g := range groups {
		issues = append(issues, Issue{
			IssueType: IssueDuplicateBill,
			Severity:  SeverityMedium,
			Period:    periodOf(g.BillDate),
			Message: s.printer.Sprintf("Bills %s from %s share the same date and total of Rp %d",
				strings.Join(g.Numbers, ", "), g.VendorName, g.Total),
			ActionRequired: "Confirm these are distinct purchases and void any duplicate",
			RelatedEntity:  "bills:" + strings.Join(g.Numbers, "+"),
		})
	}
	return issues
}

// ListIssues returns persisted findings, critical first.
func (s *Service) ListIssues(ctx context.Context, status IssueStatus, page, perPage int) ([]Issue, internalShared.Pagination, error) {
	total, err := s.repo.CountIssues(ctx, status)
	if err != nil {
		return nil, internalShared.Pagination{}, err
	}
	pag := internalShared.NewPagination(page, perPage, total)
	issues, err := s.repo.ListIssues(ctx, status, pag.PerPage, pag.Offset())
	if err != nil {
		return nil, internalShared.Pagination{}, err
	}
	return issues, pag, nil
}

// Resolve marks an open issue handled. Admin only; the resolution is audited.
func (s *Service) Resolve(ctx context.Context, id int64, note string, actor internalShared.Actor) (Issue, error) {
	if !actor.Role.CanVoid() {
		return Issue{}, fmt.Errorf("%w: resolving issues requires admin role", httpx.ErrForbidden)
	}
	if err := s.repo.ResolveIssue(ctx, id, actor.UserID, s.now()); err != nil {
		return Issue{}, err
	}
	issue, err := s.repo.GetIssue(ctx, id)
	if err != nil {
		return Issue{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, internalShared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "compliance.issue.resolve",
			Entity:   "compliance_issues",
			EntityID: fmt.Sprintf("%d", id),
			Meta:     map[string]any{"issue_type": issue.IssueType, "note": note},
			At:       s.now(),
		})
	}
	return issue, nil
}

// OpenCriticalCount reports unresolved critical issues in a period. The
// period close flow refuses to close while this is non-zero.
func (s *Service) OpenCriticalCount(ctx context.Context, period string) (int, error) {
	return s.repo.OpenCriticalCount(ctx, period)
}

func periodOf(t time.Time) string {
	return t.Format("2006-01")
}

func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	default:
		return 2
	}
}
