package periods

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/saldo-id/saldo/internal/platform/httpx"
	internalShared "github.com/saldo-id/saldo/internal/shared"
)

// ComplianceGuard blocks a close while the scanner still reports unresolved
// critical findings for the period.
type ComplianceGuard interface {
	OpenCriticalCount(ctx context.Context, periodCode string) (int, error)
}

// AuditPort records close and reopen actions.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// Service orchestrates the period lifecycle.
type Service struct {
	repo  *Repository
	guard ComplianceGuard
	audit AuditPort
	now   func() time.Time
}

// NewService constructs a Service instance.
func NewService(repo *Repository, guard ComplianceGuard, audit AuditPort) *Service {
	return &Service{repo: repo, guard: guard, audit: audit, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns paginated periods.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Period, error) {
	if limit <= 0 {
		limit = 24
	}
	return s.repo.List(ctx, limit, offset)
}

// Get returns a single period.
func (s *Service) Get(ctx context.Context, code string) (Period, error) {
	p, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return Period{}, fmt.Errorf("%w: period %s", httpx.ErrNotFound, code)
	}
	return p, nil
}

// Close freezes a period after auditing finds no critical issues, snapshotting
// balances as of the close.
func (s *Service) Close(ctx context.Context, code string, actor internalShared.Actor) (Period, error) {
	if !actor.Role.CanClosePeriod() {
		return Period{}, fmt.Errorf("%w: period close requires admin role", httpx.ErrForbidden)
	}
	if s.guard != nil {
		open, err := s.guard.OpenCriticalCount(ctx, code)
		if err != nil {
			return Period{}, err
		}
		if open > 0 {
			return Period{}, fmt.Errorf("%w: %d unresolved critical compliance issues in %s", httpx.ErrValidation, open, code)
		}
	}
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		current, err := s.repo.GetForUpdate(ctx, tx, code)
		if err != nil {
			return fmt.Errorf("%w: period %s", httpx.ErrNotFound, code)
		}
		if err := ValidateTransition(current.Status, StatusClosed, false); err != nil {
			return fmt.Errorf("%w: cannot close period in status %s", httpx.ErrValidation, current.Status)
		}
		at := s.now()
		if err := s.repo.SnapshotBalances(ctx, tx, code, at); err != nil {
			return err
		}
		if err := s.repo.UpdateStatus(ctx, tx, code, StatusClosed, actor.UserID, at); err != nil {
			return err
		}
		period = current
		period.Status = StatusClosed
		period.ClosedAt = &at
		period.ClosedBy = &actor.UserID
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, internalShared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "period.close",
			Entity:   "period",
			EntityID: code,
			At:       s.now(),
		})
	}
	return period, nil
}

// Lock hardens a closed period against reopening without an override.
func (s *Service) Lock(ctx context.Context, code string, actor internalShared.Actor) (Period, error) {
	if !actor.Role.CanClosePeriod() {
		return Period{}, fmt.Errorf("%w: period lock requires admin role", httpx.ErrForbidden)
	}
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		current, err := s.repo.GetForUpdate(ctx, tx, code)
		if err != nil {
			return fmt.Errorf("%w: period %s", httpx.ErrNotFound, code)
		}
		if err := ValidateTransition(current.Status, StatusLocked, false); err != nil {
			return fmt.Errorf("%w: cannot lock period in status %s", httpx.ErrValidation, current.Status)
		}
		if err := s.repo.UpdateStatus(ctx, tx, code, StatusLocked, actor.UserID, s.now()); err != nil {
			return err
		}
		period = current
		period.Status = StatusLocked
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, internalShared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "period.lock",
			Entity:   "period",
			EntityID: code,
			At:       s.now(),
		})
	}
	return period, nil
}

// Reopen transitions a closed period back to open. Locked periods require the
// override flag.
func (s *Service) Reopen(ctx context.Context, code string, actor internalShared.Actor, override bool) (Period, error) {
	if !actor.Role.CanClosePeriod() {
		return Period{}, fmt.Errorf("%w: period reopen requires admin role", httpx.ErrForbidden)
	}
	var period Period
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		current, err := s.repo.GetForUpdate(ctx, tx, code)
		if err != nil {
			return fmt.Errorf("%w: period %s", httpx.ErrNotFound, code)
		}
		target := StatusOpen
		if current.Status == StatusLocked {
			// Locked periods step down to CLOSED first.
			target = StatusClosed
		}
		if err := ValidateTransition(current.Status, target, override); err != nil {
			return fmt.Errorf("%w: cannot reopen period in status %s", httpx.ErrValidation, current.Status)
		}
		if err := s.repo.UpdateStatus(ctx, tx, code, target, actor.UserID, s.now()); err != nil {
			return err
		}
		period = current
		period.Status = target
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, internalShared.AuditLog{
			ActorID:  actor.UserID,
			Action:   "period.reopen",
			Entity:   "period",
			EntityID: code,
			Meta:     map[string]any{"override": override},
			At:       s.now(),
		})
	}
	return period, nil
}
