package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/saldo-id/saldo/internal/ledger/shared"
	"github.com/saldo-id/saldo/internal/platform/httpx"
	internalShared "github.com/saldo-id/saldo/internal/shared"
)

// Service exposes chart of accounts operations. It doubles as the account
// registry the ledger poster consults before writing lines.
type Service struct {
	repo Repository
}

// NewService constructs a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns the chart of accounts ordered by code.
func (s *Service) List(ctx context.Context, includeInactive bool) ([]Account, error) {
	return s.repo.List(ctx, includeInactive)
}

// Get returns a single account by code.
func (s *Service) Get(ctx context.Context, code string) (Account, error) {
	a, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, internalShared.ErrNotFound) {
			return Account{}, fmt.Errorf("%w: %s", httpx.ErrNotFound, code)
		}
		return Account{}, err
	}
	return a, nil
}

// Resolve checks that an account code exists and is active for posting.
func (s *Service) Resolve(ctx context.Context, code string) (Account, error) {
	a, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, internalShared.ErrNotFound) {
			return Account{}, fmt.Errorf("%w: %s", shared.ErrAccountUnknown, code)
		}
		return Account{}, err
	}
	if !a.IsActive {
		return Account{}, fmt.Errorf("%w: %s", shared.ErrAccountInactive, code)
	}
	return a, nil
}

// Create validates and inserts a new account.
func (s *Service) Create(ctx context.Context, a Account) (Account, error) {
	if !ValidCode(a.Code) {
		return Account{}, fmt.Errorf("%w: %q", shared.ErrBadAccountCode, a.Code)
	}
	if !a.Type.Valid() {
		return Account{}, fmt.Errorf("%w: unknown account type %q", httpx.ErrValidation, a.Type)
	}
	if a.Name == "" {
		return Account{}, fmt.Errorf("%w: account name required", httpx.ErrValidation)
	}
	if a.ParentCode != nil {
		if _, err := s.Get(ctx, *a.ParentCode); err != nil {
			return Account{}, fmt.Errorf("%w: parent %s", httpx.ErrValidation, *a.ParentCode)
		}
	}
	a.IsActive = true
	return s.repo.Create(ctx, a)
}

// Rename updates the display name. Code and type stay fixed.
func (s *Service) Rename(ctx context.Context, code, name string) error {
	if name == "" {
		return fmt.Errorf("%w: account name required", httpx.ErrValidation)
	}
	if err := s.repo.UpdateName(ctx, code, name); err != nil {
		if errors.Is(err, internalShared.ErrNotFound) {
			return fmt.Errorf("%w: %s", httpx.ErrNotFound, code)
		}
		return err
	}
	return nil
}

// ChangeType reclassifies an account. Refused once the account has posted
// journal lines: reclassifying referenced accounts would silently rewrite
// historical reports.
func (s *Service) ChangeType(ctx context.Context, code string, t AccountType) error {
	if !t.Valid() {
		return fmt.Errorf("%w: unknown account type %q", httpx.ErrValidation, t)
	}
	referenced, err := s.repo.HasPostedLines(ctx, code)
	if err != nil {
		return err
	}
	if referenced {
		return fmt.Errorf("%w: account %s has posted lines, type is immutable", httpx.ErrValidation, code)
	}
	if err := s.repo.UpdateType(ctx, code, t); err != nil {
		if errors.Is(err, internalShared.ErrNotFound) {
			return fmt.Errorf("%w: %s", httpx.ErrNotFound, code)
		}
		return err
	}
	return nil
}

// Deactivate removes an account from the posting surface. Accounts that have
// posted lines are never deleted, only deactivated.
func (s *Service) Deactivate(ctx context.Context, code string) error {
	return s.setActive(ctx, code, false)
}

// Activate re-enables a previously deactivated account.
func (s *Service) Activate(ctx context.Context, code string) error {
	return s.setActive(ctx, code, true)
}

func (s *Service) setActive(ctx context.Context, code string, active bool) error {
	if err := s.repo.SetActive(ctx, code, active); err != nil {
		if errors.Is(err, internalShared.ErrNotFound) {
			return fmt.Errorf("%w: %s", httpx.ErrNotFound, code)
		}
		return err
	}
	return nil
}
