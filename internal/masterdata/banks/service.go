package banks

import (
	"context"
	"fmt"
	"strings"

	"github.com/saldo-id/saldo/internal/ledger/accounts"
	"github.com/saldo-id/saldo/internal/platform/httpx"
)

// AccountRegistry resolves ledger account codes. Satisfied by the chart of
// accounts service.
type AccountRegistry interface {
	Resolve(ctx context.Context, code string) (accounts.Account, error)
}

type Service struct {
	repo     Repository
	registry AccountRegistry
}

func NewService(repo Repository, registry AccountRegistry) *Service {
	return &Service{repo: repo, registry: registry}
}

func (s *Service) validate(ctx context.Context, b BankAccount) error {
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("%w: bank account name is required", httpx.ErrValidation)
	}
	if !strings.HasPrefix(b.LedgerAccount, "1-") {
		return fmt.Errorf("%w: ledger account must be an asset account (1-xxxxx)", httpx.ErrValidation)
	}
	acc, err := s.registry.Resolve(ctx, b.LedgerAccount)
	if err != nil {
		return err
	}
	if acc.Type != accounts.AccountTypeAsset {
		return fmt.Errorf("%w: ledger account %s is not an asset account", httpx.ErrValidation, b.LedgerAccount)
	}
	return nil
}

func (s *Service) List(ctx context.Context, includeInactive bool) ([]BankAccount, error) {
	return s.repo.List(ctx, includeInactive)
}

func (s *Service) Get(ctx context.Context, id int64) (BankAccount, error) {
	if id <= 0 {
		return BankAccount{}, fmt.Errorf("%w: invalid bank account id", httpx.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, account BankAccount) (BankAccount, error) {
	if err := s.validate(ctx, account); err != nil {
		return BankAccount{}, err
	}
	return s.repo.Create(ctx, account)
}

func (s *Service) Update(ctx context.Context, id int64, account BankAccount) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid bank account id", httpx.ErrValidation)
	}
	if err := s.validate(ctx, account); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, account)
}

func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.repo.SetActive(ctx, id, false)
}

func (s *Service) Activate(ctx context.Context, id int64) error {
	return s.repo.SetActive(ctx, id, true)
}
