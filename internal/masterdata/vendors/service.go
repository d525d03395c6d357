package vendors

import (
	"context"
	"fmt"

	"github.com/saldo-id/saldo/internal/ledger/tax"
	"github.com/saldo-id/saldo/internal/masterdata/shared"
	"github.com/saldo-id/saldo/internal/platform/httpx"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Vendor, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Vendor, error) {
	if id <= 0 {
		return Vendor{}, fmt.Errorf("%w: invalid vendor id", httpx.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, vendor Vendor) (Vendor, error) {
	vendor.NPWP = normalizeNPWP(vendor.NPWP)
	if vendor.SubjectToPPh23 && vendor.PPh23Rate.IsZero() {
		vendor.PPh23Rate = tax.DefaultPPh23Rate
	}
	if err := s.validate(vendor); err != nil {
		return Vendor{}, err
	}
	return s.repo.Create(ctx, vendor)
}

func (s *Service) Update(ctx context.Context, id int64, vendor Vendor) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid vendor id", httpx.ErrValidation)
	}
	vendor.NPWP = normalizeNPWP(vendor.NPWP)
	if vendor.SubjectToPPh23 && vendor.PPh23Rate.IsZero() {
		vendor.PPh23Rate = tax.DefaultPPh23Rate
	}
	if err := s.validate(vendor); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, vendor)
}

func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.repo.SetActive(ctx, id, false)
}

func (s *Service) Activate(ctx context.Context, id int64) error {
	return s.repo.SetActive(ctx, id, true)
}
