package vendors

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/saldo-id/saldo/internal/platform/httpx"
)

var maxWithholdingRate = decimal.RequireFromString("0.15")

func normalizeNPWP(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *Service) validate(v Vendor) error {
	if strings.TrimSpace(v.Name) == "" {
		return fmt.Errorf("%w: vendor name is required", httpx.ErrValidation)
	}
	if npwp := normalizeNPWP(v.NPWP); npwp != "" && len(npwp) != 15 && len(npwp) != 16 {
		return fmt.Errorf("%w: NPWP must be 15 or 16 digits", httpx.ErrValidation)
	}
	if v.SubjectToPPh23 && normalizeNPWP(v.NPWP) == "" {
		return fmt.Errorf("%w: vendors subject to PPh 23 need an NPWP on file", httpx.ErrValidation)
	}
	if v.PPh23Rate.IsNegative() || v.PPh23Rate.GreaterThan(maxWithholdingRate) {
		return fmt.Errorf("%w: PPh 23 rate must be between 0 and 0.15", httpx.ErrValidation)
	}
	return nil
}
