// Package tax computes Indonesian VAT (PPN) and PPh 23 withholding amounts.
// All amounts are integer minor-unit IDR; rounding is half away from zero,
// matching the behaviour callers are accustomed to from spreadsheet rounding.
package tax

import (
	"strings"

	"github.com/shopspring/decimal"
)

// VATRate is the standard PPN rate (11%).
var VATRate = decimal.RequireFromString("0.11")

// DefaultPPh23Rate is the standard services withholding rate (2%), applied
// when a vendor is flagged for PPh 23 but carries no explicit rate.
var DefaultPPh23Rate = decimal.RequireFromString("0.02")

func roundIDR(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// OutputVAT returns the PPN Keluaran amount for a sales subtotal.
func OutputVAT(subtotal int64) int64 {
	return roundIDR(decimal.NewFromInt(subtotal).Mul(VATRate))
}

// InputVAT returns the claimable PPN Masukan amount for a purchase subtotal.
// Input VAT is only claimable when the bill carries a Faktur Pajak number;
// without one the result is zero and nothing may be posted to the input-VAT
// account.
func InputVAT(subtotal int64, fakturPajak string) int64 {
	if strings.TrimSpace(fakturPajak) == "" {
		return 0
	}
	return roundIDR(decimal.NewFromInt(subtotal).Mul(VATRate))
}

// Withholding returns the PPh 23 amount withheld from a vendor payment.
// Vendors not subject to PPh 23 withhold nothing.
func Withholding(subtotal int64, subjectToPPh23 bool, rate decimal.Decimal) int64 {
	if !subjectToPPh23 {
		return 0
	}
	if rate.IsZero() {
		rate = DefaultPPh23Rate
	}
	return roundIDR(decimal.NewFromInt(subtotal).Mul(rate))
}
