package vendors

import (
	"time"

	"github.com/shopspring/decimal"
)

// Vendor is a supplier we receive bills from. SubjectToPPh23 marks service
// vendors whose payments must withhold income tax article 23.
type Vendor struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	NPWP           string          `json:"npwp"`
	Address        string          `json:"address"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	SubjectToPPh23 bool            `json:"subject_to_pph23"`
	PPh23Rate      decimal.Decimal `json:"pph23_rate"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
