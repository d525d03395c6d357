package customers

import "time"

// Customer is a party we invoice. NPWP is optional for retail customers but
// required before an invoice can carry a faktur pajak.
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	NPWP      string    `json:"npwp"`
	Address   string    `json:"address"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
