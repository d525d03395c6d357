package banks

import "time"

// BankAccount ties a physical bank or cash account to the asset ledger
// account its movements post against.
type BankAccount struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	BankName      string    `json:"bank_name"`
	AccountNumber string    `json:"account_number"`
	LedgerAccount string    `json:"ledger_account"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
