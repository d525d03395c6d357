package reports

import "time"

// TrialBalanceRow is one account's accumulated movement.
type TrialBalanceRow struct {
	AccountCode string `json:"account_code"`
	AccountName string `json:"account_name"`
	AccountType string `json:"account_type"`
	Debit       int64  `json:"debit"`
	Credit      int64  `json:"credit"`
}

// TrialBalanceGroup collects rows sharing a code prefix (1-xxxxx assets,
// 2-xxxxx liabilities and so on).
type TrialBalanceGroup struct {
	Prefix string            `json:"prefix"`
	Rows   []TrialBalanceRow `json:"rows"`
	Debit  int64             `json:"debit"`
	Credit int64             `json:"credit"`
}

// TrialBalance is the report payload. Difference is display-layer only; the
// posting path enforces exact balance, so anything non-zero here is flagged.
type TrialBalance struct {
	Period       string              `json:"period,omitempty"`
	GeneratedAt  time.Time           `json:"generated_at"`
	Groups       []TrialBalanceGroup `json:"groups"`
	TotalDebit   int64               `json:"total_debit"`
	TotalCredit  int64               `json:"total_credit"`
	Difference   int64               `json:"difference"`
	RoundingNote string              `json:"rounding_note,omitempty"`
}
