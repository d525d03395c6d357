package accounts

import (
	"regexp"
	"time"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset        AccountType = "ASSET"
	AccountTypeLiability    AccountType = "LIABILITY"
	AccountTypeEquity       AccountType = "EQUITY"
	AccountTypeRevenue      AccountType = "REVENUE"
	AccountTypeCOGS         AccountType = "COGS"
	AccountTypeOpex         AccountType = "OPEX"
	AccountTypeOtherIncome  AccountType = "OTHER_INCOME"
	AccountTypeOtherExpense AccountType = "OTHER_EXPENSE"
	AccountTypeTaxExpense   AccountType = "TAX_EXPENSE"
)

// Valid reports whether the type is a known category.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity,
		AccountTypeRevenue, AccountTypeCOGS, AccountTypeOpex,
		AccountTypeOtherIncome, AccountTypeOtherExpense, AccountTypeTaxExpense:
		return true
	}
	return false
}

// codePattern is the D-DDDDD account code shape, e.g. 1-10001. The leading
// digit groups accounts by category (1 assets .. 5 COGS ..).
var codePattern = regexp.MustCompile(`^[1-9]-\d{5}$`)

// ValidCode reports whether code matches the D-DDDDD pattern.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

// Account models a chart of accounts node.
type Account struct {
	ID         int64
	Code       string
	Name       string
	Type       AccountType
	ParentCode *string
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
