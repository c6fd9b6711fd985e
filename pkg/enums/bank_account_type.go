package enums

import "fmt"

// BankAccountType distinguishes checking from savings destinations.
type BankAccountType string

const (
	BankAccountTypeChecking BankAccountType = "checking"
	BankAccountTypeSavings  BankAccountType = "savings"
)

var validBankAccountTypes = []BankAccountType{
	BankAccountTypeChecking,
	BankAccountTypeSavings,
}

// String implements fmt.Stringer.
func (b BankAccountType) String() string {
	return string(b)
}

// IsValid reports whether the value is known.
func (b BankAccountType) IsValid() bool {
	for _, candidate := range validBankAccountTypes {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBankAccountType converts raw input into a BankAccountType.
func ParseBankAccountType(value string) (BankAccountType, error) {
	for _, candidate := range validBankAccountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid bank account type %q", value)
}
