package enums

import "fmt"

// RevenueType classifies the payment event that produced a commission.
type RevenueType string

const (
	RevenueTypeSale         RevenueType = "sale"
	RevenueTypeSubscription RevenueType = "subscription"
	RevenueTypeOther        RevenueType = "other"
)

var validRevenueTypes = []RevenueType{
	RevenueTypeSale,
	RevenueTypeSubscription,
	RevenueTypeOther,
}

// String implements fmt.Stringer.
func (r RevenueType) String() string {
	return string(r)
}

// IsValid reports whether the value is known.
func (r RevenueType) IsValid() bool {
	for _, candidate := range validRevenueTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRevenueType converts raw input into a RevenueType.
func ParseRevenueType(value string) (RevenueType, error) {
	for _, candidate := range validRevenueTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid revenue type %q", value)
}
