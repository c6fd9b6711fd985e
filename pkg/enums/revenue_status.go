package enums

// RevenueStatus tracks the lifecycle of a revenue entry. Entries are created
// only for finalized payments, so collected is currently the sole state.
type RevenueStatus string

const (
	RevenueStatusCollected RevenueStatus = "collected"
)

// String implements fmt.Stringer.
func (r RevenueStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is known.
func (r RevenueStatus) IsValid() bool {
	return r == RevenueStatusCollected
}
