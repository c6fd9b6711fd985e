package commission

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/beatmarkethq/backend/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// Breakdown splits a gross payment amount into the platform's share and the
// seller's share. Amounts are currency values rounded half-even to 2 decimal
// places.
type Breakdown struct {
	PlatformCommission decimal.Decimal
	SellerEarnings     decimal.Decimal
}

// Calculate splits gross by the given rate. Gross must be positive and rate
// must lie within [0,1]. The function is pure: no state, no side effects.
func Calculate(gross decimal.Decimal, rate decimal.Decimal) (Breakdown, error) {
	if !gross.IsPositive() {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "gross amount must be positive").
			WithDetails(map[string]string{"gross_amount": gross.String()})
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "commission rate must be within [0,1]").
			WithDetails(map[string]string{"rate": rate.String()})
	}

	platform := gross.Mul(rate).RoundBank(2)
	return Breakdown{
		PlatformCommission: platform,
		SellerEarnings:     gross.Sub(platform),
	}, nil
}

// CalculateCents splits a gross amount expressed in integer minor units,
// returning the platform commission and seller earnings in cents. Totals are
// conserved: commission + earnings always equals gross.
func CalculateCents(grossCents int64, rate decimal.Decimal) (commissionCents, sellerCents int64, err error) {
	gross := decimal.NewFromInt(grossCents).Div(hundred)
	breakdown, err := Calculate(gross, rate)
	if err != nil {
		return 0, 0, err
	}
	commissionCents = breakdown.PlatformCommission.Mul(hundred).IntPart()
	return commissionCents, grossCents - commissionCents, nil
}
