package sepa

import (
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/sepacetamol/internal/types"
)

// maxCents is the largest instructed amount the scheme allows
// (999999999.99 EUR).
const maxCents = 99999999999

// ParseAmount reads a user entered amount such as "12.34" or "1.234,56".
func ParseAmount(s string) (decimal.Decimal, error) {
	return types.Decimal(s)
}

// ToMinorUnits converts euros to cents. Fractions of a cent are cut off, not
// rounded: 0.299 becomes 29.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	cents := amount.Shift(2).Truncate(0)
	if !cents.IsPositive() {
		return 0, &types.InvalidAmountError{Input: amount.String(), Reason: "must be positive"}
	}
	if cents.GreaterThan(decimal.NewFromInt(maxCents)) {
		return 0, &types.InvalidAmountError{Input: amount.String(), Reason: "exceeds 999999999.99"}
	}
	return cents.IntPart(), nil
}

// formatCents renders minor units as the pain.001 decimal "1234.50".
func formatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
