package domain

import "github.com/shopspring/decimal"

// MinorUnitExponent is the number of fractional digits of the wallet currency.
const MinorUnitExponent = 2

// ValidateAmount checks that amount is positive and representable in minor units.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Truncate(MinorUnitExponent)) {
		return ErrInvalidAmount
	}
	return nil
}

// ToMinorUnits converts a major-unit amount (e.g. rupees) to minor units (paise).
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(MinorUnitExponent).IntPart()
}
