// Package precision trims order amounts and prices to the granularity an
// exchange accepts. Adjustment never rounds away from zero, so an adjusted
// order can only be smaller than requested.
package precision

import (
	"github.com/shopspring/decimal"

	"exgateway/internal/model"
)

const maxPlaces = 18

// AdjustAmount trims an order quantity to the market's amount precision.
// Missing or unusable metadata leaves the value unchanged.
func AdjustAmount(value decimal.Decimal, market *model.MarketMetadata) decimal.Decimal {
	if market == nil {
		return value
	}
	return Apply(value, market.AmountPrecision)
}

// AdjustPrice trims a price to the market's price precision.
func AdjustPrice(value decimal.Decimal, market *model.MarketMetadata) decimal.Decimal {
	if market == nil {
		return value
	}
	return Apply(value, market.PricePrecision)
}

// Apply truncates value toward zero according to p.
func Apply(value decimal.Decimal, p model.Precision) decimal.Decimal {
	switch p.Mode {
	case model.PrecisionDecimalPlaces:
		if p.Places < 0 {
			return value
		}
		return value.Truncate(p.Places)
	case model.PrecisionTickSize:
		if !p.Step.IsPositive() {
			return value
		}
		// Mod keeps the sign of value, so this floors positives and
		// moves negatives toward zero.
		return value.Sub(value.Mod(p.Step))
	default:
		return value
	}
}

// FromString builds a Precision from an exchange-provided string. Integral
// values ("8") are decimal places, fractional ones ("0.001") are tick sizes.
// "1" therefore means one decimal place; a whole-unit step of 1 must go
// through FromStep or be tagged PrecisionTickSize by the connector.
// The boolean is false when the string cannot be used.
func FromString(raw string) (model.Precision, bool) {
	if raw == "" {
		return model.Precision{}, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return model.Precision{}, false
	}
	if d.IsInteger() {
		return model.Places(int32(d.IntPart())), true
	}
	return FromStep(d)
}

// FromStep builds a tick-size Precision. Steps that are exact powers of ten
// collapse to decimal places, so a 0.001 step and 3 places behave identically.
func FromStep(step decimal.Decimal) (model.Precision, bool) {
	if !step.IsPositive() {
		return model.Precision{}, false
	}
	for n := int32(0); n <= maxPlaces; n++ {
		if step.Equal(decimal.New(1, -n)) {
			return model.Places(n), true
		}
	}
	return model.Step(step), true
}
