package utils

import (
	"math"

	"github.com/shopspring/decimal"

	"ledger-reconciliation-backend/internal/models"
)

// RoundFloat rounds half away from zero using decimal arithmetic so that
// values like 2.675 round the way a spreadsheet would.
func RoundFloat(val float64, precision int32) float64 {
	return decimal.NewFromFloat(val).Round(precision).InexactFloat64()
}

// Round2 rounds to cents.
func Round2(val float64) float64 {
	return RoundFloat(val, 2)
}

// SumFloats adds values without accumulating binary rounding noise.
func SumFloats(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total.InexactFloat64()
}

// NearlyEqual compares two amounts within models.Tolerance.
func NearlyEqual(a, b float64) bool {
	return math.Abs(a-b) < models.Tolerance
}

// NearlyZero reports whether an amount is within models.Tolerance of zero.
func NearlyZero(val float64) bool {
	return math.Abs(val) < models.Tolerance
}

// Deref returns the pointed-to value or 0.
func Deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
