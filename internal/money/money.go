// Package money holds the fixed-point arithmetic rules for balances and
// interest. Balances are stored with 2 decimal digits; intermediate interest
// math carries 12 fractional digits so rounding happens exactly once, at the
// point of mutation.
package money

import (
	"github.com/shopspring/decimal"
)

// ratePrecision is the number of fractional digits carried while dividing
// the annual rate down to a daily rate.
const ratePrecision = 12

var (
	hundred     = decimal.NewFromInt(100)
	daysPerYear = decimal.NewFromInt(365)
)

// Round2 rounds to 2 decimal digits, half away from zero. This matches
// conventional banking display rounding for positive amounts.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// DailyRate converts an annual percentage rate into a true daily rate:
// annualPercent / 100 / 365. A 2.00% annual rate yields ~0.000054794520548.
func DailyRate(annualPercent decimal.Decimal) decimal.Decimal {
	return annualPercent.Div(hundred).DivRound(daysPerYear, ratePrecision)
}

// DailyInterest computes one day of simple interest on balance at the given
// annual percentage rate, rounded to 2 decimal digits.
func DailyInterest(balance, annualPercent decimal.Decimal) decimal.Decimal {
	return Round2(balance.Mul(DailyRate(annualPercent)))
}
