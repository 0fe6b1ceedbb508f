/*
interest.go - Simple, prorated interest

PURPOSE:
  The Interest Calculator. Every interest amount the engine quotes, for loan
  settlement or for a late joiner's catch-up, goes through this file.

FORMULA:
  interest = principal * (rate / 100) * (days / 365)

  - Simple interest: nothing compounds, the principal never absorbs interest
  - days: whole days in the window [From, To)
  - 365-day year regardless of leap years
  - Result rounded to cents, half-up

  The multiplication is done before the single division so the only rounding
  is the final one.

EXAMPLE:
  100,000 at 16% from 2024-01-01 to 2024-07-01 (182 days):
    100000 * 16 * 182 / 36500 = 7978.0821... → 7978.08

SEE ALSO:
  - period.go: Window
  - loan/settlement.go: Interest-only and full settlement quotes
  - contribution/catchup.go: Year-bucketed catch-up interest
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// InterestResult is the full breakdown of one interest computation.
type InterestResult struct {
	Principal     decimal.Decimal
	Rate          Rate
	Window        Window
	Days          int
	ElapsedMonths decimal.Decimal
	Amount        decimal.Decimal
}

// Interest computes simple prorated interest over w.
// An empty window yields zero. Negative principal or rate is an InputError.
func Interest(principal decimal.Decimal, rate Rate, w Window) (InterestResult, error) {
	if principal.IsNegative() {
		return InterestResult{}, &InputError{Field: "principal", Reason: "must not be negative"}
	}
	if rate.IsNegative() {
		return InterestResult{}, &InputError{Field: "interest_rate", Reason: "must not be negative"}
	}

	res := InterestResult{
		Principal:     principal,
		Rate:          rate,
		Window:        w,
		Days:          w.Days(),
		ElapsedMonths: w.ElapsedMonths(),
		Amount:        decimal.Zero,
	}
	if res.Days == 0 {
		return res, nil
	}

	res.Amount = ProratedInterest(principal, rate, res.Days)
	return res, nil
}

// ProratedInterest is the bare formula for a known day count.
func ProratedInterest(principal decimal.Decimal, rate Rate, days int) decimal.Decimal {
	if days <= 0 {
		return decimal.Zero
	}
	numerator := principal.Mul(rate.Percent).Mul(decimal.NewFromInt(int64(days)))
	return RoundMoney(numerator.Div(hundred.Mul(daysPerYear)))
}

// PeriodInterest is interest for a span measured in months rather than days:
// principal * rate * months / 12. Used where the rule is defined per month.
func PeriodInterest(principal decimal.Decimal, rate Rate, months int) decimal.Decimal {
	if months <= 0 {
		return decimal.Zero
	}
	numerator := principal.Mul(rate.Percent).Mul(decimal.NewFromInt(int64(months)))
	return RoundMoney(numerator.Div(hundred.Mul(twelve)))
}
