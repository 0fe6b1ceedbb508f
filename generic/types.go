/*
Package generic provides the domain-agnostic core of the accrual engine.

PURPOSE:
  This package contains the primitives every financial rule in the engine is
  built from: money arithmetic, calendar months, date windows, simple interest
  proration, error kinds and per-record locking. The loan and contribution
  packages build their domain rules on top of it.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal.Decimal amounts, never float64
  - RoundMoney: round-half-up to 2 decimal places (cents)
  - Rate: annual interest rate expressed in percent (16 = 16%)

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Determinism: No function in this package reads the wall clock
  3. Explicit time: Every time-sensitive function takes a reference instant

USAGE:
  principal := generic.MustParseMoney("100000")
  rate := generic.NewRate(16)
  res, err := generic.Interest(principal, rate, generic.Window{From: disbursed, To: settled})

SEE ALSO:
  - interest.go: Interest Calculator
  - time.go: Date parsing and Month helpers
  - errors.go: Error kinds shared by the domain packages
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// MoneyPlaces is the number of decimal places money is rounded to.
const MoneyPlaces = 2

var (
	hundred     = decimal.NewFromInt(100)
	daysPerYear = decimal.NewFromInt(365)
	twelve      = decimal.NewFromInt(12)
)

// NewMoney builds an amount from a whole number of currency units.
func NewMoney(units int64) decimal.Decimal {
	return decimal.NewFromInt(units)
}

// ParseMoney parses a decimal string such as "2000" or "7978.08".
func ParseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &InputError{Field: "amount", Reason: "not a decimal number: " + s}
	}
	return d, nil
}

// MustParseMoney parses s or panics. Use in tests and constant tables only.
func MustParseMoney(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// RoundMoney rounds to cents using round-half-up.
// decimal.Round rounds half away from zero, which is half-up for the
// non-negative amounts the engine produces.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// SumMoney adds amounts.
func SumMoney(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// =============================================================================
// RATE
// =============================================================================

// Rate is an annual interest rate in percent.
type Rate struct {
	Percent decimal.Decimal
}

func NewRate(percent float64) Rate { return Rate{Percent: decimal.NewFromFloat(percent)} }

func NewRateFromDecimal(percent decimal.Decimal) Rate { return Rate{Percent: percent} }

// Fraction returns the rate as a fraction (16% → 0.16).
func (r Rate) Fraction() decimal.Decimal { return r.Percent.Div(hundred) }

func (r Rate) IsZero() bool     { return r.Percent.IsZero() }
func (r Rate) IsNegative() bool { return r.Percent.IsNegative() }
func (r Rate) String() string   { return r.Percent.String() + "%" }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type LoanID string
type MemberID string
type RepaymentID string
type ContributionID string

// =============================================================================
// PAYMENT METHOD
// =============================================================================

type PaymentMethod string

const (
	MethodCash       PaymentMethod = "cash"
	MethodBank       PaymentMethod = "bank"
	MethodMobile     PaymentMethod = "mobile"
	MethodCheck      PaymentMethod = "check"
	MethodSettlement PaymentMethod = "settlement"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodBank, MethodMobile, MethodCheck, MethodSettlement:
		return true
	}
	return false
}
