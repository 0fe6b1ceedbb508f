package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COMMUNITY CONFIG - Read-only constants supplied by the surrounding app
// =============================================================================

// DefaultCatchUpSpreadMonths is how many months a catch-up payment is
// spread over when the member pays in instalments.
const DefaultCatchUpSpreadMonths = 24

// CatchUpEnd picks the last month a late joiner is charged for.
type CatchUpEnd string

const (
	// CatchUpThroughReference charges every month from opening through the
	// last month completed before the reference time.
	CatchUpThroughReference CatchUpEnd = "reference_now"

	// CatchUpThroughJoining stops at the month before the joining date, so
	// months after joining are left to the member's regular contributions.
	CatchUpThroughJoining CatchUpEnd = "joining_date"
)

// DefaultStandardLoanRate applies when a loan is approved without a rate.
var DefaultStandardLoanRate = NewRate(16)

// CommunityConfig is immutable at runtime. The engine only reads it.
type CommunityConfig struct {
	Name string

	// OpeningDate is when the community started collecting contributions.
	OpeningDate time.Time

	// DefaultContribution is the monthly amount expected from each member.
	DefaultContribution decimal.Decimal

	// AnnualInterestRate credits late joiners' catch-up contributions.
	AnnualInterestRate Rate

	// StandardLoanRate is used when an approval does not name a rate.
	StandardLoanRate Rate

	// CatchUpSpreadMonths is the instalment window for catch-up payments.
	CatchUpSpreadMonths int

	// CatchUpThrough picks the end of the catch-up window.
	CatchUpThrough CatchUpEnd
}

// OpeningMonth is the first month contributions are required.
func (c CommunityConfig) OpeningMonth() Month { return MonthOf(c.OpeningDate) }

// WithDefaults fills zero-valued optional fields.
func (c CommunityConfig) WithDefaults() CommunityConfig {
	if c.StandardLoanRate.Percent.IsZero() {
		c.StandardLoanRate = DefaultStandardLoanRate
	}
	if c.CatchUpSpreadMonths <= 0 {
		c.CatchUpSpreadMonths = DefaultCatchUpSpreadMonths
	}
	if c.CatchUpThrough == "" {
		c.CatchUpThrough = CatchUpThroughReference
	}
	return c
}

// Validate checks the fields every calculation depends on.
func (c CommunityConfig) Validate() error {
	if c.OpeningDate.IsZero() {
		return &InputError{Field: "opening_date", Reason: "is required"}
	}
	if !c.DefaultContribution.IsPositive() {
		return &InputError{Field: "default_contribution_amount", Reason: "must be positive"}
	}
	if c.AnnualInterestRate.IsNegative() {
		return &InputError{Field: "annual_interest_rate", Reason: "must not be negative"}
	}
	if c.StandardLoanRate.IsNegative() {
		return &InputError{Field: "standard_loan_rate", Reason: "must not be negative"}
	}
	if c.CatchUpSpreadMonths < 0 {
		return &InputError{Field: "catch_up_spread_months", Reason: "must not be negative"}
	}
	switch c.CatchUpThrough {
	case "", CatchUpThroughReference, CatchUpThroughJoining:
	default:
		return &InputError{Field: "catch_up_through", Reason: "unknown value " + string(c.CatchUpThrough)}
	}
	return nil
}
