package generic

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// WINDOW - Half-open accrual window [From, To)
// =============================================================================

// Window is the span interest accrues over. From is inclusive, To exclusive,
// so consecutive windows sharing an endpoint never count a day twice.
type Window struct {
	From time.Time
	To   time.Time
}

// IsEmpty reports whether the window covers no time (To <= From).
func (w Window) IsEmpty() bool { return !w.To.After(w.From) }

// Duration is the absolute length of the window, zero when empty.
func (w Window) Duration() time.Duration {
	if w.IsEmpty() {
		return 0
	}
	return w.To.Sub(w.From)
}

// Days is the number of whole days elapsed. A partial trailing day does not
// count.
func (w Window) Days() int {
	return int(w.Duration() / (24 * time.Hour))
}

// ExactDays includes the fractional part contributed by time-of-day.
func (w Window) ExactDays() decimal.Decimal {
	return decimal.NewFromInt(int64(w.Duration())).Div(decimal.NewFromInt(int64(24 * time.Hour)))
}

// ElapsedMonths expresses ExactDays in 365/12-day months, rounded to 4
// places. Reported for audit display only; interest uses Days.
func (w Window) ElapsedMonths() decimal.Decimal {
	return w.ExactDays().Mul(twelve).Div(daysPerYear).Round(4)
}

func (w Window) String() string {
	return "[" + FormatDate(w.From) + ", " + FormatDate(w.To) + ")"
}
