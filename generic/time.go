package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// MONTH - Calendar month key (YYYY-MM)
// =============================================================================

// Month identifies a calendar month. It is the key contributions are
// tracked under and the unit the catch-up buckets are built from.
type Month struct {
	Year  int
	Month time.Month
}

const monthLayout = "2006-01"

// MonthOf returns the calendar month containing t, evaluated in UTC.
func MonthOf(t time.Time) Month {
	u := t.UTC()
	return Month{Year: u.Year(), Month: u.Month()}
}

func NewMonth(year int, month time.Month) Month {
	return MonthOf(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))
}

// ParseMonth parses a "YYYY-MM" key.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return Month{}, &InputError{Field: "month", Reason: fmt.Sprintf("expected YYYY-MM, got %q", s)}
	}
	return MonthOf(t), nil
}

func (m Month) String() string { return m.Start().Format(monthLayout) }

// Start returns the first instant of the month (UTC).
func (m Month) Start() time.Time { return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC) }

func (m Month) AddMonths(n int) Month { return MonthOf(m.Start().AddDate(0, n, 0)) }
func (m Month) Next() Month           { return m.AddMonths(1) }
func (m Month) Prev() Month           { return m.AddMonths(-1) }

func (m Month) index() int { return m.Year*12 + int(m.Month) - 1 }

func (m Month) Before(o Month) bool { return m.index() < o.index() }
func (m Month) After(o Month) bool  { return m.index() > o.index() }
func (m Month) Equal(o Month) bool  { return m.index() == o.index() }
func (m Month) IsZero() bool        { return m.Year == 0 && m.Month == 0 }

// MaxMonth returns the later of two months.
func MaxMonth(a, b Month) Month {
	if a.After(b) {
		return a
	}
	return b
}

// MinMonth returns the earlier of two months.
func MinMonth(a, b Month) Month {
	if a.Before(b) {
		return a
	}
	return b
}

// MonthRange returns every month in [from, through]. Empty when through < from.
func MonthRange(from, through Month) []Month {
	if through.Before(from) {
		return nil
	}
	months := make([]Month, 0, through.index()-from.index()+1)
	for m := from; !m.After(through); m = m.Next() {
		months = append(months, m)
	}
	return months
}

// LastCompletedMonth is the month immediately preceding now's month.
// The current month is never "completed".
func LastCompletedMonth(now time.Time) Month {
	return MonthOf(now).Prev()
}

// =============================================================================
// DATE HELPERS
// =============================================================================

const dateLayout = "2006-01-02"

// ParseDate accepts "2006-01-02" or RFC3339.
func ParseDate(field, s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, &InputError{Field: field, Reason: fmt.Sprintf("expected YYYY-MM-DD or RFC3339, got %q", s)}
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string { return t.UTC().Format(dateLayout) }

// Date is a shorthand for a UTC midnight.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf truncates t to midnight of its UTC calendar day.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return Date(u.Year(), u.Month(), u.Day())
}

// NotAfter fails with an InputError when t is later than now.
func NotAfter(field string, t, now time.Time) error {
	if t.After(now) {
		return &InputError{Field: field, Reason: fmt.Sprintf("%s is in the future (now %s)", FormatDate(t), FormatDate(now))}
	}
	return nil
}
