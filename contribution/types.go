// Package contribution tracks members' monthly contributions: which months a
// member owes, which are paid, and what a late joiner must pay to catch up
// with members who were there from the opening month.
package contribution

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/accrual-engine/generic"
)

// =============================================================================
// MEMBER
// =============================================================================

// Member is the subset of a community member the planner needs.
type Member struct {
	ID        generic.MemberID
	Name      string
	JoinDate  time.Time
	CreatedAt time.Time
}

// StartMonth is the first month the member owes a contribution: the later of
// the community's opening month and the member's join month.
func (m Member) StartMonth(cfg generic.CommunityConfig) generic.Month {
	opening := cfg.OpeningMonth()
	if m.JoinDate.IsZero() {
		return opening
	}
	return generic.MaxMonth(opening, generic.MonthOf(m.JoinDate))
}

// =============================================================================
// CONTRIBUTION
// =============================================================================

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusOverdue:
		return true
	}
	return false
}

// Outstanding reports whether the record still awaits payment.
func (s Status) Outstanding() bool { return s == StatusPending || s == StatusOverdue }

// Contribution is one member's record for one calendar month.
// (MemberID, Month) is unique.
type Contribution struct {
	ID            generic.ContributionID
	MemberID      generic.MemberID
	Month         generic.Month
	Amount        decimal.Decimal
	Status        Status
	PaidDate      *time.Time
	PaymentMethod generic.PaymentMethod
	RecordedBy    string
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Year is the calendar year of the contribution month.
func (c Contribution) Year() int { return c.Month.Year }
