/*
planner.go - Historical contribution planner

PURPOSE:
  Works out, for one member and a reference instant, which calendar months
  the member owed a contribution for and how each one stands.

MONTH WINDOW:
  start = max(community opening month, member join month)
  end   = month before now's month (the current month is never included)

PARTITION:
  paid     record exists, status paid
  pending  record exists, status pending or overdue
  missing  no record

  Totals use each record's own amount for paid/pending months and the
  community default for missing months:

    TotalRequired = TotalPaid + TotalPending + TotalMissing

BULK CREATE:
  Plan is read-only. PrepareMissing turns an admin's selection of months
  into new records. Months that already have a record are skipped, so the
  same selection can be submitted twice without creating duplicates.

SEE ALSO:
  - catchup.go: Lump-sum payment for members who joined late
  - service.go: Persists what PrepareMissing builds
*/
package contribution

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/accrual-engine/generic"
)

// =============================================================================
// PLAN
// =============================================================================

// Plan is a member's contribution position as of ReferenceNow.
type Plan struct {
	MemberID     generic.MemberID
	ReferenceNow time.Time
	StartMonth   generic.Month
	EndMonth     generic.Month

	// DefaultAmount is what a missing month is valued at.
	DefaultAmount decimal.Decimal

	AllMonths     []generic.Month
	PaidMonths    []generic.Month
	PendingMonths []generic.Month
	MissingMonths []generic.Month

	TotalRequired decimal.Decimal
	TotalPaid     decimal.Decimal
	TotalPending  decimal.Decimal
	TotalMissing  decimal.Decimal

	IsCurrent bool
}

// Contains reports whether m is one of the months the plan covers.
func (p Plan) Contains(m generic.Month) bool {
	return len(p.AllMonths) > 0 && !m.Before(p.StartMonth) && !m.After(p.EndMonth)
}

// BuildPlan partitions the member's required months against existing.
// Records outside the window are ignored.
func BuildPlan(cfg generic.CommunityConfig, member Member, existing []Contribution, now time.Time) (Plan, error) {
	if err := cfg.Validate(); err != nil {
		return Plan{}, err
	}

	byMonth := make(map[generic.Month]Contribution, len(existing))
	for _, c := range existing {
		if c.MemberID == member.ID {
			byMonth[c.Month] = c
		}
	}

	start := member.StartMonth(cfg)
	end := generic.LastCompletedMonth(now)

	plan := Plan{
		MemberID:      member.ID,
		ReferenceNow:  now,
		StartMonth:    start,
		EndMonth:      end,
		DefaultAmount: cfg.DefaultContribution,
		AllMonths:     generic.MonthRange(start, end),
		TotalPaid:     decimal.Zero,
		TotalPending:  decimal.Zero,
		TotalMissing:  decimal.Zero,
	}

	for _, m := range plan.AllMonths {
		c, ok := byMonth[m]
		switch {
		case !ok:
			plan.MissingMonths = append(plan.MissingMonths, m)
			plan.TotalMissing = plan.TotalMissing.Add(cfg.DefaultContribution)
		case c.Status == StatusPaid:
			plan.PaidMonths = append(plan.PaidMonths, m)
			plan.TotalPaid = plan.TotalPaid.Add(c.Amount)
		default:
			plan.PendingMonths = append(plan.PendingMonths, m)
			plan.TotalPending = plan.TotalPending.Add(c.Amount)
		}
	}

	plan.TotalRequired = generic.SumMoney(plan.TotalPaid, plan.TotalPending, plan.TotalMissing)
	plan.IsCurrent = len(plan.MissingMonths) == 0
	return plan, nil
}

// =============================================================================
// BULK CREATE
// =============================================================================

// CreateMissingCommand selects months from a plan to create records for.
type CreateMissingCommand struct {
	MemberID generic.MemberID
	Months   []generic.Month

	// Amount defaults to the community's default contribution.
	Amount decimal.Decimal

	// MarkPaid creates the records as paid on PaidDate (default now) with
	// Method. Otherwise they are created pending.
	MarkPaid   bool
	PaidDate   time.Time
	Method     generic.PaymentMethod
	RecordedBy string
	Notes      string
}

// CreateMissingResult lists what a bulk create did.
type CreateMissingResult struct {
	Created []Contribution
	Skipped []generic.Month
}

// PrepareMissing validates cmd against the member's plan and builds one new
// record per selected month that has none yet. Selected months that already
// have a record are returned as skipped.
func PrepareMissing(cfg generic.CommunityConfig, member Member, existing []Contribution, cmd CreateMissingCommand, now time.Time) (CreateMissingResult, error) {
	if len(cmd.Months) == 0 {
		return CreateMissingResult{}, &generic.InputError{Field: "months", Reason: "at least one month is required"}
	}

	amount := cmd.Amount
	if amount.IsZero() {
		amount = cfg.DefaultContribution
	}
	if !amount.IsPositive() {
		return CreateMissingResult{}, &generic.InputError{Field: "amount", Reason: "must be positive"}
	}

	var paidDate *time.Time
	if cmd.MarkPaid {
		if !cmd.Method.Valid() {
			return CreateMissingResult{}, &generic.InputError{Field: "payment_method", Reason: "unknown method " + string(cmd.Method)}
		}
		d := cmd.PaidDate
		if d.IsZero() {
			d = now
		}
		if err := generic.NotAfter("paid_date", d, now); err != nil {
			return CreateMissingResult{}, err
		}
		paidDate = &d
	} else if cmd.Method != "" && !cmd.Method.Valid() {
		return CreateMissingResult{}, &generic.InputError{Field: "payment_method", Reason: "unknown method " + string(cmd.Method)}
	}

	plan, err := BuildPlan(cfg, member, existing, now)
	if err != nil {
		return CreateMissingResult{}, err
	}

	have := make(map[generic.Month]bool, len(existing))
	for _, c := range existing {
		if c.MemberID == member.ID {
			have[c.Month] = true
		}
	}

	var res CreateMissingResult
	seen := make(map[generic.Month]bool, len(cmd.Months))
	for _, m := range cmd.Months {
		if !plan.Contains(m) {
			return CreateMissingResult{}, &generic.InputError{Field: "months",
				Reason: m.String() + " is outside " + plan.StartMonth.String() + ".." + plan.EndMonth.String()}
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		if have[m] {
			res.Skipped = append(res.Skipped, m)
			continue
		}

		c := Contribution{
			ID:         generic.ContributionID(uuid.NewString()),
			MemberID:   member.ID,
			Month:      m,
			Amount:     amount,
			Status:     StatusPending,
			RecordedBy: cmd.RecordedBy,
			Notes:      cmd.Notes,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if cmd.MarkPaid {
			c.Status = StatusPaid
			c.PaidDate = paidDate
			c.PaymentMethod = cmd.Method
		}
		res.Created = append(res.Created, c)
	}
	return res, nil
}

// =============================================================================
// PAYMENT RECORDING
// =============================================================================

// PaymentCommand marks an outstanding contribution as paid.
type PaymentCommand struct {
	Method     generic.PaymentMethod
	Date       time.Time
	RecordedBy string
	Notes      string
}

// RecordPayment moves c from pending or overdue to paid. On error c is
// unchanged.
func (c *Contribution) RecordPayment(cmd PaymentCommand, now time.Time) error {
	if !c.Status.Outstanding() {
		return &generic.InputError{Field: "status", Reason: "contribution " + c.Month.String() + " is already " + string(c.Status)}
	}
	if !cmd.Method.Valid() {
		return &generic.InputError{Field: "payment_method", Reason: "unknown method " + string(cmd.Method)}
	}
	date := cmd.Date
	if date.IsZero() {
		date = now
	}
	if err := generic.NotAfter("paid_date", date, now); err != nil {
		return err
	}

	c.Status = StatusPaid
	c.PaidDate = &date
	c.PaymentMethod = cmd.Method
	if cmd.RecordedBy != "" {
		c.RecordedBy = cmd.RecordedBy
	}
	if cmd.Notes != "" {
		c.Notes = cmd.Notes
	}
	c.UpdatedAt = now
	return nil
}

// MarkOverdue flags a pending contribution whose month has ended.
// It reports whether c changed.
func (c *Contribution) MarkOverdue(now time.Time) bool {
	if c.Status != StatusPending || !c.Month.Before(generic.MonthOf(now)) {
		return false
	}
	c.Status = StatusOverdue
	c.UpdatedAt = now
	return true
}

// =============================================================================
// MONTHLY SETUP
// =============================================================================

// PrepareMonth builds a pending record for month for every member who owes
// one and does not have it yet. existing holds the month's current records.
func PrepareMonth(cfg generic.CommunityConfig, members []Member, existing []Contribution, month generic.Month, now time.Time) ([]Contribution, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if month.IsZero() {
		return nil, &generic.InputError{Field: "month", Reason: "is required"}
	}
	if month.After(generic.MonthOf(now)) {
		return nil, &generic.InputError{Field: "month", Reason: month.String() + " has not started"}
	}

	have := make(map[generic.MemberID]bool, len(existing))
	for _, c := range existing {
		if c.Month.Equal(month) {
			have[c.MemberID] = true
		}
	}

	var out []Contribution
	for _, m := range members {
		if have[m.ID] || month.Before(m.StartMonth(cfg)) {
			continue
		}
		out = append(out, Contribution{
			ID:        generic.ContributionID(uuid.NewString()),
			MemberID:  m.ID,
			Month:     month,
			Amount:    cfg.DefaultContribution,
			Status:    StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return out, nil
}
