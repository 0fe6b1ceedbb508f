/*
state.go - Loan state machine

PURPOSE:
  Governs which status transitions are legal and which fields each one
  mutates. Admin decisions drive every transition; the borrower only
  creates the request.

STATES:
  ┌─────────┐  approve  ┌──────────┐  disburse  ┌───────────┐  complete  ┌───────────┐
  │ pending │──────────▶│ approved │───────────▶│ disbursed │───────────▶│ completed │
  └─────────┘           └──────────┘            └───────────┘            └───────────┘
       │ reject
       ▼
  ┌──────────┐
  │ rejected │
  └──────────┘

  Nothing ever moves backwards. rejected and completed are terminal.

OUT-OF-BAND UPDATES (status unchanged):
  - CorrectApprovalDate: once, while approved or disbursed, never in the future
  - MarkInterestPaid: records the effective date of an interest-only settlement

ATOMICITY:
  Every method validates fully before touching the loan, so a returned error
  means the loan is unchanged.

SEE ALSO:
  - repayment.go: Repayment allocator (approved/disbursed only)
  - settlement.go: Settlement commits call Complete
*/
package loan

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/accrual-engine/generic"
)

// transitions lists the legal next statuses for each status.
var transitions = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusRejected},
	StatusApproved:  {StatusDisbursed},
	StatusDisbursed: {StatusCompleted},
}

// CanTransition reports whether from → to is a legal move.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// =============================================================================
// CREATION
// =============================================================================

// RequestCommand is a member's loan request.
type RequestCommand struct {
	BorrowerID      generic.MemberID
	RequestedAmount decimal.Decimal
	Purpose         string
}

// New creates a pending loan requested at now.
func New(cmd RequestCommand, now time.Time) (*Loan, error) {
	if cmd.BorrowerID == "" {
		return nil, &generic.InputError{Field: "borrower_id", Reason: "is required"}
	}
	if !cmd.RequestedAmount.IsPositive() {
		return nil, &generic.InputError{Field: "requested_amount", Reason: "must be positive"}
	}
	return &Loan{
		ID:               generic.LoanID(uuid.NewString()),
		BorrowerID:       cmd.BorrowerID,
		Purpose:          cmd.Purpose,
		RequestedAmount:  cmd.RequestedAmount,
		Status:           StatusPending,
		RequestDate:      now,
		TotalAmountDue:   decimal.Zero,
		AmountPaid:       decimal.Zero,
		RemainingBalance: decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// ApproveCommand carries the admin's approval decision. Nil fields take
// their defaults: the requested amount and the community's standard rate.
type ApproveCommand struct {
	ApprovedAmount *decimal.Decimal
	InterestRate   *generic.Rate
	Notes          string
}

// Approve moves pending → approved and fixes the amount due.
func (l *Loan) Approve(cmd ApproveCommand, standardRate generic.Rate, now time.Time) error {
	if err := l.require(StatusApproved, "approve"); err != nil {
		return err
	}

	amount := l.RequestedAmount
	if cmd.ApprovedAmount != nil {
		amount = *cmd.ApprovedAmount
	}
	if !amount.IsPositive() {
		return &generic.InputError{Field: "approved_amount", Reason: "must be positive"}
	}

	rate := standardRate
	if cmd.InterestRate != nil {
		rate = *cmd.InterestRate
	}
	if rate.IsNegative() {
		return &generic.InputError{Field: "interest_rate", Reason: "must not be negative"}
	}

	l.ApprovedAmount = decimal.NewNullDecimal(amount)
	l.InterestRate = rate
	l.TotalAmountDue = amount
	l.AmountPaid = decimal.Zero
	l.RemainingBalance = amount
	l.ApprovalDate = timePtr(now)
	l.Status = StatusApproved
	l.appendNotes(cmd.Notes)
	l.UpdatedAt = now
	return nil
}

// Reject moves pending → rejected. Balances are not touched.
func (l *Loan) Reject(notes string, now time.Time) error {
	if err := l.require(StatusRejected, "reject"); err != nil {
		return err
	}
	l.Status = StatusRejected
	l.appendNotes(notes)
	l.UpdatedAt = now
	return nil
}

// Disburse moves approved → disbursed. The disbursement date anchors
// interest accrual until the first interest settlement.
func (l *Loan) Disburse(date, now time.Time) error {
	if err := l.require(StatusDisbursed, "disburse"); err != nil {
		return err
	}
	if date.IsZero() {
		date = generic.DateOf(now)
	}
	if err := generic.NotAfter("disbursement_date", date, now); err != nil {
		return err
	}
	if l.ApprovalDate != nil && generic.DateOf(date).Before(generic.DateOf(*l.ApprovalDate)) {
		return &generic.InputError{Field: "disbursement_date", Reason: "is before the approval date " + generic.FormatDate(*l.ApprovalDate)}
	}
	l.DisbursementDate = timePtr(date)
	l.Status = StatusDisbursed
	l.UpdatedAt = now
	return nil
}

// Complete moves disbursed → completed. The remaining balance must already
// be zero.
func (l *Loan) Complete(date, now time.Time) error {
	if err := l.require(StatusCompleted, "complete"); err != nil {
		return err
	}
	if !l.RemainingBalance.IsZero() {
		return &TransitionError{LoanID: l.ID, From: l.Status, Action: "complete",
			Reason: "outstanding balance " + l.RemainingBalance.StringFixed(2)}
	}
	if date.IsZero() {
		date = generic.DateOf(now)
	}
	if err := generic.NotAfter("actual_repayment_date", date, now); err != nil {
		return err
	}
	l.ActualRepaymentDate = timePtr(date)
	l.Status = StatusCompleted
	l.UpdatedAt = now
	return nil
}

// =============================================================================
// OUT-OF-BAND UPDATES
// =============================================================================

// CorrectApprovalDate overrides the recorded approval date. Allowed once,
// while the loan is approved or disbursed.
func (l *Loan) CorrectApprovalDate(date, now time.Time) error {
	if l.Status != StatusApproved && l.Status != StatusDisbursed {
		return &TransitionError{LoanID: l.ID, From: l.Status, Action: "correct approval date of"}
	}
	if l.ApprovalDateCorrected {
		return &TransitionError{LoanID: l.ID, From: l.Status, Action: "correct approval date of",
			Reason: "approval date was already corrected"}
	}
	if err := generic.NotAfter("approval_date", date, now); err != nil {
		return err
	}
	if date.Before(l.RequestDate) {
		return &generic.InputError{Field: "approval_date", Reason: "is before the request date " + generic.FormatDate(l.RequestDate)}
	}
	if l.DisbursementDate != nil && date.After(*l.DisbursementDate) {
		return &generic.InputError{Field: "approval_date", Reason: "is after the disbursement date " + generic.FormatDate(*l.DisbursementDate)}
	}
	l.ApprovalDate = timePtr(date)
	l.ApprovalDateCorrected = true
	l.UpdatedAt = now
	return nil
}

// MarkInterestPaid records that interest is settled through date without a
// status change.
func (l *Loan) MarkInterestPaid(date, now time.Time) error {
	if l.Status != StatusDisbursed {
		return &TransitionError{LoanID: l.ID, From: l.Status, Action: "mark interest paid on"}
	}
	if err := generic.NotAfter("last_interest_paid_date", date, now); err != nil {
		return err
	}
	if anchor := l.InterestAnchor(); anchor != nil && date.Before(*anchor) {
		return &generic.InputError{Field: "last_interest_paid_date", Reason: "moves the interest anchor backwards from " + generic.FormatDate(*anchor)}
	}
	l.LastInterestPaidDate = timePtr(date)
	l.UpdatedAt = now
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (l *Loan) require(to Status, action string) error {
	if !CanTransition(l.Status, to) {
		return &TransitionError{LoanID: l.ID, From: l.Status, Action: action}
	}
	return nil
}

func (l *Loan) appendNotes(notes string) {
	if notes == "" {
		return
	}
	if l.Notes != "" {
		l.Notes += "\n"
	}
	l.Notes += notes
}
