// Package loan implements the loan lifecycle on top of the generic engine:
// the state machine, the repayment allocator and the settlement calculator.
//
// Every rule is a method or function over an explicit Loan value and an
// explicit reference instant. Service adds loading, locking and persistence.
package loan

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/accrual-engine/generic"
)

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusDisbursed Status = "disbursed"
	StatusCompleted Status = "completed"
)

// IsTerminal reports whether no further financial mutation is allowed.
func (s Status) IsTerminal() bool { return s == StatusRejected || s == StatusCompleted }

// AcceptsRepayments reports whether repayments may be recorded.
func (s Status) AcceptsRepayments() bool { return s == StatusApproved || s == StatusDisbursed }

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusDisbursed, StatusCompleted:
		return true
	}
	return false
}

// =============================================================================
// PAYMENT TYPE
// =============================================================================

// PaymentType tags which bucket a repayment is applied to.
type PaymentType string

const (
	PaymentPrincipal PaymentType = "principal"
	PaymentInterest  PaymentType = "interest"
	PaymentCombined  PaymentType = "combined"
)

func (t PaymentType) Valid() bool {
	switch t {
	case PaymentPrincipal, PaymentInterest, PaymentCombined:
		return true
	}
	return false
}

// =============================================================================
// REPAYMENT - Immutable, append-only child of one loan
// =============================================================================

type Repayment struct {
	ID                 generic.RepaymentID
	LoanID             generic.LoanID
	Amount             decimal.Decimal
	PaymentDate        time.Time
	Method             generic.PaymentMethod
	Type               PaymentType
	PrincipalComponent decimal.Decimal
	InterestComponent  decimal.Decimal
	Notes              string
	ReceiptNumber      string
	RecordedBy         string
	CreatedAt          time.Time
}

// =============================================================================
// LOAN
// =============================================================================

// Loan is one member's loan and its repayment history.
//
// INVARIANTS:
//   - RemainingBalance = ApprovedAmount - sum(PrincipalComponent) >= 0
//   - AmountPaid = sum(Amount) over Repayments
//   - Status only moves forward (see state.go)
type Loan struct {
	ID         generic.LoanID
	BorrowerID generic.MemberID
	Purpose    string

	RequestedAmount decimal.Decimal
	ApprovedAmount  decimal.NullDecimal
	InterestRate    generic.Rate
	Status          Status

	RequestDate           time.Time
	ApprovalDate          *time.Time
	ApprovalDateCorrected bool
	DisbursementDate      *time.Time
	ActualRepaymentDate   *time.Time
	LastInterestPaidDate  *time.Time

	// TotalAmountDue is fixed at approval to the approved principal.
	// Interest is settled separately and never added here.
	TotalAmountDue   decimal.Decimal
	AmountPaid       decimal.Decimal
	RemainingBalance decimal.Decimal

	Repayments []Repayment

	Notes     string
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Approved returns the approved principal, or zero before approval.
func (l *Loan) Approved() decimal.Decimal {
	if !l.ApprovedAmount.Valid {
		return decimal.Zero
	}
	return l.ApprovedAmount.Decimal
}

// InterestAnchor is where the next interest window starts: the last
// interest-paid date if any, else the disbursement date. Nil before
// disbursement.
func (l *Loan) InterestAnchor() *time.Time {
	if l.LastInterestPaidDate != nil {
		return l.LastInterestPaidDate
	}
	return l.DisbursementDate
}

// Clone returns a deep copy so a failed operation can be discarded.
func (l *Loan) Clone() *Loan {
	c := *l
	c.Repayments = append([]Repayment(nil), l.Repayments...)
	c.ApprovalDate = cloneTime(l.ApprovalDate)
	c.DisbursementDate = cloneTime(l.DisbursementDate)
	c.ActualRepaymentDate = cloneTime(l.ActualRepaymentDate)
	c.LastInterestPaidDate = cloneTime(l.LastInterestPaidDate)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func timePtr(t time.Time) *time.Time { return &t }
