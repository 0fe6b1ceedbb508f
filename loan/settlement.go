/*
settlement.go - Settlement calculator

PURPOSE:
  Quotes what a disbursed loan owes as of an admin-chosen settlement date,
  and commits either quote as a repayment plus a state change.

QUOTE:
  window        = [lastInterestPaidDate or disbursementDate, settlementDate)
  interestOnly  = Interest(basis, rate, window)
  fullSettlement = remainingBalance + interestOnly

  A quote is a pure function of (loan, settlement date, policy). Nothing is
  cached: changing the date means calling QuoteSettlement again.

COMMIT:
  Interest-only: one "interest" repayment, lastInterestPaidDate = date,
                 loan stays disbursed.
  Full:          one "combined" repayment (remaining principal + interest),
                 lastInterestPaidDate = date, then Complete.

POLICY:
  Guard
    window (default)  A window already paid through simply quotes zero.
                      Committing a zero quote fails with AlreadySettled.
    calendar_year     Committing an interest-only settlement fails with
                      AlreadySettled when interest was already paid in the
                      settlement date's calendar year. Quotes and full
                      settlement are unaffected; the quote carries
                      InterestOnlyBlocked instead.
  PrincipalBasis
    approved_amount (default)    Interest accrues on the approved amount
                                 regardless of principal repaid.
    remaining_balance            Interest accrues on the outstanding
                                 principal.

  In both bases the principal part of a full settlement is the remaining
  balance, so RemainingBalance always reaches exactly zero.

SEE ALSO:
  - generic/interest.go: Interest Calculator
  - repayment.go: RecordRepayment
*/
package loan

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/accrual-engine/generic"
)

// =============================================================================
// POLICY
// =============================================================================

type SettlementGuard string

const (
	GuardWindow       SettlementGuard = "window"
	GuardCalendarYear SettlementGuard = "calendar_year"
)

type PrincipalBasis string

const (
	BasisRemainingBalance PrincipalBasis = "remaining_balance"
	BasisApprovedAmount   PrincipalBasis = "approved_amount"
)

// SettlementPolicy resolves the settlement rules that are a product choice.
type SettlementPolicy struct {
	Guard SettlementGuard
	Basis PrincipalBasis
}

func DefaultSettlementPolicy() SettlementPolicy {
	return SettlementPolicy{Guard: GuardWindow, Basis: BasisApprovedAmount}
}

func (p SettlementPolicy) Validate() error {
	switch p.Guard {
	case GuardWindow, GuardCalendarYear:
	default:
		return &generic.InputError{Field: "settlement.guard", Reason: fmt.Sprintf("unknown guard %q", p.Guard)}
	}
	switch p.Basis {
	case BasisRemainingBalance, BasisApprovedAmount:
	default:
		return &generic.InputError{Field: "settlement.principal_basis", Reason: fmt.Sprintf("unknown basis %q", p.Basis)}
	}
	return nil
}

// =============================================================================
// QUOTE
// =============================================================================

// AnchorSource says where the interest window started.
type AnchorSource string

const (
	AnchorDisbursement     AnchorSource = "disbursement"
	AnchorLastInterestPaid AnchorSource = "last_interest_paid"
)

// Quote is the settlement position of a loan on one date.
type Quote struct {
	LoanID         generic.LoanID
	SettlementDate time.Time
	Window         generic.Window
	Anchor         AnchorSource
	Days           int
	ElapsedMonths  decimal.Decimal
	InterestRate   generic.Rate
	Policy         SettlementPolicy

	// InterestBasis is the principal interest was computed on.
	InterestBasis decimal.Decimal

	// Principal is what a full settlement repays: the remaining balance.
	Principal decimal.Decimal

	InterestOnly   decimal.Decimal
	FullSettlement decimal.Decimal

	// InterestOnlyBlocked is set when the calendar-year guard would refuse
	// an interest-only commit on this date.
	InterestOnlyBlocked bool
}

// QuoteSettlement prices interest-only and full settlement of l on date.
func QuoteSettlement(l *Loan, date, now time.Time, policy SettlementPolicy) (Quote, error) {
	if l.Status != StatusDisbursed || l.DisbursementDate == nil {
		return Quote{}, &TransitionError{LoanID: l.ID, From: l.Status, Action: "settle"}
	}
	if date.IsZero() {
		return Quote{}, &generic.InputError{Field: "settlement_date", Reason: "is required"}
	}
	if err := generic.NotAfter("settlement_date", date, now); err != nil {
		return Quote{}, err
	}

	anchor, source := *l.DisbursementDate, AnchorDisbursement
	if l.LastInterestPaidDate != nil {
		anchor, source = *l.LastInterestPaidDate, AnchorLastInterestPaid
	}
	if date.Before(anchor) {
		return Quote{}, &generic.InputError{Field: "settlement_date",
			Reason: "is before the interest window start " + generic.FormatDate(anchor)}
	}

	basis := l.RemainingBalance
	if policy.Basis == BasisApprovedAmount {
		basis = l.Approved()
	}

	res, err := generic.Interest(basis, l.InterestRate, generic.Window{From: anchor, To: date})
	if err != nil {
		return Quote{}, err
	}

	return Quote{
		LoanID:         l.ID,
		SettlementDate: date,
		Window:         res.Window,
		Anchor:         source,
		Days:           res.Days,
		ElapsedMonths:  res.ElapsedMonths,
		InterestRate:   l.InterestRate,
		Policy:         policy,
		InterestBasis:  basis,
		Principal:      l.RemainingBalance,
		InterestOnly:   res.Amount,
		FullSettlement: l.RemainingBalance.Add(res.Amount),

		InterestOnlyBlocked: policy.Guard == GuardCalendarYear && l.LastInterestPaidDate != nil &&
			l.LastInterestPaidDate.UTC().Year() == date.UTC().Year(),
	}, nil
}

// =============================================================================
// COMMIT
// =============================================================================

// SettlementCommand is the admin's instruction to settle on Date.
type SettlementCommand struct {
	Date          time.Time
	Method        generic.PaymentMethod
	Notes         string
	ReceiptNumber string
	RecordedBy    string
}

// SettlementResult is what a commit produced.
type SettlementResult struct {
	Quote     Quote
	Repayment *Repayment
}

// CommitInterestOnly pays the interest accrued through cmd.Date.
// The loan stays disbursed and its interest anchor moves to cmd.Date.
func CommitInterestOnly(l *Loan, cmd SettlementCommand, now time.Time, policy SettlementPolicy) (SettlementResult, error) {
	q, err := QuoteSettlement(l, cmd.Date, now, policy)
	if err != nil {
		return SettlementResult{}, err
	}
	if q.InterestOnlyBlocked {
		return SettlementResult{}, &AlreadySettledError{
			LoanID:      l.ID,
			PaidThrough: generic.FormatDate(*l.LastInterestPaidDate),
			Reason:      "interest for " + strconv.Itoa(cmd.Date.UTC().Year()) + " was already paid",
		}
	}
	if !q.InterestOnly.IsPositive() {
		if l.LastInterestPaidDate != nil {
			return SettlementResult{}, &AlreadySettledError{
				LoanID:      l.ID,
				PaidThrough: generic.FormatDate(*l.LastInterestPaidDate),
				Reason:      "no interest accrued in window " + q.Window.String(),
			}
		}
		return SettlementResult{}, &generic.InputError{Field: "settlement_date",
			Reason: "no interest has accrued since disbursement"}
	}

	rep, err := l.RecordRepayment(RepaymentCommand{
		Amount:            q.InterestOnly,
		Type:              PaymentInterest,
		InterestComponent: q.InterestOnly,
		Method:            methodOrSettlement(cmd.Method),
		Date:              cmd.Date,
		Notes:             settlementNotes("Interest-only settlement", q, cmd.Notes),
		ReceiptNumber:     cmd.ReceiptNumber,
		RecordedBy:        cmd.RecordedBy,
	}, now)
	if err != nil {
		return SettlementResult{}, err
	}
	l.LastInterestPaidDate = timePtr(cmd.Date)
	return SettlementResult{Quote: q, Repayment: &rep}, nil
}

// CommitFullSettlement pays the remaining principal plus accrued interest
// and completes the loan.
func CommitFullSettlement(l *Loan, cmd SettlementCommand, now time.Time, policy SettlementPolicy) (SettlementResult, error) {
	q, err := QuoteSettlement(l, cmd.Date, now, policy)
	if err != nil {
		return SettlementResult{}, err
	}

	result := SettlementResult{Quote: q}
	if q.FullSettlement.IsPositive() {
		rep, err := l.RecordRepayment(RepaymentCommand{
			Amount:             q.FullSettlement,
			Type:               PaymentCombined,
			PrincipalComponent: q.Principal,
			InterestComponent:  q.InterestOnly,
			Method:             methodOrSettlement(cmd.Method),
			Date:               cmd.Date,
			Notes:              settlementNotes("Full settlement", q, cmd.Notes),
			ReceiptNumber:      cmd.ReceiptNumber,
			RecordedBy:         cmd.RecordedBy,
		}, now)
		if err != nil {
			return SettlementResult{}, err
		}
		result.Repayment = &rep
	}

	l.LastInterestPaidDate = timePtr(cmd.Date)
	if err := l.Complete(cmd.Date, now); err != nil {
		return SettlementResult{}, err
	}
	return result, nil
}

func methodOrSettlement(m generic.PaymentMethod) generic.PaymentMethod {
	if m == "" {
		return generic.MethodSettlement
	}
	return m
}

func settlementNotes(kind string, q Quote, extra string) string {
	s := fmt.Sprintf("%s: %d days %s at %s on %s",
		kind, q.Days, q.Window.String(), q.InterestRate.String(), q.InterestBasis.StringFixed(2))
	if extra != "" {
		s += ". " + extra
	}
	return s
}
