/*
repayment.go - Repayment allocator

PURPOSE:
  Applies an incoming payment to the principal and interest buckets of a
  loan and appends it to the loan's immutable payment history.

ALLOCATION RULE:
  AmountPaid       += Amount
  RemainingBalance -= PrincipalComponent

  Interest components are recorded for reporting but never reduce the
  principal balance. Loans here are simple-interest and non-amortizing.

PAYMENT TYPES:
  principal: PrincipalComponent == Amount, must not exceed the balance
  interest:  InterestComponent == Amount, PrincipalComponent == 0
  combined:  PrincipalComponent + InterestComponent == Amount

  A zero component on a principal/interest payment defaults to Amount.

SEE ALSO:
  - state.go: Only approved or disbursed loans accept repayments
  - settlement.go: Settlement commits go through RecordRepayment
*/
package loan

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/accrual-engine/generic"
)

// RepaymentCommand is one payment as entered by an admin.
type RepaymentCommand struct {
	Amount             decimal.Decimal
	Type               PaymentType
	PrincipalComponent decimal.Decimal
	InterestComponent  decimal.Decimal
	Method             generic.PaymentMethod
	Date               time.Time
	Notes              string
	ReceiptNumber      string
	RecordedBy         string
}

// RecordRepayment validates cmd against the loan, appends the repayment and
// updates balances. On error the loan is unchanged.
func (l *Loan) RecordRepayment(cmd RepaymentCommand, now time.Time) (Repayment, error) {
	if !l.Status.AcceptsRepayments() {
		return Repayment{}, &TransitionError{LoanID: l.ID, From: l.Status, Action: "record repayment on"}
	}
	if !cmd.Amount.IsPositive() {
		return Repayment{}, &generic.InputError{Field: "amount", Reason: "must be positive"}
	}
	if !cmd.Method.Valid() {
		return Repayment{}, &generic.InputError{Field: "payment_method", Reason: "unknown method " + string(cmd.Method)}
	}
	if cmd.PrincipalComponent.IsNegative() || cmd.InterestComponent.IsNegative() {
		return Repayment{}, &generic.InputError{Field: "components", Reason: "must not be negative"}
	}
	date := cmd.Date
	if date.IsZero() {
		date = now
	}
	if err := generic.NotAfter("payment_date", date, now); err != nil {
		return Repayment{}, err
	}

	principal, interest, err := l.allocate(cmd)
	if err != nil {
		return Repayment{}, err
	}

	receipt := cmd.ReceiptNumber
	if receipt == "" {
		receipt = NewReceiptNumber(date)
	}

	rep := Repayment{
		ID:                 generic.RepaymentID(uuid.NewString()),
		LoanID:             l.ID,
		Amount:             cmd.Amount,
		PaymentDate:        date,
		Method:             cmd.Method,
		Type:               cmd.Type,
		PrincipalComponent: principal,
		InterestComponent:  interest,
		Notes:              cmd.Notes,
		ReceiptNumber:      receipt,
		RecordedBy:         cmd.RecordedBy,
		CreatedAt:          now,
	}

	l.Repayments = append(l.Repayments, rep)
	l.AmountPaid = l.AmountPaid.Add(rep.Amount)
	l.RemainingBalance = l.RemainingBalance.Sub(rep.PrincipalComponent)
	l.UpdatedAt = now
	return rep, nil
}

// allocate resolves the principal/interest split for cmd.
func (l *Loan) allocate(cmd RepaymentCommand) (principal, interest decimal.Decimal, err error) {
	principal, interest = cmd.PrincipalComponent, cmd.InterestComponent

	switch cmd.Type {
	case PaymentPrincipal:
		if principal.IsZero() {
			principal = cmd.Amount
		}
		if !interest.IsZero() || !principal.Equal(cmd.Amount) {
			return decimal.Zero, decimal.Zero, &AmountMismatchError{Type: cmd.Type, Amount: cmd.Amount, Principal: principal, Interest: interest}
		}
	case PaymentInterest:
		if interest.IsZero() {
			interest = cmd.Amount
		}
		if !principal.IsZero() || !interest.Equal(cmd.Amount) {
			return decimal.Zero, decimal.Zero, &AmountMismatchError{Type: cmd.Type, Amount: cmd.Amount, Principal: principal, Interest: interest}
		}
	case PaymentCombined:
		if !principal.Add(interest).Equal(cmd.Amount) {
			return decimal.Zero, decimal.Zero, &AmountMismatchError{Type: cmd.Type, Amount: cmd.Amount, Principal: principal, Interest: interest}
		}
	default:
		return decimal.Zero, decimal.Zero, &generic.InputError{Field: "payment_type", Reason: "unknown type " + string(cmd.Type)}
	}

	if principal.GreaterThan(l.RemainingBalance) {
		return decimal.Zero, decimal.Zero, &OverpaymentError{LoanID: l.ID, Remaining: l.RemainingBalance, Requested: principal}
	}
	return principal, interest, nil
}

// NewReceiptNumber returns "RCP-YYYYMMDD-XXXXXXXX".
func NewReceiptNumber(date time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return "RCP-" + date.UTC().Format("20060102") + "-" + suffix
}

// =============================================================================
// SUMMARY - Derived totals for reporting
// =============================================================================

// Summary splits what a loan has received into its buckets.
type Summary struct {
	RepaymentCount   int
	TotalPrincipal   decimal.Decimal
	TotalInterest    decimal.Decimal
	AmountPaid       decimal.Decimal
	RemainingBalance decimal.Decimal
}

func (l *Loan) Summary() Summary {
	s := Summary{
		RepaymentCount:   len(l.Repayments),
		TotalPrincipal:   decimal.Zero,
		TotalInterest:    decimal.Zero,
		AmountPaid:       l.AmountPaid,
		RemainingBalance: l.RemainingBalance,
	}
	for _, r := range l.Repayments {
		s.TotalPrincipal = s.TotalPrincipal.Add(r.PrincipalComponent)
		s.TotalInterest = s.TotalInterest.Add(r.InterestComponent)
	}
	return s
}

// Verify checks the balance invariants against the repayment history.
func (l *Loan) Verify() error {
	s := l.Summary()
	if l.RemainingBalance.IsNegative() {
		return &generic.InputError{Field: "remaining_balance", Reason: "is negative"}
	}
	if l.ApprovedAmount.Valid && !l.Approved().Sub(l.RemainingBalance).Equal(s.TotalPrincipal) {
		return &generic.InputError{Field: "remaining_balance",
			Reason: "approved " + l.Approved().StringFixed(2) + " - remaining " + l.RemainingBalance.StringFixed(2) +
				" != principal repaid " + s.TotalPrincipal.StringFixed(2)}
	}
	paid := decimal.Zero
	for _, r := range l.Repayments {
		paid = paid.Add(r.Amount)
	}
	if !paid.Equal(l.AmountPaid) {
		return &generic.InputError{Field: "amount_paid", Reason: "does not match repayment history"}
	}
	return nil
}
