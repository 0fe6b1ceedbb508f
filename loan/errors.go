package loan

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/accrual-engine/generic"
)

// TransitionError is returned when an operation is not legal from the
// loan's current status.
type TransitionError struct {
	LoanID generic.LoanID
	From   Status
	Action string
	Reason string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("cannot %s loan %s in status %s", e.Action, e.LoanID, e.From)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Unwrap() error { return generic.ErrInvalidTransition }

// OverpaymentError is returned when a principal component exceeds the
// remaining balance.
type OverpaymentError struct {
	LoanID    generic.LoanID
	Remaining decimal.Decimal
	Requested decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("principal %s exceeds remaining balance %s on loan %s",
		e.Requested.StringFixed(2), e.Remaining.StringFixed(2), e.LoanID)
}

func (e *OverpaymentError) Unwrap() error { return generic.ErrOverpayment }

// AmountMismatchError is returned when a payment's components don't add up
// to its amount.
type AmountMismatchError struct {
	Type      PaymentType
	Amount    decimal.Decimal
	Principal decimal.Decimal
	Interest  decimal.Decimal
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("%s payment of %s: principal %s + interest %s does not match",
		e.Type, e.Amount.StringFixed(2), e.Principal.StringFixed(2), e.Interest.StringFixed(2))
}

func (e *AmountMismatchError) Unwrap() error { return generic.ErrAmountMismatch }

// AlreadySettledError is returned when interest for the requested window
// (or calendar year, depending on policy) was already paid.
type AlreadySettledError struct {
	LoanID      generic.LoanID
	PaidThrough string
	Reason      string
}

func (e *AlreadySettledError) Error() string {
	return fmt.Sprintf("interest on loan %s already settled through %s: %s", e.LoanID, e.PaidThrough, e.Reason)
}

func (e *AlreadySettledError) Unwrap() error { return generic.ErrAlreadySettled }
