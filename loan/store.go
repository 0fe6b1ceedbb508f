package loan

import (
	"context"

	"github.com/warp/accrual-engine/generic"
)

// =============================================================================
// STORE - Persistence interface for loans
// =============================================================================

// Store persists loans and their repayments.
// Repayments are APPEND-ONLY: there is no update or delete for them.
type Store interface {
	// CreateLoan persists a new loan at Version 0.
	CreateLoan(ctx context.Context, l Loan) error

	// GetLoan returns the loan with its repayments ordered by payment date.
	// Returns a *generic.NotFoundError when missing.
	GetLoan(ctx context.Context, id generic.LoanID) (*Loan, error)

	// ListLoans returns loans matching filter, newest request first.
	ListLoans(ctx context.Context, filter Filter) ([]Loan, error)

	// UpdateLoan writes the loan's scalar fields if the stored version equals
	// l.Version, and bumps the stored version. Otherwise it returns
	// generic.ErrConcurrentModification.
	UpdateLoan(ctx context.Context, l Loan) error

	// AppendRepayment persists one repayment.
	AppendRepayment(ctx context.Context, r Repayment) error
}

// TxStore wraps Store with transaction support.
// If fn returns an error nothing it wrote is kept.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Filter narrows ListLoans. Zero values match everything.
type Filter struct {
	BorrowerID generic.MemberID
	Status     Status
}

func (f Filter) Matches(l Loan) bool {
	if f.BorrowerID != "" && l.BorrowerID != f.BorrowerID {
		return false
	}
	if f.Status != "" && l.Status != f.Status {
		return false
	}
	return true
}
