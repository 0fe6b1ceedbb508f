/*
service.go - Loan service: load, lock, apply, save

PURPOSE:
  Wraps the pure loan rules with persistence. Every mutating call follows
  the same path:

    1. Lock the loan (generic.Locker): one writer per loan
    2. Load a fresh copy from the store
    3. Apply the rule to a clone (state.go, repayment.go, settlement.go)
    4. Save loan + new repayments in one store transaction, guarded by the
       loan's version

  A failure at any step leaves the stored loan untouched.

RETRIES:
  Commits are not idempotent. On a timeout or ErrConcurrentModification the
  caller must re-read the loan before deciding to retry.

SEE ALSO:
  - store.go: Store / TxStore
  - store/memory, store/sqlite: Implementations
*/
package loan

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/warp/accrual-engine/generic"
)

type Service struct {
	Store  TxStore
	Locker generic.Locker
	Config generic.CommunityConfig
	Policy SettlementPolicy
}

// NewService builds a service. A nil locker falls back to an in-process
// KeyedMutex.
func NewService(store TxStore, locker generic.Locker, cfg generic.CommunityConfig, policy SettlementPolicy) *Service {
	if locker == nil {
		locker = generic.NewKeyedMutex()
	}
	return &Service{Store: store, Locker: locker, Config: cfg.WithDefaults(), Policy: policy}
}

// =============================================================================
// READS
// =============================================================================

func (s *Service) Get(ctx context.Context, id generic.LoanID) (*Loan, error) {
	return s.Store.GetLoan(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]Loan, error) {
	return s.Store.ListLoans(ctx, f)
}

// Quote prices settlement of loan id on date. Read-only.
func (s *Service) Quote(ctx context.Context, id generic.LoanID, date, now time.Time) (Quote, error) {
	l, err := s.Store.GetLoan(ctx, id)
	if err != nil {
		return Quote{}, err
	}
	return QuoteSettlement(l, date, now, s.Policy)
}

// =============================================================================
// WRITES
// =============================================================================

// Request creates a pending loan.
func (s *Service) Request(ctx context.Context, cmd RequestCommand, now time.Time) (*Loan, error) {
	l, err := New(cmd, now)
	if err != nil {
		return nil, err
	}
	if err := s.Store.CreateLoan(ctx, *l); err != nil {
		return nil, fmt.Errorf("failed to create loan: %w", err)
	}
	log.Printf("[Loan] requested %s by %s for %s", l.ID, l.BorrowerID, l.RequestedAmount.StringFixed(2))
	return l, nil
}

func (s *Service) Approve(ctx context.Context, id generic.LoanID, cmd ApproveCommand, now time.Time) (*Loan, error) {
	return s.mutate(ctx, id, "approve", func(l *Loan) error {
		return l.Approve(cmd, s.Config.StandardLoanRate, now)
	})
}

func (s *Service) Reject(ctx context.Context, id generic.LoanID, notes string, now time.Time) (*Loan, error) {
	return s.mutate(ctx, id, "reject", func(l *Loan) error {
		return l.Reject(notes, now)
	})
}

func (s *Service) Disburse(ctx context.Context, id generic.LoanID, date, now time.Time) (*Loan, error) {
	return s.mutate(ctx, id, "disburse", func(l *Loan) error {
		return l.Disburse(date, now)
	})
}

func (s *Service) Complete(ctx context.Context, id generic.LoanID, date, now time.Time) (*Loan, error) {
	return s.mutate(ctx, id, "complete", func(l *Loan) error {
		return l.Complete(date, now)
	})
}

func (s *Service) CorrectApprovalDate(ctx context.Context, id generic.LoanID, date, now time.Time) (*Loan, error) {
	return s.mutate(ctx, id, "correct-approval-date", func(l *Loan) error {
		return l.CorrectApprovalDate(date, now)
	})
}

func (s *Service) MarkInterestPaid(ctx context.Context, id generic.LoanID, date, now time.Time) (*Loan, error) {
	return s.mutate(ctx, id, "mark-interest-paid", func(l *Loan) error {
		return l.MarkInterestPaid(date, now)
	})
}

func (s *Service) RecordRepayment(ctx context.Context, id generic.LoanID, cmd RepaymentCommand, now time.Time) (*Loan, Repayment, error) {
	var rep Repayment
	l, err := s.mutate(ctx, id, "repayment", func(l *Loan) error {
		var err error
		rep, err = l.RecordRepayment(cmd, now)
		return err
	})
	return l, rep, err
}

func (s *Service) SettleInterestOnly(ctx context.Context, id generic.LoanID, cmd SettlementCommand, now time.Time) (*Loan, SettlementResult, error) {
	var res SettlementResult
	l, err := s.mutate(ctx, id, "settle-interest", func(l *Loan) error {
		var err error
		res, err = CommitInterestOnly(l, cmd, now, s.Policy)
		return err
	})
	if err == nil {
		log.Printf("[Settlement] interest-only %s: %s for %d days", id, res.Quote.InterestOnly.StringFixed(2), res.Quote.Days)
	}
	return l, res, err
}

func (s *Service) SettleFull(ctx context.Context, id generic.LoanID, cmd SettlementCommand, now time.Time) (*Loan, SettlementResult, error) {
	var res SettlementResult
	l, err := s.mutate(ctx, id, "settle-full", func(l *Loan) error {
		var err error
		res, err = CommitFullSettlement(l, cmd, now, s.Policy)
		return err
	})
	if err == nil {
		log.Printf("[Settlement] full %s: %s (principal %s + interest %s)", id,
			res.Quote.FullSettlement.StringFixed(2), res.Quote.Principal.StringFixed(2), res.Quote.InterestOnly.StringFixed(2))
	}
	return l, res, err
}

// mutate runs fn on a locked, freshly loaded clone and persists the result.
func (s *Service) mutate(ctx context.Context, id generic.LoanID, action string, fn func(*Loan) error) (*Loan, error) {
	unlock, err := s.Locker.Lock(ctx, generic.LockKey("loan", string(id)))
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.Store.GetLoan(ctx, id)
	if err != nil {
		return nil, err
	}

	l := current.Clone()
	before := len(l.Repayments)
	if err := fn(l); err != nil {
		return nil, err
	}
	added := l.Repayments[before:]

	err = s.Store.WithTx(ctx, func(tx Store) error {
		if err := tx.UpdateLoan(ctx, *l); err != nil {
			return err
		}
		for _, r := range added {
			if err := tx.AppendRepayment(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save loan %s after %s: %w", id, action, err)
	}

	l.Version++
	log.Printf("[Loan] %s %s → %s (remaining %s)", action, l.ID, l.Status, l.RemainingBalance.StringFixed(2))
	return l, nil
}
