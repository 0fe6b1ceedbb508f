// Package memory provides in-memory implementations of loan.TxStore and
// contribution.Store for tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/accrual-engine/contribution"
	"github.com/warp/accrual-engine/generic"
	"github.com/warp/accrual-engine/loan"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	loans      map[generic.LoanID]loan.Loan
	repayments map[generic.LoanID][]loan.Repayment

	members       map[generic.MemberID]contribution.Member
	contributions map[generic.ContributionID]contribution.Contribution
	byMonth       map[monthKey]generic.ContributionID
}

type monthKey struct {
	MemberID generic.MemberID
	Month    generic.Month
}

func New() *Memory {
	return &Memory{
		loans:         make(map[generic.LoanID]loan.Loan),
		repayments:    make(map[generic.LoanID][]loan.Repayment),
		members:       make(map[generic.MemberID]contribution.Member),
		contributions: make(map[generic.ContributionID]contribution.Contribution),
		byMonth:       make(map[monthKey]generic.ContributionID),
	}
}

// =============================================================================
// LOANS
// =============================================================================

func (m *Memory) CreateLoan(_ context.Context, l loan.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLoanLocked(l)
}

func (m *Memory) GetLoan(_ context.Context, id generic.LoanID) (*loan.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLoanLocked(id)
}

func (m *Memory) ListLoans(_ context.Context, f loan.Filter) ([]loan.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLoansLocked(f), nil
}

func (m *Memory) UpdateLoan(_ context.Context, l loan.Loan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLoanLocked(l)
}

func (m *Memory) AppendRepayment(_ context.Context, r loan.Repayment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendRepaymentLocked(r)
}

func (m *Memory) createLoanLocked(l loan.Loan) error {
	if _, ok := m.loans[l.ID]; ok {
		return &generic.InputError{Field: "loan_id", Reason: "already exists: " + string(l.ID)}
	}
	l.Repayments = nil
	l.Version = 0
	m.loans[l.ID] = *l.Clone()
	return nil
}

func (m *Memory) getLoanLocked(id generic.LoanID) (*loan.Loan, error) {
	l, ok := m.loans[id]
	if !ok {
		return nil, &generic.NotFoundError{Kind: "loan", ID: string(id)}
	}
	out := l.Clone()
	out.Repayments = append([]loan.Repayment(nil), m.repayments[id]...)
	return out, nil
}

func (m *Memory) listLoansLocked(f loan.Filter) []loan.Loan {
	var out []loan.Loan
	for id, l := range m.loans {
		if !f.Matches(l) {
			continue
		}
		c := l.Clone()
		c.Repayments = append([]loan.Repayment(nil), m.repayments[id]...)
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RequestDate.Equal(out[j].RequestDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].RequestDate.After(out[j].RequestDate)
	})
	return out
}

func (m *Memory) updateLoanLocked(l loan.Loan) error {
	current, ok := m.loans[l.ID]
	if !ok {
		return &generic.NotFoundError{Kind: "loan", ID: string(l.ID)}
	}
	if current.Version != l.Version {
		return generic.ErrConcurrentModification
	}
	l.Repayments = nil
	l.Version++
	m.loans[l.ID] = *l.Clone()
	return nil
}

// appendRepaymentLocked keeps each loan's repayments sorted by payment date.
// Equal dates keep insertion order.
func (m *Memory) appendRepaymentLocked(r loan.Repayment) error {
	if _, ok := m.loans[r.LoanID]; !ok {
		return &generic.NotFoundError{Kind: "loan", ID: string(r.LoanID)}
	}
	reps := m.repayments[r.LoanID]
	for _, existing := range reps {
		if existing.ID == r.ID {
			return &generic.InputError{Field: "repayment_id", Reason: "already exists: " + string(r.ID)}
		}
	}

	i := sort.Search(len(reps), func(i int) bool {
		return reps[i].PaymentDate.After(r.PaymentDate)
	})
	reps = append(reps, loan.Repayment{})
	copy(reps[i+1:], reps[i:])
	reps[i] = r
	m.repayments[r.LoanID] = reps
	return nil
}

// =============================================================================
// MEMBERS & CONTRIBUTIONS
// =============================================================================

func (m *Memory) SaveMember(_ context.Context, mem contribution.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[mem.ID] = mem
	return nil
}

func (m *Memory) GetMember(_ context.Context, id generic.MemberID) (*contribution.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mem, ok := m.members[id]
	if !ok {
		return nil, &generic.NotFoundError{Kind: "member", ID: string(id)}
	}
	return &mem, nil
}

func (m *Memory) ListMembers(_ context.Context) ([]contribution.Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]contribution.Member, 0, len(m.members))
	for _, mem := range m.members {
		out = append(out, mem)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CreateContribution(_ context.Context, c contribution.Contribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := monthKey{MemberID: c.MemberID, Month: c.Month}
	if _, ok := m.byMonth[k]; ok {
		return generic.ErrDuplicateContribution
	}
	if _, ok := m.contributions[c.ID]; ok {
		return &generic.InputError{Field: "contribution_id", Reason: "already exists: " + string(c.ID)}
	}
	m.contributions[c.ID] = c
	m.byMonth[k] = c.ID
	return nil
}

func (m *Memory) GetContribution(_ context.Context, id generic.ContributionID) (*contribution.Contribution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contributions[id]
	if !ok {
		return nil, &generic.NotFoundError{Kind: "contribution", ID: string(id)}
	}
	return &c, nil
}

func (m *Memory) UpdateContribution(_ context.Context, c contribution.Contribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.contributions[c.ID]
	if !ok {
		return &generic.NotFoundError{Kind: "contribution", ID: string(c.ID)}
	}
	// Member and month are the uniqueness key and never change.
	c.MemberID, c.Month = current.MemberID, current.Month
	m.contributions[c.ID] = c
	return nil
}

func (m *Memory) ListContributions(_ context.Context, f contribution.Filter) ([]contribution.Contribution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []contribution.Contribution
	for _, c := range m.contributions {
		if f.Matches(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month.Equal(out[j].Month) {
			return out[i].MemberID < out[j].MemberID
		}
		return out[i].Month.Before(out[j].Month)
	})
	return out, nil
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset deletes all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loans = make(map[generic.LoanID]loan.Loan)
	m.repayments = make(map[generic.LoanID][]loan.Repayment)
	m.members = make(map[generic.MemberID]contribution.Member)
	m.contributions = make(map[generic.ContributionID]contribution.Contribution)
	m.byMonth = make(map[monthKey]generic.ContributionID)
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory adds loan.TxStore's WithTx on top of Memory.
type TxMemory struct {
	*Memory
}

func NewTx() *TxMemory {
	return &TxMemory{Memory: New()}
}

// WithTx runs fn with the store locked. Loan writes made through the view
// are rolled back when fn fails.
func (tm *TxMemory) WithTx(_ context.Context, fn func(loan.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snap := tm.snapshot()
	if err := fn(&txView{parent: tm.Memory}); err != nil {
		tm.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	loans      map[generic.LoanID]loan.Loan
	repayments map[generic.LoanID][]loan.Repayment
}

func (tm *TxMemory) snapshot() snapshot {
	s := snapshot{
		loans:      make(map[generic.LoanID]loan.Loan, len(tm.loans)),
		repayments: make(map[generic.LoanID][]loan.Repayment, len(tm.repayments)),
	}
	for k, v := range tm.loans {
		s.loans[k] = v
	}
	for k, v := range tm.repayments {
		s.repayments[k] = append([]loan.Repayment(nil), v...)
	}
	return s
}

func (tm *TxMemory) restore(s snapshot) {
	tm.loans = s.loans
	tm.repayments = s.repayments
}

// txView runs against the parent's maps without taking its lock; WithTx
// already holds it.
type txView struct {
	parent *Memory
}

func (tv *txView) CreateLoan(_ context.Context, l loan.Loan) error {
	return tv.parent.createLoanLocked(l)
}

func (tv *txView) GetLoan(_ context.Context, id generic.LoanID) (*loan.Loan, error) {
	return tv.parent.getLoanLocked(id)
}

func (tv *txView) ListLoans(_ context.Context, f loan.Filter) ([]loan.Loan, error) {
	return tv.parent.listLoansLocked(f), nil
}

func (tv *txView) UpdateLoan(_ context.Context, l loan.Loan) error {
	return tv.parent.updateLoanLocked(l)
}

func (tv *txView) AppendRepayment(_ context.Context, r loan.Repayment) error {
	return tv.parent.appendRepaymentLocked(r)
}

var (
	_ loan.TxStore       = (*TxMemory)(nil)
	_ contribution.Store = (*Memory)(nil)
)
