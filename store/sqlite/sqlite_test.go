package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/accrual-engine/contribution"
	"github.com/warp/accrual-engine/generic"
	"github.com/warp/accrual-engine/loan"
	"github.com/warp/accrual-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	requestedAt = generic.Date(2023, time.December, 20)
	approvedAt  = generic.Date(2023, time.December, 28)
	disbursedAt = generic.Date(2024, time.January, 1)
	testNow     = generic.Date(2025, time.January, 1)
)

func money(s string) decimal.Decimal { return generic.MustParseMoney(s) }

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func disbursed(t *testing.T, amount string) *loan.Loan {
	t.Helper()
	l, err := loan.New(loan.RequestCommand{BorrowerID: "member-1", RequestedAmount: money(amount), Purpose: "roof"}, requestedAt)
	require.NoError(t, err)
	require.NoError(t, l.Approve(loan.ApproveCommand{}, generic.DefaultStandardLoanRate, approvedAt))
	require.NoError(t, l.Disburse(disbursedAt, disbursedAt))
	return l
}

// =============================================================================
// LOAN TESTS
// =============================================================================

func TestSQLite_LoanRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	l := disbursed(t, "100000")

	require.NoError(t, store.CreateLoan(ctx, *l))

	got, err := store.GetLoan(ctx, l.ID)
	require.NoError(t, err)

	assert.Equal(t, l.ID, got.ID)
	assert.Equal(t, loan.StatusDisbursed, got.Status)
	assert.Equal(t, "roof", got.Purpose)
	assert.True(t, got.ApprovedAmount.Valid)
	assert.Equal(t, "100000.00", got.Approved().StringFixed(2))
	assert.Equal(t, "16", got.InterestRate.Percent.String())
	assert.Equal(t, "100000.00", got.RemainingBalance.StringFixed(2))
	require.NotNil(t, got.DisbursementDate)
	assert.True(t, disbursedAt.Equal(*got.DisbursementDate))
	assert.Nil(t, got.LastInterestPaidDate)
	assert.Equal(t, 0, got.Version)
}

func TestSQLite_GetLoan_NotFound(t *testing.T) {
	store := newStore(t)

	_, err := store.GetLoan(context.Background(), "missing")
	assert.True(t, generic.IsNotFound(err))
}

func TestSQLite_UpdateLoan_VersionConflict(t *testing.T) {
	// GIVEN: Two writers loaded the same loan at version 0
	// WHEN: Both save
	// THEN: The second save is rejected

	store := newStore(t)
	ctx := context.Background()
	l := disbursed(t, "1000")
	require.NoError(t, store.CreateLoan(ctx, *l))

	first := l.Clone()
	first.Notes = "first"
	require.NoError(t, store.UpdateLoan(ctx, *first))

	second := l.Clone()
	second.Notes = "second"
	err := store.UpdateLoan(ctx, *second)
	assert.True(t, errors.Is(err, generic.ErrConcurrentModification))

	got, err := store.GetLoan(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Notes)
	assert.Equal(t, 1, got.Version)

	missing := l.Clone()
	missing.ID = "missing"
	assert.True(t, generic.IsNotFound(store.UpdateLoan(ctx, *missing)))
}

func TestSQLite_Repayments_OrderedByPaymentDate(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	l := disbursed(t, "100000")
	require.NoError(t, store.CreateLoan(ctx, *l))

	late, err := l.RecordRepayment(loan.RepaymentCommand{
		Amount: money("1000"), Type: loan.PaymentPrincipal, Method: generic.MethodCash, Date: generic.Date(2024, time.May, 1),
	}, testNow)
	require.NoError(t, err)
	early, err := l.RecordRepayment(loan.RepaymentCommand{
		Amount: money("500.50"), Type: loan.PaymentInterest, Method: generic.MethodBank, Date: generic.Date(2024, time.February, 1),
	}, testNow)
	require.NoError(t, err)

	require.NoError(t, store.AppendRepayment(ctx, late))
	require.NoError(t, store.AppendRepayment(ctx, early))

	got, err := store.GetLoan(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, got.Repayments, 2)
	assert.Equal(t, early.ID, got.Repayments[0].ID)
	assert.Equal(t, "500.50", got.Repayments[0].InterestComponent.StringFixed(2))
	assert.Equal(t, loan.PaymentInterest, got.Repayments[0].Type)
	assert.Equal(t, late.ID, got.Repayments[1].ID)
	assert.Equal(t, generic.MethodCash, got.Repayments[1].Method)
}

func TestSQLite_WithTx_RollsBackOnError(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	l := disbursed(t, "1000")
	require.NoError(t, store.CreateLoan(ctx, *l))

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx loan.Store) error {
		updated := l.Clone()
		updated.Notes = "never saved"
		if err := tx.UpdateLoan(ctx, *updated); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.GetLoan(ctx, l.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Notes)
	assert.Equal(t, 0, got.Version)
}

func TestSQLite_ListLoans_Filter(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateLoan(ctx, *disbursed(t, "1000")))
	pending, err := loan.New(loan.RequestCommand{BorrowerID: "member-2", RequestedAmount: money("500")}, requestedAt.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.NoError(t, store.CreateLoan(ctx, *pending))

	all, err := store.ListLoans(ctx, loan.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, pending.ID, all[0].ID, "newest request first")

	mine, err := store.ListLoans(ctx, loan.Filter{BorrowerID: "member-2", Status: loan.StatusPending})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, pending.ID, mine[0].ID)
}

func TestSQLite_LoanService_SettleFull(t *testing.T) {
	// The loan service over SQLite behaves as over memory.
	store := newStore(t)
	ctx := context.Background()
	cfg := generic.CommunityConfig{
		OpeningDate:         generic.Date(2022, time.September, 15),
		DefaultContribution: money("2000"),
		AnnualInterestRate:  generic.NewRate(10),
	}
	svc := loan.NewService(store, nil, cfg, loan.DefaultSettlementPolicy())

	l, err := svc.Request(ctx, loan.RequestCommand{BorrowerID: "member-1", RequestedAmount: money("100000")}, requestedAt)
	require.NoError(t, err)
	_, err = svc.Approve(ctx, l.ID, loan.ApproveCommand{}, approvedAt)
	require.NoError(t, err)
	_, err = svc.Disburse(ctx, l.ID, disbursedAt, disbursedAt)
	require.NoError(t, err)

	_, res, err := svc.SettleFull(ctx, l.ID, loan.SettlementCommand{Date: generic.Date(2024, time.July, 1)}, testNow)
	require.NoError(t, err)
	assert.Equal(t, "107978.08", res.Quote.FullSettlement.StringFixed(2))

	got, err := svc.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.StatusCompleted, got.Status)
	assert.True(t, got.RemainingBalance.IsZero())
	require.Len(t, got.Repayments, 1)
	assert.Equal(t, loan.PaymentCombined, got.Repayments[0].Type)
	assert.Equal(t, 3, got.Version)
	require.NoError(t, got.Verify())
}

// =============================================================================
// CONTRIBUTION TESTS
// =============================================================================

func TestSQLite_Members(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveMember(ctx, contribution.Member{ID: "alice", Name: "Alice", JoinDate: generic.Date(2023, time.January, 10)}))
	require.NoError(t, store.SaveMember(ctx, contribution.Member{ID: "alice", Name: "Alice B", JoinDate: generic.Date(2023, time.January, 10)}))

	m, err := store.GetMember(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice B", m.Name)
	assert.True(t, generic.Date(2023, time.January, 10).Equal(m.JoinDate))

	all, err := store.ListMembers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = store.GetMember(ctx, "nobody")
	assert.True(t, generic.IsNotFound(err))
}

func TestSQLite_Contributions(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	jan, _ := generic.ParseMonth("2023-01")
	feb, _ := generic.ParseMonth("2023-02")
	mk := func(id string, m generic.Month, status contribution.Status) contribution.Contribution {
		return contribution.Contribution{
			ID: generic.ContributionID(id), MemberID: "alice", Month: m,
			Amount: money("2000"), Status: status, CreatedAt: testNow, UpdatedAt: testNow,
		}
	}

	require.NoError(t, store.CreateContribution(ctx, mk("c-2", feb, contribution.StatusPending)))
	require.NoError(t, store.CreateContribution(ctx, mk("c-1", jan, contribution.StatusPending)))

	err := store.CreateContribution(ctx, mk("c-3", jan, contribution.StatusPaid))
	assert.True(t, errors.Is(err, generic.ErrDuplicateContribution))

	list, err := store.ListContributions(ctx, contribution.Filter{MemberID: "alice"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, jan, list[0].Month, "ordered by month")

	c := list[0]
	require.NoError(t, c.RecordPayment(contribution.PaymentCommand{Method: generic.MethodMobile, RecordedBy: "admin"}, testNow))
	require.NoError(t, store.UpdateContribution(ctx, c))

	got, err := store.GetContribution(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, contribution.StatusPaid, got.Status)
	assert.Equal(t, generic.MethodMobile, got.PaymentMethod)
	require.NotNil(t, got.PaidDate)

	before, err := store.ListContributions(ctx, contribution.Filter{Status: contribution.StatusPending, Before: feb.Next()})
	require.NoError(t, err)
	require.Len(t, before, 1)
	assert.Equal(t, generic.ContributionID("c-2"), before[0].ID)

	_, err = store.GetContribution(ctx, "missing")
	assert.True(t, generic.IsNotFound(err))
}

func TestSQLite_ContributionService_CreateMissing(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	cfg := generic.CommunityConfig{
		OpeningDate:         generic.Date(2022, time.September, 15),
		DefaultContribution: money("2000"),
		AnnualInterestRate:  generic.NewRate(10),
	}
	svc := contribution.NewService(store, nil, cfg)
	require.NoError(t, svc.SaveMember(ctx, contribution.Member{ID: "alice", JoinDate: generic.Date(2023, time.January, 10)}))

	now := generic.Date(2023, time.June, 20)
	plan, err := svc.Plan(ctx, "alice", now)
	require.NoError(t, err)
	require.Len(t, plan.MissingMonths, 5)

	res, err := svc.CreateMissing(ctx, contribution.CreateMissingCommand{MemberID: "alice", Months: plan.MissingMonths}, now)
	require.NoError(t, err)
	assert.Len(t, res.Created, 5)

	plan, err = svc.Plan(ctx, "alice", now)
	require.NoError(t, err)
	assert.True(t, plan.IsCurrent)
	assert.Equal(t, "10000.00", plan.TotalPending.StringFixed(2))
}
