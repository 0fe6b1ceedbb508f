package contribution_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/accrual-engine/contribution"
	"github.com/warp/accrual-engine/generic"
	"github.com/warp/accrual-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestService(t *testing.T) (*contribution.Service, *memory.Memory) {
	t.Helper()
	store := memory.New()
	svc := contribution.NewService(store, nil, testConfig())
	require.NoError(t, svc.SaveMember(context.Background(), alice))
	return svc, store
}

// =============================================================================
// SERVICE TESTS
// =============================================================================

func TestService_CreateMissing_ThenPlanIsCurrent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	plan, err := svc.Plan(ctx, "alice", june)
	require.NoError(t, err)
	require.Len(t, plan.MissingMonths, 5)

	res, err := svc.CreateMissing(ctx, contribution.CreateMissingCommand{
		MemberID: "alice",
		Months:   plan.MissingMonths,
		MarkPaid: true,
		Method:   generic.MethodBank,
	}, june)
	require.NoError(t, err)
	assert.Len(t, res.Created, 5)

	plan, err = svc.Plan(ctx, "alice", june)
	require.NoError(t, err)
	assert.True(t, plan.IsCurrent)
	assert.Equal(t, "10000.00", plan.TotalPaid.StringFixed(2))
}

func TestService_CreateMissing_SecondSubmitSkips(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cmd := contribution.CreateMissingCommand{MemberID: "alice", Months: months("2023-01", "2023-02")}

	first, err := svc.CreateMissing(ctx, cmd, june)
	require.NoError(t, err)
	assert.Len(t, first.Created, 2)

	second, err := svc.CreateMissing(ctx, cmd, june)
	require.NoError(t, err)
	assert.Empty(t, second.Created)
	assert.Equal(t, months("2023-01", "2023-02"), second.Skipped)

	all, err := svc.List(ctx, contribution.Filter{MemberID: "alice"})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestService_CreateMissing_UnknownMember(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateMissing(context.Background(), contribution.CreateMissingCommand{MemberID: "nobody", Months: months("2023-01")}, june)
	assert.True(t, generic.IsNotFound(err))
}

func TestService_RecordPayment(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.CreateMissing(ctx, contribution.CreateMissingCommand{MemberID: "alice", Months: months("2023-03")}, june)
	require.NoError(t, err)
	id := res.Created[0].ID

	paid, err := svc.RecordPayment(ctx, id, contribution.PaymentCommand{Method: generic.MethodCash}, june)
	require.NoError(t, err)
	assert.Equal(t, contribution.StatusPaid, paid.Status)

	_, err = svc.RecordPayment(ctx, id, contribution.PaymentCommand{Method: generic.MethodCash}, june)
	assert.True(t, errors.Is(err, generic.ErrInvalidInput))

	_, err = svc.RecordPayment(ctx, "missing", contribution.PaymentCommand{Method: generic.MethodCash}, june)
	assert.True(t, generic.IsNotFound(err))
}

func TestService_SetupMonth_AndSweepOverdue(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.SaveMember(ctx, contribution.Member{ID: "bob", JoinDate: generic.Date(2022, time.October, 1)}))

	created, err := svc.SetupMonth(ctx, month("2023-05"), june)
	require.NoError(t, err)
	assert.Len(t, created, 2)

	again, err := svc.SetupMonth(ctx, month("2023-05"), june)
	require.NoError(t, err)
	assert.Empty(t, again, "second setup creates nothing")

	_, err = svc.RecordPayment(ctx, created[0].ID, contribution.PaymentCommand{Method: generic.MethodCash}, june)
	require.NoError(t, err)

	n, err := svc.SweepOverdue(ctx, june)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	overdue, err := svc.List(ctx, contribution.Filter{Status: contribution.StatusOverdue})
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, created[1].ID, overdue[0].ID)

	n, err = svc.SweepOverdue(ctx, june)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestService_CatchUp(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.CatchUp(generic.Date(2023, time.September, 15), generic.Date(2023, time.September, 15))
	require.NoError(t, err)
	assert.Equal(t, "26400.00", res.GrandTotal.StringFixed(2))
}

func TestMemoryStore_DuplicateContribution(t *testing.T) {
	_, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, store.CreateContribution(ctx, record("alice", "2023-01", "2000", contribution.StatusPending)))

	dup := record("alice", "2023-01", "2000", contribution.StatusPaid)
	dup.ID = "other-id"
	err := store.CreateContribution(ctx, dup)
	assert.True(t, errors.Is(err, generic.ErrDuplicateContribution))
}
