package loan_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/accrual-engine/generic"
	"github.com/warp/accrual-engine/loan"
)

// =============================================================================
// ALLOCATION TESTS
// =============================================================================

func TestRecordRepayment_Principal_ReducesBalance(t *testing.T) {
	l := disbursedLoan(t, "100000", 16)

	rep, err := l.RecordRepayment(loan.RepaymentCommand{
		Amount: money("25000"),
		Type:   loan.PaymentPrincipal,
		Method: generic.MethodMobile,
		Date:   generic.Date(2024, time.March, 1),
	}, testNow)
	require.NoError(t, err)

	assertMoney(t, "25000.00", rep.PrincipalComponent, "zero component defaults to amount")
	assert.True(t, rep.InterestComponent.IsZero())
	assertMoney(t, "75000.00", l.RemainingBalance)
	assertMoney(t, "25000.00", l.AmountPaid)
	assert.Len(t, l.Repayments, 1)
	assert.True(t, strings.HasPrefix(rep.ReceiptNumber, "RCP-20240301-"))
}

func TestRecordRepayment_Interest_DoesNotReduceBalance(t *testing.T) {
	l := disbursedLoan(t, "100000", 16)

	rep, err := l.RecordRepayment(loan.RepaymentCommand{
		Amount: money("1200"),
		Type:   loan.PaymentInterest,
		Method: generic.MethodCash,
	}, testNow)
	require.NoError(t, err)

	assertMoney(t, "1200.00", rep.InterestComponent)
	assertMoney(t, "100000.00", l.RemainingBalance)
	assertMoney(t, "1200.00", l.AmountPaid)
	assert.Equal(t, testNow, rep.PaymentDate, "zero date means now")
}

func TestRecordRepayment_Combined(t *testing.T) {
	l := disbursedLoan(t, "100000", 16)

	_, err := l.RecordRepayment(loan.RepaymentCommand{
		Amount:             money("11000"),
		Type:               loan.PaymentCombined,
		PrincipalComponent: money("10000"),
		InterestComponent:  money("1000"),
		Method:             generic.MethodBank,
		ReceiptNumber:      "R-1",
	}, testNow)
	require.NoError(t, err)

	assertMoney(t, "90000.00", l.RemainingBalance)
	assertMoney(t, "11000.00", l.AmountPaid)
	assert.Equal(t, "R-1", l.Repayments[0].ReceiptNumber)
}

func TestRecordRepayment_Combined_Mismatch(t *testing.T) {
	l := disbursedLoan(t, "100000", 16)

	_, err := l.RecordRepayment(loan.RepaymentCommand{
		Amount:             money("11000"),
		Type:               loan.PaymentCombined,
		PrincipalComponent: money("10000"),
		InterestComponent:  money("500"),
		Method:             generic.MethodBank,
	}, testNow)

	assert.True(t, errors.Is(err, generic.ErrAmountMismatch))
	var mm *loan.AmountMismatchError
	require.ErrorAs(t, err, &mm)
	assertMoney(t, "11000.00", mm.Amount)
	assertMoney(t, "100000.00", l.RemainingBalance)
	assert.Empty(t, l.Repayments)
}

func TestRecordRepayment_Principal_ComponentMustEqualAmount(t *testing.T) {
	l := disbursedLoan(t, "100000", 16)

	_, err := l.RecordRepayment(loan.RepaymentCommand{
		Amount:             money("5000"),
		Type:               loan.PaymentPrincipal,
		PrincipalComponent: money("4000"),
		Method:             generic.MethodBank,
	}, testNow)

	assert.True(t, errors.Is(err, generic.ErrAmountMismatch))
}

func TestRecordRepayment_Overpayment(t *testing.T) {
	// GIVEN: A loan with 30,000 remaining
	// WHEN: Recording a 50,000 principal-only repayment
	// THEN: OverpaymentError, balance untouched

	l := disbursedLoan(t, "30000", 16)

	_, err := l.RecordRepayment(loan.RepaymentCommand{
		Amount: money("50000"),
		Type:   loan.PaymentPrincipal,
		Method: generic.MethodBank,
	}, testNow)

	assert.True(t, errors.Is(err, generic.ErrOverpayment))
	var op *loan.OverpaymentError
	require.ErrorAs(t, err, &op)
	assertMoney(t, "30000.00", op.Remaining)
	assertMoney(t, "50000.00", op.Requested)
	assertMoney(t, "30000.00", l.RemainingBalance)
	assert.True(t, l.AmountPaid.IsZero())
}

func TestRecordRepayment_Combined_PrincipalOverBalance(t *testing.T) {
	l := disbursedLoan(t, "30000", 16)

	_, err := l.RecordRepayment(loan.RepaymentCommand{
		Amount:             money("32000"),
		Type:               loan.PaymentCombined,
		PrincipalComponent: money("31000"),
		InterestComponent:  money("1000"),
		Method:             generic.MethodBank,
	}, testNow)

	assert.True(t, errors.Is(err, generic.ErrOverpayment))
}

func TestRecordRepayment_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		loan    func(t *testing.T) *loan.Loan
		cmd     loan.RepaymentCommand
		wantErr error
	}{
		{
			name:    "pending loan",
			loan:    func(t *testing.T) *loan.Loan { return pendingLoan(t, "1000") },
			cmd:     loan.RepaymentCommand{Amount: money("100"), Type: loan.PaymentPrincipal, Method: generic.MethodCash},
			wantErr: generic.ErrInvalidTransition,
		},
		{
			name:    "zero amount",
			loan:    func(t *testing.T) *loan.Loan { return disbursedLoan(t, "1000", 16) },
			cmd:     loan.RepaymentCommand{Amount: money("0"), Type: loan.PaymentPrincipal, Method: generic.MethodCash},
			wantErr: generic.ErrInvalidInput,
		},
		{
			name:    "unknown method",
			loan:    func(t *testing.T) *loan.Loan { return disbursedLoan(t, "1000", 16) },
			cmd:     loan.RepaymentCommand{Amount: money("100"), Type: loan.PaymentPrincipal, Method: "barter"},
			wantErr: generic.ErrInvalidInput,
		},
		{
			name:    "unknown type",
			loan:    func(t *testing.T) *loan.Loan { return disbursedLoan(t, "1000", 16) },
			cmd:     loan.RepaymentCommand{Amount: money("100"), Type: "fees", Method: generic.MethodCash},
			wantErr: generic.ErrInvalidInput,
		},
		{
			name:    "future date",
			loan:    func(t *testing.T) *loan.Loan { return disbursedLoan(t, "1000", 16) },
			cmd:     loan.RepaymentCommand{Amount: money("100"), Type: loan.PaymentPrincipal, Method: generic.MethodCash, Date: testNow.AddDate(0, 0, 1)},
			wantErr: generic.ErrInvalidInput,
		},
		{
			name:    "negative component",
			loan:    func(t *testing.T) *loan.Loan { return disbursedLoan(t, "1000", 16) },
			cmd:     loan.RepaymentCommand{Amount: money("100"), Type: loan.PaymentCombined, PrincipalComponent: money("150"), InterestComponent: money("-50"), Method: generic.MethodCash},
			wantErr: generic.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := tt.loan(t)
			_, err := l.RecordRepayment(tt.cmd, testNow)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Empty(t, l.Repayments)
		})
	}
}

func TestRecordRepayment_ApprovedLoanAccepted(t *testing.T) {
	l := approvedLoan(t, "1000", 16)

	_, err := l.RecordRepayment(loan.RepaymentCommand{Amount: money("100"), Type: loan.PaymentPrincipal, Method: generic.MethodCash}, testNow)
	assert.NoError(t, err)
}

func TestRecordRepayment_CompletedLoanRejected(t *testing.T) {
	l := disbursedLoan(t, "1000", 16)
	_, err := l.RecordRepayment(loan.RepaymentCommand{Amount: money("1000"), Type: loan.PaymentPrincipal, Method: generic.MethodCash}, testNow)
	require.NoError(t, err)
	require.NoError(t, l.Complete(testNow, testNow))

	_, err = l.RecordRepayment(loan.RepaymentCommand{Amount: money("10"), Type: loan.PaymentInterest, Method: generic.MethodCash}, testNow)
	assert.True(t, errors.Is(err, generic.ErrInvalidTransition))
}

// =============================================================================
// INVARIANT TESTS
// =============================================================================

func TestRepayments_PrincipalSumMatchesBalance(t *testing.T) {
	// For any sequence of repayments:
	//   sum(principal) == approved - remaining
	//   sum(amount)    == amountPaid
	l := disbursedLoan(t, "100000", 16)

	cmds := []loan.RepaymentCommand{
		{Amount: money("10000"), Type: loan.PaymentPrincipal},
		{Amount: money("1333.33"), Type: loan.PaymentInterest},
		{Amount: money("20500.50"), Type: loan.PaymentCombined, PrincipalComponent: money("20000"), InterestComponent: money("500.50")},
		{Amount: money("0.01"), Type: loan.PaymentPrincipal},
		{Amount: money("99999"), Type: loan.PaymentPrincipal}, // rejected: overpayment
		{Amount: money("69999.99"), Type: loan.PaymentPrincipal},
	}
	for _, cmd := range cmds {
		cmd.Method = generic.MethodBank
		_, _ = l.RecordRepayment(cmd, testNow)
		require.NoError(t, l.Verify())
	}

	s := l.Summary()
	assert.Equal(t, 5, s.RepaymentCount)
	assertMoney(t, "100000.00", s.TotalPrincipal)
	assertMoney(t, "1833.83", s.TotalInterest)
	assertMoney(t, "0.00", l.RemainingBalance)
	assertMoney(t, "101833.83", l.AmountPaid)
}

func TestVerify_DetectsCorruption(t *testing.T) {
	l := disbursedLoan(t, "1000", 16)
	l.RemainingBalance = money("900")

	assert.True(t, errors.Is(l.Verify(), generic.ErrInvalidInput))
}
