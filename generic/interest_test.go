package generic_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/accrual-engine/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func money(s string) decimal.Decimal { return generic.MustParseMoney(s) }

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2), msgAndArgs...)
}

// =============================================================================
// INTEREST CALCULATOR TESTS
// =============================================================================

func TestInterest_HalfYear_ProratedByDays(t *testing.T) {
	// GIVEN: 100,000 at 16%, disbursed 2024-01-01
	// WHEN: Settling on 2024-07-01 (182 days)
	// THEN: Interest is 100000 * 0.16 * 182/365 = 7978.08

	w := generic.Window{
		From: generic.Date(2024, time.January, 1),
		To:   generic.Date(2024, time.July, 1),
	}
	res, err := generic.Interest(money("100000"), generic.NewRate(16), w)
	require.NoError(t, err)

	assert.Equal(t, 182, res.Days)
	assertMoney(t, "7978.08", res.Amount)
	assert.Equal(t, "5.9836", res.ElapsedMonths.String())
}

func TestInterest_Table(t *testing.T) {
	tests := []struct {
		name      string
		principal string
		rate      float64
		from, to  time.Time
		want      string
	}{
		{
			name:      "full non-leap year",
			principal: "10000",
			rate:      10,
			from:      generic.Date(2023, time.January, 1),
			to:        generic.Date(2024, time.January, 1),
			want:      "1000.00",
		},
		{
			name:      "leap year counts 366 days over a 365-day year",
			principal: "36500",
			rate:      10,
			from:      generic.Date(2024, time.January, 1),
			to:        generic.Date(2025, time.January, 1),
			want:      "3660.00",
		},
		{
			name:      "one day",
			principal: "36500",
			rate:      1,
			from:      generic.Date(2024, time.March, 1),
			to:        generic.Date(2024, time.March, 2),
			want:      "1.00",
		},
		{
			name:      "rounds half up",
			principal: "91.25",
			rate:      10,
			from:      generic.Date(2024, time.March, 1),
			to:        generic.Date(2024, time.March, 2),
			want:      "0.03",
		},
		{
			name:      "zero rate",
			principal: "50000",
			rate:      0,
			from:      generic.Date(2024, time.January, 1),
			to:        generic.Date(2024, time.June, 1),
			want:      "0.00",
		},
		{
			name:      "zero principal",
			principal: "0",
			rate:      16,
			from:      generic.Date(2024, time.January, 1),
			to:        generic.Date(2024, time.June, 1),
			want:      "0.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := generic.Interest(money(tt.principal), generic.NewRate(tt.rate), generic.Window{From: tt.from, To: tt.to})
			require.NoError(t, err)
			assertMoney(t, tt.want, res.Amount)
		})
	}
}

func TestInterest_EmptyWindow_IsZero(t *testing.T) {
	day := generic.Date(2024, time.May, 10)

	same, err := generic.Interest(money("100000"), generic.NewRate(16), generic.Window{From: day, To: day})
	require.NoError(t, err)
	assert.True(t, same.Amount.IsZero())
	assert.Equal(t, 0, same.Days)

	reversed, err := generic.Interest(money("100000"), generic.NewRate(16), generic.Window{From: day, To: day.AddDate(0, 0, -3)})
	require.NoError(t, err)
	assert.True(t, reversed.Amount.IsZero())
}

func TestInterest_PartialDay_NotCounted(t *testing.T) {
	// GIVEN: A window of 1 day and 20 hours
	// THEN: Interest is charged for 1 whole day, elapsed months keep the fraction

	from := generic.Date(2024, time.March, 1)
	w := generic.Window{From: from, To: from.Add(44 * time.Hour)}

	res, err := generic.Interest(money("36500"), generic.NewRate(1), w)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Days)
	assertMoney(t, "1.00", res.Amount)
	assert.True(t, res.ElapsedMonths.GreaterThan(decimal.RequireFromString("0.0329")))
}

func TestInterest_NegativeInputs_Rejected(t *testing.T) {
	w := generic.Window{From: generic.Date(2024, time.January, 1), To: generic.Date(2024, time.February, 1)}

	_, err := generic.Interest(money("-1"), generic.NewRate(16), w)
	assert.True(t, errors.Is(err, generic.ErrInvalidInput))

	_, err = generic.Interest(money("100"), generic.NewRate(-1), w)
	var inErr *generic.InputError
	require.ErrorAs(t, err, &inErr)
	assert.Equal(t, "interest_rate", inErr.Field)
}

func TestInterest_ConsecutiveWindows_AddUp(t *testing.T) {
	// Splitting a window at any date never charges a day twice.
	a := generic.Date(2024, time.January, 1)
	b := generic.Date(2024, time.April, 15)
	c := generic.Date(2024, time.September, 1)

	first, _ := generic.Interest(money("36500"), generic.NewRate(10), generic.Window{From: a, To: b})
	second, _ := generic.Interest(money("36500"), generic.NewRate(10), generic.Window{From: b, To: c})
	whole, _ := generic.Interest(money("36500"), generic.NewRate(10), generic.Window{From: a, To: c})

	assert.Equal(t, whole.Days, first.Days+second.Days)
	assertMoney(t, whole.Amount.StringFixed(2), first.Amount.Add(second.Amount))
}

func TestPeriodInterest(t *testing.T) {
	assertMoney(t, "2400.00", generic.PeriodInterest(money("24000"), generic.NewRate(10), 12))
	assertMoney(t, "4800.00", generic.PeriodInterest(money("24000"), generic.NewRate(10), 24))
	assertMoney(t, "100.00", generic.PeriodInterest(money("12000"), generic.NewRate(10), 1))
	assert.True(t, generic.PeriodInterest(money("24000"), generic.NewRate(10), 0).IsZero())
}

func TestRoundMoney_HalfUp(t *testing.T) {
	assertMoney(t, "0.13", generic.RoundMoney(money("0.125")))
	assertMoney(t, "0.12", generic.RoundMoney(money("0.1249")))
	assertMoney(t, "7978.08", generic.RoundMoney(money("7978.0821917")))
}
