package generic_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/accrual-engine/generic"
)

// =============================================================================
// MONTH TESTS
// =============================================================================

func TestMonth_ParseAndFormat(t *testing.T) {
	m, err := generic.ParseMonth("2023-09")
	require.NoError(t, err)
	assert.Equal(t, generic.NewMonth(2023, time.September), m)
	assert.Equal(t, "2023-09", m.String())

	_, err = generic.ParseMonth("2023/09")
	assert.True(t, errors.Is(err, generic.ErrInvalidInput))
}

func TestMonth_Arithmetic_CrossesYears(t *testing.T) {
	dec := generic.NewMonth(2023, time.December)

	assert.Equal(t, generic.NewMonth(2024, time.January), dec.Next())
	assert.Equal(t, generic.NewMonth(2023, time.November), dec.Prev())
	assert.Equal(t, generic.NewMonth(2025, time.March), dec.AddMonths(15))
	assert.True(t, dec.Before(dec.Next()))
	assert.True(t, dec.Next().After(dec))
}

func TestMonthOf_UsesUTC(t *testing.T) {
	// 23:30 on Aug 31 at UTC-2 is already September in UTC
	loc := time.FixedZone("UTC-2", -2*60*60)
	local := time.Date(2023, time.August, 31, 23, 30, 0, 0, loc)

	assert.Equal(t, generic.NewMonth(2023, time.September), generic.MonthOf(local))
}

func TestMonthRange_Inclusive(t *testing.T) {
	months := generic.MonthRange(generic.NewMonth(2022, time.November), generic.NewMonth(2023, time.February))

	require.Len(t, months, 4)
	assert.Equal(t, "2022-11", months[0].String())
	assert.Equal(t, "2023-02", months[3].String())

	assert.Empty(t, generic.MonthRange(generic.NewMonth(2023, time.March), generic.NewMonth(2023, time.February)))
}

func TestLastCompletedMonth_ExcludesCurrent(t *testing.T) {
	now := generic.Date(2024, time.January, 15)
	assert.Equal(t, generic.NewMonth(2023, time.December), generic.LastCompletedMonth(now))

	firstInstant := generic.Date(2024, time.March, 1)
	assert.Equal(t, generic.NewMonth(2024, time.February), generic.LastCompletedMonth(firstInstant))
}

// =============================================================================
// DATE TESTS
// =============================================================================

func TestParseDate_Formats(t *testing.T) {
	d, err := generic.ParseDate("date", "2024-07-01")
	require.NoError(t, err)
	assert.Equal(t, generic.Date(2024, time.July, 1), d)

	d, err = generic.ParseDate("date", "2024-07-01T12:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.July, 1, 10, 0, 0, 0, time.UTC), d)

	_, err = generic.ParseDate("settlement_date", "July 1st")
	var inErr *generic.InputError
	require.ErrorAs(t, err, &inErr)
	assert.Equal(t, "settlement_date", inErr.Field)
}

func TestDateOf_TruncatesToUTCDay(t *testing.T) {
	assert.Equal(t, generic.Date(2024, time.July, 1), generic.DateOf(time.Date(2024, time.July, 1, 23, 59, 0, 0, time.UTC)))

	// 01:00 at UTC+3 is still the previous day in UTC
	loc := time.FixedZone("UTC+3", 3*60*60)
	assert.Equal(t, generic.Date(2024, time.June, 30), generic.DateOf(time.Date(2024, time.July, 1, 1, 0, 0, 0, loc)))
}

func TestNotAfter(t *testing.T) {
	now := generic.Date(2024, time.July, 1)

	assert.NoError(t, generic.NotAfter("date", now, now))
	assert.NoError(t, generic.NotAfter("date", now.AddDate(0, 0, -1), now))
	assert.True(t, errors.Is(generic.NotAfter("date", now.Add(time.Second), now), generic.ErrInvalidInput))
}
