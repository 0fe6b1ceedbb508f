package factory_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/accrual-engine/factory"
	"github.com/warp/accrual-engine/generic"
	"github.com/warp/accrual-engine/loan"
)

const umojaJSON = `{
	"name": "Umoja Savings Group",
	"opening_date": "2022-09-15",
	"default_contribution_amount": "2000",
	"annual_interest_rate": 10,
	"standard_loan_rate": "12.5",
	"catch_up_spread_months": 18,
	"catch_up_through": "joining_date",
	"settlement": {"guard": "calendar_year", "principal_basis": "approved_amount"}
}`

func TestParseCommunity_AllFields(t *testing.T) {
	cfg, policy, err := factory.NewCommunityFactory().ParseCommunity(umojaJSON)
	require.NoError(t, err)

	assert.Equal(t, "Umoja Savings Group", cfg.Name)
	assert.Equal(t, generic.Date(2022, time.September, 15), cfg.OpeningDate)
	assert.Equal(t, "2000.00", cfg.DefaultContribution.StringFixed(2))
	assert.Equal(t, "10", cfg.AnnualInterestRate.Percent.String())
	assert.Equal(t, "12.5", cfg.StandardLoanRate.Percent.String())
	assert.Equal(t, 18, cfg.CatchUpSpreadMonths)
	assert.Equal(t, generic.CatchUpThroughJoining, cfg.CatchUpThrough)

	assert.Equal(t, loan.GuardCalendarYear, policy.Guard)
	assert.Equal(t, loan.BasisApprovedAmount, policy.Basis)
}

func TestParseCommunity_Defaults(t *testing.T) {
	cfg, policy, err := factory.NewCommunityFactory().ParseCommunity(`{
		"opening_date": "2022-09-15",
		"default_contribution_amount": 2000,
		"annual_interest_rate": 10
	}`)
	require.NoError(t, err)

	assert.Equal(t, "16", cfg.StandardLoanRate.Percent.String())
	assert.Equal(t, generic.DefaultCatchUpSpreadMonths, cfg.CatchUpSpreadMonths)
	assert.Equal(t, generic.CatchUpThroughReference, cfg.CatchUpThrough)
	assert.Equal(t, loan.DefaultSettlementPolicy(), policy)
	assert.Equal(t, loan.BasisApprovedAmount, policy.Basis)
}

func TestParseCommunity_Invalid(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"missing opening date", `{"default_contribution_amount": 2000, "annual_interest_rate": 10}`},
		{"bad opening date", `{"opening_date": "15/09/2022", "default_contribution_amount": 2000}`},
		{"zero contribution", `{"opening_date": "2022-09-15", "default_contribution_amount": 0}`},
		{"negative rate", `{"opening_date": "2022-09-15", "default_contribution_amount": 2000, "annual_interest_rate": -1}`},
		{"unknown guard", `{"opening_date": "2022-09-15", "default_contribution_amount": 2000, "settlement": {"guard": "monthly"}}`},
		{"unknown basis", `{"opening_date": "2022-09-15", "default_contribution_amount": 2000, "settlement": {"principal_basis": "requested"}}`},
	}

	f := factory.NewCommunityFactory()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.ParseCommunity(tt.json)
			assert.True(t, errors.Is(err, generic.ErrInvalidInput), "got %v", err)
		})
	}
}

func TestParseCommunity_MalformedJSON(t *testing.T) {
	_, _, err := factory.NewCommunityFactory().ParseCommunity(`{"opening_date":`)
	assert.Error(t, err)
}

func TestToJSON_ParsesBack(t *testing.T) {
	f := factory.NewCommunityFactory()
	cfg, policy, err := f.ParseCommunity(umojaJSON)
	require.NoError(t, err)

	data, err := json.Marshal(f.ToJSON(cfg, policy))
	require.NoError(t, err)

	cfg2, policy2, err := f.ParseCommunity(string(data))
	require.NoError(t, err)
	assert.Equal(t, cfg.OpeningDate, cfg2.OpeningDate)
	assert.True(t, cfg.DefaultContribution.Equal(cfg2.DefaultContribution))
	assert.True(t, cfg.StandardLoanRate.Percent.Equal(cfg2.StandardLoanRate.Percent))
	assert.Equal(t, policy, policy2)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "community.json")
	require.NoError(t, os.WriteFile(path, []byte(umojaJSON), 0o600))

	cfg, _, err := factory.NewCommunityFactory().LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Umoja Savings Group", cfg.Name)

	_, _, err = factory.NewCommunityFactory().LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
