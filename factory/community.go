/*
Package factory provides JSON to Go community configuration conversion.

PURPOSE:
  Converts a JSON community definition into generic.CommunityConfig and
  loan.SettlementPolicy. Administrators set the opening date, contribution
  amount and rates once, and every calculation reads them from here.

JSON SCHEMA:
  {
    "name": "Umoja Savings Group",
    "opening_date": "2022-09-15",
    "default_contribution_amount": "2000",
    "annual_interest_rate": 10,
    "standard_loan_rate": 16,
    "catch_up_spread_months": 24,
    "catch_up_through": "reference_now",
    "settlement": {
      "guard": "window",
      "principal_basis": "approved_amount"
    }
  }

  Amounts and rates accept JSON numbers or decimal strings. They are read
  with shopspring/decimal, never through float64.

DEFAULTS:
  standard_loan_rate       16
  catch_up_spread_months   24
  catch_up_through         reference_now (or joining_date)
  settlement.guard         window
  settlement.principal_basis approved_amount

USAGE:
  f := factory.NewCommunityFactory()
  cfg, policy, err := f.ParseCommunity(jsonString)

SEE ALSO:
  - generic/config.go: CommunityConfig
  - loan/settlement.go: SettlementPolicy
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/warp/accrual-engine/generic"
	"github.com/warp/accrual-engine/loan"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// CommunityJSON is the JSON representation of a community.
type CommunityJSON struct {
	Name                      string              `json:"name"`
	OpeningDate               string              `json:"opening_date"` // YYYY-MM-DD
	DefaultContributionAmount decimal.Decimal     `json:"default_contribution_amount"`
	AnnualInterestRate        decimal.Decimal     `json:"annual_interest_rate"`
	StandardLoanRate          decimal.NullDecimal `json:"standard_loan_rate,omitempty"`
	CatchUpSpreadMonths       int                 `json:"catch_up_spread_months,omitempty"`
	CatchUpThrough            string              `json:"catch_up_through,omitempty"`
	Settlement                *SettlementJSON     `json:"settlement,omitempty"`
}

// SettlementJSON represents the settlement policy.
type SettlementJSON struct {
	Guard          string `json:"guard,omitempty"`           // window, calendar_year
	PrincipalBasis string `json:"principal_basis,omitempty"` // remaining_balance, approved_amount
}

// =============================================================================
// COMMUNITY FACTORY
// =============================================================================

// CommunityFactory converts JSON community definitions to Go structs.
type CommunityFactory struct{}

func NewCommunityFactory() *CommunityFactory {
	return &CommunityFactory{}
}

// ParseCommunity parses a JSON string into a config and settlement policy.
func (f *CommunityFactory) ParseCommunity(jsonStr string) (generic.CommunityConfig, loan.SettlementPolicy, error) {
	var cj CommunityJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return generic.CommunityConfig{}, loan.SettlementPolicy{}, fmt.Errorf("failed to parse community JSON: %w", err)
	}
	return f.FromJSON(cj)
}

// LoadFile reads and parses a community definition from disk.
func (f *CommunityFactory) LoadFile(path string) (generic.CommunityConfig, loan.SettlementPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return generic.CommunityConfig{}, loan.SettlementPolicy{}, fmt.Errorf("failed to read community config: %w", err)
	}
	return f.ParseCommunity(string(data))
}

// FromJSON converts CommunityJSON, applies defaults and validates.
func (f *CommunityFactory) FromJSON(cj CommunityJSON) (generic.CommunityConfig, loan.SettlementPolicy, error) {
	opening, err := generic.ParseDate("opening_date", cj.OpeningDate)
	if err != nil {
		return generic.CommunityConfig{}, loan.SettlementPolicy{}, err
	}

	cfg := generic.CommunityConfig{
		Name:                cj.Name,
		OpeningDate:         opening,
		DefaultContribution: cj.DefaultContributionAmount,
		AnnualInterestRate:  generic.NewRateFromDecimal(cj.AnnualInterestRate),
		CatchUpSpreadMonths: cj.CatchUpSpreadMonths,
		CatchUpThrough:      generic.CatchUpEnd(cj.CatchUpThrough),
	}
	if cj.StandardLoanRate.Valid {
		cfg.StandardLoanRate = generic.NewRateFromDecimal(cj.StandardLoanRate.Decimal)
	}
	if err := cfg.Validate(); err != nil {
		return generic.CommunityConfig{}, loan.SettlementPolicy{}, err
	}
	cfg = cfg.WithDefaults()

	policy := parseSettlementPolicy(cj.Settlement)
	if err := policy.Validate(); err != nil {
		return generic.CommunityConfig{}, loan.SettlementPolicy{}, err
	}

	return cfg, policy, nil
}

// ToJSON converts a config and policy back to CommunityJSON.
func (f *CommunityFactory) ToJSON(cfg generic.CommunityConfig, policy loan.SettlementPolicy) CommunityJSON {
	return CommunityJSON{
		Name:                      cfg.Name,
		OpeningDate:               generic.FormatDate(cfg.OpeningDate),
		DefaultContributionAmount: cfg.DefaultContribution,
		AnnualInterestRate:        cfg.AnnualInterestRate.Percent,
		StandardLoanRate:          decimal.NewNullDecimal(cfg.StandardLoanRate.Percent),
		CatchUpSpreadMonths:       cfg.CatchUpSpreadMonths,
		CatchUpThrough:            string(cfg.CatchUpThrough),
		Settlement: &SettlementJSON{
			Guard:          string(policy.Guard),
			PrincipalBasis: string(policy.Basis),
		},
	}
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseSettlementPolicy(sj *SettlementJSON) loan.SettlementPolicy {
	p := loan.DefaultSettlementPolicy()
	if sj == nil {
		return p
	}
	if sj.Guard != "" {
		p.Guard = loan.SettlementGuard(sj.Guard)
	}
	if sj.PrincipalBasis != "" {
		p.Basis = loan.PrincipalBasis(sj.PrincipalBasis)
	}
	return p
}
