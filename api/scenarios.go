/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Every record goes through the loan and
	contribution services, so scenarios obey the same rules as live data.

AVAILABLE SCENARIOS:

	founding-members: Three members with paid, missing and overdue months
	late-joiner:      Founders plus a member joining today (catch-up demo)
	loan-book:        Loans in every status, with repayments and settlements

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create members
 3. Bulk create contribution history from each member's plan
 4. Walk loans through their lifecycle

Dates are relative to the request's reference time (?as_of), so a scenario
always looks current.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "loan-book"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description and loader

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler.Reset
  - contribution/service.go, loan/service.go: the operations used
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/accrual-engine/contribution"
	"github.com/warp/accrual-engine/generic"
	"github.com/warp/accrual-engine/loan"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	load func(h *Handler, ctx context.Context, now time.Time) error
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "founding-members",
			Name:        "Founding Members",
			Description: "One member fully paid, one with missing months, one with overdue months",
			Category:    "contributions",
		},
		load: (*Handler).loadFoundingMembersScenario,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "late-joiner",
			Name:        "Late Joiner",
			Description: "Founders plus a member joining today; query /api/catch-up for their joining payment",
			Category:    "contributions",
		},
		load: (*Handler).loadLateJoinerScenario,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "loan-book",
			Name:        "Loan Book",
			Description: "Pending, approved, rejected, disbursed and completed loans",
			Category:    "loans",
		},
		load: (*Handler).loadLoanBookScenario,
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if s, ok := findScenario(current); ok {
		writeJSON(w, http.StatusOK, s.ScenarioDTO)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}
	if h.Reset == nil {
		writeError(w, http.StatusNotImplemented, "Scenarios are disabled: no reset configured", nil)
		return
	}
	now, err := h.now(r)
	if err != nil {
		writeDomainError(w, "Invalid reference date", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	h.currentScenario = ""
	if err := h.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	if err := s.load(h, ctx, generic.Date(now.Year(), now.Month(), now.Day())); err != nil {
		writeDomainError(w, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = s.ID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": s.ID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadFoundingMembersScenario(ctx context.Context, now time.Time) error {
	opening := h.Contributions.Config.OpeningDate

	// Amina: every month paid.
	if err := h.seedMember(ctx, "mem-001", "Amina Odhiambo", opening, now, func(plan contribution.Plan) []contribution.CreateMissingCommand {
		return []contribution.CreateMissingCommand{{Months: plan.MissingMonths, MarkPaid: true, Method: generic.MethodMobile}}
	}); err != nil {
		return err
	}

	// Baraka: paid except the last three months, which stay missing.
	if err := h.seedMember(ctx, "mem-002", "Baraka Mwangi", opening, now, func(plan contribution.Plan) []contribution.CreateMissingCommand {
		paid := plan.MissingMonths
		if len(paid) > 3 {
			paid = paid[:len(paid)-3]
		} else {
			paid = nil
		}
		return []contribution.CreateMissingCommand{{Months: paid, MarkPaid: true, Method: generic.MethodBank}}
	}); err != nil {
		return err
	}

	// Chen: joined six months in, first half paid, the rest recorded but unpaid.
	chenJoined := opening.AddDate(0, 6, 0)
	if chenJoined.After(now) {
		chenJoined = opening
	}
	if err := h.seedMember(ctx, "mem-003", "Chen Wei", chenJoined, now, func(plan contribution.Plan) []contribution.CreateMissingCommand {
		half := len(plan.MissingMonths) / 2
		return []contribution.CreateMissingCommand{
			{Months: plan.MissingMonths[:half], MarkPaid: true, Method: generic.MethodCash},
			{Months: plan.MissingMonths[half:]},
		}
	}); err != nil {
		return err
	}

	if _, err := h.Contributions.SetupMonth(ctx, generic.MonthOf(now), now); err != nil {
		return err
	}
	_, err := h.Contributions.SweepOverdue(ctx, now)
	return err
}

func (h *Handler) loadLateJoinerScenario(ctx context.Context, now time.Time) error {
	opening := h.Contributions.Config.OpeningDate

	for _, m := range []struct {
		id, name string
	}{
		{"mem-001", "Amina Odhiambo"},
		{"mem-002", "Baraka Mwangi"},
	} {
		if err := h.seedMember(ctx, generic.MemberID(m.id), m.name, opening, now, func(plan contribution.Plan) []contribution.CreateMissingCommand {
			return []contribution.CreateMissingCommand{{Months: plan.MissingMonths, MarkPaid: true, Method: generic.MethodBank}}
		}); err != nil {
			return err
		}
	}

	// The newcomer owes nothing through the planner; their history is priced
	// by the catch-up calculator instead.
	return h.Contributions.SaveMember(ctx, contribution.Member{
		ID:        "mem-004",
		Name:      "Dalia Hassan",
		JoinDate:  now,
		CreatedAt: now,
	})
}

func (h *Handler) loadLoanBookScenario(ctx context.Context, now time.Time) error {
	for _, m := range []struct {
		id, name string
	}{
		{"mem-001", "Amina Odhiambo"},
		{"mem-002", "Baraka Mwangi"},
		{"mem-003", "Chen Wei"},
	} {
		if err := h.Contributions.SaveMember(ctx, contribution.Member{
			ID:        generic.MemberID(m.id),
			Name:      m.name,
			JoinDate:  h.Contributions.Config.OpeningDate,
			CreatedAt: now,
		}); err != nil {
			return err
		}
	}

	day := func(offset int) time.Time { return now.AddDate(0, 0, offset) }
	amount := generic.MustParseMoney

	// Pending
	if _, err := h.Loans.Request(ctx, loan.RequestCommand{
		BorrowerID: "mem-001", RequestedAmount: amount("15000"), Purpose: "Stock for market stall",
	}, day(-2)); err != nil {
		return err
	}

	// Rejected
	rejected, err := h.Loans.Request(ctx, loan.RequestCommand{
		BorrowerID: "mem-003", RequestedAmount: amount("500000"), Purpose: "Land purchase",
	}, day(-20))
	if err != nil {
		return err
	}
	if _, err := h.Loans.Reject(ctx, rejected.ID, "Exceeds the group's lending capacity", day(-18)); err != nil {
		return err
	}

	// Approved for less than requested, awaiting disbursement
	approved, err := h.Loans.Request(ctx, loan.RequestCommand{
		BorrowerID: "mem-002", RequestedAmount: amount("40000"), Purpose: "Motorbike repair",
	}, day(-7))
	if err != nil {
		return err
	}
	reduced := amount("30000")
	if _, err := h.Loans.Approve(ctx, approved.ID, loan.ApproveCommand{ApprovedAmount: &reduced}, day(-5)); err != nil {
		return err
	}

	// Disbursed with a principal repayment and an interest-only settlement
	active, err := h.disburse(ctx, "mem-001", amount("100000"), "School fees", day(-120))
	if err != nil {
		return err
	}
	if _, _, err := h.Loans.RecordRepayment(ctx, active.ID, loan.RepaymentCommand{
		Amount: amount("20000"), Type: loan.PaymentPrincipal, Method: generic.MethodMobile,
		Date: day(-60), RecordedBy: "treasurer",
	}, day(-60)); err != nil {
		return err
	}
	if _, _, err := h.Loans.SettleInterestOnly(ctx, active.ID, loan.SettlementCommand{
		Date: day(-30), Method: generic.MethodBank, RecordedBy: "treasurer",
	}, day(-30)); err != nil {
		return err
	}

	// Completed through full settlement
	settled, err := h.disburse(ctx, "mem-002", amount("25000"), "Seeds and fertiliser", day(-200))
	if err != nil {
		return err
	}
	_, _, err = h.Loans.SettleFull(ctx, settled.ID, loan.SettlementCommand{
		Date: day(-10), Method: generic.MethodCash, RecordedBy: "treasurer",
	}, day(-10))
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

// seedMember saves a member and bulk-creates the months choose picks from
// their plan.
func (h *Handler) seedMember(ctx context.Context, id generic.MemberID, name string, joined, now time.Time,
	choose func(contribution.Plan) []contribution.CreateMissingCommand) error {
	if err := h.Contributions.SaveMember(ctx, contribution.Member{ID: id, Name: name, JoinDate: joined, CreatedAt: now}); err != nil {
		return err
	}
	plan, err := h.Contributions.Plan(ctx, id, now)
	if err != nil {
		return err
	}
	for _, cmd := range choose(plan) {
		if len(cmd.Months) == 0 {
			continue
		}
		cmd.MemberID = id
		cmd.RecordedBy = "scenario"
		if _, err := h.Contributions.CreateMissing(ctx, cmd, now); err != nil {
			return err
		}
	}
	return nil
}

// disburse requests, approves and disburses a loan starting on requested.
func (h *Handler) disburse(ctx context.Context, borrower generic.MemberID, amount decimal.Decimal, purpose string, requested time.Time) (*loan.Loan, error) {
	l, err := h.Loans.Request(ctx, loan.RequestCommand{BorrowerID: borrower, RequestedAmount: amount, Purpose: purpose}, requested)
	if err != nil {
		return nil, err
	}
	approvedAt := requested.AddDate(0, 0, 3)
	if _, err := h.Loans.Approve(ctx, l.ID, loan.ApproveCommand{}, approvedAt); err != nil {
		return nil, err
	}
	disbursedAt := approvedAt.AddDate(0, 0, 2)
	return h.Loans.Disburse(ctx, l.ID, disbursedAt, disbursedAt)
}
