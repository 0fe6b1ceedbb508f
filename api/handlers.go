/*
handlers.go - HTTP API handlers for the accrual engine

PURPOSE:
  Exposes the loan and contribution services via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Loans:
    GET    /api/loans                      List loans (?borrower_id=&status=)
    POST   /api/loans                      Request a loan
    GET    /api/loans/{id}                 Loan with repayment history
    GET    /api/loans/{id}/summary         Principal/interest totals
    GET    /api/loans/{id}/settlement      Settlement quote (?date=)
    POST   /api/loans/{id}/approve         [admin]
    POST   /api/loans/{id}/reject          [admin]
    POST   /api/loans/{id}/disburse        [admin]
    POST   /api/loans/{id}/complete        [admin]
    POST   /api/loans/{id}/approval-date   [admin] One-time correction
    POST   /api/loans/{id}/interest-paid   [admin] Move interest anchor
    POST   /api/loans/{id}/repayments      [admin]
    POST   /api/loans/{id}/settle/interest [admin] Interest-only settlement
    POST   /api/loans/{id}/settle/full     [admin] Full settlement

  Members & contributions:
    GET    /api/members                             List members
    POST   /api/members                             [admin] Create or update
    GET    /api/members/{id}                        Member details
    GET    /api/members/{id}/plan                   Historical plan
    GET    /api/members/{id}/contributions          Member's records
    POST   /api/members/{id}/contributions/missing  [admin] Bulk create
    GET    /api/contributions                       List (?member_id=&status=&month=)
    POST   /api/contributions/{id}/payment          [admin]
    POST   /api/contributions/setup                 [admin] Month setup
    POST   /api/contributions/sweep-overdue         [admin]
    GET    /api/catch-up                            Catch-up (?joining_date=)

  Demo:
    GET    /api/scenarios                  Available scenarios
    GET    /api/scenarios/current          Loaded scenario, if any
    POST   /api/scenarios/load             [admin] Reset and load

REFERENCE TIME:
  Every time-sensitive call takes "now" from the handler clock, or from the
  ?as_of=YYYY-MM-DD query parameter when given.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input
  - 404: Record not found
  - 409: Invalid transition, already settled, duplicate, concurrent write
  - 422: Overpayment, component mismatch
  - 503: Record locked by another operation
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/accrual-engine/contribution"
	"github.com/warp/accrual-engine/generic"
	"github.com/warp/accrual-engine/loan"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Loans         *loan.Service
	Contributions *contribution.Service

	// Clock supplies the reference time when ?as_of is absent.
	Clock func() time.Time

	// Reset clears every store before a demo scenario loads. Nil disables
	// scenarios.
	Reset func(context.Context) error

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler over the two services.
func NewHandler(loans *loan.Service, contributions *contribution.Service) *Handler {
	return &Handler{
		Loans:         loans,
		Contributions: contributions,
		Clock:         func() time.Time { return time.Now().UTC() },
	}
}

// now resolves the request's reference time.
func (h *Handler) now(r *http.Request) (time.Time, error) {
	if s := r.URL.Query().Get("as_of"); s != "" {
		return generic.ParseDate("as_of", s)
	}
	return h.Clock(), nil
}

// =============================================================================
// LOAN READS
// =============================================================================

// ListLoans returns loans, newest request first.
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loans, err := h.Loans.List(r.Context(), loan.Filter{
		BorrowerID: generic.MemberID(q.Get("borrower_id")),
		Status:     loan.Status(q.Get("status")),
	})
	if err != nil {
		writeDomainError(w, "Failed to list loans", err)
		return
	}

	dtos := make([]LoanDTO, len(loans))
	for i := range loans {
		dtos[i] = toLoanDTO(&loans[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	l, err := h.Loans.Get(r.Context(), loanID(r))
	if err != nil {
		writeDomainError(w, "Failed to get loan", err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanDTO(l))
}

// GetLoanSummary returns repayment totals and whether they reconcile with
// the stored balance.
func (h *Handler) GetLoanSummary(w http.ResponseWriter, r *http.Request) {
	l, err := h.Loans.Get(r.Context(), loanID(r))
	if err != nil {
		writeDomainError(w, "Failed to get loan", err)
		return
	}
	s := l.Summary()
	writeJSON(w, http.StatusOK, LoanSummaryDTO{
		LoanID:           string(l.ID),
		RepaymentCount:   s.RepaymentCount,
		TotalPrincipal:   money(s.TotalPrincipal),
		TotalInterest:    money(s.TotalInterest),
		AmountPaid:       money(s.AmountPaid),
		RemainingBalance: money(s.RemainingBalance),
		Consistent:       l.Verify() == nil,
	})
}

// QuoteSettlement prices both settlement options on ?date= (default today, UTC).
func (h *Handler) QuoteSettlement(w http.ResponseWriter, r *http.Request) {
	now, err := h.now(r)
	if err != nil {
		writeDomainError(w, "Invalid reference date", err)
		return
	}
	date := generic.DateOf(now)
	if s := r.URL.Query().Get("date"); s != "" {
		if date, err = generic.ParseDate("date", s); err != nil {
			writeDomainError(w, "Invalid settlement date", err)
			return
		}
	}

	q, err := h.Loans.Quote(r.Context(), loanID(r), date, now)
	if err != nil {
		writeDomainError(w, "Failed to quote settlement", err)
		return
	}
	writeJSON(w, http.StatusOK, toQuoteDTO(q))
}

// =============================================================================
// LOAN LIFECYCLE
// =============================================================================

// RequestLoan creates a pending loan.
func (h *Handler) RequestLoan(w http.ResponseWriter, r *http.Request) {
	var req RequestLoanRequest
	if !decode(w, r, &req) {
		return
	}
	now, err := h.now(r)
	if err != nil {
		writeDomainError(w, "Invalid reference date", err)
		return
	}

	l, err := h.Loans.Request(r.Context(), loan.RequestCommand{
		BorrowerID:      generic.MemberID(req.BorrowerID),
		RequestedAmount: req.RequestedAmount,
		Purpose:         req.Purpose,
	}, now)
	if err != nil {
		writeDomainError(w, "Failed to request loan", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLoanDTO(l))
}

func (h *Handler) ApproveLoan(w http.ResponseWriter, r *http.Request) {
	var req ApproveLoanRequest
	if !decode(w, r, &req) {
		return
	}
	now, err := h.now(r)
	if err != nil {
		writeDomainError(w, "Invalid reference date", err)
		return
	}

	cmd := loan.ApproveCommand{Notes: req.Notes}
	if req.ApprovedAmount.Valid {
		cmd.ApprovedAmount = &req.ApprovedAmount.Decimal
	}
	if req.InterestRate.Valid {
		rate := generic.NewRateFromDecimal(req.InterestRate.Decimal)
		cmd.InterestRate = &rate
	}

	l, err := h.Loans.Approve(r.Context(), loanID(r), cmd, now)
	if err != nil {
		writeDomainError(w, "Failed to approve loan", err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanDTO(l))
}

func (h *Handler) RejectLoan(w http.ResponseWriter, r *http.Request) {
	var req NotesRequest
	if !decode(w, r, &req) {
		return
	}
	now, err := h.now(r)
	if err != nil {
		writeDomainError(w, "Invalid reference date", err)
		return
	}

	l, err := h.Loans.Reject(r.Context(), loanID(r), req.Notes, now)
	if err != nil {
		writeDomainError(w, "Failed to reject loan", err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanDTO(l))
}

func (h *Handler) DisburseLoan(w http.ResponseWriter, r *http.Request) {
	h.dateAction(w, r, "disbursement_date", "Failed to disburse loan", h.Loans.Disburse)
}

func (h *Handler) CompleteLoan(w http.ResponseWriter, r *http.Request) {
	h.dateAction(w, r, "actual_repayment_date", "Failed to complete loan", h.Loans.Complete)
}

// CorrectApprovalDate requires an explicit date.
func (h *Handler) CorrectApprovalDate(w http.ResponseWriter, r *http.Request) {
	h.dateAction(w, r, "approval_date", "Failed to correct approval date", h.Loans.CorrectApprovalDate)
}

func (h *Handler) MarkInterestPaid(w http.ResponseWriter, r *http.Request) {
	h.dateAction(w, r, "last_interest_paid_date", "Failed to mark interest paid", h.Loans.MarkInterestPaid)
}

// dateAction decodes a DateRequest and applies fn. An empty date is passed
// as zero; the domain decides whether that means today.
func (h *Handler) dateAction(w http.ResponseWriter, r *http.Request, field, failMsg string, fn func(context.Context, generic.LoanID, time.Time, time.Time) (*loan.Loan, error)) {
	var req DateRequest
	if !decode(w, r, &req) {
		return
	}
	now, err := h.now(r)
	if err != nil {
		writeDomainError(w, "Invalid reference date", err)
		return
	}
	date, err := parseOptionalDate(field, req.Date)
	if err != nil {
		writeDomainError(w, failMsg, err)
		return
	}

	l, err := fn(r.Context(), loanID(r), date, now)
	if err != nil {
		writeDomainError(w, failMsg, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanDTO(l))
}

// RecordRepayment applies one payment.
func (h *Handler) RecordRepayment(w http.ResponseWriter, r *http.Request) {
	var req RepaymentRequest
	if !decode(w, r, &req) {
		return
	}
	now, err := h.now(r)
	if err != nil {
		writeDomainError(w, "Invalid reference date", err)
		return
	}
	date, err := parseOptionalDate("payment_date", req.PaymentDate)
	if err != nil {
		writeDomainError(w, "Failed to record repayment", err)
		return
	}

	l, rep, err := h.Loans.RecordRepayment(r.Context(), loanID(r), loan.RepaymentCommand{
		Amount:             req.Amount,
		Type:               loan.PaymentType(req.PaymentType),
		PrincipalComponent: req.PrincipalComponent,
		InterestComponent:  req.InterestComponent,
		Method:             generic.PaymentMethod(req.PaymentMethod),
		Date:               date,
		Notes:              req.Notes,
		ReceiptNumber:      req.ReceiptNumber,
		RecordedBy:         req.RecordedBy,
	}, now)
	if err != nil {
		writeDomainError(w, "Failed to record repayment", err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		Loan      LoanDTO      `json:"loan"`
		Repayment RepaymentDTO `json:"repayment"`
	}{toLoanDTO(l), toRepaymentDTO(rep)})
}

func (h *Handler) SettleInterestOnly(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, h.Loans.SettleInterestOnly)
}

func (h *Handler) SettleFull(w http.ResponseWriter, r *http.Request) {
	h.settle(w, r, h.Loans.SettleFull)
}

func (h *Handler) settle(w http.ResponseWriter, r *http.Request, fn func(context.Context, generic.LoanID, loan.SettlementCommand, time.Time) (*loan.Loan, loan.SettlementResult, error)) {
	var req SettleRequest
	if !decode(w, r, &req) {
		return
	}
	now, err := h.now(r)
	if err != nil {
		writeDomainError(w, "Invalid reference date", err)
		return
	}
	date := generic.DateOf(now)
	if req.SettlementDate != "" {
		if date, err = generic.ParseDate("settlement_date", req.SettlementDate); err != nil {
			writeDomainError(w, "Failed to settle loan", err)
			return
		}
	}

	l, res, err := fn(r.Context(), loanID(r), loan.SettlementCommand{
		Date:          date,
		Method:        generic.PaymentMethod(req.PaymentMethod),
		Notes:         req.Notes,
		ReceiptNumber: req.ReceiptNumber,
		RecordedBy:    req.RecordedBy,
	}, now)
	if err != nil {
		writeDomainError(w, "Failed to settle loan", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementDTO(l, res))
}

// =============================================================================
// MEMBER HANDLERS
// =============================================================================

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.Contributions.Store.ListMembers(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list members", err)
		return
	}
	dtos := make([]MemberDTO, len(members))
	for i, m := range members {
		dtos[i] = toMemberDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	m, err := h.Contributions.GetMember(r.Context(), memberID(r))
	if err != nil {
		writeDomainError(w, "Failed to get member", err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberDTO(*m))
}

// SaveMember creates or updates a member.
func (h *Handler) SaveMember(w http.ResponseWriter, r *http.Request) {
	var req CreateMemberRequest
	if !decode(w, r, &req) {
		return
	}
	join, err := parseOptionalDate("join_date", req.JoinDate)
	if err != nil {
		writeDomainError(w, "Failed to save member", err)
		return
	}

	m := contribution.Member{ID: generic.MemberID(req.ID), Name: req.Name, JoinDate: join, CreatedAt: h.Clock()}
	if err := h.Contributions.SaveMember(r.Context(), m); err != nil {
		writeDomainError(w, "Failed to save member", err)
		return
	}
	writeJSON(w, http.StatusCreated, toMemberDTO(m))
}

// =============================================================================
// CONTRIBUTION HANDLERS
// =============================================================================

// GetPlan returns the member's historical contribution plan.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	now, err := h.now(r)
	if err != nil {
		writeDomainError(w, "Invalid reference date", err)
		return
	}
	plan, err := h.Contributions.Plan(r.Context(), memberID(r), now)
	if err != nil {
		writeDomainError(w, "Failed to build plan", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(plan))
}

func (h *Handler) ListMemberContributions(w http.ResponseWriter, r *http.Request) {
	cs, err := h.Contributions.List(r.Context(), contribution.Filter{MemberID: memberID(r)})
	if err != nil {
		writeDomainError(w, "Failed to list contributions", err)
		return
	}
	writeJSON(w, http.StatusOK, toContributionDTOs(cs))
}

func (h *Handler) ListContributions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := contribution.Filter{
		MemberID: generic.MemberID(q.Get("member_id")),
		Status:   contribution.Status(q.Get("status")),
	}
	if s := q.Get("month"); s != "" {
		m, err := generic.ParseMonth(s)
		if err != nil {
			writeDomainError(w, "Invalid month", &generic.InputError{Field: "month", Reason: err.Error()})
			return
		}
		f.Month = m
	}

	cs, err := h.Contributions.List(r.Context(), f)
	if err != nil {
		writeDomainError(w, "Failed to list contributions", err)
		return
	}
	writeJSON(w, http.StatusOK, toContributionDTOs(cs))
}

// CreateMissing records the selected months of a member's plan.
func (h *Handler) CreateMissing(w http.ResponseWriter, r *http.Request) {
	var req CreateMissingRequest
	if !decode(w, r, &req) {
		return
	}
	now, err := h.now(r)
	if err != nil {
		writeDomainError(w, "Invalid reference date", err)
		return
	}
	paidDate, err := parseOptionalDate("paid_date", req.PaidDate)
	if err != nil {
		writeDomainError(w, "Failed to create contributions", err)
		return
	}
	months := make([]generic.Month, 0, len(req.Months))
	for _, s := range req.Months {
		m, err := generic.ParseMonth(s)
		if err != nil {
			writeDomainError(w, "Failed to create contributions", &generic.InputError{Field: "months", Reason: err.Error()})
			return
		}
		months = append(months, m)
	}

	res, err := h.Contributions.CreateMissing(r.Context(), contribution.CreateMissingCommand{
		MemberID:   memberID(r),
		Months:     months,
		Amount:     req.Amount,
		MarkPaid:   req.MarkPaid,
		PaidDate:   paidDate,
		Method:     generic.PaymentMethod(req.PaymentMethod),
		RecordedBy: req.RecordedBy,
		Notes:      req.Notes,
	}, now)
	if err != nil {
		writeDomainError(w, "Failed to create contributions", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateMissingDTO{
		Created: toContributionDTOs(res.Created),
		Skipped: monthStrings(res.Skipped),
	})
}

func (h *Handler) RecordContributionPayment(w http.ResponseWriter, r *http.Request) {
	var req ContributionPaymentRequest
	if !decode(w, r, &req) {
		return
	}
	now, err := h.now(r)
	if err != nil {
		writeDomainError(w, "Invalid reference date", err)
		return
	}
	date, err := parseOptionalDate("paid_date", req.PaidDate)
	if err != nil {
		writeDomainError(w, "Failed to record payment", err)
		return
	}

	c, err := h.Contributions.RecordPayment(r.Context(), generic.ContributionID(chi.URLParam(r, "id")), contribution.PaymentCommand{
		Method:     generic.PaymentMethod(req.PaymentMethod),
		Date:       date,
		RecordedBy: req.RecordedBy,
		Notes:      req.Notes,
	}, now)
	if err != nil {
		writeDomainError(w, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusOK, toContributionDTO(*c))
}

// SetupMonth creates pending records for every active member. The month
// defaults to the reference month.
func (h *Handler) SetupMonth(w http.ResponseWriter, r *http.Request) {
	var req SetupMonthRequest
	if !decode(w, r, &req) {
		return
	}
	now, err := h.now(r)
	if err != nil {
		writeDomainError(w, "Invalid reference date", err)
		return
	}
	month := generic.MonthOf(now)
	if req.Month != "" {
		if month, err = generic.ParseMonth(req.Month); err != nil {
			writeDomainError(w, "Invalid month", &generic.InputError{Field: "month", Reason: err.Error()})
			return
		}
	}

	created, err := h.Contributions.SetupMonth(r.Context(), month, now)
	if err != nil {
		writeDomainError(w, "Failed to set up month", err)
		return
	}
	writeJSON(w, http.StatusOK, toContributionDTOs(created))
}

func (h *Handler) SweepOverdue(w http.ResponseWriter, r *http.Request) {
	now, err := h.now(r)
	if err != nil {
		writeDomainError(w, "Invalid reference date", err)
		return
	}
	n, err := h.Contributions.SweepOverdue(r.Context(), now)
	if err != nil {
		writeDomainError(w, "Failed to sweep overdue contributions", err)
		return
	}
	writeJSON(w, http.StatusOK, SweepDTO{MarkedOverdue: n})
}

// GetCatchUp prices the joining payment for ?joining_date=.
func (h *Handler) GetCatchUp(w http.ResponseWriter, r *http.Request) {
	now, err := h.now(r)
	if err != nil {
		writeDomainError(w, "Invalid reference date", err)
		return
	}
	joining, err := generic.ParseDate("joining_date", r.URL.Query().Get("joining_date"))
	if err != nil {
		writeDomainError(w, "Invalid joining date", err)
		return
	}

	res, err := h.Contributions.CatchUp(joining, now)
	if err != nil {
		writeDomainError(w, "Failed to calculate catch-up", err)
		return
	}
	writeJSON(w, http.StatusOK, toCatchUpDTO(res))
}

// =============================================================================
// HELPERS
// =============================================================================

func loanID(r *http.Request) generic.LoanID { return generic.LoanID(chi.URLParam(r, "id")) }

func memberID(r *http.Request) generic.MemberID { return generic.MemberID(chi.URLParam(r, "id")) }

func parseOptionalDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return generic.ParseDate(field, s)
}

// decode reads a JSON body. An empty body leaves v at its zero value.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
		resp.Kind = errorKind(err)
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps an error kind to its HTTP status.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, generic.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, generic.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, generic.ErrInvalidTransition),
		errors.Is(err, generic.ErrAlreadySettled),
		errors.Is(err, generic.ErrDuplicateContribution),
		errors.Is(err, generic.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, generic.ErrOverpayment),
		errors.Is(err, generic.ErrAmountMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, generic.ErrLockUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorKind(err error) string {
	kinds := []struct {
		target error
		kind   string
	}{
		{generic.ErrNotFound, "not_found"},
		{generic.ErrInvalidInput, "invalid_input"},
		{generic.ErrInvalidTransition, "invalid_transition"},
		{generic.ErrAlreadySettled, "already_settled"},
		{generic.ErrDuplicateContribution, "duplicate_contribution"},
		{generic.ErrConcurrentModification, "concurrent_modification"},
		{generic.ErrOverpayment, "overpayment"},
		{generic.ErrAmountMismatch, "amount_mismatch"},
		{generic.ErrLockUnavailable, "lock_unavailable"},
	}
	for _, k := range kinds {
		if errors.Is(err, k.target) {
			return k.kind
		}
	}
	return ""
}
