/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Responses render amounts as fixed 2dp strings ("7978.08"). Requests accept
  JSON numbers or decimal strings; both are parsed by shopspring/decimal.

DATES:
  Dates are "YYYY-MM-DD" (RFC3339 also accepted), months are "YYYY-MM".

VALIDATION:
  Validation is done in the domain packages, not in DTOs. DTOs are pure data
  carriers; handlers only parse dates and months.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/accrual-engine/contribution"
	"github.com/warp/accrual-engine/generic"
	"github.com/warp/accrual-engine/loan"
)

// =============================================================================
// LOANS
// =============================================================================

// LoanDTO represents a loan in API responses.
type LoanDTO struct {
	ID                    string         `json:"id"`
	BorrowerID            string         `json:"borrower_id"`
	Purpose               string         `json:"purpose,omitempty"`
	Status                string         `json:"status"`
	RequestedAmount       string         `json:"requested_amount"`
	ApprovedAmount        *string        `json:"approved_amount,omitempty"`
	InterestRate          string         `json:"interest_rate"`
	RequestDate           string         `json:"request_date"`
	ApprovalDate          *string        `json:"approval_date,omitempty"`
	ApprovalDateCorrected bool           `json:"approval_date_corrected"`
	DisbursementDate      *string        `json:"disbursement_date,omitempty"`
	ActualRepaymentDate   *string        `json:"actual_repayment_date,omitempty"`
	LastInterestPaidDate  *string        `json:"last_interest_paid_date,omitempty"`
	TotalAmountDue        string         `json:"total_amount_due"`
	AmountPaid            string         `json:"amount_paid"`
	RemainingBalance      string         `json:"remaining_balance"`
	Notes                 string         `json:"notes,omitempty"`
	Version               int            `json:"version"`
	Repayments            []RepaymentDTO `json:"repayments"`
}

// RepaymentDTO represents one repayment in API responses.
type RepaymentDTO struct {
	ID                 string `json:"id"`
	LoanID             string `json:"loan_id"`
	Amount             string `json:"amount"`
	PaymentDate        string `json:"payment_date"`
	PaymentMethod      string `json:"payment_method"`
	PaymentType        string `json:"payment_type"`
	PrincipalComponent string `json:"principal_component"`
	InterestComponent  string `json:"interest_component"`
	ReceiptNumber      string `json:"receipt_number,omitempty"`
	RecordedBy         string `json:"recorded_by,omitempty"`
	Notes              string `json:"notes,omitempty"`
}

// LoanSummaryDTO splits what a loan has received.
type LoanSummaryDTO struct {
	LoanID           string `json:"loan_id"`
	RepaymentCount   int    `json:"repayment_count"`
	TotalPrincipal   string `json:"total_principal"`
	TotalInterest    string `json:"total_interest"`
	AmountPaid       string `json:"amount_paid"`
	RemainingBalance string `json:"remaining_balance"`
	Consistent       bool   `json:"consistent"`
}

// QuoteDTO is a settlement quote.
type QuoteDTO struct {
	LoanID         string `json:"loan_id"`
	SettlementDate string `json:"settlement_date"`
	WindowFrom     string `json:"window_from"`
	WindowTo       string `json:"window_to"`
	Anchor         string `json:"anchor"`
	Days           int    `json:"days"`
	ElapsedMonths  string `json:"elapsed_months"`
	InterestRate   string `json:"interest_rate"`
	InterestBasis  string `json:"interest_basis"`
	Principal      string `json:"principal"`
	InterestOnly   string `json:"interest_only"`
	FullSettlement string `json:"full_settlement"`
	Guard          string `json:"guard"`
	PrincipalBasis string `json:"principal_basis"`

	InterestOnlyBlocked bool `json:"interest_only_blocked"`
}

// SettlementDTO is the result of a committed settlement.
type SettlementDTO struct {
	Loan      LoanDTO       `json:"loan"`
	Quote     QuoteDTO      `json:"quote"`
	Repayment *RepaymentDTO `json:"repayment,omitempty"`
}

// RequestLoanRequest is a member's loan request.
type RequestLoanRequest struct {
	BorrowerID      string          `json:"borrower_id"`
	RequestedAmount decimal.Decimal `json:"requested_amount"`
	Purpose         string          `json:"purpose"`
}

// ApproveLoanRequest is the admin's approval. Omitted fields take defaults.
type ApproveLoanRequest struct {
	ApprovedAmount decimal.NullDecimal `json:"approved_amount"`
	InterestRate   decimal.NullDecimal `json:"interest_rate"`
	Notes          string              `json:"notes"`
}

// NotesRequest carries free-text notes (reject).
type NotesRequest struct {
	Notes string `json:"notes"`
}

// DateRequest carries a single date (disburse, complete, approval-date,
// interest-paid).
type DateRequest struct {
	Date string `json:"date"`
}

// RepaymentRequest is one payment as entered by an admin.
type RepaymentRequest struct {
	Amount             decimal.Decimal `json:"amount"`
	PaymentType        string          `json:"payment_type"`
	PrincipalComponent decimal.Decimal `json:"principal_component"`
	InterestComponent  decimal.Decimal `json:"interest_component"`
	PaymentMethod      string          `json:"payment_method"`
	PaymentDate        string          `json:"payment_date"`
	Notes              string          `json:"notes"`
	ReceiptNumber      string          `json:"receipt_number"`
	RecordedBy         string          `json:"recorded_by"`
}

// SettleRequest commits a settlement on SettlementDate.
type SettleRequest struct {
	SettlementDate string `json:"settlement_date"`
	PaymentMethod  string `json:"payment_method"`
	Notes          string `json:"notes"`
	ReceiptNumber  string `json:"receipt_number"`
	RecordedBy     string `json:"recorded_by"`
}

// =============================================================================
// MEMBERS & CONTRIBUTIONS
// =============================================================================

// MemberDTO represents a member in API responses.
type MemberDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	JoinDate string `json:"join_date,omitempty"`
}

// CreateMemberRequest is the request to create or update a member.
type CreateMemberRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	JoinDate string `json:"join_date"`
}

// ContributionDTO represents one monthly contribution.
type ContributionDTO struct {
	ID            string `json:"id"`
	MemberID      string `json:"member_id"`
	Month         string `json:"month"`
	Year          int    `json:"year"`
	Amount        string `json:"amount"`
	Status        string `json:"status"`
	PaidDate      string `json:"paid_date,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
	RecordedBy    string `json:"recorded_by,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// PlanDTO is a member's historical contribution plan.
type PlanDTO struct {
	MemberID      string   `json:"member_id"`
	ReferenceDate string   `json:"reference_date"`
	StartMonth    string   `json:"start_month"`
	EndMonth      string   `json:"end_month"`
	DefaultAmount string   `json:"default_amount"`
	AllMonths     []string `json:"all_months"`
	PaidMonths    []string `json:"paid_months"`
	PendingMonths []string `json:"pending_months"`
	MissingMonths []string `json:"missing_months"`
	TotalRequired string   `json:"total_required"`
	TotalPaid     string   `json:"total_paid"`
	TotalPending  string   `json:"total_pending"`
	TotalMissing  string   `json:"total_missing"`
	IsCurrent     bool     `json:"is_current"`
}

// CreateMissingRequest selects months from a plan to record.
type CreateMissingRequest struct {
	Months        []string        `json:"months"`
	Amount        decimal.Decimal `json:"amount"`
	MarkPaid      bool            `json:"mark_paid"`
	PaidDate      string          `json:"paid_date"`
	PaymentMethod string          `json:"payment_method"`
	RecordedBy    string          `json:"recorded_by"`
	Notes         string          `json:"notes"`
}

// CreateMissingDTO lists what a bulk create did.
type CreateMissingDTO struct {
	Created []ContributionDTO `json:"created"`
	Skipped []string          `json:"skipped"`
}

// ContributionPaymentRequest marks a contribution as paid.
type ContributionPaymentRequest struct {
	PaymentMethod string `json:"payment_method"`
	PaidDate      string `json:"paid_date"`
	RecordedBy    string `json:"recorded_by"`
	Notes         string `json:"notes"`
}

// SetupMonthRequest creates the month's pending records.
type SetupMonthRequest struct {
	Month string `json:"month"`
}

// SweepDTO reports an overdue sweep.
type SweepDTO struct {
	MarkedOverdue int `json:"marked_overdue"`
}

// CatchUpBucketDTO is one year bucket of a catch-up.
type CatchUpBucketDTO struct {
	Year                 int      `json:"year"`
	Months               []string `json:"months"`
	BaseContribution     string   `json:"base_contribution"`
	InterestPeriodMonths int      `json:"interest_period_months"`
	InterestAmount       string   `json:"interest_amount"`
	Total                string   `json:"total"`
}

// CatchUpDTO is the joining payment for a late joiner.
type CatchUpDTO struct {
	JoiningDate          string             `json:"joining_date"`
	ReferenceDate        string             `json:"reference_date"`
	Through              string             `json:"through"`
	MonthsMissed         []string           `json:"months_missed"`
	MonthlyContribution  string             `json:"monthly_contribution"`
	AnnualRate           string             `json:"annual_rate"`
	TotalYears           int                `json:"total_years"`
	Buckets              []CatchUpBucketDTO `json:"buckets"`
	TotalBase            string             `json:"total_base"`
	TotalInterest        string             `json:"total_interest"`
	GrandTotal           string             `json:"grand_total"`
	SpreadMonths         int                `json:"spread_months"`
	MonthlyPaymentOption string             `json:"monthly_payment_option"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func dateStr(t time.Time) string { return generic.FormatDate(t) }

func datePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := generic.FormatDate(*t)
	return &s
}

func monthStrings(ms []generic.Month) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.String()
	}
	return out
}

func toLoanDTO(l *loan.Loan) LoanDTO {
	dto := LoanDTO{
		ID:                    string(l.ID),
		BorrowerID:            string(l.BorrowerID),
		Purpose:               l.Purpose,
		Status:                string(l.Status),
		RequestedAmount:       money(l.RequestedAmount),
		InterestRate:          l.InterestRate.Percent.String(),
		RequestDate:           dateStr(l.RequestDate),
		ApprovalDate:          datePtr(l.ApprovalDate),
		ApprovalDateCorrected: l.ApprovalDateCorrected,
		DisbursementDate:      datePtr(l.DisbursementDate),
		ActualRepaymentDate:   datePtr(l.ActualRepaymentDate),
		LastInterestPaidDate:  datePtr(l.LastInterestPaidDate),
		TotalAmountDue:        money(l.TotalAmountDue),
		AmountPaid:            money(l.AmountPaid),
		RemainingBalance:      money(l.RemainingBalance),
		Notes:                 l.Notes,
		Version:               l.Version,
		Repayments:            make([]RepaymentDTO, len(l.Repayments)),
	}
	if l.ApprovedAmount.Valid {
		s := money(l.ApprovedAmount.Decimal)
		dto.ApprovedAmount = &s
	}
	for i, r := range l.Repayments {
		dto.Repayments[i] = toRepaymentDTO(r)
	}
	return dto
}

func toRepaymentDTO(r loan.Repayment) RepaymentDTO {
	return RepaymentDTO{
		ID:                 string(r.ID),
		LoanID:             string(r.LoanID),
		Amount:             money(r.Amount),
		PaymentDate:        dateStr(r.PaymentDate),
		PaymentMethod:      string(r.Method),
		PaymentType:        string(r.Type),
		PrincipalComponent: money(r.PrincipalComponent),
		InterestComponent:  money(r.InterestComponent),
		ReceiptNumber:      r.ReceiptNumber,
		RecordedBy:         r.RecordedBy,
		Notes:              r.Notes,
	}
}

func toQuoteDTO(q loan.Quote) QuoteDTO {
	return QuoteDTO{
		LoanID:         string(q.LoanID),
		SettlementDate: dateStr(q.SettlementDate),
		WindowFrom:     dateStr(q.Window.From),
		WindowTo:       dateStr(q.Window.To),
		Anchor:         string(q.Anchor),
		Days:           q.Days,
		ElapsedMonths:  q.ElapsedMonths.StringFixed(4),
		InterestRate:   q.InterestRate.Percent.String(),
		InterestBasis:  money(q.InterestBasis),
		Principal:      money(q.Principal),
		InterestOnly:   money(q.InterestOnly),
		FullSettlement: money(q.FullSettlement),
		Guard:          string(q.Policy.Guard),
		PrincipalBasis: string(q.Policy.Basis),

		InterestOnlyBlocked: q.InterestOnlyBlocked,
	}
}

func toSettlementDTO(l *loan.Loan, res loan.SettlementResult) SettlementDTO {
	dto := SettlementDTO{Loan: toLoanDTO(l), Quote: toQuoteDTO(res.Quote)}
	if res.Repayment != nil {
		r := toRepaymentDTO(*res.Repayment)
		dto.Repayment = &r
	}
	return dto
}

func toMemberDTO(m contribution.Member) MemberDTO {
	dto := MemberDTO{ID: string(m.ID), Name: m.Name}
	if !m.JoinDate.IsZero() {
		dto.JoinDate = dateStr(m.JoinDate)
	}
	return dto
}

func toContributionDTO(c contribution.Contribution) ContributionDTO {
	dto := ContributionDTO{
		ID:            string(c.ID),
		MemberID:      string(c.MemberID),
		Month:         c.Month.String(),
		Year:          c.Year(),
		Amount:        money(c.Amount),
		Status:        string(c.Status),
		PaymentMethod: string(c.PaymentMethod),
		RecordedBy:    c.RecordedBy,
		Notes:         c.Notes,
	}
	if c.PaidDate != nil {
		dto.PaidDate = dateStr(*c.PaidDate)
	}
	return dto
}

func toContributionDTOs(cs []contribution.Contribution) []ContributionDTO {
	out := make([]ContributionDTO, len(cs))
	for i, c := range cs {
		out[i] = toContributionDTO(c)
	}
	return out
}

func toPlanDTO(p contribution.Plan) PlanDTO {
	dto := PlanDTO{
		MemberID:      string(p.MemberID),
		ReferenceDate: dateStr(p.ReferenceNow),
		DefaultAmount: money(p.DefaultAmount),
		AllMonths:     monthStrings(p.AllMonths),
		PaidMonths:    monthStrings(p.PaidMonths),
		PendingMonths: monthStrings(p.PendingMonths),
		MissingMonths: monthStrings(p.MissingMonths),
		TotalRequired: money(p.TotalRequired),
		TotalPaid:     money(p.TotalPaid),
		TotalPending:  money(p.TotalPending),
		TotalMissing:  money(p.TotalMissing),
		IsCurrent:     p.IsCurrent,
	}
	if len(p.AllMonths) > 0 {
		dto.StartMonth = p.StartMonth.String()
		dto.EndMonth = p.EndMonth.String()
	}
	return dto
}

func toCatchUpDTO(c contribution.CatchUp) CatchUpDTO {
	dto := CatchUpDTO{
		JoiningDate:          dateStr(c.JoiningDate),
		ReferenceDate:        dateStr(c.ReferenceNow),
		Through:              string(c.Through),
		MonthsMissed:         monthStrings(c.MonthsMissed),
		MonthlyContribution:  money(c.MonthlyContribution),
		AnnualRate:           c.AnnualRate.Percent.String(),
		TotalYears:           c.TotalYears,
		Buckets:              make([]CatchUpBucketDTO, len(c.Buckets)),
		TotalBase:            money(c.TotalBase),
		TotalInterest:        money(c.TotalInterest),
		GrandTotal:           money(c.GrandTotal),
		SpreadMonths:         c.SpreadMonths,
		MonthlyPaymentOption: money(c.MonthlyPaymentOption),
	}
	for i, b := range c.Buckets {
		dto.Buckets[i] = CatchUpBucketDTO{
			Year:                 b.Year,
			Months:               monthStrings(b.Months),
			BaseContribution:     money(b.BaseContribution),
			InterestPeriodMonths: b.InterestPeriodMonths,
			InterestAmount:       money(b.InterestAmount),
			Total:                money(b.Total),
		}
	}
	return dto
}
