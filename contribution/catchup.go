/*
catchup.go - New-member catch-up calculator

PURPOSE:
  A member who joins after the community opened pays what they would have
  contributed since opening, plus the interest that money would have earned.

MONTHS MISSED:
  reference_now (default)  opening month .. last completed month
  joining_date             opening month .. min(join month - 1, last completed month)

  CommunityConfig.CatchUpThrough picks the end.

BUCKETS:
  Months missed are cut into consecutive 12-month buckets, earliest first.
  The last bucket may be partial. Bucket k of N earns interest for
  (N - k + 1) * 12 months, so the earliest money earns the most:

    base(k)     = len(months(k)) * default contribution
    interest(k) = round2(base(k) * rate/100 * period(k)/12)

  GrandTotal = sum(base) + sum(interest)
  MonthlyPaymentOption = round2(GrandTotal / CatchUpSpreadMonths)

EXAMPLE:
  Opening 2022-09-15, join and reference 2023-09-15, 2,000/month, 10%:
  1 bucket of 12 months, base 24,000, interest 2,400, total 26,400,
  monthly option over 24 months 1,100.
*/
package contribution

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/accrual-engine/generic"
)

const monthsPerBucket = 12

// YearBucket is one 12-month slice of the months a late joiner missed.
type YearBucket struct {
	Year                 int
	Months               []generic.Month
	BaseContribution     decimal.Decimal
	InterestPeriodMonths int
	InterestAmount       decimal.Decimal
	Total                decimal.Decimal
}

// CatchUp is the joining payment for a late joiner.
type CatchUp struct {
	JoiningDate  time.Time
	ReferenceNow time.Time

	Through             generic.CatchUpEnd
	MonthsMissed        []generic.Month
	MonthlyContribution decimal.Decimal
	AnnualRate          generic.Rate

	TotalYears int
	Buckets    []YearBucket

	TotalBase     decimal.Decimal
	TotalInterest decimal.Decimal
	GrandTotal    decimal.Decimal

	SpreadMonths         int
	MonthlyPaymentOption decimal.Decimal
}

// CalculateCatchUp prices the joining payment for someone joining on
// joiningDate, as of now.
func CalculateCatchUp(cfg generic.CommunityConfig, joiningDate, now time.Time) (CatchUp, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return CatchUp{}, err
	}
	if joiningDate.IsZero() {
		return CatchUp{}, &generic.InputError{Field: "joining_date", Reason: "is required"}
	}
	if !joiningDate.After(cfg.OpeningDate) {
		return CatchUp{}, &generic.InputError{Field: "joining_date",
			Reason: "must be after the community opening date " + generic.FormatDate(cfg.OpeningDate)}
	}

	through := generic.LastCompletedMonth(now)
	if cfg.CatchUpThrough == generic.CatchUpThroughJoining {
		through = generic.MinMonth(generic.MonthOf(joiningDate).Prev(), through)
	}
	missed := generic.MonthRange(cfg.OpeningMonth(), through)

	res := CatchUp{
		JoiningDate:          joiningDate,
		ReferenceNow:         now,
		Through:              cfg.CatchUpThrough,
		MonthsMissed:         missed,
		MonthlyContribution:  cfg.DefaultContribution,
		AnnualRate:           cfg.AnnualInterestRate,
		TotalYears:           (len(missed) + monthsPerBucket - 1) / monthsPerBucket,
		TotalBase:            decimal.Zero,
		TotalInterest:        decimal.Zero,
		GrandTotal:           decimal.Zero,
		SpreadMonths:         cfg.CatchUpSpreadMonths,
		MonthlyPaymentOption: decimal.Zero,
	}

	for k := 1; k <= res.TotalYears; k++ {
		lo := (k - 1) * monthsPerBucket
		hi := min(lo+monthsPerBucket, len(missed))
		months := missed[lo:hi]

		base := cfg.DefaultContribution.Mul(decimal.NewFromInt(int64(len(months))))
		period := (res.TotalYears - k + 1) * monthsPerBucket
		interest := generic.PeriodInterest(base, cfg.AnnualInterestRate, period)

		res.Buckets = append(res.Buckets, YearBucket{
			Year:                 k,
			Months:               months,
			BaseContribution:     base,
			InterestPeriodMonths: period,
			InterestAmount:       interest,
			Total:                base.Add(interest),
		})
		res.TotalBase = res.TotalBase.Add(base)
		res.TotalInterest = res.TotalInterest.Add(interest)
	}

	res.GrandTotal = res.TotalBase.Add(res.TotalInterest)
	res.MonthlyPaymentOption = generic.RoundMoney(res.GrandTotal.Div(decimal.NewFromInt(int64(res.SpreadMonths))))
	return res, nil
}
