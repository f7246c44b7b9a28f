package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/pkg/money"
	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
)

// LoanTerms are the repayment terms a schedule is generated from. Variations carries the
// term variations merged into the terms by approved restructures.
type LoanTerms struct {
	Currency           money.Currency
	Principal          decimal.Decimal
	AnnualInterestRate decimal.Decimal // percent per year, e.g. 12.5
	InterestMethod     valueobject.InterestMethod
	AmortizationMethod valueobject.AmortizationMethod
	Frequency          valueobject.PeriodFrequency
	RepayEvery         int
	NumberOfRepayments int

	// FirstRepaymentDate overrides the first computed due date when set.
	FirstRepaymentDate *time.Time

	// Product-level grace, counted from the first installment.
	GraceOnPrincipalPeriods int
	GraceOnInterestPeriods  int

	Variations         VariationSet
	Rounding           money.RoundingPolicy
	ProcessingStrategy string
}

// Validate checks the terms for internal consistency.
func (t LoanTerms) Validate() error {
	var errs []error
	if t.Currency.Code() == "" {
		errs = append(errs, errors.New("currency is required"))
	}
	if !t.Principal.IsPositive() {
		errs = append(errs, errors.New("principal must be positive"))
	}
	if t.AnnualInterestRate.IsNegative() {
		errs = append(errs, errors.New("interest rate must not be negative"))
	}
	if t.RepayEvery <= 0 {
		errs = append(errs, errors.New("repay every must be positive"))
	}
	if t.NumberOfRepayments <= 0 {
		errs = append(errs, errors.New("number of repayments must be positive"))
	}
	if t.GraceOnPrincipalPeriods < 0 || t.GraceOnInterestPeriods < 0 {
		errs = append(errs, errors.New("grace periods must not be negative"))
	}
	if t.GraceOnPrincipalPeriods >= t.NumberOfRepayments && t.NumberOfRepayments > 0 {
		errs = append(errs, errors.New("principal grace must leave at least one amortizing installment"))
	}
	if _, err := valueobject.ParseInterestMethod(string(t.InterestMethod)); err != nil {
		errs = append(errs, err)
	}
	if _, err := valueobject.ParseAmortizationMethod(string(t.AmortizationMethod)); err != nil {
		errs = append(errs, err)
	}
	if _, err := valueobject.ParsePeriodFrequency(string(t.Frequency)); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// WithVariations returns a copy carrying the given variation set.
func (t LoanTerms) WithVariations(vs VariationSet) LoanTerms {
	t.Variations = vs
	return t
}

// PeriodicRate returns the interest rate for one repayment period as a fraction.
func (t LoanTerms) PeriodicRate(annualPercent decimal.Decimal) decimal.Decimal {
	perYear := decimal.NewFromInt(t.Frequency.PeriodsPerYear())
	every := decimal.NewFromInt(int64(t.RepayEvery))
	return t.Rounding.Mul(t.Rounding.Div(annualPercent, perYear.Mul(decimal.NewFromInt(100))), every)
}

// AddPeriods moves date forward by n repayment periods. Month and year arithmetic clamps
// to the last day of the target month.
func (t LoanTerms) AddPeriods(date time.Time, n int) time.Time {
	steps := n * t.RepayEvery
	switch t.Frequency {
	case valueobject.FrequencyDays:
		return date.AddDate(0, 0, steps)
	case valueobject.FrequencyWeeks:
		return date.AddDate(0, 0, 7*steps)
	case valueobject.FrequencyYears:
		return addMonthsClamped(date, 12*steps)
	default:
		return addMonthsClamped(date, steps)
	}
}

func addMonthsClamped(date time.Time, months int) time.Time {
	y, m, d := date.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, date.Location()).AddDate(0, months, 0)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d,
		date.Hour(), date.Minute(), date.Second(), date.Nanosecond(), date.Location())
}
