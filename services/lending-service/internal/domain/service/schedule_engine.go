package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/pkg/money"
	"github.com/bibbank/bib/services/lending-service/internal/domain/model"
	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
)

// MaxScheduleInstallments bounds every generated schedule.
const MaxScheduleInstallments = 1200

// ---------------------------------------------------------------------------
// ScheduleEngine – domain service generating and regenerating schedules
// ---------------------------------------------------------------------------

// RegenerateInput is everything a regeneration reads. The engine never mutates the loan.
type RegenerateInput struct {
	Loan     model.Loan
	Terms    model.LoanTerms // terms with the variations to apply; zero means the loan's own terms
	Holidays model.HolidayCalendar
	FromDate time.Time
	// ToDate stops the walk at the first scheduled date on or after it. When nil the
	// walk produces the contractual count plus extensions.
	ToDate *time.Time
	// Liquidation reduces the opening principal by a part-liquidation amount.
	Liquidation *money.Money
}

// ScheduleResult is a complete schedule with its summary figures.
type ScheduleResult struct {
	Installments     []model.Installment
	OpeningPrincipal money.Money
	TotalPrincipal   decimal.Decimal
	TotalInterest    decimal.Decimal
	Regenerated      int
	FromDate         time.Time
	MaturityDate     time.Time
}

// ScheduleEngine builds repayment schedules. It is stateless and safe for concurrent use.
type ScheduleEngine struct{}

// NewScheduleEngine returns a new engine instance.
func NewScheduleEngine() *ScheduleEngine {
	return &ScheduleEngine{}
}

// Generate builds the initial schedule of a loan disbursed on disbursedOn.
func (e *ScheduleEngine) Generate(terms model.LoanTerms, calendar model.HolidayCalendar, disbursedOn time.Time) (ScheduleResult, error) {
	if err := terms.Validate(); err != nil {
		return ScheduleResult{}, fmt.Errorf("invalid terms: %w", err)
	}

	slots, err := walkSlots(terms, calendar, disbursedOn, time.Time{}, nil, scheduleLength(terms, 0))
	if err != nil {
		return ScheduleResult{}, err
	}

	installments, err := amortize(amortizationInput{
		terms:    terms,
		slots:    slots,
		opening:  terms.Principal,
		start:    disbursedOn,
		frozen:   nil,
		previous: nil,
	})
	if err != nil {
		return ScheduleResult{}, err
	}

	return newScheduleResult(model.Renumber(installments), terms, terms.Principal, len(slots), disbursedOn), nil
}

// Regenerate rebuilds every installment due on or after the from date. Installments due
// earlier are frozen and returned unchanged. The returned installments carry no paid
// amounts on the regenerated part; replay recomputes them.
func (e *ScheduleEngine) Regenerate(in RegenerateInput) (ScheduleResult, error) {
	terms := in.Terms
	if terms.Currency.Code() == "" {
		terms = in.Loan.Terms()
	}

	// 1. Temporal guard, then date integrity.
	if err := validateFromDate(in.Loan, terms, in.FromDate); err != nil {
		return ScheduleResult{}, err
	}

	// 2. Partition into frozen and regenerable installments.
	frozen, regenerable := partitionInstallments(in.Loan.Installments(), in.FromDate)

	// 3. Opening principal, reduced by the liquidation. The liquidation is capped by
	// what is still unpaid, so prepaid principal does not count toward the limit.
	opening := model.TotalPrincipalDue(regenerable)
	if in.Liquidation != nil {
		outstanding := model.TotalPrincipalOutstanding(regenerable)
		reduced, err := applyLiquidation(opening, outstanding, *in.Liquidation, terms.Currency)
		if err != nil {
			return ScheduleResult{}, err
		}
		opening = reduced
	}

	// 4. Walk the due dates of the regenerated part.
	slots, err := walkSlots(terms, in.Holidays, in.Loan.DisbursedOn(), in.FromDate, in.ToDate,
		scheduleLength(terms, len(frozen)))
	if err != nil {
		return ScheduleResult{}, err
	}
	if len(frozen)+len(slots) > MaxScheduleInstallments {
		return ScheduleResult{}, valueobject.NewScheduleTooLongError(MaxScheduleInstallments)
	}

	// 5. Amortize with grace and rate variations.
	start := in.Loan.DisbursedOn()
	if len(frozen) > 0 {
		start = frozen[len(frozen)-1].DueDate
	}
	regenerated, err := amortize(amortizationInput{
		terms:    terms,
		slots:    slots,
		opening:  opening,
		start:    start,
		frozen:   frozen,
		previous: regenerable,
	})
	if err != nil {
		return ScheduleResult{}, err
	}

	// 6. Renumber the whole schedule.
	all := model.Renumber(append(frozen, regenerated...))
	return newScheduleResult(all, terms, opening, len(slots), in.FromDate), nil
}

// ValidateFromDate applies the checks a regeneration from date must pass, without
// building anything.
func (e *ScheduleEngine) ValidateFromDate(loan model.Loan, terms model.LoanTerms, from time.Time) error {
	return validateFromDate(loan, terms, from)
}

func validateFromDate(loan model.Loan, terms model.LoanTerms, from time.Time) error {
	if last, ok := loan.LastTransactionDate(); ok && from.Before(last) {
		return valueobject.NewTemporalOrderingError(from, last)
	}
	if _, ok := loan.InstallmentDueOn(from); ok {
		return nil
	}
	// A from date re-anchored by supersession is the original anchor of a shift whose
	// target is an existing installment.
	for _, v := range terms.Variations.All() {
		shifted, ok := v.ShiftedDate()
		if !ok || !v.ApplicableFrom.Equal(from) {
			continue
		}
		if _, due := loan.InstallmentDueOn(shifted); due {
			return nil
		}
	}
	return valueobject.NewScheduleDateIntegrityError(from)
}

func partitionInstallments(in []model.Installment, from time.Time) (frozen, regenerable []model.Installment) {
	for _, inst := range model.Renumber(in) {
		if inst.DueDate.Before(from) {
			frozen = append(frozen, inst)
		} else {
			regenerable = append(regenerable, inst)
		}
	}
	return frozen, regenerable
}

func applyLiquidation(opening, outstanding decimal.Decimal, amount money.Money, currency money.Currency) (decimal.Decimal, error) {
	if amount.Currency().Code() != currency.Code() {
		return decimal.Decimal{}, &money.CurrencyMismatchError{
			Op: "liquidate", Left: currency.Code(), Right: amount.Currency().Code(),
		}
	}
	if !amount.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("liquidation amount must be positive, got %s", amount)
	}
	if amount.Amount().GreaterThan(outstanding) {
		return decimal.Decimal{}, valueobject.NewLiquidationExceedsBalanceError(
			amount.String(), money.New(outstanding, currency).String())
	}
	return opening.Sub(amount.Amount()), nil
}

// scheduleLength is the number of installments still to generate when frozen
// installments are kept: the contractual count plus every active extension.
func scheduleLength(terms model.LoanTerms, frozen int) int {
	n := terms.NumberOfRepayments
	for _, v := range terms.Variations.ActiveOfType(valueobject.VariationExtendRepaymentPeriod) {
		n += v.Count()
	}
	n -= frozen
	if n < 1 {
		n = 1
	}
	return n
}

// walkSlots walks the contractual grid from the start of the loan, skipping positions
// before from, until count slots are produced or, with toDate, the first slot on or
// after it.
func walkSlots(
	terms model.LoanTerms,
	calendar model.HolidayCalendar,
	disbursedOn, from time.Time,
	toDate *time.Time,
	count int,
) ([]dueDateSlot, error) {
	if count > MaxScheduleInstallments {
		return nil, valueobject.NewScheduleTooLongError(MaxScheduleInstallments)
	}
	w := newDueDateWalker(terms, calendar, disbursedOn)
	var slots []dueDateSlot
	for steps := 0; ; steps++ {
		if steps >= 2*MaxScheduleInstallments {
			return nil, valueobject.NewScheduleTooLongError(MaxScheduleInstallments)
		}
		slot, err := w.next()
		if err != nil {
			return nil, err
		}
		if slot.computed.Before(from) && slot.due.Before(from) {
			continue
		}
		slots = append(slots, slot)
		if len(slots) > MaxScheduleInstallments {
			return nil, valueobject.NewScheduleTooLongError(MaxScheduleInstallments)
		}
		if toDate != nil {
			if !slot.computed.Before(*toDate) {
				return slots, nil
			}
			continue
		}
		if len(slots) == count {
			return slots, nil
		}
	}
}

// ---------------------------------------------------------------------------
// Amortization
// ---------------------------------------------------------------------------

type amortizationInput struct {
	terms    model.LoanTerms
	slots    []dueDateSlot
	opening  decimal.Decimal
	start    time.Time
	frozen   []model.Installment
	previous []model.Installment // regenerable installments being replaced
}

func amortize(in amortizationInput) ([]model.Installment, error) {
	terms, policy, cur := in.terms, in.terms.Rounding, in.terms.Currency
	strategy, err := InterestStrategyFor(terms.InterestMethod)
	if err != nil {
		return nil, err
	}

	n := len(in.slots)
	principalGrace := graceFlags(terms, in.slots, in.frozen, valueobject.VariationGraceOnPrincipal, terms.GraceOnPrincipalPeriods)
	interestGrace := graceFlags(terms, in.slots, in.frozen, valueobject.VariationGraceOnInterest, terms.GraceOnInterestPeriods)

	// At least the last installment repays principal.
	amortizing := 0
	for _, g := range principalGrace {
		if !g {
			amortizing++
		}
	}
	if amortizing == 0 && n > 0 {
		principalGrace[n-1] = false
		amortizing = 1
	}

	// amortLeft[i] counts amortizing installments from i to the end.
	amortLeft := make([]int, n+1)
	for i := n - 1; i >= 0; i-- {
		amortLeft[i] = amortLeft[i+1]
		if !principalGrace[i] {
			amortLeft[i]++
		}
	}

	fixedPrincipal := decimal.Zero
	if amortizing > 0 {
		fixedPrincipal = policy.RoundCurrency(policy.Div(in.opening, decimal.NewFromInt(int64(amortizing))), cur)
	}
	equalInstallments := terms.AmortizationMethod == valueobject.AmortizationEqualInstallments &&
		terms.InterestMethod == valueobject.InterestDecliningBalance

	out := make([]model.Installment, n)
	balance := in.opening
	deferred := decimal.Zero
	prevDue := in.start
	var (
		emi     decimal.Decimal
		emiRate decimal.Decimal
		emiSet  bool
	)

	for i, slot := range in.slots {
		rate := terms.PeriodicRate(annualRateAt(terms, slot.computed))
		interest := policy.RoundCurrency(strategy.PeriodInterest(balance, in.opening, rate, policy), cur)

		principal := decimal.Zero
		if !principalGrace[i] {
			switch {
			case amortLeft[i] == 1:
				principal = balance
			case equalInstallments:
				if !emiSet || !rate.Equal(emiRate) {
					emi = installmentAmount(balance, rate, amortLeft[i], policy)
					emiRate, emiSet = rate, true
				}
				principal = policy.RoundCurrency(emi, cur).Sub(interest)
			default:
				principal = fixedPrincipal
			}
			if principal.IsNegative() {
				principal = decimal.Zero
			}
			if principal.GreaterThan(balance) {
				principal = balance
			}
		}
		balance = balance.Sub(principal)

		if interestGrace[i] {
			deferred = deferred.Add(interest)
			interest = decimal.Zero
		} else if deferred.IsPositive() {
			interest = interest.Add(deferred)
			deferred = decimal.Zero
		}

		inst := model.Installment{
			FromDate:     prevDue,
			DueDate:      slot.due,
			PrincipalDue: principal,
			InterestDue:  interest,
			FeeDue:       decimal.Zero,
			PenaltyDue:   decimal.Zero,
		}
		if i < len(in.previous) {
			inst.FeeDue = in.previous[i].FeeDue
			inst.PenaltyDue = in.previous[i].PenaltyDue
		}
		inst = inst.ResetPaid()
		out[i] = inst
		prevDue = slot.due
	}

	if deferred.IsPositive() && n > 0 {
		out[n-1].InterestDue = out[n-1].InterestDue.Add(deferred)
	}
	return out, nil
}

// installmentAmount is the level payment repaying balance over n periods at rate.
func installmentAmount(balance, rate decimal.Decimal, n int, policy money.RoundingPolicy) decimal.Decimal {
	periods := decimal.NewFromInt(int64(n))
	if rate.IsZero() {
		return policy.Div(balance, periods)
	}
	factor := policy.Pow(decimal.NewFromInt(1).Add(rate), n)
	return policy.Div(policy.Mul(balance, policy.Mul(rate, factor)), factor.Sub(decimal.NewFromInt(1)))
}

// annualRateAt is the rate of the latest active rate variation anchored on or before
// date, falling back to the contractual rate.
func annualRateAt(terms model.LoanTerms, date time.Time) decimal.Decimal {
	rate := terms.AnnualInterestRate
	for _, v := range terms.Variations.ActiveOfType(valueobject.VariationInterestRate) {
		if v.ApplicableFrom.After(date) || !v.DecimalValue.Valid {
			continue
		}
		rate = v.DecimalValue.Decimal
	}
	return rate
}

// graceFlags marks the regenerated slots that fall in a grace window. Product grace
// covers the first periods of the whole schedule. A grace variation covers its count of
// installments from its anchor, less those already frozen.
func graceFlags(
	terms model.LoanTerms,
	slots []dueDateSlot,
	frozen []model.Installment,
	kind valueobject.TermVariationType,
	productPeriods int,
) []bool {
	flags := make([]bool, len(slots))
	for i := range slots {
		if len(frozen)+i < productPeriods {
			flags[i] = true
		}
	}

	for _, v := range terms.Variations.ActiveOfType(kind) {
		remaining := v.Count()
		for _, f := range frozen {
			if !f.DueDate.Before(v.ApplicableFrom) {
				remaining--
			}
		}
		for i, slot := range slots {
			if remaining <= 0 {
				break
			}
			if slot.computed.Before(v.ApplicableFrom) {
				continue
			}
			flags[i] = true
			remaining--
		}
	}
	return flags
}

func newScheduleResult(all []model.Installment, terms model.LoanTerms, opening decimal.Decimal, regenerated int, from time.Time) ScheduleResult {
	res := ScheduleResult{
		Installments:     all,
		OpeningPrincipal: money.New(opening, terms.Currency),
		TotalPrincipal:   model.TotalPrincipalDue(all),
		TotalInterest:    model.TotalInterestDue(all),
		Regenerated:      regenerated,
		FromDate:         from,
	}
	if len(all) > 0 {
		res.MaturityDate = all[len(all)-1].DueDate
	}
	return res
}
