package service_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bib/pkg/money"
	"github.com/bibbank/bib/pkg/testutil"
	"github.com/bibbank/bib/services/lending-service/internal/domain/model"
	"github.com/bibbank/bib/services/lending-service/internal/domain/service"
	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
)

var disbursedOn = testutil.Date(2025, 1, 1)

func testTerms(principal, rate string, n int) model.LoanTerms {
	return model.LoanTerms{
		Currency:           money.USD,
		Principal:          testutil.Dec(principal),
		AnnualInterestRate: testutil.Dec(rate),
		InterestMethod:     valueobject.InterestDecliningBalance,
		AmortizationMethod: valueobject.AmortizationEqualInstallments,
		Frequency:          valueobject.FrequencyMonths,
		RepayEvery:         1,
		NumberOfRepayments: n,
		Rounding:           money.DefaultRoundingPolicy(),
	}
}

func disburse(t *testing.T, terms model.LoanTerms) model.Loan {
	t.Helper()
	res, err := service.NewScheduleEngine().Generate(terms, model.HolidayCalendar{}, disbursedOn)
	require.NoError(t, err)
	loan, err := model.NewLoan(model.NewLoanParams{
		TenantID:          testutil.TestTenantID,
		BorrowerAccountID: testutil.TestAccountID,
		Terms:             terms,
		DisbursedOn:       disbursedOn,
	}, res.Installments, disbursedOn)
	require.NoError(t, err)
	return loan.ClearEvents()
}

func count(n int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(n))
}

func assertDenseNumbering(t *testing.T, installments []model.Installment) {
	t.Helper()
	for i, inst := range installments {
		assert.Equal(t, i+1, inst.Number, "installment %d", i)
		if i > 0 {
			assert.True(t, inst.DueDate.After(installments[i-1].DueDate), "due dates must increase at %d", i+1)
		}
	}
}

// ---------------------------------------------------------------------------
// Generate
// ---------------------------------------------------------------------------

func TestGenerate_EqualInstallments(t *testing.T) {
	res, err := service.NewScheduleEngine().Generate(testTerms("12000", "12", 12), model.HolidayCalendar{}, disbursedOn)
	require.NoError(t, err)

	require.Len(t, res.Installments, 12)
	assertDenseNumbering(t, res.Installments)
	assert.Equal(t, testutil.Date(2025, 2, 1), res.Installments[0].DueDate)
	assert.Equal(t, testutil.Date(2026, 1, 1), res.MaturityDate)
	testutil.AssertDecimalEqual(t, "12000", res.TotalPrincipal)

	first := res.Installments[0]
	testutil.AssertDecimalEqual(t, "120", first.InterestDue)
	testutil.AssertDecimalEqual(t, "1066.19", first.PrincipalDue.Add(first.InterestDue))
	for _, inst := range res.Installments {
		assert.Equal(t, int32(-2), inst.InterestDue.Exponent(), "interest %s rounded to cents", inst.InterestDue)
	}
}

func TestGenerate_FlatInterest(t *testing.T) {
	terms := testTerms("1200", "12", 12)
	terms.InterestMethod = valueobject.InterestFlat

	res, err := service.NewScheduleEngine().Generate(terms, model.HolidayCalendar{}, disbursedOn)
	require.NoError(t, err)

	for _, inst := range res.Installments {
		testutil.AssertDecimalEqual(t, "100", inst.PrincipalDue)
		testutil.AssertDecimalEqual(t, "12", inst.InterestDue)
	}
	testutil.AssertDecimalEqual(t, "144", res.TotalInterest)
}

func TestGenerate_EqualPrincipalDecliningInterest(t *testing.T) {
	terms := testTerms("1200", "12", 12)
	terms.AmortizationMethod = valueobject.AmortizationEqualPrincipal

	res, err := service.NewScheduleEngine().Generate(terms, model.HolidayCalendar{}, disbursedOn)
	require.NoError(t, err)

	testutil.AssertDecimalEqual(t, "12", res.Installments[0].InterestDue)
	testutil.AssertDecimalEqual(t, "11", res.Installments[1].InterestDue)
	testutil.AssertDecimalEqual(t, "1", res.Installments[11].InterestDue)
	testutil.AssertDecimalEqual(t, "1200", res.TotalPrincipal)
}

func TestGenerate_HolidayCalendarRollsDueDates(t *testing.T) {
	cal := model.HolidayCalendar{
		Convention:     valueobject.RollFollowing,
		NonWorkingDays: []time.Weekday{time.Saturday, time.Sunday},
	}

	res, err := service.NewScheduleEngine().Generate(testTerms("3000", "0", 3), cal, disbursedOn)
	require.NoError(t, err)

	assert.Equal(t, testutil.Date(2025, 2, 3), res.Installments[0].DueDate)
	assert.Equal(t, testutil.Date(2025, 3, 3), res.Installments[1].DueDate)
	assert.Equal(t, testutil.Date(2025, 4, 1), res.Installments[2].DueDate)
}

func TestGenerate_ScheduleTooLong(t *testing.T) {
	terms := testTerms("1000000", "0", service.MaxScheduleInstallments+1)
	terms.Frequency = valueobject.FrequencyDays

	_, err := service.NewScheduleEngine().Generate(terms, model.HolidayCalendar{}, disbursedOn)
	assert.True(t, errors.Is(err, valueobject.ErrScheduleTooLong))
}

// ---------------------------------------------------------------------------
// Regenerate
// ---------------------------------------------------------------------------

func TestRegenerate_GraceOnPrincipalExtendsTail(t *testing.T) {
	loan := disburse(t, testTerms("12000", "0", 12))
	month7 := testutil.Date(2025, 8, 1)

	grace := model.TermVariation{ID: "grace", Type: valueobject.VariationGraceOnPrincipal, ApplicableFrom: month7, DecimalValue: count(3)}
	ext := model.TermVariation{ID: "ext", Type: valueobject.VariationExtendRepaymentPeriod, ApplicableFrom: month7, DecimalValue: count(3), ParentID: "grace"}
	terms := loan.Terms().WithVariations(model.NewVariationSet().Merge(grace, ext))

	res, err := service.NewScheduleEngine().Regenerate(service.RegenerateInput{
		Loan:     loan,
		Terms:    terms,
		FromDate: month7,
	})
	require.NoError(t, err)

	require.Len(t, res.Installments, 15)
	assertDenseNumbering(t, res.Installments)
	assert.Equal(t, 9, res.Regenerated)
	for i, inst := range res.Installments {
		switch {
		case i < 6:
			testutil.AssertDecimalEqual(t, "1000", inst.PrincipalDue)
		case i < 9:
			testutil.AssertDecimalEqual(t, "0", inst.PrincipalDue)
		default:
			testutil.AssertDecimalEqual(t, "1000", inst.PrincipalDue)
		}
	}
	assert.Equal(t, month7, res.Installments[6].DueDate)
	assert.Equal(t, testutil.Date(2026, 4, 1), res.MaturityDate)
	testutil.AssertDecimalEqual(t, "12000", res.TotalPrincipal)
	testutil.AssertDecimalEqual(t, "6000", res.OpeningPrincipal.Amount())
}

func TestRegenerate_GraceOnInterestDefersInterest(t *testing.T) {
	terms := testTerms("1200", "12", 12)
	terms.InterestMethod = valueobject.InterestFlat
	loan := disburse(t, terms)
	from := testutil.Date(2025, 2, 1)

	grace := model.TermVariation{ID: "g", Type: valueobject.VariationGraceOnInterest, ApplicableFrom: from, DecimalValue: count(2)}
	res, err := service.NewScheduleEngine().Regenerate(service.RegenerateInput{
		Loan:     loan,
		Terms:    loan.Terms().WithVariations(model.NewVariationSet().Merge(grace)),
		FromDate: from,
	})
	require.NoError(t, err)

	testutil.AssertDecimalEqual(t, "0", res.Installments[0].InterestDue)
	testutil.AssertDecimalEqual(t, "0", res.Installments[1].InterestDue)
	testutil.AssertDecimalEqual(t, "36", res.Installments[2].InterestDue)
	testutil.AssertDecimalEqual(t, "144", res.TotalInterest)
}

func TestRegenerate_PartLiquidationReducesOpening(t *testing.T) {
	loan := disburse(t, testTerms("5000", "0", 5))
	amount := money.New(testutil.Dec("2000"), money.USD)

	res, err := service.NewScheduleEngine().Regenerate(service.RegenerateInput{
		Loan:        loan,
		FromDate:    testutil.Date(2025, 2, 1),
		Liquidation: &amount,
	})
	require.NoError(t, err)

	assert.True(t, res.OpeningPrincipal.Equal(money.New(testutil.Dec("3000"), money.USD)))
	testutil.AssertDecimalEqual(t, "3000", res.TotalPrincipal)
	require.Len(t, res.Installments, 5)
	for _, inst := range res.Installments {
		testutil.AssertDecimalEqual(t, "600", inst.PrincipalDue)
	}
}

func TestRegenerate_LiquidationChecks(t *testing.T) {
	loan := disburse(t, testTerms("5000", "0", 5))
	engine := service.NewScheduleEngine()

	t.Run("currency mismatch", func(t *testing.T) {
		eur := money.New(testutil.Dec("100"), money.EUR)
		_, err := engine.Regenerate(service.RegenerateInput{Loan: loan, FromDate: testutil.Date(2025, 2, 1), Liquidation: &eur})
		require.Error(t, err)
		assert.True(t, errors.Is(err, money.ErrCurrencyMismatch))
		testutil.AssertErrorCode(t, err, "money.currency_mismatch")
	})

	t.Run("exceeds outstanding", func(t *testing.T) {
		big := money.New(testutil.Dec("5000.01"), money.USD)
		_, err := engine.Regenerate(service.RegenerateInput{Loan: loan, FromDate: testutil.Date(2025, 2, 1), Liquidation: &big})
		assert.True(t, errors.Is(err, valueobject.ErrLiquidationExceedsBalance))
	})
}

func TestRegenerate_LiquidationCappedByPrepaidPrincipal(t *testing.T) {
	loan := disburse(t, testTerms("5000", "0", 5))
	payment := model.LoanTransaction{
		ID:     "pay-1",
		LoanID: loan.ID(),
		Type:   valueobject.TransactionRepayment,
		Date:   testutil.Date(2025, 2, 1),
		Amount: money.New(testutil.Dec("3000"), money.USD),
	}
	installments, payment, err := service.NewTransactionReprocessor(uuid.NewString, time.Now).Allocate(loan, payment)
	require.NoError(t, err)
	loan, err = loan.RecordTransaction(payment, installments, payment.Date)
	require.NoError(t, err)
	testutil.AssertDecimalEqual(t, "2000", loan.OutstandingPrincipal())
	engine := service.NewScheduleEngine()

	t.Run("more than unpaid principal", func(t *testing.T) {
		amount := money.New(testutil.Dec("3000"), money.USD)
		_, err := engine.Regenerate(service.RegenerateInput{
			Loan:        loan,
			FromDate:    testutil.Date(2025, 3, 1),
			Liquidation: &amount,
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, valueobject.ErrLiquidationExceedsBalance))
	})

	t.Run("exactly unpaid principal", func(t *testing.T) {
		amount := money.New(testutil.Dec("2000"), money.USD)
		_, err := engine.Regenerate(service.RegenerateInput{
			Loan:        loan,
			FromDate:    testutil.Date(2025, 3, 1),
			Liquidation: &amount,
		})
		assert.NoError(t, err)
	})
}

func TestRegenerate_TemporalGuard(t *testing.T) {
	loan := disburse(t, testTerms("12000", "12", 12))
	reprocessor := service.NewTransactionReprocessor(uuid.NewString, time.Now)
	payment := model.LoanTransaction{
		ID:     "pay-1",
		LoanID: loan.ID(),
		Type:   valueobject.TransactionRepayment,
		Date:   testutil.Date(2025, 3, 15),
		Amount: money.New(testutil.Dec("1066.19"), money.USD),
	}
	installments, payment, err := reprocessor.Allocate(loan, payment)
	require.NoError(t, err)
	loan, err = loan.RecordTransaction(payment, installments, payment.Date)
	require.NoError(t, err)
	before := loan.Installments()

	res, err := service.NewScheduleEngine().Regenerate(service.RegenerateInput{
		Loan:     loan,
		FromDate: testutil.Date(2025, 3, 1),
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, valueobject.ErrTemporalOrdering))
	testutil.AssertErrorCode(t, err, valueobject.CodeTemporalOrdering)
	assert.Empty(t, res.Installments)
	assert.Equal(t, before, loan.Installments())
}

func TestRegenerate_TemporalGuardRunsBeforeIntegrity(t *testing.T) {
	loan := disburse(t, testTerms("1200", "0", 12))

	// Neither a scheduled date nor after the disbursement.
	_, err := service.NewScheduleEngine().Regenerate(service.RegenerateInput{
		Loan:     loan,
		FromDate: testutil.Date(2024, 12, 15),
	})
	assert.True(t, errors.Is(err, valueobject.ErrTemporalOrdering))
}

func TestRegenerate_DateIntegrity(t *testing.T) {
	loan := disburse(t, testTerms("1200", "0", 12))

	_, err := service.NewScheduleEngine().Regenerate(service.RegenerateInput{
		Loan:     loan,
		FromDate: testutil.Date(2025, 3, 2),
	})
	assert.True(t, errors.Is(err, valueobject.ErrScheduleDateIntegrity))
	testutil.AssertErrorCode(t, err, valueobject.CodeScheduleDateIntegrity)
}

func TestRegenerate_InterestRateVariation(t *testing.T) {
	loan := disburse(t, testTerms("12000", "12", 12))
	month7 := testutil.Date(2025, 8, 1)
	rate := model.TermVariation{ID: "rate", Type: valueobject.VariationInterestRate, ApplicableFrom: month7,
		DecimalValue: decimal.NewNullDecimal(testutil.Dec("24"))}

	res, err := service.NewScheduleEngine().Regenerate(service.RegenerateInput{
		Loan:     loan,
		Terms:    loan.Terms().WithVariations(model.NewVariationSet().Merge(rate)),
		FromDate: month7,
	})
	require.NoError(t, err)

	original := loan.Installments()
	require.Len(t, res.Installments, 12)
	for i := 0; i < 6; i++ {
		assert.Equal(t, original[i], res.Installments[i], "frozen installment %d changed", i+1)
	}
	expected := res.OpeningPrincipal.Amount().Mul(testutil.Dec("0.02")).RoundBank(2)
	testutil.AssertDecimalEqual(t, expected.String(), res.Installments[6].InterestDue)
	testutil.AssertDecimalEqual(t, "12000", res.TotalPrincipal)
	assert.True(t, res.Installments[6].InterestDue.GreaterThan(original[6].InterestDue))
}

func TestRegenerate_DueDateShift(t *testing.T) {
	april := testutil.Date(2025, 4, 1)
	shifted := testutil.Date(2025, 4, 10)

	tests := []struct {
		name     string
		specific bool
		want     []time.Time
	}{
		{
			name:     "moves every later date",
			specific: false,
			want:     []time.Time{shifted, testutil.Date(2025, 5, 10), testutil.Date(2025, 6, 10)},
		},
		{
			name:     "moves one installment",
			specific: true,
			want:     []time.Time{shifted, testutil.Date(2025, 5, 1), testutil.Date(2025, 6, 1)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loan := disburse(t, testTerms("12000", "12", 12))
			v := model.TermVariation{ID: "due", Type: valueobject.VariationDueDate, ApplicableFrom: april,
				DateValue: &shifted, SpecificToInstallment: tt.specific}

			res, err := service.NewScheduleEngine().Regenerate(service.RegenerateInput{
				Loan:     loan,
				Terms:    loan.Terms().WithVariations(model.NewVariationSet().Merge(v)),
				FromDate: april,
			})
			require.NoError(t, err)

			require.Len(t, res.Installments, 12)
			assertDenseNumbering(t, res.Installments)
			for i, want := range tt.want {
				assert.Equal(t, want, res.Installments[2+i].DueDate)
			}
			assert.Equal(t, testutil.Date(2025, 3, 1), res.Installments[2].FromDate)
		})
	}
}

func TestRegenerate_ToDateStopsWalk(t *testing.T) {
	loan := disburse(t, testTerms("12000", "0", 12))
	to := testutil.Date(2025, 7, 15)

	res, err := service.NewScheduleEngine().Regenerate(service.RegenerateInput{
		Loan:     loan,
		FromDate: testutil.Date(2025, 4, 1),
		ToDate:   &to,
	})
	require.NoError(t, err)

	assert.Equal(t, 5, res.Regenerated)
	require.Len(t, res.Installments, 7)
	assert.Equal(t, testutil.Date(2025, 8, 1), res.MaturityDate)
	testutil.AssertDecimalEqual(t, "12000", res.TotalPrincipal)
}

func TestRegenerate_DoesNotMutateLoan(t *testing.T) {
	loan := disburse(t, testTerms("12000", "12", 12))
	before := loan.Installments()
	amount := money.New(testutil.Dec("1000"), money.USD)

	_, err := service.NewScheduleEngine().Regenerate(service.RegenerateInput{
		Loan:        loan,
		FromDate:    testutil.Date(2025, 5, 1),
		Liquidation: &amount,
	})
	require.NoError(t, err)
	assert.Equal(t, before, loan.Installments())
}

// ---------------------------------------------------------------------------
// NextRepaymentDate
// ---------------------------------------------------------------------------

func TestNextRepaymentDate(t *testing.T) {
	terms := testTerms("1000", "0", 12)

	got, err := service.NextRepaymentDate(testutil.Date(2025, 1, 31), terms, false)
	require.NoError(t, err)
	assert.Equal(t, testutil.Date(2025, 2, 28), got)

	first := testutil.Date(2025, 2, 15)
	terms.FirstRepaymentDate = &first
	got, err = service.NextRepaymentDate(testutil.Date(2025, 1, 1), terms, true)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	moved := testutil.Date(2025, 3, 5)
	v := model.TermVariation{ID: "v", Type: valueobject.VariationDueDate, ApplicableFrom: testutil.Date(2025, 2, 28), DateValue: &moved}
	terms = testTerms("1000", "0", 12).WithVariations(model.NewVariationSet().Merge(v))
	got, err = service.NextRepaymentDate(testutil.Date(2025, 1, 31), terms, false)
	require.NoError(t, err)
	assert.Equal(t, moved, got)
}

func TestNextRepaymentDate_ChainAppliesEachShiftOnce(t *testing.T) {
	anchor := testutil.Date(2025, 3, 1)
	first := testutil.Date(2025, 3, 6)
	second := testutil.Date(2025, 3, 11)

	// The superseded parent is inactive; only the re-anchored child shifts the date.
	parent := model.TermVariation{ID: "a", Type: valueobject.VariationDueDate, ApplicableFrom: anchor, DateValue: &first}
	child := model.TermVariation{ID: "b", Type: valueobject.VariationDueDate, ApplicableFrom: anchor, DateValue: &second, ParentID: "a", Active: true}
	terms := testTerms("1000", "0", 12).WithVariations(model.NewVariationSet(parent, child))

	got, err := service.NextRepaymentDate(testutil.Date(2025, 2, 1), terms, false)
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestNextRepaymentDate_CycleFails(t *testing.T) {
	date := testutil.Date(2025, 2, 1)
	moved := testutil.Date(2025, 2, 5)
	a := model.TermVariation{ID: "a", Type: valueobject.VariationDueDate, ApplicableFrom: date, DateValue: &moved, ParentID: "b", Active: true}
	b := model.TermVariation{ID: "b", Type: valueobject.VariationExtendRepaymentPeriod, ApplicableFrom: date, ParentID: "a", Active: true}
	terms := testTerms("1000", "0", 12).WithVariations(model.NewVariationSet(a, b))

	_, err := service.NextRepaymentDate(disbursedOn, terms, false)
	assert.True(t, errors.Is(err, valueobject.ErrVariationCycle))
}
