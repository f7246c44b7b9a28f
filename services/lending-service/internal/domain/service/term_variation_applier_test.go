package service_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bib/pkg/testutil"
	"github.com/bibbank/bib/services/lending-service/internal/domain/model"
	"github.com/bibbank/bib/services/lending-service/internal/domain/service"
	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
)

func shift(id string, from, to time.Time, specific bool) model.TermVariation {
	return model.TermVariation{
		ID:                    id,
		Type:                  valueobject.VariationDueDate,
		ApplicableFrom:        from,
		DateValue:             &to,
		SpecificToInstallment: specific,
	}
}

func rateChange(id string, from time.Time, rate string) model.TermVariation {
	return model.TermVariation{
		ID:             id,
		Type:           valueobject.VariationInterestRate,
		ApplicableFrom: from,
		DecimalValue:   decimal.NewNullDecimal(testutil.Dec(rate)),
	}
}

func TestApply_SupersedesShiftAndReanchors(t *testing.T) {
	march1 := testutil.Date(2025, 3, 1)
	march6 := testutil.Date(2025, 3, 6)
	march11 := testutil.Date(2025, 3, 11)
	applier := service.NewTermVariationApplier()
	engine := service.NewScheduleEngine()
	loan := disburse(t, testTerms("3000", "0", 3))

	// First restructure: move March 1 to March 6.
	first, err := applier.Apply(loan.Terms().Variations, []model.TermVariation{shift("a", march1, march6, true)}, march1, loan.Terms())
	require.NoError(t, err)
	terms := loan.Terms().WithVariations(first.Variations)
	res, err := engine.Regenerate(service.RegenerateInput{Loan: loan, Terms: terms, FromDate: first.RescheduleFrom})
	require.NoError(t, err)
	loan, err = loan.Reschedule(res.Installments, terms, "req-1", first.RescheduleFrom, res.OpeningPrincipal.Amount(), time.Now())
	require.NoError(t, err)
	_, ok := loan.InstallmentDueOn(march6)
	require.True(t, ok)

	// Second restructure targets the shifted date.
	second, err := applier.Apply(loan.Terms().Variations, []model.TermVariation{shift("b", march6, march11, true)}, march6, loan.Terms())
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, second.Superseded)
	assert.Equal(t, march1, second.RescheduleFrom, "re-anchored to the original date")
	old, _ := second.Variations.Get("a")
	assert.False(t, old.Active)
	current, ok := second.Variations.ActiveDueDateAt(march1)
	require.True(t, ok)
	assert.Equal(t, "b", current.ID)
	assert.Equal(t, march11, *current.DateValue)
	assert.Equal(t, "a", current.ParentID)
	assert.Len(t, second.Variations.ActiveOfType(valueobject.VariationDueDate), 1)

	terms = loan.Terms().WithVariations(second.Variations)
	res, err = engine.Regenerate(service.RegenerateInput{Loan: loan, Terms: terms, FromDate: second.RescheduleFrom})
	require.NoError(t, err)

	require.Len(t, res.Installments, 3)
	assertDenseNumbering(t, res.Installments)
	assert.Equal(t, march11, res.Installments[1].DueDate, "shifted once, not stacked")
	assert.Equal(t, testutil.Date(2025, 4, 1), res.Installments[2].DueDate)
}

func TestApply_SameSourceChainKeepsOneShift(t *testing.T) {
	march1 := testutil.Date(2025, 3, 1)
	targets := []time.Time{testutil.Date(2025, 3, 6), testutil.Date(2025, 3, 11), testutil.Date(2025, 3, 16)}
	ids := []string{"a", "b", "c"}

	tests := []struct {
		name     string
		specific bool
		april    time.Time
	}{
		{"specific to installment", true, testutil.Date(2025, 4, 1)},
		{"moves the grid", false, testutil.Date(2025, 4, 16)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applier := service.NewTermVariationApplier()
			engine := service.NewScheduleEngine()
			loan := disburse(t, testTerms("3000", "0", 3))

			for i, id := range ids {
				res, err := applier.Apply(loan.Terms().Variations,
					[]model.TermVariation{shift(id, march1, targets[i], tt.specific)}, march1, loan.Terms())
				require.NoError(t, err, "restructure %s", id)
				assert.Equal(t, march1, res.RescheduleFrom)
				if i > 0 {
					assert.Equal(t, []string{ids[i-1]}, res.Superseded)
					current, _ := res.Variations.Get(id)
					assert.Equal(t, ids[i-1], current.ParentID)
				}

				terms := loan.Terms().WithVariations(res.Variations)
				sched, err := engine.Regenerate(service.RegenerateInput{Loan: loan, Terms: terms, FromDate: res.RescheduleFrom})
				require.NoError(t, err, "regenerate after %s", id)
				loan, err = loan.Reschedule(sched.Installments, terms, "req-"+id, res.RescheduleFrom,
					sched.OpeningPrincipal.Amount(), time.Now())
				require.NoError(t, err)
			}

			shifts := loan.Terms().Variations.ActiveOfType(valueobject.VariationDueDate)
			require.Len(t, shifts, 1)
			assert.Equal(t, "c", shifts[0].ID)

			installments := loan.Installments()
			require.Len(t, installments, 3)
			assertDenseNumbering(t, installments)
			assert.Equal(t, testutil.Date(2025, 2, 1), installments[0].DueDate)
			assert.Equal(t, targets[2], installments[1].DueDate)
			assert.Equal(t, tt.april, installments[2].DueDate)
		})
	}
}

func TestApply_RemapsDownstreamOnSupersession(t *testing.T) {
	terms := testTerms("12000", "12", 12)
	march1 := testutil.Date(2025, 3, 1)
	march10 := testutil.Date(2025, 3, 10)
	march20 := testutil.Date(2025, 3, 20)

	active := model.NewVariationSet().Merge(
		shift("a", march1, march10, false),
		rateChange("r", testutil.Date(2025, 5, 10), "15"),
	)

	res, err := service.NewTermVariationApplier().Apply(active, []model.TermVariation{shift("b", march10, march20, false)}, march10, terms)
	require.NoError(t, err)

	r, ok := res.Variations.Get("r")
	require.True(t, ok)
	assert.True(t, r.Active)
	assert.Equal(t, testutil.Date(2025, 5, 20), r.ApplicableFrom)
	assert.Equal(t, march1, res.RescheduleFrom)
}

func TestApply_RemapsDownstreamOnGridShift(t *testing.T) {
	terms := testTerms("12000", "12", 12)
	active := model.NewVariationSet().Merge(rateChange("r", testutil.Date(2025, 5, 1), "15"))

	res, err := service.NewTermVariationApplier().Apply(active,
		[]model.TermVariation{shift("c", testutil.Date(2025, 3, 1), testutil.Date(2025, 3, 15), false)},
		testutil.Date(2025, 3, 1), terms)
	require.NoError(t, err)

	r, _ := res.Variations.Get("r")
	assert.Equal(t, testutil.Date(2025, 5, 15), r.ApplicableFrom)
	assert.Empty(t, res.Superseded)
}

func TestApply_SpecificShiftLeavesDownstream(t *testing.T) {
	terms := testTerms("12000", "12", 12)
	active := model.NewVariationSet().Merge(rateChange("r", testutil.Date(2025, 5, 1), "15"))

	res, err := service.NewTermVariationApplier().Apply(active,
		[]model.TermVariation{shift("c", testutil.Date(2025, 3, 1), testutil.Date(2025, 3, 15), true)},
		testutil.Date(2025, 3, 1), terms)
	require.NoError(t, err)

	r, _ := res.Variations.Get("r")
	assert.Equal(t, testutil.Date(2025, 5, 1), r.ApplicableFrom)
}

func TestApply_MergeIsIdempotent(t *testing.T) {
	terms := testTerms("12000", "12", 12)
	incoming := []model.TermVariation{rateChange("r", testutil.Date(2025, 5, 1), "15")}
	applier := service.NewTermVariationApplier()

	once, err := applier.Apply(model.VariationSet{}, incoming, testutil.Date(2025, 5, 1), terms)
	require.NoError(t, err)
	twice, err := applier.Apply(once.Variations, incoming, testutil.Date(2025, 5, 1), terms)
	require.NoError(t, err)

	assert.Equal(t, once.Variations.All(), twice.Variations.All())
	assert.Len(t, twice.Variations.Active(), 1)
}

func TestApply_RejectsShiftWithoutDate(t *testing.T) {
	v := model.TermVariation{ID: "x", Type: valueobject.VariationDueDate, ApplicableFrom: testutil.Date(2025, 3, 1)}
	_, err := service.NewTermVariationApplier().Apply(model.VariationSet{}, []model.TermVariation{v}, v.ApplicableFrom, testTerms("1", "0", 1))
	assert.Error(t, err)
}
