package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bib/pkg/testutil"
	"github.com/bibbank/bib/services/lending-service/internal/domain/model"
	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
)

func dueDateVariation(id string, from, to time.Time) model.TermVariation {
	return model.TermVariation{
		ID:             id,
		Type:           valueobject.VariationDueDate,
		ApplicableFrom: from,
		DateValue:      &to,
	}
}

func TestVariationSet_MergeIsIdempotent(t *testing.T) {
	v := dueDateVariation("v1", testutil.Date(2025, 3, 30), testutil.Date(2025, 4, 5))

	once := model.VariationSet{}.Merge(v)
	twice := once.Merge(v)

	assert.Equal(t, 1, twice.Len())
	assert.Equal(t, once.All(), twice.All())
	require.Len(t, twice.Active(), 1)
	assert.True(t, twice.Active()[0].Active)
}

func TestVariationSet_MergeReplacesSameKey(t *testing.T) {
	from := testutil.Date(2025, 3, 30)
	first := dueDateVariation("v1", from, testutil.Date(2025, 4, 5))
	second := dueDateVariation("v2", from, testutil.Date(2025, 4, 10))

	set := model.NewVariationSet().Merge(first).Merge(second)

	assert.Equal(t, 2, set.Len())
	active := set.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "v2", active[0].ID)

	old, ok := set.Get("v1")
	require.True(t, ok)
	assert.False(t, old.Active)
}

func TestVariationSet_MergeKeepsOneShiftPerDate(t *testing.T) {
	from := testutil.Date(2025, 3, 30)
	first := dueDateVariation("v1", from, testutil.Date(2025, 4, 5))
	derived := dueDateVariation("v2", from, testutil.Date(2025, 4, 10))
	derived.ParentID = "root"

	set := model.NewVariationSet().Merge(first).Merge(derived)

	shifts := set.ActiveOfType(valueobject.VariationDueDate)
	require.Len(t, shifts, 1)
	assert.Equal(t, "v2", shifts[0].ID)
	got, ok := set.ActiveDueDateAt(from)
	require.True(t, ok)
	assert.Equal(t, testutil.Date(2025, 4, 10), *got.DateValue)
}

func TestVariationSet_MergeKeepsDifferentTypes(t *testing.T) {
	from := testutil.Date(2025, 3, 30)
	due := dueDateVariation("v1", from, testutil.Date(2025, 4, 5))
	rate := model.TermVariation{
		ID:             "v2",
		Type:           valueobject.VariationInterestRate,
		ApplicableFrom: from,
		DecimalValue:   decimal.NewNullDecimal(decimal.NewFromInt(9)),
	}

	set := model.NewVariationSet().Merge(due, rate)

	assert.Len(t, set.Active(), 2)
	assert.Len(t, set.ActiveOfType(valueobject.VariationInterestRate), 1)
	got, ok := set.ActiveDueDateAt(from)
	require.True(t, ok)
	assert.Equal(t, "v1", got.ID)
}

func TestVariationSet_ResolveChain(t *testing.T) {
	root := model.TermVariation{ID: "root", Type: valueobject.VariationGraceOnPrincipal}
	child := model.TermVariation{ID: "child", Type: valueobject.VariationExtendRepaymentPeriod, ParentID: "root"}
	set := model.NewVariationSet(root, child)

	chain, err := set.ResolveChain("child")
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "root", chain[0].ID)
	assert.Equal(t, "child", chain[1].ID)
}

func TestVariationSet_ResolveChainDetectsCycle(t *testing.T) {
	a := model.TermVariation{ID: "a", ParentID: "b"}
	b := model.TermVariation{ID: "b", ParentID: "a"}
	set := model.NewVariationSet(a, b)

	_, err := set.ResolveChain("a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, valueobject.ErrVariationCycle))
	testutil.AssertErrorCode(t, err, valueobject.CodeVariationCycle)
}

func TestVariationSet_WithDoesNotMutateReceiver(t *testing.T) {
	base := model.NewVariationSet(model.TermVariation{ID: "a"})
	_ = base.With(model.TermVariation{ID: "b"})

	assert.Equal(t, 1, base.Len())
	_, ok := base.Get("b")
	assert.False(t, ok)
}

func TestVariationSet_MergeCascadesToDerived(t *testing.T) {
	from := testutil.Date(2025, 8, 1)
	three := decimal.NewNullDecimal(decimal.NewFromInt(3))
	grace := model.TermVariation{ID: "g1", Type: valueobject.VariationGraceOnPrincipal, ApplicableFrom: from, DecimalValue: three}
	ext := model.TermVariation{ID: "e1", Type: valueobject.VariationExtendRepaymentPeriod, ApplicableFrom: from, DecimalValue: three, ParentID: "g1"}
	extra := model.TermVariation{ID: "x1", Type: valueobject.VariationExtendRepaymentPeriod, ApplicableFrom: from, DecimalValue: three}

	set := model.NewVariationSet().Merge(grace, ext, extra)
	require.Len(t, set.Active(), 3, "paired and standalone extensions coexist")

	regrace := model.TermVariation{ID: "g2", Type: valueobject.VariationGraceOnPrincipal, ApplicableFrom: from, DecimalValue: three}
	set = set.Merge(regrace)

	ids := make([]string, 0)
	for _, v := range set.Active() {
		ids = append(ids, v.ID)
	}
	assert.ElementsMatch(t, []string{"x1", "g2"}, ids)
}
