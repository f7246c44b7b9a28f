package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/services/lending-service/internal/domain/model"
	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
)

// RestructureTerms are the changes a restructure request proposes from FromDate on.
type RestructureTerms struct {
	FromDate time.Time
	// NewDueDate moves the installment due on FromDate. Unless DueDateSpecific is set,
	// every later due date moves with it.
	NewDueDate       *time.Time
	DueDateSpecific  bool
	NewInterestRate  *decimal.Decimal // annual percent
	GraceOnPrincipal int
	GraceOnInterest  int
	ExtraTerms       int
}

// IsEmpty reports whether no change is proposed.
func (t RestructureTerms) IsEmpty() bool {
	return t.NewDueDate == nil && t.NewInterestRate == nil &&
		t.GraceOnPrincipal == 0 && t.GraceOnInterest == 0 && t.ExtraTerms == 0
}

// VariationBuilder turns proposed restructure terms into pending term variations.
type VariationBuilder struct {
	newID func() string
}

// NewVariationBuilder returns a builder using newID for variation ids.
func NewVariationBuilder(newID func() string) *VariationBuilder {
	return &VariationBuilder{newID: newID}
}

// Build returns the inactive variations for t. A principal grace is paired with an
// extension of the same length, derived from it, so the grace periods are added to the
// tail rather than squeezed out of the remaining term.
func (b *VariationBuilder) Build(loanID string, t RestructureTerms) ([]model.TermVariation, error) {
	if t.IsEmpty() {
		return nil, errors.New("restructure proposes no change")
	}
	if t.GraceOnPrincipal < 0 || t.GraceOnInterest < 0 || t.ExtraTerms < 0 {
		return nil, errors.New("grace and extra terms must not be negative")
	}

	var out []model.TermVariation
	base := func(kind valueobject.TermVariationType) model.TermVariation {
		return model.TermVariation{
			ID:             b.newID(),
			LoanID:         loanID,
			Type:           kind,
			ApplicableFrom: t.FromDate,
		}
	}

	if t.NewDueDate != nil {
		if t.NewDueDate.Equal(t.FromDate) {
			return nil, fmt.Errorf("new due date equals the current due date %s", t.FromDate.Format(time.DateOnly))
		}
		v := base(valueobject.VariationDueDate)
		date := *t.NewDueDate
		v.DateValue = &date
		v.SpecificToInstallment = t.DueDateSpecific
		out = append(out, v)
	}

	if t.NewInterestRate != nil {
		if t.NewInterestRate.IsNegative() {
			return nil, errors.New("interest rate must not be negative")
		}
		v := base(valueobject.VariationInterestRate)
		v.DecimalValue = decimal.NewNullDecimal(*t.NewInterestRate)
		out = append(out, v)
	}

	if t.GraceOnPrincipal > 0 {
		grace := base(valueobject.VariationGraceOnPrincipal)
		grace.DecimalValue = decimal.NewNullDecimal(decimal.NewFromInt(int64(t.GraceOnPrincipal)))
		ext := base(valueobject.VariationExtendRepaymentPeriod)
		ext.DecimalValue = grace.DecimalValue
		ext.ParentID = grace.ID
		out = append(out, grace, ext)
	}

	if t.GraceOnInterest > 0 {
		v := base(valueobject.VariationGraceOnInterest)
		v.DecimalValue = decimal.NewNullDecimal(decimal.NewFromInt(int64(t.GraceOnInterest)))
		out = append(out, v)
	}

	if t.ExtraTerms > 0 {
		v := base(valueobject.VariationExtendRepaymentPeriod)
		v.DecimalValue = decimal.NewNullDecimal(decimal.NewFromInt(int64(t.ExtraTerms)))
		out = append(out, v)
	}

	return out, nil
}

// AdjustedMaturity estimates the maturity a request leads to when no explicit target is
// given: the installments still pending from the from date plus every extension, walked
// one repayment period at a time.
func AdjustedMaturity(loan model.Loan, t RestructureTerms) (time.Time, error) {
	pending := 0
	for _, inst := range loan.Installments() {
		if !inst.DueDate.Before(t.FromDate) {
			pending++
		}
	}
	if pending == 0 {
		return time.Time{}, valueobject.NewScheduleDateIntegrityError(t.FromDate)
	}
	periods := pending + t.GraceOnPrincipal + t.ExtraTerms
	if periods > MaxScheduleInstallments {
		return time.Time{}, valueobject.NewScheduleTooLongError(MaxScheduleInstallments)
	}

	terms := loan.Terms()
	date := t.FromDate
	if t.NewDueDate != nil {
		date = *t.NewDueDate
	}
	for i := 1; i < periods; i++ {
		next, err := NextRepaymentDate(date, terms, false)
		if err != nil {
			return time.Time{}, err
		}
		date = next
	}
	return date, nil
}
