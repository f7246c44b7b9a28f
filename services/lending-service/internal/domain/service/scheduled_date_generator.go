package service

import (
	"time"

	"github.com/bibbank/bib/services/lending-service/internal/domain/model"
)

// NextRepaymentDate returns the due date that follows from. On the first repayment an
// explicit first repayment date in the terms wins over the computed one. An active
// due-date variation anchored at the resulting date substitutes its shifted date.
func NextRepaymentDate(from time.Time, terms model.LoanTerms, isFirstRepayment bool) (time.Time, error) {
	computed := terms.AddPeriods(from, 1)
	if isFirstRepayment && terms.FirstRepaymentDate != nil {
		computed = *terms.FirstRepaymentDate
	}
	due, _, err := substituteDueDate(computed, terms.Variations, nil)
	return due, err
}

// substituteDueDate applies the active due-date variation anchored at date. The parent
// chain of that variation is walked root first and every active due-date link whose
// anchor matches the running date shifts it once. Variations in applied are skipped and
// recorded, so one walk never applies a shift twice.
func substituteDueDate(
	date time.Time,
	vs model.VariationSet,
	applied map[string]struct{},
) (time.Time, *model.TermVariation, error) {
	matched, ok := vs.ActiveDueDateAt(date)
	if !ok {
		return date, nil, nil
	}
	if _, done := applied[matched.ID]; done {
		return date, nil, nil
	}

	chain, err := vs.ResolveChain(matched.ID)
	if err != nil {
		return time.Time{}, nil, err
	}

	cur := date
	var last *model.TermVariation
	for i := range chain {
		link := chain[i]
		if !link.Active {
			continue
		}
		if _, done := applied[link.ID]; done {
			continue
		}
		shifted, isShift := link.ShiftedDate()
		if !isShift || !link.ApplicableFrom.Equal(cur) {
			continue
		}
		cur = shifted
		last = &link
		if applied != nil {
			applied[link.ID] = struct{}{}
		}
	}
	return cur, last, nil
}

// dueDateSlot is one position produced by the date walk: the contractual date the
// frequency produced and the date the installment actually falls due.
type dueDateSlot struct {
	computed time.Time
	due      time.Time
}

// dueDateWalker produces successive due dates from an anchor. Dates are always computed
// from the anchor (anchor + k periods) so month-end clamping never drifts. A shift that
// is not specific to one installment moves the anchor for every later date.
type dueDateWalker struct {
	terms    model.LoanTerms
	calendar model.HolidayCalendar
	anchor   time.Time
	k        int
	applied  map[string]struct{}
}

// newDueDateWalker starts the walk on the contractual grid of a loan: the explicit first
// repayment date when present, otherwise one period after disbursement.
func newDueDateWalker(terms model.LoanTerms, calendar model.HolidayCalendar, disbursedOn time.Time) *dueDateWalker {
	w := &dueDateWalker{
		terms:    terms,
		calendar: calendar,
		anchor:   disbursedOn,
		k:        1,
		applied:  make(map[string]struct{}),
	}
	if terms.FirstRepaymentDate != nil {
		w.anchor = *terms.FirstRepaymentDate
		w.k = 0
	}
	return w
}

func (w *dueDateWalker) next() (dueDateSlot, error) {
	computed := w.terms.AddPeriods(w.anchor, w.k)
	w.k++

	shifted, v, err := substituteDueDate(computed, w.terms.Variations, w.applied)
	if err != nil {
		return dueDateSlot{}, err
	}
	if v != nil && !v.SpecificToInstallment {
		w.anchor = shifted
		w.k = 1
	}
	return dueDateSlot{computed: computed, due: w.calendar.Adjust(shifted)}, nil
}
