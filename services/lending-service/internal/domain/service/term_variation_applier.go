package service

import (
	"fmt"
	"time"

	"github.com/bibbank/bib/services/lending-service/internal/domain/model"
	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
)

// ApplyResult is the variation set after an approved request is folded in.
type ApplyResult struct {
	Variations     model.VariationSet
	RescheduleFrom time.Time
	Superseded     []string
	Activated      []model.TermVariation
}

// TermVariationApplier folds the variations of an approved request into the variations
// already active on a loan.
type TermVariationApplier struct{}

// NewTermVariationApplier returns a new applier.
func NewTermVariationApplier() *TermVariationApplier {
	return &TermVariationApplier{}
}

// Apply merges incoming into active. An incoming due-date shift whose source date is
// the anchor or the target of an active shift supersedes it: the old one is deactivated
// and the incoming variations at that source, together with rescheduleFrom, are
// re-anchored to the old anchor. When a shift moves the grid of later due dates, active
// variations anchored on those dates are remapped in lock-step.
func (a *TermVariationApplier) Apply(
	active model.VariationSet,
	incoming []model.TermVariation,
	rescheduleFrom time.Time,
	terms model.LoanTerms,
) (ApplyResult, error) {
	set := active
	from := rescheduleFrom
	pending := make([]model.TermVariation, len(incoming))
	copy(pending, incoming)

	incomingIDs := make(map[string]struct{}, len(pending))
	for _, v := range pending {
		incomingIDs[v.ID] = struct{}{}
	}

	var superseded []string
	for i := range pending {
		nv := pending[i]
		if nv.Type != valueobject.VariationDueDate {
			continue
		}
		newDate, ok := nv.ShiftedDate()
		if !ok {
			return ApplyResult{}, fmt.Errorf("due date variation %s has no date value", nv.ID)
		}
		source := nv.ApplicableFrom

		old, found := findSupersededShift(set, source, incomingIDs)
		if !found {
			if !nv.SpecificToInstallment {
				skip := copySkip(incomingIDs)
				set = remapDownstream(set, terms, source, source, newDate, skip)
			}
			continue
		}

		oldTarget, _ := old.ShiftedDate()
		anchor := old.ApplicableFrom
		set = set.Deactivate(old.ID)
		superseded = append(superseded, old.ID)

		for j := range pending {
			if pending[j].ApplicableFrom.Equal(source) {
				pending[j] = pending[j].Reanchor(anchor)
			}
		}
		if pending[i].ParentID == "" {
			pending[i].ParentID = old.ID
		}
		if from.Equal(source) {
			from = anchor
		}

		oldGrid, newGrid := anchor, anchor
		if !old.SpecificToInstallment {
			oldGrid = oldTarget
		}
		if !nv.SpecificToInstallment {
			newGrid = newDate
		}
		if !oldGrid.Equal(newGrid) {
			skip := copySkip(incomingIDs)
			skip[old.ID] = struct{}{}
			set = remapDownstream(set, terms, anchor, oldGrid, newGrid, skip)
		}
	}

	activated := make([]model.TermVariation, 0, len(pending))
	for _, v := range pending {
		activated = append(activated, v.Activate())
	}
	set = set.Merge(activated...)

	return ApplyResult{
		Variations:     set,
		RescheduleFrom: from,
		Superseded:     superseded,
		Activated:      activated,
	}, nil
}

// findSupersededShift returns the active due-date shift whose anchor or target is source.
func findSupersededShift(set model.VariationSet, source time.Time, skip map[string]struct{}) (model.TermVariation, bool) {
	for _, v := range set.ActiveOfType(valueobject.VariationDueDate) {
		if _, ok := skip[v.ID]; ok {
			continue
		}
		if v.ApplicableFrom.Equal(source) {
			return v, true
		}
		if target, ok := v.ShiftedDate(); ok && target.Equal(source) {
			return v, true
		}
	}
	return model.TermVariation{}, false
}

// remapDownstream moves every active variation anchored strictly after boundary from
// the grid oldGrid+k to newGrid+k, walking both grids in lock-step.
func remapDownstream(
	set model.VariationSet,
	terms model.LoanTerms,
	boundary, oldGrid, newGrid time.Time,
	skip map[string]struct{},
) model.VariationSet {
	var (
		candidates []model.TermVariation
		latest     time.Time
	)
	for _, v := range set.Active() {
		if _, ok := skip[v.ID]; ok || !v.ApplicableFrom.After(boundary) {
			continue
		}
		candidates = append(candidates, v)
		if v.ApplicableFrom.After(latest) {
			latest = v.ApplicableFrom
		}
	}
	if len(candidates) == 0 {
		return set
	}

	remap := make(map[string]time.Time)
	for k := 1; k <= MaxScheduleInstallments; k++ {
		o := terms.AddPeriods(oldGrid, k)
		if o.After(latest) {
			break
		}
		remap[o.Format(time.DateOnly)] = terms.AddPeriods(newGrid, k)
	}

	next := set
	for _, v := range candidates {
		if moved, ok := remap[v.ApplicableFrom.Format(time.DateOnly)]; ok {
			next = next.With(v.Reanchor(moved))
		}
	}
	return next
}

func copySkip(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in)+1)
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}
