package model

import (
	"sort"
	"time"

	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
)

// VariationSet is an arena of term variations indexed by id. Parent links are ids, so
// chains are resolved by lookup rather than by pointer. The zero value is empty and usable.
// Mutating methods return a new set.
type VariationSet struct {
	order []string
	byID  map[string]TermVariation
}

// NewVariationSet builds a set; later duplicates of an id replace earlier ones.
func NewVariationSet(vs ...TermVariation) VariationSet {
	var s VariationSet
	for _, v := range vs {
		s = s.With(v)
	}
	return s
}

func (s VariationSet) clone() VariationSet {
	next := VariationSet{
		order: make([]string, len(s.order)),
		byID:  make(map[string]TermVariation, len(s.byID)),
	}
	copy(next.order, s.order)
	for id, v := range s.byID {
		next.byID[id] = v
	}
	return next
}

// Len returns the number of variations, active or not.
func (s VariationSet) Len() int { return len(s.order) }

// Get returns the variation with the given id.
func (s VariationSet) Get(id string) (TermVariation, bool) {
	v, ok := s.byID[id]
	return v, ok
}

// All returns every variation in insertion order.
func (s VariationSet) All() []TermVariation {
	out := make([]TermVariation, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// Active returns the active variations ordered by applicable date, then insertion.
func (s VariationSet) Active() []TermVariation {
	var out []TermVariation
	for _, id := range s.order {
		if v := s.byID[id]; v.Active {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].ApplicableFrom.Before(out[b].ApplicableFrom) })
	return out
}

// ActiveOfType returns the active variations of one type.
func (s VariationSet) ActiveOfType(t valueobject.TermVariationType) []TermVariation {
	var out []TermVariation
	for _, v := range s.Active() {
		if v.Type == t {
			out = append(out, v)
		}
	}
	return out
}

// ActiveDueDateAt returns the active due-date variation anchored at date, if any.
func (s VariationSet) ActiveDueDateAt(date time.Time) (TermVariation, bool) {
	for _, v := range s.ActiveOfType(valueobject.VariationDueDate) {
		if v.ApplicableFrom.Equal(date) {
			return v, true
		}
	}
	return TermVariation{}, false
}

// With inserts or replaces a variation by id.
func (s VariationSet) With(v TermVariation) VariationSet {
	next := s.clone()
	if _, exists := next.byID[v.ID]; !exists {
		next.order = append(next.order, v.ID)
	}
	next.byID[v.ID] = v
	return next
}

// Merge adds active variations keyed by type and applicable date. Merging a variation
// that is already present changes nothing; an active variation with the same key but a
// different id is deactivated, with its derived variations, and replaced by the
// incoming one.
func (s VariationSet) Merge(vs ...TermVariation) VariationSet {
	next := s
	for _, v := range vs {
		v = v.Activate()
		for _, existing := range next.Active() {
			if existing.ID != v.ID && existing.key() == v.key() {
				next = next.Deactivate(existing.ID)
			}
		}
		next = next.With(v)
	}
	return next
}

// Deactivate deactivates a variation and every variation derived from it.
func (s VariationSet) Deactivate(id string) VariationSet {
	next := s.clone()
	pending := []string{id}
	seen := make(map[string]struct{})
	for len(pending) > 0 {
		cur := pending[0]
		pending = pending[1:]
		if _, ok := seen[cur]; ok {
			continue
		}
		seen[cur] = struct{}{}
		if v, ok := next.byID[cur]; ok {
			next.byID[cur] = v.Deactivate()
		}
		for _, other := range next.order {
			if next.byID[other].ParentID == cur {
				pending = append(pending, other)
			}
		}
	}
	return next
}

// ResolveChain returns the variation with the given id preceded by its ancestors,
// root first. A cycle in the parent links fails with ErrVariationCycle.
func (s VariationSet) ResolveChain(id string) ([]TermVariation, error) {
	visited := make(map[string]struct{})
	var chain []TermVariation
	for cur := id; cur != ""; {
		if _, seen := visited[cur]; seen {
			return nil, valueobject.NewVariationCycleError(id)
		}
		visited[cur] = struct{}{}
		v, ok := s.byID[cur]
		if !ok {
			break
		}
		chain = append(chain, v)
		cur = v.ParentID
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}
