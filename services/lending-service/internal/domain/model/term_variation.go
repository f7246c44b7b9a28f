package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
)

// TermVariation records one perturbation of the contractual schedule. ParentID links a
// derived variation (for example the extension paired with a principal grace) to the
// variation that caused it; it is empty for root variations.
type TermVariation struct {
	ID                    string
	LoanID                string
	RequestID             string
	Type                  valueobject.TermVariationType
	ApplicableFrom        time.Time
	DecimalValue          decimal.NullDecimal
	DateValue             *time.Time
	SpecificToInstallment bool
	Active                bool
	ParentID              string
}

// HasParent reports whether the variation was derived from another one.
func (v TermVariation) HasParent() bool { return v.ParentID != "" }

// Count returns the decimal value as an installment count (grace and extension variations).
func (v TermVariation) Count() int {
	if !v.DecimalValue.Valid {
		return 0
	}
	return int(v.DecimalValue.Decimal.IntPart())
}

// ShiftedDate returns the substituted due date of a due-date variation.
func (v TermVariation) ShiftedDate() (time.Time, bool) {
	if v.Type != valueobject.VariationDueDate || v.DateValue == nil {
		return time.Time{}, false
	}
	return *v.DateValue, true
}

// Activate returns an active copy.
func (v TermVariation) Activate() TermVariation {
	v.Active = true
	return v
}

// Deactivate returns an inactive copy.
func (v TermVariation) Deactivate() TermVariation {
	v.Active = false
	return v
}

// Reanchor returns a copy applicable from the given date.
func (v TermVariation) Reanchor(date time.Time) TermVariation {
	v.ApplicableFrom = date
	return v
}

// variationKey identifies the slot a variation occupies. Derived variations are keyed
// under their parent so a paired extension never displaces a standalone one. Due-date
// shifts ignore the parent: a date carries at most one active shift.
type variationKey struct {
	kind   valueobject.TermVariationType
	date   string
	parent string
}

func (v TermVariation) key() variationKey {
	k := variationKey{kind: v.Type, date: v.ApplicableFrom.Format(time.DateOnly), parent: v.ParentID}
	if v.Type == valueobject.VariationDueDate {
		k.parent = ""
	}
	return k
}
