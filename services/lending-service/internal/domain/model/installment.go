package model

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Installment is one scheduled repayment period. It is a plain value; the schedule
// slice owned by a Loan is always copied on the way in and out.
type Installment struct {
	Number   int
	FromDate time.Time
	DueDate  time.Time

	PrincipalDue decimal.Decimal
	InterestDue  decimal.Decimal
	FeeDue       decimal.Decimal
	PenaltyDue   decimal.Decimal

	PrincipalPaid decimal.Decimal
	InterestPaid  decimal.Decimal
	FeePaid       decimal.Decimal
	PenaltyPaid   decimal.Decimal

	ObligationsMet   bool
	ObligationsMetOn *time.Time
}

// TotalDue is the sum of all due components.
func (i Installment) TotalDue() decimal.Decimal {
	return i.PrincipalDue.Add(i.InterestDue).Add(i.FeeDue).Add(i.PenaltyDue)
}

// TotalPaid is the sum of all paid components.
func (i Installment) TotalPaid() decimal.Decimal {
	return i.PrincipalPaid.Add(i.InterestPaid).Add(i.FeePaid).Add(i.PenaltyPaid)
}

// TotalOutstanding is what remains to be paid on this installment.
func (i Installment) TotalOutstanding() decimal.Decimal {
	return i.TotalDue().Sub(i.TotalPaid())
}

// PrincipalOutstanding is the unpaid principal of this installment.
func (i Installment) PrincipalOutstanding() decimal.Decimal {
	return i.PrincipalDue.Sub(i.PrincipalPaid)
}

// ResetPaid returns a copy with every paid component cleared.
func (i Installment) ResetPaid() Installment {
	i.PrincipalPaid = decimal.Zero
	i.InterestPaid = decimal.Zero
	i.FeePaid = decimal.Zero
	i.PenaltyPaid = decimal.Zero
	i.ObligationsMet = false
	i.ObligationsMetOn = nil
	return i
}

// SameDueAmounts reports whether two installments fall due on the same date for the same
// components.
func (i Installment) SameDueAmounts(o Installment) bool {
	return i.DueDate.Equal(o.DueDate) &&
		i.PrincipalDue.Equal(o.PrincipalDue) &&
		i.InterestDue.Equal(o.InterestDue) &&
		i.FeeDue.Equal(o.FeeDue) &&
		i.PenaltyDue.Equal(o.PenaltyDue)
}

// Renumber sorts installments by due date and assigns dense numbers 1..N.
// The input slice is not modified.
func Renumber(in []Installment) []Installment {
	out := copyInstallments(in)
	sort.SliceStable(out, func(a, b int) bool { return out[a].DueDate.Before(out[b].DueDate) })
	for i := range out {
		out[i].Number = i + 1
	}
	return out
}

// TotalPrincipalDue sums principal due across installments.
func TotalPrincipalDue(in []Installment) decimal.Decimal {
	total := decimal.Zero
	for _, i := range in {
		total = total.Add(i.PrincipalDue)
	}
	return total
}

// TotalPrincipalOutstanding sums unpaid principal across installments.
func TotalPrincipalOutstanding(in []Installment) decimal.Decimal {
	total := decimal.Zero
	for _, i := range in {
		total = total.Add(i.PrincipalOutstanding())
	}
	return total
}

// TotalInterestDue sums interest due across installments.
func TotalInterestDue(in []Installment) decimal.Decimal {
	total := decimal.Zero
	for _, i := range in {
		total = total.Add(i.InterestDue)
	}
	return total
}

func copyInstallments(in []Installment) []Installment {
	if in == nil {
		return nil
	}
	out := make([]Installment, len(in))
	copy(out, in)
	return out
}
