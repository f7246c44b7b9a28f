package model

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/pkg/money"
	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
)

// AllocationMapping is the share of a transaction applied to one installment. Mappings
// are keyed by the installment due date, which survives renumbering.
type AllocationMapping struct {
	InstallmentDueDate time.Time
	InstallmentNumber  int
	Principal          decimal.Decimal
	Interest           decimal.Decimal
	Fee                decimal.Decimal
	Penalty            decimal.Decimal
}

// Total is the mapped amount.
func (m AllocationMapping) Total() decimal.Decimal {
	return m.Principal.Add(m.Interest).Add(m.Fee).Add(m.Penalty)
}

func (m AllocationMapping) sameAs(o AllocationMapping) bool {
	return m.InstallmentDueDate.Equal(o.InstallmentDueDate) &&
		m.Principal.Equal(o.Principal) &&
		m.Interest.Equal(o.Interest) &&
		m.Fee.Equal(o.Fee) &&
		m.Penalty.Equal(o.Penalty)
}

// LoanTransaction is a money movement on a loan. Transactions are never deleted; undoing
// one marks it reversed and books a replacement.
type LoanTransaction struct {
	ID              string
	LoanID          string
	Type            valueobject.TransactionType
	Date            time.Time
	Amount          money.Money
	Reversed        bool
	ReversedOn      *time.Time
	ExternalID      string
	PaymentDetailID string
	ReplacesID      string
	Mappings        []AllocationMapping
	Overpayment     decimal.Decimal
	CreatedAt       time.Time
}

// PrincipalPortion is the principal this transaction reduced. A part liquidation is
// principal only and is not mapped to installments.
func (t LoanTransaction) PrincipalPortion() decimal.Decimal {
	if t.Type == valueobject.TransactionPartLiquidation {
		return t.Amount.Amount()
	}
	total := decimal.Zero
	for _, m := range t.Mappings {
		total = total.Add(m.Principal)
	}
	return total
}

// IsAllocated reports whether the transaction has been applied to the schedule. A
// positive repayment always yields a mapping or an overpayment once allocated.
func (t LoanTransaction) IsAllocated() bool {
	return len(t.Mappings) > 0 || t.Overpayment.IsPositive()
}

// SameAllocation reports whether two transactions are mapped identically.
func (t LoanTransaction) SameAllocation(mappings []AllocationMapping, overpayment decimal.Decimal) bool {
	if len(t.Mappings) != len(mappings) || !t.Overpayment.Equal(overpayment) {
		return false
	}
	for i := range mappings {
		if !t.Mappings[i].sameAs(mappings[i]) {
			return false
		}
	}
	return true
}

// Reverse returns a reversed copy.
func (t LoanTransaction) Reverse(on time.Time) LoanTransaction {
	t.Reversed = true
	t.ReversedOn = &on
	t.Mappings = copyMappings(t.Mappings)
	return t
}

// Replacement returns a new transaction carrying t's external attributes with new mappings.
func (t LoanTransaction) Replacement(id string, mappings []AllocationMapping, overpayment decimal.Decimal, now time.Time) LoanTransaction {
	return LoanTransaction{
		ID:              id,
		LoanID:          t.LoanID,
		Type:            t.Type,
		Date:            t.Date,
		Amount:          t.Amount,
		ExternalID:      t.ExternalID,
		PaymentDetailID: t.PaymentDetailID,
		ReplacesID:      t.ID,
		Mappings:        copyMappings(mappings),
		Overpayment:     overpayment,
		CreatedAt:       now,
	}
}

// SortTransactions orders transactions by date, then id. The input is not modified.
func SortTransactions(in []LoanTransaction) []LoanTransaction {
	out := copyTransactions(in)
	sort.SliceStable(out, func(a, b int) bool {
		if !out[a].Date.Equal(out[b].Date) {
			return out[a].Date.Before(out[b].Date)
		}
		return out[a].ID < out[b].ID
	})
	return out
}

func copyMappings(in []AllocationMapping) []AllocationMapping {
	if in == nil {
		return nil
	}
	out := make([]AllocationMapping, len(in))
	copy(out, in)
	return out
}

func copyTransactions(in []LoanTransaction) []LoanTransaction {
	if in == nil {
		return nil
	}
	out := make([]LoanTransaction, len(in))
	for i, t := range in {
		t.Mappings = copyMappings(t.Mappings)
		out[i] = t
	}
	return out
}

// ReplacedTransaction pairs a reversed transaction with the one that replaced it.
type ReplacedTransaction struct {
	OriginalID  string
	Replacement LoanTransaction
}

// ChangedTransactionDetail is the delta produced by replay: original transaction id to
// its replacement, in the order the replacements were made.
type ChangedTransactionDetail struct {
	Entries []ReplacedTransaction
}

// Record appends a replacement.
func (d *ChangedTransactionDetail) Record(originalID string, replacement LoanTransaction) {
	d.Entries = append(d.Entries, ReplacedTransaction{OriginalID: originalID, Replacement: replacement})
}

// IsEmpty reports whether replay changed nothing.
func (d ChangedTransactionDetail) IsEmpty() bool { return len(d.Entries) == 0 }

// Mapping returns original id to replacement id.
func (d ChangedTransactionDetail) Mapping() map[string]string {
	out := make(map[string]string, len(d.Entries))
	for _, e := range d.Entries {
		out[e.OriginalID] = e.Replacement.ID
	}
	return out
}

// OriginalIDs returns the reversed transaction ids.
func (d ChangedTransactionDetail) OriginalIDs() []string {
	out := make([]string, len(d.Entries))
	for i, e := range d.Entries {
		out[i] = e.OriginalID
	}
	return out
}
