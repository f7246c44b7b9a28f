package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/services/lending-service/internal/domain/model"
)

// Allocation strategy codes.
const (
	StrategyPenaltyFeeInterestPrincipal = "penalty-fee-interest-principal"
	StrategyInterestPrincipalPenaltyFee = "interest-principal-penalty-fee"
)

// AllocationStrategy splits a repayment across installments.
type AllocationStrategy interface {
	Code() string
	// Allocate applies amount to the installments, oldest outstanding first, and returns
	// the updated installments, one mapping per touched installment and the unallocated
	// overpayment. The input slice is not modified.
	Allocate(installments []model.Installment, amount decimal.Decimal, on time.Time) ([]model.Installment, []model.AllocationMapping, decimal.Decimal)
}

type component int

const (
	componentPenalty component = iota
	componentFee
	componentInterest
	componentPrincipal
)

// orderedAllocation pays each installment's components in a fixed order before moving to
// the next installment.
type orderedAllocation struct {
	code  string
	order []component
}

func (s orderedAllocation) Code() string { return s.code }

func (s orderedAllocation) Allocate(
	installments []model.Installment,
	amount decimal.Decimal,
	on time.Time,
) ([]model.Installment, []model.AllocationMapping, decimal.Decimal) {
	out := model.Renumber(installments)
	var mappings []model.AllocationMapping
	remaining := amount

	for i := range out {
		if !remaining.IsPositive() {
			break
		}
		inst := &out[i]
		if !inst.TotalOutstanding().IsPositive() {
			continue
		}

		m := model.AllocationMapping{
			InstallmentDueDate: inst.DueDate,
			InstallmentNumber:  inst.Number,
			Principal:          decimal.Zero,
			Interest:           decimal.Zero,
			Fee:                decimal.Zero,
			Penalty:            decimal.Zero,
		}
		for _, c := range s.order {
			var due, paid *decimal.Decimal
			var mapped *decimal.Decimal
			switch c {
			case componentPenalty:
				due, paid, mapped = &inst.PenaltyDue, &inst.PenaltyPaid, &m.Penalty
			case componentFee:
				due, paid, mapped = &inst.FeeDue, &inst.FeePaid, &m.Fee
			case componentInterest:
				due, paid, mapped = &inst.InterestDue, &inst.InterestPaid, &m.Interest
			default:
				due, paid, mapped = &inst.PrincipalDue, &inst.PrincipalPaid, &m.Principal
			}
			portion := decimal.Min(due.Sub(*paid), remaining)
			if !portion.IsPositive() {
				continue
			}
			*paid = paid.Add(portion)
			*mapped = mapped.Add(portion)
			remaining = remaining.Sub(portion)
		}

		if !inst.TotalOutstanding().IsPositive() {
			inst.ObligationsMet = true
			metOn := on
			inst.ObligationsMetOn = &metOn
		}
		mappings = append(mappings, m)
	}

	// Installments with nothing due are met as soon as everything before them is.
	for i := range out {
		if out[i].ObligationsMet || out[i].TotalOutstanding().IsPositive() {
			continue
		}
		if i > 0 && !out[i-1].ObligationsMet {
			break
		}
		out[i].ObligationsMet = true
		metOn := on
		out[i].ObligationsMetOn = &metOn
	}

	return out, mappings, remaining
}

var allocationStrategies = map[string]AllocationStrategy{
	StrategyPenaltyFeeInterestPrincipal: orderedAllocation{
		code:  StrategyPenaltyFeeInterestPrincipal,
		order: []component{componentPenalty, componentFee, componentInterest, componentPrincipal},
	},
	StrategyInterestPrincipalPenaltyFee: orderedAllocation{
		code:  StrategyInterestPrincipalPenaltyFee,
		order: []component{componentInterest, componentPrincipal, componentPenalty, componentFee},
	},
}

// AllocationStrategyFor returns the strategy registered under code. An empty code
// selects penalty-fee-interest-principal.
func AllocationStrategyFor(code string) (AllocationStrategy, error) {
	if code == "" {
		code = StrategyPenaltyFeeInterestPrincipal
	}
	s, ok := allocationStrategies[code]
	if !ok {
		return nil, fmt.Errorf("unknown transaction processing strategy %q", code)
	}
	return s, nil
}
