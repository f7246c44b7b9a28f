package service

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/pkg/money"
	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
)

// InterestStrategy computes the interest charged for one period.
type InterestStrategy interface {
	Method() valueobject.InterestMethod
	// PeriodInterest returns the unrounded interest of a period given the balance at
	// its start, the principal the schedule opened with and the periodic rate.
	PeriodInterest(balance, opening, rate decimal.Decimal, policy money.RoundingPolicy) decimal.Decimal
}

// FlatInterest charges every period on the opening principal.
type FlatInterest struct{}

func (FlatInterest) Method() valueobject.InterestMethod { return valueobject.InterestFlat }

func (FlatInterest) PeriodInterest(_, opening, rate decimal.Decimal, policy money.RoundingPolicy) decimal.Decimal {
	return policy.Mul(opening, rate)
}

// DecliningBalanceInterest charges every period on the balance still outstanding.
type DecliningBalanceInterest struct{}

func (DecliningBalanceInterest) Method() valueobject.InterestMethod {
	return valueobject.InterestDecliningBalance
}

func (DecliningBalanceInterest) PeriodInterest(balance, _, rate decimal.Decimal, policy money.RoundingPolicy) decimal.Decimal {
	return policy.Mul(balance, rate)
}

var interestStrategies = map[valueobject.InterestMethod]InterestStrategy{
	valueobject.InterestFlat:             FlatInterest{},
	valueobject.InterestDecliningBalance: DecliningBalanceInterest{},
}

// InterestStrategyFor returns the strategy registered for an interest method.
func InterestStrategyFor(m valueobject.InterestMethod) (InterestStrategy, error) {
	s, ok := interestStrategies[m]
	if !ok {
		return nil, fmt.Errorf("no interest strategy for method %q", m)
	}
	return s, nil
}
