package service

import (
	"fmt"
	"time"

	"github.com/bibbank/bib/pkg/money"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/model"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/valueobject"
)

// AccrualEngine is a domain service that advances active deposits through the daily
// close: accrue to the run date, post interest at month end and mature due accounts.
type AccrualEngine struct{}

// NewAccrualEngine creates a new AccrualEngine.
func NewAccrualEngine() *AccrualEngine {
	return &AccrualEngine{}
}

// AccrualStep is what one daily run did to an account.
type AccrualStep struct {
	Account model.DepositAccount
	Accrued money.Money
	Posted  money.Money
	Matured bool
}

// Advance runs the daily close for one account. Accounts whose maturity date has passed
// are matured, which posts everything accrued for the term.
func (e *AccrualEngine) Advance(account model.DepositAccount, asOf time.Time) (AccrualStep, error) {
	if account.Status() != valueobject.StatusActive {
		return AccrualStep{}, fmt.Errorf("account %s: %w",
			account.ID(), valueobject.NewInvalidOperationError("accrue interest on", account.Status()))
	}
	zero := money.Zero(account.Principal().Currency())

	if !asOf.Before(*account.MaturityDate()) {
		before := account.PostedInterest()
		matured, err := account.Mature(asOf)
		if err != nil {
			return AccrualStep{}, fmt.Errorf("mature account %s: %w", account.ID(), err)
		}
		posted, err := matured.PostedInterest().Subtract(before)
		if err != nil {
			return AccrualStep{}, err
		}
		return AccrualStep{Account: matured, Accrued: zero, Posted: posted, Matured: true}, nil
	}

	accrued, interest, err := account.AccrueInterest(asOf)
	if err != nil {
		return AccrualStep{}, fmt.Errorf("accrue interest for account %s: %w", account.ID(), err)
	}
	step := AccrualStep{Account: accrued, Accrued: interest, Posted: zero}
	if !IsMonthEnd(asOf) {
		return step, nil
	}

	posted, amount, err := accrued.PostInterest(asOf)
	if err != nil {
		return AccrualStep{}, fmt.Errorf("post interest for account %s: %w", account.ID(), err)
	}
	step.Account = posted
	step.Posted = amount
	return step, nil
}

// IsMonthEnd reports whether t falls on the last calendar day of its month.
func IsMonthEnd(t time.Time) bool {
	return t.AddDate(0, 0, 1).Day() == 1
}
