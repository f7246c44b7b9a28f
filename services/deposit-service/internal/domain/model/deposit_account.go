package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/pkg/events"
	"github.com/bibbank/bib/pkg/money"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/event"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/valueobject"
)

// daysInYear is the Actual/365 fixed denominator used for daily accrual.
var daysInYear = decimal.NewFromInt(365)

// DepositAccount is the aggregate root for a term deposit. Mutations return a new copy
// carrying the events they raised.
type DepositAccount struct {
	events.EventCollector

	submittedOn      time.Time
	activatedOn      *time.Time
	maturityDate     *time.Time
	lastAccrualDate  *time.Time
	closedOn         *time.Time
	createdAt        time.Time
	updatedAt        time.Time
	principal        money.Money
	accruedInterest  money.Money
	postedInterest   money.Money
	rounding         money.RoundingPolicy
	terms            DepositTerms
	instruction      valueobject.MaturityInstruction
	status           valueobject.AccountStatus
	savingsAccountID *uuid.UUID
	period           int
	version          int
	id               uuid.UUID
	tenantID         uuid.UUID
	productID        uuid.UUID
}

// OpenParams describes a deposit application.
type OpenParams struct {
	TenantID         uuid.UUID
	Product          DepositProduct
	Principal        money.Money
	SavingsAccountID *uuid.UUID
	Instruction      valueobject.MaturityInstruction
	Rounding         money.RoundingPolicy
	SubmittedOn      time.Time
}

// OpenDepositAccount submits a deposit in PENDING_ACTIVATION. The product's rate terms
// are copied so later product changes do not affect the account.
func OpenDepositAccount(p OpenParams) (DepositAccount, error) {
	if p.TenantID == uuid.Nil {
		return DepositAccount{}, valueobject.NewInvalidInputError(errors.New("tenant ID is required"))
	}
	if !p.Product.IsActive() {
		return DepositAccount{}, valueobject.NewProductInactiveError(p.Product.ID().String())
	}
	if p.Principal.Currency().Code() != p.Product.Currency().Code() {
		return DepositAccount{}, &money.CurrencyMismatchError{
			Op: "open", Left: p.Principal.Currency().Code(), Right: p.Product.Currency().Code(),
		}
	}
	if !p.Principal.IsPositive() {
		return DepositAccount{}, valueobject.NewInvalidInputError(errors.New("principal must be positive"))
	}
	if p.Instruction == valueobject.InstructionTransferToSavings && p.SavingsAccountID == nil {
		return DepositAccount{}, valueobject.NewInvalidInputError(errors.New("transfer to savings requires a savings account"))
	}
	rounding := p.Rounding
	if rounding.Mode == "" {
		rounding = money.DefaultRoundingPolicy()
	}

	// Amounts carry the product's currency scale.
	cur := p.Product.Currency()
	a := DepositAccount{
		id:               uuid.New(),
		tenantID:         p.TenantID,
		productID:        p.Product.ID(),
		savingsAccountID: p.SavingsAccountID,
		principal:        money.New(p.Principal.Amount(), cur),
		accruedInterest:  money.Zero(cur),
		postedInterest:   money.Zero(cur),
		rounding:         rounding,
		terms:            p.Product.Terms(),
		instruction:      p.Instruction,
		status:           valueobject.StatusPendingActivation,
		submittedOn:      p.SubmittedOn,
		version:          1,
		createdAt:        p.SubmittedOn,
		updatedAt:        p.SubmittedOn,
	}
	a.Record(event.NewDepositOpened(a.id.String(), a.tenantID.String(), a.productID.String(),
		a.principal.Amount(), cur.Code(), a.instruction.String()))
	return a, nil
}

// AccountSnapshot is the persisted form of an account.
type AccountSnapshot struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	ProductID        uuid.UUID
	SavingsAccountID *uuid.UUID
	Principal        money.Money
	AccruedInterest  money.Money
	PostedInterest   money.Money
	Rounding         money.RoundingPolicy
	Terms            DepositTerms
	Instruction      valueobject.MaturityInstruction
	Status           valueobject.AccountStatus
	SubmittedOn      time.Time
	ActivatedOn      *time.Time
	MaturityDate     *time.Time
	LastAccrualDate  *time.Time
	ClosedOn         *time.Time
	Period           int
	Version          int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ReconstructAccount recreates an account from persistence (no validation, no events).
func ReconstructAccount(s AccountSnapshot) DepositAccount {
	return DepositAccount{
		id:               s.ID,
		tenantID:         s.TenantID,
		productID:        s.ProductID,
		savingsAccountID: s.SavingsAccountID,
		principal:        s.Principal,
		accruedInterest:  s.AccruedInterest,
		postedInterest:   s.PostedInterest,
		rounding:         s.Rounding,
		terms:            s.Terms,
		instruction:      s.Instruction,
		status:           s.Status,
		submittedOn:      s.SubmittedOn,
		activatedOn:      s.ActivatedOn,
		maturityDate:     s.MaturityDate,
		lastAccrualDate:  s.LastAccrualDate,
		closedOn:         s.ClosedOn,
		period:           s.Period,
		version:          s.Version,
		createdAt:        s.CreatedAt,
		updatedAt:        s.UpdatedAt,
	}
}

// Activate starts the first term on the date funds were received.
func (a DepositAccount) Activate(on time.Time) (DepositAccount, error) {
	if a.status != valueobject.StatusPendingActivation {
		return DepositAccount{}, valueobject.NewInvalidTransitionError(a.status, valueobject.StatusActive)
	}
	next := a.copy(on)
	next.startTerm(dateOf(on))
	next.status = valueobject.StatusActive
	next.Record(event.NewDepositActivated(a.id.String(), a.tenantID.String(), *next.activatedOn, *next.maturityDate))
	return next, nil
}

// AccrueInterest accrues daily simple interest on principal plus posted interest from
// the last accrual up to asOf, capped at maturity. It returns the amount accrued.
func (a DepositAccount) AccrueInterest(asOf time.Time) (DepositAccount, money.Money, error) {
	zero := money.Zero(a.principal.Currency())
	if a.status != valueobject.StatusActive {
		return DepositAccount{}, zero, valueobject.NewInvalidOperationError("accrue interest on", a.status)
	}
	asOf = dateOf(asOf)
	if asOf.Before(*a.lastAccrualDate) {
		return DepositAccount{}, zero, valueobject.NewAccrualBackdatedError(asOf, *a.lastAccrualDate)
	}
	end := asOf
	if end.After(*a.maturityDate) {
		end = *a.maturityDate
	}
	days := daysBetween(*a.lastAccrualDate, end)
	if days <= 0 {
		return a, zero, nil
	}

	base, err := a.principal.Add(a.postedInterest)
	if err != nil {
		return DepositAccount{}, zero, err
	}
	amount := a.interestFor(base.Amount(), a.terms.AnnualRate(), days)
	interest := money.New(amount, a.principal.Currency())

	next := a.copy(asOf)
	if next.accruedInterest, err = a.accruedInterest.Add(interest); err != nil {
		return DepositAccount{}, zero, err
	}
	next.lastAccrualDate = &end
	next.Record(event.NewInterestAccrued(a.id.String(), a.tenantID.String(), amount,
		interest.Currency().Code(), days, end))
	return next, interest, nil
}

// PostInterest credits accrued interest, rounded to the currency, to the deposit.
// Nothing is posted when the rounded amount is zero.
func (a DepositAccount) PostInterest(on time.Time) (DepositAccount, money.Money, error) {
	zero := money.Zero(a.principal.Currency())
	if a.status != valueobject.StatusActive && a.status != valueobject.StatusMatured {
		return DepositAccount{}, zero, valueobject.NewInvalidOperationError("post interest on", a.status)
	}
	amount := a.accruedInterest.Round(a.rounding)
	if amount.IsZero() {
		return a, zero, nil
	}
	next := a.copy(on)
	var err error
	if next.postedInterest, err = a.postedInterest.Add(amount); err != nil {
		return DepositAccount{}, zero, err
	}
	next.accruedInterest = zero
	next.Record(event.NewInterestPosted(a.id.String(), a.tenantID.String(), amount.Amount(),
		amount.Currency().Code(), dateOf(on)))
	return next, amount, nil
}

// Mature accrues and posts interest up to the maturity date and moves the account to
// MATURED. It fails before the maturity date.
func (a DepositAccount) Mature(on time.Time) (DepositAccount, error) {
	if a.status != valueobject.StatusActive {
		return DepositAccount{}, valueobject.NewInvalidTransitionError(a.status, valueobject.StatusMatured)
	}
	if dateOf(on).Before(*a.maturityDate) {
		return DepositAccount{}, valueobject.NewNotYetMaturedError(*a.maturityDate, on)
	}
	accrued, _, err := a.AccrueInterest(*a.maturityDate)
	if err != nil {
		return DepositAccount{}, err
	}
	posted, _, err := accrued.PostInterest(on)
	if err != nil {
		return DepositAccount{}, err
	}
	next := posted.copy(on)
	next.status = valueobject.StatusMatured
	amount := next.MaturityAmount()
	next.Record(event.NewDepositMatured(a.id.String(), a.tenantID.String(), amount.Amount(),
		amount.Currency().Code(), *a.maturityDate))
	return next, nil
}

// MaturityOutcome is what processing a matured deposit paid out.
type MaturityOutcome struct {
	Payout            money.Money
	RolledOver        bool
	TransferToSavings bool
	Destination       *uuid.UUID
}

// ProcessMaturity applies the maturity instruction to a MATURED account: it pays out and
// closes, or starts a new term on the old maturity date.
func (a DepositAccount) ProcessMaturity(on time.Time) (DepositAccount, MaturityOutcome, error) {
	if a.status != valueobject.StatusMatured {
		return DepositAccount{}, MaturityOutcome{}, valueobject.NewInvalidOperationError("process maturity of", a.status)
	}
	if a.instruction.RollsOver() {
		return a.rollover(on)
	}
	return a.closeOnMaturity(on, a.instruction == valueobject.InstructionTransferToSavings)
}

// CloseOnMaturity pays out a MATURED account regardless of its instruction.
func (a DepositAccount) CloseOnMaturity(on time.Time) (DepositAccount, MaturityOutcome, error) {
	if a.status != valueobject.StatusMatured {
		return DepositAccount{}, MaturityOutcome{}, valueobject.NewInvalidTransitionError(a.status, valueobject.StatusClosed)
	}
	return a.closeOnMaturity(on, false)
}

func (a DepositAccount) closeOnMaturity(on time.Time, transfer bool) (DepositAccount, MaturityOutcome, error) {
	payout := a.MaturityAmount()
	next := a.copy(on)
	next.status = valueobject.StatusClosed
	closedOn := dateOf(on)
	next.closedOn = &closedOn

	outcome := MaturityOutcome{Payout: payout, TransferToSavings: transfer}
	detail := event.ClosedDetail{
		Payout:            payout.Amount(),
		Currency:          payout.Currency().Code(),
		ForfeitedInterest: decimal.Zero,
		TransferToSavings: transfer,
		ClosedOn:          closedOn,
	}
	if transfer {
		outcome.Destination = a.savingsAccountID
		detail.DestinationAccount = a.savingsAccountID.String()
	}
	next.Record(event.NewDepositClosed(a.id.String(), a.tenantID.String(), detail))
	return next, outcome, nil
}

func (a DepositAccount) rollover(on time.Time) (DepositAccount, MaturityOutcome, error) {
	zero := money.Zero(a.principal.Currency())
	next := a.copy(on)
	outcome := MaturityOutcome{RolledOver: true, Payout: zero}

	if a.instruction == valueobject.InstructionReinvestPrincipalAndInterest {
		next.principal = a.MaturityAmount()
	} else {
		outcome.Payout = a.postedInterest
	}
	next.postedInterest = zero
	next.accruedInterest = zero
	next.startTerm(*a.maturityDate)
	next.period = a.period + 1
	next.status = valueobject.StatusActive
	next.Record(event.NewDepositRolledOver(a.id.String(), a.tenantID.String(), next.principal.Amount(),
		outcome.Payout.Amount(), zero.Currency().Code(), next.period, *next.maturityDate))
	return next, outcome, nil
}

// PrematureClosure describes the payout of an account closed before maturity.
type PrematureClosure struct {
	Payout            money.Money
	Interest          money.Money
	ForfeitedInterest money.Money
}

// PrematureClose closes an ACTIVE account before maturity. Interest for the elapsed part
// of the current term is recomputed at the annual rate less the pre-closure penalty and
// replaces whatever was accrued or posted during the term.
func (a DepositAccount) PrematureClose(on time.Time) (DepositAccount, PrematureClosure, error) {
	if a.status != valueobject.StatusActive {
		return DepositAccount{}, PrematureClosure{}, valueobject.NewInvalidTransitionError(a.status, valueobject.StatusPrematureClosed)
	}
	on = dateOf(on)
	if !on.Before(*a.maturityDate) {
		return DepositAccount{}, PrematureClosure{}, valueobject.NewInvalidOperationError("prematurely close a due", a.status)
	}
	if on.Before(*a.activatedOn) {
		return DepositAccount{}, PrematureClosure{}, valueobject.NewAccrualBackdatedError(on, *a.activatedOn)
	}

	// Interest the contract would have paid up to on.
	accrued, _, err := a.AccrueInterest(on)
	if err != nil {
		return DepositAccount{}, PrematureClosure{}, err
	}
	contractual, err := accrued.postedInterest.Add(accrued.accruedInterest.Round(a.rounding))
	if err != nil {
		return DepositAccount{}, PrematureClosure{}, err
	}

	days := daysBetween(*a.activatedOn, on)
	cur := a.principal.Currency()
	recomputed := money.New(a.interestFor(a.principal.Amount(), a.terms.PenalizedRate(), days), cur).Round(a.rounding)

	forfeited, err := contractual.Subtract(recomputed)
	if err != nil {
		return DepositAccount{}, PrematureClosure{}, err
	}
	if forfeited.IsNegative() {
		forfeited = money.Zero(cur)
	}
	payout, err := a.principal.Add(recomputed)
	if err != nil {
		return DepositAccount{}, PrematureClosure{}, err
	}

	next := accrued.copy(on)
	next.postedInterest = recomputed
	next.accruedInterest = money.Zero(cur)
	next.status = valueobject.StatusPrematureClosed
	next.closedOn = &on
	next.Record(event.NewDepositClosed(a.id.String(), a.tenantID.String(), event.ClosedDetail{
		Payout:            payout.Amount(),
		Currency:          cur.Code(),
		Premature:         true,
		ForfeitedInterest: forfeited.Amount(),
		ClosedOn:          on,
	}))
	return next, PrematureClosure{Payout: payout, Interest: recomputed, ForfeitedInterest: forfeited}, nil
}

// MaturityAmount is principal plus posted interest.
func (a DepositAccount) MaturityAmount() money.Money {
	total, _ := a.principal.Add(a.postedInterest) //nolint:errcheck // same currency by construction
	return total
}

// interestFor is base × rate × days / 365 at the policy's significant digits.
func (a DepositAccount) interestFor(base, rate decimal.Decimal, days int) decimal.Decimal {
	factor := a.rounding.Div(rate.Mul(decimal.NewFromInt(int64(days))), daysInYear)
	return a.rounding.Mul(base, factor)
}

func (a *DepositAccount) startTerm(start time.Time) {
	maturity := start.AddDate(0, a.terms.TermMonths, 0)
	a.activatedOn = &start
	a.lastAccrualDate = &start
	a.maturityDate = &maturity
	if a.period == 0 {
		a.period = 1
	}
}

// copy returns a with its own event slice so the receiver is left untouched.
func (a DepositAccount) copy(now time.Time) DepositAccount {
	next := a
	next.EventCollector = events.EventCollector{}
	for _, e := range a.Events() {
		next.Record(e)
	}
	next.updatedAt = now
	return next
}

// Accessors
func (a DepositAccount) ID() uuid.UUID                                { return a.id }
func (a DepositAccount) TenantID() uuid.UUID                          { return a.tenantID }
func (a DepositAccount) ProductID() uuid.UUID                         { return a.productID }
func (a DepositAccount) SavingsAccountID() *uuid.UUID                 { return a.savingsAccountID }
func (a DepositAccount) Principal() money.Money                       { return a.principal }
func (a DepositAccount) AccruedInterest() money.Money                 { return a.accruedInterest }
func (a DepositAccount) PostedInterest() money.Money                  { return a.postedInterest }
func (a DepositAccount) Rounding() money.RoundingPolicy               { return a.rounding }
func (a DepositAccount) Terms() DepositTerms                          { return a.terms }
func (a DepositAccount) Instruction() valueobject.MaturityInstruction { return a.instruction }
func (a DepositAccount) Status() valueobject.AccountStatus            { return a.status }
func (a DepositAccount) SubmittedOn() time.Time                       { return a.submittedOn }
func (a DepositAccount) ActivatedOn() *time.Time                      { return a.activatedOn }
func (a DepositAccount) MaturityDate() *time.Time                     { return a.maturityDate }
func (a DepositAccount) LastAccrualDate() *time.Time                  { return a.lastAccrualDate }
func (a DepositAccount) ClosedOn() *time.Time                         { return a.closedOn }
func (a DepositAccount) Period() int                                  { return a.period }
func (a DepositAccount) Version() int                                 { return a.version }
func (a DepositAccount) CreatedAt() time.Time                         { return a.createdAt }
func (a DepositAccount) UpdatedAt() time.Time                         { return a.updatedAt }

// daysBetween calculates the number of calendar days between two times.
func daysBetween(from, to time.Time) int {
	return int(dateOf(to).Sub(dateOf(from)).Hours() / 24)
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
