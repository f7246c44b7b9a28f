package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/pkg/money"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/valueobject"
)

var bpsPerUnit = decimal.NewFromInt(10000)

// DepositProduct is the aggregate root for term deposit product definitions.
type DepositProduct struct {
	createdAt            time.Time
	updatedAt            time.Time
	name                 string
	currency             money.Currency
	annualRateBps        int
	termMonths           int
	preClosurePenaltyBps int
	version              int
	id                   uuid.UUID
	tenantID             uuid.UUID
	isActive             bool
}

// ProductParams are the terms of a new product.
type ProductParams struct {
	TenantID             uuid.UUID
	Name                 string
	Currency             money.Currency
	AnnualRateBps        int
	TermMonths           int
	PreClosurePenaltyBps int
}

// NewDepositProduct creates a new DepositProduct with validation.
func NewDepositProduct(p ProductParams, now time.Time) (DepositProduct, error) {
	var errs []error
	if p.TenantID == uuid.Nil {
		errs = append(errs, errors.New("tenant ID is required"))
	}
	if p.Name == "" {
		errs = append(errs, errors.New("product name is required"))
	}
	if p.Currency.Code() == "" {
		errs = append(errs, errors.New("currency is required"))
	}
	if p.AnnualRateBps < 0 {
		errs = append(errs, errors.New("annual rate must not be negative"))
	}
	if p.TermMonths <= 0 {
		errs = append(errs, errors.New("term months must be positive"))
	}
	if p.PreClosurePenaltyBps < 0 {
		errs = append(errs, errors.New("pre-closure penalty must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return DepositProduct{}, valueobject.NewInvalidInputError(err)
	}

	return DepositProduct{
		id:                   uuid.New(),
		tenantID:             p.TenantID,
		name:                 p.Name,
		currency:             p.Currency,
		annualRateBps:        p.AnnualRateBps,
		termMonths:           p.TermMonths,
		preClosurePenaltyBps: p.PreClosurePenaltyBps,
		isActive:             true,
		version:              1,
		createdAt:            now,
		updatedAt:            now,
	}, nil
}

// ProductSnapshot is the persisted form of a product.
type ProductSnapshot struct {
	ID                   uuid.UUID
	TenantID             uuid.UUID
	Name                 string
	Currency             money.Currency
	AnnualRateBps        int
	TermMonths           int
	PreClosurePenaltyBps int
	IsActive             bool
	Version              int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ReconstructProduct recreates a DepositProduct from persistence (no validation).
func ReconstructProduct(s ProductSnapshot) DepositProduct {
	return DepositProduct{
		id:                   s.ID,
		tenantID:             s.TenantID,
		name:                 s.Name,
		currency:             s.Currency,
		annualRateBps:        s.AnnualRateBps,
		termMonths:           s.TermMonths,
		preClosurePenaltyBps: s.PreClosurePenaltyBps,
		isActive:             s.IsActive,
		version:              s.Version,
		createdAt:            s.CreatedAt,
		updatedAt:            s.UpdatedAt,
	}
}

// Deactivate stops the product from taking new deposits. Existing accounts keep the
// terms they were opened with.
func (p DepositProduct) Deactivate(now time.Time) (DepositProduct, error) {
	if !p.isActive {
		return DepositProduct{}, valueobject.NewProductInactiveError(p.id.String())
	}
	deactivated := p
	deactivated.isActive = false
	deactivated.updatedAt = now
	return deactivated, nil
}

// Terms returns the rate terms an account opened today locks in.
func (p DepositProduct) Terms() DepositTerms {
	return DepositTerms{
		AnnualRateBps:        p.annualRateBps,
		TermMonths:           p.termMonths,
		PreClosurePenaltyBps: p.preClosurePenaltyBps,
	}
}

// Accessors
func (p DepositProduct) ID() uuid.UUID             { return p.id }
func (p DepositProduct) TenantID() uuid.UUID       { return p.tenantID }
func (p DepositProduct) Name() string              { return p.name }
func (p DepositProduct) Currency() money.Currency  { return p.currency }
func (p DepositProduct) AnnualRateBps() int        { return p.annualRateBps }
func (p DepositProduct) TermMonths() int           { return p.termMonths }
func (p DepositProduct) PreClosurePenaltyBps() int { return p.preClosurePenaltyBps }
func (p DepositProduct) IsActive() bool            { return p.isActive }
func (p DepositProduct) Version() int              { return p.version }
func (p DepositProduct) CreatedAt() time.Time      { return p.createdAt }
func (p DepositProduct) UpdatedAt() time.Time      { return p.updatedAt }

// DepositTerms are the rate terms copied onto an account when it opens.
type DepositTerms struct {
	AnnualRateBps        int
	TermMonths           int
	PreClosurePenaltyBps int
}

// AnnualRate is the nominal rate as a fraction.
func (t DepositTerms) AnnualRate() decimal.Decimal {
	return decimal.NewFromInt(int64(t.AnnualRateBps)).Div(bpsPerUnit)
}

// PenalizedRate is the rate paid on premature closure, never below zero.
func (t DepositTerms) PenalizedRate() decimal.Decimal {
	bps := t.AnnualRateBps - t.PreClosurePenaltyBps
	if bps < 0 {
		bps = 0
	}
	return decimal.NewFromInt(int64(bps)).Div(bpsPerUnit)
}
