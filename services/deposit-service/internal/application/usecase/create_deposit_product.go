package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/bibbank/bib/pkg/money"
	"github.com/bibbank/bib/services/deposit-service/internal/application/dto"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/model"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/port"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/valueobject"
)

// CreateDepositProduct handles the creation of new deposit products.
type CreateDepositProduct struct {
	productRepo port.DepositProductRepository
	now         func() time.Time
}

func NewCreateDepositProduct(productRepo port.DepositProductRepository, now func() time.Time) *CreateDepositProduct {
	return &CreateDepositProduct{productRepo: productRepo, now: now}
}

func (uc *CreateDepositProduct) Execute(ctx context.Context, req dto.CreateDepositProductRequest) (dto.DepositProductResponse, error) {
	currency, err := money.NewCurrency(req.Currency)
	if err != nil {
		return dto.DepositProductResponse{}, fmt.Errorf("failed to create deposit product: %w",
			valueobject.NewInvalidInputError(err))
	}

	product, err := model.NewDepositProduct(model.ProductParams{
		TenantID:             req.TenantID,
		Name:                 req.Name,
		Currency:             currency,
		AnnualRateBps:        req.AnnualRateBps,
		TermMonths:           req.TermMonths,
		PreClosurePenaltyBps: req.PreClosurePenaltyBps,
	}, uc.now())
	if err != nil {
		return dto.DepositProductResponse{}, fmt.Errorf("failed to create deposit product: %w", err)
	}

	if err := uc.productRepo.Save(ctx, product); err != nil {
		return dto.DepositProductResponse{}, fmt.Errorf("failed to save deposit product: %w", err)
	}

	return toDepositProductResponse(product), nil
}

// DeactivateDepositProduct withdraws a product from sale.
type DeactivateDepositProduct struct {
	productRepo port.DepositProductRepository
	now         func() time.Time
}

func NewDeactivateDepositProduct(productRepo port.DepositProductRepository, now func() time.Time) *DeactivateDepositProduct {
	return &DeactivateDepositProduct{productRepo: productRepo, now: now}
}

func (uc *DeactivateDepositProduct) Execute(ctx context.Context, req dto.DeactivateDepositProductRequest) (dto.DepositProductResponse, error) {
	product, err := uc.productRepo.FindByID(ctx, req.ProductID)
	if err != nil {
		return dto.DepositProductResponse{}, fmt.Errorf("failed to find deposit product: %w", err)
	}
	deactivated, err := product.Deactivate(uc.now())
	if err != nil {
		return dto.DepositProductResponse{}, err
	}
	if err := uc.productRepo.Save(ctx, deactivated); err != nil {
		return dto.DepositProductResponse{}, fmt.Errorf("failed to save deposit product: %w", err)
	}
	return toDepositProductResponse(deactivated), nil
}

func toDepositProductResponse(p model.DepositProduct) dto.DepositProductResponse {
	return dto.DepositProductResponse{
		ID:                   p.ID(),
		TenantID:             p.TenantID(),
		Name:                 p.Name(),
		Currency:             p.Currency().Code(),
		AnnualRateBps:        p.AnnualRateBps(),
		TermMonths:           p.TermMonths(),
		PreClosurePenaltyBps: p.PreClosurePenaltyBps(),
		IsActive:             p.IsActive(),
		Version:              p.Version(),
		CreatedAt:            p.CreatedAt(),
		UpdatedAt:            p.UpdatedAt(),
	}
}
