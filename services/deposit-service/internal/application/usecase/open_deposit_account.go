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

// OpenDepositAccount handles deposit applications.
type OpenDepositAccount struct {
	productRepo port.DepositProductRepository
	accountRepo port.DepositAccountRepository
	rounding    money.RoundingPolicy
	now         func() time.Time
}

func NewOpenDepositAccount(
	productRepo port.DepositProductRepository,
	accountRepo port.DepositAccountRepository,
	rounding money.RoundingPolicy,
	now func() time.Time,
) *OpenDepositAccount {
	return &OpenDepositAccount{
		productRepo: productRepo,
		accountRepo: accountRepo,
		rounding:    rounding,
		now:         now,
	}
}

func (uc *OpenDepositAccount) Execute(ctx context.Context, req dto.OpenDepositAccountRequest) (dto.DepositAccountResponse, error) {
	product, err := uc.productRepo.FindByID(ctx, req.ProductID)
	if err != nil {
		return dto.DepositAccountResponse{}, fmt.Errorf("failed to find deposit product: %w", err)
	}
	instruction, err := valueobject.ParseMaturityInstruction(req.MaturityInstruction)
	if err != nil {
		return dto.DepositAccountResponse{}, valueobject.NewInvalidInputError(err)
	}
	currency := product.Currency()
	if req.Currency != "" {
		if currency, err = money.NewCurrency(req.Currency); err != nil {
			return dto.DepositAccountResponse{}, valueobject.NewInvalidInputError(err)
		}
	}

	account, err := model.OpenDepositAccount(model.OpenParams{
		TenantID:         req.TenantID,
		Product:          product,
		Principal:        money.New(req.Principal, currency),
		SavingsAccountID: req.SavingsAccountID,
		Instruction:      instruction,
		Rounding:         uc.rounding,
		SubmittedOn:      uc.now(),
	})
	if err != nil {
		return dto.DepositAccountResponse{}, fmt.Errorf("failed to open deposit account: %w", err)
	}

	if err := uc.accountRepo.Save(ctx, account); err != nil {
		return dto.DepositAccountResponse{}, fmt.Errorf("failed to save deposit account: %w", err)
	}
	return toAccountResponse(account), nil
}

// ActivateDepositAccount starts the term once funds have arrived.
type ActivateDepositAccount struct {
	accountRepo port.DepositAccountRepository
}

func NewActivateDepositAccount(accountRepo port.DepositAccountRepository) *ActivateDepositAccount {
	return &ActivateDepositAccount{accountRepo: accountRepo}
}

func (uc *ActivateDepositAccount) Execute(ctx context.Context, req dto.ActivateDepositAccountRequest) (dto.DepositAccountResponse, error) {
	account, err := uc.accountRepo.FindByID(ctx, req.AccountID)
	if err != nil {
		return dto.DepositAccountResponse{}, fmt.Errorf("failed to find deposit account: %w", err)
	}
	activated, err := account.Activate(req.ActivatedOn)
	if err != nil {
		return dto.DepositAccountResponse{}, err
	}
	if err := uc.accountRepo.Save(ctx, activated); err != nil {
		return dto.DepositAccountResponse{}, fmt.Errorf("failed to save deposit account: %w", err)
	}
	return toAccountResponse(activated), nil
}

// GetDepositAccount handles fetching a single deposit account by ID.
type GetDepositAccount struct {
	accountRepo port.DepositAccountRepository
}

func NewGetDepositAccount(accountRepo port.DepositAccountRepository) *GetDepositAccount {
	return &GetDepositAccount{accountRepo: accountRepo}
}

func (uc *GetDepositAccount) Execute(ctx context.Context, req dto.GetDepositAccountRequest) (dto.DepositAccountResponse, error) {
	account, err := uc.accountRepo.FindByID(ctx, req.AccountID)
	if err != nil {
		return dto.DepositAccountResponse{}, fmt.Errorf("failed to find deposit account: %w", err)
	}
	return toAccountResponse(account), nil
}

func toAccountResponse(a model.DepositAccount) dto.DepositAccountResponse {
	return dto.DepositAccountResponse{
		ID:                  a.ID(),
		TenantID:            a.TenantID(),
		ProductID:           a.ProductID(),
		SavingsAccountID:    a.SavingsAccountID(),
		Principal:           a.Principal().Amount(),
		Currency:            a.Principal().Currency().Code(),
		AccruedInterest:     a.AccruedInterest().Amount(),
		PostedInterest:      a.PostedInterest().Amount(),
		AnnualRateBps:       a.Terms().AnnualRateBps,
		TermMonths:          a.Terms().TermMonths,
		MaturityInstruction: a.Instruction().String(),
		Status:              a.Status().String(),
		Period:              a.Period(),
		SubmittedOn:         a.SubmittedOn(),
		ActivatedOn:         a.ActivatedOn(),
		MaturityDate:        a.MaturityDate(),
		LastAccrualDate:     a.LastAccrualDate(),
		ClosedOn:            a.ClosedOn(),
		Version:             a.Version(),
		CreatedAt:           a.CreatedAt(),
		UpdatedAt:           a.UpdatedAt(),
	}
}
