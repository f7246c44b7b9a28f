package usecase

import (
	"context"
	"fmt"

	"github.com/bibbank/bib/services/lending-service/internal/application/dto"
	"github.com/bibbank/bib/services/lending-service/internal/domain/port"
)

// GetLoanUseCase retrieves a loan by ID.
type GetLoanUseCase struct {
	loanRepo port.LoanRepository
}

// NewGetLoanUseCase wires dependencies.
func NewGetLoanUseCase(loanRepo port.LoanRepository) *GetLoanUseCase {
	return &GetLoanUseCase{loanRepo: loanRepo}
}

// Execute returns a loan response for the given ID.
func (uc *GetLoanUseCase) Execute(
	ctx context.Context,
	req dto.GetLoanRequest,
) (dto.LoanResponse, error) {
	loan, err := uc.loanRepo.FindByID(ctx, req.TenantID, req.LoanID)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("find loan: %w", err)
	}
	return toLoanResponse(loan), nil
}

// GetRestructureRequestUseCase retrieves a restructure request by ID.
type GetRestructureRequestUseCase struct {
	requestRepo port.RestructureRequestRepository
}

// NewGetRestructureRequestUseCase wires dependencies.
func NewGetRestructureRequestUseCase(requestRepo port.RestructureRequestRepository) *GetRestructureRequestUseCase {
	return &GetRestructureRequestUseCase{requestRepo: requestRepo}
}

// Execute returns the restructure request with its variations.
func (uc *GetRestructureRequestUseCase) Execute(
	ctx context.Context,
	req dto.GetRestructureRequest,
) (dto.RestructureRequestResponse, error) {
	r, err := uc.requestRepo.FindByID(ctx, req.TenantID, req.RequestID)
	if err != nil {
		return dto.RestructureRequestResponse{}, fmt.Errorf("find restructure request: %w", err)
	}
	return toRestructureResponse(r), nil
}
