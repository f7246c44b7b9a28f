package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/services/deposit-service/internal/application/dto"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/port"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/service"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/valueobject"
)

// AccrueInterest runs the daily close for all active deposits of a tenant. An account
// that fails is reported and skipped; the rest of the batch still runs.
type AccrueInterest struct {
	accountRepo port.DepositAccountRepository
	engine      *service.AccrualEngine
	logger      *slog.Logger
}

func NewAccrueInterest(
	accountRepo port.DepositAccountRepository,
	engine *service.AccrualEngine,
	logger *slog.Logger,
) *AccrueInterest {
	return &AccrueInterest{
		accountRepo: accountRepo,
		engine:      engine,
		logger:      logger,
	}
}

func (uc *AccrueInterest) Execute(ctx context.Context, req dto.AccrueInterestRequest) (dto.AccrueInterestResponse, error) {
	accounts, err := uc.accountRepo.FindByTenantAndStatus(ctx, req.TenantID, valueobject.StatusActive)
	if err != nil {
		return dto.AccrueInterestResponse{}, fmt.Errorf("failed to fetch active accounts: %w", err)
	}

	resp := dto.AccrueInterestResponse{
		TotalAccrued: map[string]decimal.Decimal{},
		TotalPosted:  map[string]decimal.Decimal{},
	}
	for _, account := range accounts {
		if err := ctx.Err(); err != nil {
			return resp, err
		}

		step, err := uc.engine.Advance(account, req.AsOf)
		if err == nil {
			err = uc.accountRepo.Save(ctx, step.Account)
		}
		if err != nil {
			resp.Failures = append(resp.Failures, uc.failure(account.ID(), err))
			continue
		}

		code := step.Accrued.Currency().Code()
		resp.TotalAccrued[code] = resp.TotalAccrued[code].Add(step.Accrued.Amount())
		resp.TotalPosted[code] = resp.TotalPosted[code].Add(step.Posted.Amount())
		resp.AccountsProcessed++
		if step.Matured {
			resp.AccountsMatured++
		}
	}

	uc.logger.InfoContext(ctx, "daily accrual complete",
		"tenant_id", req.TenantID,
		"as_of", req.AsOf.Format("2006-01-02"),
		"processed", resp.AccountsProcessed,
		"matured", resp.AccountsMatured,
		"failed", len(resp.Failures),
	)
	return resp, nil
}

func (uc *AccrueInterest) failure(id uuid.UUID, err error) dto.AccountFailure {
	uc.logger.Warn("deposit account skipped", "account_id", id, "error", err)
	return dto.AccountFailure{AccountID: id, Code: valueobject.ErrorCode(err), Error: err.Error()}
}
