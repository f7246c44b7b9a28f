package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bibbank/bib/services/deposit-service/internal/application/dto"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/model"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/port"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/valueobject"
)

// ProcessMaturity applies each matured deposit's maturity instruction.
type ProcessMaturity struct {
	accountRepo port.DepositAccountRepository
	logger      *slog.Logger
}

func NewProcessMaturity(accountRepo port.DepositAccountRepository, logger *slog.Logger) *ProcessMaturity {
	return &ProcessMaturity{accountRepo: accountRepo, logger: logger}
}

func (uc *ProcessMaturity) Execute(ctx context.Context, req dto.ProcessMaturityRequest) (dto.ProcessMaturityResponse, error) {
	accounts, err := uc.accountRepo.FindByTenantAndStatus(ctx, req.TenantID, valueobject.StatusMatured)
	if err != nil {
		return dto.ProcessMaturityResponse{}, fmt.Errorf("failed to fetch matured accounts: %w", err)
	}

	resp := dto.ProcessMaturityResponse{Payouts: []dto.MaturityPayout{}}
	for _, account := range accounts {
		if err := ctx.Err(); err != nil {
			return resp, err
		}
		next, outcome, err := account.ProcessMaturity(req.ProcessedOn)
		if err == nil {
			err = uc.accountRepo.Save(ctx, next)
		}
		if err != nil {
			uc.logger.Warn("maturity processing skipped account", "account_id", account.ID(), "error", err)
			resp.Failures = append(resp.Failures, dto.AccountFailure{
				AccountID: account.ID(), Code: valueobject.ErrorCode(err), Error: err.Error(),
			})
			continue
		}
		resp.Payouts = append(resp.Payouts, toMaturityPayout(next, outcome))
	}

	uc.logger.InfoContext(ctx, "maturity processing complete",
		"tenant_id", req.TenantID,
		"processed", len(resp.Payouts),
		"failed", len(resp.Failures),
	)
	return resp, nil
}

// CloseOnMaturity pays out one matured deposit instead of following its instruction.
type CloseOnMaturity struct {
	accountRepo port.DepositAccountRepository
}

func NewCloseOnMaturity(accountRepo port.DepositAccountRepository) *CloseOnMaturity {
	return &CloseOnMaturity{accountRepo: accountRepo}
}

func (uc *CloseOnMaturity) Execute(ctx context.Context, req dto.CloseOnMaturityRequest) (dto.MaturityPayout, error) {
	account, err := uc.accountRepo.FindByID(ctx, req.AccountID)
	if err != nil {
		return dto.MaturityPayout{}, fmt.Errorf("failed to find deposit account: %w", err)
	}
	closed, outcome, err := account.CloseOnMaturity(req.ClosedOn)
	if err != nil {
		return dto.MaturityPayout{}, err
	}
	if err := uc.accountRepo.Save(ctx, closed); err != nil {
		return dto.MaturityPayout{}, fmt.Errorf("failed to save deposit account: %w", err)
	}
	return toMaturityPayout(closed, outcome), nil
}

// PrematureClose closes an active deposit before maturity at the penalized rate.
type PrematureClose struct {
	accountRepo port.DepositAccountRepository
	now         func() time.Time
}

func NewPrematureClose(accountRepo port.DepositAccountRepository, now func() time.Time) *PrematureClose {
	return &PrematureClose{accountRepo: accountRepo, now: now}
}

func (uc *PrematureClose) Execute(ctx context.Context, req dto.PrematureCloseRequest) (dto.PrematureCloseResponse, error) {
	account, err := uc.accountRepo.FindByID(ctx, req.AccountID)
	if err != nil {
		return dto.PrematureCloseResponse{}, fmt.Errorf("failed to find deposit account: %w", err)
	}
	on := req.ClosedOn
	if on.IsZero() {
		on = uc.now()
	}
	closed, res, err := account.PrematureClose(on)
	if err != nil {
		return dto.PrematureCloseResponse{}, err
	}
	if err := uc.accountRepo.Save(ctx, closed); err != nil {
		return dto.PrematureCloseResponse{}, fmt.Errorf("failed to save deposit account: %w", err)
	}
	return dto.PrematureCloseResponse{
		Account:           toAccountResponse(closed),
		Payout:            res.Payout.Amount(),
		Interest:          res.Interest.Amount(),
		ForfeitedInterest: res.ForfeitedInterest.Amount(),
	}, nil
}

func toMaturityPayout(a model.DepositAccount, o model.MaturityOutcome) dto.MaturityPayout {
	return dto.MaturityPayout{
		AccountID:         a.ID(),
		Payout:            o.Payout.Amount(),
		Currency:          o.Payout.Currency().Code(),
		RolledOver:        o.RolledOver,
		TransferToSavings: o.TransferToSavings,
		DestinationID:     o.Destination,
	}
}
