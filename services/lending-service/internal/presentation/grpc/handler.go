package grpc

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bibbank/bib/pkg/money"
	"github.com/bibbank/bib/services/lending-service/internal/application/dto"
	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
)

// Executor is the shape shared by every lending use case.
type Executor[Req, Resp any] interface {
	Execute(ctx context.Context, req Req) (Resp, error)
}

// UseCases lists the use cases the handler exposes. Each one is a *usecase.XUseCase in
// production.
type UseCases struct {
	Disburse           Executor[dto.DisburseLoanRequest, dto.LoanResponse]
	GetLoan            Executor[dto.GetLoanRequest, dto.LoanResponse]
	MakePayment        Executor[dto.MakePaymentRequest, dto.PaymentResponse]
	CreateRestructure  Executor[dto.CreateRestructureRequest, dto.RestructureRequestResponse]
	GetRestructure     Executor[dto.GetRestructureRequest, dto.RestructureRequestResponse]
	PreviewRestructure Executor[dto.GetRestructureRequest, dto.ScheduleResponse]
	ApproveRestructure Executor[dto.DecideRestructureRequest, dto.ApproveRestructureResponse]
	RejectRestructure  Executor[dto.DecideRestructureRequest, dto.RestructureRequestResponse]
	PreviewLiquidation Executor[dto.LiquidationRequest, dto.ScheduleResponse]
	ConfirmLiquidation Executor[dto.LiquidationRequest, dto.LiquidationResponse]
}

// LendingHandler implements LendingServiceServer on top of the application use cases.
type LendingHandler struct {
	UnimplementedLendingServiceServer
	uc     UseCases
	logger *slog.Logger
}

// NewLendingHandler creates a new handler with all use-case dependencies.
func NewLendingHandler(uc UseCases, logger *slog.Logger) *LendingHandler {
	return &LendingHandler{uc: uc, logger: logger}
}

func (h *LendingHandler) DisburseLoan(ctx context.Context, req *dto.DisburseLoanRequest) (*dto.LoanResponse, error) {
	return call(ctx, h, "DisburseLoan", h.uc.Disburse, req)
}

func (h *LendingHandler) GetLoan(ctx context.Context, req *dto.GetLoanRequest) (*dto.LoanResponse, error) {
	return call(ctx, h, "GetLoan", h.uc.GetLoan, req)
}

func (h *LendingHandler) MakePayment(ctx context.Context, req *dto.MakePaymentRequest) (*dto.PaymentResponse, error) {
	return call(ctx, h, "MakePayment", h.uc.MakePayment, req)
}

func (h *LendingHandler) CreateRestructureRequest(ctx context.Context, req *dto.CreateRestructureRequest) (*dto.RestructureRequestResponse, error) {
	return call(ctx, h, "CreateRestructureRequest", h.uc.CreateRestructure, req)
}

func (h *LendingHandler) GetRestructureRequest(ctx context.Context, req *dto.GetRestructureRequest) (*dto.RestructureRequestResponse, error) {
	return call(ctx, h, "GetRestructureRequest", h.uc.GetRestructure, req)
}

func (h *LendingHandler) PreviewRestructure(ctx context.Context, req *dto.GetRestructureRequest) (*dto.ScheduleResponse, error) {
	return call(ctx, h, "PreviewRestructure", h.uc.PreviewRestructure, req)
}

func (h *LendingHandler) ApproveRestructureRequest(ctx context.Context, req *dto.DecideRestructureRequest) (*dto.ApproveRestructureResponse, error) {
	return call(ctx, h, "ApproveRestructureRequest", h.uc.ApproveRestructure, req)
}

func (h *LendingHandler) RejectRestructureRequest(ctx context.Context, req *dto.DecideRestructureRequest) (*dto.RestructureRequestResponse, error) {
	return call(ctx, h, "RejectRestructureRequest", h.uc.RejectRestructure, req)
}

func (h *LendingHandler) PreviewLiquidation(ctx context.Context, req *dto.LiquidationRequest) (*dto.ScheduleResponse, error) {
	return call(ctx, h, "PreviewLiquidation", h.uc.PreviewLiquidation, req)
}

func (h *LendingHandler) ConfirmLiquidation(ctx context.Context, req *dto.LiquidationRequest) (*dto.LiquidationResponse, error) {
	return call(ctx, h, "ConfirmLiquidation", h.uc.ConfirmLiquidation, req)
}

func call[Req, Resp any](ctx context.Context, h *LendingHandler, method string, uc Executor[Req, Resp], req *Req) (*Resp, error) {
	if uc == nil {
		return nil, status.Errorf(codes.Unimplemented, "method %s not implemented", method)
	}
	resp, err := uc.Execute(ctx, *req)
	if err != nil {
		st := toStatus(err)
		if st.Code() == codes.Internal {
			h.logger.ErrorContext(ctx, "lending rpc failed", "method", method, "error", err)
		}
		return nil, st.Err()
	}
	return &resp, nil
}

// toStatus maps domain errors onto gRPC codes. The domain code travels in the message so
// callers can branch on it.
func toStatus(err error) *status.Status {
	code := codes.Internal
	switch {
	case errors.Is(err, valueobject.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, valueobject.ErrDuplicateRestructureRequest),
		errors.Is(err, valueobject.ErrDataIntegrity):
		code = codes.AlreadyExists
	case errors.Is(err, valueobject.ErrConcurrentModification):
		code = codes.Aborted
	case errors.Is(err, valueobject.ErrInvalidStatusTransition),
		errors.Is(err, valueobject.ErrTemporalOrdering),
		errors.Is(err, valueobject.ErrScheduleDateIntegrity),
		errors.Is(err, valueobject.ErrLiquidationExceedsBalance),
		errors.Is(err, valueobject.ErrVariationCycle),
		errors.Is(err, valueobject.ErrScheduleTooLong):
		code = codes.FailedPrecondition
	case errors.Is(err, money.ErrCurrencyMismatch):
		code = codes.InvalidArgument
	}
	if code == codes.Internal {
		return status.New(code, "internal error")
	}
	if c := valueobject.ErrorCode(err); c != "" {
		return status.Newf(code, "%s: %s", c, err.Error())
	}
	return status.New(code, err.Error())
}
