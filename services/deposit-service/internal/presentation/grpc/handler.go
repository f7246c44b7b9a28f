package grpc

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bibbank/bib/pkg/money"
	"github.com/bibbank/bib/services/deposit-service/internal/application/dto"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/valueobject"
)

// Executor is implemented by every deposit use case.
type Executor[Req, Resp any] interface {
	Execute(ctx context.Context, req Req) (Resp, error)
}

// UseCases wires the RPCs to the application layer. A nil entry answers Unimplemented.
type UseCases struct {
	CreateProduct     Executor[dto.CreateDepositProductRequest, dto.DepositProductResponse]
	DeactivateProduct Executor[dto.DeactivateDepositProductRequest, dto.DepositProductResponse]
	OpenAccount       Executor[dto.OpenDepositAccountRequest, dto.DepositAccountResponse]
	ActivateAccount   Executor[dto.ActivateDepositAccountRequest, dto.DepositAccountResponse]
	GetAccount        Executor[dto.GetDepositAccountRequest, dto.DepositAccountResponse]
	PrematureClose    Executor[dto.PrematureCloseRequest, dto.PrematureCloseResponse]
	CloseOnMaturity   Executor[dto.CloseOnMaturityRequest, dto.MaturityPayout]
	AccrueInterest    Executor[dto.AccrueInterestRequest, dto.AccrueInterestResponse]
	ProcessMaturity   Executor[dto.ProcessMaturityRequest, dto.ProcessMaturityResponse]
}

var _ DepositServiceServer = (*DepositHandler)(nil)

// DepositHandler implements DepositServiceServer.
type DepositHandler struct {
	UnimplementedDepositServiceServer
	uc     UseCases
	logger *slog.Logger
}

func NewDepositHandler(uc UseCases, logger *slog.Logger) *DepositHandler {
	return &DepositHandler{uc: uc, logger: logger}
}

func (h *DepositHandler) CreateProduct(ctx context.Context, req *dto.CreateDepositProductRequest) (*dto.DepositProductResponse, error) {
	return invoke(ctx, h, "CreateProduct", h.uc.CreateProduct, req)
}

func (h *DepositHandler) DeactivateProduct(ctx context.Context, req *dto.DeactivateDepositProductRequest) (*dto.DepositProductResponse, error) {
	return invoke(ctx, h, "DeactivateProduct", h.uc.DeactivateProduct, req)
}

func (h *DepositHandler) OpenAccount(ctx context.Context, req *dto.OpenDepositAccountRequest) (*dto.DepositAccountResponse, error) {
	return invoke(ctx, h, "OpenAccount", h.uc.OpenAccount, req)
}

func (h *DepositHandler) ActivateAccount(ctx context.Context, req *dto.ActivateDepositAccountRequest) (*dto.DepositAccountResponse, error) {
	return invoke(ctx, h, "ActivateAccount", h.uc.ActivateAccount, req)
}

func (h *DepositHandler) GetAccount(ctx context.Context, req *dto.GetDepositAccountRequest) (*dto.DepositAccountResponse, error) {
	return invoke(ctx, h, "GetAccount", h.uc.GetAccount, req)
}

func (h *DepositHandler) PrematureClose(ctx context.Context, req *dto.PrematureCloseRequest) (*dto.PrematureCloseResponse, error) {
	return invoke(ctx, h, "PrematureClose", h.uc.PrematureClose, req)
}

func (h *DepositHandler) CloseOnMaturity(ctx context.Context, req *dto.CloseOnMaturityRequest) (*dto.MaturityPayout, error) {
	return invoke(ctx, h, "CloseOnMaturity", h.uc.CloseOnMaturity, req)
}

func (h *DepositHandler) AccrueInterest(ctx context.Context, req *dto.AccrueInterestRequest) (*dto.AccrueInterestResponse, error) {
	return invoke(ctx, h, "AccrueInterest", h.uc.AccrueInterest, req)
}

func (h *DepositHandler) ProcessMaturity(ctx context.Context, req *dto.ProcessMaturityRequest) (*dto.ProcessMaturityResponse, error) {
	return invoke(ctx, h, "ProcessMaturity", h.uc.ProcessMaturity, req)
}

func invoke[Req, Resp any](ctx context.Context, h *DepositHandler, method string, uc Executor[Req, Resp], req *Req) (*Resp, error) {
	if uc == nil {
		return nil, unimplemented(method)
	}
	resp, err := uc.Execute(ctx, *req)
	if err == nil {
		return &resp, nil
	}
	st := toStatus(err)
	if st.Code() == codes.Internal {
		h.logger.ErrorContext(ctx, "deposit rpc failed", "method", method, "error", err)
	}
	return nil, st.Err()
}

// toStatus maps deposit errors onto gRPC codes, prefixing the stable error code.
// Anything unclassified is redacted.
func toStatus(err error) *status.Status {
	var code codes.Code
	switch {
	case errors.Is(err, valueobject.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, valueobject.ErrConcurrentModification):
		code = codes.Aborted
	case errors.Is(err, valueobject.ErrInvalidInput),
		errors.Is(err, money.ErrCurrencyMismatch):
		code = codes.InvalidArgument
	case errors.Is(err, valueobject.ErrInvalidStatusTransition),
		errors.Is(err, valueobject.ErrNotYetMatured),
		errors.Is(err, valueobject.ErrAccrualBackdated),
		errors.Is(err, valueobject.ErrProductInactive):
		code = codes.FailedPrecondition
	default:
		return status.New(codes.Internal, "internal error")
	}
	if c := valueobject.ErrorCode(err); c != "" {
		return status.Newf(code, "%s: %s", c, err.Error())
	}
	return status.New(code, err.Error())
}
