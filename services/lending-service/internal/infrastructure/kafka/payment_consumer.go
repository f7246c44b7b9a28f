package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	pkgkafka "github.com/bibbank/bib/pkg/kafka"
	"github.com/bibbank/bib/pkg/money"
	"github.com/bibbank/bib/services/lending-service/internal/application/dto"
	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
)

// PaymentExecutor books a repayment.
type PaymentExecutor interface {
	Execute(ctx context.Context, req dto.MakePaymentRequest) (dto.PaymentResponse, error)
}

// PaymentHandler turns payment-received messages into repayments.
type PaymentHandler struct {
	payments PaymentExecutor
	logger   *slog.Logger
}

// NewPaymentHandler wires dependencies.
func NewPaymentHandler(payments PaymentExecutor, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, logger: logger}
}

// Handle books the payment in msg. Messages that can never succeed are logged and
// acknowledged; everything else is returned so the offset stays uncommitted.
func (h *PaymentHandler) Handle(ctx context.Context, msg pkgkafka.Message) error {
	var req dto.MakePaymentRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		h.logger.WarnContext(ctx, "dropping malformed payment message", "error", err, "key", string(msg.Key))
		return nil
	}
	if req.TenantID == "" {
		req.TenantID = msg.Headers["tenant_id"]
	}

	resp, err := h.payments.Execute(ctx, req)
	switch {
	case err == nil:
		h.logger.InfoContext(ctx, "payment booked",
			"loan_id", resp.LoanID,
			"transaction_id", resp.TransactionID,
			"replaced", len(resp.Replacements),
		)
		return nil
	case errors.Is(err, valueobject.ErrDataIntegrity):
		// A unique external id means the payment was booked by an earlier delivery.
		h.logger.InfoContext(ctx, "payment already booked", "loan_id", req.LoanID, "external_id", req.ExternalID)
		return nil
	case isPermanent(err):
		h.logger.WarnContext(ctx, "rejecting payment",
			"loan_id", req.LoanID,
			"code", valueobject.ErrorCode(err),
			"error", err,
		)
		return nil
	default:
		return err
	}
}

func isPermanent(err error) bool {
	return errors.Is(err, valueobject.ErrNotFound) ||
		errors.Is(err, valueobject.ErrInvalidStatusTransition) ||
		errors.Is(err, money.ErrCurrencyMismatch) ||
		errors.Is(err, valueobject.ErrTemporalOrdering)
}
