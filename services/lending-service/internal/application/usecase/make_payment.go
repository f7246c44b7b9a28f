package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bibbank/bib/pkg/money"
	"github.com/bibbank/bib/services/lending-service/internal/application/dto"
	"github.com/bibbank/bib/services/lending-service/internal/domain/model"
	"github.com/bibbank/bib/services/lending-service/internal/domain/port"
	"github.com/bibbank/bib/services/lending-service/internal/domain/service"
	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
)

// MakePaymentUseCase applies a repayment to an outstanding loan. A repayment dated
// before the loan's last transaction replays the history so later allocations follow it.
type MakePaymentUseCase struct {
	loanRepo    port.LoanRepository
	details     port.PaymentDetailRepository
	uow         port.UnitOfWork
	transfers   port.AccountTransferService
	accounting  port.AccountingBridge
	publisher   port.EventPublisher
	reprocessor *service.TransactionReprocessor
	metrics     instruments
}

// NewMakePaymentUseCase wires dependencies.
func NewMakePaymentUseCase(
	loanRepo port.LoanRepository,
	details port.PaymentDetailRepository,
	uow port.UnitOfWork,
	transfers port.AccountTransferService,
	accounting port.AccountingBridge,
	publisher port.EventPublisher,
	reprocessor *service.TransactionReprocessor,
) *MakePaymentUseCase {
	return &MakePaymentUseCase{
		loanRepo:    loanRepo,
		details:     details,
		uow:         uow,
		transfers:   transfers,
		accounting:  accounting,
		publisher:   publisher,
		reprocessor: reprocessor,
		metrics:     newInstruments(),
	}
}

// Execute processes a repayment against a loan.
func (uc *MakePaymentUseCase) Execute(
	ctx context.Context,
	req dto.MakePaymentRequest,
) (dto.PaymentResponse, error) {
	ctx, span := tracer.Start(ctx, "MakePayment", trace.WithAttributes(
		attribute.String("tenant_id", req.TenantID),
		attribute.String("loan_id", req.LoanID),
	))
	defer span.End()
	now := time.Now().UTC()

	currency, err := money.NewCurrency(req.Currency)
	if err != nil {
		return dto.PaymentResponse{}, fmt.Errorf("parse currency: %w", err)
	}

	var (
		loan    model.Loan
		txn     model.LoanTransaction
		changed model.ChangedTransactionDetail
		before  model.Loan
	)
	err = uc.uow.Do(ctx, func(ctx context.Context) error {
		// 1. Retrieve the loan.
		var err error
		loan, err = uc.loanRepo.FindByID(ctx, req.TenantID, req.LoanID)
		if err != nil {
			return fmt.Errorf("find loan: %w", err)
		}
		before = loan

		// 2. Store the payment detail.
		detailID, err := savePaymentDetail(ctx, uc.details, req.TenantID, req.PaymentDetail)
		if err != nil {
			return fmt.Errorf("save payment detail: %w", err)
		}

		txn = model.LoanTransaction{
			ID:              uuid.NewString(),
			LoanID:          loan.ID(),
			Type:            valueobject.TransactionRepayment,
			Date:            orNow(req.TransactionDate),
			Amount:          money.New(req.Amount, currency),
			ExternalID:      req.ExternalID,
			PaymentDetailID: detailID,
			CreatedAt:       now,
		}

		// 3. Allocate, replaying the history for a backdated repayment.
		last, hasLast := loan.LastTransactionDate()
		if hasLast && txn.Date.Before(last) {
			loan, err = loan.RecordTransaction(txn, loan.Installments(), now)
			if err != nil {
				return fmt.Errorf("make payment: %w", err)
			}
			replay, err := uc.reprocessor.Reprocess(loan)
			if err != nil {
				return fmt.Errorf("replay transactions: %w", err)
			}
			loan = loan.ApplyReplay(replay.Installments, replay.Transactions, replay.Changed, now)
			changed = replay.Changed
		} else {
			installments, allocated, err := uc.reprocessor.Allocate(loan, txn)
			if err != nil {
				return fmt.Errorf("allocate payment: %w", err)
			}
			txn = allocated
			loan, err = loan.RecordTransaction(txn, installments, now)
			if err != nil {
				return fmt.Errorf("make payment: %w", err)
			}
		}

		// 4. Persist the updated loan.
		if err := uc.loanRepo.Save(ctx, loan); err != nil {
			return fmt.Errorf("save loan: %w", translatePersistence(err))
		}

		// 5. Point account transfers at the replacement transactions.
		if !changed.IsEmpty() {
			if err := uc.transfers.RelinkTransactions(ctx, req.TenantID, changed.Mapping()); err != nil {
				return fmt.Errorf("relink transfers: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return dto.PaymentResponse{}, err
	}

	// 6. Post journal entries for the delta.
	existing, reversed := transactionIDs(before)
	if err := uc.accounting.PostEntries(ctx, loan, existing, reversed); err != nil {
		return dto.PaymentResponse{}, fmt.Errorf("post journal entries: %w", err)
	}

	// 7. Publish events.
	if err := uc.publisher.Publish(ctx, loan.DomainEvents()...); err != nil {
		return dto.PaymentResponse{}, fmt.Errorf("publish events: %w", err)
	}

	uc.metrics.payments.Add(ctx, 1, tenantAttr(req.TenantID))
	if n := len(changed.Entries); n > 0 {
		uc.metrics.replacements.Add(ctx, int64(n), tenantAttr(req.TenantID))
	}

	return dto.PaymentResponse{
		LoanID:               loan.ID(),
		TransactionID:        txn.ID,
		AmountPaid:           req.Amount,
		OutstandingPrincipal: loan.OutstandingPrincipal(),
		LoanStatus:           loan.Status().String(),
		Replacements:         changed.Mapping(),
	}, nil
}
