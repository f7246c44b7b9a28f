package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
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

// ---------------------------------------------------------------------------
// PreviewLiquidation
// ---------------------------------------------------------------------------

// PreviewLiquidationUseCase shows the schedule left after a part liquidation. Previews
// are cached per loan version, so any change to the loan invalidates them.
type PreviewLiquidationUseCase struct {
	loanRepo port.LoanRepository
	cache    port.PreviewCache
	ttl      time.Duration
	engine   *service.ScheduleEngine
	calendar model.HolidayCalendar
	logger   *slog.Logger
}

// NewPreviewLiquidationUseCase wires dependencies.
func NewPreviewLiquidationUseCase(
	loanRepo port.LoanRepository,
	cache port.PreviewCache,
	ttl time.Duration,
	engine *service.ScheduleEngine,
	calendar model.HolidayCalendar,
	logger *slog.Logger,
) *PreviewLiquidationUseCase {
	return &PreviewLiquidationUseCase{
		loanRepo: loanRepo,
		cache:    cache,
		ttl:      ttl,
		engine:   engine,
		calendar: calendar,
		logger:   logger,
	}
}

// Execute returns the regenerated schedule without persisting anything.
func (uc *PreviewLiquidationUseCase) Execute(
	ctx context.Context,
	req dto.LiquidationRequest,
) (dto.ScheduleResponse, error) {
	ctx, span := tracer.Start(ctx, "PreviewLiquidation", trace.WithAttributes(
		attribute.String("tenant_id", req.TenantID),
		attribute.String("loan_id", req.LoanID),
	))
	defer span.End()

	// 1. Retrieve the loan.
	loan, err := uc.loanRepo.FindByID(ctx, req.TenantID, req.LoanID)
	if err != nil {
		return dto.ScheduleResponse{}, fmt.Errorf("find loan: %w", err)
	}

	// 2. Serve from the cache when possible.
	key := previewKey(loan, req)
	if cached, ok, err := uc.cache.Get(ctx, key); err != nil {
		uc.logger.WarnContext(ctx, "preview cache read failed", "key", key, "error", err)
	} else if ok {
		var resp dto.ScheduleResponse
		if err := json.Unmarshal(cached, &resp); err == nil {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return resp, nil
		}
	}

	// 3. Regenerate with the liquidation.
	sched, err := regenerateWithLiquidation(uc.engine, uc.calendar, loan, req)
	if err != nil {
		return dto.ScheduleResponse{}, err
	}
	resp := toScheduleResponse(loan.ID(), sched)

	// 4. Cache the preview.
	if payload, err := json.Marshal(resp); err == nil {
		if err := uc.cache.Set(ctx, key, payload, uc.ttl); err != nil {
			uc.logger.WarnContext(ctx, "preview cache write failed", "key", key, "error", err)
		}
	}
	return resp, nil
}

func previewKey(loan model.Loan, req dto.LiquidationRequest) string {
	return fmt.Sprintf("lending:liquidation-preview:%s:%s:v%d:%s:%s:%s",
		loan.TenantID(), loan.ID(), loan.Version(),
		req.FromDate.Format(time.DateOnly), req.Amount.String(), req.Currency)
}

func regenerateWithLiquidation(
	engine *service.ScheduleEngine,
	calendar model.HolidayCalendar,
	loan model.Loan,
	req dto.LiquidationRequest,
) (service.ScheduleResult, error) {
	currency, err := money.NewCurrency(req.Currency)
	if err != nil {
		return service.ScheduleResult{}, fmt.Errorf("parse currency: %w", err)
	}
	amount := money.New(req.Amount, currency)
	sched, err := engine.Regenerate(service.RegenerateInput{
		Loan:        loan,
		Holidays:    calendar,
		FromDate:    req.FromDate,
		Liquidation: &amount,
	})
	if err != nil {
		return service.ScheduleResult{}, fmt.Errorf("regenerate schedule: %w", err)
	}
	return sched, nil
}

// ---------------------------------------------------------------------------
// ConfirmLiquidation
// ---------------------------------------------------------------------------

// ConfirmLiquidationUseCase books a part liquidation: the schedule from the from date is
// regenerated over the reduced principal, the PART_LIQUIDATION transaction is recorded
// and the history replayed.
type ConfirmLiquidationUseCase struct {
	loanRepo    port.LoanRepository
	details     port.PaymentDetailRepository
	archive     port.ScheduleHistoryArchive
	transfers   port.AccountTransferService
	uow         port.UnitOfWork
	accounting  port.AccountingBridge
	publisher   port.EventPublisher
	engine      *service.ScheduleEngine
	reprocessor *service.TransactionReprocessor
	calendar    model.HolidayCalendar
	metrics     instruments
}

// LiquidationDeps groups the collaborators of the confirmation use case.
type LiquidationDeps struct {
	Loans          port.LoanRepository
	PaymentDetails port.PaymentDetailRepository
	Archive        port.ScheduleHistoryArchive
	Transfers      port.AccountTransferService
	UnitOfWork     port.UnitOfWork
	Accounting     port.AccountingBridge
	Publisher      port.EventPublisher
	Engine         *service.ScheduleEngine
	Reprocessor    *service.TransactionReprocessor
	Calendar       model.HolidayCalendar
}

// NewConfirmLiquidationUseCase wires dependencies.
func NewConfirmLiquidationUseCase(d LiquidationDeps) *ConfirmLiquidationUseCase {
	return &ConfirmLiquidationUseCase{
		loanRepo:    d.Loans,
		details:     d.PaymentDetails,
		archive:     d.Archive,
		transfers:   d.Transfers,
		uow:         d.UnitOfWork,
		accounting:  d.Accounting,
		publisher:   d.Publisher,
		engine:      d.Engine,
		reprocessor: d.Reprocessor,
		calendar:    d.Calendar,
		metrics:     newInstruments(),
	}
}

// Execute regenerates, records the liquidation and replays in one unit of work.
func (uc *ConfirmLiquidationUseCase) Execute(
	ctx context.Context,
	req dto.LiquidationRequest,
) (dto.LiquidationResponse, error) {
	ctx, span := tracer.Start(ctx, "ConfirmLiquidation", trace.WithAttributes(
		attribute.String("tenant_id", req.TenantID),
		attribute.String("loan_id", req.LoanID),
	))
	defer span.End()
	now := time.Now().UTC()

	var (
		loan, before model.Loan
		sched        service.ScheduleResult
		txn          model.LoanTransaction
		changed      model.ChangedTransactionDetail
	)
	err := uc.uow.Do(ctx, func(ctx context.Context) error {
		// 1. Retrieve the loan.
		var err error
		loan, err = uc.loanRepo.FindByID(ctx, req.TenantID, req.LoanID)
		if err != nil {
			return fmt.Errorf("find loan: %w", err)
		}
		before = loan

		// 2. Regenerate over the reduced principal.
		sched, err = regenerateWithLiquidation(uc.engine, uc.calendar, loan, req)
		if err != nil {
			return err
		}
		if err := uc.archive.Archive(ctx, model.SnapshotSchedule(loan, "", now)); err != nil {
			return fmt.Errorf("archive schedule: %w", err)
		}
		loan, err = loan.Reschedule(sched.Installments, loan.Terms(), "", req.FromDate, sched.OpeningPrincipal.Amount(), now)
		if err != nil {
			return fmt.Errorf("reschedule loan: %w", err)
		}

		// 3. Record the liquidation right after the regeneration.
		detailID, err := savePaymentDetail(ctx, uc.details, req.TenantID, req.PaymentDetail)
		if err != nil {
			return fmt.Errorf("save payment detail: %w", err)
		}
		currency := loan.Currency()
		txn = model.LoanTransaction{
			ID:              uuid.NewString(),
			LoanID:          loan.ID(),
			Type:            valueobject.TransactionPartLiquidation,
			Date:            req.FromDate,
			Amount:          money.New(req.Amount, currency),
			ExternalID:      req.ExternalID,
			PaymentDetailID: detailID,
			CreatedAt:       now,
		}
		loan, err = loan.RecordTransaction(txn, loan.Installments(), now)
		if err != nil {
			return fmt.Errorf("record liquidation: %w", err)
		}

		// 4. Replay.
		replay, err := uc.reprocessor.Reprocess(loan)
		if err != nil {
			return fmt.Errorf("replay transactions: %w", err)
		}
		loan = loan.ApplyReplay(replay.Installments, replay.Transactions, replay.Changed, now)
		changed = replay.Changed

		// 5. Persist and relink.
		if err := uc.loanRepo.Save(ctx, loan); err != nil {
			return fmt.Errorf("save loan: %w", translatePersistence(err))
		}
		if !changed.IsEmpty() {
			if err := uc.transfers.RelinkTransactions(ctx, req.TenantID, changed.Mapping()); err != nil {
				return fmt.Errorf("relink transfers: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return dto.LiquidationResponse{}, err
	}

	// 6. Post journal entries and publish events.
	existing, reversed := transactionIDs(before)
	if err := uc.accounting.PostEntries(ctx, loan, existing, reversed); err != nil {
		return dto.LiquidationResponse{}, fmt.Errorf("post journal entries: %w", err)
	}
	if err := uc.publisher.Publish(ctx, loan.DomainEvents()...); err != nil {
		return dto.LiquidationResponse{}, fmt.Errorf("publish events: %w", err)
	}

	uc.metrics.liquidations.Add(ctx, 1, tenantAttr(req.TenantID))
	uc.metrics.regenerations.Add(ctx, 1, tenantAttr(req.TenantID))

	return dto.LiquidationResponse{
		LoanID:        loan.ID(),
		TransactionID: txn.ID,
		Schedule:      toScheduleResponse(loan.ID(), sched),
		Replacements:  changed.Mapping(),
	}, nil
}
