package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bibbank/bib/services/lending-service/internal/application/dto"
	"github.com/bibbank/bib/services/lending-service/internal/domain/event"
	"github.com/bibbank/bib/services/lending-service/internal/domain/model"
	"github.com/bibbank/bib/services/lending-service/internal/domain/port"
	"github.com/bibbank/bib/services/lending-service/internal/domain/service"
)

// ApproveRestructureRequestUseCase applies an approved request to its loan: it folds the
// variations into the loan terms, regenerates the schedule from the reschedule date,
// replays the loan's transactions and posts the resulting journal entries.
type ApproveRestructureRequestUseCase struct {
	loanRepo    port.LoanRepository
	requestRepo port.RestructureRequestRepository
	archive     port.ScheduleHistoryArchive
	transfers   port.AccountTransferService
	uow         port.UnitOfWork
	accounting  port.AccountingBridge
	publisher   port.EventPublisher
	applier     *service.TermVariationApplier
	engine      *service.ScheduleEngine
	reprocessor *service.TransactionReprocessor
	calendar    model.HolidayCalendar
	logger      *slog.Logger
	metrics     instruments
}

// ApproveDeps groups the collaborators of the approval use case.
type ApproveDeps struct {
	Loans       port.LoanRepository
	Requests    port.RestructureRequestRepository
	Archive     port.ScheduleHistoryArchive
	Transfers   port.AccountTransferService
	UnitOfWork  port.UnitOfWork
	Accounting  port.AccountingBridge
	Publisher   port.EventPublisher
	Engine      *service.ScheduleEngine
	Reprocessor *service.TransactionReprocessor
	Calendar    model.HolidayCalendar
	Logger      *slog.Logger
}

// NewApproveRestructureRequestUseCase wires dependencies.
func NewApproveRestructureRequestUseCase(d ApproveDeps) *ApproveRestructureRequestUseCase {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ApproveRestructureRequestUseCase{
		loanRepo:    d.Loans,
		requestRepo: d.Requests,
		archive:     d.Archive,
		transfers:   d.Transfers,
		uow:         d.UnitOfWork,
		accounting:  d.Accounting,
		publisher:   d.Publisher,
		applier:     service.NewTermVariationApplier(),
		engine:      d.Engine,
		reprocessor: d.Reprocessor,
		calendar:    d.Calendar,
		logger:      logger,
		metrics:     newInstruments(),
	}
}

// Execute approves the request and reschedules the loan in one unit of work.
func (uc *ApproveRestructureRequestUseCase) Execute(
	ctx context.Context,
	req dto.DecideRestructureRequest,
) (dto.ApproveRestructureResponse, error) {
	ctx, span := tracer.Start(ctx, "ApproveRestructureRequest", trace.WithAttributes(
		attribute.String("tenant_id", req.TenantID),
		attribute.String("request_id", req.RequestID),
	))
	defer span.End()
	now := time.Now().UTC()
	decidedOn := orNow(req.DecidedOn)

	var (
		loan, before model.Loan
		approved     model.RestructureRequest
		sched        service.ScheduleResult
		changed      model.ChangedTransactionDetail
	)
	err := uc.uow.Do(ctx, func(ctx context.Context) error {
		// 1. Retrieve the request and its loan.
		request, err := uc.requestRepo.FindByID(ctx, req.TenantID, req.RequestID)
		if err != nil {
			return fmt.Errorf("find request: %w", err)
		}
		loan, err = uc.loanRepo.FindByID(ctx, req.TenantID, request.LoanID())
		if err != nil {
			return fmt.Errorf("find loan: %w", err)
		}
		before = loan

		// 2. Fold the request's variations into the loan's.
		applied, err := uc.applier.Apply(loan.Terms().Variations, request.Variations(), request.RescheduleFromDate(), loan.Terms())
		if err != nil {
			return fmt.Errorf("apply variations: %w", err)
		}
		approved, err = request.Approve(req.DecidedBy, decidedOn, applied.RescheduleFrom, applied.Activated)
		if err != nil {
			return fmt.Errorf("approve request: %w", err)
		}
		terms := loan.Terms().WithVariations(applied.Variations)

		// 3. Regenerate the schedule from the (possibly re-anchored) date.
		sched, err = uc.engine.Regenerate(service.RegenerateInput{
			Loan:     loan,
			Terms:    terms,
			Holidays: uc.calendar,
			FromDate: applied.RescheduleFrom,
		})
		if err != nil {
			return fmt.Errorf("regenerate schedule: %w", err)
		}

		// 4. Archive the schedule being replaced.
		if err := uc.archive.Archive(ctx, model.SnapshotSchedule(loan, approved.ID(), now)); err != nil {
			return fmt.Errorf("archive schedule: %w", err)
		}

		// 5. Reschedule and replay.
		loan, err = loan.Reschedule(sched.Installments, terms, approved.ID(), applied.RescheduleFrom, sched.OpeningPrincipal.Amount(), now)
		if err != nil {
			return fmt.Errorf("reschedule loan: %w", err)
		}
		replay, err := uc.reprocessor.Reprocess(loan)
		if err != nil {
			return fmt.Errorf("replay transactions: %w", err)
		}
		loan = loan.ApplyReplay(replay.Installments, replay.Transactions, replay.Changed, now)
		changed = replay.Changed

		// 6. Persist the loan and the request.
		if err := uc.loanRepo.Save(ctx, loan); err != nil {
			return fmt.Errorf("save loan: %w", translatePersistence(err))
		}
		if err := uc.requestRepo.Save(ctx, approved); err != nil {
			return fmt.Errorf("save request: %w", translatePersistence(err))
		}

		// 7. Point account transfers at the replacement transactions.
		if !changed.IsEmpty() {
			if err := uc.transfers.RelinkTransactions(ctx, req.TenantID, changed.Mapping()); err != nil {
				return fmt.Errorf("relink transfers: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return dto.ApproveRestructureResponse{}, err
	}

	uc.logger.InfoContext(ctx, "restructure approved",
		"request_id", approved.ID(),
		"loan_id", loan.ID(),
		"reschedule_from", approved.RescheduleFromDate().Format(time.DateOnly),
		"regenerated", sched.Regenerated,
		"replaced", len(changed.Entries),
	)

	// 8. Post journal entries for the replay delta.
	existing, reversed := transactionIDs(before)
	if err := uc.accounting.PostEntries(ctx, loan, existing, reversed); err != nil {
		return dto.ApproveRestructureResponse{}, fmt.Errorf("post journal entries: %w", err)
	}

	// 9. Publish events.
	evts := make([]event.DomainEvent, 0, len(approved.DomainEvents())+len(loan.DomainEvents()))
	evts = append(evts, approved.DomainEvents()...)
	evts = append(evts, loan.DomainEvents()...)
	if err := uc.publisher.Publish(ctx, evts...); err != nil {
		return dto.ApproveRestructureResponse{}, fmt.Errorf("publish events: %w", err)
	}

	uc.metrics.restructures.Add(ctx, 1, tenantAttr(req.TenantID))
	uc.metrics.regenerations.Add(ctx, 1, tenantAttr(req.TenantID))
	if n := len(changed.Entries); n > 0 {
		uc.metrics.replacements.Add(ctx, int64(n), tenantAttr(req.TenantID))
	}

	return dto.ApproveRestructureResponse{
		Request:      toRestructureResponse(approved),
		Schedule:     toScheduleResponse(loan.ID(), sched),
		Replacements: changed.Mapping(),
	}, nil
}

// RejectRestructureRequestUseCase rejects a pending request. The loan is not touched.
type RejectRestructureRequestUseCase struct {
	requestRepo port.RestructureRequestRepository
	publisher   port.EventPublisher
	metrics     instruments
}

// NewRejectRestructureRequestUseCase wires dependencies.
func NewRejectRestructureRequestUseCase(
	requestRepo port.RestructureRequestRepository,
	publisher port.EventPublisher,
) *RejectRestructureRequestUseCase {
	return &RejectRestructureRequestUseCase{
		requestRepo: requestRepo,
		publisher:   publisher,
		metrics:     newInstruments(),
	}
}

// Execute rejects the request and deactivates its variations.
func (uc *RejectRestructureRequestUseCase) Execute(
	ctx context.Context,
	req dto.DecideRestructureRequest,
) (dto.RestructureRequestResponse, error) {
	ctx, span := tracer.Start(ctx, "RejectRestructureRequest", trace.WithAttributes(
		attribute.String("tenant_id", req.TenantID),
		attribute.String("request_id", req.RequestID),
	))
	defer span.End()

	// 1. Retrieve the request.
	request, err := uc.requestRepo.FindByID(ctx, req.TenantID, req.RequestID)
	if err != nil {
		return dto.RestructureRequestResponse{}, fmt.Errorf("find request: %w", err)
	}

	// 2. Reject it.
	rejected, err := request.Reject(req.DecidedBy, orNow(req.DecidedOn))
	if err != nil {
		return dto.RestructureRequestResponse{}, fmt.Errorf("reject request: %w", err)
	}

	// 3. Persist.
	if err := uc.requestRepo.Save(ctx, rejected); err != nil {
		return dto.RestructureRequestResponse{}, fmt.Errorf("save request: %w", translatePersistence(err))
	}

	// 4. Publish events.
	if err := uc.publisher.Publish(ctx, rejected.DomainEvents()...); err != nil {
		return dto.RestructureRequestResponse{}, fmt.Errorf("publish events: %w", err)
	}

	uc.metrics.restructures.Add(ctx, 1, tenantAttr(req.TenantID))
	return toRestructureResponse(rejected), nil
}
