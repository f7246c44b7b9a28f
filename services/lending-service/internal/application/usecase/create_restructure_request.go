package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bibbank/bib/services/lending-service/internal/application/dto"
	"github.com/bibbank/bib/services/lending-service/internal/domain/model"
	"github.com/bibbank/bib/services/lending-service/internal/domain/port"
	"github.com/bibbank/bib/services/lending-service/internal/domain/service"
	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
)

// CreateRestructureRequestUseCase submits a restructure request for approval. The
// proposed terms become inactive term variations owned by the request.
type CreateRestructureRequestUseCase struct {
	loanRepo    port.LoanRepository
	requestRepo port.RestructureRequestRepository
	uow         port.UnitOfWork
	publisher   port.EventPublisher
	engine      *service.ScheduleEngine
	builder     *service.VariationBuilder
}

// NewCreateRestructureRequestUseCase wires dependencies.
func NewCreateRestructureRequestUseCase(
	loanRepo port.LoanRepository,
	requestRepo port.RestructureRequestRepository,
	uow port.UnitOfWork,
	publisher port.EventPublisher,
	engine *service.ScheduleEngine,
) *CreateRestructureRequestUseCase {
	return &CreateRestructureRequestUseCase{
		loanRepo:    loanRepo,
		requestRepo: requestRepo,
		uow:         uow,
		publisher:   publisher,
		engine:      engine,
		builder:     service.NewVariationBuilder(uuid.NewString),
	}
}

// Execute validates and stores a new pending restructure request.
func (uc *CreateRestructureRequestUseCase) Execute(
	ctx context.Context,
	req dto.CreateRestructureRequest,
) (dto.RestructureRequestResponse, error) {
	ctx, span := tracer.Start(ctx, "CreateRestructureRequest", trace.WithAttributes(
		attribute.String("tenant_id", req.TenantID),
		attribute.String("loan_id", req.LoanID),
	))
	defer span.End()

	terms := service.RestructureTerms{
		FromDate:         req.FromDate,
		NewDueDate:       req.NewDueDate,
		DueDateSpecific:  req.DueDateSpecific,
		NewInterestRate:  req.NewInterestRate,
		GraceOnPrincipal: req.GraceOnPrincipal,
		GraceOnInterest:  req.GraceOnInterest,
		ExtraTerms:       req.ExtraTerms,
	}

	var created model.RestructureRequest
	err := uc.uow.Do(ctx, func(ctx context.Context) error {
		// 1. Retrieve the loan; it must still accept repayments.
		loan, err := uc.loanRepo.FindByID(ctx, req.TenantID, req.LoanID)
		if err != nil {
			return fmt.Errorf("find loan: %w", err)
		}
		if !loan.Status().AcceptsRepayments() {
			return fmt.Errorf("check loan: %w",
				valueobject.NewInvalidTransitionError("loan", loan.Status().String(), "RESCHEDULED"))
		}

		// 2. Only one pending request per loan.
		pending, found, err := uc.requestRepo.FindPendingByLoanID(ctx, req.TenantID, req.LoanID)
		if err != nil {
			return fmt.Errorf("find pending request: %w", err)
		}
		if found {
			return valueobject.NewDuplicateRestructureRequestError(loan.ID(), pending.ID())
		}

		// 3. The from date must be an installment date after the last transaction.
		if err := uc.engine.ValidateFromDate(loan, loan.Terms(), req.FromDate); err != nil {
			return fmt.Errorf("validate from date: %w", err)
		}

		// 4. Build the variations and the adjusted maturity.
		variations, err := uc.builder.Build(loan.ID(), terms)
		if err != nil {
			return fmt.Errorf("build variations: %w", err)
		}
		adjusted := req.AdjustedMaturity
		if adjusted == nil {
			maturity, err := service.AdjustedMaturity(loan, terms)
			if err != nil {
				return fmt.Errorf("adjusted maturity: %w", err)
			}
			adjusted = &maturity
		}

		// 5. Create the request.
		created, err = model.NewRestructureRequest(model.NewRestructureRequestParams{
			TenantID:            req.TenantID,
			LoanID:              loan.ID(),
			RescheduleFromDate:  req.FromDate,
			AdjustedDueDate:     adjusted,
			RecalculateInterest: req.RecalculateInterest,
			ReasonCode:          req.ReasonCode,
			Comment:             req.Comment,
			Variations:          variations,
			SubmittedBy:         req.SubmittedBy,
			SubmittedOn:         orNow(req.SubmittedOn),
		})
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		// 6. Persist.
		if err := uc.requestRepo.Save(ctx, created); err != nil {
			return fmt.Errorf("save request: %w", translatePersistence(err))
		}
		return nil
	})
	if err != nil {
		return dto.RestructureRequestResponse{}, err
	}

	// 7. Publish events.
	if err := uc.publisher.Publish(ctx, created.DomainEvents()...); err != nil {
		return dto.RestructureRequestResponse{}, fmt.Errorf("publish events: %w", err)
	}

	return toRestructureResponse(created), nil
}
