package usecase

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bibbank/bib/services/lending-service/internal/application/dto"
	"github.com/bibbank/bib/services/lending-service/internal/domain/model"
	"github.com/bibbank/bib/services/lending-service/internal/domain/port"
	"github.com/bibbank/bib/services/lending-service/internal/domain/service"
	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
)

// PreviewRestructureUseCase shows the schedule a pending request would produce. Nothing
// is persisted.
type PreviewRestructureUseCase struct {
	loanRepo    port.LoanRepository
	requestRepo port.RestructureRequestRepository
	applier     *service.TermVariationApplier
	engine      *service.ScheduleEngine
	calendar    model.HolidayCalendar
}

// NewPreviewRestructureUseCase wires dependencies.
func NewPreviewRestructureUseCase(
	loanRepo port.LoanRepository,
	requestRepo port.RestructureRequestRepository,
	engine *service.ScheduleEngine,
	calendar model.HolidayCalendar,
) *PreviewRestructureUseCase {
	return &PreviewRestructureUseCase{
		loanRepo:    loanRepo,
		requestRepo: requestRepo,
		applier:     service.NewTermVariationApplier(),
		engine:      engine,
		calendar:    calendar,
	}
}

// Execute regenerates the schedule with the request's variations overlaid on the loan's.
func (uc *PreviewRestructureUseCase) Execute(
	ctx context.Context,
	req dto.GetRestructureRequest,
) (dto.ScheduleResponse, error) {
	ctx, span := tracer.Start(ctx, "PreviewRestructure", trace.WithAttributes(
		attribute.String("tenant_id", req.TenantID),
		attribute.String("request_id", req.RequestID),
	))
	defer span.End()

	// 1. Retrieve the pending request and its loan.
	request, err := uc.requestRepo.FindByID(ctx, req.TenantID, req.RequestID)
	if err != nil {
		return dto.ScheduleResponse{}, fmt.Errorf("find request: %w", err)
	}
	if !request.Status().IsPending() {
		return dto.ScheduleResponse{}, fmt.Errorf("preview request: %w",
			valueobject.NewInvalidTransitionError("restructure request", request.Status().String(), "PREVIEW"))
	}
	loan, err := uc.loanRepo.FindByID(ctx, req.TenantID, request.LoanID())
	if err != nil {
		return dto.ScheduleResponse{}, fmt.Errorf("find loan: %w", err)
	}

	// 2. Overlay the pending variations.
	applied, err := uc.applier.Apply(loan.Terms().Variations, request.Variations(), request.RescheduleFromDate(), loan.Terms())
	if err != nil {
		return dto.ScheduleResponse{}, fmt.Errorf("apply variations: %w", err)
	}

	// 3. Regenerate.
	sched, err := uc.engine.Regenerate(service.RegenerateInput{
		Loan:     loan,
		Terms:    loan.Terms().WithVariations(applied.Variations),
		Holidays: uc.calendar,
		FromDate: applied.RescheduleFrom,
	})
	if err != nil {
		return dto.ScheduleResponse{}, fmt.Errorf("regenerate schedule: %w", err)
	}

	return toScheduleResponse(loan.ID(), sched), nil
}
