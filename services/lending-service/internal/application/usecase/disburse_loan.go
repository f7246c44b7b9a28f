package usecase

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bibbank/bib/pkg/money"
	"github.com/bibbank/bib/services/lending-service/internal/application/dto"
	"github.com/bibbank/bib/services/lending-service/internal/domain/model"
	"github.com/bibbank/bib/services/lending-service/internal/domain/port"
	"github.com/bibbank/bib/services/lending-service/internal/domain/service"
	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
)

// DisburseLoanUseCase opens a loan, generates its initial schedule and notifies the
// accounting bridge of the disbursement.
type DisburseLoanUseCase struct {
	loanRepo   port.LoanRepository
	uow        port.UnitOfWork
	accounting port.AccountingBridge
	publisher  port.EventPublisher
	engine     *service.ScheduleEngine
	calendar   model.HolidayCalendar
	metrics    instruments
}

// NewDisburseLoanUseCase wires dependencies.
func NewDisburseLoanUseCase(
	loanRepo port.LoanRepository,
	uow port.UnitOfWork,
	accounting port.AccountingBridge,
	publisher port.EventPublisher,
	engine *service.ScheduleEngine,
	calendar model.HolidayCalendar,
) *DisburseLoanUseCase {
	return &DisburseLoanUseCase{
		loanRepo:   loanRepo,
		uow:        uow,
		accounting: accounting,
		publisher:  publisher,
		engine:     engine,
		calendar:   calendar,
		metrics:    newInstruments(),
	}
}

// Execute disburses a loan on the requested terms.
func (uc *DisburseLoanUseCase) Execute(
	ctx context.Context,
	req dto.DisburseLoanRequest,
) (dto.LoanResponse, error) {
	ctx, span := tracer.Start(ctx, "DisburseLoan", trace.WithAttributes(
		attribute.String("tenant_id", req.TenantID),
		attribute.String("borrower_account_id", req.BorrowerAccountID),
	))
	defer span.End()
	now := time.Now().UTC()

	// 1. Build the terms.
	terms, err := termsFromRequest(req)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("parse terms: %w", err)
	}

	// 2. Generate the schedule.
	sched, err := uc.engine.Generate(terms, uc.calendar, req.DisbursedOn)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("generate schedule: %w", err)
	}

	// 3. Create the Loan aggregate.
	loan, err := model.NewLoan(model.NewLoanParams{
		TenantID:          req.TenantID,
		BorrowerAccountID: req.BorrowerAccountID,
		Terms:             terms,
		DisbursedOn:       req.DisbursedOn,
		ExternalID:        req.ExternalID,
	}, sched.Installments, now)
	if err != nil {
		return dto.LoanResponse{}, fmt.Errorf("create loan: %w", err)
	}

	// 4. Persist the loan.
	if err := uc.uow.Do(ctx, func(ctx context.Context) error {
		return uc.loanRepo.Save(ctx, loan)
	}); err != nil {
		return dto.LoanResponse{}, fmt.Errorf("save loan: %w", translatePersistence(err))
	}

	// 5. Post the disbursement.
	if err := uc.accounting.PostEntries(ctx, loan, nil, nil); err != nil {
		return dto.LoanResponse{}, fmt.Errorf("post journal entries: %w", err)
	}

	// 6. Publish domain events.
	if err := uc.publisher.Publish(ctx, loan.DomainEvents()...); err != nil {
		return dto.LoanResponse{}, fmt.Errorf("publish events: %w", err)
	}

	uc.metrics.disbursed.Add(ctx, 1, tenantAttr(req.TenantID))
	return toLoanResponse(loan), nil
}

func termsFromRequest(req dto.DisburseLoanRequest) (model.LoanTerms, error) {
	currency, err := money.NewCurrency(req.Currency)
	if err != nil {
		return model.LoanTerms{}, err
	}
	interest, err := valueobject.ParseInterestMethod(req.InterestMethod)
	if err != nil {
		return model.LoanTerms{}, err
	}
	amortization, err := valueobject.ParseAmortizationMethod(req.AmortizationMethod)
	if err != nil {
		return model.LoanTerms{}, err
	}
	frequency, err := valueobject.ParsePeriodFrequency(req.Frequency)
	if err != nil {
		return model.LoanTerms{}, err
	}
	mode, err := money.ParseRoundingMode(req.RoundingMode)
	if err != nil {
		return model.LoanTerms{}, err
	}
	if _, err := service.AllocationStrategyFor(req.ProcessingStrategy); err != nil {
		return model.LoanTerms{}, err
	}
	strategy := req.ProcessingStrategy
	if strategy == "" {
		strategy = service.StrategyPenaltyFeeInterestPrincipal
	}

	repayEvery := req.RepayEvery
	if repayEvery == 0 {
		repayEvery = 1
	}

	return model.LoanTerms{
		Currency:                currency,
		Principal:               req.Principal,
		AnnualInterestRate:      req.AnnualInterestRate,
		InterestMethod:          interest,
		AmortizationMethod:      amortization,
		Frequency:               frequency,
		RepayEvery:              repayEvery,
		NumberOfRepayments:      req.NumberOfRepayments,
		FirstRepaymentDate:      req.FirstRepaymentDate,
		GraceOnPrincipalPeriods: req.GraceOnPrincipal,
		GraceOnInterestPeriods:  req.GraceOnInterest,
		Variations:              model.NewVariationSet(),
		Rounding:                money.RoundingPolicy{Mode: mode, Precision: money.DefaultPrecision},
		ProcessingStrategy:      strategy,
	}, nil
}
