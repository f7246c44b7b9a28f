package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/bibbank/bib/pkg/postgres"
	"github.com/bibbank/bib/services/lending-service/internal/application/dto"
	"github.com/bibbank/bib/services/lending-service/internal/domain/model"
	"github.com/bibbank/bib/services/lending-service/internal/domain/port"
	"github.com/bibbank/bib/services/lending-service/internal/domain/service"
	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
)

const instrumentationName = "github.com/bibbank/bib/services/lending-service/usecase"

var tracer = otel.Tracer(instrumentationName)

// instruments are the counters the use cases record.
type instruments struct {
	disbursed     metric.Int64Counter
	payments      metric.Int64Counter
	restructures  metric.Int64Counter
	regenerations metric.Int64Counter
	replacements  metric.Int64Counter
	liquidations  metric.Int64Counter
}

func newInstruments() instruments {
	m := otel.Meter(instrumentationName)
	return instruments{
		disbursed:     counter(m, "lending.loan.disbursed", "Loans disbursed"),
		payments:      counter(m, "lending.payment.recorded", "Repayments recorded"),
		restructures:  counter(m, "lending.restructure.decided", "Restructure requests approved or rejected"),
		regenerations: counter(m, "lending.schedule.regenerated", "Schedules regenerated"),
		replacements:  counter(m, "lending.transaction.replaced", "Transactions reversed and replaced by replay"),
		liquidations:  counter(m, "lending.liquidation.confirmed", "Part liquidations confirmed"),
	}
}

func counter(m metric.Meter, name, desc string) metric.Int64Counter {
	c, err := m.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}

func tenantAttr(tenantID string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("tenant_id", tenantID))
}

// translatePersistence maps database integrity violations to a DataIntegrityError.
// Every other error is returned unchanged.
func translatePersistence(err error) error {
	if err == nil {
		return nil
	}
	if v, ok := postgres.AsIntegrityViolation(err); ok {
		return valueobject.NewDataIntegrityError(v.Constraint, err)
	}
	return err
}

// transactionIDs returns the ids of all transactions and of the reversed ones, captured
// before a change so the accounting bridge can post only the delta.
func transactionIDs(loan model.Loan) (existing, reversed []string) {
	for _, t := range loan.Transactions() {
		existing = append(existing, t.ID)
		if t.Reversed {
			reversed = append(reversed, t.ID)
		}
	}
	return existing, reversed
}

// savePaymentDetail stores the payment detail of a repayment, returning its id.
func savePaymentDetail(ctx context.Context, repo port.PaymentDetailRepository, tenantID string, req *dto.PaymentDetailRequest) (string, error) {
	if req == nil {
		return "", nil
	}
	detail, err := model.NewPaymentDetail(tenantID, req.PaymentType, req.AccountNumber, req.CheckNumber, req.ReceiptNumber, req.RoutingCode)
	if err != nil {
		return "", err
	}
	if err := repo.Save(ctx, detail); err != nil {
		return "", err
	}
	return detail.ID, nil
}

// ---------------------------------------------------------------------------
// Response mapping
// ---------------------------------------------------------------------------

func toInstallmentResponses(in []model.Installment) []dto.InstallmentResponse {
	out := make([]dto.InstallmentResponse, len(in))
	for i, inst := range in {
		out[i] = dto.InstallmentResponse{
			Number:           inst.Number,
			FromDate:         inst.FromDate,
			DueDate:          inst.DueDate,
			PrincipalDue:     inst.PrincipalDue,
			InterestDue:      inst.InterestDue,
			FeeDue:           inst.FeeDue,
			PenaltyDue:       inst.PenaltyDue,
			TotalDue:         inst.TotalDue(),
			TotalPaid:        inst.TotalPaid(),
			ObligationsMet:   inst.ObligationsMet,
			ObligationsMetOn: inst.ObligationsMetOn,
		}
	}
	return out
}

func toLoanResponse(loan model.Loan) dto.LoanResponse {
	txns := loan.Transactions()
	transactions := make([]dto.TransactionResponse, len(txns))
	for i, t := range txns {
		transactions[i] = dto.TransactionResponse{
			ID:         t.ID,
			Type:       string(t.Type),
			Date:       t.Date,
			Amount:     t.Amount.Amount(),
			Currency:   t.Amount.Currency().Code(),
			Reversed:   t.Reversed,
			ExternalID: t.ExternalID,
			ReplacesID: t.ReplacesID,
		}
	}

	terms := loan.Terms()
	return dto.LoanResponse{
		ID:                   loan.ID(),
		TenantID:             loan.TenantID(),
		BorrowerAccountID:    loan.BorrowerAccountID(),
		Principal:            terms.Principal,
		Currency:             terms.Currency.Code(),
		AnnualInterestRate:   terms.AnnualInterestRate,
		NumberOfRepayments:   terms.NumberOfRepayments,
		Status:               loan.Status().String(),
		DisbursedOn:          loan.DisbursedOn(),
		MaturityDate:         loan.MaturityDate(),
		OutstandingPrincipal: loan.OutstandingPrincipal(),
		Version:              loan.Version(),
		Schedule:             toInstallmentResponses(loan.Installments()),
		Transactions:         transactions,
		CreatedAt:            loan.CreatedAt(),
		UpdatedAt:            loan.UpdatedAt(),
	}
}

func toScheduleResponse(loanID string, r service.ScheduleResult) dto.ScheduleResponse {
	return dto.ScheduleResponse{
		LoanID:           loanID,
		FromDate:         r.FromDate,
		MaturityDate:     r.MaturityDate,
		Currency:         r.OpeningPrincipal.Currency().Code(),
		OpeningPrincipal: r.OpeningPrincipal.Amount(),
		TotalPrincipal:   r.TotalPrincipal,
		TotalInterest:    r.TotalInterest,
		Regenerated:      r.Regenerated,
		Installments:     toInstallmentResponses(r.Installments),
	}
}

func toRestructureResponse(r model.RestructureRequest) dto.RestructureRequestResponse {
	vs := r.Variations()
	variations := make([]dto.TermVariationResponse, len(vs))
	for i, v := range vs {
		var value *decimal.Decimal
		if v.DecimalValue.Valid {
			d := v.DecimalValue.Decimal
			value = &d
		}
		variations[i] = dto.TermVariationResponse{
			ID:                    v.ID,
			Type:                  string(v.Type),
			ApplicableFrom:        v.ApplicableFrom,
			DecimalValue:          value,
			DateValue:             v.DateValue,
			SpecificToInstallment: v.SpecificToInstallment,
			Active:                v.Active,
			ParentID:              v.ParentID,
		}
	}
	return dto.RestructureRequestResponse{
		ID:                  r.ID(),
		LoanID:              r.LoanID(),
		Status:              r.Status().String(),
		RescheduleFromDate:  r.RescheduleFromDate(),
		AdjustedDueDate:     r.AdjustedDueDate(),
		RecalculateInterest: r.RecalculateInterest(),
		ReasonCode:          r.ReasonCode(),
		Comment:             r.Comment(),
		SubmittedBy:         r.SubmittedBy(),
		SubmittedOn:         r.SubmittedOn(),
		ApprovedBy:          r.ApprovedBy(),
		ApprovedOn:          r.ApprovedOn(),
		RejectedBy:          r.RejectedBy(),
		RejectedOn:          r.RejectedOn(),
		Variations:          variations,
	}
}

// orNow returns t, or the current UTC time when t is zero.
func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
