package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Request DTOs
// ---------------------------------------------------------------------------

// DisburseLoanRequest carries the terms of a new loan.
type DisburseLoanRequest struct {
	TenantID           string          `json:"tenant_id"`
	BorrowerAccountID  string          `json:"borrower_account_id"`
	Principal          decimal.Decimal `json:"principal"`
	Currency           string          `json:"currency"`
	AnnualInterestRate decimal.Decimal `json:"annual_interest_rate"`
	InterestMethod     string          `json:"interest_method"`
	AmortizationMethod string          `json:"amortization_method"`
	Frequency          string          `json:"frequency"`
	RepayEvery         int             `json:"repay_every"`
	NumberOfRepayments int             `json:"number_of_repayments"`
	FirstRepaymentDate *time.Time      `json:"first_repayment_date,omitempty"`
	GraceOnPrincipal   int             `json:"grace_on_principal,omitempty"`
	GraceOnInterest    int             `json:"grace_on_interest,omitempty"`
	ProcessingStrategy string          `json:"processing_strategy,omitempty"`
	RoundingMode       string          `json:"rounding_mode,omitempty"`
	DisbursedOn        time.Time       `json:"disbursed_on"`
	ExternalID         string          `json:"external_id,omitempty"`
}

// PaymentDetailRequest describes the payment channel of a repayment.
type PaymentDetailRequest struct {
	PaymentType   string `json:"payment_type"`
	AccountNumber string `json:"account_number,omitempty"`
	CheckNumber   string `json:"check_number,omitempty"`
	ReceiptNumber string `json:"receipt_number,omitempty"`
	RoutingCode   string `json:"routing_code,omitempty"`
}

// MakePaymentRequest carries the data for a loan repayment.
type MakePaymentRequest struct {
	TenantID        string                `json:"tenant_id"`
	LoanID          string                `json:"loan_id"`
	Amount          decimal.Decimal       `json:"amount"`
	Currency        string                `json:"currency"`
	TransactionDate time.Time             `json:"transaction_date"`
	ExternalID      string                `json:"external_id,omitempty"`
	PaymentDetail   *PaymentDetailRequest `json:"payment_detail,omitempty"`
}

// GetLoanRequest identifies a loan to retrieve.
type GetLoanRequest struct {
	TenantID string `json:"tenant_id"`
	LoanID   string `json:"loan_id"`
}

// CreateRestructureRequest proposes new terms for a loan from FromDate on.
type CreateRestructureRequest struct {
	TenantID            string           `json:"tenant_id"`
	LoanID              string           `json:"loan_id"`
	FromDate            time.Time        `json:"from_date"`
	NewDueDate          *time.Time       `json:"new_due_date,omitempty"`
	DueDateSpecific     bool             `json:"due_date_specific,omitempty"`
	NewInterestRate     *decimal.Decimal `json:"new_interest_rate,omitempty"`
	GraceOnPrincipal    int              `json:"grace_on_principal,omitempty"`
	GraceOnInterest     int              `json:"grace_on_interest,omitempty"`
	ExtraTerms          int              `json:"extra_terms,omitempty"`
	AdjustedMaturity    *time.Time       `json:"adjusted_maturity,omitempty"`
	RecalculateInterest bool             `json:"recalculate_interest"`
	ReasonCode          string           `json:"reason_code"`
	Comment             string           `json:"comment,omitempty"`
	SubmittedBy         string           `json:"submitted_by"`
	SubmittedOn         time.Time        `json:"submitted_on"`
}

// DecideRestructureRequest approves or rejects a pending restructure request.
type DecideRestructureRequest struct {
	TenantID  string    `json:"tenant_id"`
	RequestID string    `json:"request_id"`
	DecidedBy string    `json:"decided_by"`
	DecidedOn time.Time `json:"decided_on"`
}

// GetRestructureRequest identifies a restructure request.
type GetRestructureRequest struct {
	TenantID  string `json:"tenant_id"`
	RequestID string `json:"request_id"`
}

// LiquidationRequest pays down principal from FromDate and regenerates the remaining
// schedule over the same number of installments.
type LiquidationRequest struct {
	TenantID      string                `json:"tenant_id"`
	LoanID        string                `json:"loan_id"`
	FromDate      time.Time             `json:"from_date"`
	Amount        decimal.Decimal       `json:"amount"`
	Currency      string                `json:"currency"`
	ExternalID    string                `json:"external_id,omitempty"`
	PaymentDetail *PaymentDetailRequest `json:"payment_detail,omitempty"`
}

// ---------------------------------------------------------------------------
// Response DTOs
// ---------------------------------------------------------------------------

// InstallmentResponse represents one schedule installment.
type InstallmentResponse struct {
	Number           int             `json:"number"`
	FromDate         time.Time       `json:"from_date"`
	DueDate          time.Time       `json:"due_date"`
	PrincipalDue     decimal.Decimal `json:"principal_due"`
	InterestDue      decimal.Decimal `json:"interest_due"`
	FeeDue           decimal.Decimal `json:"fee_due"`
	PenaltyDue       decimal.Decimal `json:"penalty_due"`
	TotalDue         decimal.Decimal `json:"total_due"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	ObligationsMet   bool            `json:"obligations_met"`
	ObligationsMetOn *time.Time      `json:"obligations_met_on,omitempty"`
}

// TransactionResponse represents a loan transaction.
type TransactionResponse struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Date       time.Time       `json:"date"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Reversed   bool            `json:"reversed"`
	ExternalID string          `json:"external_id,omitempty"`
	ReplacesID string          `json:"replaces_id,omitempty"`
}

// LoanResponse is the external representation of a loan.
type LoanResponse struct {
	ID                   string                `json:"id"`
	TenantID             string                `json:"tenant_id"`
	BorrowerAccountID    string                `json:"borrower_account_id"`
	Principal            decimal.Decimal       `json:"principal"`
	Currency             string                `json:"currency"`
	AnnualInterestRate   decimal.Decimal       `json:"annual_interest_rate"`
	NumberOfRepayments   int                   `json:"number_of_repayments"`
	Status               string                `json:"status"`
	DisbursedOn          time.Time             `json:"disbursed_on"`
	MaturityDate         time.Time             `json:"maturity_date"`
	OutstandingPrincipal decimal.Decimal       `json:"outstanding_principal"`
	Version              int                   `json:"version"`
	Schedule             []InstallmentResponse `json:"schedule,omitempty"`
	Transactions         []TransactionResponse `json:"transactions,omitempty"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// ScheduleResponse is a regenerated schedule, persisted or previewed.
type ScheduleResponse struct {
	LoanID           string                `json:"loan_id"`
	FromDate         time.Time             `json:"from_date"`
	MaturityDate     time.Time             `json:"maturity_date"`
	Currency         string                `json:"currency"`
	OpeningPrincipal decimal.Decimal       `json:"opening_principal"`
	TotalPrincipal   decimal.Decimal       `json:"total_principal"`
	TotalInterest    decimal.Decimal       `json:"total_interest"`
	Regenerated      int                   `json:"regenerated"`
	Installments     []InstallmentResponse `json:"installments"`
}

// TermVariationResponse represents a term variation.
type TermVariationResponse struct {
	ID                    string           `json:"id"`
	Type                  string           `json:"type"`
	ApplicableFrom        time.Time        `json:"applicable_from"`
	DecimalValue          *decimal.Decimal `json:"decimal_value,omitempty"`
	DateValue             *time.Time       `json:"date_value,omitempty"`
	SpecificToInstallment bool             `json:"specific_to_installment"`
	Active                bool             `json:"active"`
	ParentID              string           `json:"parent_id,omitempty"`
}

// RestructureRequestResponse is the external representation of a restructure request.
type RestructureRequestResponse struct {
	ID                  string                  `json:"id"`
	LoanID              string                  `json:"loan_id"`
	Status              string                  `json:"status"`
	RescheduleFromDate  time.Time               `json:"reschedule_from_date"`
	AdjustedDueDate     *time.Time              `json:"adjusted_due_date,omitempty"`
	RecalculateInterest bool                    `json:"recalculate_interest"`
	ReasonCode          string                  `json:"reason_code"`
	Comment             string                  `json:"comment,omitempty"`
	SubmittedBy         string                  `json:"submitted_by"`
	SubmittedOn         time.Time               `json:"submitted_on"`
	ApprovedBy          string                  `json:"approved_by,omitempty"`
	ApprovedOn          *time.Time              `json:"approved_on,omitempty"`
	RejectedBy          string                  `json:"rejected_by,omitempty"`
	RejectedOn          *time.Time              `json:"rejected_on,omitempty"`
	Variations          []TermVariationResponse `json:"variations"`
}

// ApproveRestructureResponse is the outcome of an approval.
type ApproveRestructureResponse struct {
	Request      RestructureRequestResponse `json:"request"`
	Schedule     ScheduleResponse           `json:"schedule"`
	Replacements map[string]string          `json:"replacements,omitempty"`
}

// PaymentResponse is the outcome of a repayment.
type PaymentResponse struct {
	LoanID               string            `json:"loan_id"`
	TransactionID        string            `json:"transaction_id"`
	AmountPaid           decimal.Decimal   `json:"amount_paid"`
	OutstandingPrincipal decimal.Decimal   `json:"outstanding_principal"`
	LoanStatus           string            `json:"loan_status"`
	Replacements         map[string]string `json:"replacements,omitempty"`
}

// LiquidationResponse is the outcome of a confirmed part liquidation.
type LiquidationResponse struct {
	LoanID        string            `json:"loan_id"`
	TransactionID string            `json:"transaction_id"`
	Schedule      ScheduleResponse  `json:"schedule"`
	Replacements  map[string]string `json:"replacements,omitempty"`
}
