package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Deposit Product DTOs ---

// CreateDepositProductRequest is the input DTO for creating a deposit product.
type CreateDepositProductRequest struct {
	TenantID             uuid.UUID `json:"tenant_id"`
	Name                 string    `json:"name"`
	Currency             string    `json:"currency"`
	AnnualRateBps        int       `json:"annual_rate_bps"`
	TermMonths           int       `json:"term_months"`
	PreClosurePenaltyBps int       `json:"pre_closure_penalty_bps"`
}

// DeactivateDepositProductRequest stops a product from taking new deposits.
type DeactivateDepositProductRequest struct {
	ProductID uuid.UUID `json:"product_id"`
}

// DepositProductResponse is the output DTO for a deposit product.
type DepositProductResponse struct {
	ID                   uuid.UUID `json:"id"`
	TenantID             uuid.UUID `json:"tenant_id"`
	Name                 string    `json:"name"`
	Currency             string    `json:"currency"`
	AnnualRateBps        int       `json:"annual_rate_bps"`
	TermMonths           int       `json:"term_months"`
	PreClosurePenaltyBps int       `json:"pre_closure_penalty_bps"`
	IsActive             bool      `json:"is_active"`
	Version              int       `json:"version"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// --- Deposit Account DTOs ---

// OpenDepositAccountRequest is the input DTO for a deposit application.
type OpenDepositAccountRequest struct {
	TenantID            uuid.UUID       `json:"tenant_id"`
	ProductID           uuid.UUID       `json:"product_id"`
	Principal           decimal.Decimal `json:"principal"`
	Currency            string          `json:"currency"`
	SavingsAccountID    *uuid.UUID      `json:"savings_account_id,omitempty"`
	MaturityInstruction string          `json:"maturity_instruction"`
}

// ActivateDepositAccountRequest records receipt of funds.
type ActivateDepositAccountRequest struct {
	AccountID   uuid.UUID `json:"account_id"`
	ActivatedOn time.Time `json:"activated_on"`
}

// DepositAccountResponse is the output DTO for a deposit account.
type DepositAccountResponse struct {
	ID                  uuid.UUID       `json:"id"`
	TenantID            uuid.UUID       `json:"tenant_id"`
	ProductID           uuid.UUID       `json:"product_id"`
	SavingsAccountID    *uuid.UUID      `json:"savings_account_id,omitempty"`
	Principal           decimal.Decimal `json:"principal"`
	Currency            string          `json:"currency"`
	AccruedInterest     decimal.Decimal `json:"accrued_interest"`
	PostedInterest      decimal.Decimal `json:"posted_interest"`
	AnnualRateBps       int             `json:"annual_rate_bps"`
	TermMonths          int             `json:"term_months"`
	MaturityInstruction string          `json:"maturity_instruction"`
	Status              string          `json:"status"`
	Period              int             `json:"period"`
	SubmittedOn         time.Time       `json:"submitted_on"`
	ActivatedOn         *time.Time      `json:"activated_on,omitempty"`
	MaturityDate        *time.Time      `json:"maturity_date,omitempty"`
	LastAccrualDate     *time.Time      `json:"last_accrual_date,omitempty"`
	ClosedOn            *time.Time      `json:"closed_on,omitempty"`
	Version             int             `json:"version"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// --- Closure DTOs ---

// PrematureCloseRequest closes an active deposit before maturity.
type PrematureCloseRequest struct {
	AccountID uuid.UUID `json:"account_id"`
	ClosedOn  time.Time `json:"closed_on"`
}

// PrematureCloseResponse reports the penalized payout.
type PrematureCloseResponse struct {
	Account           DepositAccountResponse `json:"account"`
	Payout            decimal.Decimal        `json:"payout"`
	Interest          decimal.Decimal        `json:"interest"`
	ForfeitedInterest decimal.Decimal        `json:"forfeited_interest"`
}

// CloseOnMaturityRequest pays out a matured deposit regardless of its instruction.
type CloseOnMaturityRequest struct {
	AccountID uuid.UUID `json:"account_id"`
	ClosedOn  time.Time `json:"closed_on"`
}

// MaturityPayout describes what happened to one matured deposit.
type MaturityPayout struct {
	AccountID         uuid.UUID       `json:"account_id"`
	Payout            decimal.Decimal `json:"payout"`
	Currency          string          `json:"currency"`
	RolledOver        bool            `json:"rolled_over"`
	TransferToSavings bool            `json:"transfer_to_savings"`
	DestinationID     *uuid.UUID      `json:"destination_account_id,omitempty"`
}

// --- Batch DTOs ---

// AccrueInterestRequest is the input DTO for the daily accrual run.
type AccrueInterestRequest struct {
	TenantID uuid.UUID `json:"tenant_id"`
	AsOf     time.Time `json:"as_of"`
}

// AccountFailure names an account a batch skipped and why.
type AccountFailure struct {
	AccountID uuid.UUID `json:"account_id"`
	Code      string    `json:"code,omitempty"`
	Error     string    `json:"error"`
}

// AccrueInterestResponse is the output DTO for the daily accrual run. Totals are keyed
// by currency code.
type AccrueInterestResponse struct {
	AccountsProcessed int                        `json:"accounts_processed"`
	AccountsMatured   int                        `json:"accounts_matured"`
	TotalAccrued      map[string]decimal.Decimal `json:"total_accrued"`
	TotalPosted       map[string]decimal.Decimal `json:"total_posted"`
	Failures          []AccountFailure           `json:"failures,omitempty"`
}

// ProcessMaturityRequest applies maturity instructions for a tenant's matured deposits.
type ProcessMaturityRequest struct {
	TenantID    uuid.UUID `json:"tenant_id"`
	ProcessedOn time.Time `json:"processed_on"`
}

// ProcessMaturityResponse is the output DTO for a maturity run.
type ProcessMaturityResponse struct {
	Payouts  []MaturityPayout `json:"payouts"`
	Failures []AccountFailure `json:"failures,omitempty"`
}

// --- Query DTOs ---

// GetDepositAccountRequest is the input DTO for fetching a deposit account.
type GetDepositAccountRequest struct {
	AccountID uuid.UUID `json:"account_id"`
}
