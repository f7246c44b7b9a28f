package event

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/pkg/events"
)

// DomainEvent is an alias for the shared pkg/events.DomainEvent interface.
type DomainEvent = events.DomainEvent

const (
	aggregateLoan        = "Loan"
	aggregateRestructure = "RestructureRequest"
)

// ---------------------------------------------------------------------------
// Loan events
// ---------------------------------------------------------------------------

// LoanDisbursed is raised when a loan is opened and its first schedule generated.
type LoanDisbursed struct {
	events.BaseEvent
	BorrowerAccount string          `json:"borrower_account_id"`
	Principal       decimal.Decimal `json:"principal"`
	Currency        string          `json:"currency"`
	Installments    int             `json:"installments"`
	DisbursedOn     time.Time       `json:"disbursed_on"`
	MaturityDate    time.Time       `json:"maturity_date"`
}

func NewLoanDisbursed(
	loanID, tenantID, borrowerAccount string,
	principal decimal.Decimal, currency string,
	installments int, disbursedOn, maturity time.Time,
) LoanDisbursed {
	return LoanDisbursed{
		BaseEvent:       events.NewBaseEvent("lending.loan.disbursed", loanID, aggregateLoan, tenantID),
		BorrowerAccount: borrowerAccount,
		Principal:       principal,
		Currency:        currency,
		Installments:    installments,
		DisbursedOn:     disbursedOn,
		MaturityDate:    maturity,
	}
}

// RepaymentReceived is raised when a repayment or part liquidation is booked.
type RepaymentReceived struct {
	events.BaseEvent
	TransactionID        string          `json:"transaction_id"`
	TransactionType      string          `json:"transaction_type"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
	TransactionDate      time.Time       `json:"transaction_date"`
	OutstandingPrincipal decimal.Decimal `json:"outstanding_principal"`
}

func NewRepaymentReceived(
	loanID, tenantID, txnID, txnType string,
	amount decimal.Decimal, currency string,
	date time.Time, outstanding decimal.Decimal,
) RepaymentReceived {
	return RepaymentReceived{
		BaseEvent:            events.NewBaseEvent("lending.loan.repayment_received", loanID, aggregateLoan, tenantID),
		TransactionID:        txnID,
		TransactionType:      txnType,
		Amount:               amount,
		Currency:             currency,
		TransactionDate:      date,
		OutstandingPrincipal: outstanding,
	}
}

// LoanRescheduled is raised when a schedule is regenerated from a cut-over date.
type LoanRescheduled struct {
	events.BaseEvent
	RequestID      string          `json:"request_id,omitempty"`
	FromDate       time.Time       `json:"from_date"`
	Installments   int             `json:"installments"`
	MaturityDate   time.Time       `json:"maturity_date"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

func NewLoanRescheduled(
	loanID, tenantID, requestID string,
	from time.Time, installments int, maturity time.Time, opening decimal.Decimal,
) LoanRescheduled {
	return LoanRescheduled{
		BaseEvent:      events.NewBaseEvent("lending.loan.rescheduled", loanID, aggregateLoan, tenantID),
		RequestID:      requestID,
		FromDate:       from,
		Installments:   installments,
		MaturityDate:   maturity,
		OpeningBalance: opening,
	}
}

// TransactionsReplaced is raised when replay reversed and replaced transactions.
type TransactionsReplaced struct {
	events.BaseEvent
	Replacements map[string]string `json:"replacements"`
}

func NewTransactionsReplaced(loanID, tenantID string, replacements map[string]string) TransactionsReplaced {
	return TransactionsReplaced{
		BaseEvent:    events.NewBaseEvent("lending.loan.transactions_replaced", loanID, aggregateLoan, tenantID),
		Replacements: replacements,
	}
}

// LoanPaidOff is raised when every installment obligation is met.
type LoanPaidOff struct {
	events.BaseEvent
	PaidOffOn time.Time `json:"paid_off_on"`
}

func NewLoanPaidOff(loanID, tenantID string, on time.Time) LoanPaidOff {
	return LoanPaidOff{
		BaseEvent: events.NewBaseEvent("lending.loan.paid_off", loanID, aggregateLoan, tenantID),
		PaidOffOn: on,
	}
}

// ---------------------------------------------------------------------------
// Restructure request events
// ---------------------------------------------------------------------------

// RestructureRequested is raised when a restructure request is submitted.
type RestructureRequested struct {
	events.BaseEvent
	LoanID          string     `json:"loan_id"`
	FromDate        time.Time  `json:"from_date"`
	AdjustedDueDate *time.Time `json:"adjusted_due_date,omitempty"`
	Variations      int        `json:"variations"`
	SubmittedBy     string     `json:"submitted_by"`
}

func NewRestructureRequested(
	requestID, tenantID, loanID string,
	from time.Time, adjusted *time.Time, variations int, by string,
) RestructureRequested {
	return RestructureRequested{
		BaseEvent:       events.NewBaseEvent("lending.restructure.requested", requestID, aggregateRestructure, tenantID),
		LoanID:          loanID,
		FromDate:        from,
		AdjustedDueDate: adjusted,
		Variations:      variations,
		SubmittedBy:     by,
	}
}

// RestructureDecided is raised when a restructure request is approved or rejected.
type RestructureDecided struct {
	events.BaseEvent
	LoanID    string    `json:"loan_id"`
	Decision  string    `json:"decision"`
	DecidedBy string    `json:"decided_by"`
	DecidedOn time.Time `json:"decided_on"`
	FromDate  time.Time `json:"from_date"`
}

func NewRestructureApproved(requestID, tenantID, loanID, by string, on, from time.Time) RestructureDecided {
	return RestructureDecided{
		BaseEvent: events.NewBaseEvent("lending.restructure.approved", requestID, aggregateRestructure, tenantID),
		LoanID:    loanID,
		Decision:  "APPROVED",
		DecidedBy: by,
		DecidedOn: on,
		FromDate:  from,
	}
}

func NewRestructureRejected(requestID, tenantID, loanID, by string, on, from time.Time) RestructureDecided {
	return RestructureDecided{
		BaseEvent: events.NewBaseEvent("lending.restructure.rejected", requestID, aggregateRestructure, tenantID),
		LoanID:    loanID,
		Decision:  "REJECTED",
		DecidedBy: by,
		DecidedOn: on,
		FromDate:  from,
	}
}
