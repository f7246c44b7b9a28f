package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bibbank/bib/pkg/money"
	"github.com/bibbank/bib/services/lending-service/internal/domain/event"
	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
)

// ---------------------------------------------------------------------------
// Loan aggregate root
// ---------------------------------------------------------------------------

// Loan is an immutable aggregate. Mutations return a new copy. It exclusively owns its
// installments, transactions and the term variations merged into its terms.
type Loan struct {
	id                string
	tenantID          string
	borrowerAccountID string
	terms             LoanTerms
	status            valueobject.LoanStatus
	disbursedOn       time.Time
	installments      []Installment
	transactions      []LoanTransaction
	version           int
	createdAt         time.Time
	updatedAt         time.Time
	domainEvents      []event.DomainEvent
}

// NewLoanParams carries the inputs of a disbursement.
type NewLoanParams struct {
	TenantID          string
	BorrowerAccountID string
	Terms             LoanTerms
	DisbursedOn       time.Time
	ExternalID        string
	PaymentDetailID   string
}

// LoanSnapshot is the persisted state of a Loan.
type LoanSnapshot struct {
	ID                string
	TenantID          string
	BorrowerAccountID string
	Terms             LoanTerms
	Status            valueobject.LoanStatus
	DisbursedOn       time.Time
	Installments      []Installment
	Transactions      []LoanTransaction
	Version           int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// NewLoan opens an ACTIVE loan over a freshly generated schedule and books the
// disbursement transaction.
func NewLoan(p NewLoanParams, schedule []Installment, now time.Time) (Loan, error) {
	if p.TenantID == "" {
		return Loan{}, errors.New("tenant ID is required")
	}
	if p.BorrowerAccountID == "" {
		return Loan{}, errors.New("borrower account ID is required")
	}
	if err := p.Terms.Validate(); err != nil {
		return Loan{}, fmt.Errorf("invalid terms: %w", err)
	}
	if len(schedule) == 0 {
		return Loan{}, errors.New("schedule must have at least one installment")
	}
	if !TotalPrincipalDue(schedule).Equal(p.Terms.Principal) {
		return Loan{}, fmt.Errorf("schedule principal %s does not match loan principal %s",
			TotalPrincipalDue(schedule), p.Terms.Principal)
	}

	id := uuid.New().String()
	installments := Renumber(schedule)
	disbursement := LoanTransaction{
		ID:              uuid.New().String(),
		LoanID:          id,
		Type:            valueobject.TransactionDisbursement,
		Date:            p.DisbursedOn,
		Amount:          money.New(p.Terms.Principal, p.Terms.Currency),
		ExternalID:      p.ExternalID,
		PaymentDetailID: p.PaymentDetailID,
		Overpayment:     decimal.Zero,
		CreatedAt:       now,
	}

	loan := Loan{
		id:                id,
		tenantID:          p.TenantID,
		borrowerAccountID: p.BorrowerAccountID,
		terms:             p.Terms,
		status:            valueobject.LoanStatusActive,
		disbursedOn:       p.DisbursedOn,
		installments:      installments,
		transactions:      []LoanTransaction{disbursement},
		version:           1,
		createdAt:         now,
		updatedAt:         now,
	}

	loan.domainEvents = append(loan.domainEvents, event.NewLoanDisbursed(
		id, p.TenantID, p.BorrowerAccountID,
		p.Terms.Principal, p.Terms.Currency.Code(),
		len(installments), p.DisbursedOn, loan.MaturityDate(),
	))

	return loan, nil
}

// ReconstructLoan rebuilds a Loan aggregate from persistence.
func ReconstructLoan(s LoanSnapshot) Loan {
	return Loan{
		id:                s.ID,
		tenantID:          s.TenantID,
		borrowerAccountID: s.BorrowerAccountID,
		terms:             s.Terms,
		status:            s.Status,
		disbursedOn:       s.DisbursedOn,
		installments:      copyInstallments(s.Installments),
		transactions:      copyTransactions(s.Transactions),
		version:           s.Version,
		createdAt:         s.CreatedAt,
		updatedAt:         s.UpdatedAt,
	}
}

// ---------------------------------------------------------------------------
// State transitions
// ---------------------------------------------------------------------------

// Reschedule replaces the schedule and terms after a regeneration.
func (l Loan) Reschedule(
	installments []Installment,
	terms LoanTerms,
	requestID string,
	from time.Time,
	opening decimal.Decimal,
	now time.Time,
) (Loan, error) {
	if !l.status.AcceptsRepayments() {
		return l, valueobject.NewInvalidTransitionError("loan", l.status.String(), "RESCHEDULED")
	}
	next := l
	next.installments = Renumber(installments)
	next.terms = terms
	next.updatedAt = now
	next.domainEvents = copyEvents(l.domainEvents)
	next.domainEvents = append(next.domainEvents, event.NewLoanRescheduled(
		l.id, l.tenantID, requestID, from, len(next.installments), next.MaturityDate(), opening,
	))
	return next, nil
}

// RecordTransaction appends a new repayment-like transaction together with the
// installments it was allocated against.
func (l Loan) RecordTransaction(txn LoanTransaction, installments []Installment, now time.Time) (Loan, error) {
	if !l.status.AcceptsRepayments() {
		return l, fmt.Errorf("transactions can only be recorded on active or delinquent loans: %w",
			valueobject.ErrInvalidStatusTransition)
	}
	if !txn.Type.IsRepaymentLike() {
		return l, fmt.Errorf("unsupported transaction type %s", txn.Type)
	}
	if txn.Amount.Currency().Code() != l.terms.Currency.Code() {
		return l, &money.CurrencyMismatchError{Op: "record", Left: l.terms.Currency.Code(), Right: txn.Amount.Currency().Code()}
	}
	if !txn.Amount.IsPositive() {
		return l, errors.New("transaction amount must be positive")
	}

	next := l
	next.transactions = append(copyTransactions(l.transactions), txn)
	next.installments = Renumber(installments)
	next.updatedAt = now
	next.domainEvents = copyEvents(l.domainEvents)
	next.domainEvents = append(next.domainEvents, event.NewRepaymentReceived(
		l.id, l.tenantID, txn.ID, string(txn.Type),
		txn.Amount.Amount(), txn.Amount.Currency().Code(), txn.Date, next.OutstandingPrincipal(),
	))
	return next.settle(now), nil
}

// ApplyReplay installs the installments and transactions produced by replay.
func (l Loan) ApplyReplay(installments []Installment, transactions []LoanTransaction, changed ChangedTransactionDetail, now time.Time) Loan {
	next := l
	next.installments = Renumber(installments)
	next.transactions = copyTransactions(transactions)
	next.updatedAt = now
	next.domainEvents = copyEvents(l.domainEvents)
	if !changed.IsEmpty() {
		next.domainEvents = append(next.domainEvents, event.NewTransactionsReplaced(l.id, l.tenantID, changed.Mapping()))
	}
	return next.settle(now)
}

// settle moves the loan to PAID_OFF once every obligation is met.
func (l Loan) settle(now time.Time) Loan {
	if !l.status.AcceptsRepayments() || len(l.installments) == 0 {
		return l
	}
	for _, i := range l.installments {
		if !i.ObligationsMet {
			return l
		}
	}
	l.status = valueobject.LoanStatusPaidOff
	l.domainEvents = append(l.domainEvents, event.NewLoanPaidOff(l.id, l.tenantID, now))
	return l
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// InstallmentDueOn returns the installment falling due on date.
func (l Loan) InstallmentDueOn(date time.Time) (Installment, bool) {
	for _, i := range l.installments {
		if i.DueDate.Equal(date) {
			return i, true
		}
	}
	return Installment{}, false
}

// LastTransactionDate returns the date of the latest non-reversed transaction.
func (l Loan) LastTransactionDate() (time.Time, bool) {
	var (
		last  time.Time
		found bool
	)
	for _, t := range l.transactions {
		if t.Reversed {
			continue
		}
		if !found || t.Date.After(last) {
			last, found = t.Date, true
		}
	}
	return last, found
}

// OutstandingPrincipal is the principal still due across all installments.
func (l Loan) OutstandingPrincipal() decimal.Decimal {
	total := decimal.Zero
	for _, i := range l.installments {
		total = total.Add(i.PrincipalOutstanding())
	}
	return total
}

// MaturityDate is the due date of the last installment.
func (l Loan) MaturityDate() time.Time {
	if len(l.installments) == 0 {
		return time.Time{}
	}
	return l.installments[len(l.installments)-1].DueDate
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

func (l Loan) ID() string                        { return l.id }
func (l Loan) TenantID() string                  { return l.tenantID }
func (l Loan) BorrowerAccountID() string         { return l.borrowerAccountID }
func (l Loan) Terms() LoanTerms                  { return l.terms }
func (l Loan) Currency() money.Currency          { return l.terms.Currency }
func (l Loan) Principal() money.Money            { return money.New(l.terms.Principal, l.terms.Currency) }
func (l Loan) Status() valueobject.LoanStatus    { return l.status }
func (l Loan) DisbursedOn() time.Time            { return l.disbursedOn }
func (l Loan) Version() int                      { return l.version }
func (l Loan) CreatedAt() time.Time              { return l.createdAt }
func (l Loan) UpdatedAt() time.Time              { return l.updatedAt }
func (l Loan) DomainEvents() []event.DomainEvent { return l.domainEvents }

// Installments returns a copy of the schedule.
func (l Loan) Installments() []Installment { return copyInstallments(l.installments) }

// Transactions returns a copy of the transaction history.
func (l Loan) Transactions() []LoanTransaction { return copyTransactions(l.transactions) }

// ClearEvents returns a copy with an empty event list.
func (l Loan) ClearEvents() Loan {
	next := l
	next.domainEvents = nil
	return next
}

func copyEvents(evts []event.DomainEvent) []event.DomainEvent {
	if evts == nil {
		return nil
	}
	out := make([]event.DomainEvent, len(evts))
	copy(out, evts)
	return out
}
