package service

import (
	"fmt"
	"time"

	"github.com/bibbank/bib/services/lending-service/internal/domain/model"
	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
)

// ReplayResult is the outcome of re-allocating a loan's history against its schedule.
type ReplayResult struct {
	Installments []model.Installment
	Transactions []model.LoanTransaction
	Changed      model.ChangedTransactionDetail
}

// TransactionReprocessor re-allocates every non-reversed repayment against the current
// schedule in chronological order. A repayment whose allocation is unchanged is kept; a
// changed one is reversed and replaced. Transactions are never dropped.
type TransactionReprocessor struct {
	newID func() string
	now   func() time.Time
}

// NewTransactionReprocessor returns a reprocessor using newID for replacement ids.
func NewTransactionReprocessor(newID func() string, now func() time.Time) *TransactionReprocessor {
	return &TransactionReprocessor{newID: newID, now: now}
}

// Reprocess replays the loan's transactions against its installments.
func (p *TransactionReprocessor) Reprocess(loan model.Loan) (ReplayResult, error) {
	strategy, err := AllocationStrategyFor(loan.Terms().ProcessingStrategy)
	if err != nil {
		return ReplayResult{}, err
	}

	installments := loan.Installments()
	for i := range installments {
		installments[i] = installments[i].ResetPaid()
	}

	var (
		out     []model.LoanTransaction
		changed model.ChangedTransactionDetail
	)
	for _, txn := range model.SortTransactions(loan.Transactions()) {
		if txn.Reversed || txn.Type != valueobject.TransactionRepayment {
			out = append(out, txn)
			continue
		}
		if txn.Amount.Currency().Code() != loan.Currency().Code() {
			return ReplayResult{}, fmt.Errorf("replay transaction %s: currency %s on a %s loan",
				txn.ID, txn.Amount.Currency().Code(), loan.Currency().Code())
		}

		updated, mappings, overpayment := strategy.Allocate(installments, txn.Amount.Amount(), txn.Date)
		installments = updated

		if !txn.IsAllocated() {
			// A backdated repayment recorded ahead of this replay.
			txn.Mappings = mappings
			txn.Overpayment = overpayment
			out = append(out, txn)
			continue
		}
		if txn.SameAllocation(mappings, overpayment) {
			out = append(out, txn)
			continue
		}

		now := p.now()
		replacement := txn.Replacement(p.newID(), mappings, overpayment, now)
		out = append(out, txn.Reverse(now), replacement)
		changed.Record(txn.ID, replacement)
	}

	return ReplayResult{
		Installments: installments,
		Transactions: out,
		Changed:      changed,
	}, nil
}

// Allocate allocates a single new repayment against the loan's current installments
// without touching its history.
func (p *TransactionReprocessor) Allocate(loan model.Loan, txn model.LoanTransaction) ([]model.Installment, model.LoanTransaction, error) {
	strategy, err := AllocationStrategyFor(loan.Terms().ProcessingStrategy)
	if err != nil {
		return nil, txn, err
	}
	if txn.Type != valueobject.TransactionRepayment {
		return loan.Installments(), txn, nil
	}
	installments, mappings, overpayment := strategy.Allocate(loan.Installments(), txn.Amount.Amount(), txn.Date)
	txn.Mappings = mappings
	txn.Overpayment = overpayment
	return installments, txn, nil
}
