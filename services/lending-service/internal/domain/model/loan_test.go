package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bib/pkg/money"
	"github.com/bibbank/bib/pkg/testutil"
	"github.com/bibbank/bib/services/lending-service/internal/domain/event"
	"github.com/bibbank/bib/services/lending-service/internal/domain/model"
	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
)

// flatSchedule builds n monthly installments of equal principal and no interest.
func flatSchedule(start time.Time, n int, principal string) []model.Installment {
	out := make([]model.Installment, n)
	prev := start
	for i := 0; i < n; i++ {
		due := start.AddDate(0, i+1, 0)
		out[i] = model.Installment{
			Number:       n - i, // deliberately out of order
			FromDate:     prev,
			DueDate:      due,
			PrincipalDue: testutil.Dec(principal),
		}
		prev = due
	}
	return out
}

func newTestLoan(t *testing.T) model.Loan {
	t.Helper()
	terms := monthlyTerms("3000", 3)
	loan, err := model.NewLoan(model.NewLoanParams{
		TenantID:          testutil.TestTenantID,
		BorrowerAccountID: testutil.TestAccountID,
		Terms:             terms,
		DisbursedOn:       testutil.Date(2025, 1, 1),
		ExternalID:        "disb-1",
	}, flatSchedule(testutil.Date(2025, 1, 1), 3, "1000"), testutil.Date(2025, 1, 1))
	require.NoError(t, err)
	return loan
}

func TestLoan_Creation(t *testing.T) {
	loan := newTestLoan(t)

	assert.NotEmpty(t, loan.ID())
	assert.Equal(t, testutil.TestTenantID, loan.TenantID())
	assert.True(t, loan.Status().Equal(valueobject.LoanStatusActive))
	assert.Equal(t, 1, loan.Version())
	testutil.AssertDecimalEqual(t, "3000", loan.OutstandingPrincipal())
	assert.Equal(t, testutil.Date(2025, 4, 1), loan.MaturityDate())

	installments := loan.Installments()
	require.Len(t, installments, 3)
	for i, inst := range installments {
		assert.Equal(t, i+1, inst.Number)
	}

	txns := loan.Transactions()
	require.Len(t, txns, 1)
	assert.Equal(t, valueobject.TransactionDisbursement, txns[0].Type)
	assert.Equal(t, "disb-1", txns[0].ExternalID)

	require.Len(t, loan.DomainEvents(), 1)
	assert.Equal(t, "lending.loan.disbursed", loan.DomainEvents()[0].EventType())
}

func TestLoan_NewLoanRejectsMismatchedSchedule(t *testing.T) {
	_, err := model.NewLoan(model.NewLoanParams{
		TenantID:          testutil.TestTenantID,
		BorrowerAccountID: testutil.TestAccountID,
		Terms:             monthlyTerms("3000", 3),
		DisbursedOn:       testutil.Date(2025, 1, 1),
	}, flatSchedule(testutil.Date(2025, 1, 1), 3, "900"), time.Now())
	assert.Error(t, err)
}

func TestLoan_InstallmentDueOn(t *testing.T) {
	loan := newTestLoan(t)

	inst, ok := loan.InstallmentDueOn(testutil.Date(2025, 3, 1))
	require.True(t, ok)
	assert.Equal(t, 2, inst.Number)

	_, ok = loan.InstallmentDueOn(testutil.Date(2025, 3, 2))
	assert.False(t, ok)
}

func TestLoan_LastTransactionDateIgnoresReversed(t *testing.T) {
	loan := newTestLoan(t)
	txns := loan.Transactions()
	late := model.LoanTransaction{
		ID:     "late",
		Type:   valueobject.TransactionRepayment,
		Date:   testutil.Date(2025, 3, 1),
		Amount: money.New(testutil.Dec("100"), money.USD),
	}.Reverse(testutil.Date(2025, 3, 2))
	txns = append(txns, late)

	loan = model.ReconstructLoan(model.LoanSnapshot{
		ID:           loan.ID(),
		TenantID:     loan.TenantID(),
		Terms:        loan.Terms(),
		Status:       loan.Status(),
		DisbursedOn:  loan.DisbursedOn(),
		Installments: loan.Installments(),
		Transactions: txns,
		Version:      1,
	})

	last, ok := loan.LastTransactionDate()
	require.True(t, ok)
	assert.Equal(t, testutil.Date(2025, 1, 1), last)
}

func TestLoan_RecordTransaction(t *testing.T) {
	loan := newTestLoan(t).ClearEvents()

	installments := loan.Installments()
	installments[0].PrincipalPaid = testutil.Dec("1000")
	installments[0].ObligationsMet = true
	txn := model.LoanTransaction{
		ID:     "r1",
		LoanID: loan.ID(),
		Type:   valueobject.TransactionRepayment,
		Date:   testutil.Date(2025, 2, 1),
		Amount: money.New(testutil.Dec("1000"), money.USD),
	}

	updated, err := loan.RecordTransaction(txn, installments, testutil.Date(2025, 2, 1))
	require.NoError(t, err)

	testutil.AssertDecimalEqual(t, "2000", updated.OutstandingPrincipal())
	assert.Len(t, updated.Transactions(), 2)
	require.Len(t, updated.DomainEvents(), 1)
	evt, ok := updated.DomainEvents()[0].(event.RepaymentReceived)
	require.True(t, ok)
	testutil.AssertDecimalEqual(t, "2000", evt.OutstandingPrincipal)

	// The receiver is untouched.
	assert.Len(t, loan.Transactions(), 1)
	testutil.AssertDecimalEqual(t, "3000", loan.OutstandingPrincipal())
}

func TestLoan_RecordTransactionCurrencyMismatch(t *testing.T) {
	loan := newTestLoan(t)
	txn := model.LoanTransaction{
		ID:     "r1",
		Type:   valueobject.TransactionRepayment,
		Date:   testutil.Date(2025, 2, 1),
		Amount: money.New(testutil.Dec("10"), money.EUR),
	}

	_, err := loan.RecordTransaction(txn, loan.Installments(), time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, money.ErrCurrencyMismatch))
}

func TestLoan_SettlesWhenAllObligationsMet(t *testing.T) {
	loan := newTestLoan(t).ClearEvents()
	installments := loan.Installments()
	for i := range installments {
		installments[i].PrincipalPaid = installments[i].PrincipalDue
		installments[i].ObligationsMet = true
	}

	updated := loan.ApplyReplay(installments, loan.Transactions(), model.ChangedTransactionDetail{}, time.Now())

	assert.True(t, updated.Status().Equal(valueobject.LoanStatusPaidOff))
	require.Len(t, updated.DomainEvents(), 1)
	assert.Equal(t, "lending.loan.paid_off", updated.DomainEvents()[0].EventType())

	_, err := updated.Reschedule(installments, updated.Terms(), "req", testutil.Date(2025, 3, 1), decimal.Zero, time.Now())
	assert.True(t, errors.Is(err, valueobject.ErrInvalidStatusTransition))
}

func TestLoan_ApplyReplayRecordsReplacements(t *testing.T) {
	loan := newTestLoan(t).ClearEvents()
	var changed model.ChangedTransactionDetail
	changed.Record("old", model.LoanTransaction{ID: "new"})

	updated := loan.ApplyReplay(loan.Installments(), loan.Transactions(), changed, time.Now())

	require.Len(t, updated.DomainEvents(), 1)
	evt, ok := updated.DomainEvents()[0].(event.TransactionsReplaced)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"old": "new"}, evt.Replacements)
}
