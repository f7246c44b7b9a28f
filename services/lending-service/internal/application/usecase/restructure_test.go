package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bib/pkg/testutil"
	"github.com/bibbank/bib/services/lending-service/internal/application/dto"
	"github.com/bibbank/bib/services/lending-service/internal/application/usecase"
	"github.com/bibbank/bib/services/lending-service/internal/domain/model"
	"github.com/bibbank/bib/services/lending-service/internal/domain/service"
	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
)

var rescheduleFrom = testutil.Date(2025, 6, 1)

func extendTwoTerms(loan model.Loan) dto.CreateRestructureRequest {
	return dto.CreateRestructureRequest{
		TenantID:    testutil.TestTenantID,
		LoanID:      loan.ID(),
		FromDate:    rescheduleFrom,
		ExtraTerms:  2,
		ReasonCode:  "HARDSHIP",
		SubmittedBy: testutil.TestUserID,
		SubmittedOn: testutil.Date(2025, 5, 20),
	}
}

// ---------------------------------------------------------------------------
// CreateRestructureRequest
// ---------------------------------------------------------------------------

func TestCreateRestructureRequest_Execute(t *testing.T) {
	newUseCase := func(loan model.Loan, requests *mockRestructureRequestRepository, publisher *mockLendingEventPublisher) *usecase.CreateRestructureRequestUseCase {
		return usecase.NewCreateRestructureRequestUseCase(loanRepoWith(loan), requests, &mockUnitOfWork{},
			publisher, service.NewScheduleEngine())
	}

	t.Run("stores a pending request with inactive variations", func(t *testing.T) {
		loan := zeroRateLoan(t)
		requests := &mockRestructureRequestRepository{}
		publisher := &mockLendingEventPublisher{}

		resp, err := newUseCase(loan, requests, publisher).Execute(context.Background(), extendTwoTerms(loan))

		require.NoError(t, err)
		assert.Equal(t, "PENDING_APPROVAL", resp.Status)
		assert.Equal(t, rescheduleFrom, resp.RescheduleFromDate)
		require.NotNil(t, resp.AdjustedDueDate)
		assert.Equal(t, testutil.Date(2026, 3, 1), *resp.AdjustedDueDate)
		require.Len(t, resp.Variations, 1)
		assert.False(t, resp.Variations[0].Active)

		require.Len(t, requests.savedRequests, 1)
		assert.Equal(t, []string{"lending.restructure.requested"}, publisher.eventTypes())
	})

	t.Run("records the recalculate interest flag", func(t *testing.T) {
		loan := zeroRateLoan(t)
		requests := &mockRestructureRequestRepository{}
		req := extendTwoTerms(loan)
		req.RecalculateInterest = true

		resp, err := newUseCase(loan, requests, &mockLendingEventPublisher{}).Execute(context.Background(), req)

		require.NoError(t, err)
		assert.True(t, resp.RecalculateInterest)
		require.Len(t, requests.savedRequests, 1)
		assert.True(t, requests.savedRequests[0].RecalculateInterest())
	})

	t.Run("keeps an explicit adjusted maturity", func(t *testing.T) {
		loan := zeroRateLoan(t)
		req := extendTwoTerms(loan)
		target := testutil.Date(2026, 4, 1)
		req.AdjustedMaturity = &target

		resp, err := newUseCase(loan, &mockRestructureRequestRepository{}, &mockLendingEventPublisher{}).
			Execute(context.Background(), req)

		require.NoError(t, err)
		assert.Equal(t, target, *resp.AdjustedDueDate)
	})

	t.Run("rejects a second pending request", func(t *testing.T) {
		loan := zeroRateLoan(t)
		existing := pendingRequest(t, loan, service.RestructureTerms{FromDate: rescheduleFrom, ExtraTerms: 1})
		requests := &mockRestructureRequestRepository{
			findPendingFunc: func(_ context.Context, _, _ string) (model.RestructureRequest, bool, error) {
				return existing, true, nil
			},
		}

		_, err := newUseCase(loan, requests, &mockLendingEventPublisher{}).Execute(context.Background(), extendTwoTerms(loan))

		require.Error(t, err)
		assert.True(t, errors.Is(err, valueobject.ErrDuplicateRestructureRequest))
		testutil.AssertErrorCode(t, err, valueobject.CodeDuplicateRestructureRequest)
		assert.Contains(t, err.Error(), existing.ID())
		assert.Empty(t, requests.savedRequests)
	})

	t.Run("rejects a from date before the last transaction", func(t *testing.T) {
		loan := withRepayment(t, zeroRateLoan(t), "pay-1", testutil.Date(2025, 7, 1), "1000")

		_, err := newUseCase(loan, &mockRestructureRequestRepository{}, &mockLendingEventPublisher{}).
			Execute(context.Background(), extendTwoTerms(loan))

		require.Error(t, err)
		assert.True(t, errors.Is(err, valueobject.ErrTemporalOrdering))
	})

	t.Run("rejects a from date with no installment", func(t *testing.T) {
		loan := zeroRateLoan(t)
		req := extendTwoTerms(loan)
		req.FromDate = testutil.Date(2025, 6, 15)

		_, err := newUseCase(loan, &mockRestructureRequestRepository{}, &mockLendingEventPublisher{}).
			Execute(context.Background(), req)

		require.Error(t, err)
		assert.True(t, errors.Is(err, valueobject.ErrScheduleDateIntegrity))
	})

	t.Run("rejects a request proposing nothing", func(t *testing.T) {
		loan := zeroRateLoan(t)
		req := extendTwoTerms(loan)
		req.ExtraTerms = 0

		_, err := newUseCase(loan, &mockRestructureRequestRepository{}, &mockLendingEventPublisher{}).
			Execute(context.Background(), req)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "build variations")
	})

	t.Run("rejects a paid off loan", func(t *testing.T) {
		loan := withRepayment(t, zeroRateLoan(t), "pay-1", testutil.Date(2025, 2, 1), "12000")

		_, err := newUseCase(loan, &mockRestructureRequestRepository{}, &mockLendingEventPublisher{}).
			Execute(context.Background(), extendTwoTerms(loan))

		require.Error(t, err)
		assert.True(t, errors.Is(err, valueobject.ErrInvalidStatusTransition))
		assert.Contains(t, err.Error(), "check loan")
	})
}

// ---------------------------------------------------------------------------
// ApproveRestructureRequest
// ---------------------------------------------------------------------------

type approveFixture struct {
	loans      *mockLoanRepository
	requests   *mockRestructureRequestRepository
	archive    *mockScheduleHistoryArchive
	transfers  *mockAccountTransferService
	accounting *mockAccountingBridge
	publisher  *mockLendingEventPublisher
	uc         *usecase.ApproveRestructureRequestUseCase
}

func newApproveFixture(loan model.Loan, req model.RestructureRequest) *approveFixture {
	f := &approveFixture{
		loans:      loanRepoWith(loan),
		requests:   requestRepoWith(req),
		archive:    &mockScheduleHistoryArchive{},
		transfers:  &mockAccountTransferService{},
		accounting: &mockAccountingBridge{},
		publisher:  &mockLendingEventPublisher{},
	}
	f.uc = usecase.NewApproveRestructureRequestUseCase(usecase.ApproveDeps{
		Loans:       f.loans,
		Requests:    f.requests,
		Archive:     f.archive,
		Transfers:   f.transfers,
		UnitOfWork:  &mockUnitOfWork{},
		Accounting:  f.accounting,
		Publisher:   f.publisher,
		Engine:      service.NewScheduleEngine(),
		Reprocessor: newReprocessor(),
	})
	return f
}

func decide(req model.RestructureRequest) dto.DecideRestructureRequest {
	return dto.DecideRestructureRequest{
		TenantID:  testutil.TestTenantID,
		RequestID: req.ID(),
		DecidedBy: "approver",
		DecidedOn: testutil.Date(2025, 5, 25),
	}
}

func TestApproveRestructureRequest_Execute(t *testing.T) {
	t.Run("extends the schedule and replaces shifted repayments", func(t *testing.T) {
		// 7000 on Feb 1 prepays the installments due Feb to Aug.
		loan := withRepayment(t, zeroRateLoan(t), "pay-1", testutil.Date(2025, 2, 1), "7000")
		req := pendingRequest(t, loan, service.RestructureTerms{FromDate: rescheduleFrom, ExtraTerms: 2})
		f := newApproveFixture(loan, req)

		resp, err := f.uc.Execute(context.Background(), decide(req))

		require.NoError(t, err)
		assert.Equal(t, "APPROVED", resp.Request.Status)
		assert.Equal(t, "approver", resp.Request.ApprovedBy)
		require.Len(t, resp.Request.Variations, 1)
		assert.True(t, resp.Request.Variations[0].Active)

		assert.Equal(t, 10, resp.Schedule.Regenerated)
		require.Len(t, resp.Schedule.Installments, 14)
		assert.Equal(t, testutil.Date(2026, 3, 1), resp.Schedule.MaturityDate)
		testutil.AssertDecimalEqual(t, "8000", resp.Schedule.OpeningPrincipal)
		testutil.AssertDecimalEqual(t, "800", resp.Schedule.Installments[4].PrincipalDue)

		require.Contains(t, resp.Replacements, "pay-1")
		require.Len(t, f.transfers.relinked, 1)
		assert.Equal(t, resp.Replacements, f.transfers.relinked[0])

		require.Len(t, f.archive.archived, 1)
		assert.Len(t, f.archive.archived[0].Installments, 12)

		require.Len(t, f.loans.savedLoans, 1)
		saved := f.loans.savedLoans[0]
		testutil.AssertDecimalEqual(t, "5000", saved.OutstandingPrincipal())
		assert.Equal(t, 1, saved.Terms().Variations.Len())
		require.Len(t, f.requests.savedRequests, 1)

		require.Len(t, f.accounting.posted, 1)
		assert.ElementsMatch(t, []string{saved.Transactions()[0].ID, "pay-1"}, f.accounting.posted[0].existing)
		assert.Empty(t, f.accounting.posted[0].reversed)

		types := f.publisher.eventTypes()
		assert.Contains(t, types, "lending.restructure.approved")
		assert.Contains(t, types, "lending.loan.rescheduled")
		assert.Contains(t, types, "lending.loan.transactions_replaced")
	})

	t.Run("keeps allocations that do not change", func(t *testing.T) {
		loan := withRepayment(t, zeroRateLoan(t), "pay-1", testutil.Date(2025, 2, 1), "1000")
		req := pendingRequest(t, loan, service.RestructureTerms{FromDate: rescheduleFrom, ExtraTerms: 2})
		f := newApproveFixture(loan, req)

		resp, err := f.uc.Execute(context.Background(), decide(req))

		require.NoError(t, err)
		assert.Empty(t, resp.Replacements)
		assert.Empty(t, f.transfers.relinked)
	})

	t.Run("fails when the request is no longer pending", func(t *testing.T) {
		loan := zeroRateLoan(t)
		req := pendingRequest(t, loan, service.RestructureTerms{FromDate: rescheduleFrom, ExtraTerms: 2})
		rejected, err := req.Reject("someone", testutil.Date(2025, 5, 21))
		require.NoError(t, err)
		f := newApproveFixture(loan, rejected)

		_, err = f.uc.Execute(context.Background(), decide(rejected))

		require.Error(t, err)
		assert.True(t, errors.Is(err, valueobject.ErrInvalidStatusTransition))
		assert.Empty(t, f.loans.savedLoans)
		assert.Empty(t, f.archive.archived)
	})

	t.Run("rolls back when relinking fails", func(t *testing.T) {
		loan := withRepayment(t, zeroRateLoan(t), "pay-1", testutil.Date(2025, 2, 1), "7000")
		req := pendingRequest(t, loan, service.RestructureTerms{FromDate: rescheduleFrom, ExtraTerms: 2})
		f := newApproveFixture(loan, req)
		f.transfers.relinkFunc = func(_ context.Context, _ string, _ map[string]string) error {
			return errors.New("transfer store down")
		}

		_, err := f.uc.Execute(context.Background(), decide(req))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "relink transfers")
		assert.Empty(t, f.accounting.posted)
		assert.Empty(t, f.publisher.publishedEvents)
	})
}

// ---------------------------------------------------------------------------
// RejectRestructureRequest
// ---------------------------------------------------------------------------

func TestRejectRestructureRequest_Execute(t *testing.T) {
	loan := zeroRateLoan(t)
	req := pendingRequest(t, loan, service.RestructureTerms{FromDate: rescheduleFrom, ExtraTerms: 2})
	requests := requestRepoWith(req)
	publisher := &mockLendingEventPublisher{}

	resp, err := usecase.NewRejectRestructureRequestUseCase(requests, publisher).Execute(context.Background(), decide(req))

	require.NoError(t, err)
	assert.Equal(t, "REJECTED", resp.Status)
	assert.Equal(t, "approver", resp.RejectedBy)
	for _, v := range resp.Variations {
		assert.False(t, v.Active)
	}
	require.Len(t, requests.savedRequests, 1)
	assert.Equal(t, []string{"lending.restructure.rejected"}, publisher.eventTypes())
}

// ---------------------------------------------------------------------------
// PreviewRestructure
// ---------------------------------------------------------------------------

func TestPreviewRestructure_Execute(t *testing.T) {
	t.Run("previews without persisting", func(t *testing.T) {
		loan := zeroRateLoan(t)
		req := pendingRequest(t, loan, service.RestructureTerms{FromDate: rescheduleFrom, ExtraTerms: 2})
		loans := loanRepoWith(loan)
		requests := requestRepoWith(req)

		resp, err := usecase.NewPreviewRestructureUseCase(loans, requests, service.NewScheduleEngine(), model.HolidayCalendar{}).
			Execute(context.Background(), dto.GetRestructureRequest{TenantID: testutil.TestTenantID, RequestID: req.ID()})

		require.NoError(t, err)
		assert.Equal(t, testutil.Date(2026, 3, 1), resp.MaturityDate)
		assert.Len(t, resp.Installments, 14)
		assert.Empty(t, loans.savedLoans)
		assert.Empty(t, requests.savedRequests)
	})

	t.Run("refuses a decided request", func(t *testing.T) {
		loan := zeroRateLoan(t)
		req := pendingRequest(t, loan, service.RestructureTerms{FromDate: rescheduleFrom, ExtraTerms: 2})
		rejected, err := req.Reject("someone", testutil.Date(2025, 5, 21))
		require.NoError(t, err)

		_, err = usecase.NewPreviewRestructureUseCase(loanRepoWith(loan), requestRepoWith(rejected), service.NewScheduleEngine(), model.HolidayCalendar{}).
			Execute(context.Background(), dto.GetRestructureRequest{TenantID: testutil.TestTenantID, RequestID: rejected.ID()})

		require.Error(t, err)
		assert.True(t, errors.Is(err, valueobject.ErrInvalidStatusTransition))
	})
}
