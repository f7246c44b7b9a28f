package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bib/pkg/money"
	"github.com/bibbank/bib/pkg/testutil"
	"github.com/bibbank/bib/services/lending-service/internal/domain/event"
	"github.com/bibbank/bib/services/lending-service/internal/domain/model"
	"github.com/bibbank/bib/services/lending-service/internal/domain/service"
	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
)

// --- Mock implementations ---

type mockLoanRepository struct {
	saveFunc     func(ctx context.Context, loan model.Loan) error
	findByIDFunc func(ctx context.Context, tenantID, id string) (model.Loan, error)
	savedLoans   []model.Loan
}

func (m *mockLoanRepository) Save(ctx context.Context, loan model.Loan) error {
	if m.saveFunc != nil {
		return m.saveFunc(ctx, loan)
	}
	m.savedLoans = append(m.savedLoans, loan)
	return nil
}

func (m *mockLoanRepository) FindByID(ctx context.Context, tenantID, id string) (model.Loan, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, tenantID, id)
	}
	return model.Loan{}, valueobject.NewNotFoundError("loan", id)
}

func loanRepoWith(loan model.Loan) *mockLoanRepository {
	return &mockLoanRepository{
		findByIDFunc: func(_ context.Context, _, _ string) (model.Loan, error) {
			return loan, nil
		},
	}
}

type mockRestructureRequestRepository struct {
	saveFunc        func(ctx context.Context, req model.RestructureRequest) error
	findByIDFunc    func(ctx context.Context, tenantID, id string) (model.RestructureRequest, error)
	findPendingFunc func(ctx context.Context, tenantID, loanID string) (model.RestructureRequest, bool, error)
	savedRequests   []model.RestructureRequest
}

func (m *mockRestructureRequestRepository) Save(ctx context.Context, req model.RestructureRequest) error {
	if m.saveFunc != nil {
		return m.saveFunc(ctx, req)
	}
	m.savedRequests = append(m.savedRequests, req)
	return nil
}

func (m *mockRestructureRequestRepository) FindByID(ctx context.Context, tenantID, id string) (model.RestructureRequest, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, tenantID, id)
	}
	return model.RestructureRequest{}, valueobject.NewNotFoundError("restructure request", id)
}

func (m *mockRestructureRequestRepository) FindPendingByLoanID(ctx context.Context, tenantID, loanID string) (model.RestructureRequest, bool, error) {
	if m.findPendingFunc != nil {
		return m.findPendingFunc(ctx, tenantID, loanID)
	}
	return model.RestructureRequest{}, false, nil
}

func requestRepoWith(req model.RestructureRequest) *mockRestructureRequestRepository {
	return &mockRestructureRequestRepository{
		findByIDFunc: func(_ context.Context, _, _ string) (model.RestructureRequest, error) {
			return req, nil
		},
	}
}

type mockScheduleHistoryArchive struct {
	archiveFunc func(ctx context.Context, snapshot model.ScheduleSnapshot) error
	archived    []model.ScheduleSnapshot
}

func (m *mockScheduleHistoryArchive) Archive(ctx context.Context, snapshot model.ScheduleSnapshot) error {
	if m.archiveFunc != nil {
		return m.archiveFunc(ctx, snapshot)
	}
	m.archived = append(m.archived, snapshot)
	return nil
}

type mockPaymentDetailRepository struct {
	saved []model.PaymentDetail
}

func (m *mockPaymentDetailRepository) Save(_ context.Context, detail model.PaymentDetail) error {
	m.saved = append(m.saved, detail)
	return nil
}

// mockUnitOfWork runs fn inline and counts the units of work it ran.
type mockUnitOfWork struct {
	calls int
}

func (m *mockUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

type mockAccountTransferService struct {
	relinkFunc func(ctx context.Context, tenantID string, replacements map[string]string) error
	relinked   []map[string]string
}

func (m *mockAccountTransferService) RelinkTransactions(ctx context.Context, tenantID string, replacements map[string]string) error {
	if m.relinkFunc != nil {
		return m.relinkFunc(ctx, tenantID, replacements)
	}
	m.relinked = append(m.relinked, replacements)
	return nil
}

type postedEntries struct {
	loan     model.Loan
	existing []string
	reversed []string
}

type mockAccountingBridge struct {
	postFunc func(ctx context.Context, loan model.Loan, existing, reversed []string) error
	posted   []postedEntries
}

func (m *mockAccountingBridge) PostEntries(ctx context.Context, loan model.Loan, existing, reversed []string) error {
	if m.postFunc != nil {
		return m.postFunc(ctx, loan, existing, reversed)
	}
	m.posted = append(m.posted, postedEntries{loan: loan, existing: existing, reversed: reversed})
	return nil
}

type mockPreviewCache struct {
	entries map[string][]byte
	getErr  error
	sets    int
}

func newMockPreviewCache() *mockPreviewCache {
	return &mockPreviewCache{entries: map[string][]byte{}}
}

func (m *mockPreviewCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *mockPreviewCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.sets++
	m.entries[key] = value
	return nil
}

type mockLendingEventPublisher struct {
	publishFunc     func(ctx context.Context, events ...event.DomainEvent) error
	publishedEvents []event.DomainEvent
}

func (m *mockLendingEventPublisher) Publish(ctx context.Context, evts ...event.DomainEvent) error {
	if m.publishFunc != nil {
		return m.publishFunc(ctx, evts...)
	}
	m.publishedEvents = append(m.publishedEvents, evts...)
	return nil
}

func (m *mockLendingEventPublisher) eventTypes() []string {
	out := make([]string, len(m.publishedEvents))
	for i, e := range m.publishedEvents {
		out[i] = e.EventType()
	}
	return out
}

// --- Fixtures ---

var disbursedOn = testutil.Date(2025, 1, 1)

// zeroRateLoan is 12000 USD over 12 monthly installments of 1000 principal at 0%, due
// on the first of each month from 2025-02-01.
func zeroRateLoan(t *testing.T) model.Loan {
	t.Helper()
	terms := model.LoanTerms{
		Currency:           money.USD,
		Principal:          testutil.Dec("12000"),
		AnnualInterestRate: decimal.Zero,
		InterestMethod:     valueobject.InterestDecliningBalance,
		AmortizationMethod: valueobject.AmortizationEqualInstallments,
		Frequency:          valueobject.FrequencyMonths,
		RepayEvery:         1,
		NumberOfRepayments: 12,
		Variations:         model.NewVariationSet(),
		Rounding:           money.DefaultRoundingPolicy(),
		ProcessingStrategy: service.StrategyPenaltyFeeInterestPrincipal,
	}
	res, err := service.NewScheduleEngine().Generate(terms, model.HolidayCalendar{}, disbursedOn)
	require.NoError(t, err)
	loan, err := model.NewLoan(model.NewLoanParams{
		TenantID:          testutil.TestTenantID,
		BorrowerAccountID: testutil.TestAccountID,
		Terms:             terms,
		DisbursedOn:       disbursedOn,
	}, res.Installments, disbursedOn)
	require.NoError(t, err)
	return loan.ClearEvents()
}

// withRepayment books an allocated repayment the way MakePayment does for a current one.
func withRepayment(t *testing.T, loan model.Loan, id string, on time.Time, amount string) model.Loan {
	t.Helper()
	txn := model.LoanTransaction{
		ID:        id,
		LoanID:    loan.ID(),
		Type:      valueobject.TransactionRepayment,
		Date:      on,
		Amount:    money.New(testutil.Dec(amount), money.USD),
		CreatedAt: on,
	}
	installments, allocated, err := newReprocessor().Allocate(loan, txn)
	require.NoError(t, err)
	loan, err = loan.RecordTransaction(allocated, installments, on)
	require.NoError(t, err)
	return loan.ClearEvents()
}

// pendingRequest builds a pending restructure request for loan.
func pendingRequest(t *testing.T, loan model.Loan, terms service.RestructureTerms) model.RestructureRequest {
	t.Helper()
	variations, err := service.NewVariationBuilder(uuid.NewString).Build(loan.ID(), terms)
	require.NoError(t, err)
	req, err := model.NewRestructureRequest(model.NewRestructureRequestParams{
		TenantID:           loan.TenantID(),
		LoanID:             loan.ID(),
		RescheduleFromDate: terms.FromDate,
		ReasonCode:         "HARDSHIP",
		Variations:         variations,
		SubmittedBy:        testutil.TestUserID,
		SubmittedOn:        terms.FromDate.AddDate(0, 0, -10),
	})
	require.NoError(t, err)
	return req.ClearEvents()
}

func newReprocessor() *service.TransactionReprocessor {
	return service.NewTransactionReprocessor(uuid.NewString, func() time.Time { return time.Now().UTC() })
}
