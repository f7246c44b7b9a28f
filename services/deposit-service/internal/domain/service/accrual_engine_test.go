package service_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bib/pkg/money"
	"github.com/bibbank/bib/pkg/testutil"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/model"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/service"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/valueobject"
)

func newActiveAccount(t *testing.T, activatedOn time.Time) model.DepositAccount {
	t.Helper()
	tenantID := uuid.MustParse(testutil.TestTenantID)
	product, err := model.NewDepositProduct(model.ProductParams{
		TenantID:      tenantID,
		Name:          "12M Fixed",
		Currency:      money.USD,
		AnnualRateBps: 500,
		TermMonths:    12,
	}, activatedOn)
	require.NoError(t, err)

	account, err := model.OpenDepositAccount(model.OpenParams{
		TenantID:    tenantID,
		Product:     product,
		Principal:   money.New(testutil.Dec("10000"), money.USD),
		Instruction: valueobject.InstructionWithdraw,
		SubmittedOn: activatedOn,
	})
	require.NoError(t, err)
	account, err = account.Activate(activatedOn)
	require.NoError(t, err)
	return account
}

func TestAccrualEngine_Advance(t *testing.T) {
	engine := service.NewAccrualEngine()
	account := newActiveAccount(t, testutil.Date(2025, 1, 1))

	t.Run("mid-month accrues only", func(t *testing.T) {
		step, err := engine.Advance(account, testutil.Date(2025, 1, 16))
		require.NoError(t, err)

		testutil.AssertDecimalEqual(t, "20.547945", step.Accrued.Amount())
		assert.True(t, step.Posted.IsZero())
		assert.False(t, step.Matured)
		assert.Equal(t, valueobject.StatusActive, step.Account.Status())
	})

	t.Run("month end posts", func(t *testing.T) {
		step, err := engine.Advance(account, testutil.Date(2025, 1, 31))
		require.NoError(t, err)

		testutil.AssertDecimalEqual(t, "41.09589", step.Accrued.Amount())
		testutil.AssertDecimalEqual(t, "41.10", step.Posted.Amount())
		assert.True(t, step.Account.AccruedInterest().IsZero())
	})

	t.Run("due account matures", func(t *testing.T) {
		step, err := engine.Advance(account, testutil.Date(2026, 1, 2))
		require.NoError(t, err)

		assert.True(t, step.Matured)
		assert.Equal(t, valueobject.StatusMatured, step.Account.Status())
		testutil.AssertDecimalEqual(t, "500", step.Posted.Amount())
	})

	t.Run("inactive account", func(t *testing.T) {
		matured, err := engine.Advance(account, testutil.Date(2026, 1, 1))
		require.NoError(t, err)

		_, err = engine.Advance(matured.Account, testutil.Date(2026, 1, 2))
		assert.ErrorIs(t, err, valueobject.ErrInvalidStatusTransition)
	})
}

func TestIsMonthEnd(t *testing.T) {
	assert.True(t, service.IsMonthEnd(testutil.Date(2024, 2, 29)))
	assert.False(t, service.IsMonthEnd(testutil.Date(2025, 2, 27)))
	assert.True(t, service.IsMonthEnd(testutil.Date(2025, 2, 28)))
	assert.True(t, service.IsMonthEnd(testutil.Date(2025, 12, 31)))
}
