package postgres_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bib/pkg/events"
	"github.com/bibbank/bib/pkg/money"
	"github.com/bibbank/bib/pkg/testutil"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/model"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/valueobject"
	"github.com/bibbank/bib/services/deposit-service/internal/infrastructure/persistence/postgres"
)

var tenantID = uuid.MustParse(testutil.TestTenantID)

func setupDB(t *testing.T) *testutil.PostgresContainer {
	t.Helper()
	pc := testutil.NewPostgresContainer(context.Background(), t)
	pc.Migrate(t, postgres.Migrations, postgres.MigrationsDir)
	return pc
}

func saveProduct(t *testing.T, repo *postgres.ProductRepo) model.DepositProduct {
	t.Helper()
	p, err := model.NewDepositProduct(model.ProductParams{
		TenantID:             tenantID,
		Name:                 "12M Fixed",
		Currency:             money.USD,
		AnnualRateBps:        500,
		TermMonths:           12,
		PreClosurePenaltyBps: 100,
	}, testutil.Date(2024, 12, 1))
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), p))
	return p
}

func TestProductRepo(t *testing.T) {
	pc := setupDB(t)
	ctx := context.Background()
	products := postgres.NewProductRepo(pc.Pool)

	p := saveProduct(t, products)

	found, err := products.FindByID(ctx, p.ID())
	require.NoError(t, err)
	assert.Equal(t, "12M Fixed", found.Name())
	assert.Equal(t, p.Terms(), found.Terms())
	assert.Equal(t, "USD", found.Currency().Code())

	inactive, err := found.Deactivate(testutil.Date(2025, 1, 1))
	require.NoError(t, err)
	require.NoError(t, products.Save(ctx, inactive))

	listed, err := products.ListByTenant(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.False(t, listed[0].IsActive())
	assert.Equal(t, 2, listed[0].Version())

	assert.ErrorIs(t, products.Save(ctx, inactive), valueobject.ErrConcurrentModification)

	_, err = products.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, valueobject.ErrNotFound)
}

func TestAccountRepo(t *testing.T) {
	pc := setupDB(t)
	ctx := context.Background()
	product := saveProduct(t, postgres.NewProductRepo(pc.Pool))
	accounts := postgres.NewAccountRepo(pc.Pool)
	outbox := postgres.NewOutboxRepo(pc.Pool, func() time.Time { return testutil.Date(2025, 2, 1) })

	savings := uuid.MustParse(testutil.TestAccountID)
	opened, err := model.OpenDepositAccount(model.OpenParams{
		TenantID:         tenantID,
		Product:          product,
		Principal:        money.New(testutil.Dec("10000"), money.USD),
		SavingsAccountID: &savings,
		Instruction:      valueobject.InstructionTransferToSavings,
		SubmittedOn:      testutil.Date(2024, 12, 20),
	})
	require.NoError(t, err)
	require.NoError(t, accounts.Save(ctx, opened))

	t.Run("round-trips an accruing account", func(t *testing.T) {
		stored, err := accounts.FindByID(ctx, opened.ID())
		require.NoError(t, err)
		assert.Empty(t, stored.Events())

		active, err := stored.Activate(testutil.Date(2025, 1, 1))
		require.NoError(t, err)
		active, _, err = active.AccrueInterest(testutil.Date(2025, 1, 31))
		require.NoError(t, err)
		require.NoError(t, accounts.Save(ctx, active))

		found, err := accounts.FindByID(ctx, opened.ID())
		require.NoError(t, err)
		assert.Equal(t, valueobject.StatusActive, found.Status())
		assert.Equal(t, 2, found.Version())
		testutil.AssertDecimalEqual(t, "41.09589", found.AccruedInterest().Amount())
		assert.Equal(t, testutil.Date(2026, 1, 1), found.MaturityDate().UTC())
		assert.Equal(t, testutil.Date(2025, 1, 31), found.LastAccrualDate().UTC())
		require.NotNil(t, found.SavingsAccountID())
		assert.Equal(t, savings, *found.SavingsAccountID())
		assert.Equal(t, money.DefaultRoundingPolicy(), found.Rounding())
		assert.Equal(t, valueobject.InstructionTransferToSavings, found.Instruction())

		// A second save of the same loaded version is stale.
		assert.ErrorIs(t, accounts.Save(ctx, active), valueobject.ErrConcurrentModification)
	})

	t.Run("lists by status", func(t *testing.T) {
		active, err := accounts.FindByTenantAndStatus(ctx, tenantID, valueobject.StatusActive)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, opened.ID(), active[0].ID())

		matured, err := accounts.FindByTenantAndStatus(ctx, tenantID, valueobject.StatusMatured)
		require.NoError(t, err)
		assert.Empty(t, matured)
	})

	t.Run("drains the outbox once", func(t *testing.T) {
		var types []string
		n, err := outbox.Drain(ctx, 10, func(_ context.Context, entries []events.OutboxEntry) error {
			for _, e := range entries {
				types = append(types, e.EventType)
				assert.Equal(t, opened.ID().String(), e.AggregateID)
				assert.True(t, json.Valid(e.Payload))
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, []string{"deposit.account.opened", "deposit.account.activated", "deposit.interest.accrued"}, types)

		n, err = outbox.Drain(ctx, 10, func(context.Context, []events.OutboxEntry) error { return nil })
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("keeps entries when publishing fails", func(t *testing.T) {
		stored, err := accounts.FindByID(ctx, opened.ID())
		require.NoError(t, err)
		posted, _, err := stored.PostInterest(testutil.Date(2025, 1, 31))
		require.NoError(t, err)
		require.NoError(t, accounts.Save(ctx, posted))

		_, err = outbox.Drain(ctx, 10, func(context.Context, []events.OutboxEntry) error {
			return errors.New("broker down")
		})
		require.Error(t, err)

		n, err := outbox.Drain(ctx, 10, func(context.Context, []events.OutboxEntry) error { return nil })
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("reports an unknown account as not found", func(t *testing.T) {
		_, err := accounts.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, valueobject.ErrNotFound)
	})
}
