package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/bib/pkg/money"
	"github.com/bibbank/bib/pkg/testutil"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/model"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/valueobject"
)

// --- Mock implementations ---

type mockDepositProductRepository struct {
	savedProduct *model.DepositProduct
	saveFunc     func(ctx context.Context, product model.DepositProduct) error
	findByIDFunc func(ctx context.Context, id uuid.UUID) (model.DepositProduct, error)
}

func (m *mockDepositProductRepository) Save(ctx context.Context, product model.DepositProduct) error {
	if m.saveFunc != nil {
		return m.saveFunc(ctx, product)
	}
	m.savedProduct = &product
	return nil
}

func (m *mockDepositProductRepository) FindByID(ctx context.Context, id uuid.UUID) (model.DepositProduct, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return model.DepositProduct{}, valueobject.NewNotFoundError("deposit product", id.String())
}

func (m *mockDepositProductRepository) ListByTenant(_ context.Context, _ uuid.UUID) ([]model.DepositProduct, error) {
	return nil, nil
}

type mockDepositAccountRepository struct {
	saved          []model.DepositAccount
	saveFunc       func(ctx context.Context, account model.DepositAccount) error
	findByIDFunc   func(ctx context.Context, id uuid.UUID) (model.DepositAccount, error)
	findStatusFunc func(ctx context.Context, tenantID uuid.UUID, status valueobject.AccountStatus) ([]model.DepositAccount, error)
}

func (m *mockDepositAccountRepository) Save(ctx context.Context, account model.DepositAccount) error {
	if m.saveFunc != nil {
		if err := m.saveFunc(ctx, account); err != nil {
			return err
		}
	}
	m.saved = append(m.saved, account)
	return nil
}

func (m *mockDepositAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (model.DepositAccount, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return model.DepositAccount{}, valueobject.NewNotFoundError("deposit account", id.String())
}

func (m *mockDepositAccountRepository) FindByTenantAndStatus(ctx context.Context, tenantID uuid.UUID, status valueobject.AccountStatus) ([]model.DepositAccount, error) {
	if m.findStatusFunc != nil {
		return m.findStatusFunc(ctx, tenantID, status)
	}
	return nil, nil
}

// --- Fixtures ---

var tenantID = uuid.MustParse(testutil.TestTenantID)

func fixedNow() time.Time { return testutil.Date(2025, 1, 1) }

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newProduct(t *testing.T) model.DepositProduct {
	t.Helper()
	p, err := model.NewDepositProduct(model.ProductParams{
		TenantID:             tenantID,
		Name:                 "12M Fixed",
		Currency:             money.USD,
		AnnualRateBps:        500,
		TermMonths:           12,
		PreClosurePenaltyBps: 100,
	}, fixedNow())
	require.NoError(t, err)
	return p
}

// newActiveAccount returns an account activated on 2025-01-01 with its events drained,
// as if loaded from the repository.
func newActiveAccount(t *testing.T, instruction valueobject.MaturityInstruction) model.DepositAccount {
	t.Helper()
	var savings *uuid.UUID
	if instruction == valueobject.InstructionTransferToSavings {
		id := uuid.MustParse(testutil.TestAccountID)
		savings = &id
	}
	a, err := model.OpenDepositAccount(model.OpenParams{
		TenantID:         tenantID,
		Product:          newProduct(t),
		Principal:        money.New(testutil.Dec("10000"), money.USD),
		SavingsAccountID: savings,
		Instruction:      instruction,
		SubmittedOn:      fixedNow(),
	})
	require.NoError(t, err)
	a, err = a.Activate(fixedNow())
	require.NoError(t, err)
	a.ClearEvents()
	return a
}

func newMaturedAccount(t *testing.T, instruction valueobject.MaturityInstruction) model.DepositAccount {
	t.Helper()
	a, err := newActiveAccount(t, instruction).Mature(testutil.Date(2026, 1, 1))
	require.NoError(t, err)
	a.ClearEvents()
	return a
}
