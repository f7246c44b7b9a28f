package port

import (
	"context"

	"github.com/google/uuid"

	"github.com/bibbank/bib/services/deposit-service/internal/domain/model"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/valueobject"
)

// DepositProductRepository defines persistence operations for deposit products.
type DepositProductRepository interface {
	// Save persists a deposit product (insert or update).
	Save(ctx context.Context, product model.DepositProduct) error
	// FindByID retrieves a deposit product by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (model.DepositProduct, error)
	// ListByTenant returns all deposit products for a given tenant.
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]model.DepositProduct, error)
}

// DepositAccountRepository defines persistence operations for deposit accounts.
// Save stores the account's pending events in the same transaction and fails with
// ErrConcurrentModification when the stored version moved on.
type DepositAccountRepository interface {
	Save(ctx context.Context, account model.DepositAccount) error
	FindByID(ctx context.Context, id uuid.UUID) (model.DepositAccount, error)
	// FindByTenantAndStatus returns a tenant's accounts in one status, oldest first.
	FindByTenantAndStatus(ctx context.Context, tenantID uuid.UUID, status valueobject.AccountStatus) ([]model.DepositAccount, error)
}
