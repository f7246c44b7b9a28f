package port

import (
	"context"
	"time"

	"github.com/bibbank/bib/services/lending-service/internal/domain/event"
	"github.com/bibbank/bib/services/lending-service/internal/domain/model"
)

// ---------------------------------------------------------------------------
// Repository ports (driven/secondary adapters)
// ---------------------------------------------------------------------------

// LoanRepository persists and retrieves loans together with their schedule,
// transactions and term variations. Save fails on a stale version.
type LoanRepository interface {
	Save(ctx context.Context, loan model.Loan) error
	FindByID(ctx context.Context, tenantID, id string) (model.Loan, error)
}

// RestructureRequestRepository persists and retrieves restructure requests.
type RestructureRequestRepository interface {
	Save(ctx context.Context, req model.RestructureRequest) error
	FindByID(ctx context.Context, tenantID, id string) (model.RestructureRequest, error)
	// FindPendingByLoanID reports the loan's pending request, if any.
	FindPendingByLoanID(ctx context.Context, tenantID, loanID string) (model.RestructureRequest, bool, error)
}

// ScheduleHistoryArchive keeps the schedule a loan had before each regeneration.
type ScheduleHistoryArchive interface {
	Archive(ctx context.Context, snapshot model.ScheduleSnapshot) error
}

// PaymentDetailRepository stores payment details referenced by transactions.
type PaymentDetailRepository interface {
	Save(ctx context.Context, detail model.PaymentDetail) error
}

// UnitOfWork runs fn in a single transaction. Repositories called with the context
// passed to fn join that transaction.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// ---------------------------------------------------------------------------
// Collaborator ports
// ---------------------------------------------------------------------------

// AccountTransferService owns transfers that reference loan transactions. When replay
// replaces a transaction the transfers pointing at it follow the replacement.
type AccountTransferService interface {
	RelinkTransactions(ctx context.Context, tenantID string, replacements map[string]string) error
}

// AccountingBridge posts journal entries for every transaction of the loan that is not in
// existingTxnIDs and reverses those newly reversed since existingReversedTxnIDs.
// The loan's currency selects the ledger.
type AccountingBridge interface {
	PostEntries(ctx context.Context, loan model.Loan, existingTxnIDs, existingReversedTxnIDs []string) error
}

// PreviewCache stores serialized schedule previews for a short time.
type PreviewCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ---------------------------------------------------------------------------
// Event publisher port
// ---------------------------------------------------------------------------

// EventPublisher publishes domain events to external consumers.
type EventPublisher interface {
	Publish(ctx context.Context, events ...event.DomainEvent) error
}
