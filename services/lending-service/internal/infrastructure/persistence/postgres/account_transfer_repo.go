package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	pkgpostgres "github.com/bibbank/bib/pkg/postgres"
)

// AccountTransferRepo implements port.AccountTransferService over the transfer link table.
type AccountTransferRepo struct {
	pool *pgxpool.Pool
}

// NewAccountTransferRepo creates a new PostgreSQL-backed transfer link store.
func NewAccountTransferRepo(pool *pgxpool.Pool) *AccountTransferRepo {
	return &AccountTransferRepo{pool: pool}
}

// Link records that a transfer settled a loan transaction.
func (r *AccountTransferRepo) Link(ctx context.Context, tenantID, transferID, loanTxnID string) error {
	query := `
		INSERT INTO account_transfer_transactions (transfer_id, tenant_id, loan_transaction_id)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`
	if _, err := pkgpostgres.Conn(ctx, r.pool).Exec(ctx, query, transferID, tenantID, loanTxnID); err != nil {
		return fmt.Errorf("link transfer %s: %w", transferID, err)
	}
	return nil
}

// RelinkTransactions repoints every transfer at the replacement of its transaction.
func (r *AccountTransferRepo) RelinkTransactions(ctx context.Context, tenantID string, replacements map[string]string) error {
	q := pkgpostgres.Conn(ctx, r.pool)
	query := `
		UPDATE account_transfer_transactions
		SET loan_transaction_id = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND loan_transaction_id = $2
	`
	for original, replacement := range replacements {
		if _, err := q.Exec(ctx, query, tenantID, original, replacement); err != nil {
			return fmt.Errorf("relink transfers of %s: %w", original, err)
		}
	}
	return nil
}

// TransfersFor lists the transfers linked to a loan transaction.
func (r *AccountTransferRepo) TransfersFor(ctx context.Context, tenantID, loanTxnID string) ([]string, error) {
	query := `
		SELECT transfer_id FROM account_transfer_transactions
		WHERE tenant_id = $1 AND loan_transaction_id = $2
		ORDER BY transfer_id
	`
	rows, err := pkgpostgres.Conn(ctx, r.pool).Query(ctx, query, tenantID, loanTxnID)
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
