package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	pkgpostgres "github.com/bibbank/bib/pkg/postgres"
	"github.com/bibbank/bib/services/lending-service/internal/domain/model"
)

// PaymentDetailRepo implements port.PaymentDetailRepository.
type PaymentDetailRepo struct {
	pool *pgxpool.Pool
}

// NewPaymentDetailRepo creates a new PostgreSQL-backed payment detail repository.
func NewPaymentDetailRepo(pool *pgxpool.Pool) *PaymentDetailRepo {
	return &PaymentDetailRepo{pool: pool}
}

// Save inserts a payment detail. Details are never updated.
func (r *PaymentDetailRepo) Save(ctx context.Context, d model.PaymentDetail) error {
	query := `
		INSERT INTO payment_details (id, tenant_id, payment_type, account_number, check_number, receipt_number, routing_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := pkgpostgres.Conn(ctx, r.pool).Exec(ctx, query,
		d.ID, d.TenantID, d.PaymentType, d.AccountNumber, d.CheckNumber, d.ReceiptNumber, d.RoutingCode,
	)
	if err != nil {
		return fmt.Errorf("save payment detail: %w", err)
	}
	return nil
}
