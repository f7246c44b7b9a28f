package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bibbank/bib/pkg/money"
	pkgpostgres "github.com/bibbank/bib/pkg/postgres"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/model"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/port"
	"github.com/bibbank/bib/services/deposit-service/internal/domain/valueobject"
)

// Compile-time interface check.
var _ port.DepositProductRepository = (*ProductRepo)(nil)

const productColumns = `id, tenant_id, name, currency, currency_digits, currency_multiples,
	annual_rate_bps, term_months, pre_closure_penalty_bps, is_active, version, created_at, updated_at`

// ProductRepo implements DepositProductRepository using PostgreSQL.
type ProductRepo struct {
	pool *pgxpool.Pool
}

func NewProductRepo(pool *pgxpool.Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

// Save upserts the product when the stored version still matches.
func (r *ProductRepo) Save(ctx context.Context, product model.DepositProduct) error {
	cur := product.Currency()
	tag, err := pkgpostgres.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO deposit_products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			name                    = EXCLUDED.name,
			annual_rate_bps         = EXCLUDED.annual_rate_bps,
			term_months             = EXCLUDED.term_months,
			pre_closure_penalty_bps = EXCLUDED.pre_closure_penalty_bps,
			is_active               = EXCLUDED.is_active,
			version                 = deposit_products.version + 1,
			updated_at              = EXCLUDED.updated_at
		WHERE deposit_products.version = $11
	`, product.ID(), product.TenantID(), product.Name(), cur.Code(), cur.DigitsAfterDecimal(), cur.InMultiplesOf(),
		product.AnnualRateBps(), product.TermMonths(), product.PreClosurePenaltyBps(), product.IsActive(),
		product.Version(), product.CreatedAt(), product.UpdatedAt())
	if err != nil {
		return fmt.Errorf("upsert deposit product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return valueobject.NewConcurrentModificationError("deposit product", product.ID().String(), product.Version())
	}
	return nil
}

func (r *ProductRepo) FindByID(ctx context.Context, id uuid.UUID) (model.DepositProduct, error) {
	row := pkgpostgres.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+productColumns+` FROM deposit_products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		return model.DepositProduct{}, notFound(err, "deposit product", id.String())
	}
	return p, nil
}

func (r *ProductRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]model.DepositProduct, error) {
	rows, err := pkgpostgres.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+productColumns+` FROM deposit_products WHERE tenant_id = $1 ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query deposit products: %w", err)
	}
	defer rows.Close()

	var products []model.DepositProduct
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func scanProduct(s scannable) (model.DepositProduct, error) {
	var (
		snap      model.ProductSnapshot
		code      string
		digits    int32
		multiples int64
	)
	err := s.Scan(&snap.ID, &snap.TenantID, &snap.Name, &code, &digits, &multiples,
		&snap.AnnualRateBps, &snap.TermMonths, &snap.PreClosurePenaltyBps, &snap.IsActive,
		&snap.Version, &snap.CreatedAt, &snap.UpdatedAt)
	if err != nil {
		return model.DepositProduct{}, fmt.Errorf("scan deposit product: %w", err)
	}
	if snap.Currency, err = money.NewCurrencyWithScale(code, digits, multiples); err != nil {
		return model.DepositProduct{}, fmt.Errorf("parse currency: %w", err)
	}
	return model.ReconstructProduct(snap), nil
}
