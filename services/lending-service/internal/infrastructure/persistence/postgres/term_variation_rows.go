package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	pkgpostgres "github.com/bibbank/bib/pkg/postgres"
	"github.com/bibbank/bib/services/lending-service/internal/domain/model"
	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
)

const variationColumns = `
	v.id, v.loan_id, v.request_id, v.type, v.applicable_from,
	v.decimal_value, v.date_value, v.specific_to_installment, v.active, v.parent_id`

// queueVariations upserts vs. The loan owns the ordering of its variation set, so the
// position is only rewritten when ordered is set.
func queueVariations(b *pgx.Batch, loanID string, vs []model.TermVariation, ordered bool) {
	onConflict := `
		ON CONFLICT (id) DO UPDATE SET
			request_id              = EXCLUDED.request_id,
			applicable_from         = EXCLUDED.applicable_from,
			decimal_value           = EXCLUDED.decimal_value,
			date_value              = EXCLUDED.date_value,
			specific_to_installment = EXCLUDED.specific_to_installment,
			active                  = EXCLUDED.active,
			parent_id               = EXCLUDED.parent_id`
	if ordered {
		onConflict += `,
			position                = EXCLUDED.position`
	}

	for i, v := range vs {
		b.Queue(`
			INSERT INTO loan_term_variations (
				id, loan_id, request_id, type, applicable_from,
				decimal_value, date_value, specific_to_installment, active, parent_id, position
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`+onConflict,
			v.ID, loanID, nullUUID(v.RequestID), string(v.Type), v.ApplicableFrom,
			v.DecimalValue, v.DateValue, v.SpecificToInstallment, v.Active, nullUUID(v.ParentID), i,
		)
	}
}

// loadLoanVariations returns the variations merged into a loan's terms: those attached
// directly and those of approved requests.
func loadLoanVariations(ctx context.Context, q pkgpostgres.Querier, loanID string) ([]model.TermVariation, error) {
	query := `SELECT` + variationColumns + `
		FROM loan_term_variations v
		LEFT JOIN loan_restructure_requests r ON r.id = v.request_id
		WHERE v.loan_id = $1 AND (v.request_id IS NULL OR r.status = 'APPROVED')
		ORDER BY v.position, v.applicable_from
	`
	return queryVariations(ctx, q, query, loanID)
}

func loadRequestVariations(ctx context.Context, q pkgpostgres.Querier, requestID string) ([]model.TermVariation, error) {
	query := `SELECT` + variationColumns + `
		FROM loan_term_variations v
		WHERE v.request_id = $1
		ORDER BY v.position, v.applicable_from
	`
	return queryVariations(ctx, q, query, requestID)
}

func queryVariations(ctx context.Context, q pkgpostgres.Querier, query string, arg string) ([]model.TermVariation, error) {
	rows, err := q.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query term variations: %w", err)
	}
	defer rows.Close()

	var out []model.TermVariation
	for rows.Next() {
		var (
			v                   model.TermVariation
			requestID, parentID *string
			varType             string
			decimalValue        decimal.NullDecimal
			dateValue           *time.Time
		)
		if err := rows.Scan(
			&v.ID, &v.LoanID, &requestID, &varType, &v.ApplicableFrom,
			&decimalValue, &dateValue, &v.SpecificToInstallment, &v.Active, &parentID,
		); err != nil {
			return nil, fmt.Errorf("scan term variation: %w", err)
		}
		if v.Type, err = valueobject.ParseTermVariationType(varType); err != nil {
			return nil, fmt.Errorf("parse term variation type: %w", err)
		}
		v.RequestID = derefString(requestID)
		v.ParentID = derefString(parentID)
		v.DecimalValue = decimalValue
		v.DateValue = dateValue
		out = append(out, v)
	}
	return out, rows.Err()
}
