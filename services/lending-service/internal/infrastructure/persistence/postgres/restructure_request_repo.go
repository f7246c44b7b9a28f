package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgpostgres "github.com/bibbank/bib/pkg/postgres"
	"github.com/bibbank/bib/services/lending-service/internal/domain/model"
	"github.com/bibbank/bib/services/lending-service/internal/domain/valueobject"
)

// RestructureRequestRepo implements port.RestructureRequestRepository.
type RestructureRequestRepo struct {
	pool *pgxpool.Pool
}

// NewRestructureRequestRepo creates a new PostgreSQL-backed restructure request repository.
func NewRestructureRequestRepo(pool *pgxpool.Pool) *RestructureRequestRepo {
	return &RestructureRequestRepo{pool: pool}
}

const requestColumns = `
	id, tenant_id, loan_id, status, reschedule_from_date, adjusted_due_date,
	recalculate_interest, reason_code, comment,
	submitted_by, submitted_on, approved_by, approved_on, rejected_by, rejected_on,
	version`

// Save persists a request and its proposed variations.
func (r *RestructureRequestRepo) Save(ctx context.Context, req model.RestructureRequest) error {
	return pkgpostgres.WithTransaction(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		query := `
			INSERT INTO loan_restructure_requests (` + requestColumns + `)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
			ON CONFLICT (id) DO UPDATE SET
				status               = EXCLUDED.status,
				reschedule_from_date = EXCLUDED.reschedule_from_date,
				adjusted_due_date    = EXCLUDED.adjusted_due_date,
				approved_by          = EXCLUDED.approved_by,
				approved_on          = EXCLUDED.approved_on,
				rejected_by          = EXCLUDED.rejected_by,
				rejected_on          = EXCLUDED.rejected_on,
				version              = loan_restructure_requests.version + 1,
				updated_at           = NOW()
			WHERE loan_restructure_requests.version = $16
		`
		tag, err := tx.Exec(ctx, query,
			req.ID(), req.TenantID(), req.LoanID(), req.Status().String(),
			req.RescheduleFromDate(), req.AdjustedDueDate(),
			req.RecalculateInterest(), req.ReasonCode(), req.Comment(),
			req.SubmittedBy(), req.SubmittedOn(), req.ApprovedBy(), req.ApprovedOn(),
			req.RejectedBy(), req.RejectedOn(),
			req.Version(),
		)
		if err != nil {
			return fmt.Errorf("save restructure request: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return valueobject.NewConcurrentModificationError("restructure request", req.ID(), req.Version())
		}

		b := &pgx.Batch{}
		queueVariations(b, req.LoanID(), req.Variations(), false)
		if err := sendBatch(ctx, tx, b); err != nil {
			return fmt.Errorf("save request variations: %w", err)
		}
		return nil
	})
}

// FindByID retrieves a request with its variations.
func (r *RestructureRequestRepo) FindByID(ctx context.Context, tenantID, id string) (model.RestructureRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.RestructureRequest{}, valueobject.NewNotFoundError("restructure request", id)
	}
	query := `SELECT ` + requestColumns + ` FROM loan_restructure_requests WHERE tenant_id = $1 AND id = $2`
	req, err := r.findOne(ctx, query, tenantID, id)
	if err != nil {
		return model.RestructureRequest{}, notFound(err, "restructure request", id)
	}
	return req, nil
}

// FindPendingByLoanID reports the loan's pending request. At most one exists.
func (r *RestructureRequestRepo) FindPendingByLoanID(ctx context.Context, tenantID, loanID string) (model.RestructureRequest, bool, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM loan_restructure_requests
		WHERE tenant_id = $1 AND loan_id = $2 AND status = 'PENDING_APPROVAL'
	`
	req, err := r.findOne(ctx, query, tenantID, loanID)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.RestructureRequest{}, false, nil
	}
	if err != nil {
		return model.RestructureRequest{}, false, err
	}
	return req, true, nil
}

func (r *RestructureRequestRepo) findOne(ctx context.Context, query string, args ...any) (model.RestructureRequest, error) {
	q := pkgpostgres.Conn(ctx, r.pool)

	snap, err := scanRequestRow(q.QueryRow(ctx, query, args...))
	if err != nil {
		return model.RestructureRequest{}, err
	}
	if snap.Variations, err = loadRequestVariations(ctx, q, snap.ID); err != nil {
		return model.RestructureRequest{}, err
	}
	return model.ReconstructRestructureRequest(snap), nil
}

func scanRequestRow(s scannable) (model.RestructureRequestSnapshot, error) {
	var (
		snap      model.RestructureRequestSnapshot
		statusStr string
	)
	err := s.Scan(
		&snap.ID, &snap.TenantID, &snap.LoanID, &statusStr, &snap.RescheduleFromDate, &snap.AdjustedDueDate,
		&snap.RecalculateInterest, &snap.ReasonCode, &snap.Comment,
		&snap.SubmittedBy, &snap.SubmittedOn, &snap.ApprovedBy, &snap.ApprovedOn, &snap.RejectedBy, &snap.RejectedOn,
		&snap.Version,
	)
	if err != nil {
		return model.RestructureRequestSnapshot{}, fmt.Errorf("scan restructure request: %w", err)
	}
	if snap.Status, err = valueobject.NewRestructureRequestStatus(statusStr); err != nil {
		return model.RestructureRequestSnapshot{}, fmt.Errorf("parse request status: %w", err)
	}
	return snap, nil
}
