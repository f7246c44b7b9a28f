package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	pkgpostgres "github.com/bibbank/bib/pkg/postgres"
	"github.com/bibbank/bib/services/lending-service/internal/domain/model"
)

// ScheduleHistoryRepo implements port.ScheduleHistoryArchive. Snapshots are append-only.
type ScheduleHistoryRepo struct {
	pool *pgxpool.Pool
}

// NewScheduleHistoryRepo creates a new PostgreSQL-backed schedule archive.
func NewScheduleHistoryRepo(pool *pgxpool.Pool) *ScheduleHistoryRepo {
	return &ScheduleHistoryRepo{pool: pool}
}

// Archive stores the installments as a single JSONB document.
func (r *ScheduleHistoryRepo) Archive(ctx context.Context, snapshot model.ScheduleSnapshot) error {
	installments, err := json.Marshal(snapshot.Installments)
	if err != nil {
		return fmt.Errorf("encode schedule snapshot: %w", err)
	}

	query := `
		INSERT INTO loan_schedule_history (loan_id, tenant_id, request_id, taken_at, installments)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = pkgpostgres.Conn(ctx, r.pool).Exec(ctx, query,
		snapshot.LoanID, snapshot.TenantID, nullUUID(snapshot.RequestID), snapshot.TakenAt, installments,
	)
	if err != nil {
		return fmt.Errorf("archive schedule: %w", err)
	}
	return nil
}

// History returns the archived schedules of a loan, oldest first.
func (r *ScheduleHistoryRepo) History(ctx context.Context, tenantID, loanID string) ([]model.ScheduleSnapshot, error) {
	query := `
		SELECT loan_id, tenant_id, request_id, taken_at, installments
		FROM loan_schedule_history
		WHERE tenant_id = $1 AND loan_id = $2
		ORDER BY taken_at, id
	`
	rows, err := pkgpostgres.Conn(ctx, r.pool).Query(ctx, query, tenantID, loanID)
	if err != nil {
		return nil, fmt.Errorf("query schedule history: %w", err)
	}
	defer rows.Close()

	var out []model.ScheduleSnapshot
	for rows.Next() {
		var (
			s         model.ScheduleSnapshot
			requestID *string
			raw       []byte
		)
		if err := rows.Scan(&s.LoanID, &s.TenantID, &requestID, &s.TakenAt, &raw); err != nil {
			return nil, fmt.Errorf("scan schedule snapshot: %w", err)
		}
		if err := json.Unmarshal(raw, &s.Installments); err != nil {
			return nil, fmt.Errorf("decode schedule snapshot: %w", err)
		}
		s.RequestID = derefString(requestID)
		out = append(out, s)
	}
	return out, rows.Err()
}
