package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bibbank/bib/pkg/events"
	pkgpostgres "github.com/bibbank/bib/pkg/postgres"
)

// OutboxRepo hands unpublished outbox entries to a relay.
type OutboxRepo struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewOutboxRepo(pool *pgxpool.Pool, now func() time.Time) *OutboxRepo {
	return &OutboxRepo{pool: pool, now: now}
}

// Drain locks up to limit unpublished entries, oldest first, and passes them to publish.
// The entries are marked published only when publish succeeds; concurrent relays skip
// rows another relay holds. It returns the number of entries published.
func (r *OutboxRepo) Drain(ctx context.Context, limit int, publish func(context.Context, []events.OutboxEntry) error) (int, error) {
	var n int
	err := pkgpostgres.WithTransaction(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, aggregate_id, aggregate_type, event_type, tenant_id, payload, created_at
			FROM outbox
			WHERE published_at IS NULL
			ORDER BY created_at, id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		`, limit)
		if err != nil {
			return fmt.Errorf("query outbox: %w", err)
		}
		entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (events.OutboxEntry, error) {
			var e events.OutboxEntry
			err := row.Scan(&e.ID, &e.AggregateID, &e.AggregateType, &e.EventType, &e.TenantID, &e.Payload, &e.CreatedAt)
			return e, err
		})
		if err != nil {
			return fmt.Errorf("scan outbox: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}

		if err := publish(ctx, entries); err != nil {
			return err
		}

		ids := make([]string, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}
		if _, err := tx.Exec(ctx, `UPDATE outbox SET published_at = $1 WHERE id = ANY($2::uuid[])`, r.now(), ids); err != nil {
			return fmt.Errorf("mark outbox published: %w", err)
		}
		n = len(entries)
		return nil
	})
	return n, err
}
