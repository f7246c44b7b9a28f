package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgpostgres "github.com/bibbank/bib/pkg/postgres"
)

// UnitOfWork implements port.UnitOfWork with a pgx transaction carried in the context.
type UnitOfWork struct {
	pool *pgxpool.Pool
}

// NewUnitOfWork creates a unit of work over pool.
func NewUnitOfWork(pool *pgxpool.Pool) *UnitOfWork {
	return &UnitOfWork{pool: pool}
}

// Do runs fn in a transaction. Repositories given the context passed to fn join it.
func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return pkgpostgres.WithTransaction(ctx, u.pool, func(ctx context.Context, _ pgx.Tx) error {
		return fn(ctx)
	})
}
