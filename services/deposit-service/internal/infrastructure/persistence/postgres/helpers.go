package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/bibbank/bib/services/deposit-service/internal/domain/valueobject"
)

// scannable is satisfied by pgx.Row and pgx.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// notFound turns pgx.ErrNoRows into the domain not-found error.
func notFound(err error, kind, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return valueobject.NewNotFoundError(kind, id)
	}
	return err
}
