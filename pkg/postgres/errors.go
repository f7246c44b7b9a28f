package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes of the integrity constraint violation class.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeCheckViolation      = "23514"
	CodeNotNullViolation    = "23502"
)

// IntegrityViolation describes a constraint violation reported by the database.
type IntegrityViolation struct {
	Code       string
	Constraint string
	Table      string
	Detail     string
}

// AsIntegrityViolation reports whether err wraps an integrity constraint violation.
func AsIntegrityViolation(err error) (IntegrityViolation, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return IntegrityViolation{}, false
	}
	switch pgErr.Code {
	case CodeUniqueViolation, CodeForeignKeyViolation, CodeCheckViolation, CodeNotNullViolation:
		return IntegrityViolation{
			Code:       pgErr.Code,
			Constraint: pgErr.ConstraintName,
			Table:      pgErr.TableName,
			Detail:     pgErr.Detail,
		}, true
	default:
		return IntegrityViolation{}, false
	}
}
