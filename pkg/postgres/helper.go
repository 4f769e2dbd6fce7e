package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// IsForeignKeyViolation reports whether the given error is a PostgreSQL
// foreign key violation (SQLSTATE 23503). Works through wrapped errors.
func IsForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23503"
	}

	return false
}

// IsCheckViolation reports whether the given error is a PostgreSQL check
// constraint violation (SQLSTATE 23514), e.g. a wallet balance going negative.
func IsCheckViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23514"
	}

	return false
}
