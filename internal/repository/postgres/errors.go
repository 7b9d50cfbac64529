package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// IsPgDuplicateError checks if error is a unique constraint violation
func IsPgDuplicateError(err error) bool {
	return pgCode(err) == "23505"
}

// IsPgNoRowsError checks if error is a "no rows" error
func IsPgNoRowsError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsPgForeignKeyError checks if error is a foreign key violation
func IsPgForeignKeyError(err error) bool {
	return pgCode(err) == "23503"
}

// IsPgCheckError checks if error is a check constraint violation
func IsPgCheckError(err error) bool {
	return pgCode(err) == "23514"
}

// IsPgConstraintError reports whether err is any integrity constraint violation
func IsPgConstraintError(err error) bool {
	return IsPgDuplicateError(err) || IsPgForeignKeyError(err) || IsPgCheckError(err)
}

// ConstraintName returns the violated constraint, if err carries one
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
