package errors

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres error classes we translate. Anything else becomes a generic
// internal error so schema details never leak into API responses.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
)

// FromDatabase maps a database error to a user-safe APIError.
// The resource name is used in the message; the raw error is never exposed.
func FromDatabase(err error, resource string) *APIError {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(resource)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return AlreadyExists(resource)
		case pgForeignKeyViolation:
			return BadRequest("referenced " + resource + " does not exist")
		case pgNotNullViolation, pgCheckViolation:
			return BadRequest("invalid " + resource + " data")
		}
	}

	return InternalError("an unexpected error occurred")
}

// IsUniqueViolation reports whether err is a Postgres unique constraint error.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
