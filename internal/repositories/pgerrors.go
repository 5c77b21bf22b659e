package repositories

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "clipforge/internal/pkg/errors"
)

const (
	pgUndefinedTable   = "42P01"
	pgUniqueViolation  = "23505"
	pgCheckViolation   = "23514"
	pgInvalidTextInput = "22P02"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func IsUndefinedTable(err error) bool   { return pgCode(err) == pgUndefinedTable }
func IsUniqueViolation(err error) bool  { return pgCode(err) == pgUniqueViolation }
func IsCheckViolation(err error) bool   { return pgCode(err) == pgCheckViolation }
func IsInvalidTextInput(err error) bool { return pgCode(err) == pgInvalidTextInput }

// wrapPG wraps a database error, choosing the code from the SQLSTATE. Bad
// enum or check values are the caller's fault; a missing table means the
// schema was never applied and the backend is unusable until it is.
func wrapPG(err error, op, message string) error {
	switch {
	case IsUndefinedTable(err):
		return apperrors.WrapWithCode(err, apperrors.CodeUnavailable, op, "database schema missing")
	case IsCheckViolation(err), IsInvalidTextInput(err):
		return apperrors.WrapWithCode(err, apperrors.CodeValidation, op, message)
	default:
		return apperrors.Wrap(err, op, message)
	}
}

func isNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }
