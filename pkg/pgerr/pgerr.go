// Package pgerr classifies PostgreSQL errors returned through pgx.
package pgerr

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

func Message(err error) string {
	if pgErr, ok := errors.AsType[*pgconn.PgError](err); ok && pgErr != nil {
		msg := strings.TrimSpace(pgErr.Message)
		if msg != "" {
			return msg
		}
	}
	return "UNKNOWN"
}

func Code(err error) string {
	if pgErr, ok := errors.AsType[*pgconn.PgError](err); ok && pgErr != nil {
		return strings.TrimSpace(pgErr.Code)
	}
	return ""
}

func Constraint(err error) string {
	if pgErr, ok := errors.AsType[*pgconn.PgError](err); ok && pgErr != nil {
		return strings.TrimSpace(pgErr.ConstraintName)
	}
	return ""
}

func IsUniqueViolation(err error) bool { return Code(err) == codeUniqueViolation }

func IsForeignKeyViolation(err error) bool { return Code(err) == codeForeignKeyViolation }

// IsInvalidInput reports malformed values rejected by the database (bad
// text representation, numeric overflow, bad datetime).
func IsInvalidInput(err error) bool {
	switch Code(err) {
	case "22P02", "22003", "22007", "22008":
		return true
	default:
		return false
	}
}
