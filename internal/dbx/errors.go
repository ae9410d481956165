package dbx

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes and classes inspected by this package.
const (
	pgUniqueViolation      = "23505"
	pgConnectionException  = "08"
	pgInsufficientRes      = "53"
	pgOperatorIntervention = "57"
)

// IsUniqueViolation reports whether err is a unique-constraint violation and,
// if so, the name of the violated constraint.
func IsUniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// IsUnavailable reports whether err means the database could not be reached
// or did not answer in time, as opposed to a query that ran and failed.
// Such errors are safe for the caller to retry.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, pgConnectionException) ||
			strings.HasPrefix(pgErr.Code, pgInsufficientRes) ||
			strings.HasPrefix(pgErr.Code, pgOperatorIntervention)
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
