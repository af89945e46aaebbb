package dbx

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/taskcamp/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	// uniqueViolation is the SQLSTATE Postgres reports for a unique index clash.
	uniqueViolation = "23505"
	// invalidTextRepresentation is reported when a parameter cannot be cast
	// to the column type, such as "abc" for a uuid column.
	invalidTextRepresentation = "22P02"
)

// IsUniqueViolation reports whether err carries a Postgres unique violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// IsInvalidText reports whether Postgres rejected a parameter that does not
// parse as the column type.
func IsInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation
}

// IsNoRows reports whether a lookup matched nothing. A key that cannot be a
// valid id, like a malformed uuid, matches nothing as well.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || IsInvalidText(err)
}

// IsTimeout reports whether err is a driver or context timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err)
}

// Classify folds a persistence error into the service taxonomy. Unique
// violations become common.ErrDuplicateUser, missing rows and malformed ids
// become common.ErrNotFound, and everything else (timeouts included) becomes
// common.ErrInternal.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrNotFound), IsNoRows(err):
		return common.ErrNotFound
	case IsUniqueViolation(err), errors.Is(err, common.ErrDuplicateUser):
		return common.ErrDuplicateUser
	default:
		return common.ErrInternal
	}
}
