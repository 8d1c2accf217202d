package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/dummycsv/internal/errs"
)

// PostgreSQL SQLSTATE codes the store reacts to.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
	pgErrCheckViolation      = "23514"
	pgErrConnectionFailure   = "08006"
	pgErrCannotConnectNow    = "57P03"
	pgErrQueryCanceled       = "57014"
	pgErrSyntaxError         = "42601"
	pgErrUndefinedTable      = "42P01"
	pgErrUndefinedColumn     = "42703"
)

// mapError converts a pgx error into an *errs.Error. msg describes the
// operation that failed.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return errs.Wrap(errs.KindNotFound, msg, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(errs.KindTimeout, msg, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return errs.Wrap(errs.KindConflict, msg, err)
		case pgErrForeignKeyViolation:
			return errs.Wrap(errs.KindNotFound, fmt.Sprintf("%s: referenced row does not exist", msg), err)
		case pgErrCheckViolation:
			return errs.Wrap(errs.KindInvalidInput, msg, err)
		case pgErrConnectionFailure, pgErrCannotConnectNow:
			return errs.Wrap(errs.KindConnectionFailed, msg, err)
		case pgErrQueryCanceled:
			return errs.Wrap(errs.KindTimeout, msg, err)
		case pgErrSyntaxError, pgErrUndefinedTable, pgErrUndefinedColumn:
			return errs.Wrap(errs.KindQueryFailed, fmt.Sprintf("%s: %s", msg, pgErr.Message), err)
		}
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return errs.Wrap(errs.KindConnectionFailed, msg, err)
	}

	return errs.Wrap(errs.KindQueryFailed, msg, err)
}
