package postgres

import (
	"context"
	"net"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xenking/storefront/internal/domain/apperr"
)

// SQLSTATE codes the storefront reacts to.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeNumericOutOfRange    = "22003"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeQueryCanceled        = "57014"
	codeAdminShutdown        = "57P01"
	codeCannotConnectNow     = "57P03"

	classConnectionException = "08"
	classDataException       = "22"
)

func pgClass(code string) string {
	if len(code) != 5 {
		return ""
	}
	return code[:2]
}

// classify wraps err with the apperr kind matching the driver failure.
// Errors it does not recognise are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable, codeUniqueViolation:
			return errors.Wrap(apperr.ErrConflict, pgErr.Message)
		case codeQueryCanceled, codeAdminShutdown, codeCannotConnectNow:
			return errors.Wrap(apperr.ErrUnavailable, pgErr.Message)
		}
		switch pgClass(pgErr.Code) {
		case classConnectionException:
			return errors.Wrap(apperr.ErrUnavailable, pgErr.Message)
		case classDataException:
			// E.g. 22003 when an additive cart upsert overflows quantity.
			return &apperr.ValidationError{Reason: pgErr.Message}
		}
		return err
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		pgconn.Timeout(err),
		errors.As(err, &netErr):
		return errors.Wrap(apperr.ErrUnavailable, err.Error())
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return errors.Wrap(apperr.ErrUnavailable, err.Error())
	}
	return err
}

// isPgCode reports whether err is a Postgres error with the given code.
func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
