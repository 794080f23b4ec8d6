package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nerrad567/gray-logic-dbkeeper/internal/conn"
)

// DriverName is returned by Connection.DriverName.
const DriverName = "postgres"

// Server error codes that mean the session is gone.
const (
	classConnectionException = "08"
	codeAdminShutdown        = "57P01"
	codeCrashShutdown        = "57P02"
	codeCannotConnectNow     = "57P03"
)

// classify wraps a pgx error in the matching conn sentinel.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("postgres %s: %w", op, conn.FromContext(err))
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if isSessionFatal(pgErr.Code) {
			return fmt.Errorf("postgres %s: %w: %w", op, conn.ErrConnectionLost, err)
		}
		return fmt.Errorf("postgres %s: %w: %w", op, conn.ErrQueryFailed, err)
	}

	if errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("postgres %s: %w: %w", op, conn.ErrQueryFailed, err)
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || conn.IsConnectionLoss(err) {
		return fmt.Errorf("postgres %s: %w: %w", op, conn.ErrConnectionLost, err)
	}
	if pgconn.Timeout(err) {
		return fmt.Errorf("postgres %s: %w: %w", op, conn.ErrTimeout, err)
	}
	return fmt.Errorf("postgres %s: %w: %w", op, conn.ErrQueryFailed, err)
}

func isSessionFatal(code string) bool {
	switch code {
	case codeAdminShutdown, codeCrashShutdown, codeCannotConnectNow:
		return true
	}
	return strings.HasPrefix(code, classConnectionException)
}
