package remote

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/dmitrijs2005/receiptkeeper/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
)

// wrap tags err with common.ErrRemote and, for connectivity, authentication
// and timeout failures, with common.ErrRemoteUnavailable too. ctx is the
// per-call context; drivers do not always report its deadline themselves.
func wrap(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || isUnavailable(err) {
		return fmt.Errorf("%s: %w: %w: %w", op, common.ErrRemoteUnavailable, common.ErrRemote, err)
	}
	return fmt.Errorf("%s: %w: %w", op, common.ErrRemote, err)
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 08: connection exception, 28: invalid authorization, 57P: operator intervention.
		switch {
		case len(pgErr.Code) >= 2 && (pgErr.Code[:2] == "08" || pgErr.Code[:2] == "28"):
			return true
		case len(pgErr.Code) >= 3 && pgErr.Code[:3] == "57P":
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
